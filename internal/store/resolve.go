package store

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ayush/skillswap/internal/models"
)

// ProfileResolver turns user ids into display-safe references.
type ProfileResolver interface {
	RefsByIDs(ctx context.Context, ids []models.UserID) (map[models.UserID]models.UserRef, error)
}

// resolve replaces the user ids of reqs with references from users.
// A user missing from the directory resolves to a bare id.
func resolve(ctx context.Context, users ProfileResolver, reqs []models.SwapRequest) ([]models.ResolvedRequest, error) {
	seen := make(map[models.UserID]struct{}, 2*len(reqs))
	ids := make([]models.UserID, 0, 2*len(reqs))
	for _, r := range reqs {
		for _, id := range []models.UserID{r.FromUser, r.ToUser} {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				ids = append(ids, id)
			}
		}
	}

	refs := map[models.UserID]models.UserRef{}
	if len(ids) > 0 {
		var err error
		if refs, err = users.RefsByIDs(ctx, ids); err != nil {
			return nil, fmt.Errorf("resolve users: %w", err)
		}
	}
	ref := func(id models.UserID) models.UserRef {
		if r, ok := refs[id]; ok {
			return r
		}
		return models.UserRef{ID: id}
	}

	out := make([]models.ResolvedRequest, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, models.ResolvedRequest{
			ID:           r.ID,
			FromUser:     ref(r.FromUser),
			ToUser:       ref(r.ToUser),
			SkillOffered: r.SkillOffered,
			SkillWanted:  r.SkillWanted,
			Message:      r.Message,
			Status:       r.Status,
			CreatedAt:    r.CreatedAt,
			UpdatedAt:    r.UpdatedAt,
		})
	}
	return out, nil
}

func resolveOne(ctx context.Context, users ProfileResolver, req models.SwapRequest) (*models.ResolvedRequest, error) {
	out, err := resolve(ctx, users, []models.SwapRequest{req})
	if err != nil {
		return nil, err
	}
	return &out[0], nil
}

// resolveCommitted resolves a request whose write has already committed.
// A lookup failure must not turn that write into an error, so both parties
// fall back to bare ids.
func resolveCommitted(ctx context.Context, users ProfileResolver, req models.SwapRequest) *models.ResolvedRequest {
	out, err := resolveOne(ctx, users, req)
	if err == nil {
		return out
	}
	zerolog.Ctx(ctx).Warn().Err(err).Str("request_id", req.ID.String()).Msg("resolve committed request")
	bare := bareRefs(req)
	return &bare
}

func bareRefs(r models.SwapRequest) models.ResolvedRequest {
	return models.ResolvedRequest{
		ID:           r.ID,
		FromUser:     models.UserRef{ID: r.FromUser},
		ToUser:       models.UserRef{ID: r.ToUser},
		SkillOffered: r.SkillOffered,
		SkillWanted:  r.SkillWanted,
		Message:      r.Message,
		Status:       r.Status,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}
