// Package swap implements the swap request lifecycle: submitting a request,
// responding to it, and listing a user's requests. Every successful state
// change is followed by a notification to the other party.
package swap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ayush/skillswap/internal/errs"
	"github.com/ayush/skillswap/internal/metrics"
	"github.com/ayush/skillswap/internal/models"
)

// Ledger persists swap requests.
type Ledger interface {
	Create(ctx context.Context, in models.NewSwapRequest) (*models.ResolvedRequest, error)
	ListForUser(ctx context.Context, userID models.UserID) ([]models.ResolvedRequest, error)
	SetStatus(ctx context.Context, id models.RequestID, actor models.UserID, status models.Status) (*models.ResolvedRequest, error)
}

// Identity looks users up by id.
type Identity interface {
	FindByID(ctx context.Context, id models.UserID) (*models.User, error)
}

// Emitter pushes an event to a user's live channels. It never fails.
type Emitter interface {
	Emit(ctx context.Context, userID models.UserID, eventType string, payload any)
}

// SubmitInput is what a sender provides for a new request.
type SubmitInput struct {
	ToUser       models.UserID
	SkillOffered string
	SkillWanted  string
	Message      string
}

type Service struct {
	ledger Ledger
	users  Identity
	events Emitter
	log    zerolog.Logger
}

func NewService(ledger Ledger, users Identity, events Emitter, log zerolog.Logger) *Service {
	return &Service{ledger: ledger, users: users, events: events, log: log}
}

// actorUser loads the authenticated caller. An id that no longer maps to a
// user is treated as unauthorized for the operation.
func (s *Service) actorUser(ctx context.Context, actor models.UserID) (*models.User, error) {
	u, err := s.users.FindByID(ctx, actor)
	if errors.Is(err, errs.ErrUserNotFound) {
		return nil, errs.ErrForbidden
	}
	if err != nil {
		return nil, fmt.Errorf("load actor: %w", err)
	}
	return u, nil
}

// Submit creates a Pending request from actor to in.ToUser and notifies the
// recipient with a newRequest event.
func (s *Service) Submit(ctx context.Context, actor models.UserID, in SubmitInput) (*models.ResolvedRequest, error) {
	req, sender, err := s.submit(ctx, actor, in)
	metrics.SwapRequest("submit", resultLabel(err))
	if err != nil {
		return nil, err
	}

	s.log.Debug().
		Str("request_id", req.ID.String()).
		Str("from", req.FromUser.ID.String()).
		Str("to", req.ToUser.ID.String()).
		Msg("swap request created")

	s.events.Emit(ctx, req.ToUser.ID, models.EventNewRequest, models.Notification{
		Message: sender.Name + " sent you a skill swap request!",
		Request: req,
	})
	return req, nil
}

func (s *Service) submit(ctx context.Context, actor models.UserID, in SubmitInput) (*models.ResolvedRequest, *models.User, error) {
	sender, err := s.actorUser(ctx, actor)
	if err != nil {
		return nil, nil, err
	}
	recipient, err := s.users.FindByID(ctx, in.ToUser)
	if err != nil {
		if errors.Is(err, errs.ErrUserNotFound) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("load recipient: %w", err)
	}
	// The directory accepts several spellings of one id. Everything past
	// this point uses the stored ids.
	if recipient.ID == sender.ID {
		return nil, nil, errs.ErrSelfRequest
	}

	offered, wanted := strings.TrimSpace(in.SkillOffered), strings.TrimSpace(in.SkillWanted)
	if offered == "" || wanted == "" {
		return nil, nil, fmt.Errorf("%w: skillOffered and skillWanted are required", errs.ErrValidation)
	}

	req, err := s.ledger.Create(ctx, models.NewSwapRequest{
		FromUser:     sender.ID,
		ToUser:       recipient.ID,
		SkillOffered: offered,
		SkillWanted:  wanted,
		Message:      strings.TrimSpace(in.Message),
	})
	if err != nil {
		return nil, nil, err
	}
	return req, sender, nil
}

// Respond moves a Pending request addressed to actor into Accepted or
// Rejected and notifies the sender with a requestUpdated event.
func (s *Service) Respond(ctx context.Context, actor models.UserID, id models.RequestID, status models.Status) (*models.ResolvedRequest, error) {
	req, responder, err := s.respond(ctx, actor, id, status)
	metrics.SwapRequest("respond", resultLabel(err))
	if err != nil {
		return nil, err
	}

	s.log.Debug().
		Str("request_id", id.String()).
		Str("status", string(status)).
		Msg("swap request updated")

	s.events.Emit(ctx, req.FromUser.ID, models.EventRequestUpdated, models.Notification{
		Message: fmt.Sprintf("Your request to %s was %s!", responder.Name, strings.ToLower(string(req.Status))),
		Request: req,
	})
	return req, nil
}

func (s *Service) respond(ctx context.Context, actor models.UserID, id models.RequestID, status models.Status) (*models.ResolvedRequest, *models.User, error) {
	responder, err := s.actorUser(ctx, actor)
	if err != nil {
		return nil, nil, err
	}
	req, err := s.ledger.SetStatus(ctx, id, responder.ID, status)
	if err != nil {
		return nil, nil, err
	}
	return req, responder, nil
}

// List returns every request actor sent or received, newest first.
func (s *Service) List(ctx context.Context, actor models.UserID) ([]models.ResolvedRequest, error) {
	return s.ledger.ListForUser(ctx, actor)
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, errs.ErrConflict):
		return "conflict"
	case errors.Is(err, errs.ErrSelfRequest), errors.Is(err, errs.ErrValidation):
		return "invalid"
	case errors.Is(err, errs.ErrForbidden):
		return "forbidden"
	case errors.Is(err, errs.ErrNotFound), errors.Is(err, errs.ErrUserNotFound):
		return "not_found"
	case errors.Is(err, errs.ErrInvalidTransition):
		return "invalid_transition"
	default:
		return "error"
	}
}
