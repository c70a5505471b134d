// Package users serves the public skill directory and profile editing.
package users

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/ayush/skillswap/internal/auth"
	"github.com/ayush/skillswap/internal/errs"
	"github.com/ayush/skillswap/internal/httpx"
	"github.com/ayush/skillswap/internal/models"
)

const (
	defaultPageSize = 6
	maxPageSize     = 50
)

// UserStore is the directory the handlers read and update.
type UserStore interface {
	FindByID(ctx context.Context, id models.UserID) (*models.User, error)
	ListPublic(ctx context.Context, search string, page, limit int) ([]models.User, int, error)
	UpdateProfile(ctx context.Context, id models.UserID, upd models.ProfileUpdate) (*models.User, error)
}

// PhotoStore holds uploaded profile photos.
type PhotoStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, string, int64, error)
}

type Handler struct {
	users         UserStore
	photos        PhotoStore
	maxPhotoBytes int64
	log           zerolog.Logger
}

func NewHandler(users UserStore, photos PhotoStore, maxPhotoBytes int64, log zerolog.Logger) *Handler {
	return &Handler{users: users, photos: photos, maxPhotoBytes: maxPhotoBytes, log: log}
}

func photoKey(id models.UserID) string { return "photos/" + id.String() }

func photoURL(id models.UserID) string { return "/api/users/" + id.String() + "/photo" }

func intParam(r *http.Request, name string, def int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || n < 1 {
		return def
	}
	return n
}

// ListPublic handles GET /api/users/public?page=&limit=&search=.
func (h *Handler) ListPublic(w http.ResponseWriter, r *http.Request) {
	page := intParam(r, "page", 1)
	limit := min(intParam(r, "limit", defaultPageSize), maxPageSize)

	list, total, err := h.users.ListPublic(r.Context(), r.URL.Query().Get("search"), page, limit)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}

	out := models.UserPage{
		Users:       make([]models.PublicUser, 0, len(list)),
		CurrentPage: page,
		TotalPages:  int(math.Ceil(float64(total) / float64(limit))),
		TotalUsers:  total,
	}
	for i := range list {
		out.Users = append(out.Users, list[i].Public())
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// Get handles GET /api/users/{id}. Private profiles are reported as absent.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	u, err := h.users.FindByID(r.Context(), models.UserID(chi.URLParam(r, "id")))
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	if !u.IsPublic {
		httpx.WriteError(w, h.log, errs.ErrUserNotFound)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, u.Public())
}

// UpdateProfile handles PUT /api/users/profile.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, h.log, errs.ErrUnauthorized)
		return
	}

	// base64 inflates by 4/3; leave headroom for the other fields.
	r.Body = http.MaxBytesReader(w, r.Body, h.maxPhotoBytes/3*4+64<<10)

	var upd models.ProfileUpdate
	if err := httpx.DecodeJSON(r, &upd); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	if upd.Availability != nil && !upd.Availability.Valid() {
		httpx.WriteError(w, h.log, fmt.Errorf("%w: unknown availability %q", errs.ErrValidation, *upd.Availability))
		return
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			httpx.WriteError(w, h.log, fmt.Errorf("%w: name cannot be empty", errs.ErrValidation))
			return
		}
		upd.Name = &name
	}
	upd.SkillsOffered = cleanSkills(upd.SkillsOffered)
	upd.SkillsWanted = cleanSkills(upd.SkillsWanted)

	if upd.ProfilePhoto != nil && strings.HasPrefix(*upd.ProfilePhoto, "data:") {
		url, err := h.storePhoto(r.Context(), userID, *upd.ProfilePhoto)
		if err != nil {
			httpx.WriteError(w, h.log, err)
			return
		}
		upd.ProfilePhoto = &url
	}

	u, err := h.users.UpdateProfile(r.Context(), userID, upd)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, u.Profile())
}

// cleanSkills trims entries and drops blanks and duplicates, keeping order.
// A nil input stays nil so the field is left unchanged.
func cleanSkills(skills []string) []string {
	if skills == nil {
		return nil
	}
	out := make([]string, 0, len(skills))
	seen := make(map[string]struct{}, len(skills))
	for _, s := range skills {
		s = strings.TrimSpace(s)
		key := strings.ToLower(s)
		if s == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	return out
}

// storePhoto uploads a "data:image/...;base64," URL and returns the path the
// photo is served from.
func (h *Handler) storePhoto(ctx context.Context, userID models.UserID, dataURL string) (string, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(dataURL, "data:"), ",")
	if !ok {
		return "", fmt.Errorf("%w: malformed photo data URL", errs.ErrValidation)
	}
	contentType, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 || !strings.HasPrefix(contentType, "image/") {
		return "", fmt.Errorf("%w: photo must be a base64 encoded image", errs.ErrValidation)
	}
	if int64(base64.StdEncoding.DecodedLen(len(payload))) > h.maxPhotoBytes+2 {
		return "", fmt.Errorf("%w: photo exceeds %d bytes", errs.ErrValidation, h.maxPhotoBytes)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", fmt.Errorf("%w: photo is not valid base64", errs.ErrValidation)
	}
	if int64(len(data)) > h.maxPhotoBytes {
		return "", fmt.Errorf("%w: photo exceeds %d bytes", errs.ErrValidation, h.maxPhotoBytes)
	}

	if err := h.photos.Upload(ctx, photoKey(userID), data, contentType); err != nil {
		return "", fmt.Errorf("upload photo: %w", err)
	}
	return photoURL(userID), nil
}

// Photo handles GET /api/users/{id}/photo. A private user's photo is only
// served to that user.
func (h *Handler) Photo(w http.ResponseWriter, r *http.Request) {
	u, err := h.users.FindByID(r.Context(), models.UserID(chi.URLParam(r, "id")))
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	if viewer, _ := auth.UserIDFromContext(r.Context()); !u.IsPublic && viewer != u.ID {
		httpx.WriteError(w, h.log, errs.ErrUserNotFound)
		return
	}
	id := u.ID
	body, contentType, size, err := h.photos.Open(r.Context(), photoKey(id))
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", contentType)
	if size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	}
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		h.log.Warn().Err(err).Str("user_id", id.String()).Msg("photo stream interrupted")
	}
}
