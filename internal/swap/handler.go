package swap

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/ayush/skillswap/internal/auth"
	"github.com/ayush/skillswap/internal/errs"
	"github.com/ayush/skillswap/internal/httpx"
	"github.com/ayush/skillswap/internal/models"
)

// Handler holds swap request HTTP handlers. All routes require an
// authenticated user in the request context.
type Handler struct {
	svc *Service
	log zerolog.Logger
}

func NewHandler(svc *Service, log zerolog.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// Create handles POST /api/requests.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, h.log, errs.ErrUnauthorized)
		return
	}

	var body models.CreateSwapRequest
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}

	req, err := h.svc.Submit(r.Context(), actor, SubmitInput{
		ToUser:       models.UserID(body.ToUser),
		SkillOffered: body.SkillOffered,
		SkillWanted:  body.SkillWanted,
		Message:      body.Message,
	})
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, req)
}

// List handles GET /api/requests.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, h.log, errs.ErrUnauthorized)
		return
	}

	reqs, err := h.svc.List(r.Context(), actor)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	if reqs == nil {
		reqs = []models.ResolvedRequest{}
	}
	httpx.WriteJSON(w, http.StatusOK, reqs)
}

// UpdateStatus handles PUT /api/requests/{id}/status.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, h.log, errs.ErrUnauthorized)
		return
	}

	var body models.UpdateStatusRequest
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	// Unknown values fall through to the ledger, which rejects anything that
	// is not a terminal status.
	status, ok := models.ParseStatus(body.Status)
	if !ok {
		status = models.Status(body.Status)
	}

	req, err := h.svc.Respond(r.Context(), actor, models.RequestID(chi.URLParam(r, "id")), status)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, req)
}
