package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/ayush/skillswap/internal/errs"
	"github.com/ayush/skillswap/internal/httpx"
	"github.com/ayush/skillswap/internal/models"
)

// UserStore defines the interface for user persistence.
type UserStore interface {
	CreateUser(ctx context.Context, name, email, hashedPw string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id models.UserID) (*models.User, error)
}

// Handler holds auth-related HTTP handlers.
type Handler struct {
	users        UserStore
	sessions     *SessionStore
	tokens       *TokenIssuer
	secureCookie bool
	log          zerolog.Logger
}

func NewHandler(users UserStore, sessions *SessionStore, tokens *TokenIssuer, secureCookie bool, log zerolog.Logger) *Handler {
	return &Handler{users: users, sessions: sessions, tokens: tokens, secureCookie: secureCookie, log: log}
}

// Register creates a new user and signs them in.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		httpx.WriteError(w, h.log, fmt.Errorf("hash password: %w", err))
		return
	}

	user, err := h.users.CreateUser(r.Context(), req.Name, req.Email, string(hashed))
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	h.log.Info().Str("user_id", user.ID.String()).Msg("user registered")

	h.signIn(w, r, user, http.StatusCreated)
}

// Login authenticates a user and creates a session.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}

	user, err := h.users.FindByEmail(r.Context(), req.Email)
	if errors.Is(err, errs.ErrUserNotFound) {
		httpx.WriteError(w, h.log, errs.ErrInvalidCredentials)
		return
	}
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		httpx.WriteError(w, h.log, errs.ErrInvalidCredentials)
		return
	}

	h.signIn(w, r, user, http.StatusOK)
}

// signIn issues a bearer token and a session cookie for user.
func (h *Handler) signIn(w http.ResponseWriter, r *http.Request, user *models.User, status int) {
	token, err := h.tokens.Issue(user.ID)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}

	sid, err := h.sessions.Create(r.Context(), user.ID)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    sid,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(SessionTTL / time.Second),
	})

	httpx.WriteJSON(w, status, models.AuthResponse{Token: token, User: user.Profile()})
}

// Logout destroys the current session.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookie); err == nil {
		if err := h.sessions.Delete(r.Context(), cookie.Value); err != nil {
			h.log.Warn().Err(err).Msg("session delete failed")
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookie,
		MaxAge:   -1,
	})

	httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// Me returns the currently authenticated user.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, h.log, errs.ErrUnauthorized)
		return
	}

	user, err := h.users.FindByID(r.Context(), userID)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, user.Profile())
}
