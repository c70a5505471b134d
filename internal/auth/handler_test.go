package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayush/skillswap/internal/models"
	"github.com/ayush/skillswap/internal/store"
)

type authFixture struct {
	h        *Handler
	sessions *SessionStore
	tokens   *TokenIssuer
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	sessions, _ := newTestSessions(t)
	tokens := NewTokenIssuer("test-secret", time.Hour)
	return &authFixture{
		h:        NewHandler(store.NewMemoryUsers(), sessions, tokens, false, zerolog.Nop()),
		sessions: sessions,
		tokens:   tokens,
	}
}

func post(h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == SessionCookie {
			return c
		}
	}
	return nil
}

func TestRegisterAndLogin(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	rec := post(f.h.Register, `{"name":"Ann","email":"Ann@Example.com","password":"secret1"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp models.AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ann@example.com", resp.User.Email)
	assert.Equal(t, "Ann", resp.User.Name)
	assert.NotContains(t, rec.Body.String(), "secret1")
	assert.NotContains(t, rec.Body.String(), "password")

	uid, err := f.tokens.Validate(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, uid)

	c := sessionCookie(rec)
	require.NotNil(t, c)
	assert.True(t, c.HttpOnly)
	got, err := f.sessions.Get(ctx, c.Value)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, got)

	rec = post(f.h.Login, `{"email":"ann@example.com","password":"secret1"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, uid, resp.User.ID)
	assert.NotNil(t, sessionCookie(rec))
}

func TestRegister_Rejections(t *testing.T) {
	f := newAuthFixture(t)
	require.Equal(t, http.StatusCreated, post(f.h.Register, `{"name":"Ann","email":"ann@example.com","password":"secret1"}`).Code)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"duplicate email", `{"name":"Other","email":"ANN@example.com","password":"secret1"}`, http.StatusConflict},
		{"short password", `{"name":"Bob","email":"bob@example.com","password":"123"}`, http.StatusBadRequest},
		{"bad email", `{"name":"Bob","email":"bob","password":"secret1"}`, http.StatusBadRequest},
		{"missing name", `{"email":"bob@example.com","password":"secret1"}`, http.StatusBadRequest},
		{"not json", `nope`, http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := post(f.h.Register, tc.body)
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
			assert.Nil(t, sessionCookie(rec))
		})
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	f := newAuthFixture(t)
	require.Equal(t, http.StatusCreated, post(f.h.Register, `{"name":"Ann","email":"ann@example.com","password":"secret1"}`).Code)

	for _, body := range []string{
		`{"email":"ann@example.com","password":"wrong!!"}`,
		`{"email":"nobody@example.com","password":"secret1"}`,
	} {
		rec := post(f.h.Login, body)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		var e map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
		assert.Equal(t, "invalid email or password", e["error"], "unknown email and wrong password look the same")
	}
}

func TestLogoutAndMe(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	rec := post(f.h.Register, `{"name":"Ann","email":"ann@example.com","password":"secret1"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var resp models.AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	c := sessionCookie(rec)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req = req.WithContext(WithUserID(req.Context(), resp.User.ID))
	me := httptest.NewRecorder()
	f.h.Me(me, req)
	require.Equal(t, http.StatusOK, me.Code)
	var p models.Profile
	require.NoError(t, json.Unmarshal(me.Body.Bytes(), &p))
	assert.Equal(t, resp.User, p)

	me = httptest.NewRecorder()
	f.h.Me(me, httptest.NewRequest(http.MethodGet, "/api/auth/me", nil))
	assert.Equal(t, http.StatusUnauthorized, me.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	req.AddCookie(c)
	out := httptest.NewRecorder()
	f.h.Logout(out, req)
	assert.Equal(t, http.StatusOK, out.Code)
	cleared := sessionCookie(out)
	require.NotNil(t, cleared)
	assert.Less(t, cleared.MaxAge, 0)

	got, err := f.sessions.Get(ctx, c.Value)
	require.NoError(t, err)
	assert.Empty(t, got)
}
