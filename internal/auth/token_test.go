package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayush/skillswap/internal/errs"
	"github.com/ayush/skillswap/internal/models"
)

func TestTokenIssuer_RoundTrip(t *testing.T) {
	t.Parallel()

	ti := NewTokenIssuer("super-secret", time.Hour)
	tok, err := ti.Issue("user-123")
	require.NoError(t, err)

	got, err := ti.Validate(tok)
	require.NoError(t, err)
	assert.Equal(t, models.UserID("user-123"), got)
}

func TestTokenIssuer_Expired(t *testing.T) {
	t.Parallel()

	ti := NewTokenIssuer("secret", time.Hour)
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute))},
		UserID:           "u1",
	})
	s, err := tok.SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = ti.Validate(s)
	assert.ErrorIs(t, err, errs.ErrUnauthorized)
}

func TestTokenIssuer_WrongSecret(t *testing.T) {
	t.Parallel()

	tok, err := NewTokenIssuer("right", time.Hour).Issue("u2")
	require.NoError(t, err)

	_, err = NewTokenIssuer("wrong", time.Hour).Validate(tok)
	assert.ErrorIs(t, err, errs.ErrUnauthorized)
}

func TestTokenIssuer_RejectsOtherAlgorithms(t *testing.T) {
	t.Parallel()

	tok := jwt.NewWithClaims(jwt.SigningMethodNone, claims{UserID: "u3"})
	s, err := tok.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewTokenIssuer("k", time.Hour).Validate(s)
	assert.ErrorIs(t, err, errs.ErrUnauthorized)
}

func TestTokenIssuer_Garbage(t *testing.T) {
	t.Parallel()

	_, err := NewTokenIssuer("k", time.Hour).Validate("not.a.token")
	assert.ErrorIs(t, err, errs.ErrUnauthorized)
}
