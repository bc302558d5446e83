package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	hash, err := h.Hash("123")
	require.NoError(t, err)
	assert.NotEqual(t, "123", hash)
	assert.True(t, h.Verify(hash, "123"))
	assert.False(t, h.Verify(hash, "1234"))
	assert.False(t, h.Verify("not-a-hash", "123"))

	assert.Equal(t, bcrypt.DefaultCost, NewBcryptHasher(0).Cost)
}

func TestTokenIssuer_RoundTrip(t *testing.T) {
	issuer, err := NewTokenIssuer("secret", time.Minute)
	require.NoError(t, err)

	token, err := issuer.Issue("Alice")
	require.NoError(t, err)

	name, err := issuer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "Alice", name)
}

func TestTokenIssuer_Rejects(t *testing.T) {
	issuer, err := NewTokenIssuer("secret", time.Minute)
	require.NoError(t, err)

	_, err = issuer.Parse("garbage")
	assert.True(t, errors.Is(err, ErrInvalidToken))

	other, err := NewTokenIssuer("other", time.Minute)
	require.NoError(t, err)
	foreign, err := other.Issue("Alice")
	require.NoError(t, err)
	_, err = issuer.Parse(foreign)
	assert.True(t, errors.Is(err, ErrInvalidToken))

	issued := time.Now().Add(-time.Hour)
	issuer.now = func() time.Time { return issued }
	expired, err := issuer.IssueWithTTL("Alice", time.Minute)
	require.NoError(t, err)
	issuer.now = time.Now
	_, err = issuer.Parse(expired)
	assert.True(t, errors.Is(err, ErrInvalidToken))

	_, err = issuer.IssueWithTTL("Alice", -time.Second)
	assert.True(t, errors.Is(err, ErrNegativeTTL))
}

func TestTokenIssuer_NoSubject(t *testing.T) {
	issuer, err := NewTokenIssuer("secret", time.Minute)
	require.NoError(t, err)

	claims := jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute))}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = issuer.Parse(token)
	assert.True(t, errors.Is(err, ErrNoSubject))
}

func TestNewTokenIssuer_Validation(t *testing.T) {
	_, err := NewTokenIssuer(" ", time.Minute)
	assert.Error(t, err)

	_, err = NewTokenIssuer("secret", -time.Minute)
	assert.True(t, errors.Is(err, ErrNegativeTTL))

	issuer, err := NewTokenIssuer("secret", 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultTokenTTL, issuer.ttl)
}
