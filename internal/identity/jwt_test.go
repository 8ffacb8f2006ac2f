package identity

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTVerifierRoundTrip(t *testing.T) {
	token, err := Mint("s3cret", Account{ID: "buyer-1", Email: "b@example.com"}, time.Hour)
	require.NoError(t, err)

	acc, err := NewJWTVerifier("s3cret").Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, Account{ID: "buyer-1", Email: "b@example.com"}, acc)
}

func TestJWTVerifierRejects(t *testing.T) {
	v := NewJWTVerifier("s3cret")

	wrongKey, err := Mint("other", Account{ID: "x"}, time.Hour)
	require.NoError(t, err)
	_, err = v.Verify(context.Background(), wrongKey)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired, err := Mint("s3cret", Account{ID: "x"}, -time.Minute)
	require.NoError(t, err)
	_, err = v.Verify(context.Background(), expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	noExp := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "x"})
	signed, err := noExp.SignedString([]byte("s3cret"))
	require.NoError(t, err)
	_, err = v.Verify(context.Background(), signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTVerifierLegacyUserIDClaim(t *testing.T) {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": "legacy-7",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	signed, err := tok.SignedString([]byte("s3cret"))
	require.NoError(t, err)

	acc, err := NewJWTVerifier("s3cret").Verify(context.Background(), signed)
	require.NoError(t, err)
	assert.Equal(t, "legacy-7", acc.ID)
	assert.Empty(t, acc.Email)
}
