package jwtx_test

import (
	"testing"
	"time"

	"github.com/aussiebroadwan/calendar/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestExpiresAt(t *testing.T) {
	t.Parallel()

	exp := time.Now().Add(10 * time.Minute).Truncate(time.Second)

	t.Run("signed token", func(t *testing.T) {
		token, err := newSigner(t).Sign(jwtx.NewAccessClaims("u-1", "a@example.com", "USER", "", 10*time.Minute, exp.Add(-10*time.Minute)))
		require.NoError(t, err)

		got, err := jwtx.ExpiresAt(token)
		require.NoError(t, err)
		require.True(t, exp.Equal(got))
	})

	t.Run("signature is not checked", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(exp),
		}).SignedString([]byte("whatever"))
		require.NoError(t, err)

		got, err := jwtx.ExpiresAt(token)
		require.NoError(t, err)
		require.True(t, exp.Equal(got))
	})

	t.Run("expired token still decodes", func(t *testing.T) {
		past := time.Now().Add(-time.Hour).Truncate(time.Second)
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(past),
		}).SignedString([]byte("whatever"))
		require.NoError(t, err)

		got, err := jwtx.ExpiresAt(token)
		require.NoError(t, err)
		require.True(t, past.Equal(got))
	})

	t.Run("missing exp", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			Subject: "a@example.com",
		}).SignedString([]byte("whatever"))
		require.NoError(t, err)

		_, err = jwtx.ExpiresAt(token)
		require.ErrorIs(t, err, jwtx.ErrMissingExpiry)
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := jwtx.ExpiresAt("not-a-jwt")
		require.ErrorIs(t, err, jwtx.ErrMalformed)
	})
}
