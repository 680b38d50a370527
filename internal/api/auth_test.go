package api

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBearerSubject(t *testing.T) {
	sign := func(claims jwt.MapClaims) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("k"))
		require.NoError(t, err)
		return s
	}

	t.Run("Valid bearer yields subject", func(t *testing.T) {
		sub, ok := bearerSubject("Bearer " + sign(jwt.MapClaims{"sub": "user-1"}))
		require.True(t, ok)
		assert.Equal(t, "user-1", sub)
	})

	t.Run("Missing prefix", func(t *testing.T) {
		_, ok := bearerSubject(sign(jwt.MapClaims{"sub": "user-1"}))
		assert.False(t, ok)
	})

	t.Run("Empty header", func(t *testing.T) {
		_, ok := bearerSubject("")
		assert.False(t, ok)
	})

	t.Run("Undecodable token", func(t *testing.T) {
		_, ok := bearerSubject("Bearer not.a.jwt")
		assert.False(t, ok)
	})

	t.Run("Token without subject", func(t *testing.T) {
		_, ok := bearerSubject("Bearer " + sign(jwt.MapClaims{"aud": "x"}))
		assert.False(t, ok)
	})
}
