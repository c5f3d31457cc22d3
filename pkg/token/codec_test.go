package token

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func signed(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()

	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("client-does-not-know"))
	require.NoError(t, err)
	return tok
}

func TestDecode(t *testing.T) {
	t.Parallel()

	now := time.Now().Unix()

	t.Run("reads subject, email and timestamps", func(t *testing.T) {
		tok := signed(t, jwt.MapClaims{"sub": "u-1", "email": "a@b.co", "iat": now, "exp": now + 900})

		claims, ok := Decode(tok)
		require.True(t, ok)
		require.Equal(t, "u-1", claims.SubjectID)
		require.Equal(t, "a@b.co", claims.Email)
		require.Equal(t, now, claims.IssuedAt)
		require.Equal(t, now+900, claims.ExpiresAt)
	})

	t.Run("falls back to userId claim", func(t *testing.T) {
		tok := signed(t, jwt.MapClaims{"userId": "legacy", "exp": now + 60})

		claims, ok := Decode(tok)
		require.True(t, ok)
		require.Equal(t, "legacy", claims.SubjectID)
	})

	t.Run("ignores signature", func(t *testing.T) {
		tok := signed(t, jwt.MapClaims{"sub": "u-1", "exp": now + 60})
		tampered := tok[:len(tok)-4] + "AAAA"

		_, ok := Decode(tampered)
		require.True(t, ok)
	})

	t.Run("rejects missing exp", func(t *testing.T) {
		_, ok := Decode(signed(t, jwt.MapClaims{"sub": "u-1"}))
		require.False(t, ok)
	})

	t.Run("rejects exp not after iat", func(t *testing.T) {
		_, ok := Decode(signed(t, jwt.MapClaims{"sub": "u-1", "iat": now, "exp": now}))
		require.False(t, ok)
	})
}

func TestDecodeMalformedNeverPanics(t *testing.T) {
	t.Parallel()

	garbage := base64.RawURLEncoding.EncodeToString([]byte("{not json"))
	inputs := []string{
		"",
		".",
		"..",
		"a.b",
		"a.b.c.d",
		"header.payload.",
		"!!!.???.###",
		"eyJhbGciOiJIUzI1NiJ9." + garbage + ".sig",
	}

	for _, input := range inputs {
		require.NotPanics(t, func() {
			claims, ok := Decode(input)
			require.False(t, ok, input)
			require.Nil(t, claims, input)
		})
	}
}

func TestFewerThanThreeSegments(t *testing.T) {
	t.Parallel()

	for _, input := range []string{"", "abc", "a.b", "eyJhbGciOiJIUzI1NiJ9.eyJleHAiOjF9"} {
		require.False(t, IsWellFormed(input), input)
		_, ok := Decode(input)
		require.False(t, ok, input)
	}
}

func TestIsWellFormed(t *testing.T) {
	t.Parallel()

	require.True(t, IsWellFormed("a.b.c"))
	require.False(t, IsWellFormed("a..c"))
	require.False(t, IsWellFormed("a.b.c.d"))
}
