package token

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the fields a client needs from an access token.
type Claims struct {
	SubjectID string
	Email     string
	IssuedAt  int64
	ExpiresAt int64
}

type payload struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	// userId is what older servers put in place of sub.
	UserID string `json:"userId"`
}

var parser = jwt.NewParser()

// Decode reads the payload segment of token without verifying it.
// Malformed input of any kind yields (nil, false).
func Decode(token string) (*Claims, bool) {
	if !IsWellFormed(token) {
		return nil, false
	}

	var p payload
	if _, _, err := parser.ParseUnverified(token, &p); err != nil {
		return nil, false
	}
	if p.ExpiresAt == nil {
		return nil, false
	}

	claims := &Claims{
		SubjectID: p.Subject,
		Email:     p.Email,
		ExpiresAt: p.ExpiresAt.Unix(),
	}
	if claims.SubjectID == "" {
		claims.SubjectID = p.UserID
	}
	if p.IssuedAt != nil {
		claims.IssuedAt = p.IssuedAt.Unix()
		if claims.ExpiresAt <= claims.IssuedAt {
			return nil, false
		}
	}

	return claims, true
}

// IsWellFormed reports whether token has exactly three non-empty
// dot-separated segments.
func IsWellFormed(token string) bool {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return false
	}
	for _, part := range parts {
		if part == "" {
			return false
		}
	}
	return true
}
