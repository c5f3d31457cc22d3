package model

import "time"

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// AuthClaims is the verified content of an access or refresh token.
type AuthClaims struct {
	UserID    string `json:"sub"`
	Email     string `json:"email"`
	Type      string `json:"typ"`
	TokenID   string `json:"jti"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

type AuthUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Identity is attached to a request context once its bearer token verifies.
type Identity struct {
	UserID string
	Email  string
	Name   string
}

type AuthResponse struct {
	User         AuthUser `json:"user"`
	Token        string   `json:"token"`
	RefreshToken string   `json:"refreshToken,omitempty"`
	ExpiresIn    int64    `json:"expiresIn"`
}

type RefreshResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken,omitempty"`
	ExpiresIn    int64  `json:"expiresIn"`
}

func (u User) Public() AuthUser {
	return AuthUser{ID: u.ID, Name: u.Name, Email: u.Email}
}
