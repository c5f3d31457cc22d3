package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"go-invoice/internal/metrics"
	"go-invoice/internal/model"
	"go-invoice/internal/repository"
	"go-invoice/pkg/apierror"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"

	bcryptCost = 12
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// TokenValidator verifies bearer tokens. The auth middleware depends on
// this rather than on AuthService.
type TokenValidator interface {
	ValidateToken(tokenString string, expectedType string) (*model.AuthClaims, error)
}

type AuthService struct {
	users      repository.UserStore
	tokens     repository.RefreshTokenStore
	jwtSecret  []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
	metrics    *metrics.Metrics
}

func NewAuthService(users repository.UserStore, tokens repository.RefreshTokenStore, jwtSecret string, accessTTL time.Duration, refreshTTL time.Duration) *AuthService {
	return &AuthService{
		users:      users,
		tokens:     tokens,
		jwtSecret:  []byte(jwtSecret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// WithMetrics records auth outcomes on m.
func (s *AuthService) WithMetrics(m *metrics.Metrics) *AuthService {
	s.metrics = m
	return s
}

func (s *AuthService) Register(ctx context.Context, req model.RegisterRequest) (_ model.AuthResponse, err error) {
	defer func() { s.metrics.AuthEvent("register", err) }()

	name := strings.TrimSpace(req.Name)
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if name == "" || email == "" || req.Password == "" {
		return model.AuthResponse{}, apierror.BadRequest("Name, email, and password are required", "")
	}
	if !emailPattern.MatchString(email) {
		return model.AuthResponse{}, apierror.BadRequest("Invalid email format", email)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		return model.AuthResponse{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	user := model.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, model.ErrUserAlreadyExists) {
			return model.AuthResponse{}, apierror.Conflict("User already exists with this email", email)
		}
		return model.AuthResponse{}, err
	}

	slog.Info("user registered", "user_id", user.ID)
	return s.issueTokenPair(ctx, user)
}

func (s *AuthService) Login(ctx context.Context, req model.LoginRequest) (_ model.AuthResponse, err error) {
	defer func() { s.metrics.AuthEvent("login", err) }()

	email := strings.TrimSpace(req.Email)
	if email == "" || req.Password == "" {
		return model.AuthResponse{}, apierror.BadRequest("Email and password are required", "")
	}
	if !emailPattern.MatchString(email) {
		return model.AuthResponse{}, apierror.BadRequest("Invalid email format", email)
	}

	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, model.ErrUserNotFound) {
		return model.AuthResponse{}, invalidCredentials()
	}
	if err != nil {
		return model.AuthResponse{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return model.AuthResponse{}, invalidCredentials()
	}

	return s.issueTokenPair(ctx, user)
}

// Refresh redeems a refresh token for a new pair. The presented token is
// consumed, so a second redemption fails.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (_ model.RefreshResponse, err error) {
	defer func() { s.metrics.AuthEvent("refresh", err) }()

	if strings.TrimSpace(refreshToken) == "" {
		return model.RefreshResponse{}, apierror.BadRequest("refreshToken is required", "")
	}

	claims, err := s.ValidateToken(refreshToken, TokenTypeRefresh)
	if err != nil {
		return model.RefreshResponse{}, err
	}

	ownerID, err := s.tokens.Consume(ctx, claims.TokenID)
	if errors.Is(err, model.ErrTokenNotFound) {
		slog.Warn("refresh token replayed or revoked", "user_id", claims.UserID)
		return model.RefreshResponse{}, apierror.InvalidCredential("refresh token is invalid")
	}
	if err != nil {
		return model.RefreshResponse{}, err
	}
	if ownerID != claims.UserID {
		return model.RefreshResponse{}, apierror.InvalidCredential("refresh token is invalid")
	}

	user, err := s.users.FindByID(ctx, claims.UserID)
	if errors.Is(err, model.ErrUserNotFound) {
		return model.RefreshResponse{}, apierror.InvalidCredential("user no longer exists")
	}
	if err != nil {
		return model.RefreshResponse{}, err
	}

	pair, err := s.issueTokenPair(ctx, user)
	if err != nil {
		return model.RefreshResponse{}, err
	}

	return model.RefreshResponse{
		Token:        pair.Token,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn,
	}, nil
}

// Logout revokes refreshToken. Unknown or malformed tokens are ignored.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if strings.TrimSpace(refreshToken) == "" {
		return nil
	}

	claims, err := s.ValidateToken(refreshToken, TokenTypeRefresh)
	if err != nil {
		return nil
	}

	return s.tokens.Revoke(ctx, claims.TokenID)
}

func (s *AuthService) ValidateToken(tokenString string, expectedType string) (*model.AuthClaims, error) {
	if len(s.jwtSecret) == 0 {
		return nil, apierror.ConfigError("authentication is not configured")
	}

	parsed, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		return s.jwtSecret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return nil, apierror.InvalidCredential("invalid or expired token")
	}

	claimsMap, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, apierror.InvalidCredential("invalid token claims")
	}

	typ, _ := claimsMap["typ"].(string)
	if expectedType != "" && typ != expectedType {
		return nil, apierror.InvalidCredential("invalid token type")
	}

	claims := &model.AuthClaims{Type: typ}
	claims.UserID, _ = claimsMap["sub"].(string)
	claims.Email, _ = claimsMap["email"].(string)
	claims.TokenID, _ = claimsMap["jti"].(string)
	if iat, err := claimsMap.GetIssuedAt(); err == nil && iat != nil {
		claims.IssuedAt = iat.Unix()
	}
	if exp, err := claimsMap.GetExpirationTime(); err == nil && exp != nil {
		claims.ExpiresAt = exp.Unix()
	}

	if claims.UserID == "" {
		return nil, apierror.InvalidCredential("invalid token subject")
	}
	if typ == TokenTypeRefresh && claims.TokenID == "" {
		return nil, apierror.InvalidCredential("invalid token id")
	}

	return claims, nil
}

func (s *AuthService) GetUser(ctx context.Context, userID string) (model.AuthUser, error) {
	user, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, model.ErrUserNotFound) {
		return model.AuthUser{}, apierror.NotFound("user not found", userID)
	}
	if err != nil {
		return model.AuthUser{}, err
	}
	return user.Public(), nil
}

// PurgeExpiredTokens drops expired and long-revoked refresh token records.
func (s *AuthService) PurgeExpiredTokens(ctx context.Context) (int64, error) {
	return s.tokens.CleanExpired(ctx)
}

func (s *AuthService) issueTokenPair(ctx context.Context, user model.User) (model.AuthResponse, error) {
	now := s.now().UTC()
	refreshJTI := uuid.NewString()
	refreshExp := now.Add(s.refreshTTL)

	accessToken, err := s.signToken(jwt.MapClaims{
		"sub":   user.ID,
		"email": user.Email,
		"typ":   TokenTypeAccess,
		"jti":   uuid.NewString(),
		"iat":   now.Unix(),
		"exp":   now.Add(s.accessTTL).Unix(),
	})
	if err != nil {
		return model.AuthResponse{}, err
	}

	refreshToken, err := s.signToken(jwt.MapClaims{
		"sub": user.ID,
		"typ": TokenTypeRefresh,
		"jti": refreshJTI,
		"iat": now.Unix(),
		"exp": refreshExp.Unix(),
	})
	if err != nil {
		return model.AuthResponse{}, err
	}

	if err := s.tokens.Store(ctx, refreshJTI, user.ID, refreshExp); err != nil {
		return model.AuthResponse{}, err
	}

	return model.AuthResponse{
		User:         user.Public(),
		Token:        accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.accessTTL.Seconds()),
	}, nil
}

func (s *AuthService) signToken(claims jwt.MapClaims) (string, error) {
	if len(s.jwtSecret) == 0 {
		return "", apierror.ConfigError("authentication is not configured")
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

func invalidCredentials() *apierror.APIError {
	return apierror.New("UNAUTHORIZED", "Invalid credentials", "", http.StatusUnauthorized)
}
