package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"go-invoice/internal/config"
	"go-invoice/internal/metrics"
	"go-invoice/internal/model"
	"go-invoice/pkg/apierror"
)

type tokenValidator interface {
	ValidateToken(tokenString string, expectedType string) (*model.AuthClaims, error)
}

// userLookup resolves the subject of a token in lookup mode.
type userLookup interface {
	FindByID(ctx context.Context, id string) (model.User, error)
}

type contextKey string

const (
	authClaimsContextKey contextKey = "auth_claims"
	identityContextKey   contextKey = "identity"
)

type AuthMiddleware struct {
	validator tokenValidator
	users     userLookup
	mode      string
	metrics   *metrics.Metrics
}

// NewAuthMiddleware builds the bearer-token verifier. In lookup mode users
// must be non-nil; every request then loads the subject and rejects tokens
// whose user no longer exists.
func NewAuthMiddleware(validator tokenValidator, users userLookup, mode string) *AuthMiddleware {
	if mode == "" {
		mode = config.IdentityModeClaims
	}
	return &AuthMiddleware{validator: validator, users: users, mode: mode}
}

// WithMetrics counts rejected requests on m by error code.
func (m *AuthMiddleware) WithMetrics(mt *metrics.Metrics) *AuthMiddleware {
	m.metrics = mt
	return m
}

func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := strings.TrimSpace(r.Header.Get("Authorization"))
		if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
			m.reject(w, apierror.MissingCredential("access token required"))
			return
		}

		token := strings.TrimSpace(header[7:])
		if token == "" {
			m.reject(w, apierror.MissingCredential("access token required"))
			return
		}

		if m.validator == nil {
			m.reject(w, apierror.ConfigError("authentication is not configured"))
			return
		}

		claims, err := m.validator.ValidateToken(token, "access")
		if err != nil {
			var apiErr *apierror.APIError
			if errors.As(err, &apiErr) && apiErr.Code == "CONFIG_ERROR" {
				slog.Error("token verification misconfigured", "error", err)
				m.reject(w, apiErr)
				return
			}
			m.reject(w, apierror.InvalidCredential("invalid or expired token"))
			return
		}

		identity, apiErr := m.resolve(r.Context(), claims)
		if apiErr != nil {
			m.reject(w, apiErr)
			return
		}

		ctx := context.WithValue(r.Context(), authClaimsContextKey, claims)
		ctx = context.WithValue(ctx, identityContextKey, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AuthMiddleware) reject(w http.ResponseWriter, apiErr *apierror.APIError) {
	m.metrics.AuthRejected(apiErr.Code)
	writeAPIError(w, apiErr)
}

func (m *AuthMiddleware) resolve(ctx context.Context, claims *model.AuthClaims) (model.Identity, *apierror.APIError) {
	identity := model.Identity{UserID: claims.UserID, Email: claims.Email}
	if m.mode != config.IdentityModeLookup {
		return identity, nil
	}

	if m.users == nil {
		return model.Identity{}, apierror.ConfigError("identity lookup is not configured")
	}

	user, err := m.users.FindByID(ctx, claims.UserID)
	if errors.Is(err, model.ErrUserNotFound) {
		return model.Identity{}, apierror.InvalidCredential("user no longer exists")
	}
	if err != nil {
		slog.Error("identity lookup failed", "user_id", claims.UserID, "error", err)
		return model.Identity{}, apierror.New("INTERNAL_ERROR", "Unexpected server error", "", http.StatusInternalServerError)
	}

	return model.Identity{UserID: user.ID, Email: user.Email, Name: user.Name}, nil
}

func ClaimsFromContext(ctx context.Context) (*model.AuthClaims, bool) {
	claims, ok := ctx.Value(authClaimsContextKey).(*model.AuthClaims)
	return claims, ok
}

// IdentityFromContext returns the caller attached by RequireAuth.
func IdentityFromContext(ctx context.Context) (model.Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(model.Identity)
	return identity, ok
}

// WithIdentity attaches identity to ctx the way RequireAuth does.
func WithIdentity(ctx context.Context, identity model.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}
