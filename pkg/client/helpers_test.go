package client

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"go-invoice/pkg/tokenstore"
)

var testSecret = []byte("client-test-secret")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func signAccess(t *testing.T, secret []byte, sub string, iat time.Time, exp time.Time) string {
	t.Helper()

	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   sub,
		"email": sub + "@example.com",
		"typ":   "access",
		"iat":   iat.Unix(),
		"exp":   exp.Unix(),
	}).SignedString(secret)
	require.NoError(t, err)
	return tok
}

func freshToken(t *testing.T) string {
	t.Helper()
	now := time.Now()
	return signAccess(t, testSecret, "u-1", now, now.Add(time.Hour))
}

func expiredToken(t *testing.T) string {
	t.Helper()
	now := time.Now()
	return signAccess(t, testSecret, "u-1", now.Add(-901*time.Second), now.Add(-time.Second))
}

// fakeAPI is a minimal stand-in for the invoice server's auth and product
// endpoints.
type fakeAPI struct {
	t      *testing.T
	server *httptest.Server

	refreshCalls atomic.Int32
	productCalls atomic.Int32

	mu            sync.Mutex
	validRefresh  map[string]bool
	seenTokens    []string
	rejectRefresh bool
	refreshGate   chan struct{}
	productDelay  time.Duration
	productStatus int
	refreshSeq    int
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()

	f := &fakeAPI{t: t, validRefresh: map[string]bool{}}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", f.login)
	mux.HandleFunc("POST /api/auth/refresh", f.refresh)
	mux.HandleFunc("POST /api/auth/logout", f.logout)
	mux.HandleFunc("GET /api/products", f.products)

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeAPI) baseURL() string {
	return f.server.URL + "/api"
}

func (f *fakeAPI) addRefresh(token string) {
	f.mu.Lock()
	f.validRefresh[token] = true
	f.mu.Unlock()
}

func (f *fakeAPI) tokensSeen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.seenTokens...)
}

func (f *fakeAPI) login(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	if body.Password != "secret" {
		writeEnvelopeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid credentials")
		return
	}

	refresh := "r-login"
	f.addRefresh(refresh)
	writeEnvelope(w, http.StatusOK, map[string]any{
		"user":         map[string]string{"id": "u-1", "name": "Test", "email": body.Email},
		"token":        freshToken(f.t),
		"refreshToken": refresh,
	})
}

func (f *fakeAPI) refresh(w http.ResponseWriter, r *http.Request) {
	f.refreshCalls.Add(1)

	f.mu.Lock()
	gate := f.refreshGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.rejectRefresh || !f.validRefresh[body.RefreshToken] {
		writeEnvelopeError(w, http.StatusUnauthorized, "INVALID_CREDENTIAL", "refresh token is invalid")
		return
	}
	delete(f.validRefresh, body.RefreshToken)
	f.refreshSeq++
	next := fmt.Sprintf("r-%d", f.refreshSeq)
	f.validRefresh[next] = true

	now := time.Now()
	writeEnvelope(w, http.StatusOK, map[string]any{
		"token":        signAccess(f.t, testSecret, "u-1", now, now.Add(time.Hour)),
		"refreshToken": next,
	})
}

func (f *fakeAPI) logout(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	f.mu.Lock()
	delete(f.validRefresh, body.RefreshToken)
	f.mu.Unlock()
	writeEnvelope(w, http.StatusOK, map[string]bool{"loggedOut": true})
}

func (f *fakeAPI) products(w http.ResponseWriter, r *http.Request) {
	f.productCalls.Add(1)

	header := r.Header.Get("Authorization")
	raw := strings.TrimPrefix(header, "Bearer ")

	f.mu.Lock()
	f.seenTokens = append(f.seenTokens, raw)
	delay := f.productDelay
	status := f.productStatus
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	if !strings.HasPrefix(header, "Bearer ") {
		writeEnvelopeError(w, http.StatusUnauthorized, "MISSING_CREDENTIAL", "access token required")
		return
	}
	_, err := jwt.Parse(raw, func(*jwt.Token) (any, error) { return testSecret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		writeEnvelopeError(w, http.StatusUnauthorized, "INVALID_CREDENTIAL", "invalid or expired token")
		return
	}

	switch status {
	case 0, http.StatusOK:
	case http.StatusBadRequest:
		writeEnvelopeError(w, status, "BAD_REQUEST", "Name must be between 3 and 50 characters")
		return
	default:
		writeEnvelopeError(w, status, "INTERNAL_ERROR", "Unexpected server error")
		return
	}

	writeEnvelope(w, http.StatusOK, map[string]any{
		"products": []map[string]any{{"id": "p-1", "name": "Widget", "qty": 2, "rate": 25.5}},
	})
}

func writeEnvelope(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "data": data})
}

func writeEnvelopeError(w http.ResponseWriter, status int, code string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   map[string]string{"code": code, "message": message},
	})
}

func newTestClient(t *testing.T, api *fakeAPI, store tokenstore.Store) *Client {
	t.Helper()

	c, err := New(Config{
		BaseURL: api.baseURL(),
		Store:   store,
		Timeout: 2 * time.Second,
		Logger:  discardLogger(),
	})
	require.NoError(t, err)
	return c
}
