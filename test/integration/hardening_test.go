//go:build integration

package integration

import (
	"bytes"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"go-invoice/internal/apitest"
	"go-invoice/internal/app"
)

func TestSecurityHeadersOnResponses(t *testing.T) {
	t.Parallel()

	srv := apitest.New(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	require.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
	require.Equal(t, "no-referrer", resp.Header.Get("Referrer-Policy"))
}

func TestGeneralRateLimitReturns429(t *testing.T) {
	t.Parallel()

	srv := apitest.New(t, apitest.WithRateLimits(3, 10))

	var last int
	for range 5 {
		resp, err := http.Get(srv.URL + "/health")
		require.NoError(t, err)
		_ = resp.Body.Close()
		last = resp.StatusCode
	}
	require.Equal(t, http.StatusTooManyRequests, last)
}

func TestOversizedBodyIsRejected(t *testing.T) {
	t.Parallel()

	srv := apitest.New(t)
	body := `{"name":"` + strings.Repeat("a", 2<<20) + `"}`

	resp, err := http.Post(srv.API()+"/auth/register", "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStubModeApplicationServes(t *testing.T) {
	t.Parallel()

	cfg := apitest.Config()
	application, err := app.NewWithConfig(cfg)
	require.NoError(t, err)
	t.Cleanup(application.Close)

	srv := httptestServer(t, application.Handler())
	resp, err := http.Get(srv + "/health")
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
