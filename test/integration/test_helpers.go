//go:build integration

package integration

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"go-invoice/internal/database"
	"go-invoice/pkg/client"
	"go-invoice/pkg/tokenstore"
)

// newDB connects to INTEGRATION_DATABASE_URL and skips the test when unset.
func newDB(t *testing.T) *database.DB {
	t.Helper()

	url := os.Getenv("INTEGRATION_DATABASE_URL")
	if url == "" {
		t.Skip("INTEGRATION_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	db, err := database.New(ctx, url, 4, 1)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	require.NoError(t, db.EnsureSchema(ctx))
	return db
}

func newClient(t *testing.T, baseURL string, store tokenstore.Store) *client.Client {
	t.Helper()

	if store == nil {
		store = tokenstore.NewMemoryStore()
	}
	c, err := client.New(client.Config{
		BaseURL: baseURL,
		Store:   store,
		Timeout: 5 * time.Second,
	})
	require.NoError(t, err)
	return c
}

func httptestServer(t *testing.T, h http.Handler) string {
	t.Helper()

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv.URL
}
