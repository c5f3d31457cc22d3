package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-invoice/internal/apitest"
	"go-invoice/pkg/client"
)

type harness struct {
	srv       *apitest.Server
	tokenFile string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return &harness{
		srv:       apitest.New(t),
		tokenFile: filepath.Join(t.TempDir(), "session.json"),
	}
}

func (h *harness) run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := NewRootCommand(&out)
	cmd.SetArgs(append([]string{"--api-url", h.srv.API(), "--token-file", h.tokenFile}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRegisterPersistsSessionAcrossInvocations(t *testing.T) {
	h := newHarness(t)

	out, err := h.run(t, "register", "--name", "Ada", "--email", "ada@example.com", "--password", "s3cret-pass")
	require.NoError(t, err)
	assert.Contains(t, out, "Registered and logged in as Ada <ada@example.com>")

	out, err = h.run(t, "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "Ada <ada@example.com>")

	_, err = h.run(t, "logout")
	require.NoError(t, err)

	_, err = h.run(t, "whoami")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not logged in")
}

func TestLoginRejectsBadPassword(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(t, "register", "--name", "Ada", "--email", "ada@example.com", "--password", "s3cret-pass")
	require.NoError(t, err)

	_, err = h.run(t, "login", "--email", "ada@example.com", "--password", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid email or password")

	_, err = h.run(t, "whoami")
	require.Error(t, err)
}

func TestLoginReadsPasswordFromEnvironment(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(t, "register", "--name", "Ada", "--email", "ada@example.com", "--password", "s3cret-pass")
	require.NoError(t, err)

	t.Setenv("INVOICE_PASSWORD", "s3cret-pass")
	out, err := h.run(t, "login", "--email", "ada@example.com")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as Ada")
}

func TestProductsAndInvoiceFlow(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(t, "register", "--name", "Ada", "--email", "ada@example.com", "--password", "s3cret-pass")
	require.NoError(t, err)

	out, err := h.run(t, "products", "add", "--name", "Consulting hour", "--qty", "3", "--rate", "120")
	require.NoError(t, err)
	assert.Contains(t, out, "Added Consulting hour")

	out, err = h.run(t, "products", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Consulting hour")
	assert.Contains(t, out, "360.00")

	pdfPath := filepath.Join(t.TempDir(), "out.pdf")
	out, err = h.run(t, "invoice", "generate", "--saved", "--item", "Travel:1:50", "-o", pdfPath)
	require.NoError(t, err)
	assert.Contains(t, out, "2 lines")

	data, err := os.ReadFile(pdfPath)
	require.NoError(t, err)
	assert.Equal(t, apitest.PDF, data)

	_, err = h.run(t, "invoice", "generate", "--item", "Travel:1:50", "-o", pdfPath)
	require.Error(t, err, "existing output needs --force")

	out, err = h.run(t, "invoice", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "INV-")
	assert.Contains(t, out, "483.80")
}

func TestInvoiceGenerateNeedsLines(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(t, "register", "--name", "Ada", "--email", "ada@example.com", "--password", "s3cret-pass")
	require.NoError(t, err)

	_, err = h.run(t, "invoice", "generate", "-o", filepath.Join(t.TempDir(), "x.pdf"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing to invoice")
}

func TestRedisBackedSession(t *testing.T) {
	srv := apitest.New(t)
	mr := miniredis.RunT(t)

	run := func(args ...string) (string, error) {
		var out bytes.Buffer
		cmd := NewRootCommand(&out)
		cmd.SetArgs(append([]string{"--api-url", srv.API(), "--redis-url", "redis://" + mr.Addr()}, args...))
		err := cmd.ExecuteContext(context.Background())
		return out.String(), err
	}

	_, err := run("register", "--name", "Ada", "--email", "ada@example.com", "--password", "s3cret-pass")
	require.NoError(t, err)
	assert.True(t, mr.Exists(redisKeyPrefix+":token"))

	out, err := run("whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "ada@example.com")
}

func TestParseItems(t *testing.T) {
	items, err := parseItems([]string{"Widget:2:10.5", "Rack: unit 4:1:99"})
	require.NoError(t, err)
	assert.Equal(t, []client.InvoiceItem{
		{Name: "Widget", Quantity: 2, Rate: 10.5},
		{Name: "Rack: unit 4", Quantity: 1, Rate: 99},
	}, items)

	for _, bad := range []string{"Widget", "Widget:2", "Widget:0:1", "Widget:2:-1", ":2:1x"} {
		_, err := parseItems([]string{bad})
		assert.Error(t, err, bad)
	}
}
