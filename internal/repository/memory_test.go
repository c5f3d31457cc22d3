package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-invoice/internal/model"
)

func TestMemoryUsersRejectDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	users := NewMemory().Users()

	require.NoError(t, users.Create(ctx, model.User{ID: "1", Email: "ada@example.com"}))
	err := users.Create(ctx, model.User{ID: "2", Email: "ADA@example.com"})
	require.ErrorIs(t, err, model.ErrUserAlreadyExists)

	u, err := users.FindByEmail(ctx, " Ada@Example.com ")
	require.NoError(t, err)
	assert.Equal(t, "1", u.ID)

	_, err = users.FindByID(ctx, "missing")
	require.ErrorIs(t, err, model.ErrUserNotFound)
}

func TestMemoryTokensConsumeOnce(t *testing.T) {
	ctx := context.Background()
	tokens := NewMemory().Tokens()

	require.NoError(t, tokens.Store(ctx, "jti-1", "u-1", time.Now().Add(time.Hour)))

	userID, err := tokens.Consume(ctx, "jti-1")
	require.NoError(t, err)
	assert.Equal(t, "u-1", userID)

	_, err = tokens.Consume(ctx, "jti-1")
	require.ErrorIs(t, err, model.ErrTokenNotFound)
}

func TestMemoryTokensExpiryAndRevocation(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	tokens := mem.Tokens()

	require.NoError(t, tokens.Store(ctx, "old", "u-1", time.Now().Add(-time.Second)))
	require.NoError(t, tokens.Store(ctx, "a", "u-1", time.Now().Add(time.Hour)))
	require.NoError(t, tokens.Store(ctx, "b", "u-2", time.Now().Add(time.Hour)))

	_, err := tokens.Consume(ctx, "old")
	require.ErrorIs(t, err, model.ErrTokenNotFound)

	require.NoError(t, tokens.RevokeAllForUser(ctx, "u-1"))
	_, err = tokens.Consume(ctx, "a")
	require.ErrorIs(t, err, model.ErrTokenNotFound)

	removed, err := tokens.CleanExpired(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, removed)

	_, err = tokens.Consume(ctx, "b")
	require.NoError(t, err)
}

func TestMemoryProductsScopedToOwner(t *testing.T) {
	ctx := context.Background()
	products := NewMemory().Products()

	now := time.Now()
	require.NoError(t, products.Create(ctx, model.Product{ID: "p1", UserID: "u-1", CreatedAt: now.Add(-time.Minute)}))
	require.NoError(t, products.Create(ctx, model.Product{ID: "p2", UserID: "u-1", CreatedAt: now}))
	require.NoError(t, products.Create(ctx, model.Product{ID: "p3", UserID: "u-2", CreatedAt: now}))

	list, err := products.ListByUser(ctx, "u-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "p2", list[0].ID)

	require.ErrorIs(t, products.Delete(ctx, "u-1", "p3"), model.ErrProductNotFound)
	require.NoError(t, products.Delete(ctx, "u-2", "p3"))
}

func TestMemoryInvoicesNewestFirst(t *testing.T) {
	ctx := context.Background()
	invoices := NewMemory().Invoices()

	require.NoError(t, invoices.Create(ctx, model.Invoice{ID: "i1", UserID: "u-1"}))
	require.NoError(t, invoices.Create(ctx, model.Invoice{ID: "i2", UserID: "u-1"}))
	require.NoError(t, invoices.Create(ctx, model.Invoice{ID: "i3", UserID: "u-2"}))

	list, err := invoices.ListByUser(ctx, "u-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "i2", list[0].ID)
}
