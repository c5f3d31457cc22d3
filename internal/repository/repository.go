package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"go-invoice/internal/model"
)

// Services depend on these interfaces so stub mode can swap Postgres for the
// in-memory implementations in memory.go.

type UserStore interface {
	FindByID(ctx context.Context, id string) (model.User, error)
	FindByEmail(ctx context.Context, email string) (model.User, error)
	Create(ctx context.Context, u model.User) error
}

type RefreshTokenStore interface {
	Store(ctx context.Context, tokenID string, userID string, expiresAt time.Time) error
	// Consume revokes tokenID and returns its owner. A token can be consumed
	// once; later calls return model.ErrTokenNotFound.
	Consume(ctx context.Context, tokenID string) (string, error)
	Revoke(ctx context.Context, tokenID string) error
	RevokeAllForUser(ctx context.Context, userID string) error
	CleanExpired(ctx context.Context) (int64, error)
}

type ProductStore interface {
	ListByUser(ctx context.Context, userID string) ([]model.Product, error)
	Create(ctx context.Context, p model.Product) error
	Delete(ctx context.Context, userID string, id string) error
}

type InvoiceStore interface {
	Create(ctx context.Context, inv model.Invoice) error
	ListByUser(ctx context.Context, userID string) ([]model.Invoice, error)
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
