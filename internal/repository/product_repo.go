package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"go-invoice/internal/model"
)

type ProductRepository struct {
	pool *pgxpool.Pool
}

func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

func (r *ProductRepository) ListByUser(ctx context.Context, userID string) ([]model.Product, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id::text, name, qty, rate::float8, user_id::text, created_at
		 FROM products WHERE user_id = $1
		 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := make([]model.Product, 0)
	for rows.Next() {
		var p model.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Qty, &p.Rate, &p.UserID, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (r *ProductRepository) Create(ctx context.Context, p model.Product) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO products (id, user_id, name, qty, rate, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		p.ID, p.UserID, p.Name, p.Qty, p.Rate, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("create product: %w", err)
	}
	return nil
}

// Delete removes a product owned by userID. Another user's product is
// reported as not found.
func (r *ProductRepository) Delete(ctx context.Context, userID string, id string) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM products WHERE id::text = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrProductNotFound
	}
	return nil
}
