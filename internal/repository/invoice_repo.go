package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"go-invoice/internal/model"
)

type InvoiceRepository struct {
	pool *pgxpool.Pool
}

func NewInvoiceRepository(pool *pgxpool.Pool) *InvoiceRepository {
	return &InvoiceRepository{pool: pool}
}

func (r *InvoiceRepository) Create(ctx context.Context, inv model.Invoice) error {
	lines, err := json.Marshal(inv.Lines)
	if err != nil {
		return fmt.Errorf("marshal invoice lines: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO invoices (id, number, user_id, lines, subtotal, tax, total, issued_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		inv.ID, inv.Number, inv.UserID, lines, inv.Subtotal, inv.Tax, inv.Total, inv.IssuedAt, inv.CreatedAt)
	if err != nil {
		return fmt.Errorf("create invoice: %w", err)
	}
	return nil
}

func (r *InvoiceRepository) ListByUser(ctx context.Context, userID string) ([]model.Invoice, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id::text, number, user_id::text, lines, subtotal::float8, tax::float8, total::float8, issued_at, created_at
		 FROM invoices WHERE user_id = $1
		 ORDER BY issued_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	defer rows.Close()

	invoices := make([]model.Invoice, 0)
	for rows.Next() {
		var (
			inv   model.Invoice
			lines []byte
		)
		if err := rows.Scan(&inv.ID, &inv.Number, &inv.UserID, &lines, &inv.Subtotal, &inv.Tax, &inv.Total, &inv.IssuedAt, &inv.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		if len(lines) > 0 {
			if err := json.Unmarshal(lines, &inv.Lines); err != nil {
				return nil, fmt.Errorf("unmarshal invoice lines: %w", err)
			}
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}
