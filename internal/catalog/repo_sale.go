package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type SaleRepo struct {
	DB  DB
	Now func() time.Time
}

// RecordSale: lock the product row (FOR UPDATE) -> check stock -> deduct -> append sale.
// Any failure rolls back, so a decrement never lands without its sale row or vice versa.
// Concurrent sales of the same product serialize on the row lock.
func (r *SaleRepo) RecordSale(ctx context.Context, productID string, qty int) (Sale, error) {
	if qty <= 0 {
		return Sale{}, ErrInvalidQuantity
	}
	if !validID(productID) {
		return Sale{}, ErrNotFound
	}

	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Sale{}, err
	}
	defer tx.Rollback(ctx)

	var (
		stock int
		price int64
	)
	err = tx.QueryRow(ctx, `SELECT stock_quantity, price_cents FROM products WHERE id=$1 FOR UPDATE`, productID).Scan(&stock, &price)
	if errors.Is(err, pgx.ErrNoRows) {
		return Sale{}, ErrNotFound
	}
	if err != nil {
		return Sale{}, err
	}
	if stock < qty {
		return Sale{}, fmt.Errorf("%w: requested %d, available %d", ErrInsufficientStock, qty, stock)
	}

	if _, err := tx.Exec(ctx, `UPDATE products SET stock_quantity = stock_quantity - $2, updated_at = now() WHERE id=$1`, productID, qty); err != nil {
		return Sale{}, err
	}

	s := Sale{
		ID:                    uuid.NewString(),
		ProductID:             productID,
		QuantitySold:          qty,
		SalePricePerUnitCents: price,
		TotalAmountCents:      int64(qty) * price,
		SaleDate:              r.now(),
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO sales(id, product_id, quantity_sold, sale_price_per_unit_cents, total_amount_cents, sale_date)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		s.ID, s.ProductID, s.QuantitySold, s.SalePricePerUnitCents, s.TotalAmountCents, s.SaleDate,
	); err != nil {
		return Sale{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Sale{}, err
	}
	return s, nil
}

func (r *SaleRepo) ListSales(ctx context.Context, limit int) ([]Sale, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := r.DB.Query(ctx, `
		SELECT s.id, s.product_id, p.name, s.quantity_sold, s.sale_price_per_unit_cents, s.total_amount_cents, s.sale_date
		  FROM sales s JOIN products p ON p.id = s.product_id
		 ORDER BY s.sale_date DESC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Sale{}
	for rows.Next() {
		var s Sale
		if err := rows.Scan(&s.ID, &s.ProductID, &s.ProductName, &s.QuantitySold, &s.SalePricePerUnitCents, &s.TotalAmountCents, &s.SaleDate); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *SaleRepo) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now().UTC()
}
