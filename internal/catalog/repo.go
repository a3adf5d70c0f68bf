package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type Repo struct{ DB DB }

func (r *Repo) ListProducts(ctx context.Context, f ProductFilter) ([]Product, error) {
	var (
		where []string
		args  []any
	)
	if f.Category != "" {
		args = append(args, f.Category)
		where = append(where, fmt.Sprintf("p.category = $%d", len(args)))
	}
	if f.BestSeller != nil {
		args = append(args, *f.BestSeller)
		where = append(where, fmt.Sprintf("p.is_best_seller = $%d", len(args)))
	}
	q := `SELECT p.id, p.name, p.description, p.category, p.price_cents, p.stock_quantity,
	             p.is_best_seller, p.created_at, p.updated_at, COALESCE(pi.image_path, '')
	        FROM products p
	        LEFT JOIN product_images pi ON pi.product_id = p.id AND pi.is_primary`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY p.is_best_seller DESC, p.created_at DESC"

	rows, err := r.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Product{}
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Category, &p.PriceCents, &p.StockQuantity,
			&p.IsBestSeller, &p.CreatedAt, &p.UpdatedAt, &p.PrimaryImage); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetProduct loads a product with its images, primary first. The exactly-one-primary rule is
// checked on every read; a violation is returned as ErrPrimaryImage.
func (r *Repo) GetProduct(ctx context.Context, id string) (Product, error) {
	if !validID(id) {
		return Product{}, ErrNotFound
	}
	var p Product
	err := r.DB.QueryRow(ctx, `
		SELECT id, name, description, category, price_cents, stock_quantity, is_best_seller, created_at, updated_at
		FROM products WHERE id=$1`, id).
		Scan(&p.ID, &p.Name, &p.Description, &p.Category, &p.PriceCents, &p.StockQuantity, &p.IsBestSeller, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	if err != nil {
		return Product{}, err
	}

	rows, err := r.DB.Query(ctx, `
		SELECT id, product_id, image_path, is_primary, created_at
		FROM product_images WHERE product_id=$1
		ORDER BY is_primary DESC, created_at`, id)
	if err != nil {
		return Product{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var im ProductImage
		if err := rows.Scan(&im.ID, &im.ProductID, &im.ImagePath, &im.IsPrimary, &im.CreatedAt); err != nil {
			return Product{}, err
		}
		p.Images = append(p.Images, im)
	}
	if err := rows.Err(); err != nil {
		return Product{}, err
	}
	if err := ValidatePrimaryImages(p.Images); err != nil {
		return p, fmt.Errorf("product %s: %w", id, err)
	}
	return p, nil
}

func (r *Repo) CreateProduct(ctx context.Context, in ProductInput) (Product, error) {
	p := Product{
		ID:            uuid.NewString(),
		Name:          in.Name,
		Description:   in.Description,
		Category:      in.Category,
		PriceCents:    in.PriceCents,
		StockQuantity: in.StockQuantity,
		IsBestSeller:  in.IsBestSeller,
	}
	err := r.DB.QueryRow(ctx, `
		INSERT INTO products(id, name, description, category, price_cents, stock_quantity, is_best_seller)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at, updated_at`,
		p.ID, p.Name, p.Description, p.Category, p.PriceCents, p.StockQuantity, p.IsBestSeller,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Product{}, err
	}
	return p, nil
}

func (r *Repo) UpdateProduct(ctx context.Context, id string, in ProductInput) (Product, error) {
	if !validID(id) {
		return Product{}, ErrNotFound
	}
	p := Product{ID: id}
	err := r.DB.QueryRow(ctx, `
		UPDATE products
		   SET name=$2, description=$3, category=$4, price_cents=$5, stock_quantity=$6, is_best_seller=$7, updated_at=now()
		 WHERE id=$1
		RETURNING name, description, category, price_cents, stock_quantity, is_best_seller, created_at, updated_at`,
		id, in.Name, in.Description, in.Category, in.PriceCents, in.StockQuantity, in.IsBestSeller,
	).Scan(&p.Name, &p.Description, &p.Category, &p.PriceCents, &p.StockQuantity, &p.IsBestSeller, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	if err != nil {
		return Product{}, err
	}
	return p, nil
}

// DeleteProduct removes the product and its image rows and returns the image paths so the
// caller can remove the files. Products referenced by sales cannot be deleted (ErrConflict).
func (r *Repo) DeleteProduct(ctx context.Context, id string) ([]string, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `SELECT image_path FROM product_images WHERE product_id=$1`, id)
	if err != nil {
		return nil, err
	}
	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			rows.Close()
			return nil, err
		}
		paths = append(paths, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ct, err := tx.Exec(ctx, `DELETE FROM products WHERE id=$1`, id)
	if err != nil {
		if pgCode(err) == pgForeignKeyViolation {
			return nil, fmt.Errorf("%w: product has recorded sales", ErrConflict)
		}
		return nil, err
	}
	if ct.RowsAffected() == 0 {
		return nil, ErrNotFound
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return paths, nil
}

// ProductsByID returns the products among ids that exist, keyed by id. Used to price
// checkout lines from the database instead of trusting the client.
func (r *Repo) ProductsByID(ctx context.Context, ids []string) (map[string]Product, error) {
	out := map[string]Product{}
	params := ""
	args := make([]any, 0, len(ids))
	for _, id := range ids {
		if !validID(id) {
			continue
		}
		if len(args) > 0 {
			params += ","
		}
		args = append(args, id)
		params += fmt.Sprintf("$%d", len(args))
	}
	if len(args) == 0 {
		return out, nil
	}
	rows, err := r.DB.Query(ctx, `SELECT id, name, category, price_cents, stock_quantity FROM products WHERE id IN (`+params+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Category, &p.PriceCents, &p.StockQuantity); err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

// ValidatePrimaryImages enforces the application-level rule that a product with images has
// exactly one primary image. A product without images is valid.
func ValidatePrimaryImages(images []ProductImage) error {
	if len(images) == 0 {
		return nil
	}
	n := 0
	for _, im := range images {
		if im.IsPrimary {
			n++
		}
	}
	if n != 1 {
		return fmt.Errorf("%w: found %d", ErrPrimaryImage, n)
	}
	return nil
}
