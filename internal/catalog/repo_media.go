package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// MediaRepo owns the rows pointing at stored image files: product images, banners and
// category images. Methods that remove a row return its image path; deleting the file is
// the caller's job.
type MediaRepo struct{ DB DB }

// lockProduct takes the product row lock so image writes for one product serialize and the
// primary flag stays consistent.
func lockProduct(ctx context.Context, tx pgx.Tx, productID string) error {
	var one int
	err := tx.QueryRow(ctx, `SELECT 1 FROM products WHERE id=$1 FOR UPDATE`, productID).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// AddProductImage inserts an image row. The first image of a product always becomes primary;
// primary=true demotes the current primary.
func (r *MediaRepo) AddProductImage(ctx context.Context, productID, imagePath string, primary bool) (ProductImage, error) {
	if !validID(productID) {
		return ProductImage{}, ErrNotFound
	}
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return ProductImage{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := lockProduct(ctx, tx, productID); err != nil {
		return ProductImage{}, err
	}

	var n int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM product_images WHERE product_id=$1`, productID).Scan(&n); err != nil {
		return ProductImage{}, err
	}
	if n == 0 {
		primary = true
	}
	if primary && n > 0 {
		if _, err := tx.Exec(ctx, `UPDATE product_images SET is_primary=false WHERE product_id=$1`, productID); err != nil {
			return ProductImage{}, err
		}
	}

	im := ProductImage{ID: uuid.NewString(), ProductID: productID, ImagePath: imagePath, IsPrimary: primary}
	if err := tx.QueryRow(ctx, `
		INSERT INTO product_images(id, product_id, image_path, is_primary)
		VALUES ($1,$2,$3,$4) RETURNING created_at`,
		im.ID, im.ProductID, im.ImagePath, im.IsPrimary,
	).Scan(&im.CreatedAt); err != nil {
		return ProductImage{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return ProductImage{}, err
	}
	return im, nil
}

func (r *MediaRepo) SetPrimaryImage(ctx context.Context, productID, imageID string) error {
	if !validID(productID) || !validID(imageID) {
		return ErrNotFound
	}
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := lockProduct(ctx, tx, productID); err != nil {
		return err
	}
	ct, err := tx.Exec(ctx, `UPDATE product_images SET is_primary = (id = $2) WHERE product_id=$1`, productID, imageID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	// the image must belong to this product, otherwise every row was just demoted
	var one int
	err = tx.QueryRow(ctx, `SELECT 1 FROM product_images WHERE id=$1 AND product_id=$2`, imageID, productID).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// DeleteProductImage removes one image. When it was the primary, the oldest remaining image
// is promoted.
func (r *MediaRepo) DeleteProductImage(ctx context.Context, productID, imageID string) (string, error) {
	if !validID(productID) || !validID(imageID) {
		return "", ErrNotFound
	}
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := lockProduct(ctx, tx, productID); err != nil {
		return "", err
	}
	var (
		path       string
		wasPrimary bool
	)
	err = tx.QueryRow(ctx, `
		DELETE FROM product_images WHERE id=$1 AND product_id=$2
		RETURNING image_path, is_primary`, imageID, productID).Scan(&path, &wasPrimary)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	if wasPrimary {
		if _, err := tx.Exec(ctx, `
			UPDATE product_images SET is_primary=true
			 WHERE id = (SELECT id FROM product_images WHERE product_id=$1 ORDER BY created_at LIMIT 1)`,
			productID); err != nil {
			return "", err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return "", err
	}
	return path, nil
}

func (r *MediaRepo) ListBanners(ctx context.Context) ([]Banner, error) {
	rows, err := r.DB.Query(ctx, `SELECT id, image_path, title, subtitle, created_at FROM banners ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Banner{}
	for rows.Next() {
		var b Banner
		if err := rows.Scan(&b.ID, &b.ImagePath, &b.Title, &b.Subtitle, &b.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *MediaRepo) CreateBanner(ctx context.Context, imagePath, title, subtitle string) (Banner, error) {
	b := Banner{ID: uuid.NewString(), ImagePath: imagePath, Title: title, Subtitle: subtitle}
	err := r.DB.QueryRow(ctx, `
		INSERT INTO banners(id, image_path, title, subtitle) VALUES ($1,$2,$3,$4)
		RETURNING created_at`, b.ID, b.ImagePath, b.Title, b.Subtitle).Scan(&b.CreatedAt)
	if err != nil {
		return Banner{}, err
	}
	return b, nil
}

func (r *MediaRepo) DeleteBanner(ctx context.Context, id string) (string, error) {
	if !validID(id) {
		return "", ErrNotFound
	}
	var path string
	err := r.DB.QueryRow(ctx, `DELETE FROM banners WHERE id=$1 RETURNING image_path`, id).Scan(&path)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	return path, err
}

func (r *MediaRepo) ListCategoryImages(ctx context.Context) ([]CategoryImage, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, category_name, image_path, created_at, updated_at
		FROM category_images ORDER BY category_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []CategoryImage{}
	for rows.Next() {
		var c CategoryImage
		if err := rows.Scan(&c.ID, &c.CategoryName, &c.ImagePath, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpsertCategoryImage sets the image for a category and returns the path it replaced
// ("" when the category had none).
func (r *MediaRepo) UpsertCategoryImage(ctx context.Context, name, imagePath string) (CategoryImage, string, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return CategoryImage{}, "", err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var old string
	err = tx.QueryRow(ctx, `SELECT image_path FROM category_images WHERE category_name=$1 FOR UPDATE`, name).Scan(&old)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return CategoryImage{}, "", err
	}

	c := CategoryImage{CategoryName: name}
	err = tx.QueryRow(ctx, `
		INSERT INTO category_images(id, category_name, image_path) VALUES ($1,$2,$3)
		ON CONFLICT (category_name) DO UPDATE SET image_path = EXCLUDED.image_path, updated_at = now()
		RETURNING id, image_path, created_at, updated_at`,
		uuid.NewString(), name, imagePath,
	).Scan(&c.ID, &c.ImagePath, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return CategoryImage{}, "", err
	}
	if err := tx.Commit(ctx); err != nil {
		return CategoryImage{}, "", err
	}
	return c, old, nil
}

func (r *MediaRepo) DeleteCategoryImage(ctx context.Context, name string) (string, error) {
	var path string
	err := r.DB.QueryRow(ctx, `DELETE FROM category_images WHERE category_name=$1 RETURNING image_path`, name).Scan(&path)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	return path, err
}
