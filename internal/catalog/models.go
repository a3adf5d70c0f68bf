package catalog

import "time"

type Product struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Description   string         `json:"description"`
	Category      string         `json:"category"`
	PriceCents    int64          `json:"price_cents"`
	StockQuantity int            `json:"stock_quantity"`
	IsBestSeller  bool           `json:"is_best_seller"`
	PrimaryImage  string         `json:"primary_image,omitempty"` // only filled by ListProducts
	Images        []ProductImage `json:"images,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

type ProductImage struct {
	ID        string    `json:"id"`
	ProductID string    `json:"product_id"`
	ImagePath string    `json:"image_path"`
	IsPrimary bool      `json:"is_primary"`
	CreatedAt time.Time `json:"created_at"`
}

// Sale rows are append-only. Price and total are snapshots taken inside the sale transaction.
type Sale struct {
	ID                    string    `json:"id"`
	ProductID             string    `json:"product_id"`
	ProductName           string    `json:"product_name,omitempty"`
	QuantitySold          int       `json:"quantity_sold"`
	SalePricePerUnitCents int64     `json:"sale_price_per_unit_cents"`
	TotalAmountCents      int64     `json:"total_amount_cents"`
	SaleDate              time.Time `json:"sale_date"`
}

type Banner struct {
	ID        string    `json:"id"`
	ImagePath string    `json:"image_path"`
	Title     string    `json:"title,omitempty"`
	Subtitle  string    `json:"subtitle,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type CategoryImage struct {
	ID           string    `json:"id"`
	CategoryName string    `json:"category_name"`
	ImagePath    string    `json:"image_path"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type ProductInput struct {
	Name          string `json:"name" validate:"required,max=200"`
	Description   string `json:"description" validate:"max=5000"`
	Category      string `json:"category" validate:"required,max=100"`
	PriceCents    int64  `json:"price_cents" validate:"gte=0"`
	StockQuantity int    `json:"stock_quantity" validate:"gte=0"`
	IsBestSeller  bool   `json:"is_best_seller"`
}

type ProductFilter struct {
	Category   string
	BestSeller *bool
}
