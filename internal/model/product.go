package model

import "time"

// Category groups products for browsing.
type Category struct {
	ID   uint64 `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// Product mirrors a `products` row joined with its category and primary
// image.  Prices are integer minor currency units.
type Product struct {
	ID           uint64    `json:"id"`
	Name         string    `json:"name"`
	Slug         string    `json:"slug"`
	Description  string    `json:"description"`
	PriceCents   int64     `json:"price_cents"`
	Currency     string    `json:"currency"`
	CategoryID   *uint64   `json:"category_id"`
	CategoryName *string   `json:"category_name"`
	CategorySlug *string   `json:"category_slug"`
	Image        *string   `json:"image"` // primary image path, then lowest id
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ProductImage belongs to exactly one product.  The first image stored for a
// product is flagged primary.
type ProductImage struct {
	ID        uint64 `json:"id"`
	ProductID uint64 `json:"product_id"`
	Path      string `json:"path"`
	IsPrimary bool   `json:"is_primary"`
}

// ProductInput carries the validated fields of an admin create or update.
type ProductInput struct {
	Name        string
	Slug        string
	Description string
	PriceCents  int64
	Currency    string
	CategoryID  *uint64
}

// Sort orders accepted by the catalogue listing.
const (
	SortNew       = "new"
	SortPriceAsc  = "price_asc"
	SortPriceDesc = "price_desc"
)

// ProductFilter narrows a catalogue listing.  Page is 1-based.
type ProductFilter struct {
	Query    string
	Category string // category slug
	Sort     string
	Page     int
	PageSize int
}

// ProductPage is one page of catalogue results.
type ProductPage struct {
	Items    []Product `json:"items"`
	Total    int       `json:"total"`
	Page     int       `json:"page"`
	PageSize int       `json:"pageSize"`
}
