package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/iliyamo/cliora-storefront/internal/model"
)

// ProductRepo serves the catalogue: public search and lookup plus the admin
// create, update and delete paths.
type ProductRepo struct{ DB *sql.DB }

func NewProductRepo(db *sql.DB) *ProductRepo { return &ProductRepo{DB: db} }

const productSelect = `SELECT p.id, p.name, p.slug, p.description, p.price_cents, p.currency, p.category_id,
	c.name, c.slug, ` + primaryImageSQL + `, p.created_at, p.updated_at
FROM products p
LEFT JOIN categories c ON c.id = p.category_id`

var sortClauses = map[string]string{
	model.SortNew:       "p.created_at DESC, p.id DESC",
	model.SortPriceAsc:  "p.price_cents ASC, p.id ASC",
	model.SortPriceDesc: "p.price_cents DESC, p.id DESC",
}

func scanProduct(sc interface{ Scan(...any) error }) (model.Product, error) {
	var (
		p       model.Product
		catID   sql.NullInt64
		catName sql.NullString
		catSlug sql.NullString
		image   sql.NullString
	)
	if err := sc.Scan(&p.ID, &p.Name, &p.Slug, &p.Description, &p.PriceCents, &p.Currency, &catID,
		&catName, &catSlug, &image, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return model.Product{}, err
	}
	if catID.Valid {
		id := uint64(catID.Int64)
		p.CategoryID = &id
	}
	p.CategoryName, p.CategorySlug, p.Image = strPtr(catName), strPtr(catSlug), strPtr(image)
	return p, nil
}

// escapeLike makes user input literal inside a LIKE pattern.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// SearchProducts returns one page of products matching the filter.  Query
// matches name or description; the column collation makes it
// case-insensitive.
func (r *ProductRepo) SearchProducts(ctx context.Context, f model.ProductFilter) (model.ProductPage, error) {
	var (
		where []string
		args  []interface{}
	)
	if f.Query != "" {
		like := "%" + escapeLike(f.Query) + "%"
		where = append(where, "(p.name LIKE ? OR p.description LIKE ?)")
		args = append(args, like, like)
	}
	if f.Category != "" {
		where = append(where, "c.slug = ?")
		args = append(args, f.Category)
	}
	whereSQL := ""
	if len(where) > 0 {
		whereSQL = " WHERE " + strings.Join(where, " AND ")
	}
	orderBy, ok := sortClauses[f.Sort]
	if !ok {
		orderBy = sortClauses[model.SortNew]
	}

	page := model.ProductPage{Items: []model.Product{}, Page: f.Page, PageSize: f.PageSize}
	countSQL := "SELECT COUNT(*) FROM products p LEFT JOIN categories c ON c.id = p.category_id" + whereSQL
	if err := r.DB.QueryRowContext(ctx, countSQL, args...).Scan(&page.Total); err != nil {
		return model.ProductPage{}, fmt.Errorf("count products: %w", err)
	}

	q := productSelect + whereSQL + " ORDER BY " + orderBy + " LIMIT ? OFFSET ?"
	rows, err := r.DB.QueryContext(ctx, q, append(args, f.PageSize, (f.Page-1)*f.PageSize)...)
	if err != nil {
		return model.ProductPage{}, fmt.Errorf("search products: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return model.ProductPage{}, err
		}
		page.Items = append(page.Items, p)
	}
	return page, rows.Err()
}

// ProductByID returns ErrNotFound for unknown ids.
func (r *ProductRepo) ProductByID(ctx context.Context, id uint64) (model.Product, error) {
	return r.productByID(ctx, r.DB, id)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *ProductRepo) productByID(ctx context.Context, q queryRower, id uint64) (model.Product, error) {
	p, err := scanProduct(q.QueryRowContext(ctx, productSelect+" WHERE p.id = ? LIMIT 1", id))
	if err != nil {
		return model.Product{}, classify(err)
	}
	return p, nil
}

// Categories lists every category by name.
func (r *ProductRepo) Categories(ctx context.Context) ([]model.Category, error) {
	rows, err := r.DB.QueryContext(ctx, "SELECT id, name, slug FROM categories ORDER BY name ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Category, 0)
	for rows.Next() {
		var c model.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CreateProduct inserts the product and its images in one transaction.  The
// first image becomes the primary one.  A taken slug yields ErrConflict and
// an unknown category ErrInvalidReference.
func (r *ProductRepo) CreateProduct(ctx context.Context, in model.ProductInput, images []string) (model.Product, error) {
	var out model.Product
	err := inTx(ctx, r.DB, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO products (name, slug, description, price_cents, currency, category_id) VALUES (?,?,?,?,?,?)`,
			in.Name, in.Slug, in.Description, in.PriceCents, in.Currency, categoryArg(in.CategoryID))
		if err != nil {
			return classify(err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		if err := insertImages(ctx, tx, uint64(id), images, true); err != nil {
			return err
		}
		out, err = r.productByID(ctx, tx, uint64(id))
		return err
	})
	if err != nil {
		return model.Product{}, fmt.Errorf("create product: %w", err)
	}
	return out, nil
}

// UpdateProduct replaces the product's fields and appends any new images.
// A new image is primary only when the product had none.
func (r *ProductRepo) UpdateProduct(ctx context.Context, id uint64, in model.ProductInput, images []string) (model.Product, error) {
	var out model.Product
	err := inTx(ctx, r.DB, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE products SET name=?, slug=?, description=?, price_cents=?, currency=?, category_id=? WHERE id=?`,
			in.Name, in.Slug, in.Description, in.PriceCents, in.Currency, categoryArg(in.CategoryID), id)
		if err != nil {
			return classify(err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		if len(images) > 0 {
			var existing int
			if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM product_images WHERE product_id = ?", id).Scan(&existing); err != nil {
				return err
			}
			if err := insertImages(ctx, tx, id, images, existing == 0); err != nil {
				return err
			}
		}
		out, err = r.productByID(ctx, tx, id)
		return err
	})
	if err != nil {
		return model.Product{}, fmt.Errorf("update product: %w", err)
	}
	return out, nil
}

// DeleteProduct removes a product; its images cascade.  Cart and order lines
// keep the id and their own snapshot.  Deleting a missing id is not an error.
func (r *ProductRepo) DeleteProduct(ctx context.Context, id uint64) error {
	_, err := r.DB.ExecContext(ctx, "DELETE FROM products WHERE id = ?", id)
	return err
}

func insertImages(ctx context.Context, tx *sql.Tx, productID uint64, paths []string, firstPrimary bool) error {
	if len(paths) == 0 {
		return nil
	}
	query := "INSERT INTO product_images (product_id, path, is_primary) VALUES "
	args := make([]interface{}, 0, len(paths)*3)
	for i, p := range paths {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?)"
		args = append(args, productID, p, firstPrimary && i == 0)
	}
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

func categoryArg(id *uint64) interface{} {
	if id == nil {
		return nil
	}
	return *id
}
