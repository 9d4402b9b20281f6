package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/iliyamo/cliora-storefront/internal/model"
	"github.com/iliyamo/cliora-storefront/internal/repository"
	"github.com/iliyamo/cliora-storefront/internal/utils"
)

const (
	catalogPageSize  = 12
	maxProductImages = 4
)

var slugPattern = regexp.MustCompile(`^[a-z0-9-]+$`)

// ProductForm is the raw admin input, as submitted in a multipart form.
type ProductForm struct {
	Name        string
	Slug        string
	Description string
	Currency    string
	Price       string
	CategoryID  string
}

// ImageUpload is one uploaded file; Open is called once while saving.
type ImageUpload struct {
	Name string
	Open func() (io.ReadCloser, error)
}

// CatalogService serves product browsing and the admin product surface.
type CatalogService struct {
	store    CatalogStore
	images   ImageStore
	purge    func(context.Context) error
	currency string
}

// NewCatalogService wires the service.  purge, when non-nil, is called after
// every successful mutation to drop cached catalogue responses.
func NewCatalogService(store CatalogStore, images ImageStore, purge func(context.Context) error, currency string) *CatalogService {
	return &CatalogService{store: store, images: images, purge: purge, currency: currency}
}

// Search returns one page of at most 12 products.
func (s *CatalogService) Search(ctx context.Context, f model.ProductFilter) (model.ProductPage, error) {
	f.Query = strings.TrimSpace(f.Query)
	f.Category = strings.TrimSpace(f.Category)
	switch f.Sort {
	case model.SortPriceAsc, model.SortPriceDesc:
	default:
		f.Sort = model.SortNew
	}
	if f.Page < 1 {
		f.Page = 1
	}
	f.PageSize = catalogPageSize
	page, err := s.store.SearchProducts(ctx, f)
	if err != nil {
		return model.ProductPage{}, internal("Failed to fetch products", err)
	}
	return page, nil
}

func (s *CatalogService) Product(ctx context.Context, id uint64) (model.Product, error) {
	p, err := s.store.ProductByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Product{}, notFound("Not found")
	}
	if err != nil {
		return model.Product{}, internal("Failed to fetch product", err)
	}
	return p, nil
}

func (s *CatalogService) Categories(ctx context.Context) ([]model.Category, error) {
	cats, err := s.store.Categories(ctx)
	if err != nil {
		return nil, internal("Failed to fetch categories", err)
	}
	return cats, nil
}

// Create validates the form, stores the images and inserts the product.
// The first image becomes primary.
func (s *CatalogService) Create(ctx context.Context, form ProductForm, uploads []ImageUpload) (model.Product, error) {
	in, err := s.validate(form)
	if err != nil {
		return model.Product{}, err
	}
	paths, err := s.saveImages(ctx, uploads)
	if err != nil {
		return model.Product{}, err
	}
	p, err := s.store.CreateProduct(ctx, in, paths)
	if err != nil {
		return model.Product{}, s.writeError(err, "Failed to add product")
	}
	s.invalidate(ctx)
	return p, nil
}

// Update replaces the product's fields and appends any new images.
func (s *CatalogService) Update(ctx context.Context, id uint64, form ProductForm, uploads []ImageUpload) (model.Product, error) {
	in, err := s.validate(form)
	if err != nil {
		return model.Product{}, err
	}
	paths, err := s.saveImages(ctx, uploads)
	if err != nil {
		return model.Product{}, err
	}
	p, err := s.store.UpdateProduct(ctx, id, in, paths)
	if err != nil {
		return model.Product{}, s.writeError(err, "Failed to update product")
	}
	s.invalidate(ctx)
	return p, nil
}

// Delete removes the product.  Deleting an unknown id succeeds.
func (s *CatalogService) Delete(ctx context.Context, id uint64) error {
	if err := s.store.DeleteProduct(ctx, id); err != nil {
		return internal("Failed to delete product", err)
	}
	s.invalidate(ctx)
	return nil
}

func (s *CatalogService) validate(f ProductForm) (model.ProductInput, error) {
	in := model.ProductInput{
		Name:        strings.TrimSpace(f.Name),
		Slug:        strings.ToLower(strings.TrimSpace(f.Slug)),
		Description: strings.TrimSpace(f.Description),
		Currency:    strings.ToUpper(strings.TrimSpace(f.Currency)),
	}
	if in.Currency == "" {
		in.Currency = s.currency
	}
	if in.Name == "" {
		return in, validation("Name is required")
	}
	if in.Slug == "" {
		return in, validation("Slug is required")
	}
	if !slugPattern.MatchString(in.Slug) {
		return in, validation("Slug must be lowercase letters, numbers, or hyphens")
	}
	price, err := utils.ParsePriceCents(f.Price)
	if err != nil {
		return in, validation("Price (in pence) is invalid")
	}
	in.PriceCents = price
	if c := strings.TrimSpace(f.CategoryID); c != "" && c != "0" {
		id, err := strconv.ParseUint(c, 10, 64)
		if err != nil {
			return in, validation("Invalid category.")
		}
		in.CategoryID = &id
	}
	return in, nil
}

func (s *CatalogService) saveImages(ctx context.Context, uploads []ImageUpload) ([]string, error) {
	if len(uploads) > maxProductImages {
		return nil, validation(fmt.Sprintf("At most %d images are allowed", maxProductImages))
	}
	paths := make([]string, 0, len(uploads))
	for _, u := range uploads {
		path, err := s.saveImage(ctx, u)
		if err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func (s *CatalogService) saveImage(ctx context.Context, u ImageUpload) (string, error) {
	if s.images == nil {
		return "", internal("Image storage is not configured", nil)
	}
	rc, err := u.Open()
	if err != nil {
		return "", internal("Failed to read image", err)
	}
	defer rc.Close()
	path, err := s.images.Save(ctx, rc)
	if errors.Is(err, ErrUnsupportedImage) {
		return "", validation(fmt.Sprintf("Unsupported image %q", u.Name))
	}
	if err != nil {
		return "", internal("Failed to store image", err)
	}
	return path, nil
}

func (s *CatalogService) writeError(err error, msg string) error {
	switch {
	case errors.Is(err, repository.ErrConflict):
		return conflict("Slug already exists. Choose a different slug.")
	case errors.Is(err, repository.ErrInvalidReference):
		return validation("Invalid category.")
	case errors.Is(err, repository.ErrNotFound):
		return notFound("Not found")
	default:
		return internal(msg, err)
	}
}

func (s *CatalogService) invalidate(ctx context.Context) {
	if s.purge == nil {
		return
	}
	if err := s.purge(ctx); err != nil {
		slog.WarnContext(ctx, "catalogue cache purge failed", "err", err)
	}
}

// ErrUnsupportedImage is returned by image stores for uploads that are not a
// decodable PNG or JPEG.
var ErrUnsupportedImage = errors.New("unsupported image")
