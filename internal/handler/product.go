package handler

import (
	"io"
	"mime/multipart"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cliora-storefront/internal/model"
	"github.com/iliyamo/cliora-storefront/internal/service"
)

// ProductHandler serves the catalogue and its admin mutations.
type ProductHandler struct {
	catalog *service.CatalogService
}

func NewProductHandler(catalog *service.CatalogService) *ProductHandler {
	return &ProductHandler{catalog: catalog}
}

// List handles GET /api/products?page&q&category&sort.
func (h *ProductHandler) List(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	page, err := h.catalog.Search(ctx, model.ProductFilter{
		Query:    c.QueryParam("q"),
		Category: c.QueryParam("category"),
		Sort:     c.QueryParam("sort"),
		Page:     queryInt(c, "page"),
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, page)
}

func (h *ProductHandler) Get(c echo.Context) error {
	id, valid := pathID(c, "id")
	if !valid {
		return c.JSON(http.StatusNotFound, echo.Map{"message": "Not found"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	p, err := h.catalog.Product(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *ProductHandler) Categories(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	cats, err := h.catalog.Categories(ctx)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"categories": cats})
}

// Create handles the admin multipart form with up to four "images" files.
func (h *ProductHandler) Create(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	p, err := h.catalog.Create(ctx, productForm(c), uploads(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *ProductHandler) Update(c echo.Context) error {
	id, valid := pathID(c, "id")
	if !valid {
		return c.JSON(http.StatusNotFound, echo.Map{"message": "Not found"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	p, err := h.catalog.Update(ctx, id, productForm(c), uploads(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *ProductHandler) Delete(c echo.Context) error {
	id, valid := pathID(c, "id")
	if !valid {
		return ok(c)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.catalog.Delete(ctx, id); err != nil {
		return fail(c, err)
	}
	return ok(c)
}

func productForm(c echo.Context) service.ProductForm {
	return service.ProductForm{
		Name:        c.FormValue("name"),
		Slug:        c.FormValue("slug"),
		Description: c.FormValue("description"),
		Currency:    c.FormValue("currency"),
		Price:       c.FormValue("price_cents"),
		CategoryID:  c.FormValue("category_id"),
	}
}

// uploads returns the "images" parts of a multipart request, or nil for
// any other content type.
func uploads(c echo.Context) []service.ImageUpload {
	form, err := c.MultipartForm()
	if err != nil || form == nil {
		return nil
	}
	files := form.File["images"]
	out := make([]service.ImageUpload, 0, len(files))
	for _, fh := range files {
		out = append(out, service.ImageUpload{Name: fh.Filename, Open: opener(fh)})
	}
	return out
}

func opener(fh *multipart.FileHeader) func() (io.ReadCloser, error) {
	return func() (io.ReadCloser, error) { return fh.Open() }
}
