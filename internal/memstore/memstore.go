// Package memstore is an in-memory implementation of every store the
// services depend on.  It mirrors the MySQL repositories closely enough for
// service and handler tests: unique keys, snapshot and live joins, and
// all-or-nothing transactions.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/cliora-storefront/internal/model"
	"github.com/iliyamo/cliora-storefront/internal/repository"
)

type tokenRow struct {
	userID  uint64
	revoked bool
	expires time.Time
}

type cartRow struct {
	id     uint64
	userID uint64
	item   model.CartItem
}

type orderRow struct {
	order model.Order
	items []model.NewOrderItem
}

type imageRow struct {
	id        uint64
	productID uint64
	path      string
	primary   bool
}

// Store holds all tables.  The zero value is not usable; call New.
type Store struct {
	mu sync.Mutex

	// Now is the clock used for token expiry and order timestamps.
	Now func() time.Time
	// Fail makes the named method return the error once.
	Fail map[string]error

	seq        uint64
	users      map[uint64]model.User
	tokens     map[string]tokenRow
	categories map[uint64]model.Category
	products   map[uint64]model.Product
	images     []imageRow
	cart       []cartRow
	orders     map[uint64]*orderRow
}

func New() *Store {
	return &Store{
		Now:        func() time.Time { return time.Now().UTC() },
		Fail:       map[string]error{},
		users:      map[uint64]model.User{},
		tokens:     map[string]tokenRow{},
		categories: map[uint64]model.Category{},
		products:   map[uint64]model.Product{},
		orders:     map[uint64]*orderRow{},
	}
}

func (s *Store) next() uint64 { s.seq++; return s.seq }

func (s *Store) failed(method string) error {
	if err, ok := s.Fail[method]; ok {
		delete(s.Fail, method)
		return err
	}
	return nil
}

// ---- users ----

func (s *Store) CreateUser(_ context.Context, name, email, passwordHash string, role model.Role) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failed("CreateUser"); err != nil {
		return model.User{}, err
	}
	email = repository.NormalizeEmail(email)
	for _, u := range s.users {
		if u.Email == email {
			return model.User{}, repository.ErrConflict
		}
	}
	u := model.User{ID: s.next(), Name: name, Email: email, PasswordHash: passwordHash, Role: role, CreatedAt: s.Now()}
	s.users[u.ID] = u
	return u, nil
}

func (s *Store) UserByEmail(_ context.Context, email string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email = repository.NormalizeEmail(email)
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (s *Store) UserByID(_ context.Context, id uint64) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failed("UserByID"); err != nil {
		return model.User{}, err
	}
	u, ok := s.users[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return u, nil
}

// SetRole changes a stored user's role.
func (s *Store) SetRole(id uint64, role model.Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.users[id]
	u.Role = role
	s.users[id] = u
}

// ---- refresh tokens ----

func (s *Store) StoreRefresh(_ context.Context, userID uint64, tokenHash string, exp time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failed("StoreRefresh"); err != nil {
		return err
	}
	if _, ok := s.tokens[tokenHash]; ok {
		return repository.ErrConflict
	}
	s.tokens[tokenHash] = tokenRow{userID: userID, expires: exp}
	return nil
}

func (s *Store) LiveRefresh(_ context.Context, tokenHash string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[tokenHash]
	if !ok || t.revoked || !s.Now().Before(t.expires) {
		return 0, repository.ErrNotFound
	}
	return t.userID, nil
}

func (s *Store) RevokeRefresh(_ context.Context, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failed("RevokeRefresh"); err != nil {
		return err
	}
	if t, ok := s.tokens[tokenHash]; ok {
		t.revoked = true
		s.tokens[tokenHash] = t
	}
	return nil
}

// TokenCount reports how many refresh tokens are stored.
func (s *Store) TokenCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tokens)
}

// ---- catalogue ----

// SeedCategory adds a category and returns it.
func (s *Store) SeedCategory(name, slug string) model.Category {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := model.Category{ID: s.next(), Name: name, Slug: slug}
	s.categories[c.ID] = c
	return c
}

// SeedProduct adds a product with an optional primary image.
func (s *Store) SeedProduct(name string, priceCents int64, currency, image string) model.Product {
	slug := strings.ToLower(strings.ReplaceAll(name, " ", "-"))
	p, err := s.CreateProduct(context.Background(), model.ProductInput{
		Name: name, Slug: slug, PriceCents: priceCents, Currency: currency,
	}, nonEmpty(image))
	if err != nil {
		panic(err)
	}
	return p
}

// SetPrice changes a product's live price.
func (s *Store) SetPrice(id uint64, priceCents int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.products[id]
	p.PriceCents = priceCents
	s.products[id] = p
}

func nonEmpty(v string) []string {
	if v == "" {
		return nil
	}
	return []string{v}
}

func (s *Store) primaryImage(productID uint64) *string {
	var best *imageRow
	for i := range s.images {
		im := &s.images[i]
		if im.productID != productID {
			continue
		}
		if best == nil || (im.primary && !best.primary) {
			best = im
		}
	}
	if best == nil {
		return nil
	}
	p := best.path
	return &p
}

func (s *Store) hydrate(p model.Product) model.Product {
	p.CategoryName, p.CategorySlug = nil, nil
	if p.CategoryID != nil {
		if c, ok := s.categories[*p.CategoryID]; ok {
			name, slug := c.Name, c.Slug
			p.CategoryName, p.CategorySlug = &name, &slug
		}
	}
	p.Image = s.primaryImage(p.ID)
	return p
}

func (s *Store) SearchProducts(_ context.Context, f model.ProductFilter) (model.ProductPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failed("SearchProducts"); err != nil {
		return model.ProductPage{}, err
	}
	q := strings.ToLower(f.Query)
	var matched []model.Product
	for _, p := range s.products {
		p = s.hydrate(p)
		if q != "" && !strings.Contains(strings.ToLower(p.Name), q) && !strings.Contains(strings.ToLower(p.Description), q) {
			continue
		}
		if f.Category != "" && (p.CategorySlug == nil || *p.CategorySlug != f.Category) {
			continue
		}
		matched = append(matched, p)
	}
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		switch f.Sort {
		case model.SortPriceAsc:
			if a.PriceCents != b.PriceCents {
				return a.PriceCents < b.PriceCents
			}
			return a.ID < b.ID
		case model.SortPriceDesc:
			if a.PriceCents != b.PriceCents {
				return a.PriceCents > b.PriceCents
			}
			return a.ID > b.ID
		default:
			return a.ID > b.ID
		}
	})
	page := model.ProductPage{Items: []model.Product{}, Total: len(matched), Page: f.Page, PageSize: f.PageSize}
	start := (f.Page - 1) * f.PageSize
	for i := start; i < len(matched) && i < start+f.PageSize; i++ {
		page.Items = append(page.Items, matched[i])
	}
	return page, nil
}

func (s *Store) ProductByID(_ context.Context, id uint64) (model.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return model.Product{}, repository.ErrNotFound
	}
	return s.hydrate(p), nil
}

func (s *Store) Categories(_ context.Context) ([]model.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Category, 0, len(s.categories))
	for _, c := range s.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) checkProduct(id uint64, in model.ProductInput) error {
	for _, p := range s.products {
		if p.Slug == in.Slug && p.ID != id {
			return repository.ErrConflict
		}
	}
	if in.CategoryID != nil {
		if _, ok := s.categories[*in.CategoryID]; !ok {
			return repository.ErrInvalidReference
		}
	}
	return nil
}

func (s *Store) addImages(productID uint64, paths []string, firstPrimary bool) {
	for i, path := range paths {
		s.images = append(s.images, imageRow{id: s.next(), productID: productID, path: path, primary: firstPrimary && i == 0})
	}
}

func (s *Store) CreateProduct(_ context.Context, in model.ProductInput, images []string) (model.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkProduct(0, in); err != nil {
		return model.Product{}, err
	}
	now := s.Now()
	p := model.Product{
		ID: s.next(), Name: in.Name, Slug: in.Slug, Description: in.Description,
		PriceCents: in.PriceCents, Currency: in.Currency, CategoryID: in.CategoryID,
		CreatedAt: now, UpdatedAt: now,
	}
	s.products[p.ID] = p
	s.addImages(p.ID, images, true)
	return s.hydrate(p), nil
}

func (s *Store) UpdateProduct(_ context.Context, id uint64, in model.ProductInput, images []string) (model.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return model.Product{}, repository.ErrNotFound
	}
	if err := s.checkProduct(id, in); err != nil {
		return model.Product{}, err
	}
	p.Name, p.Slug, p.Description = in.Name, in.Slug, in.Description
	p.PriceCents, p.Currency, p.CategoryID = in.PriceCents, in.Currency, in.CategoryID
	p.UpdatedAt = s.Now()
	s.products[id] = p
	s.addImages(id, images, s.primaryImage(id) == nil)
	return s.hydrate(p), nil
}

func (s *Store) DeleteProduct(_ context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.products, id)
	kept := s.images[:0]
	for _, im := range s.images {
		if im.productID != id {
			kept = append(kept, im)
		}
	}
	s.images = kept
	return nil
}

// ---- cart ----

func (s *Store) CartLines(_ context.Context, userID uint64) ([]model.CartItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failed("CartLines"); err != nil {
		return nil, err
	}
	out := make([]model.CartItem, 0)
	for _, r := range s.cart {
		if r.userID == userID {
			out = append(out, r.item)
		}
	}
	return out, nil
}

func (s *Store) CartTx(ctx context.Context, fn func(repository.CartWriter) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	saved := append([]cartRow(nil), s.cart...)
	if err := fn(cartWriter{s}); err != nil {
		s.cart = saved
		return err
	}
	return nil
}

type cartWriter struct{ s *Store }

func (w cartWriter) RemoveLine(_ context.Context, userID, productID uint64) error {
	if err := w.s.failed("RemoveLine"); err != nil {
		return err
	}
	kept := w.s.cart[:0]
	for _, r := range w.s.cart {
		if !(r.userID == userID && r.item.ProductID == productID) {
			kept = append(kept, r)
		}
	}
	w.s.cart = kept
	return nil
}

func (w cartWriter) ProductSnapshot(_ context.Context, productID uint64) (model.ProductSnapshot, bool, error) {
	p, ok := w.s.products[productID]
	if !ok {
		return model.ProductSnapshot{}, false, nil
	}
	snap := model.ProductSnapshot{ProductID: p.ID, Name: p.Name, PriceCents: p.PriceCents, Currency: p.Currency}
	if img := w.s.primaryImage(p.ID); img != nil {
		snap.Image = *img
	}
	return snap, true, nil
}

func (w cartWriter) UpsertLine(_ context.Context, userID uint64, quantity int, snap model.ProductSnapshot) error {
	if err := w.s.failed("UpsertLine"); err != nil {
		return err
	}
	item := model.CartItem{
		ProductID: snap.ProductID, Quantity: quantity, UnitPriceCents: snap.PriceCents,
		Currency: snap.Currency, Name: snap.Name, Image: snap.Image,
	}
	for i, r := range w.s.cart {
		if r.userID == userID && r.item.ProductID == snap.ProductID {
			w.s.cart[i].item = item
			return nil
		}
	}
	w.s.cart = append(w.s.cart, cartRow{id: w.s.next(), userID: userID, item: item})
	return nil
}

// ---- orders ----

func (s *Store) OrderTx(ctx context.Context, fn func(repository.OrderWriter) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	saved := make(map[uint64]*orderRow, len(s.orders))
	for id, o := range s.orders {
		saved[id] = o
	}
	if err := fn(orderWriter{s}); err != nil {
		s.orders = saved
		return err
	}
	return nil
}

type orderWriter struct{ s *Store }

func (w orderWriter) ProductPrices(_ context.Context, ids []uint64) (map[uint64]model.PricedProduct, error) {
	out := make(map[uint64]model.PricedProduct, len(ids))
	for _, id := range ids {
		if p, ok := w.s.products[id]; ok {
			out[id] = model.PricedProduct{ID: p.ID, Name: p.Name, PriceCents: p.PriceCents, Currency: p.Currency}
		}
	}
	return out, nil
}

func (w orderWriter) InsertOrder(_ context.Context, o model.NewOrder) (uint64, error) {
	if err := w.s.failed("InsertOrder"); err != nil {
		return 0, err
	}
	row := &orderRow{order: model.Order{
		ID:            w.s.next(),
		UserID:        o.UserID,
		Status:        model.OrderPending,
		PaymentStatus: model.PaymentPending,
		TotalCents:    o.TotalCents,
		Currency:      o.Currency,
		VATRate:       o.VATRate,
		Name:          optional(o.Address.Name),
		Email:         optional(o.Address.Email),
		AddressLine1:  optional(o.Address.Line1),
		City:          optional(o.Address.City),
		PostalCode:    optional(o.Address.PostalCode),
		CreatedAt:     w.s.Now(),
	}}
	w.s.orders[row.order.ID] = row
	return row.order.ID, nil
}

func (w orderWriter) InsertOrderItems(_ context.Context, orderID uint64, items []model.NewOrderItem) error {
	if err := w.s.failed("InsertOrderItems"); err != nil {
		return err
	}
	row, ok := w.s.orders[orderID]
	if !ok {
		return repository.ErrInvalidReference
	}
	// copy so a rolled back transaction leaves the saved row untouched
	cp := *row
	cp.items = append(append([]model.NewOrderItem(nil), row.items...), items...)
	w.s.orders[orderID] = &cp
	return nil
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func (s *Store) OrderByID(_ context.Context, id uint64) (model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.orders[id]
	if !ok {
		return model.Order{}, repository.ErrNotFound
	}
	return row.order, nil
}

func (s *Store) OrdersByUser(_ context.Context, userID uint64) ([]model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failed("OrdersByUser"); err != nil {
		return nil, err
	}
	out := make([]model.Order, 0)
	for _, row := range s.orders {
		if row.order.UserID == nil || *row.order.UserID != userID {
			continue
		}
		o := row.order
		o.Items = make([]model.OrderItem, 0, len(row.items))
		for _, it := range row.items {
			oi := model.OrderItem{ProductID: it.ProductID, Quantity: it.Quantity, PriceCents: it.PriceCents}
			if p, ok := s.products[it.ProductID]; ok {
				name, slug := p.Name, p.Slug
				oi.Name, oi.Slug, oi.Image = &name, &slug, s.primaryImage(p.ID)
			}
			o.Items = append(o.Items, oi)
		}
		out = append(out, o)
	}
	sortNewest(out, func(o model.Order) (time.Time, uint64) { return o.CreatedAt, o.ID })
	return out, nil
}

func sortNewest[T any](xs []T, key func(T) (time.Time, uint64)) {
	sort.Slice(xs, func(i, j int) bool {
		ti, ii := key(xs[i])
		tj, ij := key(xs[j])
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return ii > ij
	})
}

func (s *Store) ListOrders(_ context.Context, f model.OrderFilter) (model.OrderPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []model.OrderSummary
	for _, row := range s.orders {
		o := row.order
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		if f.PaymentStatus != "" && o.PaymentStatus != f.PaymentStatus {
			continue
		}
		sum := model.OrderSummary{
			ID: o.ID, UserID: o.UserID, Status: o.Status, PaymentStatus: o.PaymentStatus,
			TotalCents: o.TotalCents, Currency: o.Currency, Email: o.Email, CreatedAt: o.CreatedAt,
		}
		if o.UserID != nil {
			if u, ok := s.users[*o.UserID]; ok {
				email := u.Email
				sum.Email = &email
			}
		}
		all = append(all, sum)
	}
	sortNewest(all, func(o model.OrderSummary) (time.Time, uint64) { return o.CreatedAt, o.ID })
	page := model.OrderPage{Orders: []model.OrderSummary{}, Total: len(all), Page: f.Page, PageSize: f.PageSize}
	start := (f.Page - 1) * f.PageSize
	for i := start; i < len(all) && i < start+f.PageSize; i++ {
		page.Orders = append(page.Orders, all[i])
	}
	return page, nil
}

func (s *Store) UpdateOrderStatus(_ context.Context, id uint64, u model.OrderUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.orders[id]
	if !ok {
		return repository.ErrNotFound
	}
	if u.Status != nil {
		row.order.Status = *u.Status
	}
	if u.PaymentStatus != nil {
		row.order.PaymentStatus = *u.PaymentStatus
	}
	return nil
}

func (s *Store) MarkOrderPaid(_ context.Context, id uint64, paymentIntentID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failed("MarkOrderPaid"); err != nil {
		return false, err
	}
	row, ok := s.orders[id]
	if !ok || row.order.PaymentStatus == model.PaymentPaid {
		return false, nil
	}
	row.order.Status, row.order.PaymentStatus = model.OrderPaid, model.PaymentPaid
	row.order.StripePaymentIntentID = optional(paymentIntentID)
	return true, nil
}

func (s *Store) CancelStalePending(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, row := range s.orders {
		o := &row.order
		if o.Status == model.OrderPending && o.PaymentStatus == model.PaymentPending && o.CreatedAt.Before(before) {
			o.Status, o.PaymentStatus = model.OrderCancelled, model.PaymentExpired
			n++
		}
	}
	return n, nil
}

// Order returns a stored order with its raw lines.
func (s *Store) Order(id uint64) (model.Order, []model.NewOrderItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.orders[id]
	if !ok {
		return model.Order{}, nil, false
	}
	return row.order, append([]model.NewOrderItem(nil), row.items...), true
}

// OrderCount reports how many orders exist.
func (s *Store) OrderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}
