package service

import (
	"context"
	"io"
	"time"

	"github.com/iliyamo/cliora-storefront/internal/model"
	"github.com/iliyamo/cliora-storefront/internal/queue"
	"github.com/iliyamo/cliora-storefront/internal/repository"
)

// UserStore is satisfied by *repository.UserRepo.
type UserStore interface {
	CreateUser(ctx context.Context, name, email, passwordHash string, role model.Role) (model.User, error)
	UserByEmail(ctx context.Context, email string) (model.User, error)
	UserByID(ctx context.Context, id uint64) (model.User, error)
}

// RefreshTokenStore is satisfied by *repository.TokenRepo.
type RefreshTokenStore interface {
	StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error
	LiveRefresh(ctx context.Context, tokenHash string) (uint64, error)
	RevokeRefresh(ctx context.Context, tokenHash string) error
}

// CartStore is satisfied by *repository.CartRepo.
type CartStore interface {
	CartLines(ctx context.Context, userID uint64) ([]model.CartItem, error)
	CartTx(ctx context.Context, fn func(repository.CartWriter) error) error
}

// OrderStore is satisfied by *repository.OrderRepo.
type OrderStore interface {
	OrderTx(ctx context.Context, fn func(repository.OrderWriter) error) error
	OrderByID(ctx context.Context, id uint64) (model.Order, error)
	OrdersByUser(ctx context.Context, userID uint64) ([]model.Order, error)
	ListOrders(ctx context.Context, f model.OrderFilter) (model.OrderPage, error)
	UpdateOrderStatus(ctx context.Context, id uint64, u model.OrderUpdate) error
	MarkOrderPaid(ctx context.Context, id uint64, paymentIntentID string) (bool, error)
	CancelStalePending(ctx context.Context, before time.Time) (int64, error)
}

// CatalogStore is satisfied by *repository.ProductRepo.
type CatalogStore interface {
	SearchProducts(ctx context.Context, f model.ProductFilter) (model.ProductPage, error)
	ProductByID(ctx context.Context, id uint64) (model.Product, error)
	Categories(ctx context.Context) ([]model.Category, error)
	CreateProduct(ctx context.Context, in model.ProductInput, images []string) (model.Product, error)
	UpdateProduct(ctx context.Context, id uint64, in model.ProductInput, images []string) (model.Product, error)
	DeleteProduct(ctx context.Context, id uint64) error
}

// PaymentGateway creates hosted payment pages.  The returned string is the
// URL the buyer is redirected to.
type PaymentGateway interface {
	CreateCheckoutSession(ctx context.Context, s model.PaymentSession) (string, error)
}

// EventPublisher is satisfied by *queue.Publisher.
type EventPublisher interface {
	PublishOrderPaid(ctx context.Context, ev queue.OrderPaidEvent) error
}

// ImageStore persists an uploaded product image and returns its public path.
type ImageStore interface {
	Save(ctx context.Context, r io.Reader) (string, error)
}
