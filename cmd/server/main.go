package main // Entry point package

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/cliora-storefront/internal/config"
	"github.com/iliyamo/cliora-storefront/internal/database"
	"github.com/iliyamo/cliora-storefront/internal/handler"
	"github.com/iliyamo/cliora-storefront/internal/middleware"
	"github.com/iliyamo/cliora-storefront/internal/obs"
	"github.com/iliyamo/cliora-storefront/internal/payment"
	"github.com/iliyamo/cliora-storefront/internal/queue"
	"github.com/iliyamo/cliora-storefront/internal/repository"
	"github.com/iliyamo/cliora-storefront/internal/router"
	"github.com/iliyamo/cliora-storefront/internal/service"
	"github.com/iliyamo/cliora-storefront/internal/storage"
	"github.com/iliyamo/cliora-storefront/internal/utils"
)

func main() {
	cfg := config.Load() // Load environment config

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := obs.InitTracer(ctx, cfg.Tracing.Endpoint, cfg.Tracing.ServiceName, cfg.Env)
	if err != nil {
		log.Fatalf("tracing: %v", err)
	}

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	// Redis is optional: without it the cache and rate limiter pass through.
	rdb := config.NewRedisClient(cfg.Redis)
	if rdb == nil {
		slog.Warn("redis unavailable; cache and rate limiting disabled")
	} else {
		defer rdb.Close()
	}

	e := echo.New() // Create Echo instance
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLogger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     []string{cfg.FrontendURL},
		AllowCredentials: true,
		AllowHeaders:     []string{echo.HeaderContentType, echo.HeaderAuthorization},
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
	}))

	var images service.ImageStore
	switch cfg.Images.Store {
	case "s3":
		s3store, err := storage.NewS3(ctx, cfg.Images.S3Bucket, cfg.Images.S3Prefix)
		if err != nil {
			log.Fatalf("s3: %v", err)
		}
		images = s3store
	default:
		local, err := storage.NewLocal(cfg.Images.UploadDir)
		if err != nil {
			log.Fatalf("uploads: %v", err)
		}
		images = local
		router.RegisterUploads(e, cfg.Images.UploadDir)
	}

	var events service.EventPublisher
	if cfg.Events.Enabled {
		events = queue.NewPublisher(cfg.Events.RabbitMQURL)
		if cfg.Events.Consume {
			go queue.StartOrderPaidConsumer(ctx, cfg.Events.RabbitMQURL, filepath.Join("logs", "orders.log"))
		}
	}

	issuer := utils.NewTokenIssuer(cfg.JWTSecret, cfg.AccessTTL(), cfg.RefreshTTL())
	users := repository.NewUserRepo(db)
	orderRepo := repository.NewOrderRepo(db)

	authSvc := service.NewAuthService(users, repository.NewTokenRepo(db), issuer, cfg.BcryptCost)
	catalogSvc := service.NewCatalogService(repository.NewProductRepo(db), images, middleware.PurgeCache(rdb, cfg.Cache.Prefix), cfg.Currency)
	cartSvc := service.NewCartService(repository.NewCartRepo(db, cfg.Currency))
	gateway := payment.NewGateway(cfg.StripeSecretKey, cfg.FrontendURL, nil)
	checkoutSvc := service.NewCheckoutService(orderRepo, gateway, cfg.Currency, cfg.VATRate)
	orderSvc := service.NewOrderService(orderRepo, events, cfg.PendingOrderTTL)

	products := handler.NewProductHandler(catalogSvc)
	orders := handler.NewOrderHandler(orderSvc)

	router.RegisterRoutes(e) // Register application routes
	router.RegisterAuth(e, handler.NewAuthHandler(authSvc, cfg.Production(), cfg.RefreshTTL()), issuer,
		middleware.NewTokenBucket(cfg.Limit, rdb, nil))
	router.RegisterCatalog(e, products, middleware.NewRedisCache(cfg.Cache, rdb))
	router.RegisterCustomer(e,
		handler.NewCartHandler(cartSvc),
		handler.NewCheckoutHandler(checkoutSvc, orderSvc, payment.NewWebhook(cfg.StripeWebhookSecret)),
		orders, issuer)
	router.RegisterAdmin(e, products, orders, issuer)

	if cfg.PendingOrderTTL > 0 {
		go orderSvc.RunSweeper(ctx, cfg.SweepEvery)
	}

	addr := ":" + cfg.Port // Address string with port
	go func() {
		slog.Info("listening", "addr", addr, "env", cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err) // Log and exit if server fails
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(sctx); err != nil {
		slog.Error("http shutdown", "err", err)
	}
	if err := shutdownTracer(sctx); err != nil {
		slog.Error("tracer shutdown", "err", err)
	}
}
