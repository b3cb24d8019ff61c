package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/namnamchicken/shop-backend/api/routes"
	"github.com/namnamchicken/shop-backend/internal/cart"
	coupon "github.com/namnamchicken/shop-backend/internal/coupons"
	notification "github.com/namnamchicken/shop-backend/internal/notifications"
	order "github.com/namnamchicken/shop-backend/internal/orders"
	payment "github.com/namnamchicken/shop-backend/internal/payments"
	product "github.com/namnamchicken/shop-backend/internal/products"
	"github.com/namnamchicken/shop-backend/pkg/config"
	"github.com/namnamchicken/shop-backend/pkg/db"
	"github.com/namnamchicken/shop-backend/pkg/logger"
	"github.com/namnamchicken/shop-backend/pkg/mercadopago"
	"github.com/namnamchicken/shop-backend/pkg/metrics"
	"github.com/namnamchicken/shop-backend/pkg/migrate"
	"github.com/namnamchicken/shop-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	productRepo := product.NewRepository(dbClient.DB())
	couponRepo := coupon.NewRepository(dbClient.DB())
	orderRepo := order.NewRepository(dbClient.DB())

	productService, err := product.NewService(productRepo)
	requireResource(logg, "product service", err)

	couponService, err := coupon.NewService(couponRepo)
	requireResource(logg, "coupon service", err)

	cartStore, err := cart.NewStore(redisClient, cfg.Cart.SessionTTL)
	requireResource(logg, "cart store", err)

	cartService, err := cart.NewService(cartStore, productRepo, couponService)
	requireResource(logg, "cart service", err)

	var sender notification.Sender
	if cfg.SMTP.Host != "" {
		sender, err = notification.NewSMTPSender(cfg.SMTP)
	} else {
		sender, err = notification.NewLogSender(logg)
	}
	requireResource(logg, "mail sender", err)

	notificationService, err := notification.NewService(sender, logg)
	requireResource(logg, "notification service", err)

	var mpClient *mercadopago.Client
	if cfg.MercadoPago.Enabled() {
		mpClient, err = mercadopago.NewClient(
			cfg.MercadoPago.AccessToken,
			mercadopago.WithBaseURL(cfg.MercadoPago.BaseURL),
		)
		requireResource(logg, "mercadopago client", err)
	} else {
		logg.Warn(context.Background(), "mercadopago not configured, checkout will confirm payments synchronously")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	paymentMetrics := metrics.NewPaymentMetrics(registry)

	var reader payment.GatewayReader
	if mpClient != nil {
		reader = mpClient
	}
	paymentService, err := payment.NewService(
		orderRepo,
		productRepo,
		dbClient,
		cartService,
		notificationService,
		reader,
		paymentMetrics,
		logg,
	)
	requireResource(logg, "payment service", err)

	var gateway order.PaymentGateway
	if mpClient != nil {
		gateway = mpClient
	}
	orderService, err := order.NewService(
		orderRepo,
		dbClient,
		cartService,
		gateway,
		paymentService,
		cfg.MercadoPago,
		logg,
	)
	requireResource(logg, "order service", err)

	webhookGuard, err := payment.NewIdempotencyGuard(redisClient, cfg.Webhook.IdempotencyTTL, "mercadopago")
	requireResource(logg, "webhook idempotency guard", err)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			registry,
			productService,
			cartService,
			orderService,
			paymentService,
			webhookGuard,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func requireResource(logg *logger.Logger, name string, err error) {
	if err != nil {
		logg.Error(context.Background(), "failed to create "+name, err)
		os.Exit(1)
	}
}
