package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/namnamchicken/shop-backend/api/controllers"
	cartcontrollers "github.com/namnamchicken/shop-backend/api/controllers/cart"
	ordercontrollers "github.com/namnamchicken/shop-backend/api/controllers/orders"
	paymentcontrollers "github.com/namnamchicken/shop-backend/api/controllers/payments"
	webhookcontrollers "github.com/namnamchicken/shop-backend/api/controllers/webhooks"
	"github.com/namnamchicken/shop-backend/api/middleware"
	cartsvc "github.com/namnamchicken/shop-backend/internal/cart"
	order "github.com/namnamchicken/shop-backend/internal/orders"
	payment "github.com/namnamchicken/shop-backend/internal/payments"
	product "github.com/namnamchicken/shop-backend/internal/products"
	"github.com/namnamchicken/shop-backend/pkg/config"
	"github.com/namnamchicken/shop-backend/pkg/db"
	"github.com/namnamchicken/shop-backend/pkg/logger"
	"github.com/namnamchicken/shop-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisP redis.Pinger,
	registry *prometheus.Registry,
	productService product.Service,
	cartService cartsvc.Service,
	orderService order.Service,
	paymentService payment.Service,
	webhookGuard *payment.IdempotencyGuard,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP))
	})

	if registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/mercadopago", webhookcontrollers.MercadoPago(paymentService, webhookGuard, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ProductList(productService, logg))
			r.Get("/{productID}", controllers.ProductGet(productService, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Session(logg))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", cartcontrollers.Get(cartService, logg))
				r.Post("/clear", cartcontrollers.Clear(cartService, logg))
				r.Post("/items", cartcontrollers.UpsertItem(cartService, logg))
				r.Delete("/items/{productID}", cartcontrollers.RemoveItem(cartService, logg))
				r.Post("/coupon", cartcontrollers.ApplyCoupon(cartService, logg))
				r.Delete("/coupon", cartcontrollers.RemoveCoupon(cartService, logg))
			})

			r.Route("/orders", func(r chi.Router) {
				r.Post("/", ordercontrollers.Checkout(orderService, logg))
				r.Get("/{orderID}", ordercontrollers.Get(orderService, logg))
				r.Post("/{orderID}/payment", ordercontrollers.RetryPayment(orderService, logg))
			})
		})

		r.Route("/payments", func(r chi.Router) {
			r.Get("/success/{orderID}", paymentcontrollers.Success(paymentService, logg))
			r.Get("/failure/{orderID}", paymentcontrollers.Failure(paymentService, logg))
			r.Get("/pending/{orderID}", paymentcontrollers.Pending(paymentService, logg))
			r.HandleFunc("/ipn", webhookcontrollers.MercadoPagoIPN(paymentService, webhookGuard, logg))
		})
	})

	return r
}
