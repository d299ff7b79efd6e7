package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	redis "github.com/redis/go-redis/v9"

	"github.com/bazaar-dev/backend-bazaar/internal/cart"
	"github.com/bazaar-dev/backend-bazaar/internal/catalog"
	"github.com/bazaar-dev/backend-bazaar/internal/checkout"
	"github.com/bazaar-dev/backend-bazaar/internal/config"
	"github.com/bazaar-dev/backend-bazaar/internal/health"
	"github.com/bazaar-dev/backend-bazaar/internal/obs"
	"github.com/bazaar-dev/backend-bazaar/internal/order"
	"github.com/bazaar-dev/backend-bazaar/internal/payment"
	"github.com/bazaar-dev/backend-bazaar/internal/promo"
	"github.com/bazaar-dev/backend-bazaar/internal/ratelimit"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("env", cfg.AppEnv).Logger()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "bazaar-api"

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}

	validate := validator.New()

	catalogStore := catalog.PgStore{Pool: pool}
	catalogSvc, err := catalog.NewService(catalog.ServiceConfig{
		Store:        catalogStore,
		Cache:        catalog.NewCache(redisClient, cfg.CatalogCacheTTL),
		DefaultLimit: cfg.CatalogDefaultLimit,
		MaxLimit:     cfg.CatalogMaxLimit,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise catalog service")
	}
	catalogHandler := &catalog.Handler{Svc: catalogSvc}

	promoSvc := &promo.Service{Store: promo.PgStore{Pool: pool}}
	promoAdmin := &promo.AdminHandler{Store: promo.PgStore{Pool: pool}, Validate: validate}

	cartSvc := &cart.Service{
		Store:    cart.PgStore{Pool: pool},
		Products: catalogStore,
		Coupons:  promoSvc,
	}
	cartHandler := &cart.Handler{Svc: cartSvc, Validate: validate}

	orderSvc := &order.Service{Store: order.PgStore{Pool: pool}}
	orderHandler := &order.Handler{Svc: orderSvc}
	orderAdmin := &order.AdminHandler{Svc: orderSvc}

	checkoutSvc := &checkout.Service{
		Carts:   cartSvc,
		Coupons: promoSvc,
		Orders:  order.PgStore{Pool: pool},
	}
	checkoutHandler := &checkout.Handler{Svc: checkoutSvc, Validate: validate}

	var provider payment.Provider
	switch cfg.PaymentProvider {
	case "sandbox", "":
		provider = &payment.Sandbox{Secret: cfg.AppEnv + "-sandbox"}
	default:
		logger.Warn().Str("provider", cfg.PaymentProvider).Msg("unknown payment provider, using sandbox")
		provider = &payment.Sandbox{Secret: cfg.AppEnv + "-sandbox"}
	}
	paymentSvc := &payment.Service{
		Provider: provider,
		Store:    payment.RedisStore{Client: redisClient, TTL: cfg.PaymentIntentTTL},
		Orders:   paymentOrders{store: order.PgStore{Pool: pool}, svc: orderSvc},
		Coupons:  promoSvc,
	}
	paymentHandler := &payment.Handler{Svc: paymentSvc}

	couponLimit := ratelimit.Handler{
		Limiter: ratelimit.Limiter{Client: redisClient, Prefix: "rl:coupon:"},
		Config: ratelimit.Config{
			Key:    func(r *http.Request) string { return r.RemoteAddr },
			Window: cfg.CouponApplyWindow,
			Max:    cfg.CouponApplyMax,
		},
		OnError: func(err error) { logger.Error().Err(err).Msg("rate limiter") },
	}

	httpMetrics := obs.NewHTTPMetrics("bazaar", nil)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(httpMetrics.Middleware)
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Session-Token"},
		ExposedHeaders:   []string{"X-Total-Count"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Handle("/metrics", promhttp.Handler())

	healthHandler := health.Handler{Checker: readinessChecker{db: pool, redis: redisClient}}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Get("/categories", catalogHandler.Categories)
		v.Get("/products", catalogHandler.Products)
		v.Get("/products/{slug}", catalogHandler.ProductDetail)

		v.Route("/carts", func(c chi.Router) {
			c.Post("/", cartHandler.CreateCart)
			c.Route("/{cartId}", func(one chi.Router) {
				one.Get("/", cartHandler.GetCart)
				one.Post("/items", cartHandler.AddItem)
				one.Patch("/items/{itemId}", cartHandler.UpdateItem)
				one.Delete("/items/{itemId}", cartHandler.RemoveItem)
				one.Post("/currency", cartHandler.SwitchCurrency)
				one.Post("/purge-unpriced", cartHandler.PurgeUnpriced)
				one.With(couponLimit.Middleware).Post("/apply-coupon", cartHandler.ApplyCoupon)
				one.Delete("/coupon", cartHandler.RemoveCoupon)
			})
		})

		v.Post("/checkout", checkoutHandler.Checkout)

		v.Get("/orders", orderHandler.List)
		v.Get("/orders/{orderId}", orderHandler.Get)
		v.Post("/orders/{orderId}/cancel", orderHandler.Cancel)

		v.Route("/payments", func(p chi.Router) {
			p.Post("/intents", paymentHandler.CreateIntent)
			p.Post("/webhook", paymentHandler.Webhook)
		})

		v.Route("/admin", func(admin chi.Router) {
			admin.Post("/offers", promoAdmin.CreateOffer)
			admin.With(couponLimit.Middleware).Post("/offers/preview", promoAdmin.Preview)
			admin.Get("/offers", promoAdmin.ListOffers)
			admin.Get("/offers/code/{code}", promoAdmin.GetOfferByCode)
			admin.Get("/offers/{offerId}", promoAdmin.GetOffer)
			admin.Put("/offers/{offerId}", promoAdmin.UpdateOffer)
			admin.Delete("/offers/{offerId}", promoAdmin.DeactivateOffer)
			admin.Patch("/orders/{orderId}/status", orderAdmin.PatchStatus)
		})
	})

	srv := &http.Server{
		Addr:    cfg.HTTPAddr(),
		Handler: r,
	}

	logger.Info().Str("addr", srv.Addr).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

// paymentOrders adapts the order store and service to the payment interface:
// raw reads come from the store, transitions go through lifecycle checks.
type paymentOrders struct {
	store order.PgStore
	svc   *order.Service
}

func (p paymentOrders) GetOrder(ctx context.Context, id uuid.UUID) (order.Order, error) {
	return p.store.GetOrder(ctx, id)
}

func (p paymentOrders) Transition(ctx context.Context, id uuid.UUID, next order.Status, note string) (order.Order, error) {
	return p.svc.Transition(ctx, id, next, note)
}

type readinessChecker struct {
	db    *pgxpool.Pool
	redis *redis.Client
}

func (c readinessChecker) PingDB(ctx context.Context, timeout time.Duration) error {
	if c.db == nil {
		return errors.New("db not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.db.Ping(ctx)
}

func (c readinessChecker) PingRedis(ctx context.Context, timeout time.Duration) error {
	if c.redis == nil {
		return errors.New("redis not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.redis.Ping(ctx).Err()
}
