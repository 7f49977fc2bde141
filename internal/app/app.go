package app

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/checkout"
	"github.com/xenking/storefront/internal/events"
	"github.com/xenking/storefront/internal/handler"
	"github.com/xenking/storefront/internal/paypal"
	"github.com/xenking/storefront/internal/repository"
	"github.com/xenking/storefront/pkg/health"
	"github.com/xenking/storefront/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server and the outbox relay,
// and handles graceful shutdown. It is the single wiring point for the
// application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck("postgres", pool))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.AddLivenessCheck("gc", time.Second, health.GCMaxPauseCheck(time.Second))

	var checkoutOpts []checkout.Option
	checkoutOpts = append(checkoutOpts, checkout.WithMeterProvider(m.MeterProvider()))

	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() { _ = rdb.Close() }()

		// Lookups fall back to the ledger when redis is down.
		healthSvc.AddCheck(true, "redis", 2*time.Second, health.Thresholds{Failure: 5, Success: 1},
			func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
		checkoutOpts = append(checkoutOpts, checkout.WithCache(repository.NewOrderCache(rdb, cfg.Redis.TTL)))
		lg.Info("Order cache enabled", zap.String("redis", cfg.Redis.Addr))
	}

	var relay *events.Relay
	if brokers := events.ParseBrokers(cfg.Kafka.Brokers); len(brokers) > 0 {
		publisher, err := events.NewKafkaPublisher(events.KafkaConfig{
			Brokers:      brokers,
			Topic:        cfg.Kafka.Topic,
			WriteTimeout: cfg.Kafka.WriteTimeout,
		})
		if err != nil {
			return errors.Wrap(err, "create kafka publisher")
		}
		defer func() { _ = publisher.Close() }()

		relay, err = events.NewRelay(repository.NewOutboxRepository(pool), publisher, events.RelayConfig{
			Interval:  cfg.Kafka.RelayInterval,
			BatchSize: cfg.Kafka.RelayBatch,
		}, events.WithMeterProvider(m.MeterProvider()))
		if err != nil {
			return errors.Wrap(err, "create outbox relay")
		}
		healthSvc.AddReadinessCheck("kafka", 5*time.Second, kafkaCheck(brokers[0]))
	} else {
		lg.Warn("Kafka brokers not configured, order events stay in the outbox")
	}

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	baseURL := cfg.PayPal.BaseURL
	if baseURL == "" {
		baseURL = paypal.BaseURLFor(cfg.PayPal.Env)
	}
	gateway := paypal.New(ctx, paypal.Config{
		ClientID:     cfg.PayPal.ClientID,
		ClientSecret: cfg.PayPal.Secret,
		BaseURL:      baseURL,
		Timeout:      cfg.PayPal.Timeout,
	}, paypal.WithTracerProvider(m.TracerProvider()))

	checkoutSvc, err := checkout.NewService(repository.NewStore(pool), gateway, checkout.Config{
		Currency:     cfg.Checkout.Currency,
		BrandName:    cfg.PayPal.BrandName,
		ReturnURL:    cfg.PayPal.ReturnURL,
		CancelURL:    cfg.PayPal.CancelURL,
		ReserveStock: cfg.Checkout.ReserveStock,
	}, checkoutOpts...)
	if err != nil {
		return errors.Wrap(err, "create checkout service")
	}

	authn := auth.NewAuthenticator(repository.NewAPIKeyRepository(pool), []byte(cfg.APIKeyPepper))
	h := handler.New(handler.Config{FrontendURL: cfg.FrontendURL}, checkoutSvc, authn)

	// Route-aware middlewares run inside chi so the matched pattern is known.
	router := chi.NewRouter()
	router.Use(
		httpmiddleware.LogRequests(),
		httpmiddleware.Labeler(),
	)
	router.Get("/livez", healthSvc.LiveEndpoint)
	router.Get("/readyz", healthSvc.ReadyEndpoint)

	apiConfig := huma.DefaultConfig("Storefront API", "1.0.0")
	apiConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		handler.SecuritySchemeName: handler.SecurityScheme(),
	}
	h.Register(humachi.New(router, apiConfig))

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(router,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization", handler.APIKeyHeader},
				ExposeHeaders:    []string{httpmiddleware.RequestIDHeader},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimit(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.RequestID(),
			httpmiddleware.Instrument("storefront-api", m),
		),
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		return nil
	})
	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})
	if relay != nil {
		g.Go(func() error {
			return relay.Run(ctx)
		})
	}
	return g.Wait()
}

// kafkaCheck dials a broker to confirm it accepts connections.
func kafkaCheck(broker string) health.CheckFunc {
	return func(ctx context.Context) error {
		conn, err := kafka.DialContext(ctx, "tcp", broker)
		if err != nil {
			return errors.Wrapf(err, "dial kafka %s", broker)
		}
		return conn.Close()
	}
}
