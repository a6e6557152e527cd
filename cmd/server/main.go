package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"

	"github.com/Skotchmaster/storefront/internal/es"
	"github.com/Skotchmaster/storefront/internal/httpserver"
	"github.com/Skotchmaster/storefront/internal/idempotency"
	"github.com/Skotchmaster/storefront/internal/mykafka"
	"github.com/Skotchmaster/storefront/internal/notify"
	"github.com/Skotchmaster/storefront/internal/repo"
	"github.com/Skotchmaster/storefront/internal/service"
	"github.com/Skotchmaster/storefront/pkg/config"
	pkgdb "github.com/Skotchmaster/storefront/pkg/db"
	jwthelp "github.com/Skotchmaster/storefront/pkg/jwt"
	"github.com/Skotchmaster/storefront/pkg/logging"
	middleware "github.com/Skotchmaster/storefront/pkg/middleware/auth"
	"github.com/Skotchmaster/storefront/pkg/middleware/csrf"
	loggingmw "github.com/Skotchmaster/storefront/pkg/middleware/logging"
	"github.com/Skotchmaster/storefront/pkg/telemetry"
)

func main() {
	cfg := config.Load()
	config.MustNonEmpty(cfg.DatabaseURL, "DATABASE_URL")
	config.MustNonEmptyBytes(cfg.JWTAccessSecret, "JWT_SECRET")
	config.MustNonEmptyBytes(cfg.JWTRefreshSecret, "JWT_REFRESH_SECRET")
	config.MustPositive(cfg.ServerPort, "SERVER_PORT")

	logger := logging.New(cfg.LogLevel).With("service", cfg.ServiceName)
	slog.SetDefault(logger)
	ctx := logging.IntoContext(context.Background(), logger)

	shutdownTracing, err := telemetry.Setup(ctx, cfg.ServiceName, cfg.TracingExporter)
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}

	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	db, err := pkgdb.Open(openCtx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		log.Fatalf("db open: %v", err)
	}
	if err := repo.Migrate(db); err != nil {
		log.Fatalf("db migrate: %v", err)
	}
	r := repo.New(db)

	var events service.EventPublisher = service.NopPublisher{}
	var mailer notify.Mailer = notify.LogMailer{}
	var producer *mykafka.Producer
	if len(cfg.KafkaBrokers) > 0 {
		producer, err = mykafka.NewProducer(cfg.KafkaBrokers)
		if err != nil {
			log.Fatalf("kafka: %v", err)
		}
		events = producer
		mailer = &notify.KafkaMailer{Events: producer}
	} else {
		logger.Warn("kafka_disabled", "reason", "KAFKA_BROKERS is empty")
	}

	catalog := &service.CatalogService{Repo: r, Events: events, LowStockThreshold: cfg.LowStockThreshold}
	if cfg.ESURL != "" {
		client, err := es.NewClient(ctx, es.Config{URL: cfg.ESURL, User: cfg.ESUser, Password: cfg.ESPassword})
		if err != nil {
			// search falls back to database matching
			logger.Error("es_unavailable", "error", err)
		} else {
			index := es.NewProductIndex(client, cfg.ESIndex)
			catalog.Index, catalog.Searcher = index, index
		}
	} else {
		logger.Warn("es_disabled", "reason", "ES_URL is empty")
	}

	var idem echo.MiddlewareFunc
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = idempotency.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error("redis_unavailable", "error", err)
		} else {
			idem = idempotency.Middleware(idempotency.NewRedisStore(redisClient))
		}
	} else {
		logger.Warn("idempotency_disabled", "reason", "REDIS_URL is empty")
	}

	notifier := &notify.Notifier{Mailer: mailer, From: cfg.MailFrom, ShopName: cfg.ServiceName}
	carts := &service.CartService{Repo: r, Events: events}
	orders := &service.OrderService{
		Repo:     r,
		Events:   events,
		Notifier: notifier,
		Tracer:   otel.Tracer("github.com/Skotchmaster/storefront/order"),
	}
	auth := &service.AuthService{
		Repo:          r,
		AccessSecret:  cfg.JWTAccessSecret,
		RefreshSecret: cfg.JWTRefreshSecret,
		Carts:         carts,
		Events:        events,
		Notifier:      notifier,
	}
	jwthelp.Secure = cfg.CookieSecure

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = httpserver.ErrorHandler
	e.Pre(echomw.RemoveTrailingSlash())
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(echomw.Secure())
	e.Use(loggingmw.RequestLogger(logger))
	if len(cfg.AllowedOrigins) > 0 {
		e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
			AllowOrigins:     cfg.AllowedOrigins,
			AllowCredentials: true,
			AllowHeaders: []string{
				echo.HeaderContentType, "X-CSRF-Token", idempotency.HeaderKey, httpserver.SessionHeader,
			},
			ExposeHeaders: []string{httpserver.SideEffectsHeader, idempotency.HeaderReplayed, "X-CSRF-Token"},
		}))
	} else {
		e.Use(echomw.CORS())
	}

	httpserver.Register(e, &httpserver.Deps{
		AuthHandler:    &httpserver.AuthHTTP{Svc: auth},
		CatalogHandler: &httpserver.CatalogHTTP{Svc: catalog},
		CartHandler:    &httpserver.CartHTTP{Svc: carts},
		OrderHandler:   &httpserver.OrderHTTP{Svc: orders},
		AddressHandler: &httpserver.AddressHTTP{Svc: &service.AddressService{Repo: r}},
		UserHandler:    &httpserver.UserHTTP{Svc: &service.UserService{Repo: r}},
		AuthMW:         middleware.NewAutoRefreshMiddleware(cfg.JWTAccessSecret, auth),
		Idempotency:    idem,
		Ready:          r.Ping,
	})

	if cfg.CSRFEnabled {
		csrfCfg := csrf.DefaultConfig()
		csrfCfg.Secure = cfg.CookieSecure
		csrfCfg.TrustedOrigins = cfg.AllowedOrigins
		csrfCfg.SkipRoutes = httpserver.CSRFExemptRoutes(e)
		e.Use(csrf.Middleware(csrfCfg))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           otelhttp.NewHandler(e, cfg.ServiceName),
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		ReadHeaderTimeout: 3 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("server_listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server_shutdown_error", "error", err)
	}
	if producer != nil {
		if err := producer.Close(); err != nil {
			logger.Error("kafka_close_error", "error", err)
		}
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error("tracing_shutdown_error", "error", err)
	}
	_ = pkgdb.Close(db)

	logger.Info("server_stopped")
}
