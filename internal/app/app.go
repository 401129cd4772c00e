package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/Abdurahmanit/GroupProject/catalog-service/internal/adapter/http/handler"
	"github.com/Abdurahmanit/GroupProject/catalog-service/internal/adapter/http/router"
	redisadapter "github.com/Abdurahmanit/GroupProject/catalog-service/internal/adapter/kvstore/redis"
	natsadapter "github.com/Abdurahmanit/GroupProject/catalog-service/internal/adapter/messaging/nats"
	"github.com/Abdurahmanit/GroupProject/catalog-service/internal/adapter/repository/cache"
	"github.com/Abdurahmanit/GroupProject/catalog-service/internal/adapter/repository/mongodb"
	"github.com/Abdurahmanit/GroupProject/catalog-service/internal/adapter/storage/s3"
	"github.com/Abdurahmanit/GroupProject/catalog-service/internal/config"
	"github.com/Abdurahmanit/GroupProject/catalog-service/internal/listing/domain"
	"github.com/Abdurahmanit/GroupProject/catalog-service/internal/listing/usecase"
	"github.com/Abdurahmanit/GroupProject/catalog-service/internal/mailer"
	"github.com/Abdurahmanit/GroupProject/catalog-service/internal/platform/logger"
	"github.com/Abdurahmanit/GroupProject/catalog-service/internal/platform/metrics"
	"github.com/Abdurahmanit/GroupProject/catalog-service/internal/platform/tracer"
)

// App is the catalog server process.
type App struct {
	cfg         *config.Config
	log         *logger.Logger
	server      *http.Server
	listings    *usecase.ListingUsecase
	metrics     *metrics.MetricsManager
	tracer      *sdktrace.TracerProvider
	mongoClient *mongo.Client
	redisClient *redis.Client
	natsConn    *nats.Conn
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	appLogger := logger.New(&logger.LoggerConfig{Level: cfg.Log.Level, Format: cfg.Log.Format})
	appLogger.Info("Logger initialized", "service", cfg.ServiceName, "http_port", cfg.HTTP.Port)
	if cfg.InsecureJWTSecret() {
		appLogger.Warn("JWT secret is the built-in development default; set CATALOG_JWT_SECRET")
	}

	tp, err := tracer.InitTracer(ctx, cfg.ServiceName, cfg.Tracing.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}
	m := metrics.NewMetricsManager("catalog")

	mongoClient, db, err := mongodb.Connect(ctx, cfg.Mongo, appLogger)
	if err != nil {
		return nil, err
	}
	if err := mongodb.EnsureIndexes(ctx, db); err != nil {
		appLogger.Warn("Failed to ensure MongoDB indexes", "error", err.Error())
	}

	a := &App{cfg: cfg, log: appLogger, metrics: m, tracer: tp, mongoClient: mongoClient}

	deps := usecase.Deps{
		Repo:    mongodb.NewListingRepository(db, appLogger),
		Sellers: mongodb.NewSellerRepository(db, appLogger),
		Metrics: m,
		Logger:  appLogger,
	}

	// Redis, NATS, MinIO and SMTP are optional: the service degrades instead of
	// refusing to start.
	if redisClient, err := redisadapter.NewClient(ctx, cfg.Redis, appLogger); err != nil {
		appLogger.Warn("Listing query cache disabled", "error", err.Error())
	} else {
		a.redisClient = redisClient
		deps.Cache = cache.NewListingCache(redisClient, cfg.Redis.CacheTTL, appLogger)
	}

	if nc, err := natsadapter.Connect(cfg.NATS.URL, appLogger); err != nil {
		appLogger.Warn("Listing events will not be published", "error", err.Error())
	} else {
		a.natsConn = nc
		deps.Publisher = natsadapter.NewPublisher(nc, appLogger)
	}

	if cfg.SMTP.Enabled() {
		deps.Notifier = mailer.NewSMTPMailer(cfg.SMTP)
	} else {
		appLogger.Info("SMTP not configured, seller notifications disabled")
	}

	var media domain.MediaStorage
	if storage, err := s3.NewS3Storage(ctx, cfg.MinIO, appLogger); err != nil {
		appLogger.Warn("Image uploads disabled", "error", err.Error())
		media = unavailableMedia{}
	} else {
		media = storage
	}

	a.listings = usecase.NewListingUsecase(deps)
	photos := usecase.NewPhotoUsecase(media, cfg.HTTP.MaxUploadBytes, appLogger)
	h := handler.NewListingHandler(a.listings, photos, cfg.HTTP.MaxUploadBytes, appLogger)

	a.server = &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      router.New(h, cfg.JWT.Secret, appLogger, m),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}
	return a, nil
}

type unavailableMedia struct{}

func (unavailableMedia) Upload(context.Context, string, []byte) (string, error) {
	return "", errors.New("image storage is not available")
}

// Run serves until SIGINT or SIGTERM and then shuts down gracefully.
func (a *App) Run() error {
	errCh := make(chan error, 2)
	go func() {
		a.log.Info("Starting catalog HTTP server", "address", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		if err := metrics.StartMetricsServer(a.cfg.Metrics.Port, a.log, a.metrics); err != nil {
			a.log.Error("Prometheus metrics server failed", "error", err.Error())
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-quit:
		a.log.Info("Received shutdown signal, shutting down", "signal", sig.String())
	case runErr = <-errCh:
		a.log.Error("Server stopped unexpectedly", "error", runErr.Error())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.log.Error("Error during HTTP server graceful shutdown", "error", err.Error())
	}
	a.listings.Wait()

	if a.natsConn != nil {
		if err := a.natsConn.Drain(); err != nil {
			a.log.Error("Error draining NATS connection", "error", err.Error())
		}
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.log.Error("Error closing Redis client", "error", err.Error())
		}
	}
	if err := a.mongoClient.Disconnect(shutdownCtx); err != nil {
		a.log.Error("Error disconnecting from MongoDB", "error", err.Error())
	}
	if err := a.tracer.Shutdown(shutdownCtx); err != nil {
		a.log.Error("Error shutting down tracer provider", "error", err.Error())
	}
	a.log.Info("Application shut down successfully")
	_ = a.log.Sync()
	return runErr
}
