package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectoenv"
	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectoinject/ectocontainer"
	"github.com/Gobusters/ectologger"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.uber.org/zap"

	"github.com/Ramsey-B/sage/config"
	"github.com/Ramsey-B/sage/internal/repositories/processed"
	"github.com/Ramsey-B/sage/internal/repositories/raw"
	snapshotrepo "github.com/Ramsey-B/sage/internal/repositories/snapshot"
	"github.com/Ramsey-B/sage/internal/repositories/synccursor"
	"github.com/Ramsey-B/sage/internal/repositories/unified"
	"github.com/Ramsey-B/sage/pkg/database"
	"github.com/Ramsey-B/sage/pkg/events"
	"github.com/Ramsey-B/sage/pkg/httpclient"
	"github.com/Ramsey-B/sage/pkg/kafka"
	"github.com/Ramsey-B/sage/pkg/middleware"
	"github.com/Ramsey-B/sage/pkg/notify"
	"github.com/Ramsey-B/sage/pkg/redis"
	"github.com/Ramsey-B/sage/pkg/routes/customer"
	"github.com/Ramsey-B/sage/pkg/routes/health"
	syncroutes "github.com/Ramsey-B/sage/pkg/routes/sync"
	"github.com/Ramsey-B/sage/pkg/snapshot"
	"github.com/Ramsey-B/sage/pkg/sources/autocare"
	"github.com/Ramsey-B/sage/pkg/sources/stripe"
	"github.com/Ramsey-B/sage/pkg/startup"
	"github.com/Ramsey-B/sage/pkg/syncer"
	"github.com/Ramsey-B/sage/pkg/tracing"
	"github.com/Ramsey-B/sage/pkg/unify"
)

const version = "1.0.0"

func main() {
	ctx := context.Background()

	_ = godotenv.Load()

	cfg := &config.Config{}
	if err := ectoenv.BindEnv(cfg); err != nil {
		fmt.Printf("failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)

	shutdownTracing, err := tracing.InitProvider(ctx, cfg.AppName)
	if err != nil {
		logger.WithError(err).Warn("Failed to initialize trace provider, continuing without tracing")
	} else {
		defer shutdownTracing(ctx)
	}

	db, err := database.Connect(database.ConnectionConfig{
		Driver:          cfg.DatabaseDriver,
		Host:            cfg.DatabaseHost,
		Port:            cfg.DatabasePort,
		User:            cfg.DatabaseUserName,
		Password:        cfg.DatabasePassword,
		Name:            cfg.DatabaseName,
		SSLMode:         cfg.DatabaseSSLMode,
		MaxOpenConns:    cfg.DatabaseMaxOpenConns,
		MaxIdleConns:    cfg.DatabaseMaxIdleConns,
		ConnMaxLifetime: cfg.DatabaseConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to warehouse")
		os.Exit(1)
	}
	defer db.Close()

	if err := runMigrations(cfg, db, logger); err != nil {
		logger.WithError(err).Error("Failed to run migrations")
		os.Exit(1)
	}

	var redisClient *redis.Client
	if cfg.RedisEnabled {
		redisClient, err = redis.NewClient(redis.Config{
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, logger)
		if err != nil {
			logger.WithError(err).Warn("Failed to connect to Redis, source tokens will not be cached")
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	var producer *kafka.Producer
	if cfg.KafkaEnabled {
		producer = kafka.NewProducer(kafka.ProducerConfig{
			Brokers:      cfg.KafkaBrokers,
			Topic:        cfg.KafkaOutputTopic,
			BatchSize:    cfg.KafkaBatchSize,
			BatchTimeout: time.Duration(cfg.KafkaBatchTimeout) * time.Millisecond,
			RequiredAcks: cfg.KafkaRequiredAcks,
			Compression:  cfg.KafkaCompression,
		}, logger)
		defer producer.Close()
	}

	stripeHTTP := httpclient.NewClient(httpclient.Config{Timeout: cfg.StripeRequestTimeout}, logger)
	autocareHTTP := httpclient.NewClient(httpclient.Config{Timeout: cfg.AutoCareRequestTimeout}, logger)
	webhookHTTP := httpclient.NewClient(httpclient.Config{Timeout: cfg.WebhookTimeout}, logger)

	stripeClient := stripe.New(stripe.Config{
		BaseURL:  cfg.StripeAPIBaseURL,
		APIKey:   cfg.StripeAPIKey,
		PageSize: cfg.StripePageSize,
		MaxPages: cfg.SyncMaxPagesPerRun,
	}, stripeHTTP, logger)

	var tokenCache autocare.TokenCache
	if redisClient != nil {
		tokenCache = redisClient
	}
	autocareClient := autocare.New(autocare.Config{
		BaseURL:  cfg.AutoCareBaseURL,
		Email:    cfg.AutoCareEmail,
		Password: cfg.AutoCarePassword,
		TokenTTL: cfg.AutoCareTokenTTL,
	}, autocareHTTP, tokenCache, logger)

	cursorRepo := synccursor.NewRepository(db, logger)
	rawRepo := raw.NewRepository(db, logger, cfg.SyncRawBatchSize)
	processedRepo := processed.NewRepository(db, logger)
	unifiedRepo := unified.NewRepository(db, logger)
	snapshotRepo := snapshotrepo.NewRepository(db, logger)

	unifyEngine := unify.NewEngine(processedRepo, logger)
	snapshotBuilder := snapshot.NewBuilder(logger)
	notifier := notify.New(notify.Config{
		WebhookURL: cfg.WebhookURL,
		Secret:     cfg.WebhookSecret,
		ChunkSize:  cfg.WebhookMaxPerRequest,
	}, webhookHTTP, logger)
	emitter := events.NewEmitter(producer, logger)

	syncEngine := syncer.New(
		stripeClient,
		autocareClient,
		cursorRepo,
		rawRepo,
		processedRepo,
		unifiedRepo,
		snapshotRepo,
		unifyEngine,
		snapshotBuilder,
		notifier,
		emitter,
		logger,
	)

	containerCfg := ectoinject.DefaultContainerConfig
	containerCfg.ID = cfg.AppName
	container, err := ectoinject.NewDIContainer(containerCfg)
	if err != nil {
		logger.WithError(err).Error("Failed to create DI container")
		os.Exit(1)
	}
	registerDependencies(container, logger, cursorRepo, unifiedRepo, snapshotRepo, syncEngine)

	e := echo.New()
	e.HideBanner = true
	e.Use(otelecho.Middleware(cfg.AppName))
	e.Use(containerMiddleware(container.GetContainerID()))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))
	e.HTTPErrorHandler = middleware.Error(logger)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	var redisPinger health.Pinger
	if redisClient != nil {
		redisPinger = redisClient
	}
	checker := health.NewChecker(db, redisPinger, version)
	checker.RegisterRoutes(e)

	api := e.Group("/api/v1")
	syncroutes.Register(api.Group("/sync"))
	customer.Register(api.Group("/customers"))

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		ReadTimeout:       time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second,
		WriteTimeout:      time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second,
		IdleTimeout:       time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second,
		ReadHeaderTimeout: time.Duration(cfg.ReadHeaderTimeoutSeconds) * time.Second,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	boot := startup.NewStartup(logger, cfg.StartupMaxAttempts)
	boot.AddDependency(&serviceDependency{
		name: "warehouse",
		start: func(ctx context.Context) error {
			return db.PingContext(ctx)
		},
		stop: func(ctx context.Context) error {
			return nil // closed by the deferred db.Close
		},
	})
	boot.AddDependency(&serviceDependency{
		name:      "http-server",
		dependsOn: []string{"warehouse"},
		start: func(ctx context.Context) error {
			go func() {
				logger.Infof("Starting %s on port %d", cfg.AppName, cfg.Port)
				if err := e.StartServer(server); err != nil && err != http.ErrServerClosed {
					logger.WithError(err).Error("Server stopped unexpectedly")
					os.Exit(1)
				}
			}()
			return nil
		},
		stop: func(ctx context.Context) error {
			return e.Shutdown(ctx)
		},
	})

	if err := boot.Start(ctx); err != nil {
		logger.WithError(err).Error("Failed to start service")
		os.Exit(1)
	}
	checker.SetReady(true)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	checker.SetReady(false)

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := boot.Stop(shutdownCtx); err != nil {
		logger.WithError(err).Error("Failed to shut down gracefully")
	}
	logger.Info("Server stopped")
}

// serviceDependency adapts a start/stop pair to the startup orchestrator.
type serviceDependency struct {
	name      string
	dependsOn []string
	start     func(ctx context.Context) error
	stop      func(ctx context.Context) error
}

func (d *serviceDependency) GetName() string                { return d.name }
func (d *serviceDependency) DependsOn() []string            { return d.dependsOn }
func (d *serviceDependency) Start(ctx context.Context) error { return d.start(ctx) }
func (d *serviceDependency) Stop(ctx context.Context) error  { return d.stop(ctx) }

// newLogger builds the service logger with a zap sink.
func newLogger(cfg *config.Config) ectologger.Logger {
	var zlog *zap.Logger
	var err error
	if cfg.PrettyLogs {
		zlog, err = zap.NewDevelopment()
	} else {
		zlog, err = zap.NewProduction()
	}
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}

	return ectologger.NewEctoLogger(func(msg ectologger.EctoLogMessage) {
		data, err := json.Marshal(msg)
		if err != nil {
			zlog.Error("failed to encode log message", zap.Error(err))
			return
		}
		zlog.Info(string(data))
	})
}

func runMigrations(cfg *config.Config, db database.DB, logger ectologger.Logger) error {
	driver, err := migratepg.WithInstance(db.Unsafe().DB, &migratepg.Config{})
	if err != nil {
		return err
	}

	ms := database.NewMigrationService(logger, &database.MigrationConfig{
		MigrationFolderPath: cfg.DatabaseMigrationFolderPath,
		Version:             uint(cfg.DatabaseMigrationVersion),
		Force:               cfg.DatabaseMigrationForce,
		AutoRollback:        cfg.DatabaseMigrationAutoRollback,
	})
	return ms.Migrate(cfg.DatabaseName, driver)
}

func registerDependencies(
	container ectocontainer.DIContainer,
	logger ectologger.Logger,
	cursorRepo *synccursor.Repository,
	unifiedRepo *unified.Repository,
	snapshotRepo *snapshotrepo.Repository,
	syncEngine *syncer.Syncer,
) {
	mustRegister(ectoinject.RegisterInstance[ectologger.Logger](container, logger), logger)
	mustRegister(ectoinject.RegisterInstance[*synccursor.Repository](container, cursorRepo), logger)
	mustRegister(ectoinject.RegisterInstance[*unified.Repository](container, unifiedRepo), logger)
	mustRegister(ectoinject.RegisterInstance[*snapshotrepo.Repository](container, snapshotRepo), logger)
	mustRegister(ectoinject.RegisterInstance[*syncer.Syncer](container, syncEngine), logger)
}

func mustRegister(err error, logger ectologger.Logger) {
	if err != nil {
		logger.WithError(err).Error("Failed to register dependency")
		os.Exit(1)
	}
}

// containerMiddleware marks the DI container active on each request context
// so handlers can resolve dependencies.
func containerMiddleware(containerID string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			ctx, err := ectoinject.SetActiveContainer(req.Context(), containerID)
			if err != nil {
				return err
			}
			c.SetRequest(req.WithContext(ctx))
			return next(c)
		}
	}
}
