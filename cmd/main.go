package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"advert-service/internal/config"
	"advert-service/internal/delivery/router"
	"advert-service/internal/health"
	"advert-service/internal/infrastructure/cache"
	"advert-service/internal/infrastructure/metrics"
	"advert-service/internal/notifier"
	"advert-service/internal/repository"
	"advert-service/internal/service"
	"advert-service/pkg/database"
	"advert-service/pkg/logger"
	"advert-service/pkg/utils"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/sns"
	"github.com/go-chi/chi/v5"
	redisClient "github.com/go-redis/redis/v8"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.MustLoadConfig()

	loggers, err := logger.SetupLogger(cfg.Logger.Level)
	if err != nil {
		log.Fatalf("Failed to set up logger: %v", err)
	}
	loggers.InfoLogger.Info("Logger initialized")

	if err := run(cfg, loggers); err != nil {
		loggers.ErrorLogger.Error("Advert service stopped with error", utils.Err(err))
		os.Exit(1)
	}
}

// closers runs registered cleanups in reverse order of registration.
type closers []func()

func (c *closers) add(fn func()) { *c = append(*c, fn) }

func (c closers) closeAll() {
	for i := len(c) - 1; i >= 0; i-- {
		c[i]()
	}
}

func run(cfg *config.Config, loggers *logger.Loggers) error {
	var cleanup closers
	defer cleanup.closeAll()

	tracerProvider, err := metrics.InitTracer(metrics.TracerConfig{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		Environment: cfg.Tracing.Environment,
		Version:     cfg.Tracing.Version,
		Endpoint:    cfg.Tracing.Endpoint,
	})
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	cleanup.add(func() {
		if err := tracerProvider.Shutdown(context.Background()); err != nil {
			loggers.ErrorLogger.Error("Failed to flush traces", utils.Err(err))
		}
	})
	loggers.InfoLogger.Info("OpenTelemetry Tracer initialized", "exporting", cfg.Tracing.Enabled)

	registry := metrics.NewRegistry()
	handlerMetrics := metrics.NewHandlerMetrics(registry)

	// one AWS session shared by every DynamoDB and SNS call
	var awsSession *session.Session
	if cfg.Storage.Backend == config.BackendDynamoDB || cfg.Notification.Backend == config.NotifierSNS {
		if awsSession, err = newAWSSession(cfg.AWS); err != nil {
			return err
		}
		loggers.InfoLogger.Info("AWS session created", "region", cfg.AWS.Region)
	}

	advertRepo, err := openRepository(cfg, awsSession, metrics.NewRepositoryMetrics(registry), loggers, &cleanup)
	if err != nil {
		return err
	}

	advertNotifier, err := openNotifier(cfg, awsSession, metrics.NewNotifierMetrics(registry), loggers, &cleanup)
	if err != nil {
		return err
	}

	advertService := service.NewAdvertService(advertRepo, advertNotifier, metrics.NewServiceMetrics(registry), loggers, service.Options{
		NotifyOnReject:     cfg.Notification.NotifyOnReject,
		NotificationPolicy: service.NotificationPolicy(cfg.Notification.Policy),
	})

	r := chi.NewRouter()
	router.SetupAdvertRoutes(r, advertService, health.NewChecker(advertRepo, loggers), loggers, handlerMetrics)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg.HTTP, r, loggers)
}

func newAWSSession(cfg config.AWSConfig) (*session.Session, error) {
	awsCfg := aws.Config{Region: aws.String(cfg.Region)}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
	}

	sess, err := session.NewSessionWithOptions(session.Options{
		Config:            awsCfg,
		Profile:           cfg.Profile,
		SharedConfigState: session.SharedConfigEnable,
	})
	if err != nil {
		return nil, fmt.Errorf("create AWS session: %w", err)
	}
	return sess, nil
}

func openRepository(cfg *config.Config, sess *session.Session, m *metrics.RepositoryMetrics, loggers *logger.Loggers, cleanup *closers) (repository.AdvertRepository, error) {
	var repo repository.AdvertRepository

	switch cfg.Storage.Backend {
	case config.BackendDynamoDB:
		repo = repository.NewDynamoAdvertRepository(dynamodb.New(sess), cfg.Storage.Table, m)
		loggers.InfoLogger.Info("Using DynamoDB advert store", "table", cfg.Storage.Table)

	case config.BackendMySQL:
		d := cfg.Database
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true", d.User, d.Password, d.Host, d.Port, d.Name)

		db, err := database.NewDatabase(dsn)
		if err != nil {
			return nil, err
		}
		cleanup.add(func() {
			if err := db.Close(); err != nil {
				loggers.ErrorLogger.Error("Failed to close database connection", utils.Err(err))
			}
		})
		if err := database.Migrate(context.Background(), db); err != nil {
			return nil, err
		}
		repo = repository.NewMysqlAdvertRepository(db, m)
		loggers.InfoLogger.Info("Using MySQL advert store", "host", d.Host, "database", d.Name)

	case config.BackendMemory:
		repo = repository.NewMemoryAdvertRepository()
		loggers.InfoLogger.Warn("Using in-memory advert store; adverts are lost on restart, do not use in production")

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}

	if !cfg.Redis.Enabled {
		return repo, nil
	}

	rdb := redisClient.NewClient(&redisClient.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	cleanup.add(func() {
		if err := rdb.Close(); err != nil {
			loggers.ErrorLogger.Error("Failed to close Redis client", utils.Err(err))
		}
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Redis.Addr, err)
	}
	loggers.InfoLogger.Info("Advert cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.TTL)

	return repository.NewCachedAdvertRepository(repo, cache.NewRedisCache(rdb, cfg.Redis.TTL, cfg.Redis.FenceTTL)), nil
}

func openNotifier(cfg *config.Config, sess *session.Session, m *metrics.NotifierMetrics, loggers *logger.Loggers, cleanup *closers) (notifier.Notifier, error) {
	if cfg.Notification.Backend != config.NotifierRabbitMQ {
		loggers.InfoLogger.Info("Using SNS notifier", "topic_arn", cfg.Notification.TopicArn)
		return notifier.NewSNSNotifier(sns.New(sess), cfg.Notification.TopicArn, m), nil
	}

	n, err := notifier.NewRabbitMQNotifier(cfg.Notification.AMQPURL, cfg.Notification.Exchange, m)
	if err != nil {
		return nil, err
	}
	cleanup.add(func() {
		if err := n.Close(); err != nil {
			loggers.ErrorLogger.Error("Failed to close RabbitMQ connection", utils.Err(err))
		}
	})
	loggers.InfoLogger.Info("Using RabbitMQ notifier", "exchange", cfg.Notification.Exchange)

	return n, nil
}

// serve blocks until ctx is cancelled or the listener fails, then drains
// in-flight requests.
func serve(ctx context.Context, cfg config.HTTPConfig, handler http.Handler, loggers *logger.Loggers) error {
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
	}

	listenErr := make(chan error, 1)
	go func() {
		loggers.InfoLogger.Info("Starting server", "port", cfg.Port)
		listenErr <- server.ListenAndServe()
	}()

	select {
	case err := <-listenErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	loggers.InfoLogger.Info("Shutdown signal received, draining requests", "timeout", shutdownTimeout)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	loggers.InfoLogger.Info("Server shutdown gracefully")
	return nil
}
