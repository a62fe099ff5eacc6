package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	apporder "github.com/minimart-labs/orderflow/internal/application/order"
	"github.com/minimart-labs/orderflow/internal/application/shipping"
	"github.com/minimart-labs/orderflow/internal/config"
	"github.com/minimart-labs/orderflow/internal/domain/messaging"
	domain "github.com/minimart-labs/orderflow/internal/domain/order"
	httptransport "github.com/minimart-labs/orderflow/internal/infrastructure/http"
	"github.com/minimart-labs/orderflow/internal/infrastructure/id"
	"github.com/minimart-labs/orderflow/internal/infrastructure/memory"
	"github.com/minimart-labs/orderflow/internal/infrastructure/postgres"
	"github.com/minimart-labs/orderflow/internal/infrastructure/redisqueue"
	"github.com/minimart-labs/orderflow/internal/infrastructure/stub"
	"github.com/minimart-labs/orderflow/internal/pkg/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logging.MustNewLogger(cfg.ServiceName, cfg.Env)
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	channel := buildChannel(cfg, logger)
	repo := buildRepository(ctx, cfg, logger)

	metrics := apporder.NewMetrics(prometheus.DefaultRegisterer)
	orderService := apporder.NewService(
		repo,
		id.NewUUIDGenerator(),
		stub.NewCustomerGateway(),
		stub.NewInventoryGateway(),
		stub.NewPaymentGateway(),
		apporder.NewPublisher(channel),
		shipping.NewService(channel),
		metrics,
	)

	consumer := apporder.NewConsumer(
		channel,
		orderService,
		cfg.ShippedQueue,
		cfg.PollInterval,
		cfg.ConsumerBatchSize,
		metrics,
		logger,
	)
	go consumer.Run(ctx)

	handler := httptransport.NewHandler(orderService, logger)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", handler.Router())

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: mux,
	}

	go func() {
		logger.Info("http_server_start", zap.String("addr", server.Addr))
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http_server_error", zap.Error(err))
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http_server_shutdown_error", zap.Error(err))
	} else {
		logger.Info("http_server_stopped")
	}
}

// buildChannel picks the Redis-backed channel when REDIS_ADDR is set and
// falls back to the in-memory broker otherwise. The shipment queue is
// bound to order.shipped so the demo loop closes in-process.
func buildChannel(cfg config.Config, logger *zap.Logger) messaging.Channel {
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		channel := redisqueue.New(client, cfg.OrderTopic, 30*time.Second)
		if cfg.ShippedQueue != "" {
			channel.BindQueue(cfg.ShippedQueue, messaging.EventOrderShipped)
		}
		logger.Info("channel_redis", zap.String("addr", cfg.RedisAddr))
		return channel
	}

	broker := memory.NewBroker(cfg.OrderTopic, memory.DefaultVisibility)
	if cfg.ShippedQueue != "" {
		broker.BindQueue(cfg.ShippedQueue, messaging.EventOrderShipped)
	}
	logger.Info("channel_memory")
	return broker
}

func buildRepository(ctx context.Context, cfg config.Config, logger *zap.Logger) domain.Repository {
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("postgres_connect_failed", zap.Error(err))
		}
		repo := postgres.NewOrderRepository(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			logger.Fatal("postgres_schema_failed", zap.Error(err))
		}
		logger.Info("repository_postgres")
		return repo
	}

	logger.Info("repository_memory")
	return memory.NewOrderRepository()
}
