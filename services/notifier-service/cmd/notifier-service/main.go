package main

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/todostream/todostream/libs/amqpx"
	"github.com/todostream/todostream/libs/config"
	"github.com/todostream/todostream/libs/events"
	"github.com/todostream/todostream/libs/httpx"
	"github.com/todostream/todostream/libs/otelx"
	"github.com/todostream/todostream/libs/runtime"
	"github.com/todostream/todostream/services/notifier-service/internal/consumer"
	"github.com/todostream/todostream/services/notifier-service/internal/hub"
	"github.com/todostream/todostream/services/notifier-service/internal/notifier"
	"github.com/todostream/todostream/services/notifier-service/internal/redelivery"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "notifier-service")
	port, err := config.Port("PORT", "8081")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	amqpURL := config.String("AMQP_URL", amqpx.DefaultURL)
	conn, err := amqpx.Dial(amqpURL, 10*time.Second)
	if err != nil {
		logger.Error("amqp connection failed", "err", err)
		panic(err)
	}
	defer func() { _ = conn.Close() }()

	if err := amqpx.DeclareExchanges(conn.Channel()); err != nil {
		logger.Error("amqp topology declaration failed", "err", err)
		panic(err)
	}
	if err := amqpx.DeclareNotificationsQueue(conn.Channel(), events.RoutingKeys()...); err != nil {
		logger.Error("notifications queue declaration failed", "err", err)
		panic(err)
	}

	redisAddr := config.String("REDIS_ADDR", "localhost:6379")
	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	defer func() { _ = rdb.Close() }()

	redeliveryTTL, err := config.Duration("NOTIFIER_REDELIVERY_TTL", 15*time.Minute)
	if err != nil {
		panic(err)
	}
	maxRedeliveries, err := config.Int("NOTIFIER_MAX_REDELIVERIES", 5)
	if err != nil {
		panic(err)
	}
	prefetch, err := config.Int("NOTIFIER_PREFETCH", 8)
	if err != nil {
		panic(err)
	}

	guard := redelivery.NewGuard(redelivery.NewRedisCounter(rdb, redeliveryTTL), maxRedeliveries, logger)
	wsHub := hub.New(logger)
	notifierSvc := notifier.New(wsHub, logger)
	eventConsumer := consumer.New(conn.Channel(), logger, guard, notifierSvc, consumer.Config{
		Prefetch: prefetch,
	})

	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		if err := eventConsumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("consumer stopped", "err", err)
		}
	}()

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "amqp", Check: amqpx.ReadyCheck(amqpURL)},
		runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}},
	)
	mux.HandleFunc("/ws", wsHub.ServeWS)

	allowedOrigins := strings.Split(config.String("CORS_ALLOWED_ORIGINS", "*"), ",")
	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: allowedOrigins,
			AllowedMethods: []string{http.MethodGet},
			AllowedHeaders: []string{"Content-Type"},
			MaxAge:         10 * time.Minute,
		}),
	)
	handler = otelhttp.NewHandler(handler, "notifier")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}

	select {
	case <-consumerDone:
	case <-time.After(10 * time.Second):
		logger.Warn("timed out waiting for consumer drain")
	}
	logger.Info("notifier stopped")
}
