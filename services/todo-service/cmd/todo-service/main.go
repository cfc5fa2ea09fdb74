package main

import (
	"context"
	"net/http"
	"time"

	"github.com/todostream/todostream/libs/amqpx"
	"github.com/todostream/todostream/libs/config"
	"github.com/todostream/todostream/libs/httpx"
	"github.com/todostream/todostream/libs/otelx"
	"github.com/todostream/todostream/libs/runtime"
	"github.com/todostream/todostream/services/todo-service/internal/handlers"
	"github.com/todostream/todostream/services/todo-service/internal/publisher"
	"github.com/todostream/todostream/services/todo-service/internal/storage"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "todo-service")
	port, err := config.Port("PORT", "8080")
	if err != nil {
		panic(err)
	}
	requestTimeout, err := config.Duration("REQUEST_TIMEOUT", 15*time.Second)
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

	repo := storage.NewTodoRepository()
	eventPublisher := publisher.New(conn.Channel(), logger)
	todoHandler := handlers.NewTodoHandler(repo, eventPublisher, logger)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "amqp", Check: amqpx.ReadyCheck(amqpURL)},
	)
	mux.HandleFunc("/api/v1/todos", todoHandler.Todos)
	mux.HandleFunc("/api/v1/todos/get", todoHandler.Get)
	mux.HandleFunc("/api/v1/todos/update", todoHandler.Update)
	mux.HandleFunc("/api/v1/todos/priority", todoHandler.SetPriority)
	mux.HandleFunc("/api/v1/todos/complete", todoHandler.Complete)
	mux.HandleFunc("/api/v1/todos/reopen", todoHandler.Reopen)
	mux.HandleFunc("/api/v1/todos/delete", todoHandler.Delete)

	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(1<<20),
		httpx.WithTimeout(requestTimeout),
	)
	handler = otelhttp.NewHandler(handler, "todo")
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
	logger.Info("http server stopped")
}
