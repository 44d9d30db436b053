package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-redis/redis/v8"

	"github.com/parleyhq/parley/api"
	"github.com/parleyhq/parley/hub"
	"github.com/parleyhq/parley/internal/config"
	"github.com/parleyhq/parley/logging"
	signalserver "github.com/parleyhq/parley/signal"
	"github.com/parleyhq/parley/store"
)

func main() {
	var configPath = flag.String("config", "", "path to a JSON or YAML config file")
	flag.Parse()

	cfg, err := config.Load(config.LoadOptions{Path: *configPath})
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := logging.New(cfg.Logging)

	messages, err := newStore(cfg, logger)
	if err != nil {
		log.Fatalf("failed to set up message store: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	h := hub.New(messages, logger)
	if err := h.Start(ctx); err != nil {
		log.Fatalf("failed to start hub: %v", err)
	}

	ws := signalserver.NewServer(h, logger, signalserver.ServerOptions{
		ReadTimeout:     time.Duration(cfg.Socket.ReadTimeout),
		MaxMessageSize:  cfg.Socket.MaxMessageSize,
		ReadBufferSize:  cfg.Socket.ReadBufferSize,
		WriteBufferSize: cfg.Socket.WriteBufferSize,
	})

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(logging.Middleware(logger))

	r.Get("/ws", ws.Handle)
	api.NewHandler(messages).Routes(r)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout),
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout),
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout),
	}

	go func() {
		logger.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	if err := h.Stop(); err != nil {
		logger.Error("hub shutdown error", "error", err)
	}
}

func newStore(cfg *config.Config, logger *logging.Logger) (store.MessageStore, error) {
	switch cfg.Store.Backend {
	case config.StoreBackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Store.Redis.Addr,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
		})

		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			return nil, fmt.Errorf("redis unreachable at %s: %w", cfg.Store.Redis.Addr, err)
		}

		logger.Info("using redis message store", "addr", cfg.Store.Redis.Addr)
		return store.NewRedisStore(client, cfg.Store.Redis.KeyPrefix), nil
	default:
		logger.Info("using in-memory message store")
		return store.NewMemoryStore(), nil
	}
}
