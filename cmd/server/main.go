package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"maternacare/internal/config"
	"maternacare/internal/httpserver"
	"maternacare/internal/logging"
	"maternacare/internal/notify"
	"maternacare/internal/presence"
	"maternacare/internal/security"
	"maternacare/internal/store/sqlite"
	"maternacare/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Env)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	db, err := sqlite.Open(cfg.DatabasePath)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer db.Close()

	if err := sqlite.Migrate(db); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	tokenSvc := security.NewTokenService(cfg.JWTSecret)

	// Presence and push dispatch: Redis-backed when configured, in-process
	// otherwise.
	var reg presence.Registry
	var notifier notify.Dispatcher
	if cfg.RedisURL != "" {
		redisReg, err := presence.NewRedisRegistry(cfg.RedisURL)
		if err != nil {
			logger.Fatal("failed to connect presence registry", zap.Error(err))
		}
		defer redisReg.Close()
		reg = redisReg

		queue, err := notify.NewQueueDispatcher(cfg.RedisURL)
		if err != nil {
			logger.Fatal("failed to connect notification queue", zap.Error(err))
		}
		defer queue.Close()
		notifier = queue
	} else {
		reg = presence.NewMemoryRegistry()
		notifier = notify.NewLogDispatcher(logger)
	}

	hub := ws.NewHub()

	router := httpserver.NewRouter(cfg, logger, db, hub, reg, tokenSvc, notifier)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", zap.String("addr", cfg.HTTPAddr()))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
