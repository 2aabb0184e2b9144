package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/576576/hadesstar-bot/internal/api"
	"github.com/576576/hadesstar-bot/internal/app"
	"github.com/576576/hadesstar-bot/internal/config"
	"github.com/576576/hadesstar-bot/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger.Init(cfg.LogLevel, cfg.Env)
	defer logger.Sync()

	// SIGINT/SIGTERM 이 오면 ctx 가 끝난다
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize", "error", err)
	}
	defer a.Close()

	srv := &http.Server{
		Addr:              net.JoinHostPort("", cfg.Port),
		Handler:           api.SetupRouter(cfg, a.Services),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Shutdown 은 hijack 된 웹소켓을 추적하지 않는다. ctx 를 끝내 hub 가 닫게 한다.
	srv.RegisterOnShutdown(stop)
	a.Start(ctx)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Crew queue server listening",
			"address", srv.Addr,
			"env", cfg.Env,
			"storage", cfg.Storage,
			"queueStore", cfg.QueueStore,
			"locker", cfg.Locker,
		)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server stopped", "error", err)
		}
		return
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Forced shutdown", "error", err)
	}
	logger.Info("Server exited")
}
