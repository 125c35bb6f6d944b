package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"societyadmin"
)

func main() {
	configPath := flag.String("config", ".env", "path to an optional env file")
	flag.Parse()

	config, err := societyadmin.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Unable to load app config: %s", err)
	}
	if err := config.Validate(); err != nil {
		log.Fatalf("Invalid app config: %s", err)
	}

	logger, err := societyadmin.NewLogger(config.LogLevel, config.LogFormat)
	if err != nil {
		log.Fatalf("Unable to create logger: %s", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s, err := NewServer(ctx, config, logger)
	if err != nil {
		logger.Fatal("unable to start server", zap.Error(err))
	}
	defer s.Close()

	server := &http.Server{
		Addr:         config.ListenAddr,
		Handler:      s.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 75 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", config.ListenAddr), zap.String("backend", config.APIBaseURL))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		logger.Error("server stopped", zap.Error(err))
		return
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("unable to shut down cleanly", zap.Error(err))
	}
}
