package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/checkgame/server/internal/cache"
	"github.com/checkgame/server/internal/config"
	"github.com/checkgame/server/internal/database"
	"github.com/checkgame/server/internal/game"
	"github.com/checkgame/server/internal/ws"
)

func main() {
	cfg := config.Load()

	logger := logrus.New()
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var historian game.Historian
	if cfg.RedisAddr != "" {
		h, err := cache.NewHistorian(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, logger)
		if err != nil {
			logger.WithError(err).Fatal("failed to connect to redis")
		}
		defer h.Close()
		historian = h
		logger.WithField("addr", cfg.RedisAddr).Info("action historian enabled")
	} else {
		logger.Info("REDIS_ADDR not set, action historian disabled")
	}

	var store *database.Store
	if cfg.DatabaseURL != "" {
		var err error
		store, err = database.Connect(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			logger.WithError(err).Fatal("failed to connect to database")
		}
		defer store.Close()
		if err := store.EnsureSchema(ctx); err != nil {
			logger.WithError(err).Fatal("failed to ensure database schema")
		}
		logger.Info("final-result store enabled")
	} else {
		logger.Info("DATABASE_URL not set, final-result store disabled")
	}

	rules := game.Rules{
		CardsPerPlayer:    cfg.CardsPerPlayer,
		TurnTimer:         cfg.TurnTimer,
		DisconnectGrace:   cfg.DisconnectGrace,
		MatchingWindow:    cfg.MatchingWindow,
		InitialPeekReveal: cfg.InitialPeekReveal,
		AbilityPeekReveal: cfg.AbilityPeekReveal,
	}
	manager := game.NewManager(rules, historian, logger)
	server := ws.NewServer(manager, store, cfg.JWTSecret, logger)

	mux := http.NewServeMux()
	server.Routes(mux)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("http shutdown failed")
		}
	}()

	logger.WithField("addr", cfg.HTTPAddr).Info("check server listening")
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Fatal("server exited")
	}
}
