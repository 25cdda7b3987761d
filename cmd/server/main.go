package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"roomchat/internal/chat"
	"roomchat/internal/config"
	"roomchat/internal/hub"
	"roomchat/internal/logging"
	"roomchat/internal/metrics"
	"roomchat/internal/moderation"
	"roomchat/internal/server"
	"roomchat/internal/store"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatalf("load .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := logging.New(cfg.LogDevelopment)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	gin.SetMode(cfg.GinMode)

	words := append(append([]string{}, moderation.DefaultWords...), cfg.ProfanityExtraWords...)
	filter, err := moderation.NewFilter(words)
	if err != nil {
		logger.Fatal("build profanity filter", zap.Error(err))
	}

	m := metrics.New()
	h := hub.New()
	relay := chat.NewRelay(chat.Deps{
		Directory: store.New(),
		Emitter:   h,
		Filter:    filter,
		Logger:    logger.Named("chat"),
		Metrics:   m,
	})

	router := server.NewRouter(server.Deps{
		Relay:     relay,
		Hub:       h,
		Logger:    logger,
		Metrics:   m,
		PublicDir: cfg.PublicDir,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Run(ctx, cfg, router, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
