package main

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/Open-SGF/sgf-meetup-api/internal/config"
	"github.com/Open-SGF/sgf-meetup-api/internal/handler"
	"github.com/Open-SGF/sgf-meetup-api/internal/logger"
	"github.com/Open-SGF/sgf-meetup-api/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	log, err := logger.New(cfg.Service.Environment, "api")
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer func(log *zap.Logger) {
		if err := log.Sync(); err != nil {
			log.Error("Failed to sync logger", zap.Error(err))
		}
	}(log)

	log.Info("Starting API service",
		zap.String("environment", cfg.Service.Environment),
		zap.String("port", cfg.Service.APIPort))

	ctx := context.Background()

	db, err := store.NewClient(ctx, cfg.AWS, log)
	if err != nil {
		log.Fatal("Failed to create DynamoDB client", zap.Error(err))
	}

	eventStore := store.NewEventStore(store.NewEventStoreConfig(cfg), db, log)

	h := handler.NewHandler(eventStore, cfg.API.Keys, log)

	addr := fmt.Sprintf(":%s", cfg.Service.APIPort)
	log.Info("API server starting", zap.String("address", addr))

	if err := http.ListenAndServe(addr, h); err != nil {
		log.Fatal("Failed to start API server", zap.Error(err))
	}
}
