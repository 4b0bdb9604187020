package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Open-SGF/sgf-meetup-api/internal/config"
	"github.com/Open-SGF/sgf-meetup-api/internal/importer"
	"github.com/Open-SGF/sgf-meetup-api/internal/logger"
	"github.com/Open-SGF/sgf-meetup-api/internal/meetup"
	"github.com/Open-SGF/sgf-meetup-api/internal/store"
	"github.com/Open-SGF/sgf-meetup-api/internal/token"
)

// A run is expected to finish well inside the scheduler's timeout; this
// budget keeps a wedged upstream from hanging the process indefinitely.
const runTimeout = 4 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	log, err := logger.New(cfg.Service.Environment, "importer")
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer func(log *zap.Logger) {
		if err := log.Sync(); err != nil {
			log.Error("Failed to sync logger", zap.Error(err))
		}
	}(log)

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	db, err := store.NewClient(ctx, cfg.AWS, log)
	if err != nil {
		log.Fatal("Failed to create DynamoDB client", zap.Error(err))
	}

	eventStore := store.NewEventStore(store.NewEventStoreConfig(cfg), db, log)
	runLogStore := store.NewRunLogStore(cfg.Tables.RunLog, db, log)

	fetcher := meetup.NewClient(meetup.ClientConfig{
		GraphQLURL:    cfg.Meetup.GraphQLURL,
		PageSize:      cfg.Meetup.PageSize,
		HorizonMonths: cfg.Meetup.HorizonMonths,
	}, log)

	supplier, err := newTokenSupplier(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to create token supplier", zap.Error(err))
	}

	service := importer.NewService(
		importer.ServiceConfig{GroupNames: cfg.Importer.GroupNames},
		supplier,
		fetcher,
		eventStore,
		runLogStore,
		log,
	)

	if _, err := service.Run(ctx); err != nil {
		log.Fatal("Reconciliation run failed", zap.Error(err))
	}
}

func newTokenSupplier(ctx context.Context, cfg *config.Config, log *zap.Logger) (token.Supplier, error) {
	switch cfg.Meetup.TokenSource {
	case "lambda":
		client, err := token.NewLambdaClient(ctx, cfg.AWS)
		if err != nil {
			return nil, err
		}
		return token.NewLambdaSupplier(client, cfg.Meetup.TokenFunctionName, log), nil
	case "oauth":
		return token.NewOAuthSupplier(token.OAuthConfig{
			TokenURL:     cfg.Meetup.TokenURL,
			ClientKey:    cfg.Meetup.ClientKey,
			MemberID:     cfg.Meetup.MemberID,
			SigningKeyID: cfg.Meetup.SigningKeyID,
			Audience:     cfg.Meetup.Audience,
		}, cfg.Meetup.PrivateKeyPath, log)
	default:
		return nil, fmt.Errorf("unknown token source %q", cfg.Meetup.TokenSource)
	}
}
