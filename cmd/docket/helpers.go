package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/Veraticus/docket/internal/bus"
	"github.com/Veraticus/docket/internal/config"
	"github.com/Veraticus/docket/internal/dedupe"
	"github.com/Veraticus/docket/internal/engine"
	"github.com/Veraticus/docket/internal/model"
	"github.com/Veraticus/docket/internal/scoring"
	"github.com/Veraticus/docket/internal/service"
	"github.com/Veraticus/docket/internal/storage"
)

// initStorage opens the decision database with proper path expansion and
// applies any pending migrations.
func initStorage(ctx context.Context) (*storage.Storage, error) {
	store, err := storage.NewStorage(config.DatabasePath())
	if err != nil {
		return nil, err
	}

	// Run migrations
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// initDetector selects the duplicate-detector backend. The default is
// the decision database itself, so resubmission checks survive restarts
// without extra infrastructure.
func initDetector(store *storage.Storage) (service.DuplicateDetector, func(), error) {
	ttl := viper.GetDuration("dedupe.ttl")
	if ttl <= 0 {
		ttl = 90 * 24 * time.Hour
	}

	backend := viper.GetString("dedupe.backend")
	switch backend {
	case "", "storage":
		return store, func() {}, nil

	case "memory":
		mem := dedupe.NewMemory(ttl)
		return mem, mem.Close, nil

	case "redis":
		rd, err := dedupe.NewRedis(
			viper.GetString("dedupe.redis.addr"),
			viper.GetString("dedupe.redis.password"),
			viper.GetInt("dedupe.redis.db"),
			ttl,
		)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return rd, func() { _ = rd.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unsupported dedupe backend: %s", backend)
	}
}

// buildEngine assembles the full analysis pipeline around an open store.
// The returned cleanup releases every collaborator except the store
// itself, which the caller owns.
func buildEngine(store *storage.Storage) (*engine.Engine, func(), error) {
	scorer, err := scoring.LoadDir(config.ArtifactsDir())
	if err != nil {
		return nil, nil, err
	}

	oracleClient, err := createOracleClient()
	if err != nil {
		return nil, nil, err
	}

	detector, closeDetector, err := initDetector(store)
	if err != nil {
		return nil, nil, err
	}

	publisher, err := bus.New(config.LoadBusConfig())
	if err != nil {
		closeDetector()
		return nil, nil, fmt.Errorf("failed to create publisher: %w", err)
	}

	eng, err := engine.NewWithConfig(engine.Deps{
		Scorer:    scorer,
		Oracle:    oracleClient,
		Ledger:    store,
		Detector:  detector,
		Store:     store,
		Publisher: publisher,
	}, policyConfig())
	if err != nil {
		_ = publisher.Close()
		closeDetector()
		return nil, nil, err
	}

	cleanup := func() {
		_ = publisher.Close()
		closeDetector()
	}
	return eng, cleanup, nil
}

// policyConfig reads the decision-matrix knobs from configuration.
func policyConfig() engine.Config {
	cfg := engine.DefaultConfig()

	if v := viper.GetFloat64("policy.approve_below"); v > 0 {
		cfg.ApproveBelow = v
	}
	if v := viper.GetFloat64("policy.reject_at"); v > 0 {
		cfg.RejectAt = v
	}
	if mode := viper.GetString("policy.matrix_mode"); mode != "" {
		cfg.MatrixMode = engine.MatrixMode(mode)
	}
	cfg.EscalateCounts = viper.GetBool("policy.escalate_counts")

	if byType := viper.GetStringMapString("policy.matrix_mode_by_type"); len(byType) > 0 {
		cfg.MatrixModeByType = make(map[model.DocumentType]engine.MatrixMode, len(byType))
		for docType, mode := range byType {
			cfg.MatrixModeByType[model.DocumentType(docType)] = engine.MatrixMode(mode)
		}
	}

	return cfg
}
