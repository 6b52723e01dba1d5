package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/suPer8Hu/fixo/internal/ai"
	"github.com/suPer8Hu/fixo/internal/config"
	"github.com/suPer8Hu/fixo/internal/db"
	"github.com/suPer8Hu/fixo/internal/generation"
	"github.com/suPer8Hu/fixo/internal/logging"
	"github.com/suPer8Hu/fixo/internal/repair"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Load(), nil
	}
	return config.LoadFile(path)
}

func setup(configPath string) (config.Config, *zap.Logger, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return cfg, nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return cfg, nil, fmt.Errorf("build logger: %w", err)
	}
	return cfg, log, nil
}

func openRepair(cfg config.Config, log *zap.Logger) (*repair.Service, *gorm.DB, error) {
	gdb, err := db.Connect(cfg.DBDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect db: %w", err)
	}
	if err := repair.AutoMigrate(gdb); err != nil {
		closeDB(gdb)
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	minter := repair.UUIDLinkMinter{BaseURL: cfg.CallLinkBaseURL}
	return repair.NewService(repair.NewRepo(gdb), minter, log), gdb, nil
}

func closeDB(gdb *gorm.DB) {
	if sqlDB, err := gdb.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func newRegistry(cfg config.Config) *ai.Registry {
	reg := ai.NewRegistry()
	reg.Register("veo", func(ctx context.Context, model string) (ai.Provider, error) {
		return ai.NewVeoProvider(cfg.Veo.BaseURL, cfg.Veo.APIKey, model), nil
	})
	reg.Register("luma", func(ctx context.Context, model string) (ai.Provider, error) {
		return ai.NewLumaProvider(cfg.Luma.BaseURL, cfg.Luma.APIKey, model), nil
	})
	return reg
}

func newRunner(cfg config.Config, log *zap.Logger, reg prometheus.Registerer) (*generation.Runner, error) {
	var builder ai.PromptBuilder
	if cfg.OllamaBaseURL != "" {
		d, err := ai.NewOllamaDescriber(cfg.OllamaBaseURL, cfg.OllamaVisionModel)
		if err != nil {
			return nil, err
		}
		builder.Describer = d
	}
	return &generation.Runner{
		Registry: newRegistry(cfg),
		Builder:  builder,
		Settings: map[string]generation.ProviderSettings{
			"veo":  {Model: cfg.Veo.Model, Interval: cfg.Veo.PollInterval, MaxAttempts: cfg.Veo.MaxAttempts},
			"luma": {Model: cfg.Luma.Model, Interval: cfg.Luma.PollInterval, MaxAttempts: cfg.Luma.MaxAttempts},
		},
		DefaultProvider: cfg.GenerationProvider,
		Log:             log,
		Metrics:         generation.NewMetrics(reg),
	}, nil
}
