package main

import (
	"context"
	"fmt"
	"time"

	"github.com/crateguard/crateguard/internal/application"
	appscan "github.com/crateguard/crateguard/internal/application/scan"
	"github.com/crateguard/crateguard/internal/config"
	"github.com/crateguard/crateguard/internal/domain/ai"
	"github.com/crateguard/crateguard/internal/domain/analysis"
	"github.com/crateguard/crateguard/internal/infra/ai/gemini"
	"github.com/crateguard/crateguard/internal/infra/ai/openai"
	"github.com/crateguard/crateguard/internal/infra/cache"
	"github.com/crateguard/crateguard/internal/infra/registry"
)

func openCache(ctx context.Context, cfg *config.Config) (analysis.Cache, error) {
	return cache.Open(ctx, cfg.Cache.Driver, cfg.CacheDSN())
}

func buildClient(cfg *config.Config) (ai.Client, error) {
	switch cfg.Provider {
	case "", "gemini":
		if cfg.Gemini.APIKey == "" {
			return nil, fmt.Errorf("gemini api key missing: set CRATEGUARD_API_KEY or gemini.apiKey")
		}
		return gemini.NewClient(gemini.Config{
			APIKey:          cfg.Gemini.APIKey,
			Endpoint:        cfg.Gemini.Endpoint,
			Model:           cfg.Gemini.Model,
			MinInterval:     cfg.MinInterval(),
			MaxRetries:      cfg.Gemini.MaxRetries,
			Temperature:     float64(cfg.Gemini.Temperature),
			MaxOutputTokens: cfg.Gemini.MaxOutputTokens,
		}), nil
	case "openai":
		if cfg.OpenAI.APIKey == "" {
			return nil, fmt.Errorf("openai api key missing: set OPENAI_API_KEY or openai.apiKey")
		}
		return openai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

func buildService(cfg *config.Config, cacheStore analysis.Cache) (*appscan.Service, error) {
	client, err := buildClient(cfg)
	if err != nil {
		return nil, err
	}
	classifier := analysis.NewClassifier(analysis.DefaultLists())
	return &appscan.Service{
		Cache:      cacheStore,
		Client:     client,
		Registry:   registry.NewClient(cfg.Registry.BaseURL),
		Classifier: classifier,
		Deriver:    analysis.NewDeriver(classifier, time.Now),
		Scorer:     analysis.NewScorer(analysis.DefaultWeights()),
		Clock:      application.SystemClock{},
	}, nil
}
