// Package cache selects and opens the persistent result cache. When the
// backing store cannot be reached the whole run degrades to a no-op cache:
// every lookup is a forced miss, every store is silently ignored, and the
// scan continues.
package cache

import (
	"context"

	"github.com/crateguard/crateguard/internal/domain/analysis"
)

// Nop is the degraded cache. It satisfies analysis.Cache and never errors.
type Nop struct{}

func (Nop) Lookup(ctx context.Context, name, version, fingerprint string) (*analysis.CachedResult, error) {
	return nil, nil
}

func (Nop) Store(ctx context.Context, name, version, fingerprint, analysisText string, patterns []analysis.FlaggedPattern, modelID string) (int64, error) {
	return 0, nil
}

func (Nop) Cleanup(ctx context.Context, maxAgeDays int) (int64, error) { return 0, nil }

func (Nop) Stats(ctx context.Context) (analysis.CacheStats, error) {
	return analysis.CacheStats{}, nil
}

func (Nop) Export(ctx context.Context) ([]analysis.CachedResult, error) { return nil, nil }

func (Nop) TopPackages(ctx context.Context, limit int) ([]analysis.PackageStats, error) {
	return nil, nil
}

func (Nop) RecordSession(ctx context.Context, stats analysis.SessionStats) error { return nil }
