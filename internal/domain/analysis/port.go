package analysis

import "context"

// Cache port for the persistent result cache. Implementations are strictly
// an optimization: a failing lookup is a miss, a failing store is a no-op.
type Cache interface {
	Lookup(ctx context.Context, name, version, fingerprint string) (*CachedResult, error)
	Store(ctx context.Context, name, version, fingerprint, analysisText string, patterns []FlaggedPattern, modelID string) (int64, error)
	Cleanup(ctx context.Context, maxAgeDays int) (int64, error)
	Stats(ctx context.Context) (CacheStats, error)
	Export(ctx context.Context) ([]CachedResult, error)
	TopPackages(ctx context.Context, limit int) ([]PackageStats, error)
	RecordSession(ctx context.Context, stats SessionStats) error
}

// Registry port for best-effort package metadata lookups. Returning
// (nil, nil) means the registry had nothing usable; callers must treat any
// error as equivalent.
type Registry interface {
	Metadata(ctx context.Context, name string) (*RegistryMetadata, error)
}
