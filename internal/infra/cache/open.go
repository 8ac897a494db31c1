package cache

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/crateguard/crateguard/internal/domain/analysis"
	"github.com/crateguard/crateguard/internal/infra/cache/mysql"
	"github.com/crateguard/crateguard/internal/infra/cache/postgres"
)

// Open connects the configured backend and ensures its schema. On any
// failure it warns once and returns the Nop cache so a broken cache never
// aborts a scan. An unknown driver is a configuration error and is
// returned as such.
func Open(ctx context.Context, driver, dsn string) (analysis.Cache, error) {
	var (
		repo analysis.Cache
		err  error
	)
	switch driver {
	case "", "none":
		return Nop{}, nil
	case "mysql":
		repo, err = mysql.Open(ctx, dsn)
	case "postgres":
		repo, err = postgres.Open(ctx, dsn)
	default:
		return nil, fmt.Errorf("unknown cache driver %q", driver)
	}
	if err != nil {
		slog.Warn("cache unavailable, continuing without cache", "driver", driver, "err", err)
		return Nop{}, nil
	}
	return repo, nil
}
