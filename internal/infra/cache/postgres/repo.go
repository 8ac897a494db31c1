package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/crateguard/crateguard/internal/domain/analysis"
)

// Repository is the Postgres-backed result cache, interchangeable with the
// MySQL backend.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Open connects, pings, and prepares the cache schema.
func Open(ctx context.Context, dsn string) (*Repository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx2, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx2); err != nil {
		db.Close()
		return nil, err
	}

	repo := NewRepository(db)
	if err := repo.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return repo, nil
}

func (r *Repository) ensureSchema(ctx context.Context) error {
	const results = `
CREATE TABLE IF NOT EXISTS scan_results (
 id BIGSERIAL PRIMARY KEY,
 package_name TEXT NOT NULL,
 package_version TEXT NOT NULL,
 content_hash CHAR(64) NOT NULL,
 analysis TEXT NOT NULL,
 flagged_patterns_json TEXT NOT NULL,
 scan_date TIMESTAMPTZ NOT NULL,
 llm_model TEXT NOT NULL,
 UNIQUE (package_name, package_version, content_hash)
);`
	const stats = `
CREATE TABLE IF NOT EXISTS cache_stats (
 id BIGSERIAL PRIMARY KEY,
 scan_date TIMESTAMPTZ NOT NULL,
 total_packages INT NOT NULL DEFAULT 0,
 cache_hits INT NOT NULL DEFAULT 0,
 new_scans INT NOT NULL DEFAULT 0,
 api_calls_saved INT NOT NULL DEFAULT 0
);`
	if _, err := r.db.ExecContext(ctx, results); err != nil {
		return fmt.Errorf("creating scan_results: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, stats); err != nil {
		return fmt.Errorf("creating cache_stats: %w", err)
	}
	return nil
}

func (r *Repository) Lookup(ctx context.Context, name, version, fingerprint string) (*analysis.CachedResult, error) {
	const q = `
SELECT id, package_name, package_version, content_hash, analysis,
       flagged_patterns_json, scan_date, llm_model
FROM scan_results
WHERE package_name=$1 AND package_version=$2 AND content_hash=$3
LIMIT 1;`
	entry, err := scanCached(r.db.QueryRowContext(ctx, q, name, version, fingerprint))
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (r *Repository) Store(ctx context.Context, name, version, fingerprint, analysisText string, patterns []analysis.FlaggedPattern, modelID string) (int64, error) {
	if patterns == nil {
		patterns = []analysis.FlaggedPattern{}
	}
	patternsJSON, err := json.Marshal(patterns)
	if err != nil {
		return 0, fmt.Errorf("marshaling patterns: %w", err)
	}
	const q = `
INSERT INTO scan_results
(package_name, package_version, content_hash, analysis, flagged_patterns_json, scan_date, llm_model)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (package_name, package_version, content_hash) DO UPDATE SET
 analysis=EXCLUDED.analysis,
 flagged_patterns_json=EXCLUDED.flagged_patterns_json,
 scan_date=EXCLUDED.scan_date,
 llm_model=EXCLUDED.llm_model
RETURNING id;`
	var id int64
	if err := r.db.QueryRowContext(ctx, q,
		name, version, fingerprint, analysisText, string(patternsJSON),
		time.Now().UTC(), modelID,
	).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func (r *Repository) Cleanup(ctx context.Context, maxAgeDays int) (int64, error) {
	const q = `DELETE FROM scan_results WHERE scan_date < NOW() - make_interval(days => $1);`
	res, err := r.db.ExecContext(ctx, q, maxAgeDays)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *Repository) Stats(ctx context.Context) (analysis.CacheStats, error) {
	var s analysis.CacheStats
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM scan_results;`).Scan(&s.TotalEntries); err != nil {
		return s, err
	}
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM scan_results WHERE scan_date > NOW() - INTERVAL '7 days';`,
	).Scan(&s.Recent7Days); err != nil {
		return s, err
	}
	return s, nil
}

func (r *Repository) Export(ctx context.Context) ([]analysis.CachedResult, error) {
	const q = `
SELECT id, package_name, package_version, content_hash, analysis,
       flagged_patterns_json, scan_date, llm_model
FROM scan_results
ORDER BY scan_date DESC;`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []analysis.CachedResult
	for rows.Next() {
		entry, err := scanCachedRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *entry)
	}
	return out, rows.Err()
}

func (r *Repository) TopPackages(ctx context.Context, limit int) ([]analysis.PackageStats, error) {
	if limit <= 0 {
		limit = 10
	}
	const q = `
SELECT package_name, COUNT(*) AS scan_count, MAX(scan_date) AS last_scan_date
FROM scan_results
GROUP BY package_name
ORDER BY scan_count DESC
LIMIT $1;`
	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []analysis.PackageStats
	for rows.Next() {
		var p analysis.PackageStats
		if err := rows.Scan(&p.Name, &p.ScanCount, &p.LastScan); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repository) RecordSession(ctx context.Context, stats analysis.SessionStats) error {
	const q = `
INSERT INTO cache_stats (scan_date, total_packages, cache_hits, new_scans, api_calls_saved)
VALUES ($1,$2,$3,$4,$5);`
	_, err := r.db.ExecContext(ctx, q,
		time.Now().UTC(), stats.TotalUnits, stats.CacheHits, stats.NewScans, stats.CacheHits)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCached(row *sql.Row) (*analysis.CachedResult, error) {
	entry, err := scanCachedRows(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return entry, err
}

func scanCachedRows(s rowScanner) (*analysis.CachedResult, error) {
	var entry analysis.CachedResult
	var patternsJSON string
	if err := s.Scan(
		&entry.ID, &entry.Name, &entry.Version, &entry.Fingerprint,
		&entry.AnalysisText, &patternsJSON, &entry.ScanDate, &entry.ModelID,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(patternsJSON), &entry.FlaggedPatterns); err != nil {
		return nil, fmt.Errorf("decoding flagged patterns: %w", err)
	}
	return &entry, nil
}
