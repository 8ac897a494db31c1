package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/crateguard/crateguard/internal/domain/analysis"
)

// Repository is the MySQL-backed result cache. One row per
// (package_name, package_version, content_hash); repeated stores for the
// same triple replace the prior row.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) ensureSchema(ctx context.Context) error {
	const results = `
CREATE TABLE IF NOT EXISTS scan_results (
 id BIGINT AUTO_INCREMENT PRIMARY KEY,
 package_name VARCHAR(255) NOT NULL,
 package_version VARCHAR(128) NOT NULL,
 content_hash CHAR(64) NOT NULL,
 analysis TEXT NOT NULL,
 flagged_patterns_json TEXT NOT NULL,
 scan_date DATETIME NOT NULL,
 llm_model VARCHAR(128) NOT NULL,
 UNIQUE KEY uniq_package_lookup (package_name, package_version, content_hash)
);`
	const stats = `
CREATE TABLE IF NOT EXISTS cache_stats (
 id BIGINT AUTO_INCREMENT PRIMARY KEY,
 scan_date DATETIME NOT NULL,
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

// Lookup is a pure read; a missing row is (nil, nil).
func (r *Repository) Lookup(ctx context.Context, name, version, fingerprint string) (*analysis.CachedResult, error) {
	const q = `
SELECT id, package_name, package_version, content_hash, analysis,
       flagged_patterns_json, scan_date, llm_model
FROM scan_results
WHERE package_name=? AND package_version=? AND content_hash=?
LIMIT 1;`
	row := r.db.QueryRowContext(ctx, q, name, version, fingerprint)
	return scanCached(row)
}

// Store upserts the result for the key triple and returns the row id.
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
VALUES (?,?,?,?,?,?,?)
ON DUPLICATE KEY UPDATE
 analysis=VALUES(analysis),
 flagged_patterns_json=VALUES(flagged_patterns_json),
 scan_date=VALUES(scan_date),
 llm_model=VALUES(llm_model),
 id=LAST_INSERT_ID(id);`
	res, err := r.db.ExecContext(ctx, q,
		name, version, fingerprint, analysisText, string(patternsJSON), time.Now().UTC(), modelID)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// Cleanup removes entries older than maxAgeDays and reports how many.
func (r *Repository) Cleanup(ctx context.Context, maxAgeDays int) (int64, error) {
	const q = `DELETE FROM scan_results WHERE scan_date < DATE_SUB(NOW(), INTERVAL ? DAY);`
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
		`SELECT COUNT(*) FROM scan_results WHERE scan_date > DATE_SUB(NOW(), INTERVAL 7 DAY);`,
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
LIMIT ?;`
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
VALUES (?,?,?,?,?);`
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
