package main

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/crateguard/crateguard/internal/infra/storage"
)

var (
	cleanupDays  int
	exportUpload bool

	cacheCmd = &cobra.Command{
		Use:   "cache",
		Short: "Inspect and maintain the result cache",
	}

	cacheStatsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Show cache entry counts and most-scanned packages",
		RunE:  runCacheStats,
	}

	cacheCleanupCmd = &cobra.Command{
		Use:   "cleanup",
		Short: "Delete cache entries older than the retention window",
		RunE:  runCacheCleanup,
	}

	cacheExportCmd = &cobra.Command{
		Use:   "export",
		Short: "Dump all cached results as JSON",
		RunE:  runCacheExport,
	}
)

func init() {
	cacheCleanupCmd.Flags().IntVar(&cleanupDays, "days", 0, "retention window in days (default from config)")
	cacheExportCmd.Flags().BoolVar(&exportUpload, "upload", false, "upload the export to the configured bucket")
	cacheCmd.AddCommand(cacheStatsCmd, cacheCleanupCmd, cacheExportCmd)
	rootCmd.AddCommand(cacheCmd)
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cacheStore, err := openCache(ctx, cfg)
	if err != nil {
		return err
	}

	stats, err := cacheStore.Stats(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("entries: %d total, %d scanned in the last 7 days\n",
		stats.TotalEntries, stats.Recent7Days)

	top, err := cacheStore.TopPackages(ctx, 10)
	if err != nil {
		return err
	}
	if len(top) > 0 {
		fmt.Println("\nmost scanned:")
		for _, p := range top {
			fmt.Printf("  %4d  %s (last %s)\n",
				p.ScanCount, p.Name, p.LastScan.Format("2006-01-02"))
		}
	}
	return nil
}

func runCacheCleanup(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cacheStore, err := openCache(ctx, cfg)
	if err != nil {
		return err
	}

	days := cleanupDays
	if days <= 0 {
		days = cfg.Cache.MaxAgeDays
	}
	removed, err := cacheStore.Cleanup(ctx, days)
	if err != nil {
		return err
	}
	log.Printf("removed %d entries older than %d days", removed, days)
	return nil
}

func runCacheExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cacheStore, err := openCache(ctx, cfg)
	if err != nil {
		return err
	}

	entries, err := cacheStore.Export(ctx)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}

	if !exportUpload {
		fmt.Println(string(data))
		return nil
	}

	store, err := storage.New(ctx,
		cfg.Minio.Endpoint,
		cfg.Minio.Region,
		cfg.Minio.BucketName,
		cfg.Minio.AccessKey,
		cfg.Minio.SecretKey,
		cfg.Minio.UseSSL,
	)
	if err != nil {
		return err
	}
	key := fmt.Sprintf("exports/cache-%s.json", time.Now().Format("20060102-150405"))
	url, err := store.UploadJSON(ctx, key, data)
	if err != nil {
		return err
	}
	log.Printf("export uploaded: %s", url)
	return nil
}
