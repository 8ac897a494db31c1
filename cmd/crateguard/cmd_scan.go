package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	appscan "github.com/crateguard/crateguard/internal/application/scan"
	"github.com/crateguard/crateguard/internal/domain/analysis"
	"github.com/crateguard/crateguard/internal/infra/manifest"
	"github.com/crateguard/crateguard/internal/infra/storage"
)

var (
	scanDeepAll        bool
	scanNoCache        bool
	scanIncludeSources bool
	scanOutput         string
	scanUpload         bool

	scanCmd = &cobra.Command{
		Use:   "scan [project path]",
		Short: "Scan a Rust project's dependencies for supply-chain risk",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runScan,
	}
)

func init() {
	scanCmd.Flags().BoolVar(&scanDeepAll, "deep-all", false, "deep-analyze every dependency, including trusted ones")
	scanCmd.Flags().BoolVar(&scanNoCache, "no-cache", false, "skip the result cache entirely")
	scanCmd.Flags().BoolVar(&scanIncludeSources, "sources", false, "also scan the project's own .rs files")
	scanCmd.Flags().StringVarP(&scanOutput, "output", "o", "", "write the full JSON report to this file")
	scanCmd.Flags().BoolVar(&scanUpload, "upload", false, "upload the JSON report to the configured bucket")
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	path := "."
	if len(args) == 1 {
		path = args[0]
	}

	units, err := manifest.Units(path)
	if err != nil {
		return err
	}
	if scanIncludeSources {
		sources, err := manifest.SourceUnits(path)
		if err != nil {
			return err
		}
		units = append(units, sources...)
	}
	if len(units) == 0 {
		return fmt.Errorf("no dependencies found under %s", path)
	}

	ctx := cmd.Context()
	cacheStore, err := openCache(ctx, cfg)
	if err != nil {
		return err
	}
	svc, err := buildService(cfg, cacheStore)
	if err != nil {
		return err
	}

	report, err := svc.Run(ctx, units, appscan.Options{
		DeepAll: scanDeepAll,
		NoCache: scanNoCache,
	})
	if err != nil {
		return err
	}

	printReport(report)

	if scanOutput == "" && !scanUpload {
		return nil
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	if scanOutput != "" {
		if err := os.WriteFile(scanOutput, data, 0o644); err != nil {
			return err
		}
		log.Printf("report written to %s", scanOutput)
	}
	if scanUpload {
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
		key := fmt.Sprintf("reports/%s.json", report.SessionID)
		url, err := store.UploadJSON(ctx, key, data)
		if err != nil {
			return err
		}
		log.Printf("report uploaded: %s", url)
	}
	return nil
}

func printReport(report *appscan.Report) {
	fmt.Printf("session %s: %d units, %d cache hits, %d new scans (%s)\n\n",
		report.SessionID,
		report.Stats.TotalUnits,
		report.Stats.CacheHits,
		report.Stats.NewScans,
		report.Duration.Round(time.Millisecond),
	)

	for _, r := range report.Results {
		marker := " "
		if r.CacheHit {
			marker = "*"
		}
		fmt.Printf("%-8s %s %s %s\n", r.RiskTier, marker, r.Unit.Name, r.Unit.Version)
		for _, f := range r.MetadataFlags {
			fmt.Printf("         - [%s] %s\n", f.Severity, f.Description)
		}
		for _, p := range r.FlaggedPatterns {
			fmt.Printf("         - [%s] line %d: %s\n", p.Severity, p.Line, p.Description)
		}
	}

	if tally := countFlagged(report.Results); tally > 0 {
		fmt.Printf("\n%d of %d units flagged\n", tally, len(report.Results))
	} else {
		fmt.Println("\nno units flagged")
	}
}

func countFlagged(results []analysis.Result) int {
	n := 0
	for _, r := range results {
		if r.RiskTier != analysis.RiskClean {
			n++
		}
	}
	return n
}
