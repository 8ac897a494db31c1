package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/crateguard/crateguard/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "crateguard",
	Short: "Supply-chain risk triage for Rust crate dependencies",
	Long: `crateguard inspects a Rust project's dependency tree, triages each
crate by name heuristics, and runs deep AI analysis on the suspicious ones.
Results are cached by content hash so repeat scans stay cheap.`,
	SilenceUsage: true,
}

func main() {
	// .env files are a local dev convenience only
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load(".env")

	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	var err error
	cfg, err = config.Load(path)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
