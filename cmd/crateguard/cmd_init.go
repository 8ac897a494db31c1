package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/crateguard/crateguard/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starting config.yaml in the current directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		const path = "config.yaml"
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
		if err := config.Default().Write(path); err != nil {
			return err
		}
		log.Printf("wrote %s; set CRATEGUARD_API_KEY or gemini.apiKey before scanning", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
