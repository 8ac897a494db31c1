package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/crateguard/crateguard/internal/infra/httpserver"
	"github.com/crateguard/crateguard/internal/middleware"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scan API server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cacheStore, err := openCache(ctx, cfg)
	if err != nil {
		return err
	}
	svc, err := buildService(cfg, cacheStore)
	if err != nil {
		return err
	}

	limiter := middleware.NewRateLimiter(10, 2)
	defer limiter.Stop()

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpserver.NewRouter(svc, cacheStore, limiter, nil),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Println("shutting down server...")

	ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx2)
}
