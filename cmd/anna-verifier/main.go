// cmd/anna-verifier/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/anna-protocol/anna/internal/config"
	"github.com/anna-protocol/anna/internal/verifier"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	dryRun := flag.Bool("dry-run", false, "run the check pipeline without submitting verifications")
	pollInterval := flag.Int("poll-interval", 0, "polling interval in seconds (overrides config)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *pollInterval > 0 {
		cfg.Verifier.PollIntervalSeconds = *pollInterval
	}

	log, err := newLogger(cfg.Logger.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if cfg.Verifier.Address == "" && !*dryRun {
		log.Fatal("verifier.address is required outside dry-run mode")
	}
	if cfg.Verifier.ContentGatewayURL == "" {
		log.Fatal("verifier.content_gateway_url is required")
	}

	client := verifier.NewClient(cfg.Verifier.LedgerURL, cfg.Verifier.Address)
	content := verifier.NewGatewayStore(cfg.Verifier.ContentGatewayURL, cfg.Verifier.MaxFetchAttempts, log)

	runner := verifier.NewRunner(client, content, log, verifier.Options{
		PollInterval:    time.Duration(cfg.Verifier.PollIntervalSeconds) * time.Second,
		MinPassingScore: cfg.Verifier.MinPassingScore,
		BatchLimit:      cfg.Verifier.BatchLimit,
		DryRun:          *dryRun,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("anna-verifier starting",
		zap.String("ledger_url", cfg.Verifier.LedgerURL),
		zap.String("verifier", cfg.Verifier.Address),
		zap.Bool("dry_run", *dryRun))
	runner.Run(ctx)
}

func newLogger(development bool) (*zap.Logger, error) {
	if development {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
