// cmd/annad/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/anna-protocol/anna/internal/config"
	"github.com/anna-protocol/anna/internal/ledger"
	"github.com/anna-protocol/anna/internal/server"
	"github.com/anna-protocol/anna/internal/storage"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
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

	log, err := newLogger(cfg.Logger.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if cfg.Ledger.AdminAddress == "" {
		log.Fatal("ledger.admin_address is required")
	}
	window, err := cfg.ParsedChallengeWindow()
	if err != nil {
		log.Fatal("parse challenge window", zap.Error(err))
	}

	db, err := storage.NewDB(cfg.Ledger.DBPath)
	if err != nil {
		log.Fatal("open database", zap.Error(err))
	}
	defer db.Close()

	l, err := ledger.New(db, ledger.Options{
		Admin:           cfg.Ledger.AdminAddress,
		ChallengeWindow: window,
	})
	if err != nil {
		log.Fatal("init ledger", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go runReputationObserver(ctx, l, log)

	srv := &http.Server{
		Addr: cfg.Server.ListenAddr,
		Handler: server.New(l, log, server.Options{
			SubmitRatePerMinute: cfg.Server.SubmitRatePerMinute,
		}),
	}

	go func() {
		log.Info("annad listening",
			zap.String("addr", cfg.Server.ListenAddr),
			zap.String("db", cfg.Ledger.DBPath),
			zap.Duration("challenge_window", window))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("shutdown", zap.Error(err))
	}
}

// runReputationObserver folds verification outcomes into reputation as they
// happen. The ledger's processed marker makes a duplicate fold harmless, so
// an external caller driving the update endpoint at the same time cannot
// double-count.
func runReputationObserver(ctx context.Context, l *ledger.Ledger, log *zap.Logger) {
	events, cancel := l.Bus().Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			if evt.Type != ledger.EventAttestationVerified {
				continue
			}
			verified, ok := evt.Payload.(ledger.AttestationVerified)
			if !ok {
				continue
			}

			att, err := l.GetAttestation(verified.AttestationID)
			if err != nil {
				log.Error("load verified attestation", zap.Error(err))
				continue
			}
			rec, err := l.UpdateReputation(att.AgentAddress, att.ID, time.Now().Unix())
			if errors.Is(err, ledger.ErrAlreadyProcessed) {
				continue
			}
			if err != nil {
				log.Error("update reputation",
					zap.String("attestation_id", att.ID),
					zap.Error(err))
				continue
			}
			log.Info("reputation folded",
				zap.String("agent", rec.AgentAddress),
				zap.Int64("score", rec.Score))
		}
	}
}

func newLogger(development bool) (*zap.Logger, error) {
	if development {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
