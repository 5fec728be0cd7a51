package verifier

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/anna-protocol/anna/internal/storage"
)

// LedgerClient is the runner's view of the attestation ledger.
type LedgerClient interface {
	// PendingAttestations returns up to limit attestations awaiting
	// verification, oldest first.
	PendingAttestations(ctx context.Context, limit int) ([]storage.Attestation, error)
	// GetAttestation returns the current state of one attestation.
	GetAttestation(ctx context.Context, id string) (*storage.Attestation, error)
	// SubmitVerification writes the terminal pass/fail outcome.
	SubmitVerification(ctx context.Context, attestationID string, passed bool, score int) error
}

// Options configures a Runner.
type Options struct {
	PollInterval    time.Duration
	MinPassingScore int
	BatchLimit      int
	// DryRun runs the full check pipeline and logs results without
	// submitting verifications to the ledger.
	DryRun bool
}

// Runner polls the ledger for pending attestations, validates their
// reasoning payloads, and submits verification outcomes. At most one
// verification attempt per attestation is in flight at a time: processing is
// sequential, a processed set suppresses duplicates, and the attestation's
// status is re-checked immediately before submission (the ledger's
// single-shot verification guard remains the correctness backstop).
type Runner struct {
	ledger  LedgerClient
	content ContentStore
	log     *zap.Logger

	pollInterval    time.Duration
	minPassingScore int
	batchLimit      int
	dryRun          bool

	processed map[string]bool
}

// NewRunner creates a Runner.
func NewRunner(ledger LedgerClient, content ContentStore, log *zap.Logger, opts Options) *Runner {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 10 * time.Second
	}
	if opts.MinPassingScore <= 0 {
		opts.MinPassingScore = 60
	}
	if opts.BatchLimit <= 0 {
		opts.BatchLimit = 50
	}
	return &Runner{
		ledger:          ledger,
		content:         content,
		log:             log,
		pollInterval:    opts.PollInterval,
		minPassingScore: opts.MinPassingScore,
		batchLimit:      opts.BatchLimit,
		dryRun:          opts.DryRun,
		processed:       make(map[string]bool),
	}
}

// Run polls until the context is cancelled.
func (r *Runner) Run(ctx context.Context) {
	r.log.Info("verifier runner started",
		zap.Duration("poll_interval", r.pollInterval),
		zap.Int("min_passing_score", r.minPassingScore),
		zap.Bool("dry_run", r.dryRun))

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		r.PollOnce(ctx)
		select {
		case <-ctx.Done():
			r.log.Info("verifier runner stopped")
			return
		case <-ticker.C:
		}
	}
}

// PollOnce fetches one batch of pending attestations and processes each.
func (r *Runner) PollOnce(ctx context.Context) {
	pending, err := r.ledger.PendingAttestations(ctx, r.batchLimit)
	if err != nil {
		r.log.Error("poll pending attestations", zap.Error(err))
		return
	}

	for _, att := range pending {
		if r.processed[att.ID] {
			continue
		}
		if ctx.Err() != nil {
			return
		}
		r.process(ctx, att)
	}
}

// process verifies a single attestation. Transient failures (content fetch,
// submission) leave the attestation unprocessed so the next poll retries it;
// validation failures are terminal rejections and are submitted as such.
func (r *Runner) process(ctx context.Context, att storage.Attestation) {
	runID := uuid.New().String()
	log := r.log.With(
		zap.String("run_id", runID),
		zap.String("attestation_id", att.ID),
		zap.String("agent", att.AgentAddress),
		zap.String("category", att.Category))

	log.Info("attestation detected")

	payload, err := r.content.Fetch(ctx, att.ReasoningHash)
	if err != nil {
		log.Error("fetch reasoning payload", zap.Error(err))
		return
	}

	result := Evaluate(payload, r.minPassingScore)
	log.Info("verification pipeline complete",
		zap.Bool("passed", result.Passed),
		zap.Int("score", result.Score),
		zap.String("integrity_digest", result.IntegrityDigest),
		zap.String("failure_reason", result.FailureReason))

	if r.dryRun {
		log.Info("dry run, verification not submitted")
		r.processed[att.ID] = true
		return
	}

	// Re-check status right before submitting; another verifier may have
	// gotten there first.
	current, err := r.ledger.GetAttestation(ctx, att.ID)
	if err != nil {
		log.Error("re-check attestation status", zap.Error(err))
		return
	}
	if current.Status != storage.StatusPending {
		log.Info("attestation no longer pending, skipping",
			zap.String("status", current.Status))
		r.processed[att.ID] = true
		return
	}

	if err := r.ledger.SubmitVerification(ctx, att.ID, result.Passed, result.Score); err != nil {
		log.Error("submit verification", zap.Error(err))
		return
	}

	r.processed[att.ID] = true
	log.Info("verification submitted",
		zap.Bool("passed", result.Passed),
		zap.Int("score", result.Score))
}
