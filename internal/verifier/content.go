package verifier

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// ContentStore fetches off-chain reasoning payloads by their committed hash.
// Implementations may block on network I/O; transient failures are retryable.
type ContentStore interface {
	Fetch(ctx context.Context, hash string) ([]byte, error)
}

// GatewayStore fetches payloads from an HTTP content gateway (an IPFS-style
// gateway or any store serving GET <base>/<hash>). Transient failures are
// retried up to maxAttempts with linear backoff, logging each attempt.
type GatewayStore struct {
	baseURL     string
	client      *http.Client
	maxAttempts int
	retryDelay  time.Duration
	log         *zap.Logger
}

// NewGatewayStore creates a GatewayStore. maxAttempts below 1 is clamped to 1.
func NewGatewayStore(baseURL string, maxAttempts int, log *zap.Logger) *GatewayStore {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &GatewayStore{
		baseURL:     baseURL,
		client:      &http.Client{Timeout: 30 * time.Second},
		maxAttempts: maxAttempts,
		retryDelay:  2 * time.Second,
		log:         log,
	}
}

// Fetch retrieves the payload committed under hash.
func (g *GatewayStore) Fetch(ctx context.Context, hash string) ([]byte, error) {
	target, err := url.JoinPath(g.baseURL, hash)
	if err != nil {
		return nil, fmt.Errorf("build content url: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		body, err := g.fetchOnce(ctx, target)
		if err == nil {
			return body, nil
		}
		lastErr = err
		g.log.Warn("content fetch attempt failed",
			zap.String("hash", hash),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", g.maxAttempts),
			zap.Error(err))

		if attempt < g.maxAttempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(g.retryDelay):
			}
		}
	}
	return nil, fmt.Errorf("fetch content %s after %d attempts: %w", hash, g.maxAttempts, lastErr)
}

func (g *GatewayStore) fetchOnce(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gateway returned %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxPayloadSize+1))
}
