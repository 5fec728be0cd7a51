package verifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/anna-protocol/anna/internal/storage"
)

// Client is an HTTP LedgerClient talking to an annad instance.
type Client struct {
	baseURL string
	address string
	http    *http.Client
}

// NewClient creates a Client. address is the verifier's own address, sent as
// the caller on verification submissions.
func NewClient(baseURL, address string) *Client {
	return &Client{
		baseURL: baseURL,
		address: address,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// PendingAttestations implements LedgerClient.
func (c *Client) PendingAttestations(ctx context.Context, limit int) ([]storage.Attestation, error) {
	q := url.Values{}
	q.Set("status", storage.StatusPending)
	q.Set("limit", strconv.Itoa(limit))

	var out []storage.Attestation
	if err := c.get(ctx, "/api/attestations?"+q.Encode(), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetAttestation implements LedgerClient.
func (c *Client) GetAttestation(ctx context.Context, id string) (*storage.Attestation, error) {
	var out storage.Attestation
	if err := c.get(ctx, "/api/attestations/"+id, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SubmitVerification implements LedgerClient.
func (c *Client) SubmitVerification(ctx context.Context, attestationID string, passed bool, score int) error {
	body, err := json.Marshal(map[string]any{
		"caller":            c.address,
		"passed":            passed,
		"consistency_score": score,
	})
	if err != nil {
		return fmt.Errorf("marshal verification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/attestations/"+attestationID+"/verify", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("submit verification: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("submit verification: %s", apiError(resp))
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("get %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("get %s: %s", path, apiError(resp))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// apiError extracts the error message from an API error response.
func apiError(resp *http.Response) string {
	var body struct {
		Error string `json:"error"`
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err == nil && json.Unmarshal(raw, &body) == nil && body.Error != "" {
		return fmt.Sprintf("status %d: %s", resp.StatusCode, body.Error)
	}
	return fmt.Sprintf("status %d", resp.StatusCode)
}
