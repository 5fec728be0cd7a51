package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// LedgerConfig configures the core ledger.
type LedgerConfig struct {
	DBPath       string `yaml:"db_path"`
	AdminAddress string `yaml:"admin_address"`
	// ChallengeWindow is a Go duration string. Default is 168h (7 days).
	ChallengeWindow string `yaml:"challenge_window"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	// SubmitRatePerMinute caps attestation submissions per agent address.
	SubmitRatePerMinute int `yaml:"submit_rate_per_minute"`
}

// VerifierConfig configures the off-chain verifier process.
type VerifierConfig struct {
	// LedgerURL is the base URL of the annad API the verifier polls.
	LedgerURL string `yaml:"ledger_url"`
	// Address is the verifier's own address; it must be in the ledger's
	// authorized-verifier set for verifications to land.
	Address string `yaml:"address"`
	// ContentGatewayURL is the off-chain content store gateway; reasoning
	// payloads are fetched as <gateway>/<reasoning_hash>.
	ContentGatewayURL   string `yaml:"content_gateway_url"`
	PollIntervalSeconds int    `yaml:"poll_interval_seconds"`
	MinPassingScore     int    `yaml:"min_passing_score"`
	MaxFetchAttempts    int    `yaml:"max_fetch_attempts"`
	BatchLimit          int    `yaml:"batch_limit"`
}

// LoggerConfig configures logging.
type LoggerConfig struct {
	Development bool `yaml:"development"`
}

// Config is the top-level configuration shared by annad and anna-verifier.
type Config struct {
	Ledger   LedgerConfig   `yaml:"ledger"`
	Server   ServerConfig   `yaml:"server"`
	Verifier VerifierConfig `yaml:"verifier"`
	Logger   LoggerConfig   `yaml:"logger"`
}

// Default returns the configuration defaults: 10s polling, 60/100 passing
// threshold, 7-day challenge window.
func Default() *Config {
	return &Config{
		Ledger: LedgerConfig{
			DBPath:          "anna.db",
			ChallengeWindow: "168h",
		},
		Server: ServerConfig{
			ListenAddr:          ":8480",
			SubmitRatePerMinute: 60,
		},
		Verifier: VerifierConfig{
			LedgerURL:           "http://localhost:8480",
			PollIntervalSeconds: 10,
			MinPassingScore:     60,
			MaxFetchAttempts:    3,
			BatchLimit:          50,
		},
	}
}

// Load reads a YAML config file over the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if _, err := cfg.ParsedChallengeWindow(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParsedChallengeWindow parses the challenge window duration string.
func (c *Config) ParsedChallengeWindow() (time.Duration, error) {
	d, err := time.ParseDuration(c.Ledger.ChallengeWindow)
	if err != nil {
		return 0, fmt.Errorf("invalid challenge_window %q: %w", c.Ledger.ChallengeWindow, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("challenge_window must be positive, got %q", c.Ledger.ChallengeWindow)
	}
	return d, nil
}

// PollInterval returns the verifier polling interval as a duration.
func (c *Config) PollInterval() time.Duration {
	secs := c.Verifier.PollIntervalSeconds
	if secs <= 0 {
		secs = 10
	}
	return time.Duration(secs) * time.Second
}
