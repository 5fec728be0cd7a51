package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "anna.db", cfg.Ledger.DBPath)
	assert.Equal(t, "168h", cfg.Ledger.ChallengeWindow)
	assert.Equal(t, ":8480", cfg.Server.ListenAddr)
	assert.Equal(t, 60, cfg.Server.SubmitRatePerMinute)
	assert.Equal(t, 10, cfg.Verifier.PollIntervalSeconds)
	assert.Equal(t, 60, cfg.Verifier.MinPassingScore)
	assert.Equal(t, 3, cfg.Verifier.MaxFetchAttempts)
	assert.Equal(t, 50, cfg.Verifier.BatchLimit)

	window, err := cfg.ParsedChallengeWindow()
	require.NoError(t, err)
	assert.Equal(t, 7*24*time.Hour, window)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
ledger:
  db_path: /var/lib/anna/ledger.db
  admin_address: "0xabcdefabcdefabcdefabcdefabcdefabcdefabcd"
  challenge_window: 48h
server:
  listen_addr: ":9000"
verifier:
  ledger_url: http://ledger:8480
  min_passing_score: 80
logger:
  development: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/anna/ledger.db", cfg.Ledger.DBPath)
	assert.Equal(t, "0xabcdefabcdefabcdefabcdefabcdefabcdefabcd", cfg.Ledger.AdminAddress)
	assert.Equal(t, ":9000", cfg.Server.ListenAddr)
	assert.Equal(t, "http://ledger:8480", cfg.Verifier.LedgerURL)
	assert.Equal(t, 80, cfg.Verifier.MinPassingScore)
	assert.True(t, cfg.Logger.Development)

	// Untouched fields keep their defaults.
	assert.Equal(t, 60, cfg.Server.SubmitRatePerMinute)
	assert.Equal(t, 10, cfg.Verifier.PollIntervalSeconds)

	window, err := cfg.ParsedChallengeWindow()
	require.NoError(t, err)
	assert.Equal(t, 48*time.Hour, window)
}

func TestLoad_InvalidChallengeWindow(t *testing.T) {
	_, err := Load(writeConfig(t, "ledger:\n  challenge_window: soon\n"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "ledger:\n  challenge_window: -1h\n"))
	assert.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_MalformedYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "ledger: ["))
	assert.Error(t, err)
}

func TestPollInterval(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 10*time.Second, cfg.PollInterval())

	cfg.Verifier.PollIntervalSeconds = 30
	assert.Equal(t, 30*time.Second, cfg.PollInterval())

	cfg.Verifier.PollIntervalSeconds = 0
	assert.Equal(t, 10*time.Second, cfg.PollInterval())
}
