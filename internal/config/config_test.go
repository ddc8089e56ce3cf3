package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, StyleBoxed, cfg.Discord.Style)
	assert.Equal(t, 15*time.Second, cfg.Discord.Timeout)
	assert.Equal(t, 3, cfg.Discord.MaxAttempts)
	assert.Equal(t, "de-DE", cfg.Metadata.PreferredLocale)
	assert.Equal(t, "en-US", cfg.Metadata.FallbackLocale)
	assert.Equal(t, 500*time.Millisecond, cfg.Metadata.RetryDelay)
	assert.Equal(t, 4*time.Second, cfg.Metadata.CallTimeout)
	assert.Equal(t, 200, cfg.Store.Capacity)
	assert.Equal(t, "https://api.themoviedb.org/3", cfg.TMDB.BaseURL)
}

func TestLoad_PrefixedEnv(t *testing.T) {
	t.Setenv("PLEXNOTE_STORE_CAPACITY", "50")
	t.Setenv("PLEXNOTE_METADATA_RETRY_DELAY", "1s")
	t.Setenv("PLEXNOTE_DISCORD_STYLE", " Telegram ")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.Store.Capacity)
	assert.Equal(t, time.Second, cfg.Metadata.RetryDelay)
	assert.Equal(t, StyleTelegram, cfg.Discord.Style)
}

func TestLoad_LegacyEnvAliases(t *testing.T) {
	t.Setenv("WEBHOOK_URL", "https://discord.com/api/webhooks/1/abc")
	t.Setenv("TAUTULLI_URL", "http://tautulli:8181")
	t.Setenv("TAUTULLI_API_KEY", "tk")
	t.Setenv("TMDB_API_KEY", "tmdb-key")
	t.Setenv("PLACEHOLDER_IMG", "https://example.com/p.png")
	t.Setenv("EMBED_STYLE", "klassisch")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "https://discord.com/api/webhooks/1/abc", cfg.Discord.WebhookURL)
	assert.Equal(t, "http://tautulli:8181", cfg.Tautulli.URL)
	assert.Equal(t, "tk", cfg.Tautulli.APIKey)
	assert.Equal(t, "tmdb-key", cfg.TMDB.APIKey)
	assert.Equal(t, "https://example.com/p.png", cfg.Metadata.PlaceholderImage)
	assert.Equal(t, StyleKlassisch, cfg.Discord.Style)
}

func TestLoad_PrefixedWinsOverLegacy(t *testing.T) {
	t.Setenv("PLEXNOTE_TAUTULLI_API_KEY", "new")
	t.Setenv("TAUTULLI_API_KEY", "old")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "new", cfg.Tautulli.APIKey)
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
discord:
  webhook_url: https://discord.com/api/webhooks/2/xyz
  style: telegram
tautulli:
  url: http://localhost:8181
  api_key: file-key
store:
  path: /tmp/plexnote/notified.json
  lock_timeout: 2s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, StyleTelegram, cfg.Discord.Style)
	assert.Equal(t, "file-key", cfg.Tautulli.APIKey)
	assert.Equal(t, "/tmp/plexnote/notified.json", cfg.Store.Path)
	assert.Equal(t, 2*time.Second, cfg.Store.LockTimeout)
	assert.Equal(t, 200, cfg.Store.Capacity)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_BadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("discord: [unclosed"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Config.Discord.WebhookURL")
	assert.Contains(t, err.Error(), "Config.Tautulli.URL")

	cfg.Discord.WebhookURL = "https://discord.com/api/webhooks/1/abc"
	cfg.Tautulli.URL = "http://tautulli:8181"
	cfg.Tautulli.APIKey = "key"
	assert.NoError(t, cfg.Validate())

	cfg.Discord.Style = "fancy"
	assert.Error(t, cfg.Validate())
}

func TestRedacted(t *testing.T) {
	cfg := Default()
	cfg.Discord.WebhookURL = "https://discord.com/api/webhooks/1/secret"
	cfg.Tautulli.APIKey = "secret"
	cfg.TMDB.APIKey = ""

	out := cfg.Redacted()
	assert.Equal(t, redacted, out.Discord.WebhookURL)
	assert.Equal(t, redacted, out.Tautulli.APIKey)
	assert.Empty(t, out.TMDB.APIKey)
	assert.Equal(t, "secret", cfg.Tautulli.APIKey, "original must be untouched")
}

func TestServerAddress(t *testing.T) {
	s := ServerConfig{Host: "127.0.0.1", Port: 8089}
	if got := s.Address(); got != "127.0.0.1:8089" {
		t.Errorf("Address() = %q, want %q", got, "127.0.0.1:8089")
	}
}
