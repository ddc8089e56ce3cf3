package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Embed styles understood by the Discord notifier.
const (
	StyleBoxed     = "boxed"
	StyleTelegram  = "telegram"
	StyleKlassisch = "klassisch"
)

const redacted = "********"

// Config holds all application configuration.
type Config struct {
	Discord  DiscordConfig  `mapstructure:"discord" yaml:"discord"`
	Tautulli TautulliConfig `mapstructure:"tautulli" yaml:"tautulli"`
	TMDB     TMDBConfig     `mapstructure:"tmdb" yaml:"tmdb"`
	TVDB     TVDBConfig     `mapstructure:"tvdb" yaml:"tvdb"`
	Plex     PlexConfig     `mapstructure:"plex" yaml:"plex"`
	Metadata MetadataConfig `mapstructure:"metadata" yaml:"metadata"`
	Store    StoreConfig    `mapstructure:"store" yaml:"store"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Watch    WatchConfig    `mapstructure:"watch" yaml:"watch"`
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging"`
}

// DiscordConfig holds the webhook target and embed layout.
type DiscordConfig struct {
	WebhookURL  string        `mapstructure:"webhook_url" yaml:"webhook_url" validate:"required,url"`
	Style       string        `mapstructure:"style" yaml:"style" validate:"oneof=boxed telegram klassisch"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"gt=0"`
	MaxAttempts int           `mapstructure:"max_attempts" yaml:"max_attempts" validate:"min=1,max=10"`
}

// TautulliConfig holds the Tautulli API endpoint.
type TautulliConfig struct {
	URL     string        `mapstructure:"url" yaml:"url" validate:"required,url"`
	APIKey  string        `mapstructure:"api_key" yaml:"api_key" validate:"required"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"gt=0"`
}

// TMDBConfig holds TMDB API configuration. An empty API key disables the
// catalog.
type TMDBConfig struct {
	APIKey            string  `mapstructure:"api_key" yaml:"api_key"`
	BaseURL           string  `mapstructure:"base_url" yaml:"base_url" validate:"required,url"`
	ImageBaseURL      string  `mapstructure:"image_base_url" yaml:"image_base_url" validate:"required,url"`
	Timeout           int     `mapstructure:"timeout" yaml:"timeout" validate:"gt=0"` // seconds
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second" validate:"gt=0"`
}

// TVDBConfig holds TVDB v4 API configuration. An empty API key disables the
// catalog.
type TVDBConfig struct {
	APIKey  string `mapstructure:"api_key" yaml:"api_key"`
	BaseURL string `mapstructure:"base_url" yaml:"base_url" validate:"required,url"`
	Timeout int    `mapstructure:"timeout" yaml:"timeout" validate:"gt=0"` // seconds
}

// PlexConfig is used to build deep links into Plex Web.
type PlexConfig struct {
	BaseURL  string `mapstructure:"base_url" yaml:"base_url" validate:"omitempty,url"`
	ServerID string `mapstructure:"server_id" yaml:"server_id"`
}

// MetadataConfig tunes the resolution pipeline.
type MetadataConfig struct {
	PreferredLocale  string        `mapstructure:"preferred_locale" yaml:"preferred_locale" validate:"required,bcp47_language_tag"`
	FallbackLocale   string        `mapstructure:"fallback_locale" yaml:"fallback_locale" validate:"required,bcp47_language_tag"`
	RetryDelay       time.Duration `mapstructure:"retry_delay" yaml:"retry_delay" validate:"gte=0"`
	CallTimeout      time.Duration `mapstructure:"call_timeout" yaml:"call_timeout" validate:"gt=0"`
	PlaceholderImage string        `mapstructure:"placeholder_image" yaml:"placeholder_image" validate:"required,url"`
	CacheTTL         time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl" validate:"gte=0"`
}

// StoreConfig locates the dedup store.
type StoreConfig struct {
	Path        string        `mapstructure:"path" yaml:"path" validate:"required"`
	Capacity    int           `mapstructure:"capacity" yaml:"capacity" validate:"min=1"`
	LockTimeout time.Duration `mapstructure:"lock_timeout" yaml:"lock_timeout" validate:"gt=0"`
}

// ServerConfig holds HTTP server configuration for webhook mode.
type ServerConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port" validate:"min=1,max=65535"`
}

// WatchConfig holds the polling schedule.
type WatchConfig struct {
	Cron  string `mapstructure:"cron" yaml:"cron" validate:"required"`
	Count int    `mapstructure:"count" yaml:"count" validate:"min=1,max=100"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level" yaml:"level" validate:"oneof=trace debug info warn error"`
	Format     string `mapstructure:"format" yaml:"format" validate:"oneof=console json"`
	Path       string `mapstructure:"path" yaml:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// legacyEnv maps config keys to the environment names older deployments used.
var legacyEnv = map[string][]string{
	"discord.webhook_url":        {"WEBHOOK_URL", "DISCORD_WEBHOOK_URL"},
	"discord.style":              {"EMBED_STYLE"},
	"tautulli.url":               {"TAUTULLI_URL"},
	"tautulli.api_key":           {"TAUTULLI_API_KEY"},
	"tmdb.api_key":               {"TMDB_API_KEY"},
	"tvdb.api_key":               {"TVDB_API_KEY"},
	"plex.base_url":              {"PLEX_BASE_URL"},
	"plex.server_id":             {"PLEX_SERVER_ID"},
	"metadata.placeholder_image": {"PLACEHOLDER_IMG"},
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Discord: DiscordConfig{
			Style:       StyleBoxed,
			Timeout:     15 * time.Second,
			MaxAttempts: 3,
		},
		Tautulli: TautulliConfig{
			Timeout: 10 * time.Second,
		},
		TMDB: TMDBConfig{
			APIKey:            EmbeddedTMDBKey,
			BaseURL:           "https://api.themoviedb.org/3",
			ImageBaseURL:      "https://image.tmdb.org/t/p",
			Timeout:           10,
			RequestsPerSecond: 20,
		},
		TVDB: TVDBConfig{
			APIKey:  EmbeddedTVDBKey,
			BaseURL: "https://api4.thetvdb.com/v4",
			Timeout: 10,
		},
		Plex: PlexConfig{
			BaseURL: "https://app.plex.tv",
		},
		Metadata: MetadataConfig{
			PreferredLocale:  "de-DE",
			FallbackLocale:   "en-US",
			RetryDelay:       500 * time.Millisecond,
			CallTimeout:      4 * time.Second,
			PlaceholderImage: "https://raw.githubusercontent.com/plexnote/plexnote/main/assets/placeholder.png",
			CacheTTL:         10 * time.Minute,
		},
		Store: StoreConfig{
			Path:        "./data/notified.json",
			Capacity:    200,
			LockTimeout: 5 * time.Second,
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8089,
		},
		Watch: WatchConfig{
			Cron:  "*/5 * * * *",
			Count: 10,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Load reads configuration from file and environment variables.
// Priority: environment variables > config file > defaults
func Load(configPath string) (*Config, error) {
	// A missing .env is normal outside development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.plexnote")
	}

	v.SetEnvPrefix("PLEXNOTE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindLegacyEnv(v); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Discord.Style = strings.ToLower(strings.TrimSpace(cfg.Discord.Style))

	return cfg, nil
}

func bindLegacyEnv(v *viper.Viper) error {
	for key, names := range legacyEnv {
		prefixed := "PLEXNOTE_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		args := append([]string{key, prefixed}, names...)
		if err := v.BindEnv(args...); err != nil {
			return fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("discord.webhook_url", "")
	v.SetDefault("discord.style", d.Discord.Style)
	v.SetDefault("discord.timeout", d.Discord.Timeout)
	v.SetDefault("discord.max_attempts", d.Discord.MaxAttempts)

	v.SetDefault("tautulli.url", "")
	v.SetDefault("tautulli.api_key", "")
	v.SetDefault("tautulli.timeout", d.Tautulli.Timeout)

	v.SetDefault("tmdb.api_key", d.TMDB.APIKey)
	v.SetDefault("tmdb.base_url", d.TMDB.BaseURL)
	v.SetDefault("tmdb.image_base_url", d.TMDB.ImageBaseURL)
	v.SetDefault("tmdb.timeout", d.TMDB.Timeout)
	v.SetDefault("tmdb.requests_per_second", d.TMDB.RequestsPerSecond)

	v.SetDefault("tvdb.api_key", d.TVDB.APIKey)
	v.SetDefault("tvdb.base_url", d.TVDB.BaseURL)
	v.SetDefault("tvdb.timeout", d.TVDB.Timeout)

	v.SetDefault("plex.base_url", d.Plex.BaseURL)
	v.SetDefault("plex.server_id", "")

	v.SetDefault("metadata.preferred_locale", d.Metadata.PreferredLocale)
	v.SetDefault("metadata.fallback_locale", d.Metadata.FallbackLocale)
	v.SetDefault("metadata.retry_delay", d.Metadata.RetryDelay)
	v.SetDefault("metadata.call_timeout", d.Metadata.CallTimeout)
	v.SetDefault("metadata.placeholder_image", d.Metadata.PlaceholderImage)
	v.SetDefault("metadata.cache_ttl", d.Metadata.CacheTTL)

	v.SetDefault("store.path", d.Store.Path)
	v.SetDefault("store.capacity", d.Store.Capacity)
	v.SetDefault("store.lock_timeout", d.Store.LockTimeout)

	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)

	v.SetDefault("watch.cron", d.Watch.Cron)
	v.SetDefault("watch.count", d.Watch.Count)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.path", "")
	v.SetDefault("logging.max_size_mb", d.Logging.MaxSizeMB)
	v.SetDefault("logging.max_backups", d.Logging.MaxBackups)
	v.SetDefault("logging.max_age_days", d.Logging.MaxAgeDays)
	v.SetDefault("logging.compress", d.Logging.Compress)
}

// Validate checks the configuration needed to talk to external services.
func (c *Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Redacted returns a copy with credentials masked.
func (c *Config) Redacted() *Config {
	out := *c
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return redacted
	}
	out.Discord.WebhookURL = mask(out.Discord.WebhookURL)
	out.Tautulli.APIKey = mask(out.Tautulli.APIKey)
	out.TMDB.APIKey = mask(out.TMDB.APIKey)
	out.TVDB.APIKey = mask(out.TVDB.APIKey)
	return &out
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
