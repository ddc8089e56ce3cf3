package main

import (
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/plexnote/plexnote/internal/config"
	"github.com/plexnote/plexnote/internal/dedup"
	"github.com/plexnote/plexnote/internal/logger"
	"github.com/plexnote/plexnote/internal/metadata"
	"github.com/plexnote/plexnote/internal/metadata/tmdb"
	"github.com/plexnote/plexnote/internal/metadata/tvdb"
	"github.com/plexnote/plexnote/internal/notification/discord"
	"github.com/plexnote/plexnote/internal/notifier"
	"github.com/plexnote/plexnote/internal/tautulli"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	logOnce sync.Once
	log     *logger.Logger
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// validConfig loads the configuration and checks the settings needed to
// reach Tautulli and Discord.
func (c *commandContext) validConfig() (*config.Config, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *commandContext) logger() *logger.Logger {
	c.logOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil || cfg == nil {
			cfg = config.Default()
		}
		c.log = logger.New(cfg.Logging)
	})
	return c.log
}

func (c *commandContext) close() error {
	if c.log == nil {
		return nil
	}
	return c.log.Close()
}

// app bundles the wired components of one invocation.
type app struct {
	cfg      *config.Config
	log      zerolog.Logger
	tautulli *tautulli.Client
	sender   *discord.Notifier
	store    *dedup.Store
	service  *notifier.Service
	cleanup  func()
}

// buildApp wires the Tautulli source, the metadata pipeline, the dedup store
// and the Discord sender. Long-running modes add a circuit breaker and a
// lookup cache in front of the catalogs.
func (c *commandContext) buildApp(longRunning bool) (*app, error) {
	cfg, err := c.validConfig()
	if err != nil {
		return nil, err
	}
	log := c.logger().Logger

	source := tautulli.NewClient(cfg.Tautulli, log)
	primary, secondary := catalogs(cfg, log, longRunning)

	pipeline := metadata.NewPipeline(primary, secondary, metadata.Config{
		PreferredLocale:  cfg.Metadata.PreferredLocale,
		FallbackLocale:   cfg.Metadata.FallbackLocale,
		RetryDelay:       cfg.Metadata.RetryDelay,
		CallTimeout:      cfg.Metadata.CallTimeout,
		PlaceholderImage: cfg.Metadata.PlaceholderImage,
		PreferPoster:     cfg.Discord.Style == config.StyleTelegram,
	}, log)

	cleanup := func() {}
	if longRunning && cfg.Metadata.CacheTTL > 0 {
		cache := metadata.NewCache(metadata.CacheConfig{TTL: cfg.Metadata.CacheTTL})
		pipeline.SetCache(cache)
		cleanup = cache.Close
	}

	store := dedup.NewStore(dedup.Config{
		Path:        cfg.Store.Path,
		Capacity:    cfg.Store.Capacity,
		LockTimeout: cfg.Store.LockTimeout,
	}, log)
	sender := discord.New(cfg.Discord, cfg.Plex, &http.Client{}, log)

	return &app{
		cfg:      cfg,
		log:      log,
		tautulli: source,
		sender:   sender,
		store:    store,
		service:  notifier.NewService(source, pipeline, sender, store, log),
		cleanup:  cleanup,
	}, nil
}

// catalogs returns the configured TMDB and TVDB clients. An unconfigured
// catalog is left nil so the pipeline skips it.
func catalogs(cfg *config.Config, log zerolog.Logger, withBreaker bool) (metadata.Catalog, metadata.Catalog) {
	var primary, secondary metadata.Catalog
	if client := tmdb.NewClient(cfg.TMDB, log); client.IsConfigured() {
		primary = client
	} else {
		log.Warn().Msg("TMDB API key not set, primary catalog disabled")
	}
	if client := tvdb.NewClient(cfg.TVDB, log); client.IsConfigured() {
		secondary = client
	} else {
		log.Warn().Msg("TVDB API key not set, secondary catalog disabled")
	}

	if withBreaker {
		bc := metadata.DefaultBreakerConfig()
		if primary != nil {
			primary = metadata.WithBreaker(primary, bc, log)
		}
		if secondary != nil {
			secondary = metadata.WithBreaker(secondary, bc, log)
		}
	}
	return primary, secondary
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func outcomeMessage(ratingKey string, outcome notifier.Outcome) string {
	switch outcome {
	case notifier.OutcomeDuplicate:
		return fmt.Sprintf("Rating key %s already announced", ratingKey)
	case notifier.OutcomeSent:
		return fmt.Sprintf("Announced rating key %s", ratingKey)
	default:
		return fmt.Sprintf("Rating key %s: %s", ratingKey, outcome)
	}
}
