package config

// Catalog API keys injected at build time via ldflags. They are used as
// defaults and lose to environment variables and the config file.
//
// Build with:
//
//	go build -ldflags "-X 'github.com/plexnote/plexnote/internal/config.EmbeddedTMDBKey=xxx' \
//	                   -X 'github.com/plexnote/plexnote/internal/config.EmbeddedTVDBKey=yyy'" ./cmd/plexnote
var (
	EmbeddedTMDBKey string
	EmbeddedTVDBKey string
)
