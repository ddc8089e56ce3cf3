package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/plexnote/plexnote/internal/tautulli"
)

const maxStdinPayload = 1 << 20

var errNoRatingKey = errors.New("no rating key found")

func newNotifyCommand(ctx *commandContext) *cobra.Command {
	var ratingKey string

	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Announce one library item",
		Long: `Announce one library item on Discord.

The rating key is taken from --rating-key, then from the environment
(rating_key, TAUTULLI_RATING_KEY, RATING_KEY, ratingKey), then from stdin
when it is piped, and finally from Tautulli's most recently added item.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.buildApp(false)
			if err != nil {
				return err
			}
			defer a.cleanup()

			key, origin, err := discoverRatingKey(cmd.Context(), ratingKeySources{
				flag:   ratingKey,
				env:    os.LookupEnv,
				stdin:  piped(cmd.InOrStdin()),
				latest: a.tautulli.LatestRatingKey,
			})
			if err != nil {
				return err
			}
			a.log.Info().Str("ratingKey", key).Str("origin", origin).Msg("Processing rating key")

			outcome, err := a.service.Process(cmd.Context(), key)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), outcomeMessage(key, outcome))
			return nil
		},
	}

	cmd.Flags().StringVar(&ratingKey, "rating-key", "", "Plex rating key to announce")
	return cmd
}

// ratingKeySources are the places a rating key can come from, in order.
type ratingKeySources struct {
	flag   string
	env    func(string) (string, bool)
	stdin  io.Reader
	latest func(context.Context) (string, error)
}

// discoverRatingKey returns the first rating key found and where it came
// from.
func discoverRatingKey(ctx context.Context, src ratingKeySources) (string, string, error) {
	if key := strings.TrimSpace(src.flag); key != "" {
		if !tautulli.ValidRatingKey(key) {
			return "", "", fmt.Errorf("invalid rating key %q", key)
		}
		return key, "flag", nil
	}

	if src.env != nil {
		for _, name := range tautulli.RatingKeyNames {
			if v, ok := src.env(name); ok && tautulli.ValidRatingKey(v) {
				return strings.TrimSpace(v), "env:" + name, nil
			}
		}
	}

	if src.stdin != nil {
		data, err := io.ReadAll(io.LimitReader(src.stdin, maxStdinPayload))
		if err != nil {
			return "", "", fmt.Errorf("failed to read stdin: %w", err)
		}
		if key, ok := tautulli.RatingKeyFromPayload(data); ok {
			return key, "stdin", nil
		}
	}

	if src.latest != nil {
		key, err := src.latest(ctx)
		if err != nil {
			return "", "", fmt.Errorf("%w: %w", errNoRatingKey, err)
		}
		return key, "recently-added", nil
	}
	return "", "", errNoRatingKey
}

// piped returns r when it is not an interactive terminal, else nil.
func piped(r io.Reader) io.Reader {
	f, ok := r.(*os.File)
	if !ok {
		return r
	}
	if isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()) {
		return nil
	}
	return f
}
