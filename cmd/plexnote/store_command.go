package main

import (
	"fmt"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/plexnote/plexnote/internal/dedup"
)

func newStoreCommand(ctx *commandContext) *cobra.Command {
	storeCmd := &cobra.Command{
		Use:   "store",
		Short: "Inspect the record of announced items",
	}
	storeCmd.AddCommand(newStoreListCommand(ctx))
	return storeCmd
}

func newStoreListCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List announced keys, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store := dedup.NewStore(dedup.Config{
				Path:        cfg.Store.Path,
				Capacity:    cfg.Store.Capacity,
				LockTimeout: cfg.Store.LockTimeout,
			}, zerolog.Nop())

			entries, err := store.Entries(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintf(out, "No entries in %s\n", store.Path())
				return nil
			}
			fmt.Fprintln(out, renderStoreEntries(entries, limit))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Show at most this many entries (0 for all)")
	return cmd
}

// renderStoreEntries lists entries newest first.
func renderStoreEntries(entries []dedup.Entry, limit int) string {
	if limit <= 0 || limit > len(entries) {
		limit = len(entries)
	}
	rows := make([][]string, 0, limit)
	for i := len(entries) - 1; i >= 0 && len(rows) < limit; i-- {
		e := entries[i]
		recorded := "-"
		if !e.RecordedAt.IsZero() {
			recorded = e.RecordedAt.Local().Format("2006-01-02 15:04:05")
		}
		status := string(e.Status)
		if status == "" {
			status = string(dedup.StatusRecorded)
		}
		rows = append(rows, []string{strconv.Itoa(len(rows) + 1), e.Key, status, recorded})
	}
	return renderTable(
		[]string{"#", "Key", "Status", "Recorded"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft},
	)
}
