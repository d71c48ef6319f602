package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"strinks/internal/matchcache"
	"strinks/internal/matcher"
	"strinks/internal/services"
	"strinks/internal/textutil"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the match cache",
		Long: `Inspect and manage the match cache.

The match cache maps listing fingerprints ("normalized name|normalized brewery")
to their last resolution so repeated runs skip catalog searches.

Commands:
  list     - List cached entries, newest first
  stats    - Count entries by status
  remove   - Remove one entry by fingerprint or list number
  clear    - Remove every entry`,
	}

	cacheCmd.AddCommand(newCacheListCommand(ctx))
	cacheCmd.AddCommand(newCacheStatsCommand(ctx))
	cacheCmd.AddCommand(newCacheRemoveCommand(ctx))
	cacheCmd.AddCommand(newCacheClearCommand(ctx))

	return cacheCmd
}

func withMatchCache(ctx *commandContext, fn func(*matchcache.Store) error) error {
	rt, err := ctx.newRuntime()
	if err != nil {
		return err
	}
	if err := rt.openCache(0); err != nil {
		return err
	}
	err = fn(rt.cache)
	if closeErr := rt.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}

func newCacheListCommand(ctx *commandContext) *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cached entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMatchCache(ctx, func(store *matchcache.Store) error {
				entries := store.List()
				if status != "" {
					filtered := entries[:0]
					for _, entry := range entries {
						if string(entry.Status) == status {
							filtered = append(filtered, entry)
						}
					}
					entries = filtered
				}

				if ctx.JSONMode() {
					if entries == nil {
						entries = []matchcache.Entry{}
					}
					return writeJSON(cmd, entriesJSON(entries))
				}

				out := cmd.OutOrStdout()
				if len(entries) == 0 {
					fmt.Fprintln(out, "Match cache: empty")
					return nil
				}
				fmt.Fprintf(out, "Match cache: %d entries\n\n", len(entries))
				fmt.Fprintln(out, renderEntries(entries, shouldColorize(out)))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Only show entries with this status")
	return cmd
}

type entryJSON struct {
	Fingerprint string `json:"fingerprint"`
	matchcache.Entry
}

func entriesJSON(entries []matchcache.Entry) []entryJSON {
	out := make([]entryJSON, len(entries))
	for i, entry := range entries {
		out[i] = entryJSON{Fingerprint: entry.Fingerprint, Entry: entry}
	}
	return out
}

func renderEntries(entries []matchcache.Entry, colorize bool) string {
	const stampLayout = "2006-01-02 15:04"
	rows := make([][]string, 0, len(entries))
	for i, entry := range entries {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			entry.Fingerprint,
			colorStatus(matcher.Status(entry.Status), string(entry.Status), colorize),
			textutil.Cell(entry.CatalogID),
			textutil.Cell(entry.Name),
			textutil.RatingCell(entry.Rating),
			entry.ResolvedAt.Local().Format(stampLayout),
		})
	}
	return renderTable(
		[]string{"#", "Fingerprint", "Status", "Catalog ID", "Beer", "Rating", "Resolved"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft, alignRight, alignLeft},
	)
}

func newCacheStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count cached entries by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMatchCache(ctx, func(store *matchcache.Store) error {
				stats := store.Stats()
				if ctx.JSONMode() {
					return writeJSON(cmd, stats)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Cache file: %s\n", store.Path())
				fmt.Fprintln(out, renderTable(
					[]string{"Status", "Entries"},
					[][]string{
						{string(matchcache.StatusResolved), strconv.Itoa(stats.Resolved)},
						{string(matchcache.StatusLowConfidence), strconv.Itoa(stats.LowConfidence)},
						{string(matchcache.StatusTransient), strconv.Itoa(stats.Transient)},
						{"total", strconv.Itoa(stats.Total)},
					},
					[]columnAlignment{alignLeft, alignRight},
				))
				return nil
			})
		},
	}
}

func newCacheRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <fingerprint|number>",
		Short: "Remove a cache entry",
		Long: `Remove a cache entry by fingerprint or by its number in 'strinks cache list'.

Example:
  strinks cache list                       # numbered list of entries
  strinks cache remove 2                   # removes entry #2
  strinks cache remove "punk ipa|brewdog"  # removes by fingerprint`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMatchCache(ctx, func(store *matchcache.Store) error {
				fingerprint, err := resolveFingerprintArg(store, args[0])
				if err != nil {
					return err
				}
				if err := store.Remove(fingerprint); err != nil {
					if errors.Is(err, services.ErrNotFound) {
						return fmt.Errorf("no cache entry for %q", fingerprint)
					}
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, map[string]any{"removed": fingerprint})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", fingerprint)
				return nil
			})
		},
	}
}

// resolveFingerprintArg accepts a list number or a fingerprint.
func resolveFingerprintArg(store *matchcache.Store, arg string) (string, error) {
	arg = strings.TrimSpace(arg)
	if strings.Contains(arg, "|") {
		return arg, nil
	}
	num, err := strconv.Atoi(arg)
	if err != nil {
		return "", fmt.Errorf("expected a fingerprint or list number, got %q", arg)
	}
	entries := store.List()
	if num < 1 || num > len(entries) {
		return "", fmt.Errorf("entry %d out of range (cache has %d entries)", num, len(entries))
	}
	return entries[num-1].Fingerprint, nil
}

func newCacheClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every cache entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMatchCache(ctx, func(store *matchcache.Store) error {
				count := store.Count()
				if err := store.Clear(); err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, map[string]any{"cleared": count})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d cache entries\n", count)
				return nil
			})
		},
	}
}
