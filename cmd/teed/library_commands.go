package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/brettericmartin/teed-sub011/internal/library"
	"github.com/brettericmartin/teed-sub011/internal/product"
)

func newLibraryCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "library",
		Short: "Inspect and maintain the product library",
	}
	cmd.AddCommand(newLibraryListCommand(ctx))
	cmd.AddCommand(newLibraryStatsCommand(ctx))
	cmd.AddCommand(newLibraryShowCommand(ctx))
	cmd.AddCommand(newLibraryRemoveCommand(ctx))
	cmd.AddCommand(newLibraryClearCommand(ctx))
	return cmd
}

func newLibraryListCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List library entries, most recently updated first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLibrary(cmd, func(store library.Store) error {
				entries, err := store.List(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if wantJSON(cmd, asJSON) {
					return writeJSON(cmd, entries)
				}
				out := cmd.OutOrStdout()
				if len(entries) == 0 {
					fmt.Fprintln(out, "Library is empty")
					return nil
				}
				rows := make([][]string, 0, len(entries))
				for _, entry := range entries {
					rows = append(rows, []string{
						entry.Key,
						entryLabel(entry),
						formatConfidence(entry.Confidence),
						yesNo(entry.ScrapeSuccessful),
						strconv.FormatInt(entry.HitCount, 10),
						formatTime(entry.UpdatedAt),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Key", "Product", "Confidence", "Scraped", "Hits", "Updated"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum entries to show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON output")
	return cmd
}

func newLibraryStatsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize library contents",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLibrary(cmd, func(store library.Store) error {
				stats, err := store.Stats(cmd.Context(), time.Now())
				if err != nil {
					return err
				}
				if wantJSON(cmd, asJSON) {
					return writeJSON(cmd, stats)
				}
				renderLibraryStats(cmd, stats)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON output")
	return cmd
}

func renderLibraryStats(cmd *cobra.Command, stats library.Stats) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, renderTable(
		[]string{"Metric", "Value"},
		[][]string{
			{"Entries", strconv.Itoa(stats.TotalEntries)},
			{"High confidence", strconv.Itoa(stats.HighConfidence)},
			{"Scrape failures", strconv.Itoa(stats.ScrapeFailures)},
			{"Total hits", strconv.FormatInt(stats.TotalHits, 10)},
			{"Hits (24h)", strconv.Itoa(stats.RecentHits)},
		},
		[]columnAlignment{alignLeft, alignRight},
	))
	if len(stats.TopDomains) == 0 {
		return
	}
	rows := make([][]string, 0, len(stats.TopDomains))
	for _, domain := range stats.TopDomains {
		rows = append(rows, []string{domain.Domain, strconv.Itoa(domain.Count)})
	}
	fmt.Fprintln(out, renderTable([]string{"Domain", "Entries"}, rows, []columnAlignment{alignLeft, alignRight}))
}

func newLibraryShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show KEY",
		Short: "Show one library entry and its candidates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLibrary(cmd, func(store library.Store) error {
				entry, ok, err := store.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("no library entry for %q", args[0])
				}
				if wantJSON(cmd, asJSON) {
					return writeJSON(cmd, entry)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Key: %s\n", entry.Key)
				fmt.Fprintf(out, "Query: %s\n", entry.Query)
				if entry.Domain != "" {
					fmt.Fprintf(out, "Domain: %s\n", entry.Domain)
				}
				fmt.Fprintf(out, "Scrape successful: %s\n", yesNo(entry.ScrapeSuccessful))
				fmt.Fprintf(out, "Hits: %d (last %s)\n", entry.HitCount, formatTime(entry.LastHitAt))
				fmt.Fprintf(out, "Created: %s  Updated: %s\n", formatTime(entry.CreatedAt), formatTime(entry.UpdatedAt))
				rows := make([][]string, 0, len(entry.Candidates))
				for _, candidate := range entry.Candidates {
					rows = append(rows, []string{
						candidate.DisplayName(),
						candidate.Category,
						formatConfidence(candidate.Confidence),
						string(candidate.Source),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Candidate", "Category", "Confidence", "Source"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON output")
	return cmd
}

func newLibraryRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove KEY",
		Short: "Remove one library entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLibrary(cmd, func(store library.Store) error {
				removed, err := store.Remove(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if !removed {
					return fmt.Errorf("no library entry for %q", args[0])
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
				return nil
			})
		},
	}
}

func newLibraryClearCommand(ctx *commandContext) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every library entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				return errors.New("refusing to clear the library without --force")
			}
			return ctx.withLibrary(cmd, func(store library.Store) error {
				n, err := store.Clear(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d entries\n", n)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Confirm removal of all entries")
	return cmd
}

func entryLabel(entry library.Entry) string {
	if entry.Name == "" {
		return "-"
	}
	return product.Candidate{Brand: entry.Brand, Name: entry.Name}.DisplayName()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Local().Format("2006-01-02 15:04")
}
