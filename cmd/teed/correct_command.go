package main

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/brettericmartin/teed-sub011/internal/learning"
	"github.com/brettericmartin/teed-sub011/internal/pipeline"
	"github.com/brettericmartin/teed-sub011/internal/product"
)

func newCorrectCommand(ctx *commandContext) *cobra.Command {
	var (
		correctionType  string
		stage           string
		original        string
		corrected       string
		brand           string
		name            string
		objectID        string
		finalConfidence float64
		recommendation  string
		asJSON          bool
	)

	cmd := &cobra.Command{
		Use:   "correct",
		Short: "Submit a correction to an identified product",
		Example: `  teed correct --type product_name --original "Stealth 2 Driver" --corrected "Stealth 2 Plus Driver"
  teed correct --type brand --stage census --original Calloway --corrected Callaway --final-confidence 0.62`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(corrected) == "" {
				return errors.New("--corrected is required")
			}
			c := product.Correction{
				Type:           product.ParseCorrectionType(correctionType),
				Stage:          strings.TrimSpace(stage),
				OriginalValue:  strings.TrimSpace(original),
				CorrectedValue: corrected,
				ObjectID:       strings.TrimSpace(objectID),
			}
			var related *product.ValidatedProduct
			if cmd.Flags().Changed("final-confidence") || cmd.Flags().Changed("recommendation") ||
				brand != "" || name != "" {
				related = &product.ValidatedProduct{FinalConfidence: finalConfidence}
				related.Brand = strings.TrimSpace(brand)
				related.Name = strings.TrimSpace(name)
				related.Validation.Recommendation = product.Recommendation(strings.ToLower(strings.TrimSpace(recommendation)))
				if !cmd.Flags().Changed("final-confidence") {
					related.FinalConfidence = 1
				}
			}

			return ctx.withPipeline(cmd.Context(), func(p *pipeline.Pipeline) error {
				result := p.Correct(cmd.Context(), c, related)
				if asJSON {
					return writeJSON(cmd, result)
				}
				out := cmd.OutOrStdout()
				if result.Learned {
					fmt.Fprintf(out, "Correction recorded (%s)\n", result.ID)
					return nil
				}
				fmt.Fprintf(out, "Correction not learned: %s\n", result.Reason)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&correctionType, "type", string(product.CorrectionProductName), "Corrected field: product_name, brand, category, object_type, other")
	cmd.Flags().StringVar(&stage, "stage", "identify", "Pipeline stage that produced the wrong value")
	cmd.Flags().StringVar(&original, "original", "", "Value the pipeline produced")
	cmd.Flags().StringVar(&corrected, "corrected", "", "Correct value")
	cmd.Flags().StringVar(&brand, "brand", "", "Brand of the corrected product")
	cmd.Flags().StringVar(&name, "name", "", "Name of the corrected product")
	cmd.Flags().StringVar(&objectID, "object-id", "", "Census object the correction applies to")
	cmd.Flags().Float64Var(&finalConfidence, "final-confidence", 0, "Final confidence of the corrected product")
	cmd.Flags().StringVar(&recommendation, "recommendation", "", "Verdict of the corrected product: accept, review, mismatch")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON output")
	return cmd
}

func newCorrectionsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "corrections",
		Short: "Inspect stored corrections",
	}
	cmd.AddCommand(newCorrectionsListCommand(ctx))
	cmd.AddCommand(newCorrectionsStatsCommand(ctx))
	return cmd
}

func newCorrectionsListCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the most recent corrections",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withCorrections(cmd, func(store *learning.Store) error {
				items, err := store.Recent(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if wantJSON(cmd, asJSON) {
					return writeJSON(cmd, items)
				}
				if len(items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No corrections stored")
					return nil
				}
				rows := make([][]string, 0, len(items))
				for _, c := range items {
					rows = append(rows, []string{
						c.CreatedAt.Local().Format("2006-01-02 15:04"),
						string(c.Type),
						c.Stage,
						c.OriginalValue,
						c.CorrectedValue,
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"When", "Type", "Stage", "Original", "Corrected"}, rows, nil))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum corrections to show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON output")
	return cmd
}

func newCorrectionsStatsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize stored corrections",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withCorrections(cmd, func(store *learning.Store) error {
				stats, err := store.Stats(cmd.Context())
				if err != nil {
					return err
				}
				if wantJSON(cmd, asJSON) {
					return writeJSON(cmd, stats)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Total corrections: %d\n", stats.Total)
				if !stats.Latest.IsZero() {
					fmt.Fprintf(out, "Latest: %s\n", stats.Latest.Local().Format("2006-01-02 15:04"))
				}
				fmt.Fprintln(out, renderTable([]string{"Type", "Count"}, countRows(stats.ByType), []columnAlignment{alignLeft, alignRight}))
				fmt.Fprintln(out, renderTable([]string{"Stage", "Count"}, countRows(stats.ByStage), []columnAlignment{alignLeft, alignRight}))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON output")
	return cmd
}

func countRows(counts map[string]int) [][]string {
	keys := make([]string, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	rows := make([][]string, 0, len(keys))
	for _, key := range keys {
		rows = append(rows, []string{key, strconv.Itoa(counts[key])})
	}
	return rows
}
