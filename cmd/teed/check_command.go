package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/brettericmartin/teed-sub011/internal/preflight"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var network bool
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run readiness checks for stores, paths, and the inference provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			results := preflight.RunAll(cmd.Context(), cfg, preflight.Options{Network: network})
			if wantJSON(cmd, asJSON) {
				if err := writeJSON(cmd, results); err != nil {
					return err
				}
			} else {
				rows := make([][]string, 0, len(results))
				for _, r := range results {
					status := "ok"
					if !r.Passed {
						status = "FAIL"
					}
					rows = append(rows, []string{r.Name, status, r.Detail})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Check", "Status", "Detail"}, rows, nil))
			}
			if !preflight.Passed(results) {
				return errors.New("one or more checks failed")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&network, "network", false, "Also call the inference provider")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON output")
	return cmd
}
