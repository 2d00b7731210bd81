package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conneroisu/stratum/internal/config"
	"github.com/conneroisu/stratum/internal/errors"
)

func newValidateCmd(a *app) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration, module graph and every layout file",
		Long: `Validate the configuration, resolve the module dependency order and parse
every layout file of every enabled module. Problems are printed per file; the
command exits non-zero when any of them is an error.

Examples:
  stratum validate
  stratum validate --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, p, _, err := a.setup(ctx, nil)
			if err != nil {
				return err
			}
			defer p.Close()

			diags, checked, err := p.Validate(ctx)
			if err != nil {
				return err
			}
			details := config.ValidateConfigWithDetails(cfg)

			out := cmd.OutOrStdout()
			if jsonOutput {
				encoder := json.NewEncoder(out)
				encoder.SetIndent("", "  ")
				if err := encoder.Encode(validationReport{
					Files:       checked,
					Diagnostics: diags.Sorted(),
					Warnings:    details.Warnings,
				}); err != nil {
					return err
				}
			} else {
				for _, w := range details.Warnings {
					fmt.Fprintf(out, "⚠️  config: %s\n", w.Error())
				}
				for _, d := range diags.Sorted() {
					fmt.Fprintln(out, d)
				}
			}

			if diags.HasErrors() {
				return fmt.Errorf("validation failed: %d problems in %d layout files", diags.Len(), checked)
			}
			if !jsonOutput {
				fmt.Fprintf(out, "✅ %d layout files valid\n", checked)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print the report as JSON")
	return cmd
}

type validationReport struct {
	Files       int                      `json:"files"`
	Diagnostics []errors.Diagnostic      `json:"diagnostics"`
	Warnings    []config.ValidationError `json:"config_warnings,omitempty"`
}
