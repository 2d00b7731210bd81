package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/stratum/internal/modules"
)

func newModulesCmd(a *app) *cobra.Command {
	var (
		flags   *StandardFlags
		handles bool
	)

	cmd := &cobra.Command{
		Use:     "modules",
		Aliases: []string{"m"},
		Short:   "List enabled modules in load order",
		Long: `List enabled modules in the order their layout files are merged. A module is
always listed after every module in its sequence.

Examples:
  stratum modules
  stratum modules -o json
  stratum modules --handles`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, p, _, err := a.setup(ctx, nil)
			if err != nil {
				return err
			}
			defer p.Close()

			out := cmd.OutOrStdout()
			if handles {
				hs, err := p.Handles()
				if err != nil {
					return err
				}
				for _, h := range hs {
					fmt.Fprintln(out, h)
				}
				return nil
			}

			mods, err := p.Modules()
			if err != nil {
				return err
			}

			switch strings.ToLower(flags.OutputFormat) {
			case FormatJSON:
				return outputModulesJSON(out, mods)
			case FormatYAML:
				return outputModulesYAML(out, mods)
			default:
				return outputModulesTable(out, mods, flags.Quiet)
			}
		},
	}

	flags = AddStandardFlags(cmd, "output")
	cmd.Flags().BoolVar(&handles, "handles", false, "list every layout handle defined by the modules instead")
	return cmd
}

func outputModulesTable(w io.Writer, mods []modules.Module, quiet bool) error {
	if len(mods) == 0 {
		if !quiet {
			fmt.Fprintln(w, "No modules found.")
		}
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tNAME\tPATH\tSEQUENCE")
	for i, m := range mods {
		seq := strings.Join(m.Sequence, ", ")
		if seq == "" {
			seq = "-"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", i+1, m.Name, m.BasePath, seq)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if !quiet {
		fmt.Fprintf(w, "\nTotal: %d modules\n", len(mods))
	}
	return nil
}

func outputModulesJSON(w io.Writer, mods []modules.Module) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(mods)
}

func outputModulesYAML(w io.Writer, mods []modules.Module) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	defer encoder.Close()
	return encoder.Encode(mods)
}
