package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/conneroisu/stratum/internal/pipeline"
)

func newLayoutCmd(a *app) *cobra.Command {
	var explain bool

	cmd := &cobra.Command{
		Use:     "layout <handle>...",
		Aliases: []string{"l"},
		Short:   "Print the resolved layout XML for handles",
		Long: `Print the layout tree that remains after merging and directive processing.

With --explain the contributing files, every directive outcome and the built
block outline are printed before the XML.

Examples:
  stratum layout default
  stratum layout default catalog_product_view --explain`,
		Args: handleArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, p, _, err := a.setup(ctx, nil)
			if err != nil {
				return err
			}
			defer p.Close()

			exp, err := p.Explain(ctx, args...)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if explain {
				printExplanation(out, exp)
			}
			fmt.Fprintln(out, exp.XML)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&explain, "explain", "e", false, "show sources, directive outcomes and the block outline")
	return cmd
}

func printExplanation(w io.Writer, exp *pipeline.Explanation) {
	fmt.Fprintln(w, "📄 Sources:")
	for _, h := range exp.Handles {
		sources := exp.Sources[h]
		if len(sources) == 0 {
			fmt.Fprintf(w, "  %s: (no files)\n", h)
			continue
		}
		for _, s := range sources {
			fmt.Fprintf(w, "  %s: %s (%s)\n", h, s.Path, s.Module)
		}
	}

	fmt.Fprintf(w, "\n🔧 Directives (%d rounds, %d applied):\n", exp.Report.Rounds, exp.Report.Applied())
	for _, o := range exp.Report.Outcomes {
		mark := "✅"
		if !o.Applied {
			mark = "⚠️ "
		}
		fmt.Fprintf(w, "  %s %s\n", mark, o)
	}

	fmt.Fprintln(w, "\n🧱 Blocks:")
	if exp.Blocks == "" {
		fmt.Fprintln(w, "  (no root element)")
	} else {
		fmt.Fprint(w, indent(exp.Blocks, "  "))
	}
	fmt.Fprintln(w)
}

func indent(s, prefix string) string {
	var out []byte
	start := true
	for i := 0; i < len(s); i++ {
		if start {
			out = append(out, prefix...)
			start = false
		}
		out = append(out, s[i])
		if s[i] == '\n' {
			start = true
		}
	}
	return string(out)
}
