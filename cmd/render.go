package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRenderCmd(a *app) *cobra.Command {
	var (
		block string
		page  bool
	)

	cmd := &cobra.Command{
		Use:     "render <handle>...",
		Aliases: []string{"r"},
		Short:   "Render layout handles to HTML",
		Long: `Merge the layout files of the given handles in module order, apply their
directives, build the block tree and print the rendered HTML.

With --page the configured default handles are prepended and the output is
wrapped in a full HTML document. With --block only the named block and its
descendants are rendered.

Examples:
  stratum render default cms_index_index
  stratum render catalog_product_view --page
  stratum render default --block sidebar`,
		Args: handleArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if block != "" && page {
				return fmt.Errorf("cannot specify both --block and --page")
			}

			ctx := cmd.Context()
			_, p, _, err := a.setup(ctx, nil)
			if err != nil {
				return err
			}
			defer p.Close()

			var out string
			switch {
			case block != "":
				out, err = p.RenderBlock(ctx, block, args...)
			case page:
				out, err = p.RenderPage(ctx, args...)
			default:
				out, err = p.Render(ctx, args...)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&block, "block", "b", "", "render only the named block")
	cmd.Flags().BoolVar(&page, "page", false, "render a full HTML page including the default handles")
	return cmd
}
