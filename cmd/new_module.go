package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conneroisu/stratum/internal/config"
	"github.com/conneroisu/stratum/internal/scaffolding"
)

func newNewModuleCmd(a *app) *cobra.Command {
	var (
		template string
		sequence []string
		force    bool
		list     bool
	)

	cmd := &cobra.Command{
		Use:     "new-module <Vendor_Module>",
		Aliases: []string{"n"},
		Short:   "Scaffold a new module directory",
		Long: `Create <modules.dir>/<Vendor_Module> with a module.yml manifest and starter
layout and template files.

Templates:
  basic    manifest, default layout update and a welcome template
  layout   manifest and an empty default layout update
  theme    manifest, page skeleton and header/footer templates

Examples:
  stratum new-module Acme_Theme --template theme
  stratum new-module Acme_Blog --sequence Acme_Theme`,
		Args: func(cmd *cobra.Command, args []string) error {
			if list {
				return cobra.NoArgs(cmd, args)
			}
			if err := cobra.ExactArgs(1)(cmd, args); err != nil {
				return err
			}
			return scaffolding.ValidateModuleName(args[0])
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			dir := cfg.Modules.Dir
			if dir == "" {
				dir = config.DefaultModulesDir
			}

			gen := scaffolding.NewModuleGenerator(a.fs, dir, cfg.Layout.Area)
			out := cmd.OutOrStdout()

			if list {
				for _, t := range gen.ListTemplates() {
					fmt.Fprintf(out, "%-8s %s\n", t.Name, t.Description)
				}
				return nil
			}

			created, err := gen.Generate(scaffolding.GenerateOptions{
				Name:     args[0],
				Template: template,
				Sequence: sequence,
				Force:    force,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "✅ Created module %s\n", args[0])
			for _, path := range created {
				fmt.Fprintf(out, "  %s\n", path)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&template, "template", "t", "basic", "module template (basic, layout, theme)")
	cmd.Flags().StringSliceVarP(&sequence, "sequence", "s", nil, "modules that must load before this one")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing module directory")
	cmd.Flags().BoolVar(&list, "list", false, "list available templates")
	return cmd
}
