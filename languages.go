package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sudankdk/judge/internal/languages"
)

var languagesYAML bool

var languagesCmd = &cobra.Command{
	Use:     "languages",
	Aliases: []string{"langs"},
	Short:   "List the effective language table",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		specs, err := loadSpecs(cfg)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if languagesYAML {
			data, err := languages.Marshal(specs)
			if err != nil {
				return err
			}
			_, err = out.Write(data)
			return err
		}

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tKIND\tCOMPILE\tRUN\tALIASES")
		for _, s := range specs {
			compile := "-"
			if s.Kind.Compiled() {
				compile = s.CompileTimeout.String()
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", s.Name, s.Kind, compile, s.RunTimeout, strings.Join(s.Aliases, ","))
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(languagesCmd)
	languagesCmd.Flags().BoolVar(&languagesYAML, "yaml", false, "print as a YAML language table")
}
