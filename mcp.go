package main

import (
	"github.com/spf13/cobra"

	"github.com/sudankdk/judge/internal/mcptool"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the code_run tool over MCP stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd, true)
		if err != nil {
			return err
		}
		defer a.Close()

		go a.sweeper().Start(cmd.Context())
		return mcptool.Serve(a.exec, a.registry.Specs(), version)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
