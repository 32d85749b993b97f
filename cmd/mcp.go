package cmd

import (
	"context"

	"github.com/spf13/cobra"

	mcpserver "github.com/ziadkadry99/policyvoice/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server for AI agent integration",
	Long:  `Starts a Model Context Protocol (MCP) server on stdio, exposing the assistant, the knowledge lookup and stored conversations as tools for AI agents.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(context.Background())
		if err != nil {
			return err
		}
		defer a.Close()

		// Set version from the cmd package variable.
		mcpserver.Version = Version

		a.logger.Info().Str("store", string(a.cfg.Store)).Msg("policyvoice MCP server started on stdio")

		srv := mcpserver.NewServer(a.orchestrator, a.store, a.lookup)
		return srv.Serve()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
