package cmd

import (
	"github.com/spf13/cobra"

	"github.com/joescharf/codespace/internal/logging"
	"github.com/joescharf/codespace/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server for Claude Code integration",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

This lets Claude Code browse, edit and run projects on the configured
workspace service. Configure it with:

  {
    "mcpServers": {
      "codespace": { "command": "codespace", "args": ["mcp"] }
    }
  }

Available tools: codespace_list_projects, codespace_tree, codespace_read_file,
codespace_create_entry, codespace_delete_entry, codespace_run_file,
codespace_build, codespace_exec`,
	RunE: func(cmd *cobra.Command, args []string) error {
		srv := mcp.NewServer(newClient(), buildVersion, logging.Named("mcp"))
		return srv.ServeStdio(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
