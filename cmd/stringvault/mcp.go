package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vault-md/stringvault/internal/mcp"
)

func newMCPCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server",
		Long:  "Start a read-only Model Context Protocol server over the entries under the root",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open()
			if err != nil {
				return fmt.Errorf("failed to open archive: %w", err)
			}
			defer s.Close()

			server := mcp.NewServer(s.archive, s.root, version, a.logger)
			return server.Run(cmd.Context())
		},
	}

	return cmd
}
