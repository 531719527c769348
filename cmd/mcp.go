// cmd/mcp.go
package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/forge3d/blenderbridge/internal/agent"
	"github.com/forge3d/blenderbridge/internal/client"
	"github.com/spf13/cobra"
)

var mcpTimeout int

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serves the bridge to AI assistants over the Model Context Protocol",
	Long: `Runs a Model Context Protocol server on stdio, exposing blender_exec and
get_blender_scene tools that forward to a running bridge. Point an MCP
client at this command to let an assistant drive Blender.

All diagnostics go to stderr; stdout carries only protocol traffic.`,
	Example: `  # Serve the default local bridge
  blenderbridge mcp

  # Serve a bridge on another port
  blenderbridge mcp --addr 127.0.0.1:9000`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := client.DefaultConfig()
		cfg.Addr = bridgeAddr
		if mcpTimeout > 0 {
			cfg.Timeout = time.Duration(mcpTimeout) * time.Second
		}

		if err := agent.Run(context.Background(), client.New(cfg), Version); err != nil {
			fmt.Fprintf(os.Stderr, "❌ MCP server error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)

	mcpCmd.Flags().IntVar(&mcpTimeout, "timeout", 0, "Seconds to wait for each script to finish (default: 120)")
}
