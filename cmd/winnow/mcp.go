package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/winnow/internal/adapters/mcp"
	"github.com/spf13/cobra"
)

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Starts Winnow as an MCP Server, so AI agents can drive collaboration
and convergence sessions as tools.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.`,
	Run: func(cmd *cobra.Command, args []string) {
		transport, _ := cmd.Flags().GetString("transport")
		port, _ := cmd.Flags().GetInt("port")

		svc, err := newService(cmd)
		if err != nil {
			log.Fatalf("Error initializing winnow: %v", err)
		}
		logger := svc.Logger()

		srv := mcp.NewServer(svc.Orchestrator(), svc.Machine(), svc.Autosave())

		switch transport {
		case "stdio":
			// Ensure logs don't corrupt JSON-RPC on Stdout.
			log.SetOutput(os.Stderr)
			logger.Info("starting MCP server (stdio)")
			if err := srv.ServeStdio(); err != nil {
				logger.Error("MCP server execution failed", "err", err)
				os.Exit(1)
			}
		case "sse":
			logger.Info("starting MCP server (SSE)", "port", port)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := srv.ServeSSE(ctx, port); err != nil {
				logger.Error("MCP server execution failed", "err", err)
				os.Exit(1)
			}
		default:
			logger.Error("unknown transport", "transport", transport)
			os.Exit(1)
		}

		if err := svc.Close(context.Background()); err != nil {
			logger.Error("close failed", "err", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().String("transport", "stdio", "Transport to use: stdio or sse")
	mcpCmd.Flags().Int("port", 8081, "Port for the SSE transport")
}
