package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/aretw0/concierge"
	"github.com/aretw0/concierge/internal/cli"
	"github.com/aretw0/concierge/pkg/adapters/mcp"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Exposes the concierge to AI agents as MCP tools: schedule broadcasts,
track or cancel jobs and read sessions.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		transport, _ := cmd.Flags().GetString("transport")
		port, _ := cmd.Flags().GetInt("port")

		// Stdout carries JSON-RPC; logs go to stderr.
		log.SetOutput(os.Stderr)
		logger, err := cli.NewLogger(cfg, os.Stderr)
		if err != nil {
			return err
		}

		rt, err := cli.Build(cfg, logger, cli.Options{Console: os.Stderr})
		if err != nil {
			return err
		}
		defer rt.Close(context.Background())

		srv := mcp.NewServer(rt.App, strings.TrimSpace(concierge.Version), mcp.WithLogger(logger))

		switch transport {
		case "stdio":
			logger.Info("Starting Concierge MCP Server (Stdio)...")
			return srv.ServeStdio()
		case "sse":
			logger.Info("Starting Concierge MCP Server (SSE)", "port", port)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := srv.ServeSSE(ctx, port); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			logger.Info("MCP Server stopped gracefully")
			return nil
		default:
			return fmt.Errorf("unknown transport: %s. Supported: stdio, sse", transport)
		}
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)

	mcpCmd.Flags().String("transport", "stdio", "Transport protocol to use: 'stdio' or 'sse'")
	mcpCmd.Flags().Int("port", 8080, "Port to listen on (only for SSE)")
}
