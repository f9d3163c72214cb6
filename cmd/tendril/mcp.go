package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/tendril/pkg/adapters/mcp"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Exposes the machine as an MCP server with the tools list_tools, preview_step and
get_memory and the resource tendril://machine.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP on --addr.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := cfg.Logger()
		env, err := loadEnvironment()
		if err != nil {
			return err
		}
		store, closeStore, err := cfg.OpenStore()
		if err != nil {
			return err
		}
		defer closeStore()

		srv := mcp.NewServer(env.machine, env.events, mcp.WithStore(store))

		transport, _ := cmd.Flags().GetString("transport")
		switch transport {
		case "stdio":
			// Keep logs off Stdout so they do not corrupt JSON-RPC.
			log.SetOutput(os.Stderr)
			logger.Info("starting tendril MCP server (stdio)")
			return srv.ServeStdio()
		case "sse":
			baseURL, _ := cmd.Flags().GetString("base-url")
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger.Info("starting tendril MCP server (SSE)", "addr", cfg.Addr)
			if err := srv.ServeSSE(ctx, cfg.Addr, baseURL); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			logger.Info("MCP server stopped gracefully")
			return nil
		default:
			return fmt.Errorf("unknown transport: %s. Supported: stdio, sse", transport)
		}
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().String("transport", "stdio", "Transport protocol to use: 'stdio' or 'sse'")
	mcpCmd.Flags().String("base-url", "http://localhost:8080", "Public base URL (only for SSE)")
}
