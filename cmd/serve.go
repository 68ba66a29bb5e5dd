package cmd

import (
	"fmt"
	"os"

	"github.com/Devifyo/lumina/common"
	"github.com/Devifyo/lumina/internal/oss"
	"github.com/Devifyo/lumina/internal/session"
	"github.com/Devifyo/lumina/internal/tools"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the editing studio as MCP tools over stdio",
		Long: `Starts an MCP server on stdin/stdout. Every tool takes an optional
session_id so several independent editing sessions can share one server.
Sessions are dropped after SESSION_IDLE_MINUTES of inactivity.

Destructive tools (undo, delete, reset, change image) only act when called
with confirm=true.`,
		Example: `  # Register with an MCP client
  lumina serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := common.LoadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			common.WithFields(map[string]interface{}{
				"base_url":       cfg.GenAIBaseURL,
				"primary_model":  cfg.PrimaryModel,
				"fallback_model": cfg.FallbackModel,
				"aspect_ratio":   cfg.AspectRatio,
				"api_key":        maskAPIKey(cfg.GenAIAPIKey),
			}).Info("Server starting")

			ed, err := newEditor(cfg)
			if err != nil {
				return err
			}

			exporter, err := oss.NewExporterFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("failed to create OSS exporter: %w", err)
			}
			if exporter == nil {
				common.Info("Object storage not configured, export tool disabled")
			}

			sessions := session.NewRegistry(cfg.SessionIdleTimeout(), func(id string) *session.Session {
				return session.New(id, ed)
			})

			s := server.NewMCPServer(
				"Lumina Studio",
				cmd.Root().Version,
				server.WithToolCapabilities(true),
				server.WithRecovery(),
			)

			studio := tools.NewStudio(sessions, exporter, cfg.UploadMaxBytes())
			if err := tools.RegisterStudioTools(s, studio); err != nil {
				return fmt.Errorf("failed to register studio tools: %w", err)
			}

			stdio := server.NewStdioServer(s)
			if err := stdio.Listen(cmd.Context(), os.Stdin, os.Stdout); err != nil && cmd.Context().Err() == nil {
				return fmt.Errorf("server error: %w", err)
			}
			common.Info("Server stopped")
			return nil
		},
	}

	return cmd
}
