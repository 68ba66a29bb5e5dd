package cmd

import (
	"github.com/spf13/cobra"
)

// NewRootCmd lumina 命令入口
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lumina",
		Short: "AI photo editing studio over MCP",
		Long: `Lumina orchestrates generative image edits: background removal, object
erasure, enhancement, background blur and free-form prompts, with a
primary/fallback model policy and an in-memory edit history.

Run "lumina serve" to expose the studio as MCP tools over stdio, or
"lumina edit" to apply a chain of edits to a local file.`,
		SilenceUsage: true,
	}

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newEditCmd())

	return cmd
}
