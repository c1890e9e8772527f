// Command nim-rag answers questions about a document with a retrieval-backed
// reasoning agent.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/becomeliminal/nim-rag/config"
)

var (
	cfgPath string
	cfg     *config.Config
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, errorColor.Sprintf("Error: %v", err))
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "nim-rag",
		Short:         "Ask questions about a document with an agentic RAG pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Optional: fall back to the process environment when no .env exists.
			_ = godotenv.Load()

			loaded, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			cfg = loaded
			return nil
		},
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "nim-rag.yaml", "path to YAML config file")

	root.AddCommand(
		initCmd(),
		ingestCmd(),
		askCmd(),
		chatCmd(),
		serveCmd(),
		statusCmd(),
	)
	return root
}
