// Package cli is the command-line driving adapter.
package cli

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/support-rag/internal/app"
	"github.com/custodia-labs/support-rag/internal/config"
)

var (
	version = "dev"
	cfgFile string
	envFile string
)

var rootCmd = &cobra.Command{
	Use:   "support-rag",
	Short: "Answer customer support questions from categorised documentation",
	Long: `support-rag stores support documents in a vector store, split into
overlapping chunks per category, and answers questions with a language
model grounded in the closest chunks.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")
}

// appFactory builds the services for commands that need them.
var appFactory = func(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load(cfgFile, envFile)
	if err != nil {
		return nil, err
	}
	logger := cfg.Log.NewLogger(os.Stderr)
	slog.SetDefault(logger)
	return app.New(ctx, cfg, logger)
}

// Execute runs the root command.
func Execute(ctx context.Context, v string) error {
	version = v
	return rootCmd.ExecuteContext(ctx)
}
