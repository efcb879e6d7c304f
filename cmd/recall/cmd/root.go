// Package cmd provides the CLI commands for recall.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/finsightlab/recall/internal/config"
	"github.com/finsightlab/recall/internal/logging"
	"github.com/finsightlab/recall/pkg/version"
)

// Global flags shared by every subcommand.
var (
	configPath string
	dataDir    string
	debugMode  bool
)

// NewRootCmd creates the root command for the recall CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recall",
		Short: "Hybrid retrieval engine for document corpora",
		Long: `Recall indexes documents into lexical and semantic indexes and
answers queries with hybrid search, complexity-adaptive depth,
deterministic reranking, and confidence scoring.`,
		Version:       version.Info().String(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file")
	cmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Override the data directory")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newQueryCmd())
	cmd.AddCommand(newStatsCmd())

	return cmd
}

// Execute runs the CLI.
func Execute() error {
	cmd := NewRootCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// loadConfig resolves configuration from flags and files.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if debugMode {
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}

// setupLogging initializes the process logger from config.
func setupLogging(cfg *config.Config) (*slog.Logger, func(), error) {
	logCfg := logging.Config{
		Level:         cfg.Logging.Level,
		FilePath:      cfg.Logging.FilePath,
		MaxSizeMB:     cfg.Logging.MaxSizeMB,
		MaxFiles:      cfg.Logging.MaxFiles,
		WriteToStderr: true,
	}
	return logging.Setup(logCfg)
}
