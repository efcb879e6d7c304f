package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/finsightlab/recall/internal/retriever"
)

func newStatsCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show corpus size and query metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(cmd.Context(), format)
		},
	}

	cmd.Flags().StringVar(&format, "format", "text", "Output format: text, json")

	return cmd
}

func runStats(ctx context.Context, format string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, cleanup, err := setupLogging(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	r, err := retriever.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()

	docs, chunks, err := r.Stats(ctx)
	if err != nil {
		return err
	}
	summary := r.MetricsSummary()

	if format == "json" {
		payload := struct {
			Documents int `json:"documents"`
			Chunks    int `json:"chunks"`
			Metrics   any `json:"metrics"`
		}{docs, chunks, summary}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(payload)
	}

	fmt.Printf("Documents: %d\n", docs)
	fmt.Printf("Chunks:    %d\n", chunks)
	fmt.Printf("Queries:   %d (hit rate %.0f%%, avg confidence %.2f, avg latency %.1fms, failures %.0f%%)\n",
		summary.TotalQueries,
		summary.CacheHitRate*100,
		summary.AvgConfidence,
		summary.AvgLatencyMs,
		summary.FailureRate*100)
	return nil
}
