package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/finsightlab/recall/internal/retriever"
)

// queryOptions holds CLI flags for query.
type queryOptions struct {
	topK         int
	filters      []string // key=value pairs
	format       string   // "text", "json"
	forceRefresh bool
}

func newQueryCmd() *cobra.Command {
	var opts queryOptions

	cmd := &cobra.Command{
		Use:   "query <text>",
		Short: "Query the indexed corpus",
		Long: `Run a hybrid search over the indexed corpus.

The query is classified by complexity to pick retrieval depth and
whether reranking applies. Results carry fused scores and an overall
confidence estimate.

Examples:
  recall query "cash-secured put"
  recall query "compare puts and calls for income" --top 10
  recall query "strike price" --filter category=options --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd.Context(), strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.topK, "top", "n", 0, "Maximum number of results (0 uses the configured default)")
	cmd.Flags().StringArrayVarP(&opts.filters, "filter", "f", nil, "Metadata filter as key=value (repeatable)")
	cmd.Flags().StringVar(&opts.format, "format", "text", "Output format: text, json")
	cmd.Flags().BoolVar(&opts.forceRefresh, "refresh", false, "Bypass the result cache")

	return cmd
}

func runQuery(ctx context.Context, query string, opts queryOptions) error {
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

	filters, err := parseMetadata(opts.filters)
	if err != nil {
		return err
	}

	result, err := r.Query(ctx, retriever.QueryRequest{
		Query:        query,
		Filters:      filters,
		TopK:         opts.topK,
		ForceRefresh: opts.forceRefresh,
	})
	if err != nil {
		return err
	}

	if opts.format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	printResult(query, result)
	return nil
}

func printResult(query string, result *retriever.QueryResult) {
	if len(result.Results) == 0 {
		fmt.Printf("No results for %q.\n", query)
		return
	}

	fmt.Printf("%d results (%s tier, cache %s, %.0fms, confidence %.2f",
		len(result.Results), result.Tier, result.CacheStatus,
		float64(result.Took.Microseconds())/1000, result.Confidence)
	if result.LowConfidence {
		fmt.Print(", LOW")
	}
	fmt.Println(")")

	for i, res := range result.Results {
		fmt.Printf("\n%d. %s", i+1, res.Title)
		if res.Heading != "" {
			fmt.Printf(" / %s", res.Heading)
		}
		fmt.Printf("  [%.3f]\n", res.Score)
		fmt.Printf("   %s\n", snippet(res.Content, 200))
	}

	if result.LowConfidence {
		fmt.Println("\nConfidence is low; results may not answer the query.")
	}
}

// snippet truncates content to limit runes on a word boundary.
func snippet(content string, limit int) string {
	content = strings.Join(strings.Fields(content), " ")
	if len(content) <= limit {
		return content
	}
	cut := content[:limit]
	if idx := strings.LastIndex(cut, " "); idx > 0 {
		cut = cut[:idx]
	}
	return cut + "..."
}
