package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/finsightlab/recall/internal/retriever"
	"github.com/finsightlab/recall/internal/store"
)

// indexOptions holds CLI flags for index.
type indexOptions struct {
	title    string
	source   string
	metadata []string // key=value pairs
	remove   bool
}

func newIndexCmd() *cobra.Command {
	var opts indexOptions

	cmd := &cobra.Command{
		Use:   "index <id> [file]",
		Short: "Index a document, or remove one with --remove",
		Long: `Index a document into the retrieval engine.

Content is read from the given file, or from stdin when no file is
provided. Re-indexing unchanged content is a no-op.

Examples:
  recall index options-guide ./docs/options.md
  recall index notes-2026 --title "Meeting Notes" < notes.md
  recall index options-guide --remove`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(cmd.Context(), args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.title, "title", "t", "", "Document title (defaults to the id)")
	cmd.Flags().StringVarP(&opts.source, "source", "s", "", "Document source label")
	cmd.Flags().StringArrayVarP(&opts.metadata, "meta", "m", nil, "Metadata tag as key=value (repeatable)")
	cmd.Flags().BoolVar(&opts.remove, "remove", false, "Remove the document instead of indexing")

	return cmd
}

func runIndex(ctx context.Context, args []string, opts indexOptions) error {
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

	id := args[0]

	if opts.remove {
		found, err := r.Remove(ctx, id)
		if err != nil {
			return err
		}
		if !found {
			fmt.Printf("Document %q was not indexed.\n", id)
			return nil
		}
		fmt.Printf("Removed %q.\n", id)
		return nil
	}

	content, source, err := readContent(args, opts)
	if err != nil {
		return err
	}

	title := opts.title
	if title == "" {
		title = id
	}

	metadata, err := parseMetadata(opts.metadata)
	if err != nil {
		return err
	}

	result, err := r.Index(ctx, &store.Document{
		ID:       id,
		Title:    title,
		Source:   source,
		Content:  content,
		Metadata: metadata,
	})
	if err != nil {
		return err
	}

	if result.Unchanged {
		fmt.Printf("Document %q unchanged, nothing to do.\n", id)
		return nil
	}
	fmt.Printf("Indexed %q: %d chunks written", id, result.ChunksWritten)
	if result.ChunksSkipped > 0 {
		fmt.Printf(", %d skipped", result.ChunksSkipped)
	}
	fmt.Println(".")
	return nil
}

func readContent(args []string, opts indexOptions) (content, source string, err error) {
	source = opts.source

	if len(args) == 2 {
		data, err := os.ReadFile(args[1])
		if err != nil {
			return "", "", fmt.Errorf("read document file: %w", err)
		}
		if source == "" {
			source = filepath.Base(args[1])
		}
		return string(data), source, nil
	}

	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", "", fmt.Errorf("read stdin: %w", err)
	}
	if source == "" {
		source = "stdin"
	}
	return string(data), source, nil
}

func parseMetadata(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	metadata := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid metadata %q, expected key=value", pair)
		}
		metadata[key] = value
	}
	return metadata, nil
}
