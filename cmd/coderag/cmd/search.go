package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/coderag/internal/search"
	"github.com/Aman-CERP/coderag/internal/store"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	limit      int
	format     string // "text", "json", "context"
	withMemory bool
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the indexed codebase",
		Long: `Search the indexed codebase with hybrid retrieval: a dense embedding
leg and a keyword leg fused by reciprocal rank fusion.

Examples:
  coderag search "token validation"
  coderag search "where is retry handled" --limit 5
  coderag search "config loading" --format json
  coderag search "auth flow" --format context`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return runSearch(cmd.Context(), cmd, query, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum number of results (default from config)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json, context")
	cmd.Flags().BoolVar(&opts.withMemory, "with-memory", false, "Also recall related past exchanges")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, opts searchOptions) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()
	cfg := a.Config

	results, err := a.Retriever().Search(ctx, query, opts.limit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(results) == 0 {
		fmt.Fprintf(out, "No results found for %q\n", query)
		return nil
	}

	switch opts.format {
	case "json":
		if err := formatJSON(cmd, results); err != nil {
			return err
		}
	case "context":
		fmt.Fprintln(out, search.BuildContext(results, cfg.Search.MaxCodeChars, cfg.Search.MaxContextChars))
	default:
		formatText(out, query, results)
	}

	if opts.withMemory {
		entries, err := a.Memory().Recall(ctx, query, cfg.Search.MemoryK)
		if err != nil {
			return err
		}
		if len(entries) > 0 {
			fmt.Fprintln(out, "\nRelated past exchanges:")
			fmt.Fprintln(out, search.BuildMemoryNotes(entries))
		}
	}
	return nil
}

// formatText outputs results in human-readable form.
func formatText(out io.Writer, query string, results []search.FusedResult) {
	fmt.Fprintf(out, "Found %d results for %q:\n\n", len(results), query)

	for i, r := range results {
		payload, ok := r.Payload.(*store.CodePayload)
		if !ok {
			continue
		}

		location := payload.File
		if payload.StartLine > 0 {
			location = fmt.Sprintf("%s:%d", payload.File, payload.StartLine)
		}
		fmt.Fprintf(out, "%d. %s (score: %.4f)\n", i+1, location, r.Score)
		if payload.Name != "" {
			fmt.Fprintf(out, "   %s [%s]\n", payload.Name, payload.Type)
		}
		for _, line := range snippet(payload.Code, 3) {
			fmt.Fprintf(out, "   %s\n", line)
		}
		fmt.Fprintln(out)
	}
}

// formatJSON outputs results as a JSON array.
func formatJSON(cmd *cobra.Command, results []search.FusedResult) error {
	type jsonResult struct {
		ID        string  `json:"id"`
		Score     float64 `json:"score"`
		File      string  `json:"file"`
		Name      string  `json:"name"`
		Type      string  `json:"type"`
		StartLine int     `json:"start_line"`
		EndLine   int     `json:"end_line"`
		Code      string  `json:"code"`
		Language  string  `json:"language,omitempty"`
	}

	out := make([]jsonResult, 0, len(results))
	for _, r := range results {
		payload, ok := r.Payload.(*store.CodePayload)
		if !ok {
			continue
		}
		out = append(out, jsonResult{
			ID:        r.ID,
			Score:     r.Score,
			File:      payload.File,
			Name:      payload.Name,
			Type:      payload.Type,
			StartLine: payload.StartLine,
			EndLine:   payload.EndLine,
			Code:      payload.Code,
			Language:  payload.Language,
		})
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// snippet returns the first n non-trailing-blank lines of content.
func snippet(content string, n int) []string {
	lines := strings.Split(content, "\n")
	if len(lines) > n {
		lines = lines[:n]
	}
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
