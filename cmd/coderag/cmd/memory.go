package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/coderag/internal/app"
	"github.com/Aman-CERP/coderag/internal/config"
)

func newMemoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Store and recall past exchanges",
	}

	cmd.AddCommand(newMemoryAddCmd())
	cmd.AddCommand(newMemorySearchCmd())
	return cmd
}

func newMemoryAddCmd() *cobra.Command {
	var (
		userText      string
		assistantText string
		files         []string
		tags          []string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Store one exchange in the memory collection",
		Long: `Store a user/assistant exchange. Every invocation creates a new
entry; identical exchanges are stored twice on purpose.

Example:
  coderag memory add --user "how does auth work" \
    --assistant "tokens are validated in auth/login.py" \
    --file auth/login.py --tag auth`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if userText == "" || assistantText == "" {
				return fmt.Errorf("both --user and --assistant are required")
			}
			return runMemoryAdd(cmd.Context(), cmd, userText, assistantText, files, tags)
		},
	}

	cmd.Flags().StringVarP(&userText, "user", "u", "", "User side of the exchange")
	cmd.Flags().StringVarP(&assistantText, "assistant", "a", "", "Assistant side of the exchange")
	cmd.Flags().StringSliceVar(&files, "file", nil, "Referenced file (repeatable)")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "Tag (repeatable)")
	return cmd
}

func newMemorySearchCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Recall stored exchanges by similarity",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMemorySearch(cmd.Context(), cmd, strings.Join(args, " "), limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of entries (default from config)")
	return cmd
}

func runMemoryAdd(ctx context.Context, cmd *cobra.Command, user, assistant string, files, tags []string) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	id, err := a.Memory().Remember(ctx, user, assistant, files, tags)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Stored memory %s\n", id)
	return nil
}

func runMemorySearch(ctx context.Context, cmd *cobra.Command, query string, limit int) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if limit <= 0 {
		limit = a.Config.Search.MemoryK
	}
	entries, err := a.Memory().Recall(ctx, query, limit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintf(out, "No stored exchanges match %q\n", query)
		return nil
	}

	for i, entry := range entries {
		fmt.Fprintf(out, "%d. [%s]\n", i+1, entry.Timestamp)
		fmt.Fprintf(out, "   User: %s\n", entry.User)
		fmt.Fprintf(out, "   Assistant: %s\n", entry.Assistant)
		if len(entry.Files) > 0 {
			fmt.Fprintf(out, "   Files: %s\n", strings.Join(entry.Files, ", "))
		}
		if len(entry.Tags) > 0 {
			fmt.Fprintf(out, "   Tags: %s\n", strings.Join(entry.Tags, ", "))
		}
		fmt.Fprintln(out)
	}
	return nil
}

// newApp loads configuration from the repo root and wires the backends.
func newApp(ctx context.Context) (*app.App, error) {
	repoRoot, err := config.FindRepoRoot(".")
	if err != nil {
		repoRoot = "."
	}
	cfg, err := config.Load(repoRoot)
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg)
}
