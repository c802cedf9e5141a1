package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/coderag/internal/config"
	"github.com/Aman-CERP/coderag/internal/embed"
)

func newSetupCmd() *cobra.Command {
	var (
		check        bool
		writeProject bool
	)

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Check backends and prepare collections",
		Long: `Verify the configured embedding provider and store backend, and
create the two collections if they are missing.

Use --check to only report status without creating anything.
Use --write-config to write a .coderag.yaml with the resolved settings.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSetup(cmd.Context(), cmd, check, writeProject)
		},
	}

	cmd.Flags().BoolVar(&check, "check", false, "Only check status, don't create collections")
	cmd.Flags().BoolVar(&writeProject, "write-config", false, "Write resolved config to .coderag.yaml")
	return cmd
}

func runSetup(ctx context.Context, cmd *cobra.Command, checkOnly, writeProject bool) error {
	out := cmd.OutOrStdout()

	repoRoot, err := config.FindRepoRoot(".")
	if err != nil {
		repoRoot = "."
	}
	cfg, err := config.Load(repoRoot)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Store backend:      %s\n", cfg.Store.Backend)
	fmt.Fprintf(out, "Embedding provider: %s (%s)\n", cfg.Embeddings.Provider, cfg.Embeddings.Model)

	if checkOnly {
		embedder, err := embed.NewEmbedder(ctx, cfg.Embeddings)
		if err != nil {
			fmt.Fprintf(out, "Embedder:           unavailable (%v)\n", err)
			return nil
		}
		defer func() { _ = embedder.Close() }()
		fmt.Fprintf(out, "Embedder:           ready (%d dimensions)\n", embedder.Dimensions())
		return nil
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	fmt.Fprintf(out, "Embedder:           ready (%d dimensions)\n", a.Embedder.Dimensions())
	fmt.Fprintf(out, "Collections ready:  %s, %s\n",
		cfg.Store.CodebaseCollection, cfg.Store.MemoryCollection)

	if writeProject {
		path := filepath.Join(repoRoot, config.ProjectFileName)
		if _, err := os.Stat(path); err == nil {
			fmt.Fprintf(out, "Config exists:      %s (left unchanged)\n", path)
			return nil
		}
		if err := cfg.WriteYAML(path); err != nil {
			return err
		}
		fmt.Fprintf(out, "Config written:     %s\n", path)
	}
	return nil
}
