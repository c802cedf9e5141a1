package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/coderag/internal/app"
	"github.com/Aman-CERP/coderag/internal/config"
	"github.com/Aman-CERP/coderag/internal/extract"
)

func newIngestCmd() *cobra.Command {
	var artifactPath string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Embed and upsert an extraction artifact into the store",
		Long: `Read the extraction artifact produced by 'coderag parse', embed every
unit, and upsert the records into the codebase collection. Re-running over
the same artifact overwrites records instead of duplicating them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIngest(cmd.Context(), cmd, artifactPath)
		},
	}

	cmd.Flags().StringVarP(&artifactPath, "input", "i", "", "Artifact path (default from config)")
	return cmd
}

func runIngest(ctx context.Context, cmd *cobra.Command, artifactPath string) error {
	repoRoot, err := config.FindRepoRoot(".")
	if err != nil {
		repoRoot = "."
	}
	cfg, err := config.Load(repoRoot)
	if err != nil {
		return err
	}
	if artifactPath == "" {
		artifactPath = cfg.Repo.ArtifactPath
	}

	artifact, err := extract.ReadArtifact(artifactPath)
	if err != nil {
		return fmt.Errorf("failed to read artifact %s (run 'coderag parse' first): %w", artifactPath, err)
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	stats, err := a.Ingestor().Run(ctx, artifact)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Ingested %d records in %d batches (%d files, %d empty units skipped)\n",
		stats.Records, stats.Batches, stats.Files, stats.SkippedEmpty)
	return nil
}
