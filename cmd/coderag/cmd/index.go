package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/coderag/internal/app"
	"github.com/Aman-CERP/coderag/internal/config"
	"github.com/Aman-CERP/coderag/internal/extract"
)

func newIndexCmd() *cobra.Command {
	var keepArtifact bool

	cmd := &cobra.Command{
		Use:   "index [path]",
		Short: "Parse and ingest a repository in one step",
		Long: `Extract retrieval units from the repository and write them straight
into the store. Equivalent to 'coderag parse' followed by 'coderag ingest',
without the artifact file unless --keep-artifact is set.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) > 0 {
				root = args[0]
			}
			return runIndex(cmd.Context(), cmd, root, keepArtifact)
		},
	}

	cmd.Flags().BoolVar(&keepArtifact, "keep-artifact", false, "Also write the extraction artifact to disk")
	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, root string, keepArtifact bool) error {
	repoRoot, err := config.FindRepoRoot(root)
	if err != nil {
		repoRoot = root
	}
	cfg, err := config.Load(repoRoot)
	if err != nil {
		return err
	}

	extractor := extract.NewExtractor(extract.Options{
		ExcludeDirs:  cfg.Repo.ExcludeDirs,
		IncludeExts:  cfg.Repo.IncludeExts,
		MaxFileBytes: cfg.Repo.MaxFileBytes,
		ChunkLines:   cfg.Chunking.Lines,
		ChunkOverlap: cfg.Chunking.Overlap,
	})
	defer extractor.Close()

	artifact, err := extractor.Run(ctx, repoRoot)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Parsed %d files (%d syntax errors, %d skipped)\n",
		artifact.Stats.NumFiles, artifact.Stats.NumSyntaxErrors, artifact.Stats.NumSkipped)

	if keepArtifact {
		if err := extract.WriteArtifact(artifact, cfg.Repo.ArtifactPath); err != nil {
			return err
		}
		fmt.Fprintf(out, "Artifact written to %s\n", cfg.Repo.ArtifactPath)
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

	fmt.Fprintf(out, "Ingested %d records in %d batches\n", stats.Records, stats.Batches)
	return nil
}
