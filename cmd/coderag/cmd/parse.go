package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/coderag/internal/config"
	"github.com/Aman-CERP/coderag/internal/extract"
)

func newParseCmd() *cobra.Command {
	var artifactPath string

	cmd := &cobra.Command{
		Use:   "parse [path]",
		Short: "Extract retrieval units from a repository",
		Long: `Walk the repository, extract declarations and windowed chunks from
every source file, and write the extraction artifact. The artifact is the
hand-off to 'coderag ingest'.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) > 0 {
				root = args[0]
			}
			return runParse(cmd.Context(), cmd, root, artifactPath)
		},
	}

	cmd.Flags().StringVarP(&artifactPath, "output", "o", "", "Artifact output path (default from config)")
	return cmd
}

func runParse(ctx context.Context, cmd *cobra.Command, root, artifactPath string) error {
	repoRoot, err := config.FindRepoRoot(root)
	if err != nil {
		repoRoot = root
	}

	cfg, err := config.Load(repoRoot)
	if err != nil {
		return err
	}
	if artifactPath == "" {
		artifactPath = cfg.Repo.ArtifactPath
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
	if err := extract.WriteArtifact(artifact, artifactPath); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Parsed %d files (%d syntax errors, %d skipped)\n",
		artifact.Stats.NumFiles, artifact.Stats.NumSyntaxErrors, artifact.Stats.NumSkipped)
	fmt.Fprintf(out, "Artifact written to %s\n", artifactPath)
	return nil
}
