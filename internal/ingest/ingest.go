// Package ingest turns an extraction artifact into index records and writes
// them to the codebase collection.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/coderag/internal/embed"
	ragerrors "github.com/Aman-CERP/coderag/internal/errors"
	"github.com/Aman-CERP/coderag/internal/extract"
	"github.com/Aman-CERP/coderag/internal/store"
)

// readmeFile is the synthetic path of the indexed README unit.
const readmeFile = "README.md"

// Options bounds batching and truncation during ingestion.
type Options struct {
	// BatchSize caps records per upsert request.
	BatchSize int

	// Workers bounds concurrent embed+upsert batches.
	Workers int

	// MaxCodeChars truncates each record's code text; 0 disables.
	MaxCodeChars int
}

// Stats summarizes an ingestion run.
type Stats struct {
	Records      int
	Batches      int
	Files        int
	SkippedEmpty int
}

// Ingestor writes extraction artifacts into the store.
type Ingestor struct {
	store      store.Store
	embedder   embed.Embedder
	collection string
	opts       Options
}

// New creates an ingestor over the given store and embedder.
func New(st store.Store, embedder embed.Embedder, collection string, opts Options) *Ingestor {
	if opts.BatchSize < 1 {
		opts.BatchSize = 256
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Ingestor{
		store:      st,
		embedder:   embedder,
		collection: collection,
		opts:       opts,
	}
}

// pending is a record awaiting its embedding vector.
type pending struct {
	id      string
	text    string
	payload *store.CodePayload
}

// Run converts the artifact into records and upserts them in batches.
// Record ids are derived from content identity, so re-running over the same
// artifact overwrites rather than duplicates. Batches embed and upsert
// concurrently under the configured worker bound; the first failed batch
// aborts the run and is reported with its index.
func (ing *Ingestor) Run(ctx context.Context, artifact *extract.Artifact) (Stats, error) {
	var stats Stats

	items := ing.collect(artifact, &stats)
	if len(items) == 0 {
		slog.Info("ingest_empty", slog.String("repo_root", artifact.RepoRoot))
		return stats, nil
	}
	stats.Records = len(items)

	batches := batched(items, ing.opts.BatchSize)
	stats.Batches = len(batches)

	slog.Info("ingest_started",
		slog.Int("records", stats.Records),
		slog.Int("batches", stats.Batches),
		slog.Int("workers", ing.opts.Workers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ing.opts.Workers)

	for i, batch := range batches {
		g.Go(func() error {
			if err := ing.upsertBatch(gctx, batch); err != nil {
				return ragerrors.Wrap(ragerrors.ErrCodeIngestFailed,
					fmt.Errorf("batch %d/%d: %w", i+1, len(batches), err))
			}
			slog.Info("ingest_batch_done",
				slog.Int("batch", i+1),
				slog.Int("batches", len(batches)),
				slog.Int("records", len(batch)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return stats, err
	}

	slog.Info("ingest_complete", slog.Int("records", stats.Records))
	return stats, nil
}

// collect flattens the artifact into pending records: the README as a Doc
// unit, then every syntactic and windowed unit per file. Units with empty
// code are skipped. File order is sorted so batch contents are stable
// across runs.
func (ing *Ingestor) collect(artifact *extract.Artifact, stats *Stats) []pending {
	var items []pending

	if readme := strings.TrimSpace(artifact.Readme); readme != "" {
		payload := &store.CodePayload{
			File:      readmeFile,
			Name:      "README",
			Type:      string(extract.UnitTypeDoc),
			Language:  "markdown",
			StartLine: 1,
			EndLine:   1 + strings.Count(readme, "\n"),
			Docstring: "Project documentation / overview",
			Code:      ing.truncate(readme),
			RepoRoot:  artifact.RepoRoot,
		}
		items = append(items, pending{
			id:      store.UnitID(readmeFile, string(extract.UnitTypeDoc), "", "README", payload.StartLine, payload.EndLine),
			text:    readme,
			payload: payload,
		})
	}

	files := make([]string, 0, len(artifact.ParsedCode))
	for file := range artifact.ParsedCode {
		files = append(files, file)
	}
	sort.Strings(files)

	for _, file := range files {
		parsed := artifact.ParsedCode[file]
		stats.Files++

		units := make([]extract.RetrievalUnit, 0, len(parsed.ASTItems)+len(parsed.FileChunks))
		units = append(units, parsed.ASTItems...)
		units = append(units, parsed.FileChunks...)

		for _, unit := range units {
			code := strings.TrimSpace(unit.Code)
			if code == "" {
				stats.SkippedEmpty++
				continue
			}

			payload := &store.CodePayload{
				File:              file,
				Name:              unit.Name,
				Symbol:            unit.Symbol,
				Type:              string(unit.Type),
				Language:          unit.Language,
				StartLine:         unit.StartLine,
				EndLine:           unit.EndLine,
				Docstring:         unit.Docstring,
				PrecedingComments: unit.PrecedingComments,
				Code:              ing.truncate(code),
				RepoRoot:          artifact.RepoRoot,
			}
			items = append(items, pending{
				id:      store.UnitID(file, string(unit.Type), unit.Symbol, unit.Name, unit.StartLine, unit.EndLine),
				text:    code,
				payload: payload,
			})
		}
	}
	return items
}

// upsertBatch embeds the batch's code texts and writes the records.
func (ing *Ingestor) upsertBatch(ctx context.Context, batch []pending) error {
	texts := make([]string, len(batch))
	for i, item := range batch {
		texts[i] = item.text
	}

	vectors, err := ing.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed: %w", err)
	}
	if len(vectors) != len(batch) {
		return fmt.Errorf("embed: got %d vectors for %d texts", len(vectors), len(batch))
	}

	records := make([]store.Record, len(batch))
	for i, item := range batch {
		records[i] = store.Record{
			ID:      item.id,
			Vector:  vectors[i],
			Payload: item.payload,
		}
	}
	return ing.store.Upsert(ctx, ing.collection, records)
}

func (ing *Ingestor) truncate(code string) string {
	if ing.opts.MaxCodeChars > 0 && len(code) > ing.opts.MaxCodeChars {
		return code[:ing.opts.MaxCodeChars]
	}
	return code
}

func batched(items []pending, size int) [][]pending {
	var batches [][]pending
	for len(items) > size {
		batches = append(batches, items[:size])
		items = items[size:]
	}
	if len(items) > 0 {
		batches = append(batches, items)
	}
	return batches
}
