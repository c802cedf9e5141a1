// Package memory stores and recalls past interaction summaries. Memory is
// single-signal: entries are retrieved by dense similarity only, with no
// lexical leg and no fusion.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Aman-CERP/coderag/internal/embed"
	ragerrors "github.com/Aman-CERP/coderag/internal/errors"
	"github.com/Aman-CERP/coderag/internal/store"
)

// timestampLayout renders ISO-8601 UTC with an explicit offset.
const timestampLayout = "2006-01-02T15:04:05+00:00"

// Memory persists chat exchanges in the memory collection and recalls them
// by dense similarity.
type Memory struct {
	store      store.Store
	embedder   embed.Embedder
	collection string

	// now is swappable for tests.
	now func() time.Time
}

// New creates a memory layer over the given store and embedder.
func New(st store.Store, embedder embed.Embedder, collection string) *Memory {
	return &Memory{
		store:      st,
		embedder:   embedder,
		collection: collection,
		now:        time.Now,
	}
}

// Remember stores one exchange. The combined text is what gets embedded;
// every entry receives a fresh random id, so repeated identical exchanges
// produce separate entries.
func (m *Memory) Remember(ctx context.Context, user, assistant string, files, tags []string) (string, error) {
	combined := fmt.Sprintf("User: %s\nAssistant: %s", user, assistant)

	vector, err := m.embedder.Embed(ctx, combined)
	if err != nil {
		return "", ragerrors.Wrap(ragerrors.ErrCodeEmbeddingFailed, err)
	}

	id := store.NewMemoryID()
	record := store.Record{
		ID:     id,
		Vector: vector,
		Payload: &store.MemoryPayload{
			User:      user,
			Assistant: assistant,
			Text:      combined,
			Files:     files,
			Tags:      tags,
			Timestamp: m.now().UTC().Format(timestampLayout),
		},
	}

	if err := m.store.Upsert(ctx, m.collection, []store.Record{record}); err != nil {
		return "", ragerrors.Wrap(ragerrors.ErrCodeStoreUnavailable, err)
	}

	slog.Debug("memory_stored",
		slog.String("id", id),
		slog.Int("files", len(files)),
		slog.Int("tags", len(tags)))
	return id, nil
}

// Recall returns the limit most similar stored exchanges. Scores are
// discarded: memory is advisory context, not ranked evidence.
func (m *Memory) Recall(ctx context.Context, query string, limit int) ([]*store.MemoryPayload, error) {
	vector, err := m.embedder.Embed(ctx, query)
	if err != nil {
		return nil, ragerrors.Wrap(ragerrors.ErrCodeEmbeddingFailed, err)
	}

	hits, err := m.store.DenseSearch(ctx, m.collection, vector, limit)
	if err != nil {
		return nil, ragerrors.Wrap(ragerrors.ErrCodeSearchFailed, err)
	}

	entries := make([]*store.MemoryPayload, 0, len(hits))
	for _, hit := range hits {
		payload, ok := hit.Payload.(*store.MemoryPayload)
		if !ok {
			slog.Warn("memory_payload_skipped", slog.String("id", hit.ID))
			continue
		}
		entries = append(entries, payload)
	}
	return entries, nil
}
