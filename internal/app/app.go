// Package app wires the configured backends into one explicit application
// context. Every command builds an App, uses its components, and closes it;
// nothing hangs off package-level state.
package app

import (
	"context"
	"log/slog"

	"github.com/Aman-CERP/coderag/internal/config"
	"github.com/Aman-CERP/coderag/internal/embed"
	"github.com/Aman-CERP/coderag/internal/ingest"
	"github.com/Aman-CERP/coderag/internal/memory"
	"github.com/Aman-CERP/coderag/internal/search"
	"github.com/Aman-CERP/coderag/internal/store"
)

// App holds the wired components for one process run.
type App struct {
	Config   *config.Config
	Store    store.Store
	Embedder embed.Embedder
}

// New builds the embedder and store from configuration and ensures both
// collections exist with the embedder's dimension. Backend selection
// happens here, once; everything downstream sees only the interfaces.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	embedder, err := embed.NewEmbedder(ctx, cfg.Embeddings)
	if err != nil {
		return nil, err
	}

	st, err := store.New(cfg.Store)
	if err != nil {
		_ = embedder.Close()
		return nil, err
	}

	dims := cfg.Embeddings.Dimensions
	if dims <= 0 {
		dims = embedder.Dimensions()
	}
	if err := st.EnsureCollections(ctx, dims); err != nil {
		_ = st.Close()
		_ = embedder.Close()
		return nil, err
	}

	slog.Debug("app_ready",
		slog.String("store", cfg.Store.Backend),
		slog.String("model", embedder.ModelName()),
		slog.Int("dimensions", dims))

	return &App{
		Config:   cfg,
		Store:    st,
		Embedder: embedder,
	}, nil
}

// Retriever returns a retriever over the codebase collection.
func (a *App) Retriever() *search.Retriever {
	return search.NewRetriever(a.Store, a.Embedder, a.Config.Store.CodebaseCollection, a.Config.Search)
}

// Memory returns the memory layer over the memory collection.
func (a *App) Memory() *memory.Memory {
	return memory.New(a.Store, a.Embedder, a.Config.Store.MemoryCollection)
}

// Ingestor returns an ingestor over the codebase collection.
func (a *App) Ingestor() *ingest.Ingestor {
	return ingest.New(a.Store, a.Embedder, a.Config.Store.CodebaseCollection, ingest.Options{
		BatchSize:    a.Config.Store.UpsertBatchSize,
		Workers:      a.Config.Store.IngestWorkers,
		MaxCodeChars: a.Config.Search.MaxCodeChars,
	})
}

// Close releases the store and embedder.
func (a *App) Close() error {
	storeErr := a.Store.Close()
	embedErr := a.Embedder.Close()
	if storeErr != nil {
		return storeErr
	}
	return embedErr
}
