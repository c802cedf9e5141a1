package store

import (
	"fmt"

	"github.com/Aman-CERP/coderag/internal/config"
	ragerrors "github.com/Aman-CERP/coderag/internal/errors"
)

// New builds the configured store adapter. The backend choice is made here,
// once, at startup; callers only ever see the Store interface.
func New(cfg config.StoreConfig) (Store, error) {
	collections := Collections{
		Codebase: cfg.CodebaseCollection,
		Memory:   cfg.MemoryCollection,
	}

	switch cfg.Backend {
	case config.StoreBackendQdrant:
		return NewQdrantStore(cfg.QdrantURL, collections), nil
	case config.StoreBackendLocal:
		return NewLocalStore(cfg.DataDir, collections)
	default:
		return nil, ragerrors.New(ragerrors.ErrCodeConfigInvalid,
			fmt.Sprintf("unknown store backend %q", cfg.Backend), nil).
			WithSuggestion(`set store.backend to "local" or "qdrant"`)
	}
}
