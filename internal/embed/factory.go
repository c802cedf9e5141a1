package embed

import (
	"context"
	"fmt"
	"strings"

	"github.com/Aman-CERP/coderag/internal/config"
)

// ProviderType represents an embedding provider.
type ProviderType string

const (
	// ProviderOllama uses the Ollama HTTP API (default).
	ProviderOllama ProviderType = "ollama"

	// ProviderStatic uses hash-based embeddings. No external process, lower
	// semantic quality; useful for tests and air-gapped runs.
	ProviderStatic ProviderType = "static"
)

// ParseProvider converts a string to a ProviderType.
func ParseProvider(s string) ProviderType {
	switch strings.ToLower(s) {
	case "static":
		return ProviderStatic
	default:
		return ProviderOllama
	}
}

// String returns the string representation of the provider.
func (p ProviderType) String() string {
	return string(p)
}

// NewEmbedder builds the configured embedder, wrapped in an LRU cache.
// The Ollama path fails loudly when the server is unreachable rather than
// silently degrading to static vectors; a static index and an Ollama index
// are not interchangeable.
func NewEmbedder(ctx context.Context, cfg config.EmbeddingsConfig) (Embedder, error) {
	var embedder Embedder

	switch ParseProvider(cfg.Provider) {
	case ProviderStatic:
		embedder = NewStaticEmbedder()

	case ProviderOllama:
		ollamaCfg := DefaultOllamaConfig()
		if cfg.Model != "" {
			ollamaCfg.Model = cfg.Model
		}
		if cfg.OllamaHost != "" {
			ollamaCfg.Host = cfg.OllamaHost
		}
		if cfg.Dimensions > 0 {
			ollamaCfg.Dimensions = cfg.Dimensions
		}
		if cfg.BatchSize > 0 {
			ollamaCfg.BatchSize = cfg.BatchSize
		}

		var err error
		embedder, err = NewOllamaEmbedder(ctx, ollamaCfg)
		if err != nil {
			return nil, fmt.Errorf("ollama unavailable: %w\n\nTo fix:\n  1. Start Ollama: ollama serve\n  2. Or use hash embeddings: CODERAG_EMBEDDER=static", err)
		}
	}

	return NewCachedEmbedder(embedder, cfg.CacheSize), nil
}
