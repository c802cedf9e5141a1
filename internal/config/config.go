// Package config loads and validates coderag configuration.
//
// Configuration is resolved in priority order:
//  1. Built-in defaults
//  2. Project config file (.coderag.yaml in the repo root)
//  3. Environment variables (CODERAG_*)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ProjectFileName is the per-repo configuration file.
const ProjectFileName = ".coderag.yaml"

// Store backend identifiers.
const (
	StoreBackendQdrant = "qdrant"
	StoreBackendLocal  = "local"
)

// Embedder provider identifiers.
const (
	EmbedProviderOllama = "ollama"
	EmbedProviderStatic = "static"
)

// Config is the complete coderag configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Repo       RepoConfig       `yaml:"repo" json:"repo"`
	Chunking   ChunkingConfig   `yaml:"chunking" json:"chunking"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Store      StoreConfig      `yaml:"store" json:"store"`
	Search     SearchConfig     `yaml:"search" json:"search"`
}

// RepoConfig configures the extraction walk over the source tree.
type RepoConfig struct {
	// ExcludeDirs are directory names pruned during the walk.
	ExcludeDirs []string `yaml:"exclude_dirs" json:"exclude_dirs"`

	// IncludeExts are file extensions considered for extraction.
	IncludeExts []string `yaml:"include_exts" json:"include_exts"`

	// MaxFileBytes is the per-file size ceiling. Files above it are
	// skipped entirely and recorded, never truncated.
	MaxFileBytes int64 `yaml:"max_file_bytes" json:"max_file_bytes"`

	// ArtifactPath is where the intermediate extraction artifact is written.
	ArtifactPath string `yaml:"artifact_path" json:"artifact_path"`
}

// ChunkingConfig configures the windowing pass.
type ChunkingConfig struct {
	// Lines is the window length L in lines.
	Lines int `yaml:"lines" json:"lines"`

	// Overlap is the shared line count O between consecutive windows (O < L).
	Overlap int `yaml:"overlap" json:"overlap"`
}

// EmbeddingsConfig configures the embedding client.
type EmbeddingsConfig struct {
	// Provider selects the embedder backend: "ollama" or "static".
	Provider string `yaml:"provider" json:"provider"`

	// Model is the embedding model name (Ollama only).
	Model string `yaml:"model" json:"model"`

	// Dimensions is the dense vector size. Both collections are created
	// with this size; 0 means auto-detect from the embedder.
	Dimensions int `yaml:"dimensions" json:"dimensions"`

	// OllamaHost is the Ollama API endpoint.
	OllamaHost string `yaml:"ollama_host" json:"ollama_host"`

	// BatchSize for batch embedding requests.
	BatchSize int `yaml:"batch_size" json:"batch_size"`

	// CacheSize is the number of query embeddings kept in the LRU cache.
	CacheSize int `yaml:"cache_size" json:"cache_size"`
}

// StoreConfig configures the index store backend.
type StoreConfig struct {
	// Backend selects the adapter at startup: "qdrant" or "local".
	Backend string `yaml:"backend" json:"backend"`

	// QdrantURL is the Qdrant REST endpoint (qdrant backend).
	QdrantURL string `yaml:"qdrant_url" json:"qdrant_url"`

	// DataDir is where the local backend persists its files.
	DataDir string `yaml:"data_dir" json:"data_dir"`

	// CodebaseCollection holds indexed retrieval units.
	CodebaseCollection string `yaml:"codebase_collection" json:"codebase_collection"`

	// MemoryCollection holds past interaction summaries.
	MemoryCollection string `yaml:"memory_collection" json:"memory_collection"`

	// UpsertBatchSize bounds the size of a single upsert request.
	UpsertBatchSize int `yaml:"upsert_batch_size" json:"upsert_batch_size"`

	// IngestWorkers bounds concurrent batch upserts during ingestion.
	IngestWorkers int `yaml:"ingest_workers" json:"ingest_workers"`
}

// SearchConfig configures retrieval and fusion.
type SearchConfig struct {
	// DenseK is the dense leg result count.
	DenseK int `yaml:"dense_k" json:"dense_k"`

	// KeywordK is the lexical leg result count.
	KeywordK int `yaml:"keyword_k" json:"keyword_k"`

	// MemoryK is the memory recall result count.
	MemoryK int `yaml:"memory_k" json:"memory_k"`

	// RRFConstant is the reciprocal rank fusion smoothing parameter k.
	RRFConstant int `yaml:"rrf_constant" json:"rrf_constant"`

	// MaxCodeChars caps the code text carried per indexed unit.
	MaxCodeChars int `yaml:"max_code_chars" json:"max_code_chars"`

	// MaxContextChars caps the rendered grounding context.
	MaxContextChars int `yaml:"max_context_chars" json:"max_context_chars"`

	// LegTimeout bounds each search leg. A timed-out leg degrades to an
	// empty result list instead of failing the query.
	LegTimeout time.Duration `yaml:"leg_timeout" json:"leg_timeout"`
}

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Repo: RepoConfig{
			ExcludeDirs: []string{
				".git", ".venv", "venv", "node_modules", "dist", "build", "__pycache__",
			},
			IncludeExts:  []string{".py", ".go", ".js"},
			MaxFileBytes: 2 * 1024 * 1024,
			ArtifactPath: "parsed_code.json",
		},
		Chunking: ChunkingConfig{
			Lines:   200,
			Overlap: 40,
		},
		Embeddings: EmbeddingsConfig{
			Provider:   EmbedProviderOllama,
			Model:      "qwen3-embedding:0.6b",
			Dimensions: 0,
			OllamaHost: "http://localhost:11434",
			BatchSize:  32,
			CacheSize:  1000,
		},
		Store: StoreConfig{
			Backend:            StoreBackendLocal,
			QdrantURL:          "http://localhost:6333",
			DataDir:            defaultDataDir(),
			CodebaseCollection: "codebase_hybrid_v1",
			MemoryCollection:   "chat_memory_v1",
			UpsertBatchSize:    256,
			IngestWorkers:      4,
		},
		Search: SearchConfig{
			DenseK:          6,
			KeywordK:        6,
			MemoryK:         3,
			RRFConstant:     60,
			MaxCodeChars:    1800,
			MaxContextChars: 9000,
			LegTimeout:      10 * time.Second,
		},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".coderag")
	}
	return filepath.Join(home, ".coderag")
}

// Load resolves configuration for a repository directory.
// Missing project file is not an error; defaults plus env apply.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	path := filepath.Join(dir, ProjectFileName)
	if _, err := os.Stat(path); err == nil {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadYAML merges a YAML file over the current config.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

// WriteYAML writes the config to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// applyEnvOverrides applies CODERAG_* environment variable overrides.
// Env vars win over file values so query-time tunables can change
// without code or config edits.
func (c *Config) applyEnvOverrides() {
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	setInt("CODERAG_DENSE_K", &c.Search.DenseK)
	setInt("CODERAG_KEYWORD_K", &c.Search.KeywordK)
	setInt("CODERAG_MEMORY_K", &c.Search.MemoryK)
	setInt("CODERAG_RRF_CONSTANT", &c.Search.RRFConstant)
	setInt("CODERAG_MAX_CODE_CHARS", &c.Search.MaxCodeChars)
	setInt("CODERAG_MAX_CONTEXT_CHARS", &c.Search.MaxContextChars)
	if v := os.Getenv("CODERAG_LEG_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Search.LegTimeout = d
		}
	}

	setInt("CODERAG_CHUNK_LINES", &c.Chunking.Lines)
	setInt("CODERAG_CHUNK_OVERLAP", &c.Chunking.Overlap)
	if v := os.Getenv("CODERAG_MAX_FILE_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Repo.MaxFileBytes = n
		}
	}
	setString("CODERAG_ARTIFACT_PATH", &c.Repo.ArtifactPath)
	if v := os.Getenv("CODERAG_EXCLUDE_DIRS"); v != "" {
		c.Repo.ExcludeDirs = splitCSV(v)
	}

	setString("CODERAG_STORE_BACKEND", &c.Store.Backend)
	setString("CODERAG_QDRANT_URL", &c.Store.QdrantURL)
	setString("CODERAG_DATA_DIR", &c.Store.DataDir)
	setString("CODERAG_COLLECTION_CODEBASE", &c.Store.CodebaseCollection)
	setString("CODERAG_COLLECTION_MEMORY", &c.Store.MemoryCollection)
	setInt("CODERAG_UPSERT_BATCH_SIZE", &c.Store.UpsertBatchSize)
	setInt("CODERAG_INGEST_WORKERS", &c.Store.IngestWorkers)

	setString("CODERAG_EMBEDDER", &c.Embeddings.Provider)
	setString("CODERAG_EMBED_MODEL", &c.Embeddings.Model)
	setString("CODERAG_OLLAMA_HOST", &c.Embeddings.OllamaHost)
	setInt("CODERAG_EMBED_DIMENSIONS", &c.Embeddings.Dimensions)
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.Chunking.Lines < 1 {
		return fmt.Errorf("chunking.lines must be >= 1, got %d", c.Chunking.Lines)
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Lines {
		return fmt.Errorf("chunking.overlap must be in [0, lines), got %d with lines=%d",
			c.Chunking.Overlap, c.Chunking.Lines)
	}
	if c.Repo.MaxFileBytes <= 0 {
		return fmt.Errorf("repo.max_file_bytes must be positive, got %d", c.Repo.MaxFileBytes)
	}
	switch c.Store.Backend {
	case StoreBackendQdrant, StoreBackendLocal:
	default:
		return fmt.Errorf("store.backend must be %q or %q, got %q",
			StoreBackendQdrant, StoreBackendLocal, c.Store.Backend)
	}
	switch c.Embeddings.Provider {
	case EmbedProviderOllama, EmbedProviderStatic:
	default:
		return fmt.Errorf("embeddings.provider must be %q or %q, got %q",
			EmbedProviderOllama, EmbedProviderStatic, c.Embeddings.Provider)
	}
	if c.Store.UpsertBatchSize < 1 {
		return fmt.Errorf("store.upsert_batch_size must be >= 1, got %d", c.Store.UpsertBatchSize)
	}
	if c.Store.IngestWorkers < 1 {
		return fmt.Errorf("store.ingest_workers must be >= 1, got %d", c.Store.IngestWorkers)
	}
	if c.Search.RRFConstant < 1 {
		return fmt.Errorf("search.rrf_constant must be >= 1, got %d", c.Search.RRFConstant)
	}
	if c.Search.DenseK < 1 || c.Search.KeywordK < 1 || c.Search.MemoryK < 1 {
		return fmt.Errorf("search result counts must be >= 1")
	}
	return nil
}

// FindRepoRoot walks up from startDir looking for a directory that looks
// like a repository root (.git or a project config file). Falls back to
// startDir when nothing is found.
func FindRepoRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		for _, marker := range []string{".git", ProjectFileName, "go.mod", "pyproject.toml", "package.json"} {
			if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
				return dir, nil
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			abs, _ := filepath.Abs(startDir)
			return abs, nil
		}
		dir = parent
	}
}
