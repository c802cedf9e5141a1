package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/coderag/internal/config"
	"github.com/Aman-CERP/coderag/internal/extract"
	"github.com/Aman-CERP/coderag/internal/store"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewConfig()
	cfg.Embeddings.Provider = config.EmbedProviderStatic
	cfg.Store.Backend = config.StoreBackendLocal
	cfg.Store.DataDir = t.TempDir()
	return cfg
}

func TestApp_WiresLocalBackend(t *testing.T) {
	a, err := New(context.Background(), testConfig(t))
	require.NoError(t, err)
	defer a.Close()

	assert.NotNil(t, a.Store)
	assert.NotNil(t, a.Embedder)
	assert.Equal(t, "static", a.Embedder.ModelName())
}

func TestApp_UnknownBackendFails(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store.Backend = "cloud"

	_, err := New(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cloud")
}

func TestApp_IngestThenSearch(t *testing.T) {
	a, err := New(context.Background(), testConfig(t))
	require.NoError(t, err)
	defer a.Close()

	ctx := context.Background()
	artifact := &extract.Artifact{
		RepoRoot: "/repo",
		ParsedCode: map[string]extract.ParsedFile{
			"auth/login.py": {
				ASTItems: []extract.RetrievalUnit{
					{
						Type:      extract.UnitTypeFunction,
						Name:      "auth/login.py::validate_token",
						Symbol:    "validate_token",
						StartLine: 10,
						EndLine:   14,
						Code:      "def validate_token(token):\n    return verify_signature(token)",
						Language:  "python",
					},
				},
			},
			"util/strings.py": {
				ASTItems: []extract.RetrievalUnit{
					{
						Type:      extract.UnitTypeFunction,
						Name:      "util/strings.py::slugify",
						Symbol:    "slugify",
						StartLine: 1,
						EndLine:   3,
						Code:      "def slugify(s):\n    return s.lower().replace(' ', '-')",
						Language:  "python",
					},
				},
			},
		},
	}

	stats, err := a.Ingestor().Run(ctx, artifact)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Records)

	results, err := a.Retriever().Search(ctx, "validate_token signature", 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	top, ok := results[0].Payload.(*store.CodePayload)
	require.True(t, ok)
	assert.Equal(t, "validate_token", top.Symbol)
}

func TestApp_MemoryRoundTrip(t *testing.T) {
	a, err := New(context.Background(), testConfig(t))
	require.NoError(t, err)
	defer a.Close()

	ctx := context.Background()
	m := a.Memory()

	_, err = m.Remember(ctx, "where is retry handled", "retry.go wraps store calls with backoff", nil, nil)
	require.NoError(t, err)

	entries, err := m.Recall(ctx, "where is retry handled", 3)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "where is retry handled", entries[0].User)
}
