package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCollections = Collections{
	Codebase: "codebase_hybrid_v1",
	Memory:   "chat_memory_v1",
}

func newTestLocalStore(t *testing.T) *LocalStore {
	t.Helper()
	s, err := NewLocalStore(t.TempDir(), testCollections)
	require.NoError(t, err)
	require.NoError(t, s.EnsureCollections(context.Background(), 4))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func codeRecord(id string, vector []float32, file, name, code string) Record {
	return Record{
		ID:     id,
		Vector: vector,
		Payload: &CodePayload{
			File:              file,
			Name:              name,
			Symbol:            name,
			Type:              "Function",
			Language:          "python",
			StartLine:         1,
			EndLine:           5,
			Code:              code,
			PrecedingComments: []string{},
			RepoRoot:          "/repo",
		},
	}
}

func TestLocalStore_EnsureCollectionsIdempotent(t *testing.T) {
	s := newTestLocalStore(t)
	require.NoError(t, s.EnsureCollections(context.Background(), 4))
	require.NoError(t, s.EnsureCollections(context.Background(), 4))
}

func TestLocalStore_UpsertOverwritesByID(t *testing.T) {
	s := newTestLocalStore(t)
	ctx := context.Background()

	rec := codeRecord("id-1", []float32{1, 0, 0, 0}, "a.py", "f", "def f(): pass")
	require.NoError(t, s.Upsert(ctx, testCollections.Codebase, []Record{rec}))
	require.NoError(t, s.Upsert(ctx, testCollections.Codebase, []Record{rec}))

	count, err := s.Count(ctx, testCollections.Codebase)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// Updated payload wins.
	rec.Payload.(*CodePayload).Code = "def f(): return 1"
	require.NoError(t, s.Upsert(ctx, testCollections.Codebase, []Record{rec}))

	hits, err := s.DenseSearch(ctx, testCollections.Codebase, []float32{1, 0, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "def f(): return 1", hits[0].Payload.(*CodePayload).Code)
}

func TestLocalStore_DenseSearchOrdersBySimilarity(t *testing.T) {
	s := newTestLocalStore(t)
	ctx := context.Background()

	records := []Record{
		codeRecord("exact", []float32{1, 0, 0, 0}, "a.py", "a", "x"),
		codeRecord("close", []float32{0.9, 0.1, 0, 0}, "b.py", "b", "y"),
		codeRecord("far", []float32{0, 0, 0, 1}, "c.py", "c", "z"),
	}
	require.NoError(t, s.Upsert(ctx, testCollections.Codebase, records))

	hits, err := s.DenseSearch(ctx, testCollections.Codebase, []float32{1, 0, 0, 0}, 3)
	require.NoError(t, err)
	require.Len(t, hits, 3)

	assert.Equal(t, "exact", hits[0].ID)
	assert.Equal(t, "close", hits[1].ID)
	assert.Equal(t, "far", hits[2].ID)
	assert.Greater(t, hits[0].Score, hits[1].Score)
	assert.Greater(t, hits[1].Score, hits[2].Score)
}

func TestLocalStore_DenseSearchDimensionMismatch(t *testing.T) {
	s := newTestLocalStore(t)

	rec := codeRecord("id-1", []float32{1, 0, 0, 0}, "a.py", "f", "x")
	require.NoError(t, s.Upsert(context.Background(), testCollections.Codebase, []Record{rec}))

	_, err := s.DenseSearch(context.Background(), testCollections.Codebase, []float32{1, 0}, 1)
	require.Error(t, err)
}

func TestLocalStore_LexicalSearchOrScan(t *testing.T) {
	s := newTestLocalStore(t)
	ctx := context.Background()

	records := []Record{
		codeRecord("r1", []float32{1, 0, 0, 0}, "auth/login.py", "login", "def login(user): pass"),
		codeRecord("r2", []float32{0, 1, 0, 0}, "db/conn.py", "connect", "def connect(): pass"),
		codeRecord("r3", []float32{0, 0, 1, 0}, "auth/token.py", "verify", "def verify(token): pass"),
	}
	require.NoError(t, s.Upsert(ctx, testCollections.Codebase, records))

	// OR across tokens: either token qualifies a record.
	hits, err := s.LexicalSearch(ctx, testCollections.Codebase, []string{"login", "token"}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)

	// Scan order is insertion order, not relevance.
	assert.Equal(t, "r1", hits[0].ID)
	assert.Equal(t, "r3", hits[1].ID)
}

func TestLocalStore_LexicalSearchMatchesFileField(t *testing.T) {
	s := newTestLocalStore(t)
	ctx := context.Background()

	rec := codeRecord("r1", []float32{1, 0, 0, 0}, "handlers/search.py", "run", "def run(): pass")
	require.NoError(t, s.Upsert(ctx, testCollections.Codebase, []Record{rec}))

	hits, err := s.LexicalSearch(ctx, testCollections.Codebase, []string{"handlers"}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "r1", hits[0].ID)
}

func TestLocalStore_LexicalSearchEmptyTokens(t *testing.T) {
	s := newTestLocalStore(t)

	hits, err := s.LexicalSearch(context.Background(), testCollections.Codebase, nil, 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestLocalStore_LexicalSearchRespectsLimit(t *testing.T) {
	s := newTestLocalStore(t)
	ctx := context.Background()

	var records []Record
	vecs := [][]float32{{1, 0, 0, 0}, {0, 1, 0, 0}, {0, 0, 1, 0}}
	ids := []string{"a", "b", "c"}
	for i := range ids {
		records = append(records, codeRecord(ids[i], vecs[i], "pkg/common.py", "fn", "shared body"))
	}
	require.NoError(t, s.Upsert(ctx, testCollections.Codebase, records))

	hits, err := s.LexicalSearch(ctx, testCollections.Codebase, []string{"shared"}, 2)
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestLocalStore_MemoryCollectionRoundTrip(t *testing.T) {
	s := newTestLocalStore(t)
	ctx := context.Background()

	rec := Record{
		ID:     NewMemoryID(),
		Vector: []float32{0, 1, 0, 0},
		Payload: &MemoryPayload{
			User:      "how does login work",
			Assistant: "it checks the token",
			Text:      "User: how does login work\nAssistant: it checks the token",
			Files:     []string{"auth/login.py"},
			Tags:      []string{"auth"},
			Timestamp: "2026-08-24T10:00:00+00:00",
		},
	}
	require.NoError(t, s.Upsert(ctx, testCollections.Memory, []Record{rec}))

	hits, err := s.DenseSearch(ctx, testCollections.Memory, []float32{0, 1, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)

	payload, ok := hits[0].Payload.(*MemoryPayload)
	require.True(t, ok)
	assert.Equal(t, "how does login work", payload.User)
	assert.Equal(t, []string{"auth/login.py"}, payload.Files)
	assert.Equal(t, "2026-08-24T10:00:00+00:00", payload.Timestamp)
}

func TestLocalStore_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := NewLocalStore(dir, testCollections)
	require.NoError(t, err)
	require.NoError(t, s.EnsureCollections(ctx, 4))

	rec := codeRecord("persisted", []float32{1, 0, 0, 0}, "a.py", "f", "body")
	require.NoError(t, s.Upsert(ctx, testCollections.Codebase, []Record{rec}))
	require.NoError(t, s.Close())

	reopened, err := NewLocalStore(dir, testCollections)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()
	require.NoError(t, reopened.EnsureCollections(ctx, 4))

	hits, err := reopened.DenseSearch(ctx, testCollections.Codebase, []float32{1, 0, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "persisted", hits[0].ID)
}

func TestLocalStore_ReopenDimensionMismatchFails(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := NewLocalStore(dir, testCollections)
	require.NoError(t, err)
	require.NoError(t, s.EnsureCollections(ctx, 4))
	rec := codeRecord("r", []float32{1, 0, 0, 0}, "a.py", "f", "body")
	require.NoError(t, s.Upsert(ctx, testCollections.Codebase, []Record{rec}))
	require.NoError(t, s.Close())

	reopened, err := NewLocalStore(dir, testCollections)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	err = reopened.EnsureCollections(ctx, 8)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DIMENSION")
}

func TestDecodePayload_ExtraPassthrough(t *testing.T) {
	m := map[string]any{
		"file":         "a.py",
		"name":         "a.py::f",
		"start_line":   float64(3),
		"end_line":     float64(9),
		"custom_field": "kept",
	}
	payload := DecodePayload(PayloadKindCode, m)

	code, ok := payload.(*CodePayload)
	require.True(t, ok)
	assert.Equal(t, 3, code.StartLine)
	assert.Equal(t, 9, code.EndLine)
	assert.Equal(t, "kept", code.Extra["custom_field"])

	// Round-trips back through the wire mapping.
	assert.Equal(t, "kept", code.Fields()["custom_field"])
}
