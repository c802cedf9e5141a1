package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/coderag/internal/embed"
	"github.com/Aman-CERP/coderag/internal/store"
)

const testMemoryCollection = "chat_memory_v1"

func newTestMemory(t *testing.T) (*Memory, store.Store) {
	t.Helper()

	embedder := embed.NewStaticEmbedder()
	st, err := store.NewLocalStore(t.TempDir(), store.Collections{
		Codebase: "codebase_hybrid_v1",
		Memory:   testMemoryCollection,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	ctx := context.Background()
	require.NoError(t, st.EnsureCollections(ctx, embedder.Dimensions()))

	return New(st, embedder, testMemoryCollection), st
}

func TestMemory_RememberThenRecall(t *testing.T) {
	m, _ := newTestMemory(t)
	ctx := context.Background()

	id, err := m.Remember(ctx,
		"how does token validation work",
		"validate_token in auth/login.py checks the signature and expiry",
		[]string{"auth/login.py"},
		[]string{"auth"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	entries, err := m.Recall(ctx, "how does token validation work", 3)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	entry := entries[0]
	assert.Equal(t, "how does token validation work", entry.User)
	assert.Contains(t, entry.Assistant, "validate_token")
	assert.Equal(t, "User: how does token validation work\nAssistant: validate_token in auth/login.py checks the signature and expiry", entry.Text)
	assert.Equal(t, []string{"auth/login.py"}, entry.Files)
	assert.Equal(t, []string{"auth"}, entry.Tags)
}

func TestMemory_TimestampIsUTCISO8601(t *testing.T) {
	m, _ := newTestMemory(t)
	fixed := time.Date(2026, 3, 14, 9, 26, 53, 0, time.FixedZone("PST", -8*3600))
	m.now = func() time.Time { return fixed }

	_, err := m.Remember(context.Background(), "q", "a", nil, nil)
	require.NoError(t, err)

	entries, err := m.Recall(context.Background(), "q", 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "2026-03-14T17:26:53+00:00", entries[0].Timestamp)
}

func TestMemory_RepeatedExchangesGetDistinctEntries(t *testing.T) {
	m, _ := newTestMemory(t)
	ctx := context.Background()

	id1, err := m.Remember(ctx, "same question", "same answer", nil, nil)
	require.NoError(t, err)
	id2, err := m.Remember(ctx, "same question", "same answer", nil, nil)
	require.NoError(t, err)

	assert.NotEqual(t, id1, id2)

	entries, err := m.Recall(ctx, "same question", 5)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestMemory_RecallRanksBySimilarity(t *testing.T) {
	m, _ := newTestMemory(t)
	ctx := context.Background()

	_, err := m.Remember(ctx, "how do I configure qdrant storage", "set store.backend to qdrant", nil, nil)
	require.NoError(t, err)
	_, err = m.Remember(ctx, "what does the window chunker do", "it slices files into overlapping line ranges", nil, nil)
	require.NoError(t, err)

	entries, err := m.Recall(ctx, "configure qdrant storage backend", 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Contains(t, entries[0].User, "qdrant")
}

func TestMemory_RecallEmptyStore(t *testing.T) {
	m, _ := newTestMemory(t)

	entries, err := m.Recall(context.Background(), "anything", 3)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
