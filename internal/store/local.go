package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite" // pure Go SQLite driver, no CGO

	ragerrors "github.com/Aman-CERP/coderag/internal/errors"
)

// LocalStore is the embedded store adapter: one HNSW graph per collection
// for dense search, a SQLite table for payloads and the lexical filter
// scan. No external service required.
type LocalStore struct {
	mu          sync.Mutex
	dataDir     string
	collections Collections
	db          *sql.DB
	indexes     map[string]*vectorIndex
	dims        int
	closed      bool
}

var _ Store = (*LocalStore)(nil)

// NewLocalStore opens (or creates) the store files under dataDir.
func NewLocalStore(dataDir string, collections Collections) (*LocalStore, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, ragerrors.New(ragerrors.ErrCodeStoreUnavailable,
			fmt.Sprintf("failed to create data dir %s", dataDir), err)
	}

	// Single writer; WAL keeps readers unblocked.
	dsn := filepath.Join(dataDir, "payloads.db") + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, ragerrors.New(ragerrors.ErrCodeStoreUnavailable, "failed to open payload database", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return &LocalStore{
		dataDir:     dataDir,
		collections: collections,
		db:          db,
		indexes:     make(map[string]*vectorIndex),
	}, nil
}

// EnsureCollections creates the payload table and loads or creates the
// per-collection vector graphs. Idempotent.
func (s *LocalStore) EnsureCollections(ctx context.Context, dims int) error {
	if dims < 1 {
		return ragerrors.New(ragerrors.ErrCodeDimensionMismatch,
			fmt.Sprintf("vector dimension must be >= 1, got %d", dims), nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS records (
			collection TEXT NOT NULL,
			id         TEXT NOT NULL,
			payload    TEXT NOT NULL,
			PRIMARY KEY (collection, id)
		)`)
	if err != nil {
		return ragerrors.New(ragerrors.ErrCodeStoreUnavailable, "failed to create records table", err)
	}

	s.dims = dims
	for _, collection := range s.collections.Names() {
		if _, ok := s.indexes[collection]; ok {
			continue
		}

		idx := newVectorIndex(dims)
		path := s.indexPath(collection)
		if _, err := os.Stat(path); err == nil {
			if err := idx.load(path); err != nil {
				return ragerrors.New(ragerrors.ErrCodeStoreUnavailable,
					fmt.Sprintf("failed to load vector index for %s", collection), err)
			}
			if idx.dims != dims {
				return ragerrors.New(ragerrors.ErrCodeDimensionMismatch,
					fmt.Sprintf("collection %s was built with %d dimensions, embedder produces %d",
						collection, idx.dims, dims), nil).
					WithSuggestion("reindex with the current embedder or switch back to the original one")
			}
		}
		s.indexes[collection] = idx
	}
	return nil
}

// Upsert writes records with overwrite-by-id semantics. The payload row
// keeps its original rowid on conflict, so lexical scan order stays
// first-insertion order across re-ingestion.
func (s *LocalStore) Upsert(ctx context.Context, collection string, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx, err := s.index(collection)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ragerrors.New(ragerrors.ErrCodeStoreUnavailable, "failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records (collection, id, payload) VALUES (?, ?, ?)
		ON CONFLICT (collection, id) DO UPDATE SET payload = excluded.payload`)
	if err != nil {
		return ragerrors.New(ragerrors.ErrCodeStoreUnavailable, "failed to prepare upsert", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, record := range records {
		payload, err := json.Marshal(record.Payload.Fields())
		if err != nil {
			return ragerrors.New(ragerrors.ErrCodeInvalidInput,
				fmt.Sprintf("failed to encode payload for %s", record.ID), err)
		}
		if _, err := stmt.ExecContext(ctx, collection, record.ID, string(payload)); err != nil {
			return ragerrors.New(ragerrors.ErrCodeStoreUnavailable,
				fmt.Sprintf("failed to upsert record %s", record.ID), err)
		}
		if err := idx.add(record.ID, record.Vector); err != nil {
			return ragerrors.Wrap(ragerrors.ErrCodeDimensionMismatch, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return ragerrors.New(ragerrors.ErrCodeStoreUnavailable, "failed to commit upsert", err)
	}

	if err := idx.save(s.indexPath(collection)); err != nil {
		slog.Warn("vector_index_save_failed",
			slog.String("collection", collection),
			slog.String("error", err.Error()))
	}
	return nil
}

// DenseSearch returns the limit nearest records by cosine similarity.
func (s *LocalStore) DenseSearch(ctx context.Context, collection string, vector []float32, limit int) ([]ScoredRecord, error) {
	s.mu.Lock()
	idx, err := s.index(collection)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	kind, err := s.collections.KindOf(collection)
	if err != nil {
		return nil, ragerrors.Wrap(ragerrors.ErrCodeInvalidCollection, err)
	}

	hits, err := idx.search(vector, limit)
	if err != nil {
		return nil, ragerrors.Wrap(ragerrors.ErrCodeSearchFailed, err)
	}

	results := make([]ScoredRecord, 0, len(hits))
	for _, hit := range hits {
		payload, err := s.loadPayload(ctx, collection, hit.id, kind)
		if err != nil {
			slog.Warn("payload_missing",
				slog.String("collection", collection),
				slog.String("id", hit.id))
			continue
		}
		results = append(results, ScoredRecord{ID: hit.id, Score: hit.score, Payload: payload})
	}
	return results, nil
}

// LexicalSearch scans payload text fields for any of the tokens, OR across
// tokens and fields, substring match. Results come back in insertion order
// (rowid); no ranking happens here.
func (s *LocalStore) LexicalSearch(ctx context.Context, collection string, tokens []string, limit int) ([]ScoredRecord, error) {
	if len(tokens) == 0 {
		return []ScoredRecord{}, nil
	}

	kind, err := s.collections.KindOf(collection)
	if err != nil {
		return nil, ragerrors.Wrap(ragerrors.ErrCodeInvalidCollection, err)
	}

	var clauses []string
	args := []any{collection}
	for _, token := range tokens {
		pattern := "%" + escapeLike(token) + "%"
		for _, field := range LexicalFields {
			clauses = append(clauses,
				fmt.Sprintf(`json_extract(payload, '$.%s') LIKE ? ESCAPE '\'`, field))
			args = append(args, pattern)
		}
	}
	args = append(args, limit)

	query := `SELECT id, payload FROM records WHERE collection = ? AND (` +
		strings.Join(clauses, " OR ") + `) ORDER BY rowid LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, ragerrors.New(ragerrors.ErrCodeSearchFailed, "lexical scan failed", err)
	}
	defer func() { _ = rows.Close() }()

	var results []ScoredRecord
	for rows.Next() {
		var id, payloadJSON string
		if err := rows.Scan(&id, &payloadJSON); err != nil {
			return nil, ragerrors.New(ragerrors.ErrCodeSearchFailed, "failed to scan lexical hit", err)
		}
		var fields map[string]any
		if err := json.Unmarshal([]byte(payloadJSON), &fields); err != nil {
			continue
		}
		results = append(results, ScoredRecord{ID: id, Payload: DecodePayload(kind, fields)})
	}
	if err := rows.Err(); err != nil {
		return nil, ragerrors.New(ragerrors.ErrCodeSearchFailed, "lexical scan failed", err)
	}
	if results == nil {
		results = []ScoredRecord{}
	}
	return results, nil
}

// Count returns the number of payload rows in a collection.
func (s *LocalStore) Count(ctx context.Context, collection string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM records WHERE collection = ?`, collection).Scan(&n)
	if err != nil {
		return 0, ragerrors.New(ragerrors.ErrCodeStoreUnavailable, "failed to count records", err)
	}
	return n, nil
}

// Close flushes the vector graphs and closes the database.
func (s *LocalStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	for collection, idx := range s.indexes {
		if err := idx.save(s.indexPath(collection)); err != nil {
			slog.Warn("vector_index_save_failed",
				slog.String("collection", collection),
				slog.String("error", err.Error()))
		}
	}
	return s.db.Close()
}

func (s *LocalStore) index(collection string) (*vectorIndex, error) {
	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}
	idx, ok := s.indexes[collection]
	if !ok {
		return nil, ragerrors.New(ragerrors.ErrCodeInvalidCollection,
			fmt.Sprintf("collection %q not initialized, call EnsureCollections first", collection), nil)
	}
	return idx, nil
}

func (s *LocalStore) indexPath(collection string) string {
	return filepath.Join(s.dataDir, collection+".hnsw")
}

func (s *LocalStore) loadPayload(ctx context.Context, collection, id string, kind PayloadKind) (Payload, error) {
	var payloadJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM records WHERE collection = ? AND id = ?`, collection, id).
		Scan(&payloadJSON)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal([]byte(payloadJSON), &fields); err != nil {
		return nil, err
	}
	return DecodePayload(kind, fields), nil
}

// escapeLike escapes SQL LIKE wildcards in a token.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
