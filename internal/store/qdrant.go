package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	ragerrors "github.com/Aman-CERP/coderag/internal/errors"
)

// denseQueryMode tracks which Qdrant query API shape the server accepts.
type denseQueryMode int

const (
	// queryModeAuto: not yet probed, try the preferred shape first.
	queryModeAuto denseQueryMode = iota
	// queryModePreferred: POST /points/query with "using".
	queryModePreferred
	// queryModeLegacy: POST /points/search with a named vector.
	queryModeLegacy
)

// QdrantStore is the Qdrant REST adapter. Dense queries use the modern
// /points/query shape and fall back once to the legacy /points/search
// shape; the working shape is cached so the probe happens at most once
// per process, not per call.
type QdrantStore struct {
	baseURL     string
	client      *http.Client
	collections Collections

	modeMu sync.Mutex
	mode   denseQueryMode
}

var _ Store = (*QdrantStore)(nil)

// NewQdrantStore creates an adapter for the given REST endpoint.
func NewQdrantStore(baseURL string, collections Collections) *QdrantStore {
	return &QdrantStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		collections: collections,
	}
}

// EnsureCollections creates each missing collection with one named dense
// vector field and cosine distance. Idempotent.
func (s *QdrantStore) EnsureCollections(ctx context.Context, dims int) error {
	if dims < 1 {
		return ragerrors.New(ragerrors.ErrCodeDimensionMismatch,
			fmt.Sprintf("vector dimension must be >= 1, got %d", dims), nil)
	}

	for _, collection := range s.collections.Names() {
		exists, err := s.collectionExists(ctx, collection)
		if err != nil {
			return err
		}
		if exists {
			continue
		}

		body := map[string]any{
			"vectors": map[string]any{
				VectorFieldDense: map[string]any{
					"size":     dims,
					"distance": "Cosine",
				},
			},
		}
		status, respBody, err := s.do(ctx, http.MethodPut, "/collections/"+collection, body)
		if err != nil {
			return ragerrors.New(ragerrors.ErrCodeStoreUnavailable,
				fmt.Sprintf("failed to create collection %s", collection), err)
		}
		if status != http.StatusOK {
			return ragerrors.New(ragerrors.ErrCodeStoreUnavailable,
				fmt.Sprintf("failed to create collection %s: status %d: %s", collection, status, respBody), nil)
		}
		slog.Info("collection_created", slog.String("collection", collection), slog.Int("dims", dims))
	}
	return nil
}

func (s *QdrantStore) collectionExists(ctx context.Context, collection string) (bool, error) {
	status, _, err := s.do(ctx, http.MethodGet, "/collections/"+collection, nil)
	if err != nil {
		return false, ragerrors.New(ragerrors.ErrCodeStoreUnavailable,
			"failed to reach Qdrant", err).
			WithSuggestion("check qdrant_url in .coderag.yaml or start Qdrant")
	}
	return status == http.StatusOK, nil
}

// Upsert writes records with overwrite-by-id semantics.
func (s *QdrantStore) Upsert(ctx context.Context, collection string, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	points := make([]map[string]any, len(records))
	for i, record := range records {
		points[i] = map[string]any{
			"id":      record.ID,
			"vector":  map[string]any{VectorFieldDense: record.Vector},
			"payload": record.Payload.Fields(),
		}
	}

	// Transient connection failures retry with backoff; a rejected request
	// (bad payload, missing collection) fails immediately.
	type reply struct {
		status int
		body   []byte
	}
	retryCfg := ragerrors.RetryConfig{
		MaxRetries:   2,
		InitialDelay: 250 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
	resp, err := ragerrors.RetryWithResult(ctx, retryCfg, func() (reply, error) {
		status, respBody, err := s.do(ctx, http.MethodPut,
			"/collections/"+collection+"/points?wait=true",
			map[string]any{"points": points})
		return reply{status, respBody}, err
	})
	if err != nil {
		return ragerrors.New(ragerrors.ErrCodeStoreUnavailable, "upsert failed", err)
	}
	if resp.status != http.StatusOK {
		return ragerrors.New(ragerrors.ErrCodeStoreUnavailable,
			fmt.Sprintf("upsert rejected: status %d: %s", resp.status, resp.body), nil)
	}
	return nil
}

// DenseSearch returns the limit nearest records by cosine similarity,
// probing the preferred query shape and falling back to the legacy one.
// Only when both shapes fail does the error surface.
func (s *QdrantStore) DenseSearch(ctx context.Context, collection string, vector []float32, limit int) ([]ScoredRecord, error) {
	kind, err := s.collections.KindOf(collection)
	if err != nil {
		return nil, ragerrors.Wrap(ragerrors.ErrCodeInvalidCollection, err)
	}

	s.modeMu.Lock()
	mode := s.mode
	s.modeMu.Unlock()

	if mode != queryModeLegacy {
		results, err := s.densePreferred(ctx, collection, vector, limit, kind)
		if err == nil {
			s.setMode(queryModePreferred)
			return results, nil
		}
		if mode == queryModePreferred {
			// Probe already succeeded once; this is a real failure.
			return nil, err
		}
		slog.Debug("dense_query_preferred_failed",
			slog.String("collection", collection),
			slog.String("error", err.Error()))
	}

	results, legacyErr := s.denseLegacy(ctx, collection, vector, limit, kind)
	if legacyErr == nil {
		s.setMode(queryModeLegacy)
		return results, nil
	}
	if mode == queryModeLegacy {
		return nil, legacyErr
	}
	return nil, ragerrors.New(ragerrors.ErrCodeStoreUnsupported,
		"dense search failed on both the preferred and legacy query APIs", legacyErr)
}

func (s *QdrantStore) setMode(mode denseQueryMode) {
	s.modeMu.Lock()
	s.mode = mode
	s.modeMu.Unlock()
}

// densePreferred uses POST /points/query with the "using" vector selector.
func (s *QdrantStore) densePreferred(ctx context.Context, collection string, vector []float32, limit int, kind PayloadKind) ([]ScoredRecord, error) {
	body := map[string]any{
		"query":        vector,
		"using":        VectorFieldDense,
		"limit":        limit,
		"with_payload": true,
	}
	status, respBody, err := s.do(ctx, http.MethodPost,
		"/collections/"+collection+"/points/query", body)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("points/query: status %d: %s", status, respBody)
	}

	var resp struct {
		Result struct {
			Points []qdrantScoredPoint `json:"points"`
		} `json:"result"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("points/query: decode response: %w", err)
	}
	return decodeScoredPoints(resp.Result.Points, kind), nil
}

// denseLegacy uses POST /points/search with a NamedVector body.
func (s *QdrantStore) denseLegacy(ctx context.Context, collection string, vector []float32, limit int, kind PayloadKind) ([]ScoredRecord, error) {
	body := map[string]any{
		"vector": map[string]any{
			"name":   VectorFieldDense,
			"vector": vector,
		},
		"limit":        limit,
		"with_payload": true,
	}
	status, respBody, err := s.do(ctx, http.MethodPost,
		"/collections/"+collection+"/points/search", body)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("points/search: status %d: %s", status, respBody)
	}

	var resp struct {
		Result []qdrantScoredPoint `json:"result"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("points/search: decode response: %w", err)
	}
	return decodeScoredPoints(resp.Result, kind), nil
}

// LexicalSearch scrolls the collection with a should-filter: any token
// matching any of the text fields qualifies. Qdrant returns scroll order,
// not relevance order; ranking is the caller's job.
func (s *QdrantStore) LexicalSearch(ctx context.Context, collection string, tokens []string, limit int) ([]ScoredRecord, error) {
	if len(tokens) == 0 {
		return []ScoredRecord{}, nil
	}

	kind, err := s.collections.KindOf(collection)
	if err != nil {
		return nil, ragerrors.Wrap(ragerrors.ErrCodeInvalidCollection, err)
	}

	var should []map[string]any
	for _, token := range tokens {
		for _, field := range LexicalFields {
			should = append(should, map[string]any{
				"key":   field,
				"match": map[string]any{"text": token},
			})
		}
	}

	body := map[string]any{
		"filter":       map[string]any{"should": should},
		"limit":        limit,
		"with_payload": true,
	}
	status, respBody, err := s.do(ctx, http.MethodPost,
		"/collections/"+collection+"/points/scroll", body)
	if err != nil {
		return nil, ragerrors.New(ragerrors.ErrCodeSearchFailed, "lexical scroll failed", err)
	}
	if status != http.StatusOK {
		return nil, ragerrors.New(ragerrors.ErrCodeSearchFailed,
			fmt.Sprintf("lexical scroll rejected: status %d: %s", status, respBody), nil)
	}

	var resp struct {
		Result struct {
			Points []qdrantScoredPoint `json:"points"`
		} `json:"result"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, ragerrors.New(ragerrors.ErrCodeSearchFailed, "failed to decode scroll response", err)
	}
	return decodeScoredPoints(resp.Result.Points, kind), nil
}

// Close releases the HTTP client's idle connections.
func (s *QdrantStore) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

// qdrantScoredPoint is the shared point shape across query, search, and
// scroll responses. Scroll omits score.
type qdrantScoredPoint struct {
	ID      any            `json:"id"`
	Score   float32        `json:"score"`
	Payload map[string]any `json:"payload"`
}

func decodeScoredPoints(points []qdrantScoredPoint, kind PayloadKind) []ScoredRecord {
	results := make([]ScoredRecord, 0, len(points))
	for _, p := range points {
		results = append(results, ScoredRecord{
			ID:      fmt.Sprintf("%v", p.ID),
			Score:   p.Score,
			Payload: DecodePayload(kind, p.Payload),
		})
	}
	return results
}

// do issues one JSON request and returns status plus raw body.
func (s *QdrantStore) do(ctx context.Context, method, path string, body any) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return 0, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp.StatusCode, respBody, nil
}
