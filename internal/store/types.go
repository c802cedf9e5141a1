// Package store persists index records and serves the two retrieval modes:
// dense nearest-neighbor search and lexical filter scan.
//
// The store is partitioned into two named collections, one for codebase
// units and one for interaction memory. Each collection carries one named
// dense vector field with cosine distance. Two adapters implement the same
// contract: QdrantStore speaks the Qdrant REST API, LocalStore embeds a
// pure-Go HNSW graph plus SQLite. The adapter is selected by configuration
// at startup.
package store

import (
	"context"
	"fmt"
)

// VectorFieldDense is the named dense vector field on both collections.
const VectorFieldDense = "dense"

// LexicalFields are the payload text fields matched by LexicalSearch.
var LexicalFields = []string{"code", "name", "file", "docstring"}

// PayloadKind discriminates the record payload union.
type PayloadKind string

const (
	PayloadKindCode   PayloadKind = "code"
	PayloadKindMemory PayloadKind = "memory"
)

// Payload is the typed attribute set of a record. Concrete kinds are
// CodePayload and MemoryPayload; Fields renders the flat wire mapping.
type Payload interface {
	Kind() PayloadKind
	Fields() map[string]any
}

// CodePayload is the payload of an indexed retrieval unit.
type CodePayload struct {
	File              string
	Name              string
	Symbol            string
	Type              string
	Language          string
	StartLine         int
	EndLine           int
	Docstring         string
	PrecedingComments []string
	Code              string
	RepoRoot          string

	// Extra passes through unknown payload fields unchanged.
	Extra map[string]any
}

// Kind returns the payload kind.
func (p *CodePayload) Kind() PayloadKind { return PayloadKindCode }

// Fields renders the flat wire mapping.
func (p *CodePayload) Fields() map[string]any {
	m := make(map[string]any, 11+len(p.Extra))
	for k, v := range p.Extra {
		m[k] = v
	}
	m["file"] = p.File
	m["name"] = p.Name
	m["symbol"] = p.Symbol
	m["type"] = p.Type
	m["language"] = p.Language
	m["start_line"] = p.StartLine
	m["end_line"] = p.EndLine
	m["docstring"] = p.Docstring
	m["preceding_comments"] = p.PrecedingComments
	m["code"] = p.Code
	m["repo_root"] = p.RepoRoot
	return m
}

// MemoryPayload is the payload of a stored interaction.
type MemoryPayload struct {
	User      string
	Assistant string
	Text      string
	Files     []string
	Tags      []string
	Timestamp string // ISO-8601 UTC

	Extra map[string]any
}

// Kind returns the payload kind.
func (p *MemoryPayload) Kind() PayloadKind { return PayloadKindMemory }

// Fields renders the flat wire mapping.
func (p *MemoryPayload) Fields() map[string]any {
	m := make(map[string]any, 6+len(p.Extra))
	for k, v := range p.Extra {
		m[k] = v
	}
	m["user"] = p.User
	m["assistant"] = p.Assistant
	m["text"] = p.Text
	m["files"] = p.Files
	m["tags"] = p.Tags
	m["timestamp"] = p.Timestamp
	return m
}

// Record is the persisted (id, vector, payload) triple.
type Record struct {
	ID      string
	Vector  []float32
	Payload Payload
}

// ScoredRecord is a retrieval hit. Score is cosine similarity for dense
// hits and zero for lexical hits, whose rank is their scan position.
type ScoredRecord struct {
	ID      string
	Score   float32
	Payload Payload
}

// Store is the index store contract. Both adapters implement it; the
// retriever and memory layers never see which one is behind it.
type Store interface {
	// EnsureCollections creates missing collections. Idempotent, called
	// on every process start.
	EnsureCollections(ctx context.Context, dims int) error

	// Upsert writes records with overwrite-by-id semantics.
	Upsert(ctx context.Context, collection string, records []Record) error

	// DenseSearch returns the limit nearest records by cosine similarity
	// over the dense vector field, with scores and full payloads.
	DenseSearch(ctx context.Context, collection string, vector []float32, limit int) ([]ScoredRecord, error)

	// LexicalSearch returns up to limit records whose text fields match
	// any token (OR across tokens and fields). Results come back in scan
	// order, unranked; the caller assigns synthetic ranks.
	LexicalSearch(ctx context.Context, collection string, tokens []string, limit int) ([]ScoredRecord, error)

	// Close releases the store connection and flushes local state.
	Close() error
}

// Collections names the two store partitions.
type Collections struct {
	Codebase string
	Memory   string
}

// KindOf maps a collection name to its payload kind.
func (c Collections) KindOf(collection string) (PayloadKind, error) {
	switch collection {
	case c.Codebase:
		return PayloadKindCode, nil
	case c.Memory:
		return PayloadKindMemory, nil
	default:
		return "", fmt.Errorf("unknown collection %q", collection)
	}
}

// Names returns both collection names.
func (c Collections) Names() []string {
	return []string{c.Codebase, c.Memory}
}

// DecodePayload rebuilds a typed payload from a flat wire mapping.
// Unknown keys land in the Extra bag.
func DecodePayload(kind PayloadKind, m map[string]any) Payload {
	switch kind {
	case PayloadKindMemory:
		p := &MemoryPayload{
			User:      asString(m["user"]),
			Assistant: asString(m["assistant"]),
			Text:      asString(m["text"]),
			Files:     asStringSlice(m["files"]),
			Tags:      asStringSlice(m["tags"]),
			Timestamp: asString(m["timestamp"]),
		}
		p.Extra = extraFields(m, "user", "assistant", "text", "files", "tags", "timestamp")
		return p
	default:
		p := &CodePayload{
			File:              asString(m["file"]),
			Name:              asString(m["name"]),
			Symbol:            asString(m["symbol"]),
			Type:              asString(m["type"]),
			Language:          asString(m["language"]),
			StartLine:         asInt(m["start_line"]),
			EndLine:           asInt(m["end_line"]),
			Docstring:         asString(m["docstring"]),
			PrecedingComments: asStringSlice(m["preceding_comments"]),
			Code:              asString(m["code"]),
			RepoRoot:          asString(m["repo_root"]),
		}
		p.Extra = extraFields(m,
			"file", "name", "symbol", "type", "language", "start_line",
			"end_line", "docstring", "preceding_comments", "code", "repo_root")
		return p
	}
}

func extraFields(m map[string]any, known ...string) map[string]any {
	knownSet := make(map[string]bool, len(known))
	for _, k := range known {
		knownSet[k] = true
	}
	var extra map[string]any
	for k, v := range m {
		if knownSet[k] {
			continue
		}
		if extra == nil {
			extra = make(map[string]any)
		}
		extra[k] = v
	}
	return extra
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

// asInt tolerates the numeric types JSON decoding produces.
func asInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

func asStringSlice(v any) []string {
	switch s := v.(type) {
	case []string:
		return s
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	default:
		return nil
	}
}

// ErrDimensionMismatch indicates a vector of the wrong size.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}
