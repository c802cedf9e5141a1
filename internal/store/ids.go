package store

import (
	"fmt"

	"github.com/google/uuid"
)

// UnitID derives the record identifier for a retrieval unit. The id is a
// UUIDv5 over the composite content key, so re-extracting unchanged content
// reproduces the same id and upserts overwrite instead of duplicating.
func UnitID(file, unitType, symbol, name string, startLine, endLine int) string {
	key := fmt.Sprintf("%s::%s::%s::%s::%d-%d", file, unitType, symbol, name, startLine, endLine)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String()
}

// NewMemoryID returns a fresh random identifier for a memory entry.
// Memory entries are never re-derived; duplicates of identical exchanges
// are acceptable.
func NewMemoryID() string {
	return uuid.New().String()
}
