package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnitID_Deterministic(t *testing.T) {
	a := UnitID("src/app.py", "Function", "validate", "src/app.py::validate", 8, 14)
	b := UnitID("src/app.py", "Function", "validate", "src/app.py::validate", 8, 14)
	assert.Equal(t, a, b)
}

func TestUnitID_FieldSensitive(t *testing.T) {
	base := UnitID("src/app.py", "Function", "validate", "src/app.py::validate", 8, 14)

	variants := []string{
		UnitID("src/other.py", "Function", "validate", "src/app.py::validate", 8, 14),
		UnitID("src/app.py", "Class", "validate", "src/app.py::validate", 8, 14),
		UnitID("src/app.py", "Function", "check", "src/app.py::validate", 8, 14),
		UnitID("src/app.py", "Function", "validate", "src/app.py::check", 8, 14),
		UnitID("src/app.py", "Function", "validate", "src/app.py::validate", 9, 14),
		UnitID("src/app.py", "Function", "validate", "src/app.py::validate", 8, 15),
	}
	for i, v := range variants {
		assert.NotEqual(t, base, v, "variant %d should differ", i)
	}
}

func TestUnitID_IsUUID(t *testing.T) {
	id := UnitID("a.py", "FileChunk", "", "a.py::chunk_1_200", 1, 200)
	require.Len(t, id, 36)
	assert.Equal(t, byte('-'), id[8])
}

func TestNewMemoryID_Unique(t *testing.T) {
	assert.NotEqual(t, NewMemoryID(), NewMemoryID())
}
