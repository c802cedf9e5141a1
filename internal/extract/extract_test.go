package extract

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pythonSample = `import os
from typing import Optional

VERSION = "1.0"

# Validates the incoming payload.
# Rejects empty names.
def validate(payload):
    """Check payload fields.

    Returns True when valid.
    """
    return bool(payload)


async def fetch(url):
    return url


class Handler:
    """Dispatches requests."""

    def handle(self, req):
        return req
`

func newTestExtractor() *Extractor {
	return NewExtractor(Options{
		IncludeExts:  []string{".py", ".go", ".js"},
		MaxFileBytes: 2 * 1024 * 1024,
		ChunkLines:   200,
		ChunkOverlap: 40,
	})
}

func unitBySymbol(t *testing.T, units []RetrievalUnit, symbol string) RetrievalUnit {
	t.Helper()
	for _, u := range units {
		if u.Symbol == symbol {
			return u
		}
	}
	t.Fatalf("no unit with symbol %q", symbol)
	return RetrievalUnit{}
}

func TestExtractFile_PythonDeclarations(t *testing.T) {
	e := newTestExtractor()
	defer e.Close()

	pf := e.ExtractFile(context.Background(), "src/app.py", pythonSample)
	require.Empty(t, pf.SyntaxError)

	validate := unitBySymbol(t, pf.ASTItems, "validate")
	assert.Equal(t, UnitTypeFunction, validate.Type)
	assert.Equal(t, "src/app.py::validate", validate.Name)
	assert.Equal(t, "python", validate.Language)
	assert.True(t, strings.HasPrefix(validate.Code, "def validate"))

	fetch := unitBySymbol(t, pf.ASTItems, "fetch")
	assert.Equal(t, UnitTypeAsyncFunction, fetch.Type)

	handler := unitBySymbol(t, pf.ASTItems, "Handler")
	assert.Equal(t, UnitTypeClass, handler.Type)
	assert.Equal(t, "Dispatches requests.", handler.Docstring)

	// Methods are units in their own right.
	handle := unitBySymbol(t, pf.ASTItems, "handle")
	assert.Equal(t, UnitTypeFunction, handle.Type)
}

func TestExtractFile_DocstringAndComments(t *testing.T) {
	e := newTestExtractor()
	defer e.Close()

	pf := e.ExtractFile(context.Background(), "src/app.py", pythonSample)
	require.Empty(t, pf.SyntaxError)

	validate := unitBySymbol(t, pf.ASTItems, "validate")
	assert.True(t, strings.HasPrefix(validate.Docstring, "Check payload fields."))
	assert.NotContains(t, validate.Docstring, `"""`)
	assert.Equal(t,
		[]string{"Validates the incoming payload.", "Rejects empty names."},
		validate.PrecedingComments)
}

func TestExtractFile_CommentsPassThroughBlanks(t *testing.T) {
	src := "# first\n" +
		"\n" +
		"# second\n" +
		"def f():\n" +
		"    pass\n"

	e := newTestExtractor()
	defer e.Close()

	pf := e.ExtractFile(context.Background(), "a.py", src)
	f := unitBySymbol(t, pf.ASTItems, "f")
	assert.Equal(t, []string{"first", "second"}, f.PrecedingComments)
}

func TestExtractFile_CommentsStopAtCode(t *testing.T) {
	src := "x = 1\n" +
		"# only this one\n" +
		"def f():\n" +
		"    pass\n"

	e := newTestExtractor()
	defer e.Close()

	pf := e.ExtractFile(context.Background(), "a.py", src)
	f := unitBySymbol(t, pf.ASTItems, "f")
	assert.Equal(t, []string{"only this one"}, f.PrecedingComments)
}

func TestExtractFile_ImportsAndGlobals(t *testing.T) {
	e := newTestExtractor()
	defer e.Close()

	pf := e.ExtractFile(context.Background(), "src/app.py", pythonSample)
	require.Len(t, pf.Imports, 2)
	assert.Contains(t, pf.Imports[0], "import os")
	assert.Equal(t, []string{"VERSION"}, pf.GlobalVariables)
}

func TestExtractFile_ParseFailureKeepsWindows(t *testing.T) {
	e := newTestExtractor()
	defer e.Close()

	broken := "def broken(:\n    pass\n"
	pf := e.ExtractFile(context.Background(), "bad.py", broken)

	assert.NotEmpty(t, pf.SyntaxError)
	assert.Contains(t, pf.SyntaxError, "syntax error near line")
	assert.Empty(t, pf.ASTItems)
	// The windowing pass still ran.
	require.NotEmpty(t, pf.FileChunks)
	assert.Equal(t, 1, pf.FileChunks[0].StartLine)
	assert.Equal(t, 2, pf.FileChunks[0].EndLine)
}

func TestExtractFile_UnknownExtensionWindowsOnly(t *testing.T) {
	e := newTestExtractor()
	defer e.Close()

	pf := e.ExtractFile(context.Background(), "notes.txt", "alpha\nbeta\n")
	assert.Empty(t, pf.ASTItems)
	require.NotEmpty(t, pf.FileChunks)
	assert.Equal(t, "text", pf.FileChunks[0].Language)
}

func TestExtractFile_GoFunctions(t *testing.T) {
	src := "package main\n\n" +
		"// Run starts the server.\n" +
		"func Run() error { return nil }\n\n" +
		"func (s *Server) Stop() {}\n"

	e := newTestExtractor()
	defer e.Close()

	pf := e.ExtractFile(context.Background(), "main.go", src)
	require.Empty(t, pf.SyntaxError)

	run := unitBySymbol(t, pf.ASTItems, "Run")
	assert.Equal(t, UnitTypeFunction, run.Type)
	assert.Equal(t, []string{"Run starts the server."}, run.PrecedingComments)

	stop := unitBySymbol(t, pf.ASTItems, "Stop")
	assert.Equal(t, UnitTypeFunction, stop.Type)
}

func TestRun_WalkAndStats(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("# demo\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "good.py"), []byte(pythonSample), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.py"), []byte("def broken(:\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "skip.txt"), []byte("ignored\n"), 0o644))

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "node_modules", "pkg"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "node_modules", "pkg", "x.py"), []byte("y = 1\n"), 0o644))

	e := NewExtractor(Options{
		ExcludeDirs:  []string{"node_modules"},
		IncludeExts:  []string{".py"},
		MaxFileBytes: 2 * 1024 * 1024,
		ChunkLines:   200,
		ChunkOverlap: 40,
	})
	defer e.Close()

	artifact, err := e.Run(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, "# demo\n", artifact.Readme)
	assert.Equal(t, 2, artifact.Stats.NumFiles)
	assert.Equal(t, 1, artifact.Stats.NumSyntaxErrors)
	assert.Equal(t, 0, artifact.Stats.NumSkipped)

	require.Contains(t, artifact.ParsedCode, "good.py")
	require.Contains(t, artifact.ParsedCode, "bad.py")
	assert.NotContains(t, artifact.ParsedCode, "node_modules/pkg/x.py")
	assert.NotContains(t, artifact.ParsedCode, "skip.txt")

	require.Len(t, artifact.SyntaxErrors, 1)
	assert.Equal(t, "bad.py", artifact.SyntaxErrors[0].File)
}

func TestRun_OversizedFileSkipped(t *testing.T) {
	dir := t.TempDir()
	big := strings.Repeat("x = 1\n", 100)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "big.py"), []byte(big), 0o644))

	e := NewExtractor(Options{
		IncludeExts:  []string{".py"},
		MaxFileBytes: 64,
		ChunkLines:   200,
		ChunkOverlap: 40,
	})
	defer e.Close()

	artifact, err := e.Run(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 1, artifact.Stats.NumSkipped)
	pf := artifact.ParsedCode["big.py"]
	assert.Equal(t, "SKIPPED: unreadable or too large", pf.SyntaxError)
	assert.Empty(t, pf.ASTItems)
	assert.Empty(t, pf.FileChunks)
}

func TestArtifactRoundTrip(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.py"), []byte(pythonSample), 0o644))

	e := NewExtractor(Options{
		IncludeExts:  []string{".py"},
		MaxFileBytes: 2 * 1024 * 1024,
		ChunkLines:   200,
		ChunkOverlap: 40,
	})
	defer e.Close()

	artifact, err := e.Run(context.Background(), dir)
	require.NoError(t, err)

	path := filepath.Join(dir, "parsed_code.json")
	require.NoError(t, WriteArtifact(artifact, path))

	loaded, err := ReadArtifact(path)
	require.NoError(t, err)

	assert.Equal(t, artifact.RepoRoot, loaded.RepoRoot)
	assert.Equal(t, artifact.Stats, loaded.Stats)
	require.Contains(t, loaded.ParsedCode, "app.py")

	// FilePath is not serialized; it is restored from the map key.
	for _, u := range loaded.ParsedCode["app.py"].ASTItems {
		assert.Equal(t, "app.py", u.FilePath)
	}
	for _, u := range loaded.ParsedCode["app.py"].FileChunks {
		assert.Equal(t, "app.py", u.FilePath)
	}
}
