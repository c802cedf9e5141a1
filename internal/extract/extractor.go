package extract

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Options configures an extraction run.
type Options struct {
	// ExcludeDirs are directory names pruned from the walk.
	ExcludeDirs []string

	// IncludeExts limits which files are extracted (".py", ".go", ...).
	// Extensions without a registered language still get the windowing pass.
	IncludeExts []string

	// MaxFileBytes is the per-file size ceiling. Oversized files are
	// skipped and recorded; truncation would corrupt line invariants.
	MaxFileBytes int64

	// ChunkLines and ChunkOverlap configure the windowing pass.
	ChunkLines   int
	ChunkOverlap int
}

// Extractor runs both extraction passes over a source tree.
type Extractor struct {
	opts      Options
	syntactic *SyntacticExtractor
	registry  *LanguageRegistry
}

// NewExtractor creates an extractor.
func NewExtractor(opts Options) *Extractor {
	if opts.ChunkLines < 1 {
		opts.ChunkLines = 200
	}
	if opts.MaxFileBytes <= 0 {
		opts.MaxFileBytes = 2 * 1024 * 1024
	}
	return &Extractor{
		opts:      opts,
		syntactic: NewSyntacticExtractor(),
		registry:  DefaultRegistry(),
	}
}

// Close releases parser resources.
func (e *Extractor) Close() {
	e.syntactic.Close()
}

// ExtractFile runs both passes over one file's content.
// The windowing pass runs even when the syntactic pass fails, so a
// malformed file stays retrievable.
func (e *Extractor) ExtractFile(ctx context.Context, relPath, content string) ParsedFile {
	language := e.languageFor(relPath)

	var parsed fileParse
	if language != "" {
		parsed = e.syntactic.extractFile(ctx, relPath, content, language)
	} else {
		language = "text"
	}

	pf := ParsedFile{
		ASTItems:        parsed.units,
		FileChunks:      WindowUnits(relPath, content, language, e.opts.ChunkLines, e.opts.ChunkOverlap),
		Imports:         parsed.imports,
		GlobalVariables: parsed.globalVariables,
		SyntaxError:     parsed.syntaxError,
	}
	if pf.ASTItems == nil {
		pf.ASTItems = []RetrievalUnit{}
	}
	if pf.FileChunks == nil {
		pf.FileChunks = []RetrievalUnit{}
	}
	if pf.Imports == nil {
		pf.Imports = []string{}
	}
	if pf.GlobalVariables == nil {
		pf.GlobalVariables = []string{}
	}
	return pf
}

// Run walks the repository and produces the extraction artifact.
// Per-file failures are recorded in the artifact; only the walk itself
// can fail.
func (e *Extractor) Run(ctx context.Context, repoRoot string) (*Artifact, error) {
	repoRoot, err := filepath.Abs(repoRoot)
	if err != nil {
		return nil, err
	}

	artifact := &Artifact{
		RepoRoot:   repoRoot,
		Readme:     e.extractReadme(repoRoot),
		ParsedCode: make(map[string]ParsedFile),
		Stats: Stats{
			ChunkLines:   e.opts.ChunkLines,
			ChunkOverlap: e.opts.ChunkOverlap,
		},
		SyntaxErrors: []FileError{},
	}

	paths, err := e.listFiles(repoRoot)
	if err != nil {
		return nil, err
	}

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rel := normalizeRelPath(repoRoot, path)
		artifact.Stats.NumFiles++

		content, readErr := e.readFile(path)
		if readErr != "" {
			artifact.ParsedCode[rel] = ParsedFile{
				ASTItems:        []RetrievalUnit{},
				FileChunks:      []RetrievalUnit{},
				Imports:         []string{},
				GlobalVariables: []string{},
				SyntaxError:     readErr,
			}
			artifact.Stats.NumSkipped++
			slog.Warn("file_skipped", slog.String("file", rel), slog.String("reason", readErr))
			continue
		}

		pf := e.ExtractFile(ctx, rel, content)
		if pf.SyntaxError != "" {
			artifact.Stats.NumSyntaxErrors++
			if len(artifact.SyntaxErrors) < MaxRecordedSyntaxErrors {
				artifact.SyntaxErrors = append(artifact.SyntaxErrors, FileError{File: rel, Error: pf.SyntaxError})
			}
			slog.Debug("syntax_error", slog.String("file", rel), slog.String("error", pf.SyntaxError))
		}
		artifact.ParsedCode[rel] = pf
	}

	slog.Info("extraction_complete",
		slog.Int("files", artifact.Stats.NumFiles),
		slog.Int("syntax_errors", artifact.Stats.NumSyntaxErrors),
		slog.Int("skipped", artifact.Stats.NumSkipped))

	return artifact, nil
}

// languageFor maps a file path to a registered language name.
func (e *Extractor) languageFor(path string) string {
	config, ok := e.registry.GetByExtension(filepath.Ext(path))
	if !ok {
		return ""
	}
	return config.Name
}

// listFiles walks the tree, pruning excluded directories and filtering by
// extension.
func (e *Extractor) listFiles(root string) ([]string, error) {
	excluded := make(map[string]bool, len(e.opts.ExcludeDirs))
	for _, d := range e.opts.ExcludeDirs {
		excluded[d] = true
	}
	included := make(map[string]bool, len(e.opts.IncludeExts))
	for _, ext := range e.opts.IncludeExts {
		included[strings.ToLower(ext)] = true
	}

	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && excluded[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if len(included) > 0 && !included[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	return paths, err
}

// readFile reads a file, enforcing the size ceiling.
// Returns the content or a non-empty skip reason.
func (e *Extractor) readFile(path string) (string, string) {
	info, err := os.Stat(path)
	if err != nil {
		return "", "SKIPPED: unreadable: " + err.Error()
	}
	if info.Size() > e.opts.MaxFileBytes {
		return "", "SKIPPED: unreadable or too large"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", "SKIPPED: unreadable: " + err.Error()
	}
	return string(data), ""
}

// extractReadme finds the repository README, preferring the root.
func (e *Extractor) extractReadme(root string) string {
	for _, candidate := range []string{"README.md", "readme.md", "Readme.md"} {
		if data, err := os.ReadFile(filepath.Join(root, candidate)); err == nil {
			if int64(len(data)) <= e.opts.MaxFileBytes {
				return string(data)
			}
		}
	}
	return ""
}

// normalizeRelPath makes path relative to root with forward slashes.
func normalizeRelPath(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}
	return filepath.ToSlash(rel)
}
