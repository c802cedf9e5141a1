// Package extract turns source files into retrieval units.
//
// Extraction runs two independent passes per file: a syntactic pass that
// parses declarations with tree-sitter, and a windowing pass that tiles the
// file with fixed-size overlapping line windows so content the parser cannot
// recognize is still retrievable.
package extract

// UnitType classifies a retrieval unit.
type UnitType string

const (
	UnitTypeFunction      UnitType = "Function"
	UnitTypeAsyncFunction UnitType = "AsyncFunction"
	UnitTypeClass         UnitType = "Class"
	UnitTypeFileChunk     UnitType = "FileChunk"
	UnitTypeDoc           UnitType = "Doc"
)

// RetrievalUnit is one indexable piece of source content. Units are
// produced once per extraction pass and immutable thereafter; a later pass
// over the same file supersedes them.
type RetrievalUnit struct {
	// FilePath is relative to the repo root, forward-slash normalized.
	FilePath string `json:"-"`

	// Type is the unit kind.
	Type UnitType `json:"type"`

	// Name is the qualified name: "file::symbol" for declarations,
	// "file::chunk_<start>_<end>" for windows.
	Name string `json:"name"`

	// Symbol is the bare declaration name; empty for windows.
	Symbol string `json:"symbol"`

	// StartLine and EndLine are 1-based inclusive.
	StartLine int `json:"start_line"`
	EndLine   int `json:"end_line"`

	// Docstring is the leading string literal of the body, if the
	// language supports one.
	Docstring string `json:"docstring"`

	// Code is the exact source text of the unit.
	Code string `json:"code"`

	// PrecedingComments are contiguous comment lines immediately above the
	// declaration, top-to-bottom.
	PrecedingComments []string `json:"preceding_comments"`

	// Language is the source language tag.
	Language string `json:"language"`
}

// ParsedFile is the per-file slot of the extraction artifact.
type ParsedFile struct {
	// ASTItems are units from the syntactic pass (empty on parse failure).
	ASTItems []RetrievalUnit `json:"ast_items"`

	// FileChunks are units from the windowing pass (always present for
	// non-empty readable files).
	FileChunks []RetrievalUnit `json:"file_chunks"`

	// Imports are imported module/package names.
	Imports []string `json:"imports"`

	// GlobalVariables are module-level variable names.
	GlobalVariables []string `json:"global_variables"`

	// SyntaxError records a parse or read failure; empty means clean.
	SyntaxError string `json:"syntax_error,omitempty"`
}

// FileError pairs a file with its recorded extraction error.
type FileError struct {
	File  string `json:"file"`
	Error string `json:"error"`
}

// Stats summarizes an extraction run.
type Stats struct {
	NumFiles        int `json:"num_files"`
	NumSyntaxErrors int `json:"num_syntax_errors"`
	NumSkipped      int `json:"num_skipped"`
	ChunkLines      int `json:"chunk_lines"`
	ChunkOverlap    int `json:"chunk_overlap"`
}

// Artifact is the hand-off document between extraction and ingestion.
// Its shape is a stable contract: the two stages interoperate only
// through this structure.
type Artifact struct {
	RepoRoot     string                `json:"repo_root"`
	Readme       string                `json:"readme"`
	ParsedCode   map[string]ParsedFile `json:"parsed_code"`
	Stats        Stats                 `json:"stats"`
	SyntaxErrors []FileError           `json:"syntax_errors"`
}

// MaxRecordedSyntaxErrors caps the artifact's error list to keep the
// JSON small on badly broken trees.
const MaxRecordedSyntaxErrors = 200
