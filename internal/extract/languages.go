package extract

import (
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
)

// LanguageConfig describes how declarations look in one language.
type LanguageConfig struct {
	Name       string
	Extensions []string

	// Node types that declare functions (async detection is separate).
	FunctionTypes []string

	// Node types that declare classes.
	ClassTypes []string

	// Node types carrying imports.
	ImportTypes []string

	// Node types carrying module-level variable assignments.
	VariableTypes []string

	// CommentPrefix is the single-line comment marker.
	CommentPrefix string

	// HasDocstrings is true when the language supports a leading string
	// literal inside a declaration body.
	HasDocstrings bool
}

// LanguageRegistry manages supported languages and their configurations.
type LanguageRegistry struct {
	mu          sync.RWMutex
	configs     map[string]*LanguageConfig
	extToLang   map[string]string
	tsLanguages map[string]*sitter.Language
}

var defaultRegistry = NewLanguageRegistry()

// DefaultRegistry returns the shared registry with built-in languages.
func DefaultRegistry() *LanguageRegistry {
	return defaultRegistry
}

// NewLanguageRegistry creates a registry with the built-in languages.
func NewLanguageRegistry() *LanguageRegistry {
	r := &LanguageRegistry{
		configs:     make(map[string]*LanguageConfig),
		extToLang:   make(map[string]string),
		tsLanguages: make(map[string]*sitter.Language),
	}

	r.registerPython()
	r.registerGo()
	r.registerJavaScript()

	return r
}

// GetByExtension returns the language configuration for a file extension.
func (r *LanguageRegistry) GetByExtension(ext string) (*LanguageConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	langName, ok := r.extToLang[ext]
	if !ok {
		return nil, false
	}

	config, ok := r.configs[langName]
	return config, ok
}

// GetByName returns the language configuration by name.
func (r *LanguageRegistry) GetByName(name string) (*LanguageConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	config, ok := r.configs[name]
	return config, ok
}

// GetTreeSitterLanguage returns the tree-sitter language for a language name.
func (r *LanguageRegistry) GetTreeSitterLanguage(name string) (*sitter.Language, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lang, ok := r.tsLanguages[name]
	return lang, ok
}

// SupportedExtensions returns all registered file extensions.
func (r *LanguageRegistry) SupportedExtensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	exts := make([]string, 0, len(r.extToLang))
	for ext := range r.extToLang {
		exts = append(exts, ext)
	}
	return exts
}

func (r *LanguageRegistry) register(config *LanguageConfig, tsLang *sitter.Language) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.configs[config.Name] = config
	r.tsLanguages[config.Name] = tsLang

	for _, ext := range config.Extensions {
		r.extToLang[ext] = config.Name
	}
}

func (r *LanguageRegistry) registerPython() {
	r.register(&LanguageConfig{
		Name:          "python",
		Extensions:    []string{".py"},
		FunctionTypes: []string{"function_definition"},
		ClassTypes:    []string{"class_definition"},
		ImportTypes:   []string{"import_statement", "import_from_statement"},
		VariableTypes: []string{"assignment"},
		CommentPrefix: "#",
		HasDocstrings: true,
	}, python.GetLanguage())
}

func (r *LanguageRegistry) registerGo() {
	r.register(&LanguageConfig{
		Name:          "go",
		Extensions:    []string{".go"},
		FunctionTypes: []string{"function_declaration", "method_declaration"},
		ClassTypes:    []string{}, // Go has no classes
		ImportTypes:   []string{"import_spec"},
		VariableTypes: []string{"var_declaration"},
		CommentPrefix: "//",
		HasDocstrings: false,
	}, golang.GetLanguage())
}

func (r *LanguageRegistry) registerJavaScript() {
	r.register(&LanguageConfig{
		Name:          "javascript",
		Extensions:    []string{".js", ".mjs", ".cjs"},
		FunctionTypes: []string{"function_declaration", "generator_function_declaration"},
		ClassTypes:    []string{"class_declaration"},
		ImportTypes:   []string{"import_statement"},
		VariableTypes: []string{"lexical_declaration", "variable_declaration"},
		CommentPrefix: "//",
		HasDocstrings: false,
	}, javascript.GetLanguage())
}
