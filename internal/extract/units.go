package extract

import (
	"context"
	"fmt"
	"strings"
)

// SyntacticExtractor produces declaration units from parsed syntax trees.
type SyntacticExtractor struct {
	parser   *Parser
	registry *LanguageRegistry
}

// NewSyntacticExtractor creates an extractor with the default registry.
func NewSyntacticExtractor() *SyntacticExtractor {
	registry := DefaultRegistry()
	return &SyntacticExtractor{
		parser:   NewParserWithRegistry(registry),
		registry: registry,
	}
}

// Close releases parser resources.
func (e *SyntacticExtractor) Close() {
	if e.parser != nil {
		e.parser.Close()
	}
}

// fileParse is the raw result of the syntactic pass for one file.
type fileParse struct {
	units           []RetrievalUnit
	imports         []string
	globalVariables []string
	syntaxError     string
}

// extractFile parses one file and emits declaration units.
// Parse failure is recorded, not returned: the caller's windowing pass must
// still run so the file remains retrievable.
func (e *SyntacticExtractor) extractFile(ctx context.Context, relPath, content, language string) fileParse {
	config, ok := e.registry.GetByName(language)
	if !ok {
		return fileParse{syntaxError: fmt.Sprintf("unsupported language: %s", language)}
	}

	source := []byte(content)
	tree, err := e.parser.Parse(ctx, source, language)
	if err != nil {
		return fileParse{syntaxError: err.Error()}
	}

	if tree.Root.HasError {
		return fileParse{syntaxError: syntaxErrorMessage(tree.Root)}
	}

	lines := strings.Split(content, "\n")

	var result fileParse
	declTypes := make(map[string]UnitType)
	for _, t := range config.FunctionTypes {
		declTypes[t] = UnitTypeFunction
	}
	for _, t := range config.ClassTypes {
		declTypes[t] = UnitTypeClass
	}

	tree.Root.Walk(func(n *Node) bool {
		kind, isDecl := declTypes[n.Type]
		if !isDecl {
			return true
		}

		symbol := declarationName(n, source)
		if symbol == "" {
			return true
		}

		if kind == UnitTypeFunction && isAsync(n) {
			kind = UnitTypeAsyncFunction
		}

		unit := RetrievalUnit{
			FilePath:          relPath,
			Type:              kind,
			Name:              relPath + "::" + symbol,
			Symbol:            symbol,
			StartLine:         n.StartLine(),
			EndLine:           n.EndLine(),
			Code:              codeText(n, source, lines),
			PrecedingComments: precedingComments(lines, n.StartLine(), config.CommentPrefix),
			Language:          language,
		}
		if config.HasDocstrings {
			unit.Docstring = docstring(n, source)
		}

		result.units = append(result.units, unit)
		return true // nested declarations are units too
	})

	result.imports = collectImports(tree.Root, source, config)
	result.globalVariables = collectGlobalVariables(tree.Root, source, config)

	return result
}

// syntaxErrorMessage locates the first ERROR node for a useful message.
func syntaxErrorMessage(root *Node) string {
	line := root.StartLine()
	root.Walk(func(n *Node) bool {
		if n.Type == "ERROR" {
			line = n.StartLine()
			return false
		}
		return true
	})
	return fmt.Sprintf("syntax error near line %d", line)
}

// declarationName extracts the declared identifier of a node.
func declarationName(n *Node, source []byte) string {
	for _, t := range []string{"identifier", "field_identifier", "type_identifier"} {
		if child := n.FindChildByType(t); child != nil {
			return child.Content(source)
		}
	}
	return ""
}

// isAsync reports whether a declaration carries a leading async keyword.
func isAsync(n *Node) bool {
	for _, child := range n.Children {
		if child.Type == "async" {
			return true
		}
		// The keyword precedes the name; stop once real structure starts.
		if child.Type == "identifier" || child.Type == "parameters" {
			break
		}
	}
	return false
}

// codeText returns the exact source of a declaration. The structured path
// slices the node's byte range; when that range is unusable it falls back to
// a verbatim line slice. Both paths reproduce the original bytes.
func codeText(n *Node, source []byte, lines []string) string {
	if text := n.Content(source); text != "" {
		return text
	}
	return lineSlice(lines, n.StartLine(), n.EndLine())
}

// lineSlice returns lines [start, end] (1-based, inclusive) joined verbatim.
func lineSlice(lines []string, start, end int) string {
	if start < 1 {
		start = 1
	}
	if end > len(lines) {
		end = len(lines)
	}
	if start > end {
		return ""
	}
	return strings.Join(lines[start-1:end], "\n")
}

// docstring extracts the leading string literal of a declaration body.
func docstring(n *Node, source []byte) string {
	body := n.FindChildByType("block")
	if body == nil || len(body.Children) == 0 {
		return ""
	}

	first := body.Children[0]
	if first.Type != "expression_statement" {
		return ""
	}
	str := first.FindChildByType("string")
	if str == nil {
		return ""
	}

	return cleanStringLiteral(str.Content(source))
}

// cleanStringLiteral strips quote delimiters and surrounding whitespace.
func cleanStringLiteral(s string) string {
	s = strings.TrimSpace(s)
	// String prefixes like r"..." or f"..."
	for len(s) > 0 && s[0] != '"' && s[0] != '\'' {
		s = s[1:]
	}
	for _, q := range []string{`"""`, "'''", `"`, `'`} {
		if strings.HasPrefix(s, q) && strings.HasSuffix(s, q) && len(s) >= 2*len(q) {
			return strings.TrimSpace(s[len(q) : len(s)-len(q)])
		}
	}
	return strings.TrimSpace(s)
}

// precedingComments walks upward from the line above a declaration,
// collecting contiguous comment lines. Blank lines and triple-quoted-string
// delimiters pass through without terminating the walk; any other content
// stops it. Comments come back in top-to-bottom order.
func precedingComments(lines []string, declLine int, prefix string) []string {
	var comments []string

	idx := declLine - 2
	for idx >= 0 {
		line := strings.TrimSpace(lines[idx])
		switch {
		case strings.HasPrefix(line, prefix):
			text := strings.TrimSpace(strings.TrimPrefix(line, prefix))
			comments = append([]string{text}, comments...)
		case line == "" || strings.HasPrefix(line, `"""`) || strings.HasPrefix(line, "'''"):
			// pass-through
		default:
			return comments
		}
		idx--
	}
	return comments
}

// collectImports gathers imported names from the tree.
func collectImports(root *Node, source []byte, config *LanguageConfig) []string {
	importTypes := make(map[string]bool, len(config.ImportTypes))
	for _, t := range config.ImportTypes {
		importTypes[t] = true
	}

	var imports []string
	root.Walk(func(n *Node) bool {
		if !importTypes[n.Type] {
			return true
		}
		text := strings.TrimSpace(n.Content(source))
		text = strings.Trim(text, `"`)
		if text != "" {
			imports = append(imports, text)
		}
		return false
	})
	return imports
}

// collectGlobalVariables gathers module-level assigned names.
func collectGlobalVariables(root *Node, source []byte, config *LanguageConfig) []string {
	varTypes := make(map[string]bool, len(config.VariableTypes))
	for _, t := range config.VariableTypes {
		varTypes[t] = true
	}

	var names []string
	seen := make(map[string]bool)

	record := func(n *Node) {
		if ident := firstIdentifier(n); ident != nil {
			name := ident.Content(source)
			if name != "" && !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}

	for _, child := range root.Children {
		if varTypes[child.Type] {
			record(child)
			continue
		}
		// Python assignments sit inside expression_statement wrappers.
		if child.Type == "expression_statement" {
			for _, inner := range child.Children {
				if varTypes[inner.Type] {
					record(inner)
				}
			}
		}
	}
	return names
}

// firstIdentifier finds the first identifier in a declaration subtree.
func firstIdentifier(n *Node) *Node {
	var found *Node
	n.Walk(func(node *Node) bool {
		if found != nil {
			return false
		}
		if node.Type == "identifier" {
			found = node
			return false
		}
		return true
	})
	return found
}
