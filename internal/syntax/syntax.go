// Package syntax implements the Syntax Provider capability (§4.3): a
// per-language tree-sitter registry that finds the smallest
// "acceptable" parent node enclosing a matched line, so the block
// extractor can grow a hit into a whole function/method/class instead
// of a bare line window.
package syntax

import (
	"strings"
	"sync"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	lcierrors "github.com/probelabs/probe/internal/errors"
)

// Provider is the per-language syntax capability.
type Provider interface {
	// Language is the canonical language name ("go", "python", ...).
	Language() string
	// Parse produces a tree-sitter tree for source. Callers must call
	// Tree.Close when done.
	Parse(source []byte) (*tree_sitter.Tree, error)
	// IsAcceptableParent reports whether a node kind is a suitable
	// block boundary (function/method/class/etc. per language).
	IsAcceptableParent(nodeKind string) bool
	// FindRelatedCodeNode walks up from the node at (line, col) and
	// returns the smallest enclosing acceptable-parent node, or nil if
	// none is found before the tree root.
	FindRelatedCodeNode(tree *tree_sitter.Tree, line, col uint32) *tree_sitter.Node
}

// noopProvider is returned for languages with no registered grammar: it
// degrades gracefully to the context-block fallback in internal/block.
type noopProvider struct{ lang string }

func (n *noopProvider) Language() string { return n.lang }
func (n *noopProvider) Parse(source []byte) (*tree_sitter.Tree, error) {
	return nil, lcierrors.NewSyntaxProviderError(n.lang, "", nil)
}
func (n *noopProvider) IsAcceptableParent(string) bool { return false }
func (n *noopProvider) FindRelatedCodeNode(*tree_sitter.Tree, uint32, uint32) *tree_sitter.Node {
	return nil
}

// provider wraps one compiled tree_sitter.Language plus its parser and
// acceptable-parent whitelist. tree-sitter parsers are not safe for
// concurrent use, so Parse is serialized per provider; the scanner
// parallelizes across files, not within one file's parse.
type provider struct {
	lang            string
	parser          *tree_sitter.Parser
	acceptableKinds map[string]struct{}
	mu              sync.Mutex
}

func newProvider(lang string, language *tree_sitter.Language, acceptable []string) Provider {
	parser := tree_sitter.NewParser()
	if err := parser.SetLanguage(language); err != nil {
		return nil
	}
	kinds := make(map[string]struct{}, len(acceptable))
	for _, k := range acceptable {
		kinds[k] = struct{}{}
	}
	return &provider{lang: lang, parser: parser, acceptableKinds: kinds}
}

func (p *provider) Language() string { return p.lang }

func (p *provider) Parse(source []byte) (*tree_sitter.Tree, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	tree := p.parser.Parse(source, nil)
	if tree == nil {
		return nil, lcierrors.NewSyntaxProviderError(p.lang, "", nil)
	}
	return tree, nil
}

func (p *provider) IsAcceptableParent(nodeKind string) bool {
	_, ok := p.acceptableKinds[nodeKind]
	return ok
}

// FindRelatedCodeNode walks from the root down to the deepest node
// whose span contains (line, col), then back up to the nearest
// acceptable-parent ancestor. Tree-sitter nodes expose only
// StartPosition/EndPosition and Child accessors reliably across binding
// versions, so descent is done by hand rather than relying on a
// point-range descendant helper that may not exist in every version.
func (p *provider) FindRelatedCodeNode(tree *tree_sitter.Tree, line, col uint32) *tree_sitter.Node {
	if tree == nil {
		return nil
	}
	root := tree.RootNode()
	if root == nil {
		return nil
	}
	target := deepestNodeAt(root, line, col)
	for target != nil {
		if p.IsAcceptableParent(target.Kind()) {
			n := *target
			return &n
		}
		target = target.Parent()
	}
	return nil
}

func containsPoint(n *tree_sitter.Node, line, col uint32) bool {
	start := n.StartPosition()
	end := n.EndPosition()
	if line < start.Row || line > end.Row {
		return false
	}
	if line == start.Row && col < start.Column {
		return false
	}
	if line == end.Row && col > end.Column {
		return false
	}
	return true
}

// NodeText returns the verbatim source slice a node spans.
func NodeText(node *tree_sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	start, end := node.StartByte(), node.EndByte()
	if int(end) > len(source) || start > end {
		return ""
	}
	return string(source[start:end])
}

// NodeName walks a node's immediate children for the first one whose
// kind names an identifier (covers every grammar's "identifier",
// "field_identifier", "type_identifier", "name", ...), returning its
// text. Returns "" when no such child exists (anonymous function
// literals, context blocks).
func NodeName(node *tree_sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	count := node.ChildCount()
	for i := uint(0); i < count; i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		kind := child.Kind()
		if strings.Contains(kind, "identifier") || kind == "name" {
			return NodeText(child, source)
		}
	}
	return ""
}

func deepestNodeAt(n *tree_sitter.Node, line, col uint32) *tree_sitter.Node {
	if !containsPoint(n, line, col) {
		return nil
	}
	count := n.ChildCount()
	for i := uint(0); i < count; i++ {
		child := n.Child(i)
		if child == nil {
			continue
		}
		if containsPoint(child, line, col) {
			if deeper := deepestNodeAt(child, line, col); deeper != nil {
				return deeper
			}
			return child
		}
	}
	return n
}

// Registry resolves a Provider by canonical language name or file
// extension, lazily constructing grammars on first use.
type Registry struct {
	mu        sync.Mutex
	byLang    map[string]Provider
	extToLang map[string]string
}

// NewRegistry builds the registry with every grammar wired in go.mod.
func NewRegistry() *Registry {
	return &Registry{
		byLang: make(map[string]Provider),
		extToLang: map[string]string{
			".go":    "go",
			".py":    "python",
			".js":    "javascript",
			".jsx":   "javascript",
			".mjs":   "javascript",
			".ts":    "typescript",
			".tsx":   "typescript",
			".rs":    "rust",
			".java":  "java",
			".c":     "cpp",
			".h":     "cpp",
			".cc":    "cpp",
			".cpp":   "cpp",
			".cxx":   "cpp",
			".hpp":   "cpp",
			".cs":    "csharp",
			".php":   "php",
			".phtml": "php",
			".zig":   "zig",
		},
	}
}

// LanguageForExt maps a file extension (with leading dot) to a canonical
// language name, or "" if unknown.
func (r *Registry) LanguageForExt(ext string) string {
	return r.extToLang[strings.ToLower(ext)]
}

// Provider returns (lazily constructing) the Provider for a canonical
// language name. Unknown languages get a noopProvider, never an error:
// the block extractor's context-window fallback always applies.
func (r *Registry) Provider(lang string) Provider {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.byLang[lang]; ok {
		return p
	}

	p := r.build(lang)
	if p == nil {
		p = &noopProvider{lang: lang}
	}
	r.byLang[lang] = p
	return p
}
