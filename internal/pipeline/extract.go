package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/probelabs/probe/internal/errors"
	"github.com/probelabs/probe/internal/extractref"
	"github.com/probelabs/probe/internal/syntax"
	"github.com/probelabs/probe/internal/types"
	"github.com/probelabs/probe/pkg/pathutil"
)

// ExtractRequest bundles one fileref plus the flags that shape
// fallback/symbol behavior.
type ExtractRequest struct {
	Root         string
	Ref          extractref.Ref
	ContextLines int
	AllSymbols   bool // --symbols: extract every top-level symbol
}

// Extract resolves one fileref into one or more blocks (§6 `extract`):
// a line/range ref grows to the acceptable parent enclosing its start
// line, or to a context window when the file can't be parsed or no such
// parent exists; a symbol ref finds the named symbol and returns an
// error when the file can't be parsed or the symbol is missing; a bare
// path yields the whole file; AllSymbols yields every top-level
// acceptable node.
func Extract(registry *syntax.Registry, req ExtractRequest) ([]*types.Block, error) {
	absPath := req.Ref.Path
	if req.Root != "" && !filepath.IsAbs(absPath) {
		absPath = filepath.Join(req.Root, absPath)
	}

	content, err := os.ReadFile(absPath)
	if err != nil {
		return nil, errors.NewFileError("read", absPath, err)
	}
	lines := splitLines(content)

	lang := registry.LanguageForExt(filepath.Ext(req.Ref.Path))
	provider := registry.Provider(lang)

	// Display paths relative to root, matching the scanner's convention,
	// even when the ref was given as (or resolved to) an absolute path.
	displayPath := req.Ref.Path
	if req.Root != "" {
		displayPath = pathutil.ToRelative(absPath, req.Root)
	}

	switch {
	case req.AllSymbols:
		return extractAllSymbols(provider, displayPath, content, lines)
	case req.Ref.Symbol != "":
		return extractBySymbol(provider, displayPath, req.Ref.Symbol, content, lines, req.ContextLines)
	case req.Ref.HasLineRange():
		return extractByLine(provider, displayPath, req.Ref.StartLine, content, lines, req.ContextLines)
	default:
		return []*types.Block{wholeFileBlock(displayPath, content, lines)}, nil
	}
}

func splitLines(content []byte) []string {
	return strings.Split(string(content), "\n")
}

func wholeFileBlock(path string, content []byte, lines []string) *types.Block {
	return &types.Block{
		File: path, StartLine: 1, EndLine: len(lines),
		NodeType: types.NodeFile, Code: string(content),
	}
}

func extractByLine(provider syntax.Provider, path string, line int, content []byte, lines []string, contextLines int) ([]*types.Block, error) {
	tree, err := provider.Parse(content)
	if err == nil && tree != nil {
		defer tree.Close()
		node := provider.FindRelatedCodeNode(tree, uint32(line-1), 0)
		if node != nil {
			start := int(node.StartPosition().Row) + 1
			end := int(node.EndPosition().Row) + 1
			return []*types.Block{{
				File: path, StartLine: start, EndLine: end,
				NodeType: nodeTypeFor(node.Kind()), Code: syntax.NodeText(node, content),
			}}, nil
		}
	}

	if contextLines <= 0 {
		contextLines = 10
	}
	start, end := contextWindow(line, len(lines), contextLines)
	return []*types.Block{{
		File: path, StartLine: start, EndLine: end,
		NodeType: types.NodeContext, Code: joinLines(lines, start, end),
	}}, nil
}

func extractBySymbol(provider syntax.Provider, path, symbol string, content []byte, lines []string, contextLines int) ([]*types.Block, error) {
	tree, err := provider.Parse(content)
	if err != nil || tree == nil {
		return nil, errors.NewSyntaxProviderError(provider.Language(), path, err)
	}
	defer tree.Close()

	target := lastSymbolSegment(symbol)
	root := tree.RootNode()
	node := findNamedNode(provider, root, content, target)
	if node == nil {
		return nil, fmt.Errorf("symbol %q not found in %s", symbol, path)
	}
	start := int(node.StartPosition().Row) + 1
	end := int(node.EndPosition().Row) + 1
	return []*types.Block{{
		File: path, StartLine: start, EndLine: end,
		NodeType: nodeTypeFor(node.Kind()), Code: syntax.NodeText(node, content),
		SymbolSignature: symbol,
	}}, nil
}

func extractAllSymbols(provider syntax.Provider, path string, content []byte, lines []string) ([]*types.Block, error) {
	tree, err := provider.Parse(content)
	if err != nil || tree == nil {
		return nil, errors.NewSyntaxProviderError(provider.Language(), path, err)
	}
	defer tree.Close()

	var blocks []*types.Block
	collectAcceptableNodes(provider, tree.RootNode(), content, &blocks, path)
	return blocks, nil
}

func collectAcceptableNodes(provider syntax.Provider, n *tree_sitter.Node, content []byte, out *[]*types.Block, path string) {
	if n == nil {
		return
	}
	if provider.IsAcceptableParent(n.Kind()) {
		start := int(n.StartPosition().Row) + 1
		end := int(n.EndPosition().Row) + 1
		*out = append(*out, &types.Block{
			File: path, StartLine: start, EndLine: end,
			NodeType: nodeTypeFor(n.Kind()), Code: syntax.NodeText(n, content),
			SymbolSignature: syntax.NodeName(n, content),
		})
		return
	}
	count := n.ChildCount()
	for i := uint(0); i < count; i++ {
		collectAcceptableNodes(provider, n.Child(i), content, out, path)
	}
}

func nodeTypeFor(kind string) types.NodeType {
	switch {
	case strings.Contains(kind, "struct"):
		return types.NodeStruct
	case strings.Contains(kind, "class"):
		return types.NodeClass
	case strings.Contains(kind, "interface"):
		return types.NodeInterface
	case strings.Contains(kind, "trait"):
		return types.NodeTrait
	case strings.Contains(kind, "impl"):
		return types.NodeImpl
	case strings.Contains(kind, "method"):
		return types.NodeMethod
	case strings.Contains(kind, "function") || strings.Contains(kind, "func"):
		return types.NodeFunction
	default:
		return types.NodeModule
	}
}

func findNamedNode(provider syntax.Provider, n *tree_sitter.Node, content []byte, name string) *tree_sitter.Node {
	if n == nil {
		return nil
	}
	if provider.IsAcceptableParent(n.Kind()) && syntax.NodeName(n, content) == name {
		return n
	}
	count := n.ChildCount()
	for i := uint(0); i < count; i++ {
		if found := findNamedNode(provider, n.Child(i), content, name); found != nil {
			return found
		}
	}
	return nil
}

func lastSymbolSegment(symbol string) string {
	segments := strings.Split(symbol, "::")
	return segments[len(segments)-1]
}

func contextWindow(line, totalLines, context int) (int, int) {
	start := line - context
	if start < 1 {
		start = 1
	}
	end := line + context
	if end > totalLines {
		end = totalLines
	}
	return start, end
}

func joinLines(lines []string, start, end int) string {
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
