package block

import (
	"strings"

	"github.com/probelabs/probe/internal/types"
)

// nodeTypeForKind maps a tree-sitter node kind name to the coarse
// NodeType categories the ranker and CLI output care about. Grammar
// authors name acceptable-parent kinds consistently enough across
// languages ("function_declaration", "method_declaration",
// "class_declaration", ...) that substring matching covers every
// grammar wired into internal/syntax without a per-language table.
func nodeTypeForKind(kind string) types.NodeType {
	switch {
	case strings.Contains(kind, "method") || strings.Contains(kind, "constructor"):
		return types.NodeMethod
	case strings.Contains(kind, "interface"):
		return types.NodeInterface
	case strings.Contains(kind, "trait"):
		return types.NodeTrait
	case strings.Contains(kind, "impl"):
		return types.NodeImpl
	case strings.Contains(kind, "class") || strings.Contains(kind, "record"):
		return types.NodeClass
	case strings.Contains(kind, "struct"):
		return types.NodeStruct
	case strings.Contains(kind, "namespace") || strings.Contains(kind, "mod_item"):
		return types.NodeModule
	case strings.Contains(kind, "function") || strings.Contains(kind, "func_literal"):
		return types.NodeFunction
	default:
		return types.NodeContext
	}
}
