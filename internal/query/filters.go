package query

import "github.com/probelabs/probe/internal/types"

// extractAndSimplify removes filter nodes from the raw AST, folding
// them into a FileFilters accumulator, and algebraically simplifies the
// remaining boolean skeleton (§4.1 step 1): a filter node becomes the
// constant `true`; `true AND x = x`; `true OR x = true`.
//
// The returned node is nil when the whole expression simplified away to
// a constant true (e.g. the query was filters-only).
func extractAndSimplify(node *exprNode, filters *types.FileFilters) *exprNode {
	if node == nil {
		return nil
	}

	switch node.kind {
	case exprFilter:
		applyFilter(filters, node.key, node.text)
		return nil // constant true

	case exprTerm:
		return node

	case exprNot:
		inner := extractAndSimplify(node.children[0], filters)
		if inner == nil {
			// NOT true == false; a false term can never match, but we
			// have no "constant false" marker upstream, so we fold it
			// to an always-excluded synthetic term instead of growing
			// the AST shape. In practice a bare NOT-filter query is
			// degenerate and this keeps compilation total.
			return &exprNode{kind: exprTerm, text: "", excluded: true}
		}
		return &exprNode{kind: exprNot, children: []*exprNode{inner}}

	case exprAnd, exprImplicit:
		var kept []*exprNode
		for _, c := range node.children {
			s := extractAndSimplify(c, filters)
			if s != nil {
				kept = append(kept, s)
			}
		}
		if len(kept) == 0 {
			return nil
		}
		if len(kept) == 1 {
			return kept[0]
		}
		return &exprNode{kind: node.kind, children: kept}

	case exprOr:
		var kept []*exprNode
		for _, c := range node.children {
			s := extractAndSimplify(c, filters)
			if s == nil {
				// true OR x == true: the whole OR collapses away.
				return nil
			}
			kept = append(kept, s)
		}
		if len(kept) == 1 {
			return kept[0]
		}
		return &exprNode{kind: exprOr, children: kept}

	default:
		return node
	}
}

func applyFilter(f *types.FileFilters, key, value string) {
	switch key {
	case "ext":
		f.Extensions[normalizeExt(value)] = struct{}{}
	case "file":
		f.FileGlobPatterns = append(f.FileGlobPatterns, value)
	case "dir":
		f.DirSubstrings = append(f.DirSubstrings, value)
	case "type":
		f.Types = append(f.Types, value)
	case "lang":
		f.Languages = append(f.Languages, value)
	}
}

func normalizeExt(v string) string {
	if len(v) > 0 && v[0] == '.' {
		return v[1:]
	}
	return v
}
