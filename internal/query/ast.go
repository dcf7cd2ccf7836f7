package query

// exprKind enumerates raw-AST node kinds produced by the parser, before
// filter extraction and term normalization.
type exprKind int

const (
	exprTerm exprKind = iota
	exprFilter
	exprAnd
	exprOr
	exprNot
	exprImplicit // a flat run of adjacent terms with no explicit connective
)

// exprNode is the raw parse tree: surface words/filters/parens/booleans,
// before any normalization.
type exprNode struct {
	kind     exprKind
	text     string // surface word (exprTerm) or filter value (exprFilter)
	key      string // filter key (exprFilter only)
	required bool
	excluded bool
	quoted   bool
	children []*exprNode
}
