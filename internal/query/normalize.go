package query

import (
	"strings"

	"github.com/probelabs/probe/internal/semantic"
	"github.com/probelabs/probe/internal/types"
)

// compileCtx accumulates the dense term table while the raw AST is
// walked into a types.BoolExpr.
type compileCtx struct {
	terms    []types.Term
	index    map[string]uint32
	required map[uint32]struct{}
	excluded map[uint32]struct{}
	stemmer  *semantic.Stemmer
	splitter *semantic.NameSplitter
	anyTerm  bool
}

func newCompileCtx(stemmer *semantic.Stemmer, splitter *semantic.NameSplitter, anyTerm bool) *compileCtx {
	return &compileCtx{
		index:    make(map[string]uint32),
		required: make(map[uint32]struct{}),
		excluded: make(map[uint32]struct{}),
		stemmer:  stemmer,
		splitter: splitter,
		anyTerm:  anyTerm,
	}
}

// termFor returns the dense index (and a value copy) for a (possibly
// new) surface term, recording required/excluded flags against it.
// Terms are deduplicated by their normalized text.
//
// The returned Term is a value copy, never a pointer into c.terms:
// c.terms grows by append and a pointer into it would dangle across a
// reallocation, so every BoolExpr leaf owns its own Term.
func (c *compileCtx) termFor(text string, required, excluded, quoted bool) (uint32, types.Term) {
	key := text
	if !quoted {
		key = strings.ToLower(key)
	}

	if idx, ok := c.index[key]; ok {
		if required {
			c.required[idx] = struct{}{}
		}
		if excluded {
			c.excluded[idx] = struct{}{}
		}
		return idx, c.terms[idx]
	}

	idx := uint32(len(c.terms))
	stem := ""
	if c.stemmer != nil && !quoted {
		stem = c.stemmer.Stem(key)
	}

	term := types.Term{
		Text:        key,
		Required:    required,
		Excluded:    excluded,
		QuotedExact: quoted,
		Stem:        stem,
		Index:       idx,
	}
	c.terms = append(c.terms, term)
	c.index[key] = idx

	if required {
		c.required[idx] = struct{}{}
	}
	if excluded {
		c.excluded[idx] = struct{}{}
	}
	return idx, term
}

// buildBoolExpr converts the filter-free raw AST into the immutable
// BoolExpr over dense term indices, splitting compound identifiers into
// an OR of their parts (§4.1 step 2).
//
// Splitting is withheld for quoted terms (exact match, no stemming, no
// splitting by definition), excluded terms (the -foo_bar invariant:
// splitting would let a block containing only "foo" slip past an
// exclusion meant for the whole compound), and required terms (splitting
// would turn a single required compound into an OR of parts, which
// would break the all-required-indices-present invariant in
// QueryPlan.RequiredSatisfied — so a required compound is kept whole).
func (c *compileCtx) buildBoolExpr(node *exprNode) *types.BoolExpr {
	if node == nil {
		return nil
	}

	switch node.kind {
	case exprTerm:
		return c.buildTerm(node)
	case exprNot:
		return &types.BoolExpr{Op: types.OpNot, Children: []*types.BoolExpr{c.buildBoolExpr(node.children[0])}}
	case exprOr:
		children := make([]*types.BoolExpr, 0, len(node.children))
		for _, ch := range node.children {
			children = append(children, c.buildBoolExpr(ch))
		}
		return &types.BoolExpr{Op: types.OpOr, Children: children}
	case exprAnd:
		children := make([]*types.BoolExpr, 0, len(node.children))
		for _, ch := range node.children {
			children = append(children, c.buildBoolExpr(ch))
		}
		return &types.BoolExpr{Op: types.OpAnd, Children: children}
	case exprImplicit:
		op := types.OpAnd
		if c.anyTerm {
			op = types.OpOr
		}
		children := make([]*types.BoolExpr, 0, len(node.children))
		for _, ch := range node.children {
			children = append(children, c.buildBoolExpr(ch))
		}
		return &types.BoolExpr{Op: op, Children: children}
	default:
		return nil
	}
}

func (c *compileCtx) buildTerm(node *exprNode) *types.BoolExpr {
	eligibleForSplit := !node.quoted && !node.excluded && !node.required && c.splitter != nil

	if eligibleForSplit {
		parts := c.splitter.Split(node.text)
		if len(parts) > 1 {
			children := make([]*types.BoolExpr, 0, len(parts))
			for _, part := range parts {
				_, term := c.termFor(part, false, false, false)
				children = append(children, &types.BoolExpr{Op: types.OpTerm, Term: &term})
			}
			return &types.BoolExpr{Op: types.OpOr, Children: children}
		}
	}

	_, term := c.termFor(node.text, node.required, node.excluded, node.quoted)
	return &types.BoolExpr{Op: types.OpTerm, Term: &term}
}
