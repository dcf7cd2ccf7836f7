// Package query implements the boolean/required/excluded query
// compiler: it parses an ElasticSearch-style query string and emits an
// immutable types.QueryPlan consumed by the scanner and the ranker.
package query

import (
	"github.com/probelabs/probe/internal/semantic"
	"github.com/probelabs/probe/internal/types"
)

// Options configures one Compile call.
type Options struct {
	// AnyTerm selects implicit-OR between adjacent bare terms; the
	// default (false) is implicit-AND.
	AnyTerm bool
	// Strict enables the §4.1 strict-mode syntax validation.
	Strict bool
	// Stemmer normalizes surface terms before indexing; nil disables
	// stemming (terms are indexed by lowercase surface form only).
	Stemmer *semantic.Stemmer
	// Splitter performs compound-word splitting (snake_case, camelCase,
	// PascalCase); nil disables splitting.
	Splitter *semantic.NameSplitter
}

// Compile parses raw and produces the QueryPlan the scanner and ranker
// consume. Returned errors are always one of the *errors.QueryError
// variants from internal/errors.
func Compile(raw string, opts Options) (*types.QueryPlan, error) {
	if opts.Strict {
		if err := checkStrict(raw); err != nil {
			return nil, err
		}
	}

	p := newParser(raw)
	rawAST, err := p.parse()
	if err != nil {
		return nil, err
	}

	filters := types.NewFileFilters()
	simplified := extractAndSimplify(rawAST, filters)

	ctx := newCompileCtx(opts.Stemmer, opts.Splitter, opts.AnyTerm)

	var boolExpr *types.BoolExpr
	if simplified != nil {
		boolExpr = ctx.buildBoolExpr(simplified)
	}
	// simplified == nil means the whole query was filters (e.g.
	// "ext:rs AND dir:src"): every file passing the filters matches.

	termIndex := make(map[string]uint32, len(ctx.terms))
	for _, t := range ctx.terms {
		termIndex[t.Text] = t.Index
	}

	patterns, _, err := buildPatterns(ctx.terms)
	if err != nil {
		return nil, err
	}

	return &types.QueryPlan{
		Terms:         ctx.terms,
		AST:           boolExpr,
		Filters:       filters,
		Patterns:      patterns,
		TermIndex:     termIndex,
		RequiredTerms: ctx.required,
		ExcludedTerms: ctx.excluded,
		AnyTerm:       opts.AnyTerm,
		StrictMode:    opts.Strict,
		Raw:           raw,
	}, nil
}

// Matches evaluates the plan's boolean AST against a set of matched
// term indices for one candidate (block or file). A nil AST (the
// filters-only case) matches unconditionally.
func Matches(ast *types.BoolExpr, matched map[uint32]struct{}) bool {
	if ast == nil {
		return true
	}
	switch ast.Op {
	case types.OpTerm:
		_, ok := matched[ast.Term.Index]
		return ok
	case types.OpAnd:
		for _, c := range ast.Children {
			if !Matches(c, matched) {
				return false
			}
		}
		return true
	case types.OpOr:
		for _, c := range ast.Children {
			if Matches(c, matched) {
				return true
			}
		}
		return false
	case types.OpNot:
		return !Matches(ast.Children[0], matched)
	default:
		return false
	}
}
