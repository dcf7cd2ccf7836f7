package query

import (
	"fmt"
	"regexp"

	"github.com/probelabs/probe/internal/types"
)

// buildPatterns compiles one case-insensitive regexp per term (§4.1
// step 4): exact-quoted terms get literal word boundaries on both
// sides; non-exact unquoted terms compile to a bare literal match and
// rely on MatchesTerm to apply the identifier-boundary rule, since
// Go's regexp engine has no lookaround to express "not a strict
// substring of a larger identifier" directly in the pattern.
func buildPatterns(terms []types.Term) ([]types.TermPattern, []*regexp.Regexp, error) {
	patterns := make([]types.TermPattern, 0, len(terms))
	compiled := make([]*regexp.Regexp, 0, len(terms))

	for _, t := range terms {
		var src string
		if t.QuotedExact {
			src = `\b` + regexp.QuoteMeta(t.Text) + `\b`
		} else {
			src = regexp.QuoteMeta(t.Text)
		}
		re, err := regexp.Compile(`(?i)` + src)
		if err != nil {
			return nil, nil, fmt.Errorf("compiling pattern for term %q: %w", t.Text, err)
		}
		patterns = append(patterns, types.TermPattern{TermIndex: t.Index, Source: src, Exact: t.QuotedExact})
		compiled = append(compiled, re)
	}

	return patterns, compiled, nil
}

// MatchesTerm reports whether a term's compiled regexp finds a hit in
// text honoring identifier-boundary rules. Exact (quoted) terms were
// already compiled with \b on both sides, so a plain regexp match
// suffices. Non-exact terms were compiled as a bare literal, so every
// candidate occurrence is walked here and accepted only if it sits on a
// real boundary: start/end of text, a non-word character, an
// underscore, or a lower-to-upper case transition (a camelCase segment
// break). An occurrence flanked by an ordinary identifier character on
// either side is a strict substring of a larger identifier — e.g. "cat"
// inside "category" or "concatenate" — and is rejected.
func MatchesTerm(re *regexp.Regexp, text string, exact bool) bool {
	if exact {
		return re.MatchString(text)
	}
	for _, loc := range re.FindAllStringIndex(text, -1) {
		if isIdentifierBoundary(text, loc[0], loc[1]) {
			return true
		}
	}
	return false
}

// CountMatches counts how many of a term's occurrences in text are
// valid under the same exactness/identifier-boundary rule MatchesTerm
// applies, rather than stopping at the first hit — used by the ranker
// to build term-frequency counts.
func CountMatches(re *regexp.Regexp, text string, exact bool) int {
	if exact {
		return len(re.FindAllStringIndex(text, -1))
	}
	count := 0
	for _, loc := range re.FindAllStringIndex(text, -1) {
		if isIdentifierBoundary(text, loc[0], loc[1]) {
			count++
		}
	}
	return count
}

func isIdentifierBoundary(text string, start, end int) bool {
	return leftBoundaryOK(text, start) && rightBoundaryOK(text, end)
}

func leftBoundaryOK(text string, start int) bool {
	if start == 0 {
		return true
	}
	before := text[start-1]
	if !isIdentByte(before) {
		return true
	}
	if before == '_' {
		return true
	}
	return isLowerByte(before) && isUpperByte(text[start])
}

func rightBoundaryOK(text string, end int) bool {
	if end >= len(text) {
		return true
	}
	after := text[end]
	if !isIdentByte(after) {
		return true
	}
	if after == '_' {
		return true
	}
	return isLowerByte(text[end-1]) && isUpperByte(after)
}

func isIdentByte(b byte) bool {
	return b == '_' || (b >= '0' && b <= '9') || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func isLowerByte(b byte) bool { return b >= 'a' && b <= 'z' }

func isUpperByte(b byte) bool { return b >= 'A' && b <= 'Z' }

// CompiledPatterns pairs each term's dense index with its compiled
// matcher and exactness flag, in term-index order, ready for the
// scanner's per-line loop.
type CompiledPatterns struct {
	Patterns []*regexp.Regexp
	Exact    []bool
	Index    []uint32
}

// CompilePatterns builds a CompiledPatterns from a QueryPlan's pattern set.
func CompilePatterns(plan *types.QueryPlan) (*CompiledPatterns, error) {
	out := &CompiledPatterns{}
	for _, p := range plan.Patterns {
		re, err := regexp.Compile(`(?i)` + p.Source)
		if err != nil {
			return nil, err
		}
		out.Patterns = append(out.Patterns, re)
		out.Exact = append(out.Exact, p.Exact)
		out.Index = append(out.Index, p.TermIndex)
	}
	return out, nil
}
