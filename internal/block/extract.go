// Package block extracts and merges the searchable code units (§4.4,
// invariants 1-2): grow each matched line to its smallest acceptable
// syntax-tree parent when a grammar is available, falling back to a
// fixed-size context window otherwise, then merge adjacent blocks.
package block

import (
	"sort"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/probelabs/probe/internal/query"
	"github.com/probelabs/probe/internal/syntax"
	"github.com/probelabs/probe/internal/types"
)

// Extractor turns one file's scan result into a set of candidate
// blocks.
type Extractor struct {
	Registry     *syntax.Registry
	ContextLines int
}

// NewExtractor builds an Extractor with the given syntax registry and
// fallback context-window size (in lines on each side of a hit).
func NewExtractor(registry *syntax.Registry, contextLines int) *Extractor {
	if contextLines <= 0 {
		contextLines = 10
	}
	return &Extractor{Registry: registry, ContextLines: contextLines}
}

type blockKey struct {
	start int
	end   int
}

// ExtractBlocks builds the candidate blocks for one file. lang is the
// canonical language name (from syntax.Registry.LanguageForExt); an
// empty or unknown language degrades every hit to a context window.
func (e *Extractor) ExtractBlocks(result *types.FileScanResult, content []byte, plan *types.QueryPlan, lang string) []*types.Block {
	lines := splitLines(content)
	lineToTerms := invertLineHits(result.Lines)

	matchedLines := make([]int, 0, len(lineToTerms))
	for ln := range lineToTerms {
		matchedLines = append(matchedLines, ln)
	}
	sort.Ints(matchedLines)
	if len(matchedLines) == 0 {
		return nil
	}

	var provider syntax.Provider
	var tree *tree_sitter.Tree
	if e.Registry != nil && lang != "" {
		provider = e.Registry.Provider(lang)
		if t, err := provider.Parse(content); err == nil {
			tree = t
		} else {
			provider = nil
		}
	}

	seen := make(map[blockKey]*blockAccumulator)
	var order []blockKey

	for _, ln := range matchedLines {
		var start, end int
		var nodeType types.NodeType
		var symbolName string

		if provider != nil && tree != nil {
			if node := provider.FindRelatedCodeNode(tree, uint32(ln-1), 0); node != nil {
				start = int(node.StartPosition().Row) + 1
				end = int(node.EndPosition().Row) + 1
				nodeType = nodeTypeForKind(node.Kind())
				symbolName = syntax.NodeName(node, content)
			}
		}
		if start == 0 {
			start, end = contextWindow(ln, len(lines), e.ContextLines)
			nodeType = types.NodeContext
		}

		key := blockKey{start: start, end: end}
		acc, ok := seen[key]
		if !ok {
			acc = &blockAccumulator{nodeType: nodeType, symbolName: symbolName}
			seen[key] = acc
			order = append(order, key)
		}
		acc.matchedLines = append(acc.matchedLines, ln)
	}

	blocks := make([]*types.Block, 0, len(order))
	for _, key := range order {
		acc := seen[key]
		matchedTerms := termsInRange(lineToTerms, key.start, key.end)
		if !plan.RequiredSatisfied(matchedTerms) {
			continue
		}
		if !query.Matches(plan.AST, matchedTerms) {
			continue
		}

		blk := &types.Block{
			File:              result.Path,
			StartLine:         key.start,
			EndLine:           key.end,
			NodeType:          acc.nodeType,
			Code:              joinLines(lines, key.start, key.end),
			LinesOfMatch:      linesOfMatchSet(acc.matchedLines),
			BlockUniqueTerms:  len(matchedTerms),
			BlockTotalMatches: countMatches(lineToTerms, key.start, key.end),
			FileUniqueTerms:   result.Lines.UniqueTerms(),
			FileTotalMatches:  result.Lines.TotalMatches(),
			MatchedLines:      dedupSortedInts(acc.matchedLines),
			MatchedKeywords:   termTexts(plan, matchedTerms),
			SymbolSignature:   acc.symbolName,
		}
		if acc.symbolName != "" {
			blk.Symbols = []types.SymbolSpan{{Name: acc.symbolName, StartLine: key.start, EndLine: key.end, Kind: acc.nodeType}}
		}
		blocks = append(blocks, blk)
	}

	return blocks
}

type blockAccumulator struct {
	nodeType     types.NodeType
	symbolName   string
	matchedLines []int
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

func invertLineHits(hits types.LineHits) map[int]map[uint32]struct{} {
	out := make(map[int]map[uint32]struct{})
	for term, lines := range hits {
		for _, ln := range lines {
			if out[ln] == nil {
				out[ln] = make(map[uint32]struct{})
			}
			out[ln][term] = struct{}{}
		}
	}
	return out
}

func termsInRange(lineToTerms map[int]map[uint32]struct{}, start, end int) map[uint32]struct{} {
	out := make(map[uint32]struct{})
	for ln, terms := range lineToTerms {
		if ln < start || ln > end {
			continue
		}
		for t := range terms {
			out[t] = struct{}{}
		}
	}
	return out
}

func countMatches(lineToTerms map[int]map[uint32]struct{}, start, end int) int {
	total := 0
	for ln, terms := range lineToTerms {
		if ln < start || ln > end {
			continue
		}
		total += len(terms)
	}
	return total
}

func termTexts(plan *types.QueryPlan, termSet map[uint32]struct{}) []string {
	out := make([]string, 0, len(termSet))
	for _, t := range plan.Terms {
		if _, ok := termSet[t.Index]; ok {
			out = append(out, t.Text)
		}
	}
	sort.Strings(out)
	return out
}

func linesOfMatchSet(lines []int) map[int]struct{} {
	out := make(map[int]struct{}, len(lines))
	for _, ln := range lines {
		out[ln] = struct{}{}
	}
	return out
}

func dedupSortedInts(in []int) []int {
	cp := append([]int(nil), in...)
	sort.Ints(cp)
	out := cp[:0]
	var last int
	first := true
	for _, v := range cp {
		if first || v != last {
			out = append(out, v)
			last = v
			first = false
		}
	}
	return out
}

// SplitLines splits content on '\n', exposing the extractor's own line
// splitting so a caller that reads a file once can hand the same lines
// to both ExtractBlocks and Merge (which needs them to re-slice a
// merged block's Code).
func SplitLines(content []byte) []string {
	return splitLines(content)
}

func splitLines(content []byte) []string {
	lines := make([]string, 0, 256)
	start := 0
	for i, b := range content {
		if b == '\n' {
			lines = append(lines, string(content[start:i]))
			start = i + 1
		}
	}
	lines = append(lines, string(content[start:]))
	return lines
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
	out := lines[start-1 : end]
	total := 0
	for _, l := range out {
		total += len(l) + 1
	}
	buf := make([]byte, 0, total)
	for i, l := range out {
		if i > 0 {
			buf = append(buf, '\n')
		}
		buf = append(buf, l...)
	}
	return string(buf)
}
