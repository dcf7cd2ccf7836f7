package block

import (
	"sort"

	"github.com/probelabs/probe/internal/types"
)

// Merge combines adjacent same-file blocks whose line gap is within
// threshold, repeating to a fixed point (§4.5, invariant 2): after one
// merge pass, two previously non-adjacent blocks can become adjacent
// through a third that bridged them, so merging keeps iterating until a
// pass produces no change.
//
// Combination rule: the merged span is the union [min(starts),
// max(ends)]; MatchedLines/LinesOfMatch union; BlockTotalMatches sums;
// BlockUniqueTerms is recomputed from the union of matched keywords;
// FileUniqueTerms/FileTotalMatches are copied from the first part,
// since both parts come from the same file; Symbols
// concatenates (deduplicated by name+span); NodeType becomes
// types.NodeMerged once a merge actually happens. Code is re-sliced
// from linesByFile's split source lines over the merged [start,end]
// span — not just the stronger sub-block's original text — so a
// merged block's Code actually contains both parts. A file missing
// from linesByFile (content unavailable to the caller) falls back to
// the dominant sub-block's own Code.
func Merge(blocks []*types.Block, threshold int, linesByFile map[string][]string) []*types.Block {
	if len(blocks) <= 1 {
		return blocks
	}

	byFile := make(map[string][]*types.Block)
	var fileOrder []string
	for _, b := range blocks {
		if _, ok := byFile[b.File]; !ok {
			fileOrder = append(fileOrder, b.File)
		}
		byFile[b.File] = append(byFile[b.File], b)
	}

	out := make([]*types.Block, 0, len(blocks))
	for _, file := range fileOrder {
		out = append(out, mergeFile(byFile[file], threshold, linesByFile[file])...)
	}
	return out
}

func mergeFile(blocks []*types.Block, threshold int, lines []string) []*types.Block {
	current := append([]*types.Block(nil), blocks...)

	for {
		sort.Slice(current, func(i, j int) bool { return current[i].StartLine < current[j].StartLine })

		merged := make([]*types.Block, 0, len(current))
		changed := false
		i := 0
		for i < len(current) {
			acc := current[i]
			j := i + 1
			for j < len(current) && current[j].StartLine-acc.EndLine <= threshold {
				acc = combine(acc, current[j], lines)
				changed = true
				j++
			}
			merged = append(merged, acc)
			i = j
		}

		current = merged
		if !changed {
			return current
		}
	}
}

func combine(a, b *types.Block, sourceLines []string) *types.Block {
	start := a.StartLine
	if b.StartLine < start {
		start = b.StartLine
	}
	end := a.EndLine
	if b.EndLine > end {
		end = b.EndLine
	}

	lineSet := unionLineSets(a.LinesOfMatch, b.LinesOfMatch)
	matchedLines := make([]int, 0, len(lineSet))
	for ln := range lineSet {
		matchedLines = append(matchedLines, ln)
	}
	sort.Ints(matchedLines)

	// invariant 2: block_unique_terms is the size of the union of
	// matched term indices across the parts, not a max or a sum; the
	// keyword union stands in for that union since Block doesn't carry
	// raw term indices.
	keywords := unionStrings(a.MatchedKeywords, b.MatchedKeywords)

	code := a.Code
	if sourceLines != nil {
		code = joinLines(sourceLines, start, end)
	}

	return &types.Block{
		File:              a.File,
		StartLine:         start,
		EndLine:           end,
		NodeType:          types.NodeMerged,
		Code:              code,
		LinesOfMatch:      lineSet,
		BlockUniqueTerms:  len(keywords),
		BlockTotalMatches: a.BlockTotalMatches + b.BlockTotalMatches,
		FileUniqueTerms:   a.FileUniqueTerms,
		FileTotalMatches:  a.FileTotalMatches,
		MatchedLines:      matchedLines,
		MatchedKeywords:   keywords,
		SymbolSignature:   mergedSignature(a, b),
		ParentContext:     a.ParentContext,
		Symbols:           unionSymbols(a.Symbols, b.Symbols),
		Score:             maxFloat(a.Score, b.Score),
	}
}

func mergedSignature(a, b *types.Block) string {
	if a.SymbolSignature == "" {
		return b.SymbolSignature
	}
	if b.SymbolSignature == "" || a.SymbolSignature == b.SymbolSignature {
		return a.SymbolSignature
	}
	return a.SymbolSignature + ", " + b.SymbolSignature
}

func unionLineSets(a, b map[int]struct{}) map[int]struct{} {
	out := make(map[int]struct{}, len(a)+len(b))
	for k := range a {
		out[k] = struct{}{}
	}
	for k := range b {
		out[k] = struct{}{}
	}
	return out
}

func unionStrings(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range append(append([]string(nil), a...), b...) {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func unionSymbols(a, b []types.SymbolSpan) []types.SymbolSpan {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]types.SymbolSpan, 0, len(a)+len(b))
	for _, s := range append(append([]types.SymbolSpan(nil), a...), b...) {
		key := s.Name + ":" + itoaSym(s.StartLine) + "-" + itoaSym(s.EndLine)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	return out
}

func itoaSym(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
