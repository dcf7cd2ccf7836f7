// Package rank implements the BM25 + TF-IDF hybrid scorer (§4.6):
// each surviving block is tokenized into a sparse term-frequency
// vector, scored by BM25 and log-normalized TF-IDF against the same
// IDF table, combined by reciprocal-rank fusion, then adjusted by the
// block-level w1-w5 signals before a final stable sort.
//
// A query whose boolean AST is nothing but OR (or a bare term) scores
// with a single flat dot product against the whole query vector — the
// "simple" path. Anything with an AND or a NOT in it decomposes into
// one sub-vector per top-level OR branch (an "OR-leaf"), scores each
// leaf independently, and keeps the best: a block matching `(auth AND
// login) OR (auth AND signin)` should be scored on whichever half of
// the query it actually satisfies, not diluted by averaging across
// both.
package rank

import (
	"math"
	"sort"
	"strings"

	"github.com/probelabs/probe/internal/config"
	"github.com/probelabs/probe/internal/query"
	"github.com/probelabs/probe/internal/types"
)

const (
	bm25K1 = 1.2
	bm25B  = 0.75
	rrfK   = 60
)

// FilenameRequiredMatch reports, per file path, whether any required
// query term matched that file's name — used for the w2 signal.
type FilenameRequiredMatch map[string]bool

// Options configures one ranking pass.
type Options struct {
	Reranker              string // "tfidf" | "bm25" | "hybrid" (default)
	Weights               config.RankWeights
	FilenameRequiredMatch FilenameRequiredMatch
}

// Rank scores, sorts, and assigns 1-based Rank to every block in place,
// returning the same slice re-sorted by descending Score.
func Rank(blocks []*types.Block, plan *types.QueryPlan, opts Options) ([]*types.Block, error) {
	if len(blocks) == 0 {
		return blocks, nil
	}

	compiled, err := query.CompilePatterns(plan)
	if err != nil {
		return nil, err
	}

	docVectors := make([]map[uint32]int, len(blocks))
	docLens := make([]int, len(blocks))
	docFreq := make(map[uint32]int)

	for i, b := range blocks {
		tf := tokenize(b.Code, compiled)
		docVectors[i] = tf
		docLens[i] = wordCount(b.Code)
		for term := range tf {
			docFreq[term]++
		}
	}

	avgDocLen := averageOf(docLens)
	n := float64(len(blocks))

	idf := make(map[uint32]float64, len(docFreq))
	for term, df := range docFreq {
		idf[term] = math.Log((n-float64(df)+0.5)/(float64(df)+0.5) + 1)
	}
	idfVec := newSparseVector(idf)

	general := !isSimpleOr(plan.AST)
	var leaves [][]uint32
	if general {
		leaves = orLeaves(plan.AST)
	}

	bm25Scores := make([]float64, len(blocks))
	tfidfScores := make([]float64, len(blocks))
	for i := range blocks {
		if general && len(leaves) > 0 {
			bm25Scores[i], tfidfScores[i] = bestLeafScore(docVectors[i], leaves, docLens[i], avgDocLen, idfVec)
		} else {
			bm25Scores[i] = bm25Score(docVectors[i], docLens[i], avgDocLen, idfVec)
			tfidfScores[i] = tfidfScore(docVectors[i], idfVec)
		}
	}

	bm25Rank := rankOf(bm25Scores)
	tfidfRank := rankOf(tfidfScores)

	totalTerms := len(plan.Terms)
	if totalTerms == 0 {
		totalTerms = 1
	}

	for i, b := range blocks {
		var base float64
		switch opts.Reranker {
		case "bm25":
			base = bm25Scores[i]
		case "tfidf":
			base = tfidfScores[i]
		default:
			base = 1.0/(rrfK+float64(bm25Rank[i])) + 1.0/(rrfK+float64(tfidfRank[i]))
		}

		b.BM25Score = bm25Scores[i]
		b.TFIDFScore = tfidfScores[i]

		score := base
		score += opts.Weights.UniqueTerms * (float64(b.BlockUniqueTerms) / float64(totalTerms))
		if opts.FilenameRequiredMatch != nil && opts.FilenameRequiredMatch[b.File] {
			score += opts.Weights.FilenameMatch
		}
		score += opts.Weights.FileUniqueTerms * (float64(b.FileUniqueTerms) / float64(totalTerms))
		if b.BlockTotalMatches > 0 {
			score -= opts.Weights.IsolatedPenalty * (1.0 / float64(b.BlockTotalMatches))
		}
		if b.NodeType == types.NodeContext {
			score += opts.Weights.ContextFallback
		}

		b.Score = score
	}

	sort.SliceStable(blocks, func(i, j int) bool { return blocks[i].Score > blocks[j].Score })
	for i, b := range blocks {
		b.Rank = i + 1
	}

	return blocks, nil
}

// tokenize counts, per query term, how many times its pattern matches
// inside the block's code — honoring the same identifier-boundary rule
// the scanner applies, so ranking never weighs a substring hit like
// "cat" inside "category" as a real term occurrence — a sparse TF
// vector keyed by term index.
func tokenize(code string, compiled *query.CompiledPatterns) map[uint32]int {
	tf := make(map[uint32]int, len(compiled.Patterns))
	for i, re := range compiled.Patterns {
		count := query.CountMatches(re, code, compiled.Exact[i])
		if count > 0 {
			tf[compiled.Index[i]] = count
		}
	}
	return tf
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}

func averageOf(lens []int) float64 {
	if len(lens) == 0 {
		return 0
	}
	total := 0
	for _, l := range lens {
		total += l
	}
	return float64(total) / float64(len(lens))
}

// isSimpleOr reports whether ast has no boolean connective besides OR
// (a bare term, or an OR tree of bare terms, both qualify) — the §4.6
// condition for the simple scoring path. Any AND or NOT anywhere in the
// tree forces the general, per-leaf path.
func isSimpleOr(ast *types.BoolExpr) bool {
	if ast == nil {
		return true
	}
	switch ast.Op {
	case types.OpTerm:
		return true
	case types.OpOr:
		for _, c := range ast.Children {
			if !isSimpleOr(c) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// orLeaves returns, for the general scoring path, one term-index set
// per top-level OR branch (or a single set for the whole tree when the
// top-level operator isn't OR). Each leaf is scored independently and
// the best score across leaves wins (§4.6 "general SIMD" combine-by-
// maximum rule).
func orLeaves(ast *types.BoolExpr) [][]uint32 {
	if ast == nil {
		return nil
	}
	if ast.Op == types.OpOr {
		leaves := make([][]uint32, 0, len(ast.Children))
		for _, c := range ast.Children {
			leaves = append(leaves, leafTerms(c))
		}
		return leaves
	}
	return [][]uint32{leafTerms(ast)}
}

// leafTerms collects every positively-matched term under ast. A NOT
// subtree names an exclusion, not a positive scoring signal — its veto
// is already enforced by QueryPlan.RequiredSatisfied, so its terms
// contribute nothing here.
func leafTerms(ast *types.BoolExpr) []uint32 {
	if ast == nil {
		return nil
	}
	switch ast.Op {
	case types.OpTerm:
		if ast.Term == nil {
			return nil
		}
		return []uint32{ast.Term.Index}
	case types.OpNot:
		return nil
	default:
		var out []uint32
		for _, c := range ast.Children {
			out = append(out, leafTerms(c)...)
		}
		return out
	}
}

// bestLeafScore restricts tf to each leaf's term set in turn, scores
// each restricted vector independently, and returns the per-metric
// maximum across leaves.
func bestLeafScore(tf map[uint32]int, leaves [][]uint32, docLen int, avgDocLen float64, idfVec sparseVector) (bm25, tfidf float64) {
	first := true
	for _, leaf := range leaves {
		if len(leaf) == 0 {
			continue
		}
		sub := make(map[uint32]int, len(leaf))
		for _, t := range leaf {
			if c, ok := tf[t]; ok {
				sub[t] = c
			}
		}
		b := bm25Score(sub, docLen, avgDocLen, idfVec)
		tI := tfidfScore(sub, idfVec)
		if first || b > bm25 {
			bm25 = b
		}
		if first || tI > tfidf {
			tfidf = tI
		}
		first = false
	}
	return bm25, tfidf
}

// sparseVector is a TF/IDF vector sorted ascending by term index (§4.6
// "sparse vectors are stored sorted by term index so dot-products can
// be computed by a two-pointer merge"). This module has no SIMD
// intrinsic dependency in its stack to drive 8-lane lanes explicitly,
// so the merge below is the scalar fallback the spec allows, written
// as a straight-line comparison loop so the runtime can auto-vectorize
// it the way the standard library's own byte-scanning primitives do
// (see DESIGN.md).
type sparseVector struct {
	idx []uint32
	val []float64
}

func newSparseVector(weights map[uint32]float64) sparseVector {
	v := sparseVector{idx: make([]uint32, 0, len(weights)), val: make([]float64, 0, len(weights))}
	for k := range weights {
		v.idx = append(v.idx, k)
	}
	sort.Slice(v.idx, func(i, j int) bool { return v.idx[i] < v.idx[j] })
	for _, k := range v.idx {
		v.val = append(v.val, weights[k])
	}
	return v
}

// sortedTF returns tf's (index, count) pairs sorted ascending by index.
func sortedTF(tf map[uint32]int) ([]uint32, []int) {
	idx := make([]uint32, 0, len(tf))
	for k := range tf {
		idx = append(idx, k)
	}
	sort.Slice(idx, func(i, j int) bool { return idx[i] < idx[j] })
	val := make([]int, len(idx))
	for i, k := range idx {
		val[i] = tf[k]
	}
	return idx, val
}

// bm25Score merges a block's sorted TF vector against the query's
// sorted IDF vector, accumulating the BM25 term only where both sides
// have the same term index.
func bm25Score(tf map[uint32]int, docLen int, avgDocLen float64, idfVec sparseVector) float64 {
	if avgDocLen == 0 {
		avgDocLen = 1
	}
	tIdx, tVal := sortedTF(tf)
	var score float64
	i, j := 0, 0
	for i < len(tIdx) && j < len(idfVec.idx) {
		switch {
		case tIdx[i] < idfVec.idx[j]:
			i++
		case tIdx[i] > idfVec.idx[j]:
			j++
		default:
			f := float64(tVal[i])
			numerator := f * (bm25K1 + 1)
			denominator := f + bm25K1*(1-bm25B+bm25B*float64(docLen)/avgDocLen)
			score += idfVec.val[j] * (numerator / denominator)
			i++
			j++
		}
	}
	return score
}

// tfidfScore merges a block's sorted TF vector against the query's
// sorted IDF vector using log-normalized term frequency.
func tfidfScore(tf map[uint32]int, idfVec sparseVector) float64 {
	tIdx, tVal := sortedTF(tf)
	var score float64
	i, j := 0, 0
	for i < len(tIdx) && j < len(idfVec.idx) {
		switch {
		case tIdx[i] < idfVec.idx[j]:
			i++
		case tIdx[i] > idfVec.idx[j]:
			j++
		default:
			logTF := 1 + math.Log(float64(tVal[i]))
			score += logTF * idfVec.val[j]
			i++
			j++
		}
	}
	return score
}

// rankOf returns each element's 1-based rank by descending score,
// ties broken by original index for stability.
func rankOf(scores []float64) []int {
	idx := make([]int, len(scores))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return scores[idx[a]] > scores[idx[b]] })

	ranks := make([]int, len(scores))
	for pos, originalIdx := range idx {
		ranks[originalIdx] = pos + 1
	}
	return ranks
}
