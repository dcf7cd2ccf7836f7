package rank

import (
	"testing"

	"github.com/probelabs/probe/internal/config"
	"github.com/probelabs/probe/internal/query"
	"github.com/probelabs/probe/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultWeights() config.RankWeights {
	return config.RankWeights{
		UniqueTerms:     config.DefaultWeightUniqueTerms,
		FilenameMatch:   config.DefaultWeightFilenameMatch,
		FileUniqueTerms: config.DefaultWeightFileUniqueTerms,
		IsolatedPenalty: config.DefaultWeightIsolatedPenalty,
		ContextFallback: config.DefaultWeightContextFallback,
	}
}

func TestRankOrdersDenserMatchHigher(t *testing.T) {
	plan, err := query.Compile("handler", query.Options{})
	require.NoError(t, err)

	blocks := []*types.Block{
		{File: "a.go", Code: "func handler() { handler(); handler(); }", BlockUniqueTerms: 1, BlockTotalMatches: 3, FileUniqueTerms: 1, FileTotalMatches: 3, NodeType: types.NodeFunction},
		{File: "b.go", Code: "func other() { /* mentions handler once */ }", BlockUniqueTerms: 1, BlockTotalMatches: 1, FileUniqueTerms: 1, FileTotalMatches: 1, NodeType: types.NodeFunction},
	}

	ranked, err := Rank(blocks, plan, Options{Reranker: "bm25", Weights: defaultWeights()})
	require.NoError(t, err)

	assert.Equal(t, "a.go", ranked[0].File)
	assert.Equal(t, 1, ranked[0].Rank)
	assert.Equal(t, 2, ranked[1].Rank)
}

func TestRankPenalizesContextFallback(t *testing.T) {
	plan, err := query.Compile("widget", query.Options{})
	require.NoError(t, err)

	functionBlock := &types.Block{File: "a.go", Code: "func widget() {}", BlockUniqueTerms: 1, BlockTotalMatches: 1, FileUniqueTerms: 1, FileTotalMatches: 1, NodeType: types.NodeFunction}
	contextBlock := &types.Block{File: "b.go", Code: "// widget\nsome other code\nwidget here\nmore code", BlockUniqueTerms: 1, BlockTotalMatches: 1, FileUniqueTerms: 1, FileTotalMatches: 1, NodeType: types.NodeContext}

	ranked, err := Rank([]*types.Block{contextBlock, functionBlock}, plan, Options{Reranker: "hybrid", Weights: defaultWeights()})
	require.NoError(t, err)

	assert.Equal(t, types.NodeFunction, ranked[0].NodeType, "a real parent should outrank an equally-scored context fallback")
}

func TestRankAssignsSequentialOneBasedRanks(t *testing.T) {
	plan, err := query.Compile("foo", query.Options{})
	require.NoError(t, err)

	blocks := []*types.Block{
		{File: "a.go", Code: "foo", NodeType: types.NodeFunction},
		{File: "b.go", Code: "foo foo", NodeType: types.NodeFunction},
		{File: "c.go", Code: "foo foo foo", NodeType: types.NodeFunction},
	}
	ranked, err := Rank(blocks, plan, Options{Weights: defaultWeights()})
	require.NoError(t, err)

	for i, b := range ranked {
		assert.Equal(t, i+1, b.Rank)
	}
}

func TestRankEmptyInputIsNoop(t *testing.T) {
	plan, err := query.Compile("foo", query.Options{})
	require.NoError(t, err)
	ranked, err := Rank(nil, plan, Options{Weights: defaultWeights()})
	require.NoError(t, err)
	assert.Empty(t, ranked)
}
