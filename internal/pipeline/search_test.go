package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/probelabs/probe/internal/config"
)

func writeSearchFixture(t *testing.T, dir string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "widget.go"), []byte(`package fixture

// computeWidgetTotal sums widget prices.
func computeWidgetTotal(prices []int) int {
	total := 0
	for _, p := range prices {
		total += p
	}
	return total
}
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.go"), []byte(`package fixture

func unrelated() string {
	return "nothing here"
}
`), 0o644))
}

func TestSearchFindsMatchingBlock(t *testing.T) {
	dir := t.TempDir()
	writeSearchFixture(t, dir)
	cfg := config.Default(dir)

	result, err := Search(context.Background(), SearchRequest{
		Query: "widget",
		Root:  dir,
		Cfg:   cfg,
	})
	require.NoError(t, err)
	require.Len(t, result.Blocks, 1)
	assert.Contains(t, result.Blocks[0].Code, "computeWidgetTotal")
}

func TestSearchRespectsMaxResults(t *testing.T) {
	dir := t.TempDir()
	writeSearchFixture(t, dir)
	cfg := config.Default(dir)

	result, err := Search(context.Background(), SearchRequest{
		Query:      "func",
		Root:       dir,
		Cfg:        cfg,
		MaxResults: 1,
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(result.Blocks), 1)
	assert.True(t, result.Diagnostics.ResultsCapped || result.Diagnostics.TotalCandidates <= 1)
}

func TestSearchMissingRootReturnsError(t *testing.T) {
	cfg := config.Default("/no/such/root")
	_, err := Search(context.Background(), SearchRequest{
		Query: "widget",
		Root:  "/no/such/root",
		Cfg:   cfg,
	})
	assert.Error(t, err)
}

func TestSearchEmptyQueryReturnsError(t *testing.T) {
	dir := t.TempDir()
	writeSearchFixture(t, dir)
	cfg := config.Default(dir)

	_, err := Search(context.Background(), SearchRequest{Query: "", Root: dir, Cfg: cfg})
	assert.Error(t, err)
}
