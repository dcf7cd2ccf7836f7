package format

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/probelabs/probe/internal/types"
)

func sampleBlocks() []*types.Block {
	return []*types.Block{
		{File: "a.go", StartLine: 1, EndLine: 3, NodeType: types.NodeFunction, Code: "func A() {}\n", Score: 1.5, Rank: 1},
		{File: "b.go", StartLine: 10, EndLine: 10, NodeType: types.NodeContext, Code: "x := 1\n", Score: 0.5, Rank: 2},
	}
}

func TestValidRecognizesAllFormats(t *testing.T) {
	for _, f := range []string{Terminal, Plain, Markdown, JSON, XML, Outline} {
		assert.True(t, Valid(f), f)
	}
	assert.False(t, Valid("yaml"))
}

func TestRenderPlainIncludesHeaderAndCode(t *testing.T) {
	out, err := Render(sampleBlocks(), Plain, false, false)
	require.NoError(t, err)
	assert.Contains(t, out, "a.go:1-3")
	assert.Contains(t, out, "func A() {}")
}

func TestRenderPlainExcludesFilenames(t *testing.T) {
	out, err := Render(sampleBlocks(), Plain, false, true)
	require.NoError(t, err)
	assert.NotContains(t, out, "a.go:1-3")
	assert.Contains(t, out, "func A() {}")
}

func TestRenderFilesOnlyDedupsAndSorts(t *testing.T) {
	blocks := append(sampleBlocks(), &types.Block{File: "a.go", StartLine: 20, EndLine: 21, Code: "y"})
	out, err := Render(blocks, Plain, true, false)
	require.NoError(t, err)
	assert.Equal(t, "a.go\nb.go", out)
}

func TestRenderMarkdownWrapsCodeFence(t *testing.T) {
	out, err := Render(sampleBlocks(), Markdown, false, false)
	require.NoError(t, err)
	assert.Contains(t, out, "```\nfunc A() {}\n```")
	assert.Contains(t, out, "### a.go:1-3")
}

func TestRenderJSONRoundTrips(t *testing.T) {
	out, err := Render(sampleBlocks(), JSON, false, false)
	require.NoError(t, err)
	assert.Contains(t, out, `"file": "a.go"`)
	assert.Contains(t, out, `"rank": 1`)
}

func TestRenderXMLHasHeaderAndResults(t *testing.T) {
	out, err := Render(sampleBlocks(), XML, false, false)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, xmlHeaderPrefix))
	assert.Contains(t, out, "<results>")
	assert.Contains(t, out, "<file>a.go</file>")
}

func TestRenderOutlineGroupsByFile(t *testing.T) {
	out, err := Render(sampleBlocks(), Outline, false, false)
	require.NoError(t, err)
	assert.Contains(t, out, "a.go\n")
	assert.Contains(t, out, "b.go\n")
}

func TestRenderUnknownFormatErrors(t *testing.T) {
	_, err := Render(sampleBlocks(), "yaml", false, false)
	assert.Error(t, err)
}

const xmlHeaderPrefix = `<?xml version="1.0" encoding="UTF-8"?>`
