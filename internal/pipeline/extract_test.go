package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/probelabs/probe/internal/extractref"
	"github.com/probelabs/probe/internal/syntax"
)

func writeGoFile(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "sample.go")
	content := `package sample

func Foo() int {
	return 1
}

func Bar() int {
	return 2
}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestExtractBarePathReturnsWholeFile(t *testing.T) {
	dir := t.TempDir()
	path := writeGoFile(t, dir)

	blocks, err := Extract(syntax.NewRegistry(), ExtractRequest{Root: dir, Ref: extractref.Ref{Path: filepath.Base(path)}})
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Contains(t, blocks[0].Code, "func Foo")
	assert.Contains(t, blocks[0].Code, "func Bar")
}

func TestExtractByLineGrowsToEnclosingFunction(t *testing.T) {
	dir := t.TempDir()
	path := writeGoFile(t, dir)

	blocks, err := Extract(syntax.NewRegistry(), ExtractRequest{
		Root: dir,
		Ref:  extractref.Ref{Path: filepath.Base(path), StartLine: 4, EndLine: 4},
	})
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Contains(t, blocks[0].Code, "func Foo")
	assert.NotContains(t, blocks[0].Code, "func Bar")
}

func TestExtractBySymbolFindsNamedFunction(t *testing.T) {
	dir := t.TempDir()
	path := writeGoFile(t, dir)

	blocks, err := Extract(syntax.NewRegistry(), ExtractRequest{
		Root: dir,
		Ref:  extractref.Ref{Path: filepath.Base(path), Symbol: "Bar"},
	})
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Contains(t, blocks[0].Code, "func Bar")
}

func TestExtractAllSymbolsReturnsEveryTopLevelFunction(t *testing.T) {
	dir := t.TempDir()
	path := writeGoFile(t, dir)

	blocks, err := Extract(syntax.NewRegistry(), ExtractRequest{
		Root: dir,
		Ref:  extractref.Ref{Path: filepath.Base(path)},
		AllSymbols: true,
	})
	require.NoError(t, err)
	assert.Len(t, blocks, 2)
}

func TestExtractMissingFileReturnsFileError(t *testing.T) {
	_, err := Extract(syntax.NewRegistry(), ExtractRequest{Ref: extractref.Ref{Path: "/no/such/file.go"}})
	assert.Error(t, err)
}
