package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/probelabs/probe/internal/config"
	"github.com/probelabs/probe/internal/extractref"
	"github.com/probelabs/probe/internal/query"
	"github.com/probelabs/probe/internal/syntax"
)

// TestE2E1MergeAdjacentFunctions ports the "merge-adjacent functions"
// scenario: two matching functions on adjacent lines merge into one
// block, a third unrelated function does not join it.
func TestE2E1MergeAdjacentFunctions(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "t.rs"), []byte(
		"fn test_function1() { let x=1; println!(\"test: {}\", x); }\n"+
			"fn test_function2() { let y=2; println!(\"test: {}\", y); }\n"+
			"fn other()        { println!(\"unrelated\"); }\n"), 0o644))

	cfg := config.Default(dir)
	result, err := Search(context.Background(), SearchRequest{
		Query:          "function test",
		Root:           dir,
		Cfg:            cfg,
		MergeThreshold: 5,
	})
	require.NoError(t, err)
	require.Len(t, result.Blocks, 1)
	assert.Contains(t, result.Blocks[0].Code, "test_function1")
	assert.Contains(t, result.Blocks[0].Code, "test_function2")
	assert.NotContains(t, result.Blocks[0].Code, "unrelated")
}

// TestE2E2GithubPathNotIgnoredByGitSubstring ports the ".github is not
// .git" scenario: a .github/workflows file is extractable, a sibling
// .git/config is not (it's excluded as VCS metadata, not because
// ".github" contains the substring ".git").
func TestE2E2GithubPathNotIgnoredByGitSubstring(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".github", "workflows"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".github", "workflows", "ci.yml"),
		[]byte("name: CI Pipeline\non: [push]\n"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".git", "config"), []byte("[core]\n"), 0o644))

	registry := syntax.NewRegistry()

	blocks, err := Extract(registry, ExtractRequest{
		Root: dir,
		Ref:  extractref.Ref{Path: filepath.Join(".github", "workflows", "ci.yml")},
	})
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Contains(t, blocks[0].Code, "CI Pipeline")

	cfg := config.Default(dir)
	result, err := Search(context.Background(), SearchRequest{
		Query: "core",
		Root:  dir,
		Cfg:   cfg,
	})
	require.NoError(t, err)
	for _, b := range result.Blocks {
		assert.NotContains(t, b.File, ".git"+string(filepath.Separator)+"config")
	}
}

// TestE2E3CommentContextGrowsToEnclosingFunction ports the "comment
// context" scenario: a match on a word that appears only in a trailing
// comment still grows to the whole enclosing function, not just the
// comment line.
func TestE2E3CommentContextGrowsToEnclosingFunction(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tok.rs"), []byte(
		"#[test]\n"+
			"fn test_tokenize() {\n"+
			"  let t = tokenize(\"stemming word\");\n"+
			"  assert!(t.contains(&\"stem\".into())); // stemmed \"stemming\"\n"+
			"}\n"), 0o644))

	cfg := config.Default(dir)
	result, err := Search(context.Background(), SearchRequest{
		Query:      "stemmed",
		Root:       dir,
		Cfg:        cfg,
		AllowTests: true,
	})
	require.NoError(t, err)
	require.Len(t, result.Blocks, 1)
	assert.Contains(t, result.Blocks[0].Code, "fn test_tokenize")
	assert.Contains(t, result.Blocks[0].Code, "let t = tokenize")
}

// TestE2E4StrictSyntaxRejectsProseQuery ports the strict-mode rejection
// scenario at the pipeline boundary: Search itself surfaces the
// compiler's typed error, including the literal substring the spec
// requires on stderr and a worked example.
func TestE2E4StrictSyntaxRejectsProseQuery(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.go"), []byte("package a\n"), 0o644))

	cfg := config.Default(dir)
	_, err := Search(context.Background(), SearchRequest{
		Query:        "error handler",
		Root:         dir,
		Cfg:          cfg,
		StrictSyntax: true,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Vague query format detected")
	assert.Contains(t, err.Error(), "(error AND handler)")
}

// TestE2E5FilterExtractionRestrictsToExtAndDir ports the "ext:/dir:
// filter" scenario: `error AND ext:rs AND dir:src` only matches .rs
// files under a src/ path segment, not a .py file or a .rs file
// elsewhere in the tree.
func TestE2E5FilterExtractionRestrictsToExtAndDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "vendor"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "lib.rs"),
		[]byte("fn handle() { panic!(\"error case\"); }\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "lib.py"),
		[]byte("def handle():\n    raise Exception('error case')\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vendor", "lib.rs"),
		[]byte("fn handle() { panic!(\"error case\"); }\n"), 0o644))

	plan, err := query.Compile("error AND ext:rs AND dir:src", query.Options{})
	require.NoError(t, err)
	require.NotNil(t, plan.Filters)

	cfg := config.Default(dir)
	result, err := Search(context.Background(), SearchRequest{
		Query: "error AND ext:rs AND dir:src",
		Root:  dir,
		Cfg:   cfg,
	})
	require.NoError(t, err)
	require.Len(t, result.Blocks, 1)
	assert.Equal(t, filepath.Join("src", "lib.rs"), result.Blocks[0].File)
}
