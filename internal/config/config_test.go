package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default("/repo")

	assert.Equal(t, "/repo", cfg.Project.Root)
	assert.Equal(t, "hybrid", cfg.Search.Reranker)
	assert.Equal(t, DefaultContextLines, cfg.Search.ContextLines)
	assert.Equal(t, DefaultMergeThreshold, cfg.Search.MergeThreshold)
	assert.True(t, cfg.Filters.UseGitignore)
	assert.Less(t, cfg.Search.Weights.ContextFallback, 0.0, "w5 must demote context blocks")
	assert.NotEmpty(t, cfg.Exclude)
}

func TestMergeConfigsUnionsExclusions(t *testing.T) {
	base := Default("/home/user")
	base.Exclude = []string{"**/base_only/**", "**/shared/**"}

	project := Default("/repo")
	project.Exclude = []string{"**/project_only/**", "**/shared/**"}

	merged := mergeConfigs(base, project)

	assert.ElementsMatch(t, []string{"**/base_only/**", "**/shared/**", "**/project_only/**"}, merged.Exclude)
	assert.Equal(t, "/repo", merged.Project.Root, "project root always wins over base")
}

func TestMergeConfigsFallsBackToBaseIncludes(t *testing.T) {
	base := Default("/home/user")
	base.Include = []string{"**/*.go"}

	project := Default("/repo")
	project.Include = nil

	merged := mergeConfigs(base, project)

	require.Len(t, merged.Include, 1)
	assert.Equal(t, "**/*.go", merged.Include[0])
}

func TestValidateAndSetDefaultsRejectsBadReranker(t *testing.T) {
	cfg := Default("/repo")
	cfg.Search.Reranker = "not-a-real-reranker"

	err := ValidateConfig(cfg)
	require.Error(t, err)
}

func TestValidateAndSetDefaultsRejectsExcessiveBackoffRetries(t *testing.T) {
	cfg := Default("/repo")
	cfg.Daemon.MaxFailingRetries = 8

	err := ValidateConfig(cfg)
	require.Error(t, err)
}

func TestValidateAndSetDefaultsFillsZeroValues(t *testing.T) {
	cfg := Default("/repo")
	cfg.Search.MaxResults = 0
	cfg.Cache.Capacity = 0
	cfg.Daemon.LogRingSize = 0

	require.NoError(t, ValidateConfig(cfg))

	assert.Equal(t, 100, cfg.Search.MaxResults)
	assert.Equal(t, 10000, cfg.Cache.Capacity)
	assert.Equal(t, 1000, cfg.Daemon.LogRingSize)
}

func TestTestPathPatternsAreIndependentCopies(t *testing.T) {
	a := TestPathPatterns()
	a[0] = "mutated"
	b := TestPathPatterns()

	assert.NotEqual(t, a[0], b[0])
}
