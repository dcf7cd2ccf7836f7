package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/cespare/xxhash/v2"
)

// Scan and extraction defaults. A KDL search section can override the
// context-lines and merge-threshold values; the file-size cap is fixed.
const (
	DefaultMaxFileSize  int64 = 10 * 1024 * 1024 // 10MB per-file cap during scan
	DefaultContextLines       = 10               // k in the context-block fallback, §4.4
	DefaultMergeThreshold     = 5                // line-gap threshold for block merging, §4.5
)

// Default ranker signal weights, §4.6. w5 is negative by design: it
// demotes context-fallback blocks below real parents of equal score.
const (
	DefaultWeightUniqueTerms     = 0.25 // w1
	DefaultWeightFilenameMatch   = 0.15 // w2
	DefaultWeightFileUniqueTerms = 0.10 // w3
	DefaultWeightIsolatedPenalty = 0.05 // w4
	DefaultWeightContextFallback = -0.20 // w5
)

// Config is the single nested configuration struct spec.md §9 calls for:
// search / daemon / cache / filters, plus the project root and the
// include/exclude glob lists that predate and outlive that struct.
type Config struct {
	Version int
	Project Project
	Search  SearchConfig
	Daemon  DaemonConfig
	Cache   CacheConfig
	Filters FiltersConfig
	Include []string
	Exclude []string
}

// Project identifies the root directory a Config applies to.
type Project struct {
	Root string
	Name string
}

// SearchConfig holds the ranker and extraction knobs: reranker choice,
// score thresholds, the w1..w5 block-signal weights, and the
// context-block fallback size.
type SearchConfig struct {
	Reranker      string // "tfidf" | "bm25" | "hybrid"
	MinScore      float64
	MaxResults    int
	MaxBytes      int
	MaxTokens     int
	MergeThreshold int
	ContextLines  int
	AllowTests    bool
	AnyTerm       bool
	StrictElasticSyntax bool
	Weights       RankWeights
}

// RankWeights are the w1..w5 block-level signal weights from §4.6.
type RankWeights struct {
	UniqueTerms     float64 // w1
	FilenameMatch   float64 // w2
	FileUniqueTerms float64 // w3
	IsolatedPenalty float64 // w4
	ContextFallback float64 // w5, negative
}

// ServerTimeouts holds the per-method daemon request timeouts, §4.8.
type ServerTimeouts struct {
	ColdCallHierarchySec int // default 90
	ReadinessProbeSec    int // default 5
}

// DaemonConfig holds the LSP daemon's process-identity, IPC, and logging
// configuration.
type DaemonConfig struct {
	SocketPath      string
	PidFilePath     string
	LogDir          string
	CacheDir        string
	ProtocolVersion string
	ServerTimeouts  ServerTimeouts
	MaxFailingRetries int // n in 5s*2^n backoff, capped at 7
	LogRingSize     int // in-memory log entries retained, default 1000
}

// CacheConfig holds the call-graph and universal response cache
// parameters: capacity (LRU), TTL, and invalidation graph depth.
type CacheConfig struct {
	Capacity          int
	TTLSeconds        int
	InvalidationDepth int
}

// FiltersConfig holds scan-time ignore behavior.
type FiltersConfig struct {
	IgnoreGlobs   []string
	UseGitignore  bool
}

// Load reads configuration, merging a global ~/.probe.kdl (if present)
// with the KDL file at path, or with a project-local .probe.kdl when
// path is empty.
func Load(path string) (*Config, error) {
	return LoadWithRoot(path, "")
}

// LoadWithRoot is Load with an explicit project root used for KDL
// discovery; empty rootDir falls back to the current directory.
func LoadWithRoot(path string, rootDir string) (*Config, error) {
	searchDir := "."
	if rootDir != "" {
		searchDir = rootDir
	}

	homeDir, err := os.UserHomeDir()
	var baseConfig *Config
	if err == nil {
		if globalCfg, err := LoadKDL(homeDir); err == nil && globalCfg != nil {
			baseConfig = globalCfg
		}
	}

	var projectConfig *Config
	if path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if projectConfig, err = parseKDL(string(content)); err != nil {
			return nil, err
		}
	} else if kdlCfg, err := LoadKDL(searchDir); err == nil && kdlCfg != nil {
		projectConfig = kdlCfg
	} else if err != nil {
		return nil, err
	}

	if baseConfig != nil && projectConfig != nil {
		return mergeConfigs(baseConfig, projectConfig), nil
	} else if projectConfig != nil {
		return projectConfig, nil
	} else if baseConfig != nil {
		baseConfig.Project.Root = searchDir
		return baseConfig, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}

	cfg := Default(cwd)
	cfg.EnrichExclusionsWithBuildArtifacts()
	return cfg, nil
}

// Default returns the built-in configuration for a project rooted at
// root, before any KDL file is consulted.
func Default(root string) *Config {
	return &Config{
		Version: 1,
		Project: Project{Root: root},
		Search: SearchConfig{
			Reranker:       "hybrid",
			MinScore:       0.0,
			MaxResults:     100,
			MaxBytes:       1 << 20,
			MaxTokens:      50000,
			MergeThreshold: DefaultMergeThreshold,
			ContextLines:   DefaultContextLines,
			AllowTests:     false,
			AnyTerm:        false,
			Weights: RankWeights{
				UniqueTerms:     DefaultWeightUniqueTerms,
				FilenameMatch:   DefaultWeightFilenameMatch,
				FileUniqueTerms: DefaultWeightFileUniqueTerms,
				IsolatedPenalty: DefaultWeightIsolatedPenalty,
				ContextFallback: DefaultWeightContextFallback,
			},
		},
		Daemon: DaemonConfig{
			SocketPath:      SocketPathForRoot(root),
			PidFilePath:     PidFilePathForRoot(root),
			LogDir:          LogDirForRoot(root),
			CacheDir:        CacheDirForRoot(root),
			ProtocolVersion: "1.0",
			ServerTimeouts: ServerTimeouts{
				ColdCallHierarchySec: 90,
				ReadinessProbeSec:    5,
			},
			MaxFailingRetries: 7,
			LogRingSize:       1000,
		},
		Cache: CacheConfig{
			Capacity:          10000,
			TTLSeconds:        3600,
			InvalidationDepth: 2,
		},
		Filters: FiltersConfig{
			UseGitignore: true,
		},
		Include: []string{},
		Exclude: defaultExclusions(),
	}
}

// defaultExclusions is the baseline ignore list honored regardless of
// .gitignore (§4.2): VCS metadata, package manager directories, build
// output, and common binary formats that are never useful search
// targets.
func defaultExclusions() []string {
	return []string{
		"**/.git/**",
		"**/.*/**",

		"**/node_modules/**",
		"**/vendor/**",
		"**/bower_components/**",
		"**/jspm_packages/**",

		"**/dist/**",
		"**/build/**",
		"**/out/**",
		"**/target/**",
		"**/bin/**",
		"**/obj/**",
		"**/*.min.js",
		"**/*.min.css",
		"**/*.bundle.js",
		"**/*.chunk.js",
		"**/*.min.map",

		"**/__pycache__/**",
		"**/*.pyc",

		"**/*.avif",
		"**/*.webp",
		"**/*.wasm",
		"**/*.woff",
		"**/*.woff2",
		"**/*.ttf",
		"**/*.eot",
		"**/*.otf",

		"**/*.mp4", "**/*.avi", "**/*.mov", "**/*.wmv", "**/*.flv",
		"**/*.mkv", "**/*.webm", "**/*.mp3", "**/*.wav", "**/*.flac",

		"**/*.doc", "**/*.docx", "**/*.xls", "**/*.xlsx",
		"**/*.ppt", "**/*.pptx", "**/*.odt", "**/*.ods", "**/*.rtf",

		"**/*.swp", "**/*.swo", "**/*~",

		"**/Thumbs.db",
		"**/desktop.ini",

		"**/logs/**",
		"**/*.log",
	}
}

// testPathExclusions are applied only when AllowTests is false, kept
// separate from defaultExclusions so the block extractor's test-code
// policy (§4.4) can reuse the same patterns for its own path check.
var testPathExclusions = []string{
	"**/*_test.go", "**/*_tests.go",
	"**/*_test.py", "**/*_tests.py", "**/test_*.py", "**/tests_*.py",
	"**/*.test.js", "**/*.test.ts", "**/*.test.tsx", "**/*.test.jsx",
	"**/*.spec.js", "**/*.spec.ts", "**/*.spec.tsx", "**/*.spec.jsx",
	"**/test_*", "**/tests_*",
	"**/__tests__/**", "**/test/**", "**/tests/**",
	"**/testdata/**", "**/__testdata__/**", "**/fixtures/**", "**/.test/**",
	"**/*_test.rb", "**/*_spec.rb",
	"**/*Test.java", "**/*Tests.java", "**/*TestCase.java",
	"**/*Test.cs", "**/*Tests.cs",
	"**/*Test.php", "**/*TestCase.php",
	"**/*Test.kt", "**/*Tests.kt",
	"**/*Test.swift",
}

// TestPathPatterns returns the glob patterns that identify test code for
// the block extractor's test-code policy (§4.4).
func TestPathPatterns() []string {
	out := make([]string, len(testPathExclusions))
	copy(out, testPathExclusions)
	return out
}

// mergeConfigs merges a base (global) config with a project config;
// project settings win except that exclusions from both are unioned.
func mergeConfigs(base, project *Config) *Config {
	merged := *project

	if len(base.Exclude) > 0 {
		excludeMap := make(map[string]bool)
		for _, pattern := range base.Exclude {
			excludeMap[pattern] = true
		}
		for _, pattern := range project.Exclude {
			excludeMap[pattern] = true
		}
		merged.Exclude = make([]string, 0, len(excludeMap))
		for pattern := range excludeMap {
			merged.Exclude = append(merged.Exclude, pattern)
		}
	}

	if len(project.Include) == 0 && len(base.Include) > 0 {
		merged.Include = base.Include
	}

	return &merged
}

// EnrichExclusionsWithBuildArtifacts detects build output directories
// from language-specific markers (go.mod, Cargo.toml, package.json, ...)
// found under the project root and adds them to the exclusion list.
func (c *Config) EnrichExclusionsWithBuildArtifacts() {
	if c.Project.Root == "" {
		return
	}

	detector := NewBuildArtifactDetector(c.Project.Root)
	detectedPatterns := detector.DetectOutputDirectories()

	if len(detectedPatterns) > 0 {
		c.Exclude = append(c.Exclude, detectedPatterns...)
		c.Exclude = DeduplicatePatterns(c.Exclude)
	}
}

// ParallelWorkers returns the scanner's configured worker count, falling
// back to the number of logical CPUs when unset.
func (c *Config) ParallelWorkers(configured int) int {
	if configured > 0 {
		return configured
	}
	return runtime.NumCPU()
}

// daemonDirForRoot derives a project-specific directory name under the
// OS temp dir from root's absolute path, so concurrently running daemons
// for different projects never collide.
func daemonDirForRoot(root string) string {
	abs, err := filepath.Abs(root)
	if err != nil {
		abs = root
	}
	h := xxhash.Sum64String(abs)
	return filepath.Join(os.TempDir(), fmt.Sprintf("probe-daemon-%016x", h))
}

// SocketPathForRoot returns the Unix socket path the daemon for root
// binds to.
func SocketPathForRoot(root string) string {
	return filepath.Join(daemonDirForRoot(root), "daemon.sock")
}

// PidFilePathForRoot returns the PID-lock file path for root's daemon.
func PidFilePathForRoot(root string) string {
	return filepath.Join(daemonDirForRoot(root), "daemon.pid")
}

// LogDirForRoot returns the directory the daemon persists its log ring
// under for root.
func LogDirForRoot(root string) string {
	return filepath.Join(daemonDirForRoot(root), "logs")
}

// CacheDirForRoot returns the directory holding root's per-workspace
// universal response cache databases.
func CacheDirForRoot(root string) string {
	return filepath.Join(daemonDirForRoot(root), "cache")
}
