package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"
)

// configFileName is the project-level and global KDL config file name,
// analogous to the teacher's .lci.kdl.
const configFileName = ".probe.kdl"

// LoadKDL attempts to load configuration from a .probe.kdl file under
// projectRoot. It returns (nil, nil) when no such file exists.
func LoadKDL(projectRoot string) (*Config, error) {
	kdlPath := filepath.Join(projectRoot, configFileName)

	if _, err := os.Stat(kdlPath); os.IsNotExist(err) {
		return nil, nil
	}

	content, err := os.ReadFile(kdlPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", configFileName, err)
	}

	cfg, err := parseKDL(string(content))
	if err != nil {
		return nil, err
	}

	if cfg != nil && cfg.Project.Root != "" {
		var absRoot string
		if filepath.IsAbs(cfg.Project.Root) {
			absRoot = cfg.Project.Root
		} else {
			absRoot = filepath.Join(projectRoot, cfg.Project.Root)
		}
		cfg.Project.Root = filepath.Clean(absRoot)
	} else if cfg != nil {
		absRoot, err := filepath.Abs(projectRoot)
		if err == nil {
			cfg.Project.Root = absRoot
		} else {
			cfg.Project.Root = projectRoot
		}
	}

	return cfg, nil
}

// parseKDL parses .probe.kdl content into a Config, starting from
// Default(cwd) and overriding fields present in the document.
func parseKDL(content string) (*Config, error) {
	defaultRoot, _ := os.Getwd()
	if defaultRoot == "" {
		defaultRoot = "."
	}

	cfg := Default(defaultRoot)
	cfg.Exclude = nil // an `exclude` node replaces the baseline; a file that omits it gets defaultExclusions() below

	doc, err := kdl.Parse(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse KDL config: %w", err)
	}

	sawExclude := false

	for _, n := range doc.Nodes {
		switch nodeName(n) {
		case "project":
			for _, cn := range n.Children {
				assignSimpleString(cn, "root", func(v string) { cfg.Project.Root = v })
				assignSimpleString(cn, "name", func(v string) { cfg.Project.Name = v })
			}
		case "search":
			parseSearchSection(cfg, n)
		case "daemon":
			parseDaemonSection(cfg, n)
		case "cache":
			parseCacheSection(cfg, n)
		case "filters":
			parseFiltersSection(cfg, n)
		case "include":
			cfg.Include = append(cfg.Include, collectStringArgs(n)...)
		case "exclude":
			cfg.Exclude = collectStringArgs(n)
			sawExclude = true
		}
	}

	if !sawExclude {
		cfg.Exclude = defaultExclusions()
	}

	cfg.EnrichExclusionsWithBuildArtifacts()

	return cfg, nil
}

func parseSearchSection(cfg *Config, n *document.Node) {
	for _, cn := range n.Children {
		switch nodeName(cn) {
		case "reranker":
			if s, ok := firstStringArg(cn); ok {
				cfg.Search.Reranker = s
			}
		case "min_score":
			if v, ok := firstFloatArg(cn); ok {
				cfg.Search.MinScore = v
			}
		case "max_results":
			if v, ok := firstIntArg(cn); ok {
				cfg.Search.MaxResults = v
			}
		case "max_bytes":
			if v, ok := firstIntArg(cn); ok {
				cfg.Search.MaxBytes = v
			}
		case "max_tokens":
			if v, ok := firstIntArg(cn); ok {
				cfg.Search.MaxTokens = v
			}
		case "merge_threshold":
			if v, ok := firstIntArg(cn); ok {
				cfg.Search.MergeThreshold = v
			}
		case "context_lines":
			if v, ok := firstIntArg(cn); ok {
				cfg.Search.ContextLines = v
			}
		case "allow_tests":
			if b, ok := firstBoolArg(cn); ok {
				cfg.Search.AllowTests = b
			}
		case "any_term":
			if b, ok := firstBoolArg(cn); ok {
				cfg.Search.AnyTerm = b
			}
		case "strict_elastic_syntax":
			if b, ok := firstBoolArg(cn); ok {
				cfg.Search.StrictElasticSyntax = b
			}
		case "weights":
			for _, wn := range cn.Children {
				switch nodeName(wn) {
				case "w1", "unique_terms":
					if v, ok := firstFloatArg(wn); ok {
						cfg.Search.Weights.UniqueTerms = v
					}
				case "w2", "filename_match":
					if v, ok := firstFloatArg(wn); ok {
						cfg.Search.Weights.FilenameMatch = v
					}
				case "w3", "file_unique_terms":
					if v, ok := firstFloatArg(wn); ok {
						cfg.Search.Weights.FileUniqueTerms = v
					}
				case "w4", "isolated_penalty":
					if v, ok := firstFloatArg(wn); ok {
						cfg.Search.Weights.IsolatedPenalty = v
					}
				case "w5", "context_fallback":
					if v, ok := firstFloatArg(wn); ok {
						cfg.Search.Weights.ContextFallback = v
					}
				}
			}
		}
	}
}

func parseDaemonSection(cfg *Config, n *document.Node) {
	for _, cn := range n.Children {
		switch nodeName(cn) {
		case "socket_path":
			if s, ok := firstStringArg(cn); ok {
				cfg.Daemon.SocketPath = s
			}
		case "pid_file_path":
			if s, ok := firstStringArg(cn); ok {
				cfg.Daemon.PidFilePath = s
			}
		case "log_dir":
			if s, ok := firstStringArg(cn); ok {
				cfg.Daemon.LogDir = s
			}
		case "cache_dir":
			if s, ok := firstStringArg(cn); ok {
				cfg.Daemon.CacheDir = s
			}
		case "protocol_version":
			if s, ok := firstStringArg(cn); ok {
				cfg.Daemon.ProtocolVersion = s
			}
		case "max_failing_retries":
			if v, ok := firstIntArg(cn); ok {
				cfg.Daemon.MaxFailingRetries = v
			}
		case "log_ring_size":
			if v, ok := firstIntArg(cn); ok {
				cfg.Daemon.LogRingSize = v
			}
		case "server_timeouts":
			for _, tn := range cn.Children {
				switch nodeName(tn) {
				case "cold_call_hierarchy_sec":
					if v, ok := firstIntArg(tn); ok {
						cfg.Daemon.ServerTimeouts.ColdCallHierarchySec = v
					}
				case "readiness_probe_sec":
					if v, ok := firstIntArg(tn); ok {
						cfg.Daemon.ServerTimeouts.ReadinessProbeSec = v
					}
				}
			}
		}
	}
}

func parseCacheSection(cfg *Config, n *document.Node) {
	for _, cn := range n.Children {
		switch nodeName(cn) {
		case "capacity":
			if v, ok := firstIntArg(cn); ok {
				cfg.Cache.Capacity = v
			}
		case "ttl_seconds", "ttl":
			if v, ok := firstIntArg(cn); ok {
				cfg.Cache.TTLSeconds = v
			}
		case "invalidation_depth":
			if v, ok := firstIntArg(cn); ok {
				cfg.Cache.InvalidationDepth = v
			}
		}
	}
}

func parseFiltersSection(cfg *Config, n *document.Node) {
	for _, cn := range n.Children {
		switch nodeName(cn) {
		case "ignore_globs":
			cfg.Filters.IgnoreGlobs = append(cfg.Filters.IgnoreGlobs, collectStringArgs(cn)...)
		case "use_gitignore":
			if b, ok := firstBoolArg(cn); ok {
				cfg.Filters.UseGitignore = b
			}
		}
	}
}

func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}

func firstIntArg(n *document.Node) (int, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func firstStringArg(n *document.Node) (string, bool) {
	if len(n.Arguments) == 0 {
		return "", false
	}
	if s, ok := n.Arguments[0].Value.(string); ok {
		return s, true
	}
	return "", false
}

func firstBoolArg(n *document.Node) (bool, bool) {
	if len(n.Arguments) == 0 {
		return false, false
	}
	if b, ok := n.Arguments[0].Value.(bool); ok {
		return b, true
	}
	return false, false
}

func firstFloatArg(n *document.Node) (float64, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	default:
		log.Printf("WARNING: invalid float value for '%s' in KDL config, expected number but got %T", nodeName(n), n.Arguments[0].Value)
		return 0, false
	}
}

func collectStringArgs(n *document.Node) []string {
	if n == nil {
		return nil
	}
	out := make([]string, 0, len(n.Arguments))
	for _, a := range n.Arguments {
		if s, ok := a.Value.(string); ok {
			out = append(out, s)
		}
	}

	if len(out) == 0 && len(n.Children) > 0 {
		out = make([]string, 0, len(n.Children))
		for _, child := range n.Children {
			if s, ok := firstStringArg(child); ok {
				out = append(out, s)
			} else if child.Name != nil {
				if s, ok := child.Name.Value.(string); ok {
					out = append(out, s)
				}
			}
		}
	}

	return out
}

func assignSimpleString(n *document.Node, target string, set func(string)) {
	if nodeName(n) == target {
		if s, ok := firstStringArg(n); ok {
			set(s)
		}
	}
}

// parseSize handles size strings like "10MB", "500KB", "1GB".
func parseSize(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))

	var multiplier int64 = 1
	var numStr string

	switch {
	case strings.HasSuffix(s, "GB"):
		multiplier = 1024 * 1024 * 1024
		numStr = strings.TrimSuffix(s, "GB")
	case strings.HasSuffix(s, "MB"):
		multiplier = 1024 * 1024
		numStr = strings.TrimSuffix(s, "MB")
	case strings.HasSuffix(s, "KB"):
		multiplier = 1024
		numStr = strings.TrimSuffix(s, "KB")
	case strings.HasSuffix(s, "B"):
		multiplier = 1
		numStr = strings.TrimSuffix(s, "B")
	default:
		numStr = s
	}

	num, err := strconv.ParseInt(numStr, 10, 64)
	if err != nil {
		return 0, err
	}

	return num * multiplier, nil
}

func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "yes" || s == "1" || s == "on"
}
