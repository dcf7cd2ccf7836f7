// Package pipeline wires the query compiler, scanner, block
// extractor/merger, ranker, assembler, and (optionally) the LSP
// enrichment client into the two CLI-facing operations: search and
// extract (§6).
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/probelabs/probe/internal/assemble"
	"github.com/probelabs/probe/internal/block"
	"github.com/probelabs/probe/internal/config"
	"github.com/probelabs/probe/internal/lspclient"
	perrors "github.com/probelabs/probe/internal/errors"
	"github.com/probelabs/probe/internal/query"
	"github.com/probelabs/probe/internal/rank"
	"github.com/probelabs/probe/internal/scanner"
	"github.com/probelabs/probe/internal/semantic"
	"github.com/probelabs/probe/internal/syntax"
	"github.com/probelabs/probe/internal/types"
)

// SearchRequest bundles every flag-derived input to one search
// invocation.
type SearchRequest struct {
	Query            string
	Root             string
	Cfg              *config.Config
	AllowTests       bool
	Exact            bool
	AnyTerm          bool
	StrictSyntax     bool
	NoMerge          bool
	MergeThreshold   int
	NoGitignore      bool
	ExtraIgnores     []string
	MaxResults       int
	MaxBytes         int
	MaxTokens        int
	Reranker         string
	Session          *assemble.SessionMemory
	LspClient        *lspclient.Client // nil disables enrichment entirely
	IncludeStdlib    bool
	EnrichTimeout    time.Duration
}

// SearchResult is the final, assembled set of blocks plus the
// diagnostics the CLI surfaces on truncation.
type SearchResult struct {
	Blocks      []*types.Block
	Diagnostics assemble.Diagnostics
}

// Search runs one full pass: compile → scan → extract → merge → rank →
// assemble → (optional) enrich.
func Search(ctx context.Context, req SearchRequest) (*SearchResult, error) {
	if info, err := os.Stat(req.Root); err != nil || !info.IsDir() {
		if err == nil {
			err = fmt.Errorf("not a directory: %s", req.Root)
		}
		return nil, perrors.NewFileError("stat", req.Root, err)
	}

	registry := syntax.NewRegistry()

	var stemmer *semantic.Stemmer
	var splitter *semantic.NameSplitter
	if !req.Exact {
		stemmer = semantic.NewStemmer(true, "porter2", 4, nil)
		splitter = semantic.NewNameSplitter()
	}

	plan, err := query.Compile(req.Query, query.Options{
		AnyTerm:  req.AnyTerm,
		Strict:   req.StrictSyntax,
		Stemmer:  stemmer,
		Splitter: splitter,
	})
	if err != nil {
		return nil, err
	}

	scanResults, err := scanner.Scan(ctx, scanner.Options{
		Root:            req.Root,
		Plan:            plan,
		Exclude:         append(append([]string{}, req.Cfg.Exclude...), req.ExtraIgnores...),
		Include:         req.Cfg.Include,
		UseGitignore:    !req.NoGitignore,
		Registry:        registry,
		MaxFileSize:     config.DefaultMaxFileSize,
		AllowTests:      req.AllowTests,
		TestPathMatcher: isTestPath,
	})
	if err != nil {
		return nil, perrors.NewSearchError(req.Query, err)
	}

	contextLines := req.Cfg.Search.ContextLines
	if contextLines <= 0 {
		contextLines = config.DefaultContextLines
	}
	extractor := block.NewExtractor(registry, contextLines)

	var allBlocks []*types.Block
	filenameMatch := rank.FilenameRequiredMatch{}
	linesByFile := make(map[string][]string)
	for _, fr := range scanResults {
		if fr.Err != nil {
			continue
		}
		content, err := os.ReadFile(filepath.Join(req.Root, fr.Path))
		if err != nil {
			continue
		}
		lang := registry.LanguageForExt(filepath.Ext(fr.Path))
		blocks := extractor.ExtractBlocks(fr, content, plan, lang)
		allBlocks = append(allBlocks, blocks...)
		filenameMatch[fr.Path] = len(fr.FilenameHitTerms) > 0
		linesByFile[fr.Path] = block.SplitLines(content)
	}

	mergeThreshold := req.MergeThreshold
	if mergeThreshold <= 0 {
		mergeThreshold = config.DefaultMergeThreshold
	}
	if !req.NoMerge {
		allBlocks = block.Merge(allBlocks, mergeThreshold, linesByFile)
	}

	reranker := req.Reranker
	if reranker == "" {
		reranker = req.Cfg.Search.Reranker
	}
	ranked, err := rank.Rank(allBlocks, plan, rank.Options{
		Reranker:              reranker,
		Weights:               req.Cfg.Search.Weights,
		FilenameRequiredMatch: filenameMatch,
	})
	if err != nil {
		return nil, fmt.Errorf("ranking: %w", err)
	}

	mem := req.Session
	if mem == nil {
		mem = assemble.NewSessionMemory()
	}
	assembled, diag := assemble.Assemble(ranked, mem, assemble.Limits{
		MaxResults: req.MaxResults,
		MaxBytes:   req.MaxBytes,
		MaxTokens:  req.MaxTokens,
	})

	if req.LspClient != nil {
		enrich(ctx, req, registry, assembled)
	}

	return &SearchResult{Blocks: assembled, Diagnostics: diag}, nil
}

// enrich attaches call-hierarchy info to every assembled block, per
// §4.9. Any per-block failure (timeout, unsupported language) is
// swallowed — enrichment is best-effort and never fails the search.
func enrich(ctx context.Context, req SearchRequest, registry *syntax.Registry, blocks []*types.Block) {
	timeout := req.EnrichTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	for _, b := range blocks {
		lang := registry.LanguageForExt(filepath.Ext(b.File))
		symbols := lspclient.CollectSymbols(registry, lang, b)
		if len(symbols) == 0 {
			continue
		}
		enrichCtx, cancel := context.WithTimeout(ctx, timeout)
		req.LspClient.Enrich(enrichCtx, b, symbols, req.IncludeStdlib)
		cancel()
	}
}

func isTestPath(relPath string) bool {
	for _, pat := range config.TestPathPatterns() {
		if matched, _ := filepath.Match(pat, filepath.Base(relPath)); matched {
			return true
		}
	}
	return false
}
