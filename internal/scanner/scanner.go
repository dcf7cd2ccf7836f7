// Package scanner walks a project tree in parallel, filters files by
// the compiled FileFilters, and produces per-file LineHits for every
// query term (§4.2).
package scanner

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/probelabs/probe/internal/config"
	"github.com/probelabs/probe/internal/query"
	"github.com/probelabs/probe/internal/syntax"
	"github.com/probelabs/probe/internal/types"
)

// Options configures one scan pass.
type Options struct {
	Root            string
	Plan            *types.QueryPlan
	Exclude         []string
	Include         []string
	UseGitignore    bool
	Registry        *syntax.Registry // optional; used for lang: filter resolution
	MaxFileSize     int64
	AllowTests      bool
	TestPathMatcher func(relPath string) bool // nil disables test-path filtering
}

// fileTask is one candidate file handed to a scan worker.
type fileTask struct {
	path string
	id   types.FileID
}

// Scan walks opts.Root, applies FileFilters and ignore rules, and scans
// the surviving files' content against opts.Plan's compiled patterns.
// Results are returned in an arbitrary order; callers that need
// deterministic ordering should sort by Path.
func Scan(ctx context.Context, opts Options) ([]*types.FileScanResult, error) {
	compiled, err := query.CompilePatterns(opts.Plan)
	if err != nil {
		return nil, err
	}

	var gitignoreParser *config.GitignoreParser
	if opts.UseGitignore {
		gitignoreParser = config.NewGitignoreParser()
		_ = gitignoreParser.LoadGitignore(opts.Root) // missing .gitignore is not an error
	}

	binDetector := NewBinaryDetector()

	taskChan := make(chan fileTask, runtime.NumCPU()*8)
	resultChan := make(chan *types.FileScanResult, runtime.NumCPU()*16)

	var nextID uint32
	var walkErr error
	var walkWg sync.WaitGroup
	walkWg.Add(1)
	go func() {
		defer walkWg.Done()
		defer close(taskChan)
		walkErr = walkTree(ctx, opts, gitignoreParser, func(path string) {
			id := types.FileID(atomic.AddUint32(&nextID, 1))
			select {
			case taskChan <- fileTask{path: path, id: id}:
			case <-ctx.Done():
			}
		})
	}()

	numWorkers := runtime.NumCPU() - 1
	if numWorkers < 1 {
		numWorkers = 1
	}
	var workerWg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		workerWg.Add(1)
		go func() {
			defer workerWg.Done()
			for task := range taskChan {
				select {
				case <-ctx.Done():
					return
				default:
				}
				res := scanFile(task, opts, compiled, binDetector)
				if res != nil {
					resultChan <- res
				}
			}
		}()
	}

	go func() {
		workerWg.Wait()
		close(resultChan)
	}()

	results := make([]*types.FileScanResult, 0, 256)
	for res := range resultChan {
		results = append(results, res)
	}

	walkWg.Wait()
	if walkErr != nil {
		return results, walkErr
	}
	return results, ctx.Err()
}

// walkTree walks opts.Root depth-first, applying directory exclusions,
// gitignore rules, and FileFilters, invoking emit for each surviving
// regular file. Symlinked directories are resolved once to guard
// against cycles, mirroring the teacher's traversal.
func walkTree(ctx context.Context, opts Options, gi *config.GitignoreParser, emit func(path string)) error {
	visitedDirs := make(map[string]bool)

	return filepath.Walk(opts.Root, func(path string, info os.FileInfo, walkErr error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if walkErr != nil {
			return nil
		}

		relPath, err := filepath.Rel(opts.Root, path)
		if err != nil {
			relPath = path
		}
		relPath = filepath.ToSlash(relPath)

		if info.IsDir() {
			if path == opts.Root {
				return nil
			}
			real, err := filepath.EvalSymlinks(path)
			if err == nil {
				if visitedDirs[real] {
					return filepath.SkipDir
				}
				visitedDirs[real] = true
			}
			if matchesAny(opts.Exclude, relPath+"/") || matchesAny(opts.Exclude, relPath) {
				return filepath.SkipDir
			}
			if gi != nil && gi.ShouldIgnore(relPath, true) {
				return filepath.SkipDir
			}
			return nil
		}

		if matchesAny(opts.Exclude, relPath) {
			return nil
		}
		if len(opts.Include) > 0 && !matchesAny(opts.Include, relPath) {
			return nil
		}
		if gi != nil && gi.ShouldIgnore(relPath, false) {
			return nil
		}
		if opts.MaxFileSize > 0 && info.Size() > opts.MaxFileSize {
			return nil
		}
		if !passesFileFilters(relPath, path, opts) {
			return nil
		}
		if !opts.AllowTests && opts.TestPathMatcher != nil && opts.TestPathMatcher(relPath) {
			return nil
		}

		emit(path)
		return nil
	})
}

func matchesAny(patterns []string, path string) bool {
	for _, p := range patterns {
		if matched, err := doublestar.Match(p, path); err == nil && matched {
			return true
		}
	}
	return false
}

func passesFileFilters(relPath, absPath string, opts Options) bool {
	f := opts.Plan.Filters
	if f == nil || f.IsEmpty() {
		return true
	}

	if len(f.Extensions) > 0 {
		ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(relPath)), ".")
		if _, ok := f.Extensions[ext]; !ok {
			return false
		}
	}
	if len(f.FileGlobPatterns) > 0 && !matchesAny(f.FileGlobPatterns, relPath) {
		return false
	}
	if len(f.DirSubstrings) > 0 {
		dir := filepath.ToSlash(filepath.Dir(relPath))
		found := false
		for _, sub := range f.DirSubstrings {
			if strings.Contains(dir, sub) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(f.Languages) > 0 && opts.Registry != nil {
		ext := strings.ToLower(filepath.Ext(relPath))
		lang := opts.Registry.LanguageForExt(ext)
		found := false
		for _, want := range f.Languages {
			if strings.EqualFold(want, lang) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func scanFile(task fileTask, opts Options, compiled *query.CompiledPatterns, bin *BinaryDetector) *types.FileScanResult {
	content, err := os.ReadFile(task.path)
	if err != nil {
		return &types.FileScanResult{ID: task.id, Path: task.path, Err: err}
	}
	if bin.IsBinary(task.path, content) {
		return nil
	}

	relName := filepath.Base(task.path)
	res := &types.FileScanResult{
		ID:               task.id,
		Path:             task.path,
		Lines:            make(types.LineHits),
		FilenameHitTerms: make(map[uint32]struct{}),
	}

	for i, re := range compiled.Patterns {
		if query.MatchesTerm(re, relName, compiled.Exact[i]) {
			res.FilenameHitTerms[compiled.Index[i]] = struct{}{}
		}
	}

	lines := strings.Split(string(content), "\n")
	res.LineCount = len(lines)
	for lineNo, line := range lines {
		for i, re := range compiled.Patterns {
			if query.MatchesTerm(re, line, compiled.Exact[i]) {
				res.Lines.AddHit(compiled.Index[i], lineNo+1)
			}
		}
	}

	// A file whose matched terms (union across every line and the
	// filename) can't satisfy the query's boolean AST can't produce a
	// satisfying block either, since any block's matched-term set is a
	// subset of the file's: reject it before the extractor ever sees it.
	fileTerms := make(map[uint32]struct{}, len(res.Lines)+len(res.FilenameHitTerms))
	for term := range res.Lines {
		fileTerms[term] = struct{}{}
	}
	for term := range res.FilenameHitTerms {
		fileTerms[term] = struct{}{}
	}
	if !query.Matches(opts.Plan.AST, fileTerms) {
		return nil
	}

	return res
}
