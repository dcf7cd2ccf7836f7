package daemon

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/probelabs/probe/internal/dlog"
)

// watchSkipDirs are never descended into: noisy, huge, or not part of
// the source tree a call-graph answer could depend on.
var watchSkipDirs = map[string]bool{
	".git": true, "node_modules": true, "vendor": true,
	"dist": true, "build": true, "target": true, ".cache": true,
}

const watchDebounce = 500 * time.Millisecond

// fileWatcher recursively watches one workspace root and invalidates the
// call-graph cache for whatever file changed, debounced so a burst of
// writes (a save-all, a `go fmt` pass) triggers one invalidation sweep
// per file rather than one per fsnotify event (§3 "Invalidation by file
// edit").
type fileWatcher struct {
	watcher *fsnotify.Watcher
	cache   *CallGraphCache
	logger  *dlog.Logger
	done    chan struct{}
}

func startFileWatcher(root string, cache *CallGraphCache, logger *dlog.Logger) (*fileWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	addDirs(w, root)

	fw := &fileWatcher{watcher: w, cache: cache, logger: logger, done: make(chan struct{})}
	go fw.run()
	return fw, nil
}

func addDirs(w *fsnotify.Watcher, root string) {
	_ = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsPermission(err) {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		base := filepath.Base(path)
		if watchSkipDirs[base] || (strings.HasPrefix(base, ".") && base != filepath.Base(root)) {
			return filepath.SkipDir
		}
		_ = w.Add(path)
		return nil
	})
}

func (fw *fileWatcher) run() {
	pending := make(map[string]struct{})
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			pending[event.Name] = struct{}{}
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
				timerC = timer.C
			} else {
				timer.Reset(watchDebounce)
			}

		case <-timerC:
			for path := range pending {
				fw.cache.InvalidateFile(path, 2)
			}
			pending = make(map[string]struct{})
			timer = nil
			timerC = nil

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			if fw.logger != nil {
				fw.logger.Error("WATCH", "%v", err)
			}

		case <-fw.done:
			return
		}
	}
}

func (fw *fileWatcher) Close() error {
	close(fw.done)
	return fw.watcher.Close()
}
