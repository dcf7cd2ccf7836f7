package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/probelabs/probe/internal/config"
	"github.com/probelabs/probe/internal/dlog"
	"github.com/probelabs/probe/internal/version"
)

// languageServerCommands maps a detected language to the LSP server
// binary this daemon shells out to. Unlisted languages simply never get
// enrichment; FindRelatedCodeNode-style degrade-gracefully behavior
// applies here too.
var languageServerCommands = map[string][]string{
	"go":         {"gopls"},
	"rust":       {"rust-analyzer"},
	"python":     {"pylsp"},
	"typescript": {"typescript-language-server", "--stdio"},
	"javascript": {"typescript-language-server", "--stdio"},
}

// Daemon is the running LSP enrichment daemon: one process per user per
// host, owning the PID lock, the Unix socket listener, the per-workspace
// server pool, and the response/call-graph caches.
type Daemon struct {
	cfg      *config.Config
	pidLock  *PidLock
	listener net.Listener
	pool     *Pool
	ring     *dlog.PersistentRing
	logger   *dlog.Logger
	start    time.Time

	callGraph *CallGraphCache
	responses map[string]*ResponseCache // workspaceID -> cache
	respMu    sync.Mutex

	watchers  map[string]*fileWatcher // workspaceRoot -> watcher
	watchMu   sync.Mutex

	wg           sync.WaitGroup
	shutdownOnce sync.Once
	done         chan struct{}
}

// New constructs a Daemon from cfg without starting it.
func New(cfg *config.Config) (*Daemon, error) {
	ring, err := dlog.OpenPersistentRing(cfg.Daemon.LogDir, cfg.Daemon.LogRingSize)
	if err != nil {
		return nil, fmt.Errorf("opening log ring: %w", err)
	}
	logger := dlog.New(ring.Ring)
	dlog.SetDefault(logger)

	return &Daemon{
		cfg:       cfg,
		pool:      NewPool(),
		ring:      ring,
		logger:    logger,
		callGraph: NewCallGraphCache(cfg.Cache.Capacity, time.Duration(cfg.Cache.TTLSeconds)*time.Second),
		responses: make(map[string]*ResponseCache),
		watchers:  make(map[string]*fileWatcher),
		done:      make(chan struct{}),
	}, nil
}

// ensureWatcher starts a recursive file watcher for workspaceRoot the
// first time it's seen, so a later edit to any file under it invalidates
// the call-graph cache without waiting for a TTL expiry.
func (d *Daemon) ensureWatcher(workspaceRoot string) {
	d.watchMu.Lock()
	defer d.watchMu.Unlock()

	if _, ok := d.watchers[workspaceRoot]; ok {
		return
	}
	w, err := startFileWatcher(workspaceRoot, d.callGraph, d.logger)
	if err != nil {
		d.logger.Error("WATCH", "starting watcher for %s: %v", workspaceRoot, err)
		return
	}
	d.watchers[workspaceRoot] = w
}

// Start acquires the PID lock, binds the socket, and begins accepting
// connections in the background. Lock-then-bind ordering is what makes
// 20 concurrent start attempts produce exactly one winner: every loser
// fails at AcquirePidLock before ever touching the socket path.
func (d *Daemon) Start() error {
	lock, err := AcquirePidLock(d.cfg.Daemon.PidFilePath)
	if err != nil {
		return err
	}
	d.pidLock = lock

	_ = os.Remove(d.cfg.Daemon.SocketPath)
	listener, err := net.Listen("unix", d.cfg.Daemon.SocketPath)
	if err != nil {
		_ = lock.Release()
		return fmt.Errorf("binding socket: %w", err)
	}
	_ = os.Chmod(d.cfg.Daemon.SocketPath, 0o600)
	d.listener = listener
	d.start = time.Now()

	d.logger.Daemon("started on %s (pid %d)", d.cfg.Daemon.SocketPath, os.Getpid())

	d.wg.Add(1)
	go d.acceptLoop()

	d.wg.Add(1)
	go d.flushLoop()

	return nil
}

func (d *Daemon) acceptLoop() {
	defer d.wg.Done()
	for {
		conn, err := d.listener.Accept()
		if err != nil {
			select {
			case <-d.done:
				return
			default:
				d.logger.Error("DAEMON", "accept: %v", err)
				return
			}
		}
		d.wg.Add(1)
		go d.handleConn(conn)
	}
}

func (d *Daemon) flushLoop() {
	defer d.wg.Done()
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			_ = d.ring.Flush()
		case <-d.done:
			return
		}
	}
}

// handleConn serves one client connection until it disconnects or the
// daemon shuts down. A clean client disconnect surfaces as io.EOF
// between frames and is not logged as an error (§5's explicit
// "must not log early eof" requirement).
func (d *Daemon) handleConn(conn net.Conn) {
	defer d.wg.Done()
	defer conn.Close()

	_ = writeEnvelope(conn, TypeConnected, ConnectedResponse{
		DaemonVersion:   version.Version,
		ProtocolVersion: ProtocolVersion,
	})

	for {
		typ, payload, err := readEnvelope(conn)
		if err != nil {
			return
		}
		d.dispatch(conn, typ, payload)
	}
}

func (d *Daemon) dispatch(conn net.Conn, typ string, payload json.RawMessage) {
	switch typ {
	case TypeConnect:
		// handshake already sent Connected on accept; nothing further to do.
	case TypePing:
		var req PingRequest
		_ = json.Unmarshal(payload, &req)
		_ = writeEnvelope(conn, TypePong, PongResponse{RequestID: req.RequestID})

	case TypeStatus:
		var req StatusRequest
		_ = json.Unmarshal(payload, &req)
		_ = writeEnvelope(conn, TypeStatus, StatusResponse{
			RequestID: req.RequestID,
			Status: DaemonStatus{
				UptimeSeconds: time.Since(d.start).Seconds(),
				Workspaces:    d.pool.All(),
			},
		})

	case TypeListLanguages:
		var req ListLanguagesRequest
		_ = json.Unmarshal(payload, &req)
		langs := make([]string, 0, len(languageServerCommands))
		for l := range languageServerCommands {
			langs = append(langs, l)
		}
		_ = writeEnvelope(conn, TypeListLanguages, ListLanguagesResponse{RequestID: req.RequestID, Languages: langs})

	case TypeCallHierarchy:
		var req CallHierarchyRequest
		_ = json.Unmarshal(payload, &req)
		d.handleCallHierarchy(conn, req)

	case TypeShutdown:
		var req ShutdownRequest
		_ = json.Unmarshal(payload, &req)
		_ = writeEnvelope(conn, TypeShutdown, ShutdownResponse{RequestID: req.RequestID})
		go d.Shutdown(context.Background())

	case TypeTailLogs:
		var req TailLogsRequest
		_ = json.Unmarshal(payload, &req)
		entries := d.ring.Since(req.LastSequence, req.Limit)
		dtos := make([]LogEntryDTO, len(entries))
		for i, e := range entries {
			dtos[i] = LogEntryDTO{Sequence: e.Sequence, Timestamp: e.Timestamp.Format(time.RFC3339Nano), Level: e.Level, Message: e.Message}
		}
		_ = writeEnvelope(conn, TypeLogEntries, LogEntriesResponse{RequestID: req.RequestID, Entries: dtos, LastSequence: d.ring.LastSequence()})

	default:
		_ = writeEnvelope(conn, TypeError, ErrorResponse{Error: fmt.Sprintf("unknown request type %q", typ)})
	}
}

func (d *Daemon) handleCallHierarchy(conn net.Conn, req CallHierarchyRequest) {
	language := languageForPath(req.FilePath)
	workspaceRoot := req.WorkspaceHint
	if workspaceRoot == "" {
		workspaceRoot = ResolveWorkspace(req.FilePath, language)
	}

	entry := d.pool.GetOrCreate(workspaceRoot, language)
	d.ensureWatcher(workspaceRoot)
	timeout := time.Duration(d.cfg.Daemon.ServerTimeouts.ColdCallHierarchySec) * time.Second
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	key := NodeKey{FilePath: req.FilePath, Symbol: req.Pattern, ContentHash: fileContentHash(req.FilePath)}
	result, err := d.callGraph.GetOrCompute(key, func() (CallHierarchyResult, error) {
		return d.computeCallHierarchy(ctx, entry, req)
	})
	if err != nil {
		_ = writeEnvelope(conn, TypeError, ErrorResponse{RequestID: req.RequestID, Error: err.Error()})
		return
	}

	if !req.IncludeStdlib {
		result = filterStdlib(result)
	}
	_ = writeEnvelope(conn, TypeCallHierarchy, CallHierarchyResponse{RequestID: req.RequestID, Result: result})
}

// computeCallHierarchy is what the call-graph cache invokes on a miss.
// It first consults the durable universal response cache (which
// survives daemon restarts, unlike the in-memory call-graph cache)
// before falling back to the language server itself, and writes
// through to that cache once it has an answer — including an explicit
// "none" edge for a genuinely empty result, so a future restart doesn't
// re-pay the cold LSP round trip just to learn there's nothing there.
func (d *Daemon) computeCallHierarchy(ctx context.Context, entry *poolEntry, req CallHierarchyRequest) (CallHierarchyResult, error) {
	respCache, cacheErr := d.responseCacheFor(entry.workspaceRoot)
	var paramsHash, contentHash string
	if cacheErr == nil {
		paramsHash = HashKey(req.Pattern)
		contentHash = fileContentHash(req.FilePath)
		if payload, isNone, hit, err := respCache.Get(TypeCallHierarchy, req.FilePath, paramsHash, contentHash); err == nil && hit {
			if isNone {
				return CallHierarchyResult{}, nil
			}
			var cached CallHierarchyResult
			if err := json.Unmarshal(payload, &cached); err == nil {
				return cached, nil
			}
		}
	}

	result, err := d.computeCallHierarchyLive(ctx, entry, req)
	if err == nil && cacheErr == nil {
		policy := defaultPolicies[TypeCallHierarchy]
		isNone := len(result.Callers) == 0 && len(result.Callees) == 0
		if payload, merr := json.Marshal(result); merr == nil {
			_ = respCache.Put(TypeCallHierarchy, req.FilePath, paramsHash, contentHash, payload, isNone, policy.TTL)
		}
	}
	return result, err
}

func fileContentHash(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return "unreadable"
	}
	return HashKey(string(data))
}

// computeCallHierarchyLive ensures a server is running for
// (workspaceRoot, language), transitioning the pool entry through
// Starting/Ready/Busy as spec'd, then issues the actual LSP calls. A
// language with no configured server command degrades to an empty
// result rather than erroring, so the enrichment client can proceed
// without enrichment.
func (d *Daemon) computeCallHierarchyLive(ctx context.Context, entry *poolEntry, req CallHierarchyRequest) (CallHierarchyResult, error) {
	cmd, ok := languageServerCommands[languageForPath(req.FilePath)]
	if !ok {
		return CallHierarchyResult{}, nil
	}

	if entry.currentState() == StateStarting {
		proc, err := startLSPProcess(cmd[0], cmd[1:], entry.workspaceRoot)
		if err != nil {
			entry.MarkFailing(err.Error())
			return CallHierarchyResult{}, err
		}
		var initResult json.RawMessage
		if err := proc.Call(ctx, "initialize", map[string]any{
			"processId": os.Getpid(),
			"rootUri":   "file://" + entry.workspaceRoot,
			"capabilities": map[string]any{},
		}, &initResult); err != nil {
			entry.MarkFailing(err.Error())
			_ = proc.Stop()
			return CallHierarchyResult{}, err
		}
		_ = proc.Notify("initialized", map[string]any{})
		entry.MarkReady(proc)
	}

	entry.MarkBusy()
	defer entry.MarkIdle()

	proc, ok := entry.handle.(*lspProcess)
	if !ok || proc == nil {
		return CallHierarchyResult{}, fmt.Errorf("no active language server for %s", entry.workspaceRoot)
	}

	var prepared []json.RawMessage
	if err := proc.Call(ctx, "textDocument/prepareCallHierarchy", map[string]any{
		"textDocument": map[string]any{"uri": "file://" + req.FilePath},
		"position":     map[string]any{"line": 0, "character": 0},
	}, &prepared); err != nil {
		entry.MarkFailing(err.Error())
		return CallHierarchyResult{}, err
	}
	if len(prepared) == 0 {
		return CallHierarchyResult{}, nil
	}

	var incoming, outgoing []map[string]any
	_ = proc.Call(ctx, "callHierarchy/incomingCalls", map[string]any{"item": prepared[0]}, &incoming)
	_ = proc.Call(ctx, "callHierarchy/outgoingCalls", map[string]any{"item": prepared[0]}, &outgoing)

	return CallHierarchyResult{
		Callers: toNodes(incoming, "from"),
		Callees: toNodes(outgoing, "to"),
	}, nil
}

func toNodes(raw []map[string]any, key string) []CallHierarchyNode {
	out := make([]CallHierarchyNode, 0, len(raw))
	for _, r := range raw {
		item, _ := r[key].(map[string]any)
		name, _ := item["name"].(string)
		uri, _ := item["uri"].(string)
		out = append(out, CallHierarchyNode{Name: name, FilePath: uri})
	}
	return out
}

func languageForPath(path string) string {
	switch filepath.Ext(path) {
	case ".go":
		return "go"
	case ".rs":
		return "rust"
	case ".py":
		return "python"
	case ".ts", ".tsx":
		return "typescript"
	case ".js", ".jsx", ".mjs":
		return "javascript"
	default:
		return ""
	}
}

// stdlibMarkers are substrings in a file path conservatively treated as
// "this is the language's own standard library", filtered out of
// enrichment results unless the caller opts in with include_stdlib.
var stdlibMarkers = []string{
	"rustup/toolchains",
	"go/src/",
	"goroot/src",
	"site-packages",
	"/lib/python",
}

func filterStdlib(r CallHierarchyResult) CallHierarchyResult {
	filtered := CallHierarchyResult{}
	for _, n := range r.Callers {
		if !isStdlibPath(n.FilePath) {
			filtered.Callers = append(filtered.Callers, n)
		}
	}
	for _, n := range r.Callees {
		if !isStdlibPath(n.FilePath) {
			filtered.Callees = append(filtered.Callees, n)
		}
	}
	return filtered
}

func isStdlibPath(path string) bool {
	lower := strings.ToLower(path)
	for _, marker := range stdlibMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// responseCacheFor lazily opens the per-workspace SQLite cache.
func (d *Daemon) responseCacheFor(workspaceRoot string) (*ResponseCache, error) {
	d.respMu.Lock()
	defer d.respMu.Unlock()

	id := HashKey(workspaceRoot)
	if c, ok := d.responses[id]; ok {
		return c, nil
	}
	c, err := OpenResponseCache(d.cfg.Daemon.CacheDir, id)
	if err != nil {
		return nil, err
	}
	d.responses[id] = c
	return c, nil
}

// Shutdown closes the listener, stops every pool entry, flushes the log
// ring, and releases the PID lock. Safe to call more than once.
func (d *Daemon) Shutdown(ctx context.Context) error {
	var err error
	d.shutdownOnce.Do(func() {
		close(d.done)
		if d.listener != nil {
			_ = d.listener.Close()
		}

		doneCh := make(chan struct{})
		go func() {
			d.wg.Wait()
			close(doneCh)
		}()
		select {
		case <-doneCh:
		case <-ctx.Done():
		}

		_ = d.pool.StopAll()

		d.watchMu.Lock()
		for _, w := range d.watchers {
			_ = w.Close()
		}
		d.watchMu.Unlock()

		d.respMu.Lock()
		for _, c := range d.responses {
			_ = c.Close()
		}
		d.respMu.Unlock()

		_ = d.ring.Flush()

		if d.pidLock != nil {
			err = d.pidLock.Release()
		}
		d.logger.Daemon("shut down")
	})
	return err
}
