package daemon

import (
	"fmt"
	"sync"
	"time"
)

// ServerState is a language server's lifecycle state, §4.8.
type ServerState int

const (
	StateStarting ServerState = iota
	StateReady
	StateBusy
	StateFailing
	StateSkipped
)

func (s ServerState) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateReady:
		return "ready"
	case StateBusy:
		return "busy"
	case StateFailing:
		return "failing"
	case StateSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// backoffBase and backoffCap implement the 5s*2^n schedule capped at
// 320s with a max of 7 attempts before a pool is permanently Skipped.
const (
	backoffBase     = 5 * time.Second
	backoffCap      = 320 * time.Second
	maxFailingRetries = 7
)

func backoffDuration(attempt int) time.Duration {
	d := backoffBase
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= backoffCap {
			return backoffCap
		}
	}
	return d
}

// serverHandle is the process-level handle a pool entry owns once it
// reaches Ready; daemon.go plugs in the actual stdio/JSON-RPC transport,
// this package only tracks the lifecycle around it.
type serverHandle interface {
	Stop() error
}

// poolEntry is the state for one (workspace_root, language) pair.
type poolEntry struct {
	mu            sync.Mutex
	workspaceRoot string
	language      string
	state         ServerState
	attempts      int
	nextRetry     time.Time
	failingReason string
	handle        serverHandle
}

func newPoolEntry(workspaceRoot, language string) *poolEntry {
	return &poolEntry{workspaceRoot: workspaceRoot, language: language, state: StateStarting}
}

// MarkReady transitions Starting/Failing → Ready and resets the retry
// counter; a server that later crashes starts its backoff from n=0
// again rather than carrying the old attempt count forward.
func (e *poolEntry) MarkReady(h serverHandle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = StateReady
	e.attempts = 0
	e.handle = h
	e.failingReason = ""
}

// MarkBusy transitions Ready → Busy for the duration of an outstanding
// request.
func (e *poolEntry) MarkBusy() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateReady {
		e.state = StateBusy
	}
}

// MarkIdle transitions Busy → Ready once a response arrives.
func (e *poolEntry) MarkIdle() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateBusy {
		e.state = StateReady
	}
}

// MarkFailing records a crash/timeout/protocol-error, bumping the
// attempt counter and computing the next retry time. Once attempts
// exceeds maxFailingRetries the pool is permanently Skipped for this
// workspace.
func (e *poolEntry) MarkFailing(reason string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.handle != nil {
		_ = e.handle.Stop()
		e.handle = nil
	}

	e.failingReason = reason
	if e.attempts >= maxFailingRetries {
		e.state = StateSkipped
		return
	}

	e.state = StateFailing
	e.nextRetry = time.Now().Add(backoffDuration(e.attempts))
	e.attempts++
}

// ReadyToRestart reports whether a Failing entry's backoff has elapsed,
// meaning the pool should attempt Starting again.
func (e *poolEntry) ReadyToRestart(now time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state == StateFailing && !now.Before(e.nextRetry)
}

// BeginRestart transitions Failing → Starting.
func (e *poolEntry) BeginRestart() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = StateStarting
}

func (e *poolEntry) Status() WorkspaceStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	ws := WorkspaceStatus{
		WorkspaceRoot: e.workspaceRoot,
		Language:      e.language,
		State:         e.state.String(),
		FailingReason: e.failingReason,
		Attempts:      e.attempts,
	}
	if e.state == StateFailing {
		ws.NextRetryUnix = e.nextRetry.Unix()
	}
	return ws
}

func (e *poolEntry) currentState() ServerState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Pool owns one poolEntry per (workspace_root, language), guarded by a
// single mutex per §5's "at most one initialize in flight per pool"
// ordering guarantee: callers take mu before constructing a new entry
// so two concurrent requests for the same key never race to start two
// servers.
type Pool struct {
	mu      sync.Mutex
	entries map[string]*poolEntry
}

func NewPool() *Pool {
	return &Pool{entries: make(map[string]*poolEntry)}
}

func poolKey(workspaceRoot, language string) string {
	return workspaceRoot + "\x00" + language
}

// GetOrCreate returns the existing entry for (workspaceRoot, language),
// or creates one in the Starting state.
func (p *Pool) GetOrCreate(workspaceRoot, language string) *poolEntry {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := poolKey(workspaceRoot, language)
	if e, ok := p.entries[key]; ok {
		return e
	}
	e := newPoolEntry(workspaceRoot, language)
	p.entries[key] = e
	return e
}

// All returns every tracked entry's status, for Status responses.
func (p *Pool) All() []WorkspaceStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]WorkspaceStatus, 0, len(p.entries))
	for _, e := range p.entries {
		out = append(out, e.Status())
	}
	return out
}

// StopAll stops every live server handle, for graceful shutdown.
func (p *Pool) StopAll() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	for _, e := range p.entries {
		e.mu.Lock()
		if e.handle != nil {
			if err := e.handle.Stop(); err != nil && firstErr == nil {
				firstErr = fmt.Errorf("stopping %s/%s: %w", e.workspaceRoot, e.language, err)
			}
			e.handle = nil
		}
		e.mu.Unlock()
	}
	return firstErr
}
