// Package assemble implements the result assembler (§4.7): session
// dedup against already-emitted blocks, then max_results/max_bytes/
// max_tokens soft caps applied in order over the already-ranked block
// list.
package assemble

import (
	"sync"

	"github.com/probelabs/probe/internal/types"
)

// SessionMemory tracks block IDs already emitted within one CLI/daemon
// session, so repeated searches in the same session don't resend
// identical blocks.
type SessionMemory struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewSessionMemory creates an empty session memory.
func NewSessionMemory() *SessionMemory {
	return &SessionMemory{seen: make(map[string]struct{})}
}

// Seen reports whether id was already recorded.
func (s *SessionMemory) Seen(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[id]
	return ok
}

// Record marks id as emitted.
func (s *SessionMemory) Record(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen[id] = struct{}{}
}

// Snapshot returns every recorded block id, for a caller that persists
// session memory across process invocations (§9: session memory lives
// in a small per-user directory keyed by session id).
func (s *SessionMemory) Snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.seen))
	for id := range s.seen {
		ids = append(ids, id)
	}
	return ids
}

// Restore seeds a SessionMemory from a previously-taken Snapshot.
func (s *SessionMemory) Restore(ids []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.seen[id] = struct{}{}
	}
}

// Len reports how many block ids are currently recorded.
func (s *SessionMemory) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

// Limits are the soft upper bounds applied in order: max_results,
// max_bytes (over each block's textual representation), max_tokens
// (bytes/4, rounded up). A zero value disables that cap.
type Limits struct {
	MaxResults int
	MaxBytes   int
	MaxTokens  int
}

// Diagnostics records which caps were hit, for the caller to surface to
// the user ("results truncated: max_bytes reached").
type Diagnostics struct {
	TotalCandidates  int
	Emitted          int
	ResultsCapped    bool
	BytesCapped      bool
	TokensCapped     bool
	SessionDeduped   int
}

// Assemble applies session dedup then the soft caps, in ranked order
// (ranked blocks must already be sorted by descending score — this
// package never reorders). Blocks accepted are also recorded into mem.
func Assemble(blocks []*types.Block, mem *SessionMemory, limits Limits) ([]*types.Block, Diagnostics) {
	diag := Diagnostics{TotalCandidates: len(blocks)}

	out := make([]*types.Block, 0, len(blocks))
	var bytesUsed, tokensUsed int

	for _, b := range blocks {
		id := b.BlockID()
		if mem != nil && mem.Seen(id) {
			diag.SessionDeduped++
			continue
		}

		if limits.MaxResults > 0 && len(out) >= limits.MaxResults {
			diag.ResultsCapped = true
			break
		}

		size := len(b.Code)
		if limits.MaxBytes > 0 && bytesUsed+size > limits.MaxBytes {
			diag.BytesCapped = true
			break
		}

		tokens := (size + 3) / 4 // ceil(bytes/4)
		if limits.MaxTokens > 0 && tokensUsed+tokens > limits.MaxTokens {
			diag.TokensCapped = true
			break
		}

		out = append(out, b)
		bytesUsed += size
		tokensUsed += tokens
		if mem != nil {
			mem.Record(id)
		}
	}

	diag.Emitted = len(out)
	return out, diag
}
