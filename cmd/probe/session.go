package main

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/probelabs/probe/internal/assemble"
)

// maxPersistedSessionIDs caps how many block ids a session file keeps;
// beyond this it's eagerly pruned down to half the cap, per §9's
// "eagerly pruned when oversized" note. Snapshot returns ids in map
// iteration order, so which ids survive the prune is arbitrary, not
// oldest-first.
const maxPersistedSessionIDs = 20000

// sessionStore loads and saves one session's SessionMemory to a JSON
// file in a per-user directory, so --session stays stable across
// separate CLI invocations rather than only within one process.
type sessionStore struct {
	path string
}

func newSessionStore(id string) *sessionStore {
	dir := filepath.Join(sessionBaseDir(), "sessions")
	return &sessionStore{path: filepath.Join(dir, id+".json")}
}

func sessionBaseDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "probe")
	}
	return filepath.Join(os.TempDir(), "probe")
}

func (s *sessionStore) Load() *assemble.SessionMemory {
	mem := assemble.NewSessionMemory()
	data, err := os.ReadFile(s.path)
	if err != nil {
		return mem
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return mem
	}
	mem.Restore(ids)
	return mem
}

func (s *sessionStore) Save(mem *assemble.SessionMemory) error {
	ids := mem.Snapshot()
	if len(ids) > maxPersistedSessionIDs {
		ids = ids[len(ids)-maxPersistedSessionIDs/2:]
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o644)
}
