package daemon

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cespare/xxhash/v2"
	_ "modernc.org/sqlite"
)

// CachePolicy is the per-method caching rule: whether caching applies
// at all, how long an entry lives, and what scope/invalidation trigger
// governs it. Scope and InvalidateOn are descriptive only: no code reads
// them, and no event handler calls InvalidatePath or InvalidateAll.
// Entries are keyed by content hash, so after a file is edited its old
// entries simply stop matching and age out by TTL.
type CachePolicy struct {
	Enabled      bool
	TTL          time.Duration
	Scope        string // "file" | "workspace" | "global"
	InvalidateOn []string
}

var defaultPolicies = map[string]CachePolicy{
	TypeCallHierarchy:  {Enabled: true, TTL: time.Hour, Scope: "file", InvalidateOn: []string{"file_edit"}},
	TypeReferences:     {Enabled: true, TTL: time.Hour, Scope: "file", InvalidateOn: []string{"file_edit"}},
	TypeDefinition:     {Enabled: true, TTL: time.Hour, Scope: "file", InvalidateOn: []string{"file_edit"}},
	TypeHover:          {Enabled: true, TTL: 10 * time.Minute, Scope: "file", InvalidateOn: []string{"file_edit"}},
	TypeImplementation: {Enabled: true, TTL: time.Hour, Scope: "file", InvalidateOn: []string{"file_edit"}},
}

// PolicyFor returns the configured cache policy for method, or a
// disabled zero-value policy if the method isn't cached at all.
func PolicyFor(method string) CachePolicy {
	return defaultPolicies[method]
}

// ResponseCache is the universal LSP response cache: a per-workspace
// embedded SQLite database with a single responses table shared by all
// methods, storing responses keyed by (method, path, params_hash,
// content_hash). There is no separate table per method and no internal
// namespace table. A row with
// is_none=1 records an explicit "none" edge — a real, cached answer of
// "nothing here" — distinct from a cache miss, so the daemon never
// re-asks the language server for a known-empty result.
type ResponseCache struct {
	db *sql.DB
}

// OpenResponseCache opens (creating if needed) the per-workspace cache
// database under cacheDir, named by workspaceID so distinct workspaces
// never share a file.
func OpenResponseCache(cacheDir, workspaceID string) (*ResponseCache, error) {
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}

	path := filepath.Join(cacheDir, workspaceID+".cache.sqlite")
	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening response cache: %w", err)
	}
	db.SetMaxOpenConns(1) // one writer per workspace database, §5

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS responses (
		method TEXT NOT NULL,
		path TEXT NOT NULL,
		params_hash TEXT NOT NULL,
		content_hash TEXT NOT NULL,
		payload BLOB NOT NULL,
		is_none INTEGER NOT NULL DEFAULT 0,
		expires_at INTEGER NOT NULL,
		PRIMARY KEY (method, path, params_hash, content_hash)
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating responses table: %w", err)
	}

	return &ResponseCache{db: db}, nil
}

func (c *ResponseCache) Close() error { return c.db.Close() }

// HashKey computes the params_hash or content_hash component of a cache
// key. Using xxhash rather than a cryptographic hash is deliberate: this
// is a cache key, not a security boundary, and speed matters on every
// request.
func HashKey(parts ...string) string {
	h := xxhash.New()
	for _, p := range parts {
		_, _ = h.WriteString(p)
		_, _ = h.Write([]byte{0})
	}
	return fmt.Sprintf("%016x", h.Sum64())
}

// Get returns (payload, isNone, true) if a live, unexpired entry
// exists. isNone distinguishes a cached "no results" answer from a
// genuine payload.
func (c *ResponseCache) Get(method, path, paramsHash, contentHash string) ([]byte, bool, bool, error) {
	var payload []byte
	var isNone int
	var expiresAt int64

	row := c.db.QueryRow(`SELECT payload, is_none, expires_at FROM responses
		WHERE method = ? AND path = ? AND params_hash = ? AND content_hash = ?`,
		method, path, paramsHash, contentHash)

	switch err := row.Scan(&payload, &isNone, &expiresAt); {
	case err == sql.ErrNoRows:
		return nil, false, false, nil
	case err != nil:
		return nil, false, false, err
	}

	if time.Now().Unix() > expiresAt {
		return nil, false, false, nil
	}
	return payload, isNone == 1, true, nil
}

// Put stores a response. isNone=true represents a semantically-empty
// but successfully-computed result (e.g. call hierarchy with zero
// edges), so future lookups short-circuit instead of re-querying the
// language server.
func (c *ResponseCache) Put(method, path, paramsHash, contentHash string, payload []byte, isNone bool, ttl time.Duration) error {
	noneFlag := 0
	if isNone {
		noneFlag = 1
	}
	_, err := c.db.Exec(`INSERT INTO responses (method, path, params_hash, content_hash, payload, is_none, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (method, path, params_hash, content_hash)
		DO UPDATE SET payload = excluded.payload, is_none = excluded.is_none, expires_at = excluded.expires_at`,
		method, path, paramsHash, contentHash, payload, noneFlag, time.Now().Add(ttl).Unix())
	return err
}

// InvalidatePath deletes every cached response whose path matches.
// The file watcher does not call it.
func (c *ResponseCache) InvalidatePath(path string) error {
	_, err := c.db.Exec(`DELETE FROM responses WHERE path = ?`, path)
	return err
}

// InvalidateAll clears every entry. No workspace event handler calls it.
func (c *ResponseCache) InvalidateAll() error {
	_, err := c.db.Exec(`DELETE FROM responses`)
	return err
}
