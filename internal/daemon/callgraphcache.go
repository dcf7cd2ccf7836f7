package daemon

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// NodeKey identifies one symbol's call-hierarchy entry in the graph:
// its defining file, name, and the content hash of the file that
// produced the entry. Folding the content hash into the key means a
// file edit changes which cache entry a lookup hits instead of
// extending the life of a stale one — InvalidateFile's fsnotify-driven
// eviction is then a latency optimization, not the only thing standing
// between a caller and a stale result.
type NodeKey struct {
	FilePath    string
	Symbol      string
	ContentHash string
}

func (k NodeKey) cacheKey() string { return k.FilePath + "#" + k.Symbol + "#" + k.ContentHash }

type cacheEntry struct {
	value     CallHierarchyResult
	expiresAt time.Time
}

// CallGraphCache sits in front of the universal response cache,
// providing single-flight-deduplicated, TTL-expiring, LRU-bounded
// lookups, plus a bidirectional edge index so a file edit can
// invalidate not just its own nodes but callers/callees up to a
// configured depth (§4.8).
type CallGraphCache struct {
	group singleflight.Group
	lru   *lru.Cache[string, cacheEntry]
	ttl   time.Duration

	mu    sync.Mutex
	edges map[string]map[string]struct{} // node -> neighbours (both directions)
}

func NewCallGraphCache(capacity int, ttl time.Duration) *CallGraphCache {
	if capacity <= 0 {
		capacity = 10000
	}
	c, _ := lru.New[string, cacheEntry](capacity)
	return &CallGraphCache{lru: c, ttl: ttl, edges: make(map[string]map[string]struct{})}
}

// GetOrCompute returns the cached result for key if present and
// unexpired, otherwise calls compute exactly once even under concurrent
// callers for the same key (verified by the single-flight group), and
// populates both the LRU and the edge index from the result's
// callers/callees before returning.
func (c *CallGraphCache) GetOrCompute(key NodeKey, compute func() (CallHierarchyResult, error)) (CallHierarchyResult, error) {
	ck := key.cacheKey()

	if e, ok := c.lru.Get(ck); ok && time.Now().Before(e.expiresAt) {
		return e.value, nil
	}

	v, err, _ := c.group.Do(ck, func() (any, error) {
		result, err := compute()
		if err != nil {
			return CallHierarchyResult{}, err
		}
		c.lru.Add(ck, cacheEntry{value: result, expiresAt: time.Now().Add(c.ttl)})
		c.indexEdges(ck, result)
		return result, nil
	})
	if err != nil {
		return CallHierarchyResult{}, err
	}
	return v.(CallHierarchyResult), nil
}

func (c *CallGraphCache) indexEdges(node string, result CallHierarchyResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.edges[node]; !ok {
		c.edges[node] = make(map[string]struct{})
	}
	link := func(other string) {
		c.edges[node][other] = struct{}{}
		if _, ok := c.edges[other]; !ok {
			c.edges[other] = make(map[string]struct{})
		}
		c.edges[other][node] = struct{}{}
	}
	for _, caller := range result.Callers {
		link(NodeKey{FilePath: caller.FilePath, Symbol: caller.Name, ContentHash: fileContentHash(caller.FilePath)}.cacheKey())
	}
	for _, callee := range result.Callees {
		link(NodeKey{FilePath: callee.FilePath, Symbol: callee.Name, ContentHash: fileContentHash(callee.FilePath)}.cacheKey())
	}
}

// InvalidateFile removes every cached node defined in path, plus its
// reverse neighbours up to maxDepth hops in the edge graph, so a stale
// caller/callee list doesn't linger after the referenced file changes.
func (c *CallGraphCache) InvalidateFile(path string, maxDepth int) {
	c.mu.Lock()
	seeds := make([]string, 0)
	for node := range c.edges {
		if nodeFilePath(node) == path {
			seeds = append(seeds, node)
		}
	}

	visited := make(map[string]struct{})
	frontier := seeds
	for depth := 0; depth <= maxDepth && len(frontier) > 0; depth++ {
		next := make([]string, 0)
		for _, n := range frontier {
			if _, ok := visited[n]; ok {
				continue
			}
			visited[n] = struct{}{}
			for neighbour := range c.edges[n] {
				next = append(next, neighbour)
			}
		}
		frontier = next
	}
	for n := range visited {
		delete(c.edges, n)
	}
	c.mu.Unlock()

	for n := range visited {
		c.lru.Remove(n)
	}
}

// nodeFilePath extracts the FilePath segment from a cacheKey. FilePath
// is assumed never to contain '#', so splitting on the first
// occurrence isolates it regardless of how many '#'-delimited segments
// follow (Symbol, ContentHash).
func nodeFilePath(cacheKey string) string {
	for i := 0; i < len(cacheKey); i++ {
		if cacheKey[i] == '#' {
			return cacheKey[:i]
		}
	}
	return cacheKey
}
