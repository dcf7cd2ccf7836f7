// Package types holds the shared data model described by the engine's
// design: terms, query plans, line-hit maps, extracted blocks, and the
// cache identity types used by the daemon. Most packages in the module
// import this one; it imports no other package of the module.
package types

import "sort"

// FileID is a stable identifier for a file within one search invocation.
// It is assigned by the scanner in discovery order and is only used to
// correlate per-file structures cheaply; it carries no meaning across
// invocations.
type FileID uint32

// Term is one normalized query term: a surface word or stem, tagged with
// the boolean modifiers the query compiler recognizes.
//
// Terms produced by splitting a compound identifier (get_user_id ->
// get, user, id) never carry Excluded=true: the split only ever happens
// for non-excluded, non-quoted terms. See QueryPlan.
type Term struct {
	Text        string
	Required    bool
	Excluded    bool
	QuotedExact bool
	Stem        string
	Index       uint32
}

// FileFilters are the non-content constraints extracted from a query's
// boolean AST (ext:, file:, dir:, type:, lang:). They are evaluated
// against a candidate file path before any content matching happens.
type FileFilters struct {
	Extensions       map[string]struct{}
	FileGlobPatterns []string
	DirSubstrings    []string
	Languages        []string
	Types            []string
}

// NewFileFilters returns an empty, ready-to-use FileFilters.
func NewFileFilters() *FileFilters {
	return &FileFilters{Extensions: make(map[string]struct{})}
}

// IsEmpty reports whether no filter constrains anything, i.e. every file
// passes.
func (f *FileFilters) IsEmpty() bool {
	return len(f.Extensions) == 0 && len(f.FileGlobPatterns) == 0 &&
		len(f.DirSubstrings) == 0 && len(f.Languages) == 0 && len(f.Types) == 0
}

// BoolOp is a boolean connective in the simplified query AST.
type BoolOp int

const (
	OpTerm BoolOp = iota
	OpAnd
	OpOr
	OpNot
)

// BoolExpr is the simplified boolean AST over content terms only; filter
// nodes are extracted and removed before this tree is built (see
// internal/query's extract_and_simplify step).
type BoolExpr struct {
	Op       BoolOp
	Term     *Term  // valid when Op == OpTerm
	Children []*BoolExpr
}

// QueryPlan is the immutable output of the query compiler: everything
// downstream components need to scan, extract, and rank.
type QueryPlan struct {
	Terms         []Term
	AST           *BoolExpr
	Filters       *FileFilters
	Patterns      []TermPattern
	TermIndex     map[string]uint32
	RequiredTerms map[uint32]struct{}
	ExcludedTerms map[uint32]struct{}
	AnyTerm       bool // implicit-OR between adjacent bare terms
	StrictMode    bool
	Raw           string
}

// TermPattern pairs a term index with its compiled regexp source; the
// query package owns compilation, this package only carries the index.
type TermPattern struct {
	TermIndex uint32
	Source    string
	Exact     bool
}

// RequiredSatisfied reports whether the given set of matched term
// indices satisfies every required term and no excluded term (invariant
// 6 in the data model: required AND, excluded veto).
func (p *QueryPlan) RequiredSatisfied(matched map[uint32]struct{}) bool {
	for idx := range p.RequiredTerms {
		if _, ok := matched[idx]; !ok {
			return false
		}
	}
	for idx := range p.ExcludedTerms {
		if _, ok := matched[idx]; ok {
			return false
		}
	}
	return true
}

// LineHits is a per-file map from term index to the sorted, deduplicated
// set of 1-based line numbers on which that term matched.
type LineHits map[uint32][]int

// AddHit records a single line hit for a term, keeping the slice sorted
// and free of duplicates.
func (h LineHits) AddHit(term uint32, line int) {
	lines := h[term]
	i := sort.SearchInts(lines, line)
	if i < len(lines) && lines[i] == line {
		return
	}
	lines = append(lines, 0)
	copy(lines[i+1:], lines[i:])
	lines[i] = line
	h[term] = lines
}

// UniqueTerms returns the number of distinct term indices with at least
// one hit.
func (h LineHits) UniqueTerms() int {
	return len(h)
}

// TotalMatches returns the sum of hit counts across all terms.
func (h LineHits) TotalMatches() int {
	total := 0
	for _, lines := range h {
		total += len(lines)
	}
	return total
}

// FileScanResult is one scanned file's contribution: its path, per-term
// line hits, which terms matched the filename itself, and the file's
// total line count.
type FileScanResult struct {
	ID               FileID
	Path             string
	Lines            LineHits
	FilenameHitTerms map[uint32]struct{}
	LineCount        int
	Err              error
}

// NodeType enumerates the kinds a Block's source region can have.
type NodeType string

const (
	NodeFunction NodeType = "function"
	NodeMethod   NodeType = "method"
	NodeStruct   NodeType = "struct"
	NodeClass    NodeType = "class"
	NodeInterface NodeType = "interface"
	NodeTrait    NodeType = "trait"
	NodeImpl     NodeType = "impl"
	NodeModule   NodeType = "module"
	NodeContext  NodeType = "context"
	NodeFile     NodeType = "file"
	NodeMerged   NodeType = "merged"
)

// SymbolSpan names one top-level symbol contained in a block, used when
// a block spans multiple acceptable parents (after merging, or for
// file-level matches).
type SymbolSpan struct {
	Name      string
	StartLine int
	EndLine   int
	Kind      NodeType
}

// Block is an extracted, scored, optionally-enriched code region — the
// unit of search output.
type Block struct {
	File      string
	StartLine int
	EndLine   int
	NodeType  NodeType
	Code      string

	LinesOfMatch     map[int]struct{}
	BlockUniqueTerms int
	BlockTotalMatches int
	FileUniqueTerms  int
	FileTotalMatches int
	MatchedLines     []int
	MatchedKeywords  []string

	SymbolSignature string
	ParentContext   string
	Symbols         []SymbolSpan

	Score float64
	Rank  int

	// Per-rank-method intermediate scores, recorded by the ranker after
	// scoring; the hybrid fusion reads its own local score arrays, not these.
	BM25Score   float64
	TFIDFScore  float64

	LspInfo map[string]any
}

// BlockID returns the stable per-session dedup key for a block.
func (b *Block) BlockID() string {
	return BlockIDOf(b.File, b.StartLine, b.EndLine, string(b.NodeType))
}

// BlockIDOf computes a block's stable identity without requiring a
// constructed Block, so the assembler and tests can compute it from
// bare coordinates.
func BlockIDOf(file string, start, end int, nodeType string) string {
	return file + ":" + itoa(start) + "-" + itoa(end) + ":" + nodeType
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// NodeId identifies a symbol by file and name only — stable across edits
// to the file's content, used for call-graph edges and invalidation.
type NodeId struct {
	Symbol       string
	AbsolutePath string
}

// NodeKey is a version-aware NodeId: identical NodeId plus a content
// digest of the file the symbol was resolved from. Two NodeKeys with the
// same NodeId but different ContentHash represent the symbol before and
// after an edit.
type NodeKey struct {
	Symbol       string
	AbsolutePath string
	ContentHash  string
}

// NodeIdOf projects a NodeKey down to its version-independent identity.
func (k NodeKey) NodeIdOf() NodeId {
	return NodeId{Symbol: k.Symbol, AbsolutePath: k.AbsolutePath}
}

// CallSite is one entry in a call hierarchy (incoming or outgoing).
type CallSite struct {
	Name       string
	FilePath   string
	Line       int
	Column     int
	SymbolKind string
}

// CallHierarchyInfo is the cached value for a NodeKey.
type CallHierarchyInfo struct {
	Incoming []CallSite
	Outgoing []CallSite
}

// CacheKey identifies one entry in the universal per-workspace LSP
// response cache.
type CacheKey struct {
	Method        string
	WorkspaceID   string
	FileContentHash string
	ParamsHash    string
}

// ServerState is a language-server pool's lifecycle state.
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
