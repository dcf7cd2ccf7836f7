// Package lspclient is the enrichment client (§4.9): given ranked
// blocks, it talks to the LSP daemon over its framed Unix-socket
// protocol to attach call-hierarchy information, degrading gracefully
// to an unenriched block on timeout or when the daemon is unavailable.
package lspclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/probelabs/probe/internal/daemon"
	"github.com/probelabs/probe/internal/syntax"
	"github.com/probelabs/probe/internal/types"
)

// Client is a connection to the running daemon. A nil *Client (e.g.
// when the daemon could not be reached) makes Enrich a no-op, so
// callers don't need to branch on availability themselves.
type Client struct {
	conn    net.Conn
	timeout time.Duration
	nextReq int64
}

// Dial connects to the daemon's socket. Callers that can't connect
// (daemon not running, socket stale) should treat that as "no
// enrichment available" rather than a hard error — see
// pipeline.SearchRequest.LspClient for how a nil Client is threaded through.
func Dial(socketPath string, timeout time.Duration) (*Client, error) {
	conn, err := net.DialTimeout("unix", socketPath, timeout)
	if err != nil {
		return nil, fmt.Errorf("connecting to daemon: %w", err)
	}

	// Drain the Connected handshake frame.
	var env struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	conn.SetReadDeadline(time.Now().Add(timeout))
	if err := readJSONFrame(conn, &env); err != nil {
		conn.Close()
		return nil, fmt.Errorf("reading handshake: %w", err)
	}

	return &Client{conn: conn, timeout: timeout}, nil
}

func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// Symbol is a top-level symbol span collected from a block's syntax
// tree, the unit call-hierarchy enrichment is requested per.
type Symbol struct {
	Name      string
	StartLine int
	EndLine   int
}

// CollectSymbols returns the symbol spans the block extractor already
// recorded in block.Symbols; it does not parse the code, and registry
// and lang are not used. A block with none (plain-text context
// fallback, or an unsupported language) yields no symbols and therefore
// no enrichment requests.
func CollectSymbols(registry *syntax.Registry, lang string, block *types.Block) []Symbol {
	out := make([]Symbol, 0, len(block.Symbols))
	for _, s := range block.Symbols {
		out = append(out, Symbol{Name: s.Name, StartLine: s.StartLine, EndLine: s.EndLine})
	}
	return out
}

// Enrich requests call-hierarchy info for each symbol in block and
// attaches it under block.LspInfo. A block with more than one symbol
// (merged blocks) gets lsp_info.merged=true with one entry per symbol.
// Any failure — timeout, daemon unreachable, per-symbol error — leaves
// the block without enrichment for that symbol rather than failing the
// whole search.
func (c *Client) Enrich(ctx context.Context, block *types.Block, symbols []Symbol, includeStdlib bool) {
	if c == nil || len(symbols) == 0 {
		return
	}

	if len(symbols) == 1 {
		result, err := c.callHierarchy(ctx, block.File, symbols[0].Name, includeStdlib)
		if err != nil {
			return
		}
		if block.LspInfo == nil {
			block.LspInfo = map[string]any{}
		}
		block.LspInfo["call_hierarchy"] = result
		return
	}

	merged := make(map[string]daemon.CallHierarchyResult, len(symbols))
	for _, sym := range symbols {
		result, err := c.callHierarchy(ctx, block.File, sym.Name, includeStdlib)
		if err != nil {
			continue
		}
		merged[sym.Name] = result
	}
	if block.LspInfo == nil {
		block.LspInfo = map[string]any{}
	}
	block.LspInfo["merged"] = true
	block.LspInfo["per_symbol"] = merged
}

func (c *Client) callHierarchy(ctx context.Context, filePath, symbol string, includeStdlib bool) (daemon.CallHierarchyResult, error) {
	deadline, ok := ctx.Deadline()
	if ok {
		c.conn.SetDeadline(deadline)
	} else {
		c.conn.SetDeadline(time.Now().Add(c.timeout))
	}

	c.nextReq++
	reqID := fmt.Sprintf("req-%d", c.nextReq)

	req := daemon.CallHierarchyRequest{RequestID: reqID, FilePath: filePath, Pattern: symbol, IncludeStdlib: includeStdlib}
	if err := writeJSONFrame(c.conn, daemon.Envelope{Type: daemon.TypeCallHierarchy, Payload: req}); err != nil {
		return daemon.CallHierarchyResult{}, err
	}

	var env struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := readJSONFrame(c.conn, &env); err != nil {
		return daemon.CallHierarchyResult{}, err
	}
	if env.Type == daemon.TypeError {
		var errResp daemon.ErrorResponse
		_ = json.Unmarshal(env.Payload, &errResp)
		return daemon.CallHierarchyResult{}, fmt.Errorf("daemon error: %s", errResp.Error)
	}

	var resp daemon.CallHierarchyResponse
	if err := json.Unmarshal(env.Payload, &resp); err != nil {
		return daemon.CallHierarchyResult{}, err
	}
	return resp.Result, nil
}
