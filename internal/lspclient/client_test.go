package lspclient

import (
	"context"
	"encoding/json"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/probelabs/probe/internal/daemon"
	"github.com/probelabs/probe/internal/types"
	"github.com/stretchr/testify/require"
)

// fakeDaemon is a minimal stand-in for the real daemon's accept loop: it
// accepts one connection, sends the Connected handshake and then answers
// every call_hierarchy request on it with result, so the client's wire handling
// can be tested without spawning real language servers.
func fakeDaemon(t *testing.T, socketPath string, result daemon.CallHierarchyResult) {
	t.Helper()
	ln, err := net.Listen("unix", socketPath)
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		_ = writeJSONFrame(conn, daemon.Envelope{
			Type:    daemon.TypeConnected,
			Payload: daemon.ConnectedResponse{DaemonVersion: "test", ProtocolVersion: daemon.ProtocolVersion},
		})

		for {
			var env struct {
				Type    string          `json:"type"`
				Payload json.RawMessage `json:"payload"`
			}
			if err := readJSONFrame(conn, &env); err != nil {
				return
			}
			var req daemon.CallHierarchyRequest
			_ = json.Unmarshal(env.Payload, &req)
			_ = writeJSONFrame(conn, daemon.Envelope{
				Type:    daemon.TypeCallHierarchy,
				Payload: daemon.CallHierarchyResponse{RequestID: req.RequestID, Result: result},
			})
		}
	}()
}

func TestClientDialReadsHandshake(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "daemon.sock")
	fakeDaemon(t, sock, daemon.CallHierarchyResult{})

	c, err := Dial(sock, time.Second)
	require.NoError(t, err)
	defer c.Close()
}

func TestEnrichSingleSymbolAttachesCallHierarchy(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "daemon.sock")
	want := daemon.CallHierarchyResult{Callers: []daemon.CallHierarchyNode{{Name: "caller", FilePath: "a.go", Line: 1}}}
	fakeDaemon(t, sock, want)

	c, err := Dial(sock, time.Second)
	require.NoError(t, err)
	defer c.Close()

	block := &types.Block{File: "a.go"}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	c.Enrich(ctx, block, []Symbol{{Name: "Foo", StartLine: 1, EndLine: 3}}, false)

	require.NotNil(t, block.LspInfo)
	got, ok := block.LspInfo["call_hierarchy"].(daemon.CallHierarchyResult)
	require.True(t, ok)
	require.Equal(t, want, got)
}

func TestEnrichMergedBlockRequestsPerSymbol(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "daemon.sock")
	want := daemon.CallHierarchyResult{Callees: []daemon.CallHierarchyNode{{Name: "callee", FilePath: "b.go", Line: 2}}}
	fakeDaemon(t, sock, want)

	c, err := Dial(sock, time.Second)
	require.NoError(t, err)
	defer c.Close()

	block := &types.Block{File: "b.go"}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	c.Enrich(ctx, block, []Symbol{{Name: "Foo"}, {Name: "Bar"}}, false)

	require.Equal(t, true, block.LspInfo["merged"])
	perSymbol, ok := block.LspInfo["per_symbol"].(map[string]daemon.CallHierarchyResult)
	require.True(t, ok)
	require.Len(t, perSymbol, 2)
	require.Equal(t, want, perSymbol["Foo"])
}

func TestEnrichNilClientIsNoop(t *testing.T) {
	var c *Client
	block := &types.Block{File: "x.go"}
	c.Enrich(context.Background(), block, []Symbol{{Name: "Foo"}}, false)
	require.Nil(t, block.LspInfo)
}

func TestEnrichNoSymbolsIsNoop(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "daemon.sock")
	fakeDaemon(t, sock, daemon.CallHierarchyResult{})

	c, err := Dial(sock, time.Second)
	require.NoError(t, err)
	defer c.Close()

	block := &types.Block{File: "x.go"}
	c.Enrich(context.Background(), block, nil, false)
	require.Nil(t, block.LspInfo)
}

func TestDialFailsWhenDaemonUnavailable(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "no-such-daemon.sock")
	_, err := Dial(sock, 100*time.Millisecond)
	require.Error(t, err)
}
