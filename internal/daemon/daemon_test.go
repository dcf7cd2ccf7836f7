package daemon

import (
	"context"
	"encoding/json"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/probelabs/probe/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	dir := t.TempDir()
	cfg := config.Default(dir)
	cfg.Daemon.SocketPath = filepath.Join(dir, "daemon.sock")
	cfg.Daemon.PidFilePath = filepath.Join(dir, "daemon.pid")
	cfg.Daemon.LogDir = filepath.Join(dir, "logs")
	cfg.Daemon.CacheDir = filepath.Join(dir, "cache")
	return cfg
}

func TestDaemonStartAcceptsConnectionAndHandshakes(t *testing.T) {
	cfg := testConfig(t)
	d, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, d.Start())
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		d.Shutdown(ctx)
	}()

	conn, err := net.Dial("unix", cfg.Daemon.SocketPath)
	require.NoError(t, err)
	defer conn.Close()

	typ, payload, err := readEnvelope(conn)
	require.NoError(t, err)
	assert.Equal(t, TypeConnected, typ)

	var connected ConnectedResponse
	require.NoError(t, json.Unmarshal(payload, &connected))
	assert.Equal(t, ProtocolVersion, connected.ProtocolVersion)
}

func TestDaemonRespondsToPing(t *testing.T) {
	cfg := testConfig(t)
	d, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, d.Start())
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		d.Shutdown(ctx)
	}()

	conn, err := net.Dial("unix", cfg.Daemon.SocketPath)
	require.NoError(t, err)
	defer conn.Close()

	_, _, err = readEnvelope(conn) // drain Connected
	require.NoError(t, err)

	require.NoError(t, writeEnvelope(conn, TypePing, PingRequest{RequestID: "ping-1"}))

	typ, payload, err := readEnvelope(conn)
	require.NoError(t, err)
	assert.Equal(t, TypePong, typ)

	var pong PongResponse
	require.NoError(t, json.Unmarshal(payload, &pong))
	assert.Equal(t, "ping-1", pong.RequestID)
}

func TestDaemonSecondInstanceFailsToAcquireLock(t *testing.T) {
	cfg := testConfig(t)
	d1, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, d1.Start())
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		d1.Shutdown(ctx)
	}()

	d2, err := New(cfg)
	require.NoError(t, err)
	err = d2.Start()
	assert.ErrorIs(t, err, ErrAlreadyRunning)
}
