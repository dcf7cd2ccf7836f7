package assemble

import (
	"testing"

	"github.com/probelabs/probe/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func block(file string, start, end int, code string) *types.Block {
	return &types.Block{File: file, StartLine: start, EndLine: end, NodeType: types.NodeFunction, Code: code}
}

func TestAssembleAppliesMaxResults(t *testing.T) {
	blocks := []*types.Block{
		block("a.go", 1, 2, "x"),
		block("b.go", 1, 2, "y"),
		block("c.go", 1, 2, "z"),
	}
	out, diag := Assemble(blocks, NewSessionMemory(), Limits{MaxResults: 2})
	require.Len(t, out, 2)
	assert.True(t, diag.ResultsCapped)
}

func TestAssembleAppliesMaxBytes(t *testing.T) {
	blocks := []*types.Block{
		block("a.go", 1, 2, "0123456789"),
		block("b.go", 1, 2, "0123456789"),
	}
	out, diag := Assemble(blocks, NewSessionMemory(), Limits{MaxBytes: 15})
	require.Len(t, out, 1)
	assert.True(t, diag.BytesCapped)
}

func TestAssembleSkipsAlreadySeenBlocks(t *testing.T) {
	mem := NewSessionMemory()
	b := block("a.go", 1, 2, "x")
	mem.Record(b.BlockID())

	out, diag := Assemble([]*types.Block{b}, mem, Limits{})
	assert.Empty(t, out)
	assert.Equal(t, 1, diag.SessionDeduped)
}

func TestAssembleRecordsEmittedBlocksIntoSession(t *testing.T) {
	mem := NewSessionMemory()
	b := block("a.go", 1, 2, "x")

	out1, _ := Assemble([]*types.Block{b}, mem, Limits{})
	require.Len(t, out1, 1)

	out2, diag2 := Assemble([]*types.Block{b}, mem, Limits{})
	assert.Empty(t, out2)
	assert.Equal(t, 1, diag2.SessionDeduped)
}

func TestAssembleNoLimitsReturnsEverything(t *testing.T) {
	blocks := []*types.Block{block("a.go", 1, 2, "x"), block("b.go", 1, 2, "y")}
	out, diag := Assemble(blocks, nil, Limits{})
	assert.Len(t, out, 2)
	assert.False(t, diag.ResultsCapped)
	assert.False(t, diag.BytesCapped)
	assert.False(t, diag.TokensCapped)
}

func TestSessionMemorySnapshotAndRestoreRoundTrip(t *testing.T) {
	mem := NewSessionMemory()
	mem.Record("a.go:1-2:function")
	mem.Record("b.go:3-4:function")

	restored := NewSessionMemory()
	restored.Restore(mem.Snapshot())

	assert.Equal(t, 2, restored.Len())
	assert.True(t, restored.Seen("a.go:1-2:function"))
	assert.True(t, restored.Seen("b.go:3-4:function"))
}
