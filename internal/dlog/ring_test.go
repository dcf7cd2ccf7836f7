package dlog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingAssignsMonotonicSequence(t *testing.T) {
	r := NewRing(10)
	e1 := r.Push("info", "first")
	e2 := r.Push("info", "second")
	assert.Equal(t, uint64(1), e1.Sequence)
	assert.Equal(t, uint64(2), e2.Sequence)
}

func TestRingEvictsOldestOnOverflow(t *testing.T) {
	r := NewRing(2)
	r.Push("info", "a")
	r.Push("info", "b")
	r.Push("info", "c")

	all := r.Since(0, 0)
	require.Len(t, all, 2)
	assert.Equal(t, "b", all[0].Message)
	assert.Equal(t, "c", all[1].Message)
}

func TestRingSinceReturnsOnlyNewerEntries(t *testing.T) {
	r := NewRing(10)
	r.Push("info", "a")
	second := r.Push("info", "b")
	r.Push("info", "c")

	newer := r.Since(second.Sequence, 0)
	require.Len(t, newer, 1)
	assert.Equal(t, "c", newer[0].Message)
}

func TestRingSinceRespectsLimit(t *testing.T) {
	r := NewRing(10)
	for i := 0; i < 5; i++ {
		r.Push("info", "x")
	}
	assert.Len(t, r.Since(0, 2), 2)
}

func TestOpenPersistentRingRotatesPreviousLog(t *testing.T) {
	dir := t.TempDir()

	p1, err := OpenPersistentRing(dir, 10)
	require.NoError(t, err)
	p1.Push("info", "first-run")
	require.NoError(t, p1.Flush())

	p2, err := OpenPersistentRing(dir, 10)
	require.NoError(t, err)
	p2.Push("info", "second-run")
	require.NoError(t, p2.Flush())

	_, err = os.Stat(filepath.Join(dir, previousLogName))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, currentLogName))
	require.NoError(t, err)
}
