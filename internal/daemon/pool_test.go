package daemon

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHandle struct{ stopped bool }

func (f *fakeHandle) Stop() error { f.stopped = true; return nil }

func TestPoolGetOrCreateReturnsSameEntryForSameKey(t *testing.T) {
	p := NewPool()
	a := p.GetOrCreate("/repo", "go")
	b := p.GetOrCreate("/repo", "go")
	assert.Same(t, a, b)
}

func TestPoolGetOrCreateDistinguishesLanguage(t *testing.T) {
	p := NewPool()
	a := p.GetOrCreate("/repo", "go")
	b := p.GetOrCreate("/repo", "rust")
	assert.NotSame(t, a, b)
}

func TestPoolEntryLifecycleReadyBusyIdle(t *testing.T) {
	e := newPoolEntry("/repo", "go")
	assert.Equal(t, StateStarting, e.currentState())

	e.MarkReady(&fakeHandle{})
	assert.Equal(t, StateReady, e.currentState())

	e.MarkBusy()
	assert.Equal(t, StateBusy, e.currentState())

	e.MarkIdle()
	assert.Equal(t, StateReady, e.currentState())
}

func TestPoolEntryFailingSchedulesBackoff(t *testing.T) {
	e := newPoolEntry("/repo", "go")
	e.MarkReady(&fakeHandle{})
	e.MarkFailing("crashed")

	assert.Equal(t, StateFailing, e.currentState())
	status := e.Status()
	assert.Equal(t, "crashed", status.FailingReason)
	assert.False(t, e.ReadyToRestart(time.Now()))
	assert.True(t, e.ReadyToRestart(time.Now().Add(10*time.Second)))
}

func TestPoolEntrySkippedAfterMaxRetries(t *testing.T) {
	e := newPoolEntry("/repo", "go")
	for i := 0; i < maxFailingRetries; i++ {
		e.MarkFailing("fail")
		require.Equal(t, StateFailing, e.currentState())
		e.BeginRestart()
	}
	e.MarkFailing("fail")
	assert.Equal(t, StateSkipped, e.currentState())
}

func TestBackoffDurationGrowsAndCaps(t *testing.T) {
	assert.Equal(t, 5*time.Second, backoffDuration(0))
	assert.Equal(t, 10*time.Second, backoffDuration(1))
	assert.Equal(t, 320*time.Second, backoffDuration(7))
	assert.Equal(t, 320*time.Second, backoffDuration(20))
}

func TestPoolStopAllStopsHandles(t *testing.T) {
	p := NewPool()
	e := p.GetOrCreate("/repo", "go")
	h := &fakeHandle{}
	e.MarkReady(h)

	require.NoError(t, p.StopAll())
	assert.True(t, h.stopped)
}
