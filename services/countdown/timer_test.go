package countdown

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nhashaamn/resq/models"
)

func started(t *testing.T, d time.Duration) *Timer {
	t.Helper()
	tm := New()
	require.True(t, tm.Start(d))
	require.Equal(t, Counting, tm.Phase())
	return tm
}

func TestStartOnlyFromIdle(t *testing.T) {
	tm := New()
	assert.Equal(t, Idle, tm.Phase())
	assert.False(t, tm.Start(0))
	assert.False(t, tm.Start(-time.Second))
	assert.Equal(t, Idle, tm.Phase())

	require.True(t, tm.Start(10*time.Second))
	assert.False(t, tm.Start(time.Second), "second start while counting")
	assert.Equal(t, 10*time.Second, tm.Remaining())
}

func TestTickingExactlyDurationEscalates(t *testing.T) {
	tm := started(t, 10*time.Second)

	for i := 0; i < 9; i++ {
		_, done := tm.Tick(time.Second)
		require.False(t, done, "resolved early at tick %d", i)
	}
	assert.Equal(t, time.Second, tm.Remaining())
	assert.Equal(t, 1, tm.RemainingSeconds())

	out, done := tm.Tick(time.Second)
	require.True(t, done)
	assert.Equal(t, Outcome{Action: models.ActionEscalate, ResolvedBy: models.ResolvedByTimeout}, out)
	assert.Equal(t, Resolved, tm.Phase())
	assert.Equal(t, time.Duration(0), tm.Remaining())
}

func TestTickingLessNeverResolves(t *testing.T) {
	tm := started(t, 3*time.Second)
	_, done := tm.Tick(2999 * time.Millisecond)
	assert.False(t, done)
	assert.Equal(t, Counting, tm.Phase())
	assert.Equal(t, 1, tm.RemainingSeconds())
}

func TestOvershootingTickEscalates(t *testing.T) {
	tm := started(t, time.Second)
	out, done := tm.Tick(5 * time.Second)
	require.True(t, done)
	assert.Equal(t, models.ActionEscalate, out.Action)
	assert.Equal(t, time.Duration(0), tm.Remaining())
}

func TestConfirmSuppressesAndLateTicksAreIgnored(t *testing.T) {
	tm := started(t, 10*time.Second)
	tm.Tick(4 * time.Second)

	out, ok := tm.Confirm()
	require.True(t, ok)
	assert.Equal(t, Outcome{Action: models.ActionSuppress, ResolvedBy: models.ResolvedByConfirm}, out)

	for i := 0; i < 20; i++ {
		_, done := tm.Tick(time.Second)
		require.False(t, done)
	}
	final, resolved := tm.Outcome()
	require.True(t, resolved)
	assert.Equal(t, models.ActionSuppress, final.Action)
}

func TestDeclineEscalatesImmediately(t *testing.T) {
	tm := started(t, 10*time.Second)

	out, ok := tm.Decline()
	require.True(t, ok)
	assert.Equal(t, Outcome{Action: models.ActionEscalate, ResolvedBy: models.ResolvedByDecline}, out)
	assert.Equal(t, 10*time.Second, tm.Remaining())
}

func TestResolvedIsTerminal(t *testing.T) {
	tm := started(t, time.Second)
	_, ok := tm.Decline()
	require.True(t, ok)

	_, ok = tm.Confirm()
	assert.False(t, ok)
	_, ok = tm.Decline()
	assert.False(t, ok)
	assert.False(t, tm.Start(time.Second))

	out, _ := tm.Outcome()
	assert.Equal(t, models.ResolvedByDecline, out.ResolvedBy)
}

func TestCallsOnIdleTimerAreNoOps(t *testing.T) {
	tm := New()
	_, ok := tm.Confirm()
	assert.False(t, ok)
	_, ok = tm.Decline()
	assert.False(t, ok)
	_, ok = tm.Tick(time.Hour)
	assert.False(t, ok)
	_, resolved := tm.Outcome()
	assert.False(t, resolved)
}

func TestConcurrentResolutionHasSingleWinner(t *testing.T) {
	for round := 0; round < 50; round++ {
		tm := started(t, time.Second)

		var wg sync.WaitGroup
		var mu sync.Mutex
		winners := 0
		win := func(_ Outcome, ok bool) {
			if ok {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}

		wg.Add(3)
		go func() { defer wg.Done(); win(tm.Tick(time.Second)) }()
		go func() { defer wg.Done(); win(tm.Confirm()) }()
		go func() { defer wg.Done(); win(tm.Decline()) }()
		wg.Wait()

		require.Equal(t, 1, winners)
		require.Equal(t, Resolved, tm.Phase())
	}
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "counting", Counting.String())
	assert.Equal(t, "resolved", Resolved.String())
	assert.Equal(t, "unknown", Phase(9).String())
}
