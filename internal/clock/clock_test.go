package clock

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVirtual_AdvanceRunsPendingOnce(t *testing.T) {
	v := NewVirtual(100)
	var seen []float64
	var loop FrameFunc
	loop = func(now float64) {
		seen = append(seen, now)
		v.RequestFrame(loop)
	}
	v.RequestFrame(loop)

	v.Advance(16)
	v.Advance(16)
	assert.Equal(t, []float64{116, 132}, seen)
	assert.Equal(t, 1, v.Pending())
}

func TestVirtual_Cancel(t *testing.T) {
	v := NewVirtual(0)
	ran := false
	id := v.RequestFrame(func(float64) { ran = true })
	v.CancelFrame(id)
	v.Advance(10)
	assert.False(t, ran)
	assert.Zero(t, v.Pending())
}

func TestTicker_RunsUnderLock(t *testing.T) {
	var mu sync.Mutex
	tk := NewTicker(&mu, time.Millisecond)
	done := make(chan float64, 1)
	tk.RequestFrame(func(now float64) {
		assert.False(t, mu.TryLock(), "frame must hold the lock")
		done <- now
	})

	select {
	case now := <-done:
		assert.Greater(t, now, 0.0)
	case <-time.After(2 * time.Second):
		t.Fatal("frame never ran")
	}
}

func TestTicker_CancelUnderLockPreventsRun(t *testing.T) {
	var mu sync.Mutex
	tk := NewTicker(&mu, time.Millisecond)
	var ran atomic.Bool

	mu.Lock()
	id := tk.RequestFrame(func(float64) { ran.Store(true) })
	time.Sleep(10 * time.Millisecond) // timer fires and blocks on the lock
	tk.CancelFrame(id)
	mu.Unlock()

	time.Sleep(20 * time.Millisecond)
	require.False(t, ran.Load())
}
