// Package clock provides the frame scheduler that drives timeline playback.
// Virtual is a manually advanced clock for tests; Ticker runs frames on
// wall-clock timers.
package clock

import (
	"sort"
	"sync"
	"time"
)

// FrameFunc receives the scheduler time in milliseconds.
type FrameFunc func(now float64)

// FrameID identifies a requested frame.
type FrameID uint64

// Scheduler requests one-shot frame callbacks, like requestAnimationFrame.
type Scheduler interface {
	RequestFrame(fn FrameFunc) FrameID
	CancelFrame(id FrameID)
	Now() float64
}

// Virtual is a scheduler whose time only moves on Advance.
type Virtual struct {
	now     float64
	nextID  FrameID
	pending map[FrameID]FrameFunc
}

// NewVirtual returns a virtual clock starting at now.
func NewVirtual(now float64) *Virtual {
	return &Virtual{now: now, pending: make(map[FrameID]FrameFunc)}
}

func (v *Virtual) Now() float64 { return v.now }

func (v *Virtual) RequestFrame(fn FrameFunc) FrameID {
	v.nextID++
	v.pending[v.nextID] = fn
	return v.nextID
}

func (v *Virtual) CancelFrame(id FrameID) {
	delete(v.pending, id)
}

// Pending returns the number of frames waiting to run.
func (v *Virtual) Pending() int {
	return len(v.pending)
}

// Advance moves time forward by ms and runs the frames that were pending
// before the call, in request order. Frames requested by those callbacks
// wait for the next Advance.
func (v *Virtual) Advance(ms float64) {
	v.now += ms
	ids := make([]FrameID, 0, len(v.pending))
	for id := range v.pending {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		fn, ok := v.pending[id]
		if !ok {
			continue
		}
		delete(v.pending, id)
		fn(v.now)
	}
}

// Ticker schedules frames on timers. Each frame runs while holding the
// Locker passed to NewTicker, so frames never interleave with other work
// guarded by it. A frame cancelled while holding that lock never runs.
type Ticker struct {
	lock     sync.Locker
	interval time.Duration
	epoch    time.Time

	mu     sync.Mutex
	nextID FrameID
	timers map[FrameID]*time.Timer
}

// NewTicker returns a ticker firing frames every interval.
func NewTicker(lock sync.Locker, interval time.Duration) *Ticker {
	if interval <= 0 {
		interval = 16 * time.Millisecond
	}
	return &Ticker{
		lock:     lock,
		interval: interval,
		epoch:    time.Now(),
		timers:   make(map[FrameID]*time.Timer),
	}
}

func (t *Ticker) Now() float64 {
	return float64(time.Since(t.epoch)) / float64(time.Millisecond)
}

func (t *Ticker) RequestFrame(fn FrameFunc) FrameID {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.nextID++
	id := t.nextID
	t.timers[id] = time.AfterFunc(t.interval, func() {
		t.lock.Lock()
		defer t.lock.Unlock()

		t.mu.Lock()
		_, ok := t.timers[id]
		delete(t.timers, id)
		t.mu.Unlock()
		if !ok {
			return
		}
		fn(t.Now())
	})
	return id
}

func (t *Ticker) CancelFrame(id FrameID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if tm, ok := t.timers[id]; ok {
		tm.Stop()
		delete(t.timers, id)
	}
}

// Stop cancels every pending frame.
func (t *Ticker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for id, tm := range t.timers {
		tm.Stop()
		delete(t.timers, id)
	}
}
