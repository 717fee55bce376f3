// Package schedule implements a drift-free recurring milestone timer.
//
// The scheduler fires a callback at exact multiples of an interval measured
// from a fixed anchor (the session start). Each delay is recomputed from the
// anchor rather than the previous fire, so per-callback timer latency never
// accumulates. There is always at most one outstanding delayed task; a
// fixed-period repeating timer is deliberately not used.
package schedule

import (
	"sync"
	"time"
)

// TickFunc is invoked with the milestone ordinal k (1, 2, 3, ...). Returning
// false reports the consumer inactive: the tick is discarded and the
// scheduler shuts down instead of rescheduling.
type TickFunc func(k uint64) bool

// Scheduler fires milestones anchored to a fixed session start time.
type Scheduler struct {
	mu sync.Mutex

	interval time.Duration
	onTick   TickFunc

	anchor  time.Time
	nextK   uint64
	timer   *time.Timer
	running bool

	// generation invalidates timers from previous runs across stop/start.
	generation uint64

	// Clock, replaceable in tests.
	now func() time.Time
}

// New creates a scheduler. The callback runs on the timer goroutine; it is
// expected to be brief.
func New(interval time.Duration, onTick TickFunc) *Scheduler {
	return &Scheduler{
		interval: interval,
		onTick:   onTick,
		now:      time.Now,
	}
}

// nextAfter returns the smallest positive ordinal k with
// anchor + k*interval > now, and the corresponding fire time.
func nextAfter(anchor time.Time, interval time.Duration, now time.Time) (uint64, time.Time) {
	k := uint64(1)
	if now.After(anchor) {
		k = uint64(now.Sub(anchor)/interval) + 1
	}
	return k, anchor.Add(time.Duration(k) * interval)
}

// Start begins firing milestones anchored at the current time. Idempotent
// while running.
func (s *Scheduler) Start() {
	s.StartAt(s.now())
}

// StartAt begins firing milestones anchored at the given session start,
// which may lie in the past; elapsed milestones are skipped, not replayed.
// Idempotent while running.
func (s *Scheduler) StartAt(anchor time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running || s.interval <= 0 {
		return
	}

	s.anchor = anchor
	s.running = true
	s.generation++
	s.scheduleLocked()
}

// Stop cancels the outstanding task. No milestone fires after Stop returns.
// No-op when not running.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Scheduler) stopLocked() {
	if !s.running {
		return
	}
	s.running = false
	s.generation++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// SetInterval changes the interval. A running scheduler is fully restarted
// with a fresh anchor at the current time; no prior state carries over.
func (s *Scheduler) SetInterval(interval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wasRunning := s.running
	s.stopLocked()
	s.interval = interval

	if wasRunning && interval > 0 {
		s.anchor = s.now()
		s.running = true
		s.generation++
		s.scheduleLocked()
	}
}

// Running reports whether the scheduler is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Interval returns the currently applied interval.
func (s *Scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// NextFire returns the next scheduled milestone time and ordinal.
func (s *Scheduler) NextFire() (time.Time, uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return time.Time{}, 0, false
	}
	return s.anchor.Add(time.Duration(s.nextK) * s.interval), s.nextK, true
}

// scheduleLocked arms the single delayed task for the next milestone.
// Caller holds s.mu.
func (s *Scheduler) scheduleLocked() {
	now := s.now()
	k, fireAt := nextAfter(s.anchor, s.interval, now)
	s.nextK = k

	delay := fireAt.Sub(now)
	if delay < 0 {
		delay = 0
	}

	gen := s.generation
	s.timer = time.AfterFunc(delay, func() { s.fire(gen, k) })
}

// fire delivers one milestone. The callback runs under the lock so that
// Stop cannot return while a tick is in flight.
func (s *Scheduler) fire(gen, k uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running || gen != s.generation {
		// Stopped or restarted after this timer was armed.
		return
	}

	if !s.onTick(k) {
		// Consumer inactive: discard the tick and shut down.
		s.running = false
		s.generation++
		s.timer = nil
		return
	}

	// Recompute from the fixed anchor, never from the fire time.
	s.scheduleLocked()
}
