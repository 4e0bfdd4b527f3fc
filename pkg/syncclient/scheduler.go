package syncclient

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	// дедлайн ближе этого порога исполняется сразу, таймер не взводится
	startSlackMs = 30

	driftTick = time.Second
	driftGain = 0.5
	// коррекция скорости зажата в ±2%: слышимых скачков быть не должно
	maxRateDelta = 0.02
)

// Snapshot is a broadcast timeline view in server time.
type Snapshot struct {
	TrackRef    string
	Running     bool
	PositionSec float64
	EpochMs     int64
}

// Scheduler turns timeline broadcasts into timed local renderer actions
// and keeps a running stream aligned via small speed adjustments.
//
// At most one armed start timer and one drift loop exist at a time: every
// Apply bumps a generation counter, so callbacks of superseded schedules
// are provably inert even if their timers already fired.
type Scheduler struct {
	clock    clockwork.Clock
	renderer Renderer
	offsetMs func() float64 // текущая оценка clock reconciler'а

	mu        sync.Mutex
	gen       uint64
	timer     clockwork.Timer
	driftDone chan struct{}
}

func NewScheduler(clock clockwork.Clock, renderer Renderer, offsetMs func() float64) *Scheduler {
	return &Scheduler{clock: clock, renderer: renderer, offsetMs: offsetMs}
}

// Apply supersedes any previous schedule and acts on the snapshot:
// a stopped timeline pauses the renderer; a running one either arms a
// timer for the future start instant or, if that instant already passed,
// starts immediately at base + elapsed so nothing audibly rewinds.
func (s *Scheduler) Apply(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gen++
	s.cancelLocked()

	if !snap.Running {
		s.renderer.Pause(snap.PositionSec)
		return
	}

	nowMs := s.clock.Now().UnixMilli()
	localDeadline := snap.EpochMs - int64(s.offsetMs())
	delta := localDeadline - nowMs
	gen := s.gen

	if delta > startSlackMs {
		s.renderer.Prewarm(snap.TrackRef)
		s.timer = s.clock.AfterFunc(time.Duration(delta)*time.Millisecond, func() {
			s.fire(gen, snap)
		})
		return
	}

	late := 0.0
	if delta < 0 {
		late = float64(-delta) / 1000.0
	}
	s.startLocked(gen, snap, late)
}

// Stop cancels the armed start and the drift loop, resetting speed.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.cancelLocked()
}

func (s *Scheduler) fire(gen uint64, snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return // superseded while the timer was pending
	}
	s.startLocked(gen, snap, 0)
}

// startLocked begins rendering and spawns the 1 Hz correction loop.
func (s *Scheduler) startLocked(gen uint64, snap Snapshot, lateSec float64) {
	s.renderer.Start(snap.TrackRef, snap.PositionSec+lateSec)

	done := make(chan struct{})
	s.driftDone = done
	go s.driftLoop(gen, snap, done)
}

func (s *Scheduler) driftLoop(gen uint64, snap Snapshot, done chan struct{}) {
	ticker := s.clock.NewTicker(driftTick)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.Chan():
			s.correct(gen, snap)
		}
	}
}

// correct nudges playback speed toward the expected position. Error is
// cancelled proportionally instead of jump-cutting, which is audible.
func (s *Scheduler) correct(gen uint64, snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return
	}

	serverNowMs := float64(s.clock.Now().UnixMilli()) + s.offsetMs()
	expected := snap.PositionSec + (serverNowMs-float64(snap.EpochMs))/1000.0
	errSec := expected - s.renderer.Position()

	rate := 1.0 + driftGain*errSec
	if rate > 1.0+maxRateDelta {
		rate = 1.0 + maxRateDelta
	}
	if rate < 1.0-maxRateDelta {
		rate = 1.0 - maxRateDelta
	}
	s.renderer.SetRate(rate)
}

// cancelLocked stops the pending timer and drift loop; speed goes back to
// normal before any hard repositioning happens.
func (s *Scheduler) cancelLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.driftDone != nil {
		close(s.driftDone)
		s.driftDone = nil
		s.renderer.SetRate(1.0)
	}
}
