// Package playback holds the authoritative timeline state machine.
//
// The timeline stores only (TrackRef, Running, BasePositionSec, EpochMs);
// "scheduled" vs "actually playing" is the same stored state, the epoch is
// just in the future from some observers' point of view.
package playback

import (
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/listen-party/sync-service/internal/domain"
)

// Delays задают, насколько в будущее выносится epoch при старте.
// Start покрывает доставку broadcast + буферизацию рендерера у всех
// участников; Resync короче (рендереры уже прогреты); Join длиннее,
// чтобы новичок успел разблокировать аудио.
type Delays struct {
	Start  time.Duration
	Resync time.Duration
	Join   time.Duration
}

func DefaultDelays() Delays {
	return Delays{
		Start:  1500 * time.Millisecond,
		Resync: 1000 * time.Millisecond,
		Join:   2500 * time.Millisecond,
	}
}

// Engine applies transitions to room timelines using the server clock.
// Authority checks belong to the caller; the engine only enforces the
// state-machine invariants.
type Engine struct {
	clock  clockwork.Clock
	delays Delays
}

func NewEngine(clock clockwork.Clock, delays Delays) *Engine {
	return &Engine{clock: clock, delays: delays}
}

func (e *Engine) NowMs() int64 {
	return e.clock.Now().UnixMilli()
}

// PositionAt computes the track position at the given server instant.
func PositionAt(tl domain.Timeline, nowMs int64) float64 {
	if !tl.Running {
		return tl.BasePositionSec
	}
	elapsed := nowMs - tl.EpochMs
	if elapsed < 0 {
		// epoch ещё в будущем (scheduled start)
		elapsed = 0
	}
	return tl.BasePositionSec + float64(elapsed)/1000.0
}

// Load resets the timeline to the new track, stopped at position zero.
func (e *Engine) Load(tl *domain.Timeline, trackRef string) {
	tl.TrackRef = trackRef
	tl.Running = false
	tl.BasePositionSec = 0
	tl.EpochMs = e.NowMs()
}

// Play arms a start delays.Start in the future. An already-running timeline
// is re-armed from its current position so nothing audibly rewinds.
func (e *Engine) Play(tl *domain.Timeline) error {
	if tl.TrackRef == "" {
		return domain.ErrNoTrack
	}
	now := e.NowMs()
	if tl.Running {
		tl.BasePositionSec = PositionAt(*tl, now)
	}
	tl.Running = true
	tl.EpochMs = now + e.delays.Start.Milliseconds()
	return nil
}

// Pause freezes the position computed by the running formula.
func (e *Engine) Pause(tl *domain.Timeline) error {
	if tl.TrackRef == "" {
		return domain.ErrNoTrack
	}
	now := e.NowMs()
	tl.BasePositionSec = PositionAt(*tl, now)
	tl.Running = false
	tl.EpochMs = now
	return nil
}

// Seek moves the base position. While running it re-arms with the shorter
// resync delay; while stopped only the stored position changes.
func (e *Engine) Seek(tl *domain.Timeline, positionSec float64) error {
	if tl.TrackRef == "" {
		return domain.ErrNoTrack
	}
	if positionSec < 0 {
		positionSec = 0
	}
	tl.BasePositionSec = positionSec
	if tl.Running {
		tl.EpochMs = e.NowMs() + e.delays.Resync.Milliseconds()
	}
	return nil
}

// Advance is load+play combined, used by queue auto-advance.
func (e *Engine) Advance(tl *domain.Timeline, trackRef string) {
	tl.TrackRef = trackRef
	tl.Running = true
	tl.BasePositionSec = 0
	tl.EpochMs = e.NowMs() + e.delays.Start.Milliseconds()
}

// JoinSnapshot computes the catch-up view for a newcomer. A running room
// yields a fresh epoch delays.Join out, positioned where the track will be
// at that instant — never behind the members already listening.
func (e *Engine) JoinSnapshot(tl domain.Timeline) domain.Timeline {
	if !tl.Running {
		return tl
	}
	startAt := e.NowMs() + e.delays.Join.Milliseconds()
	return domain.Timeline{
		TrackRef:        tl.TrackRef,
		Running:         true,
		BasePositionSec: PositionAt(tl, startAt),
		EpochMs:         startAt,
	}
}
