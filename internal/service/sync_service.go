package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/listen-party/sync-service/internal/domain"
	"github.com/listen-party/sync-service/internal/playback"
	"github.com/listen-party/sync-service/internal/registry"
)

// TimelineEvent is the result of a timeline mutation, ready to broadcast.
type TimelineEvent struct {
	RoomID      string
	Timeline    domain.Timeline
	ServerNowMs int64
}

// RoomSnapshot is the authoritative view handed to a (re)joining client.
type RoomSnapshot struct {
	RoomID       string
	ControllerID string
	Members      []domain.Member
	Queue        []domain.QueueEntry
	Timeline     domain.Timeline
	ServerNowMs  int64
}

// RoomUpdate carries membership/authority changes.
type RoomUpdate struct {
	RoomID       string
	ControllerID string
	Members      []domain.Member
}

// SyncService validates authority and drives the per-room timeline.
// Per-room linearization comes from registry.With; the service itself
// holds no state of its own.
type SyncService struct {
	reg    *registry.Registry
	engine *playback.Engine
	clock  clockwork.Clock
}

func NewSyncService(reg *registry.Registry, engine *playback.Engine, clock clockwork.Clock) *SyncService {
	return &SyncService{reg: reg, engine: engine, clock: clock}
}

func (s *SyncService) nowMs() int64 { return s.clock.Now().UnixMilli() }

// CreateRoom создаёт комнату: вызывающий — единственный участник и
// контроллер.
func (s *SyncService) CreateRoom(ctx context.Context, sess domain.Session) (*RoomSnapshot, error) {
	if sess.DisplayName == "" {
		return nil, domain.ErrNoIdentity
	}
	room := s.reg.Create(domain.Member{
		UserID:      sess.UserID,
		DisplayName: sess.DisplayName,
		JoinedAt:    s.clock.Now(),
	})
	return &RoomSnapshot{
		RoomID:       room.ID,
		ControllerID: room.ControllerID,
		Members:      room.MembersCopy(),
		Queue:        room.QueueCopy(),
		Timeline:     room.Timeline,
		ServerNowMs:  s.nowMs(),
	}, nil
}

// Join adds the caller (idempotent for an already-joined identity) and
// returns the catch-up snapshot: a running timeline is re-based to a
// future start so the newcomer lands where the track will be, not where
// it was when the request arrived.
func (s *SyncService) Join(ctx context.Context, roomID string, sess domain.Session) (*RoomSnapshot, error) {
	var snap *RoomSnapshot
	err := s.reg.With(roomID, func(room *registry.Room) error {
		room.Join(domain.Member{
			UserID:      sess.UserID,
			DisplayName: sess.DisplayName,
			JoinedAt:    s.clock.Now(),
		})
		snap = &RoomSnapshot{
			RoomID:       room.ID,
			ControllerID: room.ControllerID,
			Members:      room.MembersCopy(),
			Queue:        room.QueueCopy(),
			Timeline:     s.engine.JoinSnapshot(room.Timeline),
			ServerNowMs:  s.nowMs(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// Leave handles a disconnect: membership shrink, deterministic authority
// reassignment, room destruction when empty.
func (s *SyncService) Leave(ctx context.Context, roomID, userID string) (registry.LeaveResult, error) {
	return s.reg.Leave(roomID, userID)
}

// Snapshot returns the raw room view (no join re-basing).
func (s *SyncService) Snapshot(ctx context.Context, roomID string) (*RoomSnapshot, error) {
	var snap *RoomSnapshot
	err := s.reg.With(roomID, func(room *registry.Room) error {
		snap = &RoomSnapshot{
			RoomID:       room.ID,
			ControllerID: room.ControllerID,
			Members:      room.MembersCopy(),
			Queue:        room.QueueCopy(),
			Timeline:     room.Timeline,
			ServerNowMs:  s.nowMs(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// controlled gates a timeline mutation on the caller holding control.
func (s *SyncService) controlled(roomID, callerID string, fn func(room *registry.Room) error) (TimelineEvent, error) {
	var ev TimelineEvent
	err := s.reg.With(roomID, func(room *registry.Room) error {
		if room.ControllerID != callerID {
			return domain.ErrNotAuthorized
		}
		if err := fn(room); err != nil {
			return err
		}
		ev = TimelineEvent{
			RoomID:      roomID,
			Timeline:    room.Timeline,
			ServerNowMs: s.nowMs(),
		}
		return nil
	})
	return ev, err
}

func (s *SyncService) Load(ctx context.Context, roomID, callerID, trackRef string) (TimelineEvent, error) {
	return s.controlled(roomID, callerID, func(room *registry.Room) error {
		if trackRef == "" {
			return domain.ErrNoTrack
		}
		s.engine.Load(&room.Timeline, trackRef)
		return nil
	})
}

func (s *SyncService) Play(ctx context.Context, roomID, callerID string) (TimelineEvent, error) {
	return s.controlled(roomID, callerID, func(room *registry.Room) error {
		return s.engine.Play(&room.Timeline)
	})
}

func (s *SyncService) Pause(ctx context.Context, roomID, callerID string) (TimelineEvent, error) {
	return s.controlled(roomID, callerID, func(room *registry.Room) error {
		return s.engine.Pause(&room.Timeline)
	})
}

func (s *SyncService) Seek(ctx context.Context, roomID, callerID string, positionSec float64) (TimelineEvent, error) {
	return s.controlled(roomID, callerID, func(room *registry.Room) error {
		return s.engine.Seek(&room.Timeline, positionSec)
	})
}

// Transfer reassigns control; both the room-wide update and the individual
// role notices are derived from the returned RoomUpdate by the transport.
func (s *SyncService) Transfer(ctx context.Context, roomID, callerID, targetID string) (RoomUpdate, error) {
	var upd RoomUpdate
	err := s.reg.With(roomID, func(room *registry.Room) error {
		if err := room.Transfer(callerID, targetID); err != nil {
			return err
		}
		upd = RoomUpdate{
			RoomID:       roomID,
			ControllerID: room.ControllerID,
			Members:      room.MembersCopy(),
		}
		return nil
	})
	return upd, err
}

// TrackEnded reports end-of-track from the controller's renderer. With a
// queued successor it behaves like load+play of that entry (advanced ==
// true); with an empty queue the timeline is paused at the end position
// and advanced is false.
func (s *SyncService) TrackEnded(ctx context.Context, roomID, callerID string) (TimelineEvent, bool, []domain.QueueEntry, error) {
	var (
		advanced bool
		rest     []domain.QueueEntry
	)
	ev, err := s.controlled(roomID, callerID, func(room *registry.Room) error {
		next, err := room.DequeueNext()
		if errors.Is(err, domain.ErrEmptyQueue) {
			_ = s.engine.Pause(&room.Timeline)
			return nil
		}
		if err != nil {
			return err
		}
		s.engine.Advance(&room.Timeline, next.TrackRef)
		advanced = true
		rest = room.QueueCopy()
		return nil
	})
	return ev, advanced, rest, err
}

func (s *SyncService) QueueAdd(ctx context.Context, roomID, callerID, trackRef string) ([]domain.QueueEntry, error) {
	if trackRef == "" {
		return nil, domain.ErrNoTrack
	}
	var out []domain.QueueEntry
	err := s.reg.With(roomID, func(room *registry.Room) error {
		if room.ControllerID != callerID {
			return domain.ErrNotAuthorized
		}
		room.Enqueue(domain.QueueEntry{
			ID:       uuid.NewString(),
			TrackRef: trackRef,
			AddedBy:  callerID,
			AddedAt:  s.clock.Now(),
		})
		out = room.QueueCopy()
		return nil
	})
	return out, err
}

func (s *SyncService) QueueRemove(ctx context.Context, roomID, callerID, entryID string) ([]domain.QueueEntry, error) {
	var out []domain.QueueEntry
	err := s.reg.With(roomID, func(room *registry.Room) error {
		if room.ControllerID != callerID {
			return domain.ErrNotAuthorized
		}
		room.RemoveQueued(entryID)
		out = room.QueueCopy()
		return nil
	})
	return out, err
}
