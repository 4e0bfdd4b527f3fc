// Package registry owns all ephemeral room state: membership, control
// authority, queue, chat history and the authoritative timeline. Nothing
// here survives a restart by design.
package registry

import (
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/listen-party/sync-service/internal/domain"
	"github.com/listen-party/sync-service/internal/util"
)

// Room is a registry entry. Mutations happen under mu; callers go through
// Registry.With so commands for one room are linearized while different
// rooms proceed independently.
type Room struct {
	mu        sync.Mutex
	destroyed bool

	ID           string
	ControllerID string
	Members      []domain.Member
	Queue        []domain.QueueEntry
	Timeline     domain.Timeline
	Chat         *util.Ring[domain.ChatMessage]
	CreatedAtMs  int64
}

type Registry struct {
	clock       clockwork.Clock
	chatHistory int

	mu    sync.RWMutex
	rooms map[string]*Room

	// перекрывается в тестах для проверки retry при коллизии кодов
	codeFn func() string
}

func New(clock clockwork.Clock, chatHistory int) *Registry {
	if chatHistory < 1 {
		chatHistory = 200
	}
	return &Registry{
		clock:       clock,
		chatHistory: chatHistory,
		rooms:       make(map[string]*Room),
		codeFn:      newCode,
	}
}

// Create makes a room with the caller as sole member and controller.
// Generated codes are retried until unused; the id space makes collisions
// vanishingly rare, but an occupied code is never silently overwritten.
func (r *Registry) Create(creator domain.Member) *Room {
	r.mu.Lock()
	defer r.mu.Unlock()

	var id string
	for {
		id = r.codeFn()
		if _, taken := r.rooms[id]; !taken {
			break
		}
	}

	room := &Room{
		ID:           id,
		ControllerID: creator.UserID,
		Members:      []domain.Member{creator},
		Chat:         util.NewRing[domain.ChatMessage](r.chatHistory),
		CreatedAtMs:  r.clock.Now().UnixMilli(),
	}
	r.rooms[id] = room
	return room
}

// With runs fn with the room entry locked. Returns ErrRoomNotFound for
// unknown ids; fn's error is passed through.
func (r *Registry) With(roomID string, fn func(*Room) error) error {
	r.mu.RLock()
	room, ok := r.rooms[roomID]
	r.mu.RUnlock()
	if !ok {
		return domain.ErrRoomNotFound
	}

	room.mu.Lock()
	defer room.mu.Unlock()
	// между RUnlock и room.mu.Lock комнату мог уничтожить Leave последнего
	// участника; мутировать осиротевшую запись нельзя
	if room.destroyed {
		return domain.ErrRoomNotFound
	}
	return fn(room)
}

// LeaveResult describes the outcome of a departure.
type LeaveResult struct {
	Removed       bool
	RoomDestroyed bool
	Controller    string // controller after the departure
	NewController string // non-empty when authority was reassigned
	Members       []domain.Member
}

// Leave removes the identity from the room. A departing controller hands
// authority to the first remaining member in join order; the last member
// out destroys the room together with its timeline.
func (r *Registry) Leave(roomID, userID string) (LeaveResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return LeaveResult{}, domain.ErrRoomNotFound
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	var res LeaveResult
	for i, m := range room.Members {
		if m.UserID == userID {
			room.Members = append(room.Members[:i], room.Members[i+1:]...)
			res.Removed = true
			break
		}
	}
	if !res.Removed {
		return res, domain.ErrNotInRoom
	}

	if len(room.Members) == 0 {
		room.destroyed = true
		delete(r.rooms, roomID)
		res.RoomDestroyed = true
		return res, nil
	}

	if room.ControllerID == userID {
		room.ControllerID = room.Members[0].UserID
		res.NewController = room.ControllerID
	}
	res.Controller = room.ControllerID
	res.Members = room.MembersCopy()
	return res, nil
}

// --- room operations, callers hold the room lock (via With) ---

// Join adds the member if absent. Re-join of a present identity is a no-op.
func (room *Room) Join(m domain.Member) {
	for _, cur := range room.Members {
		if cur.UserID == m.UserID {
			return
		}
	}
	room.Members = append(room.Members, m)
}

// Transfer reassigns control. Caller must be the current controller, the
// target a current member other than the caller.
func (room *Room) Transfer(callerID, targetID string) error {
	if room.ControllerID != callerID {
		return domain.ErrNotAuthorized
	}
	if targetID == callerID || !room.HasMember(targetID) {
		return domain.ErrUnknownTarget
	}
	room.ControllerID = targetID
	return nil
}

func (room *Room) Enqueue(e domain.QueueEntry) {
	room.Queue = append(room.Queue, e)
}

// RemoveQueued deletes the entry by id; unknown ids are ignored.
func (room *Room) RemoveQueued(entryID string) {
	for i, e := range room.Queue {
		if e.ID == entryID {
			room.Queue = append(room.Queue[:i], room.Queue[i+1:]...)
			return
		}
	}
}

// DequeueNext pops the queue head.
func (room *Room) DequeueNext() (domain.QueueEntry, error) {
	if len(room.Queue) == 0 {
		return domain.QueueEntry{}, domain.ErrEmptyQueue
	}
	head := room.Queue[0]
	room.Queue = room.Queue[1:]
	return head, nil
}

func (room *Room) MembersCopy() []domain.Member {
	out := make([]domain.Member, len(room.Members))
	copy(out, room.Members)
	return out
}

func (room *Room) QueueCopy() []domain.QueueEntry {
	out := make([]domain.QueueEntry, len(room.Queue))
	copy(out, room.Queue)
	return out
}

func (room *Room) HasMember(userID string) bool {
	for _, m := range room.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}
