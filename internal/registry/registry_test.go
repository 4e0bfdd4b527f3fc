package registry

import (
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/listen-party/sync-service/internal/domain"
)

func member(id string) domain.Member {
	return domain.Member{UserID: id, DisplayName: id}
}

func newTestRegistry() *Registry {
	return New(clockwork.NewFakeClockAt(time.UnixMilli(1_000_000)), 10)
}

func TestCreateRoomCreatorIsController(t *testing.T) {
	reg := newTestRegistry()
	room := reg.Create(member("alice"))

	if room.ID == "" {
		t.Fatal("empty room code")
	}
	if room.ControllerID != "alice" {
		t.Fatalf("controller = %q", room.ControllerID)
	}
	if len(room.Members) != 1 || room.Members[0].UserID != "alice" {
		t.Fatalf("members = %+v", room.Members)
	}
}

func TestCreateRetriesOnCodeCollision(t *testing.T) {
	reg := newTestRegistry()
	codes := []string{"AAAAAA", "AAAAAA", "BBBBBB"}
	reg.codeFn = func() string {
		c := codes[0]
		codes = codes[1:]
		return c
	}

	first := reg.Create(member("alice"))
	second := reg.Create(member("bob"))

	if first.ID != "AAAAAA" {
		t.Fatalf("first id = %q", first.ID)
	}
	if second.ID != "BBBBBB" {
		t.Fatalf("collision not retried, second id = %q", second.ID)
	}
}

func TestJoinIdempotent(t *testing.T) {
	reg := newTestRegistry()
	room := reg.Create(member("alice"))

	err := reg.With(room.ID, func(r *Room) error {
		r.Join(member("bob"))
		r.Join(member("bob"))
		return nil
	})
	if err != nil {
		t.Fatalf("with: %v", err)
	}
	if len(room.Members) != 2 {
		t.Fatalf("duplicate membership: %+v", room.Members)
	}
}

func TestWithUnknownRoom(t *testing.T) {
	reg := newTestRegistry()
	err := reg.With("NOPE", func(r *Room) error { return nil })
	if !errors.Is(err, domain.ErrRoomNotFound) {
		t.Fatalf("err = %v, want ErrRoomNotFound", err)
	}
}

func TestLeaveReassignsControllerDeterministically(t *testing.T) {
	reg := newTestRegistry()
	room := reg.Create(member("alice"))
	_ = reg.With(room.ID, func(r *Room) error {
		r.Join(member("bob"))
		r.Join(member("carol"))
		return nil
	})

	res, err := reg.Leave(room.ID, "alice")
	if err != nil {
		t.Fatalf("leave: %v", err)
	}
	// первый оставшийся в порядке входа
	if res.NewController != "bob" || res.Controller != "bob" {
		t.Fatalf("controller = %q / %q, want bob", res.NewController, res.Controller)
	}
	if len(res.Members) != 2 {
		t.Fatalf("members = %+v", res.Members)
	}
	for _, m := range res.Members {
		if m.UserID == "alice" {
			t.Fatal("alice still a member after leave")
		}
	}
}

func TestLeaveNonControllerKeepsAuthority(t *testing.T) {
	reg := newTestRegistry()
	room := reg.Create(member("alice"))
	_ = reg.With(room.ID, func(r *Room) error {
		r.Join(member("bob"))
		return nil
	})

	res, err := reg.Leave(room.ID, "bob")
	if err != nil {
		t.Fatalf("leave: %v", err)
	}
	if res.NewController != "" {
		t.Fatalf("unexpected reassignment: %q", res.NewController)
	}
	if res.Controller != "alice" {
		t.Fatalf("controller = %q", res.Controller)
	}
}

func TestLeaveLastMemberDestroysRoom(t *testing.T) {
	reg := newTestRegistry()
	room := reg.Create(member("alice"))

	res, err := reg.Leave(room.ID, "alice")
	if err != nil {
		t.Fatalf("leave: %v", err)
	}
	if !res.RoomDestroyed {
		t.Fatal("expected room destruction")
	}
	if err := reg.With(room.ID, func(r *Room) error { return nil }); !errors.Is(err, domain.ErrRoomNotFound) {
		t.Fatalf("room still reachable: %v", err)
	}
}

// Читатель может получить указатель на комнату до того, как Leave
// последнего участника удалит её из map. Мутация такой осиротевшей записи
// выглядела бы как "join прошёл И комната уничтожена" — состояние, которого
// нет ни в одном последовательном порядке команд.
func TestWithRefusesDestroyedRoom(t *testing.T) {
	reg := newTestRegistry()
	room := reg.Create(member("alice"))

	if _, err := reg.Leave(room.ID, "alice"); err != nil {
		t.Fatalf("leave: %v", err)
	}

	// смоделировать окно гонки: stale-указатель снова виден из map
	reg.mu.Lock()
	reg.rooms[room.ID] = room
	reg.mu.Unlock()

	err := reg.With(room.ID, func(r *Room) error {
		r.Join(member("bob"))
		return nil
	})
	if !errors.Is(err, domain.ErrRoomNotFound) {
		t.Fatalf("err = %v, want ErrRoomNotFound", err)
	}
	if len(room.Members) != 0 {
		t.Fatalf("orphaned room mutated: %+v", room.Members)
	}
}

func TestLeaveNotInRoom(t *testing.T) {
	reg := newTestRegistry()
	room := reg.Create(member("alice"))
	if _, err := reg.Leave(room.ID, "ghost"); !errors.Is(err, domain.ErrNotInRoom) {
		t.Fatalf("err = %v, want ErrNotInRoom", err)
	}
}

func TestTransfer(t *testing.T) {
	reg := newTestRegistry()
	room := reg.Create(member("alice"))
	_ = reg.With(room.ID, func(r *Room) error {
		r.Join(member("bob"))
		return nil
	})

	_ = reg.With(room.ID, func(r *Room) error {
		if err := r.Transfer("bob", "alice"); !errors.Is(err, domain.ErrNotAuthorized) {
			t.Fatalf("non-controller transfer: %v", err)
		}
		if err := r.Transfer("alice", "alice"); !errors.Is(err, domain.ErrUnknownTarget) {
			t.Fatalf("self transfer: %v", err)
		}
		if err := r.Transfer("alice", "ghost"); !errors.Is(err, domain.ErrUnknownTarget) {
			t.Fatalf("unknown target: %v", err)
		}
		if err := r.Transfer("alice", "bob"); err != nil {
			t.Fatalf("transfer: %v", err)
		}
		if r.ControllerID != "bob" {
			t.Fatalf("controller = %q", r.ControllerID)
		}
		return nil
	})
}

func TestQueueFIFO(t *testing.T) {
	reg := newTestRegistry()
	room := reg.Create(member("alice"))

	_ = reg.With(room.ID, func(r *Room) error {
		r.Enqueue(domain.QueueEntry{ID: "1", TrackRef: "a.mp3"})
		r.Enqueue(domain.QueueEntry{ID: "2", TrackRef: "b.mp3"})
		r.Enqueue(domain.QueueEntry{ID: "3", TrackRef: "c.mp3"})

		r.RemoveQueued("2")
		r.RemoveQueued("nope") // молча игнорируется

		head, err := r.DequeueNext()
		if err != nil || head.TrackRef != "a.mp3" {
			t.Fatalf("head = %+v, err = %v", head, err)
		}
		head, err = r.DequeueNext()
		if err != nil || head.TrackRef != "c.mp3" {
			t.Fatalf("head = %+v, err = %v", head, err)
		}
		if _, err := r.DequeueNext(); !errors.Is(err, domain.ErrEmptyQueue) {
			t.Fatalf("err = %v, want ErrEmptyQueue", err)
		}
		return nil
	})
}
