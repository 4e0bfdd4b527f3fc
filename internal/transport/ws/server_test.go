package ws

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jonboulle/clockwork"

	"github.com/listen-party/sync-service/internal/playback"
	"github.com/listen-party/sync-service/internal/registry"
	"github.com/listen-party/sync-service/internal/service"
)

type wsFixture struct {
	reg      *registry.Registry
	sessions *registry.SessionStore
	syncSvc  *service.SyncService
	ts       *httptest.Server
}

func newWSFixture(t *testing.T) *wsFixture {
	t.Helper()
	fc := clockwork.NewFakeClockAt(time.UnixMilli(1_000_000))
	reg := registry.New(fc, 10)
	sessions := registry.NewSessionStore(fc)
	engine := playback.NewEngine(fc, playback.DefaultDelays())
	syncSvc := service.NewSyncService(reg, engine, fc)
	chatSvc := service.NewChatService(reg, fc, 4000)

	srv := NewServer(NewHub(), syncSvc, chatSvc, sessions, fc, 15*time.Second)
	r := chi.NewRouter()
	r.Get("/ws/rooms/{id}", srv.HandleWS)

	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return &wsFixture{reg: reg, sessions: sessions, syncSvc: syncSvc, ts: ts}
}

func (f *wsFixture) memberIDs(t *testing.T, roomID string) []string {
	t.Helper()
	var ids []string
	err := f.reg.With(roomID, func(room *registry.Room) error {
		for _, m := range room.MembersCopy() {
			ids = append(ids, m.UserID)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("with: %v", err)
	}
	return ids
}

// Обычный GET валидным токеном проходит join, но не websocket-handshake.
// Откат обязателен: иначе в комнате навсегда остаётся участник без
// соединения.
func TestFailedUpgradeRollsBackJoin(t *testing.T) {
	f := newWSFixture(t)

	alice, _ := f.sessions.Create("alice")
	snap, err := f.syncSvc.CreateRoom(t.Context(), alice)
	if err != nil {
		t.Fatalf("create room: %v", err)
	}

	bob, _ := f.sessions.Create("bob")
	resp, err := http.Get(f.ts.URL + "/ws/rooms/" + snap.RoomID + "?token=" + bob.Token)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}

	ids := f.memberIDs(t, snap.RoomID)
	if len(ids) != 1 || ids[0] != alice.UserID {
		t.Fatalf("members = %v, ghost leaked after failed upgrade", ids)
	}
}

// После отката неудавшегося upgrade комната всё ещё может опустеть и
// быть уничтоженной — призрак не держит её живой и не может получить
// контроль при выходе настоящих участников.
func TestRoomStillEmptiesAfterFailedUpgrade(t *testing.T) {
	f := newWSFixture(t)

	alice, _ := f.sessions.Create("alice")
	snap, err := f.syncSvc.CreateRoom(t.Context(), alice)
	if err != nil {
		t.Fatalf("create room: %v", err)
	}

	bob, _ := f.sessions.Create("bob")
	resp, err := http.Get(f.ts.URL + "/ws/rooms/" + snap.RoomID + "?token=" + bob.Token)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	_ = resp.Body.Close()

	res, err := f.syncSvc.Leave(t.Context(), snap.RoomID, alice.UserID)
	if err != nil {
		t.Fatalf("leave: %v", err)
	}
	if !res.RoomDestroyed {
		t.Fatalf("room survived its last real member: %+v", res)
	}
	if res.NewController != "" {
		t.Fatalf("control handed to a ghost: %q", res.NewController)
	}
}
