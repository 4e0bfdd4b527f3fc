package registry

import (
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/listen-party/sync-service/internal/domain"
)

func TestSessionLifecycle(t *testing.T) {
	store := NewSessionStore(clockwork.NewFakeClockAt(time.UnixMilli(1_000_000)))

	sess, err := store.Create("  Alice  ")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if sess.Token == "" || sess.UserID == "" {
		t.Fatalf("empty identifiers: %+v", sess)
	}
	if sess.DisplayName != "Alice" {
		t.Fatalf("display name not trimmed: %q", sess.DisplayName)
	}

	got, err := store.Get(sess.Token)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.UserID != sess.UserID {
		t.Fatalf("user mismatch: %q vs %q", got.UserID, sess.UserID)
	}

	store.SetRoom(sess.Token, "R1")
	got, _ = store.Get(sess.Token)
	if got.RoomID != "R1" {
		t.Fatalf("room not restored: %q", got.RoomID)
	}

	store.Delete(sess.Token)
	if _, err := store.Get(sess.Token); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("err = %v, want ErrSessionNotFound", err)
	}
}

func TestSessionRequiresIdentity(t *testing.T) {
	store := NewSessionStore(clockwork.NewFakeClockAt(time.UnixMilli(1_000_000)))
	if _, err := store.Create("   "); !errors.Is(err, domain.ErrNoIdentity) {
		t.Fatalf("err = %v, want ErrNoIdentity", err)
	}
}
