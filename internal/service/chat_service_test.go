package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/listen-party/sync-service/internal/domain"
	"github.com/listen-party/sync-service/internal/registry"
)

func newChatFixture(history int) (*ChatService, *registry.Registry) {
	fc := clockwork.NewFakeClockAt(time.UnixMilli(1_000_000))
	reg := registry.New(fc, history)
	return NewChatService(reg, fc, 100), reg
}

func TestChatSaveAndHistory(t *testing.T) {
	svc, reg := newChatFixture(10)
	room := reg.Create(domain.Member{UserID: "alice", DisplayName: "alice"})

	msg, err := svc.Save(context.Background(), room.ID, "alice", "  hello  ")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if msg.Text != "hello" {
		t.Fatalf("text not trimmed: %q", msg.Text)
	}
	if msg.ID == "" {
		t.Fatal("empty message id")
	}

	hist, err := svc.History(context.Background(), room.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(hist) != 1 || hist[0].Text != "hello" {
		t.Fatalf("history = %+v", hist)
	}
}

func TestChatRejectsBadInput(t *testing.T) {
	svc, reg := newChatFixture(10)
	room := reg.Create(domain.Member{UserID: "alice", DisplayName: "alice"})
	ctx := context.Background()

	if _, err := svc.Save(ctx, room.ID, "alice", "   "); err == nil {
		t.Fatal("expected error for blank message")
	}
	if _, err := svc.Save(ctx, room.ID, "alice", strings.Repeat("x", 101)); err == nil {
		t.Fatal("expected error for oversized message")
	}
	if _, err := svc.Save(ctx, room.ID, "ghost", "hi"); !errors.Is(err, domain.ErrNotInRoom) {
		t.Fatalf("err = %v, want ErrNotInRoom", err)
	}
	if _, err := svc.Save(ctx, "NOPE", "alice", "hi"); !errors.Is(err, domain.ErrRoomNotFound) {
		t.Fatalf("err = %v, want ErrRoomNotFound", err)
	}
}

func TestChatHistoryBounded(t *testing.T) {
	svc, reg := newChatFixture(3)
	room := reg.Create(domain.Member{UserID: "alice", DisplayName: "alice"})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := svc.Save(ctx, room.ID, "alice", fmt.Sprintf("msg-%d", i)); err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
	}

	hist, _ := svc.History(ctx, room.ID)
	if len(hist) != 3 {
		t.Fatalf("history len = %d", len(hist))
	}
	if hist[0].Text != "msg-2" || hist[2].Text != "msg-4" {
		t.Fatalf("wrong window: %+v", hist)
	}
}
