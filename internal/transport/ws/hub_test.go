package ws

import (
	"sync"
	"testing"
)

type fakeConn struct {
	userID string
	roomID string

	mu   sync.Mutex
	sent []Message
}

func (c *fakeConn) Send(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, msg)
	return nil
}

func (c *fakeConn) Close() error   { return nil }
func (c *fakeConn) UserID() string { return c.userID }
func (c *fakeConn) RoomID() string { return c.roomID }

func (c *fakeConn) received() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Message(nil), c.sent...)
}

func TestBroadcastScopedToRoom(t *testing.T) {
	h := NewHub()
	a := &fakeConn{userID: "alice", roomID: "R1"}
	b := &fakeConn{userID: "bob", roomID: "R1"}
	c := &fakeConn{userID: "carol", roomID: "R2"}
	h.Add(a)
	h.Add(b)
	h.Add(c)

	h.Broadcast("R1", Message{Type: TypePlay})

	if len(a.received()) != 1 || len(b.received()) != 1 {
		t.Fatal("room members missed the broadcast")
	}
	if len(c.received()) != 0 {
		t.Fatal("broadcast leaked into another room")
	}
}

func TestSendToUser(t *testing.T) {
	h := NewHub()
	a := &fakeConn{userID: "alice", roomID: "R1"}
	a2 := &fakeConn{userID: "alice", roomID: "R1"} // второе устройство
	b := &fakeConn{userID: "bob", roomID: "R1"}
	h.Add(a)
	h.Add(a2)
	h.Add(b)

	h.SendToUser("R1", "alice", Message{Type: TypeRole})

	if len(a.received()) != 1 || len(a2.received()) != 1 {
		t.Fatal("not every connection of the user got the message")
	}
	if len(b.received()) != 0 {
		t.Fatal("message addressed to alice reached bob")
	}
}

func TestRemoveDetachesConnection(t *testing.T) {
	h := NewHub()
	a := &fakeConn{userID: "alice", roomID: "R1"}
	b := &fakeConn{userID: "bob", roomID: "R1"}
	h.Add(a)
	h.Add(b)

	h.Remove(a)
	h.Broadcast("R1", Message{Type: TypePause})

	if len(a.received()) != 0 {
		t.Fatal("removed connection still receives broadcasts")
	}
	if len(b.received()) != 1 {
		t.Fatal("remaining connection lost the broadcast")
	}
}
