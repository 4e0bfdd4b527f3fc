package domain

import "time"

// Session binds an opaque token to a display identity. The token is the
// restore key for a reconnecting realtime connection.
type Session struct {
	Token       string
	UserID      string
	DisplayName string
	RoomID      string
	CreatedAt   time.Time
}
