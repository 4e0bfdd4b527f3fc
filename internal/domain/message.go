package domain

import "time"

type ChatMessage struct {
	ID        string
	RoomID    string
	UserID    string
	Text      string
	CreatedAt time.Time
}
