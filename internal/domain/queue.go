package domain

import "time"

// QueueEntry — элемент очереди воспроизведения комнаты (FIFO).
// Server-assigned id: удаление по id не гонится с auto-advance.
type QueueEntry struct {
	ID       string
	TrackRef string
	AddedBy  string
	AddedAt  time.Time
}
