package http

import "time"

type ErrorResponse struct {
	Error string `json:"error"`
}

type CreateSessionRequest struct {
	DisplayName string `json:"display_name"`
}

type CreateSessionResponse struct {
	Token       string `json:"token"`
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
}

type RoomResponse struct {
	ID           string       `json:"id"`
	ControllerID string       `json:"controller_id"`
	Members      []MemberItem `json:"members"`
	Queue        []QueueItem  `json:"queue"`
	TrackRef     string       `json:"track_ref,omitempty"`
	Running      bool         `json:"running"`
	PositionSec  float64      `json:"position_sec"`
	EpochMs      int64        `json:"epoch_ms"`
	ServerNowMs  int64        `json:"server_now_ms"`
}

type MemberItem struct {
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	JoinedAt    time.Time `json:"joined_at"`
}

type QueueItem struct {
	ID       string `json:"id"`
	TrackRef string `json:"track_ref"`
	AddedBy  string `json:"added_by"`
}

type ChatHistoryResponse struct {
	Items []ChatMessageItem `json:"items"`
}

type ChatMessageItem struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"room_id"`
	UserID    string    `json:"user_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}
