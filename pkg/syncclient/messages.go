package syncclient

import "encoding/json"

// Wire-формат realtime-канала (см. серверную сторону протокола).
const (
	typeState       = "state"
	typeTimePing    = "time_ping"
	typeTimePong    = "time_pong"
	typeTrackLoaded = "track_loaded"
	typePlay        = "play"
	typePause       = "pause"
	typeSeek        = "seek"
	typeLoad        = "load"
	typeTransfer    = "transfer"
	typeQueueAdd    = "queue_add"
	typeQueueRemove = "queue_remove"
	typeTrackEnded  = "track_ended"
	typeRoomUpdate  = "room_update"
	typeRole        = "role"
	typeDenied      = "denied"
	typeQueue       = "queue"
	typeChat        = "chat"
)

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type outMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

type statePayload struct {
	RoomID       string       `json:"room_id"`
	ControllerID string       `json:"controller_id"`
	Members      []MemberInfo `json:"members"`
	Queue        []QueueInfo  `json:"queue"`
	TrackRef     string       `json:"track_ref"`
	Running      bool         `json:"running"`
	PositionSec  float64      `json:"position_sec"`
	EpochMs      int64        `json:"epoch_ms"`
	ServerNowMs  int64        `json:"server_now_ms"`
}

type timePingPayload struct {
	T0 int64 `json:"t0"`
}

type timePongPayload struct {
	T0       int64 `json:"t0"`
	ServerMs int64 `json:"server_ms"`
}

type trackLoadedPayload struct {
	TrackRef    string  `json:"track_ref"`
	PositionSec float64 `json:"position_sec"`
}

type playEventPayload struct {
	TrackRef    string  `json:"track_ref"`
	PositionSec float64 `json:"position_sec"`
	StartAtMs   int64   `json:"start_at_ms"`
}

type pauseEventPayload struct {
	PositionSec float64 `json:"position_sec"`
	ServerNowMs int64   `json:"server_now_ms"`
}

type seekEventPayload struct {
	PositionSec float64 `json:"position_sec"`
	StartAtMs   *int64  `json:"start_at_ms"`
}

type loadPayload struct {
	TrackRef string `json:"track_ref"`
}

type seekPayload struct {
	PositionSec float64 `json:"position_sec"`
}

type transferPayload struct {
	TargetID string `json:"target_id"`
}

type queueAddPayload struct {
	TrackRef string `json:"track_ref"`
}

type queueRemovePayload struct {
	EntryID string `json:"entry_id"`
}

type chatPayload struct {
	UserID  string `json:"user_id,omitempty"`
	Message string `json:"message"`
	MsgID   string `json:"msg_id,omitempty"`
	TSUnix  int64  `json:"ts_unix,omitempty"`
}

// MemberInfo mirrors a room member in broadcasts.
type MemberInfo struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
}

// QueueInfo mirrors a queue entry in broadcasts.
type QueueInfo struct {
	ID       string `json:"id"`
	TrackRef string `json:"track_ref"`
	AddedBy  string `json:"added_by"`
}

type roomUpdatePayload struct {
	RoomID       string       `json:"room_id"`
	ControllerID string       `json:"controller_id"`
	Members      []MemberInfo `json:"members"`
}

type rolePayload struct {
	Controller bool `json:"controller"`
}

type deniedPayload struct {
	Reason string `json:"reason"`
}

type queuePayload struct {
	Items []QueueInfo `json:"items"`
}
