package ws

// Типы событий realtime-канала. play/pause/seek идут в обе стороны:
// как команда контроллера и как авторитетный broadcast.
const (
	// server → client
	TypeState       = "state"        // полный снапшот комнаты
	TypeTimePong    = "time_pong"    // ответ на time_ping с серверными часами
	TypeTrackLoaded = "track_loaded" // новый трек, не запущен
	TypeRoomUpdate  = "room_update"  // состав/контроллер изменились
	TypeRole        = "role"         // персональное уведомление о роли
	TypeDenied      = "denied"       // команда отклонена (только отправителю)
	TypePeerJoined  = "peer_joined"
	TypePeerLeft    = "peer_left"
	TypeQueue       = "queue" // снапшот очереди

	// обе стороны
	TypePlay  = "play"
	TypePause = "pause"
	TypeSeek  = "seek"
	TypeChat  = "chat"

	// client → server
	TypeTimePing    = "time_ping"
	TypeLoad        = "load"
	TypeTransfer    = "transfer"
	TypeQueueAdd    = "queue_add"
	TypeQueueRemove = "queue_remove"
	TypeTrackEnded  = "track_ended"

	// server → client, подтверждение чата отправителю
	TypeChatAck = "chat_ack"
)

type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

type MemberItem struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	JoinedAt    int64  `json:"joined_at_unix"`
}

type QueueItem struct {
	ID       string `json:"id"`
	TrackRef string `json:"track_ref"`
	AddedBy  string `json:"added_by"`
}

type StatePayload struct {
	RoomID       string       `json:"room_id"`
	ControllerID string       `json:"controller_id"`
	Members      []MemberItem `json:"members"`
	Queue        []QueueItem  `json:"queue"`
	TrackRef     string       `json:"track_ref,omitempty"`
	Running      bool         `json:"running"`
	PositionSec  float64      `json:"position_sec"`
	EpochMs      int64        `json:"epoch_ms"`
	ServerNowMs  int64        `json:"server_now_ms"`
}

type TimePingPayload struct {
	T0 int64 `json:"t0"`
}

type TimePongPayload struct {
	T0       int64 `json:"t0"`
	ServerMs int64 `json:"server_ms"`
}

type LoadPayload struct {
	TrackRef string `json:"track_ref"`
}

type TrackLoadedPayload struct {
	RoomID      string  `json:"room_id"`
	TrackRef    string  `json:"track_ref"`
	PositionSec float64 `json:"position_sec"`
}

type PlayEventPayload struct {
	RoomID      string  `json:"room_id"`
	TrackRef    string  `json:"track_ref"`
	PositionSec float64 `json:"position_sec"`
	StartAtMs   int64   `json:"start_at_ms"`
}

type PauseEventPayload struct {
	RoomID      string  `json:"room_id"`
	PositionSec float64 `json:"position_sec"`
	ServerNowMs int64   `json:"server_now_ms"`
}

// StartAtMs == nil: seek в паузе, без переармирования.
type SeekEventPayload struct {
	RoomID      string  `json:"room_id"`
	PositionSec float64 `json:"position_sec"`
	StartAtMs   *int64  `json:"start_at_ms"`
}

type SeekPayload struct {
	PositionSec float64 `json:"position_sec"`
}

type TransferPayload struct {
	TargetID string `json:"target_id"`
}

type QueueAddPayload struct {
	TrackRef string `json:"track_ref"`
}

type QueueRemovePayload struct {
	EntryID string `json:"entry_id"`
}

type QueuePayload struct {
	RoomID string      `json:"room_id"`
	Items  []QueueItem `json:"items"`
}

type RoomUpdatePayload struct {
	RoomID       string       `json:"room_id"`
	ControllerID string       `json:"controller_id"`
	Members      []MemberItem `json:"members"`
}

type RolePayload struct {
	RoomID     string `json:"room_id"`
	Controller bool   `json:"controller"`
}

type DeniedPayload struct {
	Reason string `json:"reason"`
}

type PeerEventPayload struct {
	RoomID      string `json:"room_id"`
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name,omitempty"`
}

type ChatPayload struct {
	RoomID  string `json:"room_id"`
	UserID  string `json:"user_id"`
	Message string `json:"message"`

	MsgID  string `json:"msg_id,omitempty"`
	TSUnix int64  `json:"ts_unix,omitempty"`
}

type ChatAckPayload struct {
	MsgID string `json:"msg_id"`
}
