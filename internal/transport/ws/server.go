package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/listen-party/sync-service/internal/domain"
	"github.com/listen-party/sync-service/internal/registry"
	"github.com/listen-party/sync-service/internal/service"
)

type Server struct {
	upgrader websocket.Upgrader
	hub      *Hub
	syncSvc  *service.SyncService
	chatSvc  *service.ChatService
	sessions *registry.SessionStore
	clock    clockwork.Clock

	pingEvery time.Duration
}

func NewServer(hub *Hub, syncSvc *service.SyncService, chatSvc *service.ChatService, sessions *registry.SessionStore, clock clockwork.Clock, pingEvery time.Duration) *Server {
	if pingEvery <= 0 {
		pingEvery = 15 * time.Second
	}
	return &Server{
		hub:      hub,
		syncSvc:  syncSvc,
		chatSvc:  chatSvc,
		sessions: sessions,
		clock:    clock,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		pingEvery: pingEvery,
	}
}

func (s *Server) nowMs() int64 { return s.clock.Now().UnixMilli() }

// WS endpoint: GET /ws/rooms/{id}?token=...
//
// Токен сессии — ключ восстановления: одно логическое подключение всегда
// соответствует одной паре (identity, room).
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}
	sess, err := s.sessions.Get(token)
	if err != nil {
		http.Error(w, "unknown session", http.StatusUnauthorized)
		return
	}
	roomID := chi.URLParam(r, "id")
	if roomID == "" {
		http.Error(w, "missing room id", http.StatusBadRequest)
		return
	}

	// join до upgrade: на RoomNotFound клиент получает обычный 404
	snap, err := s.syncSvc.Join(r.Context(), roomID, sess)
	if err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}
		slog.Error("ws join failed", "room", roomID, "user", sess.UserID, "err", err)
		http.Error(w, "join failed", http.StatusInternalServerError)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws upgrade failed", "err", err)
		// join уже прошёл: откатить, иначе в комнате остаётся участник
		// без соединения, и комната никогда не опустеет
		s.dropMember(r.Context(), roomID, sess)
		return
	}

	c := newWsConn(conn, roomID, sess.UserID)
	s.hub.Add(c)
	s.sessions.SetRoom(token, roomID)

	// авторитетный снапшот + персональная роль новичку
	if err := c.Send(stateMessage(snap)); err != nil {
		slog.Warn("ws send initial state failed", "room", roomID, "user", sess.UserID, "err", err)
	}
	_ = c.Send(Message{
		Type:    TypeRole,
		Payload: RolePayload{RoomID: roomID, Controller: snap.ControllerID == sess.UserID},
	})

	s.hub.Broadcast(roomID, Message{
		Type:    TypePeerJoined,
		Payload: PeerEventPayload{RoomID: roomID, UserID: sess.UserID, DisplayName: sess.DisplayName},
	})
	s.hub.Broadcast(roomID, Message{
		Type:    TypeRoomUpdate,
		Payload: RoomUpdatePayload{RoomID: roomID, ControllerID: snap.ControllerID, Members: memberItems(snap.Members)},
	})

	go s.writeLoop(r.Context(), c)
	s.readLoop(r.Context(), c)

	s.hub.Remove(c)
	s.dropMember(r.Context(), roomID, sess)

	if err := c.Close(); err != nil {
		slog.Debug("ws close failed", "room", roomID, "user", sess.UserID, "err", err)
	}
}

// dropMember — выход участника (разрыв или неудавшийся upgrade после
// join): убрать из комнаты, при необходимости передать контроль и
// разослать новый состав.
func (s *Server) dropMember(ctx context.Context, roomID string, sess domain.Session) {
	res, err := s.syncSvc.Leave(ctx, roomID, sess.UserID)
	if err != nil {
		slog.Debug("ws leave failed", "room", roomID, "user", sess.UserID, "err", err)
		return
	}
	if res.RoomDestroyed {
		return
	}

	s.hub.Broadcast(roomID, Message{
		Type:    TypePeerLeft,
		Payload: PeerEventPayload{RoomID: roomID, UserID: sess.UserID, DisplayName: sess.DisplayName},
	})
	s.hub.Broadcast(roomID, Message{
		Type: TypeRoomUpdate,
		Payload: RoomUpdatePayload{
			RoomID:       roomID,
			ControllerID: res.Controller,
			Members:      memberItems(res.Members),
		},
	})
	if res.NewController != "" {
		s.hub.SendToUser(roomID, res.NewController, Message{
			Type:    TypeRole,
			Payload: RolePayload{RoomID: roomID, Controller: true},
		})
	}
}

func (s *Server) readLoop(ctx context.Context, c *wsConn) {
	defer func() { _ = c.Close() }()

	c.conn.SetReadLimit(1 << 20)
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * s.pingEvery))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(2 * s.pingEvery))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		s.dispatch(ctx, c, msg)
	}
}

// dispatch обрабатывает одну команду. Ошибки авторитета превращаются в
// персональный denied; остальные (пропавшая комната, нет трека) молча
// игнорируются — таков контракт.
func (s *Server) dispatch(ctx context.Context, c *wsConn, msg Message) {
	switch msg.Type {
	case TypeTimePing:
		var p TimePingPayload
		if decode(msg.Payload, &p) != nil {
			return
		}
		_ = c.Send(Message{
			Type:    TypeTimePong,
			Payload: TimePongPayload{T0: p.T0, ServerMs: s.nowMs()},
		})

	case TypeLoad:
		var p LoadPayload
		if decode(msg.Payload, &p) != nil {
			return
		}
		ev, err := s.syncSvc.Load(ctx, c.roomID, c.userID, p.TrackRef)
		if s.rejected(c, err) {
			return
		}
		s.hub.Broadcast(c.roomID, Message{
			Type: TypeTrackLoaded,
			Payload: TrackLoadedPayload{
				RoomID:      c.roomID,
				TrackRef:    ev.Timeline.TrackRef,
				PositionSec: ev.Timeline.BasePositionSec,
			},
		})

	case TypePlay:
		ev, err := s.syncSvc.Play(ctx, c.roomID, c.userID)
		if s.rejected(c, err) {
			return
		}
		s.broadcastPlay(c.roomID, ev)

	case TypePause:
		ev, err := s.syncSvc.Pause(ctx, c.roomID, c.userID)
		if s.rejected(c, err) {
			return
		}
		s.broadcastPause(c.roomID, ev)

	case TypeSeek:
		var p SeekPayload
		if decode(msg.Payload, &p) != nil {
			return
		}
		ev, err := s.syncSvc.Seek(ctx, c.roomID, c.userID, p.PositionSec)
		if s.rejected(c, err) {
			return
		}
		out := SeekEventPayload{RoomID: c.roomID, PositionSec: ev.Timeline.BasePositionSec}
		if ev.Timeline.Running {
			epoch := ev.Timeline.EpochMs
			out.StartAtMs = &epoch
		}
		s.hub.Broadcast(c.roomID, Message{Type: TypeSeek, Payload: out})

	case TypeTransfer:
		var p TransferPayload
		if decode(msg.Payload, &p) != nil {
			return
		}
		upd, err := s.syncSvc.Transfer(ctx, c.roomID, c.userID, p.TargetID)
		if s.rejected(c, err) {
			return
		}
		// двойное уведомление: общий room_update плюс персональные роли,
		// чтобы UI не выводил роль из гонки широковещательных событий
		s.hub.Broadcast(c.roomID, Message{
			Type: TypeRoomUpdate,
			Payload: RoomUpdatePayload{
				RoomID:       upd.RoomID,
				ControllerID: upd.ControllerID,
				Members:      memberItems(upd.Members),
			},
		})
		s.hub.SendToUser(c.roomID, upd.ControllerID, Message{
			Type:    TypeRole,
			Payload: RolePayload{RoomID: c.roomID, Controller: true},
		})
		s.hub.SendToUser(c.roomID, c.userID, Message{
			Type:    TypeRole,
			Payload: RolePayload{RoomID: c.roomID, Controller: false},
		})

	case TypeQueueAdd:
		var p QueueAddPayload
		if decode(msg.Payload, &p) != nil {
			return
		}
		items, err := s.syncSvc.QueueAdd(ctx, c.roomID, c.userID, p.TrackRef)
		if s.rejected(c, err) {
			return
		}
		s.broadcastQueue(c.roomID, items)

	case TypeQueueRemove:
		var p QueueRemovePayload
		if decode(msg.Payload, &p) != nil {
			return
		}
		items, err := s.syncSvc.QueueRemove(ctx, c.roomID, c.userID, p.EntryID)
		if s.rejected(c, err) {
			return
		}
		s.broadcastQueue(c.roomID, items)

	case TypeTrackEnded:
		ev, advanced, rest, err := s.syncSvc.TrackEnded(ctx, c.roomID, c.userID)
		if s.rejected(c, err) {
			return
		}
		if advanced {
			s.hub.Broadcast(c.roomID, Message{
				Type: TypeTrackLoaded,
				Payload: TrackLoadedPayload{
					RoomID:   c.roomID,
					TrackRef: ev.Timeline.TrackRef,
				},
			})
			s.broadcastPlay(c.roomID, ev)
			s.broadcastQueue(c.roomID, rest)
			return
		}
		s.broadcastPause(c.roomID, ev)

	case TypeChat:
		var p ChatPayload
		if decode(msg.Payload, &p) != nil {
			return
		}
		saved, err := s.chatSvc.Save(ctx, c.roomID, c.userID, p.Message)
		if err != nil {
			slog.Debug("ws chat save failed", "room", c.roomID, "user", c.userID, "err", err)
			return
		}
		s.hub.Broadcast(c.roomID, Message{
			Type: TypeChat,
			Payload: ChatPayload{
				RoomID:  c.roomID,
				UserID:  c.userID,
				Message: saved.Text,
				MsgID:   saved.ID,
				TSUnix:  saved.CreatedAt.Unix(),
			},
		})
		_ = c.Send(Message{Type: TypeChatAck, Payload: ChatAckPayload{MsgID: saved.ID}})

	default:
		// ignore
	}
}

// rejected отправляет denied на нарушение авторитета, остальные ошибки
// глотает (с debug-логом). true == команда не прошла.
func (s *Server) rejected(c *wsConn, err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, domain.ErrNotAuthorized):
		_ = c.Send(Message{Type: TypeDenied, Payload: DeniedPayload{Reason: "not_controller"}})
	case errors.Is(err, domain.ErrUnknownTarget):
		_ = c.Send(Message{Type: TypeDenied, Payload: DeniedPayload{Reason: "unknown_target"}})
	default:
		slog.Debug("ws command dropped", "room", c.roomID, "user", c.userID, "err", err)
	}
	return true
}

func (s *Server) broadcastPlay(roomID string, ev service.TimelineEvent) {
	s.hub.Broadcast(roomID, Message{
		Type: TypePlay,
		Payload: PlayEventPayload{
			RoomID:      roomID,
			TrackRef:    ev.Timeline.TrackRef,
			PositionSec: ev.Timeline.BasePositionSec,
			StartAtMs:   ev.Timeline.EpochMs,
		},
	})
}

func (s *Server) broadcastPause(roomID string, ev service.TimelineEvent) {
	s.hub.Broadcast(roomID, Message{
		Type: TypePause,
		Payload: PauseEventPayload{
			RoomID:      roomID,
			PositionSec: ev.Timeline.BasePositionSec,
			ServerNowMs: ev.ServerNowMs,
		},
	})
}

func (s *Server) broadcastQueue(roomID string, items []domain.QueueEntry) {
	s.hub.Broadcast(roomID, Message{
		Type:    TypeQueue,
		Payload: QueuePayload{RoomID: roomID, Items: queueItems(items)},
	})
}

func (s *Server) writeLoop(ctx context.Context, c *wsConn) {
	ticker := time.NewTicker(s.pingEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
		case <-ctx.Done():
			return
		case <-c.closed:
			return
		}
	}
}

// --- helpers ---

func stateMessage(snap *service.RoomSnapshot) Message {
	return Message{
		Type: TypeState,
		Payload: StatePayload{
			RoomID:       snap.RoomID,
			ControllerID: snap.ControllerID,
			Members:      memberItems(snap.Members),
			Queue:        queueItems(snap.Queue),
			TrackRef:     snap.Timeline.TrackRef,
			Running:      snap.Timeline.Running,
			PositionSec:  snap.Timeline.BasePositionSec,
			EpochMs:      snap.Timeline.EpochMs,
			ServerNowMs:  snap.ServerNowMs,
		},
	}
}

func memberItems(members []domain.Member) []MemberItem {
	items := make([]MemberItem, 0, len(members))
	for _, m := range members {
		items = append(items, MemberItem{
			UserID:      m.UserID,
			DisplayName: m.DisplayName,
			JoinedAt:    m.JoinedAt.Unix(),
		})
	}
	return items
}

func queueItems(entries []domain.QueueEntry) []QueueItem {
	items := make([]QueueItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, QueueItem{ID: e.ID, TrackRef: e.TrackRef, AddedBy: e.AddedBy})
	}
	return items
}

func decode(payload interface{}, dst interface{}) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dst)
}

type wsConn struct {
	conn   *websocket.Conn
	roomID string
	userID string
	sendMu chan struct{}
	closed chan struct{}
}

func newWsConn(c *websocket.Conn, roomID, userID string) *wsConn {
	return &wsConn{
		conn:   c,
		roomID: roomID,
		userID: userID,
		sendMu: make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
}

func (c *wsConn) Send(msg Message) error {
	c.sendMu <- struct{}{}
	defer func() { <-c.sendMu }()
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))

	return c.conn.WriteJSON(msg)
}

func (c *wsConn) Close() error {
	select {
	case <-c.closed:
	default:
		close(c.closed)
	}

	return c.conn.Close()
}

func (c *wsConn) UserID() string { return c.userID }
func (c *wsConn) RoomID() string { return c.roomID }
