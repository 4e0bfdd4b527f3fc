package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/listen-party/sync-service/internal/domain"
	"github.com/listen-party/sync-service/internal/registry"
	"github.com/listen-party/sync-service/internal/service"
	httpmw "github.com/listen-party/sync-service/internal/transport/http/middleware"
)

type Handler struct {
	syncSvc  *service.SyncService
	chatSvc  *service.ChatService
	sessions *registry.SessionStore
}

func NewHandler(syncSvc *service.SyncService, chatSvc *service.ChatService, sessions *registry.SessionStore) *Handler {
	return &Handler{
		syncSvc:  syncSvc,
		chatSvc:  chatSvc,
		sessions: sessions,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// POST /session — установить display identity, получить токен.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid json"})
		return
	}
	sess, err := h.sessions.Create(req.DisplayName)
	if err != nil {
		if errors.Is(err, domain.ErrNoIdentity) {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "display_name is required"})
			return
		}
		slog.Error("handler.CreateSession:", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusCreated, CreateSessionResponse{
		Token:       sess.Token,
		UserID:      sess.UserID,
		DisplayName: sess.DisplayName,
	})
}

// POST /rooms — создать комнату, вызывающий становится контроллером.
func (h *Handler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	sess, ok := httpmw.SessionFromCtx(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "missing session"})
		return
	}

	snap, err := h.syncSvc.CreateRoom(r.Context(), sess)
	if err != nil {
		slog.Error("handler.CreateRoom:", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusCreated, roomResponse(snap))
}

// GET /rooms/{id}
func (h *Handler) GetRoom(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	snap, err := h.syncSvc.Snapshot(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) {
			writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "room not found"})
			return
		}
		slog.Error("handler.GetRoom:", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, roomResponse(snap))
}

// GET /rooms/{id}/chat
func (h *Handler) GetChatHistory(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "id")
	items, err := h.chatSvc.History(r.Context(), roomID)
	if err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) {
			writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "room not found"})
			return
		}
		slog.Error("handler.GetChatHistory:", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	resp := ChatHistoryResponse{Items: make([]ChatMessageItem, 0, len(items))}
	for _, m := range items {
		resp.Items = append(resp.Items, ChatMessageItem{
			ID:        m.ID,
			RoomID:    m.RoomID,
			UserID:    m.UserID,
			Text:      m.Text,
			CreatedAt: m.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func roomResponse(snap *service.RoomSnapshot) RoomResponse {
	resp := RoomResponse{
		ID:           snap.RoomID,
		ControllerID: snap.ControllerID,
		Members:      make([]MemberItem, 0, len(snap.Members)),
		Queue:        make([]QueueItem, 0, len(snap.Queue)),
		TrackRef:     snap.Timeline.TrackRef,
		Running:      snap.Timeline.Running,
		PositionSec:  snap.Timeline.BasePositionSec,
		EpochMs:      snap.Timeline.EpochMs,
		ServerNowMs:  snap.ServerNowMs,
	}
	for _, m := range snap.Members {
		resp.Members = append(resp.Members, MemberItem{
			UserID:      m.UserID,
			DisplayName: m.DisplayName,
			JoinedAt:    m.JoinedAt,
		})
	}
	for _, e := range snap.Queue {
		resp.Queue = append(resp.Queue, QueueItem{ID: e.ID, TrackRef: e.TrackRef, AddedBy: e.AddedBy})
	}
	return resp
}
