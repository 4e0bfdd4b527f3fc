package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/listen-party/sync-service/internal/domain"
	"github.com/listen-party/sync-service/internal/registry"
)

// ChatService — ограниченная история сообщений поверх ring-буфера комнаты.
type ChatService struct {
	reg    *registry.Registry
	clock  clockwork.Clock
	maxLen int
}

func NewChatService(reg *registry.Registry, clock clockwork.Clock, maxLen int) *ChatService {
	if maxLen <= 0 {
		maxLen = 4000
	}
	return &ChatService{reg: reg, clock: clock, maxLen: maxLen}
}

func (s *ChatService) Save(ctx context.Context, roomID, userID, text string) (domain.ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.ChatMessage{}, errors.New("empty message")
	}
	if len(text) > s.maxLen {
		return domain.ChatMessage{}, errors.New("message too long")
	}

	msg := domain.ChatMessage{
		ID:        uuid.NewString(),
		RoomID:    roomID,
		UserID:    userID,
		Text:      text,
		CreatedAt: s.clock.Now(),
	}
	err := s.reg.With(roomID, func(room *registry.Room) error {
		if !room.HasMember(userID) {
			return domain.ErrNotInRoom
		}
		room.Chat.Append(msg)
		return nil
	})
	if err != nil {
		return domain.ChatMessage{}, err
	}
	return msg, nil
}

func (s *ChatService) History(ctx context.Context, roomID string) ([]domain.ChatMessage, error) {
	var out []domain.ChatMessage
	err := s.reg.With(roomID, func(room *registry.Room) error {
		out = room.Chat.All()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
