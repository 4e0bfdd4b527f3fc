package registry

import (
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/listen-party/sync-service/internal/domain"
)

// SessionStore issues opaque tokens for display identities. A token is the
// restore key a reconnecting client presents; the store itself is ephemeral
// like everything else.
type SessionStore struct {
	clock clockwork.Clock

	mu      sync.RWMutex
	byToken map[string]*domain.Session
}

func NewSessionStore(clock clockwork.Clock) *SessionStore {
	return &SessionStore{
		clock:   clock,
		byToken: make(map[string]*domain.Session),
	}
}

func (s *SessionStore) Create(displayName string) (domain.Session, error) {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return domain.Session{}, domain.ErrNoIdentity
	}

	sess := &domain.Session{
		Token:       uuid.NewString(),
		UserID:      uuid.NewString(),
		DisplayName: displayName,
		CreatedAt:   s.clock.Now(),
	}

	s.mu.Lock()
	s.byToken[sess.Token] = sess
	s.mu.Unlock()
	return *sess, nil
}

func (s *SessionStore) Get(token string) (domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.byToken[token]
	if !ok {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return *sess, nil
}

// SetRoom records which room the session is currently attached to.
func (s *SessionStore) SetRoom(token, roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.byToken[token]; ok {
		sess.RoomID = roomID
	}
}

func (s *SessionStore) Delete(token string) {
	s.mu.Lock()
	delete(s.byToken, token)
	s.mu.Unlock()
}
