package in_memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/iamvkosarev/easymatter-bot/internal/model"
)

type SessionStorage struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]model.SessionSnapshot
}

func NewSessionStorage() *SessionStorage {
	return &SessionStorage{
		sessions: make(map[uuid.UUID]model.SessionSnapshot),
	}
}

func (s *SessionStorage) SaveSession(_ context.Context, snapshot model.SessionSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[snapshot.ID] = snapshot
	return nil
}

func (s *SessionStorage) GetSession(_ context.Context, sessionID uuid.UUID) (model.SessionSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot, ok := s.sessions[sessionID]
	if !ok {
		return model.SessionSnapshot{}, model.ErrSessionDoesNotExist
	}
	return snapshot, nil
}

func (s *SessionStorage) ListUserSessions(_ context.Context, userID uuid.UUID) ([]model.SessionSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sessions := make([]model.SessionSnapshot, 0)
	for _, snapshot := range s.sessions {
		if snapshot.UserID == userID {
			sessions = append(sessions, snapshot)
		}
	}
	sort.Slice(
		sessions, func(i, j int) bool {
			return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
		},
	)
	return sessions, nil
}
