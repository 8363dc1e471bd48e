package key_value

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/iamvkosarev/easymatter-bot/internal/model"
	snapshot_codec "github.com/iamvkosarev/easymatter-bot/internal/storage/snapshot-codec"
	"github.com/redis/go-redis/v9"
)

type SessionStorage struct {
	rdb redis.UniversalClient
}

func NewSessionStorage(rdb redis.UniversalClient) *SessionStorage {
	return &SessionStorage{
		rdb: rdb,
	}
}

// SaveSession stores the snapshot and indexes it under its user in one transaction.
func (s *SessionStorage) SaveSession(ctx context.Context, snapshot model.SessionSnapshot) error {
	raw, err := snapshot_codec.Marshal(snapshot)
	if err != nil {
		return err
	}
	_, err = s.rdb.TxPipelined(
		ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, getSessionIDKey(snapshot.ID), raw, 0)
			pipe.SAdd(ctx, getUserSessionsKey(snapshot.UserID), snapshot.ID.String())
			return nil
		},
	)
	if err != nil {
		return fmt.Errorf("failed to save session %s: %w", snapshot.ID, err)
	}
	return nil
}

func (s *SessionStorage) GetSession(ctx context.Context, sessionID uuid.UUID) (model.SessionSnapshot, error) {
	raw, err := s.rdb.Get(ctx, getSessionIDKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return model.SessionSnapshot{}, model.ErrSessionDoesNotExist
		}
		return model.SessionSnapshot{}, fmt.Errorf("failed to get session %s: %w", sessionID, err)
	}
	snapshot, err := snapshot_codec.Unmarshal(raw)
	if err != nil {
		return model.SessionSnapshot{}, fmt.Errorf("failed to decode session %s: %w", sessionID, err)
	}
	return snapshot, nil
}

// ListUserSessions returns the user's sessions, most recently updated first.
func (s *SessionStorage) ListUserSessions(ctx context.Context, userID uuid.UUID) ([]model.SessionSnapshot, error) {
	sessionIDs, err := s.rdb.SMembers(ctx, getUserSessionsKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get user sessions ids: %w", err)
	}
	sessions := make([]model.SessionSnapshot, 0, len(sessionIDs))
	for _, sessionIDStr := range sessionIDs {
		sessionID, err := uuid.Parse(sessionIDStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse sessionID %s: %w", sessionIDStr, err)
		}
		session, err := s.GetSession(ctx, sessionID)
		if err != nil {
			if errors.Is(err, model.ErrSessionDoesNotExist) {
				continue
			}
			return nil, err
		}
		sessions = append(sessions, session)
	}
	sort.Slice(
		sessions, func(i, j int) bool {
			return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
		},
	)
	return sessions, nil
}

func getSessionIDKey(sessionID uuid.UUID) string {
	return fmt.Sprintf("session_%s", sessionID.String())
}

func getUserSessionsKey(userID uuid.UUID) string {
	return fmt.Sprintf("user_sessions_%s", userID.String())
}
