package bolt

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/iamvkosarev/easymatter-bot/internal/model"
	snapshot_codec "github.com/iamvkosarev/easymatter-bot/internal/storage/snapshot-codec"
	bolt "go.etcd.io/bbolt"
)

type SessionStorage struct {
	db *bolt.DB
}

func NewSessionStorage(db *bolt.DB) *SessionStorage {
	return &SessionStorage{db: db}
}

func (s *SessionStorage) SaveSession(_ context.Context, snapshot model.SessionSnapshot) error {
	raw, err := snapshot_codec.Marshal(snapshot)
	if err != nil {
		return err
	}
	err = s.db.Update(
		func(tx *bolt.Tx) error {
			sessionKey := []byte(snapshot.ID.String())
			if err := tx.Bucket(sessionsBucket).Put(sessionKey, raw); err != nil {
				return err
			}
			index, err := tx.Bucket(userSessionsBucket).CreateBucketIfNotExists([]byte(snapshot.UserID.String()))
			if err != nil {
				return err
			}
			return index.Put(sessionKey, nil)
		},
	)
	if err != nil {
		return fmt.Errorf("failed to save session %s: %w", snapshot.ID, err)
	}
	return nil
}

func (s *SessionStorage) GetSession(_ context.Context, sessionID uuid.UUID) (model.SessionSnapshot, error) {
	var raw []byte
	err := s.db.View(
		func(tx *bolt.Tx) error {
			stored := tx.Bucket(sessionsBucket).Get([]byte(sessionID.String()))
			if stored == nil {
				return model.ErrSessionDoesNotExist
			}
			raw = bytes.Clone(stored)
			return nil
		},
	)
	if err != nil {
		return model.SessionSnapshot{}, err
	}
	snapshot, err := snapshot_codec.Unmarshal(raw)
	if err != nil {
		return model.SessionSnapshot{}, fmt.Errorf("failed to decode session %s: %w", sessionID, err)
	}
	return snapshot, nil
}

// ListUserSessions returns the user's sessions, most recently updated first.
func (s *SessionStorage) ListUserSessions(_ context.Context, userID uuid.UUID) ([]model.SessionSnapshot, error) {
	var raws [][]byte
	err := s.db.View(
		func(tx *bolt.Tx) error {
			index := tx.Bucket(userSessionsBucket).Bucket([]byte(userID.String()))
			if index == nil {
				return nil
			}
			sessions := tx.Bucket(sessionsBucket)
			return index.ForEach(
				func(k, _ []byte) error {
					if stored := sessions.Get(k); stored != nil {
						raws = append(raws, bytes.Clone(stored))
					}
					return nil
				},
			)
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions of %s: %w", userID, err)
	}

	snapshots := make([]model.SessionSnapshot, 0, len(raws))
	for _, raw := range raws {
		snapshot, err := snapshot_codec.Unmarshal(raw)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snapshot)
	}
	sort.Slice(
		snapshots, func(i, j int) bool {
			return snapshots[i].UpdatedAt.After(snapshots[j].UpdatedAt)
		},
	)
	return snapshots, nil
}
