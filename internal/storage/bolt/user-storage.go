package bolt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/iamvkosarev/easymatter-bot/internal/model"
	bolt "go.etcd.io/bbolt"
)

var ErrUserAlreadyExists = errors.New("user already exists")

type userInternal struct {
	UserID        string           `json:"user_id"`
	TelegramID    int64            `json:"telegram_id"`
	Roles         []model.UserRole `json:"roles"`
	ActiveSession string           `json:"active_session,omitempty"`
}

type UserStorage struct {
	db *bolt.DB
}

func NewUserStorage(db *bolt.DB) *UserStorage {
	return &UserStorage{db: db}
}

func (u *UserStorage) CreateNewTelegramUser(
	_ context.Context,
	userTelegramID int64,
	roles []model.UserRole,
) (uuid.UUID, error) {
	userID := uuid.New()
	raw, err := json.Marshal(
		userInternal{
			UserID:     userID.String(),
			TelegramID: userTelegramID,
			Roles:      roles,
		},
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to marshal internal user: %w", err)
	}

	err = u.db.Update(
		func(tx *bolt.Tx) error {
			telegramUsers := tx.Bucket(telegramUsersBucket)
			telegramKey := telegramUserKey(userTelegramID)
			if telegramUsers.Get(telegramKey) != nil {
				return ErrUserAlreadyExists
			}
			if err := telegramUsers.Put(telegramKey, []byte(userID.String())); err != nil {
				return err
			}
			return tx.Bucket(usersBucket).Put([]byte(userID.String()), raw)
		},
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to save telegram user %d: %w", userTelegramID, err)
	}
	return userID, nil
}

func (u *UserStorage) UpdateUserActiveSession(_ context.Context, userID uuid.UUID, sessionID uuid.UUID) error {
	return u.db.Update(
		func(tx *bolt.Tx) error {
			users := tx.Bucket(usersBucket)
			user, err := decodeUser(users.Get([]byte(userID.String())))
			if err != nil {
				return err
			}
			user.ActiveSession = sessionID.String()
			raw, err := json.Marshal(user)
			if err != nil {
				return fmt.Errorf("failed to marshal internal user: %w", err)
			}
			return users.Put([]byte(userID.String()), raw)
		},
	)
}

func (u *UserStorage) GetUserInfo(_ context.Context, userID uuid.UUID) (model.User, error) {
	var userInt userInternal
	err := u.db.View(
		func(tx *bolt.Tx) error {
			var err error
			userInt, err = decodeUser(tx.Bucket(usersBucket).Get([]byte(userID.String())))
			return err
		},
	)
	if err != nil {
		return model.User{}, err
	}

	activeSession := uuid.Nil
	if userInt.ActiveSession != "" {
		activeSession, err = uuid.Parse(userInt.ActiveSession)
		if err != nil {
			return model.User{}, fmt.Errorf("failed to parse active session of %s: %w", userID, err)
		}
	}
	return model.User{
		UserID:        userID,
		TelegramID:    userInt.TelegramID,
		Roles:         userInt.Roles,
		ActiveSession: activeSession,
	}, nil
}

func (u *UserStorage) GetUserIDForTelegramUser(_ context.Context, userTelegramID int64) (uuid.UUID, error) {
	var userIDStr string
	err := u.db.View(
		func(tx *bolt.Tx) error {
			stored := tx.Bucket(telegramUsersBucket).Get(telegramUserKey(userTelegramID))
			if stored == nil {
				return model.ErrTelegramUserDoesNotExists
			}
			userIDStr = string(stored)
			return nil
		},
	)
	if err != nil {
		return uuid.Nil, err
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to parse userID %s: %w", userIDStr, err)
	}
	return userID, nil
}

// decodeUser must be called inside the transaction that read raw.
func decodeUser(raw []byte) (userInternal, error) {
	if raw == nil {
		return userInternal{}, model.ErrUserDoesNotExists
	}
	var user userInternal
	if err := json.Unmarshal(raw, &user); err != nil {
		return userInternal{}, fmt.Errorf("failed to unmarshal internal user: %w", err)
	}
	return user, nil
}

func telegramUserKey(userTelegramID int64) []byte {
	return []byte(strconv.FormatInt(userTelegramID, 10))
}
