package in_memory

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/iamvkosarev/easymatter-bot/internal/model"
)

var (
	ErrUserAlreadyExists = errors.New("user already exists")
)

type UserStorage struct {
	mu               sync.RWMutex
	users            map[uuid.UUID]*model.User
	telegramUsersIDs map[int64]uuid.UUID
}

func NewUserStorage() *UserStorage {
	return &UserStorage{
		users:            make(map[uuid.UUID]*model.User),
		telegramUsersIDs: make(map[int64]uuid.UUID),
	}
}

func (u *UserStorage) CreateNewTelegramUser(
	_ context.Context,
	userTelegramID int64,
	roles []model.UserRole,
) (uuid.UUID, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if _, ok := u.telegramUsersIDs[userTelegramID]; ok {
		return uuid.Nil, ErrUserAlreadyExists
	}
	userID := uuid.New()
	u.telegramUsersIDs[userTelegramID] = userID

	user := &model.User{
		TelegramID: userTelegramID,
		UserID:     userID,
		Roles:      append([]model.UserRole(nil), roles...),
	}
	u.users[userID] = user
	return userID, nil
}

func (u *UserStorage) UpdateUserActiveSession(_ context.Context, userID uuid.UUID, sessionID uuid.UUID) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	user, ok := u.users[userID]
	if !ok {
		return model.ErrUserDoesNotExists
	}
	user.ActiveSession = sessionID
	return nil
}

func (u *UserStorage) GetUserInfo(_ context.Context, userID uuid.UUID) (model.User, error) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	user, ok := u.users[userID]
	if !ok {
		return model.User{}, model.ErrUserDoesNotExists
	}
	info := *user
	info.Roles = append([]model.UserRole(nil), user.Roles...)
	return info, nil
}

func (u *UserStorage) GetUserIDForTelegramUser(_ context.Context, userTelegramID int64) (uuid.UUID, error) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	userID, ok := u.telegramUsersIDs[userTelegramID]
	if !ok {
		return uuid.Nil, model.ErrTelegramUserDoesNotExists
	}
	return userID, nil
}
