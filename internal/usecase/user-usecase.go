package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/iamvkosarev/easymatter-bot/config"
	"github.com/iamvkosarev/easymatter-bot/internal/model"
)

type UserStorage interface {
	GetUserIDForTelegramUser(ctx context.Context, userTelegramID int64) (uuid.UUID, error)
	CreateNewTelegramUser(ctx context.Context, userTelegramID int64, roles []model.UserRole) (uuid.UUID, error)
	GetUserInfo(ctx context.Context, userID uuid.UUID) (model.User, error)
	UpdateUserActiveSession(ctx context.Context, userID uuid.UUID, sessionID uuid.UUID) error
}

type UserUsecaseDeps struct {
	UserStorage UserStorage
}

type UserUsecase struct {
	UserUsecaseDeps
	telegramCfg config.Telegram
}

func NewUserUsecase(deps UserUsecaseDeps, telegramCfg config.Telegram) *UserUsecase {
	return &UserUsecase{
		UserUsecaseDeps: deps,
		telegramCfg:     telegramCfg,
	}
}

// GetUserInfoForTelegramUser returns the user bound to a Telegram account, registering it on first contact.
func (u *UserUsecase) GetUserInfoForTelegramUser(ctx context.Context, userTelegramID int64) (model.User, error) {
	userID, err := u.UserStorage.GetUserIDForTelegramUser(ctx, userTelegramID)
	if err != nil {
		if !errors.Is(err, model.ErrTelegramUserDoesNotExists) {
			return model.User{}, fmt.Errorf("failed to get telegram user: %w", err)
		}
		userID, err = u.UserStorage.CreateNewTelegramUser(ctx, userTelegramID, u.getTelegramUserRoles(userTelegramID))
		if err != nil {
			return model.User{}, fmt.Errorf("failed to create telegram user: %w", err)
		}
	}
	return u.UserStorage.GetUserInfo(ctx, userID)
}

func (u *UserUsecase) GetUserInfo(ctx context.Context, userID uuid.UUID) (model.User, error) {
	user, err := u.UserStorage.GetUserInfo(ctx, userID)
	if err != nil {
		return model.User{}, err
	}
	return user, nil
}

func (u *UserUsecase) UpdateUserActiveSession(ctx context.Context, userID, sessionID uuid.UUID) error {
	return u.UserStorage.UpdateUserActiveSession(ctx, userID, sessionID)
}

// HasAccess reports whether the Telegram account may use the bot.
func (u *UserUsecase) HasAccess(userTelegramID int64) bool {
	if u.telegramCfg.IsPublic {
		return true
	}
	for _, role := range u.getTelegramUserRoles(userTelegramID) {
		if role != model.UserRoleDefault {
			return true
		}
	}
	return false
}

func (u *UserUsecase) getTelegramUserRoles(userTelegramID int64) []model.UserRole {
	roles := []model.UserRole{
		model.UserRoleDefault,
	}
	for _, userWithRoleID := range u.telegramCfg.AdminsTelegramIDs {
		if userWithRoleID == userTelegramID {
			roles = append(roles, model.UserRoleAdmin)
			break
		}
	}
	for _, userWithRoleID := range u.telegramCfg.PremiumTelegramIDs {
		if userWithRoleID == userTelegramID {
			roles = append(roles, model.UserRolePremium)
			break
		}
	}
	return roles
}
