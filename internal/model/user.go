package model

import (
	"github.com/google/uuid"
)

type UserRole int8

const (
	UserRoleDefault = UserRole(iota)
	UserRoleAdmin
	UserRolePremium
)

func ParseUserRole(s string) UserRole {
	switch s {
	case "admin":
		return UserRoleAdmin
	case "premium":
		return UserRolePremium
	default:
		return UserRoleDefault
	}
}

func (r UserRole) String() string {
	switch r {
	case UserRoleAdmin:
		return "admin"
	case UserRolePremium:
		return "premium"
	default:
		return "default"
	}
}

type User struct {
	UserID        uuid.UUID
	TelegramID    int64
	Roles         []UserRole
	ActiveSession uuid.UUID
}

func (u User) HasRole(role UserRole) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}
