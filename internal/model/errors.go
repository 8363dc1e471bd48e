package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrServiceUnavailable = errors.New("interpretation service unavailable")
	ErrMalformedResponse  = errors.New("malformed interpretation response")
	ErrNotFound           = errors.New("property not found")
	ErrReadOnly           = errors.New("property is read-only")
	ErrTemplate           = errors.New("template slots are missing")
	ErrSessionBusy        = errors.New("session is awaiting a response")

	ErrTelegramUserDoesNotExists = errors.New("telegram user doesn't exists")
	ErrUserDoesNotExists         = errors.New("user doesn't exists")
	ErrSessionDoesNotExist       = errors.New("session does not exist")
)

// TemplateError lists every required slot the snapshot did not fill.
type TemplateError struct {
	Missing []string
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("missing template slots: %s", strings.Join(e.Missing, ", "))
}

func (e *TemplateError) Is(target error) bool {
	return target == ErrTemplate
}
