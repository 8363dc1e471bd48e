package model

import (
	"time"

	"github.com/google/uuid"
)

type MessageSource string

const (
	MessageSourceUser      = MessageSource("user")
	MessageSourceAssistant = MessageSource("assistant")
)

// Message is one conversation turn. Once appended to a MessageLog it is never changed.
type Message struct {
	ID        uuid.UUID
	Source    MessageSource
	Body      string
	Timestamp time.Time
}
