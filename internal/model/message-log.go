package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MessageLog is the ordered transcript of a design session.
type MessageLog struct {
	messages []Message
	now      func() time.Time
}

func NewMessageLog(seed string) *MessageLog {
	l := &MessageLog{now: time.Now}
	l.Reset(seed)
	return l
}

// RestoreMessageLog rebuilds a log from a persisted transcript, keeping ids and timestamps.
func RestoreMessageLog(messages []Message) *MessageLog {
	restored := make([]Message, len(messages))
	copy(restored, messages)
	return &MessageLog{
		messages: restored,
		now:      time.Now,
	}
}

func (l *MessageLog) Append(source MessageSource, body string) (Message, error) {
	if source == MessageSourceUser && strings.TrimSpace(body) == "" {
		return Message{}, fmt.Errorf("user message body is empty: %w", ErrValidation)
	}
	msg := Message{
		ID:        uuid.New(),
		Source:    source,
		Body:      body,
		Timestamp: l.now(),
	}
	l.messages = append(l.messages, msg)
	return msg, nil
}

// Reset replaces the whole transcript with a single assistant seed message.
func (l *MessageLog) Reset(seed string) {
	l.messages = []Message{
		{
			ID:        uuid.New(),
			Source:    MessageSourceAssistant,
			Body:      seed,
			Timestamp: l.now(),
		},
	}
}

func (l *MessageLog) All() []Message {
	out := make([]Message, len(l.messages))
	copy(out, l.messages)
	return out
}

func (l *MessageLog) Len() int {
	return len(l.messages)
}
