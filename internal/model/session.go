package model

import (
	"time"

	"github.com/google/uuid"
)

type SessionState string

const (
	SessionStateIdle             = SessionState("idle")
	SessionStateAwaitingResponse = SessionState("awaitingResponse")
	SessionStateError            = SessionState("error")
)

// Artifact is a generated generator script ready for download.
type Artifact struct {
	Filename string
	Code     string
}

// SessionSnapshot is the persisted form of a design session.
type SessionSnapshot struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	TemplateID     string
	Seed           string
	Messages       []Message
	Properties     []PropertyEntry
	BaseProperties []PropertyEntry
	Artifact       *Artifact
	ShowProperties bool

	Goal                string
	AvailableMaterials  []string
	CurrentProperty     string
	GeneratorParameters map[string]any

	CreatedAt time.Time
	UpdatedAt time.Time
}
