// Package snapshot_codec is the JSON form design sessions take in key-value and bolt storages.
package snapshot_codec

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/iamvkosarev/easymatter-bot/internal/model"
)

type messageInternal struct {
	ID        string              `json:"id"`
	Source    model.MessageSource `json:"source"`
	Body      string              `json:"body"`
	Timestamp time.Time           `json:"timestamp"`
}

type propertyInternal struct {
	Key         string `json:"key"`
	DisplayName string `json:"display_name"`
	Value       string `json:"value"`
	Unit        string `json:"unit,omitempty"`
	Editable    bool   `json:"editable"`
}

type artifactInternal struct {
	Filename string `json:"filename"`
	Code     string `json:"code"`
}

type sessionInternal struct {
	SessionID           string             `json:"session_id"`
	UserID              string             `json:"user_id"`
	TemplateID          string             `json:"template_id,omitempty"`
	Seed                string             `json:"seed"`
	Messages            []messageInternal  `json:"messages"`
	Properties          []propertyInternal `json:"properties"`
	BaseProperties      []propertyInternal `json:"base_properties,omitempty"`
	Artifact            *artifactInternal  `json:"artifact,omitempty"`
	ShowProperties      bool               `json:"show_properties"`
	Goal                string             `json:"goal,omitempty"`
	AvailableMaterials  []string           `json:"available_materials,omitempty"`
	CurrentProperty     string             `json:"current_property,omitempty"`
	GeneratorParameters map[string]any     `json:"generator_parameters,omitempty"`
	CreatedAt           time.Time          `json:"created_at"`
	UpdatedAt           time.Time          `json:"updated_at"`
}

func Marshal(snapshot model.SessionSnapshot) ([]byte, error) {
	sessionInt := sessionInternal{
		SessionID:           snapshot.ID.String(),
		UserID:              snapshot.UserID.String(),
		TemplateID:          snapshot.TemplateID,
		Seed:                snapshot.Seed,
		Messages:            make([]messageInternal, 0, len(snapshot.Messages)),
		Properties:          toPropertiesInternal(snapshot.Properties),
		BaseProperties:      toPropertiesInternal(snapshot.BaseProperties),
		ShowProperties:      snapshot.ShowProperties,
		Goal:                snapshot.Goal,
		AvailableMaterials:  snapshot.AvailableMaterials,
		CurrentProperty:     snapshot.CurrentProperty,
		GeneratorParameters: snapshot.GeneratorParameters,
		CreatedAt:           snapshot.CreatedAt,
		UpdatedAt:           snapshot.UpdatedAt,
	}
	for _, msg := range snapshot.Messages {
		sessionInt.Messages = append(
			sessionInt.Messages, messageInternal{
				ID:        msg.ID.String(),
				Source:    msg.Source,
				Body:      msg.Body,
				Timestamp: msg.Timestamp,
			},
		)
	}
	if snapshot.Artifact != nil {
		sessionInt.Artifact = &artifactInternal{
			Filename: snapshot.Artifact.Filename,
			Code:     snapshot.Artifact.Code,
		}
	}

	raw, err := json.Marshal(sessionInt)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal internal session: %w", err)
	}
	return raw, nil
}

func Unmarshal(raw []byte) (model.SessionSnapshot, error) {
	var sessionInt sessionInternal
	if err := json.Unmarshal(raw, &sessionInt); err != nil {
		return model.SessionSnapshot{}, fmt.Errorf("failed to unmarshal internal session: %w", err)
	}
	sessionID, err := uuid.Parse(sessionInt.SessionID)
	if err != nil {
		return model.SessionSnapshot{}, fmt.Errorf("failed to parse session id %s: %w", sessionInt.SessionID, err)
	}
	userID, err := uuid.Parse(sessionInt.UserID)
	if err != nil {
		return model.SessionSnapshot{}, fmt.Errorf("failed to parse user id %s: %w", sessionInt.UserID, err)
	}

	messages := make([]model.Message, 0, len(sessionInt.Messages))
	for _, msg := range sessionInt.Messages {
		messageID, err := uuid.Parse(msg.ID)
		if err != nil {
			return model.SessionSnapshot{}, fmt.Errorf("failed to parse message id %s: %w", msg.ID, err)
		}
		messages = append(
			messages, model.Message{
				ID:        messageID,
				Source:    msg.Source,
				Body:      msg.Body,
				Timestamp: msg.Timestamp,
			},
		)
	}

	snapshot := model.SessionSnapshot{
		ID:                  sessionID,
		UserID:              userID,
		TemplateID:          sessionInt.TemplateID,
		Seed:                sessionInt.Seed,
		Messages:            messages,
		Properties:          fromPropertiesInternal(sessionInt.Properties),
		BaseProperties:      fromPropertiesInternal(sessionInt.BaseProperties),
		ShowProperties:      sessionInt.ShowProperties,
		Goal:                sessionInt.Goal,
		AvailableMaterials:  sessionInt.AvailableMaterials,
		CurrentProperty:     sessionInt.CurrentProperty,
		GeneratorParameters: sessionInt.GeneratorParameters,
		CreatedAt:           sessionInt.CreatedAt,
		UpdatedAt:           sessionInt.UpdatedAt,
	}
	if sessionInt.Artifact != nil {
		snapshot.Artifact = &model.Artifact{
			Filename: sessionInt.Artifact.Filename,
			Code:     sessionInt.Artifact.Code,
		}
	}
	return snapshot, nil
}

func toPropertiesInternal(entries []model.PropertyEntry) []propertyInternal {
	if entries == nil {
		return nil
	}
	out := make([]propertyInternal, 0, len(entries))
	for _, entry := range entries {
		out = append(
			out, propertyInternal{
				Key:         entry.Key,
				DisplayName: entry.DisplayName,
				Value:       entry.Value,
				Unit:        entry.Unit,
				Editable:    entry.Editable,
			},
		)
	}
	return out
}

func fromPropertiesInternal(entries []propertyInternal) []model.PropertyEntry {
	if entries == nil {
		return nil
	}
	out := make([]model.PropertyEntry, 0, len(entries))
	for _, entry := range entries {
		out = append(
			out, model.PropertyEntry{
				Key:         entry.Key,
				DisplayName: entry.DisplayName,
				Value:       entry.Value,
				Unit:        entry.Unit,
				Editable:    entry.Editable,
			},
		)
	}
	return out
}
