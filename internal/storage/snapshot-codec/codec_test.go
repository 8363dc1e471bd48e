package snapshot_codec_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/iamvkosarev/easymatter-bot/internal/model"
	snapshot_codec "github.com/iamvkosarev/easymatter-bot/internal/storage/snapshot-codec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	created := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	snapshot := model.SessionSnapshot{
		ID:         uuid.New(),
		UserID:     uuid.New(),
		TemplateID: "solar_material",
		Seed:       "Let's design a solar absorber.",
		Messages: []model.Message{
			{ID: uuid.New(), Source: model.MessageSourceAssistant, Body: "Let's design a solar absorber.", Timestamp: created},
			{ID: uuid.New(), Source: model.MessageSourceUser, Body: "cheap and stable", Timestamp: created.Add(time.Minute)},
		},
		Properties: []model.PropertyEntry{
			{Key: "application", DisplayName: "Application", Value: "solar cell"},
			{Key: "bandgap", DisplayName: "Bandgap", Value: "1.4", Unit: "eV", Editable: true},
		},
		BaseProperties:      []model.PropertyEntry{{Key: "application", DisplayName: "Application", Value: "solar cell"}},
		Artifact:            &model.Artifact{Filename: "mattergen_design.py", Code: "print('hi')\n"},
		ShowProperties:      true,
		Goal:                "Solar cell material",
		AvailableMaterials:  []string{"Si", "Ga"},
		CurrentProperty:     "bandgap",
		GeneratorParameters: map[string]any{"chemical_system": "Cs-Pb-Br", "num_samples": float64(16)},
		CreatedAt:           created,
		UpdatedAt:           created.Add(time.Minute),
	}

	raw, err := snapshot_codec.Marshal(snapshot)
	require.NoError(t, err)
	decoded, err := snapshot_codec.Unmarshal(raw)
	require.NoError(t, err)
	assert.Equal(t, snapshot, decoded)
}

func TestUnmarshalRejectsBrokenIDs(t *testing.T) {
	_, err := snapshot_codec.Unmarshal([]byte(`{"session_id":"nope","user_id":"nope"}`))
	assert.Error(t, err)

	_, err = snapshot_codec.Unmarshal([]byte(`not json`))
	assert.Error(t, err)
}
