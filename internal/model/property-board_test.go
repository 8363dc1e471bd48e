package model_test

import (
	"testing"

	"github.com/iamvkosarev/easymatter-bot/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyInterpretationReplacesAndInserts(t *testing.T) {
	b := model.NewPropertyBoard(
		model.PropertyEntry{Key: "bandgap", DisplayName: "Bandgap (eV)", Value: "2.1", Editable: true},
	)

	b.ApplyInterpretation(
		[]model.Interpretation{
			{Key: "bandgap", DisplayName: "Band gap", Value: "1.55"},
			{Key: "composition", DisplayName: "Composition", Value: "CH3NH3PbI3"},
		},
	)

	snapshot := b.Snapshot()
	require.Len(t, snapshot, 2)
	assert.Equal(t, "bandgap", snapshot[0].Key)
	assert.Equal(t, "1.55", snapshot[0].Value)
	assert.Equal(t, "Bandgap (eV)", snapshot[0].DisplayName)
	assert.Equal(t, "composition", snapshot[1].Key)
	assert.True(t, snapshot[1].Editable)
}

func TestApplyInterpretationDerivesKeyFromDisplayName(t *testing.T) {
	b := model.NewPropertyBoard()

	b.ApplyInterpretation([]model.Interpretation{{DisplayName: "Crystal System", Value: "Cubic"}})
	b.ApplyInterpretation([]model.Interpretation{{DisplayName: "crystal system", Value: "Tetragonal"}})

	entry, ok := b.Get("crystal_system")
	require.True(t, ok)
	assert.Equal(t, "Tetragonal", entry.Value)
	assert.Equal(t, 1, b.Len())
}

func TestApplyInterpretationIsIdempotent(t *testing.T) {
	input := []model.Interpretation{
		{Key: "composition", DisplayName: "Composition", Value: "CH3NH3PbI3"},
		{DisplayName: "Bandgap (eV)", Value: "1.55", Unit: "eV"},
		{DisplayName: "Stability", Value: "Moderate"},
	}

	once := model.NewPropertyBoard()
	once.ApplyInterpretation(input)

	twice := model.NewPropertyBoard()
	twice.ApplyInterpretation(input)
	twice.ApplyInterpretation(input)

	assert.Equal(t, once.Snapshot(), twice.Snapshot())
}

func TestApplyInterpretationKeepsEditableFlag(t *testing.T) {
	b := model.NewPropertyBoard(
		model.PropertyEntry{Key: "application", DisplayName: "Application", Value: "Solar", Editable: false},
	)

	b.ApplyInterpretation([]model.Interpretation{{Key: "application", Value: "Battery"}})

	entry, ok := b.Get("application")
	require.True(t, ok)
	assert.Equal(t, "Battery", entry.Value)
	assert.False(t, entry.Editable)
}

func TestApplyInterpretationSkipsEmptyEntries(t *testing.T) {
	b := model.NewPropertyBoard()

	b.ApplyInterpretation([]model.Interpretation{{}, {DisplayName: "  "}})

	assert.Equal(t, 0, b.Len())
}

func TestApplyInterpretationAssignsGeneratedKey(t *testing.T) {
	b := model.NewPropertyBoard()

	b.ApplyInterpretation([]model.Interpretation{{DisplayName: "???", Value: "42"}, {Value: "Cubic"}})

	snapshot := b.Snapshot()
	require.Len(t, snapshot, 2)
	assert.Regexp(t, `^property_[0-9a-f]{12}$`, snapshot[0].Key)
	assert.Regexp(t, `^property_[0-9a-f]{12}$`, snapshot[1].Key)
	assert.NotEqual(t, snapshot[0].Key, snapshot[1].Key)
}

func TestApplyInterpretationKeylessIsIdempotent(t *testing.T) {
	input := []model.Interpretation{{DisplayName: "", Value: "Cubic"}}

	once := model.NewPropertyBoard()
	once.ApplyInterpretation(input)

	twice := model.NewPropertyBoard()
	twice.ApplyInterpretation(input)
	twice.ApplyInterpretation([]model.Interpretation{{Value: "  cubic "}})

	require.Equal(t, 1, once.Len())
	assert.Equal(t, 1, twice.Len())
	assert.Equal(t, once.Snapshot()[0].Key, twice.Snapshot()[0].Key)
}

func TestParseUserLevel(t *testing.T) {
	tests := []struct {
		raw     string
		want    model.UserLevel
		wantErr bool
	}{
		{raw: "", want: model.UserLevelBeginner},
		{raw: "Advanced", want: model.UserLevelAdvanced},
		{raw: " intermediate ", want: model.UserLevelIntermediate},
		{raw: "expert", wantErr: true},
	}
	for _, tt := range tests {
		level, err := model.ParseUserLevel(tt.raw)
		if tt.wantErr {
			assert.ErrorIs(t, err, model.ErrValidation)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, level)
	}
}

func TestSetValue(t *testing.T) {
	b := model.NewPropertyBoard(
		model.PropertyEntry{Key: "stability", DisplayName: "Stability", Value: "High", Editable: true},
		model.PropertyEntry{Key: "application", DisplayName: "Application", Value: "Solar", Editable: false},
	)

	require.NoError(t, b.SetValue("stability", "Low"))
	entry, _ := b.Get("stability")
	assert.Equal(t, "Low", entry.Value)

	err := b.SetValue("missing", "x")
	require.ErrorIs(t, err, model.ErrNotFound)

	for i := 0; i < 3; i++ {
		err = b.SetValue("application", "Battery")
		require.ErrorIs(t, err, model.ErrReadOnly)
	}
	entry, _ = b.Get("application")
	assert.Equal(t, "Solar", entry.Value)
}

func TestNewPropertyBoardDropsDuplicates(t *testing.T) {
	b := model.NewPropertyBoard(
		model.PropertyEntry{Key: "a", Value: "1"},
		model.PropertyEntry{Key: "a", Value: "2"},
		model.PropertyEntry{Key: "", Value: "3"},
	)

	snapshot := b.Snapshot()
	require.Len(t, snapshot, 1)
	assert.Equal(t, "1", snapshot[0].Value)
}

func TestPropertyKey(t *testing.T) {
	cases := map[string]string{
		"Bandgap (eV)":      "bandgap",
		"Crystal System":    "crystal_system",
		"Density (g/cm³)":   "density",
		"  cost   rating  ": "cost_rating",
		"carrier-lifetime":  "carrier_lifetime",
		"":                  "",
		"(eV)":              "",
	}
	for in, want := range cases {
		assert.Equal(t, want, model.PropertyKey(in), in)
	}
}

func TestTemplateErrorMatchesSentinel(t *testing.T) {
	var err error = &model.TemplateError{Missing: []string{"bandgap", "stability"}}

	assert.ErrorIs(t, err, model.ErrTemplate)
	assert.Equal(t, "missing template slots: bandgap, stability", err.Error())
}

func TestApplyInterpretationFoldsKeyAliases(t *testing.T) {
	b := model.NewPropertyBoard(
		model.PropertyEntry{Key: "bandgap", DisplayName: "Bandgap (eV)", Value: "2.1", Editable: true},
	)

	b.ApplyInterpretation(
		[]model.Interpretation{
			{Key: "band_gap", Value: "1.4"},
			{DisplayName: "Chemical formula", Value: "CsPbBr3"},
		},
	)

	entry, ok := b.Get("bandgap")
	require.True(t, ok)
	assert.Equal(t, "1.4", entry.Value)
	entry, ok = b.Get("composition")
	require.True(t, ok)
	assert.Equal(t, "CsPbBr3", entry.Value)
	assert.Equal(t, 2, b.Len())
}
