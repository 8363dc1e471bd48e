// Package codegen renders MatterGen generator scripts from a property board snapshot.
package codegen

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"text/template"

	"github.com/iamvkosarev/easymatter-bot/internal/model"
)

const (
	Filename         = "mattergen_design.py"
	NotebookFilename = "mattergen_design.ipynb"

	SlotComposition   = "composition"
	SlotCrystalSystem = "crystal_system"
	SlotBandgap       = "bandgap"
	SlotStability     = "stability"
)

var requiredSlots = []string{SlotComposition, SlotCrystalSystem, SlotBandgap, SlotStability}

const scriptTemplate = `# MatterGen code for material design
import json

from mattergen import Dataset, MatSciGen
from mattergen.examples import get_all_docs

# Define your material requirements
requirements = {
    "composition": {{ py .Composition }},
    "crystal_system": {{ py .CrystalSystem }},
    "target_properties": {
        "bandgap": {{ .Bandgap }},
        "stability": {{ py .Stability }}
    }
}
{{- if .Other }}

# Other properties from the design board
other_properties = {
{{- range $i, $p := .Other }}
    {{ py $p.Key }}: {{ py $p.Value }},
{{- end }}
}
{{- end }}
{{- if .Parameters }}

# Parameters suggested by the interpretation service
generator_parameters = json.loads(r"""{{ .Parameters }}""")
requirements.update(generator_parameters)
{{- end }}

# Initialize the MatSciGen model
model = MatSciGen()

# Generate material candidates
candidates = model.generate_materials(**requirements)

# Print the top candidate
print("Top material candidate:")
print(candidates[0])

# Simulate properties
properties = model.simulate_properties(candidates[0])
print("\nPredicted properties:")
for prop, value in properties.items():
    print(f"{prop}: {value}")
`

type scriptData struct {
	Composition   string
	CrystalSystem string
	Bandgap       string
	Stability     string
	Other         []model.PropertyEntry
	Parameters    string
}

// Generator is safe for concurrent use.
type Generator struct {
	tmpl *template.Template
}

func NewGenerator() *Generator {
	return &Generator{
		tmpl: template.Must(
			template.New("mattergen").
				Funcs(template.FuncMap{"py": strconv.Quote}).
				Parse(scriptTemplate),
		),
	}
}

func (g *Generator) Generate(snapshot []model.PropertyEntry) (string, error) {
	return g.GenerateWithParameters(snapshot, nil)
}

// GenerateWithParameters renders the script and embeds params as sorted JSON.
// It returns a *model.TemplateError when a required slot is missing or blank.
func (g *Generator) GenerateWithParameters(snapshot []model.PropertyEntry, params map[string]any) (string, error) {
	slots := make(map[string]string, len(requiredSlots))
	other := make([]model.PropertyEntry, 0, len(snapshot))
	for _, entry := range snapshot {
		if isRequiredSlot(entry.Key) {
			slots[entry.Key] = strings.TrimSpace(entry.Value)
			continue
		}
		other = append(other, entry)
	}

	var missing []string
	for _, slot := range requiredSlots {
		if slots[slot] == "" {
			missing = append(missing, slot)
		}
	}
	if len(missing) > 0 {
		return "", &model.TemplateError{Missing: missing}
	}
	data := scriptData{
		Composition:   slots[SlotComposition],
		CrystalSystem: slots[SlotCrystalSystem],
		Bandgap:       bandgapLiteral(slots[SlotBandgap]),
		Stability:     slots[SlotStability],
		Other:         other,
	}
	if len(params) > 0 {
		raw, err := json.MarshalIndent(params, "", "    ")
		if err != nil {
			return "", fmt.Errorf("failed to marshal generator parameters: %w", err)
		}
		data.Parameters = string(raw)
	}

	var buf bytes.Buffer
	if err := g.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render script: %w", err)
	}
	return buf.String(), nil
}

// Artifact wraps Generate into a downloadable artifact.
func (g *Generator) Artifact(snapshot []model.PropertyEntry, params map[string]any) (model.Artifact, error) {
	code, err := g.GenerateWithParameters(snapshot, params)
	if err != nil {
		return model.Artifact{}, err
	}
	return model.Artifact{
		Filename: Filename,
		Code:     code,
	}, nil
}

func isRequiredSlot(key string) bool {
	for _, slot := range requiredSlots {
		if slot == key {
			return true
		}
	}
	return false
}

// bandgapLiteral renders a number, optionally suffixed with "eV", as a Python
// float. Anything else becomes a quoted string so board text never runs as code.
func bandgapLiteral(raw string) string {
	value := strings.TrimSpace(raw)
	if len(value) > 2 && strings.EqualFold(value[len(value)-2:], "ev") {
		value = strings.TrimSpace(value[:len(value)-2])
	}
	number, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(number) || math.IsInf(number, 0) {
		return strconv.Quote(strings.TrimSpace(raw))
	}
	return strconv.FormatFloat(number, 'g', -1, 64)
}
