package interpretation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/iamvkosarev/easymatter-bot/internal/model"
)

const basePrompt = `You are an expert materials scientist and chemist specialized in using the MatterGen AI system to design new materials.
Your job is to help users with no scientific background to understand material properties and design goals in simple terms.
Use everyday analogies to explain complex properties, e.g., "hardness like diamond" instead of "high bulk modulus".`

const extractionPrompt = `Based on our conversation, extract the material properties and parameters that should be used for MatterGen.
Return a JSON object with two fields:
- "interpretations": an array of objects {"key", "displayName", "value", "unit"}. Use the keys "composition", "crystal_system", "bandgap" (eV) and "stability" for those properties and a snake_case key for anything else.
- "mattergen_params": an object with the generator parameters, or null when nothing can be derived yet.`

const guidancePrompt = `You are an expert materials scientist helping explain material properties to a %s-level user.
Provide clear, accurate information about the requested property with appropriate analogies.
For beginners: use everyday analogies and simple explanations.
For intermediate: include some technical details but keep explanations accessible.
For advanced: provide detailed technical information with relevant equations or units.`

const guidanceTemperature = 0.5

func guidanceSystemPrompt(level model.UserLevel) string {
	return fmt.Sprintf(guidancePrompt, level)
}

func guidanceUserPrompt(property string, level model.UserLevel) string {
	return fmt.Sprintf(
		"Explain the material property '%s' in a way that's appropriate for someone at a %s level.", property, level,
	)
}

func systemPrompt(ictx model.InterpretationContext) string {
	var b strings.Builder
	b.WriteString(basePrompt)
	if ictx.Goal != "" {
		fmt.Fprintf(&b, "\nThe user's current goal is to design a %s.", ictx.Goal)
	}
	if ictx.CurrentProperty != "" {
		fmt.Fprintf(&b, "\nYou are currently discussing the '%s' property.", ictx.CurrentProperty)
	}
	if len(ictx.AvailableMaterials) > 0 {
		fmt.Fprintf(
			&b, "\nThe user has the following materials available: %s.",
			strings.Join(ictx.AvailableMaterials, ", "),
		)
	}
	return b.String()
}

type extraction struct {
	Interpretations []PropertyWire `json:"interpretations"`
	MatterGenParams map[string]any `json:"mattergen_params"`
}

func parseExtraction(content string) ([]model.Interpretation, map[string]any, error) {
	var payload extraction
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return nil, nil, fmt.Errorf("failed to decode extraction: %w", err)
	}
	return toInterpretations(payload.Interpretations), payload.MatterGenParams, nil
}
