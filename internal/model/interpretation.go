package model

import (
	"fmt"
	"strings"
)

// InterpretationContext is what the interpretation service sees besides the turn text.
type InterpretationContext struct {
	ExtractParams      bool
	History            []Message
	Goal               string
	CurrentProperty    string
	AvailableMaterials []string
}

// InterpretationResult is the outcome of one interpretation request.
// Interpretations and GeneratorParameters are nil when the service did not send them.
type InterpretationResult struct {
	ResponseText        string
	Interpretations     []Interpretation
	GeneratorParameters map[string]any
}

// UserLevel selects how deep a property explanation goes.
type UserLevel string

const (
	UserLevelBeginner     UserLevel = "beginner"
	UserLevelIntermediate UserLevel = "intermediate"
	UserLevelAdvanced     UserLevel = "advanced"
)

// ParseUserLevel accepts the three levels case-insensitively. Blank means beginner.
func ParseUserLevel(raw string) (UserLevel, error) {
	switch level := UserLevel(strings.ToLower(strings.TrimSpace(raw))); level {
	case "":
		return UserLevelBeginner, nil
	case UserLevelBeginner, UserLevelIntermediate, UserLevelAdvanced:
		return level, nil
	default:
		return "", fmt.Errorf("unknown user level %q: %w", raw, ErrValidation)
	}
}
