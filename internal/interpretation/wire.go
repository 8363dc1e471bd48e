package interpretation

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/iamvkosarev/easymatter-bot/internal/model"
)

const (
	wireRoleUser      = "user"
	wireRoleAssistant = "assistant"
)

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type QueryContext struct {
	ExtractParams      bool          `json:"extract_params"`
	ChatHistory        []ChatMessage `json:"chat_history"`
	Goal               string        `json:"goal,omitempty"`
	CurrentProperty    string        `json:"current_property,omitempty"`
	AvailableMaterials []string      `json:"available_materials,omitempty"`
}

// QueryRequest is the body of POST /api/chat/query.
type QueryRequest struct {
	Text    string       `json:"text"`
	Context QueryContext `json:"context"`
}

// QueryResponse is the answer of POST /api/chat/query.
// Text is a pointer so a body without it can be told apart from an empty reply.
type QueryResponse struct {
	Text            *string        `json:"text"`
	Interpretations []PropertyWire `json:"interpretations,omitempty"`
	MatterGenParams map[string]any `json:"mattergen_params,omitempty"`
}

// GuidanceRequest is the body of POST /api/chat/property-guidance.
// The same fields are accepted as query parameters.
type GuidanceRequest struct {
	PropertyName string `json:"property_name"`
	UserLevel    string `json:"user_level,omitempty"`
}

type GuidanceResponse struct {
	Text string `json:"text"`
}

// PropertyWire accepts both interpretation shapes seen on the wire: the board shape
// {key, displayName, value, unit} and the extraction shape
// {property_name, technical_value, unit, confidence, source_text, explanation}.
type PropertyWire struct {
	Key              string          `json:"key,omitempty"`
	DisplayName      string          `json:"displayName,omitempty"`
	DisplayNameSnake string          `json:"display_name,omitempty"`
	Value            json.RawMessage `json:"value,omitempty"`
	Unit             string          `json:"unit,omitempty"`

	PropertyName   string          `json:"property_name,omitempty"`
	TechnicalValue json.RawMessage `json:"technical_value,omitempty"`
	Confidence     *float64        `json:"confidence,omitempty"`
	SourceText     string          `json:"source_text,omitempty"`
	Explanation    string          `json:"explanation,omitempty"`
}

func NewQueryRequest(turnText string, ictx model.InterpretationContext) QueryRequest {
	history := make([]ChatMessage, 0, len(ictx.History))
	for _, message := range ictx.History {
		history = append(
			history, ChatMessage{
				Role:    wireRole(message.Source),
				Content: message.Body,
			},
		)
	}
	return QueryRequest{
		Text: turnText,
		Context: QueryContext{
			ExtractParams:      ictx.ExtractParams,
			ChatHistory:        history,
			Goal:               ictx.Goal,
			CurrentProperty:    ictx.CurrentProperty,
			AvailableMaterials: ictx.AvailableMaterials,
		},
	}
}

// InterpretationContext converts a decoded request back into the domain context.
func (r QueryRequest) InterpretationContext() model.InterpretationContext {
	history := make([]model.Message, 0, len(r.Context.ChatHistory))
	for _, message := range r.Context.ChatHistory {
		source := model.MessageSourceUser
		if message.Role == wireRoleAssistant {
			source = model.MessageSourceAssistant
		}
		history = append(history, model.Message{Source: source, Body: message.Content})
	}
	return model.InterpretationContext{
		ExtractParams:      r.Context.ExtractParams,
		History:            history,
		Goal:               r.Context.Goal,
		CurrentProperty:    r.Context.CurrentProperty,
		AvailableMaterials: r.Context.AvailableMaterials,
	}
}

func NewQueryResponse(result model.InterpretationResult) QueryResponse {
	text := result.ResponseText
	response := QueryResponse{
		Text:            &text,
		MatterGenParams: result.GeneratorParameters,
	}
	if result.Interpretations != nil {
		response.Interpretations = make([]PropertyWire, 0, len(result.Interpretations))
		for _, interpretation := range result.Interpretations {
			value, _ := json.Marshal(interpretation.Value)
			response.Interpretations = append(
				response.Interpretations, PropertyWire{
					Key:         interpretation.Key,
					DisplayName: interpretation.DisplayName,
					Value:       value,
					Unit:        interpretation.Unit,
				},
			)
		}
	}
	return response
}

// Result converts the response into the domain result. ok is false when the text field is absent.
func (r QueryResponse) Result() (model.InterpretationResult, bool) {
	if r.Text == nil {
		return model.InterpretationResult{}, false
	}
	return model.InterpretationResult{
		ResponseText:        *r.Text,
		Interpretations:     toInterpretations(r.Interpretations),
		GeneratorParameters: r.MatterGenParams,
	}, true
}

func (p PropertyWire) toModel() model.Interpretation {
	displayName := firstNonEmpty(p.DisplayName, p.DisplayNameSnake, p.PropertyName)
	key := strings.TrimSpace(p.Key)
	if key == "" && p.PropertyName != "" {
		key = model.PropertyKey(p.PropertyName)
	}
	value := p.Value
	if len(value) == 0 {
		value = p.TechnicalValue
	}
	return model.Interpretation{
		Key:         key,
		DisplayName: displayName,
		Value:       scalarText(value),
		Unit:        p.Unit,
	}
}

func toInterpretations(wire []PropertyWire) []model.Interpretation {
	if wire == nil {
		return nil
	}
	interpretations := make([]model.Interpretation, 0, len(wire))
	for _, entry := range wire {
		interpretations = append(interpretations, entry.toModel())
	}
	return interpretations
}

// scalarText renders a JSON value as board text: strings unquoted, numbers as sent,
// null as empty, objects and arrays compacted.
func scalarText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		var text string
		if err := json.Unmarshal(raw, &text); err == nil {
			return text
		}
	}
	if raw[0] == '{' || raw[0] == '[' {
		var compact bytes.Buffer
		if err := json.Compact(&compact, raw); err == nil {
			return compact.String()
		}
	}
	return string(raw)
}

func wireRole(source model.MessageSource) string {
	if source == model.MessageSourceAssistant {
		return wireRoleAssistant
	}
	return wireRoleUser
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
