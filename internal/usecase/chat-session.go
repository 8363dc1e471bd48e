package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/iamvkosarev/easymatter-bot/internal/catalog"
	"github.com/iamvkosarev/easymatter-bot/internal/model"
	"go.uber.org/zap"
)

const DefaultSeed = "Hi! I'm EasyMatter. Describe the material you want to design and I'll help turn it into MatterGen parameters."

type Interpreter interface {
	Interpret(ctx context.Context, turnText string, ictx model.InterpretationContext) (
		model.InterpretationResult,
		error,
	)
}

type CodeGenerator interface {
	Artifact(snapshot []model.PropertyEntry, params map[string]any) (model.Artifact, error)
}

type ChatSessionDeps struct {
	Interpreter Interpreter
	Generator   CodeGenerator
	Logger      *zap.Logger
}

// Turn is the outcome of one Submit. Err and GenerateErr are for the caller only
// and never reach the transcript.
type Turn struct {
	UserMessage       model.Message
	AssistantMessage  model.Message
	PropertiesChanged bool
	Artifact          *model.Artifact
	// ArtifactURL is filled by DesignUsecase when the artifact was uploaded.
	ArtifactURL string
	Err         error
	GenerateErr error
}

// ChatSession drives one design conversation: idle, awaitingResponse, idle again.
// All mutations are serialized; the interpreter call runs without the lock held.
type ChatSession struct {
	ChatSessionDeps

	mu    sync.Mutex
	state model.SessionState
	// saveMu orders persistence so snapshots reach storage in the order they were taken.
	saveMu sync.Mutex

	id         uuid.UUID
	userID     uuid.UUID
	templateID string
	seed       string

	log            *model.MessageLog
	board          *model.PropertyBoard
	baseProperties []model.PropertyEntry
	artifact       *model.Artifact
	params         map[string]any
	showProperties bool

	goal               string
	availableMaterials []string
	currentProperty    string
	failureText        string

	createdAt time.Time
	updatedAt time.Time
	now       func() time.Time
}

// NewChatSession starts a session whose log holds only the seed message and
// whose board holds the base properties.
func NewChatSession(deps ChatSessionDeps, userID uuid.UUID, seed string, base ...model.PropertyEntry) *ChatSession {
	if strings.TrimSpace(seed) == "" {
		seed = DefaultSeed
	}
	now := time.Now()
	return &ChatSession{
		ChatSessionDeps: deps,
		state:           model.SessionStateIdle,
		id:              uuid.New(),
		userID:          userID,
		seed:            seed,
		log:             model.NewMessageLog(seed),
		board:           model.NewPropertyBoard(base...),
		baseProperties:  copyEntries(base),
		failureText:     TextInterpretationFailed.Default,
		createdAt:       now,
		updatedAt:       now,
		now:             time.Now,
	}
}

// RestoreChatSession rebuilds a session from its persisted snapshot in the idle state.
func RestoreChatSession(deps ChatSessionDeps, snapshot model.SessionSnapshot) *ChatSession {
	seed := snapshot.Seed
	if strings.TrimSpace(seed) == "" {
		seed = DefaultSeed
	}
	messages := model.RestoreMessageLog(snapshot.Messages)
	if messages.Len() == 0 {
		messages = model.NewMessageLog(seed)
	}
	var artifact *model.Artifact
	if snapshot.Artifact != nil {
		stored := *snapshot.Artifact
		artifact = &stored
	}
	return &ChatSession{
		ChatSessionDeps:    deps,
		state:              model.SessionStateIdle,
		id:                 snapshot.ID,
		userID:             snapshot.UserID,
		templateID:         snapshot.TemplateID,
		seed:               seed,
		log:                messages,
		board:              model.NewPropertyBoard(snapshot.Properties...),
		baseProperties:     copyEntries(snapshot.BaseProperties),
		artifact:           artifact,
		params:             snapshot.GeneratorParameters,
		showProperties:     snapshot.ShowProperties,
		goal:               snapshot.Goal,
		availableMaterials: append([]string(nil), snapshot.AvailableMaterials...),
		currentProperty:    snapshot.CurrentProperty,
		failureText:        TextInterpretationFailed.Default,
		createdAt:          snapshot.CreatedAt,
		updatedAt:          snapshot.UpdatedAt,
		now:                time.Now,
	}
}

// SetFailureText replaces the assistant message appended when interpretation fails.
func (s *ChatSession) SetFailureText(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if strings.TrimSpace(text) != "" {
		s.failureText = text
	}
}

func (s *ChatSession) ID() uuid.UUID {
	return s.id
}

func (s *ChatSession) UserID() uuid.UUID {
	return s.userID
}

func (s *ChatSession) Submit(ctx context.Context, text string) (Turn, error) {
	if strings.TrimSpace(text) == "" {
		return Turn{}, fmt.Errorf("empty message: %w", model.ErrValidation)
	}

	s.mu.Lock()
	if s.state != model.SessionStateIdle {
		s.mu.Unlock()
		return Turn{}, model.ErrSessionBusy
	}
	history := s.log.All()
	userMessage, err := s.log.Append(model.MessageSourceUser, text)
	if err != nil {
		s.mu.Unlock()
		return Turn{}, err
	}
	s.state = model.SessionStateAwaitingResponse
	s.touch()
	ictx := model.InterpretationContext{
		ExtractParams:      true,
		History:            history,
		Goal:               s.goal,
		CurrentProperty:    s.currentProperty,
		AvailableMaterials: append([]string(nil), s.availableMaterials...),
	}
	s.mu.Unlock()

	result, interpretErr := s.Interpreter.Interpret(ctx, text, ictx)

	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.touch()

	turn := Turn{UserMessage: userMessage}
	if interpretErr != nil {
		s.state = model.SessionStateError
		s.Logger.Warn(
			"interpretation failed",
			zap.String("session_id", s.id.String()),
			zap.Error(interpretErr),
		)
		turn.AssistantMessage, _ = s.log.Append(model.MessageSourceAssistant, s.failureText)
		turn.Err = interpretErr
		s.state = model.SessionStateIdle
		return turn, nil
	}

	turn.AssistantMessage, _ = s.log.Append(model.MessageSourceAssistant, result.ResponseText)
	if result.Interpretations != nil {
		s.board.ApplyInterpretation(result.Interpretations)
		s.showProperties = true
		turn.PropertiesChanged = true
	}
	if result.GeneratorParameters != nil {
		s.params = result.GeneratorParameters
		artifact, err := s.Generator.Artifact(s.board.Snapshot(), s.params)
		if err != nil {
			s.Logger.Info(
				"artifact not generated",
				zap.String("session_id", s.id.String()),
				zap.Error(err),
			)
			turn.GenerateErr = err
		} else {
			s.artifact = &artifact
			stored := artifact
			turn.Artifact = &stored
		}
	}
	s.state = model.SessionStateIdle
	return turn, nil
}

// SetValue edits one board entry. It is accepted in any state.
func (s *ChatSession) SetValue(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.board.SetValue(key, value); err != nil {
		return err
	}
	s.currentProperty = key
	s.touch()
	return nil
}

// Reset returns the session to its seed message. The board goes back to the base
// properties of the session's template, which is empty for a session started
// without one.
func (s *ChatSession) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != model.SessionStateIdle {
		return model.ErrSessionBusy
	}
	s.resetLocked()
	return nil
}

// ApplyTemplate swaps the session goal and base properties for the template's and resets.
func (s *ChatSession) ApplyTemplate(template catalog.DesignTemplate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != model.SessionStateIdle {
		return model.ErrSessionBusy
	}
	s.templateID = template.ID
	if strings.TrimSpace(template.Seed) != "" {
		s.seed = template.Seed
	}
	s.baseProperties = copyEntries(template.Properties)
	s.goal = template.DisplayName
	s.availableMaterials = append([]string(nil), template.SuggestedElements...)
	s.resetLocked()
	return nil
}

// Generate builds the artifact from the current board and the last generator parameters.
func (s *ChatSession) Generate() (model.Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	artifact, err := s.Generator.Artifact(s.board.Snapshot(), s.params)
	if err != nil {
		if errors.Is(err, model.ErrTemplate) {
			return model.Artifact{}, err
		}
		return model.Artifact{}, fmt.Errorf("failed to generate artifact: %w", err)
	}
	s.artifact = &artifact
	s.touch()
	return artifact, nil
}

// Persist takes a snapshot and hands it to save. Concurrent calls are serialized,
// so a later snapshot is never overwritten by an earlier one.
func (s *ChatSession) Persist(ctx context.Context, save func(context.Context, model.SessionSnapshot) error) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	return save(ctx, s.Snapshot())
}

func (s *ChatSession) TemplateID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.templateID
}

func (s *ChatSession) Property(key string) (model.PropertyEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.board.Get(key)
}

func (s *ChatSession) AvailableMaterials() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.availableMaterials...)
}

func (s *ChatSession) State() model.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *ChatSession) Messages() []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.log.All()
}

func (s *ChatSession) Properties() []model.PropertyEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.board.Snapshot()
}

// Artifact returns the stored artifact, if any.
func (s *ChatSession) Artifact() (model.Artifact, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.artifact == nil {
		return model.Artifact{}, false
	}
	return *s.artifact, true
}

func (s *ChatSession) ShowProperties() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.showProperties
}

func (s *ChatSession) Snapshot() model.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	var artifact *model.Artifact
	if s.artifact != nil {
		stored := *s.artifact
		artifact = &stored
	}
	return model.SessionSnapshot{
		ID:                  s.id,
		UserID:              s.userID,
		TemplateID:          s.templateID,
		Seed:                s.seed,
		Messages:            s.log.All(),
		Properties:          s.board.Snapshot(),
		BaseProperties:      copyEntries(s.baseProperties),
		Artifact:            artifact,
		ShowProperties:      s.showProperties,
		Goal:                s.goal,
		AvailableMaterials:  append([]string(nil), s.availableMaterials...),
		CurrentProperty:     s.currentProperty,
		GeneratorParameters: s.params,
		CreatedAt:           s.createdAt,
		UpdatedAt:           s.updatedAt,
	}
}

func (s *ChatSession) resetLocked() {
	s.log.Reset(s.seed)
	s.board = model.NewPropertyBoard(s.baseProperties...)
	s.artifact = nil
	s.params = nil
	s.showProperties = false
	s.currentProperty = ""
	s.touch()
}

func (s *ChatSession) touch() {
	s.updatedAt = s.now()
}

func copyEntries(entries []model.PropertyEntry) []model.PropertyEntry {
	if entries == nil {
		return nil
	}
	out := make([]model.PropertyEntry, len(entries))
	copy(out, entries)
	return out
}
