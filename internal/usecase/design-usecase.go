package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/iamvkosarev/easymatter-bot/config"
	"github.com/iamvkosarev/easymatter-bot/internal/catalog"
	"github.com/iamvkosarev/easymatter-bot/internal/codegen"
	"github.com/iamvkosarev/easymatter-bot/internal/model"
	"github.com/iamvkosarev/easymatter-bot/pkg/local"
	"go.uber.org/zap"
)

type SessionStorage interface {
	GetSession(ctx context.Context, sessionID uuid.UUID) (model.SessionSnapshot, error)
	SaveSession(ctx context.Context, snapshot model.SessionSnapshot) error
	ListUserSessions(ctx context.Context, userID uuid.UUID) ([]model.SessionSnapshot, error)
}

type PropertyExplainer interface {
	ExplainProperty(ctx context.Context, property string, level model.UserLevel) (string, error)
}

type ArtifactStorage interface {
	PutArtifact(ctx context.Context, sessionID uuid.UUID, artifact model.Artifact) (string, error)
}

type DesignUsecaseDeps struct {
	SessionStorage SessionStorage
	// ArtifactStorage is optional. Without it artifacts are only kept in the session.
	ArtifactStorage ArtifactStorage
	User            *UserUsecase
	Catalog         *catalog.Catalog
	Interpreter     Interpreter
	// Explainer is optional. Without it only template explanations are available.
	Explainer PropertyExplainer
	Generator CodeGenerator
	Logger    *zap.Logger
}

// DesignUsecase keeps the live session of every user, restores it from storage
// on demand and persists it after each mutation.
type DesignUsecase struct {
	DesignUsecaseDeps
	cfg      config.Session
	language local.Language

	mu       sync.Mutex
	sessions *lru.Cache[uuid.UUID, *ChatSession]
}

func NewDesignUsecase(deps DesignUsecaseDeps, cfg config.Session, language local.Language) (*DesignUsecase, error) {
	sessions, err := lru.New[uuid.UUID, *ChatSession](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create session cache: %w", err)
	}
	if _, err = deps.Catalog.Get(cfg.DefaultTemplate); err != nil {
		return nil, fmt.Errorf("default template %q: %w", cfg.DefaultTemplate, err)
	}
	return &DesignUsecase{
		DesignUsecaseDeps: deps,
		cfg:               cfg,
		language:          language,
		sessions:          sessions,
	}, nil
}

// Session returns the user's active session, restoring or creating it when needed.
// The active session is read from storage, so concurrent first messages of one user
// share a single session.
func (d *DesignUsecase) Session(ctx context.Context, user model.User) (*ChatSession, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	current, err := d.User.GetUserInfo(ctx, user.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user info: %w", err)
	}
	user.ActiveSession = current.ActiveSession

	if user.ActiveSession != uuid.Nil {
		if session, ok := d.sessions.Get(user.ActiveSession); ok {
			return session, nil
		}
		snapshot, err := d.SessionStorage.GetSession(ctx, user.ActiveSession)
		switch {
		case err == nil:
			session := RestoreChatSession(d.sessionDeps(), snapshot)
			session.SetFailureText(TextInterpretationFailed.Text(d.language))
			d.sessions.Add(session.ID(), session)
			return session, nil
		case errors.Is(err, model.ErrSessionDoesNotExist):
			d.Logger.Warn(
				"active session is missing, starting a new one",
				zap.String("user_id", user.UserID.String()),
				zap.String("session_id", user.ActiveSession.String()),
			)
		default:
			return nil, fmt.Errorf("failed to get session: %w", err)
		}
	}
	return d.newSessionLocked(ctx, user, d.cfg.DefaultTemplate)
}

// NewSession starts a fresh session from the template and makes it the user's active one.
func (d *DesignUsecase) NewSession(ctx context.Context, user model.User, templateID string) (*ChatSession, error) {
	if templateID == "" {
		templateID = d.cfg.DefaultTemplate
	}
	if _, err := d.Catalog.Get(templateID); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.newSessionLocked(ctx, user, templateID)
}

func (d *DesignUsecase) Submit(ctx context.Context, user model.User, text string) (Turn, error) {
	session, err := d.Session(ctx, user)
	if err != nil {
		return Turn{}, err
	}
	turn, err := session.Submit(ctx, text)
	if err != nil {
		return Turn{}, err
	}
	if turn.Artifact != nil {
		turn.ArtifactURL = d.uploadArtifact(ctx, session.ID(), *turn.Artifact)
	}
	if err = d.save(ctx, session); err != nil {
		d.Logger.Error("failed to persist session", zap.String("session_id", session.ID().String()), zap.Error(err))
	}
	return turn, nil
}

func (d *DesignUsecase) SetValue(ctx context.Context, user model.User, key, value string) error {
	session, err := d.Session(ctx, user)
	if err != nil {
		return err
	}
	if err = session.SetValue(key, value); err != nil {
		return err
	}
	return d.save(ctx, session)
}

func (d *DesignUsecase) Reset(ctx context.Context, user model.User) (*ChatSession, error) {
	session, err := d.Session(ctx, user)
	if err != nil {
		return nil, err
	}
	if err = session.Reset(); err != nil {
		return nil, err
	}
	return session, d.save(ctx, session)
}

// Generate builds the artifact from the active session. The URL is empty unless
// object storage is configured and the upload succeeded.
func (d *DesignUsecase) Generate(ctx context.Context, user model.User) (model.Artifact, string, error) {
	session, err := d.Session(ctx, user)
	if err != nil {
		return model.Artifact{}, "", err
	}
	artifact, err := session.Generate()
	if err != nil {
		return model.Artifact{}, "", err
	}
	url := d.uploadArtifact(ctx, session.ID(), artifact)
	if err = d.save(ctx, session); err != nil {
		return model.Artifact{}, "", err
	}
	return artifact, url, nil
}

// Notebook generates the artifact and renders it as a Colab notebook tuned to the
// session's template.
func (d *DesignUsecase) Notebook(ctx context.Context, user model.User) ([]byte, error) {
	session, err := d.Session(ctx, user)
	if err != nil {
		return nil, err
	}
	artifact, err := session.Generate()
	if err != nil {
		return nil, err
	}
	if err = d.save(ctx, session); err != nil {
		return nil, err
	}

	properties := session.Properties()
	keys := make([]string, 0, len(properties))
	for _, entry := range properties {
		keys = append(keys, entry.Key)
	}
	notebook, err := codegen.Notebook(
		artifact.Code, codegen.NotebookOptions{
			CodeType:   codegen.CodeTypeForTemplate(session.TemplateID()),
			Materials:  session.AvailableMaterials(),
			Properties: keys,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build notebook: %w", err)
	}
	return notebook, nil
}

// ExplainProperty explains a board property, or any named property, at the given level.
// When the explainer fails the template's own explanation is used if it has one.
func (d *DesignUsecase) ExplainProperty(
	ctx context.Context,
	user model.User,
	property string,
	level model.UserLevel,
) (string, error) {
	if strings.TrimSpace(property) == "" {
		return "", fmt.Errorf("empty property: %w", model.ErrValidation)
	}
	session, err := d.Session(ctx, user)
	if err != nil {
		return "", err
	}
	key := model.CanonicalKey(model.PropertyKey(property))
	name := property
	if entry, ok := session.Property(key); ok && entry.DisplayName != "" {
		name = entry.DisplayName
	}

	explainErr := fmt.Errorf("no explanation for %q: %w", name, model.ErrServiceUnavailable)
	if d.Explainer != nil {
		text, err := d.Explainer.ExplainProperty(ctx, name, level)
		if err == nil {
			return text, nil
		}
		d.Logger.Warn("property explanation failed", zap.String("property", name), zap.Error(err))
		explainErr = err
	}
	if template, err := d.Catalog.Get(session.TemplateID()); err == nil {
		if text, ok := template.Explanations[key]; ok {
			return text, nil
		}
	}
	return "", explainErr
}

func (d *DesignUsecase) ListUserSessions(ctx context.Context, user model.User) ([]model.SessionSnapshot, error) {
	sessions, err := d.SessionStorage.ListUserSessions(ctx, user.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user sessions: %w", err)
	}
	return sessions, nil
}

func (d *DesignUsecase) newSessionLocked(ctx context.Context, user model.User, templateID string) (*ChatSession, error) {
	template, err := d.Catalog.Get(templateID)
	if err != nil {
		return nil, err
	}
	session := NewChatSession(d.sessionDeps(), user.UserID, template.Seed)
	if err = session.ApplyTemplate(template); err != nil {
		return nil, err
	}
	session.SetFailureText(TextInterpretationFailed.Text(d.language))

	if err = d.save(ctx, session); err != nil {
		return nil, err
	}
	if err = d.User.UpdateUserActiveSession(ctx, user.UserID, session.ID()); err != nil {
		return nil, fmt.Errorf("failed to update user active session: %w", err)
	}
	d.sessions.Add(session.ID(), session)
	d.Logger.Info(
		"session started",
		zap.String("user_id", user.UserID.String()),
		zap.String("session_id", session.ID().String()),
		zap.String("template_id", templateID),
	)
	return session, nil
}

func (d *DesignUsecase) save(ctx context.Context, session *ChatSession) error {
	if err := session.Persist(ctx, d.SessionStorage.SaveSession); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (d *DesignUsecase) uploadArtifact(ctx context.Context, sessionID uuid.UUID, artifact model.Artifact) string {
	if d.ArtifactStorage == nil {
		return ""
	}
	url, err := d.ArtifactStorage.PutArtifact(ctx, sessionID, artifact)
	if err != nil {
		d.Logger.Error("failed to upload artifact", zap.String("session_id", sessionID.String()), zap.Error(err))
		return ""
	}
	return url
}

func (d *DesignUsecase) sessionDeps() ChatSessionDeps {
	return ChatSessionDeps{
		Interpreter: d.Interpreter,
		Generator:   d.Generator,
		Logger:      d.Logger,
	}
}
