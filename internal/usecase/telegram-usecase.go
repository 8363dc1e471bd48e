package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/google/uuid"
	"github.com/iamvkosarev/easymatter-bot/config"
	"github.com/iamvkosarev/easymatter-bot/internal/catalog"
	"github.com/iamvkosarev/easymatter-bot/internal/codegen"
	"github.com/iamvkosarev/easymatter-bot/internal/model"
	"github.com/iamvkosarev/easymatter-bot/pkg/local"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

const (
	CommandStart      = "start"
	CommandHelp       = "help"
	CommandNew        = "new"
	CommandTemplates  = "templates"
	CommandTemplate   = "template"
	CommandProperties = "properties"
	CommandSet        = "set"
	CommandCode       = "code"
	CommandNotebook   = "notebook"
	CommandSessions   = "sessions"
	CommandExplain    = "explain"

	callbackTemplatePrefix = "template:"

	// https://core.telegram.org/bots/api#sendmessage
	maxMessageLength = 4096
)

// Bot is the part of the Telegram client the transport needs.
type Bot interface {
	Send(c api.Chattable) (api.Message, error)
	Request(c api.Chattable) (*api.APIResponse, error)
	GetUpdatesChan(config api.UpdateConfig) api.UpdatesChannel
	StopReceivingUpdates()
}

type TelegramUsecaseDeps struct {
	User   *UserUsecase
	Design *DesignUsecase
	Bot    Bot
	Logger *zap.Logger
}

type TelegramUsecase struct {
	TelegramUsecaseDeps
	cfg      config.Telegram
	language local.Language
}

// incoming is the slice of an update the handlers work with.
// Callback queries arrive with callbackID set.
type incoming struct {
	chatID     int64
	callbackID string
	text       string
	command    string
	arguments  string
	language   local.Language
}

func NewTelegramUsecase(cfg config.Telegram, deps TelegramUsecaseDeps) (*TelegramUsecase, error) {
	_, err := deps.Bot.Request(
		api.NewSetMyCommands(
			[]api.BotCommand{
				{Command: CommandHelp, Description: "Get help"},
				{Command: CommandNew, Description: "Start the conversation over"},
				{Command: CommandTemplates, Description: "List design templates"},
				{Command: CommandProperties, Description: "Show the property board"},
				{Command: CommandCode, Description: "Get the MatterGen script"},
				{Command: CommandNotebook, Description: "Get a Colab notebook"},
				{Command: CommandSessions, Description: "Show sessions"},
				{Command: CommandExplain, Description: "Explain a property"},
			}...,
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to set bot commands: %w", err)
	}

	return &TelegramUsecase{
		TelegramUsecaseDeps: deps,
		cfg:                 cfg,
		language:            local.ParseLanguage(cfg.Language),
	}, nil
}

// Run polls updates until ctx is done. Updates are handled by at most cfg.Workers goroutines.
func (t *TelegramUsecase) Run(ctx context.Context) error {
	u := api.NewUpdate(0)
	u.Timeout = t.cfg.UpdateTimeout

	updates := t.Bot.GetUpdatesChan(u)
	workers := pool.New().WithMaxGoroutines(t.cfg.Workers)
	defer workers.Wait()

	// In-flight turns are finished on shutdown.
	handleCtx := context.WithoutCancel(ctx)
	for {
		select {
		case <-ctx.Done():
			t.Bot.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			switch {
			case update.Message != nil:
				msg := t.newIncoming(update)
				workers.Go(
					func() {
						if err := t.handleMessage(handleCtx, msg); err != nil {
							t.Logger.Error("failed to handle message", zap.Int64("chat_id", msg.chatID), zap.Error(err))
						}
					},
				)
			case update.CallbackQuery != nil && update.CallbackQuery.Message != nil:
				query := t.newCallback(update)
				workers.Go(
					func() {
						if err := t.handleCallbackQuery(handleCtx, query); err != nil {
							t.Logger.Error(
								"failed to handle callback query", zap.Int64("chat_id", query.chatID), zap.Error(err),
							)
						}
					},
				)
			}
		}
	}
}

func (t *TelegramUsecase) newIncoming(update api.Update) incoming {
	msg := incoming{
		chatID:   update.Message.Chat.ID,
		text:     update.Message.Text,
		language: t.language,
	}
	if update.Message.From != nil && update.Message.From.LanguageCode != "" {
		msg.language = local.ParseLanguage(update.Message.From.LanguageCode)
	}
	if update.Message.IsCommand() {
		msg.command = update.Message.Command()
		msg.arguments = strings.TrimSpace(update.Message.CommandArguments())
	}
	return msg
}

func (t *TelegramUsecase) newCallback(update api.Update) incoming {
	query := update.CallbackQuery
	msg := incoming{
		chatID:     query.Message.Chat.ID,
		callbackID: query.ID,
		arguments:  query.Data,
		language:   t.language,
	}
	if query.From != nil && query.From.LanguageCode != "" {
		msg.language = local.ParseLanguage(query.From.LanguageCode)
	}
	return msg
}

// handleCallbackQuery answers a keyboard press. Template buttons start a session the same way /template does.
func (t *TelegramUsecase) handleCallbackQuery(ctx context.Context, msg incoming) error {
	if _, err := t.Bot.Request(api.NewCallback(msg.callbackID, "")); err != nil {
		return fmt.Errorf("failed to request callback: %w", err)
	}
	templateID, ok := strings.CutPrefix(msg.arguments, callbackTemplatePrefix)
	if !ok || templateID == "" {
		t.Logger.Warn("unknown callback data", zap.Int64("chat_id", msg.chatID), zap.String("data", msg.arguments))
		return nil
	}
	msg.command = CommandTemplate
	msg.arguments = templateID
	return t.handleMessage(ctx, msg)
}

func (t *TelegramUsecase) handleMessage(ctx context.Context, msg incoming) error {
	if !t.User.HasAccess(msg.chatID) {
		t.sendMessageAndHandleErr(msg.chatID, TextUserNoAccess.Text(msg.language))
		return nil
	}

	user, err := t.User.GetUserInfoForTelegramUser(ctx, msg.chatID)
	if err != nil {
		t.sendMessageAndHandleErr(msg.chatID, TextServerError.Text(msg.language))
		return fmt.Errorf("failed to get user info for telegram user: %w", err)
	}

	if msg.command == "" {
		return t.submit(ctx, user, msg)
	}

	switch msg.command {
	case CommandStart:
		t.sendMessageAndHandleErr(msg.chatID, TextCommandStart.Text(msg.language))
	case CommandHelp:
		t.sendMessageAndHandleErr(msg.chatID, TextCommandHelp.Text(msg.language))
	case CommandNew:
		return t.reset(ctx, user, msg)
	case CommandTemplates:
		return t.sendTemplatesKeyboard(msg)
	case CommandTemplate:
		return t.startTemplate(ctx, user, msg)
	case CommandProperties:
		return t.showProperties(ctx, user, msg)
	case CommandSet:
		return t.setValue(ctx, user, msg)
	case CommandCode, CommandNotebook:
		return t.generate(ctx, user, msg)
	case CommandSessions:
		return t.listSessions(ctx, user, msg)
	case CommandExplain:
		return t.explainProperty(ctx, user, msg)
	default:
		t.sendMessageAndHandleErr(msg.chatID, TextCommandUnknown.Text(msg.language))
	}
	return nil
}

func (t *TelegramUsecase) submit(ctx context.Context, user model.User, msg incoming) error {
	var (
		turn Turn
		err  error
	)
	wg := conc.NewWaitGroup()
	wg.Go(
		func() {
			turn, err = t.Design.Submit(ctx, user, msg.text)
		},
	)
	wg.Go(
		func() {
			if _, err := t.Bot.Request(api.NewChatAction(msg.chatID, api.ChatTyping)); err != nil {
				t.Logger.Warn("failed to send typing action", zap.Int64("chat_id", msg.chatID), zap.Error(err))
			}
		},
	)
	wg.Wait()

	switch {
	case errors.Is(err, model.ErrValidation):
		return nil
	case errors.Is(err, model.ErrSessionBusy):
		t.sendMessageAndHandleErr(msg.chatID, TextSessionBusy.Text(msg.language))
		return nil
	case err != nil:
		t.sendMessageAndHandleErr(msg.chatID, TextServerError.Text(msg.language))
		return fmt.Errorf("failed to submit message: %w", err)
	}

	if turn.Err != nil {
		t.Logger.Warn("turn answered with failure text", zap.Int64("chat_id", msg.chatID), zap.Error(turn.Err))
	}
	t.sendMessageAndHandleErr(msg.chatID, turn.AssistantMessage.Body)
	if turn.PropertiesChanged {
		t.sendMessageAndHandleErr(msg.chatID, TextPropertiesUpdated.Text(msg.language))
	}

	var templateErr *model.TemplateError
	switch {
	case turn.Artifact != nil:
		t.sendArtifact(msg, *turn.Artifact, turn.ArtifactURL)
	case errors.As(turn.GenerateErr, &templateErr):
		t.sendMessageAndHandleErr(
			msg.chatID, TextMissingSlots.Format(msg.language, strings.Join(templateErr.Missing, ", ")),
		)
	}
	return nil
}

func (t *TelegramUsecase) reset(ctx context.Context, user model.User, msg incoming) error {
	session, err := t.Design.Reset(ctx, user)
	if err != nil {
		if errors.Is(err, model.ErrSessionBusy) {
			t.sendMessageAndHandleErr(msg.chatID, TextSessionBusy.Text(msg.language))
			return nil
		}
		t.sendMessageAndHandleErr(msg.chatID, TextServerError.Text(msg.language))
		return fmt.Errorf("failed to reset session: %w", err)
	}
	t.sendMessageAndHandleErr(msg.chatID, TextSessionReset.Format(msg.language, seedText(session)))
	return nil
}

func (t *TelegramUsecase) startTemplate(ctx context.Context, user model.User, msg incoming) error {
	if msg.arguments == "" {
		t.sendMessageAndHandleErr(msg.chatID, TextTemplateUsage.Text(msg.language))
		return nil
	}
	templateID := strings.Fields(msg.arguments)[0]
	template, err := t.Design.Catalog.Get(templateID)
	if err != nil {
		t.sendMessageAndHandleErr(msg.chatID, TextTemplateNotFound.Format(msg.language, templateID))
		return nil
	}
	session, err := t.Design.NewSession(ctx, user, template.ID)
	if err != nil {
		t.sendMessageAndHandleErr(msg.chatID, TextServerError.Text(msg.language))
		return fmt.Errorf("failed to start session from template: %w", err)
	}
	t.sendMessageAndHandleErr(
		msg.chatID, TextTemplateStarted.Format(msg.language, template.DisplayName, seedText(session)),
	)
	return nil
}

func (t *TelegramUsecase) showProperties(ctx context.Context, user model.User, msg incoming) error {
	session, err := t.Design.Session(ctx, user)
	if err != nil {
		t.sendMessageAndHandleErr(msg.chatID, TextServerError.Text(msg.language))
		return fmt.Errorf("failed to get session: %w", err)
	}
	properties := session.Properties()
	if len(properties) == 0 {
		t.sendMessageAndHandleErr(msg.chatID, TextPropertiesEmpty.Text(msg.language))
		return nil
	}
	t.sendMessageAndHandleErr(msg.chatID, prepareProperties(properties))
	return nil
}

func (t *TelegramUsecase) setValue(ctx context.Context, user model.User, msg incoming) error {
	key, value, _ := strings.Cut(msg.arguments, " ")
	value = strings.TrimSpace(value)
	if key == "" || value == "" {
		t.sendMessageAndHandleErr(msg.chatID, TextSetUsage.Text(msg.language))
		return nil
	}
	key = model.CanonicalKey(key)

	err := t.Design.SetValue(ctx, user, key, value)
	switch {
	case errors.Is(err, model.ErrNotFound):
		t.sendMessageAndHandleErr(msg.chatID, TextPropertyNotFound.Format(msg.language, key))
		return nil
	case errors.Is(err, model.ErrReadOnly):
		t.sendMessageAndHandleErr(msg.chatID, TextPropertyReadOnly.Format(msg.language, key))
		return nil
	case err != nil:
		t.sendMessageAndHandleErr(msg.chatID, TextServerError.Text(msg.language))
		return fmt.Errorf("failed to set property value: %w", err)
	}

	name := key
	if session, err := t.Design.Session(ctx, user); err == nil {
		for _, entry := range session.Properties() {
			if entry.Key == key && entry.DisplayName != "" {
				name = entry.DisplayName
				break
			}
		}
	}
	t.sendMessageAndHandleErr(msg.chatID, TextPropertyUpdated.Format(msg.language, name, value))
	return nil
}

func (t *TelegramUsecase) generate(ctx context.Context, user model.User, msg incoming) error {
	if msg.command == CommandNotebook {
		notebook, err := t.Design.Notebook(ctx, user)
		if err != nil {
			return t.handleGenerateErr(msg, err)
		}
		if err = t.sendDocument(msg.chatID, codegen.NotebookFilename, notebook); err != nil {
			return fmt.Errorf("failed to send notebook: %w", err)
		}
		return nil
	}

	artifact, url, err := t.Design.Generate(ctx, user)
	if err != nil {
		return t.handleGenerateErr(msg, err)
	}
	t.sendArtifact(msg, artifact, url)
	return nil
}

func (t *TelegramUsecase) handleGenerateErr(msg incoming, err error) error {
	var templateErr *model.TemplateError
	switch {
	case errors.As(err, &templateErr):
		t.sendMessageAndHandleErr(
			msg.chatID, TextMissingSlots.Format(msg.language, strings.Join(templateErr.Missing, ", ")),
		)
		return nil
	case errors.Is(err, model.ErrSessionBusy):
		t.sendMessageAndHandleErr(msg.chatID, TextSessionBusy.Text(msg.language))
		return nil
	}
	t.sendMessageAndHandleErr(msg.chatID, TextServerError.Text(msg.language))
	return fmt.Errorf("failed to generate artifact: %w", err)
}

// explainProperty answers /explain <property> [level]. A trailing word that names a level is taken as the level.
func (t *TelegramUsecase) explainProperty(ctx context.Context, user model.User, msg incoming) error {
	words := strings.Fields(msg.arguments)
	level := model.UserLevelBeginner
	if len(words) > 1 {
		if parsed, err := model.ParseUserLevel(words[len(words)-1]); err == nil {
			level = parsed
			words = words[:len(words)-1]
		}
	}

	text, err := t.Design.ExplainProperty(ctx, user, strings.Join(words, " "), level)
	switch {
	case errors.Is(err, model.ErrValidation):
		t.sendMessageAndHandleErr(msg.chatID, TextExplainUsage.Text(msg.language))
		return nil
	case err != nil:
		t.Logger.Warn("failed to explain property", zap.Int64("chat_id", msg.chatID), zap.Error(err))
		t.sendMessageAndHandleErr(msg.chatID, TextExplainFailed.Text(msg.language))
		return nil
	}
	t.sendMessageAndHandleErr(msg.chatID, text)
	return nil
}

func (t *TelegramUsecase) listSessions(ctx context.Context, user model.User, msg incoming) error {
	sessions, err := t.Design.ListUserSessions(ctx, user)
	if err != nil {
		t.sendMessageAndHandleErr(msg.chatID, TextServerError.Text(msg.language))
		return fmt.Errorf("failed to list sessions: %w", err)
	}
	if len(sessions) == 0 {
		t.sendMessageAndHandleErr(msg.chatID, TextNoSessions.Text(msg.language))
		return nil
	}
	t.sendMessageAndHandleErr(msg.chatID, prepareUserSessions(sessions, user.ActiveSession, msg.language))
	return nil
}

// sendTemplatesKeyboard lists the templates with one button per template.
func (t *TelegramUsecase) sendTemplatesKeyboard(msg incoming) error {
	templates := t.Design.Catalog.List(msg.arguments)
	if len(templates) == 0 {
		t.sendMessageAndHandleErr(msg.chatID, TextTemplatesEmpty.Text(msg.language))
		return nil
	}

	message := api.NewMessage(msg.chatID, prepareTemplates(templates, msg.language))
	const maxButtonsInRow = 2
	inlineRows := make([][]api.InlineKeyboardButton, 0)
	inlineButtons := make([]api.InlineKeyboardButton, 0)
	for _, template := range templates {
		if len(inlineButtons) == maxButtonsInRow {
			inlineRows = append(inlineRows, inlineButtons)
			inlineButtons = make([]api.InlineKeyboardButton, 0)
		}
		inlineButtons = append(
			inlineButtons,
			api.NewInlineKeyboardButtonData(template.DisplayName, callbackTemplatePrefix+template.ID),
		)
	}
	inlineRows = append(inlineRows, inlineButtons)
	message.ReplyMarkup = api.NewInlineKeyboardMarkup(inlineRows...)
	if _, err := t.sendToBot(message); err != nil {
		return fmt.Errorf("failed to send message to bot: %w", err)
	}
	return nil
}

func prepareTemplates(templates []catalog.DesignTemplate, language local.Language) string {
	result := strings.Builder{}
	result.WriteString(TextTemplatesHeader.Text(language))
	for _, template := range templates {
		result.WriteString(fmt.Sprintf("/template %s - %s", template.ID, template.DisplayName))
		if template.Description != "" {
			result.WriteString(": " + template.Description)
		}
		result.WriteString("\n")
	}
	return result.String()
}

func (t *TelegramUsecase) sendArtifact(msg incoming, artifact model.Artifact, url string) {
	if err := t.sendDocument(msg.chatID, artifact.Filename, []byte(artifact.Code)); err != nil {
		t.Logger.Error("failed to send artifact", zap.Int64("chat_id", msg.chatID), zap.Error(err))
	}
	colabURL := codegen.ColabURL(artifact.Code)
	text := TextArtifactReady.Format(msg.language, colabURL)
	if len(text) > maxMessageLength {
		switch {
		case url != "":
			text = TextArtifactUploaded.Format(msg.language, url)
		case len(colabURL) <= maxMessageLength:
			// The link alone still opens the script.
			text = colabURL
		default:
			t.Logger.Warn(
				"artifact link does not fit into a message",
				zap.Int64("chat_id", msg.chatID), zap.Int("length", len(colabURL)),
			)
			text = TextArtifactTooLarge.Text(msg.language)
		}
	}
	t.sendMessageAndHandleErr(msg.chatID, text)
}

func prepareProperties(properties []model.PropertyEntry) string {
	result := strings.Builder{}
	for _, entry := range properties {
		value := entry.Value
		if entry.Unit != "" {
			value += " " + entry.Unit
		}
		result.WriteString(fmt.Sprintf("%s (%s): %s", entry.DisplayName, entry.Key, value))
		if !entry.Editable {
			result.WriteString(" [fixed]")
		}
		result.WriteString("\n")
	}
	return result.String()
}

func prepareUserSessions(sessions []model.SessionSnapshot, active uuid.UUID, language local.Language) string {
	result := strings.Builder{}
	result.WriteString(TextSessionsHeader.Format(language, len(sessions)))
	for i, session := range sessions {
		templateID := session.TemplateID
		if templateID == "" {
			templateID = catalog.DefaultTemplateID
		}
		marker := ""
		if session.ID == active {
			marker = " *"
		}
		result.WriteString(
			fmt.Sprintf(
				"%v) %s, messages: %v, updated: %s%s\n",
				i+1, templateID, len(session.Messages), session.UpdatedAt.Format("2006-01-02 15:04"), marker,
			),
		)
	}
	return result.String()
}

func seedText(session *ChatSession) string {
	messages := session.Messages()
	if len(messages) == 0 {
		return ""
	}
	return messages[0].Body
}

func (t *TelegramUsecase) sendMessageAndHandleErr(chatID int64, message string) api.Message {
	msg, err := t.sendMessage(chatID, message)
	if err != nil {
		t.Logger.Error("failed to send new message to bot", zap.Int64("chat_id", chatID), zap.Error(err))
	}
	return msg
}

func (t *TelegramUsecase) sendMessage(chatID int64, message string) (api.Message, error) {
	return t.sendToBot(api.NewMessage(chatID, message))
}

func (t *TelegramUsecase) sendDocument(chatID int64, name string, content []byte) error {
	_, err := t.sendToBot(api.NewDocument(chatID, api.FileBytes{Name: name, Bytes: content}))
	return err
}

func (t *TelegramUsecase) sendToBot(c api.Chattable) (api.Message, error) {
	return t.Bot.Send(c)
}
