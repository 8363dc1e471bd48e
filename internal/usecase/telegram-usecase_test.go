package usecase

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/iamvkosarev/easymatter-bot/config"
	"github.com/iamvkosarev/easymatter-bot/internal/catalog"
	"github.com/iamvkosarev/easymatter-bot/internal/codegen"
	"github.com/iamvkosarev/easymatter-bot/internal/model"
	in_memory "github.com/iamvkosarev/easymatter-bot/internal/storage/in-memory"
	"github.com/iamvkosarev/easymatter-bot/pkg/local"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeBot struct {
	mu       sync.Mutex
	sent     []api.Chattable
	requests []api.Chattable
	updates  chan api.Update
	stopped  bool
}

func (b *fakeBot) Send(c api.Chattable) (api.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, c)
	return api.Message{}, nil
}

func (b *fakeBot) Request(c api.Chattable) (*api.APIResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests = append(b.requests, c)
	return &api.APIResponse{Ok: true}, nil
}

func (b *fakeBot) GetUpdatesChan(api.UpdateConfig) api.UpdatesChannel {
	return b.updates
}

func (b *fakeBot) StopReceivingUpdates() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopped = true
}

func (b *fakeBot) texts() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	texts := make([]string, 0, len(b.sent))
	for _, c := range b.sent {
		if msg, ok := c.(api.MessageConfig); ok {
			texts = append(texts, msg.Text)
		}
	}
	return texts
}

func (b *fakeBot) documents() map[string][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	documents := make(map[string][]byte)
	for _, c := range b.sent {
		doc, ok := c.(api.DocumentConfig)
		if !ok {
			continue
		}
		if file, ok := doc.File.(api.FileBytes); ok {
			documents[file.Name] = file.Bytes
		}
	}
	return documents
}

func (b *fakeBot) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = nil
}

type stubInterpreter func(ctx context.Context, text string, ictx model.InterpretationContext) (
	model.InterpretationResult,
	error,
)

func (f stubInterpreter) Interpret(ctx context.Context, text string, ictx model.InterpretationContext) (
	model.InterpretationResult,
	error,
) {
	return f(ctx, text, ictx)
}

func perovskiteReply(context.Context, string, model.InterpretationContext) (model.InterpretationResult, error) {
	return model.InterpretationResult{
		ResponseText: "CsPbBr3 fits a stable cubic perovskite.",
		Interpretations: []model.Interpretation{
			{Key: "composition", DisplayName: "Composition", Value: "CsPbBr3"},
			{Key: "crystal_system", DisplayName: "Crystal System", Value: "cubic"},
			{Key: "bandgap", DisplayName: "Bandgap", Value: "2.3", Unit: "eV"},
			{Key: "stability", DisplayName: "Stability", Value: "stable"},
		},
		GeneratorParameters: map[string]any{"chemical_system": "Cs-Pb-Br"},
	}, nil
}

func newTelegramFixture(t *testing.T, interpreter Interpreter, telegramCfg config.Telegram) (*TelegramUsecase, *fakeBot) {
	t.Helper()
	templates, err := catalog.Load()
	require.NoError(t, err)

	users := NewUserUsecase(UserUsecaseDeps{UserStorage: in_memory.NewUserStorage()}, telegramCfg)
	design, err := NewDesignUsecase(
		DesignUsecaseDeps{
			SessionStorage: in_memory.NewSessionStorage(),
			User:           users,
			Catalog:        templates,
			Interpreter:    interpreter,
			Generator:      codegen.NewGenerator(),
			Logger:         zap.NewNop(),
		}, config.Session{CacheSize: 16, DefaultTemplate: catalog.DefaultTemplateID}, local.Eng,
	)
	require.NoError(t, err)

	bot := &fakeBot{updates: make(chan api.Update)}
	telegram, err := NewTelegramUsecase(
		telegramCfg, TelegramUsecaseDeps{
			User:   users,
			Design: design,
			Bot:    bot,
			Logger: zap.NewNop(),
		},
	)
	require.NoError(t, err)
	require.Len(t, bot.requests, 1)
	return telegram, bot
}

func command(chatID int64, name, arguments string) incoming {
	return incoming{chatID: chatID, command: name, arguments: arguments, language: local.Eng}
}

func text(chatID int64, body string) incoming {
	return incoming{chatID: chatID, text: body, language: local.Eng}
}

func TestTelegramSetOnLockedPropertyIsRejected(t *testing.T) {
	telegram, bot := newTelegramFixture(t, stubInterpreter(perovskiteReply), config.Telegram{IsPublic: true, Workers: 1})
	ctx := context.Background()

	require.NoError(t, telegram.handleMessage(ctx, command(1, CommandTemplate, "battery_material")))
	require.NoError(t, telegram.handleMessage(ctx, command(1, CommandSet, "application Anode")))
	require.NoError(t, telegram.handleMessage(ctx, command(1, CommandSet, "voltage 4.1")))
	require.NoError(t, telegram.handleMessage(ctx, command(1, CommandSet, "hardness 9")))
	require.NoError(t, telegram.handleMessage(ctx, command(1, CommandSet, "voltage")))

	texts := bot.texts()
	require.Len(t, texts, 5)
	assert.True(t, strings.HasPrefix(texts[0], "New session: Battery"), texts[0])
	assert.Equal(t, TextPropertyReadOnly.Format(local.Eng, "application"), texts[1])
	assert.Equal(t, TextPropertyUpdated.Format(local.Eng, "Voltage (V)", "4.1"), texts[2])
	assert.Equal(t, TextPropertyNotFound.Format(local.Eng, "hardness"), texts[3])
	assert.Equal(t, TextSetUsage.Text(local.Eng), texts[4])
}

func TestTelegramTextTurnSendsReplyAndScript(t *testing.T) {
	telegram, bot := newTelegramFixture(t, stubInterpreter(perovskiteReply), config.Telegram{IsPublic: true, Workers: 1})

	require.NoError(t, telegram.handleMessage(context.Background(), text(2, "a stable perovskite")))

	texts := bot.texts()
	require.Len(t, texts, 3)
	assert.Equal(t, "CsPbBr3 fits a stable cubic perovskite.", texts[0])
	assert.Equal(t, TextPropertiesUpdated.Text(local.Eng), texts[1])
	assert.True(t, strings.HasPrefix(texts[2], "Your MatterGen script is ready."), texts[2])
	assert.Contains(t, texts[2], "colab.research.google.com")

	script, ok := bot.documents()[codegen.Filename]
	require.True(t, ok)
	assert.Contains(t, string(script), "CsPbBr3")

	var typing bool
	for _, c := range bot.requests {
		if action, ok := c.(api.ChatActionConfig); ok && action.Action == api.ChatTyping {
			typing = true
		}
	}
	assert.True(t, typing)
}

func TestTelegramInterpretationFailureSendsGenericText(t *testing.T) {
	failing := stubInterpreter(
		func(context.Context, string, model.InterpretationContext) (model.InterpretationResult, error) {
			return model.InterpretationResult{}, model.ErrServiceUnavailable
		},
	)
	telegram, bot := newTelegramFixture(t, failing, config.Telegram{IsPublic: true, Workers: 1})

	require.NoError(t, telegram.handleMessage(context.Background(), text(3, "hello")))
	assert.Equal(t, []string{TextInterpretationFailed.Text(local.Eng)}, bot.texts())
}

func TestTelegramCodeReportsMissingSlots(t *testing.T) {
	telegram, bot := newTelegramFixture(t, stubInterpreter(perovskiteReply), config.Telegram{IsPublic: true, Workers: 1})
	ctx := context.Background()

	require.NoError(t, telegram.handleMessage(ctx, command(4, CommandTemplate, "catalyst")))
	bot.reset()
	require.NoError(t, telegram.handleMessage(ctx, command(4, CommandCode, "")))

	assert.Equal(
		t, []string{TextMissingSlots.Format(local.Eng, "composition, crystal_system, bandgap")}, bot.texts(),
	)
	assert.Empty(t, bot.documents())
}

func TestTelegramNotebookIsSentAsDocument(t *testing.T) {
	telegram, bot := newTelegramFixture(t, stubInterpreter(perovskiteReply), config.Telegram{IsPublic: true, Workers: 1})

	require.NoError(t, telegram.handleMessage(context.Background(), command(5, CommandNotebook, "")))

	notebook, ok := bot.documents()[codegen.NotebookFilename]
	require.True(t, ok)
	assert.Contains(t, string(notebook), `"nbformat": 4`)
	assert.Contains(t, string(notebook), "SrTiO3")
}

func TestTelegramBusySessionAnswersStillWorking(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	blocking := stubInterpreter(
		func(context.Context, string, model.InterpretationContext) (model.InterpretationResult, error) {
			close(started)
			<-release
			return model.InterpretationResult{ResponseText: "done"}, nil
		},
	)
	telegram, bot := newTelegramFixture(t, blocking, config.Telegram{IsPublic: true, Workers: 2})
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		done <- telegram.handleMessage(ctx, text(6, "first"))
	}()
	<-started

	require.NoError(t, telegram.handleMessage(ctx, text(6, "second")))
	require.NoError(t, telegram.handleMessage(ctx, command(6, CommandNew, "")))
	close(release)
	require.NoError(t, <-done)

	texts := bot.texts()
	require.Len(t, texts, 3)
	assert.Equal(t, TextSessionBusy.Text(local.Eng), texts[0])
	assert.Equal(t, TextSessionBusy.Text(local.Eng), texts[1])
	assert.Equal(t, "done", texts[2])
}

func TestTelegramPrivateBotRejectsStrangers(t *testing.T) {
	cfg := config.Telegram{AdminsTelegramIDs: []int64{10}, Workers: 1}
	telegram, bot := newTelegramFixture(t, stubInterpreter(perovskiteReply), cfg)
	ctx := context.Background()

	require.NoError(t, telegram.handleMessage(ctx, command(11, CommandHelp, "")))
	require.NoError(t, telegram.handleMessage(ctx, command(10, CommandHelp, "")))

	assert.Equal(
		t, []string{TextUserNoAccess.Text(local.Eng), TextCommandHelp.Text(local.Eng)}, bot.texts(),
	)
}

func TestTelegramListsTemplatesAndSessions(t *testing.T) {
	telegram, bot := newTelegramFixture(t, stubInterpreter(perovskiteReply), config.Telegram{IsPublic: true, Workers: 1})
	ctx := context.Background()

	require.NoError(t, telegram.handleMessage(ctx, command(7, CommandSessions, "")))
	assert.Equal(t, []string{TextNoSessions.Text(local.Eng)}, bot.texts())

	require.NoError(t, telegram.handleMessage(ctx, command(7, CommandTemplate, "solar_material")))
	bot.reset()
	require.NoError(t, telegram.handleMessage(ctx, command(7, CommandSessions, "")))
	require.NoError(t, telegram.handleMessage(ctx, command(7, CommandProperties, "")))
	require.NoError(t, telegram.handleMessage(ctx, command(7, "unknown", "")))

	texts := bot.texts()
	require.Len(t, texts, 3)
	assert.True(t, strings.HasPrefix(texts[0], "You have 1 sessions."), texts[0])
	assert.Contains(t, texts[0], "solar_material")
	assert.Contains(t, texts[1], "Application (application): Solar absorber [fixed]")
	assert.Contains(t, texts[1], "Bandgap (eV) (bandgap): 1.55 eV")
	assert.Equal(t, TextCommandUnknown.Text(local.Eng), texts[2])
}

func TestTelegramTemplatesListing(t *testing.T) {
	telegram, bot := newTelegramFixture(t, stubInterpreter(perovskiteReply), config.Telegram{IsPublic: true, Workers: 1})

	require.NoError(t, telegram.handleMessage(context.Background(), command(8, CommandTemplates, "")))

	texts := bot.texts()
	require.Len(t, texts, 1)
	assert.True(t, strings.HasPrefix(texts[0], TextTemplatesHeader.Text(local.Eng)))
	assert.Contains(t, texts[0], "/template battery_material")
	assert.Contains(t, texts[0], "/template catalyst")

	require.NoError(t, telegram.handleMessage(context.Background(), command(8, CommandTemplates, "no_such_category")))
	assert.Equal(t, TextTemplatesEmpty.Text(local.Eng), bot.texts()[1])
}

func (b *fakeBot) keyboard(i int) (api.InlineKeyboardMarkup, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	msg, ok := b.sent[i].(api.MessageConfig)
	if !ok {
		return api.InlineKeyboardMarkup{}, false
	}
	markup, ok := msg.ReplyMarkup.(api.InlineKeyboardMarkup)
	return markup, ok
}

func TestTelegramTemplatesKeyboardHasButtonPerTemplate(t *testing.T) {
	telegram, bot := newTelegramFixture(t, stubInterpreter(perovskiteReply), config.Telegram{IsPublic: true, Workers: 1})

	require.NoError(t, telegram.handleMessage(context.Background(), command(12, CommandTemplates, "")))

	markup, ok := bot.keyboard(0)
	require.True(t, ok)
	var data []string
	for _, row := range markup.InlineKeyboard {
		assert.LessOrEqual(t, len(row), 2)
		for _, button := range row {
			require.NotNil(t, button.CallbackData)
			data = append(data, *button.CallbackData)
		}
	}
	assert.Len(t, data, len(telegram.Design.Catalog.List("")))
	assert.Contains(t, data, "template:battery_material")
	assert.Contains(t, data, "template:solar_material")
}

func TestTelegramTemplateButtonStartsSession(t *testing.T) {
	telegram, bot := newTelegramFixture(t, stubInterpreter(perovskiteReply), config.Telegram{IsPublic: true, Workers: 1})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- telegram.Run(ctx)
	}()
	bot.updates <- api.Update{
		CallbackQuery: &api.CallbackQuery{
			ID:      "query-1",
			Data:    "template:battery_material",
			Message: &api.Message{Chat: api.Chat{ID: 13}},
		},
	}
	require.Eventually(
		t, func() bool {
			return len(bot.texts()) == 1
		}, time.Second, 10*time.Millisecond,
	)
	cancel()
	require.NoError(t, <-done)

	assert.True(t, strings.HasPrefix(bot.texts()[0], "New session: Battery"), bot.texts()[0])

	bot.mu.Lock()
	var answered bool
	for _, c := range bot.requests {
		if callback, ok := c.(api.CallbackConfig); ok && callback.CallbackQueryID == "query-1" {
			answered = true
		}
	}
	bot.mu.Unlock()
	assert.True(t, answered)

	user, err := telegram.User.GetUserInfoForTelegramUser(context.Background(), 13)
	require.NoError(t, err)
	session, err := telegram.Design.Session(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, "battery_material", session.TemplateID())
}

func TestTelegramUnknownCallbackDataIsIgnored(t *testing.T) {
	telegram, bot := newTelegramFixture(t, stubInterpreter(perovskiteReply), config.Telegram{IsPublic: true, Workers: 1})

	query := incoming{chatID: 14, callbackID: "query-2", arguments: "model:gpt", language: local.Eng}
	require.NoError(t, telegram.handleCallbackQuery(context.Background(), query))
	assert.Empty(t, bot.texts())
}

func TestTelegramTemplateButtonRespectsAccess(t *testing.T) {
	cfg := config.Telegram{AdminsTelegramIDs: []int64{10}, Workers: 1}
	telegram, bot := newTelegramFixture(t, stubInterpreter(perovskiteReply), cfg)

	query := incoming{chatID: 15, callbackID: "query-3", arguments: "template:catalyst", language: local.Eng}
	require.NoError(t, telegram.handleCallbackQuery(context.Background(), query))
	assert.Equal(t, []string{TextUserNoAccess.Text(local.Eng)}, bot.texts())
}

type stubExplainer func(ctx context.Context, property string, level model.UserLevel) (string, error)

func (f stubExplainer) ExplainProperty(ctx context.Context, property string, level model.UserLevel) (string, error) {
	return f(ctx, property, level)
}

func TestTelegramExplainProperty(t *testing.T) {
	telegram, bot := newTelegramFixture(t, stubInterpreter(perovskiteReply), config.Telegram{IsPublic: true, Workers: 1})
	var levels []model.UserLevel
	telegram.Design.Explainer = stubExplainer(
		func(_ context.Context, property string, level model.UserLevel) (string, error) {
			levels = append(levels, level)
			if property == "broken" {
				return "", model.ErrServiceUnavailable
			}
			return "about " + property, nil
		},
	)
	ctx := context.Background()

	require.NoError(t, telegram.handleMessage(ctx, command(16, CommandExplain, "thermal conductivity")))
	require.NoError(t, telegram.handleMessage(ctx, command(16, CommandExplain, "thermal conductivity advanced")))
	require.NoError(t, telegram.handleMessage(ctx, command(16, CommandExplain, "")))
	require.NoError(t, telegram.handleMessage(ctx, command(16, CommandExplain, "broken")))

	assert.Equal(
		t, []string{
			"about thermal conductivity",
			"about thermal conductivity",
			TextExplainUsage.Text(local.Eng),
			TextExplainFailed.Text(local.Eng),
		}, bot.texts(),
	)
	assert.Equal(
		t, []model.UserLevel{model.UserLevelBeginner, model.UserLevelAdvanced, model.UserLevelBeginner}, levels,
	)
}

func TestTelegramLongArtifactFallsBackToBareLink(t *testing.T) {
	telegram, bot := newTelegramFixture(t, stubInterpreter(perovskiteReply), config.Telegram{IsPublic: true, Workers: 1})
	msg := command(17, CommandCode, "")

	code := strings.Repeat("a", maxMessageLength-10-len(codegen.ColabURL("")))
	telegram.sendArtifact(msg, model.Artifact{Filename: codegen.Filename, Code: code}, "")
	telegram.sendArtifact(msg, model.Artifact{Filename: codegen.Filename, Code: code}, "https://storage.local/a.py")
	telegram.sendArtifact(msg, model.Artifact{Filename: codegen.Filename, Code: code + code}, "")

	assert.Equal(
		t, []string{
			codegen.ColabURL(code),
			TextArtifactUploaded.Format(local.Eng, "https://storage.local/a.py"),
			TextArtifactTooLarge.Text(local.Eng),
		}, bot.texts(),
	)
	assert.Contains(t, bot.documents(), codegen.Filename)
}

func TestTelegramRunStopsWithContext(t *testing.T) {
	telegram, bot := newTelegramFixture(t, stubInterpreter(perovskiteReply), config.Telegram{IsPublic: true, Workers: 1})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- telegram.Run(ctx)
	}()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
	bot.mu.Lock()
	defer bot.mu.Unlock()
	assert.True(t, bot.stopped)
}
