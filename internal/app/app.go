package app

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/iamvkosarev/easymatter-bot/config"
	"github.com/iamvkosarev/easymatter-bot/internal/catalog"
	"github.com/iamvkosarev/easymatter-bot/internal/codegen"
	"github.com/iamvkosarev/easymatter-bot/internal/httpapi"
	"github.com/iamvkosarev/easymatter-bot/internal/interpretation"
	"github.com/iamvkosarev/easymatter-bot/internal/storage/bolt"
	in_memory "github.com/iamvkosarev/easymatter-bot/internal/storage/in-memory"
	key_value "github.com/iamvkosarev/easymatter-bot/internal/storage/key-value"
	"github.com/iamvkosarev/easymatter-bot/internal/storage/object"
	"github.com/iamvkosarev/easymatter-bot/internal/usecase"
	"github.com/iamvkosarev/easymatter-bot/pkg/local"
	"github.com/redis/go-redis/v9"
	"github.com/sourcegraph/conc"
	"go.uber.org/zap"
)

// NewLogger builds the production or development zap logger at the configured level.
func NewLogger(cfg config.App) (*zap.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	if cfg.LogDev {
		zapCfg = zap.NewDevelopmentConfig()
	}
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to parse log level %q: %w", cfg.LogLevel, err)
	}
	zapCfg.Level = level
	logger, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger.With(zap.String("app", cfg.Name), zap.String("version", cfg.Version)), nil
}

// Run wires every component and serves the enabled transports until ctx is done.
func Run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	interpreter, err := newInterpreter(ctx, cfg, logger)
	if err != nil {
		return err
	}

	storages, err := newStorages(cfg)
	if err != nil {
		return err
	}
	defer storages.close(logger)

	templates, err := catalog.Load()
	if err != nil {
		return fmt.Errorf("failed to load design templates: %w", err)
	}
	generator := codegen.NewGenerator()

	userUsecase := usecase.NewUserUsecase(
		usecase.UserUsecaseDeps{
			UserStorage: storages.users,
		},
		cfg.Telegram,
	)

	designDeps := usecase.DesignUsecaseDeps{
		SessionStorage: storages.sessions,
		User:           userUsecase,
		Catalog:        templates,
		Interpreter:    interpreter,
		Explainer:      interpreter,
		Generator:      generator,
		Logger:         logger,
	}
	if cfg.Artifacts.Enabled {
		artifactStorage, err := object.NewArtifactStorage(cfg.Artifacts)
		if err != nil {
			return fmt.Errorf("failed to create artifact storage: %w", err)
		}
		designDeps.ArtifactStorage = artifactStorage
	}
	designUsecase, err := usecase.NewDesignUsecase(designDeps, cfg.Session, local.ParseLanguage(cfg.Telegram.Language))
	if err != nil {
		return fmt.Errorf("failed to create design usecase: %w", err)
	}

	var telegramUsecase *usecase.TelegramUsecase
	if cfg.Telegram.Enabled {
		bot, err := api.NewBotAPI(cfg.Telegram.TelegramAPIToken)
		if err != nil {
			return fmt.Errorf("failed to create new bot: %w", err)
		}
		logger.Info("authorized on telegram", zap.String("account", bot.Self.UserName))

		telegramUsecase, err = usecase.NewTelegramUsecase(
			cfg.Telegram, usecase.TelegramUsecaseDeps{
				User:   userUsecase,
				Design: designUsecase,
				Bot:    bot,
				Logger: logger,
			},
		)
		if err != nil {
			return fmt.Errorf("failed to create telegram usecase: %w", err)
		}
	}

	var server *httpapi.Server
	if cfg.HTTP.Enabled {
		server = httpapi.NewServer(
			httpapi.ServerDeps{
				Interpreter: interpreter,
				Explainer:   interpreter,
				Catalog:     templates,
				Generator:   generator,
				Logger:      logger,
			}, cfg.App, cfg.HTTP,
		)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu      sync.Mutex
		runErrs []error
	)
	// A failing component stops the others.
	record := func(name string, err error) {
		if err == nil {
			return
		}
		logger.Error("component stopped with error", zap.String("component", name), zap.Error(err))
		mu.Lock()
		runErrs = append(runErrs, fmt.Errorf("%s: %w", name, err))
		mu.Unlock()
		cancel()
	}

	wg := conc.NewWaitGroup()
	if telegramUsecase != nil {
		wg.Go(
			func() {
				record("telegram", telegramUsecase.Run(ctx))
			},
		)
	}
	if server != nil {
		wg.Go(
			func() {
				record("http", server.Run(ctx))
			},
		)
	}
	logger.Info(
		"easymatter started",
		zap.String("provider", cfg.Interpretation.Provider),
		zap.String("storage", cfg.Storage.Backend),
		zap.Bool("telegram", cfg.Telegram.Enabled),
		zap.Bool("http", cfg.HTTP.Enabled),
	)
	wg.Wait()
	logger.Info("easymatter stopped")
	return errors.Join(runErrs...)
}

// assistant is what every interpretation provider offers.
type assistant interface {
	usecase.Interpreter
	usecase.PropertyExplainer
}

func newInterpreter(ctx context.Context, cfg *config.Config, logger *zap.Logger) (assistant, error) {
	switch cfg.Interpretation.Provider {
	case config.ProviderRemote:
		return interpretation.NewRemoteClient(cfg.Interpretation.BaseURL, cfg.Interpretation.Timeout, logger), nil
	case config.ProviderGemini:
		client, err := interpretation.NewGeminiClient(ctx, cfg.Gemini, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create gemini client: %w", err)
		}
		return client, nil
	default:
		openAICfg := cfg.OpenAI
		if openAICfg.OpenAIBaseURL != "" && !strings.HasSuffix(strings.TrimRight(openAICfg.OpenAIBaseURL, "/"), "/v1") {
			baseURL, err := url.JoinPath(openAICfg.OpenAIBaseURL, "/v1")
			if err != nil {
				return nil, fmt.Errorf("failed to build openai base url: %w", err)
			}
			openAICfg.OpenAIBaseURL = baseURL
		}
		return interpretation.NewOpenAIClient(openAICfg, logger), nil
	}
}

type storageSet struct {
	users    usecase.UserStorage
	sessions usecase.SessionStorage
	closers  []func() error
}

func newStorages(cfg *config.Config) (storageSet, error) {
	switch cfg.Storage.Backend {
	case config.StorageRedis:
		rdb := redis.NewClient(
			&redis.Options{
				Addr:     cfg.Redis.Endpoint,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			},
		)
		return storageSet{
			users:    key_value.NewUserStorage(rdb),
			sessions: key_value.NewSessionStorage(rdb),
			closers:  []func() error{rdb.Close},
		}, nil
	case config.StorageBolt:
		db, err := bolt.Open(cfg.Bolt.Path, cfg.Bolt.Timeout)
		if err != nil {
			return storageSet{}, err
		}
		return storageSet{
			users:    bolt.NewUserStorage(db),
			sessions: bolt.NewSessionStorage(db),
			closers:  []func() error{db.Close},
		}, nil
	default:
		return storageSet{
			users:    in_memory.NewUserStorage(),
			sessions: in_memory.NewSessionStorage(),
		}, nil
	}
}

func (s storageSet) close(logger *zap.Logger) {
	for _, closeFn := range s.closers {
		if err := closeFn(); err != nil {
			logger.Warn("failed to close storage", zap.Error(err))
		}
	}
}
