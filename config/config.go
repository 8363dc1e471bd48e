package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	ProviderRemote = "remote"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"

	StorageMemory = "memory"
	StorageRedis  = "redis"
	StorageBolt   = "bolt"
)

var ErrInvalidConfig = errors.New("invalid config")

type App struct {
	Name     string `yaml:"name" env:"APP_NAME" env-default:"easymatter-bot"`
	Version  string `yaml:"version" env:"APP_VERSION" env-default:"1.0.0"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	LogDev   bool   `yaml:"log_development" env:"LOG_DEVELOPMENT" env-default:"false"`
}

type Interpretation struct {
	Provider string        `yaml:"provider" env:"INTERPRETATION_PROVIDER" env-default:"openai"`
	BaseURL  string        `yaml:"base_url" env:"INTERPRETATION_BASE_URL" env-default:"http://localhost:8001"`
	Timeout  time.Duration `yaml:"timeout" env:"INTERPRETATION_TIMEOUT" env-default:"60s"`
}

type OpenAI struct {
	OpenAIAPIKey          string        `yaml:"api_key" env:"OPENAI_API_KEY"`
	OpenAIBaseURL         string        `yaml:"base_url" env:"OPENAI_BASE_URL" env-default:"https://api.openai.com/v1"`
	Model                 string        `yaml:"model" env:"OPENAI_MODEL" env-default:"gpt-4o"`
	ReplyTemperature      float32       `yaml:"reply_temperature" env:"OPENAI_REPLY_TEMPERATURE" env-default:"0.7"`
	ExtractionTemperature float32       `yaml:"extraction_temperature" env:"OPENAI_EXTRACTION_TEMPERATURE" env-default:"0.2"`
	MaxContextTokens      int           `yaml:"max_context_tokens" env:"OPENAI_MAX_CONTEXT_TOKENS" env-default:"3500"`
	Timeout               time.Duration `yaml:"timeout" env:"OPENAI_TIMEOUT" env-default:"60s"`
}

type Gemini struct {
	APIKey                string        `yaml:"api_key" env:"GEMINI_API_KEY"`
	Model                 string        `yaml:"model" env:"GEMINI_MODEL" env-default:"gemini-2.5-flash"`
	ReplyTemperature      float32       `yaml:"reply_temperature" env:"GEMINI_REPLY_TEMPERATURE" env-default:"0.7"`
	ExtractionTemperature float32       `yaml:"extraction_temperature" env:"GEMINI_EXTRACTION_TEMPERATURE" env-default:"0.2"`
	Timeout               time.Duration `yaml:"timeout" env:"GEMINI_TIMEOUT" env-default:"60s"`
}

type Telegram struct {
	Enabled            bool    `yaml:"enabled" env:"TELEGRAM_ENABLED"`
	TelegramAPIToken   string  `yaml:"api_token" env:"TELEGRAM_APITOKEN"`
	IsPublic           bool    `yaml:"is_public" env:"TELEGRAM_IS_PUBLIC" env-default:"false"`
	AdminsTelegramIDs  []int64 `yaml:"admins_telegram_ids" env:"TELEGRAM_ADMINS" env-separator:","`
	PremiumTelegramIDs []int64 `yaml:"premium_telegram_ids" env:"TELEGRAM_PREMIUM" env-separator:","`
	Language           string  `yaml:"language" env:"TELEGRAM_LANGUAGE" env-default:"en"`
	Workers            int     `yaml:"workers" env:"TELEGRAM_WORKERS" env-default:"8"`
	UpdateTimeout      int     `yaml:"update_timeout_seconds" env:"TELEGRAM_UPDATE_TIMEOUT" env-default:"60"`
}

type Storage struct {
	Backend string `yaml:"backend" env:"STORAGE_BACKEND" env-default:"memory"`
}

type Redis struct {
	Endpoint string `yaml:"endpoint" env:"REDIS_ENDPOINT" env-default:"localhost:6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

type Bolt struct {
	Path    string        `yaml:"path" env:"BOLT_PATH" env-default:"data/easymatter.db"`
	Timeout time.Duration `yaml:"timeout" env:"BOLT_TIMEOUT" env-default:"1s"`
}

type Artifacts struct {
	Enabled   bool   `yaml:"enabled" env:"ARTIFACTS_ENABLED" env-default:"false"`
	Endpoint  string `yaml:"endpoint" env:"ARTIFACTS_ENDPOINT" env-default:"localhost:9000"`
	AccessKey string `yaml:"access_key" env:"ARTIFACTS_ACCESS_KEY"`
	SecretKey string `yaml:"secret_key" env:"ARTIFACTS_SECRET_KEY"`
	Bucket    string `yaml:"bucket" env:"ARTIFACTS_BUCKET" env-default:"easymatter-artifacts"`
	UseSSL    bool   `yaml:"use_ssl" env:"ARTIFACTS_USE_SSL" env-default:"false"`
}

type HTTP struct {
	Enabled         bool          `yaml:"enabled" env:"HTTP_ENABLED"`
	Addr            string        `yaml:"addr" env:"HTTP_ADDR" env-default:":8000"`
	AllowedOrigins  []string      `yaml:"allowed_origins" env:"HTTP_ALLOWED_ORIGINS" env-separator:"," env-default:"http://localhost:3000"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"HTTP_READ_TIMEOUT" env-default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"HTTP_WRITE_TIMEOUT" env-default:"120s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"10s"`
}

type Session struct {
	CacheSize       int    `yaml:"cache_size" env:"SESSION_CACHE_SIZE" env-default:"1024"`
	DefaultTemplate string `yaml:"default_template" env:"SESSION_DEFAULT_TEMPLATE" env-default:"general"`
}

type Config struct {
	App            App            `yaml:"app"`
	Interpretation Interpretation `yaml:"interpretation"`
	OpenAI         OpenAI         `yaml:"openai"`
	Gemini         Gemini         `yaml:"gemini"`
	Telegram       Telegram       `yaml:"telegram"`
	Storage        Storage        `yaml:"storage"`
	Redis          Redis          `yaml:"redis"`
	Bolt           Bolt           `yaml:"bolt"`
	Artifacts      Artifacts      `yaml:"artifacts"`
	HTTP           HTTP           `yaml:"http"`
	Session        Session        `yaml:"session"`
}

func LoadConfig(cfgPath string) (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadConfig(cfgPath, &cfg); err != nil {
		return nil, err
	}
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the selected provider and backends have what they need.
func (c *Config) Validate() error {
	switch c.Interpretation.Provider {
	case ProviderRemote:
		if c.Interpretation.BaseURL == "" {
			return fmt.Errorf("%w: interpretation.base_url is required for the remote provider", ErrInvalidConfig)
		}
		if c.HTTP.Enabled && pointsAtSelf(c.Interpretation.BaseURL, c.HTTP.Addr) {
			return fmt.Errorf(
				"%w: interpretation.base_url %s points at this server's own address %s",
				ErrInvalidConfig, c.Interpretation.BaseURL, c.HTTP.Addr,
			)
		}
	case ProviderOpenAI:
		if c.OpenAI.OpenAIAPIKey == "" {
			return fmt.Errorf("%w: OPENAI_API_KEY is required for the openai provider", ErrInvalidConfig)
		}
	case ProviderGemini:
		if c.Gemini.APIKey == "" {
			return fmt.Errorf("%w: GEMINI_API_KEY is required for the gemini provider", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown interpretation provider %q", ErrInvalidConfig, c.Interpretation.Provider)
	}

	switch c.Storage.Backend {
	case StorageMemory, StorageRedis, StorageBolt:
	default:
		return fmt.Errorf("%w: unknown storage backend %q", ErrInvalidConfig, c.Storage.Backend)
	}

	if c.Telegram.Enabled && c.Telegram.TelegramAPIToken == "" {
		return fmt.Errorf("%w: TELEGRAM_APITOKEN is required when telegram is enabled", ErrInvalidConfig)
	}
	if !c.Telegram.Enabled && !c.HTTP.Enabled {
		return fmt.Errorf("%w: enable telegram or http", ErrInvalidConfig)
	}
	if c.Telegram.Workers <= 0 {
		return fmt.Errorf("%w: telegram.workers must be positive", ErrInvalidConfig)
	}
	if c.Session.CacheSize <= 0 {
		return fmt.Errorf("%w: session.cache_size must be positive", ErrInvalidConfig)
	}
	return nil
}

// pointsAtSelf reports whether baseURL is a loopback address on the port the HTTP server listens on.
func pointsAtSelf(baseURL, addr string) bool {
	u, err := url.Parse(baseURL)
	if err != nil {
		return false
	}
	_, listenPort, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	port := u.Port()
	if port == "" {
		port = map[string]string{"http": "80", "https": "443"}[u.Scheme]
	}
	if port != listenPort {
		return false
	}
	host := u.Hostname()
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && (ip.IsLoopback() || ip.IsUnspecified())
}
