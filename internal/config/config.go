package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type HTTPOptions struct {
	Addr         string        `env:"HTTP_ADDR" envDefault:"0.0.0.0:5001"`
	MaxBodyBytes int64         `env:"HTTP_MAX_BODY_BYTES" envDefault:"1048576"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	WebhookRate  float64       `env:"WEBHOOK_RATE" envDefault:"0.5"`
	WebhookBurst int           `env:"WEBHOOK_BURST" envDefault:"5"`
}

type BusinessOptions struct {
	Name            string `env:"BUSINESS_NAME" envDefault:"Harley Vape"`
	Owner           string `env:"BUSINESS_OWNER" envDefault:"Anne-Sophie"`
	Timezone        string `env:"BUSINESS_TIMEZONE" envDefault:"Europe/Paris"`
	HoursStart      int    `env:"BUSINESS_HOURS_START" envDefault:"9"`
	HoursEnd        int    `env:"BUSINESS_HOURS_END" envDefault:"18"`
	ShopHours       string `env:"SHOP_HOURS" envDefault:"12h00-21h00 (heure de Paris)"`
	Website         string `env:"BUSINESS_WEBSITE" envDefault:"www.harleyvape.love"`
	DefaultLanguage string `env:"DEFAULT_LANGUAGE" envDefault:"fr"`
}

type GenerativeOptions struct {
	OpenRouterKey   string        `env:"OPENROUTER_API_KEY"`
	OpenRouterURL   string        `env:"OPENROUTER_BASE_URL" envDefault:"https://openrouter.ai/api/v1"`
	OpenRouterModel string        `env:"OPENROUTER_MODEL" envDefault:"openai/gpt-4-turbo"`
	GeminiKey       string        `env:"GEMINI_API_KEY"`
	GeminiModel     string        `env:"GEMINI_MODEL" envDefault:"gemini-2.5-flash"`
	Timeout         time.Duration `env:"GENERATIVE_TIMEOUT" envDefault:"20s"`
	Temperature     float64       `env:"GENERATIVE_TEMPERATURE" envDefault:"0.7"`
	MaxTokens       int           `env:"GENERATIVE_MAX_TOKENS" envDefault:"120"`
}

type ConversationOptions struct {
	HistoryLimit        int    `env:"HISTORY_LIMIT" envDefault:"10"`
	EscalationThreshold int    `env:"ESCALATION_HISTORY_THRESHOLD" envDefault:"5"`
	MaxReplyChars       int    `env:"MAX_REPLY_CHARS" envDefault:"150"`
	TemplatesPath       string `env:"TEMPLATES_PATH"`
	RandomSeed          uint64 `env:"RANDOM_SEED" envDefault:"0"`
}

type TelegramOptions struct {
	Token          string `env:"TELEGRAM_BOT_TOKEN"`
	OperatorChatID int64  `env:"TELEGRAM_OPERATOR_CHAT_ID"`
}

type WhatsAppOptions struct {
	Enabled bool   `env:"WHATSAPP_ENABLED" envDefault:"false"`
	DBPath  string `env:"WHATSAPP_DB_PATH" envDefault:"devices/luma.db"`
}

type AdminOptions struct {
	JWTSecret string `env:"JWT_SECRET"`
	Username  string `env:"ADMIN_USERNAME" envDefault:"admin"`
	Password  string `env:"ADMIN_PASSWORD"`
}

type SchedulerOptions struct {
	Enabled       bool          `env:"SCHEDULER_ENABLED" envDefault:"true"`
	PollInterval  time.Duration `env:"SCHEDULER_POLL_INTERVAL" envDefault:"60s"`
	FollowUpDelay time.Duration `env:"ALERT_FOLLOW_UP_DELAY" envDefault:"30m"`
}

type Configuration struct {
	HTTP         HTTPOptions
	Business     BusinessOptions
	Generative   GenerativeOptions
	Conversation ConversationOptions
	Telegram     TelegramOptions
	WhatsApp     WhatsAppOptions
	Admin        AdminOptions
	Scheduler    SchedulerOptions

	DatabaseURL string `env:"DATABASE_URL"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
}

// LoadEnv loads the env files that exist and reports how many were found.
func LoadEnv(envFiles []string) (int, error) {
	existing := make([]string, 0, len(envFiles))
	for _, file := range envFiles {
		if _, err := os.Stat(file); err == nil {
			existing = append(existing, file)
		}
	}
	if len(existing) == 0 {
		return 0, nil
	}
	return len(existing), godotenv.Load(existing...)
}

// Load reads .env files (when present) and parses the environment.
func Load(envFiles ...string) (*Configuration, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env", ".env.local"}
	}
	if _, err := LoadEnv(envFiles); err != nil {
		return nil, fmt.Errorf("load env files: %w", err)
	}
	c := &Configuration{}
	if err := env.Parse(c); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Configuration) Validate() error {
	var errs []error
	b := c.Business
	if b.HoursStart < 0 || b.HoursStart > 23 || b.HoursEnd < 0 || b.HoursEnd > 23 {
		errs = append(errs, fmt.Errorf("business hours must be within 0-23, got %d-%d", b.HoursStart, b.HoursEnd))
	}
	if b.HoursStart > b.HoursEnd {
		errs = append(errs, fmt.Errorf("business hours start %d is after end %d", b.HoursStart, b.HoursEnd))
	}
	if strings.TrimSpace(b.DefaultLanguage) == "" {
		errs = append(errs, errors.New("DEFAULT_LANGUAGE must not be empty"))
	}
	if _, err := time.LoadLocation(b.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("invalid BUSINESS_TIMEZONE %q: %w", b.Timezone, err))
	}
	if c.Conversation.HistoryLimit < 1 {
		errs = append(errs, fmt.Errorf("HISTORY_LIMIT must be positive, got %d", c.Conversation.HistoryLimit))
	}
	if c.Conversation.MaxReplyChars < 1 {
		errs = append(errs, fmt.Errorf("MAX_REPLY_CHARS must be positive, got %d", c.Conversation.MaxReplyChars))
	}
	if c.Generative.Timeout <= 0 {
		errs = append(errs, errors.New("GENERATIVE_TIMEOUT must be positive"))
	}
	if c.Scheduler.PollInterval <= 0 {
		errs = append(errs, errors.New("SCHEDULER_POLL_INTERVAL must be positive"))
	}
	if c.HTTP.WebhookRate <= 0 || c.HTTP.WebhookBurst < 1 {
		errs = append(errs, fmt.Errorf("webhook rate limit must be positive, got %v/%d", c.HTTP.WebhookRate, c.HTTP.WebhookBurst))
	}
	if c.Admin.Password != "" && c.Admin.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required when ADMIN_PASSWORD is set"))
	}
	return errors.Join(errs...)
}

// Location returns the business time zone. Validate guarantees it loads.
func (c *Configuration) Location() *time.Location {
	loc, err := time.LoadLocation(c.Business.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Configuration) LogrusLogLevel() logrus.Level {
	switch strings.ToLower(c.LogLevel) {
	case "silent":
		return logrus.PanicLevel
	case "error":
		return logrus.ErrorLevel
	case "warn":
		return logrus.WarnLevel
	case "debug":
		return logrus.DebugLevel
	case "trace":
		return logrus.TraceLevel
	default:
		return logrus.InfoLevel
	}
}

func (c *Configuration) AdminEnabled() bool {
	return c.Admin.Password != "" && c.Admin.JWTSecret != ""
}

func (c *Configuration) TelegramEnabled() bool {
	return c.Telegram.Token != "" && c.Telegram.OperatorChatID != 0
}
