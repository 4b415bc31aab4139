package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port         int           `yaml:"port"`
	AdminPort    int           `yaml:"admin_port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"` // must outlive the longest AI stream
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	PoolSize int    `yaml:"pool_size"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type AIConfig struct {
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

type QuotaConfig struct {
	FreeLimit               int `yaml:"free_limit"`                 // lifetime trial turns
	MaxChatsPerConversation int `yaml:"max_chats_per_conversation"` // per-conversation user messages
	WarningThreshold        int `yaml:"warning_threshold"`          // client-visible warning point
	RateLimitPerMinute      int `yaml:"rate_limit_per_minute"`      // per-user chat sends
}

// DebitPhase names when a withdrawal debits the balance. "processing" (the
// default) earmarks funds once an operator accepts the request; "submission"
// debits as soon as the request is created.
type DebitPhase string

const (
	DebitOnProcessing DebitPhase = "processing"
	DebitOnSubmission DebitPhase = "submission"
)

type BillingConfig struct {
	Level0Pct            float64    `yaml:"level0_pct"` // direct inviter share
	Level1Pct            float64    `yaml:"level1_pct"` // inviter's inviter share
	WithdrawalDebitPhase DebitPhase `yaml:"withdrawal_debit_phase"`
	CodeTTL              time.Duration `yaml:"code_ttl"` // activation code validity window
}

type AdminConfig struct {
	JWTSecret  string        `yaml:"jwt_secret"`
	Password   string        `yaml:"password"`
	SessionTTL time.Duration `yaml:"session_ttl"`
}

type SecurityConfig struct {
	// EncryptionKey seals withdrawal account info at rest. Empty disables
	// encryption (dev only). Must be 16, 24, or 32 bytes when set.
	EncryptionKey string `yaml:"encryption_key"`
}

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	AI       AIConfig       `yaml:"ai"`
	Quota    QuotaConfig    `yaml:"quota"`
	Billing  BillingConfig  `yaml:"billing"`
	Admin    AdminConfig    `yaml:"admin"`
	Security SecurityConfig `yaml:"security"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// defaults
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.AdminPort <= 0 {
		cfg.Server.AdminPort = 8081
	}
	if cfg.Server.WriteTimeout <= 0 {
		cfg.Server.WriteTimeout = 5 * time.Minute
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Database.PoolSize <= 0 {
		cfg.Database.PoolSize = 10
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)
	if cfg.AI.Model == "" {
		cfg.AI.Model = "default"
	}
	if cfg.AI.Timeout <= 0 {
		cfg.AI.Timeout = 2 * time.Minute
	}
	if cfg.Quota.FreeLimit <= 0 {
		cfg.Quota.FreeLimit = 5
	}
	if cfg.Quota.MaxChatsPerConversation <= 0 {
		cfg.Quota.MaxChatsPerConversation = 50
	}
	if cfg.Quota.WarningThreshold <= 0 {
		cfg.Quota.WarningThreshold = 45
	}
	if cfg.Quota.RateLimitPerMinute <= 0 {
		cfg.Quota.RateLimitPerMinute = 20
	}
	if cfg.Billing.Level0Pct <= 0 {
		cfg.Billing.Level0Pct = 0.30
	}
	if cfg.Billing.Level1Pct <= 0 {
		cfg.Billing.Level1Pct = 0.10
	}
	if cfg.Billing.WithdrawalDebitPhase == "" {
		cfg.Billing.WithdrawalDebitPhase = DebitOnProcessing
	}
	if cfg.Billing.CodeTTL <= 0 {
		cfg.Billing.CodeTTL = 90 * 24 * time.Hour
	}
	if cfg.Admin.SessionTTL <= 0 {
		cfg.Admin.SessionTTL = 30 * time.Minute
	}

	// env overrides for secrets
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("AI_API_KEY"); v != "" {
		cfg.AI.APIKey = v
	}
	if v := os.Getenv("ADMIN_JWT_SECRET"); v != "" {
		cfg.Admin.JWTSecret = v
	}

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if cfg.AI.BaseURL == "" {
		return nil, errors.New("ai.base_url is required")
	}
	if cfg.Billing.WithdrawalDebitPhase != DebitOnProcessing && cfg.Billing.WithdrawalDebitPhase != DebitOnSubmission {
		return nil, fmt.Errorf("billing.withdrawal_debit_phase: unknown phase %q", cfg.Billing.WithdrawalDebitPhase)
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}
