package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/yury-yury/telegram-bot/core/database"
	"github.com/yury-yury/telegram-bot/core/logger"
)

// TelegramConfig holds Telegram bot related settings.
type TelegramConfig struct {
	Token string `yaml:"token" envconfig:"BOT_TOKEN"`
	// LongPollTimeoutSeconds defines long polling timeout; 0 -> default
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
	// RetryDelaySeconds defines how long the polling loop waits before
	// retrying a failed getUpdates call; 0 -> default
	RetryDelaySeconds int `yaml:"retry_delay_seconds" envconfig:"TELEGRAM_RETRY_DELAY_SECONDS"`
}

// APIConfig specifies the verification endpoint settings. An empty Listen
// disables the HTTP server entirely.
type APIConfig struct {
	Listen string `yaml:"listen" envconfig:"API_LISTEN"`
	Token  string `yaml:"token" envconfig:"API_TOKEN"`
}

// Config aggregates application configuration.
type Config struct {
	Telegram TelegramConfig  `yaml:"telegram"`
	API      APIConfig       `yaml:"api"`
	Database database.Config `yaml:"database"`
	Logging  logger.Config   `yaml:"logging"`
}

// Load reads configuration from a YAML file and environment variables.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize performs basic validation of required configuration fields and adjusts defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		return fmt.Errorf("telegram token is required")
	}
	if cfg.Telegram.LongPollTimeoutSeconds < 0 {
		return fmt.Errorf("telegram.longpoll_timeout_seconds must be >= 0")
	}
	if cfg.Telegram.LongPollTimeoutSeconds == 0 {
		cfg.Telegram.LongPollTimeoutSeconds = 60
	}
	if cfg.Telegram.RetryDelaySeconds < 0 {
		return fmt.Errorf("telegram.retry_delay_seconds must be >= 0")
	}
	if cfg.Telegram.RetryDelaySeconds == 0 {
		cfg.Telegram.RetryDelaySeconds = 5
	}

	if listen := strings.TrimSpace(cfg.API.Listen); listen != "" {
		cfg.API.Listen = listen
		if strings.TrimSpace(cfg.API.Token) == "" {
			return fmt.Errorf("api.token is required when api.listen is set")
		}
	}

	return nil
}
