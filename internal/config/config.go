package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Default timings mirror the backend's polling contract: presence heartbeat
// every 30s, conversation list poll every 5s, active thread poll every 3s,
// toast notifications live for 5s.
const (
	DefaultBaseURL          = "http://localhost:8080/api"
	DefaultRequestTimeout   = 10
	DefaultHeartbeatSecs    = 30
	DefaultConversationPoll = 5
	DefaultThreadPoll       = 3
	DefaultNotificationTTL  = 5
)

// Config represents the global ~/.chatflow/config.toml.
type Config struct {
	DefaultSession string  `toml:"default_session"`
	Backend        Backend `toml:"backend"`
	Sync           Sync    `toml:"sync"`
}

// Backend holds connection settings for the ChatFlow REST API.
type Backend struct {
	BaseURL            string `toml:"base_url"`
	RequestTimeoutSecs int    `toml:"request_timeout_secs"`
}

// Sync holds poll intervals and TTLs, in seconds.
type Sync struct {
	HeartbeatSecs        int `toml:"heartbeat_secs"`
	ConversationPollSecs int `toml:"conversation_poll_secs"`
	ThreadPollSecs       int `toml:"thread_poll_secs"`
	NotificationTTLSecs  int `toml:"notification_ttl_secs"`
}

// Load reads config from the given path. Returns zero config and error if file missing.
// The CHATFLOW_API_URL environment variable (typically from .env via godotenv)
// overrides backend.base_url.
func Load(path string) (*Config, error) {
	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

// Default returns a config populated with defaults and environment overrides,
// used when no config file exists yet.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if url := os.Getenv("CHATFLOW_API_URL"); url != "" {
		c.Backend.BaseURL = url
	}
	if c.Backend.BaseURL == "" {
		c.Backend.BaseURL = DefaultBaseURL
	}
	if c.Backend.RequestTimeoutSecs <= 0 {
		c.Backend.RequestTimeoutSecs = DefaultRequestTimeout
	}
	if c.Sync.HeartbeatSecs <= 0 {
		c.Sync.HeartbeatSecs = DefaultHeartbeatSecs
	}
	if c.Sync.ConversationPollSecs <= 0 {
		c.Sync.ConversationPollSecs = DefaultConversationPoll
	}
	if c.Sync.ThreadPollSecs <= 0 {
		c.Sync.ThreadPollSecs = DefaultThreadPoll
	}
	if c.Sync.NotificationTTLSecs <= 0 {
		c.Sync.NotificationTTLSecs = DefaultNotificationTTL
	}
}

// RequestTimeout returns the backend request timeout as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Backend.RequestTimeoutSecs) * time.Second
}

// HeartbeatInterval returns the presence heartbeat interval.
func (c *Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.Sync.HeartbeatSecs) * time.Second
}

// ConversationPollInterval returns the conversation list poll interval.
func (c *Config) ConversationPollInterval() time.Duration {
	return time.Duration(c.Sync.ConversationPollSecs) * time.Second
}

// ThreadPollInterval returns the active thread poll interval.
func (c *Config) ThreadPollInterval() time.Duration {
	return time.Duration(c.Sync.ThreadPollSecs) * time.Second
}

// NotificationTTL returns how long a toast notification stays alive.
func (c *Config) NotificationTTL() time.Duration {
	return time.Duration(c.Sync.NotificationTTLSecs) * time.Second
}
