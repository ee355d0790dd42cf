package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// RetryPolicy selects how the connection supervisor spaces reconnect attempts.
type RetryPolicy string

const (
	RetryPolicyFixed       RetryPolicy = "fixed"
	RetryPolicyExponential RetryPolicy = "exponential"

	DefaultPollIntervalMS   = 5000
	DefaultRequestTimeoutMS = 10000
	DefaultRetryDelayMS     = 10000
	DefaultRetryMaxDelayMS  = 60000
	DefaultLogMaxSizeMB     = 10
	DefaultLogMaxBackups    = 3
	DefaultMQTTTopicPrefix  = "meshhttp"
)

// LoggingConfig defines runtime logging behavior.
type LoggingConfig struct {
	Level      string `json:"level"`
	LogToFile  bool   `json:"log_to_file"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
}

// RetryConfig controls the reconnect schedule after a failed probe.
type RetryConfig struct {
	Policy     RetryPolicy `json:"policy"`
	DelayMS    int         `json:"delay_ms"`
	MaxDelayMS int         `json:"max_delay_ms"`
}

// ConnectionConfig contains HTTP device connection parameters.
type ConnectionConfig struct {
	Host             string      `json:"host"`
	TLS              bool        `json:"tls"`
	ReceiveAll       bool        `json:"receive_all"`
	PollIntervalMS   int         `json:"poll_interval_ms"`
	RequestTimeoutMS int         `json:"request_timeout_ms"`
	Retry            RetryConfig `json:"retry"`
}

// MQTTConfig configures the optional status mirror.
type MQTTConfig struct {
	Enabled     bool   `json:"enabled"`
	Broker      string `json:"broker"`
	ClientID    string `json:"client_id"`
	TopicPrefix string `json:"topic_prefix"`
}

// AppConfig is the root persisted application configuration.
type AppConfig struct {
	Connection ConnectionConfig `json:"connection"`
	Logging    LoggingConfig    `json:"logging"`
	MQTT       MQTTConfig       `json:"mqtt"`
}

func Default() AppConfig {
	return AppConfig{
		Connection: ConnectionConfig{
			Host:             "",
			TLS:              false,
			ReceiveAll:       false,
			PollIntervalMS:   DefaultPollIntervalMS,
			RequestTimeoutMS: DefaultRequestTimeoutMS,
			Retry: RetryConfig{
				Policy:     RetryPolicyFixed,
				DelayMS:    DefaultRetryDelayMS,
				MaxDelayMS: DefaultRetryMaxDelayMS,
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			LogToFile:  false,
			MaxSizeMB:  DefaultLogMaxSizeMB,
			MaxBackups: DefaultLogMaxBackups,
		},
		MQTT: MQTTConfig{
			Enabled:     false,
			TopicPrefix: DefaultMQTTTopicPrefix,
		},
	}
}

func Load(path string) (AppConfig, error) {
	cfg := Default()
	cleanPath := filepath.Clean(path)
	// #nosec G304 -- path is resolved by app runtime and points to user config dir.
	raw, err := os.ReadFile(cleanPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}

		return AppConfig{}, fmt.Errorf("read config: %w", err)
	}

	if err := json.Unmarshal(raw, &cfg); err != nil {
		return AppConfig{}, fmt.Errorf("decode config json: %w", err)
	}

	cfg.FillMissingDefaults()

	return cfg, nil
}

func (c *AppConfig) FillMissingDefaults() {
	c.Connection.Host = strings.TrimSpace(c.Connection.Host)
	if c.Connection.PollIntervalMS <= 0 {
		c.Connection.PollIntervalMS = DefaultPollIntervalMS
	}
	if c.Connection.RequestTimeoutMS <= 0 {
		c.Connection.RequestTimeoutMS = DefaultRequestTimeoutMS
	}
	c.Connection.Retry.Policy = normalizeRetryPolicy(c.Connection.Retry.Policy)
	if c.Connection.Retry.DelayMS <= 0 {
		c.Connection.Retry.DelayMS = DefaultRetryDelayMS
	}
	if c.Connection.Retry.MaxDelayMS < c.Connection.Retry.DelayMS {
		c.Connection.Retry.MaxDelayMS = max(DefaultRetryMaxDelayMS, c.Connection.Retry.DelayMS)
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.MaxSizeMB <= 0 {
		c.Logging.MaxSizeMB = DefaultLogMaxSizeMB
	}
	if c.Logging.MaxBackups < 0 {
		c.Logging.MaxBackups = DefaultLogMaxBackups
	}
	if strings.TrimSpace(c.MQTT.TopicPrefix) == "" {
		c.MQTT.TopicPrefix = DefaultMQTTTopicPrefix
	}
}

func normalizeRetryPolicy(policy RetryPolicy) RetryPolicy {
	switch RetryPolicy(strings.ToLower(strings.TrimSpace(string(policy)))) {
	case RetryPolicyExponential:
		return RetryPolicyExponential
	default:
		return RetryPolicyFixed
	}
}

func (c AppConfig) Validate() error {
	host := strings.TrimSpace(c.Connection.Host)
	if host == "" {
		return errors.New("device host is required")
	}
	if strings.Contains(host, "://") {
		return fmt.Errorf("device host must not include a scheme: %q", host)
	}
	if strings.ContainsAny(host, "/?#") {
		return fmt.Errorf("device host must be a bare host or ip: %q", host)
	}
	if c.Connection.PollIntervalMS <= 0 {
		return errors.New("poll interval must be positive")
	}
	if c.MQTT.Enabled && strings.TrimSpace(c.MQTT.Broker) == "" {
		return errors.New("mqtt broker is required when mqtt is enabled")
	}

	return nil
}

func Save(path string, cfg AppConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	raw, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, raw, 0o600); err != nil {
		return fmt.Errorf("write temp config: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp config: %w", err)
	}

	return nil
}

func (c ConnectionConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

func (c ConnectionConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMS) * time.Millisecond
}

func (r RetryConfig) Delay() time.Duration {
	return time.Duration(r.DelayMS) * time.Millisecond
}

func (r RetryConfig) MaxDelay() time.Duration {
	return time.Duration(r.MaxDelayMS) * time.Millisecond
}
