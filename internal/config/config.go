package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ConfigVersion is written into new config files.
const ConfigVersion = "1"

// Config represents the frontdesk configuration stored in .frontdesk/config.yaml.
type Config struct {
	Version  string `yaml:"version"`
	DBPath   string `yaml:"db_path"`
	CallerID string `yaml:"caller_id,omitempty"` // Active call this process serves

	Escalation EscalationConfig `yaml:"escalation"`
	Monitor    MonitorConfig    `yaml:"monitor"`
	Dispatch   DispatchConfig   `yaml:"dispatch"`
	Voice      VoiceConfig      `yaml:"voice"`
	Fallback   FallbackConfig   `yaml:"fallback"`
	Alerts     AlertsConfig     `yaml:"alerts"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// EscalationConfig controls the escalation lifecycle.
type EscalationConfig struct {
	TimeoutWindow time.Duration `yaml:"timeout_window"`
}

// MonitorConfig controls the timeout sweep.
type MonitorConfig struct {
	SweepInterval time.Duration `yaml:"sweep_interval"`
	TimeoutNotice bool          `yaml:"timeout_notice"`
	NoticeTimeout time.Duration `yaml:"notice_timeout"`
}

// DispatchConfig controls follow-up delivery.
type DispatchConfig struct {
	PollInterval    time.Duration `yaml:"poll_interval"`
	DeliveryTimeout time.Duration `yaml:"delivery_timeout"`
	MaxAttempts     int           `yaml:"max_attempts"`
	BackoffBase     time.Duration `yaml:"backoff_base"`
	BackoffMax      time.Duration `yaml:"backoff_max"`
	PruneAfter      time.Duration `yaml:"prune_after"`
	WatchDB         bool          `yaml:"watch_db"`
}

// VoiceConfig selects the voice channel. An empty webhook prints to the console.
type VoiceConfig struct {
	WebhookURL string `yaml:"webhook_url,omitempty"`
}

// FallbackConfig selects the fallback answer source. An empty URL disables it.
type FallbackConfig struct {
	OllamaURL string `yaml:"ollama_url,omitempty"`
	Model     string `yaml:"model,omitempty"`
}

// AlertsConfig selects where new-escalation alerts go.
type AlertsConfig struct {
	DiscordToken     string `yaml:"-"`
	DiscordChannelID string `yaml:"discord_channel_id,omitempty"`
}

// MetricsConfig controls the Prometheus endpoint. Empty disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr,omitempty"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Version: ConfigVersion,
		DBPath:  filepath.Join(".frontdesk", "frontdesk.db"),
		Escalation: EscalationConfig{
			TimeoutWindow: 2 * time.Hour,
		},
		Monitor: MonitorConfig{
			SweepInterval: 30 * time.Second,
			TimeoutNotice: true,
			NoticeTimeout: 10 * time.Second,
		},
		Dispatch: DispatchConfig{
			PollInterval:    time.Second,
			DeliveryTimeout: 10 * time.Second,
			MaxAttempts:     5,
			BackoffBase:     2 * time.Second,
			BackoffMax:      60 * time.Second,
			PruneAfter:      7 * 24 * time.Hour,
			WatchDB:         true,
		},
		Fallback: FallbackConfig{
			Model: "llama3.2",
		},
	}
}

// Path returns the config file location for a working directory.
func Path(dir string) string {
	return filepath.Join(dir, ".frontdesk", "config.yaml")
}

// LoadConfig reads .frontdesk/config.yaml from dir over the defaults, loads
// dir/.env into the environment (existing variables win), then applies
// environment overrides. A missing file is not an error.
func LoadConfig(dir string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(Path(dir))
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if !filepath.IsAbs(cfg.DBPath) {
		cfg.DBPath = filepath.Join(dir, cfg.DBPath)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// SaveConfig writes config.yaml under dir/.frontdesk.
func SaveConfig(dir string, cfg *Config) error {
	stateDir := filepath.Join(dir, ".frontdesk")
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return fmt.Errorf("failed to create .frontdesk dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(Path(dir), data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

func (c *Config) applyEnv() error {
	overrides := map[string]*string{
		"FRONTDESK_DB_PATH":       &c.DBPath,
		"FRONTDESK_CALLER_ID":     &c.CallerID,
		"FRONTDESK_VOICE_WEBHOOK": &c.Voice.WebhookURL,
		"DISCORD_TOKEN":           &c.Alerts.DiscordToken,
		"DISCORD_CHANNEL_ID":      &c.Alerts.DiscordChannelID,
		"OLLAMA_URL":              &c.Fallback.OllamaURL,
		"OLLAMA_MODEL":            &c.Fallback.Model,
		"FRONTDESK_METRICS_ADDR":  &c.Metrics.Addr,
	}
	for key, dst := range overrides {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}

	if v, ok := os.LookupEnv("FRONTDESK_TIMEOUT_WINDOW"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid FRONTDESK_TIMEOUT_WINDOW: %w", err)
		}
		c.Escalation.TimeoutWindow = d
	}
	if v, ok := os.LookupEnv("FRONTDESK_MAX_ATTEMPTS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid FRONTDESK_MAX_ATTEMPTS: %w", err)
		}
		c.Dispatch.MaxAttempts = n
	}
	return nil
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	durations := []struct {
		name  string
		value time.Duration
	}{
		{"escalation.timeout_window", c.Escalation.TimeoutWindow},
		{"monitor.sweep_interval", c.Monitor.SweepInterval},
		{"monitor.notice_timeout", c.Monitor.NoticeTimeout},
		{"dispatch.poll_interval", c.Dispatch.PollInterval},
		{"dispatch.delivery_timeout", c.Dispatch.DeliveryTimeout},
		{"dispatch.backoff_base", c.Dispatch.BackoffBase},
		{"dispatch.backoff_max", c.Dispatch.BackoffMax},
		{"dispatch.prune_after", c.Dispatch.PruneAfter},
	}
	for _, d := range durations {
		if d.value <= 0 {
			return fmt.Errorf("invalid config: %s must be positive (got %s)", d.name, d.value)
		}
	}

	if c.Dispatch.BackoffMax < c.Dispatch.BackoffBase {
		return fmt.Errorf("invalid config: dispatch.backoff_max (%s) is below dispatch.backoff_base (%s)", c.Dispatch.BackoffMax, c.Dispatch.BackoffBase)
	}
	if c.Dispatch.MaxAttempts < 1 {
		return fmt.Errorf("invalid config: dispatch.max_attempts must be at least 1 (got %d)", c.Dispatch.MaxAttempts)
	}
	if c.DBPath == "" {
		return fmt.Errorf("invalid config: db_path is required")
	}
	if (c.Alerts.DiscordToken == "") != (c.Alerts.DiscordChannelID == "") {
		return fmt.Errorf("invalid config: DISCORD_TOKEN and discord_channel_id must be set together")
	}
	return nil
}
