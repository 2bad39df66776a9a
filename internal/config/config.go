// Package config loads the roster engine configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/example/roster/internal/core/gate"
	"github.com/example/roster/internal/models"
)

// EnvPrefix is the prefix for environment overrides (ROSTER_DRY_RUN, ...).
const EnvPrefix = "ROSTER"

// DefaultFile is the config file name looked up in the working directory and ~/.roster.
const DefaultFile = "roster.yaml"

// Config is the read-only engine configuration.
type Config struct {
	PersonasFile string            `mapstructure:"personas_file" yaml:"personas_file"`
	DryRun       bool              `mapstructure:"dry_run" yaml:"dry_run"`
	Disabled     []string          `mapstructure:"disabled" yaml:"disabled"`
	Intervals    map[string]string `mapstructure:"intervals" yaml:"intervals"`

	Database   DatabaseConfig   `mapstructure:"database" yaml:"database"`
	Schedule   ScheduleConfig   `mapstructure:"schedule" yaml:"schedule"`
	Budget     BudgetConfig     `mapstructure:"budget" yaml:"budget"`
	Guardrails GuardrailsConfig `mapstructure:"guardrails" yaml:"guardrails"`
	Oracle     OracleConfig     `mapstructure:"oracle" yaml:"oracle"`
	Context    ContextConfig    `mapstructure:"context" yaml:"context"`
	Memory     MemoryConfig     `mapstructure:"memory" yaml:"memory"`
	Dispatch   DispatchConfig   `mapstructure:"dispatch" yaml:"dispatch"`
	Log        LogConfig        `mapstructure:"log" yaml:"log"`
	Metrics    MetricsConfig    `mapstructure:"metrics" yaml:"metrics"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

type ScheduleConfig struct {
	Timezone  string   `mapstructure:"timezone" yaml:"timezone"`
	StartHour int      `mapstructure:"start_hour" yaml:"start_hour"`
	EndHour   int      `mapstructure:"end_hour" yaml:"end_hour"`
	Weekdays  []string `mapstructure:"weekdays" yaml:"weekdays"`
}

type BudgetConfig struct {
	DailyDefault int `mapstructure:"daily_default" yaml:"daily_default"`
}

type GuardrailsConfig struct {
	AllowedEmailSuffix string `mapstructure:"allowed_email_suffix" yaml:"allowed_email_suffix"`
	OverseerHandle     string `mapstructure:"overseer_handle" yaml:"overseer_handle"`
	OverseerIdentity   string `mapstructure:"overseer_identity" yaml:"overseer_identity"`
}

type OracleConfig struct {
	BaseURL     string        `mapstructure:"base_url" yaml:"base_url"`
	Model       string        `mapstructure:"model" yaml:"model"`
	APIKeyEnv   string        `mapstructure:"api_key_env" yaml:"api_key_env"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxTokens   int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature float64       `mapstructure:"temperature" yaml:"temperature"`
}

type ContextConfig struct {
	InboundLookback time.Duration `mapstructure:"inbound_lookback" yaml:"inbound_lookback"`
	InboundLimit    int           `mapstructure:"inbound_limit" yaml:"inbound_limit"`
	ChannelLookback time.Duration `mapstructure:"channel_lookback" yaml:"channel_lookback"`
	ChannelLimit    int           `mapstructure:"channel_limit" yaml:"channel_limit"`
	HistoryLimit    int           `mapstructure:"history_limit" yaml:"history_limit"`
}

type MemoryConfig struct {
	Limit int `mapstructure:"limit" yaml:"limit"`
}

type DispatchConfig struct {
	Concurrency int `mapstructure:"concurrency" yaml:"concurrency"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		PersonasFile: "personas.yaml",
		Intervals: map[string]string{
			models.ClassExecutive:  "15m",
			models.ClassStaff:      "30m",
			models.ClassPeripheral: "2h",
			"default":              "30m",
		},
		Database: DatabaseConfig{Path: defaultDBPath()},
		Schedule: ScheduleConfig{
			Timezone:  "UTC",
			StartHour: 8,
			EndHour:   18,
			Weekdays:  []string{"mon", "tue", "wed", "thu", "fri"},
		},
		Budget: BudgetConfig{DailyDefault: 100},
		Guardrails: GuardrailsConfig{
			AllowedEmailSuffix: "@corp.example",
			OverseerHandle:     "@overseer",
			OverseerIdentity:   "overseer@corp.example",
		},
		Oracle: OracleConfig{
			BaseURL:     "https://api.openai.com/v1",
			Model:       "gpt-4o-mini",
			APIKeyEnv:   "OPENAI_API_KEY",
			Timeout:     60 * time.Second,
			MaxTokens:   1200,
			Temperature: 0.7,
		},
		Context: ContextConfig{
			InboundLookback: 48 * time.Hour,
			InboundLimit:    20,
			ChannelLookback: 24 * time.Hour,
			ChannelLimit:    10,
			HistoryLimit:    10,
		},
		Memory:   MemoryConfig{Limit: 20},
		Dispatch: DispatchConfig{Concurrency: 5},
		Log:      LogConfig{Level: "info", Format: "text"},
		Metrics:  MetricsConfig{Addr: ":9464"},
	}
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".roster", "roster.db")
	}
	return filepath.Join(home, ".roster", "roster.db")
}

// Load reads configuration from path (or the default search locations when
// path is empty) and applies ROSTER_* environment overrides. A missing file
// is not an error; defaults apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	cfg := Default()
	setDefaults(v, cfg)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(strings.TrimSuffix(DefaultFile, filepath.Ext(DefaultFile)))
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.roster")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, missing := err.(viper.ConfigFileNotFoundError); !missing || path != "" {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if used := v.ConfigFileUsed(); used != "" && !filepath.IsAbs(cfg.PersonasFile) {
		cfg.PersonasFile = filepath.Join(filepath.Dir(used), cfg.PersonasFile)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults registers every key with viper so env overrides apply even
// when the key is absent from the file.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("personas_file", cfg.PersonasFile)
	v.SetDefault("dry_run", cfg.DryRun)
	v.SetDefault("disabled", cfg.Disabled)
	v.SetDefault("intervals", cfg.Intervals)
	v.SetDefault("database.path", cfg.Database.Path)
	v.SetDefault("schedule.timezone", cfg.Schedule.Timezone)
	v.SetDefault("schedule.start_hour", cfg.Schedule.StartHour)
	v.SetDefault("schedule.end_hour", cfg.Schedule.EndHour)
	v.SetDefault("schedule.weekdays", cfg.Schedule.Weekdays)
	v.SetDefault("budget.daily_default", cfg.Budget.DailyDefault)
	v.SetDefault("guardrails.allowed_email_suffix", cfg.Guardrails.AllowedEmailSuffix)
	v.SetDefault("guardrails.overseer_handle", cfg.Guardrails.OverseerHandle)
	v.SetDefault("guardrails.overseer_identity", cfg.Guardrails.OverseerIdentity)
	v.SetDefault("oracle.base_url", cfg.Oracle.BaseURL)
	v.SetDefault("oracle.model", cfg.Oracle.Model)
	v.SetDefault("oracle.api_key_env", cfg.Oracle.APIKeyEnv)
	v.SetDefault("oracle.timeout", cfg.Oracle.Timeout)
	v.SetDefault("oracle.max_tokens", cfg.Oracle.MaxTokens)
	v.SetDefault("oracle.temperature", cfg.Oracle.Temperature)
	v.SetDefault("context.inbound_lookback", cfg.Context.InboundLookback)
	v.SetDefault("context.inbound_limit", cfg.Context.InboundLimit)
	v.SetDefault("context.channel_lookback", cfg.Context.ChannelLookback)
	v.SetDefault("context.channel_limit", cfg.Context.ChannelLimit)
	v.SetDefault("context.history_limit", cfg.Context.HistoryLimit)
	v.SetDefault("memory.limit", cfg.Memory.Limit)
	v.SetDefault("dispatch.concurrency", cfg.Dispatch.Concurrency)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("metrics.addr", cfg.Metrics.Addr)
}

// Validate checks ranges and parseable values.
func (c *Config) Validate() error {
	if c.Schedule.StartHour < 0 || c.Schedule.StartHour > 23 {
		return fmt.Errorf("schedule.start_hour must be 0-23, got %d", c.Schedule.StartHour)
	}
	if c.Schedule.EndHour < 0 || c.Schedule.EndHour > 24 {
		return fmt.Errorf("schedule.end_hour must be 0-24, got %d", c.Schedule.EndHour)
	}
	if _, err := c.Window(); err != nil {
		return err
	}
	for class, raw := range c.Intervals {
		if _, err := time.ParseDuration(raw); err != nil {
			return fmt.Errorf("intervals.%s: %w", class, err)
		}
	}
	if c.Budget.DailyDefault < 0 {
		return fmt.Errorf("budget.daily_default must not be negative")
	}
	if c.Dispatch.Concurrency <= 0 {
		return fmt.Errorf("dispatch.concurrency must be positive")
	}
	return nil
}

// Window builds the active window from the schedule section.
func (c *Config) Window() (gate.ActiveWindow, error) {
	loc, err := time.LoadLocation(c.Schedule.Timezone)
	if err != nil {
		return gate.ActiveWindow{}, fmt.Errorf("schedule.timezone: %w", err)
	}
	days := make([]time.Weekday, 0, len(c.Schedule.Weekdays))
	for _, d := range c.Schedule.Weekdays {
		wd, ok := parseWeekday(d)
		if !ok {
			return gate.ActiveWindow{}, fmt.Errorf("schedule.weekdays: unknown day %q", d)
		}
		days = append(days, wd)
	}
	return gate.ActiveWindow{
		StartHour: c.Schedule.StartHour,
		EndHour:   c.Schedule.EndHour,
		Location:  loc,
		Weekdays:  days,
	}, nil
}

func parseWeekday(s string) (time.Weekday, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if s == name || s == name[:3] {
			return d, true
		}
	}
	return 0, false
}

// MinInterval returns the minimum inter-cycle interval for a persona class.
// Unknown classes use the "default" entry; no entry means no minimum.
func (c *Config) MinInterval(class string) time.Duration {
	raw, ok := c.Intervals[strings.ToLower(class)]
	if !ok {
		raw, ok = c.Intervals["default"]
	}
	if !ok {
		return 0
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0
	}
	return d
}

// IsDisabled reports whether a persona is on the disabled list.
func (c *Config) IsDisabled(personaID string) bool {
	for _, id := range c.Disabled {
		if strings.EqualFold(strings.TrimSpace(id), personaID) {
			return true
		}
	}
	return false
}

// SaveConfig writes cfg as YAML to path, creating parent directories.
func SaveConfig(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}
