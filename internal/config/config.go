// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Session() SessionConfig
	Network() NetworkConfig
	Interaction() InteractionConfig
	Detection() DetectionConfig

	// Session Setters
	SetSessionIdleTimeout(d time.Duration)

	// Network Setters
	SetNetworkNavigationTimeout(d time.Duration)

	// Interaction Setters
	SetClickRetries(n int)
	SetFormRetryEnabled(b bool)
}

// Config holds the entire application configuration. It uses private fields
// to enforce access through the Interface's getter methods; decoding happens
// through rawConfig because mapstructure cannot set unexported fields.
type Config struct {
	logger      LoggerConfig
	session     SessionConfig
	network     NetworkConfig
	interaction InteractionConfig
	detection   DetectionConfig
}

// rawConfig is the exported decode target viper unmarshals into. It mirrors
// Config field for field and exists only for the decode step.
type rawConfig struct {
	Logger      LoggerConfig      `mapstructure:"logger" yaml:"logger"`
	Session     SessionConfig     `mapstructure:"session" yaml:"session"`
	Network     NetworkConfig     `mapstructure:"network" yaml:"network"`
	Interaction InteractionConfig `mapstructure:"interaction" yaml:"interaction"`
	Detection   DetectionConfig   `mapstructure:"detection" yaml:"detection"`
}

func (rc rawConfig) config() *Config {
	return &Config{
		logger:      rc.Logger,
		session:     rc.Session,
		network:     rc.Network,
		interaction: rc.Interaction,
		detection:   rc.Detection,
	}
}

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig           { return c.logger }
func (c *Config) Session() SessionConfig         { return c.session }
func (c *Config) Network() NetworkConfig         { return c.network }
func (c *Config) Interaction() InteractionConfig { return c.interaction }
func (c *Config) Detection() DetectionConfig     { return c.detection }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetSessionIdleTimeout(d time.Duration)       { c.session.IdleTimeout = d }
func (c *Config) SetNetworkNavigationTimeout(d time.Duration) { c.network.NavigationTimeout = d }
func (c *Config) SetClickRetries(n int)                       { c.interaction.Click.Retries = n }
func (c *Config) SetFormRetryEnabled(b bool)                  { c.interaction.Form.RetryEnabled = b }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// SessionConfig tunes session pooling and reuse in the registry.
type SessionConfig struct {
	// IdleTimeout is how long an untouched session survives before the next
	// GetOrCreate call evicts it. Must be positive.
	IdleTimeout time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	// ProbeTimeout bounds the liveness probe (list targets) against an
	// existing session before it is reused.
	ProbeTimeout time.Duration `mapstructure:"probe_timeout" yaml:"probe_timeout"`
	// ReconnectTimeout bounds a token based reconnect attempt.
	ReconnectTimeout time.Duration `mapstructure:"reconnect_timeout" yaml:"reconnect_timeout"`
	// CloseTimeout bounds best-effort close of pages, contexts and browsers.
	CloseTimeout time.Duration `mapstructure:"close_timeout" yaml:"close_timeout"`
}

// NetworkConfig tunes connection and navigation behavior.
type NetworkConfig struct {
	ConnectTimeout    time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	// PostLoadWait is the fixed settle delay applied by the "fixed" wait policy.
	PostLoadWait time.Duration `mapstructure:"post_load_wait" yaml:"post_load_wait"`
	// ConnectRatePerMinute paces fresh connections to cloud backends.
	ConnectRatePerMinute float64 `mapstructure:"connect_rate_per_minute" yaml:"connect_rate_per_minute"`
}

// ClickConfig is the default policy for the robust click sequence.
type ClickConfig struct {
	// Timeout caps each individual click strategy attempt.
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
	// Retries is how many times the full strategy sequence is repeated.
	Retries    int           `mapstructure:"retries" yaml:"retries"`
	RetryDelay time.Duration `mapstructure:"retry_delay" yaml:"retry_delay"`
}

// FormConfig is the default policy for form submission verification.
type FormConfig struct {
	RetryEnabled bool          `mapstructure:"retry_enabled" yaml:"retry_enabled"`
	MaxRetries   int           `mapstructure:"max_retries" yaml:"max_retries"`
	RetryDelay   time.Duration `mapstructure:"retry_delay" yaml:"retry_delay"`
	// SubmitWait is the default post-submit wait duration for the fixed policy.
	SubmitWait time.Duration `mapstructure:"submit_wait" yaml:"submit_wait"`
}

// InteractionConfig groups the per-operation retry policies so that
// default/override precedence stays auditable in one place.
type InteractionConfig struct {
	Click ClickConfig `mapstructure:"click" yaml:"click"`
	Form  FormConfig  `mapstructure:"form" yaml:"form"`
	// ScrollSettle is the fixed delay after a smooth scroll-into-view.
	ScrollSettle time.Duration `mapstructure:"scroll_settle" yaml:"scroll_settle"`
}

// DetectionConfig tunes the condition engine.
type DetectionConfig struct {
	// WaitTimeout is the default bound for polled existence checks.
	WaitTimeout  time.Duration `mapstructure:"wait_timeout" yaml:"wait_timeout"`
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var raw rawConfig
	if err := v.Unmarshal(&raw); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return raw.config()
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "ventriloquist")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Session --
	v.SetDefault("session.idle_timeout", "3m")
	v.SetDefault("session.probe_timeout", "5s")
	v.SetDefault("session.reconnect_timeout", "15s")
	v.SetDefault("session.close_timeout", "10s")

	// -- Network --
	v.SetDefault("network.connect_timeout", "30s")
	v.SetDefault("network.navigation_timeout", "60s")
	v.SetDefault("network.post_load_wait", "2s")
	v.SetDefault("network.connect_rate_per_minute", 30.0)

	// -- Interaction --
	v.SetDefault("interaction.click.timeout", "10s")
	v.SetDefault("interaction.click.retries", 2)
	v.SetDefault("interaction.click.retry_delay", "1s")
	v.SetDefault("interaction.form.retry_enabled", true)
	v.SetDefault("interaction.form.max_retries", 2)
	v.SetDefault("interaction.form.retry_delay", "1s")
	v.SetDefault("interaction.form.submit_wait", "2s")
	v.SetDefault("interaction.scroll_settle", "500ms")

	// -- Detection --
	v.SetDefault("detection.wait_timeout", "10s")
	v.SetDefault("detection.poll_interval", "250ms")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var raw rawConfig
	if err := v.Unmarshal(&raw); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	cfg := raw.config()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.session.IdleTimeout <= 0 {
		return fmt.Errorf("session.idle_timeout must be a positive duration")
	}
	if c.interaction.Click.Retries < 0 {
		return fmt.Errorf("interaction.click.retries must not be negative")
	}
	if c.interaction.Form.MaxRetries < 0 {
		return fmt.Errorf("interaction.form.max_retries must not be negative")
	}
	if c.detection.PollInterval <= 0 {
		return fmt.Errorf("detection.poll_interval must be a positive duration")
	}
	return nil
}
