// Package config loads and validates application configuration from an
// optional config.yaml plus ZAPI_-prefixed environment variables. Secrets
// (client secret, LLM API key) are only ever read from the environment.
package config

import (
	"fmt"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger      LoggerConfig      `mapstructure:"logger" yaml:"logger"`
	API         APIConfig         `mapstructure:"api" yaml:"api"`
	Browser     BrowserConfig     `mapstructure:"browser" yaml:"browser"`
	Network     NetworkConfig     `mapstructure:"network" yaml:"network"`
	Session     SessionConfig     `mapstructure:"session" yaml:"session"`
	Credentials CredentialsConfig `mapstructure:"credentials" yaml:"credentials"`
	LLM         LLMConfig         `mapstructure:"llm" yaml:"llm"`
}

// LoggerConfig configures the zap logger and its optional rotating file sink.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"` // "console" or "json"
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"` // megabytes
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"` // days
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// APIConfig locates the remote auth and discovery services.
type APIConfig struct {
	AuthBaseURL    string        `mapstructure:"auth_base_url" yaml:"auth_base_url"`
	BaseURL        string        `mapstructure:"base_url" yaml:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	UploadTimeout  time.Duration `mapstructure:"upload_timeout" yaml:"upload_timeout"`
}

// BrowserConfig configures the browser engine.
type BrowserConfig struct {
	Headless        bool     `mapstructure:"headless" yaml:"headless"`
	IgnoreTLSErrors bool     `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	UserAgent       string   `mapstructure:"user_agent" yaml:"user_agent"`
	ExecPath        string   `mapstructure:"exec_path" yaml:"exec_path"`
	Args            []string `mapstructure:"args" yaml:"args"`
}

// NetworkConfig bounds navigation behavior.
type NetworkConfig struct {
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	WaitPolicy        string        `mapstructure:"wait_policy" yaml:"wait_policy"`
}

// SessionConfig configures capture sessions.
type SessionConfig struct {
	AuthMode  string `mapstructure:"auth_mode" yaml:"auth_mode"` // header, cookie, storage
	TempDir   string `mapstructure:"temp_dir" yaml:"temp_dir"`
	OutputDir string `mapstructure:"output_dir" yaml:"output_dir"`
}

// CredentialsConfig carries the service credentials. Environment only.
type CredentialsConfig struct {
	ClientID string `mapstructure:"client_id" yaml:"-"`
	Secret   string `mapstructure:"secret" yaml:"-"`
}

// LLMConfig carries the optional BYOK credential. The key is environment only.
type LLMConfig struct {
	Provider string `mapstructure:"provider" yaml:"provider"`
	Model    string `mapstructure:"model" yaml:"model"`
	APIKey   string `mapstructure:"api_key" yaml:"-"`
}

// SetDefaults initializes default values on a viper instance.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "zapi")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)

	// -- API --
	v.SetDefault("api.auth_base_url", "https://connect.adopt.ai")
	v.SetDefault("api.base_url", "https://api.adopt.ai")
	v.SetDefault("api.request_timeout", "30s")
	v.SetDefault("api.upload_timeout", "60s")

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.exec_path", "")

	// -- Network --
	v.SetDefault("network.navigation_timeout", "30s")
	v.SetDefault("network.wait_policy", "load")

	// -- Session --
	v.SetDefault("session.auth_mode", "header")
	v.SetDefault("session.temp_dir", "")
	v.SetDefault("session.output_dir", "~/.zapi/captures")
}

// NewDefaultConfig returns a configuration populated with defaults only.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)
	cfg, err := NewConfigFromViper(v)
	if err != nil {
		// Defaults always validate.
		panic(fmt.Sprintf("default config invalid: %v", err))
	}
	return cfg
}

// NewConfigFromViper builds and validates a Config from a viper instance.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	// Secrets come from the environment, never the config file.
	v.BindEnv("credentials.client_id", "ZAPI_CLIENT_ID")
	v.BindEnv("credentials.secret", "ZAPI_SECRET")
	v.BindEnv("llm.provider", "ZAPI_LLM_PROVIDER")
	v.BindEnv("llm.model", "ZAPI_LLM_MODEL")
	v.BindEnv("llm.api_key", "ZAPI_LLM_API_KEY")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	expanded, err := homedir.Expand(cfg.Session.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("expand output dir: %w", err)
	}
	cfg.Session.OutputDir = expanded

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations that would fail later in confusing ways.
func (c *Config) Validate() error {
	if c.API.AuthBaseURL == "" {
		return fmt.Errorf("api.auth_base_url cannot be empty")
	}
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url cannot be empty")
	}
	if c.API.RequestTimeout <= 0 {
		return fmt.Errorf("api.request_timeout must be positive")
	}
	if c.API.UploadTimeout <= 0 {
		return fmt.Errorf("api.upload_timeout must be positive")
	}
	if c.Network.NavigationTimeout <= 0 {
		return fmt.Errorf("network.navigation_timeout must be positive")
	}
	switch c.Session.AuthMode {
	case "header", "cookie", "storage":
	default:
		return fmt.Errorf("session.auth_mode must be header, cookie, or storage (got %q)", c.Session.AuthMode)
	}
	switch c.Network.WaitPolicy {
	case "load", "domcontentloaded", "networkidle":
	default:
		return fmt.Errorf("network.wait_policy must be load, domcontentloaded, or networkidle (got %q)", c.Network.WaitPolicy)
	}
	return nil
}
