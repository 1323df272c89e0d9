// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Browser() BrowserConfig
	Engine() EngineConfig
	Bridge() BridgeConfig
	Socket() SocketConfig
	Server() ServerConfig

	// Browser Setters
	SetBrowserRemoteURL(string)
	SetBrowserHeadless(bool)

	// Socket Setters
	SetSocketPath(string)

	// Server Setters
	SetServerAddr(string)
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	BrowserCfg BrowserConfig `mapstructure:"browser" yaml:"browser"`
	EngineCfg  EngineConfig  `mapstructure:"engine" yaml:"engine"`
	BridgeCfg  BridgeConfig  `mapstructure:"bridge" yaml:"bridge"`
	SocketCfg  SocketConfig  `mapstructure:"socket" yaml:"socket"`
	ServerCfg  ServerConfig  `mapstructure:"server" yaml:"server"`
}

var _ Interface = (*Config)(nil)

func (c *Config) Logger() LoggerConfig   { return c.LoggerCfg }
func (c *Config) Browser() BrowserConfig { return c.BrowserCfg }
func (c *Config) Engine() EngineConfig   { return c.EngineCfg }
func (c *Config) Bridge() BridgeConfig   { return c.BridgeCfg }
func (c *Config) Socket() SocketConfig   { return c.SocketCfg }
func (c *Config) Server() ServerConfig   { return c.ServerCfg }

func (c *Config) SetBrowserRemoteURL(u string) { c.BrowserCfg.RemoteURL = u }
func (c *Config) SetBrowserHeadless(b bool)    { c.BrowserCfg.Headless = b }
func (c *Config) SetSocketPath(p string)       { c.SocketCfg.Path = p }
func (c *Config) SetServerAddr(a string)       { c.ServerCfg.Addr = a }

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

// BrowserConfig describes how to reach the webview.
//
// When RemoteURL is set the manager attaches to an already running webview
// through its remote debugging endpoint (the normal case for an embedded
// application). Otherwise a local Chromium is launched with the remaining
// options, which is mostly useful as a harness.
type BrowserConfig struct {
	RemoteURL       string            `mapstructure:"remote_url" yaml:"remote_url"`
	Headless        bool              `mapstructure:"headless" yaml:"headless"`
	DisableCache    bool              `mapstructure:"disable_cache" yaml:"disable_cache"`
	IgnoreTLSErrors bool              `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	Debug           bool              `mapstructure:"debug" yaml:"debug"`
	Args            []string          `mapstructure:"args" yaml:"args"`
	Viewport        map[string]int    `mapstructure:"viewport" yaml:"viewport"`
	StartURL        string            `mapstructure:"start_url" yaml:"start_url"`
	Windows         map[string]string `mapstructure:"windows" yaml:"windows"`
	TargetTimeout   time.Duration     `mapstructure:"target_timeout" yaml:"target_timeout"`
}

// EngineConfig tunes the element resolution and input engine.
type EngineConfig struct {
	DefaultKeyDelay    time.Duration `mapstructure:"default_key_delay" yaml:"default_key_delay"`
	FocusSettle        time.Duration `mapstructure:"focus_settle" yaml:"focus_settle"`
	PostClearSettle    time.Duration `mapstructure:"post_clear_settle" yaml:"post_clear_settle"`
	LexicalMarker      string        `mapstructure:"lexical_marker" yaml:"lexical_marker"`
	DraftMarker        string        `mapstructure:"draft_marker" yaml:"draft_marker"`
	TextPreviewLength  int           `mapstructure:"text_preview_length" yaml:"text_preview_length"`
	MaxTextSuggestions int           `mapstructure:"max_text_suggestions" yaml:"max_text_suggestions"`
}

// BridgeConfig configures the named event channel between host and guest.
type BridgeConfig struct {
	BufferSize    int           `mapstructure:"buffer_size" yaml:"buffer_size"`
	LookupTimeout time.Duration `mapstructure:"lookup_timeout" yaml:"lookup_timeout"`
	TypingTimeout time.Duration `mapstructure:"typing_timeout" yaml:"typing_timeout"`
}

// SocketConfig configures the local command socket.
type SocketConfig struct {
	Enabled   bool    `mapstructure:"enabled" yaml:"enabled"`
	Path      string  `mapstructure:"path" yaml:"path"`
	RateLimit float64 `mapstructure:"rate_limit" yaml:"rate_limit"`
	Burst     int     `mapstructure:"burst" yaml:"burst"`
}

// ServerConfig configures the HTTP surface (MCP, websocket, health).
type ServerConfig struct {
	Enabled   bool          `mapstructure:"enabled" yaml:"enabled"`
	Addr      string        `mapstructure:"addr" yaml:"addr"`
	JWTSecret string        `mapstructure:"jwt_secret" yaml:"-"`
	TokenTTL  time.Duration `mapstructure:"token_ttl" yaml:"token_ttl"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// DefaultSocketPath is the socket location used when none is configured.
func DefaultSocketPath() string {
	return filepath.Join(os.TempDir(), "webpilot.sock")
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "webpilot")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Browser --
	v.SetDefault("browser.remote_url", "")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.disable_cache", false)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.debug", false)
	v.SetDefault("browser.start_url", "about:blank")
	v.SetDefault("browser.target_timeout", "10s")

	// -- Engine --
	v.SetDefault("engine.default_key_delay", "20ms")
	v.SetDefault("engine.focus_settle", "100ms")
	v.SetDefault("engine.post_clear_settle", "50ms")
	v.SetDefault("engine.lexical_marker", "data-lexical-editor")
	v.SetDefault("engine.draft_marker", `[data-contents="true"]`)
	v.SetDefault("engine.text_preview_length", 100)
	v.SetDefault("engine.max_text_suggestions", 5)

	// -- Bridge --
	v.SetDefault("bridge.buffer_size", 64)
	v.SetDefault("bridge.lookup_timeout", "5s")
	v.SetDefault("bridge.typing_timeout", "30s")

	// -- Socket --
	v.SetDefault("socket.enabled", true)
	v.SetDefault("socket.path", DefaultSocketPath())
	v.SetDefault("socket.rate_limit", 20.0)
	v.SetDefault("socket.burst", 10)

	// -- Server --
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.addr", "127.0.0.1:8765")
	v.SetDefault("server.jwt_secret", "")
	v.SetDefault("server.token_ttl", "24h")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// The signing secret never lives in the config file.
	v.BindEnv("server.jwt_secret", "WEBPILOT_JWT_SECRET")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.EngineCfg.DefaultKeyDelay < 0 {
		return fmt.Errorf("engine.default_key_delay must not be negative")
	}
	if c.EngineCfg.FocusSettle < 0 || c.EngineCfg.PostClearSettle < 0 {
		return fmt.Errorf("engine settle delays must not be negative")
	}
	if c.EngineCfg.LexicalMarker == "" || c.EngineCfg.DraftMarker == "" {
		return fmt.Errorf("engine.lexical_marker and engine.draft_marker are required")
	}
	if c.EngineCfg.TextPreviewLength <= 0 {
		return fmt.Errorf("engine.text_preview_length must be a positive integer")
	}
	if c.BridgeCfg.BufferSize <= 0 {
		return fmt.Errorf("bridge.buffer_size must be a positive integer")
	}
	if c.BridgeCfg.LookupTimeout <= 0 || c.BridgeCfg.TypingTimeout <= 0 {
		return fmt.Errorf("bridge timeouts must be positive durations")
	}
	if err := c.SocketCfg.Validate(); err != nil {
		return fmt.Errorf("socket configuration invalid: %w", err)
	}
	if err := c.ServerCfg.Validate(); err != nil {
		return fmt.Errorf("server configuration invalid: %w", err)
	}
	return nil
}

// Validate checks the socket configuration.
func (s *SocketConfig) Validate() error {
	if !s.Enabled {
		return nil
	}
	if s.Path == "" {
		return fmt.Errorf("path is required when the socket is enabled")
	}
	if s.RateLimit <= 0 || s.Burst <= 0 {
		return fmt.Errorf("rate_limit and burst must be positive")
	}
	return nil
}

// Validate checks the server configuration.
func (s *ServerConfig) Validate() error {
	if !s.Enabled {
		return nil
	}
	if s.Addr == "" {
		return fmt.Errorf("addr is required when the server is enabled")
	}
	if s.JWTSecret != "" && len(s.JWTSecret) < 32 {
		return fmt.Errorf("jwt_secret must be at least 32 bytes. Ensure WEBPILOT_JWT_SECRET is set")
	}
	return nil
}
