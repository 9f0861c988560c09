// Package config loads the gateway configuration from a YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/joeshaw/envdecode"
	"gopkg.in/yaml.v3"

	"github.com/FreePeak/golang-mcp-gateway/internal/infrastructure/logging"
)

// Defaults applied when neither the file nor the environment set a value.
const (
	DefaultAddr            = ":8080"
	DefaultShutdownTimeout = 10 * time.Second
	DefaultStreamBuffer    = 64
)

// Transport names accepted in backend definitions.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
	TransportSSE   = "sse"
)

// Config is the root configuration.
type Config struct {
	Server   ServerConfig    `yaml:"server"`
	Logging  LoggingConfig   `yaml:"logging"`
	Gateway  GatewayConfig   `yaml:"gateway"`
	Backends []BackendConfig `yaml:"backends"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr               string        `yaml:"addr"`
	AllowedOrigins     []string      `yaml:"allowed_origins"`
	ShutdownTimeoutRaw string        `yaml:"shutdown_timeout"`
	ShutdownTimeout    time.Duration `yaml:"-"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Format      string `yaml:"format"` // json or console
	Development bool   `yaml:"development"`
}

// GatewayConfig controls what each gateway session announces.
type GatewayConfig struct {
	Name         string `yaml:"name"`
	Version      string `yaml:"version"`
	Instructions string `yaml:"instructions"`
	StreamBuffer int    `yaml:"stream_buffer"`
}

// BackendConfig describes one downstream MCP server. Its position in the
// backends list is its server index.
type BackendConfig struct {
	Name       string            `yaml:"name"`
	Transport  string            `yaml:"transport"`
	Command    string            `yaml:"command"`
	Args       []string          `yaml:"args"`
	Env        map[string]string `yaml:"env"`
	Endpoint   string            `yaml:"endpoint"`
	Headers    map[string]string `yaml:"headers"`
	MaxRetries int               `yaml:"max_retries"`
	TimeoutRaw string            `yaml:"timeout"`
	Timeout    time.Duration     `yaml:"-"`
}

// Env holds the environment overrides.
type Env struct {
	Addr       string `env:"MCP_GATEWAY_ADDR"`
	LogLevel   string `env:"MCP_GATEWAY_LOG_LEVEL"`
	ConfigPath string `env:"MCP_GATEWAY_CONFIG"`
}

// Default returns a configuration with no backends.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads the YAML file at path, expands ${VAR} references and validates
// the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates YAML configuration content.
func Parse(data []byte) (*Config, error) {
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

// LoadFromEnv reads the environment, loads the file named by
// MCP_GATEWAY_CONFIG when set, and applies the remaining overrides.
func LoadFromEnv() (*Config, error) {
	env, err := ReadEnv()
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if env.ConfigPath != "" {
		if cfg, err = Load(env.ConfigPath); err != nil {
			return nil, err
		}
	}
	cfg.ApplyEnv(env)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// ReadEnv decodes the MCP_GATEWAY_* variables.
func ReadEnv() (Env, error) {
	var env Env
	if err := envdecode.Decode(&env); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Env{}, fmt.Errorf("reading environment: %w", err)
	}
	return env, nil
}

// ApplyEnv overrides file values with the non-empty environment values.
func (c *Config) ApplyEnv(env Env) {
	if env.Addr != "" {
		c.Server.Addr = env.Addr
	}
	if env.LogLevel != "" {
		c.Logging.Level = env.LogLevel
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultAddr
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if c.Logging.Level == "" {
		c.Logging.Level = string(logging.InfoLevel)
	}
	if c.Gateway.StreamBuffer == 0 {
		c.Gateway.StreamBuffer = DefaultStreamBuffer
	}
	for i := range c.Backends {
		if c.Backends[i].Transport == "" {
			c.Backends[i].Transport = TransportStdio
		}
	}
}

// expandEnvVars replaces ${VAR} with the value of VAR, or nothing when unset.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(re.FindStringSubmatch(match)[1])
	})
}

func parseDurations(cfg *Config) error {
	var err error
	if cfg.Server.ShutdownTimeoutRaw != "" {
		cfg.Server.ShutdownTimeout, err = time.ParseDuration(cfg.Server.ShutdownTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing shutdown_timeout %q: %w", cfg.Server.ShutdownTimeoutRaw, err)
		}
	}
	for i := range cfg.Backends {
		b := &cfg.Backends[i]
		if b.TimeoutRaw == "" {
			continue
		}
		b.Timeout, err = time.ParseDuration(b.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing timeout %q of backend %q: %w", b.TimeoutRaw, b.Name, err)
		}
	}
	return nil
}

// Validate reports the first problem found in the configuration.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Server.ShutdownTimeout < 0 {
		return fmt.Errorf("server.shutdown_timeout cannot be negative")
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	switch c.Logging.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}
	if c.Gateway.StreamBuffer < 0 {
		return fmt.Errorf("gateway.stream_buffer cannot be negative")
	}

	seen := make(map[string]int, len(c.Backends))
	for i, b := range c.Backends {
		if b.Name == "" {
			return fmt.Errorf("backends[%d].name is required", i)
		}
		if prev, dup := seen[b.Name]; dup {
			return fmt.Errorf("backends[%d].name %q duplicates backends[%d]", i, b.Name, prev)
		}
		seen[b.Name] = i

		switch b.Transport {
		case TransportStdio:
			if b.Command == "" {
				return fmt.Errorf("backends[%d] (%s): command is required for stdio", i, b.Name)
			}
		case TransportHTTP, TransportSSE:
			if b.Endpoint == "" {
				return fmt.Errorf("backends[%d] (%s): endpoint is required for %s", i, b.Name, b.Transport)
			}
		default:
			return fmt.Errorf("backends[%d] (%s): unknown transport %q", i, b.Name, b.Transport)
		}
		if b.Timeout < 0 {
			return fmt.Errorf("backends[%d] (%s): timeout cannot be negative", i, b.Name)
		}
	}
	return nil
}

// LoggerConfig converts the logging section into a logging.Config.
func (c *Config) LoggerConfig() logging.Config {
	cfg := logging.DefaultConfig()
	if c.Logging.Development {
		cfg = logging.DevelopmentConfig()
	}
	if level, err := logging.ParseLevel(c.Logging.Level); err == nil {
		cfg.Level = level
	}
	if c.Logging.Format != "" {
		cfg.Encoding = c.Logging.Format
	}
	return cfg
}
