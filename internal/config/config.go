package config

import (
	"context"
	"os"
	"strconv"
	"strings"

	"github.com/brendan.keane/sqlhttp/internal/errors"
	"github.com/brendan.keane/sqlhttp/internal/logger"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Version is reported in the default User-Agent and by the version command.
const Version = "1.0.0"

// Config holds all application configuration
type Config struct {
	// Transport policy
	KeepAlive   bool              `yaml:"keepalive"`
	TimeoutMsec int               `yaml:"timeout_msec"` // 0 keeps the transport default
	Options     map[string]string `yaml:"options"`      // runtime options replayed into new sessions

	// Host database
	Database string `yaml:"database"`

	Logger logger.Config `yaml:"log"`

	// Single request command
	Method         string   `yaml:"-"`
	Headers        []string `yaml:"-"`
	Data           string   `yaml:"-"`
	ContentType    string   `yaml:"-"`
	IncludeHeaders bool     `yaml:"-"`
	Verbose        bool     `yaml:"-"`

	MCP MCPConfig `yaml:"mcp"`
}

// MCPConfig holds MCP-specific configuration
type MCPConfig struct {
	Description string `yaml:"description"` // Server description for LLM context
}

// contextKey is a custom type for context keys
type contextKey string

// configKey is the context key for storing config
const configKey contextKey = "config"

// WithConfig adds config to context
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey, cfg)
}

// FromContext retrieves config from context
func FromContext(ctx context.Context) (*Config, bool) {
	cfg, ok := ctx.Value(configKey).(*Config)
	return cfg, ok
}

// NewConfig creates a Config with default values
func NewConfig() *Config {
	return &Config{
		Database: ":memory:",
		Options:  map[string]string{},
		Logger:   *logger.DefaultConfig(),
		Method:   "GET",
	}
}

// LoadFile merges a YAML configuration file into c
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to read config file").
			WithContext("path", path)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse config file").
			WithContext("path", path)
	}
	if c.Options == nil {
		c.Options = map[string]string{}
	}
	return nil
}

// LoadFromFlags creates a Config from defaults, the optional config file,
// SQLHTTP_* environment variables and command line flags, in that order of
// precedence. Flags a command does not define are ignored.
func LoadFromFlags(flags *pflag.FlagSet) (*Config, error) {
	config := NewConfig()

	path, err := stringFlag(flags, "config")
	if err != nil {
		return nil, err
	}
	if path == "" {
		path = os.Getenv("SQLHTTP_CONFIG")
	}
	if path != "" {
		if err := config.LoadFile(path); err != nil {
			return nil, err
		}
	}

	if err := config.loadEnv(); err != nil {
		return nil, err
	}

	if changed(flags, "keepalive") {
		if config.KeepAlive, err = flags.GetBool("keepalive"); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to get keepalive flag")
		}
	}
	if changed(flags, "timeout-msec") {
		if config.TimeoutMsec, err = flags.GetInt("timeout-msec"); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to get timeout-msec flag")
		}
	}
	if changed(flags, "db") {
		if config.Database, err = flags.GetString("db"); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to get db flag")
		}
	}
	if changed(flags, "log-level") {
		if config.Logger.Level, err = flags.GetString("log-level"); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to get log-level flag")
		}
	}
	if changed(flags, "log-format") {
		if config.Logger.Format, err = flags.GetString("log-format"); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to get log-format flag")
		}
	}
	if changed(flags, "option") {
		opts, err := flags.GetStringArray("option")
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to get option flag")
		}
		for _, opt := range opts {
			name, value, ok := strings.Cut(opt, "=")
			if !ok || strings.TrimSpace(name) == "" {
				return nil, errors.New(errors.ErrorTypeConfig, "option must be NAME=VALUE").
					WithContext("option", opt)
			}
			config.Options[strings.TrimSpace(name)] = value
		}
	}

	// Request command
	if config.Method, err = stringFlagOr(flags, "request", config.Method); err != nil {
		return nil, err
	}
	config.Method = strings.TrimSpace(config.Method)
	if flags.Lookup("header") != nil {
		if config.Headers, err = flags.GetStringArray("header"); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to get header flag")
		}
	}
	if config.Data, err = stringFlagOr(flags, "data", config.Data); err != nil {
		return nil, err
	}
	if config.ContentType, err = stringFlagOr(flags, "content-type", config.ContentType); err != nil {
		return nil, err
	}
	if flags.Lookup("include") != nil {
		if config.IncludeHeaders, err = flags.GetBool("include"); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to get include flag")
		}
	}
	if flags.Lookup("verbose") != nil {
		if config.Verbose, err = flags.GetBool("verbose"); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to get verbose flag")
		}
	}

	if config.MCP.Description, err = stringFlagOr(flags, "mcp-desc", config.MCP.Description); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) loadEnv() error {
	if v := os.Getenv("SQLHTTP_KEEPALIVE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeConfig, "invalid SQLHTTP_KEEPALIVE")
		}
		c.KeepAlive = b
	}
	if v := os.Getenv("SQLHTTP_TIMEOUT_MSEC"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeConfig, "invalid SQLHTTP_TIMEOUT_MSEC")
		}
		c.TimeoutMsec = n
	}
	if v := os.Getenv("SQLHTTP_DATABASE"); v != "" {
		c.Database = v
	}
	if v := os.Getenv("SQLHTTP_LOG_LEVEL"); v != "" {
		c.Logger.Level = v
	}
	if v := os.Getenv("SQLHTTP_MCP_DESCRIPTION"); v != "" {
		c.MCP.Description = v
	}
	return nil
}

func changed(flags *pflag.FlagSet, name string) bool {
	f := flags.Lookup(name)
	return f != nil && f.Changed
}

func stringFlag(flags *pflag.FlagSet, name string) (string, error) {
	if flags.Lookup(name) == nil {
		return "", nil
	}
	v, err := flags.GetString(name)
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrorTypeConfig, "failed to get %s flag", name)
	}
	return v, nil
}

// stringFlagOr returns the flag value when it was set on the command line,
// otherwise the flag default if the command defines it, otherwise fallback.
func stringFlagOr(flags *pflag.FlagSet, name, fallback string) (string, error) {
	f := flags.Lookup(name)
	if f == nil || (!f.Changed && fallback != "") {
		return fallback, nil
	}
	return stringFlag(flags, name)
}

// Validate ensures the configuration is valid
func (c *Config) Validate() error {
	if c.TimeoutMsec < 0 {
		return errors.New(errors.ErrorTypeConfig, "timeout_msec must not be negative").
			WithContext("timeout_msec", c.TimeoutMsec)
	}

	switch c.Logger.Format {
	case "pretty", "json":
	default:
		return errors.New(errors.ErrorTypeConfig, "invalid log format").
			WithContext("format", c.Logger.Format).
			WithContext("valid_formats", []string{"pretty", "json"})
	}

	if c.Database == "" {
		return errors.New(errors.ErrorTypeConfig, "database must not be empty").
			WithContext("suggestion", "use --db or set SQLHTTP_DATABASE")
	}

	return nil
}
