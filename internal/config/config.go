// Package config loads the immutable service configuration.
//
// A Config is built once at startup by Load and then passed by value to every
// component constructor; nothing mutates it afterwards.
package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"linesearch/internal/match"
	"linesearch/internal/paths"
)

// EnvPrefix prefixes environment overrides, e.g. LINESEARCH_SERVER_PORT
const EnvPrefix = "LINESEARCH"

// Config represents the complete service configuration
type Config struct {
	Settings SettingsConfig `json:"settings" mapstructure:"settings"`
	Server   ServerConfig   `json:"server" mapstructure:"server"`
	Logging  LoggingConfig  `json:"logging" mapstructure:"logging"`

	// Source is the file the configuration was read from, empty for defaults
	Source string `json:"-" mapstructure:"-"`
}

// SettingsConfig contains dataset and matching configuration
type SettingsConfig struct {
	LinuxPath     string        `json:"linuxpath" mapstructure:"linuxpath"`
	RereadOnQuery bool          `json:"reread_on_query" mapstructure:"reread_on_query"`
	Algorithm     string        `json:"algorithm" mapstructure:"algorithm"`
	Watch         bool          `json:"watch" mapstructure:"watch"`
	WatchDebounce time.Duration `json:"watch_debounce" mapstructure:"watch_debounce"`
}

// ServerConfig contains listener, transport and admission configuration
type ServerConfig struct {
	Host             string        `json:"host" mapstructure:"host"`
	Port             int           `json:"port" mapstructure:"port"`
	SSLEnabled       bool          `json:"ssl_enabled" mapstructure:"ssl_enabled"`
	CertFile         string        `json:"certfile" mapstructure:"certfile"`
	KeyFile          string        `json:"keyfile" mapstructure:"keyfile"`
	BufferSize       int           `json:"buffer_size" mapstructure:"buffer_size"`
	MaxConnections   int           `json:"max_connections" mapstructure:"max_connections"`
	AcceptRate       float64       `json:"accept_rate" mapstructure:"accept_rate"`
	HandshakeTimeout time.Duration `json:"handshake_timeout" mapstructure:"handshake_timeout"`
	ReadTimeout      time.Duration `json:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout     time.Duration `json:"write_timeout" mapstructure:"write_timeout"`
	// FrameGap ends a read that has bytes but no terminator yet. Zero disables it.
	FrameGap         time.Duration `json:"frame_gap" mapstructure:"frame_gap"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level      string `json:"level" mapstructure:"level"`
	Format     string `json:"format" mapstructure:"format"`
	File       string `json:"file" mapstructure:"file"`
	MaxSize    string `json:"max_size" mapstructure:"max_size"`
	MaxBackups int    `json:"max_backups" mapstructure:"max_backups"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		Settings: SettingsConfig{
			LinuxPath:     "./200k.txt",
			RereadOnQuery: true,
			Algorithm:     match.NameLinear,
			Watch:         false,
			WatchDebounce: 250 * time.Millisecond,
		},
		Server: ServerConfig{
			Host:             "localhost",
			Port:             12345,
			SSLEnabled:       false,
			CertFile:         "server.crt",
			KeyFile:          "server.key",
			BufferSize:       1024,
			MaxConnections:   512,
			AcceptRate:       0,
			HandshakeTimeout: 10 * time.Second,
			ReadTimeout:      30 * time.Second,
			WriteTimeout:     10 * time.Second,
			FrameGap:         0,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "human",
			MaxBackups: 3,
		},
	}
}

// setDefaults registers every key with viper so that env overrides and
// Unmarshal see the full key set.
func setDefaults(v *viper.Viper) {
	for key, value := range DefaultConfig().flatten() {
		v.SetDefault(key, value)
	}
}

// flatten returns the configuration as dotted keys, durations as strings.
func (c Config) flatten() map[string]any {
	return map[string]any{
		"settings.linuxpath":       c.Settings.LinuxPath,
		"settings.reread_on_query": c.Settings.RereadOnQuery,
		"settings.algorithm":       c.Settings.Algorithm,
		"settings.watch":           c.Settings.Watch,
		"settings.watch_debounce":  c.Settings.WatchDebounce.String(),
		"server.host":              c.Server.Host,
		"server.port":              c.Server.Port,
		"server.ssl_enabled":       c.Server.SSLEnabled,
		"server.certfile":          c.Server.CertFile,
		"server.keyfile":           c.Server.KeyFile,
		"server.buffer_size":       c.Server.BufferSize,
		"server.max_connections":   c.Server.MaxConnections,
		"server.accept_rate":       c.Server.AcceptRate,
		"server.handshake_timeout": c.Server.HandshakeTimeout.String(),
		"server.read_timeout":      c.Server.ReadTimeout.String(),
		"server.write_timeout":     c.Server.WriteTimeout.String(),
		"server.frame_gap":         c.Server.FrameGap.String(),
		"logging.level":            c.Logging.Level,
		"logging.format":           c.Logging.Format,
		"logging.file":             c.Logging.File,
		"logging.max_size":         c.Logging.MaxSize,
		"logging.max_backups":      c.Logging.MaxBackups,
	}
}

// Tree returns the configuration as nested section maps
func (c Config) Tree() map[string]any {
	tree := map[string]any{}
	for key, value := range c.flatten() {
		section, name, _ := strings.Cut(key, ".")
		m, ok := tree[section].(map[string]any)
		if !ok {
			m = map[string]any{}
			tree[section] = m
		}
		m[name] = value
	}
	return tree
}

// Load reads the configuration from path. An empty path searches the default
// locations and falls back to defaults when no file exists. Environment
// variables override file values.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		if found, ok := paths.FindConfig(); ok {
			path = found
		}
	}

	if path != "" {
		if err := readFile(v, path); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	if path != "" {
		cfg.Source = path
		base := filepath.Dir(path)
		cfg.Settings.LinuxPath = paths.ResolveRelative(base, cfg.Settings.LinuxPath)
		cfg.Server.CertFile = paths.ResolveRelative(base, cfg.Server.CertFile)
		cfg.Server.KeyFile = paths.ResolveRelative(base, cfg.Server.KeyFile)
		cfg.Logging.File = paths.ResolveRelative(base, cfg.Logging.File)
	}

	return cfg, nil
}

func readFile(v *viper.Viper, path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("config file: %w", err)
	}

	if strings.EqualFold(filepath.Ext(path), ".ini") {
		values, err := readINI(path)
		if err != nil {
			return err
		}
		return v.MergeConfigMap(values)
	}

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	return nil
}

// Addr returns the host:port the server binds
func (c Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// MaxFrameSize returns the largest accepted query in bytes
func (c Config) MaxFrameSize() int {
	return c.Server.BufferSize
}

// Validate checks if the configuration is valid
func (c Config) Validate() error {
	if strings.TrimSpace(c.Settings.LinuxPath) == "" {
		return &ConfigError{Field: "settings.linuxpath", Message: "dataset path is required"}
	}
	if _, ok := match.Lookup(c.Settings.Algorithm); !ok {
		return &ConfigError{Field: "settings.algorithm", Message: (&match.UnknownAlgorithmError{Name: c.Settings.Algorithm}).Error()}
	}
	if c.Settings.Watch && c.Settings.RereadOnQuery {
		return &ConfigError{Field: "settings.watch", Message: "watch only applies when reread_on_query is false"}
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return &ConfigError{Field: "server.port", Message: fmt.Sprintf("port %d out of range", c.Server.Port)}
	}
	if c.Server.BufferSize <= 0 {
		return &ConfigError{Field: "server.buffer_size", Message: "must be positive"}
	}
	if c.Server.SSLEnabled && (c.Server.CertFile == "" || c.Server.KeyFile == "") {
		return &ConfigError{Field: "server.certfile", Message: "certfile and keyfile are required when ssl_enabled"}
	}
	if c.Server.MaxConnections < 0 {
		return &ConfigError{Field: "server.max_connections", Message: "must not be negative"}
	}
	if c.Server.AcceptRate < 0 {
		return &ConfigError{Field: "server.accept_rate", Message: "must not be negative"}
	}
	for field, d := range map[string]time.Duration{
		"server.handshake_timeout": c.Server.HandshakeTimeout,
		"server.read_timeout":      c.Server.ReadTimeout,
		"server.write_timeout":     c.Server.WriteTimeout,
		"server.frame_gap":         c.Server.FrameGap,
		"settings.watch_debounce":  c.Settings.WatchDebounce,
	} {
		if d < 0 {
			return &ConfigError{Field: field, Message: "must not be negative"}
		}
	}
	switch c.Logging.Format {
	case "human", "json":
	default:
		return &ConfigError{Field: "logging.format", Message: fmt.Sprintf("unsupported format %q", c.Logging.Format)}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
