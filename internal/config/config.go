// Package config loads config.yaml from the config directory.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"scuffcommander/pkg/plugin"
)

const (
	// FileName is the config file looked up in the config directory.
	FileName = "config.yaml"
	// EnvPrefix prefixes every environment override, e.g. SCUFF_PORT.
	EnvPrefix = "SCUFF"
	// DirEnv overrides the config directory.
	DirEnv = "SCUFF_CONFIG_DIR"

	appName = "scuffcommander"
)

// Config is the application configuration.
type Config struct {
	Addr           string          `mapstructure:"addr" yaml:"addr" validate:"required"`
	Port           int             `mapstructure:"port" yaml:"port" validate:"min=1,max=65535"`
	ConnectTimeout time.Duration   `mapstructure:"connect_timeout" yaml:"connect_timeout" validate:"gt=0"`
	RequestTimeout time.Duration   `mapstructure:"request_timeout" yaml:"request_timeout" validate:"gt=0"`
	CommandTimeout time.Duration   `mapstructure:"command_timeout" yaml:"command_timeout" validate:"gt=0"`
	ActionsDB      string          `mapstructure:"actions_db" yaml:"actions_db" validate:"required"`
	HistorySize    int             `mapstructure:"history_size" yaml:"history_size" validate:"min=0"`
	Secret         string          `mapstructure:"secret" yaml:"secret,omitempty" validate:"omitempty,hexadecimal,len=64"`
	Plugins        []plugin.Config `mapstructure:"-" yaml:"plugins" validate:"dive"`

	// Dir is the directory the config was loaded from.
	Dir string `mapstructure:"-" yaml:"-"`
}

// ListenAddr is the host:port the HTTP server binds to.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Addr, c.Port)
}

// Default returns the configuration written by "config init".
func Default() *Config {
	return &Config{
		Addr:           "localhost",
		Port:           8080,
		ConnectTimeout: plugin.DefaultConnectTimeout,
		RequestTimeout: plugin.DefaultRequestTimeout,
		CommandTimeout: plugin.DefaultCommandTimeout,
		ActionsDB:      "actions.db",
		HistorySize:    100,
		Plugins: []plugin.Config{
			{Type: plugin.TypeOBS, OBS: &plugin.OBSConfig{Addr: "localhost", Port: 4455}},
			{Type: plugin.TypeVTS, VTS: &plugin.VTSConfig{Addr: "ws://localhost:8001", TokenFile: "vts_token.txt"}},
			{Type: plugin.TypeGeneral},
		},
	}
}

// ResolveDir picks the config directory: flag, then SCUFF_CONFIG_DIR, then
// the user config directory. The directory is created if missing.
func ResolveDir(flag string) (string, error) {
	dir := flag
	if dir == "" {
		dir = os.Getenv(DirEnv)
	}
	if dir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("failed to find user config directory: %w", err)
		}
		dir = filepath.Join(base, appName)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return dir, nil
}

// Loader reads config.yaml from one directory.
type Loader struct {
	configDir string
	logger    *zap.Logger
	validate  *validator.Validate
}

// NewLoader creates a new configuration loader
func NewLoader(configDir string, logger *zap.Logger) *Loader {
	return &Loader{
		configDir: configDir,
		logger:    logger,
		validate:  validator.New(),
	}
}

// Load reads defaults, then config.yaml, then SCUFF_* environment variables.
// A missing config.yaml leaves the defaults without plugins.
func (l *Loader) Load() (*Config, error) {
	l.logger.Info("Loading configuration", zap.String("dir", l.configDir))

	v := viper.New()
	def := Default()
	v.SetDefault("addr", def.Addr)
	v.SetDefault("port", def.Port)
	v.SetDefault("connect_timeout", def.ConnectTimeout)
	v.SetDefault("request_timeout", def.RequestTimeout)
	v.SetDefault("command_timeout", def.CommandTimeout)
	v.SetDefault("actions_db", def.ActionsDB)
	v.SetDefault("history_size", def.HistorySize)
	v.SetDefault("secret", "")

	v.AddConfigPath(l.configDir)
	v.SetConfigName(strings.TrimSuffix(FileName, filepath.Ext(FileName)))
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		l.logger.Warn("No config file found, using defaults", zap.String("dir", l.configDir))
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.Dir = l.configDir

	plugins, err := decodePlugins(v.Get("plugins"))
	if err != nil {
		return nil, err
	}
	cfg.Plugins = plugins

	if err := l.validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := cfg.unsealPasswords(); err != nil {
		return nil, err
	}
	cfg.resolvePaths()

	l.logger.Info("Configuration loaded",
		zap.String("listen", cfg.ListenAddr()),
		zap.Int("plugins", len(cfg.Plugins)))
	return &cfg, nil
}

func decodePlugins(raw any) ([]plugin.Config, error) {
	if raw == nil {
		return nil, nil
	}
	entries, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("plugins must be a list, got %T", raw)
	}

	out := make([]plugin.Config, 0, len(entries))
	for i, entry := range entries {
		var pc plugin.Config
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:           &pc,
			WeaklyTypedInput: true,
			ErrorUnused:      true,
		})
		if err != nil {
			return nil, err
		}
		if err := dec.Decode(entry); err != nil {
			return nil, fmt.Errorf("plugins[%d]: %w", i, err)
		}
		if t, err := plugin.ParseType(string(pc.Type)); err == nil {
			pc.Type = t
		}
		out = append(out, pc)
	}
	return out, nil
}

func (c *Config) unsealPasswords() error {
	if c.Secret == "" {
		return nil
	}
	for i, p := range c.Plugins {
		if p.OBS == nil || p.OBS.Password == "" {
			continue
		}
		plain, err := Unseal(c.Secret, p.OBS.Password)
		if err != nil {
			return fmt.Errorf("plugins[%d]: failed to unseal OBS password: %w", i, err)
		}
		p.OBS.Password = plain
	}
	return nil
}

func (c *Config) resolvePaths() {
	c.ActionsDB = c.Path(c.ActionsDB)
	for _, p := range c.Plugins {
		if p.VTS != nil {
			p.VTS.TokenFile = c.Path(p.VTS.TokenFile)
		}
	}
}

// Path resolves p against the config directory unless it is absolute.
func (c *Config) Path(p string) string {
	if p == "" || filepath.IsAbs(p) || c.Dir == "" {
		return p
	}
	return filepath.Join(c.Dir, p)
}

const redacted = "********"

// Redacted returns a copy of c with the secret and plugin passwords masked.
func (c *Config) Redacted() *Config {
	out := *c
	if out.Secret != "" {
		out.Secret = redacted
	}
	out.Plugins = make([]plugin.Config, len(c.Plugins))
	for i, p := range c.Plugins {
		if p.OBS != nil {
			obs := *p.OBS
			if obs.Password != "" {
				obs.Password = redacted
			}
			p.OBS = &obs
		}
		out.Plugins[i] = p
	}
	return &out
}

// Marshal renders c as config.yaml content.
func Marshal(c *Config) ([]byte, error) {
	return yaml.Marshal(c)
}

// WriteDefault writes the default config.yaml into dir. It refuses to
// overwrite an existing file unless force is set.
func WriteDefault(dir string, force bool) (string, error) {
	path := filepath.Join(dir, FileName)
	if _, err := os.Stat(path); err == nil && !force {
		return path, fmt.Errorf("%s already exists", path)
	}
	data, err := Marshal(Default())
	if err != nil {
		return path, err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return path, fmt.Errorf("failed to write config: %w", err)
	}
	return path, nil
}
