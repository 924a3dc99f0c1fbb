// Package config provides configuration types and defaults for vtprobe.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/vtprobe/vtprobe-go/pkg/session"
	"github.com/vtprobe/vtprobe-go/pkg/tag"
)

// EnvPrefix prefixes environment overrides, e.g. VTPROBE_DEVICE_ID.
const EnvPrefix = "VTPROBE"

// ConfigName is the config file base name looked up in the search paths.
const ConfigName = "vtprobe"

// ErrInvalid is returned by Validate.
var ErrInvalid = errors.New("invalid configuration")

// Config holds all configuration options for vtprobe.
type Config struct {
	DeviceID    string `mapstructure:"device_id"`
	TagName     string `mapstructure:"tag_name"`
	ValueType   string `mapstructure:"value_type"`  // byte, int32, int64, float
	Cardinality string `mapstructure:"cardinality"` // single or array
	WriteValue  string `mapstructure:"write_value"`

	OpenTimeout   time.Duration `mapstructure:"open_timeout"`
	PreviewWidth  int           `mapstructure:"preview_width"`
	PreviewHeight int           `mapstructure:"preview_height"`

	// Profile is a simulated HAL profile file. Empty uses the built-in one.
	Profile string `mapstructure:"profile"`

	// EventLog is the .vtlog trace file. Empty disables tracing.
	EventLog string `mapstructure:"event_log"`

	LogLevel string `mapstructure:"log_level"` // debug, info, warn, error

	// DenyPermission simulates the host refusing camera access.
	DenyPermission bool `mapstructure:"deny_permission"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		DeviceID:      session.DefaultDeviceID,
		TagName:       tag.DefaultName,
		ValueType:     "byte",
		Cardinality:   "single",
		WriteValue:    "0",
		OpenTimeout:   session.DefaultOpenTimeout,
		PreviewWidth:  session.DefaultPreviewWidth,
		PreviewHeight: session.DefaultPreviewHeight,
		LogLevel:      "warn",
	}
}

// SetDefaults registers the defaults and environment binding on v.
func SetDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("device_id", d.DeviceID)
	v.SetDefault("tag_name", d.TagName)
	v.SetDefault("value_type", d.ValueType)
	v.SetDefault("cardinality", d.Cardinality)
	v.SetDefault("write_value", d.WriteValue)
	v.SetDefault("open_timeout", d.OpenTimeout)
	v.SetDefault("preview_width", d.PreviewWidth)
	v.SetDefault("preview_height", d.PreviewHeight)
	v.SetDefault("profile", d.Profile)
	v.SetDefault("event_log", d.EventLog)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("deny_permission", d.DenyPermission)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
}

// Load reads the configuration into a Config.
//
// Config lookup order when cfgFile is empty:
//  1. ./vtprobe.yaml
//  2. ~/.config/vtprobe/vtprobe.yaml
//
// A missing config file is not an error. Load returns the file used, if any.
func Load(v *viper.Viper, cfgFile string) (Config, string, error) {
	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(ConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", ConfigName))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return Config{}, "", fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, "", fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, "", err
	}
	return cfg, v.ConfigFileUsed(), nil
}

// Validate checks the configuration.
func (c Config) Validate() error {
	var errs []error
	if _, err := tag.ParseValueType(c.ValueType); err != nil {
		errs = append(errs, fmt.Errorf("value_type: %w", err))
	}
	if _, err := tag.ParseCardinality(c.Cardinality); err != nil {
		errs = append(errs, fmt.Errorf("cardinality: %w", err))
	}
	if strings.ContainsAny(strings.TrimSpace(c.TagName), " \t\r\n") {
		errs = append(errs, fmt.Errorf("tag_name: %w: %q", tag.ErrInvalidName, c.TagName))
	}
	if c.OpenTimeout <= 0 {
		errs = append(errs, fmt.Errorf("open_timeout must be positive, got %s", c.OpenTimeout))
	}
	if c.PreviewWidth <= 0 || c.PreviewHeight <= 0 {
		errs = append(errs, fmt.Errorf("preview size must be positive, got %dx%d", c.PreviewWidth, c.PreviewHeight))
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

// TagSpec returns the configured tag. A blank name falls back to
// tag.DefaultName.
func (c Config) TagSpec() (tag.TagSpec, error) {
	t, err := tag.ParseValueType(c.ValueType)
	if err != nil {
		return tag.TagSpec{}, err
	}
	card, err := tag.ParseCardinality(c.Cardinality)
	if err != nil {
		return tag.TagSpec{}, err
	}
	name := strings.TrimSpace(c.TagName)
	if name == "" {
		name = tag.DefaultName
	}
	return tag.NewTagSpec(name, t, card)
}

// ParseLogLevel parses debug, info, warn or error.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q (use: debug, info, warn, error)", s)
	}
}

// DefaultConfigTemplate returns a commented config file with the defaults.
func DefaultConfigTemplate() string {
	d := Defaults()
	return fmt.Sprintf(`# vtprobe configuration
#
# Every key can be overridden by an environment variable with the
# %s_ prefix, e.g. %s_DEVICE_ID=1.

# Device probed by open and read chars.
device_id: %q

# Tag probed when no target is given.
tag_name: %s
value_type: %s      # byte, int32, int64, float
cardinality: %s   # single, array
write_value: %q

# Bound on waiting for the open/close lock.
open_timeout: %s

preview_width: %d
preview_height: %d

# Simulated HAL profile (YAML). Empty uses the built-in profile.
profile: ""

# Session trace file (.vtlog). Empty disables tracing.
event_log: ""

log_level: %s
`, EnvPrefix, EnvPrefix, d.DeviceID, d.TagName, d.ValueType, d.Cardinality, d.WriteValue,
		d.OpenTimeout, d.PreviewWidth, d.PreviewHeight, d.LogLevel)
}

// WriteDefaultConfig writes DefaultConfigTemplate to path, creating parent
// directories. An existing file is left alone.
func WriteDefaultConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file %s already exists", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(DefaultConfigTemplate()), 0o644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
