package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/loykin/trailtail/internal/env"
	"github.com/loykin/trailtail/internal/logger"
	"github.com/loykin/trailtail/internal/render"
	"github.com/loykin/trailtail/internal/source/cloudtrail"
	"github.com/loykin/trailtail/internal/summary"
	"github.com/loykin/trailtail/internal/tail"
)

// EnvPrefix is prepended to environment overrides, e.g. TRAILTAIL_TAIL_INTERVAL.
const EnvPrefix = "TRAILTAIL"

// Config represents the top-level TOML structure.
//
//	env_files = [".env.aws"]
//
//	[aws]
//	profile = "dev"
//	region = "eu-west-1"
//
//	[tail]
//	interval = "5s"
//	lookback = "10m"
//
//	[archive]
//	dsn = ["sqlite:///var/lib/trailtail/audit.db"]
type Config struct {
	Env      []string      `toml:"env" mapstructure:"env"`
	EnvFiles []string      `toml:"env_files" mapstructure:"env_files"`
	AWS      AWSConfig     `toml:"aws" mapstructure:"aws"`
	Tail     TailConfig    `toml:"tail" mapstructure:"tail"`
	Columns  ColumnsConfig `toml:"columns" mapstructure:"columns"`
	Log      LogConfig     `toml:"log" mapstructure:"log"`
	Archive  ArchiveConfig `toml:"archive" mapstructure:"archive"`
	Server   ServerConfig  `toml:"server" mapstructure:"server"`
}

type AWSConfig struct {
	Profile  string `toml:"profile" mapstructure:"profile"`
	Region   string `toml:"region" mapstructure:"region"`
	PageSize int    `toml:"page_size" mapstructure:"page_size"`
}

type TailConfig struct {
	Interval     time.Duration `toml:"interval" mapstructure:"interval"`
	Lookback     time.Duration `toml:"lookback" mapstructure:"lookback"`
	QueryTimeout time.Duration `toml:"query_timeout" mapstructure:"query_timeout"`
	MaxFailures  int           `toml:"max_failures" mapstructure:"max_failures"`
	Simple       bool          `toml:"simple" mapstructure:"simple"`
	Location     string        `toml:"location" mapstructure:"location"`
	NoBanner     bool          `toml:"no_banner" mapstructure:"no_banner"`
}

type ColumnsConfig struct {
	Age         int `toml:"age" mapstructure:"age"`
	Source      int `toml:"source" mapstructure:"source"`
	Action      int `toml:"action" mapstructure:"action"`
	Actor       int `toml:"actor" mapstructure:"actor"`
	ActorMax    int `toml:"actor_max" mapstructure:"actor_max"`
	ResourceMax int `toml:"resource_max" mapstructure:"resource_max"`
}

type LogConfig struct {
	Level      string `toml:"level" mapstructure:"level"`
	Format     string `toml:"format" mapstructure:"format"`
	Color      bool   `toml:"color" mapstructure:"color"`
	Timestamps bool   `toml:"timestamps" mapstructure:"timestamps"`
	File       string `toml:"file" mapstructure:"file"`
	MaxSizeMB  int    `toml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool   `toml:"compress" mapstructure:"compress"`
}

type ArchiveConfig struct {
	DSN     []string      `toml:"dsn" mapstructure:"dsn"`
	Timeout time.Duration `toml:"timeout" mapstructure:"timeout"`
}

type ServerConfig struct {
	Listen string `toml:"listen" mapstructure:"listen"`
}

// New returns a viper instance with defaults and environment overrides
// registered. Callers may bind flags to it before calling Load.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// SetDefaults registers every key so environment variables can reach it.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("env", []string{})
	v.SetDefault("env_files", []string{})

	v.SetDefault("aws.profile", "")
	v.SetDefault("aws.region", "")
	v.SetDefault("aws.page_size", cloudtrail.MaxPageSize)

	v.SetDefault("tail.interval", tail.DefaultInterval)
	v.SetDefault("tail.lookback", time.Duration(0))
	v.SetDefault("tail.query_timeout", tail.DefaultQueryTimeout)
	v.SetDefault("tail.max_failures", 0)
	v.SetDefault("tail.simple", false)
	v.SetDefault("tail.location", "Local")
	v.SetDefault("tail.no_banner", false)

	v.SetDefault("columns.age", render.DefaultColumns.Age)
	v.SetDefault("columns.source", render.DefaultColumns.Source)
	v.SetDefault("columns.action", render.DefaultColumns.Action)
	v.SetDefault("columns.actor", render.DefaultColumns.Actor)
	v.SetDefault("columns.actor_max", render.DefaultColumns.ActorMax)
	v.SetDefault("columns.resource_max", summary.DefaultResourceMax)

	v.SetDefault("log.level", string(logger.LevelWarn))
	v.SetDefault("log.format", string(logger.FormatText))
	v.SetDefault("log.color", true)
	v.SetDefault("log.timestamps", false)
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", logger.DefaultMaxSizeMB)
	v.SetDefault("log.max_backups", logger.DefaultMaxBackups)
	v.SetDefault("log.max_age_days", logger.DefaultMaxAgeDays)
	v.SetDefault("log.compress", false)

	v.SetDefault("archive.dsn", []string{})
	v.SetDefault("archive.timeout", tail.DefaultArchiveTimeout)
	v.SetDefault("server.listen", "")
}

// Load reads the optional TOML file at path and decodes the merged
// configuration (flags over environment over file over defaults).
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(filepath.Clean(path))
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &c, nil
}

// LoadFile is Load with a fresh viper instance.
func LoadFile(path string) (*Config, error) {
	c, err := Load(New(), path)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate rejects values the tail cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Tail.Interval <= 0 {
		errs = append(errs, fmt.Errorf("tail.interval must be > 0, got %s", c.Tail.Interval))
	}
	if c.Tail.QueryTimeout <= 0 {
		errs = append(errs, fmt.Errorf("tail.query_timeout must be > 0, got %s", c.Tail.QueryTimeout))
	}
	if c.Tail.Lookback < 0 {
		errs = append(errs, fmt.Errorf("tail.lookback must not be negative, got %s", c.Tail.Lookback))
	}
	if c.Tail.MaxFailures < 0 {
		errs = append(errs, fmt.Errorf("tail.max_failures must not be negative, got %d", c.Tail.MaxFailures))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	cols := map[string]int{
		"columns.age":       c.Columns.Age,
		"columns.source":    c.Columns.Source,
		"columns.action":    c.Columns.Action,
		"columns.actor":     c.Columns.Actor,
		"columns.actor_max": c.Columns.ActorMax,
	}
	for _, k := range []string{"columns.age", "columns.source", "columns.action", "columns.actor", "columns.actor_max"} {
		if cols[k] <= 0 {
			errs = append(errs, fmt.Errorf("%s must be > 0, got %d", k, cols[k]))
		}
	}
	if c.AWS.PageSize < 0 || c.AWS.PageSize > cloudtrail.MaxPageSize {
		errs = append(errs, fmt.Errorf("aws.page_size must be between 0 and %d, got %d", cloudtrail.MaxPageSize, c.AWS.PageSize))
	}
	if c.Archive.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("archive.timeout must be > 0, got %s", c.Archive.Timeout))
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if _, err := logger.ParseFormat(c.Log.Format); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Location resolves tail.location; "Local" and empty mean the system zone.
func (c *Config) Location() (*time.Location, error) {
	switch c.Tail.Location {
	case "", "Local", "local":
		return time.Local, nil
	case "UTC", "utc":
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Tail.Location)
	if err != nil {
		return nil, fmt.Errorf("tail.location: %w", err)
	}
	return loc, nil
}

// RenderColumns returns the line layout.
func (c *Config) RenderColumns() render.Columns {
	return render.Columns{
		Age:      c.Columns.Age,
		Source:   c.Columns.Source,
		Action:   c.Columns.Action,
		Actor:    c.Columns.Actor,
		ActorMax: c.Columns.ActorMax,
	}
}

// TailOptions maps the [tail] and [columns] sections onto loop options.
// Archive, logger and banner are wired by the caller.
func (c *Config) TailOptions() tail.Options {
	return tail.Options{
		Interval:               c.Tail.Interval,
		Lookback:               c.Tail.Lookback,
		QueryTimeout:           c.Tail.QueryTimeout,
		MaxConsecutiveFailures: c.Tail.MaxFailures,
		Simple:                 c.Tail.Simple,
		ResourceMax:            c.Columns.ResourceMax,
		ArchiveTimeout:         c.Archive.Timeout,
	}
}

// SourceOptions maps the [aws] section onto the CloudTrail source.
func (c *Config) SourceOptions() cloudtrail.Options {
	return cloudtrail.Options{
		Profile:  c.AWS.Profile,
		Region:   c.AWS.Region,
		PageSize: int32(c.AWS.PageSize),
	}
}

// Logger maps the [log] section onto the logger package. Invalid values
// fall back to defaults; Validate reports them.
func (c *Config) Logger() logger.Config {
	level, _ := logger.ParseLevel(c.Log.Level)
	format, _ := logger.ParseFormat(c.Log.Format)
	return logger.Config{
		Slog: logger.SlogConfig{
			Level:      level,
			Format:     format,
			Color:      c.Log.Color,
			TimeStamps: c.Log.Timestamps,
		},
		File: logger.FileConfig{
			Path:       c.Log.File,
			MaxSizeMB:  c.Log.MaxSizeMB,
			MaxBackups: c.Log.MaxBackups,
			MaxAgeDays: c.Log.MaxAgeDays,
			Compress:   c.Log.Compress,
		},
	}
}

// Environ merges env_files contents and the env list. Later files override
// earlier ones; the env list overrides all files.
func (c *Config) Environ() (map[string]string, error) {
	layers := make([]env.Var, 0, len(c.EnvFiles)+1)
	for _, p := range c.EnvFiles {
		pairs, err := loadEnvFile(p)
		if err != nil {
			return nil, err
		}
		layers = append(layers, pairs)
	}
	layers = append(layers, env.Parse(c.Env))
	return env.Merge(layers...), nil
}

// ArchiveDSNs returns archive.dsn with ${VAR} references resolved against
// the process environment overlaid with Environ.
func (c *Config) ArchiveDSNs() ([]string, error) {
	m, err := c.Environ()
	if err != nil {
		return nil, err
	}
	return env.ExpandAll(c.Archive.DSN, env.Merge(env.FromOS(), m)), nil
}

// ApplyEnv exports Environ into the process environment so the AWS SDK
// picks up variables such as AWS_PROFILE or AWS_REGION.
func (c *Config) ApplyEnv() error {
	m, err := c.Environ()
	if err != nil {
		return err
	}
	for k, v := range m {
		if err := os.Setenv(k, v); err != nil {
			return fmt.Errorf("set %s: %w", k, err)
		}
	}
	return nil
}

// LoadEnvFile parses a simple .env file and returns a slice of "KEY=VALUE" entries.
func LoadEnvFile(path string) ([]string, error) {
	m, err := loadEnvFile(path)
	if err != nil {
		return nil, err
	}
	return env.Var(m).Pairs(), nil
}

// loadEnvFile parses a simple .env file with KEY=VALUE lines (no export, no quotes). Lines starting with # are ignored.
func loadEnvFile(path string) (map[string]string, error) {
	// Mitigate G304: sanitize user-provided path by cleaning it before use.
	clean := filepath.Clean(path)
	b, err := os.ReadFile(clean)
	if err != nil {
		return nil, err
	}
	m := make(map[string]string)
	for _, line := range strings.Split(string(b), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if i := strings.IndexByte(line, '='); i >= 0 {
			k := strings.TrimSpace(line[:i])
			v := strings.TrimSpace(line[i+1:])
			m[k] = v
		}
	}
	return m, nil
}
