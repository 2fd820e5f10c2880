package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata" // timezone lookups must not depend on the host

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment overrides, e.g. SCHOOL_STATUS_DATA_ROOT
const EnvPrefix = "SCHOOL_STATUS"

// Config represents application configuration
type Config struct {
	Data     DataConfig   `mapstructure:"data" yaml:"data"`
	Output   OutputConfig `mapstructure:"output" yaml:"output"`
	Timezone string       `mapstructure:"timezone" yaml:"timezone"`
	Log      LogConfig    `mapstructure:"log" yaml:"log"`
	Daemon   DaemonConfig `mapstructure:"daemon" yaml:"daemon"`
	Server   ServerConfig `mapstructure:"server" yaml:"server"`
}

// DataConfig locates the calendar documents. When RemoteURL is set documents
// are fetched from it and Root serves as the local fallback.
type DataConfig struct {
	Root        string `mapstructure:"root" yaml:"root"`
	RemoteURL   string `mapstructure:"remote_url" yaml:"remote_url"`
	HTTPTimeout string `mapstructure:"http_timeout" yaml:"http_timeout"`
}

// OutputConfig locates the generated site
type OutputConfig struct {
	Root      string `mapstructure:"root" yaml:"root"`
	StaticDir string `mapstructure:"static_dir" yaml:"static_dir"`
}

// LogConfig represents logging configuration. An empty File logs to the console.
type LogConfig struct {
	File  string `mapstructure:"file" yaml:"file"`
	Level string `mapstructure:"level" yaml:"level"`
}

// DaemonConfig represents daemon mode configuration
type DaemonConfig struct {
	Schedule   string `mapstructure:"schedule" yaml:"schedule"` // cron spec, evaluated in Timezone
	RunOnStart bool   `mapstructure:"run_on_start" yaml:"run_on_start"`
}

// ServerConfig represents the HTTP server configuration
type ServerConfig struct {
	Listen          string `mapstructure:"listen" yaml:"listen"`
	ShutdownTimeout string `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// Default returns the configuration used when no file is present
func Default() *Config {
	return &Config{
		Data: DataConfig{
			Root:        "data",
			HTTPTimeout: "10s",
		},
		Output: OutputConfig{
			Root:      "dist",
			StaticDir: "static",
		},
		Timezone: "America/New_York",
		Log: LogConfig{
			Level: "info",
		},
		Daemon: DaemonConfig{
			Schedule:   "5 0 * * *",
			RunOnStart: true,
		},
		Server: ServerConfig{
			Listen:          ":8080",
			ShutdownTimeout: "10s",
		},
	}
}

// Load loads configuration from file. With an empty configPath the usual
// locations are searched and a missing file falls back to the defaults.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// Set config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.school-status")
		v.AddConfigPath("/etc/school-status")
	}

	// Read environment variables
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.ExpandEnvVars()

	// Validate config
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("data.root", d.Data.Root)
	v.SetDefault("data.remote_url", d.Data.RemoteURL)
	v.SetDefault("data.http_timeout", d.Data.HTTPTimeout)
	v.SetDefault("output.root", d.Output.Root)
	v.SetDefault("output.static_dir", d.Output.StaticDir)
	v.SetDefault("timezone", d.Timezone)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("daemon.schedule", d.Daemon.Schedule)
	v.SetDefault("daemon.run_on_start", d.Daemon.RunOnStart)
	v.SetDefault("server.listen", d.Server.Listen)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Data.Root == "" {
		return fmt.Errorf("data.root is required")
	}
	if c.Data.RemoteURL != "" {
		u, err := url.Parse(c.Data.RemoteURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("data.remote_url must be an http(s) URL, got '%s'", c.Data.RemoteURL)
		}
	}
	if c.Data.HTTPTimeout != "" {
		if _, err := time.ParseDuration(c.Data.HTTPTimeout); err != nil {
			return fmt.Errorf("data.http_timeout is not a duration: %w", err)
		}
	}
	if c.Output.Root == "" {
		return fmt.Errorf("output.root is required")
	}
	if c.Timezone == "" {
		return fmt.Errorf("timezone is required")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("timezone '%s' is not a known location: %w", c.Timezone, err)
	}

	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got '%s'", c.Log.Level)
	}

	if _, err := cron.ParseStandard(c.Daemon.GetSchedule()); err != nil {
		return fmt.Errorf("daemon.schedule is not a valid cron spec: %w", err)
	}

	if c.Server.ShutdownTimeout != "" {
		if _, err := time.ParseDuration(c.Server.ShutdownTimeout); err != nil {
			return fmt.Errorf("server.shutdown_timeout is not a duration: %w", err)
		}
	}

	return nil
}

// Location returns the configured timezone
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone '%s': %w", c.Timezone, err)
	}
	return loc, nil
}

// GetHTTPTimeout returns the remote fetch timeout
func (c *DataConfig) GetHTTPTimeout() time.Duration {
	duration, err := time.ParseDuration(c.HTTPTimeout)
	if err != nil || duration <= 0 {
		return 10 * time.Second
	}
	return duration
}

// GetLevel returns the log level, info by default
func (c *LogConfig) GetLevel() string {
	if c.Level == "" {
		return "info"
	}
	return strings.ToLower(c.Level)
}

// GetSchedule returns the rebuild cron spec, shortly after midnight by default
func (c *DaemonConfig) GetSchedule() string {
	if c.Schedule == "" {
		return "5 0 * * *"
	}
	return c.Schedule
}

// GetListen returns the HTTP listen address
func (c *ServerConfig) GetListen() string {
	if c.Listen == "" {
		return ":8080"
	}
	return c.Listen
}

// GetShutdownTimeout returns how long the server waits for in-flight requests
func (c *ServerConfig) GetShutdownTimeout() time.Duration {
	if c.ShutdownTimeout == "" {
		return 10 * time.Second
	}
	duration, err := time.ParseDuration(c.ShutdownTimeout)
	if err != nil {
		return 10 * time.Second
	}
	return duration
}

// ExpandEnvVars expands environment variables in path settings
func (c *Config) ExpandEnvVars() {
	c.Data.Root = os.ExpandEnv(c.Data.Root)
	c.Data.RemoteURL = os.ExpandEnv(c.Data.RemoteURL)
	c.Output.Root = os.ExpandEnv(c.Output.Root)
	c.Output.StaticDir = os.ExpandEnv(c.Output.StaticDir)
	c.Log.File = os.ExpandEnv(c.Log.File)
}

// WriteDefault writes the default configuration as YAML. An existing file is
// only replaced when force is set.
func WriteDefault(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file %s already exists", path)
		}
	}

	out, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
