// Package config loads the dbmap YAML configuration file.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/koustreak/dbmap/internal/database"
	"github.com/koustreak/dbmap/internal/errs"
	"github.com/koustreak/dbmap/internal/executor"
	"github.com/koustreak/dbmap/internal/filestore"
	"github.com/koustreak/dbmap/internal/logger"
	"go.yaml.in/yaml/v3"
)

// Config is the root of the configuration file.
type Config struct {
	Log            LogConfig      `yaml:"log"`
	Retry          RetryConfig    `yaml:"retry"`
	ConnectTimeout time.Duration  `yaml:"connect_timeout"`
	Servers        []ServerConfig `yaml:"servers"`
	HTTP           HTTPConfig     `yaml:"http"`
	Snapshot       SnapshotConfig `yaml:"snapshot"`
}

// LogConfig maps onto logger.Config.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// RetryConfig maps onto executor.Config.
type RetryConfig struct {
	MaxAttempts    int           `yaml:"max_attempts"`
	Delay          time.Duration `yaml:"delay"`
	MaxDelay       time.Duration `yaml:"max_delay"`
	SettleDelay    time.Duration `yaml:"settle_delay"`
	ReleaseOnFatal bool          `yaml:"release_on_fatal"`
}

// ServerConfig describes one database server to map.
type ServerConfig struct {
	Name      string            `yaml:"name"`
	Dialect   string            `yaml:"dialect"`
	Host      string            `yaml:"host"`
	Port      int               `yaml:"port"`
	User      string            `yaml:"user"`
	Password  string            `yaml:"password"`
	Database  string            `yaml:"database"`
	File      string            `yaml:"file"`
	ClientTag string            `yaml:"client_tag"`
	Options   map[string]string `yaml:"options"`
}

// HTTPConfig configures the schema browser.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// SnapshotConfig configures the object store snapshots are written to.
type SnapshotConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`
	Region    string `yaml:"region"`
	Bucket    string `yaml:"bucket"`
}

// Enabled reports whether a snapshot store is configured.
func (s SnapshotConfig) Enabled() bool { return s.Endpoint != "" }

// Store converts the section into object store settings.
func (s SnapshotConfig) Store() *filestore.Config {
	cfg := filestore.DefaultConfig(s.Endpoint, s.AccessKey, s.SecretKey)
	cfg.UseSSL = s.UseSSL
	cfg.Region = s.Region
	return cfg
}

// Default returns a configuration with every optional field filled in.
func Default() *Config {
	ec := executor.DefaultConfig()
	return &Config{
		Log: LogConfig{Level: "info", Format: "console"},
		Retry: RetryConfig{
			MaxAttempts: ec.MaxAttempts,
			Delay:       ec.Delay,
			MaxDelay:    ec.MaxDelay,
			SettleDelay: ec.SettleDelay,
		},
		ConnectTimeout: 10 * time.Second,
		HTTP:           HTTPConfig{Addr: ":8080"},
		Snapshot:       SnapshotConfig{Bucket: "dbmap-snapshots"},
	}
}

// Load reads, expands, parses and validates the file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, fmt.Sprintf("read config %s", path), err)
	}
	return Parse(data)
}

// Parse decodes data on top of Default and validates the result.
// ${VAR} references are replaced from the environment first.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), cfg); err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "parse config", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks server definitions for problems that would only surface
// at connect time otherwise.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Servers))
	for i, s := range c.Servers {
		if s.Name == "" {
			return errs.New(errs.ErrKindInvalidInput, fmt.Sprintf("servers[%d]: name is required", i))
		}
		key := strings.ToLower(s.Name)
		if seen[key] {
			return errs.New(errs.ErrKindInvalidInput, fmt.Sprintf("servers[%d]: duplicate name %q", i, s.Name))
		}
		seen[key] = true

		if _, err := database.Lookup(s.Dialect); err != nil {
			return errs.Wrap(errs.ErrKindInvalidInput, fmt.Sprintf("server %q", s.Name), err)
		}
		if strings.EqualFold(s.Dialect, "sqlite") {
			if s.File == "" && s.Database == "" {
				return errs.New(errs.ErrKindInvalidInput, fmt.Sprintf("server %q: file is required for sqlite", s.Name))
			}
		} else if s.Host == "" {
			return errs.New(errs.ErrKindInvalidInput, fmt.Sprintf("server %q: host is required", s.Name))
		}
	}
	if c.Retry.MaxAttempts < 0 {
		return errs.New(errs.ErrKindInvalidInput, "retry.max_attempts must not be negative")
	}
	return nil
}

// Server returns the server definition called name, ignoring case.
func (c *Config) Server(name string) (ServerConfig, bool) {
	for _, s := range c.Servers {
		if strings.EqualFold(s.Name, name) {
			return s, true
		}
	}
	return ServerConfig{}, false
}

// Params converts s into connection parameters. timeout applies when the
// server does not set connect_timeout in its options.
func (s ServerConfig) Params(timeout time.Duration) database.Params {
	return database.Params{
		Host:           s.Host,
		Port:           s.Port,
		User:           s.User,
		Password:       s.Password,
		Database:       s.Database,
		File:           s.File,
		ClientTag:      s.ClientTag,
		ConnectTimeout: timeout,
		Options:        s.Options,
	}
}

// Executor converts the retry section into executor settings.
func (r RetryConfig) Executor() executor.Config {
	return executor.Config{
		MaxAttempts:    r.MaxAttempts,
		Delay:          r.Delay,
		MaxDelay:       r.MaxDelay,
		SettleDelay:    r.SettleDelay,
		ReleaseOnFatal: r.ReleaseOnFatal,
	}
}

// Logger converts the log section into logger settings.
func (l LogConfig) Logger() *logger.Config {
	cfg := logger.DefaultConfig()
	if l.Level != "" {
		cfg.Level = l.Level
	}
	if l.Format != "" {
		cfg.Format = l.Format
	}
	return cfg
}

var envRef = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR} with its value; unset variables are left as is.
func expandEnvVars(s string) string {
	return envRef.ReplaceAllStringFunc(s, func(match string) string {
		if val, ok := os.LookupEnv(match[2 : len(match)-1]); ok {
			return val
		}
		return match
	})
}
