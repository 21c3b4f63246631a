package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"kerasbridge/internal/common/fsutil"
)

// Runtime modes.
const (
	RuntimeSubprocess = "subprocess"
	RuntimeMemory     = "memory"
)

// Defaults applied by WithDefaults.
const (
	DefaultAddr            = ":8080"
	DefaultPython          = "python3"
	DefaultDependency      = "tensorflow"
	DefaultMinVersion      = "2.0"
	DefaultStartTimeout    = "60s"
	DefaultShutdownTimeout = "10s"
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "console"
	DefaultMaxBodyBytes    = 1 << 20
	DefaultMaxObjects      = 1024
)

// Config holds runtime parameters for the service.
// Zero values mean "unspecified"; WithDefaults fills them in.
type Config struct {
	Addr string `json:"addr" yaml:"addr" toml:"addr"`
	// Python is the base interpreter; VenvDir, when set, is created from it.
	Python     string `json:"python" yaml:"python" toml:"python"`
	VenvDir    string `json:"venv_dir" yaml:"venv_dir" toml:"venv_dir"`
	Dependency string `json:"dependency" yaml:"dependency" toml:"dependency"`
	MinVersion string `json:"min_version" yaml:"min_version" toml:"min_version"`
	// AutoInstall defaults to true; set false to fail instead of running pip.
	AutoInstall *bool  `json:"auto_install" yaml:"auto_install" toml:"auto_install"`
	SkipInstall bool   `json:"skip_install" yaml:"skip_install" toml:"skip_install"`
	IndexURL    string `json:"index_url" yaml:"index_url" toml:"index_url"`
	// Runtime is "subprocess" or "memory" (dry run, no Python needed).
	Runtime         string   `json:"runtime" yaml:"runtime" toml:"runtime"`
	StartTimeout    string   `json:"start_timeout" yaml:"start_timeout" toml:"start_timeout"`
	ShutdownTimeout string   `json:"shutdown_timeout" yaml:"shutdown_timeout" toml:"shutdown_timeout"`
	Warmup          bool     `json:"warmup" yaml:"warmup" toml:"warmup"`
	LogLevel        string   `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFormat       string   `json:"log_format" yaml:"log_format" toml:"log_format"`
	CORSEnabled     bool     `json:"cors_enabled" yaml:"cors_enabled" toml:"cors_enabled"`
	CORSOrigins     []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`
	MaxBodyBytes    int64    `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`
	MaxObjects      int      `json:"max_objects" yaml:"max_objects" toml:"max_objects"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	p, err := fsutil.ExpandPath(path)
	if err != nil {
		return cfg, err
	}
	b, err := os.ReadFile(p)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(p)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}

// WithDefaults returns a copy with unset fields defaulted and paths expanded.
func (c Config) WithDefaults() (Config, error) {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.Python == "" {
		c.Python = DefaultPython
	}
	if c.Dependency == "" {
		c.Dependency = DefaultDependency
		if c.MinVersion == "" {
			c.MinVersion = DefaultMinVersion
		}
	}
	if c.AutoInstall == nil {
		t := true
		c.AutoInstall = &t
	}
	if c.Runtime == "" {
		c.Runtime = RuntimeSubprocess
	}
	if c.StartTimeout == "" {
		c.StartTimeout = DefaultStartTimeout
	}
	if c.ShutdownTimeout == "" {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = DefaultLogFormat
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if c.MaxObjects <= 0 {
		c.MaxObjects = DefaultMaxObjects
	}
	var err error
	if c.Python, err = fsutil.ExpandPath(c.Python); err != nil {
		return c, err
	}
	if c.VenvDir, err = fsutil.ExpandPath(c.VenvDir); err != nil {
		return c, err
	}
	return c, c.Validate()
}

// Validate checks enumerations and durations.
func (c Config) Validate() error {
	switch c.Runtime {
	case RuntimeSubprocess, RuntimeMemory:
	default:
		return fmt.Errorf("runtime: want %q or %q, got %q", RuntimeSubprocess, RuntimeMemory, c.Runtime)
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("log_format: want console or json, got %q", c.LogFormat)
	}
	for name, v := range map[string]string{"start_timeout": c.StartTimeout, "shutdown_timeout": c.ShutdownTimeout} {
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// StartTimeoutDuration parses StartTimeout; invalid or empty values yield 0.
func (c Config) StartTimeoutDuration() time.Duration { return parseDuration(c.StartTimeout) }

// ShutdownTimeoutDuration parses ShutdownTimeout; invalid or empty values yield 0.
func (c Config) ShutdownTimeoutDuration() time.Duration { return parseDuration(c.ShutdownTimeout) }

func parseDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}

// AutoInstallEnabled reports the effective auto_install value.
func (c Config) AutoInstallEnabled() bool { return c.AutoInstall == nil || *c.AutoInstall }
