package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Logging LoggingConfig `yaml:"logging"`
	Runtime RuntimeConfig `yaml:"runtime"`
	Script  ScriptConfig  `yaml:"script"`
}

type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is text or json.
	Format string `yaml:"format"`
}

type RuntimeConfig struct {
	Timeout     string `yaml:"timeout"`      // e.g. "30s"; "0" disables
	MemoryLimit string `yaml:"memory_limit"` // e.g. "256MiB"; empty means no limit
	DiskCache   bool   `yaml:"disk_cache"`
	CacheDir    string `yaml:"cache_dir"`
}

// ScriptConfig drives the per-frame loop for JavaScript guests.
type ScriptConfig struct {
	FrameRate int    `yaml:"frame_rate"`
	FrameFunc string `yaml:"frame_func"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{
		Runtime: RuntimeConfig{DiskCache: true},
		Script:  ScriptConfig{FrameRate: 60},
	}
	applyDefaults(cfg)
	return cfg
}

// Load reads the YAML file at path, applies HEADLESS_* environment
// overrides and validates the result. An empty path starts from Default.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if cfg, err = parse(b); err != nil {
			return nil, err
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromBytes loads configuration from bytes without applying environment
// overrides. This is intended for testing where env vars should not interfere.
func LoadFromBytes(data []byte) (*Config, error) {
	cfg, err := parse(data)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parse(data []byte) (*Config, error) {
	// Fields absent from the document keep their defaults, so an explicit
	// frame_rate: 0 disables the frame loop.
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "warn"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Runtime.Timeout == "" {
		cfg.Runtime.Timeout = "0"
	}
	if cfg.Script.FrameFunc == "" {
		cfg.Script.FrameFunc = "__frame"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HEADLESS_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("HEADLESS_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("HEADLESS_TIMEOUT"); v != "" {
		cfg.Runtime.Timeout = v
	}
	if v := os.Getenv("HEADLESS_MEMORY_LIMIT"); v != "" {
		cfg.Runtime.MemoryLimit = v
	}
	if v := os.Getenv("HEADLESS_CACHE_DIR"); v != "" {
		cfg.Runtime.CacheDir = v
	}
	if v := os.Getenv("HEADLESS_FRAME_RATE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Script.FrameRate = n
		}
	}
}

// Validate checks field values. Callers that change a loaded Config, such
// as flag overrides, should validate it again.
func (cfg *Config) Validate() error {
	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid logging.level %q", cfg.Logging.Level)
	}
	switch strings.ToLower(cfg.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("invalid logging.format %q (expected text or json)", cfg.Logging.Format)
	}
	if _, err := cfg.Runtime.TimeoutDuration(); err != nil {
		return err
	}
	if _, err := cfg.Runtime.MemoryLimitBytes(); err != nil {
		return err
	}
	if cfg.Script.FrameRate < 0 || cfg.Script.FrameRate > 1000 {
		return fmt.Errorf("invalid script.frame_rate %d (expected 0-1000)", cfg.Script.FrameRate)
	}
	return nil
}

// TimeoutDuration parses Timeout. "0" means no timeout.
func (r RuntimeConfig) TimeoutDuration() (time.Duration, error) {
	if r.Timeout == "" || r.Timeout == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(r.Timeout)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid runtime.timeout %q", r.Timeout)
	}
	return d, nil
}

// MemoryLimitBytes parses MemoryLimit. Empty means no limit.
func (r RuntimeConfig) MemoryLimitBytes() (int64, error) {
	if strings.TrimSpace(r.MemoryLimit) == "" {
		return 0, nil
	}
	n, err := ParseByteSize(r.MemoryLimit)
	if err != nil {
		return 0, fmt.Errorf("invalid runtime.memory_limit: %w", err)
	}
	return n, nil
}

// FrameInterval is the delay between frame callbacks, or zero when the
// frame loop is disabled.
func (s ScriptConfig) FrameInterval() time.Duration {
	if s.FrameRate <= 0 {
		return 0
	}
	return time.Second / time.Duration(s.FrameRate)
}
