// Package config provides YAML configuration loading with validation and
// environment variable substitution for the sentinel daemon.
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level sentinel configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server" json:"server"`
	Logging  LoggingConfig  `yaml:"logging" json:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics" json:"metrics"`
	Admin    AdminConfig    `yaml:"admin" json:"admin"`
	Breakers BreakerConfig  `yaml:"breakers" json:"breakers"`
	Sentinel SentinelConfig `yaml:"sentinel" json:"sentinel"`

	// Warnings holds non-fatal config issues detected during loading.
	// Stored on the Config itself (not a package-level var) so it is
	// safe to call Load concurrently from the hot-reload goroutine.
	Warnings []string `yaml:"-" json:"-"`
}

// ServerConfig holds HTTP server settings for the ops surface.
type ServerConfig struct {
	Host            string        `yaml:"host" json:"host"`
	Port            int           `yaml:"port" json:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" json:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
	TLS             TLSConfig     `yaml:"tls" json:"tls"`
}

// TLSConfig holds TLS termination settings.
type TLSConfig struct {
	Enabled    bool   `yaml:"enabled" json:"enabled"`
	CertFile   string `yaml:"cert_file" json:"cert_file"`
	KeyFile    string `yaml:"key_file" json:"key_file"`
	MinVersion string `yaml:"min_version" json:"min_version"` // "1.2" or "1.3"; default: "1.2"
}

// LoggingConfig holds log output and rotation settings.
type LoggingConfig struct {
	Level      string `yaml:"level" json:"level"`             // "debug", "info", "warn", "error"; default: "info"
	Format     string `yaml:"format" json:"format"`           // "json" or "text"; default: "json"
	Output     string `yaml:"output" json:"output"`           // "stdout", "stderr", or file path; default: "stdout"
	MaxSizeMB  int    `yaml:"max_size_mb" json:"max_size_mb"` // max log file size before rotation; default: 100
	MaxBackups int    `yaml:"max_backups" json:"max_backups"` // number of rotated files to keep; default: 5
	MaxAgeDays int    `yaml:"max_age_days" json:"max_age_days"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
// Enabled defaults to true; set to false to disable metrics.
type MetricsConfig struct {
	Enabled *bool  `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
}

// IsEnabled returns whether metrics are enabled (defaults to true).
func (m MetricsConfig) IsEnabled() bool {
	if m.Enabled == nil {
		return true
	}
	return *m.Enabled
}

// AdminConfig holds admin API settings. The reset endpoint additionally
// requires a bearer token when TokenSecret is set.
type AdminConfig struct {
	Enabled       bool     `yaml:"enabled" json:"enabled"`           // default: false
	IPAllowlist   []string `yaml:"ip_allowlist" json:"ip_allowlist"` // CIDR notation
	TokenSecret   string   `yaml:"token_secret" json:"token_secret"`
	TokenIssuer   string   `yaml:"token_issuer" json:"token_issuer"`     // default: "sentineld"
	TokenAudience string   `yaml:"token_audience" json:"token_audience"` // default: "sentinel-admin"
}

// BreakerConfig holds the circuit breaker settings applied to every watched
// dependency unless overridden per dependency.
type BreakerConfig struct {
	FailureThreshold int           `yaml:"failure_threshold" json:"failure_threshold"`
	SuccessThreshold int           `yaml:"success_threshold" json:"success_threshold"`
	RecoveryTimeout  time.Duration `yaml:"recovery_timeout" json:"recovery_timeout"`
}

// SentinelConfig holds the dependency watch list and probe pacing.
type SentinelConfig struct {
	// MaxProbeRate caps probes per second across all dependencies.
	// 0 disables the cap.
	MaxProbeRate float64            `yaml:"max_probe_rate" json:"max_probe_rate"`
	Dependencies []DependencyConfig `yaml:"dependencies" json:"dependencies"`
}

// DependencyConfig describes one downstream dependency to watch. The breaker
// override fields are pointers so an unset field inherits the defaults.
type DependencyConfig struct {
	Name     string        `yaml:"name" json:"name"`
	Probe    string        `yaml:"probe" json:"probe"` // tcp://host:port, http://... or https://...
	Interval time.Duration `yaml:"interval" json:"interval"`
	Timeout  time.Duration `yaml:"timeout" json:"timeout"`

	FailureThreshold *int           `yaml:"failure_threshold" json:"failure_threshold,omitempty"`
	SuccessThreshold *int           `yaml:"success_threshold" json:"success_threshold,omitempty"`
	RecoveryTimeout  *time.Duration `yaml:"recovery_timeout" json:"recovery_timeout,omitempty"`
}

// BreakerSettings returns the effective breaker settings for the dependency,
// starting from defaults and applying any per-dependency overrides.
func (d DependencyConfig) BreakerSettings(defaults BreakerConfig) BreakerConfig {
	out := defaults
	if d.FailureThreshold != nil {
		out.FailureThreshold = *d.FailureThreshold
	}
	if d.SuccessThreshold != nil {
		out.SuccessThreshold = *d.SuccessThreshold
	}
	if d.RecoveryTimeout != nil {
		out.RecoveryTimeout = *d.RecoveryTimeout
	}
	return out
}

var envVarRe = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns in s with the corresponding
// environment variable value.
func expandEnvVars(s string) string {
	return envVarRe.ReplaceAllStringFunc(s, func(match string) string {
		key := match[2 : len(match)-1]
		if val, ok := os.LookupEnv(key); ok {
			return val
		}
		return match
	})
}

// Load reads and parses a YAML configuration file, applies environment
// variable substitution, sets defaults, and validates the result.
// Warnings are stored on cfg.Warnings (goroutine-safe, no package-level state).
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	cfg, err := LoadFromBytes(data)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromBytes parses configuration from raw YAML bytes. Useful for testing.
func LoadFromBytes(data []byte) (*Config, error) {
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	cfg.Warnings = collectWarnings(&cfg)

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 9410
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 10 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 10 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 15 * time.Second
	}
	if cfg.Server.TLS.Enabled && cfg.Server.TLS.MinVersion == "" {
		cfg.Server.TLS.MinVersion = "1.2"
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
	if cfg.Logging.MaxSizeMB == 0 {
		cfg.Logging.MaxSizeMB = 100
	}
	if cfg.Logging.MaxBackups == 0 {
		cfg.Logging.MaxBackups = 5
	}
	if cfg.Logging.MaxAgeDays == 0 {
		cfg.Logging.MaxAgeDays = 30
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	// Admin token defaults
	if cfg.Admin.TokenIssuer == "" {
		cfg.Admin.TokenIssuer = "sentineld"
	}
	if cfg.Admin.TokenAudience == "" {
		cfg.Admin.TokenAudience = "sentinel-admin"
	}

	// Breaker defaults
	if cfg.Breakers.FailureThreshold == 0 {
		cfg.Breakers.FailureThreshold = 3
	}
	if cfg.Breakers.SuccessThreshold == 0 {
		cfg.Breakers.SuccessThreshold = 2
	}
	if cfg.Breakers.RecoveryTimeout == 0 {
		cfg.Breakers.RecoveryTimeout = 100 * time.Millisecond
	}

	for i := range cfg.Sentinel.Dependencies {
		if cfg.Sentinel.Dependencies[i].Interval == 0 {
			cfg.Sentinel.Dependencies[i].Interval = 15 * time.Second
		}
		if cfg.Sentinel.Dependencies[i].Timeout == 0 {
			cfg.Sentinel.Dependencies[i].Timeout = 3 * time.Second
		}
	}
}

// ValidLogLevels are the accepted logging.level strings.
var ValidLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

func validate(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", cfg.Server.Port)
	}

	// TLS validation
	if cfg.Server.TLS.Enabled {
		if cfg.Server.TLS.CertFile == "" {
			return fmt.Errorf("server.tls.cert_file is required when TLS is enabled")
		}
		if cfg.Server.TLS.KeyFile == "" {
			return fmt.Errorf("server.tls.key_file is required when TLS is enabled")
		}
		if cfg.Server.TLS.MinVersion != "1.2" && cfg.Server.TLS.MinVersion != "1.3" {
			return fmt.Errorf("server.tls.min_version must be \"1.2\" or \"1.3\", got %q", cfg.Server.TLS.MinVersion)
		}
	}

	// Logging validation
	if !ValidLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" && cfg.Logging.Format != "text" {
		return fmt.Errorf("logging.format must be \"json\" or \"text\", got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stdout" && cfg.Logging.Output != "stderr" {
		if cfg.Logging.MaxSizeMB < 1 {
			return fmt.Errorf("logging.max_size_mb must be positive when output is a file path")
		}
	}

	// Admin validation
	if cfg.Admin.Enabled {
		if len(cfg.Admin.IPAllowlist) == 0 {
			return fmt.Errorf("admin.ip_allowlist is required when admin is enabled")
		}
		for i, cidr := range cfg.Admin.IPAllowlist {
			if _, _, err := net.ParseCIDR(cidr); err != nil {
				return fmt.Errorf("admin.ip_allowlist[%d]: invalid CIDR %q: %w", i, cidr, err)
			}
		}
	}

	// Breaker validation
	if err := validateBreaker(cfg.Breakers, "breakers"); err != nil {
		return err
	}

	if cfg.Sentinel.MaxProbeRate < 0 {
		return fmt.Errorf("sentinel.max_probe_rate must be non-negative")
	}

	if len(cfg.Sentinel.Dependencies) == 0 {
		return fmt.Errorf("at least one dependency must be configured under sentinel.dependencies")
	}

	seen := make(map[string]bool)
	for i, d := range cfg.Sentinel.Dependencies {
		prefix := fmt.Sprintf("sentinel.dependencies[%d]", i)
		if d.Name == "" {
			return fmt.Errorf("%s.name is required", prefix)
		}
		if seen[d.Name] {
			return fmt.Errorf("duplicate dependency name: %s", d.Name)
		}
		seen[d.Name] = true

		if d.Probe == "" {
			return fmt.Errorf("%s.probe is required", prefix)
		}
		u, err := url.Parse(d.Probe)
		if err != nil {
			return fmt.Errorf("%s.probe: invalid URL: %w", prefix, err)
		}
		switch u.Scheme {
		case "http", "https":
			if u.Host == "" {
				return fmt.Errorf("%s.probe: host is required", prefix)
			}
		case "tcp":
			if _, _, err := net.SplitHostPort(u.Host); err != nil {
				return fmt.Errorf("%s.probe: tcp probes require host:port, got %q", prefix, u.Host)
			}
		default:
			return fmt.Errorf("%s.probe: scheme must be tcp, http, or https, got %q", prefix, u.Scheme)
		}

		if d.Interval <= 0 {
			return fmt.Errorf("%s.interval must be positive", prefix)
		}
		if d.Timeout <= 0 {
			return fmt.Errorf("%s.timeout must be positive", prefix)
		}
		if err := validateBreaker(d.BreakerSettings(cfg.Breakers), prefix); err != nil {
			return err
		}
	}

	return nil
}

func validateBreaker(b BreakerConfig, prefix string) error {
	if b.FailureThreshold < 1 {
		return fmt.Errorf("%s.failure_threshold must be positive", prefix)
	}
	if b.SuccessThreshold < 1 {
		return fmt.Errorf("%s.success_threshold must be positive", prefix)
	}
	if b.RecoveryTimeout < 0 {
		return fmt.Errorf("%s.recovery_timeout must be non-negative", prefix)
	}
	return nil
}

func collectWarnings(cfg *Config) []string {
	var warnings []string
	if cfg.Admin.TokenSecret != "" && strings.Contains(cfg.Admin.TokenSecret, "${") {
		warnings = append(warnings, "admin.token_secret contains unresolved environment variable")
	}
	for _, d := range cfg.Sentinel.Dependencies {
		if d.Timeout >= d.Interval {
			warnings = append(warnings, fmt.Sprintf("dependency %q: probe timeout %s is not below interval %s; ticks may overlap", d.Name, d.Timeout, d.Interval))
		}
	}
	return warnings
}
