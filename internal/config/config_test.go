package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadFromBytes_Defaults(t *testing.T) {
	yaml := []byte(`
sentinel:
  dependencies:
    - name: "postgres"
      probe: "tcp://127.0.0.1:5432"
`)
	cfg, err := LoadFromBytes(yaml)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 9410 {
		t.Errorf("expected default port 9410, got %d", cfg.Server.Port)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("expected default host 0.0.0.0, got %q", cfg.Server.Host)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("expected default logging info/json, got %s/%s", cfg.Logging.Level, cfg.Logging.Format)
	}
	if cfg.Breakers.FailureThreshold != 3 {
		t.Errorf("expected default failure_threshold 3, got %d", cfg.Breakers.FailureThreshold)
	}
	if cfg.Breakers.SuccessThreshold != 2 {
		t.Errorf("expected default success_threshold 2, got %d", cfg.Breakers.SuccessThreshold)
	}
	if cfg.Breakers.RecoveryTimeout != 100*time.Millisecond {
		t.Errorf("expected default recovery_timeout 100ms, got %v", cfg.Breakers.RecoveryTimeout)
	}
	if !cfg.Metrics.IsEnabled() {
		t.Error("expected metrics enabled by default")
	}
	if cfg.Metrics.Path != "/metrics" {
		t.Errorf("expected default metrics path /metrics, got %q", cfg.Metrics.Path)
	}

	d := cfg.Sentinel.Dependencies[0]
	if d.Interval != 15*time.Second {
		t.Errorf("expected default interval 15s, got %v", d.Interval)
	}
	if d.Timeout != 3*time.Second {
		t.Errorf("expected default timeout 3s, got %v", d.Timeout)
	}
}

func TestLoadFromBytes_FullConfig(t *testing.T) {
	yaml := []byte(`
server:
  host: "127.0.0.1"
  port: 9500
  read_timeout: 5s
  write_timeout: 20s
  shutdown_timeout: 5s
logging:
  level: "debug"
  format: "text"
metrics:
  enabled: true
  path: "/internal/metrics"
admin:
  enabled: true
  ip_allowlist: ["127.0.0.1/32"]
  token_secret: "test-secret"
breakers:
  failure_threshold: 5
  success_threshold: 3
  recovery_timeout: 2s
sentinel:
  max_probe_rate: 10
  dependencies:
    - name: "anthropic"
      probe: "https://api.anthropic.com/"
      interval: 30s
      timeout: 5s
      failure_threshold: 2
    - name: "postgres"
      probe: "tcp://db.internal:5432"
      interval: 5s
      timeout: 1s
`)
	cfg, err := LoadFromBytes(yaml)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 9500 {
		t.Errorf("expected port 9500, got %d", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 5*time.Second {
		t.Errorf("expected read_timeout 5s, got %v", cfg.Server.ReadTimeout)
	}
	if cfg.Admin.TokenSecret != "test-secret" {
		t.Errorf("expected token_secret 'test-secret', got %q", cfg.Admin.TokenSecret)
	}
	if cfg.Admin.TokenIssuer != "sentineld" {
		t.Errorf("expected default token_issuer, got %q", cfg.Admin.TokenIssuer)
	}
	if cfg.Sentinel.MaxProbeRate != 10 {
		t.Errorf("expected max_probe_rate 10, got %v", cfg.Sentinel.MaxProbeRate)
	}
	if len(cfg.Sentinel.Dependencies) != 2 {
		t.Fatalf("expected 2 dependencies, got %d", len(cfg.Sentinel.Dependencies))
	}

	d := cfg.Sentinel.Dependencies[0]
	if d.Name != "anthropic" {
		t.Errorf("expected name anthropic, got %q", d.Name)
	}
	if d.Interval != 30*time.Second {
		t.Errorf("expected interval 30s, got %v", d.Interval)
	}

	// The per-dependency override applies on top of the defaults.
	eff := d.BreakerSettings(cfg.Breakers)
	if eff.FailureThreshold != 2 {
		t.Errorf("expected overridden failure_threshold 2, got %d", eff.FailureThreshold)
	}
	if eff.SuccessThreshold != 3 {
		t.Errorf("expected inherited success_threshold 3, got %d", eff.SuccessThreshold)
	}
	if eff.RecoveryTimeout != 2*time.Second {
		t.Errorf("expected inherited recovery_timeout 2s, got %v", eff.RecoveryTimeout)
	}
}

func TestLoadFromBytes_EnvVarSubstitution(t *testing.T) {
	os.Setenv("TEST_ADMIN_SECRET", "env-secret-value")
	defer os.Unsetenv("TEST_ADMIN_SECRET")

	yaml := []byte(`
admin:
  enabled: true
  ip_allowlist: ["127.0.0.1/32"]
  token_secret: "${TEST_ADMIN_SECRET}"
sentinel:
  dependencies:
    - name: "postgres"
      probe: "tcp://127.0.0.1:5432"
`)
	cfg, err := LoadFromBytes(yaml)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Admin.TokenSecret != "env-secret-value" {
		t.Errorf("expected env var expansion, got %q", cfg.Admin.TokenSecret)
	}
}

func TestLoadFromBytes_UnresolvedEnvVarWarning(t *testing.T) {
	os.Unsetenv("NONEXISTENT_SECRET")

	yaml := []byte(`
admin:
  enabled: true
  ip_allowlist: ["127.0.0.1/32"]
  token_secret: "${NONEXISTENT_SECRET}"
sentinel:
  dependencies:
    - name: "postgres"
      probe: "tcp://127.0.0.1:5432"
`)
	cfg, err := LoadFromBytes(yaml)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	found := false
	for _, w := range cfg.Warnings {
		if strings.Contains(w, "unresolved environment variable") {
			found = true
			break
		}
	}
	if !found {
		t.Error("expected warning about unresolved environment variable")
	}
}

func TestLoadFromBytes_TimeoutAboveIntervalWarning(t *testing.T) {
	yaml := []byte(`
sentinel:
  dependencies:
    - name: "slow"
      probe: "tcp://127.0.0.1:9999"
      interval: 1s
      timeout: 2s
`)
	cfg, err := LoadFromBytes(yaml)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	found := false
	for _, w := range cfg.Warnings {
		if strings.Contains(w, "ticks may overlap") {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("expected overlap warning, got %v", cfg.Warnings)
	}
}

func TestLoadFromBytes_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "missing dependencies",
			yaml: `
sentinel:
  dependencies: []
`,
		},
		{
			name: "invalid port",
			yaml: `
server:
  port: 99999
sentinel:
  dependencies:
    - name: "postgres"
      probe: "tcp://127.0.0.1:5432"
`,
		},
		{
			name: "missing dependency name",
			yaml: `
sentinel:
  dependencies:
    - probe: "tcp://127.0.0.1:5432"
`,
		},
		{
			name: "missing probe",
			yaml: `
sentinel:
  dependencies:
    - name: "postgres"
`,
		},
		{
			name: "duplicate dependency name",
			yaml: `
sentinel:
  dependencies:
    - name: "postgres"
      probe: "tcp://127.0.0.1:5432"
    - name: "postgres"
      probe: "tcp://127.0.0.1:5433"
`,
		},
		{
			name: "probe with file scheme",
			yaml: `
sentinel:
  dependencies:
    - name: "bad"
      probe: "file:///etc/passwd"
`,
		},
		{
			name: "tcp probe without port",
			yaml: `
sentinel:
  dependencies:
    - name: "bad"
      probe: "tcp://dbhost"
`,
		},
		{
			name: "zero failure threshold override",
			yaml: `
sentinel:
  dependencies:
    - name: "postgres"
      probe: "tcp://127.0.0.1:5432"
      failure_threshold: 0
`,
		},
		{
			name: "negative recovery timeout override",
			yaml: `
sentinel:
  dependencies:
    - name: "postgres"
      probe: "tcp://127.0.0.1:5432"
      recovery_timeout: -1s
`,
		},
		{
			name: "negative probe rate",
			yaml: `
sentinel:
  max_probe_rate: -1
  dependencies:
    - name: "postgres"
      probe: "tcp://127.0.0.1:5432"
`,
		},
		{
			name: "admin enabled without allowlist",
			yaml: `
admin:
  enabled: true
sentinel:
  dependencies:
    - name: "postgres"
      probe: "tcp://127.0.0.1:5432"
`,
		},
		{
			name: "admin with invalid CIDR",
			yaml: `
admin:
  enabled: true
  ip_allowlist: ["not-a-cidr"]
sentinel:
  dependencies:
    - name: "postgres"
      probe: "tcp://127.0.0.1:5432"
`,
		},
		{
			name: "bad logging level",
			yaml: `
logging:
  level: "verbose"
sentinel:
  dependencies:
    - name: "postgres"
      probe: "tcp://127.0.0.1:5432"
`,
		},
		{
			name: "tls enabled without cert",
			yaml: `
server:
  tls:
    enabled: true
    key_file: "/tmp/key.pem"
sentinel:
  dependencies:
    - name: "postgres"
      probe: "tcp://127.0.0.1:5432"
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromBytes([]byte(tt.yaml))
			if err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestLoadFromBytes_ProbeSchemeAccepted(t *testing.T) {
	tests := []struct {
		name  string
		probe string
	}{
		{"tcp", "tcp://127.0.0.1:5432"},
		{"http", "http://localhost:3000/healthz"},
		{"https", "https://api.example.com/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			yaml := []byte(`
sentinel:
  dependencies:
    - name: "dep"
      probe: "` + tt.probe + `"
`)
			_, err := LoadFromBytes(yaml)
			if err != nil {
				t.Errorf("expected %s probe to be accepted, got: %v", tt.name, err)
			}
		})
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoad_FromFile(t *testing.T) {
	content := `
sentinel:
  dependencies:
    - name: "redis"
      probe: "tcp://127.0.0.1:6379"
`
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Sentinel.Dependencies[0].Name != "redis" {
		t.Errorf("expected redis, got %q", cfg.Sentinel.Dependencies[0].Name)
	}
}

func TestMetricsConfig_IsEnabled(t *testing.T) {
	var m MetricsConfig
	if !m.IsEnabled() {
		t.Error("expected enabled when unset")
	}

	off := false
	m.Enabled = &off
	if m.IsEnabled() {
		t.Error("expected disabled when explicitly false")
	}
}
