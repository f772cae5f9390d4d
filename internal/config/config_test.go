package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Source.Driver != DriverMemory {
		t.Errorf("driver = %q, want %q", cfg.Source.Driver, DriverMemory)
	}
	if cfg.Cache.Enabled() {
		t.Error("cache should be disabled without REDIS_ADDR")
	}
	if cfg.Report.TopProducts != 10 {
		t.Errorf("top products = %d, want 10", cfg.Report.TopProducts)
	}
	if got := cfg.Address(); got != "localhost:8084" {
		t.Errorf("Address() = %q", got)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SOURCE_DRIVER", "SQLite")
	t.Setenv("SOURCE_DSN", "/tmp/reports.db")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REPORT_CACHE_TTL", "90s")
	t.Setenv("REPORT_TOP_PRODUCTS", "25")
	t.Setenv("SECURITY_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Source.Driver != DriverSQLite {
		t.Errorf("driver = %q", cfg.Source.Driver)
	}
	if !cfg.Cache.Enabled() || cfg.Cache.TTL != 90*time.Second {
		t.Errorf("cache = %+v", cfg.Cache)
	}
	if cfg.Report.TopProducts != 25 {
		t.Errorf("top products = %d", cfg.Report.TopProducts)
	}
	if len(cfg.Security.AllowedOrigins) != 2 || cfg.Security.AllowedOrigins[1] != "https://b.example" {
		t.Errorf("allowed origins = %v", cfg.Security.AllowedOrigins)
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	file := `
server:
  port: 9000
  write_timeout: 45s
source:
  driver: postgres
  dsn: postgres://reports@localhost/shop
report:
  timeout: 5s
logger:
  level: debug
  format: text
`
	if err := os.WriteFile(path, []byte(file), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("SERVER_PORT", "9100")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9100 {
		t.Errorf("port = %d, want env override 9100", cfg.Server.Port)
	}
	if cfg.Server.WriteTimeout != 45*time.Second {
		t.Errorf("write timeout = %v", cfg.Server.WriteTimeout)
	}
	if cfg.Server.ReadTimeout != 10*time.Second {
		t.Errorf("read timeout = %v, want default", cfg.Server.ReadTimeout)
	}
	if cfg.Source.Driver != DriverPostgres || cfg.Source.DSN == "" {
		t.Errorf("source = %+v", cfg.Source)
	}
	if cfg.Report.Timeout != 5*time.Second {
		t.Errorf("report timeout = %v", cfg.Report.Timeout)
	}
	if cfg.Logger.Level != "debug" || cfg.Logger.Format != "text" {
		t.Errorf("logger = %+v", cfg.Logger)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"bad port", map[string]string{"SERVER_PORT": "70000"}, "server port"},
		{"unknown driver", map[string]string{"SOURCE_DRIVER": "mysql"}, "invalid source driver"},
		{"sqlite without dsn", map[string]string{"SOURCE_DRIVER": "sqlite"}, "requires SOURCE_DSN"},
		{"bad log level", map[string]string{"LOG_LEVEL": "verbose"}, "invalid log level"},
		{"bad log format", map[string]string{"LOG_FORMAT": "xml"}, "invalid log format"},
		{"zero top products", map[string]string{"REPORT_TOP_PRODUCTS": "0"}, "top products"},
		{"zero cache ttl", map[string]string{"REDIS_ADDR": "localhost:6379", "REPORT_CACHE_TTL": "0s"}, "cache TTL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_MissingConfigFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
