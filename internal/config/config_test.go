package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadRequiresDSN(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("POSTGRES_DSN", "")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for missing DSN")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("POSTGRES_DSN", "postgres://localhost/chargelink")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddress() != ":8080" {
		t.Fatalf("expected :8080, got %s", cfg.HTTPAddress())
	}
	if cfg.HeartbeatInterval() != 30*time.Second {
		t.Fatalf("expected 30s heartbeat interval, got %s", cfg.HeartbeatInterval())
	}
	if cfg.CallTimeout() != 30*time.Second {
		t.Fatalf("expected 30s call timeout, got %s", cfg.CallTimeout())
	}
	if cfg.RedisTTL() != 90*time.Second {
		t.Fatalf("expected 90s redis ttl, got %s", cfg.RedisTTL())
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("POSTGRES_DSN", "postgres://localhost/chargelink")
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("OCPP_HEARTBEAT_INTERVAL", "60")
	t.Setenv("OCPP_ALLOWED_ID_TAGS", "TAG-1, TAG-2 ,,TAG-3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddress() != ":9090" {
		t.Fatalf("expected :9090, got %s", cfg.HTTPAddress())
	}
	if cfg.HeartbeatInterval() != 60*time.Second {
		t.Fatalf("expected 60s heartbeat interval, got %s", cfg.HeartbeatInterval())
	}
	tags := cfg.OCPP.AllowedIdTags
	if len(tags) != 3 || tags[0] != "TAG-1" || tags[1] != "TAG-2" || tags[2] != "TAG-3" {
		t.Fatalf("unexpected allowed id tags: %v", tags)
	}
}

func TestLoadYAMLFileWithEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
http:
  port: "7070"
database:
  dsn: postgres://file/chargelink
ocpp:
  callTimeoutSeconds: 10
redis:
  addr: localhost:6379
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("POSTGRES_DSN", "postgres://env/chargelink")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddress() != ":7070" {
		t.Fatalf("expected file port, got %s", cfg.HTTPAddress())
	}
	if cfg.CallTimeout() != 10*time.Second {
		t.Fatalf("expected 10s call timeout from file, got %s", cfg.CallTimeout())
	}
	// Environment wins over the file.
	if cfg.Database.DSN != "postgres://env/chargelink" {
		t.Fatalf("expected env DSN to win, got %s", cfg.Database.DSN)
	}
	if cfg.Redis.Addr != "localhost:6379" {
		t.Fatalf("expected redis addr from file, got %s", cfg.Redis.Addr)
	}
}
