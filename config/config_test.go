package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"CONFIG_NAME", "JWT_SECRET", "DATABASE_URL",
		"STORERATE_JWT_SECRET", "STORERATE_DATABASE_URL", "STORERATE_HTTP_PORT",
		"STORERATE_JWT_EXPIRES_IN", "STORERATE_APP_ENV",
	} {
		t.Setenv(name, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "test.toml"), []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return dir
}

func TestLoad_FileWithEnvOverrides(t *testing.T) {
	clearEnv(t)
	dir := writeConfig(t, `
[app]
env = "production"

[http]
port = 6000
cors_origins = ["http://localhost:3000"]

[database]
url = "postgres://from-file"

[jwt]
expires_in = "30m"
`)
	t.Setenv("STORERATE_JWT_SECRET", "s3cret")
	t.Setenv("STORERATE_HTTP_PORT", "7000")

	cfg, err := Load("test", dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTP.Port != 7000 {
		t.Fatalf("expected env to override port, got %d", cfg.HTTP.Port)
	}
	if cfg.Database.URL != "postgres://from-file" {
		t.Fatalf("unexpected database url %q", cfg.Database.URL)
	}
	if cfg.JWT.Secret != "s3cret" || cfg.JWT.ExpiresIn != 30*time.Minute {
		t.Fatalf("unexpected jwt config %+v", cfg.JWT)
	}
	if !cfg.Production() {
		t.Fatal("expected production posture")
	}
	if len(cfg.HTTP.CORSOrigins) != 1 || cfg.HTTP.CORSOrigins[0] != "http://localhost:3000" {
		t.Fatalf("unexpected cors origins %v", cfg.HTTP.CORSOrigins)
	}
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "legacy-secret")
	t.Setenv("DATABASE_URL", "postgres://legacy")

	cfg, err := Load("missing", t.TempDir())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.JWT.Secret != "legacy-secret" || cfg.Database.URL != "postgres://legacy" {
		t.Fatalf("expected legacy env names to be honoured, got %+v", cfg)
	}
	if cfg.JWT.ExpiresIn != time.Hour {
		t.Fatalf("expected 1h default token lifetime, got %s", cfg.JWT.ExpiresIn)
	}
	if cfg.Addr() != "0.0.0.0:5000" {
		t.Fatalf("unexpected default addr %s", cfg.Addr())
	}
	if cfg.HTTP.ShutdownTimeout != 10*time.Second {
		t.Fatalf("unexpected shutdown timeout %s", cfg.HTTP.ShutdownTimeout)
	}
	if cfg.Redis.Addr != "" || cfg.Production() {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestLoad_RequiresSecret(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://legacy")

	if _, err := Load("missing", t.TempDir()); !errors.Is(err, errMissingSecret) {
		t.Fatalf("expected errMissingSecret, got %v", err)
	}
}

func TestLoad_RejectsMalformedFile(t *testing.T) {
	clearEnv(t)
	dir := writeConfig(t, "[http\nport = ")

	if _, err := Load("test", dir); err == nil {
		t.Fatal("expected parse error")
	}
}
