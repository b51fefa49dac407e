package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeSecret(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "secret.txt")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

func TestResolveSecretFromEnv(t *testing.T) {
	t.Setenv("TRAFFIC_TEST_SECRET", "env-value")

	value, err := ResolveSecret("TRAFFIC_TEST_SECRET")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != "env-value" {
		t.Errorf("got %q, want %q", value, "env-value")
	}
}

func TestResolveSecretFileWinsAndIsTrimmed(t *testing.T) {
	t.Setenv("TRAFFIC_TEST_SECRET", "env-value")
	t.Setenv("TRAFFIC_TEST_SECRET_FILE", writeSecret(t, "  file-value\n"))

	value, err := ResolveSecret("TRAFFIC_TEST_SECRET")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != "file-value" {
		t.Errorf("got %q, want %q", value, "file-value")
	}
}

func TestResolveSecretUnset(t *testing.T) {
	value, err := ResolveSecret("TRAFFIC_TEST_SECRET_NEVER_SET")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != "" {
		t.Errorf("got %q, want empty", value)
	}
}

func TestResolveSecretMissingFile(t *testing.T) {
	t.Setenv("TRAFFIC_TEST_SECRET_FILE", "/nonexistent/path/secret.txt")

	_, err := ResolveSecret("TRAFFIC_TEST_SECRET")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !strings.Contains(err.Error(), "TRAFFIC_TEST_SECRET_FILE") {
		t.Errorf("error should name the variable, got %v", err)
	}
	if strings.Contains(err.Error(), "env-value") {
		t.Error("error must not leak secret content")
	}
}

func TestLoadSecrets(t *testing.T) {
	t.Setenv(EnvPostgresPassword, "pg")
	t.Setenv(EnvMQTTPassword+"_FILE", writeSecret(t, "broker"))
	t.Setenv(EnvAdminPassword, "admin")
	t.Setenv(EnvOperatorPassword, "")

	s, err := LoadSecrets()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.PostgresPassword != "pg" || s.MQTTPassword != "broker" || s.AdminPassword != "admin" || s.OperatorPassword != "" {
		t.Errorf("unexpected secrets %+v", s)
	}
}

func TestLoadSecretsFailsOnUnreadableFile(t *testing.T) {
	t.Setenv(EnvAdminPassword+"_FILE", filepath.Join(t.TempDir(), "missing"))

	if _, err := LoadSecrets(); err == nil {
		t.Error("expected error")
	}
}
