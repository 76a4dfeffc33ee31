package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, workspace, content string) {
	t.Helper()
	dir := filepath.Join(workspace, StateDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestWorkspace(t *testing.T) {
	t.Setenv("SPECBOOK_WORKSPACE", "")
	if got := Workspace(); got != DefaultWorkspace {
		t.Errorf("Workspace() = %q, want %q", got, DefaultWorkspace)
	}

	t.Setenv("SPECBOOK_WORKSPACE", "/tmp/project")
	if got := Workspace(); got != "/tmp/project" {
		t.Errorf("Workspace() = %q, want /tmp/project", got)
	}
}

func TestLoad_Defaults(t *testing.T) {
	workspace := t.TempDir()

	cfg, err := Load(workspace)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Provider.Name != ProviderClaudeCLI {
		t.Errorf("Provider.Name = %q", cfg.Provider.Name)
	}
	if cfg.Provider.Timeout != 10*time.Minute {
		t.Errorf("Provider.Timeout = %v", cfg.Provider.Timeout)
	}
	if !cfg.Scan.DetectBinary || cfg.Scan.MaxFiles != 2000 {
		t.Errorf("Scan = %+v", cfg.Scan)
	}
	if want := filepath.Join(workspace, ".specbook", "objects.yaml"); cfg.ObjectsPath() != want {
		t.Errorf("ObjectsPath() = %q, want %q", cfg.ObjectsPath(), want)
	}
	if want := filepath.Join(workspace, ".specbook", "mapping.json"); cfg.MappingPath() != want {
		t.Errorf("MappingPath() = %q, want %q", cfg.MappingPath(), want)
	}
}

func TestLoad_File(t *testing.T) {
	workspace := t.TempDir()
	writeConfig(t, workspace, `
objects: features.yaml
mapping: /var/specbook/mapping.json
provider:
  name: anthropic
  model: claude-haiku-4-5
  timeout: 90s
scan:
  ignore:
    - "*.lock"
    - dist
  maxFiles: 10
logging:
  level: debug
  format: json
`)

	cfg, err := Load(workspace)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Provider.Name != ProviderAnthropic || cfg.Provider.Model != "claude-haiku-4-5" {
		t.Errorf("Provider = %+v", cfg.Provider)
	}
	if cfg.Provider.Timeout != 90*time.Second {
		t.Errorf("Provider.Timeout = %v, want 90s", cfg.Provider.Timeout)
	}
	if cfg.Provider.Retries != 3 {
		t.Errorf("Provider.Retries = %d, want default 3", cfg.Provider.Retries)
	}
	if strings.Join(cfg.Scan.Ignore, ",") != "*.lock,dist" || cfg.Scan.MaxFiles != 10 {
		t.Errorf("Scan = %+v", cfg.Scan)
	}
	if cfg.ObjectsPath() != filepath.Join(workspace, "features.yaml") {
		t.Errorf("ObjectsPath() = %q", cfg.ObjectsPath())
	}
	if cfg.MappingPath() != "/var/specbook/mapping.json" {
		t.Errorf("MappingPath() = %q", cfg.MappingPath())
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	workspace := t.TempDir()
	writeConfig(t, workspace, "logging:\n  level: warn\n")
	t.Setenv("SPECBOOK_LOGGING_LEVEL", "error")
	t.Setenv("SPECBOOK_PROVIDER_MODEL", "opus")

	cfg, err := Load(workspace)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Logging.Level != "error" {
		t.Errorf("Logging.Level = %q, want error", cfg.Logging.Level)
	}
	if cfg.Provider.Model != "opus" {
		t.Errorf("Provider.Model = %q, want opus", cfg.Provider.Model)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "unknown provider", content: "provider:\n  name: openai\n"},
		{name: "unknown log level", content: "logging:\n  level: verbose\n"},
		{name: "zero retries", content: "provider:\n  retries: 0\n"},
		{name: "negative max files", content: "scan:\n  maxFiles: -1\n"},
		{name: "anthropic without key env", content: "provider:\n  name: anthropic\n  apiKeyEnv: \"\"\n"},
		{name: "malformed yaml", content: "provider: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			workspace := t.TempDir()
			writeConfig(t, workspace, tt.content)

			if _, err := Load(workspace); err == nil {
				t.Error("Load() expected error, got nil")
			}
		})
	}
}

func TestConfig_APIKey(t *testing.T) {
	t.Setenv("MY_KEY", "sk-test")
	cfg := &Config{Provider: ProviderConfig{APIKeyEnv: "MY_KEY"}}
	if cfg.APIKey() != "sk-test" {
		t.Errorf("APIKey() = %q", cfg.APIKey())
	}
}
