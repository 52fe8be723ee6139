package core

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
	if cfg.Webhook.Alias != DefaultAlias || cfg.Server.Port != DefaultPort || cfg.Webhook.Path != "/" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.ListenAddr() != ":8080" {
		t.Fatalf("unexpected listen addr %q", cfg.ListenAddr())
	}
	if cfg.Remote.Timeout() != 30*time.Second {
		t.Fatalf("unexpected remote timeout %s", cfg.Remote.Timeout())
	}
	if err := cfg.ValidateForRegistration(); err == nil {
		t.Fatalf("expected registration validation to require url and credentials")
	}
}

func TestConfigValidate_RejectsBadValues(t *testing.T) {
	mutations := map[string]func(*Config){
		"alias":       func(c *Config) { c.Webhook.Alias = " " },
		"path":        func(c *Config) { c.Webhook.Path = "hooks" },
		"port":        func(c *Config) { c.Server.Port = 70000 },
		"base url":    func(c *Config) { c.Remote.BaseURL = "not a url" },
		"driver":      func(c *Config) { c.Ledger.Driver = "oracle" },
		"missing dsn": func(c *Config) { c.Ledger.Driver = "sqlite" },
	}
	for name, mutate := range mutations {
		cfg := DefaultConfig()
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestLoadConfig_LayersDefaultsFileAndRuntime(t *testing.T) {
	path := filepath.Join(t.TempDir(), "webhookd.yaml")
	t.Setenv("HOOK_HOST", "hooks.example.test")
	body := `
webhook:
  url: https://${HOOK_HOST}/
  alias: from-file
server:
  port: 9000
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	runtime := EnvLoader{Lookup: func(key string) (string, bool) {
		switch key {
		case "PORT":
			return "9100", true
		case "SCHEMA_CLIENT_ID":
			return "client", true
		}
		return "", false
	}}

	cfg, err := LoadConfig(context.Background(), YAMLFileLoader{Path: path}, runtime)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Webhook.URL != "https://hooks.example.test/" {
		t.Fatalf("expected env expansion in file, got %q", cfg.Webhook.URL)
	}
	if cfg.Webhook.Alias != "from-file" {
		t.Fatalf("expected file alias, got %q", cfg.Webhook.Alias)
	}
	if cfg.Server.Port != 9100 {
		t.Fatalf("expected runtime port to win, got %d", cfg.Server.Port)
	}
	if cfg.Remote.ClientID != "client" {
		t.Fatalf("expected runtime client id, got %q", cfg.Remote.ClientID)
	}
	if cfg.Remote.BaseURL != DefaultRemoteURL {
		t.Fatalf("expected default base url, got %q", cfg.Remote.BaseURL)
	}
}

func TestLoadConfig_RejectsInvalidResult(t *testing.T) {
	_, err := LoadConfig(context.Background(), StaticRawConfigLoader{Values: map[string]any{
		"webhook": map[string]any{"path": "no-slash"},
	}}, nil)
	if err == nil {
		t.Fatalf("expected invalid webhook path to fail")
	}
}

func TestYAMLFileLoader_MissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent.yaml")
	if _, err := (YAMLFileLoader{Path: missing}).LoadRaw(context.Background()); err == nil {
		t.Fatalf("expected missing file error")
	}
	raw, err := (YAMLFileLoader{Path: missing, Optional: true}).LoadRaw(context.Background())
	if err != nil || len(raw) != 0 {
		t.Fatalf("expected optional missing file to be empty, got %v %v", raw, err)
	}
}

func TestEnvLoader_TypedValues(t *testing.T) {
	env := map[string]string{
		"PORT":           "8181",
		"VERIFY_WEBHOOK": "false",
		"WEBHOOK_ALIAS":  "  ",
	}
	raw, err := (EnvLoader{Lookup: func(key string) (string, bool) {
		value, ok := env[key]
		return value, ok
	}}).LoadRaw(context.Background())
	if err != nil {
		t.Fatalf("load env: %v", err)
	}
	server := raw["server"].(map[string]any)
	if server["port"] != 8181 {
		t.Fatalf("expected int port, got %#v", server["port"])
	}
	verification := raw["verification"].(map[string]any)
	if verification["enabled"] != false {
		t.Fatalf("expected bool verification flag, got %#v", verification["enabled"])
	}
	if _, ok := raw["webhook"]; ok {
		t.Fatalf("expected blank variables to be skipped")
	}

	env["PORT"] = "eighty"
	if _, err := (EnvLoader{Lookup: func(key string) (string, bool) {
		value, ok := env[key]
		return value, ok
	}}).LoadRaw(context.Background()); err == nil {
		t.Fatalf("expected invalid integer to fail")
	}
}

func TestMultiLoader_MergesNestedMaps(t *testing.T) {
	merged, err := MultiLoader{
		StaticRawConfigLoader{Values: map[string]any{"webhook": map[string]any{"alias": "a", "path": "/"}}},
		StaticRawConfigLoader{Values: map[string]any{"webhook": map[string]any{"alias": "b"}}},
	}.LoadRaw(context.Background())
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	webhook := merged["webhook"].(map[string]any)
	if webhook["alias"] != "b" || webhook["path"] != "/" {
		t.Fatalf("unexpected merge result %+v", webhook)
	}
}
