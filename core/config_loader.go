package core

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// YAMLFileLoader reads a YAML config file, expanding ${VAR} references from
// the environment before parsing. A missing file is an error unless Optional.
type YAMLFileLoader struct {
	Path     string
	Optional bool
}

func (l YAMLFileLoader) LoadRaw(context.Context) (map[string]any, error) {
	path := strings.TrimSpace(l.Path)
	if path == "" {
		return map[string]any{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if l.Optional && errors.Is(err, fs.ErrNotExist) {
			return map[string]any{}, nil
		}
		return nil, err
	}
	expanded := os.ExpandEnv(string(data))
	out := map[string]any{}
	if err := yaml.Unmarshal([]byte(expanded), &out); err != nil {
		return nil, fmt.Errorf("core: parse %s: %w", path, err)
	}
	return out, nil
}

type envBinding struct {
	name    string
	section string
	key     string
	kind    string
}

var envBindings = []envBinding{
	{name: "WEBHOOK_URL", section: "webhook", key: "url"},
	{name: "WEBHOOK_ALIAS", section: "webhook", key: "alias"},
	{name: "WEBHOOK_PATH", section: "webhook", key: "path"},
	{name: "PORT", section: "server", key: "port", kind: "int"},
	{name: "SCHEMA_API_URL", section: "remote", key: "base_url"},
	{name: "SCHEMA_CLIENT_ID", section: "remote", key: "client_id"},
	{name: "SCHEMA_CLIENT_KEY", section: "remote", key: "client_key"},
	{name: "VERIFY_WEBHOOK", section: "verification", key: "enabled", kind: "bool"},
	{name: "LEDGER_DRIVER", section: "ledger", key: "driver"},
	{name: "LEDGER_DSN", section: "ledger", key: "dsn"},
	{name: "LOG_LEVEL", section: "log", key: "level"},
	{name: "LOG_FORMAT", section: "log", key: "format"},
}

// EnvLoader maps the process environment onto config keys. Only variables
// that are set contribute to the layer.
type EnvLoader struct {
	Lookup func(key string) (string, bool)
}

func (l EnvLoader) LoadRaw(context.Context) (map[string]any, error) {
	lookup := l.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	out := map[string]any{}
	for _, binding := range envBindings {
		raw, ok := lookup(binding.name)
		if !ok {
			continue
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		var value any = raw
		switch binding.kind {
		case "int":
			parsed, err := strconv.Atoi(raw)
			if err != nil {
				return nil, fmt.Errorf("core: %s must be an integer: %w", binding.name, err)
			}
			value = parsed
		case "bool":
			parsed, err := strconv.ParseBool(raw)
			if err != nil {
				return nil, fmt.Errorf("core: %s must be a boolean: %w", binding.name, err)
			}
			value = parsed
		}
		section, _ := out[binding.section].(map[string]any)
		if section == nil {
			section = map[string]any{}
			out[binding.section] = section
		}
		section[binding.key] = value
	}
	return out, nil
}

// MultiLoader merges layers left to right into one map.
type MultiLoader []RawConfigLoader

func (m MultiLoader) LoadRaw(ctx context.Context) (map[string]any, error) {
	out := map[string]any{}
	for _, loader := range m {
		if loader == nil {
			continue
		}
		raw, err := loader.LoadRaw(ctx)
		if err != nil {
			return nil, err
		}
		mergeLayer(out, raw)
	}
	return out, nil
}

func mergeLayer(dst map[string]any, src map[string]any) {
	for key, value := range src {
		nested, ok := value.(map[string]any)
		if !ok {
			dst[key] = value
			continue
		}
		existing, ok := dst[key].(map[string]any)
		if !ok {
			existing = map[string]any{}
			dst[key] = existing
		}
		mergeLayer(existing, nested)
	}
}
