package core

import (
	"context"
	"fmt"

	"github.com/goliatone/go-config/cfgx"
	opts "github.com/goliatone/go-options"
)

// RawConfigLoader produces one untyped configuration layer.
type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded map[string]any, runtime map[string]any) (Config, error)
}

type StaticRawConfigLoader struct {
	Values map[string]any
}

func (l StaticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	return cloneLayer(l.Values), nil
}

// LoadConfig resolves defaults < file < runtime into a validated Config.
// Nil loaders contribute empty layers.
func LoadConfig(ctx context.Context, file RawConfigLoader, runtime RawConfigLoader) (Config, error) {
	return LoadConfigWith(ctx, GoOptionsResolver{}, file, runtime)
}

func LoadConfigWith(ctx context.Context, resolver OptionsResolver, file RawConfigLoader, runtime RawConfigLoader) (Config, error) {
	if resolver == nil {
		resolver = GoOptionsResolver{}
	}
	loaded, err := loadLayer(ctx, file)
	if err != nil {
		return Config{}, fmt.Errorf("core: load config file: %w", err)
	}
	overrides, err := loadLayer(ctx, runtime)
	if err != nil {
		return Config{}, fmt.Errorf("core: load runtime config: %w", err)
	}
	return resolver.Resolve(DefaultConfig(), loaded, overrides)
}

func loadLayer(ctx context.Context, loader RawConfigLoader) (map[string]any, error) {
	if loader == nil {
		return map[string]any{}, nil
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return map[string]any{}, nil
	}
	return raw, nil
}

type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded map[string]any, runtime map[string]any) (Config, error) {
	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			ConfigToLayerMap(defaults),
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			cloneLayer(loaded),
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			cloneLayer(runtime),
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

// ConfigToLayerMap renders every field of cfg, zero values included.
func ConfigToLayerMap(cfg Config) map[string]any {
	return map[string]any{
		"service_name": cfg.ServiceName,
		"webhook": map[string]any{
			"url":   cfg.Webhook.URL,
			"alias": cfg.Webhook.Alias,
			"path":  cfg.Webhook.Path,
		},
		"server": map[string]any{
			"port":                   cfg.Server.Port,
			"read_header_timeout_ms": cfg.Server.ReadHeaderTimeoutMS,
			"shutdown_timeout_ms":    cfg.Server.ShutdownTimeoutMS,
			"max_body_bytes":         cfg.Server.MaxBodyBytes,
			"metrics_path":           cfg.Server.MetricsPath,
		},
		"remote": map[string]any{
			"base_url":   cfg.Remote.BaseURL,
			"client_id":  cfg.Remote.ClientID,
			"client_key": cfg.Remote.ClientKey,
			"timeout_ms": cfg.Remote.TimeoutMS,
		},
		"verification": map[string]any{
			"enabled":    cfg.Verification.Enabled,
			"timeout_ms": cfg.Verification.TimeoutMS,
		},
		"ledger": map[string]any{
			"driver": cfg.Ledger.Driver,
			"dsn":    cfg.Ledger.DSN,
			"debug":  cfg.Ledger.Debug,
		},
		"log": map[string]any{
			"level":  cfg.Log.Level,
			"format": cfg.Log.Format,
		},
	}
}

func cloneLayer(values map[string]any) map[string]any {
	if len(values) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(values))
	for key, value := range values {
		if nested, ok := value.(map[string]any); ok {
			out[key] = cloneLayer(nested)
			continue
		}
		out[key] = value
	}
	return out
}
