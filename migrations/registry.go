// Package migrations ships the registration ledger schema for postgres and
// sqlite and registers it with a migration runner.
package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"slices"
	"strings"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"

	rootPath = "data/sql/migrations"
)

type FilesystemSpec struct {
	Dialect string
	Path    string
	FS      fs.FS
}

type Registration struct {
	SourceLabel       string
	ValidationTargets []string
	Filesystems       []FilesystemSpec
}

type RegisterFunc func(ctx context.Context, dialect string, sourceLabel string, fsys fs.FS) error

type Option func(*Registration)

func WithSourceLabel(label string) Option {
	return func(r *Registration) {
		if trimmed := strings.TrimSpace(label); trimmed != "" {
			r.SourceLabel = trimmed
		}
	}
}

// WithValidationTargets limits registration to the named dialects.
func WithValidationTargets(targets ...string) Option {
	return func(r *Registration) {
		if next := normalizeDialects(targets); len(next) > 0 {
			r.ValidationTargets = next
		}
	}
}

// Filesystems returns one filesystem per dialect, each holding *.up.sql and
// *.down.sql files at its root.
func Filesystems() ([]FilesystemSpec, error) {
	specs := make([]FilesystemSpec, 0, 2)
	for _, dialect := range []string{DialectPostgres, DialectSQLite} {
		fsys, path, err := ForDialect(dialect)
		if err != nil {
			return nil, err
		}
		specs = append(specs, FilesystemSpec{Dialect: dialect, Path: path, FS: fsys})
	}
	return specs, nil
}

func ForDialect(dialect string) (fs.FS, string, error) {
	path := rootPath
	switch strings.ToLower(strings.TrimSpace(dialect)) {
	case DialectPostgres:
	case DialectSQLite:
		path = rootPath + "/sqlite"
	default:
		return nil, "", fmt.Errorf("migrations: unsupported dialect %q", dialect)
	}
	sub, err := fs.Sub(GetMigrationsFS(), path)
	if err != nil {
		return nil, "", fmt.Errorf("migrations: resolve %s filesystem: %w", dialect, err)
	}
	matches, err := fs.Glob(sub, "*.up.sql")
	if err != nil {
		return nil, "", fmt.Errorf("migrations: glob %s: %w", path, err)
	}
	if len(matches) == 0 {
		return nil, "", fmt.Errorf("migrations: %s filesystem %q has no *.up.sql files", dialect, path)
	}
	return sub, path, nil
}

// Register hands each targeted dialect filesystem to registerFn.
func Register(ctx context.Context, registerFn RegisterFunc, opts ...Option) (Registration, error) {
	reg := Registration{
		SourceLabel:       "go-webhook-endpoint",
		ValidationTargets: []string{DialectPostgres, DialectSQLite},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&reg)
		}
	}
	if registerFn == nil {
		return reg, fmt.Errorf("migrations: register function is required")
	}

	filesystems, err := Filesystems()
	if err != nil {
		return reg, err
	}
	reg.Filesystems = filesystems

	for _, fsys := range reg.Filesystems {
		if !slices.Contains(reg.ValidationTargets, fsys.Dialect) {
			continue
		}
		if err := registerFn(ctx, fsys.Dialect, reg.SourceLabel, fsys.FS); err != nil {
			return reg, fmt.Errorf("migrations: register %s (%s): %w", fsys.Dialect, fsys.Path, err)
		}
	}
	return reg, nil
}

func normalizeDialects(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(strings.ToLower(value))
		if trimmed == "" || slices.Contains(out, trimmed) {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}
