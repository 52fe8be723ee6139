package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"strings"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/goliatone/go-webhook-endpoint/core"
	"github.com/goliatone/go-webhook-endpoint/migrations"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
)

const otelIdentifier = "go-webhook-endpoint"

// persistenceConfig adapts core.LedgerConfig to the persistence client.
type persistenceConfig struct {
	driver string
	dsn    string
	debug  bool
}

func (c persistenceConfig) GetDebug() bool {
	return c.debug
}

func (c persistenceConfig) GetDriver() string {
	return c.driver
}

func (c persistenceConfig) GetServer() string {
	return c.dsn
}

func (c persistenceConfig) GetPingTimeout() time.Duration {
	return 5 * time.Second
}

func (c persistenceConfig) GetOtelIdentifier() string {
	return otelIdentifier
}

type driverSpec struct {
	sqlDriver string
	dialect   string
	bun       func() schema.Dialect
}

func resolveDriver(name string) (driverSpec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sqlite", "sqlite3":
		return driverSpec{
			sqlDriver: "sqlite3",
			dialect:   migrations.DialectSQLite,
			bun:       func() schema.Dialect { return sqlitedialect.New() },
		}, nil
	case "postgres", "postgresql":
		return driverSpec{
			sqlDriver: "postgres",
			dialect:   migrations.DialectPostgres,
			bun:       func() schema.Dialect { return pgdialect.New() },
		}, nil
	default:
		return driverSpec{}, fmt.Errorf("sqlstore: unsupported ledger driver %q", name)
	}
}

// Ledger owns the persistence client behind the registration store.
type Ledger struct {
	client *persistence.Client
	store  *RegistrationStore
}

// OpenLedger connects to the configured database, applies the ledger
// migrations and returns a ready store.
func OpenLedger(ctx context.Context, cfg core.LedgerConfig) (*Ledger, error) {
	spec, err := resolveDriver(cfg.Driver)
	if err != nil {
		return nil, err
	}
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, fmt.Errorf("sqlstore: ledger dsn is required")
	}
	sqlDB, err := sql.Open(spec.sqlDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", spec.sqlDriver, err)
	}
	if spec.dialect == migrations.DialectSQLite {
		sqlDB.SetMaxOpenConns(1)
	}
	client, err := persistence.New(persistenceConfig{
		driver: spec.sqlDriver,
		dsn:    dsn,
		debug:  cfg.Debug,
	}, sqlDB, spec.bun())
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("sqlstore: new persistence client: %w", err)
	}
	ledger, err := NewLedgerFromPersistence(ctx, client, spec.dialect)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return ledger, nil
}

// NewLedgerFromPersistence registers the dialect's migrations on client,
// migrates and builds the store.
func NewLedgerFromPersistence(ctx context.Context, client *persistence.Client, dialect string) (*Ledger, error) {
	if client == nil {
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	}
	dialect = strings.ToLower(strings.TrimSpace(dialect))
	_, err := migrations.Register(ctx, func(_ context.Context, target string, _ string, fsys fs.FS) error {
		if target != dialect {
			return nil
		}
		client.RegisterSQLMigrations(fsys)
		return nil
	}, migrations.WithValidationTargets(dialect))
	if err != nil {
		return nil, fmt.Errorf("sqlstore: register migrations: %w", err)
	}
	if err := client.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("sqlstore: migrate: %w", err)
	}
	store, err := NewRegistrationStore(client.DB())
	if err != nil {
		return nil, err
	}
	return &Ledger{client: client, store: store}, nil
}

func (l *Ledger) Store() *RegistrationStore {
	if l == nil {
		return nil
	}
	return l.store
}

func (l *Ledger) DB() *bun.DB {
	if l == nil || l.client == nil {
		return nil
	}
	return l.client.DB()
}

func (l *Ledger) Record(ctx context.Context, entry core.RegistrationEntry) (core.RegistrationEntry, error) {
	if l == nil || l.store == nil {
		return core.RegistrationEntry{}, fmt.Errorf("sqlstore: ledger is not open")
	}
	return l.store.Record(ctx, entry)
}

func (l *Ledger) List(ctx context.Context, alias string, limit int) ([]core.RegistrationEntry, error) {
	if l == nil || l.store == nil {
		return nil, fmt.Errorf("sqlstore: ledger is not open")
	}
	return l.store.List(ctx, alias, limit)
}

func (l *Ledger) Close() error {
	if l == nil || l.client == nil {
		return nil
	}
	return l.client.Close()
}
