package sqlstore_test

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/goliatone/go-webhook-endpoint/core"
	"github.com/goliatone/go-webhook-endpoint/migrations"
	sqlstore "github.com/goliatone/go-webhook-endpoint/store/sql"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

type testPersistenceConfig struct {
	driver string
	server string
}

func (c testPersistenceConfig) GetDebug() bool {
	return false
}

func (c testPersistenceConfig) GetDriver() string {
	return c.driver
}

func (c testPersistenceConfig) GetServer() string {
	return c.server
}

func (c testPersistenceConfig) GetPingTimeout() time.Duration {
	return time.Second
}

func (c testPersistenceConfig) GetOtelIdentifier() string {
	return "go-webhook-endpoint-tests"
}

func TestMigrationSmokeApplySQLite(t *testing.T) {
	ledger, cleanup := newSQLiteLedger(t)
	defer cleanup()

	var tableName string
	if err := ledger.DB().NewRaw(
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?",
		"webhook_registrations",
	).Scan(context.Background(), &tableName); err != nil {
		t.Fatalf("query sqlite master: %v", err)
	}
	if tableName != "webhook_registrations" {
		t.Fatalf("expected webhook_registrations table, got %q", tableName)
	}
}

func TestRegistrationStore_RecordAndListNewestFirst(t *testing.T) {
	ctx := context.Background()
	ledger, cleanup := newSQLiteLedger(t)
	defer cleanup()

	base := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	first, err := ledger.Record(ctx, core.RegistrationEntry{
		Alias:          "acme",
		SubscriptionID: "sub_1",
		Action:         core.RegistrationActionCreated,
		URL:            "https://x/hook",
		Events:         []string{"webhook.test", "order.submitted"},
		Enabled:        true,
		CreatedAt:      base,
	})
	if err != nil {
		t.Fatalf("record first entry: %v", err)
	}
	if first.ID == "" {
		t.Fatalf("expected generated id")
	}
	if _, err := ledger.Record(ctx, core.RegistrationEntry{
		Alias:          "acme",
		SubscriptionID: "sub_1",
		Action:         core.RegistrationActionUpdated,
		URL:            "https://y/hook",
		Events:         []string{"webhook.test"},
		Enabled:        true,
		CreatedAt:      base.Add(time.Hour),
	}); err != nil {
		t.Fatalf("record second entry: %v", err)
	}
	if _, err := ledger.Record(ctx, core.RegistrationEntry{
		Alias:          "other",
		SubscriptionID: "sub_2",
		Action:         core.RegistrationActionCreated,
		CreatedAt:      base.Add(2 * time.Hour),
	}); err != nil {
		t.Fatalf("record other alias: %v", err)
	}

	entries, err := ledger.List(ctx, "acme", 10)
	if err != nil {
		t.Fatalf("list entries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries for acme, got %d", len(entries))
	}
	if entries[0].Action != core.RegistrationActionUpdated || entries[0].URL != "https://y/hook" {
		t.Fatalf("expected newest entry first, got %+v", entries[0])
	}
	if len(entries[1].Events) != 2 || entries[1].Events[1] != "order.submitted" {
		t.Fatalf("expected events to round trip, got %v", entries[1].Events)
	}

	all, err := ledger.List(ctx, "", 0)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(all))
	}

	latest, found, err := ledger.Store().Latest(ctx, "other")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if !found || latest.SubscriptionID != "sub_2" {
		t.Fatalf("expected sub_2 as latest for other, got %+v (found=%v)", latest, found)
	}
}

func TestRegistrationStore_RejectsIncompleteEntries(t *testing.T) {
	ctx := context.Background()
	ledger, cleanup := newSQLiteLedger(t)
	defer cleanup()

	cases := []core.RegistrationEntry{
		{SubscriptionID: "sub_1", Action: core.RegistrationActionCreated},
		{Alias: "acme", Action: core.RegistrationActionCreated},
		{Alias: "acme", SubscriptionID: "sub_1", Action: "deleted"},
	}
	for _, entry := range cases {
		if _, err := ledger.Record(ctx, entry); err == nil {
			t.Fatalf("expected error for %+v", entry)
		}
	}
}

func TestOpenLedger_SQLiteFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.db")
	ledger, err := sqlstore.OpenLedger(ctx, core.LedgerConfig{Driver: "sqlite", DSN: "file:" + path})
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	defer func() { _ = ledger.Close() }()

	if _, err := ledger.Record(ctx, core.RegistrationEntry{
		Alias:          "acme",
		SubscriptionID: "sub_1",
		Action:         core.RegistrationActionCreated,
	}); err != nil {
		t.Fatalf("record entry: %v", err)
	}
	entries, err := ledger.List(ctx, "acme", 5)
	if err != nil {
		t.Fatalf("list entries: %v", err)
	}
	if len(entries) != 1 || entries[0].CreatedAt.IsZero() {
		t.Fatalf("expected one timestamped entry, got %+v", entries)
	}
}

func TestOpenLedger_RejectsUnknownDriver(t *testing.T) {
	if _, err := sqlstore.OpenLedger(context.Background(), core.LedgerConfig{Driver: "mysql", DSN: "x"}); err == nil {
		t.Fatalf("expected unsupported driver error")
	}
}

func newSQLiteLedger(t *testing.T) (*sqlstore.Ledger, func()) {
	t.Helper()

	dsn := fmt.Sprintf(
		"file:webhook-ledger-test-%d?mode=memory&cache=shared&_foreign_keys=on",
		time.Now().UnixNano(),
	)
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	client, err := persistence.New(testPersistenceConfig{
		driver: "sqlite3",
		server: dsn,
	}, sqlDB, sqlitedialect.New())
	if err != nil {
		_ = sqlDB.Close()
		t.Fatalf("new persistence client: %v", err)
	}

	ledger, err := sqlstore.NewLedgerFromPersistence(context.Background(), client, migrations.DialectSQLite)
	if err != nil {
		_ = client.Close()
		t.Fatalf("new ledger: %v", err)
	}
	return ledger, func() {
		_ = ledger.Close()
	}
}
