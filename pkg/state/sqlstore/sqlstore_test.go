package sqlstore_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	settings "github.com/goliatone/go-settings"
	"github.com/goliatone/go-settings/pkg/state"
	"github.com/goliatone/go-settings/pkg/state/sqlstore"
)

var recordColumns = []string{"value", "snapshot_id", "etag", "extra", "updated_at"}

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unfulfilled expectations: %v", err)
		}
		db.Close()
	})
	return db, mock
}

func TestPostgresLoad(t *testing.T) {
	db, mock := newMockDB(t)
	store := sqlstore.New(db, sqlstore.DialectPostgres)

	mock.ExpectQuery(`SELECT value, snapshot_id, etag, extra, updated_at FROM settings_options WHERE option_id = \$1`).
		WithArgs("tenant/acme/p_options").
		WillReturnRows(sqlmock.NewRows(recordColumns).
			AddRow(`{"p_title":"x","p_count":3}`, "s1", "e1", `{"by":"seed"}`, "2024-01-02T03:04:05Z"))

	got, meta, ok, err := store.Load(context.Background(), state.TenantRef("acme", "p_options"))
	if err != nil || !ok {
		t.Fatalf("Load: ok=%v err=%v", ok, err)
	}
	if got["p_title"] != "x" || got["p_count"] != float64(3) {
		t.Fatalf("unexpected snapshot %v", got)
	}
	want := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	if meta.SnapshotID != "s1" || meta.ETag != "e1" || meta.Extra["by"] != "seed" || !meta.UpdatedAt.Equal(want) {
		t.Fatalf("unexpected meta %+v", meta)
	}
}

func TestPostgresLoadMissing(t *testing.T) {
	db, mock := newMockDB(t)
	store := sqlstore.New(db, sqlstore.DialectPostgres)

	mock.ExpectQuery(`FROM settings_options WHERE option_id = \$1`).
		WithArgs("site/p_options").
		WillReturnRows(sqlmock.NewRows(recordColumns))

	_, _, ok, err := store.Load(context.Background(), state.SiteRef("p_options"))
	if err != nil || ok {
		t.Fatalf("expected missing record, ok=%v err=%v", ok, err)
	}
}

func TestPostgresSaveUpserts(t *testing.T) {
	db, mock := newMockDB(t)
	store := sqlstore.New(db, sqlstore.DialectPostgres)
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectExec(`(?s)INSERT INTO settings_options .+VALUES \(\$1, \$2, \$3, \$4, \$5, \$6\).+ON CONFLICT \(option_id\) DO UPDATE`).
		WithArgs("site/p_options", `{"p_title":"x"}`, "s1", "e1", "{}", "2024-01-02T03:04:05Z").
		WillReturnResult(sqlmock.NewResult(0, 1))

	meta, err := store.Save(context.Background(), state.SiteRef("p_options"), settings.Values{"p_title": "x"},
		state.Meta{SnapshotID: "s1", ETag: "e1", UpdatedAt: at})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if meta.ETag != "e1" {
		t.Fatalf("unexpected meta %+v", meta)
	}
}

func TestPostgresDeleteReportsRows(t *testing.T) {
	db, mock := newMockDB(t)
	store := sqlstore.New(db, sqlstore.DialectPostgres)

	mock.ExpectExec(`DELETE FROM settings_options WHERE option_id = \$1`).
		WithArgs("site/p_options").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM settings_item_meta WHERE item_id = \$1 AND meta_key = \$2`).
		WithArgs("42", "_p_lesson").
		WillReturnResult(sqlmock.NewResult(0, 0))

	existed, err := store.Delete(context.Background(), state.SiteRef("p_options"))
	if err != nil || !existed {
		t.Fatalf("Delete: %v %v", existed, err)
	}
	existed, err = store.DeleteItem(context.Background(), state.ItemRef{ItemID: "42", Key: "_p_lesson"})
	if err != nil || existed {
		t.Fatalf("DeleteItem: %v %v", existed, err)
	}
}

func TestPostgresItems(t *testing.T) {
	db, mock := newMockDB(t)
	store := sqlstore.New(db, sqlstore.DialectPostgres)

	mock.ExpectQuery(`SELECT item_id FROM settings_item_meta WHERE meta_key = \$1 ORDER BY item_id`).
		WithArgs("_p_lesson").
		WillReturnRows(sqlmock.NewRows([]string{"item_id"}).AddRow("42").AddRow("7"))

	ids, err := store.Items(context.Background(), "_p_lesson")
	if err != nil {
		t.Fatalf("Items: %v", err)
	}
	if len(ids) != 2 || ids[0] != "42" || ids[1] != "7" {
		t.Fatalf("unexpected ids %v", ids)
	}
}

func TestInvalidRefSkipsQuery(t *testing.T) {
	db, _ := newMockDB(t)
	store := sqlstore.New(db, sqlstore.DialectPostgres)
	if _, _, _, err := store.Load(context.Background(), state.Ref{Key: "p_options"}); err == nil {
		t.Fatalf("expected identifier error")
	}
	if _, err := store.SaveItem(context.Background(), state.ItemRef{Key: "_p_lesson"}, nil, state.Meta{}); err == nil {
		t.Fatalf("expected identifier error")
	}
}

func TestParseDialect(t *testing.T) {
	for name, want := range map[string]sqlstore.Dialect{
		"sqlite":     sqlstore.DialectSQLite,
		"SQLite3":    sqlstore.DialectSQLite,
		"postgresql": sqlstore.DialectPostgres,
		" pg ":       sqlstore.DialectPostgres,
	} {
		got, err := sqlstore.ParseDialect(name)
		if err != nil || got != want {
			t.Fatalf("ParseDialect(%q) = %q, %v", name, got, err)
		}
	}
	if _, err := sqlstore.ParseDialect("mysql"); err == nil {
		t.Fatalf("expected error for unsupported dialect")
	}
}
