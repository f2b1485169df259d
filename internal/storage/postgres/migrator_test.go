package postgres

import (
	"context"
	"errors"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/DATA-DOG/go-sqlmock"
)

func migrationFS(files map[string]string) fstest.MapFS {
	fsys := fstest.MapFS{}
	for name, body := range files {
		fsys[migrationsDir+"/"+name] = &fstest.MapFile{Data: []byte(body)}
	}
	return fsys
}

func TestParseMigrationFile(t *testing.T) {
	t.Parallel()

	version, name, direction, err := parseMigrationFile("0007_add_refunds.down.sql")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if version != 7 || name != "add_refunds" || direction != migrationDown {
		t.Fatalf("unexpected parse result: %d %q %q", version, name, direction)
	}

	for _, bad := range []string{"not_a_migration.sql", "0001_init.sql", "0001_init.sideways.sql", "x001_init.up.sql"} {
		if _, _, _, err := parseMigrationFile(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestReadMigrations(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		files   map[string]string
		wantErr string
		want    []string
	}{
		{
			name: "pairs sorted by version",
			files: map[string]string{
				"0002_more.up.sql":   "CREATE TABLE b (id INT);",
				"0002_more.down.sql": "DROP TABLE b;",
				"0001_init.up.sql":   "CREATE TABLE a (id INT);",
				"0001_init.down.sql": "DROP TABLE a;",
				"README.md":          "ignored",
			},
			want: []string{"0001_init", "0002_more"},
		},
		{
			name:    "missing down",
			files:   map[string]string{"0001_init.up.sql": "CREATE TABLE a (id INT);"},
			wantErr: "both up and down",
		},
		{
			name: "blank body",
			files: map[string]string{
				"0001_init.up.sql":   "  \n",
				"0001_init.down.sql": "DROP TABLE a;",
			},
			wantErr: "empty",
		},
		{
			name: "name mismatch",
			files: map[string]string{
				"0001_init.up.sql":    "CREATE TABLE a (id INT);",
				"0001_other.down.sql": "DROP TABLE a;",
			},
			wantErr: "name mismatch",
		},
		{
			name:    "bad file name",
			files:   map[string]string{"init.sql": "SELECT 1;"},
			wantErr: "invalid migration file name",
		},
		{
			name:    "no files",
			files:   map[string]string{"notes.txt": "nothing here"},
			wantErr: "no migration files",
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := readMigrations(migrationFS(tc.files))
			if tc.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("read migrations: %v", err)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("expected %d migrations, got %d", len(tc.want), len(got))
			}
			for i, m := range got {
				if m.String() != tc.want[i] {
					t.Fatalf("position %d: expected %s, got %s", i, tc.want[i], m)
				}
			}
		})
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	t.Parallel()

	migrations, err := readMigrations(migrationsFS)
	if err != nil {
		t.Fatalf("read embedded migrations: %v", err)
	}
	if len(migrations) != 2 {
		t.Fatalf("expected 2 embedded migrations, got %d", len(migrations))
	}
	if !strings.Contains(migrations[0].UpSQL, "CREATE TABLE IF NOT EXISTS payments") {
		t.Fatal("first migration must create payments table")
	}
	if !strings.Contains(migrations[1].UpSQL, "outbox_messages") {
		t.Fatal("second migration must create outbox_messages table")
	}
}

func sampleMigrations() []migration {
	return []migration{
		{Version: 1, Name: "init", UpSQL: "up1", DownSQL: "down1"},
		{Version: 2, Name: "more", UpSQL: "up2", DownSQL: "down2"},
		{Version: 3, Name: "last", UpSQL: "up3", DownSQL: "down3"},
	}
}

func versionsOf(plan []migration) []int64 {
	out := make([]int64, 0, len(plan))
	for _, m := range plan {
		out = append(out, m.Version)
	}
	return out
}

func equalVersions(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestPlanUp(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		applied []int64
		steps   int
		want    []int64
	}{
		{name: "fresh schema", want: []int64{1, 2, 3}},
		{name: "one step", steps: 1, want: []int64{1}},
		{name: "skips applied", applied: []int64{1}, want: []int64{2, 3}},
		{name: "fills gap", applied: []int64{1, 3}, want: []int64{2}},
		{name: "up to date", applied: []int64{1, 2, 3}, want: []int64{}},
	}

	for _, tc := range cases {
		if got := versionsOf(planUp(sampleMigrations(), tc.applied, tc.steps)); !equalVersions(got, tc.want) {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestPlanDown(t *testing.T) {
	t.Parallel()

	plan, err := planDown(sampleMigrations(), []int64{1, 2, 3}, 2)
	if err != nil {
		t.Fatalf("plan down: %v", err)
	}
	if got := versionsOf(plan); !equalVersions(got, []int64{3, 2}) {
		t.Fatalf("expected newest first, got %v", got)
	}

	plan, err = planDown(sampleMigrations(), []int64{1, 2}, 100)
	if err != nil {
		t.Fatalf("plan down all: %v", err)
	}
	if got := versionsOf(plan); !equalVersions(got, []int64{2, 1}) {
		t.Fatalf("expected full rollback, got %v", got)
	}

	if plan, err := planDown(sampleMigrations(), nil, 1); err != nil || len(plan) != 0 {
		t.Fatalf("rollback of empty schema must be a no-op, got %v %v", plan, err)
	}

	if _, err := planDown(sampleMigrations(), []int64{1, 9}, 1); err == nil || !strings.Contains(err.Error(), "unknown migration version 9") {
		t.Fatalf("expected unknown version error, got %v", err)
	}
}

func expectLocked(mock sqlmock.Sqlmock, applied ...int64) {
	mock.ExpectExec(`SELECT pg_advisory_lock\(\$1\)`).WithArgs(migrationLockKey).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS " + migrationsTable).WillReturnResult(sqlmock.NewResult(0, 0))
	rows := sqlmock.NewRows([]string{"version"})
	for _, v := range applied {
		rows.AddRow(v)
	}
	mock.ExpectQuery("SELECT version FROM " + migrationsTable).WillReturnRows(rows)
}

func expectUnlock(mock sqlmock.Sqlmock) {
	mock.ExpectExec(`SELECT pg_advisory_unlock\(\$1\)`).WithArgs(migrationLockKey).WillReturnResult(sqlmock.NewResult(0, 0))
}

func TestMigrationStatus_CountsPending(t *testing.T) {
	store, mock := newMockStore(t)
	expectLocked(mock, 1)
	expectUnlock(mock)

	state, err := store.MigrationStatus(context.Background())
	if err != nil {
		t.Fatalf("migration status: %v", err)
	}
	if state != (MigrationState{Version: 1, Applied: 1, Pending: 1}) {
		t.Fatalf("unexpected state %+v", state)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestMigrateUp_AppliesPendingInTransaction(t *testing.T) {
	store, mock := newMockStore(t)
	expectLocked(mock, 1)
	mock.ExpectBegin()
	mock.ExpectExec("outbox_messages").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO "+migrationsTable).WithArgs(int64(2), "outbox_timeline").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	expectUnlock(mock)

	if err := store.MigrateUp(context.Background(), 0); err != nil {
		t.Fatalf("migrate up: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestMigrateDown_RollsBackFailedMigration(t *testing.T) {
	store, mock := newMockStore(t)
	expectLocked(mock, 1, 2)
	mock.ExpectBegin()
	mock.ExpectExec("DROP").WillReturnError(errors.New("permission denied"))
	mock.ExpectRollback()
	expectUnlock(mock)

	err := store.MigrateDown(context.Background(), 0)
	if err == nil || !strings.Contains(err.Error(), "execute down migration 0002_outbox_timeline") {
		t.Fatalf("expected down migration failure, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestMigrator_NilStore(t *testing.T) {
	var store *Store
	ctx := context.Background()

	if err := store.MigrateUp(ctx, 0); !errors.Is(err, ErrStoreNotInitialized) {
		t.Fatalf("MigrateUp: expected ErrStoreNotInitialized, got %v", err)
	}
	if err := store.MigrateDown(ctx, 1); !errors.Is(err, ErrStoreNotInitialized) {
		t.Fatalf("MigrateDown: expected ErrStoreNotInitialized, got %v", err)
	}
	if _, err := store.MigrationStatus(ctx); !errors.Is(err, ErrStoreNotInitialized) {
		t.Fatalf("MigrationStatus: expected ErrStoreNotInitialized, got %v", err)
	}
}
