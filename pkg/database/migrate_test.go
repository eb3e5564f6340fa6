package database

import (
	"context"
	"regexp"
	"testing"
	"testing/fstest"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMigrator(t *testing.T, files fstest.MapFS) (*Migrator, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewMigratorFS(sqlx.NewDb(db, "sqlmock"), files, nil), mock
}

func testFiles() fstest.MapFS {
	return fstest.MapFS{
		"002_indexes.sql": {Data: []byte("CREATE INDEX b ON t (b);")},
		"001_init.sql":    {Data: []byte("CREATE TABLE t (b INT);")},
		"README.md":       {Data: []byte("docs")},
		"notes.sql":       {Data: []byte("SELECT 1;")},
	}
}

func TestMigratorLoadOrdersByVersion(t *testing.T) {
	m, _ := newMigrator(t, testFiles())

	migrations, err := m.Load()
	require.NoError(t, err)
	require.Len(t, migrations, 2)
	assert.Equal(t, 1, migrations[0].Version)
	assert.Equal(t, "002_indexes.sql", migrations[1].Name)
}

func TestMigratorUpAppliesPending(t *testing.T) {
	m, mock := newMigrator(t, testFiles())

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS schema_migrations")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT version, name, applied_at FROM schema_migrations")).
		WillReturnRows(sqlmock.NewRows([]string{"version", "name", "applied_at"}).AddRow(1, "001_init.sql", time.Now()))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("CREATE INDEX b ON t (b);")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO schema_migrations (version, name) VALUES ($1, $2)")).
		WithArgs(2, "002_indexes.sql").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	count, err := m.Up(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigratorStatus(t *testing.T) {
	m, mock := newMigrator(t, testFiles())
	appliedAt := time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS schema_migrations")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT version, name, applied_at FROM schema_migrations")).
		WillReturnRows(sqlmock.NewRows([]string{"version", "name", "applied_at"}).AddRow(1, "001_init.sql", appliedAt))

	statuses, err := m.Status(context.Background())
	require.NoError(t, err)
	require.Len(t, statuses, 2)
	assert.True(t, statuses[0].Applied)
	assert.Equal(t, appliedAt, *statuses[0].AppliedAt)
	assert.False(t, statuses[1].Applied)
}

func TestEmbeddedMigrationsCreateActiveSlotIndex(t *testing.T) {
	m := NewMigrator(nil, nil)

	migrations, err := m.Load()
	require.NoError(t, err)
	require.NotEmpty(t, migrations)
	assert.Contains(t, migrations[0].SQL, "bookings_active_slot_uniq")
}
