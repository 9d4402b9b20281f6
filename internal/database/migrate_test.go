package database

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"testing/fstest"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitStatements(t *testing.T) {
	in := `-- header
CREATE TABLE a (id INT);

-- only a comment;
INSERT INTO a VALUES (1);
`
	got := splitStatements(in)
	assert.Equal(t, []string{"CREATE TABLE a (id INT)", "INSERT INTO a VALUES (1)"}, got)
}

func TestMigrateAppliesPendingFilesInOrder(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	fsys := fstest.MapFS{
		"migrations/002_b.sql": {Data: []byte("CREATE TABLE b (id INT);")},
		"migrations/001_a.sql": {Data: []byte("CREATE TABLE a (id INT);")},
	}

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	check := regexp.QuoteMeta(`SELECT 1 FROM schema_migrations WHERE version = ?`)

	mock.ExpectQuery(check).WithArgs("001_a.sql").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

	mock.ExpectQuery(check).WithArgs("002_b.sql").WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE b (id INT)")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO schema_migrations").WithArgs("002_b.sql").WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, migrate(context.Background(), db, fsys))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEmbeddedMigrationsPresent(t *testing.T) {
	data, err := migrationFS.ReadFile("migrations/001_init.sql")
	require.NoError(t, err)
	stmts := splitStatements(string(data))
	assert.GreaterOrEqual(t, len(stmts), 8)
	assert.Contains(t, string(data), "uq_cart_user_product")
}

func TestNormalizeDSN(t *testing.T) {
	dsn, err := NormalizeDSN("shop:pw@tcp(db:3306)/cliora")
	require.NoError(t, err)
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "clientFoundRows=true")
	assert.Contains(t, dsn, "charset=utf8mb4")

	_, err = NormalizeDSN("not a dsn")
	assert.Error(t, err)
}
