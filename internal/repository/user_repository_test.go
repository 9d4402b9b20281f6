package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cliora-storefront/internal/model"
)

func TestCreateUserDuplicateEmail(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO users").
		WithArgs("Ann", "ann@example.com", "hash", "customer").
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})

	_, err = NewUserRepo(db).CreateUser(context.Background(), "Ann", "  Ann@Example.COM ", "hash", model.RoleCustomer)
	assert.ErrorIs(t, err, ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserByEmailNormalizes(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("FROM users WHERE email=\\?").
		WithArgs("ann@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "password_hash", "role", "created_at"}).
			AddRow(4, "Ann", "ann@example.com", "h", "admin", time.Now()))

	u, err := NewUserRepo(db).UserByEmail(context.Background(), "ANN@example.com")
	require.NoError(t, err)
	assert.Equal(t, uint64(4), u.ID)
	assert.Equal(t, model.RoleAdmin, u.Role)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLiveRefresh(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	repo := NewTokenRepo(db)
	repo.Now = func() time.Time { return now }
	cols := []string{"user_id", "expires_at", "revoked"}
	q := "SELECT user_id, expires_at, revoked FROM refresh_tokens WHERE token_hash=\\?"

	mock.ExpectQuery(q).WithArgs("live").WillReturnRows(sqlmock.NewRows(cols).AddRow(3, now.Add(time.Hour), false))
	mock.ExpectQuery(q).WithArgs("revoked").WillReturnRows(sqlmock.NewRows(cols).AddRow(3, now.Add(time.Hour), true))
	mock.ExpectQuery(q).WithArgs("expired").WillReturnRows(sqlmock.NewRows(cols).AddRow(3, now.Add(-time.Second), false))
	mock.ExpectQuery(q).WithArgs("missing").WillReturnRows(sqlmock.NewRows(cols))

	uid, err := repo.LiveRefresh(context.Background(), "live")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), uid)

	for _, h := range []string{"revoked", "expired", "missing"} {
		_, err := repo.LiveRefresh(context.Background(), h)
		assert.ErrorIs(t, err, ErrNotFound, h)
	}
	require.NoError(t, mock.ExpectationsWereMet())
}
