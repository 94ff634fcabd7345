package users

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/accountkeeper/internal/common"
	"github.com/dmitrijs2005/accountkeeper/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	insertQ = `(?s)^INSERT\s+INTO\s+users\s*\(id,\s*first_name,\s*last_name,\s*primary_email,\s*password,\s*email_verified,\s*is_admin,\s*created_at,\s*modified_at\)\s*VALUES\s*\(\$1,.*\$9\)\s*$`
	selectQ = `(?s)^SELECT\s+id,\s*first_name,.*FROM\s+users\s+WHERE\s+primary_email\s*=\s*\$1\s*$`
	updateQ = `(?s)^UPDATE\s+users\s+SET\s+password\s*=\s*\$1,\s*modified_at\s*=\s*\$2\s+WHERE\s+primary_email\s*=\s*\$3\s*$`
)

var userColumns = []string{"id", "first_name", "last_name", "primary_email", "password", "email_verified", "is_admin", "created_at", "modified_at"}

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return NewPostgresRepository(db), mock
}

func sampleUser(now time.Time) *models.User {
	return &models.User{
		FirstName:    "Ada",
		LastName:     "Lovelace",
		PrimaryEmail: "a@x.com",
		PasswordHash: "$2a$10$hash",
		CreatedAt:    now,
		ModifiedAt:   now,
	}
}

func TestCreate_Success(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectExec(insertQ).
		WithArgs(sqlmock.AnyArg(), "Ada", "Lovelace", "a@x.com", "$2a$10$hash", false, false, now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	got, err := repo.Create(context.Background(), sampleUser(now))
	require.NoError(t, err)
	assert.NotEmpty(t, got.ID, "id must be assigned")
	assert.Equal(t, "a@x.com", got.PrimaryEmail)
}

func TestCreate_KeepsGivenID(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Now()

	u := sampleUser(now)
	u.ID = "11111111-1111-1111-1111-111111111111"

	mock.ExpectExec(insertQ).
		WithArgs(u.ID, "Ada", "Lovelace", "a@x.com", "$2a$10$hash", false, false, now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	got, err := repo.Create(context.Background(), u)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
}

func TestCreate_DuplicateEmailIsConflict(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(insertQ).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_primary_email_key"})

	_, err := repo.Create(context.Background(), sampleUser(time.Now()))
	assert.ErrorIs(t, err, common.ErrorConflict)
}

func TestCreate_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(insertQ).WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), sampleUser(time.Now()))
	require.Error(t, err)
	assert.Regexp(t, `db error: .*db down`, err.Error())
	assert.NotErrorIs(t, err, common.ErrorConflict)
}

func TestGetByEmail_Found(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows(userColumns).
		AddRow("u-1", "Ada", "Lovelace", "a@x.com", "hash", true, false, now, now)
	mock.ExpectQuery(selectQ).WithArgs("a@x.com").WillReturnRows(rows)

	u, err := repo.GetByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "u-1", u.ID)
	assert.Equal(t, "hash", u.PasswordHash)
	assert.True(t, u.EmailVerified)
	assert.False(t, u.IsAdmin)
	assert.Equal(t, now, u.CreatedAt)
}

func TestGetByEmail_NotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(selectQ).WithArgs("nobody@x.com").WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByEmail(context.Background(), "nobody@x.com")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestGetByEmail_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(selectQ).WithArgs("a@x.com").WillReturnError(errors.New("conn reset"))

	_, err := repo.GetByEmail(context.Background(), "a@x.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db error")
}

func TestUpdatePassword(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	cmd := models.UpdatePassword{Email: "a@x.com", PasswordHash: "new", ModifiedAt: now}

	t.Run("updated", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectExec(updateQ).WithArgs("new", now, "a@x.com").WillReturnResult(sqlmock.NewResult(0, 1))
		assert.NoError(t, repo.UpdatePassword(context.Background(), cmd))
	})

	t.Run("no such account", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectExec(updateQ).WithArgs("new", now, "a@x.com").WillReturnResult(sqlmock.NewResult(0, 0))
		assert.ErrorIs(t, repo.UpdatePassword(context.Background(), cmd), common.ErrorNotFound)
	})

	t.Run("db error", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectExec(updateQ).WillReturnError(errors.New("boom"))
		err := repo.UpdatePassword(context.Background(), cmd)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "db error: boom")
	})
}
