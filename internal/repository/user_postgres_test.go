package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"agroai/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newMockRepo(t *testing.T) (UserRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return NewUserRepository(sqlx.NewDb(db, DriverPostgres), zap.NewNop()), mock
}

func TestPostgresCreateUser_UsesDollarPlaceholders(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta(`VALUES ($1, $2, $3, $4, $5) RETURNING id`)).
		WithArgs("amina", "amina@farm.io", "hash", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	user := &models.User{Username: "amina", Email: "amina@farm.io", PasswordHash: "hash"}
	require.NoError(t, repo.CreateUser(context.Background(), user))
	assert.Equal(t, int64(7), user.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCreateUser_UniqueViolation(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`INSERT INTO users`).
		WillReturnError(&pq.Error{Code: "23505", Message: `duplicate key value violates unique constraint "users_email_key"`})

	err := repo.CreateUser(context.Background(), &models.User{Username: "a", Email: "dup@farm.io", PasswordHash: "h"})
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestPostgresGetUserByEmail(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()

	columns := []string{"id", "username", "email", "password_hash", "created_at", "updated_at"}
	mock.ExpectQuery(regexp.QuoteMeta(`FROM users WHERE email = $1`)).
		WithArgs("amina@farm.io").
		WillReturnRows(sqlmock.NewRows(columns).AddRow(int64(3), "amina", "amina@farm.io", "hash", now, now))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM users WHERE email = $1`)).
		WithArgs("ghost@farm.io").
		WillReturnRows(sqlmock.NewRows(columns))

	user, err := repo.GetUserByEmail(context.Background(), "amina@farm.io")
	require.NoError(t, err)
	assert.Equal(t, int64(3), user.ID)

	_, err = repo.GetUserByEmail(context.Background(), "ghost@farm.io")
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdateUser(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE users SET username = $1, email = $2, password_hash = $3, updated_at = $4 WHERE id = $5`)).
		WithArgs("amina", "taken@farm.io", "hash", sqlmock.AnyArg(), int64(3)).
		WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectExec(`UPDATE users`).
		WillReturnError(errors.New("connection reset"))

	user := &models.User{ID: 3, Username: "amina", Email: "taken@farm.io", PasswordHash: "hash"}
	assert.ErrorIs(t, repo.UpdateUser(context.Background(), user), ErrDuplicateEmail)

	err := repo.UpdateUser(context.Background(), user)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrDuplicateEmail)
	assert.NoError(t, mock.ExpectationsWereMet())
}
