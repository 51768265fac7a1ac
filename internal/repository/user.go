package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"agroai/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already exists")
)

const pgUniqueViolation = "23505"

type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	EmailTakenByOther(ctx context.Context, email string, excludeID int64) (bool, error)
	UpdateUser(ctx context.Context, user *models.User) error
}

type userRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
	now    func() time.Time
}

func NewUserRepository(db *sqlx.DB, logger *zap.Logger) UserRepository {
	return &userRepository{db: db, logger: logger, now: time.Now}
}

// CreateUser inserts user and fills in its ID and timestamps. A second account
// with the same email is rejected by the unique index and reported as ErrDuplicateEmail.
func (r *userRepository) CreateUser(ctx context.Context, user *models.User) error {
	now := r.now().UTC()
	query := r.db.Rebind(`INSERT INTO users (username, email, password_hash, created_at, updated_at)
	          VALUES (?, ?, ?, ?, ?) RETURNING id`)

	err := r.db.QueryRowxContext(ctx, query, user.Username, user.Email, user.PasswordHash, now, now).Scan(&user.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return err
	}

	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

func (r *userRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	query := r.db.Rebind(`SELECT id, username, email, password_hash, created_at, updated_at FROM users WHERE email = ?`)
	if err := r.db.GetContext(ctx, &user, query, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	query := r.db.Rebind(`SELECT id, username, email, password_hash, created_at, updated_at FROM users WHERE id = ?`)
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) EmailTakenByOther(ctx context.Context, email string, excludeID int64) (bool, error) {
	var count int
	query := r.db.Rebind(`SELECT COUNT(*) FROM users WHERE email = ? AND id <> ?`)
	if err := r.db.GetContext(ctx, &count, query, email, excludeID); err != nil {
		return false, err
	}
	return count > 0, nil
}

// UpdateUser writes username, email and password hash of an existing user.
func (r *userRepository) UpdateUser(ctx context.Context, user *models.User) error {
	now := r.now().UTC()
	query := r.db.Rebind(`UPDATE users SET username = ?, email = ?, password_hash = ?, updated_at = ? WHERE id = ?`)

	res, err := r.db.ExecContext(ctx, query, user.Username, user.Email, user.PasswordHash, now, user.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrUserNotFound
	}

	user.UpdatedAt = now
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pgUniqueViolation
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE:
			return true
		case sqlite3.SQLITE_CONSTRAINT:
			return strings.Contains(liteErr.Error(), "UNIQUE")
		}
	}
	return false
}
