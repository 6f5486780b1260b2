package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"user-auth/internal/domain"
	"user-auth/internal/repository"
)

const createUsersTable = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	email TEXT NOT NULL UNIQUE,
	hashed_password BLOB NOT NULL,
	session_id TEXT NULL,
	reset_token TEXT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
`

const selectUserColumns = `SELECT id, email, hashed_password, session_id, reset_token, created_at, updated_at FROM users`

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) repository.UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createUsersTable); err != nil {
		return fmt.Errorf("create users table: %w", err)
	}
	return nil
}

// Reset drops every stored user and recreates the schema.
func (r *UserRepository) Reset(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DROP TABLE IF EXISTS users`); err != nil {
		return fmt.Errorf("drop users table: %w", err)
	}
	return r.Init(ctx)
}

func (r *UserRepository) Add(ctx context.Context, email string, hashedPassword []byte) (*domain.User, error) {
	now := time.Now().UTC()
	user := &domain.User{
		Email:          email,
		HashedPassword: append([]byte(nil), hashedPassword...),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	res, err := r.db.ExecContext(ctx, `
INSERT INTO users (email, hashed_password, created_at, updated_at)
VALUES (?, ?, ?, ?)`,
		user.Email,
		user.HashedPassword,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("insert user %s: %w", email, repository.ErrAlreadyExists)
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("user last insert id: %w", err)
	}
	user.ID = id
	return user, nil
}

func (r *UserRepository) FindBy(ctx context.Context, filter repository.UserFilter) (*domain.User, error) {
	if filter.IsEmpty() {
		return nil, repository.ErrInvalidQuery
	}

	var (
		conds []string
		args  []any
	)
	if filter.ID != nil {
		conds = append(conds, "id = ?")
		args = append(args, *filter.ID)
	}
	if filter.Email != nil {
		conds = append(conds, "email = ?")
		args = append(args, *filter.Email)
	}
	if filter.SessionID != nil {
		conds = append(conds, "session_id = ?")
		args = append(args, *filter.SessionID)
	}
	if filter.ResetToken != nil {
		conds = append(conds, "reset_token = ?")
		args = append(args, *filter.ResetToken)
	}

	query := selectUserColumns + " WHERE " + strings.Join(conds, " AND ") + " ORDER BY id LIMIT 2"
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var found *domain.User
	for rows.Next() {
		if found != nil {
			return nil, repository.ErrMultipleFound
		}
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		found = user
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	if found == nil {
		return nil, repository.ErrNotFound
	}
	return found, nil
}

func (r *UserRepository) Update(ctx context.Context, id int64, changes repository.UserUpdate) error {
	if changes.IsEmpty() {
		return repository.ErrInvalidField
	}

	var (
		sets []string
		args []any
	)
	if changes.Email != nil {
		sets = append(sets, "email = ?")
		args = append(args, *changes.Email)
	}
	if changes.HashedPassword != nil {
		sets = append(sets, "hashed_password = ?")
		args = append(args, changes.HashedPassword)
	}
	if changes.SessionID.Set {
		sets = append(sets, "session_id = ?")
		args = append(args, nullString(changes.SessionID.Value))
	}
	if changes.ResetToken.Set {
		sets = append(sets, "reset_token = ?")
		args = append(args, nullString(changes.ResetToken.Value))
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().UTC(), id)

	res, err := r.db.ExecContext(ctx, "UPDATE users SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("update user %d: %w", id, repository.ErrAlreadyExists)
		}
		return fmt.Errorf("update user %d: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("user rows affected: %w", err)
	}
	if affected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func scanUser(row interface {
	Scan(dest ...any) error
}) (*domain.User, error) {
	var (
		user       domain.User
		sessionID  sql.NullString
		resetToken sql.NullString
	)
	if err := row.Scan(
		&user.ID,
		&user.Email,
		&user.HashedPassword,
		&sessionID,
		&resetToken,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	if sessionID.Valid {
		user.SessionID = &sessionID.String
	}
	if resetToken.Valid {
		user.ResetToken = &resetToken.String
	}
	return &user, nil
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}
