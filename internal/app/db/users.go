package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

const userColumns = `id::text, email, full_name, password_hash, profile_pic, is_online, last_seen, created_at, updated_at`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.FullName,
		&u.PasswordHash,
		&u.ProfilePic,
		&u.IsOnline,
		&u.LastSeen,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	return u, err
}

const createUser = `
INSERT INTO users (email, full_name, password_hash)
VALUES ($1, $2, $3)
RETURNING ` + userColumns

// CreateUserParams holds the fields of a new account.
type CreateUserParams struct {
	Email        string
	FullName     string
	PasswordHash string
}

// CreateUser inserts a user. A duplicate email fails with a unique violation.
func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	return scanUser(q.db.QueryRow(ctx, createUser, arg.Email, arg.FullName, arg.PasswordHash))
}

const getUserByEmail = `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`

// GetUserByEmail looks a user up by email, case-insensitively.
func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(q.db.QueryRow(ctx, getUserByEmail, email))
}

const getUserByID = `SELECT ` + userColumns + ` FROM users WHERE id = $1::uuid`

// GetUserByID looks a user up by id.
func (q *Queries) GetUserByID(ctx context.Context, id string) (User, error) {
	return scanUser(q.db.QueryRow(ctx, getUserByID, id))
}

const listUsersExcept = `
SELECT ` + userColumns + `
FROM users
WHERE id <> $1::uuid
ORDER BY full_name
LIMIT $2`

// ListUsersExceptParams selects the sidebar page.
type ListUsersExceptParams struct {
	ID    string
	Limit int32
}

// ListUsersExcept returns every user except ID, ordered by name.
func (q *Queries) ListUsersExcept(ctx context.Context, arg ListUsersExceptParams) ([]User, error) {
	rows, err := q.db.Query(ctx, listUsersExcept, arg.ID, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, u)
	}
	return items, rows.Err()
}

const updateUserProfile = `
UPDATE users
SET full_name   = COALESCE(NULLIF($2, ''), full_name),
    profile_pic = COALESCE(NULLIF($3, ''), profile_pic),
    updated_at  = now()
WHERE id = $1::uuid
RETURNING ` + userColumns

// UpdateUserProfileParams holds a partial profile update. Empty fields are left unchanged.
type UpdateUserProfileParams struct {
	ID         string
	FullName   string
	ProfilePic string
}

// UpdateUserProfile applies a partial profile update.
func (q *Queries) UpdateUserProfile(ctx context.Context, arg UpdateUserProfileParams) (User, error) {
	return scanUser(q.db.QueryRow(ctx, updateUserProfile, arg.ID, arg.FullName, arg.ProfilePic))
}

const deleteUser = `DELETE FROM users WHERE id = $1::uuid`

// DeleteUser removes a user. Their messages are removed by cascade.
func (q *Queries) DeleteUser(ctx context.Context, id string) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteUser, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const markUserOnline = `UPDATE users SET is_online = TRUE WHERE id = $1::uuid`

// MarkOnline sets the stored online flag.
func (q *Queries) MarkOnline(ctx context.Context, id string) error {
	_, err := q.db.Exec(ctx, markUserOnline, id)
	return err
}

const markUserOffline = `UPDATE users SET is_online = FALSE, last_seen = $2 WHERE id = $1::uuid`

// MarkOffline clears the stored online flag and records lastSeen.
func (q *Queries) MarkOffline(ctx context.Context, id string, lastSeen time.Time) error {
	_, err := q.db.Exec(ctx, markUserOffline, id, lastSeen)
	return err
}
