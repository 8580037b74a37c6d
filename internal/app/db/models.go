package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Queries runs the typed statements against a DBTX.
type Queries struct {
	db DBTX
}

// New returns Queries bound to db.
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// WithTx returns Queries bound to tx.
func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}

// User is a row of the users table.
type User struct {
	ID           string
	Email        string
	FullName     string
	PasswordHash string
	ProfilePic   string
	IsOnline     bool
	LastSeen     pgtype.Timestamptz
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Message is a row of the messages table.
type Message struct {
	ID         string
	SenderID   string
	ReceiverID string
	Body       string
	ImageURL   string
	ReadAt     pgtype.Timestamptz
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
