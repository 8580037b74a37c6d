package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

const messageColumns = `id::text, sender_id::text, receiver_id::text, body, image_url, read_at, created_at, updated_at`

func scanMessage(row pgx.Row) (Message, error) {
	var m Message
	err := row.Scan(
		&m.ID,
		&m.SenderID,
		&m.ReceiverID,
		&m.Body,
		&m.ImageURL,
		&m.ReadAt,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	return m, err
}

const createMessage = `
INSERT INTO messages (sender_id, receiver_id, body, image_url)
VALUES ($1::uuid, $2::uuid, $3, $4)
RETURNING ` + messageColumns

// CreateMessageParams holds a new message.
type CreateMessageParams struct {
	SenderID   string
	ReceiverID string
	Body       string
	ImageURL   string
}

// CreateMessage stores a message.
func (q *Queries) CreateMessage(ctx context.Context, arg CreateMessageParams) (Message, error) {
	return scanMessage(q.db.QueryRow(ctx, createMessage, arg.SenderID, arg.ReceiverID, arg.Body, arg.ImageURL))
}

const getMessage = `SELECT ` + messageColumns + ` FROM messages WHERE id = $1::uuid`

// GetMessage loads one message.
func (q *Queries) GetMessage(ctx context.Context, id string) (Message, error) {
	return scanMessage(q.db.QueryRow(ctx, getMessage, id))
}

const listConversation = `
SELECT ` + messageColumns + `
FROM messages
WHERE (sender_id = $1::uuid AND receiver_id = $2::uuid)
   OR (sender_id = $2::uuid AND receiver_id = $1::uuid)
ORDER BY created_at DESC, id DESC
LIMIT $3 OFFSET $4`

// ListConversationParams selects a page of the conversation between two users.
type ListConversationParams struct {
	UserA  string
	UserB  string
	Limit  int32
	Offset int32
}

// ListConversation returns one page of messages between two users, newest first.
func (q *Queries) ListConversation(ctx context.Context, arg ListConversationParams) ([]Message, error) {
	rows, err := q.db.Query(ctx, listConversation, arg.UserA, arg.UserB, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

const deleteMessage = `DELETE FROM messages WHERE id = $1::uuid`

// DeleteMessage removes a message and reports how many rows went.
func (q *Queries) DeleteMessage(ctx context.Context, id string) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteMessage, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const markMessageRead = `
UPDATE messages
SET read_at = $2, updated_at = now()
WHERE id = $1::uuid AND read_at IS NULL
RETURNING ` + messageColumns

// MarkMessageRead sets read_at on an unread message. An already-read message
// matches no row and returns pgx.ErrNoRows.
func (q *Queries) MarkMessageRead(ctx context.Context, id string, readAt time.Time) (Message, error) {
	return scanMessage(q.db.QueryRow(ctx, markMessageRead, id, readAt))
}
