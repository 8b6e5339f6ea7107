package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/minchat/apiserver/types"
)

// MessageRepository handles persistence for messages.
type MessageRepository struct {
	db *sql.DB
}

func NewMessageRepository(db *sql.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// List returns a window of messages ordered oldest-first, joined with
// the posting member's username, along with the unfiltered total count.
// An offset past the end yields an empty slice, not an error.
func (r *MessageRepository) List(ctx context.Context, offset, limit int) ([]types.Message, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 50
	}

	const countQuery = `SELECT COUNT(1) FROM messages`
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery).Scan(&total); err != nil {
		return nil, 0, err
	}

	const listQuery = `
		SELECT m.id, m.member_id, mem.username, m.text, m.created_at
		FROM messages m
		JOIN members mem ON mem.id = m.member_id
		ORDER BY m.created_at, m.id
		OFFSET $1 LIMIT $2`
	rows, err := r.db.QueryContext(ctx, listQuery, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	messages := make([]types.Message, 0, limit)
	for rows.Next() {
		var message types.Message
		if err := rows.Scan(
			&message.ID,
			&message.MemberID,
			&message.Username,
			&message.Text,
			&message.CreatedAt,
		); err != nil {
			return nil, 0, err
		}
		messages = append(messages, message)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return messages, total, nil
}

// Create inserts a message owned by the given member. Text is assumed
// already validated; the member id comes from the authenticated
// principal, never from client input.
func (r *MessageRepository) Create(ctx context.Context, memberID int64, text string) (types.Message, error) {
	message := types.Message{
		MemberID:  memberID,
		Text:      text,
		CreatedAt: time.Now(),
	}

	const query = `
		INSERT INTO messages (member_id, text, created_at)
		VALUES ($1, $2, $3)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		message.MemberID,
		message.Text,
		message.CreatedAt,
	).Scan(&message.ID); err != nil {
		return types.Message{}, err
	}

	return message, nil
}
