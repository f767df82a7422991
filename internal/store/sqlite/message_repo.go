package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"pairchat/internal/domain"
)

type MessageRepo struct {
	db *sql.DB
}

func NewMessageRepo(db *sql.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

var _ domain.MessageRepository = (*MessageRepo)(nil)

func (r *MessageRepo) Create(ctx context.Context, m *domain.Message) error {
	m.CreatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO messages (conversation_id, sender_id, content, image_url, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, m.ConversationID, m.SenderID, m.Content, m.ImageURL, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	m.ID = id
	return nil
}

func (r *MessageRepo) ListForConversation(ctx context.Context, conversationID int64) ([]*domain.MessageView, error) {
	// id breaks created_at ties so the order is total.
	query := `
		SELECT m.id, m.conversation_id, m.content, m.image_url, u.username, m.created_at
		FROM messages m
		JOIN users u ON u.id = m.sender_id
		WHERE m.conversation_id = ?
		ORDER BY m.created_at ASC, m.id ASC
	`
	rows, err := r.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var res []*domain.MessageView
	for rows.Next() {
		v := &domain.MessageView{}
		var content, imageURL sql.NullString
		if err := rows.Scan(&v.ID, &v.ConversationID, &content, &imageURL, &v.Sender, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if content.Valid {
			v.Content = &content.String
		}
		if imageURL.Valid {
			v.ImageURL = &imageURL.String
		}
		res = append(res, v)
	}
	return res, rows.Err()
}
