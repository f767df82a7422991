package postgres

import (
	"context"
	"database/sql"
	"fmt"

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
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO messages (conversation_id, sender_id, content, image_url)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, m.ConversationID, m.SenderID, m.Content, m.ImageURL).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (r *MessageRepo) ListForConversation(ctx context.Context, conversationID int64) ([]*domain.MessageView, error) {
	// id breaks created_at ties so the order is total.
	query := `
		SELECT m.id, m.conversation_id, m.content, m.image_url, u.username, m.created_at
		FROM messages m
		JOIN users u ON u.id = m.sender_id
		WHERE m.conversation_id = $1
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
