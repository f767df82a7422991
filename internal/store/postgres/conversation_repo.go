package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"pairchat/internal/domain"
)

type ConversationRepo struct {
	db *sql.DB
}

func NewConversationRepo(db *sql.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

var _ domain.ConversationRepository = (*ConversationRepo)(nil)

func (r *ConversationRepo) CreateOrGetPair(ctx context.Context, userA, userB int64) (*domain.Conversation, bool, error) {
	key := domain.PairKey(userA, userB)

	if c, err := r.getByPairKey(ctx, key); err != nil {
		return nil, false, err
	} else if c != nil {
		return c, false, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	c := &domain.Conversation{PairKey: key}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO conversations (pair_key)
		VALUES ($1)
		RETURNING id, created_at, updated_at
	`, key).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		// Lost the race: another create for the same pair committed first.
		// Release the aborted tx before re-querying.
		if isUniqueViolation(err) {
			_ = tx.Rollback()
			existing, qerr := r.getByPairKey(ctx, key)
			if qerr != nil {
				return nil, false, qerr
			}
			if existing == nil {
				return nil, false, fmt.Errorf("pair conversation vanished after conflict")
			}
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("insert conversation: %w", err)
	}

	for _, uid := range []int64{userA, userB} {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO conversation_participants (user_id, conversation_id)
			VALUES ($1, $2)
		`, uid, c.ID); err != nil {
			return nil, false, fmt.Errorf("insert participant: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit: %w", err)
	}
	return c, true, nil
}

func (r *ConversationRepo) getByPairKey(ctx context.Context, key string) (*domain.Conversation, error) {
	c := &domain.Conversation{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, pair_key, created_at, updated_at
		FROM conversations
		WHERE pair_key = $1
	`, key).Scan(&c.ID, &c.PairKey, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation by pair: %w", err)
	}
	return c, nil
}

func (r *ConversationRepo) GetByID(ctx context.Context, id int64) (*domain.Conversation, error) {
	c := &domain.Conversation{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, pair_key, created_at, updated_at
		FROM conversations
		WHERE id = $1
	`, id).Scan(&c.ID, &c.PairKey, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return c, nil
}

func (r *ConversationRepo) ListForUser(ctx context.Context, userID int64) ([]*domain.ConversationSummary, error) {
	query := `
		SELECT c.id, u.username,
			(SELECT COALESCE(m.content, m.image_url) FROM messages m
			 WHERE m.conversation_id = c.id
			 ORDER BY m.created_at DESC, m.id DESC LIMIT 1),
			(SELECT m.created_at FROM messages m
			 WHERE m.conversation_id = c.id
			 ORDER BY m.created_at DESC, m.id DESC LIMIT 1),
			c.created_at
		FROM conversations c
		JOIN conversation_participants cp ON cp.conversation_id = c.id AND cp.user_id = $1
		JOIN conversation_participants op ON op.conversation_id = c.id AND op.user_id <> $1
		JOIN users u ON u.id = op.user_id
		ORDER BY c.updated_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var res []*domain.ConversationSummary
	for rows.Next() {
		s := &domain.ConversationSummary{}
		var other string
		var lastMsg sql.NullString
		var lastAt sql.NullTime
		var createdAt time.Time
		if err := rows.Scan(&s.ID, &other, &lastMsg, &lastAt, &createdAt); err != nil {
			return nil, fmt.Errorf("scan conversation summary: %w", err)
		}
		s.Participants = []string{other}
		if lastMsg.Valid {
			s.LastMessage = &lastMsg.String
		}
		if lastAt.Valid {
			s.LastTimestamp = lastAt.Time
		} else {
			s.LastTimestamp = createdAt
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

func (r *ConversationRepo) ListIDsForUser(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT conversation_id
		FROM conversation_participants
		WHERE user_id = $1
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversation ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan conversation id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *ConversationRepo) TouchUpdatedAt(ctx context.Context, id int64, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE conversations SET updated_at = $1 WHERE id = $2
	`, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}
	return nil
}
