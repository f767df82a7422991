package postgres

import (
	"database/sql"

	"pairchat/internal/domain"
)

// NewRepositories bundles the postgres-backed repositories for wiring.
func NewRepositories(db *sql.DB) domain.Repositories {
	return domain.Repositories{
		Users:         NewUserRepo(db),
		Conversations: NewConversationRepo(db),
		Messages:      NewMessageRepo(db),
		Participants:  NewParticipantRepo(db),
	}
}
