package service

import (
	"context"
	"fmt"

	"pairchat/internal/domain"
)

type ConversationService struct {
	conversations domain.ConversationRepository
	participants  domain.ParticipantRepository
	users         domain.UserRepository
}

func NewConversationService(
	conversations domain.ConversationRepository,
	participants domain.ParticipantRepository,
	users domain.UserRepository,
) *ConversationService {
	return &ConversationService{
		conversations: conversations,
		participants:  participants,
		users:         users,
	}
}

// StartConversation returns the conversation between the creator and the
// given participant, creating it on first contact. Creation is idempotent
// per unordered pair: racing calls from both directions resolve to the
// same row.
func (s *ConversationService) StartConversation(ctx context.Context, creatorID, participantID int64) (*domain.Conversation, error) {
	if participantID == 0 || participantID == creatorID {
		return nil, fmt.Errorf("valid participantId required: %w", domain.ErrInvalidPayload)
	}
	other, err := s.users.GetByID(ctx, participantID)
	if err != nil {
		return nil, fmt.Errorf("get participant: %w", err)
	}
	if other == nil {
		return nil, fmt.Errorf("participant not found: %w", domain.ErrInvalidPayload)
	}

	conv, _, err := s.conversations.CreateOrGetPair(ctx, creatorID, participantID)
	if err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return conv, nil
}

// ListForUser returns the caller's inbox, newest activity first.
func (s *ConversationService) ListForUser(ctx context.Context, userID int64) ([]*domain.ConversationSummary, error) {
	return s.conversations.ListForUser(ctx, userID)
}
