package service

import (
	"context"
	"fmt"
	"log/slog"

	"pairchat/internal/domain"
)

// Dispatcher delivers a persisted message to live recipients. Implementations
// must be best-effort: the message is already durable when Dispatch runs, and
// delivery failures must not surface to the sender.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg *domain.Message, senderUsername string, participantIDs []int64)
}

// NopDispatcher drops all deliveries. Used when no live transport is wired.
type NopDispatcher struct{}

func (NopDispatcher) Dispatch(context.Context, *domain.Message, string, []int64) {}

const maxContentRunes = 5000

// MessageService is the single ingress for new messages. Both the HTTP
// handler and the stream session call Submit, so authorization and payload
// rules live in exactly one place.
type MessageService struct {
	conversations domain.ConversationRepository
	participants  domain.ParticipantRepository
	messages      domain.MessageRepository
	users         domain.UserRepository
	dispatcher    Dispatcher
	log           *slog.Logger
}

func NewMessageService(
	conversations domain.ConversationRepository,
	participants domain.ParticipantRepository,
	messages domain.MessageRepository,
	users domain.UserRepository,
	dispatcher Dispatcher,
	log *slog.Logger,
) *MessageService {
	if dispatcher == nil {
		dispatcher = NopDispatcher{}
	}
	return &MessageService{
		conversations: conversations,
		participants:  participants,
		messages:      messages,
		users:         users,
		dispatcher:    dispatcher,
		log:           log,
	}
}

type SubmitInput struct {
	ConversationID int64
	Content        *string
	ImageURL       *string
}

// Submit validates, persists and fans out a new message. Checks run in a
// fixed order: the conversation must exist, the sender must be one of its
// participants, and exactly one of content/imageURL must be set. Fanout
// happens only after the append is durable; a persistence error means no
// delivery event is ever emitted for the attempt.
func (s *MessageService) Submit(ctx context.Context, in SubmitInput, senderID int64) (*domain.Message, error) {
	conv, err := s.conversations.GetByID(ctx, in.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	if conv == nil {
		return nil, fmt.Errorf("conversation %d: %w", in.ConversationID, domain.ErrNotFound)
	}

	isParticipant, err := s.participants.IsParticipant(ctx, in.ConversationID, senderID)
	if err != nil {
		return nil, fmt.Errorf("check participant: %w", err)
	}
	if !isParticipant {
		return nil, fmt.Errorf("sender is not a participant: %w", domain.ErrUnauthorized)
	}

	// Empty strings count as absent.
	if in.Content != nil && *in.Content == "" {
		in.Content = nil
	}
	if in.ImageURL != nil && *in.ImageURL == "" {
		in.ImageURL = nil
	}
	if (in.Content == nil) == (in.ImageURL == nil) {
		return nil, fmt.Errorf("exactly one of content and imageUrl is required: %w", domain.ErrInvalidPayload)
	}
	if in.Content != nil && len([]rune(*in.Content)) > maxContentRunes {
		return nil, fmt.Errorf("content exceeds %d characters: %w", maxContentRunes, domain.ErrInvalidPayload)
	}

	msg := &domain.Message{
		ConversationID: in.ConversationID,
		SenderID:       senderID,
		Content:        in.Content,
		ImageURL:       in.ImageURL,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}

	// updated_at only orders the inbox; the message is already durable,
	// so a failed bump is not worth failing the call over.
	if err := s.conversations.TouchUpdatedAt(ctx, in.ConversationID, msg.CreatedAt); err != nil {
		s.log.Warn("bump conversation updated_at", "conversation_id", in.ConversationID, "err", err)
	}

	s.fanout(ctx, msg)
	return msg, nil
}

func (s *MessageService) fanout(ctx context.Context, msg *domain.Message) {
	sender, err := s.users.GetByID(ctx, msg.SenderID)
	if err != nil || sender == nil {
		s.log.Warn("resolve sender for fanout", "message_id", msg.ID, "err", err)
		return
	}
	participantIDs, err := s.participants.ListParticipantIDs(ctx, msg.ConversationID)
	if err != nil {
		s.log.Warn("resolve participants for fanout", "message_id", msg.ID, "err", err)
		return
	}
	s.dispatcher.Dispatch(ctx, msg, sender.Username, participantIDs)
}

// ListMessages returns the conversation history in (created_at, id) order,
// after checking the caller's membership.
func (s *MessageService) ListMessages(ctx context.Context, conversationID, userID int64) ([]*domain.MessageView, error) {
	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	if conv == nil {
		return nil, fmt.Errorf("conversation %d: %w", conversationID, domain.ErrNotFound)
	}
	isParticipant, err := s.participants.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return nil, fmt.Errorf("check participant: %w", err)
	}
	if !isParticipant {
		return nil, fmt.Errorf("caller is not a participant: %w", domain.ErrUnauthorized)
	}
	return s.messages.ListForConversation(ctx, conversationID)
}
