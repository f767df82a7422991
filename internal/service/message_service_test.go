package service_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"pairchat/internal/domain"
	"pairchat/internal/service"
)

type MockUserRepo struct {
	mock.Mock
}

func (m *MockUserRepo) Create(ctx context.Context, u *domain.User) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}

func (m *MockUserRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepo) List(ctx context.Context) ([]*domain.User, error) {
	return nil, nil // not used here
}

type MockConversationRepo struct {
	mock.Mock
}

func (m *MockConversationRepo) CreateOrGetPair(ctx context.Context, a, b int64) (*domain.Conversation, bool, error) {
	args := m.Called(ctx, a, b)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*domain.Conversation), args.Bool(1), args.Error(2)
}

func (m *MockConversationRepo) GetByID(ctx context.Context, id int64) (*domain.Conversation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Conversation), args.Error(1)
}

func (m *MockConversationRepo) ListForUser(ctx context.Context, userID int64) ([]*domain.ConversationSummary, error) {
	return nil, nil
}

func (m *MockConversationRepo) ListIDsForUser(ctx context.Context, userID int64) ([]int64, error) {
	return nil, nil
}

func (m *MockConversationRepo) TouchUpdatedAt(ctx context.Context, id int64, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

type MockMessageRepo struct {
	mock.Mock
}

func (m *MockMessageRepo) Create(ctx context.Context, msg *domain.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockMessageRepo) ListForConversation(ctx context.Context, conversationID int64) ([]*domain.MessageView, error) {
	args := m.Called(ctx, conversationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.MessageView), args.Error(1)
}

type MockParticipantRepo struct {
	mock.Mock
}

func (m *MockParticipantRepo) ListParticipantIDs(ctx context.Context, conversationID int64) ([]int64, error) {
	args := m.Called(ctx, conversationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}

func (m *MockParticipantRepo) IsParticipant(ctx context.Context, conversationID, userID int64) (bool, error) {
	args := m.Called(ctx, conversationID, userID)
	return args.Bool(0), args.Error(1)
}

// recordingDispatcher captures every dispatch so tests can assert on
// exactly-once, exactly-after-persist behaviour.
type recordingDispatcher struct {
	calls []dispatchCall
}

type dispatchCall struct {
	msg            *domain.Message
	sender         string
	participantIDs []int64
}

func (d *recordingDispatcher) Dispatch(_ context.Context, msg *domain.Message, sender string, participantIDs []int64) {
	d.calls = append(d.calls, dispatchCall{msg: msg, sender: sender, participantIDs: participantIDs})
}

func str(s string) *string { return &s }

func newSubmitFixture() (*MockConversationRepo, *MockParticipantRepo, *MockMessageRepo, *MockUserRepo, *recordingDispatcher, *service.MessageService) {
	convs := new(MockConversationRepo)
	parts := new(MockParticipantRepo)
	msgs := new(MockMessageRepo)
	users := new(MockUserRepo)
	disp := &recordingDispatcher{}
	svc := service.NewMessageService(convs, parts, msgs, users, disp, slog.Default())
	return convs, parts, msgs, users, disp, svc
}

func TestSubmitText(t *testing.T) {
	convs, parts, msgs, users, disp, svc := newSubmitFixture()

	convs.On("GetByID", mock.Anything, int64(10)).Return(&domain.Conversation{ID: 10}, nil)
	parts.On("IsParticipant", mock.Anything, int64(10), int64(1)).Return(true, nil)
	msgs.On("Create", mock.Anything, mock.MatchedBy(func(m *domain.Message) bool {
		return m.ConversationID == 10 && m.SenderID == 1 && m.Content != nil && *m.Content == "hi" && m.ImageURL == nil
	})).Run(func(args mock.Arguments) {
		m := args.Get(1).(*domain.Message)
		m.ID = 100
		m.CreatedAt = time.Now().UTC()
	}).Return(nil)
	convs.On("TouchUpdatedAt", mock.Anything, int64(10), mock.Anything).Return(nil)
	users.On("GetByID", mock.Anything, int64(1)).Return(&domain.User{ID: 1, Username: "alice"}, nil)
	parts.On("ListParticipantIDs", mock.Anything, int64(10)).Return([]int64{1, 2}, nil)

	msg, err := svc.Submit(context.Background(), service.SubmitInput{
		ConversationID: 10,
		Content:        str("hi"),
	}, 1)

	assert.NoError(t, err)
	assert.Equal(t, int64(100), msg.ID)
	if assert.Len(t, disp.calls, 1) {
		assert.Equal(t, int64(100), disp.calls[0].msg.ID)
		assert.Equal(t, "alice", disp.calls[0].sender)
		assert.ElementsMatch(t, []int64{1, 2}, disp.calls[0].participantIDs)
	}
}

func TestSubmitPayloadCardinality(t *testing.T) {
	for name, in := range map[string]service.SubmitInput{
		"Both":        {ConversationID: 10, Content: str("hi"), ImageURL: str("/uploads/x.png")},
		"Neither":     {ConversationID: 10},
		"EmptyString": {ConversationID: 10, Content: str("")},
	} {
		t.Run(name, func(t *testing.T) {
			convs, parts, msgs, _, disp, svc := newSubmitFixture()
			convs.On("GetByID", mock.Anything, int64(10)).Return(&domain.Conversation{ID: 10}, nil)
			parts.On("IsParticipant", mock.Anything, int64(10), int64(1)).Return(true, nil)

			_, err := svc.Submit(context.Background(), in, 1)

			assert.ErrorIs(t, err, domain.ErrInvalidPayload)
			msgs.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
			assert.Empty(t, disp.calls)
		})
	}
}

func TestSubmitNotParticipant(t *testing.T) {
	convs, parts, msgs, _, disp, svc := newSubmitFixture()

	convs.On("GetByID", mock.Anything, int64(10)).Return(&domain.Conversation{ID: 10}, nil)
	parts.On("IsParticipant", mock.Anything, int64(10), int64(9)).Return(false, nil)

	_, err := svc.Submit(context.Background(), service.SubmitInput{
		ConversationID: 10,
		Content:        str("hi"),
	}, 9)

	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	msgs.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	assert.Empty(t, disp.calls)
}

func TestSubmitConversationMissing(t *testing.T) {
	convs, _, msgs, _, disp, svc := newSubmitFixture()

	convs.On("GetByID", mock.Anything, int64(404)).Return(nil, nil)

	_, err := svc.Submit(context.Background(), service.SubmitInput{
		ConversationID: 404,
		Content:        str("hi"),
	}, 1)

	assert.ErrorIs(t, err, domain.ErrNotFound)
	msgs.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	assert.Empty(t, disp.calls)
}

func TestSubmitPersistenceFailureSuppressesFanout(t *testing.T) {
	convs, parts, msgs, _, disp, svc := newSubmitFixture()

	convs.On("GetByID", mock.Anything, int64(10)).Return(&domain.Conversation{ID: 10}, nil)
	parts.On("IsParticipant", mock.Anything, int64(10), int64(1)).Return(true, nil)
	msgs.On("Create", mock.Anything, mock.Anything).Return(errors.New("disk full"))

	_, err := svc.Submit(context.Background(), service.SubmitInput{
		ConversationID: 10,
		Content:        str("hi"),
	}, 1)

	assert.Error(t, err)
	assert.Empty(t, disp.calls, "no delivery event may exist for a message that was never persisted")
}

func TestSubmitTouchFailureIsNonFatal(t *testing.T) {
	convs, parts, msgs, users, disp, svc := newSubmitFixture()

	convs.On("GetByID", mock.Anything, int64(10)).Return(&domain.Conversation{ID: 10}, nil)
	parts.On("IsParticipant", mock.Anything, int64(10), int64(1)).Return(true, nil)
	msgs.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		args.Get(1).(*domain.Message).ID = 100
	}).Return(nil)
	convs.On("TouchUpdatedAt", mock.Anything, int64(10), mock.Anything).Return(errors.New("timeout"))
	users.On("GetByID", mock.Anything, int64(1)).Return(&domain.User{ID: 1, Username: "alice"}, nil)
	parts.On("ListParticipantIDs", mock.Anything, int64(10)).Return([]int64{1, 2}, nil)

	msg, err := svc.Submit(context.Background(), service.SubmitInput{
		ConversationID: 10,
		Content:        str("hi"),
	}, 1)

	assert.NoError(t, err)
	assert.Equal(t, int64(100), msg.ID)
	assert.Len(t, disp.calls, 1)
}

func TestListMessagesRequiresMembership(t *testing.T) {
	convs, parts, msgs, _, _, svc := newSubmitFixture()

	convs.On("GetByID", mock.Anything, int64(10)).Return(&domain.Conversation{ID: 10}, nil)
	parts.On("IsParticipant", mock.Anything, int64(10), int64(9)).Return(false, nil)

	_, err := svc.ListMessages(context.Background(), 10, 9)

	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	msgs.AssertNotCalled(t, "ListForConversation", mock.Anything, mock.Anything)
}
