package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pairchat/internal/domain"
)

// drainOne pops a single queued payload without running the write loop.
func drainOne(t *testing.T, s *Session) []byte {
	t.Helper()
	select {
	case payload := <-s.send:
		return payload
	default:
		t.Fatalf("session %s: no event queued", s.ID)
		return nil
	}
}

func assertEmpty(t *testing.T, s *Session) {
	t.Helper()
	select {
	case payload := <-s.send:
		t.Fatalf("session %s: unexpected event %s", s.ID, payload)
	default:
	}
}

func textMessage(id, convID, senderID int64, content string) *domain.Message {
	return &domain.Message{
		ID:             id,
		ConversationID: convID,
		SenderID:       senderID,
		Content:        &content,
		CreatedAt:      time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestDispatchReachesBothParticipants(t *testing.T) {
	p := NewPresence()
	alice := NewSession(1, "alice", nil)
	bob := NewSession(2, "bob", nil)
	for _, s := range []*Session{alice, bob} {
		p.Attach(s)
		p.Subscribe(s, UserRoom(s.UserID))
		p.Subscribe(s, ConversationRoom(10))
	}

	d := NewFanoutDispatcher(p, slog.Default())
	d.Dispatch(context.Background(), textMessage(100, 10, 1, "hi"), "alice", []int64{1, 2})

	var ev newMessageEvent
	require.NoError(t, json.Unmarshal(drainOne(t, bob), &ev))
	assert.Equal(t, "new_message", ev.Event)
	assert.Equal(t, int64(100), ev.ID)
	assert.Equal(t, int64(10), ev.ConversationID)
	assert.Equal(t, "alice", ev.Sender)
	require.NotNil(t, ev.Content)
	assert.Equal(t, "hi", *ev.Content)
	assert.Nil(t, ev.ImageURL)

	// The sender's own session gets the echo too.
	require.NoError(t, json.Unmarshal(drainOne(t, alice), &ev))
	assert.Equal(t, int64(100), ev.ID)
}

func TestDispatchAtMostOncePerSession(t *testing.T) {
	p := NewPresence()
	bob := NewSession(2, "bob", nil)
	p.Attach(bob)
	// Member of both the conversation room and the user room: still one event.
	p.Subscribe(bob, ConversationRoom(10))
	p.Subscribe(bob, UserRoom(2))

	d := NewFanoutDispatcher(p, slog.Default())
	d.Dispatch(context.Background(), textMessage(100, 10, 1, "hi"), "alice", []int64{1, 2})

	drainOne(t, bob)
	assertEmpty(t, bob)
}

func TestDispatchFiltersNonParticipants(t *testing.T) {
	p := NewPresence()
	eve := NewSession(3, "eve", nil)
	p.Attach(eve)
	// Stale bookkeeping must not leak the message to a non-participant.
	p.Subscribe(eve, ConversationRoom(10))

	d := NewFanoutDispatcher(p, slog.Default())
	d.Dispatch(context.Background(), textMessage(100, 10, 1, "secret"), "alice", []int64{1, 2})

	assertEmpty(t, eve)
}

func TestDispatchViaUserRoomOnly(t *testing.T) {
	p := NewPresence()
	bob := NewSession(2, "bob", nil)
	p.Attach(bob)
	// Connected before the conversation existed, so only the user room
	// membership exists.
	p.Subscribe(bob, UserRoom(2))

	d := NewFanoutDispatcher(p, slog.Default())
	d.Dispatch(context.Background(), textMessage(100, 10, 1, "hi"), "alice", []int64{1, 2})

	drainOne(t, bob)
}

func TestDispatchNoRecipientsOnline(t *testing.T) {
	p := NewPresence()
	d := NewFanoutDispatcher(p, slog.Default())

	// Must not panic or block; offline participants recover via history.
	d.Dispatch(context.Background(), textMessage(100, 10, 1, "hi"), "alice", []int64{1, 2})
}

func TestDispatchMultipleSessionsPerUser(t *testing.T) {
	p := NewPresence()
	laptop := NewSession(2, "bob", nil)
	phone := NewSession(2, "bob", nil)
	for _, s := range []*Session{laptop, phone} {
		p.Attach(s)
		p.Subscribe(s, UserRoom(2))
	}

	d := NewFanoutDispatcher(p, slog.Default())
	d.Dispatch(context.Background(), textMessage(100, 10, 1, "hi"), "alice", []int64{1, 2})

	drainOne(t, laptop)
	drainOne(t, phone)
}
