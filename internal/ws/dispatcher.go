package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"pairchat/internal/domain"
)

// newMessageEvent is the wire projection of a persisted message: the same
// shape the history read returns, plus the conversation id.
type newMessageEvent struct {
	Event          string    `json:"event"`
	ID             int64     `json:"id"`
	ConversationID int64     `json:"conversationId"`
	Content        *string   `json:"content"`
	ImageURL       *string   `json:"imageUrl"`
	Sender         string    `json:"sender"`
	CreatedAt      time.Time `json:"createdAt"`
}

// FanoutDispatcher emits one delivery event per live recipient session for
// a message that is already durably persisted. Delivery is best-effort:
// sessions that are absent or fail to accept the event are skipped, never
// queued or retried. An offline participant recovers via history fetch.
type FanoutDispatcher struct {
	presence *Presence
	log      *slog.Logger
}

func NewFanoutDispatcher(presence *Presence, log *slog.Logger) *FanoutDispatcher {
	return &FanoutDispatcher{presence: presence, log: log}
}

// Dispatch resolves recipients and emits the event at most once per session.
// participantIDs is the authoritative participant set from the store; any
// session whose user is not in it is filtered out even if room bookkeeping
// says otherwise. The union of the conversation room and every participant's
// user room covers sessions that connected before the conversation existed.
func (d *FanoutDispatcher) Dispatch(ctx context.Context, msg *domain.Message, senderUsername string, participantIDs []int64) {
	allowed := make(map[int64]struct{}, len(participantIDs))
	rooms := make([]string, 0, len(participantIDs)+1)
	rooms = append(rooms, ConversationRoom(msg.ConversationID))
	for _, pid := range participantIDs {
		allowed[pid] = struct{}{}
		rooms = append(rooms, UserRoom(pid))
	}

	payload, err := json.Marshal(newMessageEvent{
		Event:          "new_message",
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		Content:        msg.Content,
		ImageURL:       msg.ImageURL,
		Sender:         senderUsername,
		CreatedAt:      msg.CreatedAt,
	})
	if err != nil {
		d.log.Error("marshal delivery event", "message_id", msg.ID, "err", err)
		return
	}

	for _, s := range d.presence.Collect(rooms...) {
		if _, ok := allowed[s.UserID]; !ok {
			continue
		}
		if err := s.Send(payload); err != nil {
			// That one recipient misses the live event; the message is
			// still readable via history.
			d.log.Debug("skip delivery", "message_id", msg.ID, "session_id", s.ID, "err", err)
		}
	}
}
