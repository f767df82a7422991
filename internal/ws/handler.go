package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"pairchat/internal/domain"
	"pairchat/internal/security"
	"pairchat/internal/service"
)

type wsAuthError struct {
	status int
	msg    string
}

func (e wsAuthError) Error() string {
	return e.msg
}

func normalizeAllowedOrigins(origins []string) map[string]struct{} {
	res := make(map[string]struct{}, len(origins))
	for _, origin := range origins {
		o := strings.TrimSpace(strings.ToLower(origin))
		if o != "" {
			res[o] = struct{}{}
		}
	}
	return res
}

func makeCheckOrigin(allowedOrigins []string) func(r *http.Request) bool {
	allowed := normalizeAllowedOrigins(allowedOrigins)
	if len(allowed) == 0 {
		return func(r *http.Request) bool {
			return false
		}
	}

	return func(r *http.Request) bool {
		origin := strings.TrimSpace(strings.ToLower(r.Header.Get("Origin")))
		if origin == "" {
			return false
		}
		if _, ok := allowed[origin]; ok {
			return true
		}

		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return false
		}
		normalized := strings.ToLower(fmt.Sprintf("%s://%s", u.Scheme, u.Host))
		_, ok := allowed[normalized]
		return ok
	}
}

func extractTokenFromWSRequest(r *http.Request) (string, error) {
	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
		token := strings.TrimSpace(authHeader[len("Bearer "):])
		if token != "" {
			return token, nil
		}
	}

	protocolHeader := r.Header.Get("Sec-WebSocket-Protocol")
	if protocolHeader != "" {
		parts := strings.Split(protocolHeader, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		if len(parts) >= 2 && strings.EqualFold(parts[0], "bearer") {
			token := parts[1]
			if token != "" {
				return token, nil
			}
		}
	}

	return "", wsAuthError{status: http.StatusUnauthorized, msg: "missing bearer token"}
}

// inboundEvent is the only client-pushed frame in scope: send_message with
// a conversation id, a payload string, and a text/image type tag. For image
// messages the content field carries the uploaded image URL.
type inboundEvent struct {
	Event          string `json:"event"`
	ConversationID int64  `json:"conversationId"`
	Content        string `json:"content"`
	Type           string `json:"type"`
}

// MakeHandler returns the HTTP handler for the /ws endpoint. It owns the
// session lifecycle: handshake auth, room subscription bootstrap, inbound
// event validation, and unconditional teardown on disconnect. Reconnecting
// always re-runs the handshake and bootstrap; no state is resumed.
func MakeHandler(
	presence *Presence,
	tokens *security.TokenService,
	users domain.UserRepository,
	convs domain.ConversationRepository,
	msgSvc *service.MessageService,
	allowedOrigins []string,
	log *slog.Logger,
) http.HandlerFunc {
	checkOrigin := makeCheckOrigin(allowedOrigins)
	upgrader := websocket.Upgrader{
		CheckOrigin: checkOrigin,
		Subprotocols: []string{
			"bearer",
		},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if !checkOrigin(r) {
			http.Error(w, "origin not allowed", http.StatusForbidden)
			return
		}

		tokenStr, err := extractTokenFromWSRequest(r)
		if err != nil {
			var authErr wsAuthError
			if errors.As(err, &authErr) {
				http.Error(w, authErr.msg, authErr.status)
				return
			}
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		sub, err := tokens.Subject(tokenStr)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		ctx := r.Context()
		user, err := users.GetByUsername(ctx, sub)
		if err != nil || user == nil {
			http.Error(w, "user not found", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		sess := NewSession(user.ID, user.Username, conn)
		sess.Start()
		defer sess.Close(websocket.CloseNormalClosure, "bye")

		presence.Attach(sess)
		defer presence.Drop(sess)

		// Bootstrap: the private per-user room plus a room per conversation
		// the user currently participates in. Conversations created later
		// are still reachable through the user room.
		presence.Subscribe(sess, UserRoom(user.ID))
		convIDs, err := convs.ListIDsForUser(ctx, user.ID)
		if err != nil {
			log.Warn("ws: bootstrap conversation list", "user_id", user.ID, "err", err)
		}
		for _, id := range convIDs {
			presence.Subscribe(sess, ConversationRoom(id))
		}

		log.Debug("ws: session open", "user", user.Username, "session_id", sess.ID)

		conn.SetReadLimit(maxInboundBytes)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})

		for {
			var ev inboundEvent
			if err := conn.ReadJSON(&ev); err != nil {
				break
			}

			switch ev.Event {
			case "send_message":
				if ev.ConversationID == 0 {
					sendError(sess, "conversationId is required")
					continue
				}
				in := service.SubmitInput{ConversationID: ev.ConversationID}
				switch ev.Type {
				case "text":
					in.Content = &ev.Content
				case "image":
					in.ImageURL = &ev.Content
				default:
					sendError(sess, "type must be 'text' or 'image'")
					continue
				}
				if _, err := msgSvc.Submit(ctx, in, user.ID); err != nil {
					sendError(sess, submitErrorMessage(err))
					log.Debug("ws: send_message rejected", "user_id", user.ID, "err", err)
				}

			default:
				sendError(sess, fmt.Sprintf("unknown event %q", ev.Event))
			}
		}

		log.Debug("ws: session closed", "user", user.Username, "session_id", sess.ID)
	}
}

func submitErrorMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return "conversation not found"
	case errors.Is(err, domain.ErrUnauthorized):
		return "not a participant in this conversation"
	case errors.Is(err, domain.ErrInvalidPayload):
		return "invalid message data"
	default:
		return "failed to send message"
	}
}

func sendError(sess *Session, msg string) {
	payload, err := json.Marshal(map[string]any{
		"event":   "error",
		"message": msg,
	})
	if err != nil {
		return
	}
	_ = sess.Send(payload)
}
