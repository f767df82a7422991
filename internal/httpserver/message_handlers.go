package httpserver

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"pairchat/internal/domain"
	"pairchat/internal/service"
)

type messageCreateRequest struct {
	Content  *string `json:"content"`
	ImageURL *string `json:"imageUrl"`
}

// @Summary      Send a message
// @Description  Persist a message and notify live participants
// @Tags         messages
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        conversationID path int true "Conversation ID"
// @Param        input body messageCreateRequest true "Exactly one of content and imageUrl"
// @Success      200  {object}  map[string]int64
// @Failure      400  {object}  map[string]string
// @Failure      403  {object}  map[string]string
// @Router       /conversations/{conversationID}/messages [post]
func handleCreateMessage(msgSvc *service.MessageService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		currentUser := CurrentUser(r)
		if currentUser == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		idStr := chi.URLParam(r, "conversationID")
		convID, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid conversation id"})
			return
		}
		var req messageCreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
			return
		}

		msg, err := msgSvc.Submit(r.Context(), service.SubmitInput{
			ConversationID: convID,
			Content:        req.Content,
			ImageURL:       req.ImageURL,
		}, currentUser.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"messageId": msg.ID})
	}
}

// @Summary      List messages
// @Description  Conversation history in timestamp order
// @Tags         messages
// @Security     BearerAuth
// @Produce      json
// @Param        conversationID path int true "Conversation ID"
// @Success      200  {array}  domain.MessageView
// @Failure      403  {object}  map[string]string
// @Router       /conversations/{conversationID}/messages [get]
func handleListMessages(msgSvc *service.MessageService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		currentUser := CurrentUser(r)
		if currentUser == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		idStr := chi.URLParam(r, "conversationID")
		convID, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid conversation id"})
			return
		}

		msgs, err := msgSvc.ListMessages(r.Context(), convID, currentUser.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		if msgs == nil {
			msgs = []*domain.MessageView{}
		}
		writeJSON(w, http.StatusOK, msgs)
	}
}
