package httpserver

import (
	"encoding/json"
	"net/http"

	"pairchat/internal/domain"
	"pairchat/internal/service"
)

type conversationCreateRequest struct {
	ParticipantID int64 `json:"participantId"`
}

// @Summary      Start a conversation
// @Description  Returns the conversation with the given user, creating it on first contact
// @Tags         conversations
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        input body conversationCreateRequest true "Other participant"
// @Success      200  {object}  map[string]int64
// @Failure      400  {object}  map[string]string
// @Router       /conversations [post]
func handleCreateConversation(convSvc *service.ConversationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		currentUser := CurrentUser(r)
		if currentUser == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		var req conversationCreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
			return
		}

		conv, err := convSvc.StartConversation(r.Context(), currentUser.ID, req.ParticipantID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"conversationId": conv.ID})
	}
}

// @Summary      List conversations
// @Description  The caller's inbox, newest activity first
// @Tags         conversations
// @Security     BearerAuth
// @Produce      json
// @Success      200  {array}  domain.ConversationSummary
// @Router       /conversations [get]
func handleListConversations(convSvc *service.ConversationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		currentUser := CurrentUser(r)
		if currentUser == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		convs, err := convSvc.ListForUser(r.Context(), currentUser.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		if convs == nil {
			convs = []*domain.ConversationSummary{}
		}
		writeJSON(w, http.StatusOK, convs)
	}
}
