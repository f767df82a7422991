package httpserver

import (
	"net/http"

	"pairchat/internal/service"
)

// @Summary      List users
// @Description  All users, for the contact picker
// @Tags         users
// @Security     BearerAuth
// @Produce      json
// @Success      200  {array}  domain.User
// @Router       /users [get]
func handleListUsers(userSvc *service.UserService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		users, err := userSvc.List(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, users)
	}
}
