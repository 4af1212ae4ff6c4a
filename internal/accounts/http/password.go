package http

import (
	"net/http"

	"github.com/aussiebroadwan/coachdesk/internal/accounts/service"
	"github.com/aussiebroadwan/coachdesk/pkg/httpx"
)

// PasswordHandler serves the public password reset endpoints.
type PasswordHandler struct {
	PasswordReset *service.PasswordResetService
}

type resetRequest struct {
	Email string `json:"email"`
}

// HandleReset handles POST /v1/password/reset. Known and unknown emails get
// the same 200 answer.
func (h *PasswordHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	result, err := h.PasswordReset.RequestPasswordReset(r.Context(), req.Email)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, result)
}

// HandleRedirect handles GET /v1/password/reset/redirect with a 302 to the
// hosted reset page.
func (h *PasswordHandler) HandleRedirect(w http.ResponseWriter, r *http.Request) {
	httpx.NoCache(w)
	http.Redirect(w, r, h.PasswordReset.PasswordResetURL(), http.StatusFound)
}
