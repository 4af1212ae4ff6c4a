package http

import (
	"net/http"

	"github.com/aussiebroadwan/coachdesk/internal/accounts/domain"
	"github.com/aussiebroadwan/coachdesk/internal/accounts/service"
	"github.com/aussiebroadwan/coachdesk/pkg/httpx"
)

type InvitationsHandler struct {
	Provisioning *service.ProvisioningService
}

type invitationResponse struct {
	Success    bool              `json:"success"`
	Invitation domain.Invitation `json:"invitation"`
}

type invitationsResponse struct {
	Success     bool                `json:"success"`
	Invitations []domain.Invitation `json:"invitations"`
}

// HandleList handles GET /v1/invitations?limit=
func (h *InvitationsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	invitations, err := h.Provisioning.ListInvitations(r.Context(), limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if invitations == nil {
		invitations = []domain.Invitation{}
	}
	httpx.WriteJSON(w, http.StatusOK, invitationsResponse{Success: true, Invitations: invitations})
}

// HandleGet handles GET /v1/invitations/{id}
func (h *InvitationsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	inv, err := h.Provisioning.GetInvitation(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, invitationResponse{Success: true, Invitation: inv})
}
