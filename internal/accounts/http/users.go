package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/aussiebroadwan/coachdesk/internal/accounts/domain"
	"github.com/aussiebroadwan/coachdesk/internal/accounts/service"
	"github.com/aussiebroadwan/coachdesk/pkg/httpx"
)

// IdempotencyKeyHeader may carry the invite idempotency key instead of the body.
const IdempotencyKeyHeader = "Idempotency-Key"

// UsersHandler serves the admin user lifecycle endpoints.
type UsersHandler struct {
	Provisioning *service.ProvisioningService
	Blocking     *service.BlockingService
}

type blockRequest struct {
	Email  string `json:"email"`
	Reason string `json:"reason,omitempty"`
}

type unblockRequest struct {
	Email string `json:"email"`
}

type existsResponse struct {
	Success bool `json:"success"`
	service.ExistenceReport
}

type statusResponse struct {
	Success bool `json:"success"`
	service.BlockingStatus
}

type eventsResponse struct {
	Success bool                  `json:"success"`
	Events  []domain.AccountEvent `json:"events"`
}

// HandleInvite handles POST /v1/users/invite. A new user answers 201, a
// replayed idempotent request 200.
func (h *UsersHandler) HandleInvite(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req service.InviteRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if key := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader)); key != "" {
		if req.IdempotencyKey != "" && req.IdempotencyKey != key {
			writeBadRequest(w, "idempotency key in header and body differ")
			return
		}
		req.IdempotencyKey = key
	}
	caller := httpx.SubjectFromContext(ctx)
	if req.InvitedBy != "" && !strings.EqualFold(strings.TrimSpace(req.InvitedBy), caller) {
		writeBadRequest(w, "invitedBy must match the authenticated caller")
		return
	}
	req.InvitedBy = caller

	// Unknown roles fall through to request validation.
	if req.Role.Valid() {
		if err := service.Authorize(callerRole(r), req.Role); err != nil {
			writeServiceError(w, r, err)
			return
		}
	}

	result, err := h.Provisioning.InviteUser(ctx, req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
	}
	httpx.WriteJSON(w, status, result)
}

// HandleExists handles GET /v1/users/exists?email=
func (h *UsersHandler) HandleExists(w http.ResponseWriter, r *http.Request) {
	report, err := h.Provisioning.CheckUserExists(r.Context(), r.URL.Query().Get("email"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, existsResponse{Success: true, ExistenceReport: report})
}

// HandleBlock handles POST /v1/users/block. The caller is recorded as blockedBy.
func (h *UsersHandler) HandleBlock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req blockRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if !h.authorizeTarget(w, r, req.Email) {
		return
	}

	result, err := h.Blocking.BlockUserAccount(ctx, req.Email, req.Reason, httpx.SubjectFromContext(ctx))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, result)
}

// HandleUnblock handles POST /v1/users/unblock.
func (h *UsersHandler) HandleUnblock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req unblockRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if !h.authorizeTarget(w, r, req.Email) {
		return
	}

	result, err := h.Blocking.UnblockUserAccount(ctx, req.Email, httpx.SubjectFromContext(ctx))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, result)
}

// HandleStatus handles GET /v1/users/status?email=
func (h *UsersHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.Blocking.GetUserBlockingStatus(r.Context(), r.URL.Query().Get("email"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, statusResponse{Success: true, BlockingStatus: status})
}

// HandleEvents handles GET /v1/users/events?email=&limit=
func (h *UsersHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	events, err := h.Blocking.AccountHistory(r.Context(), r.URL.Query().Get("email"), limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if events == nil {
		events = []domain.AccountEvent{}
	}
	httpx.WriteJSON(w, http.StatusOK, eventsResponse{Success: true, Events: events})
}

// parseLimit reads ?limit=. Absent means 0, which the services default.
func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		writeBadRequest(w, "limit must be a non-negative integer")
		return 0, false
	}
	return n, true
}

func callerRole(r *http.Request) domain.Role {
	return domain.Role(httpx.RoleFromContext(r.Context()))
}

// authorizeTarget checks the caller may act on the account behind email and
// writes the error response when not. Super admins skip the lookup.
func (h *UsersHandler) authorizeTarget(w http.ResponseWriter, r *http.Request, email string) bool {
	actor := callerRole(r)
	if actor == domain.RoleSuperAdmin {
		return true
	}

	target, err := h.Blocking.TargetRole(r.Context(), email)
	if err == nil {
		err = service.Authorize(actor, target)
	}
	if err != nil {
		writeServiceError(w, r, err)
		return false
	}
	return true
}
