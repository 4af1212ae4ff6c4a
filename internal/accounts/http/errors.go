package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/coachdesk/internal/accounts/service"
	"github.com/aussiebroadwan/coachdesk/pkg/httpx"
	"github.com/aussiebroadwan/coachdesk/pkg/slogx"
)

// errorResponse is the failure envelope. Step and Kind are set for
// orchestrator step failures.
type errorResponse struct {
	Success bool              `json:"success"`
	Error   string            `json:"error"`
	Step    string            `json:"step,omitempty"`
	Kind    service.ErrorKind `json:"kind,omitempty"`
}

// writeServiceError maps service errors to HTTP statuses. Upstream failure
// kinds are matched before not-found causes: a record that vanished after the
// account was already blocked is a failed write, not a missing user.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	msg := "internal error"

	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrForbiddenTarget):
		status, msg = http.StatusForbidden, err.Error()
	case errors.Is(err, service.ErrUserAlreadyExists),
		errors.Is(err, service.ErrRequestInFlight):
		status, msg = http.StatusConflict, err.Error()
	case errors.Is(err, service.ErrCompensation),
		errors.Is(err, service.ErrStoreWrite),
		errors.Is(err, service.ErrIdentityWrite),
		errors.Is(err, service.ErrLookup):
		status, msg = http.StatusBadGateway, err.Error()
	case errors.Is(err, service.ErrAccountNotFound),
		errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrInvitationMissing):
		status, msg = http.StatusNotFound, err.Error()
	}

	body := errorResponse{Success: false, Error: msg}
	var se *service.StepError
	if errors.As(err, &se) {
		body.Step = se.Step
		body.Kind = se.Kind
	}

	log := slogx.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error("request failed", "status", status, "error", err)
	} else {
		log.Info("request rejected", "status", status, "error", err)
	}

	httpx.WriteJSON(w, status, body)
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	httpx.WriteError(w, http.StatusBadRequest, msg)
}
