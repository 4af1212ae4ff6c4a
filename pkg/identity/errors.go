package identity

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies identity provider failures so callers can branch on the
// category of a failure instead of its text.
type Kind string

const (
	KindUnknown            Kind = "unknown"
	KindMissingCredentials Kind = "missing_credentials"
	KindInvalidRequest     Kind = "invalid_request"
	KindUnauthorized       Kind = "unauthorized"
	KindForbidden          Kind = "forbidden"
	KindNotFound           Kind = "not_found"
	KindConflict           Kind = "conflict"
	KindRateLimited        Kind = "rate_limited"
	KindServer             Kind = "server_error"
)

// Error is a typed identity provider error.
type Error struct {
	StatusCode int
	Code       string
	Message    string
	Kind       Kind
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("identity %s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("identity %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// KindOf extracts the Kind of err, or KindUnknown when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// errorBody covers both error shapes: the management API
// ({statusCode, error, message, errorCode}) and the authentication API
// ({error, error_description}).
type errorBody struct {
	StatusCode       int    `json:"statusCode"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Message          string `json:"message"`
	ErrorCode        string `json:"errorCode"`
}

// parseErrorResponse turns a non-2xx response body into an *Error.
func parseErrorResponse(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	e := &Error{
		StatusCode: resp.StatusCode,
		Kind:       kindForStatus(resp.StatusCode),
	}

	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		e.Code = eb.ErrorCode
		if e.Code == "" {
			e.Code = eb.Error
		}
		e.Message = eb.Message
		if e.Message == "" {
			e.Message = eb.ErrorDescription
		}
	}

	if e.Code == "" {
		e.Code = http.StatusText(resp.StatusCode)
	}
	if e.Message == "" {
		e.Message = fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	return e
}

// parseTokenError classifies failures of the client_credentials grant. Any
// rejection of the machine credentials is reported as KindMissingCredentials.
func parseTokenError(resp *http.Response, body []byte) error {
	err := parseErrorResponse(resp, body)

	var e *Error
	if !errors.As(err, &e) {
		return err
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		e.Kind = KindMissingCredentials
	case e.Code == "access_denied", e.Code == "unauthorized_client", e.Code == "invalid_client":
		e.Kind = KindMissingCredentials
	}
	return e
}

func kindForStatus(status int) Kind {
	switch {
	case status == http.StatusBadRequest:
		return KindInvalidRequest
	case status == http.StatusUnauthorized:
		return KindUnauthorized
	case status == http.StatusForbidden:
		return KindForbidden
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusConflict:
		return KindConflict
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status >= 500:
		return KindServer
	default:
		return KindUnknown
	}
}
