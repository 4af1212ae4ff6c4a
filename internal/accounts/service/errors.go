package service

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrInvalidRequest    = errors.New("invalid request")
	ErrUserAlreadyExists = errors.New("a user with this email already exists")
	ErrRequestInFlight   = errors.New("a request with this idempotency key is already in progress")
	ErrAccountNotFound   = errors.New("no login account exists for this email")
	ErrUserNotFound      = errors.New("no user record exists for this email")
	ErrInvitationMissing = errors.New("invitation not found")
	ErrForbiddenTarget   = errors.New("caller may not manage accounts with this role")
)

// Sentinels exposed through StepError.Unwrap so callers can use errors.Is
// on the failure category.
var (
	ErrStoreWrite    = errors.New("record store write failed")
	ErrIdentityWrite = errors.New("identity provider write failed")
	ErrEmailSend     = errors.New("email send failed")
	ErrProfileLink   = errors.New("role profile link failed")
	ErrCoachAssign   = errors.New("coach assignment failed")
	ErrNotFound      = errors.New("not found")
	ErrCompensation  = errors.New("compensation failed")
	ErrLookup        = errors.New("upstream lookup failed")
)

type ErrorKind string

const (
	KindStoreWrite    ErrorKind = "store_write"
	KindIdentityWrite ErrorKind = "identity_write"
	KindEmailSend     ErrorKind = "email_send"
	KindProfileLink   ErrorKind = "profile_link"
	KindCoachAssign   ErrorKind = "coach_assign"
	KindNotFound      ErrorKind = "not_found"
	KindCompensation  ErrorKind = "compensation_failure"
	KindLookup        ErrorKind = "lookup"
)

func (k ErrorKind) sentinel() error {
	switch k {
	case KindStoreWrite:
		return ErrStoreWrite
	case KindIdentityWrite:
		return ErrIdentityWrite
	case KindEmailSend:
		return ErrEmailSend
	case KindProfileLink:
		return ErrProfileLink
	case KindCoachAssign:
		return ErrCoachAssign
	case KindNotFound:
		return ErrNotFound
	case KindCompensation:
		return ErrCompensation
	case KindLookup:
		return ErrLookup
	}
	return nil
}

// Step names used in StepError and logs.
const (
	StepCreateUserRecord  = "create_user_record"
	StepCreateRoleProfile = "create_role_profile"
	StepCreateAccount     = "create_account"
	StepLinkAccount       = "link_account"
	StepPasswordSetup     = "send_password_setup"
	StepAssignCoach       = "assign_coach"
	StepInvitationEmail   = "send_invitation_email"
	StepResolveAccount    = "resolve_account"
	StepBlockAccount      = "block_account"
	StepUnblockAccount    = "unblock_account"
	StepUpdateUserRecord  = "update_user_record"
	StepCompensate        = "compensate"
	StepResolveUserRecord = "resolve_user_record"
	StepPasswordReset     = "send_password_reset"
)

// StepError attributes a failure to one orchestrator step.
type StepError struct {
	Step string
	Kind ErrorKind
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() []error {
	if s := e.Kind.sentinel(); s != nil {
		return []error{s, e.Err}
	}
	return []error{e.Err}
}

type stepErrorJSON struct {
	Step  string    `json:"step"`
	Kind  ErrorKind `json:"kind"`
	Error string    `json:"error"`
}

func (e *StepError) MarshalJSON() ([]byte, error) {
	msg := ""
	if e.Err != nil {
		msg = e.Err.Error()
	}
	return json.Marshal(stepErrorJSON{Step: e.Step, Kind: e.Kind, Error: msg})
}

// UnmarshalJSON restores a StepError from a replayed result. The cause is
// reduced to its message.
func (e *StepError) UnmarshalJSON(b []byte) error {
	var v stepErrorJSON
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	e.Step = v.Step
	e.Kind = v.Kind
	e.Err = errors.New(v.Error)
	return nil
}

func stepErr(step string, kind ErrorKind, err error) *StepError {
	return &StepError{Step: step, Kind: kind, Err: err}
}
