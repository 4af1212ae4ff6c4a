package domain

import "time"

type AccountAction string

const (
	ActionBlock   AccountAction = "block"
	ActionUnblock AccountAction = "unblock"
)

type EventOutcome string

const (
	OutcomeOK                 EventOutcome = "ok"
	OutcomeFailed             EventOutcome = "failed"
	OutcomeCompensated        EventOutcome = "compensated"
	OutcomeCompensationFailed EventOutcome = "compensation_failed"
)

// AccountEvent audits one block or unblock attempt.
type AccountEvent struct {
	ID        string        `json:"id"`
	Email     string        `json:"email"`
	Action    AccountAction `json:"action"`
	Actor     string        `json:"actor,omitempty"`
	Reason    string        `json:"reason,omitempty"`
	Outcome   EventOutcome  `json:"outcome"`
	Detail    string        `json:"detail,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
}
