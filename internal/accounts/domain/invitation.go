package domain

import "time"

// Invitation is the advisory audit record written at the end of provisioning.
type Invitation struct {
	ID                string    `json:"id"`
	UserRecordID      string    `json:"userId"`
	Email             string    `json:"email"`
	Role              Role      `json:"role"`
	InvitedBy         string    `json:"invitedBy,omitempty"`
	EmailSent         bool      `json:"emailSent"`
	MessageID         string    `json:"messageId,omitempty"`
	AccountCreated    bool      `json:"accountCreated"`
	PasswordResetSent bool      `json:"passwordResetSent"`
	CreatedAt         time.Time `json:"createdAt"`
}
