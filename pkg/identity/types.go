package identity

import "time"

// TokenResponse is the /oauth/token response for the client_credentials grant.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Scope       string `json:"scope,omitempty"`
}

// AppMetadata is the provider-side metadata bag. Keys set to nil are removed
// by a PATCH.
type AppMetadata map[string]any

// Well-known app_metadata keys.
const (
	MetaRole          = "role"
	MetaInvitedBy     = "invited_by"
	MetaUserRecordID  = "user_record_id"
	MetaAccessStart   = "access_start"
	MetaAccessEnd     = "access_end"
	MetaHasPaid       = "has_paid"
	MetaBlockedAt     = "blocked_at"
	MetaBlockedReason = "blocked_reason"
	MetaBlockedBy     = "blocked_by"
	MetaUnblockedAt   = "unblocked_at"
	MetaUnblockedBy   = "unblocked_by"
)

// User is an account in the identity provider.
type User struct {
	UserID        string      `json:"user_id"`
	Email         string      `json:"email"`
	EmailVerified bool        `json:"email_verified"`
	GivenName     string      `json:"given_name,omitempty"`
	FamilyName    string      `json:"family_name,omitempty"`
	Name          string      `json:"name,omitempty"`
	Blocked       bool        `json:"blocked,omitempty"`
	AppMetadata   AppMetadata `json:"app_metadata,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// CreateUserRequest is the body of POST /api/v2/users.
type CreateUserRequest struct {
	Email         string      `json:"email"`
	GivenName     string      `json:"given_name,omitempty"`
	FamilyName    string      `json:"family_name,omitempty"`
	Name          string      `json:"name,omitempty"`
	Connection    string      `json:"connection"`
	Password      string      `json:"password,omitempty"`
	EmailVerified bool        `json:"email_verified"`
	VerifyEmail   bool        `json:"verify_email"`
	AppMetadata   AppMetadata `json:"app_metadata,omitempty"`
}

// UpdateUserRequest is the body of PATCH /api/v2/users/{id}. Nil fields are
// left untouched.
type UpdateUserRequest struct {
	Blocked     *bool       `json:"blocked,omitempty"`
	AppMetadata AppMetadata `json:"app_metadata,omitempty"`
}

type changePasswordRequest struct {
	ClientID   string `json:"client_id"`
	Email      string `json:"email"`
	Connection string `json:"connection"`
}

type clientCredentialsRequest struct {
	GrantType    string `json:"grant_type"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	Audience     string `json:"audience"`
}
