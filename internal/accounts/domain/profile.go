package domain

type ProfileKind string

const (
	ProfileNone    ProfileKind = ""
	ProfileStudent ProfileKind = "student"
	ProfileCoach   ProfileKind = "coach"
)

// RoleProfile is the 1:1 role-specific extension of a UserRecord.
type RoleProfile struct {
	ID     string
	UserID string
	Kind   ProfileKind
}
