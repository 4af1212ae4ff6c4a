package domain

import "time"

// UserRecord is the record-store view of a person.
type UserRecord struct {
	ID              string     `json:"id"`
	FirstName       string     `json:"firstName"`
	LastName        string     `json:"lastName"`
	Email           string     `json:"email"`
	Role            Role       `json:"role"`
	IsActive        bool       `json:"isActive"` // false is the store-side "blocked"
	AssignedCoachID string     `json:"assignedCoachId,omitempty"`
	AccessStart     *time.Time `json:"accessStart,omitempty"`
	AccessEnd       *time.Time `json:"accessEnd,omitempty"`
	HasPaid         bool       `json:"hasPaid"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// FullName joins first and last name.
func (u UserRecord) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// NewUserRecord carries the fields for creating a UserRecord.
type NewUserRecord struct {
	FirstName   string
	LastName    string
	Email       string
	RoleID      string
	AccessStart *time.Time
	AccessEnd   *time.Time
	HasPaid     bool
}
