package service

import (
	"context"

	"github.com/aussiebroadwan/coachdesk/internal/accounts/domain"
	"github.com/aussiebroadwan/coachdesk/pkg/identity"
	"github.com/aussiebroadwan/coachdesk/pkg/mailer"
)

// IdentityProvider is the subset of *identity.Client the orchestrators use.
type IdentityProvider interface {
	GetUsersByEmail(ctx context.Context, email string) ([]identity.User, error)
	CreateUser(ctx context.Context, req identity.CreateUserRequest) (*identity.User, error)
	UpdateUser(ctx context.Context, userID string, req identity.UpdateUserRequest) (*identity.User, error)
	SendChangePasswordEmail(ctx context.Context, email string) (string, error)
	PasswordResetURL() string
}

// RecordStore is the subset of *records.Client the orchestrators use.
// Lookups return records.ErrNotFound when nothing matches.
type RecordStore interface {
	CreateUser(ctx context.Context, in domain.NewUserRecord) (domain.UserRecord, error)
	GetUserByEmail(ctx context.Context, email string) (domain.UserRecord, error)
	SetUserActive(ctx context.Context, userID string, active bool) (domain.UserRecord, error)
	CreateStudentProfile(ctx context.Context, user domain.UserRecord) (domain.RoleProfile, error)
	CreateCoachProfile(ctx context.Context, user domain.UserRecord) (domain.RoleProfile, error)
	AssignCoachToStudent(ctx context.Context, studentID, coachID string) error
}

// EmailDispatcher sends one templated message.
type EmailDispatcher interface {
	Send(ctx context.Context, msg mailer.Message) (mailer.Receipt, error)
}

var (
	_ IdentityProvider = (*identity.Client)(nil)
	_ EmailDispatcher  = (*mailer.Dispatcher)(nil)
)
