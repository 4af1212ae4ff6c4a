package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/coachdesk/internal/accounts/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the local audit store. The record store and identity provider
// remain the sources of truth; nothing here is read back by the
// orchestrators when deciding what to do.
type Store interface {
	Invitations() Invitations
	AccountEvents() AccountEvents

	ApplyMigrations() error

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise it is committed.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx exposes the repositories inside one transaction.
type Tx interface {
	Invitations() Invitations
	AccountEvents() AccountEvents
}

type Invitations interface {
	// CreateInvitation inserts an invitation (id is provided by the caller via ULID).
	CreateInvitation(ctx context.Context, inv domain.Invitation) error

	GetInvitationByID(ctx context.Context, id string) (domain.Invitation, error)

	// ListRecentInvitations returns up to limit invitations, newest first.
	ListRecentInvitations(ctx context.Context, limit int) ([]domain.Invitation, error)

	// DeleteInvitationsBefore prunes invitations created before cutoff.
	DeleteInvitationsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type AccountEvents interface {
	CreateAccountEvent(ctx context.Context, ev domain.AccountEvent) error

	// ListAccountEventsByEmail returns up to limit events for email, newest first.
	ListAccountEventsByEmail(ctx context.Context, email string, limit int) ([]domain.AccountEvent, error)

	DeleteAccountEventsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
