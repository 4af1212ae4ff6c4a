package sqlite

import (
	"database/sql"

	"github.com/aussiebroadwan/coachdesk/internal/accounts/store"
)

// txStore scopes the repositories to one *sql.Tx. Commit and rollback stay
// with WithTx.
type txStore struct {
	tx *sql.Tx
}

func (t *txStore) Invitations() store.Invitations     { return &invitationsRepo{db: t.tx} }
func (t *txStore) AccountEvents() store.AccountEvents { return &accountEventsRepo{db: t.tx} }
