package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/aussiebroadwan/coachdesk/internal/accounts/domain"
	"github.com/aussiebroadwan/coachdesk/internal/accounts/records"
	"github.com/aussiebroadwan/coachdesk/pkg/identity"
)

// Authorize returns ErrForbiddenTarget unless actor may manage accounts
// holding target.
func Authorize(actor, target domain.Role) error {
	if actor.CanManage(target) {
		return nil
	}
	if target == "" {
		return fmt.Errorf("%w: the account's role is unknown", ErrForbiddenTarget)
	}
	return fmt.Errorf("%w: %s may not manage %s accounts", ErrForbiddenTarget, actor, target)
}

// TargetRole resolves the role of the account behind email. The UserRecord
// wins; an orphan login account falls back to its app_metadata role, which
// may be empty. When neither system knows the email the result is
// ErrAccountNotFound.
func (s *BlockingService) TargetRole(ctx context.Context, email string) (domain.Role, error) {
	email = normaliseEmail(email)
	if err := validateEmail(email); err != nil {
		return "", err
	}

	user, err := s.Records.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		return user.Role, nil
	case !errors.Is(err, records.ErrNotFound):
		return "", stepErr(StepResolveUserRecord, KindLookup, err)
	}

	accounts, err := s.Identity.GetUsersByEmail(ctx, email)
	if err != nil {
		return "", stepErr(StepResolveAccount, KindLookup, err)
	}
	if len(accounts) == 0 {
		return "", stepErr(StepResolveAccount, KindNotFound, ErrAccountNotFound)
	}
	role, _ := accounts[0].AppMetadata[identity.MetaRole].(string)
	return domain.Role(role), nil
}
