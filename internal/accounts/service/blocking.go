package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aussiebroadwan/coachdesk/internal/accounts/domain"
	"github.com/aussiebroadwan/coachdesk/internal/accounts/records"
	"github.com/aussiebroadwan/coachdesk/internal/accounts/store"
	"github.com/aussiebroadwan/coachdesk/pkg/identity"
	"github.com/aussiebroadwan/coachdesk/pkg/idx"
	"github.com/aussiebroadwan/coachdesk/pkg/slogx"
)

// BlockResult reports a completed block or unblock.
type BlockResult struct {
	Success      bool   `json:"success"`
	Email        string `json:"email"`
	AccountID    string `json:"accountId"`
	UserRecordID string `json:"userRecordId"`
	Blocked      bool   `json:"blocked"`
	Message      string `json:"message"`
}

// BlockingStatus is the record store's view of whether a user is blocked.
type BlockingStatus struct {
	Email        string `json:"email"`
	UserRecordID string `json:"userRecordId"`
	IsBlocked    bool   `json:"isBlocked"`
}

// BlockingService toggles login ability while keeping the login account's
// blocked flag and the UserRecord's isActive flag in agreement.
type BlockingService struct {
	Identity IdentityProvider
	Records  RecordStore
	Store    store.Store
	Now      func() time.Time // Optional: defaults to time.Now
}

func (s *BlockingService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// BlockUserAccount blocks the login account, then deactivates the UserRecord.
// If the record update fails the account block is reverted.
func (s *BlockingService) BlockUserAccount(
	ctx context.Context,
	email string,
	reason string,
	blockedBy string,
) (BlockResult, error) {
	log := slogx.FromContext(ctx)
	email = normaliseEmail(email)
	if err := validateEmail(email); err != nil {
		return BlockResult{}, err
	}

	event := domain.AccountEvent{Email: email, Action: domain.ActionBlock, Actor: blockedBy, Reason: reason}

	// 1. Resolve the login account
	account, err := s.resolveAccount(ctx, email)
	if err != nil {
		s.recordEvent(ctx, event, domain.OutcomeFailed, err)
		return BlockResult{}, err
	}

	// 2. Block it
	meta := identity.AppMetadata{
		identity.MetaBlockedAt:     s.now().Format(time.RFC3339),
		identity.MetaBlockedReason: reason,
		identity.MetaBlockedBy:     blockedBy,
	}
	if _, err := s.Identity.UpdateUser(ctx, account.UserID, identity.UpdateUserRequest{
		Blocked:     boolPtr(true),
		AppMetadata: meta,
	}); err != nil {
		log.Error("failed to block login account",
			slog.String("email", email),
			slog.String("account_id", account.UserID),
			slog.Any("error", err),
		)
		se := stepErr(StepBlockAccount, KindIdentityWrite, err)
		s.recordEvent(ctx, event, domain.OutcomeFailed, se)
		return BlockResult{}, se
	}

	// 3. Deactivate the UserRecord
	user, err := s.setRecordActive(ctx, email, false)
	if err != nil {
		storeErr := stepErr(StepUpdateUserRecord, KindStoreWrite, err)

		// 4. Compensate: revert the account block
		log.Warn("user record update failed after block; reverting login account",
			slog.String("email", email),
			slog.String("account_id", account.UserID),
			slog.Any("error", err),
		)
		if compErr := s.unblockAccount(ctx, account.UserID, nil); compErr != nil {
			log.Error("compensation failed; account blocked but user record active",
				slog.String("email", email),
				slog.String("account_id", account.UserID),
				slog.Any("error", compErr),
			)
			ce := stepErr(StepCompensate, KindCompensation, errors.Join(storeErr, compErr))
			s.recordEvent(ctx, event, domain.OutcomeCompensationFailed, ce)
			return BlockResult{}, ce
		}

		s.recordEvent(ctx, event, domain.OutcomeCompensated, storeErr)
		return BlockResult{}, storeErr
	}

	s.recordEvent(ctx, event, domain.OutcomeOK, nil)
	log.Info("user blocked",
		slog.String("email", email),
		slog.String("account_id", account.UserID),
		slog.String("user_record_id", user.ID),
		slog.String("blocked_by", blockedBy),
	)

	return BlockResult{
		Success:      true,
		Email:        email,
		AccountID:    account.UserID,
		UserRecordID: user.ID,
		Blocked:      true,
		Message:      fmt.Sprintf("User %s has been blocked.", email),
	}, nil
}

// UnblockUserAccount unblocks the login account, then reactivates the
// UserRecord. A record failure is reported without reverting the account.
func (s *BlockingService) UnblockUserAccount(
	ctx context.Context,
	email string,
	unblockedBy string,
) (BlockResult, error) {
	log := slogx.FromContext(ctx)
	email = normaliseEmail(email)
	if err := validateEmail(email); err != nil {
		return BlockResult{}, err
	}

	event := domain.AccountEvent{Email: email, Action: domain.ActionUnblock, Actor: unblockedBy}

	// 1. Resolve the login account
	account, err := s.resolveAccount(ctx, email)
	if err != nil {
		s.recordEvent(ctx, event, domain.OutcomeFailed, err)
		return BlockResult{}, err
	}

	// 2. Unblock it
	if err := s.unblockAccount(ctx, account.UserID, &unblockedBy); err != nil {
		log.Error("failed to unblock login account",
			slog.String("email", email),
			slog.String("account_id", account.UserID),
			slog.Any("error", err),
		)
		se := stepErr(StepUnblockAccount, KindIdentityWrite, err)
		s.recordEvent(ctx, event, domain.OutcomeFailed, se)
		return BlockResult{}, se
	}

	// 3. Reactivate the UserRecord
	user, err := s.setRecordActive(ctx, email, true)
	if err != nil {
		log.Error("user record update failed after unblock; systems have drifted",
			slog.String("email", email),
			slog.String("account_id", account.UserID),
			slog.Any("error", err),
		)
		se := stepErr(StepUpdateUserRecord, KindStoreWrite, err)
		s.recordEvent(ctx, event, domain.OutcomeFailed, se)
		return BlockResult{}, se
	}

	s.recordEvent(ctx, event, domain.OutcomeOK, nil)
	log.Info("user unblocked",
		slog.String("email", email),
		slog.String("account_id", account.UserID),
		slog.String("user_record_id", user.ID),
		slog.String("unblocked_by", unblockedBy),
	)

	return BlockResult{
		Success:      true,
		Email:        email,
		AccountID:    account.UserID,
		UserRecordID: user.ID,
		Blocked:      false,
		Message:      fmt.Sprintf("User %s has been unblocked.", email),
	}, nil
}

// GetUserBlockingStatus reads only the record store.
func (s *BlockingService) GetUserBlockingStatus(ctx context.Context, email string) (BlockingStatus, error) {
	email = normaliseEmail(email)
	if err := validateEmail(email); err != nil {
		return BlockingStatus{}, err
	}

	user, err := s.Records.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, records.ErrNotFound) {
			return BlockingStatus{}, stepErr(StepResolveUserRecord, KindNotFound, ErrUserNotFound)
		}
		return BlockingStatus{}, stepErr(StepResolveUserRecord, KindLookup, err)
	}

	return BlockingStatus{
		Email:        email,
		UserRecordID: user.ID,
		IsBlocked:    !user.IsActive,
	}, nil
}

// AccountHistory lists recent block and unblock attempts for email.
func (s *BlockingService) AccountHistory(ctx context.Context, email string, limit int) ([]domain.AccountEvent, error) {
	email = normaliseEmail(email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.Store.AccountEvents().ListAccountEventsByEmail(ctx, email, limit)
}

func (s *BlockingService) resolveAccount(ctx context.Context, email string) (identity.User, error) {
	accounts, err := s.Identity.GetUsersByEmail(ctx, email)
	if err != nil {
		return identity.User{}, stepErr(StepResolveAccount, KindLookup, err)
	}
	if len(accounts) == 0 {
		return identity.User{}, stepErr(StepResolveAccount, KindNotFound, ErrAccountNotFound)
	}
	return accounts[0], nil
}

// unblockAccount clears the blocked flag and blocked_* metadata. A non-nil
// unblockedBy also stamps unblocked_at and unblocked_by.
func (s *BlockingService) unblockAccount(ctx context.Context, accountID string, unblockedBy *string) error {
	meta := identity.AppMetadata{
		identity.MetaBlockedAt:     nil,
		identity.MetaBlockedReason: nil,
		identity.MetaBlockedBy:     nil,
	}
	if unblockedBy != nil {
		meta[identity.MetaUnblockedAt] = s.now().Format(time.RFC3339)
		meta[identity.MetaUnblockedBy] = *unblockedBy
	}
	_, err := s.Identity.UpdateUser(ctx, accountID, identity.UpdateUserRequest{
		Blocked:     boolPtr(false),
		AppMetadata: meta,
	})
	return err
}

func (s *BlockingService) setRecordActive(ctx context.Context, email string, active bool) (domain.UserRecord, error) {
	user, err := s.Records.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, records.ErrNotFound) {
			return domain.UserRecord{}, ErrUserNotFound
		}
		return domain.UserRecord{}, err
	}
	return s.Records.SetUserActive(ctx, user.ID, active)
}

// recordEvent writes the audit row. Failures are logged only.
func (s *BlockingService) recordEvent(
	ctx context.Context,
	ev domain.AccountEvent,
	outcome domain.EventOutcome,
	cause error,
) {
	if s.Store == nil {
		return
	}
	ev.ID = idx.New().String()
	ev.Outcome = outcome
	ev.CreatedAt = s.now()
	if cause != nil {
		ev.Detail = truncate(cause.Error(), 1000)
	}
	if err := s.Store.AccountEvents().CreateAccountEvent(ctx, ev); err != nil {
		slogx.FromContext(ctx).Warn("failed to record account event",
			slog.String("email", ev.Email),
			slog.String("action", string(ev.Action)),
			slog.Any("error", err),
		)
	}
}

func boolPtr(b bool) *bool { return &b }

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.ToValidUTF8(s[:n], "")
}
