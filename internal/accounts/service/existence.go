package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/aussiebroadwan/coachdesk/internal/accounts/records"
	"github.com/aussiebroadwan/coachdesk/pkg/slogx"
)

// Drift classifies disagreement between the record store and the identity
// provider for one email.
type Drift string

const (
	DriftNone        Drift = "none"
	DriftRecordOnly  Drift = "record_only"  // UserRecord without a login account
	DriftAccountOnly Drift = "account_only" // login account without a UserRecord
)

// ExistenceReport is the outcome of CheckUserExists.
type ExistenceReport struct {
	Exists         bool   `json:"exists"`
	IdentityExists bool   `json:"identityExists"`
	Drift          Drift  `json:"drift"`
	UserRecordID   string `json:"userRecordId,omitempty"`
	AccountID      string `json:"accountId,omitempty"`
}

// CheckUserExists queries both systems for email.
func (s *ProvisioningService) CheckUserExists(ctx context.Context, email string) (ExistenceReport, error) {
	email = normaliseEmail(email)
	if err := validateEmail(email); err != nil {
		return ExistenceReport{}, err
	}

	report, err := s.checkExistence(ctx, email)
	if err != nil {
		return ExistenceReport{}, err
	}

	if report.Drift != DriftNone {
		slogx.FromContext(ctx).Warn("account drift detected",
			slog.String("email", email),
			slog.String("drift", string(report.Drift)),
			slog.String("user_record_id", report.UserRecordID),
			slog.String("account_id", report.AccountID),
		)
	}
	return report, nil
}

func (s *ProvisioningService) checkExistence(ctx context.Context, email string) (ExistenceReport, error) {
	var report ExistenceReport

	user, err := s.Records.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		report.Exists = true
		report.UserRecordID = user.ID
	case !errors.Is(err, records.ErrNotFound):
		return ExistenceReport{}, stepErr(StepResolveUserRecord, KindLookup, err)
	}

	accounts, err := s.Identity.GetUsersByEmail(ctx, email)
	if err != nil {
		return ExistenceReport{}, stepErr(StepResolveAccount, KindLookup, err)
	}
	if len(accounts) > 0 {
		report.IdentityExists = true
		report.AccountID = accounts[0].UserID
	}

	switch {
	case report.Exists && !report.IdentityExists:
		report.Drift = DriftRecordOnly
	case !report.Exists && report.IdentityExists:
		report.Drift = DriftAccountOnly
	default:
		report.Drift = DriftNone
	}
	return report, nil
}
