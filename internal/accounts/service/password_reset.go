package service

import (
	"context"
	"log/slog"

	"github.com/aussiebroadwan/coachdesk/pkg/identity"
	"github.com/aussiebroadwan/coachdesk/pkg/slogx"
)

// GenericResetMessage is returned whether or not an account exists.
const GenericResetMessage = "If an account exists for this email, a password reset link has been sent."

const defaultResetSentMessage = "We've just sent you an email to reset your password."

// ResetResult is the outcome of a password reset request.
type ResetResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// PasswordResetService starts identity-provider password resets.
type PasswordResetService struct {
	Identity IdentityProvider
}

// RequestPasswordReset checks for an account first and only sends the reset
// email when one exists. The response does not reveal which case occurred.
// When the existence check cannot authenticate it falls back to sending
// directly.
func (s *PasswordResetService) RequestPasswordReset(ctx context.Context, email string) (ResetResult, error) {
	log := slogx.FromContext(ctx)
	email = normaliseEmail(email)
	if err := validateEmail(email); err != nil {
		return ResetResult{}, err
	}

	// 1. Check the account exists
	accounts, err := s.Identity.GetUsersByEmail(ctx, email)
	if err != nil {
		// 2. Missing management credentials: skip the check
		if identity.IsKind(err, identity.KindMissingCredentials) {
			log.Warn("management credentials unavailable; sending reset without existence check",
				slog.Any("error", err),
			)
			return s.SendPasswordResetEmail(ctx, email)
		}
		log.Error("password reset existence check failed", slog.Any("error", err))
		return ResetResult{}, stepErr(StepResolveAccount, KindLookup, err)
	}

	// 3. Unknown email: same answer as success
	if len(accounts) == 0 {
		log.Info("password reset requested for unknown email")
		return ResetResult{Success: true, Message: GenericResetMessage}, nil
	}

	// 4. Send
	return s.SendPasswordResetEmail(ctx, email)
}

// SendPasswordResetEmail sends the reset email without checking existence.
func (s *PasswordResetService) SendPasswordResetEmail(ctx context.Context, email string) (ResetResult, error) {
	email = normaliseEmail(email)
	if err := validateEmail(email); err != nil {
		return ResetResult{}, err
	}

	msg, err := s.Identity.SendChangePasswordEmail(ctx, email)
	if err != nil {
		slogx.FromContext(ctx).Error("failed to send password reset email", slog.Any("error", err))
		return ResetResult{}, stepErr(StepPasswordReset, KindIdentityWrite, err)
	}
	if msg == "" {
		msg = defaultResetSentMessage
	}
	return ResetResult{Success: true, Message: msg}, nil
}

// PasswordResetURL is the hosted login page where a reset can be started.
func (s *PasswordResetService) PasswordResetURL() string {
	return s.Identity.PasswordResetURL()
}
