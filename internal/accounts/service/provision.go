package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/aussiebroadwan/coachdesk/internal/accounts/domain"
	"github.com/aussiebroadwan/coachdesk/internal/accounts/idempotency"
	"github.com/aussiebroadwan/coachdesk/internal/accounts/store"
	"github.com/aussiebroadwan/coachdesk/pkg/cryptox"
	"github.com/aussiebroadwan/coachdesk/pkg/identity"
	"github.com/aussiebroadwan/coachdesk/pkg/idx"
	"github.com/aussiebroadwan/coachdesk/pkg/mailer"
	"github.com/aussiebroadwan/coachdesk/pkg/slogx"
)

// NoCoach is the assignedCoachId sentinel meaning "leave unassigned".
const NoCoach = "none"

// InviteRequest is the input to InviteUser.
type InviteRequest struct {
	FirstName       string      `json:"firstName" validate:"required,max=100"`
	LastName        string      `json:"lastName" validate:"required,max=100"`
	Email           string      `json:"email" validate:"required,email,max=320"`
	Role            domain.Role `json:"role" validate:"required,oneof=user coach coach_manager super_admin"`
	RoleID          string      `json:"roleId" validate:"required"`
	AssignedCoachID string      `json:"assignedCoachId,omitempty"`
	AccessStart     *time.Time  `json:"accessStart,omitempty"`
	AccessEnd       *time.Time  `json:"accessEnd,omitempty"`
	HasPaid         bool        `json:"hasPaid,omitempty"`
	InvitedBy       string      `json:"invitedBy,omitempty" validate:"max=320"`
	CustomMessage   string      `json:"customMessage,omitempty" validate:"max=2000"`
	IdempotencyKey  string      `json:"idempotencyKey,omitempty"`
}

// ProvisionResult reports what InviteUser achieved. Success is true whenever
// the UserRecord was created; later step failures are listed in Failures and
// rendered into Message.
type ProvisionResult struct {
	Success            bool              `json:"success"`
	User               domain.UserRecord `json:"user"`
	InvitationID       string            `json:"invitationId,omitempty"`
	EmailSent          bool              `json:"emailSent"`
	MessageID          string            `json:"messageId,omitempty"`
	AccountID          string            `json:"accountId,omitempty"`
	AccountCreated     bool              `json:"accountCreated"`
	AccountLinked      bool              `json:"accountLinked"`
	PasswordResetSent  bool              `json:"passwordResetSent"`
	RoleProfileCreated bool              `json:"roleProfileCreated"`
	CoachAssigned      bool              `json:"coachAssigned"`
	Failures           []*StepError      `json:"failures,omitempty"`
	Message            string            `json:"message"`
	Replayed           bool              `json:"replayed,omitempty"`
}

// Templates holds the dynamic template id per audience.
type Templates struct {
	Student string
	Coach   string
	Admin   string
}

// For picks the template for role.
func (t Templates) For(role domain.Role) string {
	switch role {
	case domain.RoleStudent:
		return t.Student
	case domain.RoleCoach:
		return t.Coach
	default:
		return t.Admin
	}
}

// ProvisioningService creates a usable account across the record store, the
// identity provider and email.
type ProvisioningService struct {
	Identity  IdentityProvider
	Records   RecordStore
	Mailer    EmailDispatcher
	Store     store.Store
	Ledger    idempotency.Ledger // Optional: idempotency keys are rejected without one
	Templates Templates
	LoginURL  string
	Now       func() time.Time // Optional: defaults to time.Now
}

func (s *ProvisioningService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// InviteUser provisions a user. It performs the following steps:
//  1. Validates the request and claims the idempotency key, replaying a
//     completed result for a reused key
//  2. Refuses emails that already have a UserRecord
//  3. Creates the UserRecord (the only fatal step) and its role profile
//  4. Creates the login account, or links an existing one on conflict
//  5. Sends the password setup email when an account exists
//  6. Assigns the coach for students
//  7. Sends the invitation email and records the invitation
func (s *ProvisioningService) InviteUser(ctx context.Context, req InviteRequest) (ProvisionResult, error) {
	log := slogx.FromContext(ctx)

	// 1. Validate input
	req.Email = normaliseEmail(req.Email)
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	if err := validate.Struct(req); err != nil {
		log.Warn("invite request failed validation", slog.Any("error", err))
		return ProvisionResult{}, validationError(err)
	}
	if req.AccessStart != nil && req.AccessEnd != nil && req.AccessEnd.Before(*req.AccessStart) {
		return ProvisionResult{}, fmt.Errorf("%w: accessEnd is before accessStart", ErrInvalidRequest)
	}

	// 2. Claim the idempotency key
	ledgerKey := ""
	if req.IdempotencyKey != "" {
		key, err := uuid.Parse(req.IdempotencyKey)
		if err != nil {
			return ProvisionResult{}, fmt.Errorf("%w: idempotencyKey must be a UUID", ErrInvalidRequest)
		}
		if s.Ledger == nil {
			return ProvisionResult{}, fmt.Errorf("%w: idempotency keys are not supported", ErrInvalidRequest)
		}
		// Bind the key to the email so one key cannot replay another user's result.
		ledgerKey = cryptox.FingerprintToken(key.String() + ":" + req.Email)

		prior, err := s.Ledger.Reserve(ctx, ledgerKey)
		switch {
		case errors.Is(err, idempotency.ErrInFlight):
			log.Warn("invite rejected: idempotency key in flight", slog.String("email", req.Email))
			return ProvisionResult{}, ErrRequestInFlight
		case err != nil:
			log.Error("failed to reserve idempotency key", slog.Any("error", err))
			return ProvisionResult{}, err
		case prior != nil:
			var replay ProvisionResult
			if err := json.Unmarshal(prior, &replay); err != nil {
				return ProvisionResult{}, fmt.Errorf("decode replayed result: %w", err)
			}
			replay.Replayed = true
			log.Info("invite replayed from idempotency ledger", slog.String("email", req.Email))
			return replay, nil
		}
	}
	release := func() {
		if ledgerKey == "" {
			return
		}
		if err := s.Ledger.Release(ctx, ledgerKey); err != nil {
			log.Warn("failed to release idempotency key", slog.Any("error", err))
		}
	}

	// 3. Mandatory existence check
	report, err := s.checkExistence(ctx, req.Email)
	if err != nil {
		release()
		log.Error("existence check failed", slog.String("email", req.Email), slog.Any("error", err))
		return ProvisionResult{}, err
	}
	if report.Exists {
		release()
		log.Warn("invite refused: user record already exists",
			slog.String("email", req.Email),
			slog.String("user_record_id", report.UserRecordID),
			slog.String("drift", string(report.Drift)),
		)
		return ProvisionResult{}, ErrUserAlreadyExists
	}

	run := &provisionRun{svc: s, log: log, req: req}

	// 4. Create the UserRecord; nothing else happens if this fails
	if err := run.createUserRecord(ctx); err != nil {
		release()
		return ProvisionResult{}, err
	}

	run.createRoleProfile(ctx)
	run.createAccount(ctx)
	run.sendPasswordSetup(ctx)
	run.assignCoach(ctx)
	run.sendInvitationEmail(ctx)
	run.recordInvitation(ctx)

	result := run.finish()

	if ledgerKey != "" {
		if payload, err := json.Marshal(result); err != nil {
			log.Error("failed to encode result for idempotency ledger", slog.Any("error", err))
			release()
		} else if err := s.Ledger.Complete(ctx, ledgerKey, payload); err != nil {
			log.Error("failed to complete idempotency key", slog.Any("error", err))
		}
	}

	log.Info("user invited",
		slog.String("user_record_id", result.User.ID),
		slog.String("email", result.User.Email),
		slog.String("role", string(req.Role)),
		slog.Bool("account_created", result.AccountCreated),
		slog.Bool("account_linked", result.AccountLinked),
		slog.Bool("email_sent", result.EmailSent),
		slog.Int("failures", len(result.Failures)),
	)

	return result, nil
}

// ListInvitations returns the most recent invitation audit records.
func (s *ProvisioningService) ListInvitations(ctx context.Context, limit int) ([]domain.Invitation, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.Store.Invitations().ListRecentInvitations(ctx, limit)
}

// GetInvitation returns one invitation audit record by id.
func (s *ProvisioningService) GetInvitation(ctx context.Context, id string) (domain.Invitation, error) {
	if _, err := idx.Parse(id); err != nil {
		return domain.Invitation{}, fmt.Errorf("%w: invitation id is malformed", ErrInvalidRequest)
	}
	inv, err := s.Store.Invitations().GetInvitationByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Invitation{}, ErrInvitationMissing
	}
	return inv, err
}

// provisionRun carries the state of one InviteUser call across its steps.
type provisionRun struct {
	svc *ProvisioningService
	log *slog.Logger
	req InviteRequest

	result  ProvisionResult
	profile domain.RoleProfile
	lines   []string
}

func (r *provisionRun) note(format string, args ...any) {
	r.lines = append(r.lines, fmt.Sprintf(format, args...))
}

func (r *provisionRun) fail(step string, kind ErrorKind, err error, line string) {
	se := stepErr(step, kind, err)
	r.result.Failures = append(r.result.Failures, se)
	r.note("%s: %v", line, err)
	r.log.Warn("invite step failed",
		slog.String("step", step),
		slog.String("kind", string(kind)),
		slog.String("email", r.req.Email),
		slog.Any("error", err),
	)
}

func (r *provisionRun) createUserRecord(ctx context.Context) error {
	user, err := r.svc.Records.CreateUser(ctx, domain.NewUserRecord{
		FirstName:   r.req.FirstName,
		LastName:    r.req.LastName,
		Email:       r.req.Email,
		RoleID:      r.req.RoleID,
		AccessStart: r.req.AccessStart,
		AccessEnd:   r.req.AccessEnd,
		HasPaid:     r.req.HasPaid,
	})
	if err != nil {
		r.log.Error("failed to create user record",
			slog.String("email", r.req.Email),
			slog.Any("error", err),
		)
		return stepErr(StepCreateUserRecord, KindStoreWrite, err)
	}
	if user.Role == "" {
		user.Role = r.req.Role
	}

	r.result.Success = true
	r.result.User = user
	r.note("User record created for %s (%s) as %s.", user.FullName(), user.Email, r.req.Role.Label())
	return nil
}

func (r *provisionRun) createRoleProfile(ctx context.Context) {
	user := r.result.User

	var (
		profile domain.RoleProfile
		err     error
		label   string
	)
	switch r.req.Role.ProfileKind() {
	case domain.ProfileCoach:
		label = "Coach"
		profile, err = r.svc.Records.CreateCoachProfile(ctx, user)
	case domain.ProfileStudent:
		label = "Student"
		profile, err = r.svc.Records.CreateStudentProfile(ctx, user)
	default:
		return
	}
	if err != nil {
		r.fail(StepCreateRoleProfile, KindProfileLink, err, label+" profile could not be created")
		return
	}

	r.profile = profile
	r.result.RoleProfileCreated = true
	r.note("%s profile created.", label)
}

func (r *provisionRun) appMetadata() identity.AppMetadata {
	meta := identity.AppMetadata{
		identity.MetaRole:         string(r.req.Role),
		identity.MetaUserRecordID: r.result.User.ID,
		identity.MetaHasPaid:      r.req.HasPaid,
	}
	if r.req.InvitedBy != "" {
		meta[identity.MetaInvitedBy] = r.req.InvitedBy
	}
	if r.req.AccessStart != nil {
		meta[identity.MetaAccessStart] = r.req.AccessStart.UTC().Format(time.RFC3339)
	}
	if r.req.AccessEnd != nil {
		meta[identity.MetaAccessEnd] = r.req.AccessEnd.UTC().Format(time.RFC3339)
	}
	return meta
}

func (r *provisionRun) createAccount(ctx context.Context) {
	password, err := cryptox.GeneratePassword()
	if err != nil {
		r.fail(StepCreateAccount, KindIdentityWrite, err, "Login account could not be created")
		return
	}

	account, err := r.svc.Identity.CreateUser(ctx, identity.CreateUserRequest{
		Email:         r.req.Email,
		GivenName:     r.req.FirstName,
		FamilyName:    r.req.LastName,
		Name:          r.result.User.FullName(),
		Password:      password,
		EmailVerified: false,
		VerifyEmail:   false,
		AppMetadata:   r.appMetadata(),
	})
	if err == nil {
		r.result.AccountCreated = true
		r.result.AccountID = account.UserID
		r.note("Login account created.")
		return
	}
	if !identity.IsKind(err, identity.KindConflict) {
		r.fail(StepCreateAccount, KindIdentityWrite, err, "Login account could not be created")
		return
	}

	r.linkExistingAccount(ctx)
}

// linkExistingAccount attaches an orphan account (no UserRecord) to the new record.
func (r *provisionRun) linkExistingAccount(ctx context.Context) {
	accounts, err := r.svc.Identity.GetUsersByEmail(ctx, r.req.Email)
	if err == nil && len(accounts) == 0 {
		err = ErrAccountNotFound
	}
	if err != nil {
		r.fail(StepLinkAccount, KindIdentityWrite, err, "Existing login account could not be linked")
		return
	}

	account := accounts[0]
	if _, err := r.svc.Identity.UpdateUser(ctx, account.UserID, identity.UpdateUserRequest{
		AppMetadata: r.appMetadata(),
	}); err != nil {
		r.fail(StepLinkAccount, KindIdentityWrite, err, "Existing login account could not be linked")
		return
	}

	r.result.AccountLinked = true
	r.result.AccountID = account.UserID
	r.note("Existing login account linked.")
	r.log.Info("linked existing login account",
		slog.String("account_id", account.UserID),
		slog.String("user_record_id", r.result.User.ID),
	)
}

func (r *provisionRun) sendPasswordSetup(ctx context.Context) {
	if !r.result.AccountCreated && !r.result.AccountLinked {
		r.note("Password setup email skipped: no login account.")
		return
	}
	if _, err := r.svc.Identity.SendChangePasswordEmail(ctx, r.req.Email); err != nil {
		r.fail(StepPasswordSetup, KindIdentityWrite, err, "Password setup email could not be sent")
		return
	}
	r.result.PasswordResetSent = true
	r.note("Password setup email sent.")
}

func (r *provisionRun) assignCoach(ctx context.Context) {
	coachID := strings.TrimSpace(r.req.AssignedCoachID)
	if r.req.Role != domain.RoleStudent || coachID == "" || coachID == NoCoach {
		return
	}
	if r.profile.Kind != domain.ProfileStudent {
		r.note("Coach assignment skipped: no student profile.")
		return
	}
	if err := r.svc.Records.AssignCoachToStudent(ctx, r.profile.ID, coachID); err != nil {
		r.fail(StepAssignCoach, KindCoachAssign, err, "Coach could not be assigned")
		return
	}
	r.result.CoachAssigned = true
	r.result.User.AssignedCoachID = coachID
	r.note("Coach assigned.")
}

func (r *provisionRun) sendInvitationEmail(ctx context.Context) {
	user := r.result.User
	data := map[string]any{
		"first_name":          user.FirstName,
		"last_name":           user.LastName,
		"full_name":           user.FullName(),
		"email":               user.Email,
		"role":                r.req.Role.Label(),
		"login_url":           r.svc.LoginURL,
		"password_setup_sent": r.result.PasswordResetSent,
		"has_paid":            r.req.HasPaid,
	}
	if r.req.InvitedBy != "" {
		data["invited_by"] = r.req.InvitedBy
	}
	if r.req.CustomMessage != "" {
		data["custom_message"] = r.req.CustomMessage
	}
	if r.req.AccessStart != nil {
		data["access_start"] = r.req.AccessStart.UTC().Format("2 January 2006")
	}
	if r.req.AccessEnd != nil {
		data["access_end"] = r.req.AccessEnd.UTC().Format("2 January 2006")
	}

	receipt, err := r.svc.Mailer.Send(ctx, mailer.Message{
		ToEmail:    user.Email,
		ToName:     user.FullName(),
		TemplateID: r.svc.Templates.For(r.req.Role),
		Data:       data,
		Categories: []string{"invitation", string(r.req.Role)},
	})
	if err != nil {
		r.fail(StepInvitationEmail, KindEmailSend, err, "Invitation email could not be sent")
		return
	}
	r.result.EmailSent = true
	r.result.MessageID = receipt.MessageID
	r.note("Invitation email sent.")
}

func (r *provisionRun) recordInvitation(ctx context.Context) {
	if r.svc.Store == nil {
		return
	}
	inv := domain.Invitation{
		ID:                idx.New().String(),
		UserRecordID:      r.result.User.ID,
		Email:             r.req.Email,
		Role:              r.req.Role,
		InvitedBy:         r.req.InvitedBy,
		EmailSent:         r.result.EmailSent,
		MessageID:         r.result.MessageID,
		AccountCreated:    r.result.AccountCreated || r.result.AccountLinked,
		PasswordResetSent: r.result.PasswordResetSent,
		CreatedAt:         r.svc.now(),
	}
	if err := r.svc.Store.Invitations().CreateInvitation(ctx, inv); err != nil {
		r.log.Warn("failed to record invitation",
			slog.String("user_record_id", inv.UserRecordID),
			slog.Any("error", err),
		)
		return
	}
	r.result.InvitationID = inv.ID
}

func (r *provisionRun) finish() ProvisionResult {
	if len(r.result.Failures) == 0 {
		r.note("Invitation completed successfully.")
	} else {
		r.note("Invitation completed with %d issue(s); see above.", len(r.result.Failures))
	}
	r.result.Message = strings.Join(r.lines, "\n")
	return r.result
}

// LegacyDefaultPassword reproduces the old password rule:
// Capitalize(firstName) + "@" + lowercase(lastName).
//
// Deprecated: the value is guessable from a user's name. Accounts are created
// with GeneratePassword and set through the reset email instead. Kept only so
// accounts provisioned under the old rule can be identified.
func LegacyDefaultPassword(firstName, lastName string) string {
	first := strings.TrimSpace(firstName)
	if r, size := utf8.DecodeRuneInString(first); r != utf8.RuneError {
		first = string(unicode.ToUpper(r)) + first[size:]
	}
	return first + "@" + strings.ToLower(strings.TrimSpace(lastName))
}
