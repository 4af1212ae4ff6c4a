package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/coachdesk/internal/accounts/domain"
	"github.com/aussiebroadwan/coachdesk/internal/accounts/records"
	"github.com/aussiebroadwan/coachdesk/internal/accounts/store/drivers/sqlite"
	"github.com/aussiebroadwan/coachdesk/pkg/cryptox"
	"github.com/aussiebroadwan/coachdesk/pkg/identity"
	"github.com/aussiebroadwan/coachdesk/pkg/mailer"
)

var testNow = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return testNow }

// fakeIdentity is an in-memory identity provider.
type fakeIdentity struct {
	mu       sync.Mutex
	accounts map[string]*identity.User // by email
	nextID   int

	lookupErr         error
	createErr         error
	changePasswordErr error
	// updateErr, when set, is consulted on every UpdateUser call (1-based).
	updateErr func(call int) error

	createCalls         []identity.CreateUserRequest
	updateCalls         []identity.UpdateUserRequest
	changePasswordCalls []string
}

func newFakeIdentity() *fakeIdentity {
	return &fakeIdentity{accounts: make(map[string]*identity.User)}
}

func (f *fakeIdentity) addAccount(email string) *identity.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	u := &identity.User{UserID: fmt.Sprintf("auth0|%d", f.nextID), Email: email, AppMetadata: identity.AppMetadata{}}
	f.accounts[email] = u
	return u
}

func (f *fakeIdentity) account(email string) *identity.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.accounts[email]
}

func (f *fakeIdentity) GetUsersByEmail(_ context.Context, email string) ([]identity.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	if u, ok := f.accounts[strings.ToLower(email)]; ok {
		return []identity.User{*u}, nil
	}
	return []identity.User{}, nil
}

func (f *fakeIdentity) CreateUser(_ context.Context, req identity.CreateUserRequest) (*identity.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls = append(f.createCalls, req)
	if f.createErr != nil {
		return nil, f.createErr
	}
	if _, ok := f.accounts[req.Email]; ok {
		return nil, &identity.Error{StatusCode: 409, Code: "Conflict", Message: "The user already exists.", Kind: identity.KindConflict}
	}
	f.nextID++
	u := &identity.User{
		UserID:        fmt.Sprintf("auth0|%d", f.nextID),
		Email:         req.Email,
		EmailVerified: req.EmailVerified,
		AppMetadata:   identity.AppMetadata{},
	}
	for k, v := range req.AppMetadata {
		u.AppMetadata[k] = v
	}
	f.accounts[req.Email] = u
	return u, nil
}

func (f *fakeIdentity) UpdateUser(_ context.Context, userID string, req identity.UpdateUserRequest) (*identity.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls = append(f.updateCalls, req)
	if f.updateErr != nil {
		if err := f.updateErr(len(f.updateCalls)); err != nil {
			return nil, err
		}
	}
	for _, u := range f.accounts {
		if u.UserID != userID {
			continue
		}
		if req.Blocked != nil {
			u.Blocked = *req.Blocked
		}
		for k, v := range req.AppMetadata {
			if v == nil {
				delete(u.AppMetadata, k)
				continue
			}
			u.AppMetadata[k] = v
		}
		return u, nil
	}
	return nil, &identity.Error{StatusCode: 404, Code: "Not Found", Kind: identity.KindNotFound}
}

func (f *fakeIdentity) SendChangePasswordEmail(_ context.Context, email string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.changePasswordCalls = append(f.changePasswordCalls, email)
	if f.changePasswordErr != nil {
		return "", f.changePasswordErr
	}
	return "We've just sent you an email to reset your password.", nil
}

func (f *fakeIdentity) PasswordResetURL() string {
	return "https://tenant.example.com/authorize?client_id=app"
}

// fakeRecords is an in-memory record store.
type fakeRecords struct {
	mu     sync.Mutex
	users  map[string]*domain.UserRecord // by email
	nextID int

	students []domain.RoleProfile
	coaches  []domain.RoleProfile
	assigned [][2]string

	createErr    error
	lookupErr    error
	setActiveErr error
	studentErr   error
	coachErr     error
	assignErr    error
}

func newFakeRecords() *fakeRecords {
	return &fakeRecords{users: make(map[string]*domain.UserRecord)}
}

func (f *fakeRecords) addUser(email string, active bool) *domain.UserRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	u := &domain.UserRecord{ID: fmt.Sprintf("rec-%d", f.nextID), Email: email, Role: domain.RoleStudent, IsActive: active}
	f.users[email] = u
	return u
}

func (f *fakeRecords) user(email string) *domain.UserRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.users[email]
}

func (f *fakeRecords) CreateUser(_ context.Context, in domain.NewUserRecord) (domain.UserRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return domain.UserRecord{}, f.createErr
	}
	f.nextID++
	role := map[string]domain.Role{
		"role-user":          domain.RoleStudent,
		"role-coach":         domain.RoleCoach,
		"role-coach_manager": domain.RoleCoachManager,
		"role-super_admin":   domain.RoleSuperAdmin,
	}[in.RoleID]
	u := &domain.UserRecord{
		ID:          fmt.Sprintf("rec-%d", f.nextID),
		FirstName:   in.FirstName,
		LastName:    in.LastName,
		Email:       in.Email,
		Role:        role,
		IsActive:    true,
		AccessStart: in.AccessStart,
		AccessEnd:   in.AccessEnd,
		HasPaid:     in.HasPaid,
		CreatedAt:   testNow,
	}
	f.users[in.Email] = u
	return *u, nil
}

func (f *fakeRecords) GetUserByEmail(_ context.Context, email string) (domain.UserRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lookupErr != nil {
		return domain.UserRecord{}, f.lookupErr
	}
	if u, ok := f.users[email]; ok {
		return *u, nil
	}
	return domain.UserRecord{}, records.ErrNotFound
}

func (f *fakeRecords) SetUserActive(_ context.Context, userID string, active bool) (domain.UserRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setActiveErr != nil {
		return domain.UserRecord{}, f.setActiveErr
	}
	for _, u := range f.users {
		if u.ID == userID {
			u.IsActive = active
			return *u, nil
		}
	}
	return domain.UserRecord{}, records.ErrNotFound
}

func (f *fakeRecords) CreateStudentProfile(_ context.Context, user domain.UserRecord) (domain.RoleProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.studentErr != nil {
		return domain.RoleProfile{}, f.studentErr
	}
	p := domain.RoleProfile{ID: "student-" + user.ID, UserID: user.ID, Kind: domain.ProfileStudent}
	f.students = append(f.students, p)
	return p, nil
}

func (f *fakeRecords) CreateCoachProfile(_ context.Context, user domain.UserRecord) (domain.RoleProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.coachErr != nil {
		return domain.RoleProfile{}, f.coachErr
	}
	p := domain.RoleProfile{ID: "coach-" + user.ID, UserID: user.ID, Kind: domain.ProfileCoach}
	f.coaches = append(f.coaches, p)
	return p, nil
}

func (f *fakeRecords) AssignCoachToStudent(_ context.Context, studentID, coachID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.assigned = append(f.assigned, [2]string{studentID, coachID})
	return f.assignErr
}

// fakeMailer records sent messages.
type fakeMailer struct {
	mu   sync.Mutex
	sent []mailer.Message
	err  error
}

func (f *fakeMailer) Send(_ context.Context, msg mailer.Message) (mailer.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return mailer.Receipt{}, f.err
	}
	f.sent = append(f.sent, msg)
	return mailer.Receipt{StatusCode: 202, MessageID: fmt.Sprintf("msg-%d", len(f.sent))}, nil
}

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())
	return st
}

func fingerprint(s string) string { return cryptox.FingerprintToken(s) }
