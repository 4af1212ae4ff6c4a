package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	accountshttp "github.com/aussiebroadwan/coachdesk/internal/accounts/http"
	"github.com/aussiebroadwan/coachdesk/internal/accounts/domain"
	"github.com/aussiebroadwan/coachdesk/internal/accounts/idempotency"
	"github.com/aussiebroadwan/coachdesk/internal/accounts/records"
	"github.com/aussiebroadwan/coachdesk/internal/accounts/service"
	"github.com/aussiebroadwan/coachdesk/internal/accounts/store/drivers/sqlite"
	"github.com/aussiebroadwan/coachdesk/pkg/httpx"
	"github.com/aussiebroadwan/coachdesk/pkg/identity"
	"github.com/aussiebroadwan/coachdesk/pkg/mailer"
	"github.com/aussiebroadwan/coachdesk/pkg/slogx"
)

const resetPage = "https://tenant.example.com/login?screen=reset"

type stubIdentity struct {
	mu        sync.Mutex
	accounts  map[string]*identity.User
	lookupErr error
}

func (s *stubIdentity) addAccount(email, role string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	meta := identity.AppMetadata{}
	if role != "" {
		meta[identity.MetaRole] = role
	}
	s.accounts[email] = &identity.User{UserID: "auth0|" + email, Email: email, AppMetadata: meta}
}

func (s *stubIdentity) GetUsersByEmail(_ context.Context, email string) ([]identity.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lookupErr != nil {
		return nil, s.lookupErr
	}
	if u, ok := s.accounts[email]; ok {
		return []identity.User{*u}, nil
	}
	return nil, nil
}

func (s *stubIdentity) CreateUser(_ context.Context, req identity.CreateUserRequest) (*identity.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := &identity.User{UserID: "auth0|" + req.Email, Email: req.Email, AppMetadata: identity.AppMetadata{}}
	s.accounts[req.Email] = u
	return u, nil
}

func (s *stubIdentity) UpdateUser(_ context.Context, id string, req identity.UpdateUserRequest) (*identity.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.accounts {
		if u.UserID == id {
			if req.Blocked != nil {
				u.Blocked = *req.Blocked
			}
			return u, nil
		}
	}
	return nil, &identity.Error{StatusCode: http.StatusNotFound, Kind: identity.KindNotFound}
}

func (s *stubIdentity) SendChangePasswordEmail(context.Context, string) (string, error) {
	return "We've just sent you an email to reset your password.", nil
}

func (s *stubIdentity) PasswordResetURL() string { return resetPage }

type stubRecords struct {
	mu    sync.Mutex
	users map[string]*domain.UserRecord
}

func (s *stubRecords) CreateUser(_ context.Context, in domain.NewUserRecord) (domain.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := &domain.UserRecord{
		ID:        fmt.Sprintf("rec-%d", len(s.users)+1),
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Email:     in.Email,
		Role:      domain.Role(strings.TrimPrefix(in.RoleID, "role-")),
		IsActive:  true,
	}
	s.users[in.Email] = u
	return *u, nil
}

func (s *stubRecords) GetUserByEmail(_ context.Context, email string) (domain.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[email]; ok {
		return *u, nil
	}
	return domain.UserRecord{}, records.ErrNotFound
}

func (s *stubRecords) SetUserActive(_ context.Context, id string, active bool) (domain.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.ID == id {
			u.IsActive = active
			return *u, nil
		}
	}
	return domain.UserRecord{}, records.ErrNotFound
}

func (s *stubRecords) CreateStudentProfile(_ context.Context, u domain.UserRecord) (domain.RoleProfile, error) {
	return domain.RoleProfile{ID: "student-" + u.ID, UserID: u.ID, Kind: domain.ProfileStudent}, nil
}

func (s *stubRecords) CreateCoachProfile(_ context.Context, u domain.UserRecord) (domain.RoleProfile, error) {
	return domain.RoleProfile{ID: "coach-" + u.ID, UserID: u.ID, Kind: domain.ProfileCoach}, nil
}

func (s *stubRecords) AssignCoachToStudent(context.Context, string, string) error { return nil }

type stubMailer struct{}

func (stubMailer) Send(context.Context, mailer.Message) (mailer.Receipt, error) {
	return mailer.Receipt{StatusCode: http.StatusAccepted, MessageID: "msg-1"}, nil
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("connection refused") }

type testServer struct {
	handler  http.Handler
	verifier *httpx.TokenVerifier
	records  *stubRecords
	identity *stubIdentity
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	ident := &stubIdentity{accounts: map[string]*identity.User{}}
	recs := &stubRecords{users: map[string]*domain.UserRecord{}}
	verifier := httpx.NewTokenVerifier([]byte("router-test-secret-router-test-secret"), "coachdesk", "coachdesk-admin")

	limits := accountshttp.RateLimits{
		Strict:   httpx.RateLimitConfig{RequestsPerWindow: 1000, Window: time.Minute, Burst: 1000},
		Moderate: httpx.RateLimitConfig{RequestsPerWindow: 1000, Window: time.Minute, Burst: 1000},
		Lenient:  httpx.RateLimitConfig{RequestsPerWindow: 1000, Window: time.Minute, Burst: 1000},
	}
	r := accountshttp.NewRouter(verifier, limits, "test", st, slogx.Discard())
	r.ProvisioningService = &service.ProvisioningService{
		Identity:  ident,
		Records:   recs,
		Mailer:    stubMailer{},
		Store:     st,
		Ledger:    idempotency.NewMemory(),
		Templates: service.Templates{Student: "d-student", Coach: "d-coach", Admin: "d-admin"},
		LoginURL:  "https://app.example.com/login",
	}
	r.BlockingService = &service.BlockingService{Identity: ident, Records: recs, Store: st}
	r.PasswordResetService = &service.PasswordResetService{Identity: ident}
	r.ApplyRoutes()

	return &testServer{handler: r, verifier: verifier, records: recs, identity: ident}
}

func (ts *testServer) do(t *testing.T, role, method, target, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rdr)
	if role != "" {
		tok, _, err := ts.verifier.Issue("ops-"+role+"@example.com", role, "", time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

const inviteBody = `{"firstName":"Ada","lastName":"Lovelace","email":"Ada@Example.com","role":"user","roleId":"role-user","assignedCoachId":"none"}`

func TestAdminAuth(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	t.Run("missing bearer", func(t *testing.T) {
		rec := ts.do(t, "", http.MethodPost, "/v1/users/invite", inviteBody)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("coach cannot invite", func(t *testing.T) {
		rec := ts.do(t, "coach", http.MethodPost, "/v1/users/invite", inviteBody)
		require.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("coach manager cannot list invitations", func(t *testing.T) {
		rec := ts.do(t, "coach_manager", http.MethodGet, "/v1/invitations", "")
		require.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestInviteEndpoint(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	t.Run("creates the user", func(t *testing.T) {
		rec := ts.do(t, "coach_manager", http.MethodPost, "/v1/users/invite", inviteBody)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		body := decode(t, rec)
		require.Equal(t, true, body["success"])
		require.Equal(t, true, body["emailSent"])
		require.Equal(t, true, body["accountCreated"])
		require.Equal(t, "ada@example.com", body["user"].(map[string]any)["email"])
	})

	t.Run("duplicate email conflicts", func(t *testing.T) {
		rec := ts.do(t, "super_admin", http.MethodPost, "/v1/users/invite", inviteBody)
		require.Equal(t, http.StatusConflict, rec.Code)
		require.Equal(t, false, decode(t, rec)["success"])
	})

	t.Run("validation failure", func(t *testing.T) {
		rec := ts.do(t, "super_admin", http.MethodPost, "/v1/users/invite",
			`{"firstName":"","lastName":"X","email":"nope","role":"user","roleId":"role-user"}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown field", func(t *testing.T) {
		rec := ts.do(t, "super_admin", http.MethodPost, "/v1/users/invite", `{"bogus":true}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("idempotency header replays", func(t *testing.T) {
		body := `{"firstName":"Grace","lastName":"Hopper","email":"grace@example.com","role":"coach","roleId":"role-coach"}`
		key := "7b0c0e5e-3f52-4a43-9a0c-2f7c1f0c2b11"

		first := ts.do(t, "super_admin", http.MethodPost, "/v1/users/invite", body, accountshttp.IdempotencyKeyHeader, key)
		require.Equal(t, http.StatusCreated, first.Code, first.Body.String())

		second := ts.do(t, "super_admin", http.MethodPost, "/v1/users/invite", body, accountshttp.IdempotencyKeyHeader, key)
		require.Equal(t, http.StatusOK, second.Code, second.Body.String())
		require.Equal(t, true, decode(t, second)["replayed"])
	})

	t.Run("lists invitations for super admin", func(t *testing.T) {
		rec := ts.do(t, "super_admin", http.MethodGet, "/v1/invitations?limit=10", "")
		require.Equal(t, http.StatusOK, rec.Code)

		invitations := decode(t, rec)["invitations"].([]any)
		require.Len(t, invitations, 2)
		first := invitations[len(invitations)-1].(map[string]any)
		require.Equal(t, "ada@example.com", first["email"])
		require.Equal(t, "ops-coach_manager@example.com", first["invitedBy"])

		got := ts.do(t, "super_admin", http.MethodGet, "/v1/invitations/"+first["id"].(string), "")
		require.Equal(t, http.StatusOK, got.Code, got.Body.String())
		require.Equal(t, "ada@example.com", decode(t, got)["invitation"].(map[string]any)["email"])
	})

	t.Run("single invitation lookups", func(t *testing.T) {
		rec := ts.do(t, "super_admin", http.MethodGet, "/v1/invitations/01HZZZZZZZZZZZZZZZZZZZZZZZ", "")
		require.Equal(t, http.StatusNotFound, rec.Code)

		rec = ts.do(t, "super_admin", http.MethodGet, "/v1/invitations/not-a-ulid", "")
		require.Equal(t, http.StatusBadRequest, rec.Code)

		rec = ts.do(t, "coach_manager", http.MethodGet, "/v1/invitations/01HZZZZZZZZZZZZZZZZZZZZZZZ", "")
		require.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("bad limit", func(t *testing.T) {
		rec := ts.do(t, "super_admin", http.MethodGet, "/v1/invitations?limit=abc", "")
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestBlockingEndpoints(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	rec := ts.do(t, "super_admin", http.MethodPost, "/v1/users/invite", inviteBody)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	status := func() bool {
		rec := ts.do(t, "coach_manager", http.MethodGet, "/v1/users/status?email=ada@example.com", "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		return decode(t, rec)["isBlocked"].(bool)
	}

	require.False(t, status())

	rec = ts.do(t, "coach_manager", http.MethodPost, "/v1/users/block", `{"email":"ada@example.com","reason":"chargeback"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, true, decode(t, rec)["blocked"])
	require.True(t, status())

	rec = ts.do(t, "coach_manager", http.MethodPost, "/v1/users/unblock", `{"email":"ada@example.com"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.False(t, status())

	rec = ts.do(t, "super_admin", http.MethodGet, "/v1/users/events?email=ada@example.com", "")
	require.Equal(t, http.StatusOK, rec.Code)
	events := decode(t, rec)["events"].([]any)
	require.Len(t, events, 2)

	t.Run("unknown account is 404", func(t *testing.T) {
		rec := ts.do(t, "super_admin", http.MethodPost, "/v1/users/block", `{"email":"ghost@example.com"}`)
		require.Equal(t, http.StatusNotFound, rec.Code)
		require.Equal(t, "not_found", decode(t, rec)["kind"])
	})

	t.Run("status for unknown record is 404", func(t *testing.T) {
		rec := ts.do(t, "super_admin", http.MethodGet, "/v1/users/status?email=ghost@example.com", "")
		require.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("exists reports both systems", func(t *testing.T) {
		rec := ts.do(t, "super_admin", http.MethodGet, "/v1/users/exists?email=ada@example.com", "")
		require.Equal(t, http.StatusOK, rec.Code)
		body := decode(t, rec)
		require.Equal(t, true, body["exists"])
		require.Equal(t, true, body["identityExists"])
		require.Equal(t, "none", body["drift"])
	})
}

func (s *stubRecords) has(email string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.users[email]
	return ok
}

func (s *stubIdentity) blocked(email string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.accounts[email]
	return ok && u.Blocked
}

func TestTargetRoleAuthority(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	invite := func(role, email, extra string) string {
		return fmt.Sprintf(`{"firstName":"Pat","lastName":"Doe","email":%q,"role":%q,"roleId":"role-%s"%s}`, email, role, role, extra)
	}

	t.Run("coach manager cannot invite staff roles", func(t *testing.T) {
		for _, role := range []string{"super_admin", "coach_manager"} {
			email := role + "@example.com"
			rec := ts.do(t, "coach_manager", http.MethodPost, "/v1/users/invite", invite(role, email, ""))
			require.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())
			require.Equal(t, false, decode(t, rec)["success"])
			require.False(t, ts.records.has(email))
		}
	})

	t.Run("coach manager invites a coach", func(t *testing.T) {
		rec := ts.do(t, "coach_manager", http.MethodPost, "/v1/users/invite", invite("coach", "coach@example.com", ""))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	})

	t.Run("invitedBy must be the caller", func(t *testing.T) {
		rec := ts.do(t, "super_admin", http.MethodPost, "/v1/users/invite",
			invite("user", "forged@example.com", `,"invitedBy":"someone-else@example.com"`))
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.False(t, ts.records.has("forged@example.com"))

		rec = ts.do(t, "super_admin", http.MethodPost, "/v1/users/invite",
			invite("user", "honest@example.com", `,"invitedBy":"OPS-super_admin@example.com"`))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	})

	rec := ts.do(t, "super_admin", http.MethodPost, "/v1/users/invite", invite("super_admin", "boss@example.com", ""))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	t.Run("coach manager cannot block or unblock a super admin", func(t *testing.T) {
		rec := ts.do(t, "coach_manager", http.MethodPost, "/v1/users/block", `{"email":"boss@example.com"}`)
		require.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())
		require.False(t, ts.identity.blocked("boss@example.com"))

		rec = ts.do(t, "coach_manager", http.MethodPost, "/v1/users/unblock", `{"email":"boss@example.com"}`)
		require.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("super admin can block a super admin", func(t *testing.T) {
		rec := ts.do(t, "super_admin", http.MethodPost, "/v1/users/block", `{"email":"boss@example.com"}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		require.True(t, ts.identity.blocked("boss@example.com"))
	})

	t.Run("orphan account without a role is refused", func(t *testing.T) {
		ts.identity.addAccount("orphan@example.com", "")
		rec := ts.do(t, "coach_manager", http.MethodPost, "/v1/users/block", `{"email":"orphan@example.com"}`)
		require.Equal(t, http.StatusForbidden, rec.Code)
		require.False(t, ts.identity.blocked("orphan@example.com"))
	})

	t.Run("unknown email is still 404", func(t *testing.T) {
		rec := ts.do(t, "coach_manager", http.MethodPost, "/v1/users/block", `{"email":"ghost@example.com"}`)
		require.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestBlockWithoutUserRecord(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	ts.identity.addAccount("student@example.com", "user")

	// The account is blocked, the record update fails on a missing record and
	// the block is reverted. That is a failed write, not a missing user.
	rec := ts.do(t, "coach_manager", http.MethodPost, "/v1/users/block", `{"email":"student@example.com"}`)
	require.Equal(t, http.StatusBadGateway, rec.Code, rec.Body.String())
	body := decode(t, rec)
	require.Equal(t, "store_write", body["kind"])
	require.Equal(t, "update_user_record", body["step"])
	require.False(t, ts.identity.blocked("student@example.com"))
}

func TestUpstreamLookupFailures(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	ts.identity.lookupErr = &identity.Error{StatusCode: http.StatusServiceUnavailable, Message: "upstream down", Kind: identity.KindServer}

	t.Run("block", func(t *testing.T) {
		rec := ts.do(t, "super_admin", http.MethodPost, "/v1/users/block", `{"email":"kim@example.com"}`)
		require.Equal(t, http.StatusBadGateway, rec.Code, rec.Body.String())
		body := decode(t, rec)
		require.Equal(t, "lookup", body["kind"])
		require.Equal(t, "resolve_account", body["step"])
		require.Contains(t, body["error"], "upstream down")
	})

	t.Run("exists", func(t *testing.T) {
		rec := ts.do(t, "super_admin", http.MethodGet, "/v1/users/exists?email=kim@example.com", "")
		require.Equal(t, http.StatusBadGateway, rec.Code)
	})

	t.Run("password reset", func(t *testing.T) {
		rec := ts.do(t, "", http.MethodPost, "/v1/password/reset", `{"email":"kim@example.com"}`)
		require.Equal(t, http.StatusBadGateway, rec.Code)
		require.Equal(t, false, decode(t, rec)["success"])
	})
}

func TestPasswordEndpoints(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	t.Run("unknown email gets the generic answer", func(t *testing.T) {
		rec := ts.do(t, "", http.MethodPost, "/v1/password/reset", `{"email":"nobody@example.com"}`)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, service.GenericResetMessage, decode(t, rec)["message"])
	})

	t.Run("invalid email", func(t *testing.T) {
		rec := ts.do(t, "", http.MethodPost, "/v1/password/reset", `{"email":"not-an-email"}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("redirect", func(t *testing.T) {
		rec := ts.do(t, "", http.MethodGet, "/v1/password/reset/redirect", "")
		require.Equal(t, http.StatusFound, rec.Code)
		require.Equal(t, resetPage, rec.Header().Get("Location"))
	})
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()

	t.Run("livez", func(t *testing.T) {
		ts := newTestServer(t)
		rec := ts.do(t, "", http.MethodGet, "/livez", "")
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "ok", decode(t, rec)["status"])
	})

	t.Run("readyz", func(t *testing.T) {
		ts := newTestServer(t)
		rec := ts.do(t, "", http.MethodGet, "/readyz", "")
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "ok", decode(t, rec)["checks"].(map[string]any)["database"])
	})

	t.Run("readyz degraded", func(t *testing.T) {
		st, err := sqlite.NewStore(":memory:")
		require.NoError(t, err)
		t.Cleanup(func() { _ = st.Close() })

		r := accountshttp.NewRouter(httpx.NewTokenVerifier([]byte("x"), "", ""), accountshttp.DefaultRateLimits(), "test", st, slogx.Discard())
		r.AddReadinessCheck("redis", failingPinger{})
		r.ApplyRoutes()

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)

		var body accountshttp.HealthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Equal(t, "degraded", body.Status)
		require.Equal(t, "ok", body.Checks["database"])
		require.Contains(t, body.Checks["redis"], "connection refused")
	})
}
