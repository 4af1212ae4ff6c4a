package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/coachdesk/internal/accounts/domain"
	"github.com/aussiebroadwan/coachdesk/internal/accounts/service"
	"github.com/aussiebroadwan/coachdesk/internal/accounts/store"
	"github.com/aussiebroadwan/coachdesk/pkg/httpx"
	"github.com/aussiebroadwan/coachdesk/pkg/slogx"
)

// Pinger is a readiness dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RateLimits selects the profile per endpoint class.
type RateLimits struct {
	Strict   httpx.RateLimitConfig
	Moderate httpx.RateLimitConfig
	Lenient  httpx.RateLimitConfig
}

// DefaultRateLimits returns the httpx profiles.
func DefaultRateLimits() RateLimits {
	return RateLimits{
		Strict:   httpx.StrictLimit,
		Moderate: httpx.ModerateLimit,
		Lenient:  httpx.LenientLimit,
	}
}

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	verifier     *httpx.TokenVerifier
	limits       RateLimits
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store  store.Store
	checks map[string]Pinger

	ProvisioningService  *service.ProvisioningService
	BlockingService      *service.BlockingService
	PasswordResetService *service.PasswordResetService
}

func NewRouter(
	verifier *httpx.TokenVerifier,
	limits RateLimits,
	buildVersion string,
	st store.Store,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		verifier:     verifier,
		limits:       limits,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		checks:       map[string]Pinger{"database": st},
		logger:       logger,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

// AddReadinessCheck registers an extra dependency reported by /readyz.
func (r *Router) AddReadinessCheck(name string, p Pinger) {
	r.checks[name] = p
}

func (r *Router) ApplyRoutes() {
	r.registerUsers()
	r.registerInvitations()
	r.registerPassword()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

// admin wraps h with bearer authn, a role check and a per-caller limit.
func (r *Router) admin(h http.HandlerFunc, limit httpx.RateLimitConfig, roles ...domain.Role) http.Handler {
	names := make([]string, len(roles))
	for i, role := range roles {
		names[i] = string(role)
	}
	return httpx.Chain(h,
		httpx.AuthnMiddleware(r.verifier),
		httpx.RequireAnyRole(names...),
		httpx.RateLimitBySubject(limit),
	)
}

func (r *Router) registerUsers() {
	h := &UsersHandler{
		Provisioning: r.ProvisioningService,
		Blocking:     r.BlockingService,
	}
	managers := []domain.Role{domain.RoleSuperAdmin, domain.RoleCoachManager}

	r.Mux.Handle("POST /v1/users/invite", r.admin(h.HandleInvite, r.limits.Moderate, managers...))
	// Repeated checks for one email from one address get their own budget.
	exists := httpx.Chain(http.HandlerFunc(h.HandleExists), httpx.RateLimitByIPAndQuery(r.limits.Moderate, "email"))
	r.Mux.Handle("GET /v1/users/exists", r.admin(exists.ServeHTTP, r.limits.Lenient, managers...))
	r.Mux.Handle("POST /v1/users/block", r.admin(h.HandleBlock, r.limits.Moderate, managers...))
	r.Mux.Handle("POST /v1/users/unblock", r.admin(h.HandleUnblock, r.limits.Moderate, managers...))
	r.Mux.Handle("GET /v1/users/status", r.admin(h.HandleStatus, r.limits.Lenient, managers...))
	r.Mux.Handle("GET /v1/users/events", r.admin(h.HandleEvents, r.limits.Lenient, managers...))
}

func (r *Router) registerInvitations() {
	h := &InvitationsHandler{Provisioning: r.ProvisioningService}
	r.Mux.Handle("GET /v1/invitations", r.admin(h.HandleList, r.limits.Lenient, domain.RoleSuperAdmin))
	r.Mux.Handle("GET /v1/invitations/{id}", r.admin(h.HandleGet, r.limits.Lenient, domain.RoleSuperAdmin))
}

func (r *Router) registerPassword() {
	h := &PasswordHandler{PasswordReset: r.PasswordResetService}

	// Keyed by IP + target email so one caller cannot flood a mailbox.
	r.Mux.Handle("POST /v1/password/reset",
		httpx.Chain(http.HandlerFunc(h.HandleReset),
			httpx.RateLimitByIPAndJSONField(r.limits.Strict, "email"),
		),
	)
	r.Mux.Handle("GET /v1/password/reset/redirect",
		httpx.Chain(http.HandlerFunc(h.HandleRedirect),
			httpx.RateLimitByIP(r.limits.Strict),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(r.limits.Lenient),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.checks),
			httpx.RateLimitByIP(r.limits.Lenient),
		),
	)
}
