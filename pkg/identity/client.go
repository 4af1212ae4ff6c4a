package identity

import (
	"net/http"
	"strings"
	"time"
)

// DefaultConnection is the database connection new accounts are created in
// when the caller does not configure one.
const DefaultConnection = "Username-Password-Authentication"

// Config describes how to reach the identity provider tenant.
type Config struct {
	// Domain is the tenant domain ("tenant.eu.auth0.com") or a full base URL.
	Domain string

	// ClientID and ClientSecret are the machine-to-machine credentials used for
	// the client_credentials grant against the management API.
	ClientID     string
	ClientSecret string

	// Audience is the management API identifier. Defaults to https://{domain}/api/v2/.
	Audience string

	// Connection is the database connection accounts live in.
	Connection string

	// AppClientID is the public application client used for change-password
	// emails and the hosted login page. Falls back to ClientID.
	AppClientID string

	// RedirectURI is where the hosted login page returns after a reset.
	RedirectURI string

	// Timeout bounds every outbound request. Zero means 15 seconds.
	Timeout time.Duration
}

// Client talks to the identity provider's authentication and management APIs.
// Management calls authenticate with a token from the injected TokenCache.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client

	cfg    Config
	tokens *TokenCache
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.HTTPClient = hc }
}

// WithTokenCache injects a token cache, mainly for tests that need a fake clock.
func WithTokenCache(tc *TokenCache) Option {
	return func(c *Client) { c.tokens = tc }
}

// NewClient creates an identity provider client. Unless overridden, a token
// cache backed by ClientCredentialsGrant is constructed for the client.
func NewClient(cfg Config, opts ...Option) *Client {
	if cfg.Connection == "" {
		cfg.Connection = DefaultConnection
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	base := strings.TrimSuffix(cfg.Domain, "/")
	if base != "" && !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "https://" + base
	}
	if cfg.Audience == "" {
		cfg.Audience = base + "/api/v2/"
	}

	c := &Client{
		BaseURL: base,
		HTTPClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		cfg: cfg,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.tokens == nil {
		c.tokens = NewTokenCache(c.ClientCredentialsGrant)
	}
	return c
}

// Tokens exposes the management token cache so callers can invalidate it.
func (c *Client) Tokens() *TokenCache {
	return c.tokens
}

// Connection returns the configured database connection name.
func (c *Client) Connection() string {
	return c.cfg.Connection
}

func (c *Client) appClientID() string {
	if c.cfg.AppClientID != "" {
		return c.cfg.AppClientID
	}
	return c.cfg.ClientID
}
