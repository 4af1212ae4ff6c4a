package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/aussiebroadwan/coachdesk/pkg/httpx"
)

type Config struct {
	// Identity provider management API
	IdentityDomain       string // Required: tenant domain or base URL
	IdentityClientID     string // Required: machine-to-machine client id
	IdentityClientSecret string // Required: machine-to-machine client secret
	IdentityAudience     string // Optional: defaults to https://{domain}/api/v2/
	IdentityConnection   string // Optional: database connection (default: Username-Password-Authentication)
	IdentityAppClientID  string // Optional: public app client for reset emails and hosted login
	IdentityRedirectURI  string // Optional: hosted login return URL

	// GraphQL record store
	RecordsEndpoint string // Required
	RecordsAPIToken string // Required

	// Email
	SendGridAPIKey    string // Optional: emails are reported as failed steps when empty
	SendGridHost      string // Optional: API host override
	MailFromEmail     string
	MailFromName      string
	StudentTemplateID string
	CoachTemplateID   string
	AdminTemplateID   string
	LoginURL          string // Link placed in invitation emails

	OutboundTimeout time.Duration // Per-request bound on provider calls (default: 15s)

	// Admin API bearer tokens
	AdminJWTSecret   string // Required: HS256 secret, at least 32 bytes
	AdminJWTIssuer   string
	AdminJWTAudience string

	DatabaseFile   string        // Audit store (default: ./coachdesk.db)
	RedisURL       string        // Optional: Redis idempotency ledger; in-memory when empty
	IdempotencyTTL time.Duration // Completed-result retention (default: 24h)
	AuditRetention time.Duration // Invitation and account event retention (default: 90 days)

	RateLimits RateLimitSettings

	Env                  string        // Environment (dev, test, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)
}

// RateLimitSettings carries the three endpoint profiles.
type RateLimitSettings struct {
	Strict   httpx.RateLimitConfig
	Moderate httpx.RateLimitConfig
	Lenient  httpx.RateLimitConfig
}

// LoadConfig reads the environment, after loading a .env file when one exists.
func LoadConfig() Config {
	_ = godotenv.Load()

	return Config{
		IdentityDomain:       os.Getenv("IDENTITY_DOMAIN"),
		IdentityClientID:     os.Getenv("IDENTITY_CLIENT_ID"),
		IdentityClientSecret: os.Getenv("IDENTITY_CLIENT_SECRET"),
		IdentityAudience:     os.Getenv("IDENTITY_AUDIENCE"),
		IdentityConnection:   os.Getenv("IDENTITY_CONNECTION"),
		IdentityAppClientID:  os.Getenv("IDENTITY_APP_CLIENT_ID"),
		IdentityRedirectURI:  os.Getenv("IDENTITY_REDIRECT_URI"),

		RecordsEndpoint: os.Getenv("RECORDS_ENDPOINT"),
		RecordsAPIToken: os.Getenv("RECORDS_API_TOKEN"),

		SendGridAPIKey:    os.Getenv("SENDGRID_API_KEY"),
		SendGridHost:      os.Getenv("SENDGRID_HOST"),
		MailFromEmail:     getEnvOrDefault("MAIL_FROM_EMAIL", "no-reply@example.com"),
		MailFromName:      getEnvOrDefault("MAIL_FROM_NAME", "Coaching Team"),
		StudentTemplateID: os.Getenv("MAIL_TEMPLATE_STUDENT"),
		CoachTemplateID:   os.Getenv("MAIL_TEMPLATE_COACH"),
		AdminTemplateID:   os.Getenv("MAIL_TEMPLATE_ADMIN"),
		LoginURL:          os.Getenv("APP_LOGIN_URL"),
		OutboundTimeout:   getEnvDurationOrDefault("OUTBOUND_TIMEOUT", 15*time.Second),

		AdminJWTSecret:   os.Getenv("ADMIN_JWT_SECRET"),
		AdminJWTIssuer:   getEnvOrDefault("ADMIN_JWT_ISSUER", "coachdesk"),
		AdminJWTAudience: getEnvOrDefault("ADMIN_JWT_AUDIENCE", "coachdesk-admin"),

		DatabaseFile:   getEnvOrDefault("DATABASE_FILE", "coachdesk.db"),
		RedisURL:       os.Getenv("REDIS_URL"),
		IdempotencyTTL: getEnvDurationOrDefault("IDEMPOTENCY_TTL", 24*time.Hour),
		AuditRetention: getEnvDurationOrDefault("AUDIT_RETENTION", 90*24*time.Hour),

		RateLimits: RateLimitSettings{
			Strict:   getRateLimitOrDefault("STRICT", httpx.StrictLimit),
			Moderate: getRateLimitOrDefault("MODERATE", httpx.ModerateLimit),
			Lenient:  getRateLimitOrDefault("LENIENT", httpx.LenientLimit),
		},

		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
	}
}

// Validate reports every missing required setting at once.
func (c Config) Validate() error {
	var errs []error
	for key, v := range map[string]string{
		"IDENTITY_DOMAIN":        c.IdentityDomain,
		"IDENTITY_CLIENT_ID":     c.IdentityClientID,
		"IDENTITY_CLIENT_SECRET": c.IdentityClientSecret,
		"RECORDS_ENDPOINT":       c.RecordsEndpoint,
		"RECORDS_API_TOKEN":      c.RecordsAPIToken,
		"ADMIN_JWT_SECRET":       c.AdminJWTSecret,
	} {
		if v == "" {
			errs = append(errs, fmt.Errorf("%s is required", key))
		}
	}
	if c.AdminJWTSecret != "" && len(c.AdminJWTSecret) < 32 {
		errs = append(errs, errors.New("ADMIN_JWT_SECRET must be at least 32 bytes"))
	}
	return errors.Join(errs...)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are minutes
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}

// getRateLimitOrDefault reads RATELIMIT_{prefix}_REQUESTS, _WINDOW_SEC and
// _BURST. Non-positive or malformed values keep the default.
func getRateLimitOrDefault(prefix string, def httpx.RateLimitConfig) httpx.RateLimitConfig {
	cfg := def
	if n := getEnvIntOrDefault("RATELIMIT_"+prefix+"_REQUESTS", 0); n > 0 {
		cfg.RequestsPerWindow = n
	}
	if n := getEnvIntOrDefault("RATELIMIT_"+prefix+"_WINDOW_SEC", 0); n > 0 {
		cfg.Window = time.Duration(n) * time.Second
	}
	if n := getEnvIntOrDefault("RATELIMIT_"+prefix+"_BURST", 0); n > 0 {
		cfg.Burst = n
	}
	cfg.TrustProxyHeaders = getEnvBoolOrDefault("RATELIMIT_TRUST_PROXY_HEADERS", false)
	return cfg
}
