package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
	"strings" // strings normalizes boolean-ish values
	"time"    // time parses durations and loads the business timezone
)

// Config holds all runtime configuration values.  Each field corresponds
// to one or more environment variables.  Only the signing secret and
// the business settings are hard requirements; every external system
// (ledger, calendar, mail, broker, redis) is optional and the service
// degrades gracefully when that system is not configured.
type Config struct {
	Env  string // application environment (e.g. "dev", "prod")
	Port string // HTTP port to listen on

	// Business settings shaping the slot grid.
	Timezone    string        // IANA timezone of the business, e.g. "Europe/Rome"
	OpenTime    string        // opening time "HH:MM"
	CloseTime   string        // closing time "HH:MM"
	Granularity time.Duration // slot grid step
	Buffer      time.Duration // turnaround padding after each appointment

	// Record ledger (bookings and blocks live here).
	LedgerAPIURL  string
	LedgerBaseID  string
	LedgerAPIKey  string
	LedgerTimeout time.Duration

	// Calendar service and its OAuth refresh-token credentials.
	CalAPIURL       string
	CalTokenURL     string
	CalClientID     string
	CalClientSecret string
	CalRefreshToken string
	CalendarID      string
	CalTimeout      time.Duration

	// Webhook registration for calendar push notifications.
	WebhookAddress string // public HTTPS URL the calendar service calls back
	WebhookToken   string // opaque token echoed back in notifications
	WatchInterval  time.Duration

	// Transactional mail provider.
	MailAPIURL  string
	MailAPIKey  string
	MailFrom    string
	MailTimeout time.Duration

	// Message broker for asynchronous notification delivery.
	AMQPURL string

	// Token signing.
	JWTSecret    string
	ManageTTLMin int // manage token time-to-live in minutes

	// One-time code lifetime in minutes.
	OTPTTLMin int

	RateLimit RateLimitConfig
	Cache     CacheConfig
}

// RateLimitConfig shapes the token bucket applied to public endpoints.
type RateLimitConfig struct {
	Enabled        bool
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
	TTL            time.Duration
	Prefix         string
}

// CacheConfig shapes the redis response cache on availability reads.
type CacheConfig struct {
	Enabled      bool
	TTL          time.Duration
	MaxBodyBytes int
	Prefix       string
}

// Load reads configuration from environment variables.  Required
// variables are enforced by must() and missing values cause the program
// to exit with a fatal log message; everything else has a sensible
// default.
func Load() Config {
	return Config{
		Env:  envStr("APP_ENV", "dev"),
		Port: envStr("APP_PORT", "8080"),

		Timezone:    envStr("BUSINESS_TIMEZONE", "UTC"),
		OpenTime:    envStr("BUSINESS_OPEN", "08:00"),
		CloseTime:   envStr("BUSINESS_CLOSE", "20:00"),
		Granularity: envDur("SLOT_GRANULARITY", 15*time.Minute),
		Buffer:      envDur("BOOKING_BUFFER", 30*time.Minute),

		LedgerAPIURL:  os.Getenv("LEDGER_API_URL"),
		LedgerBaseID:  os.Getenv("LEDGER_BASE_ID"),
		LedgerAPIKey:  os.Getenv("LEDGER_API_KEY"),
		LedgerTimeout: envDur("LEDGER_TIMEOUT", 15*time.Second),

		CalAPIURL:       os.Getenv("CAL_API_URL"),
		CalTokenURL:     os.Getenv("CAL_TOKEN_URL"),
		CalClientID:     os.Getenv("CAL_CLIENT_ID"),
		CalClientSecret: os.Getenv("CAL_CLIENT_SECRET"),
		CalRefreshToken: os.Getenv("CAL_REFRESH_TOKEN"),
		CalendarID:      os.Getenv("CAL_CALENDAR_ID"),
		CalTimeout:      envDur("CAL_TIMEOUT", 15*time.Second),

		WebhookAddress: os.Getenv("WEBHOOK_ADDRESS"),
		WebhookToken:   os.Getenv("WEBHOOK_TOKEN"),
		WatchInterval:  envDur("WATCH_RENEW_INTERVAL", 6*24*time.Hour),

		MailAPIURL:  os.Getenv("MAIL_API_URL"),
		MailAPIKey:  os.Getenv("MAIL_API_KEY"),
		MailFrom:    envStr("MAIL_FROM", "bookings@localhost"),
		MailTimeout: envDur("MAIL_TIMEOUT", 10*time.Second),

		AMQPURL: os.Getenv("RABBITMQ_URL"),

		JWTSecret:    must("JWT_SECRET"),
		ManageTTLMin: envInt("MANAGE_TOKEN_TTL_MIN", 30),
		OTPTTLMin:    envInt("OTP_TTL_MIN", 10),

		RateLimit: RateLimitConfig{
			Enabled:        envBool("RATE_LIMIT_ENABLED", true),
			Capacity:       envInt("RATE_LIMIT_CAPACITY", 20),
			RefillTokens:   envInt("RATE_LIMIT_REFILL_TOKENS", 5),
			RefillInterval: envDur("RATE_LIMIT_REFILL_INTERVAL", 10*time.Second),
			TTL:            envDur("RATE_LIMIT_TTL", 10*time.Minute),
			Prefix:         envStr("RATE_LIMIT_PREFIX", "rl"),
		},
		Cache: CacheConfig{
			Enabled:      envBool("CACHE_ENABLED", true),
			TTL:          envDur("CACHE_TTL", 30*time.Second),
			MaxBodyBytes: envInt("CACHE_MAX_BODY_BYTES", 1<<20),
			Prefix:       envStr("CACHE_PREFIX", "cache"),
		},
	}
}

// Location loads the configured business timezone.  An unknown zone is
// a deployment mistake worth failing fast on.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		log.Fatalf("invalid BUSINESS_TIMEZONE %q: %v", c.Timezone, err)
	}
	return loc
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// envStr returns the variable's value or a default when unset or empty.
func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// envInt parses an integer variable, falling back to the default on
// absence and exiting on malformed input.
func envInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}

// envDur parses a Go duration string such as "30m" or "10s".
func envDur(key string, def time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		log.Fatalf("invalid duration for %s: %q", key, s)
	}
	return d
}

// envBool accepts "true"/"1"/"yes" (any case) as true and
// "false"/"0"/"no" as false.
func envBool(key string, def bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	switch strings.ToLower(s) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	}
	log.Fatalf("invalid bool for %s: %q", key, s)
	return def
}
