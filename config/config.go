package config

import (
	"time"

	"github.com/namsral/flag"

	"github.com/domino14/review_engine/internal/review"
)

type Config struct {
	ServiceURL     string
	AuthToken      string
	StorePath      string
	RequestTimeout time.Duration

	RetryAttempts  int
	RetryBaseDelay time.Duration
	RetryMaxJitter time.Duration

	DefaultMode  string
	DefaultLimit int

	ListenAddr string
	JWTSecret  string

	LogLevel string
}

// Load loads the configs from the given arguments. Every flag can also be
// set through the environment, e.g. REVIEW_SERVICE_URL for -review-service-url.
func (c *Config) Load(args []string) error {
	fs := flag.NewFlagSet("reviewengine", flag.ContinueOnError)

	fs.StringVar(&c.ServiceURL, "review-service-url", "http://localhost:8190", "base URL of the review service")
	fs.StringVar(&c.AuthToken, "auth-token", "", "bearer token (JWT) sent to the review service")
	fs.StringVar(&c.StorePath, "store-path", "review_session.db", "sqlite file holding the saved session; empty keeps it in memory")
	fs.DurationVar(&c.RequestTimeout, "request-timeout", 10*time.Second, "timeout for a single call to the review service")

	fs.IntVar(&c.RetryAttempts, "retry-attempts", 3, "attempts per remote call before giving up")
	fs.DurationVar(&c.RetryBaseDelay, "retry-base-delay", time.Second, "delay before the first retry; doubles on each further retry")
	fs.DurationVar(&c.RetryMaxJitter, "retry-max-jitter", time.Second, "upper bound of the random delay added to each retry")

	fs.StringVar(&c.DefaultMode, "default-mode", string(review.ModeDueCards), "review mode used when starting a session")
	fs.IntVar(&c.DefaultLimit, "default-limit", 20, "number of cards in a new session")

	fs.StringVar(&c.ListenAddr, "listen-addr", ":8190", "address the review server listens on")
	fs.StringVar(&c.JWTSecret, "jwt-secret", "", "HMAC secret the review server verifies tokens with")

	fs.StringVar(&c.LogLevel, "log-level", "info", "log level")
	err := fs.Parse(args)
	return err
}
