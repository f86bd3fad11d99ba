package app

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/caarlos0/env/v11"

	devhttp "github.com/aussiebroadwan/calendar/internal/devbackend/http"
	"github.com/aussiebroadwan/calendar/pkg/httpx"
)

type Config struct {
	Issuer          string        `env:"AUTH_ISSUER"           envDefault:"calendar-api"`
	SigningKeyFile  string        `env:"AUTH_SIGNING_KEY_FILE"`                           // empty: ephemeral key, sessions end on restart
	Pepper          string        `env:"AUTH_PEPPER"`                                     // mixed into every password hash
	AccessTokenTTL  time.Duration `env:"ACCESS_TOKEN_TTL"      envDefault:"15m"`
	RefreshTokenTTL time.Duration `env:"REFRESH_TOKEN_TTL"     envDefault:"168h"`
	SecureCookies   bool          `env:"SECURE_COOKIES"        envDefault:"false"`
	DatabaseFile    string        `env:"DATABASE_FILE"         envDefault:"calendar-api.db"`

	Env                  string        `env:"ENV"                   envDefault:"dev"`
	LogLevel             string        `env:"LOG_LEVEL"             envDefault:"info"`
	LogFormat            string        `env:"LOG_FORMAT"            envDefault:"json"`
	Port                 int           `env:"PORT"                  envDefault:"8080"`
	ShutdownGracePeriod  time.Duration `env:"SHUTDOWN_GRACE_PERIOD" envDefault:"10s"`
	HousekeepingInterval time.Duration `env:"HOUSEKEEPING_INTERVAL" envDefault:"1h"`

	// Limits come from RATELIMIT_{LOGIN,REFRESH,API}_* (see httpx.ParseRateLimitFromEnv).
	Limits devhttp.Limits

	// LogOutput overrides stdout, mostly for tests.
	LogOutput io.Writer
}

// LoadConfig reads the environment and validates the result.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg.Limits = devhttp.Limits{
		Login:   httpx.ParseRateLimitFromEnv("LOGIN", httpx.LoginLimit),
		Refresh: httpx.ParseRateLimitFromEnv("REFRESH", httpx.RefreshLimit),
		API:     httpx.ParseRateLimitFromEnv("API", httpx.APILimit),
	}

	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	var errs []error
	if c.Issuer == "" {
		errs = append(errs, errors.New("AUTH_ISSUER must not be empty"))
	}
	if c.AccessTokenTTL <= 0 {
		errs = append(errs, errors.New("ACCESS_TOKEN_TTL must be positive"))
	}
	if c.RefreshTokenTTL <= c.AccessTokenTTL {
		errs = append(errs, errors.New("REFRESH_TOKEN_TTL must exceed ACCESS_TOKEN_TTL"))
	}
	if c.DatabaseFile == "" {
		errs = append(errs, errors.New("DATABASE_FILE must not be empty"))
	}
	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d out of range", c.Port))
	}
	return errors.Join(errs...)
}
