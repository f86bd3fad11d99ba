package app

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/aussiebroadwan/calendar/pkg/credstore"
	"github.com/aussiebroadwan/calendar/pkg/credstore/drivers/file"
	"github.com/aussiebroadwan/calendar/pkg/expiry"
)

// Credential backends selectable through CREDENTIAL_BACKEND.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

type Config struct {
	APIURL     string `env:"API_URL"     envDefault:"http://localhost:8080"`
	ListenAddr string `env:"LISTEN_ADDR" envDefault:":3000"`

	CredentialBackend    string `env:"CREDENTIAL_BACKEND"     envDefault:"file"`
	CredentialFile       string `env:"CREDENTIAL_FILE"        envDefault:".calendar/credential.json"`
	CredentialSQLiteFile string `env:"CREDENTIAL_SQLITE_FILE" envDefault:"calendar.db"`
	CredentialRedisAddr  string `env:"CREDENTIAL_REDIS_ADDR"`
	CredentialSlot       string `env:"CREDENTIAL_SLOT"        envDefault:"accessToken"`

	ExpiryCheckInterval time.Duration `env:"EXPIRY_CHECK_INTERVAL" envDefault:"14m"`
	ExpiryLeadTime      time.Duration `env:"EXPIRY_LEAD_TIME"      envDefault:"2m"`
	RefreshTimeout      time.Duration `env:"REFRESH_TIMEOUT"       envDefault:"10s"`
	HTTPTimeout         time.Duration `env:"HTTP_TIMEOUT"          envDefault:"10s"`
	RequestsPerSecond   float64       `env:"REQUESTS_PER_SECOND"   envDefault:"0"` // 0: unlimited
	GateWait            time.Duration `env:"GATE_WAIT"             envDefault:"2s"`

	Env                 string        `env:"ENV"                   envDefault:"dev"`
	LogLevel            string        `env:"LOG_LEVEL"             envDefault:"info"`
	LogFormat           string        `env:"LOG_FORMAT"            envDefault:"json"`
	ShutdownGracePeriod time.Duration `env:"SHUTDOWN_GRACE_PERIOD" envDefault:"10s"`

	// LogOutput overrides stdout, mostly for tests.
	LogOutput io.Writer
}

// LoadConfig reads the environment and validates the result.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	var errs []error

	if u, err := url.Parse(c.APIURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("API_URL %q is not an absolute URL", c.APIURL))
	}

	switch c.CredentialBackend {
	case BackendMemory:
	case BackendFile:
		if c.CredentialFile == "" {
			errs = append(errs, errors.New("CREDENTIAL_FILE must not be empty"))
		}
	case BackendSQLite:
		if c.CredentialSQLiteFile == "" {
			errs = append(errs, errors.New("CREDENTIAL_SQLITE_FILE must not be empty"))
		}
	case BackendRedis:
		if c.CredentialRedisAddr == "" {
			errs = append(errs, errors.New("CREDENTIAL_REDIS_ADDR is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("CREDENTIAL_BACKEND %q must be one of memory, file, sqlite, redis", c.CredentialBackend))
	}

	if c.ExpiryCheckInterval <= 0 {
		errs = append(errs, errors.New("EXPIRY_CHECK_INTERVAL must be positive"))
	}
	if c.ExpiryLeadTime < 0 {
		errs = append(errs, errors.New("EXPIRY_LEAD_TIME must not be negative"))
	}
	if c.RefreshTimeout < 0 || c.HTTPTimeout < 0 || c.GateWait < 0 || c.ShutdownGracePeriod < 0 {
		errs = append(errs, errors.New("timeouts must not be negative"))
	}
	if c.RequestsPerSecond < 0 {
		errs = append(errs, errors.New("REQUESTS_PER_SECOND must not be negative"))
	}
	return errors.Join(errs...)
}

func (c Config) expiry() expiry.Config {
	return expiry.Config{Interval: c.ExpiryCheckInterval, Lead: c.ExpiryLeadTime}
}

func (c Config) slot() string {
	if c.CredentialSlot == "" {
		return credstore.DefaultSlot
	}
	return c.CredentialSlot
}

func (c Config) credentialFile() string {
	if c.CredentialFile == "" {
		return file.DefaultPath
	}
	return c.CredentialFile
}
