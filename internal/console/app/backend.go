package app

import (
	"context"
	"fmt"

	"github.com/aussiebroadwan/calendar/pkg/credstore"
	"github.com/aussiebroadwan/calendar/pkg/credstore/drivers/file"
	"github.com/aussiebroadwan/calendar/pkg/credstore/drivers/redis"
	"github.com/aussiebroadwan/calendar/pkg/credstore/drivers/sqlite"
)

// openBackend returns the durable storage named by CREDENTIAL_BACKEND.
func openBackend(ctx context.Context, cfg Config) (credstore.Backend, error) {
	switch cfg.CredentialBackend {
	case BackendMemory:
		return credstore.NewMemoryBackend(), nil
	case BackendFile, "":
		return file.New(cfg.credentialFile()), nil
	case BackendSQLite:
		dsn := cfg.CredentialSQLiteFile
		if dsn != ":memory:" {
			dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", dsn)
		}
		return sqlite.Open(dsn)
	case BackendRedis:
		return redis.Dial(ctx, cfg.CredentialRedisAddr)
	default:
		return nil, fmt.Errorf("unknown credential backend %q", cfg.CredentialBackend)
	}
}
