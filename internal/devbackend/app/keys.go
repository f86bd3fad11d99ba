package app

import (
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/calendar/pkg/cryptox"
	"github.com/aussiebroadwan/calendar/pkg/jwtx"
)

// InitSigner loads the Ed25519 signing key from cfg.SigningKeyFile, creating
// it on first start. Without a file the key lives only in memory and every
// issued token dies with the process.
func InitSigner(cfg Config, logger *slog.Logger) (*jwtx.EdDSASigner, error) {
	pemKey, err := cryptox.LoadOrGenerateEd25519Key(cfg.SigningKeyFile)
	if err != nil {
		return nil, fmt.Errorf("load signing key: %w", err)
	}

	signer, err := jwtx.NewSignerEdDSA("calendar-1", pemKey)
	if err != nil {
		return nil, err
	}
	if err := signer.Validate(); err != nil {
		return nil, err
	}

	if cfg.SigningKeyFile == "" {
		logger.Warn("using ephemeral signing key, sessions will not survive a restart")
	} else {
		logger.Info("signing key loaded", "path", cfg.SigningKeyFile, "kid", signer.KID())
	}
	return signer, nil
}
