package app

import (
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/xs2a/pkg/jwtx"
)

// LoadTppKeys reads the trusted TPP token issuer keys and builds the
// verifier the HTTP layer authenticates TPPs with.
func LoadTppKeys(cfg Config, logger *slog.Logger) (*jwtx.KeySet, jwtx.Verifier, error) {
	keys, err := jwtx.LoadJWKSFile(cfg.JWKSFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load TPP keys: %w", err)
	}
	if !keys.IsReady() {
		return nil, nil, fmt.Errorf("no TPP keys in %s", cfg.JWKSFile)
	}

	logger.Info("TPP token keys loaded", "file", cfg.JWKSFile, "issuer", cfg.TokenIssuer, "kids", keys.Kids())
	return keys, jwtx.NewVerifier(keys, cfg.TokenIssuer, cfg.TokenAudience, cfg.TokenLeeway), nil
}
