// Package securid translates internal identifiers to the opaque tokens shown
// to TPPs and back. A false result always means a technical error for the
// caller; the translator never partially succeeds.
package securid

import (
	"encoding/base64"
	"log/slog"

	"github.com/aussiebroadwan/xs2a/pkg/cryptox"
)

// Translator encrypts identifiers with an AES-256-GCM cipher.
type Translator struct {
	cipher *cryptox.IDCipher
	logger *slog.Logger
}

func New(c *cryptox.IDCipher, logger *slog.Logger) *Translator {
	return &Translator{cipher: c, logger: logger}
}

// Encrypt returns the external token for internalID.
func (t *Translator) Encrypt(internalID string) (string, bool) {
	if internalID == "" {
		return "", false
	}
	sealed, err := t.cipher.Seal([]byte(internalID))
	if err != nil {
		t.logger.Error("securid: encrypt failed", "err", err)
		return "", false
	}
	return base64.RawURLEncoding.EncodeToString(sealed), true
}

// Decrypt returns the internal id behind token.
func (t *Translator) Decrypt(token string) (string, bool) {
	sealed, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil || len(sealed) == 0 {
		t.logger.Warn("securid: malformed token")
		return "", false
	}
	plain, err := t.cipher.Open(sealed)
	if err != nil || len(plain) == 0 {
		t.logger.Warn("securid: token rejected", "err", err)
		return "", false
	}
	return string(plain), true
}

// DecryptAll decrypts every token in order. The first failure aborts and no
// partial result is returned.
func (t *Translator) DecryptAll(tokens []string) ([]string, bool) {
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		id, ok := t.Decrypt(tok)
		if !ok {
			return nil, false
		}
		out = append(out, id)
	}
	return out, true
}

// EncryptAll is the inverse of DecryptAll with the same all-or-nothing rule.
func (t *Translator) EncryptAll(ids []string) ([]string, bool) {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		tok, ok := t.Encrypt(id)
		if !ok {
			return nil, false
		}
		out = append(out, tok)
	}
	return out, true
}
