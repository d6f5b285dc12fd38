package cryptox

import (
	"crypto/rand"
	"encoding/base64"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Argon2id parameters for PSU credential hashes.
const (
	memory      = 19 * 1024 // KiB
	iterations  = 2
	parallelism = 1
	keyLength   = 32
	saltLength  = 16
)

var (
	pepperMu   sync.Mutex
	pepper     string
	pepperFile string
)

// SetPepperPath selects the file the pepper is persisted in. An empty path
// keeps the pepper in memory only.
func SetPepperPath(file string) {
	pepperMu.Lock()
	defer pepperMu.Unlock()
	pepperFile = file
	pepper = ""
}

// GetPepper returns the process pepper, loading or generating it on first use.
func GetPepper() string {
	pepperMu.Lock()
	defer pepperMu.Unlock()

	if pepper != "" {
		return pepper
	}

	p, err := loadOrGeneratePepper(pepperFile)
	if err != nil {
		slog.Error("pepper file unusable, using in-memory pepper", "path", pepperFile, "err", err)
		p = randomPepper()
	}
	pepper = p
	return pepper
}

func loadOrGeneratePepper(file string) (string, error) {
	if file == "" {
		return randomPepper(), nil
	}

	file = filepath.Clean(file)
	if data, err := os.ReadFile(file); err == nil {
		return string(data), nil
	} else if !os.IsNotExist(err) {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(file), 0750); err != nil {
		return "", err
	}
	p := randomPepper()
	if err := os.WriteFile(file, []byte(p), 0600); err != nil {
		return "", err
	}
	return p, nil
}

func randomPepper() string {
	b := make([]byte, keyLength)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}
