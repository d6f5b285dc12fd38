package jwtx

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"slices"
	"sync"
)

var (
	ErrNoKey        = errors.New("jwtx: key not found")
	ErrDuplicateKid = errors.New("jwtx: duplicate kid")
)

// KeySet holds the verification keys of the trusted TPP token issuers,
// indexed by kid. A kid names exactly one key: two issuers publishing the
// same kid are refused rather than letting one shadow the other. Safe for
// concurrent use.
type KeySet struct {
	mu   sync.RWMutex
	keys map[string]any // kid: ed25519.PublicKey | *ecdsa.PublicKey
}

func NewKeySet() *KeySet {
	return &KeySet{keys: make(map[string]any)}
}

// AddJWK parses a trusted issuer key and adds it under its kid.
func (k *KeySet) AddJWK(j JWK) error {
	key, err := parseTppKey(j)
	if err != nil {
		return err
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	if _, dup := k.keys[j.Kid]; dup {
		return fmt.Errorf("%w %q", ErrDuplicateKid, j.Kid)
	}
	k.keys[j.Kid] = key
	return nil
}

func (k *KeySet) Get(kid string) (any, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if pk, ok := k.keys[kid]; ok {
		return pk, nil
	}
	return nil, ErrNoKey
}

// IsReady reports whether at least one issuer key is loaded.
func (k *KeySet) IsReady() bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.keys) > 0
}

// Kids lists the loaded key ids in sorted order.
func (k *KeySet) Kids() []string {
	k.mu.RLock()
	defer k.mu.RUnlock()
	kids := make([]string, 0, len(k.keys))
	for kid := range k.keys {
		kids = append(kids, kid)
	}
	slices.Sort(kids)
	return kids
}

// ResetFromJWKS replaces every key. The set is left untouched when any key
// of the document is unusable or a kid repeats.
func (k *KeySet) ResetFromJWKS(jwks JWKS) error {
	next := make(map[string]any, len(jwks.Keys))
	for _, j := range jwks.Keys {
		key, err := parseTppKey(j)
		if err != nil {
			return err
		}
		if _, dup := next[j.Kid]; dup {
			return fmt.Errorf("%w %q", ErrDuplicateKid, j.Kid)
		}
		next[j.Kid] = key
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	k.keys = next
	return nil
}

// parseTppKey accepts the signature keys TPP tokens may be signed with:
// Ed25519 (EdDSA) and P-256 (ES256).
func parseTppKey(j JWK) (any, error) {
	if j.Kid == "" {
		return nil, errors.New("jwtx: issuer key without kid")
	}
	if j.Use != "" && j.Use != "sig" {
		return nil, fmt.Errorf("jwtx: key %q is not a signature key", j.Kid)
	}

	switch j.Kty {
	case "OKP":
		if j.Crv != "Ed25519" {
			return nil, errors.New("jwtx: unsupported OKP curve " + j.Crv)
		}
		if j.Alg != "" && j.Alg != "EdDSA" {
			return nil, fmt.Errorf("jwtx: key %q: alg %s does not match Ed25519", j.Kid, j.Alg)
		}
		xb, err := base64.RawURLEncoding.DecodeString(j.X)
		if err != nil {
			return nil, err
		}
		if len(xb) != ed25519.PublicKeySize {
			return nil, errors.New("jwtx: invalid Ed25519 public key size")
		}
		return ed25519.PublicKey(xb), nil

	case "EC":
		if j.Crv != "P-256" {
			return nil, errors.New("jwtx: unsupported EC curve " + j.Crv)
		}
		if j.Alg != "" && j.Alg != "ES256" {
			return nil, fmt.Errorf("jwtx: key %q: alg %s does not match P-256", j.Kid, j.Alg)
		}
		xb, err := base64.RawURLEncoding.DecodeString(j.X)
		if err != nil {
			return nil, err
		}
		yb, err := base64.RawURLEncoding.DecodeString(j.Y)
		if err != nil {
			return nil, err
		}
		pub := &ecdsa.PublicKey{
			Curve: elliptic.P256(),
			X:     new(big.Int).SetBytes(xb),
			Y:     new(big.Int).SetBytes(yb),
		}
		if !pub.Curve.IsOnCurve(pub.X, pub.Y) {
			return nil, fmt.Errorf("jwtx: key %q: point is not on P-256", j.Kid)
		}
		return pub, nil

	default:
		return nil, errors.New("jwtx: unsupported kty " + j.Kty)
	}
}
