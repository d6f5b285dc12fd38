package jwtx

import (
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TPP roles as carried in the "roles" claim of a TPP access token. These
// mirror the PSD2 roles found in an eIDAS QWAC.
const (
	RoleAISP  = "AISP"
	RolePISP  = "PISP"
	RolePIISP = "PIISP"
)

// Claims identify the third-party provider calling the API. The subject
// is the TPP authorisation number.
type Claims struct {
	jwt.RegisteredClaims

	// PSD2 roles granted to the TPP by its national competent authority.
	Roles []string `json:"roles,omitempty"`

	// Human readable TPP name, for logs only.
	TppName string `json:"tpp_name,omitempty"`

	// Redirect URI registered for the TPP (used by REDIRECT approach).
	RedirectURI string `json:"redirect_uri,omitempty"`
}

// HasRole reports whether the TPP holds the given PSD2 role.
func (c *Claims) HasRole(role string) bool {
	return slices.Contains(c.Roles, role)
}

// ValidateIssuer checks if the issuer matches expected value.
func (c *Claims) ValidateIssuer(expected string) error {
	if expected == "" {
		return nil
	}
	if c.Issuer != expected {
		return ErrIssuer
	}
	return nil
}

// ValidateAudience checks if at least one expected audience is present.
func (c *Claims) ValidateAudience(expected []string) error {
	if len(expected) == 0 {
		return nil
	}
	for _, want := range expected {
		if slices.Contains(c.Audience, want) {
			return nil
		}
	}
	return ErrAudience
}

// ValidateExpiryWithLeeway checks exp and nbf allowing for clock skew.
func (c *Claims) ValidateExpiryWithLeeway(leeway time.Duration) error {
	now := time.Now().UTC()

	if c.ExpiresAt != nil && now.After(c.ExpiresAt.Add(leeway)) {
		return ErrExpired
	}
	if c.NotBefore != nil && now.Before(c.NotBefore.Add(-leeway)) {
		return ErrNotYetValid
	}
	return nil
}

// ValidateExpiry is ValidateExpiryWithLeeway without leeway.
func (c *Claims) ValidateExpiry() error {
	return c.ValidateExpiryWithLeeway(0)
}
