package domain

import (
	"slices"
	"time"
)

type ConsentType string

const (
	ConsentTypeAIS  ConsentType = "AIS"
	ConsentTypePIIS ConsentType = "PIIS"
)

// AuthorisationType returns the authorisation kind used for this consent.
func (t ConsentType) AuthorisationType() AuthorisationType {
	if t == ConsentTypePIIS {
		return AuthorisationPIIS
	}
	return AuthorisationAIS
}

const (
	AccessAllAccounts          = "allAccounts"
	AccessAllAccountsWithOwner = "allAccountsWithOwnerName"
)

// AccountAccess lists the IBANs a consent grants access to per service. For
// PIIS consents Accounts holds the single account funds are checked on.
type AccountAccess struct {
	Accounts          []string `json:"accounts,omitempty"`
	Balances          []string `json:"balances,omitempty"`
	Transactions      []string `json:"transactions,omitempty"`
	AvailableAccounts string   `json:"availableAccounts,omitempty"`
	AllPsd2           string   `json:"allPsd2,omitempty"`
}

// IsAvailableAccountsOnly reports an access that only lists the PSU's
// accounts, without any balances or transactions.
func (a AccountAccess) IsAvailableAccountsOnly() bool {
	return a.AvailableAccounts != "" && a.AllPsd2 == "" &&
		len(a.Accounts) == 0 && len(a.Balances) == 0 && len(a.Transactions) == 0
}

// Equal compares two accesses ignoring the order of the IBAN lists.
func (a AccountAccess) Equal(o AccountAccess) bool {
	return sameSet(a.Accounts, o.Accounts) &&
		sameSet(a.Balances, o.Balances) &&
		sameSet(a.Transactions, o.Transactions) &&
		a.AvailableAccounts == o.AvailableAccounts &&
		a.AllPsd2 == o.AllPsd2
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as, bs := slices.Clone(a), slices.Clone(b)
	slices.Sort(as)
	slices.Sort(bs)
	return slices.Equal(as, bs)
}

type Consent struct {
	ID                    string
	Type                  ConsentType
	Status                ConsentStatus
	TppID                 string
	Psus                  []PsuIdData
	Recurring             bool
	FrequencyPerDay       int
	ValidUntil            time.Time
	Access                AccountAccess
	MultilevelScaRequired bool
	InternalRequestID     string
	CreatedAt             time.Time
	StatusChangedAt       time.Time
}

// IsOneFactor reports an AIS consent that needs only PSU identification: a
// one-off request for the list of available accounts.
func (c Consent) IsOneFactor() bool {
	return c.Type == ConsentTypeAIS && !c.Recurring && c.Access.IsAvailableAccountsOnly()
}

// CreateConsentRequest is a TPP's consent request. ValidUntil zero means no
// expiry date was requested.
type CreateConsentRequest struct {
	Type                  ConsentType
	TppID                 string
	Psu                   PsuIdData
	Access                AccountAccess
	Recurring             bool
	FrequencyPerDay       int
	ValidUntil            time.Time
	ScaApproach           ScaApproach
	ExplicitAuthorisation bool
	XRequestID            string
}

// CreateConsentResponse carries the encrypted consent id. AuthorisationID is
// empty when the TPP asked to start the authorisation explicitly.
type CreateConsentResponse struct {
	ConsentID       string
	ConsentStatus   ConsentStatus
	AuthorisationID string
	ScaStatus       ScaStatus
	ScaApproach     ScaApproach
}
