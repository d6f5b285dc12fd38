package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/xs2a/internal/xs2a/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers implement this
// and expose sub-repositories so a transaction can hand out the same repos.
// Every status or flag update is a single UPDATE statement; concurrent
// writers are last-write-wins.
type Store interface {
	Authorisations() Authorisations
	Consents() Consents
	Payments() Payments
	SigningBaskets() SigningBaskets

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx runs fn in a transaction, rolling back if fn returns an error.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Authorisations interface {
	CreateAuthorisation(ctx context.Context, a domain.Authorisation) error

	GetAuthorisationByID(ctx context.Context, id string) (domain.Authorisation, error)

	// ListAuthorisationsByParent returns the authorisations of one business
	// object, oldest first. No types means every type.
	ListAuthorisationsByParent(ctx context.Context, parentID string, types ...domain.AuthorisationType) ([]domain.Authorisation, error)

	// UpdateAuthorisation overwrites the mutable fields: psu, status,
	// approach, chosen method, available methods and challenge data.
	UpdateAuthorisation(ctx context.Context, a domain.Authorisation) error

	UpdateScaStatus(ctx context.Context, id string, status domain.ScaStatus) error

	// FailOpenAuthorisations marks every non-final authorisation of the
	// parent as failed and returns how many were changed.
	FailOpenAuthorisations(ctx context.Context, parentID string, types ...domain.AuthorisationType) (int64, error)
}

type Consents interface {
	CreateConsent(ctx context.Context, c domain.Consent) error
	GetConsentByID(ctx context.Context, id string) (domain.Consent, error)
	UpdateConsentStatus(ctx context.Context, id string, status domain.ConsentStatus) error
	UpdateMultilevelScaRequired(ctx context.Context, id string, required bool) error

	// AddPsu appends psu to the consent's PSU list unless already present.
	AddPsu(ctx context.Context, id string, psu domain.PsuIdData) error

	ListConsentsByTpp(ctx context.Context, tppID string, t domain.ConsentType, statuses ...domain.ConsentStatus) ([]domain.Consent, error)

	// ListUnconfirmedBefore returns consents still in received status that
	// were created before the cutoff.
	ListUnconfirmedBefore(ctx context.Context, t domain.ConsentType, before time.Time) ([]domain.Consent, error)
}

type Payments interface {
	CreatePayment(ctx context.Context, p domain.Payment) error
	GetPaymentByID(ctx context.Context, id string) (domain.Payment, error)
	UpdateTransactionStatus(ctx context.Context, id string, status domain.TransactionStatus) error
	UpdateMultilevelScaRequired(ctx context.Context, id string, required bool) error
	AddPsu(ctx context.Context, id string, psu domain.PsuIdData) error

	// ListUnconfirmedBefore returns payments in an initial status created
	// before the cutoff.
	ListUnconfirmedBefore(ctx context.Context, before time.Time) ([]domain.Payment, error)
}

type SigningBaskets interface {
	// CreateSigningBasket stores the basket and its ordered references.
	CreateSigningBasket(ctx context.Context, b domain.SigningBasket) error
	GetSigningBasketByID(ctx context.Context, id string) (domain.SigningBasket, error)
	UpdateTransactionStatus(ctx context.Context, id string, status domain.TransactionStatus) error
	UpdateMultilevelScaRequired(ctx context.Context, id string, required bool) error
	AddPsu(ctx context.Context, id string, psu domain.PsuIdData) error
	ListUnconfirmedBefore(ctx context.Context, before time.Time) ([]domain.SigningBasket, error)

	// FindBasketsReferencing returns the baskets that contain a consent or
	// payment with the given internal id.
	FindBasketsReferencing(ctx context.Context, objectID string) ([]domain.SigningBasket, error)
}
