package service

import (
	"context"
	"net/http"

	"github.com/aussiebroadwan/xs2a/internal/xs2a/domain"
	"github.com/aussiebroadwan/xs2a/internal/xs2a/spi"
	"github.com/aussiebroadwan/xs2a/internal/xs2a/store"
)

// Adapter supplies everything kind-specific the Dispatcher needs. Object
// statuses cross this boundary as strings so consent and transaction
// statuses share one FSM.
type Adapter interface {
	// SPI pass-throughs for this kind of object.
	spi.Authorisation

	Type() domain.AuthorisationType
	Service() domain.ServiceType

	// Lookup returns store.ErrNotFound for an unknown id or an object of
	// another kind.
	Lookup(ctx context.Context, id string) (domain.Subject, error)

	IsOneFactorAuthorisation(s domain.Subject) bool

	// IsClosed reports an object status that accepts no further
	// authorisation transitions.
	IsClosed(status string) bool
	IsPartiallyAuthorised(status string) bool

	// ValidStatus is written when a one-factor authorisation succeeds.
	ValidStatus() string
	// RejectedStatus is written when no SCA method is available. Empty
	// leaves the object untouched.
	RejectedStatus() string

	UpdateObjectStatus(ctx context.Context, id, status string) error
	UpdateMultilevelFlag(ctx context.Context, id string, required bool) error
	AddPsu(ctx context.Context, id string, psu domain.PsuIdData) error

	// ErrorTypeFor maps an HTTP status to this kind's protocol error class.
	ErrorTypeFor(status int) domain.ErrorType

	// TerminateSuperseded runs after a successful verification.
	TerminateSuperseded(ctx context.Context, s domain.Subject) error
}

// Adapters resolves the adapter for an authorisation type.
type Adapters map[domain.AuthorisationType]Adapter

// NewAdapters builds one adapter per authorisation type over the same store
// and bank. A nil policy never terminates other consents.
func NewAdapters(st store.Store, bank spi.Authorisation, policy SupersededPolicy) Adapters {
	return Adapters{
		domain.AuthorisationAIS:             &consentAdapter{Authorisation: bank, store: st, consentType: domain.ConsentTypeAIS, policy: policy},
		domain.AuthorisationPIIS:            &consentAdapter{Authorisation: bank, store: st, consentType: domain.ConsentTypePIIS},
		domain.AuthorisationPISCreation:     &paymentAdapter{Authorisation: bank, store: st},
		domain.AuthorisationPISCancellation: &paymentAdapter{Authorisation: bank, store: st, cancellation: true},
		domain.AuthorisationSigningBasket:   &basketAdapter{Authorisation: bank, store: st, policy: policy},
	}
}

func (a Adapters) Get(t domain.AuthorisationType) (Adapter, bool) {
	ad, ok := a[t]
	return ad, ok
}

// ServiceFor returns the error class of an authorisation type.
func ServiceFor(t domain.AuthorisationType) domain.ServiceType {
	switch t {
	case domain.AuthorisationAIS:
		return domain.ServiceAIS
	case domain.AuthorisationPIIS:
		return domain.ServicePIIS
	case domain.AuthorisationSigningBasket:
		return domain.ServiceSB
	}
	return domain.ServicePIS
}

func errorType(service domain.ServiceType, status int) domain.ErrorType {
	if status == 0 {
		status = http.StatusBadRequest
	}
	return domain.ErrorType{Service: service, HTTPStatus: status}
}
