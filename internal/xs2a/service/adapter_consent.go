package service

import (
	"context"

	"github.com/aussiebroadwan/xs2a/internal/xs2a/domain"
	"github.com/aussiebroadwan/xs2a/internal/xs2a/spi"
	"github.com/aussiebroadwan/xs2a/internal/xs2a/store"
)

// consentAdapter serves both AIS and PIIS consents.
type consentAdapter struct {
	spi.Authorisation

	store       store.Store
	consentType domain.ConsentType
	policy      SupersededPolicy
}

func (a *consentAdapter) Type() domain.AuthorisationType {
	return a.consentType.AuthorisationType()
}

func (a *consentAdapter) Service() domain.ServiceType {
	return ServiceFor(a.Type())
}

func (a *consentAdapter) Lookup(ctx context.Context, id string) (domain.Subject, error) {
	c, err := a.store.Consents().GetConsentByID(ctx, id)
	if err != nil {
		return domain.Subject{}, err
	}
	if c.Type != a.consentType {
		return domain.Subject{}, store.ErrNotFound
	}
	return domain.ConsentSubject(c), nil
}

func (a *consentAdapter) IsOneFactorAuthorisation(s domain.Subject) bool {
	return s.Consent != nil && s.Consent.IsOneFactor()
}

// A valid consent is fully authorised; no new PSU may sign it.
func (a *consentAdapter) IsClosed(status string) bool {
	st := domain.ConsentStatus(status)
	return st == domain.ConsentValid || st.IsFinalised()
}

func (a *consentAdapter) IsPartiallyAuthorised(status string) bool {
	return domain.ConsentStatus(status) == domain.ConsentPartiallyAuthorised
}

func (a *consentAdapter) ValidStatus() string    { return string(domain.ConsentValid) }
func (a *consentAdapter) RejectedStatus() string { return string(domain.ConsentRejected) }

func (a *consentAdapter) UpdateObjectStatus(ctx context.Context, id, status string) error {
	return a.store.Consents().UpdateConsentStatus(ctx, id, domain.ConsentStatus(status))
}

func (a *consentAdapter) UpdateMultilevelFlag(ctx context.Context, id string, required bool) error {
	return a.store.Consents().UpdateMultilevelScaRequired(ctx, id, required)
}

func (a *consentAdapter) AddPsu(ctx context.Context, id string, psu domain.PsuIdData) error {
	return a.store.Consents().AddPsu(ctx, id, psu)
}

func (a *consentAdapter) ErrorTypeFor(status int) domain.ErrorType {
	return errorType(a.Service(), status)
}

func (a *consentAdapter) TerminateSuperseded(ctx context.Context, s domain.Subject) error {
	if a.policy == nil {
		return nil
	}
	_, err := a.policy.TerminateSuperseded(ctx, a.store, s.ID)
	return err
}
