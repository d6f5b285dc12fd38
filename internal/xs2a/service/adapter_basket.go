package service

import (
	"context"
	"fmt"

	"github.com/aussiebroadwan/xs2a/internal/xs2a/domain"
	"github.com/aussiebroadwan/xs2a/internal/xs2a/spi"
	"github.com/aussiebroadwan/xs2a/internal/xs2a/store"
)

// basketAdapter authorises a signing basket. Status changes are copied to
// every consent and payment the basket references.
type basketAdapter struct {
	spi.Authorisation

	store  store.Store
	policy SupersededPolicy
}

func (a *basketAdapter) Type() domain.AuthorisationType { return domain.AuthorisationSigningBasket }
func (a *basketAdapter) Service() domain.ServiceType    { return domain.ServiceSB }

func (a *basketAdapter) Lookup(ctx context.Context, id string) (domain.Subject, error) {
	b, err := a.store.SigningBaskets().GetSigningBasketByID(ctx, id)
	if err != nil {
		return domain.Subject{}, err
	}
	return domain.BasketSubject(b), nil
}

func (a *basketAdapter) IsOneFactorAuthorisation(domain.Subject) bool { return false }

func (a *basketAdapter) IsClosed(status string) bool {
	return domain.TransactionStatus(status).IsFinalised()
}

func (a *basketAdapter) IsPartiallyAuthorised(status string) bool {
	return domain.TransactionStatus(status) == domain.TransactionPartiallyAccepted
}

func (a *basketAdapter) ValidStatus() string {
	return string(domain.TransactionAcceptedSettlementProcess)
}

func (a *basketAdapter) RejectedStatus() string { return string(domain.TransactionRejected) }

func (a *basketAdapter) UpdateObjectStatus(ctx context.Context, id, status string) error {
	ts := domain.TransactionStatus(status)
	return a.store.WithTx(ctx, func(tx store.Tx) error {
		b, err := tx.SigningBaskets().GetSigningBasketByID(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.SigningBaskets().UpdateTransactionStatus(ctx, id, ts); err != nil {
			return err
		}
		return propagateBasketStatus(ctx, tx, b, ts)
	})
}

// propagateBasketStatus moves the referenced objects along with the basket.
// Objects that already reached a final status keep it.
func propagateBasketStatus(ctx context.Context, tx store.Tx, b domain.SigningBasket, ts domain.TransactionStatus) error {
	cs, ok := consentStatusFor(ts)
	if ok {
		for _, id := range b.ConsentIDs {
			c, err := tx.Consents().GetConsentByID(ctx, id)
			if err != nil {
				return fmt.Errorf("load basket consent %s: %w", id, err)
			}
			if c.Status.IsFinalised() || c.Status == cs {
				continue
			}
			if err := tx.Consents().UpdateConsentStatus(ctx, id, cs); err != nil {
				return fmt.Errorf("update basket consent %s: %w", id, err)
			}
		}
	}

	for _, id := range b.PaymentIDs {
		p, err := tx.Payments().GetPaymentByID(ctx, id)
		if err != nil {
			return fmt.Errorf("load basket payment %s: %w", id, err)
		}
		if p.TransactionStatus.IsFinalised() || p.TransactionStatus == ts {
			continue
		}
		if err := tx.Payments().UpdateTransactionStatus(ctx, id, ts); err != nil {
			return fmt.Errorf("update basket payment %s: %w", id, err)
		}
	}
	return nil
}

func consentStatusFor(ts domain.TransactionStatus) (domain.ConsentStatus, bool) {
	switch ts {
	case domain.TransactionAcceptedSettlementProcess, domain.TransactionAcceptedCustomerProfile,
		domain.TransactionAcceptedSettlementCompleted, domain.TransactionAcceptedTechnical:
		return domain.ConsentValid, true
	case domain.TransactionPartiallyAccepted:
		return domain.ConsentPartiallyAuthorised, true
	case domain.TransactionRejected, domain.TransactionCancelled:
		return domain.ConsentRejected, true
	}
	return "", false
}

func (a *basketAdapter) UpdateMultilevelFlag(ctx context.Context, id string, required bool) error {
	return a.store.SigningBaskets().UpdateMultilevelScaRequired(ctx, id, required)
}

func (a *basketAdapter) AddPsu(ctx context.Context, id string, psu domain.PsuIdData) error {
	return a.store.SigningBaskets().AddPsu(ctx, id, psu)
}

func (a *basketAdapter) ErrorTypeFor(status int) domain.ErrorType {
	return errorType(domain.ServiceSB, status)
}

// TerminateSuperseded applies the consent policy to every AIS consent the
// basket made valid.
func (a *basketAdapter) TerminateSuperseded(ctx context.Context, s domain.Subject) error {
	if a.policy == nil || s.Basket == nil {
		return nil
	}
	for _, id := range s.Basket.ConsentIDs {
		if _, err := a.policy.TerminateSuperseded(ctx, a.store, id); err != nil {
			return err
		}
	}
	return nil
}
