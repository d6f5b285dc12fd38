package service

import (
	"context"

	"github.com/aussiebroadwan/xs2a/internal/xs2a/domain"
	"github.com/aussiebroadwan/xs2a/internal/xs2a/spi"
	"github.com/aussiebroadwan/xs2a/internal/xs2a/store"
)

// paymentAdapter drives either the initiation or the cancellation
// authorisation of a payment. Both act on the transaction status.
type paymentAdapter struct {
	spi.Authorisation

	store        store.Store
	cancellation bool
}

func (a *paymentAdapter) Type() domain.AuthorisationType {
	if a.cancellation {
		return domain.AuthorisationPISCancellation
	}
	return domain.AuthorisationPISCreation
}

func (a *paymentAdapter) Service() domain.ServiceType { return domain.ServicePIS }

func (a *paymentAdapter) Lookup(ctx context.Context, id string) (domain.Subject, error) {
	p, err := a.store.Payments().GetPaymentByID(ctx, id)
	if err != nil {
		return domain.Subject{}, err
	}
	return domain.PaymentSubject(p, a.Type()), nil
}

func (a *paymentAdapter) IsOneFactorAuthorisation(domain.Subject) bool { return false }

// An accepted payment can still be cancelled until it is settled.
func (a *paymentAdapter) IsClosed(status string) bool {
	st := domain.TransactionStatus(status)
	if !a.cancellation {
		return st.IsFinalised()
	}
	switch st {
	case domain.TransactionCancelled, domain.TransactionRejected,
		domain.TransactionAcceptedSettlementCompleted, domain.TransactionAcceptedCreditSettlement:
		return true
	}
	return false
}

func (a *paymentAdapter) IsPartiallyAuthorised(status string) bool {
	return domain.TransactionStatus(status) == domain.TransactionPartiallyAccepted
}

func (a *paymentAdapter) ValidStatus() string {
	if a.cancellation {
		return string(domain.TransactionCancelled)
	}
	return string(domain.TransactionAcceptedSettlementProcess)
}

// A failed cancellation leaves the payment as it was.
func (a *paymentAdapter) RejectedStatus() string {
	if a.cancellation {
		return ""
	}
	return string(domain.TransactionRejected)
}

func (a *paymentAdapter) UpdateObjectStatus(ctx context.Context, id, status string) error {
	return a.store.Payments().UpdateTransactionStatus(ctx, id, domain.TransactionStatus(status))
}

func (a *paymentAdapter) UpdateMultilevelFlag(ctx context.Context, id string, required bool) error {
	return a.store.Payments().UpdateMultilevelScaRequired(ctx, id, required)
}

func (a *paymentAdapter) AddPsu(ctx context.Context, id string, psu domain.PsuIdData) error {
	return a.store.Payments().AddPsu(ctx, id, psu)
}

func (a *paymentAdapter) ErrorTypeFor(status int) domain.ErrorType {
	return errorType(domain.ServicePIS, status)
}

func (a *paymentAdapter) TerminateSuperseded(context.Context, domain.Subject) error { return nil }
