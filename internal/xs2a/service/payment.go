package service

import (
	"context"
	"slices"
	"time"

	"github.com/aussiebroadwan/xs2a/internal/xs2a/domain"
	"github.com/aussiebroadwan/xs2a/internal/xs2a/securid"
	"github.com/aussiebroadwan/xs2a/internal/xs2a/store"
	"github.com/aussiebroadwan/xs2a/pkg/idx"
	"github.com/aussiebroadwan/xs2a/pkg/slogx"
	"github.com/google/uuid"
)

type PaymentService struct {
	Store store.Store
	IDs   *securid.Translator

	// Products lists the payment products the bank offers, e.g.
	// sepa-credit-transfers.
	Products []string
}

// InitiatePayment stores a payment in RCVD and, unless explicit
// authorisation is preferred, opens its first authorisation.
func (s *PaymentService) InitiatePayment(ctx context.Context, req domain.InitiatePaymentRequest) (domain.InitiatePaymentResponse, error) {
	if herr := s.validate(req); herr != nil {
		return domain.InitiatePaymentResponse{}, herr
	}

	approach := req.ScaApproach
	if approach == "" {
		approach = domain.ScaApproachEmbedded
	}

	now := time.Now().UTC()
	p := domain.Payment{
		ID:                    idx.New().String(),
		PaymentProduct:        req.PaymentProduct,
		PaymentType:           req.PaymentType,
		TransactionStatus:     domain.TransactionReceived,
		TppID:                 req.TppID,
		Amount:                req.Amount,
		Currency:              req.Currency,
		DebtorIBAN:            req.DebtorIBAN,
		CreditorIBAN:          req.CreditorIBAN,
		CreditorName:          req.CreditorName,
		RemittanceInformation: req.RemittanceInformation,
		InternalRequestID:     uuid.NewString(),
		CreatedAt:             now,
		StatusChangedAt:       now,
	}
	if !req.Psu.IsEmpty() {
		psu := req.Psu
		psu.PsuIPAddress = ""
		p.Psus = []domain.PsuIdData{psu}
	}

	token, ok := s.IDs.Encrypt(p.ID)
	if !ok {
		return domain.InitiatePaymentResponse{}, domain.TechnicalError(domain.ServicePIS)
	}

	var auth domain.Authorisation
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Payments().CreatePayment(ctx, p); err != nil {
			return err
		}
		if req.ExplicitAuthorisation {
			return nil
		}
		auth = newAuthorisation(p.ID, domain.AuthorisationPISCreation, req.Psu, approach, now)
		return tx.Authorisations().CreateAuthorisation(ctx, auth)
	})
	if err != nil {
		slogx.FromContext(ctx).Error("failed to create payment", "error", err)
		return domain.InitiatePaymentResponse{}, domain.TechnicalError(domain.ServicePIS)
	}

	slogx.FromContext(ctx).Info("payment initiated", "payment_id", p.ID, "product", p.PaymentProduct, "tpp_id", p.TppID)

	return domain.InitiatePaymentResponse{
		PaymentID:         token,
		TransactionStatus: p.TransactionStatus,
		AuthorisationID:   auth.ID,
		ScaStatus:         auth.ScaStatus,
		ScaApproach:       approach,
	}, nil
}

func (s *PaymentService) validate(req domain.InitiatePaymentRequest) *domain.ErrorHolder {
	if !slices.Contains(s.Products, req.PaymentProduct) {
		return domain.ValidationError(domain.ServicePIS, domain.CodeProductUnknown, req.PaymentProduct)
	}
	if !req.PaymentType.Valid() {
		return domain.ValidationError(domain.ServicePIS, domain.CodeServiceInvalid, string(req.PaymentType))
	}
	if req.Amount <= 0 || len(req.Currency) != 3 {
		return domain.ValidationError(domain.ServicePIS, domain.CodeFormatError, "instructedAmount is invalid")
	}
	if req.DebtorIBAN == "" || req.CreditorIBAN == "" {
		return domain.ValidationError(domain.ServicePIS, domain.CodeFormatError, "debtor and creditor accounts are required")
	}
	if req.ScaApproach != "" && !req.ScaApproach.Valid() {
		return domain.ValidationError(domain.ServicePIS, domain.CodeFormatError, "unsupported sca approach")
	}
	return nil
}
