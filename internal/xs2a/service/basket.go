package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/xs2a/internal/xs2a/domain"
	"github.com/aussiebroadwan/xs2a/internal/xs2a/metrics"
	"github.com/aussiebroadwan/xs2a/internal/xs2a/securid"
	"github.com/aussiebroadwan/xs2a/internal/xs2a/spi"
	"github.com/aussiebroadwan/xs2a/internal/xs2a/store"
	"github.com/aussiebroadwan/xs2a/pkg/idx"
	"github.com/aussiebroadwan/xs2a/pkg/slogx"
	"github.com/google/uuid"
)

// BasketEntries are the objects a basket request resolved to.
type BasketEntries struct {
	Consents []domain.Consent
	Payments []domain.Payment
}

// BasketValidator decides whether a set of objects may be signed together.
type BasketValidator interface {
	ValidateBasket(ctx context.Context, tppID string, entries BasketEntries) *domain.ErrorHolder
}

// BasketService groups existing consents and payments into one signing
// basket with a joint SCA session.
type BasketService struct {
	Store     store.Store
	IDs       *securid.Translator
	Bank      spi.SigningBaskets
	Validator BasketValidator
	Metrics   *metrics.Metrics
}

// CreateSigningBasket resolves the referenced objects, stores the basket and
// asks the bank to initiate it. A rejected initiation leaves the basket in
// RJCT. On success the basket's first authorisation is opened so the TPP can
// drive it through the regular authorisation endpoints.
func (s *BasketService) CreateSigningBasket(ctx context.Context, req domain.CreateSigningBasketRequest) (domain.CreateSigningBasketResponse, error) {
	logger := slogx.FromContext(ctx)

	consentIDs, ok := s.IDs.DecryptAll(req.ConsentIDs)
	if !ok {
		return domain.CreateSigningBasketResponse{}, domain.TechnicalError(domain.ServiceSB)
	}
	paymentIDs, ok := s.IDs.DecryptAll(req.PaymentIDs)
	if !ok {
		return domain.CreateSigningBasketResponse{}, domain.TechnicalError(domain.ServiceSB)
	}

	entries, err := s.load(ctx, consentIDs, paymentIDs)
	if err != nil {
		return domain.CreateSigningBasketResponse{}, err
	}
	if herr := s.Validator.ValidateBasket(ctx, req.TppID, entries); herr != nil {
		return domain.CreateSigningBasketResponse{}, herr
	}

	approach := req.ScaApproach
	if approach == "" {
		approach = domain.ScaApproachEmbedded
	}

	now := time.Now().UTC()
	basket := domain.SigningBasket{
		ID:                idx.New().String(),
		TransactionStatus: domain.TransactionReceived,
		TppID:             req.TppID,
		ConsentIDs:        consentIDs,
		PaymentIDs:        paymentIDs,
		InternalRequestID: uuid.NewString(),
		CreatedAt:         now,
		StatusChangedAt:   now,
	}
	if !req.Psu.IsEmpty() {
		psu := req.Psu
		psu.PsuIPAddress = ""
		basket.Psus = []domain.PsuIdData{psu}
	}

	token, ok := s.IDs.Encrypt(basket.ID)
	if !ok {
		return domain.CreateSigningBasketResponse{}, domain.TechnicalError(domain.ServiceSB)
	}

	if err := s.Store.SigningBaskets().CreateSigningBasket(ctx, basket); err != nil {
		logger.Error("failed to create signing basket", "error", err)
		return domain.CreateSigningBasketResponse{}, domain.TechnicalError(domain.ServiceSB)
	}

	sctx := spi.Context{
		Psu:               req.Psu,
		TppID:             req.TppID,
		XRequestID:        req.XRequestID,
		InternalRequestID: basket.InternalRequestID,
	}
	if sctx.XRequestID == "" {
		sctx.XRequestID = slogx.RequestIDFromContext(ctx)
	}
	done := s.Metrics.TimeSpiCall("initiateSigningBasket")
	res, err := s.Bank.InitiateSigningBasket(ctx, sctx, basket)
	done()
	if err != nil {
		if uerr := s.Store.SigningBaskets().UpdateTransactionStatus(ctx, basket.ID, domain.TransactionRejected); uerr != nil {
			logger.Error("failed to reject signing basket", "basket_id", basket.ID, "error", uerr)
		}
		return domain.CreateSigningBasketResponse{}, basketSpiError(ctx, err)
	}

	if res.MultilevelScaRequired {
		if err := s.Store.SigningBaskets().UpdateMultilevelScaRequired(ctx, basket.ID, true); err != nil {
			logger.Error("failed to flag multilevel signing basket", "error", err)
			return domain.CreateSigningBasketResponse{}, domain.TechnicalError(domain.ServiceSB)
		}
	}
	status := basket.TransactionStatus
	if res.TransactionStatus != "" && res.TransactionStatus != status {
		status = res.TransactionStatus
		if err := s.Store.SigningBaskets().UpdateTransactionStatus(ctx, basket.ID, status); err != nil {
			logger.Error("failed to update signing basket status", "error", err)
			return domain.CreateSigningBasketResponse{}, domain.TechnicalError(domain.ServiceSB)
		}
	}

	auth := newAuthorisation(basket.ID, domain.AuthorisationSigningBasket, req.Psu, approach, now)
	auth.AvailableMethods = res.AvailableMethods
	if err := s.Store.Authorisations().CreateAuthorisation(ctx, auth); err != nil {
		logger.Error("failed to create signing basket authorisation", "error", err)
		return domain.CreateSigningBasketResponse{}, domain.TechnicalError(domain.ServiceSB)
	}

	logger.Info("signing basket created",
		"basket_id", basket.ID,
		"consents", len(consentIDs),
		"payments", len(paymentIDs),
		"multilevel", res.MultilevelScaRequired,
	)

	return domain.CreateSigningBasketResponse{
		BasketID:              token,
		TransactionStatus:     status,
		MultilevelScaRequired: res.MultilevelScaRequired,
		AuthorisationID:       auth.ID,
		ScaStatus:             auth.ScaStatus,
		ScaApproach:           auth.ScaApproach,
		AvailableMethods:      res.AvailableMethods,
		ChosenMethod:          res.ChosenMethod,
		ChallengeData:         res.ChallengeData,
		PsuMessage:            res.PsuMessage,
		NotificationModes:     res.NotificationModes,
	}, nil
}

// load reads every referenced object. A missing object is a client error.
func (s *BasketService) load(ctx context.Context, consentIDs, paymentIDs []string) (BasketEntries, error) {
	var entries BasketEntries
	for _, id := range consentIDs {
		c, err := s.Store.Consents().GetConsentByID(ctx, id)
		if err != nil {
			return BasketEntries{}, basketLoadError(ctx, err)
		}
		entries.Consents = append(entries.Consents, c)
	}
	for _, id := range paymentIDs {
		p, err := s.Store.Payments().GetPaymentByID(ctx, id)
		if err != nil {
			return BasketEntries{}, basketLoadError(ctx, err)
		}
		entries.Payments = append(entries.Payments, p)
	}
	return entries, nil
}

func basketLoadError(ctx context.Context, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return domain.ValidationError(domain.ServiceSB, domain.CodeResourceUnknown, "referenced resource not found")
	}
	slogx.FromContext(ctx).Error("failed to load signing basket entry", "error", err)
	return domain.TechnicalError(domain.ServiceSB)
}

func basketSpiError(ctx context.Context, err error) *domain.ErrorHolder {
	if e, ok := spi.AsError(err); ok {
		status := e.HTTPStatus
		if status == 0 {
			status = e.Code.HTTPStatus()
		}
		return domain.NewError(domain.ErrorKindBackend, errorType(domain.ServiceSB, status), e.Code, e.Text)
	}
	slogx.FromContext(ctx).Error("initiate signing basket failed", "error", err)
	return domain.TechnicalError(domain.ServiceSB)
}

// DefaultBasketValidator accepts a non-empty set of unauthorised objects of
// one TPP that are not part of another open basket.
type DefaultBasketValidator struct {
	Store      store.Store
	MaxEntries int
}

func (v *DefaultBasketValidator) ValidateBasket(ctx context.Context, tppID string, entries BasketEntries) *domain.ErrorHolder {
	n := len(entries.Consents) + len(entries.Payments)
	if n == 0 {
		return domain.ValidationError(domain.ServiceSB, domain.CodeFormatError, "basket is empty")
	}
	if v.MaxEntries > 0 && n > v.MaxEntries {
		return domain.ValidationError(domain.ServiceSB, domain.CodeFormatError,
			fmt.Sprintf("basket holds %d entries, at most %d allowed", n, v.MaxEntries))
	}

	seen := make(map[string]bool, n)
	for _, c := range entries.Consents {
		if herr := v.checkEntry(ctx, seen, tppID, c.ID, c.TppID, c.Status == domain.ConsentReceived); herr != nil {
			return herr
		}
	}
	for _, p := range entries.Payments {
		if herr := v.checkEntry(ctx, seen, tppID, p.ID, p.TppID, p.TransactionStatus == domain.TransactionReceived); herr != nil {
			return herr
		}
	}
	return nil
}

func (v *DefaultBasketValidator) checkEntry(ctx context.Context, seen map[string]bool, tppID, id, ownerID string, unauthorised bool) *domain.ErrorHolder {
	if seen[id] {
		return domain.ValidationError(domain.ServiceSB, domain.CodeReferenceMixInvalid, "resource referenced twice")
	}
	seen[id] = true

	if ownerID != tppID {
		return domain.ValidationError(domain.ServiceSB, domain.CodeResourceUnknown, "referenced resource not found")
	}
	if !unauthorised {
		return domain.ValidationError(domain.ServiceSB, domain.CodeReferenceStatusInvalid, "referenced resource is already authorised or final")
	}

	baskets, err := v.Store.SigningBaskets().FindBasketsReferencing(ctx, id)
	if err != nil {
		slogx.FromContext(ctx).Error("failed to look up signing baskets", "error", err)
		return domain.TechnicalError(domain.ServiceSB)
	}
	for _, b := range baskets {
		if !b.TransactionStatus.IsFinalised() {
			return domain.ValidationError(domain.ServiceSB, domain.CodeReferenceStatusInvalid, "referenced resource is part of an open basket")
		}
	}
	return nil
}
