package service

import (
	"context"
	"time"

	"github.com/aussiebroadwan/xs2a/internal/xs2a/domain"
	"github.com/aussiebroadwan/xs2a/internal/xs2a/securid"
	"github.com/aussiebroadwan/xs2a/internal/xs2a/store"
	"github.com/aussiebroadwan/xs2a/pkg/idx"
	"github.com/aussiebroadwan/xs2a/pkg/slogx"
	"github.com/google/uuid"
)

type ConsentService struct {
	Store store.Store
	IDs   *securid.Translator

	// RequirePsuID rejects AIS consents created without PSU identification.
	RequirePsuID bool
}

// CreateConsent stores a new consent in received status. Unless the TPP
// prefers explicit authorisation, the first authorisation is opened in the
// same transaction.
func (s *ConsentService) CreateConsent(ctx context.Context, req domain.CreateConsentRequest) (domain.CreateConsentResponse, error) {
	service := ServiceFor(req.Type.AuthorisationType())
	if herr := s.validate(req, service); herr != nil {
		return domain.CreateConsentResponse{}, herr
	}

	approach := req.ScaApproach
	if approach == "" {
		approach = domain.ScaApproachEmbedded
	}

	now := time.Now().UTC()
	c := domain.Consent{
		ID:                idx.New().String(),
		Type:              req.Type,
		Status:            domain.ConsentReceived,
		TppID:             req.TppID,
		Recurring:         req.Recurring,
		FrequencyPerDay:   req.FrequencyPerDay,
		ValidUntil:        req.ValidUntil,
		Access:            req.Access,
		InternalRequestID: uuid.NewString(),
		CreatedAt:         now,
		StatusChangedAt:   now,
	}
	if !c.Recurring {
		c.FrequencyPerDay = 1
	}
	if !req.Psu.IsEmpty() {
		psu := req.Psu
		psu.PsuIPAddress = ""
		c.Psus = []domain.PsuIdData{psu}
	}

	token, ok := s.IDs.Encrypt(c.ID)
	if !ok {
		return domain.CreateConsentResponse{}, domain.TechnicalError(service)
	}

	var auth domain.Authorisation
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Consents().CreateConsent(ctx, c); err != nil {
			return err
		}
		if req.ExplicitAuthorisation {
			return nil
		}
		auth = newAuthorisation(c.ID, c.Type.AuthorisationType(), req.Psu, approach, now)
		return tx.Authorisations().CreateAuthorisation(ctx, auth)
	})
	if err != nil {
		slogx.FromContext(ctx).Error("failed to create consent", "error", err)
		return domain.CreateConsentResponse{}, domain.TechnicalError(service)
	}

	slogx.FromContext(ctx).Info("consent created", "consent_id", c.ID, "consent_type", string(c.Type), "tpp_id", c.TppID)

	return domain.CreateConsentResponse{
		ConsentID:       token,
		ConsentStatus:   c.Status,
		AuthorisationID: auth.ID,
		ScaStatus:       auth.ScaStatus,
		ScaApproach:     approach,
	}, nil
}

func (s *ConsentService) validate(req domain.CreateConsentRequest, service domain.ServiceType) *domain.ErrorHolder {
	switch req.Type {
	case domain.ConsentTypeAIS:
		if s.RequirePsuID && req.Psu.IsEmpty() {
			return domain.ValidationError(service, domain.CodeFormatErrorNoPsu, "PSU-ID is required")
		}
		a := req.Access
		if len(a.Accounts) == 0 && len(a.Balances) == 0 && len(a.Transactions) == 0 &&
			a.AvailableAccounts == "" && a.AllPsd2 == "" {
			return domain.ValidationError(service, domain.CodeFormatError, "access is empty")
		}
	case domain.ConsentTypePIIS:
		if len(req.Access.Accounts) != 1 {
			return domain.ValidationError(service, domain.CodeFormatError, "exactly one account is required")
		}
	default:
		return domain.ValidationError(service, domain.CodeServiceInvalid, string(req.Type))
	}

	if req.Recurring && req.FrequencyPerDay < 1 {
		return domain.ValidationError(service, domain.CodeFormatError, "frequencyPerDay must be at least 1")
	}
	if !req.ValidUntil.IsZero() && req.ValidUntil.Before(time.Now().Truncate(24*time.Hour)) {
		return domain.ValidationError(service, domain.CodeFormatError, "validUntil is in the past")
	}
	if req.ScaApproach != "" && !req.ScaApproach.Valid() {
		return domain.ValidationError(service, domain.CodeFormatError, "unsupported sca approach")
	}
	return nil
}
