package service

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/xs2a/internal/xs2a/domain"
	"github.com/aussiebroadwan/xs2a/internal/xs2a/securid"
	"github.com/aussiebroadwan/xs2a/internal/xs2a/store"
	"github.com/aussiebroadwan/xs2a/pkg/slogx"
	"github.com/google/uuid"
)

// AuthorisationService is the entry point for starting and driving PSU
// authorisations on any kind of business object. Object ids are the
// encrypted tokens the TPP holds.
type AuthorisationService struct {
	Store      store.Store
	IDs        *securid.Translator
	Adapters   Adapters
	Dispatcher *Dispatcher
}

// resolve decrypts token and loads the object of kind t owned by tppID.
func (s *AuthorisationService) resolve(ctx context.Context, t domain.AuthorisationType, token, tppID string) (Adapter, domain.Subject, error) {
	a, ok := s.Adapters.Get(t)
	if !ok {
		return nil, domain.Subject{}, domain.ValidationError(ServiceFor(t), domain.CodeServiceInvalid, string(t))
	}

	id, ok := s.IDs.Decrypt(token)
	if !ok {
		return nil, domain.Subject{}, domain.TechnicalError(a.Service())
	}

	subject, err := a.Lookup(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, domain.Subject{}, validationError(a, domain.CodeResourceUnknown, "")
	}
	if err != nil {
		slogx.FromContext(ctx).Error("failed to load resource", "type", string(t), "error", err)
		return nil, domain.Subject{}, domain.TechnicalError(a.Service())
	}

	// another TPP's object looks the same as a missing one
	if subject.TppID != tppID {
		return nil, domain.Subject{}, validationError(a, domain.CodeResourceUnknown, "")
	}
	return a, subject, nil
}

// StartAuthorisation opens a new authorisation on the object. Without
// multilevel SCA only one open authorisation may exist; with it, one per
// distinct PSU.
func (s *AuthorisationService) StartAuthorisation(ctx context.Context, t domain.AuthorisationType, token, tppID string, psu domain.PsuIdData, approach domain.ScaApproach) (domain.StartAuthorisationResponse, error) {
	a, subject, err := s.resolve(ctx, t, token, tppID)
	if err != nil {
		return domain.StartAuthorisationResponse{}, err
	}

	if approach == "" {
		approach = domain.ScaApproachEmbedded
	}
	if !approach.Valid() {
		return domain.StartAuthorisationResponse{}, validationError(a, domain.CodeFormatError, "unsupported sca approach "+string(approach))
	}

	if a.IsClosed(subject.Status) {
		return domain.StartAuthorisationResponse{}, validationError(a, domain.CodeStatusInvalid, "resource is "+subject.Status)
	}

	existing, err := s.Store.Authorisations().ListAuthorisationsByParent(ctx, subject.ID, a.Type())
	if err != nil {
		slogx.FromContext(ctx).Error("failed to list authorisations", "error", err)
		return domain.StartAuthorisationResponse{}, domain.TechnicalError(a.Service())
	}
	if herr := checkOpenAuthorisations(a, subject, existing, psu); herr != nil {
		return domain.StartAuthorisationResponse{}, herr
	}

	auth := newAuthorisation(subject.ID, a.Type(), psu, approach, time.Now())
	if err := s.Store.Authorisations().CreateAuthorisation(ctx, auth); err != nil {
		slogx.FromContext(ctx).Error("failed to create authorisation", "error", err)
		return domain.StartAuthorisationResponse{}, domain.TechnicalError(a.Service())
	}
	if !psu.IsEmpty() {
		if err := a.AddPsu(ctx, subject.ID, psu); err != nil {
			slogx.FromContext(ctx).Error("failed to add psu to resource", "error", err)
			return domain.StartAuthorisationResponse{}, domain.TechnicalError(a.Service())
		}
	}

	slogx.FromContext(ctx).Info("authorisation started",
		"authorisation_id", auth.ID, "authorisation_type", string(auth.Type), "sca_status", string(auth.ScaStatus))

	return domain.StartAuthorisationResponse{
		AuthorisationID: auth.ID,
		ScaStatus:       auth.ScaStatus,
		ScaApproach:     auth.ScaApproach,
		Psu:             auth.Psu,
	}, nil
}

func checkOpenAuthorisations(a Adapter, subject domain.Subject, existing []domain.Authorisation, psu domain.PsuIdData) *domain.ErrorHolder {
	var open []domain.Authorisation
	for _, e := range existing {
		if !e.ScaStatus.IsFinalised() {
			open = append(open, e)
		}
	}

	if !subject.MultilevelScaRequired {
		if len(open) > 0 {
			return validationError(a, domain.CodeStatusInvalid, "an authorisation is already in progress")
		}
		return nil
	}

	if psu.IsEmpty() {
		return validationError(a, domain.CodeFormatErrorNoPsu, "PSU-ID is required for multilevel SCA")
	}
	for _, e := range existing {
		if e.Psu.Equal(psu) && e.ScaStatus != domain.ScaStatusFailed {
			return validationError(a, domain.CodeStatusInvalid, "PSU already has an authorisation")
		}
	}
	return nil
}

// newAuthorisation starts in psuIdentified when the PSU is already known.
func newAuthorisation(parentID string, t domain.AuthorisationType, psu domain.PsuIdData, approach domain.ScaApproach, now time.Time) domain.Authorisation {
	status := domain.ScaStatusReceived
	if !psu.IsEmpty() {
		status = domain.ScaStatusPsuIdentified
	}
	return domain.Authorisation{
		ID:          uuid.NewString(),
		ParentID:    parentID,
		Type:        t,
		Psu:         psu,
		ScaStatus:   status,
		ScaApproach: approach,
		CreatedAt:   now.UTC(),
		UpdatedAt:   now.UTC(),
	}
}

// UpdatePsuData feeds one update into the state machine. Errors are carried
// in the response.
func (s *AuthorisationService) UpdatePsuData(ctx context.Context, t domain.AuthorisationType, req domain.UpdatePsuDataRequest) domain.UpdatePsuDataResponse {
	fail := func(err error) domain.UpdatePsuDataResponse {
		return domain.UpdatePsuDataResponse{
			BusinessObjectID: req.BusinessObjectID,
			AuthorisationID:  req.AuthorisationID,
			Error:            domain.AsErrorHolder(err, ServiceFor(t)),
		}
	}

	a, subject, err := s.resolve(ctx, t, req.BusinessObjectID, req.TppID)
	if err != nil {
		return fail(err)
	}

	auth, err := s.authorisationOf(ctx, a, subject, req.AuthorisationID)
	if err != nil {
		return fail(err)
	}
	return s.Dispatcher.Apply(ctx, a, subject, auth, req)
}

func (s *AuthorisationService) authorisationOf(ctx context.Context, a Adapter, subject domain.Subject, id string) (domain.Authorisation, error) {
	auth, err := s.Store.Authorisations().GetAuthorisationByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Authorisation{}, validationError(a, domain.CodeResourceUnknown, "authorisation not found")
	}
	if err != nil {
		slogx.FromContext(ctx).Error("failed to load authorisation", "error", err)
		return domain.Authorisation{}, domain.TechnicalError(a.Service())
	}
	if auth.ParentID != subject.ID || auth.Type != a.Type() {
		return domain.Authorisation{}, validationError(a, domain.CodeResourceUnknown, "authorisation not found")
	}
	return auth, nil
}

// GetScaStatus returns the current SCA status of one authorisation. An
// authorisation waiting for the PSU's device is checked with the bank first.
func (s *AuthorisationService) GetScaStatus(ctx context.Context, t domain.AuthorisationType, token, tppID, authorisationID string) (domain.ScaStatus, error) {
	a, subject, err := s.resolve(ctx, t, token, tppID)
	if err != nil {
		return "", err
	}
	auth, err := s.authorisationOf(ctx, a, subject, authorisationID)
	if err != nil {
		return "", err
	}

	// The TPP polls the status while the PSU confirms on their device.
	if auth.AwaitsDecoupledConfirmation() {
		resp := s.Dispatcher.CheckDecoupled(ctx, a, subject, auth)
		return resp.ScaStatus, nil
	}
	return auth.ScaStatus, nil
}

// ListAuthorisations returns the ids of every authorisation of kind t on
// the object, oldest first.
func (s *AuthorisationService) ListAuthorisations(ctx context.Context, t domain.AuthorisationType, token, tppID string) ([]string, error) {
	a, subject, err := s.resolve(ctx, t, token, tppID)
	if err != nil {
		return nil, err
	}
	auths, err := s.Store.Authorisations().ListAuthorisationsByParent(ctx, subject.ID, a.Type())
	if err != nil {
		slogx.FromContext(ctx).Error("failed to list authorisations", "error", err)
		return nil, domain.TechnicalError(a.Service())
	}

	ids := make([]string, 0, len(auths))
	for _, auth := range auths {
		ids = append(ids, auth.ID)
	}
	return ids, nil
}

// ObjectStatus returns the consent or transaction status of the object
// behind token.
func (s *AuthorisationService) ObjectStatus(ctx context.Context, t domain.AuthorisationType, token, tppID string) (string, error) {
	_, subject, err := s.resolve(ctx, t, token, tppID)
	if err != nil {
		return "", err
	}
	return subject.Status, nil
}
