package service

import (
	"context"
	"log/slog"

	"github.com/aussiebroadwan/xs2a/internal/xs2a/domain"
	"github.com/aussiebroadwan/xs2a/internal/xs2a/metrics"
	"github.com/aussiebroadwan/xs2a/internal/xs2a/spi"
	"github.com/aussiebroadwan/xs2a/internal/xs2a/store"
	"github.com/aussiebroadwan/xs2a/pkg/slogx"
)

// Dispatcher is the SCA state machine. It is written once against Adapter;
// the current SCA status selects the stage that handles an update.
//
// Side effects are persisted before Apply returns. Only a
// PSU_CREDENTIALS_INVALID outcome marks an authorisation failed; every other
// bank error leaves the stored state as it was so the stage can be retried.
type Dispatcher struct {
	Store   store.Store
	Metrics *metrics.Metrics
}

type stage func(ctx context.Context, sc *stageContext) domain.UpdatePsuDataResponse

// stageContext is the state of one Apply call. auth is updated in place as
// the stage makes progress.
type stageContext struct {
	d       *Dispatcher
	adapter Adapter
	subject domain.Subject
	auth    domain.Authorisation
	req     domain.UpdatePsuDataRequest
	logger  *slog.Logger
}

func (d *Dispatcher) stageFor(status domain.ScaStatus) (stage, bool) {
	switch status {
	case domain.ScaStatusReceived, domain.ScaStatusPsuIdentified:
		return receivedStage, true
	case domain.ScaStatusPsuAuthenticated:
		return psuAuthenticatedStage, true
	case domain.ScaStatusScaMethodSelected:
		return scaMethodSelectedStage, true
	case domain.ScaStatusFinalised:
		return finalisedStage, true
	}
	return nil, false
}

// Apply runs one update against an authorisation of subject. The caller has
// resolved subject through the adapter and checked that the TPP owns it.
func (d *Dispatcher) Apply(ctx context.Context, a Adapter, subject domain.Subject, auth domain.Authorisation, req domain.UpdatePsuDataRequest) domain.UpdatePsuDataResponse {
	sc := d.newStageContext(ctx, a, subject, auth, req)
	return d.observe(sc, auth.ScaStatus, d.apply(ctx, sc))
}

// CheckDecoupled asks the bank for the outcome of a decoupled SCA and
// finalises or fails the authorisation accordingly. An authorisation that is
// not waiting for the PSU's device is answered as it stands.
func (d *Dispatcher) CheckDecoupled(ctx context.Context, a Adapter, subject domain.Subject, auth domain.Authorisation) domain.UpdatePsuDataResponse {
	sc := d.newStageContext(ctx, a, subject, auth, domain.UpdatePsuDataRequest{AuthorisationID: auth.ID})
	return d.observe(sc, auth.ScaStatus, d.checkDecoupled(ctx, sc))
}

func (d *Dispatcher) newStageContext(ctx context.Context, a Adapter, subject domain.Subject, auth domain.Authorisation, req domain.UpdatePsuDataRequest) *stageContext {
	return &stageContext{
		d:       d,
		adapter: a,
		subject: subject,
		auth:    auth,
		req:     req,
		logger: slogx.FromContext(ctx).With(
			"authorisation_id", auth.ID,
			"authorisation_type", string(a.Type()),
			"sca_status", string(auth.ScaStatus),
		),
	}
}

func (d *Dispatcher) observe(sc *stageContext, from domain.ScaStatus, resp domain.UpdatePsuDataResponse) domain.UpdatePsuDataResponse {
	d.Metrics.ObserveTransition(string(sc.adapter.Type()), string(from), string(resp.ScaStatus))

	if resp.HasError() {
		sc.logger.Info("authorisation update rejected", "to", string(resp.ScaStatus), "code", string(resp.Error.Code()))
	} else if resp.ScaStatus != from {
		sc.logger.Info("authorisation updated", "to", string(resp.ScaStatus))
	}
	return resp
}

func (d *Dispatcher) apply(ctx context.Context, sc *stageContext) domain.UpdatePsuDataResponse {
	if sc.auth.ParentID != sc.subject.ID || sc.auth.Type != sc.adapter.Type() {
		return sc.reject(validationError(sc.adapter, domain.CodeResourceUnknown, "authorisation does not belong to the resource"))
	}

	run, ok := d.stageFor(sc.auth.ScaStatus)
	if !ok {
		return sc.reject(validationError(sc.adapter, domain.CodeStatusInvalid, "authorisation is "+string(sc.auth.ScaStatus)))
	}

	// A finalised authorisation answers the same way whatever the object
	// did afterwards.
	if sc.auth.ScaStatus != domain.ScaStatusFinalised && sc.adapter.IsClosed(sc.subject.Status) {
		return sc.reject(validationError(sc.adapter, domain.CodeStatusInvalid, "resource is "+sc.subject.Status))
	}
	return run(ctx, sc)
}

func (d *Dispatcher) checkDecoupled(ctx context.Context, sc *stageContext) domain.UpdatePsuDataResponse {
	if sc.auth.ParentID != sc.subject.ID || sc.auth.Type != sc.adapter.Type() {
		return sc.reject(validationError(sc.adapter, domain.CodeResourceUnknown, "authorisation does not belong to the resource"))
	}
	if !sc.auth.AwaitsDecoupledConfirmation() {
		return sc.respond()
	}
	if sc.adapter.IsClosed(sc.subject.Status) {
		return sc.reject(validationError(sc.adapter, domain.CodeStatusInvalid, "resource is "+sc.subject.Status))
	}
	return checkDecoupled(ctx, sc)
}

func (sc *stageContext) spiContext(ctx context.Context, psu domain.PsuIdData) spi.Context {
	return spi.Context{
		Psu:               psu,
		TppID:             sc.subject.TppID,
		XRequestID:        slogx.RequestIDFromContext(ctx),
		InternalRequestID: sc.subject.InternalRequestID,
	}
}

// respond describes the authorisation as it currently stands.
func (sc *stageContext) respond() domain.UpdatePsuDataResponse {
	return domain.UpdatePsuDataResponse{
		ScaStatus:        sc.auth.ScaStatus,
		BusinessObjectID: sc.req.BusinessObjectID,
		AuthorisationID:  sc.auth.ID,
		Psu:              sc.auth.Psu,
		ScaApproach:      sc.auth.ScaApproach,
	}
}

// reject answers with err and leaves the stored state untouched.
func (sc *stageContext) reject(err *domain.ErrorHolder) domain.UpdatePsuDataResponse {
	resp := sc.respond()
	resp.Error = err
	return resp
}

// technical logs an infrastructure failure and reports it.
func (sc *stageContext) technical(msg string, err error) domain.UpdatePsuDataResponse {
	sc.logger.Error(msg, "error", err)
	return sc.reject(domain.TechnicalError(sc.adapter.Service()))
}

// markFailed persists the failed status and answers with err.
func (sc *stageContext) markFailed(ctx context.Context, err *domain.ErrorHolder) domain.UpdatePsuDataResponse {
	if werr := sc.d.Store.Authorisations().UpdateScaStatus(ctx, sc.auth.ID, domain.ScaStatusFailed); werr != nil {
		return sc.technical("failed to mark authorisation failed", werr)
	}
	sc.auth.ScaStatus = domain.ScaStatusFailed
	return sc.reject(err)
}

// spiFailure handles an error returned by an SPI call.
func (sc *stageContext) spiFailure(ctx context.Context, call string, err error) domain.UpdatePsuDataResponse {
	holder := normaliseSpiError(sc.adapter, err)
	if holder.Kind == domain.ErrorKindTechnical {
		sc.logger.Error("spi call failed", "call", call, "error", err)
		return sc.reject(holder)
	}
	if holder.HasCode(domain.CodePsuCredentialsInvalid) {
		return sc.markFailed(ctx, holder)
	}
	return sc.reject(holder)
}

// save persists the mutable authorisation fields.
func (sc *stageContext) save(ctx context.Context) error {
	return sc.d.Store.Authorisations().UpdateAuthorisation(ctx, sc.auth)
}

func (sc *stageContext) timeSpi(call string) func() {
	return sc.d.Metrics.TimeSpiCall(call)
}
