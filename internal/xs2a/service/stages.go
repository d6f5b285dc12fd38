package service

import (
	"context"

	"github.com/aussiebroadwan/xs2a/internal/xs2a/domain"
	"github.com/aussiebroadwan/xs2a/internal/xs2a/spi"
)

// receivedStage handles received and psuIdentified authorisations: PSU
// identification or the password check.
func receivedStage(ctx context.Context, sc *stageContext) domain.UpdatePsuDataResponse {
	if sc.req.UpdatePsuIdentification {
		return identifyPsu(ctx, sc)
	}

	psu := sc.req.Psu
	if psu.IsEmpty() {
		psu = sc.auth.Psu
	}
	if psu.IsEmpty() {
		return sc.reject(validationError(sc.adapter, domain.CodeFormatErrorNoPsu, "PSU-ID is missing"))
	}
	if !sc.auth.Psu.IsEmpty() && !sc.auth.Psu.Equal(psu) {
		return sc.reject(validationError(sc.adapter, domain.CodePsuCredentialsInvalid, "PSU does not match the authorisation"))
	}
	if sc.req.Password == "" {
		return sc.reject(validationError(sc.adapter, domain.CodeFormatError, "password is missing"))
	}

	done := sc.timeSpi("authorisePsu")
	status, err := sc.adapter.AuthorisePsu(ctx, sc.spiContext(ctx, psu), sc.auth.ID, psu, sc.req.Password, sc.subject)
	done()
	if err != nil {
		return sc.spiFailure(ctx, "authorisePsu", err)
	}

	switch status {
	case spi.StatusAttemptFailure:
		return sc.reject(backendError(sc.adapter, domain.CodePsuCredentialsInvalid, "wrong credentials, retry allowed"))
	case spi.StatusFailure:
		return sc.markFailed(ctx, backendError(sc.adapter, domain.CodePsuCredentialsInvalid, ""))
	case spi.StatusSuccess:
	default:
		sc.logger.Error("unexpected authorisePsu status", "status", string(status))
		return sc.reject(domain.TechnicalError(sc.adapter.Service()))
	}

	if sc.auth.Psu.IsEmpty() {
		sc.auth.Psu = psu
		if err := sc.adapter.AddPsu(ctx, sc.subject.ID, psu); err != nil {
			return sc.technical("failed to add psu to resource", err)
		}
	}

	if sc.adapter.IsOneFactorAuthorisation(sc.subject) {
		if err := sc.adapter.UpdateObjectStatus(ctx, sc.subject.ID, sc.adapter.ValidStatus()); err != nil {
			return sc.technical("failed to update resource status", err)
		}
		sc.auth.ScaStatus = domain.ScaStatusFinalised
		if err := sc.save(ctx); err != nil {
			return sc.technical("failed to finalise authorisation", err)
		}
		return sc.respond()
	}

	if sc.auth.ScaApproach == domain.ScaApproachDecoupled {
		return decoupledFlow(ctx, sc, "", domain.ScaStatusPsuAuthenticated)
	}
	return scaMethodFanOut(ctx, sc)
}

func identifyPsu(ctx context.Context, sc *stageContext) domain.UpdatePsuDataResponse {
	if sc.req.Psu.PsuID == "" {
		resp := sc.reject(validationError(sc.adapter, domain.CodeFormatErrorNoPsu, "PSU-ID is missing"))
		resp.ScaStatus = domain.ScaStatusFailed
		return resp
	}
	if !sc.auth.Psu.IsEmpty() && !sc.auth.Psu.Equal(sc.req.Psu) {
		return sc.reject(validationError(sc.adapter, domain.CodePsuCredentialsInvalid, "PSU does not match the authorisation"))
	}

	sc.auth.Psu = sc.req.Psu
	sc.auth.ScaStatus = domain.ScaStatusPsuIdentified
	if err := sc.save(ctx); err != nil {
		return sc.technical("failed to store psu identification", err)
	}
	if err := sc.adapter.AddPsu(ctx, sc.subject.ID, sc.req.Psu); err != nil {
		return sc.technical("failed to add psu to resource", err)
	}
	return sc.respond()
}

// scaMethodFanOut asks the bank for the PSU's SCA methods. No method rejects
// the object, a single method is used right away, more are offered to the
// PSU.
func scaMethodFanOut(ctx context.Context, sc *stageContext) domain.UpdatePsuDataResponse {
	done := sc.timeSpi("requestAvailableScaMethods")
	methods, err := sc.adapter.RequestAvailableScaMethods(ctx, sc.spiContext(ctx, sc.auth.Psu), sc.subject)
	done()
	if err != nil {
		return sc.spiFailure(ctx, "requestAvailableScaMethods", err)
	}

	switch len(methods) {
	case 0:
		if rejected := sc.adapter.RejectedStatus(); rejected != "" {
			if err := sc.adapter.UpdateObjectStatus(ctx, sc.subject.ID, rejected); err != nil {
				return sc.technical("failed to reject resource", err)
			}
		}
		return sc.markFailed(ctx, backendError(sc.adapter, domain.CodeScaMethodUnknown, "no SCA method available"))

	case 1:
		sc.auth.AvailableMethods = methods
		if methods[0].Decoupled {
			return decoupledFlow(ctx, sc, methods[0].AuthenticationMethodID, domain.ScaStatusScaMethodSelected)
		}
		return embeddedFlow(ctx, sc, methods[0])

	default:
		sc.auth.AvailableMethods = methods
		sc.auth.ScaStatus = domain.ScaStatusPsuAuthenticated
		if err := sc.save(ctx); err != nil {
			return sc.technical("failed to store sca methods", err)
		}
		resp := sc.respond()
		resp.AvailableMethods = methods
		return resp
	}
}

// embeddedFlow sends an authorisation code through the chosen method.
func embeddedFlow(ctx context.Context, sc *stageContext, method domain.AuthenticationObject) domain.UpdatePsuDataResponse {
	done := sc.timeSpi("requestAuthorisationCode")
	res, err := sc.adapter.RequestAuthorisationCode(ctx, sc.spiContext(ctx, sc.auth.Psu), method.AuthenticationMethodID, sc.subject)
	done()
	if err != nil {
		return sc.spiFailure(ctx, "requestAuthorisationCode", err)
	}

	chosen := res.ChosenMethod
	if chosen.AuthenticationMethodID == "" {
		chosen = method
	}
	sc.auth.ChosenMethodID = chosen.AuthenticationMethodID
	sc.auth.ChallengeData = res.ChallengeData
	sc.auth.ScaStatus = domain.ScaStatusScaMethodSelected
	if err := sc.save(ctx); err != nil {
		return sc.technical("failed to store chosen sca method", err)
	}

	resp := sc.respond()
	resp.ChosenMethod = &chosen
	resp.ChallengeData = res.ChallengeData
	resp.PsuMessage = res.PsuMessage
	return resp
}

// decoupledFlow hands the SCA to the PSU's separate device. An embedded
// authorisation is switched to decoupled here; the approach never goes back.
// With no methodID the bank picks the method, which is kept so the
// authorisation can be checked and completed later.
func decoupledFlow(ctx context.Context, sc *stageContext, methodID string, next domain.ScaStatus) domain.UpdatePsuDataResponse {
	done := sc.timeSpi("startScaDecoupled")
	res, err := sc.adapter.StartScaDecoupled(ctx, sc.spiContext(ctx, sc.auth.Psu), sc.auth.ID, methodID, sc.subject)
	done()
	if err != nil {
		return sc.spiFailure(ctx, "startScaDecoupled", err)
	}

	chosen, ok := sc.auth.FindMethod(methodID)
	if res.ChosenMethod.AuthenticationMethodID != "" {
		chosen, ok = res.ChosenMethod, true
	}
	if !ok {
		sc.logger.Error("bank started decoupled sca without a method", "method", methodID)
		return sc.reject(domain.TechnicalError(sc.adapter.Service()))
	}
	if _, known := sc.auth.FindMethod(chosen.AuthenticationMethodID); !known {
		sc.auth.AvailableMethods = append(sc.auth.AvailableMethods, chosen)
	}

	if sc.auth.ScaApproach == domain.ScaApproachEmbedded {
		sc.auth.ScaApproach = domain.ScaApproachDecoupled
	}
	sc.auth.ChosenMethodID = chosen.AuthenticationMethodID
	sc.auth.ScaStatus = next
	if err := sc.save(ctx); err != nil {
		return sc.technical("failed to store decoupled sca", err)
	}

	resp := sc.respond()
	resp.ChosenMethod = &chosen
	resp.PsuMessage = res.PsuMessage
	return resp
}

// checkDecoupled asks the bank whether the PSU answered the push. No answer
// yet leaves the authorisation as it is.
func checkDecoupled(ctx context.Context, sc *stageContext) domain.UpdatePsuDataResponse {
	done := sc.timeSpi("checkDecoupledSca")
	res, err := sc.adapter.CheckDecoupledSca(ctx, sc.spiContext(ctx, sc.auth.Psu), sc.auth.ID, sc.subject)
	done()
	if err != nil {
		return sc.spiFailure(ctx, "checkDecoupledSca", err)
	}

	switch res.Status {
	case spi.StatusPending, spi.StatusAttemptFailure:
		return sc.respond()
	case spi.StatusFailure:
		return sc.markFailed(ctx, backendError(sc.adapter, domain.CodePsuCredentialsInvalid, "SCA declined on the PSU device"))
	case spi.StatusSuccess:
	default:
		sc.logger.Error("unexpected checkDecoupledSca status", "status", string(res.Status))
		return sc.reject(domain.TechnicalError(sc.adapter.Service()))
	}
	return completeSca(ctx, sc, res)
}

// psuAuthenticatedStage handles the PSU's choice among several methods.
func psuAuthenticatedStage(ctx context.Context, sc *stageContext) domain.UpdatePsuDataResponse {
	if sc.req.AuthenticationMethodID == "" {
		return sc.reject(validationError(sc.adapter, domain.CodeFormatError, "authenticationMethodId is missing"))
	}
	method, ok := sc.auth.FindMethod(sc.req.AuthenticationMethodID)
	if !ok {
		return sc.reject(validationError(sc.adapter, domain.CodeScaMethodUnknown, sc.req.AuthenticationMethodID))
	}

	if method.Decoupled {
		return decoupledFlow(ctx, sc, method.AuthenticationMethodID, domain.ScaStatusScaMethodSelected)
	}
	return embeddedFlow(ctx, sc, method)
}

// scaMethodSelectedStage checks the SCA authentication data. A decoupled
// authorisation updated without data is checked with the bank instead.
func scaMethodSelectedStage(ctx context.Context, sc *stageContext) domain.UpdatePsuDataResponse {
	if sc.req.ScaAuthenticationData == "" && sc.auth.AwaitsDecoupledConfirmation() {
		return checkDecoupled(ctx, sc)
	}
	if sc.req.ScaAuthenticationData == "" {
		return sc.reject(validationError(sc.adapter, domain.CodeFormatError, "scaAuthenticationData is missing"))
	}

	v := spi.Verification{
		AuthorisationID:       sc.auth.ID,
		MethodID:              sc.auth.ChosenMethodID,
		ScaAuthenticationData: sc.req.ScaAuthenticationData,
		Psu:                   sc.auth.Psu,
	}
	done := sc.timeSpi("verifyScaAuthorisation")
	res, err := sc.adapter.VerifyScaAuthorisation(ctx, sc.spiContext(ctx, sc.auth.Psu), v, sc.subject)
	done()
	if err != nil {
		return sc.spiFailure(ctx, "verifyScaAuthorisation", err)
	}

	switch res.Status {
	case spi.StatusAttemptFailure:
		return sc.reject(backendError(sc.adapter, domain.CodeScaInvalid, "wrong authentication data, retry allowed"))
	case spi.StatusFailure:
		return sc.markFailed(ctx, backendError(sc.adapter, domain.CodePsuCredentialsInvalid, ""))
	case spi.StatusSuccess:
	default:
		sc.logger.Error("unexpected verifyScaAuthorisation status", "status", string(res.Status))
		return sc.reject(domain.TechnicalError(sc.adapter.Service()))
	}
	return completeSca(ctx, sc, res)
}

// completeSca applies a successful SCA: the object takes the status the bank
// reported and the authorisation is finalised.
func completeSca(ctx context.Context, sc *stageContext, res spi.VerificationResult) domain.UpdatePsuDataResponse {
	if sc.adapter.IsPartiallyAuthorised(res.ObjectStatus) && !sc.subject.MultilevelScaRequired {
		if err := sc.adapter.UpdateMultilevelFlag(ctx, sc.subject.ID, true); err != nil {
			return sc.technical("failed to flag multilevel sca", err)
		}
		sc.subject.MultilevelScaRequired = true
	}
	if res.ObjectStatus != "" && res.ObjectStatus != sc.subject.Status {
		if err := sc.adapter.UpdateObjectStatus(ctx, sc.subject.ID, res.ObjectStatus); err != nil {
			return sc.technical("failed to update resource status", err)
		}
		sc.subject.Status = res.ObjectStatus
	}

	sc.auth.ScaStatus = domain.ScaStatusFinalised
	if err := sc.d.Store.Authorisations().UpdateScaStatus(ctx, sc.auth.ID, domain.ScaStatusFinalised); err != nil {
		return sc.technical("failed to finalise authorisation", err)
	}

	if err := sc.adapter.TerminateSuperseded(ctx, sc.subject); err != nil {
		sc.logger.Error("failed to terminate superseded consents", "error", err)
	}
	return sc.respond()
}

// finalisedStage answers repeated updates without touching anything.
func finalisedStage(_ context.Context, sc *stageContext) domain.UpdatePsuDataResponse {
	return sc.respond()
}
