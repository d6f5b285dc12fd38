package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/aussiebroadwan/xs2a/internal/xs2a/domain"
	"github.com/aussiebroadwan/xs2a/internal/xs2a/service"
	"github.com/aussiebroadwan/xs2a/pkg/httpx"
)

// AuthorisationsHandler drives the authorisations of one kind of business
// object. The object token is the {id} path value.
type AuthorisationsHandler struct {
	AuthorisationService *service.AuthorisationService
	Type                 domain.AuthorisationType
}

func (h *AuthorisationsHandler) service() domain.ServiceType {
	return service.ServiceFor(h.Type)
}

// HandleStart handles POST .../{id}/authorisations.
func (h *AuthorisationsHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	resp, err := h.AuthorisationService.StartAuthorisation(ctx, h.Type,
		r.PathValue("id"),
		httpx.TppIDFromContext(ctx),
		psuFromHeaders(r),
		scaApproachFromHeaders(r),
	)
	if err != nil {
		writeError(w, err, h.service())
		return
	}

	href := r.URL.Path + "/" + resp.AuthorisationID
	links := nextStepLinks(href, resp.ScaStatus)
	links["scaStatus"] = Link{Href: href}

	w.Header().Set(headerLocation, href)
	w.Header().Set(headerAspspScaApproach, string(resp.ScaApproach))
	httpx.WriteJSON(w, http.StatusCreated, AuthorisationResponse{
		ScaStatus:       resp.ScaStatus,
		AuthorisationID: resp.AuthorisationID,
		Links:           links,
	})
}

// HandleList handles GET .../{id}/authorisations.
func (h *AuthorisationsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ids, err := h.AuthorisationService.ListAuthorisations(ctx, h.Type, r.PathValue("id"), httpx.TppIDFromContext(ctx))
	if err != nil {
		writeError(w, err, h.service())
		return
	}
	httpx.WriteJSON(w, http.StatusOK, AuthorisationsResponse{AuthorisationIDs: ids})
}

// HandleStatus handles GET .../{id}/authorisations/{authorisationId}.
func (h *AuthorisationsHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status, err := h.AuthorisationService.GetScaStatus(ctx, h.Type,
		r.PathValue("id"),
		httpx.TppIDFromContext(ctx),
		r.PathValue("authorisationId"),
	)
	if err != nil {
		writeError(w, err, h.service())
		return
	}
	httpx.WriteJSON(w, http.StatusOK, ScaStatusResponse{ScaStatus: status})
}

// HandleUpdate handles PUT .../{id}/authorisations/{authorisationId}. The
// body decides the step: psuData for the password, authenticationMethodId
// for method selection, scaAuthenticationData for the OTP, and an empty
// body for PSU identification.
func (h *AuthorisationsHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body UpdatePsuDataRequest
	if err := decodeJSON(r, &body); err != nil && !errors.Is(err, io.EOF) {
		writeFormatError(w, h.service(), "invalid JSON in request body")
		return
	}

	req := domain.UpdatePsuDataRequest{
		BusinessObjectID:       r.PathValue("id"),
		AuthorisationID:        r.PathValue("authorisationId"),
		TppID:                  httpx.TppIDFromContext(ctx),
		Psu:                    psuFromHeaders(r),
		AuthenticationMethodID: body.AuthenticationMethodID,
		ScaAuthenticationData:  body.ScaAuthenticationData,
	}
	if body.PsuData != nil {
		req.Password = body.PsuData.Password
	}
	req.UpdatePsuIdentification = body.PsuData == nil &&
		req.AuthenticationMethodID == "" && req.ScaAuthenticationData == ""

	resp := h.AuthorisationService.UpdatePsuData(ctx, h.Type, req)
	if resp.HasError() {
		writeErrorHolder(w, resp.Error)
		return
	}

	if resp.ScaApproach != "" {
		w.Header().Set(headerAspspScaApproach, string(resp.ScaApproach))
	}
	links := nextStepLinks(r.URL.Path, resp.ScaStatus)
	if resp.ScaApproach == domain.ScaApproachDecoupled && !resp.ScaStatus.IsFinalised() {
		// the PSU confirms on their device; the TPP polls the status
		links["scaStatus"] = Link{Href: r.URL.Path}
	}
	httpx.WriteJSON(w, http.StatusOK, AuthorisationResponse{
		ScaStatus:       resp.ScaStatus,
		AuthorisationID: resp.AuthorisationID,
		ScaMethods:      resp.AvailableMethods,
		ChosenScaMethod: resp.ChosenMethod,
		ChallengeData:   resp.ChallengeData,
		PsuMessage:      resp.PsuMessage,
		Links:           links,
	})
}

// HandleObjectStatus handles GET .../{id}/status for the object itself.
func (h *AuthorisationsHandler) HandleObjectStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status, err := h.AuthorisationService.ObjectStatus(ctx, h.Type, r.PathValue("id"), httpx.TppIDFromContext(ctx))
	if err != nil {
		writeError(w, err, h.service())
		return
	}

	key := "transactionStatus"
	if h.Type == domain.AuthorisationAIS || h.Type == domain.AuthorisationPIIS {
		key = "consentStatus"
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{key: status})
}
