package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/aussiebroadwan/xs2a/internal/xs2a/domain"
	"github.com/aussiebroadwan/xs2a/internal/xs2a/service"
	"github.com/aussiebroadwan/xs2a/pkg/httpx"
	"github.com/aussiebroadwan/xs2a/pkg/slogx"
)

const dateLayout = "2006-01-02"

// ConsentsHandler creates AIS and PIIS consents.
type ConsentsHandler struct {
	ConsentService *service.ConsentService
}

// HandleCreate handles POST /v1/consents.
func (h *ConsentsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var body ConsentRequest
	if err := decodeJSON(r, &body); err != nil {
		writeFormatError(w, domain.ServiceAIS, "invalid JSON in request body")
		return
	}

	var validUntil time.Time
	if body.ValidUntil != "" {
		t, err := time.Parse(dateLayout, body.ValidUntil)
		if err != nil {
			writeFormatError(w, domain.ServiceAIS, "validUntil must be a date")
			return
		}
		validUntil = t
	}

	h.create(w, r, domain.CreateConsentRequest{
		Type:            domain.ConsentTypeAIS,
		Access:          body.Access,
		Recurring:       body.RecurringIndicator,
		FrequencyPerDay: body.FrequencyPerDay,
		ValidUntil:      validUntil,
	}, "/v1/consents/")
}

// HandleCreateFundsConfirmation handles POST /v1/funds-confirmation-consents.
func (h *ConsentsHandler) HandleCreateFundsConfirmation(w http.ResponseWriter, r *http.Request) {
	var body FundsConfirmationConsentRequest
	if err := decodeJSON(r, &body); err != nil {
		writeFormatError(w, domain.ServicePIIS, "invalid JSON in request body")
		return
	}

	var accounts []string
	if body.Account.IBAN != "" {
		accounts = []string{body.Account.IBAN}
	}
	h.create(w, r, domain.CreateConsentRequest{
		Type:   domain.ConsentTypePIIS,
		Access: domain.AccountAccess{Accounts: accounts},
	}, "/v1/funds-confirmation-consents/")
}

func (h *ConsentsHandler) create(w http.ResponseWriter, r *http.Request, req domain.CreateConsentRequest, basePath string) {
	ctx := r.Context()

	req.TppID = httpx.TppIDFromContext(ctx)
	req.Psu = psuFromHeaders(r)
	req.ScaApproach = scaApproachFromHeaders(r)
	req.ExplicitAuthorisation = explicitAuthorisationPreferred(r)
	req.XRequestID = slogx.RequestIDFromContext(ctx)

	resp, err := h.ConsentService.CreateConsent(ctx, req)
	if err != nil {
		writeError(w, err, service.ServiceFor(req.Type.AuthorisationType()))
		return
	}

	base := basePath + resp.ConsentID
	w.Header().Set(headerLocation, base)
	w.Header().Set(headerAspspScaApproach, string(resp.ScaApproach))
	httpx.WriteJSON(w, http.StatusCreated, ConsentResponse{
		ConsentStatus: resp.ConsentStatus,
		ConsentID:     resp.ConsentID,
		ScaStatus:     resp.ScaStatus,
		Links:         resourceLinks(base, resp.AuthorisationID, resp.ScaStatus),
	})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	return dec.Decode(v)
}
