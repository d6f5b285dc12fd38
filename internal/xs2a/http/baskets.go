package http

import (
	"net/http"

	"github.com/aussiebroadwan/xs2a/internal/xs2a/domain"
	"github.com/aussiebroadwan/xs2a/internal/xs2a/service"
	"github.com/aussiebroadwan/xs2a/pkg/httpx"
	"github.com/aussiebroadwan/xs2a/pkg/slogx"
)

// BasketsHandler creates signing baskets.
type BasketsHandler struct {
	BasketService *service.BasketService
}

// HandleCreate handles POST /v1/signing-baskets.
func (h *BasketsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body SigningBasketRequest
	if err := decodeJSON(r, &body); err != nil {
		writeFormatError(w, domain.ServiceSB, "invalid JSON in request body")
		return
	}

	resp, err := h.BasketService.CreateSigningBasket(ctx, domain.CreateSigningBasketRequest{
		ConsentIDs:  body.ConsentIDs,
		PaymentIDs:  body.PaymentIDs,
		Psu:         psuFromHeaders(r),
		TppID:       httpx.TppIDFromContext(ctx),
		ScaApproach: scaApproachFromHeaders(r),
		XRequestID:  slogx.RequestIDFromContext(ctx),
	})
	if err != nil {
		writeError(w, err, domain.ServiceSB)
		return
	}

	base := "/v1/signing-baskets/" + resp.BasketID
	w.Header().Set(headerLocation, base)
	if resp.ScaApproach != "" {
		w.Header().Set(headerAspspScaApproach, string(resp.ScaApproach))
	}
	httpx.WriteJSON(w, http.StatusCreated, SigningBasketResponse{
		TransactionStatus:     resp.TransactionStatus,
		BasketID:              resp.BasketID,
		MultilevelScaRequired: resp.MultilevelScaRequired,
		ScaStatus:             resp.ScaStatus,
		ScaMethods:            resp.AvailableMethods,
		ChosenScaMethod:       resp.ChosenMethod,
		ChallengeData:         resp.ChallengeData,
		PsuMessage:            resp.PsuMessage,
		Links:                 resourceLinks(base, resp.AuthorisationID, resp.ScaStatus),
	})
}
