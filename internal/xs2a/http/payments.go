package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/aussiebroadwan/xs2a/internal/xs2a/domain"
	"github.com/aussiebroadwan/xs2a/internal/xs2a/service"
	"github.com/aussiebroadwan/xs2a/pkg/httpx"
	"github.com/aussiebroadwan/xs2a/pkg/slogx"
)

var errAmount = errors.New("amount must be a positive decimal with at most two fraction digits")

// PaymentsHandler initiates payments.
type PaymentsHandler struct {
	PaymentService *service.PaymentService
}

// HandleInitiate handles POST /v1/{payment-service}/{product} for the given
// payment service.
func (h *PaymentsHandler) HandleInitiate(paymentType domain.PaymentType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var body PaymentRequest
		if err := decodeJSON(r, &body); err != nil {
			writeFormatError(w, domain.ServicePIS, "invalid JSON in request body")
			return
		}
		amount, err := parseMinorUnits(body.InstructedAmount.Amount)
		if err != nil {
			writeFormatError(w, domain.ServicePIS, err.Error())
			return
		}

		product := r.PathValue("product")
		resp, err := h.PaymentService.InitiatePayment(ctx, domain.InitiatePaymentRequest{
			PaymentProduct:        product,
			PaymentType:           paymentType,
			TppID:                 httpx.TppIDFromContext(ctx),
			Psu:                   psuFromHeaders(r),
			Amount:                amount,
			Currency:              strings.ToUpper(body.InstructedAmount.Currency),
			DebtorIBAN:            body.DebtorAccount.IBAN,
			CreditorIBAN:          body.CreditorAccount.IBAN,
			CreditorName:          body.CreditorName,
			RemittanceInformation: body.RemittanceInformationUnstructured,
			ScaApproach:           scaApproachFromHeaders(r),
			ExplicitAuthorisation: explicitAuthorisationPreferred(r),
			XRequestID:            slogx.RequestIDFromContext(ctx),
		})
		if err != nil {
			writeError(w, err, domain.ServicePIS)
			return
		}

		base := "/v1/" + string(paymentType) + "/" + product + "/" + resp.PaymentID
		w.Header().Set(headerLocation, base)
		w.Header().Set(headerAspspScaApproach, string(resp.ScaApproach))
		httpx.WriteJSON(w, http.StatusCreated, PaymentResponse{
			TransactionStatus: resp.TransactionStatus,
			PaymentID:         resp.PaymentID,
			ScaStatus:         resp.ScaStatus,
			Links:             resourceLinks(base, resp.AuthorisationID, resp.ScaStatus),
		})
	}
}

// parseMinorUnits turns "12.3" into 1230.
func parseMinorUnits(s string) (int64, error) {
	whole, frac, hasFrac := strings.Cut(strings.TrimSpace(s), ".")
	if whole == "" || len(frac) > 2 || (hasFrac && frac == "") {
		return 0, errAmount
	}
	for len(frac) < 2 {
		frac += "0"
	}

	units, err := strconv.ParseInt(whole+frac, 10, 64)
	if err != nil || units <= 0 || strings.HasPrefix(whole, "-") || strings.HasPrefix(whole, "+") {
		return 0, errAmount
	}
	return units, nil
}
