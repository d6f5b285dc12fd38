package xs2a_test

import (
	"net/http"
	"testing"
	"time"

	xhttp "github.com/aussiebroadwan/xs2a/internal/xs2a/http"
	"github.com/aussiebroadwan/xs2a/pkg/jwtx"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"
)

var consentBody = map[string]any{
	"access":             map[string]any{"balances": []string{debtorIBAN}},
	"recurringIndicator": true,
	"frequencyPerDay":    4,
}

var paymentBody = map[string]any{
	"instructedAmount": map[string]string{"currency": "EUR", "amount": "42.00"},
	"debtorAccount":    map[string]string{"iban": debtorIBAN},
	"creditorAccount":  map[string]string{"iban": creditorIBAN},
	"creditorName":     "Merchant",
}

// completeEmbeddedSca walks an authorisation from psuIdentified to
// finalised with alice's credentials.
func completeEmbeddedSca(t *testing.T, c *client, bearer, href string) {
	t.Helper()
	alice := psu(alicePsuID)

	r := c.do(t, http.MethodPut, href, bearer, map[string]any{"psuData": map[string]string{"password": alicePass}}, alice)
	require.Equal(t, http.StatusOK, r.status, string(r.body))
	require.Equal(t, "psuAuthenticated", string(decode[xhttp.AuthorisationResponse](t, r).ScaStatus))

	r = c.do(t, http.MethodPut, href, bearer, map[string]any{"authenticationMethodId": "sms"}, alice)
	require.Equal(t, http.StatusOK, r.status, string(r.body))
	require.Equal(t, "scaMethodSelected", string(decode[xhttp.AuthorisationResponse](t, r).ScaStatus))

	code, err := totp.GenerateCode(aliceSecret, time.Now())
	require.NoError(t, err)
	r = c.do(t, http.MethodPut, href, bearer, map[string]any{"scaAuthenticationData": code}, alice)
	require.Equal(t, http.StatusOK, r.status, string(r.body))
	require.Equal(t, "finalised", string(decode[xhttp.AuthorisationResponse](t, r).ScaStatus))
}

// TestConsentEmbeddedSca runs an AIS consent through the full embedded
// SCA flow and checks the consent becomes valid.
func TestConsentEmbeddedSca(t *testing.T) {
	c := setupContainer(t)
	aisp := c.token(t, "PSDDE-BAFIN-000001", jwtx.RoleAISP)

	r := c.do(t, http.MethodPost, "/v1/consents", aisp, consentBody, psu(alicePsuID))
	require.Equal(t, http.StatusCreated, r.status, string(r.body))
	require.Equal(t, "EMBEDDED", r.header.Get("ASPSP-SCA-Approach"))
	consent := decode[xhttp.ConsentResponse](t, r)
	require.Equal(t, "received", string(consent.ConsentStatus))

	href := consent.Links["updatePsuAuthentication"].Href
	require.NotEmpty(t, href)
	completeEmbeddedSca(t, c, aisp, href)

	r = c.do(t, http.MethodGet, consent.Links["status"].Href, aisp, nil, nil)
	require.Equal(t, http.StatusOK, r.status)
	require.Equal(t, "valid", decode[map[string]string](t, r)["consentStatus"])

	t.Logf("consent %s authorised", consent.ConsentID)
}

// TestSigningBasketSca authorises a payment and a consent together through
// one signing basket.
func TestSigningBasketSca(t *testing.T) {
	c := setupContainer(t)
	tppID := "PSDDE-BAFIN-000002"
	aisp := c.token(t, tppID, jwtx.RoleAISP)
	pisp := c.token(t, tppID, jwtx.RolePISP)
	both := c.token(t, tppID, jwtx.RoleAISP, jwtx.RolePISP)
	explicit := map[string]string{"TPP-Explicit-Authorisation-Preferred": "true"}

	r := c.do(t, http.MethodPost, "/v1/consents", aisp, consentBody, explicit)
	require.Equal(t, http.StatusCreated, r.status, string(r.body))
	consent := decode[xhttp.ConsentResponse](t, r)

	r = c.do(t, http.MethodPost, "/v1/payments/sepa-credit-transfers", pisp, paymentBody, explicit)
	require.Equal(t, http.StatusCreated, r.status, string(r.body))
	payment := decode[xhttp.PaymentResponse](t, r)
	require.Equal(t, "RCVD", string(payment.TransactionStatus))

	r = c.do(t, http.MethodPost, "/v1/signing-baskets", both, map[string]any{
		"consentIds": []string{consent.ConsentID},
		"paymentIds": []string{payment.PaymentID},
	}, psu(alicePsuID))
	require.Equal(t, http.StatusCreated, r.status, string(r.body))
	basket := decode[xhttp.SigningBasketResponse](t, r)
	require.Equal(t, "psuIdentified", string(basket.ScaStatus))

	// a referenced object cannot join a second open basket
	r = c.do(t, http.MethodPost, "/v1/signing-baskets", both, map[string]any{
		"paymentIds": []string{payment.PaymentID},
	}, psu(alicePsuID))
	assertTppError(t, r, http.StatusConflict, "REFERENCE_STATUS_INVALID")

	completeEmbeddedSca(t, c, both, basket.Links["updatePsuAuthentication"].Href)

	r = c.do(t, http.MethodGet, basket.Links["status"].Href, both, nil, nil)
	require.Equal(t, http.StatusOK, r.status)
	require.Equal(t, "ACSP", decode[map[string]string](t, r)["transactionStatus"])

	r = c.do(t, http.MethodGet, payment.Links["status"].Href, pisp, nil, nil)
	require.Equal(t, http.StatusOK, r.status)
	require.Equal(t, "ACSP", decode[map[string]string](t, r)["transactionStatus"])

	r = c.do(t, http.MethodGet, consent.Links["status"].Href, aisp, nil, nil)
	require.Equal(t, http.StatusOK, r.status)
	require.Equal(t, "valid", decode[map[string]string](t, r)["consentStatus"])
}

// TestDecoupledPreferred runs a payment through the decoupled approach: the
// password starts a push to alice's banking app and polling the SCA status
// finalises the authorisation once the sandbox confirms it.
func TestDecoupledPreferred(t *testing.T) {
	c := setupContainer(t)
	pisp := c.token(t, "PSDDE-BAFIN-000003", jwtx.RolePISP)
	alice := psu(alicePsuID)

	r := c.do(t, http.MethodPost, "/v1/payments/sepa-credit-transfers", pisp, paymentBody, map[string]string{
		"PSU-ID":                  alicePsuID,
		"TPP-Decoupled-Preferred": "true",
	})
	require.Equal(t, http.StatusCreated, r.status, string(r.body))
	require.Equal(t, "DECOUPLED", r.header.Get("ASPSP-SCA-Approach"))
	payment := decode[xhttp.PaymentResponse](t, r)

	href := payment.Links["updatePsuAuthentication"].Href
	require.NotEmpty(t, href)

	r = c.do(t, http.MethodPut, href, pisp, map[string]any{"psuData": map[string]string{"password": alicePass}}, alice)
	require.Equal(t, http.StatusOK, r.status, string(r.body))
	require.Equal(t, "DECOUPLED", r.header.Get("ASPSP-SCA-Approach"))
	auth := decode[xhttp.AuthorisationResponse](t, r)
	require.Equal(t, "psuAuthenticated", string(auth.ScaStatus))
	require.NotNil(t, auth.ChosenScaMethod)
	require.Equal(t, "push", auth.ChosenScaMethod.AuthenticationMethodID)
	require.NotEmpty(t, auth.PsuMessage)
	require.Equal(t, href, auth.Links["scaStatus"].Href)

	require.Eventually(t, func() bool {
		r := c.do(t, http.MethodGet, auth.Links["scaStatus"].Href, pisp, nil, nil)
		return r.status == http.StatusOK &&
			decode[xhttp.ScaStatusResponse](t, r).ScaStatus == "finalised"
	}, 10*time.Second, 250*time.Millisecond)

	r = c.do(t, http.MethodGet, payment.Links["status"].Href, pisp, nil, nil)
	require.Equal(t, http.StatusOK, r.status)
	require.Equal(t, "ACSP", decode[map[string]string](t, r)["transactionStatus"])
}
