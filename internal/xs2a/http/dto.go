package http

import (
	"github.com/aussiebroadwan/xs2a/internal/xs2a/domain"
)

// Link is one entry of a _links object.
type Link struct {
	Href string `json:"href"`
}

type Links map[string]Link

type AccountReference struct {
	IBAN     string `json:"iban"`
	Currency string `json:"currency,omitempty"`
}

type Amount struct {
	Currency string `json:"currency"`
	Amount   string `json:"amount"`
}

type ConsentRequest struct {
	Access                   domain.AccountAccess `json:"access"`
	RecurringIndicator       bool                 `json:"recurringIndicator"`
	ValidUntil               string               `json:"validUntil,omitempty"`
	FrequencyPerDay          int                  `json:"frequencyPerDay"`
	CombinedServiceIndicator bool                 `json:"combinedServiceIndicator,omitempty"`
}

type FundsConfirmationConsentRequest struct {
	Account     AccountReference `json:"account"`
	CardNumber  string           `json:"cardNumber,omitempty"`
	CardExpiry  string           `json:"cardExpiryDate,omitempty"`
	Information string           `json:"cardInformation,omitempty"`
}

type ConsentResponse struct {
	ConsentStatus domain.ConsentStatus `json:"consentStatus"`
	ConsentID     string               `json:"consentId"`
	ScaStatus     domain.ScaStatus     `json:"scaStatus,omitempty"`
	Links         Links                `json:"_links"`
}

type PaymentRequest struct {
	InstructedAmount                  Amount           `json:"instructedAmount"`
	DebtorAccount                     AccountReference `json:"debtorAccount"`
	CreditorAccount                   AccountReference `json:"creditorAccount"`
	CreditorName                      string           `json:"creditorName"`
	RemittanceInformationUnstructured string           `json:"remittanceInformationUnstructured,omitempty"`
}

type PaymentResponse struct {
	TransactionStatus domain.TransactionStatus `json:"transactionStatus"`
	PaymentID         string                   `json:"paymentId"`
	ScaStatus         domain.ScaStatus         `json:"scaStatus,omitempty"`
	Links             Links                    `json:"_links"`
}

type SigningBasketRequest struct {
	PaymentIDs []string `json:"paymentIds,omitempty"`
	ConsentIDs []string `json:"consentIds,omitempty"`
}

type SigningBasketResponse struct {
	TransactionStatus     domain.TransactionStatus      `json:"transactionStatus"`
	BasketID              string                        `json:"basketId"`
	MultilevelScaRequired bool                          `json:"multilevelScaRequired,omitempty"`
	ScaStatus             domain.ScaStatus              `json:"scaStatus,omitempty"`
	ScaMethods            []domain.AuthenticationObject `json:"scaMethods,omitempty"`
	ChosenScaMethod       *domain.AuthenticationObject  `json:"chosenScaMethod,omitempty"`
	ChallengeData         *domain.ChallengeData         `json:"challengeData,omitempty"`
	PsuMessage            string                        `json:"psuMessage,omitempty"`
	Links                 Links                         `json:"_links"`
}

type PsuData struct {
	Password string `json:"password,omitempty"`
}

// UpdatePsuDataRequest is the body of PUT .../authorisations/{id}. An
// empty body only identifies the PSU through the request headers.
type UpdatePsuDataRequest struct {
	PsuData                *PsuData `json:"psuData,omitempty"`
	AuthenticationMethodID string   `json:"authenticationMethodId,omitempty"`
	ScaAuthenticationData  string   `json:"scaAuthenticationData,omitempty"`
}

type AuthorisationResponse struct {
	ScaStatus       domain.ScaStatus              `json:"scaStatus"`
	AuthorisationID string                        `json:"authorisationId"`
	ScaMethods      []domain.AuthenticationObject `json:"scaMethods,omitempty"`
	ChosenScaMethod *domain.AuthenticationObject  `json:"chosenScaMethod,omitempty"`
	ChallengeData   *domain.ChallengeData         `json:"challengeData,omitempty"`
	PsuMessage      string                        `json:"psuMessage,omitempty"`
	Links           Links                         `json:"_links,omitempty"`
}

type ScaStatusResponse struct {
	ScaStatus domain.ScaStatus `json:"scaStatus"`
}

type AuthorisationsResponse struct {
	AuthorisationIDs []string `json:"authorisationIds"`
}

type HealthChecks struct {
	Database string `json:"database"`
	Keys     string `json:"keys"`
}

type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime"`
	Version string        `json:"version"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}
