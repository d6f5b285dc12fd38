package domain

import "time"

// SigningBasket groups consents and payments under one SCA session. The
// referenced ids are internal and fixed at creation.
type SigningBasket struct {
	ID                    string
	TransactionStatus     TransactionStatus
	TppID                 string
	Psus                  []PsuIdData
	ConsentIDs            []string
	PaymentIDs            []string
	MultilevelScaRequired bool
	InternalRequestID     string
	CreatedAt             time.Time
	StatusChangedAt       time.Time
}

// CreateSigningBasketRequest carries external (encrypted) object ids.
type CreateSigningBasketRequest struct {
	ConsentIDs  []string
	PaymentIDs  []string
	Psu         PsuIdData
	TppID       string
	ScaApproach ScaApproach
	XRequestID  string
}

// CreateSigningBasketResponse mirrors the consent and payment creation
// responses so the same authorisation endpoints can drive the basket.
type CreateSigningBasketResponse struct {
	BasketID              string
	TransactionStatus     TransactionStatus
	MultilevelScaRequired bool
	AuthorisationID       string
	ScaStatus             ScaStatus
	ScaApproach           ScaApproach
	AvailableMethods      []AuthenticationObject
	ChosenMethod          *AuthenticationObject
	ChallengeData         *ChallengeData
	PsuMessage            string
	NotificationModes     []string
}
