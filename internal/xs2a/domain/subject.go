package domain

import "time"

// Subject is the kind-neutral view of a business object. Exactly one of
// Consent, Payment or Basket is set, matching Type.
type Subject struct {
	ID                    string
	Type                  AuthorisationType
	Status                string
	MultilevelScaRequired bool
	Psus                  []PsuIdData
	TppID                 string
	InternalRequestID     string
	CreatedAt             time.Time

	Consent *Consent
	Payment *Payment
	Basket  *SigningBasket
}

func ConsentSubject(c Consent) Subject {
	return Subject{
		ID:                    c.ID,
		Type:                  c.Type.AuthorisationType(),
		Status:                string(c.Status),
		MultilevelScaRequired: c.MultilevelScaRequired,
		Psus:                  c.Psus,
		TppID:                 c.TppID,
		InternalRequestID:     c.InternalRequestID,
		CreatedAt:             c.CreatedAt,
		Consent:               &c,
	}
}

// PaymentSubject views a payment for creation or cancellation authorisation.
func PaymentSubject(p Payment, t AuthorisationType) Subject {
	return Subject{
		ID:                    p.ID,
		Type:                  t,
		Status:                string(p.TransactionStatus),
		MultilevelScaRequired: p.MultilevelScaRequired,
		Psus:                  p.Psus,
		TppID:                 p.TppID,
		InternalRequestID:     p.InternalRequestID,
		CreatedAt:             p.CreatedAt,
		Payment:               &p,
	}
}

func BasketSubject(b SigningBasket) Subject {
	return Subject{
		ID:                    b.ID,
		Type:                  AuthorisationSigningBasket,
		Status:                string(b.TransactionStatus),
		MultilevelScaRequired: b.MultilevelScaRequired,
		Psus:                  b.Psus,
		TppID:                 b.TppID,
		InternalRequestID:     b.InternalRequestID,
		CreatedAt:             b.CreatedAt,
		Basket:                &b,
	}
}
