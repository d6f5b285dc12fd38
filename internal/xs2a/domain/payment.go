package domain

import "time"

// PaymentType is the XS2A payment service path segment.
type PaymentType string

const (
	PaymentSingle   PaymentType = "payments"
	PaymentPeriodic PaymentType = "periodic-payments"
	PaymentBulk     PaymentType = "bulk-payments"
)

func (t PaymentType) Valid() bool {
	switch t {
	case PaymentSingle, PaymentPeriodic, PaymentBulk:
		return true
	}
	return false
}

type Payment struct {
	ID                    string
	PaymentProduct        string
	PaymentType           PaymentType
	TransactionStatus     TransactionStatus
	TppID                 string
	Psus                  []PsuIdData
	Amount                int64 // minor units
	Currency              string
	DebtorIBAN            string
	CreditorIBAN          string
	CreditorName          string
	RemittanceInformation string
	MultilevelScaRequired bool
	InternalRequestID     string
	CreatedAt             time.Time
	StatusChangedAt       time.Time
}

type InitiatePaymentRequest struct {
	PaymentProduct        string
	PaymentType           PaymentType
	TppID                 string
	Psu                   PsuIdData
	Amount                int64
	Currency              string
	DebtorIBAN            string
	CreditorIBAN          string
	CreditorName          string
	RemittanceInformation string
	ScaApproach           ScaApproach
	ExplicitAuthorisation bool
	XRequestID            string
}

type InitiatePaymentResponse struct {
	PaymentID         string
	TransactionStatus TransactionStatus
	AuthorisationID   string
	ScaStatus         ScaStatus
	ScaApproach       ScaApproach
}
