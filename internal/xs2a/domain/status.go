package domain

// ScaStatus is the state of one PSU authorisation.
type ScaStatus string

const (
	ScaStatusReceived          ScaStatus = "received"
	ScaStatusPsuIdentified     ScaStatus = "psuIdentified"
	ScaStatusPsuAuthenticated  ScaStatus = "psuAuthenticated"
	ScaStatusScaMethodSelected ScaStatus = "scaMethodSelected"
	ScaStatusStarted           ScaStatus = "started"
	ScaStatusFinalised         ScaStatus = "finalised"
	ScaStatusFailed            ScaStatus = "failed"
	ScaStatusExempted          ScaStatus = "exempted"
)

// IsFinalised reports whether no further transitions are possible.
func (s ScaStatus) IsFinalised() bool {
	switch s {
	case ScaStatusFinalised, ScaStatusFailed, ScaStatusExempted:
		return true
	}
	return false
}

type ScaApproach string

const (
	ScaApproachEmbedded  ScaApproach = "EMBEDDED"
	ScaApproachDecoupled ScaApproach = "DECOUPLED"
	ScaApproachRedirect  ScaApproach = "REDIRECT"
)

func (a ScaApproach) Valid() bool {
	switch a {
	case ScaApproachEmbedded, ScaApproachDecoupled, ScaApproachRedirect:
		return true
	}
	return false
}

// AuthorisationType identifies the kind of business object an authorisation
// belongs to.
type AuthorisationType string

const (
	AuthorisationAIS             AuthorisationType = "AIS"
	AuthorisationPIIS            AuthorisationType = "PIIS"
	AuthorisationPISCreation     AuthorisationType = "PIS_CREATION"
	AuthorisationPISCancellation AuthorisationType = "PIS_CANCELLATION"
	AuthorisationSigningBasket   AuthorisationType = "SIGNING_BASKET"
)

func (t AuthorisationType) Valid() bool {
	switch t {
	case AuthorisationAIS, AuthorisationPIIS, AuthorisationPISCreation,
		AuthorisationPISCancellation, AuthorisationSigningBasket:
		return true
	}
	return false
}

// ServiceType is the protocol class used to classify errors.
type ServiceType string

const (
	ServiceAIS  ServiceType = "AIS"
	ServicePIS  ServiceType = "PIS"
	ServicePIIS ServiceType = "PIIS"
	ServiceSB   ServiceType = "SB"
)

// ConsentStatus is the lifecycle status of an AIS or PIIS consent.
type ConsentStatus string

const (
	ConsentReceived            ConsentStatus = "received"
	ConsentRejected            ConsentStatus = "rejected"
	ConsentValid               ConsentStatus = "valid"
	ConsentRevokedByPsu        ConsentStatus = "revokedByPsu"
	ConsentExpired             ConsentStatus = "expired"
	ConsentTerminatedByTpp     ConsentStatus = "terminatedByTpp"
	ConsentTerminatedByAspsp   ConsentStatus = "terminatedByAspsp"
	ConsentPartiallyAuthorised ConsentStatus = "partiallyAuthorised"
)

// IsFinalised reports whether the consent can never change status again.
func (s ConsentStatus) IsFinalised() bool {
	switch s {
	case ConsentRejected, ConsentRevokedByPsu, ConsentExpired,
		ConsentTerminatedByTpp, ConsentTerminatedByAspsp:
		return true
	}
	return false
}

// TransactionStatus is an ISO 20022 payment status code.
type TransactionStatus string

const (
	TransactionReceived                    TransactionStatus = "RCVD"
	TransactionPartiallyAccepted           TransactionStatus = "PATC"
	TransactionAcceptedTechnical           TransactionStatus = "ACTC"
	TransactionAcceptedCustomerProfile     TransactionStatus = "ACCP"
	TransactionAcceptedSettlementCompleted TransactionStatus = "ACSC"
	TransactionAcceptedCreditSettlement    TransactionStatus = "ACCC"
	TransactionAcceptedSettlementProcess   TransactionStatus = "ACSP"
	TransactionAcceptedWithChange          TransactionStatus = "ACWC"
	TransactionAcceptedWithoutPosting      TransactionStatus = "ACWP"
	TransactionAcceptedFundsChecked        TransactionStatus = "ACFC"
	TransactionPending                     TransactionStatus = "PDNG"
	TransactionRejected                    TransactionStatus = "RJCT"
	TransactionCancelled                   TransactionStatus = "CANC"
)

// IsFinalised reports whether the payment is settled, rejected or cancelled.
// ACSP counts as final for authorisation purposes: the PSU has signed.
func (s TransactionStatus) IsFinalised() bool {
	switch s {
	case TransactionAcceptedSettlementCompleted, TransactionAcceptedCreditSettlement,
		TransactionRejected, TransactionCancelled, TransactionAcceptedSettlementProcess:
		return true
	}
	return false
}

// IsInitial reports whether the payment has not yet been confirmed by any PSU.
func (s TransactionStatus) IsInitial() bool {
	switch s {
	case TransactionReceived, TransactionPartiallyAccepted, TransactionAcceptedTechnical:
		return true
	}
	return false
}
