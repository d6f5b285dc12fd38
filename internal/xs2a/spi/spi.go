// Package spi defines the calls the authorisation engine makes into the
// account servicing bank. Every call may block on a slow remote system.
package spi

import (
	"context"

	"github.com/aussiebroadwan/xs2a/internal/xs2a/domain"
)

// Context carries request metadata to the bank.
type Context struct {
	Psu               domain.PsuIdData
	TppID             string
	XRequestID        string
	InternalRequestID string
}

// AuthorisationStatus is the outcome of a PSU credential or SCA check.
type AuthorisationStatus string

const (
	StatusSuccess        AuthorisationStatus = "SUCCESS"
	StatusAttemptFailure AuthorisationStatus = "ATTEMPT_FAILURE"
	StatusFailure        AuthorisationStatus = "FAILURE"

	// StatusPending is only returned by CheckDecoupledSca while the PSU has
	// not answered on their device yet.
	StatusPending AuthorisationStatus = "PENDING"
)

type AuthorisationCodeResult struct {
	ChosenMethod  domain.AuthenticationObject
	ChallengeData *domain.ChallengeData
	PsuMessage    string
}

// DecoupledResult names the method the bank pushed the SCA to. When the
// engine asked for no particular method the bank picks one.
type DecoupledResult struct {
	ChosenMethod domain.AuthenticationObject
	PsuMessage   string
}

// Verification is the SCA data a PSU submitted for an authorisation.
type Verification struct {
	AuthorisationID       string
	MethodID              string
	ScaAuthenticationData string
	Psu                   domain.PsuIdData
}

// VerificationResult reports the object status the bank now holds. For a
// multilevel object that is a partially authorised status until every PSU
// has signed.
type VerificationResult struct {
	Status       AuthorisationStatus
	ObjectStatus string
}

type BasketInitiationResult struct {
	TransactionStatus     domain.TransactionStatus
	MultilevelScaRequired bool
	AvailableMethods      []domain.AuthenticationObject
	ChosenMethod          *domain.AuthenticationObject
	ChallengeData         *domain.ChallengeData
	PsuMessage            string
	NotificationModes     []string
}

// Authorisation is shared by every kind of business object; subject says
// which object is being authorised.
type Authorisation interface {
	AuthorisePsu(ctx context.Context, sctx Context, authorisationID string, psu domain.PsuIdData, password string, subject domain.Subject) (AuthorisationStatus, error)
	RequestAvailableScaMethods(ctx context.Context, sctx Context, subject domain.Subject) ([]domain.AuthenticationObject, error)
	RequestAuthorisationCode(ctx context.Context, sctx Context, methodID string, subject domain.Subject) (AuthorisationCodeResult, error)
	StartScaDecoupled(ctx context.Context, sctx Context, authorisationID, methodID string, subject domain.Subject) (DecoupledResult, error)
	VerifyScaAuthorisation(ctx context.Context, sctx Context, v Verification, subject domain.Subject) (VerificationResult, error)

	// CheckDecoupledSca reports whether the PSU confirmed a decoupled SCA
	// started with StartScaDecoupled. StatusPending means no answer yet.
	CheckDecoupledSca(ctx context.Context, sctx Context, authorisationID string, subject domain.Subject) (VerificationResult, error)
}

type SigningBaskets interface {
	InitiateSigningBasket(ctx context.Context, sctx Context, basket domain.SigningBasket) (BasketInitiationResult, error)
}

// Backend is a complete bank connector.
type Backend interface {
	Authorisation
	SigningBaskets
}
