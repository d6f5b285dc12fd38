// Package sandbox is an in-process bank used for local runs and tests. PSU
// passwords are argon2id hashed, SCA codes are TOTP.
package sandbox

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aussiebroadwan/xs2a/internal/xs2a/domain"
	"github.com/aussiebroadwan/xs2a/internal/xs2a/spi"
	"github.com/aussiebroadwan/xs2a/pkg/cryptox"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

var totpOpts = totp.ValidateOpts{
	Period:    30,
	Skew:      1,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

// decoupledStart is a decoupled SCA waiting for the PSU's device.
type decoupledStart struct {
	psu     domain.PsuIdData
	started time.Time
}

type psuRecord struct {
	PsuFixture
	passwordHash string
	secret       string
}

// Bank implements spi.Backend.
type Bank struct {
	logger       *slog.Logger
	maxAttempts  int
	modes        []string
	confirmAfter time.Duration
	now          func() time.Time

	mu          sync.Mutex
	psus        map[string]*psuRecord
	pwdFailures map[string]int             // authorisation id
	scaFailures map[string]int             // authorisation id
	signed      map[string]map[string]bool // object id -> psu id
	decoupled   map[string]decoupledStart  // authorisation id
}

var _ spi.Backend = (*Bank)(nil)

// New hashes the fixture passwords and prepares TOTP secrets. PSUs without
// a configured secret get a fresh one.
func New(f *Fixtures, logger *slog.Logger) (*Bank, error) {
	b := &Bank{
		logger:       logger,
		maxAttempts:  f.MaxAttempts,
		modes:        f.NotificationModes,
		confirmAfter: time.Duration(f.DecoupledConfirmSeconds) * time.Second,
		now:          time.Now,
		psus:         make(map[string]*psuRecord, len(f.Psus)),
		pwdFailures:  make(map[string]int),
		scaFailures:  make(map[string]int),
		signed:       make(map[string]map[string]bool),
		decoupled:    make(map[string]decoupledStart),
	}

	for _, p := range f.Psus {
		hash, err := cryptox.HashPassword(p.Password)
		if err != nil {
			return nil, fmt.Errorf("hash password for %s: %w", p.PsuID, err)
		}

		secret := p.TotpSecret
		if secret == "" {
			key, err := totp.Generate(totp.GenerateOpts{
				Issuer:      "xs2a-sandbox",
				AccountName: p.PsuID,
				Digits:      otp.DigitsSix,
				Algorithm:   otp.AlgorithmSHA1,
			})
			if err != nil {
				return nil, fmt.Errorf("generate totp secret for %s: %w", p.PsuID, err)
			}
			secret = key.Secret()
			logger.Debug("sandbox psu enrolled", "psu_id", p.PsuID, "otpauth", key.URL())
		}

		p.Password = ""
		b.psus[p.PsuID] = &psuRecord{PsuFixture: p, passwordHash: hash, secret: secret}
	}

	return b, nil
}

func (b *Bank) lookup(psu domain.PsuIdData) (*psuRecord, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.psus[psu.PsuID]
	return r, ok
}

// fail counts one failed attempt and reports whether the limit is reached.
func (b *Bank) fail(counter map[string]int, authorisationID string) spi.AuthorisationStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	counter[authorisationID]++
	if counter[authorisationID] >= b.maxAttempts {
		return spi.StatusFailure
	}
	return spi.StatusAttemptFailure
}

func (b *Bank) AuthorisePsu(ctx context.Context, sctx spi.Context, authorisationID string, psu domain.PsuIdData, password string, subject domain.Subject) (spi.AuthorisationStatus, error) {
	rec, ok := b.lookup(psu)
	if !ok || rec.Blocked {
		return spi.StatusFailure, nil
	}

	if err := cryptox.VerifyPassword(password, rec.passwordHash); err != nil {
		status := b.fail(b.pwdFailures, authorisationID)
		b.logger.Info("sandbox password rejected", "psu_id", psu.PsuID, "status", status)
		return status, nil
	}

	b.mu.Lock()
	delete(b.pwdFailures, authorisationID)
	b.mu.Unlock()
	return spi.StatusSuccess, nil
}

func (b *Bank) RequestAvailableScaMethods(ctx context.Context, sctx spi.Context, subject domain.Subject) ([]domain.AuthenticationObject, error) {
	rec, ok := b.lookup(sctx.Psu)
	if !ok {
		return nil, spi.NewError(domain.CodePsuCredentialsInvalid, "unknown psu")
	}
	return methods(rec), nil
}

func methods(rec *psuRecord) []domain.AuthenticationObject {
	out := make([]domain.AuthenticationObject, 0, len(rec.Methods))
	for _, m := range rec.Methods {
		out = append(out, domain.AuthenticationObject{
			AuthenticationType:     m.Type,
			AuthenticationMethodID: m.ID,
			Name:                   m.Name,
			Decoupled:              m.Decoupled(),
		})
	}
	return out
}

func findMethod(rec *psuRecord, id string) (domain.AuthenticationObject, bool) {
	for _, m := range methods(rec) {
		if m.AuthenticationMethodID == id {
			return m, true
		}
	}
	return domain.AuthenticationObject{}, false
}

func (b *Bank) RequestAuthorisationCode(ctx context.Context, sctx spi.Context, methodID string, subject domain.Subject) (spi.AuthorisationCodeResult, error) {
	rec, ok := b.lookup(sctx.Psu)
	if !ok {
		return spi.AuthorisationCodeResult{}, spi.NewError(domain.CodePsuCredentialsInvalid, "unknown psu")
	}
	m, ok := findMethod(rec, methodID)
	if !ok || m.Decoupled {
		return spi.AuthorisationCodeResult{}, spi.NewError(domain.CodeScaMethodUnknown, methodID)
	}

	return spi.AuthorisationCodeResult{
		ChosenMethod: m,
		ChallengeData: &domain.ChallengeData{
			OtpMaxLength:          6,
			OtpFormat:             "integer",
			AdditionalInformation: "Enter the code shown by " + m.Name,
		},
	}, nil
}

func (b *Bank) StartScaDecoupled(ctx context.Context, sctx spi.Context, authorisationID, methodID string, subject domain.Subject) (spi.DecoupledResult, error) {
	rec, ok := b.lookup(sctx.Psu)
	if !ok {
		return spi.DecoupledResult{}, spi.NewError(domain.CodePsuCredentialsInvalid, "unknown psu")
	}
	if methodID == "" {
		for _, m := range methods(rec) {
			if m.Decoupled {
				methodID = m.AuthenticationMethodID
				break
			}
		}
	}
	m, ok := findMethod(rec, methodID)
	if !ok || !m.Decoupled {
		return spi.DecoupledResult{}, spi.NewError(domain.CodeScaMethodUnknown, methodID)
	}

	b.mu.Lock()
	b.decoupled[authorisationID] = decoupledStart{psu: sctx.Psu, started: b.now()}
	b.mu.Unlock()

	b.logger.Info("sandbox decoupled sca started", "authorisation_id", authorisationID, "method", m.AuthenticationMethodID)
	return spi.DecoupledResult{ChosenMethod: m, PsuMessage: "Please confirm the request in " + m.Name}, nil
}

// CheckDecoupledSca confirms once the configured delay has passed since the
// push was sent. A check for an authorisation the bank has no push for (the
// sandbox was restarted) sends the push again.
func (b *Bank) CheckDecoupledSca(ctx context.Context, sctx spi.Context, authorisationID string, subject domain.Subject) (spi.VerificationResult, error) {
	b.mu.Lock()
	start, ok := b.decoupled[authorisationID]
	if !ok {
		start = decoupledStart{psu: sctx.Psu, started: b.now()}
		b.decoupled[authorisationID] = start
	}
	b.mu.Unlock()

	rec, ok := b.lookup(start.psu)
	if !ok {
		return spi.VerificationResult{}, spi.NewError(domain.CodePsuCredentialsInvalid, "unknown psu")
	}
	if rec.Blocked || rec.DeclinesDecoupled {
		b.forgetDecoupled(authorisationID)
		return spi.VerificationResult{Status: spi.StatusFailure, ObjectStatus: subject.Status}, nil
	}
	if b.now().Before(start.started.Add(b.confirmAfter)) {
		return spi.VerificationResult{Status: spi.StatusPending, ObjectStatus: subject.Status}, nil
	}

	b.forgetDecoupled(authorisationID)
	complete := b.sign(subject, start.psu)
	b.logger.Info("sandbox decoupled sca confirmed", "authorisation_id", authorisationID, "psu_id", start.psu.PsuID)
	return spi.VerificationResult{Status: spi.StatusSuccess, ObjectStatus: objectStatus(subject.Type, complete)}, nil
}

func (b *Bank) forgetDecoupled(authorisationID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.decoupled, authorisationID)
}

// sign records psu's signature on subject and reports whether every PSU of
// the object has signed.
func (b *Bank) sign(subject domain.Subject, psu domain.PsuIdData) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	set, ok := b.signed[subject.ID]
	if !ok {
		set = make(map[string]bool)
		b.signed[subject.ID] = set
	}
	set[psu.PsuID] = true
	for _, p := range subject.Psus {
		if !set[p.PsuID] {
			return false
		}
	}
	return true
}

func (b *Bank) VerifyScaAuthorisation(ctx context.Context, sctx spi.Context, v spi.Verification, subject domain.Subject) (spi.VerificationResult, error) {
	psu := v.Psu
	if psu.IsEmpty() {
		psu = sctx.Psu
	}
	rec, ok := b.lookup(psu)
	if !ok {
		return spi.VerificationResult{}, spi.NewError(domain.CodePsuCredentialsInvalid, "unknown psu")
	}

	valid, err := totp.ValidateCustom(v.ScaAuthenticationData, rec.secret, b.now().UTC(), totpOpts)
	if err != nil || !valid {
		status := b.fail(b.scaFailures, v.AuthorisationID)
		return spi.VerificationResult{Status: status, ObjectStatus: subject.Status}, nil
	}

	b.mu.Lock()
	delete(b.scaFailures, v.AuthorisationID)
	b.mu.Unlock()

	complete := b.sign(subject, psu)
	return spi.VerificationResult{Status: spi.StatusSuccess, ObjectStatus: objectStatus(subject.Type, complete)}, nil
}

func objectStatus(t domain.AuthorisationType, complete bool) string {
	switch t {
	case domain.AuthorisationAIS, domain.AuthorisationPIIS:
		if complete {
			return string(domain.ConsentValid)
		}
		return string(domain.ConsentPartiallyAuthorised)
	case domain.AuthorisationPISCancellation:
		if complete {
			return string(domain.TransactionCancelled)
		}
		return string(domain.TransactionPartiallyAccepted)
	default:
		if complete {
			return string(domain.TransactionAcceptedSettlementProcess)
		}
		return string(domain.TransactionPartiallyAccepted)
	}
}

func (b *Bank) InitiateSigningBasket(ctx context.Context, sctx spi.Context, basket domain.SigningBasket) (spi.BasketInitiationResult, error) {
	res := spi.BasketInitiationResult{
		TransactionStatus:     domain.TransactionReceived,
		MultilevelScaRequired: len(basket.Psus) > 1,
		NotificationModes:     b.modes,
	}

	for _, p := range basket.Psus {
		rec, ok := b.lookup(p)
		if !ok {
			continue
		}
		if rec.Blocked {
			return spi.BasketInitiationResult{}, spi.NewError(domain.CodeServiceBlocked, "psu is blocked")
		}
		if rec.Corporate {
			res.MultilevelScaRequired = true
		}
		if res.AvailableMethods == nil {
			res.AvailableMethods = methods(rec)
		}
	}

	if len(res.AvailableMethods) == 1 && !res.AvailableMethods[0].Decoupled {
		chosen := res.AvailableMethods[0]
		res.ChosenMethod = &chosen
	}
	res.PsuMessage = fmt.Sprintf("Signing basket with %d consents and %d payments", len(basket.ConsentIDs), len(basket.PaymentIDs))
	return res, nil
}
