package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/aussiebroadwan/xs2a/internal/xs2a/domain"
	"github.com/aussiebroadwan/xs2a/internal/xs2a/metrics"
	"github.com/aussiebroadwan/xs2a/internal/xs2a/securid"
	"github.com/aussiebroadwan/xs2a/internal/xs2a/spi"
	"github.com/aussiebroadwan/xs2a/internal/xs2a/store"
	"github.com/aussiebroadwan/xs2a/internal/xs2a/store/drivers/sqlite"
	"github.com/aussiebroadwan/xs2a/pkg/cryptox"
	"github.com/aussiebroadwan/xs2a/pkg/idx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

const testTpp = "PSDDE-BAFIN-123456"

var psu1 = domain.PsuIdData{PsuID: "psu1"}

// fakeBank returns canned answers and records every call.
type fakeBank struct {
	authorise    spi.AuthorisationStatus
	authoriseErr error
	methods      []domain.AuthenticationObject
	methodsErr   error
	code         spi.AuthorisationCodeResult
	codeErr      error
	decoupled    spi.DecoupledResult
	decoupledErr error
	verify       spi.VerificationResult
	verifyErr    error
	check        spi.VerificationResult
	checkErr     error
	basket       spi.BasketInitiationResult
	basketErr    error

	calls []string
}

var _ spi.Backend = (*fakeBank)(nil)

func (b *fakeBank) AuthorisePsu(context.Context, spi.Context, string, domain.PsuIdData, string, domain.Subject) (spi.AuthorisationStatus, error) {
	b.calls = append(b.calls, "AuthorisePsu")
	return b.authorise, b.authoriseErr
}

func (b *fakeBank) RequestAvailableScaMethods(context.Context, spi.Context, domain.Subject) ([]domain.AuthenticationObject, error) {
	b.calls = append(b.calls, "RequestAvailableScaMethods")
	return b.methods, b.methodsErr
}

func (b *fakeBank) RequestAuthorisationCode(_ context.Context, _ spi.Context, methodID string, _ domain.Subject) (spi.AuthorisationCodeResult, error) {
	b.calls = append(b.calls, "RequestAuthorisationCode")
	return b.code, b.codeErr
}

func (b *fakeBank) StartScaDecoupled(context.Context, spi.Context, string, string, domain.Subject) (spi.DecoupledResult, error) {
	b.calls = append(b.calls, "StartScaDecoupled")
	return b.decoupled, b.decoupledErr
}

func (b *fakeBank) VerifyScaAuthorisation(context.Context, spi.Context, spi.Verification, domain.Subject) (spi.VerificationResult, error) {
	b.calls = append(b.calls, "VerifyScaAuthorisation")
	return b.verify, b.verifyErr
}

func (b *fakeBank) CheckDecoupledSca(context.Context, spi.Context, string, domain.Subject) (spi.VerificationResult, error) {
	b.calls = append(b.calls, "CheckDecoupledSca")
	return b.check, b.checkErr
}

func (b *fakeBank) InitiateSigningBasket(context.Context, spi.Context, domain.SigningBasket) (spi.BasketInitiationResult, error) {
	b.calls = append(b.calls, "InitiateSigningBasket")
	return b.basket, b.basketErr
}

// countingStore counts writes that must not happen on some paths.
type countingStore struct {
	store.Store
	authWrites    int
	basketCreates int
}

func (s *countingStore) Authorisations() store.Authorisations {
	return &countingAuthorisations{Authorisations: s.Store.Authorisations(), n: &s.authWrites}
}

func (s *countingStore) SigningBaskets() store.SigningBaskets {
	return &countingBaskets{SigningBaskets: s.Store.SigningBaskets(), n: &s.basketCreates}
}

type countingAuthorisations struct {
	store.Authorisations
	n *int
}

func (a *countingAuthorisations) UpdateAuthorisation(ctx context.Context, auth domain.Authorisation) error {
	*a.n++
	return a.Authorisations.UpdateAuthorisation(ctx, auth)
}

func (a *countingAuthorisations) UpdateScaStatus(ctx context.Context, id string, status domain.ScaStatus) error {
	*a.n++
	return a.Authorisations.UpdateScaStatus(ctx, id, status)
}

type countingBaskets struct {
	store.SigningBaskets
	n *int
}

func (b *countingBaskets) CreateSigningBasket(ctx context.Context, basket domain.SigningBasket) error {
	*b.n++
	return b.SigningBaskets.CreateSigningBasket(ctx, basket)
}

type env struct {
	store    *countingStore
	bank     *fakeBank
	ids      *securid.Translator
	metrics  *metrics.Metrics
	adapters Adapters
	auths    *AuthorisationService
	consents *ConsentService
	payments *PaymentService
	baskets  *BasketService
}

func newEnv(t *testing.T) *env {
	t.Helper()

	db, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.ApplyMigrations())
	t.Cleanup(func() { _ = db.Close() })

	cipher, err := cryptox.NewIDCipher([]byte("service-test-key"))
	require.NoError(t, err)

	st := &countingStore{Store: db}
	bank := &fakeBank{}
	ids := securid.New(cipher, slog.New(slog.NewTextHandler(io.Discard, nil)))
	m := metrics.New(prometheus.NewRegistry())
	adapters := NewAdapters(st, bank, SameTppAndPsuPolicy{})

	return &env{
		store:    st,
		bank:     bank,
		ids:      ids,
		metrics:  m,
		adapters: adapters,
		auths: &AuthorisationService{
			Store:      st,
			IDs:        ids,
			Adapters:   adapters,
			Dispatcher: &Dispatcher{Store: st, Metrics: m},
		},
		consents: &ConsentService{Store: st, IDs: ids},
		payments: &PaymentService{Store: st, IDs: ids, Products: []string{"sepa-credit-transfers"}},
		baskets: &BasketService{
			Store:     st,
			IDs:       ids,
			Bank:      bank,
			Validator: &DefaultBasketValidator{Store: st, MaxEntries: 10},
			Metrics:   m,
		},
	}
}

func (e *env) token(t *testing.T, id string) string {
	t.Helper()
	tok, ok := e.ids.Encrypt(id)
	require.True(t, ok)
	return tok
}

// seedConsent stores a recurring AIS consent with balance access.
func (e *env) seedConsent(t *testing.T, mutate ...func(*domain.Consent)) domain.Consent {
	t.Helper()
	c := domain.Consent{
		ID:                idx.New().String(),
		Type:              domain.ConsentTypeAIS,
		Status:            domain.ConsentReceived,
		TppID:             testTpp,
		Psus:              []domain.PsuIdData{psu1},
		Recurring:         true,
		FrequencyPerDay:   4,
		Access:            domain.AccountAccess{Balances: []string{"DE89370400440532013000"}},
		InternalRequestID: "6b1b4a4e-7f0e-4a44-9a63-1f0f1c2c3d4e",
	}
	for _, m := range mutate {
		m(&c)
	}
	require.NoError(t, e.store.Consents().CreateConsent(context.Background(), c))
	return c
}

func (e *env) seedPayment(t *testing.T, mutate ...func(*domain.Payment)) domain.Payment {
	t.Helper()
	p := domain.Payment{
		ID:                idx.New().String(),
		PaymentProduct:    "sepa-credit-transfers",
		PaymentType:       domain.PaymentSingle,
		TransactionStatus: domain.TransactionReceived,
		TppID:             testTpp,
		Psus:              []domain.PsuIdData{psu1},
		Amount:            12345,
		Currency:          "EUR",
		DebtorIBAN:        "DE89370400440532013000",
		CreditorIBAN:      "DE02120300000000202051",
		CreditorName:      "Merchant",
		InternalRequestID: "0e0c8f5a-1f6b-4d7c-8a3b-5d9e2f1a4b6c",
	}
	for _, m := range mutate {
		m(&p)
	}
	require.NoError(t, e.store.Payments().CreatePayment(context.Background(), p))
	return p
}

// seedAuthorisation stores an authorisation of parent in the given state.
func (e *env) seedAuthorisation(t *testing.T, parentID string, typ domain.AuthorisationType, status domain.ScaStatus, mutate ...func(*domain.Authorisation)) domain.Authorisation {
	t.Helper()
	a := newAuthorisation(parentID, typ, psu1, domain.ScaApproachEmbedded, time.Now())
	a.ScaStatus = status
	for _, m := range mutate {
		m(&a)
	}
	require.NoError(t, e.store.Authorisations().CreateAuthorisation(context.Background(), a))
	return a
}

func (e *env) storedAuth(t *testing.T, id string) domain.Authorisation {
	t.Helper()
	a, err := e.store.Authorisations().GetAuthorisationByID(context.Background(), id)
	require.NoError(t, err)
	return a
}

func (e *env) storedConsent(t *testing.T, id string) domain.Consent {
	t.Helper()
	c, err := e.store.Consents().GetConsentByID(context.Background(), id)
	require.NoError(t, err)
	return c
}

func (e *env) storedPayment(t *testing.T, id string) domain.Payment {
	t.Helper()
	p, err := e.store.Payments().GetPaymentByID(context.Background(), id)
	require.NoError(t, err)
	return p
}

// update sends req through the authorisation service for the consent.
func (e *env) update(t *testing.T, typ domain.AuthorisationType, objectID, authID string, req domain.UpdatePsuDataRequest) domain.UpdatePsuDataResponse {
	t.Helper()
	req.BusinessObjectID = e.token(t, objectID)
	req.AuthorisationID = authID
	req.TppID = testTpp
	return e.auths.UpdatePsuData(context.Background(), typ, req)
}

func requireCode(t *testing.T, err error, code domain.MessageErrorCode) *domain.ErrorHolder {
	t.Helper()
	require.Error(t, err)
	h := domain.AsErrorHolder(err, domain.ServiceAIS)
	require.Equal(t, code, h.Code(), h.Error())
	return h
}

var (
	smsOTP  = domain.AuthenticationObject{AuthenticationType: "SMS_OTP", AuthenticationMethodID: "sms", Name: "SMS"}
	pushOTP = domain.AuthenticationObject{AuthenticationType: "PUSH_OTP", AuthenticationMethodID: "push", Name: "App", Decoupled: true}
)
