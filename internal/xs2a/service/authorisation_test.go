package service

import (
	"context"
	"testing"

	"github.com/aussiebroadwan/xs2a/internal/xs2a/domain"
	"github.com/aussiebroadwan/xs2a/internal/xs2a/spi"
	"github.com/stretchr/testify/require"
)

func TestStartAuthorisation(t *testing.T) {
	ctx := context.Background()

	t.Run("single open authorisation without multilevel", func(t *testing.T) {
		e := newEnv(t)
		c := e.seedConsent(t)
		tok := e.token(t, c.ID)

		resp, err := e.auths.StartAuthorisation(ctx, domain.AuthorisationAIS, tok, testTpp, psu1, "")
		require.NoError(t, err)
		require.Equal(t, domain.ScaStatusPsuIdentified, resp.ScaStatus)
		require.Equal(t, domain.ScaApproachEmbedded, resp.ScaApproach)
		require.NotEmpty(t, resp.AuthorisationID)

		_, err = e.auths.StartAuthorisation(ctx, domain.AuthorisationAIS, tok, testTpp, psu1, "")
		requireCode(t, err, domain.CodeStatusInvalid)

		// a failed authorisation no longer blocks a new one
		require.NoError(t, e.store.Authorisations().UpdateScaStatus(ctx, resp.AuthorisationID, domain.ScaStatusFailed))
		again, err := e.auths.StartAuthorisation(ctx, domain.AuthorisationAIS, tok, testTpp, domain.PsuIdData{}, domain.ScaApproachDecoupled)
		require.NoError(t, err)
		require.Equal(t, domain.ScaStatusReceived, again.ScaStatus)
		require.Equal(t, domain.ScaApproachDecoupled, again.ScaApproach)
	})

	t.Run("one authorisation per psu with multilevel", func(t *testing.T) {
		e := newEnv(t)
		c := e.seedConsent(t, func(c *domain.Consent) { c.MultilevelScaRequired = true })
		tok := e.token(t, c.ID)
		psu2 := domain.PsuIdData{PsuID: "psu2"}

		_, err := e.auths.StartAuthorisation(ctx, domain.AuthorisationAIS, tok, testTpp, psu1, "")
		require.NoError(t, err)
		_, err = e.auths.StartAuthorisation(ctx, domain.AuthorisationAIS, tok, testTpp, psu2, "")
		require.NoError(t, err)

		_, err = e.auths.StartAuthorisation(ctx, domain.AuthorisationAIS, tok, testTpp, psu2, "")
		requireCode(t, err, domain.CodeStatusInvalid)
		_, err = e.auths.StartAuthorisation(ctx, domain.AuthorisationAIS, tok, testTpp, domain.PsuIdData{}, "")
		requireCode(t, err, domain.CodeFormatErrorNoPsu)

		require.True(t, domain.SamePsus([]domain.PsuIdData{psu1, psu2}, e.storedConsent(t, c.ID).Psus))

		ids, err := e.auths.ListAuthorisations(ctx, domain.AuthorisationAIS, tok, testTpp)
		require.NoError(t, err)
		require.Len(t, ids, 2)
	})

	t.Run("closed object", func(t *testing.T) {
		e := newEnv(t)
		c := e.seedConsent(t, func(c *domain.Consent) { c.Status = domain.ConsentValid })
		_, err := e.auths.StartAuthorisation(ctx, domain.AuthorisationAIS, e.token(t, c.ID), testTpp, psu1, "")
		requireCode(t, err, domain.CodeStatusInvalid)
	})

	t.Run("unknown or foreign object", func(t *testing.T) {
		e := newEnv(t)
		c := e.seedConsent(t)
		tok := e.token(t, c.ID)

		_, err := e.auths.StartAuthorisation(ctx, domain.AuthorisationAIS, tok, "another-tpp", psu1, "")
		requireCode(t, err, domain.CodeResourceUnknown)

		// an AIS consent is not a PIIS consent
		_, err = e.auths.StartAuthorisation(ctx, domain.AuthorisationPIIS, tok, testTpp, psu1, "")
		requireCode(t, err, domain.CodeResourceUnknown)

		_, err = e.auths.StartAuthorisation(ctx, domain.AuthorisationAIS, e.token(t, "01HQ7T3Z1MZ0JQ3M6MZQ1FQ3ZV"), testTpp, psu1, "")
		requireCode(t, err, domain.CodeResourceUnknown)
	})

	t.Run("undecryptable token is technical", func(t *testing.T) {
		e := newEnv(t)
		c := e.seedConsent(t)

		_, err := e.auths.StartAuthorisation(ctx, domain.AuthorisationAIS, c.ID, testTpp, psu1, "")
		h := requireCode(t, err, domain.CodeInternalServerError)
		require.Equal(t, domain.ErrorKindTechnical, h.Kind)
	})

	t.Run("bad approach", func(t *testing.T) {
		e := newEnv(t)
		c := e.seedConsent(t)
		_, err := e.auths.StartAuthorisation(ctx, domain.AuthorisationAIS, e.token(t, c.ID), testTpp, psu1, "OAUTH")
		requireCode(t, err, domain.CodeFormatError)
	})
}

func TestUpdatePsuDataChecksOwnership(t *testing.T) {
	e := newEnv(t)
	c := e.seedConsent(t)
	other := e.seedConsent(t)
	a := e.seedAuthorisation(t, other.ID, domain.AuthorisationAIS, domain.ScaStatusReceived)

	resp := e.update(t, domain.AuthorisationAIS, c.ID, a.ID, domain.UpdatePsuDataRequest{Password: "secret"})
	require.True(t, resp.Error.HasCode(domain.CodeResourceUnknown))

	resp = e.update(t, domain.AuthorisationAIS, c.ID, "missing", domain.UpdatePsuDataRequest{Password: "secret"})
	require.True(t, resp.Error.HasCode(domain.CodeResourceUnknown))

	resp = e.auths.UpdatePsuData(context.Background(), domain.AuthorisationAIS, domain.UpdatePsuDataRequest{
		BusinessObjectID: "garbage",
		AuthorisationID:  a.ID,
		TppID:            testTpp,
	})
	require.Equal(t, domain.ErrorKindTechnical, resp.Error.Kind)
	require.Equal(t, "garbage", resp.BusinessObjectID)
	require.Empty(t, e.bank.calls)
}

func TestGetScaStatus(t *testing.T) {
	e := newEnv(t)
	c := e.seedConsent(t)
	a := e.seedAuthorisation(t, c.ID, domain.AuthorisationAIS, domain.ScaStatusPsuAuthenticated)
	tok := e.token(t, c.ID)

	status, err := e.auths.GetScaStatus(context.Background(), domain.AuthorisationAIS, tok, testTpp, a.ID)
	require.NoError(t, err)
	require.Equal(t, domain.ScaStatusPsuAuthenticated, status)

	_, err = e.auths.GetScaStatus(context.Background(), domain.AuthorisationAIS, tok, testTpp, "nope")
	requireCode(t, err, domain.CodeResourceUnknown)
}

func TestPaymentCancellationFlow(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	p := e.seedPayment(t, func(p *domain.Payment) { p.TransactionStatus = domain.TransactionAcceptedSettlementProcess })
	tok := e.token(t, p.ID)

	// an accepted payment takes no more initiation authorisations
	_, err := e.auths.StartAuthorisation(ctx, domain.AuthorisationPISCreation, tok, testTpp, psu1, "")
	requireCode(t, err, domain.CodeStatusInvalid)

	start, err := e.auths.StartAuthorisation(ctx, domain.AuthorisationPISCancellation, tok, testTpp, psu1, "")
	require.NoError(t, err)

	e.bank.authorise = spi.StatusSuccess
	e.bank.methods = []domain.AuthenticationObject{smsOTP}
	e.bank.code = spi.AuthorisationCodeResult{ChosenMethod: smsOTP}
	resp := e.update(t, domain.AuthorisationPISCancellation, p.ID, start.AuthorisationID, domain.UpdatePsuDataRequest{Password: "secret"})
	require.False(t, resp.HasError(), resp.Error)
	require.Equal(t, domain.ScaStatusScaMethodSelected, resp.ScaStatus)

	e.bank.verify = spi.VerificationResult{Status: spi.StatusSuccess, ObjectStatus: string(domain.TransactionCancelled)}
	resp = e.update(t, domain.AuthorisationPISCancellation, p.ID, start.AuthorisationID, domain.UpdatePsuDataRequest{ScaAuthenticationData: "123456"})
	require.False(t, resp.HasError(), resp.Error)
	require.Equal(t, domain.ScaStatusFinalised, resp.ScaStatus)
	require.Equal(t, domain.TransactionCancelled, e.storedPayment(t, p.ID).TransactionStatus)
}

func TestCancellationWithoutMethodsKeepsPayment(t *testing.T) {
	e := newEnv(t)
	p := e.seedPayment(t, func(p *domain.Payment) { p.TransactionStatus = domain.TransactionAcceptedSettlementProcess })
	a := e.seedAuthorisation(t, p.ID, domain.AuthorisationPISCancellation, domain.ScaStatusPsuIdentified)
	e.bank.authorise = spi.StatusSuccess

	resp := e.update(t, domain.AuthorisationPISCancellation, p.ID, a.ID, domain.UpdatePsuDataRequest{Password: "secret"})

	require.True(t, resp.Error.HasCode(domain.CodeScaMethodUnknown))
	require.Equal(t, "PIS_400", resp.Error.ErrorType.String())
	require.Equal(t, domain.TransactionAcceptedSettlementProcess, e.storedPayment(t, p.ID).TransactionStatus)
	require.Equal(t, domain.ScaStatusFailed, e.storedAuth(t, a.ID).ScaStatus)
}
