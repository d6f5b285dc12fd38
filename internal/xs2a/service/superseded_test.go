package service

import (
	"context"
	"testing"

	"github.com/aussiebroadwan/xs2a/internal/xs2a/domain"
	"github.com/aussiebroadwan/xs2a/internal/xs2a/spi"
	"github.com/stretchr/testify/require"
)

func TestSameTppAndPsuPolicy(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	valid := func(c *domain.Consent) { c.Status = domain.ConsentValid }

	older := e.seedConsent(t, valid)
	otherPsu := e.seedConsent(t, valid, func(c *domain.Consent) { c.Psus = []domain.PsuIdData{{PsuID: "psu2"}} })
	otherTpp := e.seedConsent(t, valid, func(c *domain.Consent) { c.TppID = "someone-else" })
	oneOff := e.seedConsent(t, valid, func(c *domain.Consent) { c.Recurring = false })
	newer := e.seedConsent(t, valid)

	n, err := SameTppAndPsuPolicy{}.TerminateSuperseded(ctx, e.store, newer.ID)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	require.Equal(t, domain.ConsentTerminatedByTpp, e.storedConsent(t, older.ID).Status)
	require.Equal(t, domain.ConsentValid, e.storedConsent(t, otherPsu.ID).Status)
	require.Equal(t, domain.ConsentValid, e.storedConsent(t, otherTpp.ID).Status)
	require.Equal(t, domain.ConsentValid, e.storedConsent(t, oneOff.ID).Status)
	require.Equal(t, domain.ConsentValid, e.storedConsent(t, newer.ID).Status)

	// a consent that is not valid yet supersedes nothing
	pending := e.seedConsent(t)
	n, err = SameTppAndPsuPolicy{}.TerminateSuperseded(ctx, e.store, pending.ID)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestVerificationTerminatesSupersededConsent(t *testing.T) {
	e := newEnv(t)
	older := e.seedConsent(t, func(c *domain.Consent) { c.Status = domain.ConsentValid })
	c := e.seedConsent(t)
	a := e.seedAuthorisation(t, c.ID, domain.AuthorisationAIS, domain.ScaStatusScaMethodSelected, func(a *domain.Authorisation) {
		a.ChosenMethodID = "sms"
	})
	e.bank.verify = spi.VerificationResult{Status: spi.StatusSuccess, ObjectStatus: string(domain.ConsentValid)}

	resp := e.update(t, domain.AuthorisationAIS, c.ID, a.ID, domain.UpdatePsuDataRequest{ScaAuthenticationData: "123456"})

	require.Equal(t, domain.ScaStatusFinalised, resp.ScaStatus)
	require.Equal(t, domain.ConsentTerminatedByTpp, e.storedConsent(t, older.ID).Status)
	require.Equal(t, domain.ConsentValid, e.storedConsent(t, c.ID).Status)
}

func TestPiisConsentKeepsOthers(t *testing.T) {
	e := newEnv(t)
	piis := func(c *domain.Consent) {
		c.Type = domain.ConsentTypePIIS
		c.Access = domain.AccountAccess{Accounts: []string{"DE89370400440532013000"}}
	}
	older := e.seedConsent(t, piis, func(c *domain.Consent) { c.Status = domain.ConsentValid })
	c := e.seedConsent(t, piis)
	a := e.seedAuthorisation(t, c.ID, domain.AuthorisationPIIS, domain.ScaStatusScaMethodSelected)
	e.bank.verify = spi.VerificationResult{Status: spi.StatusSuccess, ObjectStatus: string(domain.ConsentValid)}

	resp := e.update(t, domain.AuthorisationPIIS, c.ID, a.ID, domain.UpdatePsuDataRequest{ScaAuthenticationData: "123456"})

	require.Equal(t, domain.ScaStatusFinalised, resp.ScaStatus)
	require.Equal(t, domain.ConsentValid, e.storedConsent(t, older.ID).Status)
}
