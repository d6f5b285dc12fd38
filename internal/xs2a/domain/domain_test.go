package domain_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/aussiebroadwan/xs2a/internal/xs2a/domain"
	"github.com/stretchr/testify/require"
)

func TestScaStatusIsFinalised(t *testing.T) {
	final := []domain.ScaStatus{domain.ScaStatusFinalised, domain.ScaStatusFailed, domain.ScaStatusExempted}
	open := []domain.ScaStatus{
		domain.ScaStatusReceived, domain.ScaStatusPsuIdentified, domain.ScaStatusPsuAuthenticated,
		domain.ScaStatusScaMethodSelected, domain.ScaStatusStarted,
	}
	for _, s := range final {
		require.True(t, s.IsFinalised(), s)
	}
	for _, s := range open {
		require.False(t, s.IsFinalised(), s)
	}
}

func TestObjectStatusFinality(t *testing.T) {
	require.True(t, domain.ConsentRejected.IsFinalised())
	require.True(t, domain.ConsentTerminatedByTpp.IsFinalised())
	require.False(t, domain.ConsentValid.IsFinalised())
	require.False(t, domain.ConsentPartiallyAuthorised.IsFinalised())

	require.True(t, domain.TransactionAcceptedSettlementProcess.IsFinalised())
	require.True(t, domain.TransactionCancelled.IsFinalised())
	require.False(t, domain.TransactionPartiallyAccepted.IsFinalised())
	require.True(t, domain.TransactionPartiallyAccepted.IsInitial())
	require.False(t, domain.TransactionAcceptedCustomerProfile.IsInitial())
}

func TestPsuIdData(t *testing.T) {
	a := domain.PsuIdData{PsuID: "psu1", PsuIPAddress: "10.0.0.1"}
	b := domain.PsuIdData{PsuID: "psu1", PsuIPAddress: "10.0.0.2"}
	c := domain.PsuIdData{PsuID: "psu2"}

	require.True(t, domain.PsuIdData{}.IsEmpty())
	require.False(t, a.IsEmpty())
	require.True(t, a.Equal(b))
	require.False(t, a.Equal(c))
	require.True(t, domain.SamePsus([]domain.PsuIdData{a, c}, []domain.PsuIdData{c, b}))
	require.False(t, domain.SamePsus([]domain.PsuIdData{a}, []domain.PsuIdData{c}))
}

func TestConsentIsOneFactor(t *testing.T) {
	c := domain.Consent{
		Type:   domain.ConsentTypeAIS,
		Access: domain.AccountAccess{AvailableAccounts: domain.AccessAllAccounts},
	}
	require.True(t, c.IsOneFactor())

	recurring := c
	recurring.Recurring = true
	require.False(t, recurring.IsOneFactor())

	withBalances := c
	withBalances.Access.Balances = []string{"DE89370400440532013000"}
	require.False(t, withBalances.IsOneFactor())

	piis := c
	piis.Type = domain.ConsentTypePIIS
	require.False(t, piis.IsOneFactor())
}

func TestErrorHolder(t *testing.T) {
	tech := domain.TechnicalError(domain.ServiceSB)
	require.Equal(t, domain.ErrorKindTechnical, tech.Kind)
	require.Equal(t, http.StatusInternalServerError, tech.ErrorType.HTTPStatus)
	require.Equal(t, domain.CodeInternalServerError, tech.Code())
	require.Equal(t, "SB_500", tech.ErrorType.String())

	v := domain.ValidationError(domain.ServicePIS, domain.CodeProductUnknown, "sepa-instant")
	require.Equal(t, http.StatusNotFound, v.ErrorType.HTTPStatus)
	require.True(t, v.HasCode(domain.CodeProductUnknown))
	require.False(t, v.HasCode(domain.CodeFormatError))
	require.Contains(t, v.Error(), "PRODUCT_UNKNOWN: sepa-instant")

	var nilHolder *domain.ErrorHolder
	require.Empty(t, nilHolder.Code())
	require.Equal(t, http.StatusBadRequest, domain.MessageErrorCode("SOMETHING_NEW").HTTPStatus())
}

func TestAsErrorHolder(t *testing.T) {
	require.Nil(t, domain.AsErrorHolder(nil, domain.ServiceAIS))

	v := domain.ValidationError(domain.ServiceAIS, domain.CodeFormatError, "x")
	require.Same(t, v, domain.AsErrorHolder(fmt.Errorf("wrapped: %w", v), domain.ServiceAIS))

	h := domain.AsErrorHolder(errors.New("boom"), domain.ServicePIIS)
	require.Equal(t, domain.CodeInternalServerError, h.Code())
	require.Equal(t, domain.ServicePIIS, h.ErrorType.Service)
}
