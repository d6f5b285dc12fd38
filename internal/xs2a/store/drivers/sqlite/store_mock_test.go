package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/aussiebroadwan/xs2a/internal/xs2a/domain"
	"github.com/aussiebroadwan/xs2a/internal/xs2a/store"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return newStore(db, "sqlmock"), mock
}

func TestUpdateScaStatusIsSingleStatement(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectExec(`UPDATE authorisations SET sca_status = \?, updated_at = \? WHERE id = \?`).
		WithArgs("failed", sqlmock.AnyArg(), "a1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.Authorisations().UpdateScaStatus(ctx, "a1", domain.ScaStatusFailed))

	mock.ExpectExec(`UPDATE authorisations SET sca_status`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.ErrorIs(t, s.Authorisations().UpdateScaStatus(ctx, "a2", domain.ScaStatusFailed), store.ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFailOpenAuthorisationsFiltersTypes(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE authorisations SET sca_status = \?.*sca_status NOT IN \(\?, \?, \?\) AND authorisation_type IN \(\?, \?\)`).
		WithArgs("failed", sqlmock.AnyArg(), "p1", "finalised", "failed", "exempted", "PIS_CREATION", "PIS_CANCELLATION").
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := s.Authorisations().FailOpenAuthorisations(context.Background(), "p1",
		domain.AuthorisationPISCreation, domain.AuthorisationPISCancellation)
	require.NoError(t, err)
	require.EqualValues(t, 2, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreErrorsPropagate(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()
	down := errors.New("database is locked")

	mock.ExpectQuery(`SELECT .* FROM consents WHERE id = \?`).WillReturnError(down)
	_, err := s.Consents().GetConsentByID(ctx, "c1")
	require.ErrorIs(t, err, down)

	mock.ExpectQuery(`SELECT .* FROM payments WHERE id = \?`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	_, err = s.Payments().GetPaymentByID(ctx, "p1")
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateSigningBasketRollsBackOnItemFailure(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO signing_baskets`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO signing_basket_items`).
		WithArgs("b1", "consent", "c1", 0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO signing_basket_items`).
		WithArgs("b1", "payment", "p1", 0).
		WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	err := s.WithTx(ctx, func(tx store.Tx) error {
		return tx.SigningBaskets().CreateSigningBasket(ctx, domain.SigningBasket{
			ID:                "b1",
			TransactionStatus: domain.TransactionReceived,
			ConsentIDs:        []string{"c1"},
			PaymentIDs:        []string{"p1"},
		})
	})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAddPsuUsesSingleUpdate(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE consents\s+SET psus = json_insert\(psus, '\$\[#\]', json\(\?\)\)`).
		WithArgs(`{"psuId":"alice"}`, "c1", "alice", "").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT 1 FROM consents WHERE id = \?`).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

	require.NoError(t, s.Consents().AddPsu(context.Background(), "c1", domain.PsuIdData{PsuID: "alice", PsuIPAddress: "1.2.3.4"}))
	require.NoError(t, mock.ExpectationsWereMet())
}
