package sqlite

import (
	"context"
	"database/sql"

	"github.com/aussiebroadwan/xs2a/internal/xs2a/store"
)

type txStore struct {
	tx *sql.Tx
}

func newTx(tx *sql.Tx) *txStore {
	return &txStore{tx: tx}
}

func (t *txStore) Commit() error   { return t.tx.Commit() }
func (t *txStore) Rollback() error { return t.tx.Rollback() }

// nothing to close; caller will commit/rollback and outer DB stays open
func (t *txStore) Close() error { return nil }

// Ping is a no-op: the connection is held by the transaction.
func (t *txStore) Ping(ctx context.Context) error { return nil }

// Nested transactions are not supported.
func (t *txStore) Tx(ctx context.Context) (store.Tx, error) {
	return nil, sql.ErrTxDone
}

func (t *txStore) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return sql.ErrTxDone
}

func (t *txStore) Authorisations() store.Authorisations { return &authorisationsRepo{q: t.tx} }
func (t *txStore) Consents() store.Consents             { return &consentsRepo{q: t.tx} }
func (t *txStore) Payments() store.Payments             { return &paymentsRepo{q: t.tx} }
func (t *txStore) SigningBaskets() store.SigningBaskets { return &signingBasketsRepo{q: t.tx} }

// migrations are applied before any transaction is started
func (t *txStore) ApplyMigrations() error { return nil }
