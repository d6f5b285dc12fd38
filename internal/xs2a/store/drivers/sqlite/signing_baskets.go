package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/xs2a/internal/xs2a/domain"
)

type signingBasketsRepo struct {
	q querier
}

const basketColumns = `id, transaction_status, tpp_id, psus, multilevel_sca_required,
	internal_request_id, created_at, status_changed_at`

const (
	itemConsent = "consent"
	itemPayment = "payment"
)

// CreateSigningBasket writes the basket row and one item row per reference.
// Callers wanting atomicity run it inside WithTx.
func (r *signingBasketsRepo) CreateSigningBasket(ctx context.Context, b domain.SigningBasket) error {
	psus, err := toJSON(nonNilPsus(b.Psus))
	if err != nil {
		return err
	}

	created := b.CreatedAt.UTC()
	if b.CreatedAt.IsZero() {
		created = now()
	}

	_, err = r.q.ExecContext(ctx, `INSERT INTO signing_baskets (`+basketColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, string(b.TransactionStatus), b.TppID, psus, b.MultilevelScaRequired,
		b.InternalRequestID, created, created,
	)
	if err != nil {
		return mapConflict(err)
	}

	insert := func(kind string, ids []string) error {
		for pos, id := range ids {
			if _, err := r.q.ExecContext(ctx, `INSERT INTO signing_basket_items
				(basket_id, object_type, object_id, position) VALUES (?, ?, ?, ?)`,
				b.ID, kind, id, pos,
			); err != nil {
				return err
			}
		}
		return nil
	}
	if err := insert(itemConsent, b.ConsentIDs); err != nil {
		return err
	}
	return insert(itemPayment, b.PaymentIDs)
}

func (r *signingBasketsRepo) GetSigningBasketByID(ctx context.Context, id string) (domain.SigningBasket, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+basketColumns+` FROM signing_baskets WHERE id = ?`, id)
	b, err := scanBasket(row)
	if err != nil {
		return domain.SigningBasket{}, mapNotFound(err)
	}
	if err := r.loadItems(ctx, &b); err != nil {
		return domain.SigningBasket{}, err
	}
	return b, nil
}

func (r *signingBasketsRepo) loadItems(ctx context.Context, b *domain.SigningBasket) error {
	rows, err := r.q.QueryContext(ctx, `SELECT object_type, object_id FROM signing_basket_items
		WHERE basket_id = ? ORDER BY object_type, position`, b.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var kind, id string
		if err := rows.Scan(&kind, &id); err != nil {
			return err
		}
		switch kind {
		case itemConsent:
			b.ConsentIDs = append(b.ConsentIDs, id)
		case itemPayment:
			b.PaymentIDs = append(b.PaymentIDs, id)
		}
	}
	return rows.Err()
}

func (r *signingBasketsRepo) UpdateTransactionStatus(ctx context.Context, id string, status domain.TransactionStatus) error {
	return expectOne(r.q.ExecContext(ctx,
		`UPDATE signing_baskets SET transaction_status = ?, status_changed_at = ? WHERE id = ?`,
		string(status), now(), id,
	))
}

func (r *signingBasketsRepo) UpdateMultilevelScaRequired(ctx context.Context, id string, required bool) error {
	return expectOne(r.q.ExecContext(ctx,
		`UPDATE signing_baskets SET multilevel_sca_required = ? WHERE id = ?`,
		required, id,
	))
}

func (r *signingBasketsRepo) AddPsu(ctx context.Context, id string, psu domain.PsuIdData) error {
	psu.PsuIPAddress = ""
	return addPsu(ctx, r.q, "signing_baskets", id, psu, psu.PsuID, psu.PsuCorporateID)
}

func (r *signingBasketsRepo) ListUnconfirmedBefore(ctx context.Context, before time.Time) ([]domain.SigningBasket, error) {
	return r.list(ctx, `SELECT `+basketColumns+` FROM signing_baskets
		WHERE transaction_status IN (?, ?, ?) AND created_at < ?
		ORDER BY created_at, id`,
		string(domain.TransactionReceived), string(domain.TransactionPartiallyAccepted),
		string(domain.TransactionAcceptedTechnical), before.UTC(),
	)
}

func (r *signingBasketsRepo) FindBasketsReferencing(ctx context.Context, objectID string) ([]domain.SigningBasket, error) {
	return r.list(ctx, `SELECT `+basketColumns+` FROM signing_baskets
		WHERE id IN (SELECT basket_id FROM signing_basket_items WHERE object_id = ?)
		ORDER BY created_at, id`, objectID)
}

func (r *signingBasketsRepo) list(ctx context.Context, query string, args ...any) ([]domain.SigningBasket, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	var out []domain.SigningBasket
	for rows.Next() {
		b, err := scanBasket(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	// close before issuing the item queries; in-memory stores hold one connection
	rows.Close()

	for i := range out {
		if err := r.loadItems(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func scanBasket(s scanner) (domain.SigningBasket, error) {
	var (
		b            domain.SigningBasket
		status, psus string
	)
	err := s.Scan(&b.ID, &status, &b.TppID, &psus, &b.MultilevelScaRequired,
		&b.InternalRequestID, &b.CreatedAt, &b.StatusChangedAt)
	if err != nil {
		return domain.SigningBasket{}, err
	}

	b.TransactionStatus = domain.TransactionStatus(status)
	if err := fromJSON(psus, &b.Psus); err != nil {
		return domain.SigningBasket{}, err
	}
	return b, nil
}
