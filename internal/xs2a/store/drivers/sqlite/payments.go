package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/xs2a/internal/xs2a/domain"
)

type paymentsRepo struct {
	q querier
}

const paymentColumns = `id, payment_product, payment_type, transaction_status, tpp_id, psus,
	amount, currency, debtor_iban, creditor_iban, creditor_name, remittance_information,
	multilevel_sca_required, internal_request_id, created_at, status_changed_at`

func (r *paymentsRepo) CreatePayment(ctx context.Context, p domain.Payment) error {
	psus, err := toJSON(nonNilPsus(p.Psus))
	if err != nil {
		return err
	}

	created := p.CreatedAt.UTC()
	if p.CreatedAt.IsZero() {
		created = now()
	}

	_, err = r.q.ExecContext(ctx, `INSERT INTO payments (`+paymentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.PaymentProduct, string(p.PaymentType), string(p.TransactionStatus), p.TppID, psus,
		p.Amount, p.Currency, p.DebtorIBAN, p.CreditorIBAN, p.CreditorName, p.RemittanceInformation,
		p.MultilevelScaRequired, p.InternalRequestID, created, created,
	)
	return mapConflict(err)
}

func (r *paymentsRepo) GetPaymentByID(ctx context.Context, id string) (domain.Payment, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = ?`, id)
	p, err := scanPayment(row)
	if err != nil {
		return domain.Payment{}, mapNotFound(err)
	}
	return p, nil
}

func (r *paymentsRepo) UpdateTransactionStatus(ctx context.Context, id string, status domain.TransactionStatus) error {
	return expectOne(r.q.ExecContext(ctx,
		`UPDATE payments SET transaction_status = ?, status_changed_at = ? WHERE id = ?`,
		string(status), now(), id,
	))
}

func (r *paymentsRepo) UpdateMultilevelScaRequired(ctx context.Context, id string, required bool) error {
	return expectOne(r.q.ExecContext(ctx,
		`UPDATE payments SET multilevel_sca_required = ? WHERE id = ?`,
		required, id,
	))
}

func (r *paymentsRepo) AddPsu(ctx context.Context, id string, psu domain.PsuIdData) error {
	psu.PsuIPAddress = ""
	return addPsu(ctx, r.q, "payments", id, psu, psu.PsuID, psu.PsuCorporateID)
}

func (r *paymentsRepo) ListUnconfirmedBefore(ctx context.Context, before time.Time) ([]domain.Payment, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+paymentColumns+` FROM payments
		WHERE transaction_status IN (?, ?, ?) AND created_at < ?
		ORDER BY created_at, id`,
		string(domain.TransactionReceived), string(domain.TransactionPartiallyAccepted),
		string(domain.TransactionAcceptedTechnical), before.UTC(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPayment(s scanner) (domain.Payment, error) {
	var (
		p                 domain.Payment
		typ, status, psus string
	)
	err := s.Scan(&p.ID, &p.PaymentProduct, &typ, &status, &p.TppID, &psus,
		&p.Amount, &p.Currency, &p.DebtorIBAN, &p.CreditorIBAN, &p.CreditorName, &p.RemittanceInformation,
		&p.MultilevelScaRequired, &p.InternalRequestID, &p.CreatedAt, &p.StatusChangedAt)
	if err != nil {
		return domain.Payment{}, err
	}

	p.PaymentType = domain.PaymentType(typ)
	p.TransactionStatus = domain.TransactionStatus(status)
	if err := fromJSON(psus, &p.Psus); err != nil {
		return domain.Payment{}, err
	}
	return p, nil
}
