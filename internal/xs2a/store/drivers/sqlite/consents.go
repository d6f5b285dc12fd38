package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/xs2a/internal/xs2a/domain"
)

type consentsRepo struct {
	q querier
}

const consentColumns = `id, consent_type, status, tpp_id, psus, recurring, frequency_per_day,
	valid_until, access, multilevel_sca_required, internal_request_id, created_at, status_changed_at`

func (r *consentsRepo) CreateConsent(ctx context.Context, c domain.Consent) error {
	psus, err := toJSON(nonNilPsus(c.Psus))
	if err != nil {
		return err
	}
	access, err := toJSON(c.Access)
	if err != nil {
		return err
	}

	created := c.CreatedAt.UTC()
	if c.CreatedAt.IsZero() {
		created = now()
	}

	_, err = r.q.ExecContext(ctx, `INSERT INTO consents (`+consentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, string(c.Type), string(c.Status), c.TppID, psus, c.Recurring, c.FrequencyPerDay,
		mapTimeNull(c.ValidUntil), access, c.MultilevelScaRequired, c.InternalRequestID, created, created,
	)
	return mapConflict(err)
}

func (r *consentsRepo) GetConsentByID(ctx context.Context, id string) (domain.Consent, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+consentColumns+` FROM consents WHERE id = ?`, id)
	c, err := scanConsent(row)
	if err != nil {
		return domain.Consent{}, mapNotFound(err)
	}
	return c, nil
}

func (r *consentsRepo) UpdateConsentStatus(ctx context.Context, id string, status domain.ConsentStatus) error {
	return expectOne(r.q.ExecContext(ctx,
		`UPDATE consents SET status = ?, status_changed_at = ? WHERE id = ?`,
		string(status), now(), id,
	))
}

func (r *consentsRepo) UpdateMultilevelScaRequired(ctx context.Context, id string, required bool) error {
	return expectOne(r.q.ExecContext(ctx,
		`UPDATE consents SET multilevel_sca_required = ? WHERE id = ?`,
		required, id,
	))
}

func (r *consentsRepo) AddPsu(ctx context.Context, id string, psu domain.PsuIdData) error {
	psu.PsuIPAddress = ""
	return addPsu(ctx, r.q, "consents", id, psu, psu.PsuID, psu.PsuCorporateID)
}

func (r *consentsRepo) ListConsentsByTpp(ctx context.Context, tppID string, t domain.ConsentType, statuses ...domain.ConsentStatus) ([]domain.Consent, error) {
	query := `SELECT ` + consentColumns + ` FROM consents WHERE tpp_id = ? AND consent_type = ?`
	args := []any{tppID, string(t)}
	if len(statuses) > 0 {
		query += ` AND status IN (` + placeholders(len(statuses)) + `)`
		for _, s := range statuses {
			args = append(args, string(s))
		}
	}
	return r.list(ctx, query+` ORDER BY created_at, id`, args...)
}

func (r *consentsRepo) ListUnconfirmedBefore(ctx context.Context, t domain.ConsentType, before time.Time) ([]domain.Consent, error) {
	return r.list(ctx, `SELECT `+consentColumns+` FROM consents
		WHERE consent_type = ? AND status = ? AND created_at < ?
		ORDER BY created_at, id`,
		string(t), string(domain.ConsentReceived), before.UTC(),
	)
}

func (r *consentsRepo) list(ctx context.Context, query string, args ...any) ([]domain.Consent, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Consent
	for rows.Next() {
		c, err := scanConsent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanConsent(s scanner) (domain.Consent, error) {
	var (
		c            domain.Consent
		typ, status  string
		psus, access string
		validUntil   sql.NullTime
	)
	err := s.Scan(&c.ID, &typ, &status, &c.TppID, &psus, &c.Recurring, &c.FrequencyPerDay,
		&validUntil, &access, &c.MultilevelScaRequired, &c.InternalRequestID, &c.CreatedAt, &c.StatusChangedAt)
	if err != nil {
		return domain.Consent{}, err
	}

	c.Type = domain.ConsentType(typ)
	c.Status = domain.ConsentStatus(status)
	c.ValidUntil = mapNullTime(validUntil)
	if err := fromJSON(psus, &c.Psus); err != nil {
		return domain.Consent{}, err
	}
	if err := fromJSON(access, &c.Access); err != nil {
		return domain.Consent{}, err
	}
	return c, nil
}

func nonNilPsus(p []domain.PsuIdData) []domain.PsuIdData {
	if p == nil {
		return []domain.PsuIdData{}
	}
	return p
}
