package sqlite

import (
	"context"
	"database/sql"

	"github.com/aussiebroadwan/xs2a/internal/xs2a/domain"
)

type authorisationsRepo struct {
	q querier
}

const authorisationColumns = `id, parent_id, authorisation_type, psu, sca_status, sca_approach,
	chosen_method_id, available_methods, challenge_data, redirect_uri, created_at, updated_at`

func (r *authorisationsRepo) CreateAuthorisation(ctx context.Context, a domain.Authorisation) error {
	psu, methods, challenge, err := encodeAuthorisation(a)
	if err != nil {
		return err
	}

	created := a.CreatedAt.UTC()
	if a.CreatedAt.IsZero() {
		created = now()
	}

	_, err = r.q.ExecContext(ctx, `INSERT INTO authorisations (`+authorisationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.ParentID, string(a.Type), psu, string(a.ScaStatus), string(a.ScaApproach),
		a.ChosenMethodID, methods, challenge, a.RedirectURI, created, created,
	)
	return mapConflict(err)
}

func (r *authorisationsRepo) GetAuthorisationByID(ctx context.Context, id string) (domain.Authorisation, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+authorisationColumns+` FROM authorisations WHERE id = ?`, id)
	a, err := scanAuthorisation(row)
	if err != nil {
		return domain.Authorisation{}, mapNotFound(err)
	}
	return a, nil
}

func (r *authorisationsRepo) ListAuthorisationsByParent(ctx context.Context, parentID string, types ...domain.AuthorisationType) ([]domain.Authorisation, error) {
	query := `SELECT ` + authorisationColumns + ` FROM authorisations WHERE parent_id = ?`
	args := []any{parentID}
	if len(types) > 0 {
		query += ` AND authorisation_type IN (` + placeholders(len(types)) + `)`
		for _, t := range types {
			args = append(args, string(t))
		}
	}
	query += ` ORDER BY created_at, id`

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Authorisation
	for rows.Next() {
		a, err := scanAuthorisation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *authorisationsRepo) UpdateAuthorisation(ctx context.Context, a domain.Authorisation) error {
	psu, methods, challenge, err := encodeAuthorisation(a)
	if err != nil {
		return err
	}

	return expectOne(r.q.ExecContext(ctx, `UPDATE authorisations
		SET psu = ?, sca_status = ?, sca_approach = ?, chosen_method_id = ?,
		    available_methods = ?, challenge_data = ?, updated_at = ?
		WHERE id = ?`,
		psu, string(a.ScaStatus), string(a.ScaApproach), a.ChosenMethodID,
		methods, challenge, now(), a.ID,
	))
}

func (r *authorisationsRepo) UpdateScaStatus(ctx context.Context, id string, status domain.ScaStatus) error {
	return expectOne(r.q.ExecContext(ctx,
		`UPDATE authorisations SET sca_status = ?, updated_at = ? WHERE id = ?`,
		string(status), now(), id,
	))
}

func (r *authorisationsRepo) FailOpenAuthorisations(ctx context.Context, parentID string, types ...domain.AuthorisationType) (int64, error) {
	query := `UPDATE authorisations SET sca_status = ?, updated_at = ?
		WHERE parent_id = ? AND sca_status NOT IN (?, ?, ?)`
	args := []any{
		string(domain.ScaStatusFailed), now(), parentID,
		string(domain.ScaStatusFinalised), string(domain.ScaStatusFailed), string(domain.ScaStatusExempted),
	}
	if len(types) > 0 {
		query += ` AND authorisation_type IN (` + placeholders(len(types)) + `)`
		for _, t := range types {
			args = append(args, string(t))
		}
	}

	res, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAuthorisation(s scanner) (domain.Authorisation, error) {
	var (
		a                  domain.Authorisation
		typ, status, appr  string
		psu                string
		methods, challenge sql.NullString
	)
	err := s.Scan(&a.ID, &a.ParentID, &typ, &psu, &status, &appr,
		&a.ChosenMethodID, &methods, &challenge, &a.RedirectURI, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return domain.Authorisation{}, err
	}

	a.Type = domain.AuthorisationType(typ)
	a.ScaStatus = domain.ScaStatus(status)
	a.ScaApproach = domain.ScaApproach(appr)

	if err := fromJSON(psu, &a.Psu); err != nil {
		return domain.Authorisation{}, err
	}
	if err := fromJSON(mapNullString(methods), &a.AvailableMethods); err != nil {
		return domain.Authorisation{}, err
	}
	if challenge.Valid && challenge.String != "" {
		a.ChallengeData = new(domain.ChallengeData)
		if err := fromJSON(challenge.String, a.ChallengeData); err != nil {
			return domain.Authorisation{}, err
		}
	}
	return a, nil
}

func encodeAuthorisation(a domain.Authorisation) (psu string, methods, challenge sql.NullString, err error) {
	if psu, err = toJSON(a.Psu); err != nil {
		return
	}
	if a.AvailableMethods != nil {
		var s string
		if s, err = toJSON(a.AvailableMethods); err != nil {
			return
		}
		methods = sql.NullString{String: s, Valid: true}
	}
	if a.ChallengeData != nil {
		var s string
		if s, err = toJSON(a.ChallengeData); err != nil {
			return
		}
		challenge = sql.NullString{String: s, Valid: true}
	}
	return
}
