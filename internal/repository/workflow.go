package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/life-admin-system/internal/lifecycle"
	"github.com/mmeshcher/life-admin-system/internal/model"
)

const cancellationColumns = `cr.id, cr.policy_id, p.contract_id, cr.status, cr.effective_date,
       cr.requested_by, cr.requested_at, cr.approved_by, cr.approved_at`

func scanCancellation(row pgx.Row) (*model.CancellationRequest, error) {
	var (
		c      model.CancellationRequest
		status string
	)
	err := row.Scan(&c.ID, &c.PolicyID, &c.ContractID, &status, &c.EffectiveDate,
		&c.RequestedBy, &c.RequestedAt, &c.ApprovedBy, &c.ApprovedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCancellationNotFound
		}
		return nil, fmt.Errorf("scan cancellation: %w", err)
	}
	c.Status = lifecycle.RequestStatus(status)
	return &c, nil
}

// SaveCancellationRequest регистрирует заявку на расторжение.
// Отклонённая ранее заявка по тому же полису открывается заново; при наличии
// ожидающей или одобренной заявки возвращается ErrCancellationExists.
func (r *PostgresRepository) SaveCancellationRequest(ctx context.Context, req model.CancellationRequest) (*model.CancellationRequest, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO cancellation_requests (policy_id, status, effective_date, requested_by, requested_at)
		 VALUES ($1, 'REQUESTED', $2, $3, $4)
		 ON CONFLICT (policy_id) DO UPDATE
		 SET status = 'REQUESTED', effective_date = EXCLUDED.effective_date,
		     requested_by = EXCLUDED.requested_by, requested_at = EXCLUDED.requested_at,
		     approved_by = NULL, approved_at = NULL
		 WHERE cancellation_requests.status = 'REJECTED'
		 RETURNING id`,
		req.PolicyID, req.EffectiveDate, req.RequestedBy, req.RequestedAt,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: policy %s", ErrCancellationExists, req.ContractID)
		}
		return nil, fmt.Errorf("save cancellation: %w", err)
	}
	return r.GetCancellation(ctx, id)
}

// GetCancellation возвращает заявку на расторжение по идентификатору.
func (r *PostgresRepository) GetCancellation(ctx context.Context, id int64) (*model.CancellationRequest, error) {
	return scanCancellation(r.pool.QueryRow(ctx,
		`SELECT `+cancellationColumns+`
		 FROM cancellation_requests cr JOIN policies p ON p.id = cr.policy_id
		 WHERE cr.id = $1`, id))
}

// ListCancellations возвращает заявки на расторжение по фильтру, новые первыми.
func (r *PostgresRepository) ListCancellations(ctx context.Context, filter model.RequestFilter) ([]model.CancellationRequest, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+cancellationColumns+`
		 FROM cancellation_requests cr JOIN policies p ON p.id = cr.policy_id
		 WHERE ($1::text = '' OR cr.status = $1) AND ($2::bigint IS NULL OR cr.requested_by = $2)
		 ORDER BY cr.requested_at DESC, cr.id DESC`,
		string(filter.Status), filter.RequestedBy,
	)
	if err != nil {
		return nil, fmt.Errorf("list cancellations: %w", err)
	}
	defer rows.Close()

	result := []model.CancellationRequest{}
	for rows.Next() {
		c, err := scanCancellation(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *c)
	}
	return result, rows.Err()
}

// ResolveCancellation фиксирует решение по заявке на расторжение.
// Решение и его автор записываются одним условным обновлением только для заявки в состоянии REQUESTED.
func (r *PostgresRepository) ResolveCancellation(ctx context.Context, id int64, res model.Resolution) (*model.CancellationRequest, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE cancellation_requests SET status = $2, approved_by = $3, approved_at = $4
		 WHERE id = $1 AND status = 'REQUESTED'`,
		id, string(res.Status), res.By, res.At,
	)
	if err != nil {
		return nil, fmt.Errorf("resolve cancellation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetCancellation(ctx, id); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: cancellation %d", ErrNotPending, id)
	}
	return r.GetCancellation(ctx, id)
}

const claimColumns = `cl.id, cl.policy_id, p.contract_id, cl.claimant_name, cl.claimant_id_number, cl.bank_name,
       cl.account_number, cl.has_burial_order, cl.has_death_certificate, cl.status, cl.requested_by,
       cl.requested_at, cl.resolved_by, cl.resolved_at, cl.reject_reason`

func scanClaim(row pgx.Row) (*model.Claim, error) {
	var (
		c      model.Claim
		status string
	)
	err := row.Scan(&c.ID, &c.PolicyID, &c.ContractID, &c.ClaimantName, &c.ClaimantIDNumber, &c.BankName,
		&c.AccountNumber, &c.HasBurialOrder, &c.HasDeathCertificate, &status, &c.RequestedBy,
		&c.RequestedAt, &c.ResolvedBy, &c.ResolvedAt, &c.RejectReason)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrClaimNotFound
		}
		return nil, fmt.Errorf("scan claim: %w", err)
	}
	c.Status = lifecycle.RequestStatus(status)
	return &c, nil
}

// CreateClaim регистрирует заявление на выплату в состоянии REQUESTED.
func (r *PostgresRepository) CreateClaim(ctx context.Context, c model.Claim) (*model.Claim, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO claims (policy_id, claimant_name, claimant_id_number, bank_name, account_number,
		     has_burial_order, has_death_certificate, status, requested_by, requested_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, 'REQUESTED', $8, $9) RETURNING id`,
		c.PolicyID, c.ClaimantName, c.ClaimantIDNumber, c.BankName, c.AccountNumber,
		c.HasBurialOrder, c.HasDeathCertificate, c.RequestedBy, c.RequestedAt,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("create claim: %w", err)
	}
	return r.GetClaim(ctx, id)
}

// GetClaim возвращает заявление на выплату по идентификатору.
func (r *PostgresRepository) GetClaim(ctx context.Context, id int64) (*model.Claim, error) {
	return scanClaim(r.pool.QueryRow(ctx,
		`SELECT `+claimColumns+` FROM claims cl JOIN policies p ON p.id = cl.policy_id WHERE cl.id = $1`, id))
}

// ListClaims возвращает заявления на выплату по фильтру, новые первыми.
func (r *PostgresRepository) ListClaims(ctx context.Context, filter model.RequestFilter) ([]model.Claim, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+claimColumns+`
		 FROM claims cl JOIN policies p ON p.id = cl.policy_id
		 WHERE ($1::text = '' OR cl.status = $1) AND ($2::bigint IS NULL OR cl.requested_by = $2)
		 ORDER BY cl.requested_at DESC, cl.id DESC`,
		string(filter.Status), filter.RequestedBy,
	)
	if err != nil {
		return nil, fmt.Errorf("list claims: %w", err)
	}
	defer rows.Close()

	result := []model.Claim{}
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *c)
	}
	return result, rows.Err()
}

// ResolveClaim фиксирует решение по заявлению на выплату условным обновлением.
func (r *PostgresRepository) ResolveClaim(ctx context.Context, id int64, res model.Resolution) (*model.Claim, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE claims SET status = $2, resolved_by = $3, resolved_at = $4, reject_reason = $5
		 WHERE id = $1 AND status = 'REQUESTED'`,
		id, string(res.Status), res.By, res.At, res.Reason,
	)
	if err != nil {
		return nil, fmt.Errorf("resolve claim: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetClaim(ctx, id); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: claim %d", ErrNotPending, id)
	}
	return r.GetClaim(ctx, id)
}
