package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/life-admin-system/internal/lifecycle"
	"github.com/mmeshcher/life-admin-system/internal/model"
	"github.com/mmeshcher/life-admin-system/internal/valuation"
)

// CreatePolicy сохраняет полис и присваивает ему номер договора вида P00001.
func (r *PostgresRepository) CreatePolicy(ctx context.Context, p model.Policy) (*model.Policy, error) {
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		n, err := nextNumber(ctx, tx, "policies", "contract_no")
		if err != nil {
			return err
		}
		p.ContractID = model.PolicyCode(n)

		return tx.QueryRow(ctx,
			`INSERT INTO policies (contract_no, contract_id, product_name, product_code, cover, frequency,
			     proposal_sign_date, start_date, beneficiary_name, beneficiary_id, agent_id, paypoint_id,
			     client_id, created_by)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
			 RETURNING id, total_received, created_at`,
			n, p.ContractID, string(p.Product), p.ProductCode, int(p.Cover), string(p.Frequency),
			p.ProposalSignDate, p.StartDate, p.BeneficiaryName, p.BeneficiaryID, p.AgentID, p.PaypointID,
			p.ClientID, p.CreatedBy,
		).Scan(&p.ID, &p.TotalReceived, &p.CreatedAt)
	})
	if err != nil {
		return nil, fmt.Errorf("create policy: %w", err)
	}
	return &p, nil
}

// PolicyExists сообщает, есть ли полис с теми же условиями, сторонами и датами.
func (r *PostgresRepository) PolicyExists(ctx context.Context, p model.Policy) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (
		     SELECT 1 FROM policies
		     WHERE product_name = $1 AND start_date = $2 AND proposal_sign_date = $3
		       AND beneficiary_id = $4 AND agent_id IS NOT DISTINCT FROM $5 AND paypoint_id = $6
		       AND client_id = $7 AND frequency = $8 AND cover = $9)`,
		string(p.Product), p.StartDate, p.ProposalSignDate, p.BeneficiaryID, p.AgentID, p.PaypointID,
		p.ClientID, string(p.Frequency), int(p.Cover),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("policy exists: %w", err)
	}
	return exists, nil
}

const policyRecordQuery = `
SELECT p.id, p.contract_id, p.product_name, p.product_code, p.cover, p.frequency,
       p.proposal_sign_date, p.start_date, p.beneficiary_name, p.beneficiary_id, p.agent_id,
       p.paypoint_id, p.client_id, p.total_received, p.created_by, p.created_at,
       c.name || ' ' || c.surname,
       COALESCE(a.agent_code, ''),
       COALESCE(a.name || ' ' || a.surname, ''),
       pp.name,
       COALESCE((SELECT array_agg(cl.status ORDER BY cl.id) FROM claims cl WHERE cl.policy_id = p.id), '{}'),
       COALESCE(cr.status, '')
FROM policies p
JOIN clients c ON c.id = p.client_id
JOIN paypoints pp ON pp.id = p.paypoint_id
LEFT JOIN agents a ON a.id = p.agent_id
LEFT JOIN cancellation_requests cr ON cr.policy_id = p.id`

func scanPolicyRecord(row pgx.Row) (*model.PolicyRecord, error) {
	var (
		rec          model.PolicyRecord
		product      string
		cover        int
		frequency    string
		claims       []string
		cancellation string
	)
	err := row.Scan(
		&rec.ID, &rec.ContractID, &product, &rec.ProductCode, &cover, &frequency,
		&rec.ProposalSignDate, &rec.StartDate, &rec.BeneficiaryName, &rec.BeneficiaryID, &rec.AgentID,
		&rec.PaypointID, &rec.ClientID, &rec.TotalReceived, &rec.CreatedBy, &rec.CreatedAt,
		&rec.ClientName, &rec.AgentCode, &rec.AgentName, &rec.PaypointName,
		&claims, &cancellation,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPolicyNotFound
		}
		return nil, fmt.Errorf("scan policy: %w", err)
	}

	rec.Product = valuation.Product(product)
	rec.Cover = valuation.Cover(cover)
	rec.Frequency = valuation.Frequency(frequency)
	rec.Claims = make([]lifecycle.RequestStatus, 0, len(claims))
	for _, c := range claims {
		rec.Claims = append(rec.Claims, lifecycle.RequestStatus(c))
	}
	rec.Cancellation = lifecycle.RequestStatus(cancellation)
	return &rec, nil
}

// GetPolicy возвращает полис по номеру договора вместе со связанными данными.
func (r *PostgresRepository) GetPolicy(ctx context.Context, contractID string) (*model.PolicyRecord, error) {
	return scanPolicyRecord(r.pool.QueryRow(ctx, policyRecordQuery+` WHERE p.contract_id = $1`, contractID))
}

// ListPolicies возвращает полисы, подходящие под фильтр, в порядке номеров договоров.
func (r *PostgresRepository) ListPolicies(ctx context.Context, filter model.PolicyFilter) ([]model.PolicyRecord, error) {
	rows, err := r.pool.Query(ctx,
		policyRecordQuery+`
		 WHERE ($1::bigint IS NULL OR p.paypoint_id = $1)
		   AND ($2::bigint IS NULL OR p.agent_id = $2)
		 ORDER BY p.contract_id`,
		filter.PaypointID, filter.AgentID,
	)
	if err != nil {
		return nil, fmt.Errorf("list policies: %w", err)
	}
	defer rows.Close()

	result := []model.PolicyRecord{}
	for rows.Next() {
		rec, err := scanPolicyRecord(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *rec)
	}
	return result, rows.Err()
}
