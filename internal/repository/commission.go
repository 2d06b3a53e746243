package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/mmeshcher/life-admin-system/internal/model"
)

// UpsertCommission сохраняет начисление комиссии за месяц. Повторное начисление
// по тому же полису и месяцу обновляет сумму. created сообщает, была ли запись новой.
func (r *PostgresRepository) UpsertCommission(ctx context.Context, rec model.CommissionRecord) (bool, error) {
	var created bool
	err := r.withRetry(ctx, func() error {
		return r.pool.QueryRow(ctx,
			`INSERT INTO commission_records (policy_id, agent_id, commission_month, commission_due)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (policy_id, commission_month) DO UPDATE
			 SET commission_due = EXCLUDED.commission_due, agent_id = EXCLUDED.agent_id
			 RETURNING (xmax = 0)`,
			rec.PolicyID, rec.AgentID, rec.CommissionMonth, rec.CommissionDue,
		).Scan(&created)
	})
	if err != nil {
		return false, fmt.Errorf("upsert commission: %w", err)
	}
	return created, nil
}

// ListCommissions возвращает начисления комиссии за месяц.
func (r *PostgresRepository) ListCommissions(ctx context.Context, month time.Time) ([]model.CommissionRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT cr.id, cr.policy_id, p.contract_id, cr.agent_id, cr.commission_month, cr.commission_due, cr.created_at
		 FROM commission_records cr JOIN policies p ON p.id = cr.policy_id
		 WHERE cr.commission_month = $1
		 ORDER BY p.contract_id`,
		month,
	)
	if err != nil {
		return nil, fmt.Errorf("list commissions: %w", err)
	}
	defer rows.Close()

	result := []model.CommissionRecord{}
	for rows.Next() {
		var c model.CommissionRecord
		if err := rows.Scan(&c.ID, &c.PolicyID, &c.ContractID, &c.AgentID, &c.CommissionMonth,
			&c.CommissionDue, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan commission: %w", err)
		}
		result = append(result, c)
	}
	return result, rows.Err()
}
