package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/life-admin-system/internal/model"
)

// lockPolicy блокирует строку полиса до конца транзакции.
// Все изменения поступлений по полису проходят через эту блокировку.
func lockPolicy(ctx context.Context, tx pgx.Tx, query string, arg any) (int64, string, error) {
	var (
		id         int64
		contractID string
	)
	if err := tx.QueryRow(ctx, query, arg).Scan(&id, &contractID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, "", ErrPolicyNotFound
		}
		return 0, "", fmt.Errorf("lock policy: %w", err)
	}
	return id, contractID, nil
}

func receiptsSum(ctx context.Context, tx pgx.Tx, policyID int64) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := tx.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM premium_receipts WHERE policy_id = $1`, policyID,
	).Scan(&sum)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum receipts: %w", err)
	}
	return sum, nil
}

func setRunningTotal(ctx context.Context, tx pgx.Tx, policyID int64, total decimal.Decimal) error {
	if _, err := tx.Exec(ctx, `UPDATE policies SET total_received = $2 WHERE id = $1`, policyID, total); err != nil {
		return fmt.Errorf("update running total: %w", err)
	}
	return nil
}

// RecordPayment проводит поступление взноса по полису.
//
// Номер квитанции и нарастающий итог вычисляются в одной транзакции под
// блокировкой строки полиса; итог по полису пересчитывается суммой всех поступлений.
func (r *PostgresRepository) RecordPayment(ctx context.Context, contractID string, amount decimal.Decimal, actorID int64) (*model.PremiumReceipt, error) {
	var receipt model.PremiumReceipt

	err := r.inTx(ctx, func(tx pgx.Tx) error {
		policyID, contract, err := lockPolicy(ctx, tx,
			`SELECT id, contract_id FROM policies WHERE contract_id = $1 FOR UPDATE`, contractID)
		if err != nil {
			return err
		}

		n, err := nextNumber(ctx, tx, "premium_receipts", "receipt_no")
		if err != nil {
			return err
		}

		prev, err := receiptsSum(ctx, tx, policyID)
		if err != nil {
			return err
		}
		total := prev.Add(amount)

		receipt = model.PremiumReceipt{
			Number:        model.ReceiptCode(n),
			PolicyID:      policyID,
			ContractID:    contract,
			Amount:        amount,
			TotalReceived: total,
			ReceiptedBy:   actorID,
		}
		err = tx.QueryRow(ctx,
			`INSERT INTO premium_receipts (receipt_no, receipt_number, policy_id, amount, total_received, receipted_by)
			 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, received_at`,
			n, receipt.Number, policyID, amount, total, actorID,
		).Scan(&receipt.ID, &receipt.ReceivedAt)
		if err != nil {
			return fmt.Errorf("insert receipt: %w", err)
		}

		return setRunningTotal(ctx, tx, policyID, total)
	})
	if err != nil {
		return nil, err
	}
	return &receipt, nil
}

// ReversePayment удаляет квитанцию и пересчитывает итог по полису.
// Возвращает удалённую квитанцию и новый итог.
func (r *PostgresRepository) ReversePayment(ctx context.Context, number string) (*model.PremiumReceipt, decimal.Decimal, error) {
	var (
		receipt model.PremiumReceipt
		total   decimal.Decimal
	)

	err := r.inTx(ctx, func(tx pgx.Tx) error {
		var policyID int64
		err := tx.QueryRow(ctx,
			`SELECT policy_id FROM premium_receipts WHERE receipt_number = $1`, number,
		).Scan(&policyID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("%w: %s", ErrReceiptNotFound, number)
			}
			return fmt.Errorf("find receipt: %w", err)
		}

		if _, _, err := lockPolicy(ctx, tx,
			`SELECT id, contract_id FROM policies WHERE id = $1 FOR UPDATE`, policyID); err != nil {
			return err
		}

		err = tx.QueryRow(ctx,
			`DELETE FROM premium_receipts r USING policies p
			 WHERE r.receipt_number = $1 AND r.policy_id = $2 AND p.id = r.policy_id
			 RETURNING r.id, r.receipt_number, r.policy_id, p.contract_id, r.amount, r.total_received,
			           r.received_at, r.receipted_by`,
			number, policyID,
		).Scan(&receipt.ID, &receipt.Number, &receipt.PolicyID, &receipt.ContractID, &receipt.Amount,
			&receipt.TotalReceived, &receipt.ReceivedAt, &receipt.ReceiptedBy)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("%w: %s", ErrReceiptNotFound, number)
			}
			return fmt.Errorf("delete receipt: %w", err)
		}

		total, err = receiptsSum(ctx, tx, policyID)
		if err != nil {
			return err
		}
		return setRunningTotal(ctx, tx, policyID, total)
	})
	if err != nil {
		return nil, decimal.Zero, err
	}
	return &receipt, total, nil
}

// ListReceipts возвращает поступления по полису в порядке проведения.
func (r *PostgresRepository) ListReceipts(ctx context.Context, contractID string) ([]model.PremiumReceipt, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT r.id, r.receipt_number, r.policy_id, p.contract_id, r.amount, r.total_received,
		        r.received_at, r.receipted_by
		 FROM premium_receipts r
		 JOIN policies p ON p.id = r.policy_id
		 WHERE p.contract_id = $1
		 ORDER BY r.receipt_no`,
		contractID,
	)
	if err != nil {
		return nil, fmt.Errorf("list receipts: %w", err)
	}
	defer rows.Close()

	result := []model.PremiumReceipt{}
	for rows.Next() {
		var rc model.PremiumReceipt
		if err := rows.Scan(&rc.ID, &rc.Number, &rc.PolicyID, &rc.ContractID, &rc.Amount,
			&rc.TotalReceived, &rc.ReceivedAt, &rc.ReceiptedBy); err != nil {
			return nil, fmt.Errorf("scan receipt: %w", err)
		}
		result = append(result, rc)
	}
	return result, rows.Err()
}
