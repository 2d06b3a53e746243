package service

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/life-admin-system/internal/model"
	"github.com/mmeshcher/life-admin-system/internal/money"
)

// RecordPayment проводит поступление взноса по полису от имени сотрудника actorID.
// Сумма должна быть положительной и округляется до копеек.
func (s *Service) RecordPayment(ctx context.Context, actorID int64, contractID string, amount decimal.Decimal) (*model.PremiumReceipt, error) {
	amount = money.Round(amount)
	if !amount.IsPositive() {
		return nil, &InvalidAmountError{Amount: amount}
	}
	contractID = strings.ToUpper(strings.TrimSpace(contractID))
	if contractID == "" {
		return nil, invalid("contract_id", "", "is required")
	}

	receipt, err := s.repo.RecordPayment(ctx, contractID, amount, actorID)
	if err != nil {
		return nil, err
	}

	s.metrics.LedgerOperation("record")
	s.logger.Info("premium receipted",
		zap.String("receipt", receipt.Number),
		zap.String("contract_id", receipt.ContractID),
		zap.String("amount", receipt.Amount.StringFixed(2)),
		zap.String("total_received", receipt.TotalReceived.StringFixed(2)),
	)
	return receipt, nil
}

// ReversePayment сторнирует поступление: квитанция удаляется, итог по полису пересчитывается.
func (s *Service) ReversePayment(ctx context.Context, actorID int64, receiptNumber string) (*model.PremiumReceipt, decimal.Decimal, error) {
	receiptNumber = strings.TrimSpace(receiptNumber)
	if receiptNumber == "" {
		return nil, decimal.Zero, invalid("receipt_number", "", "is required")
	}

	receipt, total, err := s.repo.ReversePayment(ctx, receiptNumber)
	if err != nil {
		return nil, decimal.Zero, err
	}

	s.metrics.LedgerOperation("reverse")
	s.logger.Info("premium receipt reversed",
		zap.String("receipt", receipt.Number),
		zap.String("contract_id", receipt.ContractID),
		zap.String("total_received", total.StringFixed(2)),
		zap.Int64("actor", actorID),
	)
	return receipt, total, nil
}

// ListReceipts возвращает поступления по полису.
func (s *Service) ListReceipts(ctx context.Context, contractID string) ([]model.PremiumReceipt, error) {
	rec, err := s.loadPolicy(ctx, contractID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListReceipts(ctx, rec.ContractID)
}
