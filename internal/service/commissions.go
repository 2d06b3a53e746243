package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/life-admin-system/internal/commission"
	"github.com/mmeshcher/life-admin-system/internal/model"
	"github.com/mmeshcher/life-admin-system/internal/money"
)

// CommissionRun: итог начисления комиссии за месяц.
type CommissionRun struct {
	Month   time.Time
	Created int
	Updated int
	Skipped int
}

// GenerateCommissions начисляет комиссию за месяц по всем полисам.
// Повторный запуск за тот же месяц обновляет суммы и не создаёт дублей.
func (s *Service) GenerateCommissions(ctx context.Context, month time.Time) (CommissionRun, error) {
	if month.IsZero() {
		return CommissionRun{}, invalid("month", "", "is required")
	}

	records, err := s.repo.ListPolicies(ctx, model.PolicyFilter{})
	if err != nil {
		return CommissionRun{}, err
	}

	run, err := s.saveCommissions(ctx, records, month)
	if err != nil {
		return run, err
	}

	s.metrics.Commissions(run.Created, run.Updated, run.Skipped)
	s.logger.Info("commissions generated",
		zap.String("month", money.MonthLabel(run.Month)),
		zap.Int("created", run.Created),
		zap.Int("updated", run.Updated),
		zap.Int("skipped", run.Skipped),
	)
	return run, nil
}

// saveCommissions сохраняет начисления по полисам, которым положена комиссия.
// Каждое начисление сохраняется отдельной атомарной операцией.
func (s *Service) saveCommissions(ctx context.Context, records []model.PolicyRecord, month time.Time) (CommissionRun, error) {
	run := CommissionRun{Month: money.MonthStart(month)}

	for _, rec := range records {
		_, ok, err := commission.IsCommissionable(rec, run.Month)
		if err != nil {
			return run, fmt.Errorf("commissionable %s: %w", rec.ContractID, err)
		}
		if !ok {
			run.Skipped++
			continue
		}

		amount, err := commission.Monthly(rec.Terms())
		if err != nil {
			return run, fmt.Errorf("commission %s: %w", rec.ContractID, err)
		}

		created, err := s.repo.UpsertCommission(ctx, model.CommissionRecord{
			PolicyID:        rec.ID,
			ContractID:      rec.ContractID,
			AgentID:         *rec.AgentID,
			CommissionMonth: run.Month,
			CommissionDue:   amount.Commission,
		})
		if err != nil {
			return run, err
		}
		if created {
			run.Created++
		} else {
			run.Updated++
		}
	}
	return run, nil
}

// ListCommissions возвращает начисления за месяц.
func (s *Service) ListCommissions(ctx context.Context, month time.Time) ([]model.CommissionRecord, error) {
	if month.IsZero() {
		return nil, invalid("month", "", "is required")
	}
	return s.repo.ListCommissions(ctx, money.MonthStart(month))
}
