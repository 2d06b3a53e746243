package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/life-admin-system/internal/model"
	"github.com/mmeshcher/life-admin-system/internal/notify"
	"github.com/mmeshcher/life-admin-system/internal/render"
	"github.com/mmeshcher/life-admin-system/internal/statement"
	"github.com/mmeshcher/life-admin-system/internal/validation"
)

// BillingStatement формирует счёт за месяц по точке удержания (идентификатор, код или название).
func (s *Service) BillingStatement(ctx context.Context, paypointRef string, month time.Time) (statement.Statement, error) {
	if month.IsZero() {
		return statement.Statement{}, invalid("month", "", "is required")
	}
	pp, err := s.GetPaypoint(ctx, paypointRef)
	if err != nil {
		return statement.Statement{}, err
	}

	records, err := s.repo.ListPolicies(ctx, model.PolicyFilter{PaypointID: &pp.ID})
	if err != nil {
		return statement.Statement{}, err
	}
	return statement.BuildBilling(pp.Code, records, month)
}

// CommissionStatement формирует ведомость комиссии агента за месяц.
// При save начисления за месяц сохраняются.
func (s *Service) CommissionStatement(ctx context.Context, agentCode string, month time.Time, save bool) (statement.Statement, error) {
	st, _, err := s.commissionStatement(ctx, agentCode, month, save)
	return st, err
}

func (s *Service) commissionStatement(ctx context.Context, agentCode string, month time.Time, save bool) (statement.Statement, *model.Agent, error) {
	if month.IsZero() {
		return statement.Statement{}, nil, invalid("month", "", "is required")
	}
	agent, err := s.GetAgent(ctx, agentCode)
	if err != nil {
		return statement.Statement{}, nil, err
	}

	records, err := s.repo.ListPolicies(ctx, model.PolicyFilter{AgentID: &agent.ID})
	if err != nil {
		return statement.Statement{}, nil, err
	}

	st, err := statement.BuildCommission(agent.Code, records, month)
	if err != nil {
		return statement.Statement{}, nil, err
	}

	if save {
		run, err := s.saveCommissions(ctx, records, month)
		if err != nil {
			return statement.Statement{}, nil, err
		}
		s.metrics.Commissions(run.Created, run.Updated, run.Skipped)
	}
	return st, agent, nil
}

// StatementPDF выводит отчёт в PDF с названием компании.
func (s *Service) StatementPDF(st statement.Statement) ([]byte, error) {
	return render.PDF(s.company, st)
}

// EmailCommissionStatement отправляет агенту ведомость комиссии за месяц во вложении PDF.
func (s *Service) EmailCommissionStatement(ctx context.Context, agentCode string, month time.Time, save bool) (statement.Statement, error) {
	st, agent, err := s.commissionStatement(ctx, agentCode, month, save)
	if err != nil {
		return statement.Statement{}, err
	}
	if !validation.IsValidEmail(agent.Email) {
		return statement.Statement{}, invalid("email", agent.Email, fmt.Sprintf("agent %s has no valid email address", agent.Code))
	}

	pdf, err := s.StatementPDF(st)
	if err != nil {
		return statement.Statement{}, err
	}

	msg := notify.Message{
		To:      []string{agent.Email},
		Subject: "Commission Statement - " + st.Label(),
		Body: fmt.Sprintf("Dear %s,\n\nPlease find attached your commission statement for %s.\nTotal commission: %s\n",
			agent.FullName(), st.Label(), st.TotalCommission.StringFixed(2)),
		Attachments: []notify.Attachment{
			{Filename: render.Filename(st, "pdf"), ContentType: "application/pdf", Data: pdf},
		},
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		return statement.Statement{}, fmt.Errorf("email commission statement: %w", err)
	}

	s.logger.Info("commission statement emailed",
		zap.String("agent", agent.Code),
		zap.String("month", st.Label()),
	)
	return st, nil
}
