package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/life-admin-system/internal/lifecycle"
	"github.com/mmeshcher/life-admin-system/internal/model"
	"github.com/mmeshcher/life-admin-system/internal/money"
	"github.com/mmeshcher/life-admin-system/internal/repository"
	"github.com/mmeshcher/life-admin-system/internal/valuation"
)

// NewPolicy: данные для оформления полиса. Агент необязателен.
type NewPolicy struct {
	Product          valuation.Product
	Cover            valuation.Cover
	Frequency        valuation.Frequency
	ProposalSignDate time.Time
	StartDate        time.Time
	BeneficiaryName  string
	BeneficiaryID    string
	AgentCode        string
	PaypointCode     string
	ClientCode       string
}

// PolicyView: полис с оценкой на месяц и итоговым статусом.
type PolicyView struct {
	Record   model.PolicyRecord
	Standing valuation.Standing
	Status   lifecycle.Status
}

// preparePolicy проверяет условия полиса и нормализует даты.
// Дата начала приводится к первому числу месяца.
func (s *Service) preparePolicy(p *model.Policy) error {
	if !p.Product.Valid() {
		return invalid("product", string(p.Product), "must be AFFINITY or FUNERAL")
	}
	if !p.Cover.Valid() {
		return invalid("cover", fmt.Sprint(int(p.Cover)), "must be 500, 1000 or 2000")
	}
	if !p.Frequency.Valid() {
		return invalid("frequency", string(p.Frequency), "must be M, Q, H or Y")
	}
	if p.ProposalSignDate.IsZero() {
		return invalid("proposal_sign_date", "", "is required")
	}
	if p.StartDate.IsZero() {
		return invalid("start_date", "", "is required")
	}

	p.ProposalSignDate = money.Date(p.ProposalSignDate)
	p.StartDate = money.MonthStart(p.StartDate)

	if p.ProposalSignDate.After(s.today()) {
		return invalid("proposal_sign_date", p.ProposalSignDate.Format(time.DateOnly), "cannot be in the future")
	}
	if !p.StartDate.After(p.ProposalSignDate) {
		return invalid("start_date", p.StartDate.Format(time.DateOnly), "must be after the proposal sign date")
	}

	code, err := valuation.ProductCode(p.Product)
	if err != nil {
		return err
	}
	p.ProductCode = code
	p.BeneficiaryName = strings.TrimSpace(p.BeneficiaryName)
	p.BeneficiaryID = strings.TrimSpace(p.BeneficiaryID)
	return nil
}

// CreatePolicy оформляет полис от имени сотрудника actorID.
func (s *Service) CreatePolicy(ctx context.Context, actorID int64, in NewPolicy) (*model.Policy, error) {
	p := model.Policy{
		Product:          in.Product,
		Cover:            in.Cover,
		Frequency:        in.Frequency,
		ProposalSignDate: in.ProposalSignDate,
		StartDate:        in.StartDate,
		BeneficiaryName:  in.BeneficiaryName,
		BeneficiaryID:    in.BeneficiaryID,
		CreatedBy:        actorID,
	}
	if err := s.preparePolicy(&p); err != nil {
		return nil, err
	}

	client, err := s.GetClient(ctx, in.ClientCode)
	if err != nil {
		return nil, err
	}
	p.ClientID = client.ID

	paypoint, err := s.GetPaypoint(ctx, in.PaypointCode)
	if err != nil {
		return nil, err
	}
	p.PaypointID = paypoint.ID

	if strings.TrimSpace(in.AgentCode) != "" {
		agent, err := s.GetAgent(ctx, in.AgentCode)
		if err != nil {
			return nil, err
		}
		p.AgentID = &agent.ID
	}

	created, err := s.repo.CreatePolicy(ctx, p)
	if err != nil {
		return nil, err
	}
	s.logger.Info("policy created",
		zap.String("contract_id", created.ContractID),
		zap.Int64("actor", actorID),
	)
	return created, nil
}

// GetPolicy возвращает полис с оценкой на месяц month (при нулевом значении берётся текущий месяц).
func (s *Service) GetPolicy(ctx context.Context, contractID string, month time.Time) (*PolicyView, error) {
	rec, err := s.loadPolicy(ctx, contractID)
	if err != nil {
		return nil, err
	}
	if month.IsZero() {
		month = s.now()
	}
	return evaluate(*rec, month)
}

func evaluate(rec model.PolicyRecord, month time.Time) (*PolicyView, error) {
	snap, err := valuation.Evaluate(rec.Terms(), month)
	if err != nil {
		return nil, fmt.Errorf("evaluate %s: %w", rec.ContractID, err)
	}
	st := snap.Standing(rec.TotalReceived)
	return &PolicyView{
		Record:   rec,
		Standing: st,
		Status:   lifecycle.Resolve(st, rec.Claims, rec.Cancellation),
	}, nil
}

// PolicyQuery: фильтр списка полисов по кодам агента и точки удержания.
type PolicyQuery struct {
	AgentCode string
	Paypoint  string
}

// ListPolicies возвращает полисы с оценкой на месяц month.
func (s *Service) ListPolicies(ctx context.Context, q PolicyQuery, month time.Time) ([]PolicyView, error) {
	var filter model.PolicyFilter
	if q.AgentCode != "" {
		a, err := s.GetAgent(ctx, q.AgentCode)
		if err != nil {
			return nil, err
		}
		filter.AgentID = &a.ID
	}
	if q.Paypoint != "" {
		p, err := s.GetPaypoint(ctx, q.Paypoint)
		if err != nil {
			return nil, err
		}
		filter.PaypointID = &p.ID
	}

	records, err := s.repo.ListPolicies(ctx, filter)
	if err != nil {
		return nil, err
	}
	if month.IsZero() {
		month = s.now()
	}

	views := make([]PolicyView, 0, len(records))
	for _, rec := range records {
		v, err := evaluate(rec, month)
		if err != nil {
			return nil, err
		}
		views = append(views, *v)
	}
	return views, nil
}

// loadPolicy возвращает полис по номеру договора или ошибку ErrPolicyNotFound.
func (s *Service) loadPolicy(ctx context.Context, contractID string) (*model.PolicyRecord, error) {
	contractID = strings.ToUpper(strings.TrimSpace(contractID))
	if contractID == "" {
		return nil, invalid("contract_id", "", "is required")
	}
	rec, err := s.repo.GetPolicy(ctx, contractID)
	if err != nil {
		if errors.Is(err, repository.ErrPolicyNotFound) {
			return nil, fmt.Errorf("%w: %s", repository.ErrPolicyNotFound, contractID)
		}
		return nil, err
	}
	return rec, nil
}
