// Package statement собирает строки счетов по точкам удержания и ведомостей комиссии агентов.
package statement

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/life-admin-system/internal/commission"
	"github.com/mmeshcher/life-admin-system/internal/lifecycle"
	"github.com/mmeshcher/life-admin-system/internal/model"
	"github.com/mmeshcher/life-admin-system/internal/money"
	"github.com/mmeshcher/life-admin-system/internal/valuation"
)

// Kind: вид отчёта.
type Kind string

const (
	KindBilling    Kind = "billing"
	KindCommission Kind = "commission"
)

// Row: строка отчёта по одному полису.
type Row struct {
	ContractID      string
	ClientName      string
	Status          lifecycle.Status
	AgentCode       string
	AgentName       string
	ContractPremium decimal.Decimal
	MonthlyPremium  decimal.Decimal
	Commission      decimal.Decimal
}

// Statement: упорядоченные строки отчёта и итоги.
type Statement struct {
	Kind            Kind
	Month           time.Time
	Subject         string
	Rows            []Row
	TotalPremium    decimal.Decimal
	TotalCommission decimal.Decimal
}

// Label возвращает подпись месяца отчёта.
func (s Statement) Label() string { return money.MonthLabel(s.Month) }

// BillingStatus возвращает статус полиса для счёта за месяц или пустую строку,
// если полис в счёт не попадает.
//
// В месяц начала действия полис без оплат и без задолженности выставляется
// со статусом "proposal accepted".
func BillingStatus(rec model.PolicyRecord, month time.Time) (lifecycle.Status, error) {
	month = money.MonthStart(month)
	start := money.MonthStart(rec.StartDate)
	if start.After(month) {
		return "", nil
	}

	snap, err := valuation.Evaluate(rec.Terms(), month)
	if err != nil {
		return "", fmt.Errorf("evaluate %s: %w", rec.ContractID, err)
	}
	st := snap.Standing(rec.TotalReceived)
	status := lifecycle.Resolve(st, rec.Claims, rec.Cancellation)

	if status == lifecycle.StatusDeath || status == lifecycle.StatusCancelled {
		return "", nil
	}
	if start.Equal(month) && st.MonthsPaid.LessThan(decimal.NewFromInt(1)) && !st.MonthsInArrears.IsPositive() {
		return lifecycle.StatusProposalAccepted, nil
	}
	if status == lifecycle.StatusActive {
		return status, nil
	}
	return "", nil
}

// BuildBilling формирует счёт за месяц по переданным полисам.
func BuildBilling(subject string, records []model.PolicyRecord, month time.Time) (Statement, error) {
	s := newStatement(KindBilling, subject, month)

	for _, rec := range sorted(records) {
		status, err := BillingStatus(rec, s.Month)
		if err != nil {
			return Statement{}, err
		}
		if status == "" {
			continue
		}

		premium, _, err := valuation.ContractPremium(rec.Cover, rec.Frequency)
		if err != nil {
			return Statement{}, fmt.Errorf("premium %s: %w", rec.ContractID, err)
		}

		s.Rows = append(s.Rows, Row{
			ContractID:      rec.ContractID,
			ClientName:      rec.ClientName,
			Status:          status,
			AgentCode:       rec.AgentCode,
			AgentName:       rec.AgentName,
			ContractPremium: premium,
		})
		s.TotalPremium = s.TotalPremium.Add(premium)
	}

	return s, nil
}

// BuildCommission формирует ведомость комиссии за месяц по переданным полисам.
func BuildCommission(subject string, records []model.PolicyRecord, month time.Time) (Statement, error) {
	s := newStatement(KindCommission, subject, month)

	for _, rec := range sorted(records) {
		status, ok, err := commission.IsCommissionable(rec, s.Month)
		if err != nil {
			return Statement{}, fmt.Errorf("commissionable %s: %w", rec.ContractID, err)
		}
		if !ok {
			continue
		}

		amount, err := commission.Monthly(rec.Terms())
		if err != nil {
			return Statement{}, fmt.Errorf("commission %s: %w", rec.ContractID, err)
		}
		premium, _, err := valuation.ContractPremium(rec.Cover, rec.Frequency)
		if err != nil {
			return Statement{}, fmt.Errorf("premium %s: %w", rec.ContractID, err)
		}

		s.Rows = append(s.Rows, Row{
			ContractID:      rec.ContractID,
			ClientName:      rec.ClientName,
			Status:          status,
			AgentCode:       rec.AgentCode,
			AgentName:       rec.AgentName,
			ContractPremium: premium,
			MonthlyPremium:  amount.MonthlyPremium,
			Commission:      amount.Commission,
		})
		s.TotalPremium = s.TotalPremium.Add(amount.MonthlyPremium)
		s.TotalCommission = s.TotalCommission.Add(amount.Commission)
	}

	return s, nil
}

func newStatement(kind Kind, subject string, month time.Time) Statement {
	return Statement{
		Kind:            kind,
		Month:           money.MonthStart(month),
		Subject:         subject,
		Rows:            []Row{},
		TotalPremium:    decimal.Zero,
		TotalCommission: decimal.Zero,
	}
}

func sorted(records []model.PolicyRecord) []model.PolicyRecord {
	out := make([]model.PolicyRecord, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ContractID < out[j].ContractID })
	return out
}
