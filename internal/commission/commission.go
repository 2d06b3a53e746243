// Package commission рассчитывает агентскую комиссию по полисам.
package commission

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/life-admin-system/internal/lifecycle"
	"github.com/mmeshcher/life-admin-system/internal/model"
	"github.com/mmeshcher/life-admin-system/internal/money"
	"github.com/mmeshcher/life-admin-system/internal/valuation"
)

// Rate: фиксированная ставка комиссии от месячного взноса.
var Rate = decimal.RequireFromString("0.10")

// Amount: месячный эквивалент взноса и комиссия с него.
type Amount struct {
	MonthlyPremium decimal.Decimal
	Commission     decimal.Decimal
}

// MonthlyEquivalent переводит взнос за период в месячный.
func MonthlyEquivalent(contractPremium decimal.Decimal, periodMonths int) decimal.Decimal {
	if periodMonths <= 0 {
		panic("commission: period length must be positive")
	}
	return money.Round(contractPremium.Div(decimal.NewFromInt(int64(periodMonths))))
}

// Monthly рассчитывает месячную комиссию для условий полиса.
func Monthly(t valuation.Terms) (Amount, error) {
	premium, period, err := valuation.ContractPremium(t.Cover, t.Frequency)
	if err != nil {
		return Amount{}, err
	}
	monthly := MonthlyEquivalent(premium, period)
	return Amount{
		MonthlyPremium: monthly,
		Commission:     money.Round(monthly.Mul(Rate)),
	}, nil
}

// IsCommissionable сообщает, положена ли комиссия по полису за месяц.
// Если комиссия положена, возвращает и итоговый статус полиса на этот месяц.
func IsCommissionable(rec model.PolicyRecord, month time.Time) (lifecycle.Status, bool, error) {
	if rec.AgentID == nil {
		return "", false, nil
	}
	month = money.MonthStart(month)
	if money.MonthStart(rec.StartDate).After(month) {
		return "", false, nil
	}
	if rec.Cancellation == lifecycle.RequestApproved {
		return "", false, nil
	}

	status, err := OverallStatus(rec, month)
	if err != nil {
		return "", false, err
	}
	return status, status == lifecycle.StatusActive || status == lifecycle.StatusDeath, nil
}

// OverallStatus оценивает полис на месяц и возвращает его итоговый статус.
func OverallStatus(rec model.PolicyRecord, month time.Time) (lifecycle.Status, error) {
	snap, err := valuation.Evaluate(rec.Terms(), month)
	if err != nil {
		return "", err
	}
	return lifecycle.Resolve(snap.Standing(rec.TotalReceived), rec.Claims, rec.Cancellation), nil
}
