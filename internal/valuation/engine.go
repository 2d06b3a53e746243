// Package valuation вычисляет производные показатели полиса: взнос по договору,
// срок действия, сумму к оплате, задолженность и количество оплаченных месяцев.
package valuation

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/life-admin-system/internal/money"
)

// Terms: статические условия полиса, необходимые для расчёта.
type Terms struct {
	Cover     Cover
	Frequency Frequency
	StartDate time.Time
}

// Snapshot: результат оценки полиса на конкретный месяц.
type Snapshot struct {
	Month           time.Time
	ContractPremium decimal.Decimal
	PeriodMonths    int
	Duration        int
	PeriodsElapsed  int
	TotalDue        decimal.Decimal
}

// Standing дополняет Snapshot данными об оплатах.
type Standing struct {
	Snapshot
	TotalReceived   decimal.Decimal
	Arrears         decimal.Decimal
	MonthsPaid      decimal.Decimal
	MonthsInArrears decimal.Decimal
}

// ContractPremium возвращает взнос за один расчётный период.
func ContractPremium(c Cover, f Frequency) (decimal.Decimal, int, error) {
	rate, err := MonthlyRate(c)
	if err != nil {
		return decimal.Zero, 0, err
	}
	period, err := PeriodMonths(f)
	if err != nil {
		return decimal.Zero, 0, err
	}
	return money.Round(rate.Mul(decimal.NewFromInt(int64(period)))), period, nil
}

// Evaluate оценивает полис на месяц month. Дата начала и месяц приводятся к первому числу.
// Если месяц раньше даты начала, срок считается нулевым.
func Evaluate(t Terms, month time.Time) (Snapshot, error) {
	premium, period, err := ContractPremium(t.Cover, t.Frequency)
	if err != nil {
		return Snapshot{}, err
	}

	month = money.MonthStart(month)
	duration := money.MonthsBetween(money.MonthStart(t.StartDate), month)
	if duration < 0 {
		duration = 0
	}
	periods := duration / period

	return Snapshot{
		Month:           month,
		ContractPremium: premium,
		PeriodMonths:    period,
		Duration:        duration,
		PeriodsElapsed:  periods,
		TotalDue:        money.Round(premium.Mul(decimal.NewFromInt(int64(periods)))),
	}, nil
}

// Standing рассчитывает задолженность и оплаченные месяцы по сумме поступлений.
func (s Snapshot) Standing(received decimal.Decimal) Standing {
	arrears := s.TotalDue.Sub(received)
	if arrears.IsNegative() {
		arrears = decimal.Zero
	}

	st := Standing{
		Snapshot:        s,
		TotalReceived:   received,
		Arrears:         arrears,
		MonthsPaid:      decimal.Zero,
		MonthsInArrears: decimal.Zero,
	}
	if s.ContractPremium.IsPositive() {
		st.MonthsPaid = money.Round(received.Div(s.ContractPremium))
		st.MonthsInArrears = money.Round(arrears.Div(s.ContractPremium))
	}
	return st
}
