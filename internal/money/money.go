// Package money содержит вспомогательные функции для денежных сумм и календарных месяцев.
package money

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Places: количество знаков после запятой для всех денежных сумм.
const Places int32 = 2

// RoundHalfUp округляет значение до places знаков, половина округляется от нуля.
func RoundHalfUp(d decimal.Decimal, places int32) decimal.Decimal {
	return d.Round(places)
}

// Round округляет денежную сумму до копеек.
func Round(d decimal.Decimal) decimal.Decimal {
	return RoundHalfUp(d, Places)
}

// MustParse разбирает строковую сумму и паникует при ошибке. Используется для констант.
func MustParse(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// MonthStart возвращает первое число месяца указанной даты (UTC, без времени).
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// Date возвращает дату без времени в UTC.
func Date(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// IsMonthStart сообщает, приходится ли дата на первое число месяца.
func IsMonthStart(t time.Time) bool {
	return t.Day() == 1
}

// MonthEnd возвращает последний день месяца указанной даты.
func MonthEnd(t time.Time) time.Time {
	return MonthStart(t).AddDate(0, 1, -1)
}

// MonthsBetween возвращает количество календарных месяцев от from до to.
// Результат может быть отрицательным, если to раньше from.
func MonthsBetween(from, to time.Time) int {
	return (to.Year()-from.Year())*12 + int(to.Month()) - int(from.Month())
}

// ParseMonth разбирает месяц в форматах YYYY-MM или YYYY-MM-DD и возвращает первое число месяца.
func ParseMonth(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("empty month")
	}

	if d, err := time.Parse(time.DateOnly, raw); err == nil {
		return MonthStart(d), nil
	}

	parts := strings.Split(raw, "-")
	if len(parts) != 2 {
		return time.Time{}, fmt.Errorf("invalid month %q: use YYYY-MM or YYYY-MM-DD", raw)
	}

	year, err := strconv.Atoi(parts[0])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid month %q: %w", raw, err)
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil || month < 1 || month > 12 {
		return time.Time{}, fmt.Errorf("invalid month %q: month must be 1..12", raw)
	}

	return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC), nil
}

// MonthLabel возвращает короткую подпись месяца вида Jan-24.
func MonthLabel(t time.Time) string {
	return t.Format("Jan-06")
}
