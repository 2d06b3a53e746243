package valuation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidCoverTier возвращается для уровня покрытия, отсутствующего в таблице ставок.
	ErrInvalidCoverTier = errors.New("invalid cover tier")
	// ErrInvalidFrequency возвращается для неизвестной периодичности оплаты.
	ErrInvalidFrequency = errors.New("invalid frequency")
	// ErrInvalidProduct возвращается для неизвестного продукта.
	ErrInvalidProduct = errors.New("invalid product")
)

// Cover: уровень страхового покрытия (страховая сумма).
type Cover int

const (
	CoverBasic    Cover = 500
	CoverStandard Cover = 1000
	CoverPremia   Cover = 2000
)

// Frequency: периодичность оплаты взносов.
type Frequency string

const (
	FrequencyMonthly    Frequency = "M"
	FrequencyQuarterly  Frequency = "Q"
	FrequencyHalfYearly Frequency = "H"
	FrequencyYearly     Frequency = "Y"
)

// Product: страховой продукт.
type Product string

const (
	ProductAffinity Product = "AFFINITY"
	ProductFuneral  Product = "FUNERAL"
)

var coverRates = map[Cover]decimal.Decimal{
	CoverBasic:    decimal.RequireFromString("0.50"),
	CoverStandard: decimal.RequireFromString("1.00"),
	CoverPremia:   decimal.RequireFromString("2.00"),
}

var frequencyMonths = map[Frequency]int{
	FrequencyMonthly:    1,
	FrequencyQuarterly:  3,
	FrequencyHalfYearly: 6,
	FrequencyYearly:     12,
}

var productCodes = map[Product]string{
	ProductAffinity: "200",
	ProductFuneral:  "300",
}

// MonthlyRate возвращает месячный взнос для уровня покрытия.
func MonthlyRate(c Cover) (decimal.Decimal, error) {
	rate, ok := coverRates[c]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %d", ErrInvalidCoverTier, int(c))
	}
	return rate, nil
}

// PeriodMonths возвращает длину расчётного периода в месяцах.
func PeriodMonths(f Frequency) (int, error) {
	months, ok := frequencyMonths[f]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidFrequency, string(f))
	}
	return months, nil
}

// ProductCode возвращает код продукта.
func ProductCode(p Product) (string, error) {
	code, ok := productCodes[p]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidProduct, string(p))
	}
	return code, nil
}

// Valid сообщает, есть ли уровень покрытия в таблице ставок.
func (c Cover) Valid() bool {
	_, ok := coverRates[c]
	return ok
}

// Valid сообщает, известна ли периодичность.
func (f Frequency) Valid() bool {
	_, ok := frequencyMonths[f]
	return ok
}

// Valid сообщает, известен ли продукт.
func (p Product) Valid() bool {
	_, ok := productCodes[p]
	return ok
}

var frequencyAliases = map[string]Frequency{
	"m":           FrequencyMonthly,
	"monthly":     FrequencyMonthly,
	"q":           FrequencyQuarterly,
	"quarterly":   FrequencyQuarterly,
	"h":           FrequencyHalfYearly,
	"half-yearly": FrequencyHalfYearly,
	"half yearly": FrequencyHalfYearly,
	"y":           FrequencyYearly,
	"yearly":      FrequencyYearly,
	"annual":      FrequencyYearly,
}

// ParseFrequency разбирает периодичность по коду или названию (monthly, quarterly, ...).
func ParseFrequency(raw string) (Frequency, error) {
	f, ok := frequencyAliases[strings.ToLower(strings.TrimSpace(raw))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidFrequency, raw)
	}
	return f, nil
}

// ParseProduct разбирает название продукта без учёта регистра.
func ParseProduct(raw string) (Product, error) {
	p := Product(strings.ToUpper(strings.TrimSpace(raw)))
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidProduct, raw)
	}
	return p, nil
}
