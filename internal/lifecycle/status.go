// Package lifecycle определяет статус полиса: базовый статус по оплатам
// и итоговый статус с учётом страховых случаев и расторжений.
package lifecycle

import (
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/life-admin-system/internal/valuation"
)

// Status: статус полиса.
type Status string

const (
	StatusActive           Status = "Active"
	StatusLapsed           Status = "Lapsed"
	StatusNTU              Status = "NTU Non-Payment"
	StatusAccepted         Status = "Accepted"
	StatusCancelled        Status = "Cancelled"
	StatusDeath            Status = "Death"
	StatusProposalAccepted Status = "proposal accepted"
)

// RequestStatus: состояние заявки на выплату или расторжение.
type RequestStatus string

const (
	RequestNone      RequestStatus = ""
	RequestRequested RequestStatus = "REQUESTED"
	RequestApproved  RequestStatus = "APPROVED"
	RequestRejected  RequestStatus = "REJECTED"
)

// Pending сообщает, ожидает ли заявка решения.
func (s RequestStatus) Pending() bool { return s == RequestRequested }

// Valid сообщает, является ли значение известным состоянием заявки.
func (s RequestStatus) Valid() bool {
	switch s {
	case RequestRequested, RequestApproved, RequestRejected:
		return true
	}
	return false
}

// CanResolve сообщает, можно ли перевести заявку в состояние to.
// Рассматривается только заявка в состоянии REQUESTED, решение окончательное.
func CanResolve(from, to RequestStatus) bool {
	return from == RequestRequested && (to == RequestApproved || to == RequestRejected)
}

var (
	lapseThreshold = decimal.NewFromInt(2)
	onePeriod      = decimal.NewFromInt(1)
)

// Base возвращает статус полиса по оплаченным месяцам и месяцам задолженности.
//
// NTU присваивается, если полис не оплачен ни разу (меньше одного периода)
// и есть хоть какая-то задолженность.
func Base(st valuation.Standing) Status {
	paid := st.MonthsPaid
	arrears := st.MonthsInArrears

	switch {
	case arrears.GreaterThan(lapseThreshold) && paid.GreaterThanOrEqual(onePeriod):
		return StatusLapsed
	case paid.GreaterThanOrEqual(onePeriod):
		return StatusActive
	case arrears.IsPositive():
		return StatusNTU
	default:
		return StatusAccepted
	}
}

// Overlay накладывает состояние выплат и расторжения на базовый статус.
// Одобренная выплата важнее одобренного расторжения, а оно важнее статуса по оплатам.
func Overlay(base Status, claims []RequestStatus, cancellation RequestStatus) Status {
	for _, c := range claims {
		if c == RequestApproved {
			return StatusDeath
		}
	}
	if cancellation == RequestApproved {
		return StatusCancelled
	}
	switch base {
	case StatusLapsed, StatusAccepted, StatusNTU:
		return base
	}
	return StatusActive
}

// Resolve вычисляет итоговый статус полиса.
func Resolve(st valuation.Standing, claims []RequestStatus, cancellation RequestStatus) Status {
	return Overlay(Base(st), claims, cancellation)
}
