// Package model содержит доменные сущности системы администрирования полисов.
package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/life-admin-system/internal/lifecycle"
	"github.com/mmeshcher/life-admin-system/internal/valuation"
)

// Role определяет полномочия сотрудника.
type Role string

const (
	RoleOperator Role = "OPERATOR"
	RoleManager  Role = "MANAGER"
)

// User представляет сотрудника, работающего с системой.
type User struct {
	ID           int64
	Login        string
	PasswordHash []byte
	Role         Role
	CreatedAt    time.Time
}

// Branch: филиал, к которому относится агент.
type Branch string

const (
	BranchHarare        Branch = "HARARE"
	BranchMutare        Branch = "MUTARE"
	BranchKwekwe        Branch = "KWEKWE"
	BranchBulawayo      Branch = "BULAWAYO"
	BranchMasvingo      Branch = "MASVINGO"
	BranchVictoriaFalls Branch = "VICTORIA_FALLS"
)

// Valid сообщает, известен ли филиал.
func (b Branch) Valid() bool {
	switch b {
	case BranchHarare, BranchMutare, BranchKwekwe, BranchBulawayo, BranchMasvingo, BranchVictoriaFalls:
		return true
	}
	return false
}

// Agent: страховой агент.
type Agent struct {
	ID          int64
	Code        string
	Name        string
	Surname     string
	Branch      Branch
	Email       string
	DateJoining time.Time
}

// FullName возвращает имя и фамилию агента.
func (a Agent) FullName() string { return a.Name + " " + a.Surname }

// Client: страхователь.
type Client struct {
	ID       int64
	Code     string
	Name     string
	Surname  string
	IDNumber string
	DOB      time.Time
	Email    string
	Phone    string
	Street   string
	Location string
	City     string
}

// FullName возвращает имя и фамилию клиента.
func (c Client) FullName() string { return c.Name + " " + c.Surname }

// Paypoint: точка удержания взносов (как правило, работодатель).
type Paypoint struct {
	ID         int64
	Code       string
	Name       string
	DateJoined time.Time
}

// Policy: договор страхования. Производные показатели не хранятся, а вычисляются
// пакетом valuation; TotalReceived всегда равен сумме поступлений по полису.
type Policy struct {
	ID               int64
	ContractID       string
	Product          valuation.Product
	ProductCode      string
	Cover            valuation.Cover
	Frequency        valuation.Frequency
	ProposalSignDate time.Time
	StartDate        time.Time
	BeneficiaryName  string
	BeneficiaryID    string
	AgentID          *int64
	PaypointID       int64
	ClientID         int64
	TotalReceived    decimal.Decimal
	CreatedBy        int64
	CreatedAt        time.Time
}

// Terms возвращает условия полиса для расчёта.
func (p Policy) Terms() valuation.Terms {
	return valuation.Terms{Cover: p.Cover, Frequency: p.Frequency, StartDate: p.StartDate}
}

// PremiumReceipt: поступление взноса по полису.
type PremiumReceipt struct {
	ID            int64
	Number        string
	PolicyID      int64
	ContractID    string
	Amount        decimal.Decimal
	TotalReceived decimal.Decimal
	ReceivedAt    time.Time
	ReceiptedBy   int64
}

// CancellationRequest: заявка на расторжение полиса (не более одной на полис).
type CancellationRequest struct {
	ID            int64
	PolicyID      int64
	ContractID    string
	Status        lifecycle.RequestStatus
	EffectiveDate time.Time
	RequestedBy   int64
	RequestedAt   time.Time
	ApprovedBy    *int64
	ApprovedAt    *time.Time
}

// Claim: заявление на страховую выплату.
type Claim struct {
	ID                  int64
	PolicyID            int64
	ContractID          string
	ClaimantName        string
	ClaimantIDNumber    string
	BankName            string
	AccountNumber       string
	HasBurialOrder      bool
	HasDeathCertificate bool
	Status              lifecycle.RequestStatus
	RequestedBy         int64
	RequestedAt         time.Time
	ResolvedBy          *int64
	ResolvedAt          *time.Time
	RejectReason        string
}

// CommissionRecord: начисленная комиссия агенту по полису за месяц.
type CommissionRecord struct {
	ID              int64
	PolicyID        int64
	ContractID      string
	AgentID         int64
	CommissionMonth time.Time
	CommissionDue   decimal.Decimal
	CreatedAt       time.Time
}

// PolicyRecord объединяет полис со связанными данными, нужными для отчётов и статуса.
type PolicyRecord struct {
	Policy
	ClientName   string
	AgentCode    string
	AgentName    string
	PaypointName string
	Claims       []lifecycle.RequestStatus
	Cancellation lifecycle.RequestStatus
}

// PolicyFilter ограничивает выборку полисов. Пустой фильтр выбирает все полисы.
type PolicyFilter struct {
	PaypointID *int64
	AgentID    *int64
}

// RequestFilter ограничивает выборку заявок: очередь на рассмотрение
// (по состоянию) или собственные заявки сотрудника (по автору).
type RequestFilter struct {
	Status      lifecycle.RequestStatus
	RequestedBy *int64
}

// Resolution: решение по заявке.
type Resolution struct {
	Status lifecycle.RequestStatus
	By     int64
	At     time.Time
	Reason string
}

// Code-форматы последовательных идентификаторов.
const (
	policyCodeFormat  = "P%05d"
	receiptCodeFormat = "Rec%06d"
	agentCodeFormat   = "A%04d"
	clientCodeFormat  = "CC%08d"
)

// PolicyCode форматирует номер договора.
func PolicyCode(n int64) string { return fmt.Sprintf(policyCodeFormat, n) }

// ReceiptCode форматирует номер квитанции.
func ReceiptCode(n int64) string { return fmt.Sprintf(receiptCodeFormat, n) }

// ReceiptSeq извлекает порядковый номер из номера квитанции.
func ReceiptSeq(code string) (int64, bool) {
	var n int64
	if _, err := fmt.Sscanf(code, "Rec%d", &n); err != nil {
		return 0, false
	}
	return n, true
}

// AgentCode форматирует код агента.
func AgentCode(n int64) string { return fmt.Sprintf(agentCodeFormat, n) }

// ClientCode форматирует код клиента.
func ClientCode(n int64) string { return fmt.Sprintf(clientCodeFormat, n) }
