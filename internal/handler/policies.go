package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/life-admin-system/internal/model"
	"github.com/mmeshcher/life-admin-system/internal/service"
	"github.com/mmeshcher/life-admin-system/internal/valuation"
)

type policyRequest struct {
	Product          string `json:"product"`
	Cover            int    `json:"cover"`
	Frequency        string `json:"frequency"`
	ProposalSignDate string `json:"proposal_sign_date"`
	StartDate        string `json:"start_date"`
	BeneficiaryName  string `json:"beneficiary_name"`
	BeneficiaryID    string `json:"beneficiary_id"`
	AgentCode        string `json:"agent_code,omitempty"`
	Paypoint         string `json:"paypoint"`
	ClientCode       string `json:"client_code"`
}

type createdPolicyResponse struct {
	ContractID  string `json:"contract_id"`
	ProductCode string `json:"product_code"`
	StartDate   string `json:"start_date"`
}

type policyResponse struct {
	ContractID       string `json:"contract_id"`
	Product          string `json:"product"`
	ProductCode      string `json:"product_code"`
	Cover            int    `json:"cover"`
	Frequency        string `json:"frequency"`
	ProposalSignDate string `json:"proposal_sign_date"`
	StartDate        string `json:"start_date"`
	BeneficiaryName  string `json:"beneficiary_name"`
	BeneficiaryID    string `json:"beneficiary_id"`
	ClientName       string `json:"client_name"`
	AgentCode        string `json:"agent_code,omitempty"`
	AgentName        string `json:"agent_name,omitempty"`
	Paypoint         string `json:"paypoint"`

	Month           string `json:"month"`
	ContractPremium string `json:"contract_premium"`
	Duration        int    `json:"duration"`
	TotalDue        string `json:"total_due"`
	TotalReceived   string `json:"total_received"`
	Arrears         string `json:"arrears"`
	MonthsPaid      string `json:"months_paid"`
	MonthsInArrears string `json:"months_in_arrears"`
	Status          string `json:"status"`
}

func toPolicyResponse(v service.PolicyView) policyResponse {
	rec := v.Record
	st := v.Standing
	return policyResponse{
		ContractID:       rec.ContractID,
		Product:          string(rec.Product),
		ProductCode:      rec.ProductCode,
		Cover:            int(rec.Cover),
		Frequency:        string(rec.Frequency),
		ProposalSignDate: formatDate(rec.ProposalSignDate),
		StartDate:        formatDate(rec.StartDate),
		BeneficiaryName:  rec.BeneficiaryName,
		BeneficiaryID:    rec.BeneficiaryID,
		ClientName:       rec.ClientName,
		AgentCode:        rec.AgentCode,
		AgentName:        rec.AgentName,
		Paypoint:         rec.PaypointName,
		Month:            st.Month.Format("2006-01"),
		ContractPremium:  st.ContractPremium.StringFixed(2),
		Duration:         st.Duration,
		TotalDue:         st.TotalDue.StringFixed(2),
		TotalReceived:    st.TotalReceived.StringFixed(2),
		Arrears:          st.Arrears.StringFixed(2),
		MonthsPaid:       st.MonthsPaid.StringFixed(2),
		MonthsInArrears:  st.MonthsInArrears.StringFixed(2),
		Status:           string(v.Status),
	}
}

// CreatePolicy оформляет полис.
func (h *Handler) CreatePolicy(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}

	var req policyRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	product, err := valuation.ParseProduct(req.Product)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	frequency, err := valuation.ParseFrequency(req.Frequency)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	signed, err := parseDate(req.ProposalSignDate)
	if err != nil {
		badRequest(w, "proposal_sign_date: use YYYY-MM-DD")
		return
	}
	start, err := parseDate(req.StartDate)
	if err != nil {
		badRequest(w, "start_date: use YYYY-MM-DD")
		return
	}

	p, err := h.service.CreatePolicy(r.Context(), userID, service.NewPolicy{
		Product:          product,
		Cover:            valuation.Cover(req.Cover),
		Frequency:        frequency,
		ProposalSignDate: signed,
		StartDate:        start,
		BeneficiaryName:  req.BeneficiaryName,
		BeneficiaryID:    req.BeneficiaryID,
		AgentCode:        req.AgentCode,
		PaypointCode:     req.Paypoint,
		ClientCode:       req.ClientCode,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, createdPolicyResponse{
		ContractID:  p.ContractID,
		ProductCode: p.ProductCode,
		StartDate:   formatDate(p.StartDate),
	})
}

// GetPolicy возвращает полис с оценкой на месяц (?month=YYYY-MM, по умолчанию текущий).
func (h *Handler) GetPolicy(w http.ResponseWriter, r *http.Request) {
	month, err := monthParam(r, false)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	view, err := h.service.GetPolicy(r.Context(), chi.URLParam(r, "contractID"), month)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPolicyResponse(*view))
}

// ListPolicies возвращает полисы с оценкой на месяц; фильтры ?agent= и ?paypoint=.
func (h *Handler) ListPolicies(w http.ResponseWriter, r *http.Request) {
	month, err := monthParam(r, false)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	q := r.URL.Query()
	views, err := h.service.ListPolicies(r.Context(), service.PolicyQuery{
		AgentCode: q.Get("agent"),
		Paypoint:  q.Get("paypoint"),
	}, month)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := make([]policyResponse, 0, len(views))
	for _, v := range views {
		resp = append(resp, toPolicyResponse(v))
	}
	writeJSON(w, http.StatusOK, resp)
}

type receiptRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type receiptResponse struct {
	Number        string `json:"receipt_number"`
	ContractID    string `json:"contract_id"`
	Amount        string `json:"amount"`
	TotalReceived string `json:"total_received"`
	ReceivedAt    string `json:"received_at"`
}

func toReceiptResponse(rc model.PremiumReceipt) receiptResponse {
	return receiptResponse{
		Number:        rc.Number,
		ContractID:    rc.ContractID,
		Amount:        rc.Amount.StringFixed(2),
		TotalReceived: rc.TotalReceived.StringFixed(2),
		ReceivedAt:    rc.ReceivedAt.Format(time.RFC3339),
	}
}

// RecordPayment проводит поступление взноса по полису.
func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}

	var req receiptRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "amount must be a number")
		return
	}

	receipt, err := h.service.RecordPayment(r.Context(), userID, chi.URLParam(r, "contractID"), req.Amount)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toReceiptResponse(*receipt))
}

// ListReceipts возвращает поступления по полису.
func (h *Handler) ListReceipts(w http.ResponseWriter, r *http.Request) {
	receipts, err := h.service.ListReceipts(r.Context(), chi.URLParam(r, "contractID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := make([]receiptResponse, 0, len(receipts))
	for _, rc := range receipts {
		resp = append(resp, toReceiptResponse(rc))
	}
	writeJSON(w, http.StatusOK, resp)
}

type reversalResponse struct {
	Number        string `json:"receipt_number"`
	ContractID    string `json:"contract_id"`
	Amount        string `json:"amount"`
	TotalReceived string `json:"total_received"`
}

// ReversePayment сторнирует поступление по номеру квитанции.
func (h *Handler) ReversePayment(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}

	receipt, total, err := h.service.ReversePayment(r.Context(), userID, chi.URLParam(r, "number"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reversalResponse{
		Number:        receipt.Number,
		ContractID:    receipt.ContractID,
		Amount:        receipt.Amount.StringFixed(2),
		TotalReceived: total.StringFixed(2),
	})
}
