package handler

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mmeshcher/life-admin-system/internal/lifecycle"
	"github.com/mmeshcher/life-admin-system/internal/model"
	"github.com/mmeshcher/life-admin-system/internal/service"
)

// requestFilter разбирает ?status= и ?mine=true для очередей заявок.
func requestFilter(r *http.Request, userID int64) model.RequestFilter {
	q := r.URL.Query()
	filter := model.RequestFilter{
		Status: lifecycle.RequestStatus(strings.ToUpper(strings.TrimSpace(q.Get("status")))),
	}
	if q.Get("mine") == "true" {
		filter.RequestedBy = &userID
	}
	return filter
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}

type cancellationRequest struct {
	ContractID    string `json:"contract_id"`
	EffectiveDate string `json:"effective_date"`
}

type cancellationResponse struct {
	ID            int64  `json:"id"`
	ContractID    string `json:"contract_id"`
	Status        string `json:"status"`
	EffectiveDate string `json:"effective_date"`
	RequestedBy   int64  `json:"requested_by"`
	RequestedAt   string `json:"requested_at"`
	ApprovedBy    *int64 `json:"approved_by,omitempty"`
	ApprovedAt    string `json:"approved_at,omitempty"`
}

func toCancellationResponse(c model.CancellationRequest) cancellationResponse {
	return cancellationResponse{
		ID:            c.ID,
		ContractID:    c.ContractID,
		Status:        string(c.Status),
		EffectiveDate: formatDate(c.EffectiveDate),
		RequestedBy:   c.RequestedBy,
		RequestedAt:   c.RequestedAt.Format(time.RFC3339),
		ApprovedBy:    c.ApprovedBy,
		ApprovedAt:    formatTimePtr(c.ApprovedAt),
	}
}

// RequestCancellation регистрирует заявку на расторжение полиса.
func (h *Handler) RequestCancellation(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}

	var req cancellationRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	effective, err := parseDate(req.EffectiveDate)
	if err != nil {
		badRequest(w, "effective_date: use YYYY-MM-DD")
		return
	}

	c, err := h.service.RequestCancellation(r.Context(), userID, req.ContractID, effective)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCancellationResponse(*c))
}

// ListCancellations возвращает заявки на расторжение.
func (h *Handler) ListCancellations(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}

	list, err := h.service.ListCancellations(r.Context(), requestFilter(r, userID))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := make([]cancellationResponse, 0, len(list))
	for _, c := range list {
		resp = append(resp, toCancellationResponse(c))
	}
	writeJSON(w, http.StatusOK, resp)
}

// ApproveCancellation одобряет заявку на расторжение.
func (h *Handler) ApproveCancellation(w http.ResponseWriter, r *http.Request) {
	h.resolveCancellation(w, r, true)
}

// RejectCancellation отклоняет заявку на расторжение.
func (h *Handler) RejectCancellation(w http.ResponseWriter, r *http.Request) {
	h.resolveCancellation(w, r, false)
}

func (h *Handler) resolveCancellation(w http.ResponseWriter, r *http.Request, approve bool) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}
	id, err := idParam(r)
	if err != nil {
		badRequest(w, "invalid request id")
		return
	}

	c, err := h.service.ResolveCancellation(r.Context(), userID, id, approve)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCancellationResponse(*c))
}

type claimRequest struct {
	ContractID          string `json:"contract_id"`
	ClaimantName        string `json:"claimant_name"`
	ClaimantIDNumber    string `json:"claimant_id_number"`
	BankName            string `json:"bank_name"`
	AccountNumber       string `json:"account_number"`
	HasBurialOrder      bool   `json:"has_burial_order"`
	HasDeathCertificate bool   `json:"has_death_certificate"`
}

type claimResponse struct {
	ID                  int64  `json:"id"`
	ContractID          string `json:"contract_id"`
	ClaimantName        string `json:"claimant_name"`
	ClaimantIDNumber    string `json:"claimant_id_number"`
	BankName            string `json:"bank_name"`
	AccountNumber       string `json:"account_number"`
	HasBurialOrder      bool   `json:"has_burial_order"`
	HasDeathCertificate bool   `json:"has_death_certificate"`
	Status              string `json:"status"`
	RequestedBy         int64  `json:"requested_by"`
	RequestedAt         string `json:"requested_at"`
	ResolvedBy          *int64 `json:"resolved_by,omitempty"`
	ResolvedAt          string `json:"resolved_at,omitempty"`
	RejectReason        string `json:"reject_reason,omitempty"`
	Message             string `json:"message,omitempty"`
}

func toClaimResponse(c model.Claim) claimResponse {
	return claimResponse{
		ID:                  c.ID,
		ContractID:          c.ContractID,
		ClaimantName:        c.ClaimantName,
		ClaimantIDNumber:    c.ClaimantIDNumber,
		BankName:            c.BankName,
		AccountNumber:       c.AccountNumber,
		HasBurialOrder:      c.HasBurialOrder,
		HasDeathCertificate: c.HasDeathCertificate,
		Status:              string(c.Status),
		RequestedBy:         c.RequestedBy,
		RequestedAt:         c.RequestedAt.Format(time.RFC3339),
		ResolvedBy:          c.ResolvedBy,
		ResolvedAt:          formatTimePtr(c.ResolvedAt),
		RejectReason:        c.RejectReason,
	}
}

// SubmitClaim регистрирует заявление на страховую выплату.
func (h *Handler) SubmitClaim(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}

	var req claimRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	c, err := h.service.SubmitClaim(r.Context(), userID, service.NewClaim{
		ContractID:          req.ContractID,
		ClaimantName:        req.ClaimantName,
		ClaimantIDNumber:    req.ClaimantIDNumber,
		BankName:            req.BankName,
		AccountNumber:       req.AccountNumber,
		HasBurialOrder:      req.HasBurialOrder,
		HasDeathCertificate: req.HasDeathCertificate,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toClaimResponse(*c))
}

// ListClaims возвращает заявления на выплату.
func (h *Handler) ListClaims(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}

	list, err := h.service.ListClaims(r.Context(), requestFilter(r, userID))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := make([]claimResponse, 0, len(list))
	for _, c := range list {
		resp = append(resp, toClaimResponse(c))
	}
	writeJSON(w, http.StatusOK, resp)
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

// ApproveClaim одобряет заявление на выплату и отправляет платёжное требование.
func (h *Handler) ApproveClaim(w http.ResponseWriter, r *http.Request) {
	h.resolveClaim(w, r, true, "")
}

// RejectClaim отклоняет заявление на выплату с необязательной причиной.
func (h *Handler) RejectClaim(w http.ResponseWriter, r *http.Request) {
	var req rejectRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	h.resolveClaim(w, r, false, req.Reason)
}

func (h *Handler) resolveClaim(w http.ResponseWriter, r *http.Request, approve bool, reason string) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}
	id, err := idParam(r)
	if err != nil {
		badRequest(w, "invalid claim id")
		return
	}

	c, err := h.service.ResolveClaim(r.Context(), userID, id, approve, reason)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := toClaimResponse(*c)
	if approve {
		resp.Message = service.RequisitionSentMessage
	}
	writeJSON(w, http.StatusOK, resp)
}
