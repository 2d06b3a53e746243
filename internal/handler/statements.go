package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mmeshcher/life-admin-system/internal/money"
	"github.com/mmeshcher/life-admin-system/internal/render"
	"github.com/mmeshcher/life-admin-system/internal/statement"
)

type generateRequest struct {
	Month string `json:"month"`
}

type commissionRunResponse struct {
	Month   string `json:"month"`
	Created int    `json:"created"`
	Updated int    `json:"updated"`
	Skipped int    `json:"skipped"`
}

// GenerateCommissions начисляет комиссию за месяц из тела запроса или параметра ?month=.
func (h *Handler) GenerateCommissions(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("month")
	if raw == "" && r.ContentLength != 0 {
		var req generateRequest
		if err := decodeJSON(r, &req); err != nil {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		raw = req.Month
	}
	month, err := money.ParseMonth(raw)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	run, err := h.service.GenerateCommissions(r.Context(), month)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, commissionRunResponse{
		Month:   run.Month.Format("2006-01"),
		Created: run.Created,
		Updated: run.Updated,
		Skipped: run.Skipped,
	})
}

type commissionResponse struct {
	ID            int64  `json:"id"`
	ContractID    string `json:"contract_id"`
	AgentID       int64  `json:"agent_id"`
	Month         string `json:"month"`
	CommissionDue string `json:"commission_due"`
	CreatedAt     string `json:"created_at"`
}

// ListCommissions возвращает начисления за месяц ?month=.
func (h *Handler) ListCommissions(w http.ResponseWriter, r *http.Request) {
	month, err := monthParam(r, true)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	records, err := h.service.ListCommissions(r.Context(), month)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := make([]commissionResponse, 0, len(records))
	for _, c := range records {
		resp = append(resp, commissionResponse{
			ID:            c.ID,
			ContractID:    c.ContractID,
			AgentID:       c.AgentID,
			Month:         c.CommissionMonth.Format("2006-01"),
			CommissionDue: c.CommissionDue.StringFixed(2),
			CreatedAt:     c.CreatedAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

type statementRow struct {
	ContractID      string `json:"contract_id"`
	ClientName      string `json:"client_name"`
	Status          string `json:"status"`
	AgentCode       string `json:"agent_code,omitempty"`
	AgentName       string `json:"agent_name,omitempty"`
	ContractPremium string `json:"contract_premium"`
	MonthlyPremium  string `json:"monthly_premium,omitempty"`
	Commission      string `json:"commission,omitempty"`
}

type statementResponse struct {
	Kind            string         `json:"kind"`
	Subject         string         `json:"subject"`
	Month           string         `json:"month"`
	Rows            []statementRow `json:"rows"`
	TotalPremium    string         `json:"total_premium"`
	TotalCommission string         `json:"total_commission,omitempty"`
	Message         string         `json:"message,omitempty"`
}

func toStatementResponse(st statement.Statement) statementResponse {
	resp := statementResponse{
		Kind:         string(st.Kind),
		Subject:      st.Subject,
		Month:        st.Label(),
		Rows:         make([]statementRow, 0, len(st.Rows)),
		TotalPremium: st.TotalPremium.StringFixed(2),
	}
	commission := st.Kind == statement.KindCommission
	if commission {
		resp.TotalCommission = st.TotalCommission.StringFixed(2)
	}

	for _, row := range st.Rows {
		out := statementRow{
			ContractID:      row.ContractID,
			ClientName:      row.ClientName,
			Status:          string(row.Status),
			AgentCode:       row.AgentCode,
			AgentName:       row.AgentName,
			ContractPremium: row.ContractPremium.StringFixed(2),
		}
		if commission {
			out.MonthlyPremium = row.MonthlyPremium.StringFixed(2)
			out.Commission = row.Commission.StringFixed(2)
		}
		resp.Rows = append(resp.Rows, out)
	}
	return resp
}

// BillingStatement выдаёт счёт по точке удержания за ?month= в формате ?export=json|csv|pdf.
func (h *Handler) BillingStatement(w http.ResponseWriter, r *http.Request) {
	month, err := monthParam(r, true)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	export := exportParam(r)
	if export == exportEmail {
		badRequest(w, "billing statements cannot be emailed")
		return
	}

	st, err := h.service.BillingStatement(r.Context(), chi.URLParam(r, "paypoint"), month)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeStatement(w, r, st, export)
}

// CommissionStatement выдаёт ведомость комиссии агента за ?month=.
// ?export=email отправляет ведомость агенту, ?save=true сохраняет начисления.
func (h *Handler) CommissionStatement(w http.ResponseWriter, r *http.Request) {
	month, err := monthParam(r, true)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	save, _ := strconv.ParseBool(r.URL.Query().Get("save"))
	export := exportParam(r)
	agentCode := chi.URLParam(r, "agent")

	if export == exportEmail {
		st, err := h.service.EmailCommissionStatement(r.Context(), agentCode, month, save)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		resp := toStatementResponse(st)
		resp.Message = fmt.Sprintf("Commission statement for %s emailed", st.Label())
		writeJSON(w, http.StatusOK, resp)
		return
	}

	st, err := h.service.CommissionStatement(r.Context(), agentCode, month, save)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeStatement(w, r, st, export)
}

const (
	exportJSON  = "json"
	exportCSV   = "csv"
	exportPDF   = "pdf"
	exportEmail = "email"
)

func exportParam(r *http.Request) string {
	switch e := r.URL.Query().Get("export"); e {
	case exportCSV, exportPDF, exportEmail:
		return e
	default:
		return exportJSON
	}
}

func (h *Handler) writeStatement(w http.ResponseWriter, r *http.Request, st statement.Statement, export string) {
	switch export {
	case exportCSV:
		var buf bytes.Buffer
		if err := render.CSV(&buf, st); err != nil {
			h.writeError(w, r, err)
			return
		}
		writeAttachment(w, "text/csv", render.Filename(st, "csv"), buf.Bytes())
	case exportPDF:
		pdf, err := h.service.StatementPDF(st)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeAttachment(w, "application/pdf", render.Filename(st, "pdf"), pdf)
	default:
		writeJSON(w, http.StatusOK, toStatementResponse(st))
	}
}

func writeAttachment(w http.ResponseWriter, contentType, filename string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
