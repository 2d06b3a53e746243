// Package metrics содержит счётчики Prometheus для операций с полисами.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics: набор счётчиков сервиса. Нулевой указатель допустим и ничего не считает.
type Metrics struct {
	receipts    *prometheus.CounterVec
	commissions *prometheus.CounterVec
	decisions   *prometheus.CounterVec
	importRows  *prometheus.CounterVec
}

// New создаёт счётчики и регистрирует их в registerer.
func New(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		receipts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lifeadmin_ledger_operations_total",
			Help: "Premium receipts recorded and reversed.",
		}, []string{"operation"}),
		commissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lifeadmin_commission_records_total",
			Help: "Commission generation outcomes per policy.",
		}, []string{"result"}),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lifeadmin_request_decisions_total",
			Help: "Claim and cancellation decisions.",
		}, []string{"kind", "decision"}),
		importRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lifeadmin_import_rows_total",
			Help: "Bulk import rows by entity and outcome.",
		}, []string{"entity", "result"}),
	}

	registerer.MustRegister(m.receipts, m.commissions, m.decisions, m.importRows)
	return m
}

// LedgerOperation учитывает проведение ("record") или сторнирование ("reverse") поступления.
func (m *Metrics) LedgerOperation(operation string) {
	if m == nil {
		return
	}
	m.receipts.WithLabelValues(operation).Inc()
}

// Commissions учитывает итог генерации комиссии.
func (m *Metrics) Commissions(created, updated, skipped int) {
	if m == nil {
		return
	}
	m.commissions.WithLabelValues("created").Add(float64(created))
	m.commissions.WithLabelValues("updated").Add(float64(updated))
	m.commissions.WithLabelValues("skipped").Add(float64(skipped))
}

// Decision учитывает решение по заявке.
func (m *Metrics) Decision(kind, decision string) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(kind, decision).Inc()
}

// ImportRows учитывает строки загрузки.
func (m *Metrics) ImportRows(entity string, created, failed int) {
	if m == nil {
		return
	}
	m.importRows.WithLabelValues(entity, "created").Add(float64(created))
	m.importRows.WithLabelValues(entity, "failed").Add(float64(failed))
}
