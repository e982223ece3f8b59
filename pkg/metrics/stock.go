package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// StockMetrics counts stock movements and workflow transitions.
type StockMetrics struct {
	movements   *prometheus.CounterVec
	units       *prometheus.CounterVec
	transitions *prometheus.CounterVec
}

func NewStockMetrics(reg prometheus.Registerer) *StockMetrics {
	if reg == nil {
		return &StockMetrics{}
	}
	movements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_stock_movements_total",
		Help: "Stock movements written to the ledger, by type and reference.",
	}, []string{"type", "reference"})
	units := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_stock_units_total",
		Help: "Absolute stock units moved, by type.",
	}, []string{"type"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_workflow_transitions_total",
		Help: "Workflow status transitions, by document kind and target status.",
	}, []string{"document", "status"})
	reg.MustRegister(movements, units, transitions)
	return &StockMetrics{movements: movements, units: units, transitions: transitions}
}

// ObserveMovement records one ledger entry. qty may be negative.
func (m *StockMetrics) ObserveMovement(movementType, reference string, qty int) {
	if m == nil || m.movements == nil {
		return
	}
	m.movements.WithLabelValues(normalizeLabel(movementType), normalizeLabel(reference)).Inc()
	if qty < 0 {
		qty = -qty
	}
	m.units.WithLabelValues(normalizeLabel(movementType)).Add(float64(qty))
}

// ObserveTransition records a status change of a requisition, voucher or purchase order.
func (m *StockMetrics) ObserveTransition(document, status string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(document), normalizeLabel(status)).Inc()
}
