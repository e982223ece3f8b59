package metrics

import (
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestHTTPMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)

	m.Observe(http.MethodGet, "/api/v1/items", http.StatusOK, 10*time.Millisecond)
	m.Observe(http.MethodGet, "/api/v1/items", http.StatusOK, 20*time.Millisecond)
	m.Observe(http.MethodGet, "", http.StatusNotFound, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("GET", "/api/v1/items", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("GET", "unknown", "404")))
}

func TestStockMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewStockMetrics(reg)

	m.ObserveMovement("OUT", "ISSUING_VOUCHER", -10)
	m.ObserveMovement("OUT", "ISSUING_VOUCHER", 5)
	m.ObserveTransition("requisition", "Forwarded")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.movements.WithLabelValues("OUT", "ISSUING_VOUCHER")))
	assert.Equal(t, 15.0, testutil.ToFloat64(m.units.WithLabelValues("OUT")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitions.WithLabelValues("requisition", "Forwarded")))
}

func TestNilRegistererIsNoop(t *testing.T) {
	var stock *StockMetrics
	stock.ObserveMovement("IN", "PURCHASE_ORDER", 1)
	NewStockMetrics(nil).ObserveTransition("purchase_order", "Received")
	NewHTTPMetrics(nil).Observe("GET", "/", 200, time.Millisecond)
}
