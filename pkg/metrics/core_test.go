package metrics

import (
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestCoreMetricsExportsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewCoreMetrics(reg)

	metrics.IncOrderPlaced("pending")
	metrics.IncOrderPlaced("rejected")
	metrics.IncOrderPlaced("rejected")
	metrics.IncTicketClosed()
	metrics.IncEventLogged("closed_ticket")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "orders_placed_total", "status", "pending"); err != nil {
		t.Fatalf("fetch pending: %v", err)
	} else if got != 1 {
		t.Fatalf("expected pending=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "orders_placed_total", "status", "rejected"); err != nil {
		t.Fatalf("fetch rejected: %v", err)
	} else if got != 2 {
		t.Fatalf("expected rejected=2, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "events_logged_total", "type", "closed_ticket"); err != nil {
		t.Fatalf("fetch events: %v", err)
	} else if got != 1 {
		t.Fatalf("expected events=1, got %f", got)
	}
}

func TestCoreMetricsNilSafe(t *testing.T) {
	var metrics *CoreMetrics
	metrics.IncOrderPlaced("pending")
	metrics.IncTicketClosed()
	metrics.IncEventLogged("order")

	empty := NewCoreMetrics(nil)
	empty.IncOrderPlaced("pending")
	empty.IncTicketClosed()
	empty.IncEventLogged("order")
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
