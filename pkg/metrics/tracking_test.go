package metrics

import (
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestTrackingMetricsExports(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewTrackingMetrics(reg)

	metrics.ConnOpened("delivery")
	metrics.ConnOpened("delivery")
	metrics.ConnClosed("delivery")
	metrics.IncEvent("location:update", "accepted")
	metrics.AddFanout("location:updated", 3)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchGaugeValue(mfs, "tracking_active_connections", "role", "delivery"); err != nil {
		t.Fatalf("fetch connections: %v", err)
	} else if got != 1 {
		t.Fatalf("expected 1 open connection, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "tracking_events_total", "kind", "location:update"); err != nil {
		t.Fatalf("fetch events: %v", err)
	} else if got != 1 {
		t.Fatalf("expected events=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "tracking_fanout_deliveries_total", "kind", "location:updated"); err != nil {
		t.Fatalf("fetch fanout: %v", err)
	} else if got != 3 {
		t.Fatalf("expected fanout=3, got %f", got)
	}
}

func TestTrackingMetricsNilSafe(t *testing.T) {
	var metrics *TrackingMetrics
	metrics.ConnOpened("delivery")
	metrics.IncEvent("order:join", "accepted")
	metrics.AddFanout("delivery:status", 1)

	empty := NewTrackingMetrics(nil)
	empty.ConnClosed("vendor")
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

func fetchGaugeValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetGauge().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("gauge %q missing label %s=%s", name, label, value)
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
