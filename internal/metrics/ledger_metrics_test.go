package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, collector prometheus.Metric) float64 {
	t.Helper()
	metric := &dto.Metric{}
	if err := collector.Write(metric); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	return metric.Counter.GetValue()
}

func TestNewLedgerMetrics(t *testing.T) {
	metrics := NewLedgerMetricsWithRegisterer(prometheus.NewRegistry())

	if metrics.recalculations == nil {
		t.Error("recalculations counter vec should not be nil")
	}
	if metrics.driftDetected == nil {
		t.Error("driftDetected counter should not be nil")
	}
	if metrics.orderActions == nil {
		t.Error("orderActions counter vec should not be nil")
	}
	if metrics.summaryDuration == nil {
		t.Error("summaryDuration histogram should not be nil")
	}
	if metrics.httpRequests == nil {
		t.Error("httpRequests counter vec should not be nil")
	}
}

func TestNewLedgerMetrics_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := NewLedgerMetricsWithRegisterer(reg)
	second := NewLedgerMetricsWithRegisterer(reg)

	first.RecordDrift()
	second.RecordDrift()

	if got := counterValue(t, first.driftDetected); got != 2.0 {
		t.Errorf("expected shared counter value 2.0, got %f", got)
	}
}

func TestRecordRecalculation(t *testing.T) {
	metrics := NewLedgerMetricsWithRegisterer(prometheus.NewRegistry())

	metrics.RecordRecalculation(RecalcUpdated)
	metrics.RecordRecalculation(RecalcUpdated)
	metrics.RecordRecalculation(RecalcMissing)

	if got := counterValue(t, metrics.recalculations.WithLabelValues(RecalcUpdated)); got != 2.0 {
		t.Errorf("expected updated 2.0, got %f", got)
	}
	if got := counterValue(t, metrics.recalculations.WithLabelValues(RecalcMissing)); got != 1.0 {
		t.Errorf("expected missing 1.0, got %f", got)
	}
}

func TestRecordOrderActionAndHTTP(t *testing.T) {
	metrics := NewLedgerMetricsWithRegisterer(prometheus.NewRegistry())

	metrics.RecordOrderAction("cancel")
	metrics.RecordHTTPRequest("/api/orders/", 400)
	metrics.RecordListRejected()

	if got := counterValue(t, metrics.orderActions.WithLabelValues("cancel")); got != 1.0 {
		t.Errorf("expected cancel 1.0, got %f", got)
	}
	if got := counterValue(t, metrics.httpRequests.WithLabelValues("/api/orders/", "400")); got != 1.0 {
		t.Errorf("expected http counter 1.0, got %f", got)
	}
	if got := counterValue(t, metrics.listRejected); got != 1.0 {
		t.Errorf("expected rejected 1.0, got %f", got)
	}
}

func TestRecordSummaryDuration(t *testing.T) {
	metrics := NewLedgerMetricsWithRegisterer(prometheus.NewRegistry())
	metrics.RecordSummaryDuration(20 * time.Millisecond)

	metric := &dto.Metric{}
	if err := metrics.summaryDuration.Write(metric); err != nil {
		t.Fatalf("failed to write histogram: %v", err)
	}
	if metric.Histogram.GetSampleCount() != 1 {
		t.Errorf("expected 1 sample, got %d", metric.Histogram.GetSampleCount())
	}
}

func TestSetOutboxBacklog(t *testing.T) {
	metrics := NewLedgerMetricsWithRegisterer(prometheus.NewRegistry())
	metrics.SetOutboxBacklog(4, -time.Second)

	pending := &dto.Metric{}
	if err := metrics.outboxPending.Write(pending); err != nil {
		t.Fatalf("failed to write gauge: %v", err)
	}
	if pending.Gauge.GetValue() != 4.0 {
		t.Errorf("expected pending 4.0, got %f", pending.Gauge.GetValue())
	}

	age := &dto.Metric{}
	if err := metrics.outboxOldestAge.Write(age); err != nil {
		t.Fatalf("failed to write gauge: %v", err)
	}
	if age.Gauge.GetValue() != 0 {
		t.Errorf("negative age must be clamped to 0, got %f", age.Gauge.GetValue())
	}
}

func TestNilLedgerMetrics(t *testing.T) {
	var metrics *LedgerMetrics

	// nil-получатель не должен паниковать
	metrics.RecordRecalculation(RecalcError)
	metrics.RecordDrift()
	metrics.RecordOrderAction("archive")
	metrics.RecordListRejected()
	metrics.RecordSummaryDuration(time.Second)
	metrics.RecordHTTPRequest("/", 200)
	metrics.RecordTimelineEvent()
	metrics.RecordOutboxEvent()
	metrics.RecordOutboxPublish("sent")
	metrics.SetOutboxBacklog(1, time.Second)
}
