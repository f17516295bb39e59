package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/relayhq/relay-core/internal/automation"
)

func TestPrometheusSink_ScanCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink := NewPrometheusSink(reg)

	sink.ScanStarted()
	sink.ScanStarted()
	sink.ScanCompleted(automation.ScanSummary{TriggersFound: 3, Successes: 2, Failures: 1}, 250*time.Millisecond)

	if got := testutil.ToFloat64(sink.scansTotal); got != 2 {
		t.Errorf("relay_scans_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(sink.lastTriggersFound); got != 3 {
		t.Errorf("relay_last_scan_triggers_found = %v, want 3", got)
	}
	if got := testutil.ToFloat64(sink.lastSuccesses); got != 2 {
		t.Errorf("relay_last_scan_successes = %v, want 2", got)
	}
	if got := testutil.ToFloat64(sink.lastFailures); got != 1 {
		t.Errorf("relay_last_scan_failures = %v, want 1", got)
	}
}

func TestPrometheusSink_ExecutionCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink := NewPrometheusSink(reg)

	sink.ExecutionRecorded("meeting_reminder", "success", 10*time.Millisecond)
	sink.ExecutionRecorded("meeting_reminder", "success", 12*time.Millisecond)
	sink.ExecutionRecorded("invoice_overdue", "failure", 8*time.Millisecond)

	success := sink.executionsTotal.WithLabelValues("meeting_reminder", "success")
	if got := testutil.ToFloat64(success); got != 2 {
		t.Errorf("success executions = %v, want 2", got)
	}
	failure := sink.executionsTotal.WithLabelValues("invoice_overdue", "failure")
	if got := testutil.ToFloat64(failure); got != 1 {
		t.Errorf("failure executions = %v, want 1", got)
	}
}

func TestPrometheusSink_RegistersAllSeries(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink := NewPrometheusSink(reg)

	sink.ScanStarted()
	sink.ScanCompleted(automation.ScanSummary{}, time.Millisecond)
	sink.ExecutionRecorded("meeting_reminder", "success", time.Millisecond)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	want := map[string]bool{
		"relay_scans_total":                false,
		"relay_scan_duration_seconds":      false,
		"relay_last_scan_triggers_found":   false,
		"relay_last_scan_successes":        false,
		"relay_last_scan_failures":         false,
		"relay_executions_total":           false,
		"relay_execution_duration_seconds": false,
	}
	for _, fam := range families {
		if _, ok := want[fam.GetName()]; ok {
			want[fam.GetName()] = true
		}
	}
	for name, seen := range want {
		if !seen {
			t.Errorf("series %s not registered", name)
		}
	}
}
