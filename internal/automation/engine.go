package automation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// EventPublisher is the interface for broadcasting engine events.
// Satisfied by the infrastructure mqtt.Client; may be absent.
type EventPublisher interface {
	// Publish sends a message to the specified MQTT topic.
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// MetricsSink receives engine measurements. Satisfied by the metrics
// package's Prometheus sink; a no-op sink is used when unset.
type MetricsSink interface {
	// ScanStarted is called at the beginning of each scan pass.
	ScanStarted()

	// ScanCompleted is called after each scan pass, failed or not.
	ScanCompleted(summary ScanSummary, duration time.Duration)

	// ExecutionRecorded is called once per written execution record.
	ExecutionRecorded(triggerType, status string, duration time.Duration)
}

// noopMetrics discards all measurements.
type noopMetrics struct{}

func (noopMetrics) ScanStarted()                                    {}
func (noopMetrics) ScanCompleted(ScanSummary, time.Duration)        {}
func (noopMetrics) ExecutionRecorded(string, string, time.Duration) {}

// TelemetryWriter receives time-series measurements. Satisfied by the
// infrastructure influxdb.Client; may be absent.
type TelemetryWriter interface {
	WriteScanMetric(triggersFound, successes, failures int, duration time.Duration)
	WriteExecutionMetric(automationID, triggerType, status string, duration time.Duration)
}

// Engine orchestrates scan passes.
//
// It runs the scanner, feeds each candidate to the dispatcher, and
// aggregates the outcome into a ScanSummary. A single candidate's
// failure never aborts the rest of the pass; only a scan-level query
// failure does.
//
// Thread Safety: RunScan is safe to call repeatedly and concurrently.
// Overlapping passes may race on the same candidate; the ledger's
// unique constraint keeps the at-most-once success invariant.
type Engine struct {
	scanner    *Scanner
	dispatcher *Dispatcher

	logger    Logger
	metrics   MetricsSink
	events    EventPublisher
	telemetry TelemetryWriter
}

// NewEngine creates the engine entry point.
//
// Parameters:
//   - scanner: Trigger scanner producing candidates
//   - dispatcher: Per-candidate dispatch pipeline
func NewEngine(scanner *Scanner, dispatcher *Dispatcher) *Engine {
	return &Engine{
		scanner:    scanner,
		dispatcher: dispatcher,
		logger:     noopLogger{},
		metrics:    noopMetrics{},
	}
}

// SetLogger sets the logger for the engine (and its scanner/dispatcher).
func (e *Engine) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	e.logger = logger
	e.scanner.SetLogger(logger)
	e.dispatcher.SetLogger(logger)
}

// SetMetrics sets the metrics sink. Nil restores the no-op sink.
func (e *Engine) SetMetrics(sink MetricsSink) {
	if sink == nil {
		sink = noopMetrics{}
	}
	e.metrics = sink
}

// SetEventPublisher sets the optional event broadcaster.
func (e *Engine) SetEventPublisher(events EventPublisher) {
	e.events = events
}

// SetTelemetry sets the optional time-series writer.
func (e *Engine) SetTelemetry(telemetry TelemetryWriter) {
	e.telemetry = telemetry
}

// RunScan performs one complete scan-and-dispatch pass.
//
// It is the engine's single invocation surface, called by the
// scheduler or the admin API's manual trigger. The engine never
// self-schedules.
//
// Parameters:
//   - ctx: Context for cancellation; each candidate's dispatch is
//     additionally bounded by the configured per-candidate timeout
//
// Returns:
//   - ScanSummary: Candidates found and per-candidate outcomes
//   - error: Only for scan-level failures (domain store or ledger
//     query errors); the pass is safe to retry on the next invocation
func (e *Engine) RunScan(ctx context.Context) (ScanSummary, error) {
	start := time.Now()
	e.metrics.ScanStarted()

	var summary ScanSummary

	candidates, err := e.scanner.Scan(ctx, time.Now().UTC())
	if err != nil {
		e.logger.Error("scan pass aborted", "error", err)
		e.metrics.ScanCompleted(summary, time.Since(start))
		return summary, fmt.Errorf("scan pass: %w", err)
	}

	summary.TriggersFound = len(candidates)

	for _, candidate := range candidates {
		dispatchStart := time.Now()
		rec, dispatchErr := e.dispatcher.Dispatch(ctx, candidate)
		dispatchDuration := time.Since(dispatchStart)

		switch {
		case rec == nil && dispatchErr == nil:
			// Skipped: automation gone/inactive or already handled.
			continue
		case rec == nil:
			// Dispatch failed before anything was recorded.
			e.logger.Error("candidate dispatch failed",
				"automation_id", candidate.AutomationID,
				"entity_id", candidate.EntityID,
				"error", dispatchErr,
			)
			summary.Failures++
			continue
		}

		status := string(rec.Status)
		if rec.Status == StatusSuccess && dispatchErr == nil {
			summary.Successes++
		} else {
			summary.Failures++
		}

		e.metrics.ExecutionRecorded(string(candidate.TriggerType), status, dispatchDuration)
		if e.telemetry != nil {
			e.telemetry.WriteExecutionMetric(rec.AutomationID, string(candidate.TriggerType), status, dispatchDuration)
		}
		e.publishExecutionEvent(rec, candidate.TriggerType)
	}

	duration := time.Since(start)
	e.metrics.ScanCompleted(summary, duration)
	if e.telemetry != nil {
		e.telemetry.WriteScanMetric(summary.TriggersFound, summary.Successes, summary.Failures, duration)
	}
	e.publishScanEvent(summary, duration)

	e.logger.Info("scan pass complete",
		"triggers_found", summary.TriggersFound,
		"successes", summary.Successes,
		"failures", summary.Failures,
		"duration_ms", duration.Milliseconds(),
	)

	return summary, nil
}

// publishExecutionEvent broadcasts one execution outcome.
func (e *Engine) publishExecutionEvent(rec *ExecutionRecord, triggerType TriggerType) {
	if e.events == nil {
		return
	}

	topic := "relay/events/automation/" + rec.AutomationID + "/failed"
	if rec.Status == StatusSuccess {
		topic = "relay/events/automation/" + rec.AutomationID + "/fired"
	}

	payload, err := json.Marshal(map[string]any{
		"execution_id": rec.ID,
		"entity_id":    rec.EntityID,
		"trigger_type": string(triggerType),
		"status":       string(rec.Status),
		"executed_at":  rec.ExecutedAt.Format(time.RFC3339),
	})
	if err != nil {
		return
	}

	if pubErr := e.events.Publish(topic, payload, 1, false); pubErr != nil {
		e.logger.Warn("failed to publish execution event",
			"topic", topic,
			"error", pubErr,
		)
	}
}

// publishScanEvent broadcasts the scan pass summary.
func (e *Engine) publishScanEvent(summary ScanSummary, duration time.Duration) {
	if e.events == nil {
		return
	}

	payload, err := json.Marshal(map[string]any{
		"triggers_found": summary.TriggersFound,
		"successes":      summary.Successes,
		"failures":       summary.Failures,
		"duration_ms":    duration.Milliseconds(),
	})
	if err != nil {
		return
	}

	if pubErr := e.events.Publish("relay/events/scan/completed", payload, 1, false); pubErr != nil {
		e.logger.Warn("failed to publish scan event", "error", pubErr)
	}
}
