package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteScanMetric records a summary of one completed scan cycle.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - triggersFound: Number of trigger candidates identified by the scan
//   - successes: Number of candidates that executed successfully
//   - failures: Number of candidates that failed
//   - duration: Wall-clock duration of the scan cycle
//
// Example:
//
//	client.WriteScanMetric(12, 10, 2, 340*time.Millisecond)
func (c *Client) WriteScanMetric(triggersFound, successes, failures int, duration time.Duration) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"scan_cycles",
		nil,
		map[string]interface{}{
			"triggers_found": triggersFound,
			"successes":      successes,
			"failures":       failures,
			"duration_ms":    duration.Milliseconds(),
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteExecutionMetric records the outcome of a single automation execution.
//
// Parameters:
//   - automationID: The automation that fired
//   - triggerType: The trigger type (e.g., "meeting_reminder")
//   - status: Execution outcome ("success" or "failure")
//   - duration: How long the action execution took
func (c *Client) WriteExecutionMetric(automationID, triggerType, status string, duration time.Duration) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"executions",
		map[string]string{
			"automation_id": automationID,
			"trigger_type":  triggerType,
			"status":        status,
		},
		map[string]interface{}{
			"duration_ms": duration.Milliseconds(),
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
