package mqtt

import "fmt"

// Topic prefixes for the Relay MQTT namespace.
//
// All event topics follow the scheme: relay/events/{category}/{id}/{event}
const (
	// TopicPrefixEvents is the base for engine event topics.
	TopicPrefixEvents = "relay/events"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "relay/system"
)

// Topics provides builders for Relay MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	topic := topics.AutomationFired("auto-7f2c")
//	// Returns: "relay/events/automation/auto-7f2c/fired"
type Topics struct{}

// AutomationFired returns the topic for successful automation executions.
//
// Example: relay/events/automation/auto-7f2c/fired
func (Topics) AutomationFired(automationID string) string {
	return fmt.Sprintf("%s/automation/%s/fired", TopicPrefixEvents, automationID)
}

// AutomationFailed returns the topic for failed automation executions.
//
// Example: relay/events/automation/auto-7f2c/failed
func (Topics) AutomationFailed(automationID string) string {
	return fmt.Sprintf("%s/automation/%s/failed", TopicPrefixEvents, automationID)
}

// ScanCompleted returns the topic for scan cycle summaries.
//
// Example: relay/events/scan/completed
func (Topics) ScanCompleted() string {
	return fmt.Sprintf("%s/scan/completed", TopicPrefixEvents)
}

// SystemStatus returns the system status topic.
// Retained messages here reflect whether Relay is online or offline.
//
// Example: relay/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllAutomationEvents returns a pattern matching all automation events.
//
// Pattern: relay/events/automation/+/+
func (Topics) AllAutomationEvents() string {
	return fmt.Sprintf("%s/automation/+/+", TopicPrefixEvents)
}

// AllEvents returns a pattern matching all Relay events.
//
// Pattern: relay/events/#
func (Topics) AllEvents() string {
	return TopicPrefixEvents + "/#"
}
