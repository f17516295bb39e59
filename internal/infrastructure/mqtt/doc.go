// Package mqtt provides the MQTT client used to broadcast Relay events.
//
// The engine publishes automation lifecycle events (scan completed,
// automation fired, execution failed) so external consumers can react
// without polling the admin API. The client wraps paho.mqtt.golang with
// connection management, automatic reconnection, and a Last Will and
// Testament so subscribers can detect when Relay goes offline.
//
// MQTT support is optional. When disabled in configuration the engine
// runs without a broker and events are simply not broadcast.
package mqtt
