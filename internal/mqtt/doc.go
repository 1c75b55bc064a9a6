// Package mqtt publishes device state from the bridge to an MQTT broker.
//
// Topic layout, all retained at QoS 1:
//
//	<prefix>/bridge/status          online | offline (last will)
//	<prefix>/<serial>/state         {"serial":..,"state":"open","device_class":"garage","timestamp":..}
//	<prefix>/<serial>/availability  online | offline
//
// The prefix defaults to "remootio".
package mqtt
