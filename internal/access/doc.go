// Package access implements the door's one-time-code gate.
//
// The code comes from the door keypad device over MQTT and is held in the
// state store. A matching submission publishes a single door-open command.
// Codes are compared in constant time and never logged or stored.
package access
