// Package broker runs an optional in-process MQTT broker (mochi-mqtt).
//
// Small installs can set mqtt.embedded.enabled and skip running Mosquitto;
// the gateway's own client and every device then connect to this broker.
// Tests use it as a throwaway broker on a loopback port.
package broker
