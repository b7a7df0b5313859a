// Package dispatch publishes device commands on the MQTT bus: lighting,
// humidifier, door servo, and the people counter's occupancy limit.
package dispatch
