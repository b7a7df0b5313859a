// Package ingest turns inbound device messages into state updates.
//
// Sensor and people-counting reports are merged into the state store and
// forwarded to the time-series sink. One-time codes replace the stored
// code. Occupancy warnings trigger a lighting blink. Device status topics
// keep lighting, humidifier, and door state current.
//
// Messages are applied by a single goroutine in the order they arrive.
package ingest
