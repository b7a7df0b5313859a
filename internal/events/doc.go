// Package events carries state-change notifications from the telemetry
// ingestor to live views such as the WebSocket hub.
//
// It is a thin typed wrapper over github.com/btittelbach/pubsub.
package events
