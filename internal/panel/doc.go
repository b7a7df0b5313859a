// Package panel renders the browser pages: the one-time-code entry form
// and the home control panel.
//
// Templates and static assets are embedded with go:embed. The control panel
// keeps itself current over the WebSocket stream and falls back to polling
// the sensor endpoint while the socket is down.
package panel
