// Package api is the gateway's HTTP surface.
//
// It serves the code entry page and control panel, the JSON command
// endpoints the panel calls (lighting, humidifier, servo, occupancy limit),
// the sensor and health reads, the access log, and a WebSocket stream of
// state snapshots.
//
// The server follows the same lifecycle as the infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api
