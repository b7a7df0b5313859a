// Package influxdb is the gateway's time-series sink, built on the official
// influxdb-client-go v2 library.
//
// Ambient sensor readings and people-counting status are written as
// untagged points with second precision. Writes never block the caller and
// failures are only logged.
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // run without a sink
//	}
//	defer client.Close()
//
//	client.WriteFields("security", map[string]any{"people_count": 4.0})
package influxdb
