package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteFields queues one point with the given fields, timestamped now.
// An empty field set is dropped: line protocol requires at least one field.
//
//	client.WriteFields("ambient", map[string]any{"temperature": 23.5})
func (c *Client) WriteFields(measurement string, fields map[string]any) {
	c.WriteFieldsWithTime(measurement, fields, time.Now())
}

// WriteFieldsWithTime is WriteFields with an explicit timestamp.
func (c *Client) WriteFieldsWithTime(measurement string, fields map[string]any, ts time.Time) {
	if !c.IsConnected() || measurement == "" || len(fields) == 0 {
		return
	}

	// Untagged, so series line up with what the devices' earlier gateway
	// wrote into the same bucket.
	c.writeAPI.WritePoint(write.NewPoint(measurement, nil, fields, ts))
}
