package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementRegistrationEvents = "registration_events"
	MeasurementRegistry           = "registry"
)

// RegistrationEvent is one registration lifecycle transition as recorded in
// InfluxDB. Endpoint is stored as a field, not a tag, to keep series
// cardinality bounded by event/binding/version.
type RegistrationEvent struct {
	Event    string
	Reason   string
	Endpoint string
	Binding  string
	Version  string
	Lifetime uint32
	Time     time.Time
}

// WriteRegistrationEvent records a registration transition.
// The write is non-blocking; data is batched and sent asynchronously.
//
// Example:
//
//	client.WriteRegistrationEvent(influxdb.RegistrationEvent{
//	    Event: "registered", Endpoint: "node-1", Binding: "U", Version: "1.1", Lifetime: 300,
//	})
func (c *Client) WriteRegistrationEvent(ev RegistrationEvent) {
	tags := map[string]string{
		"event":   ev.Event,
		"binding": ev.Binding,
		"version": ev.Version,
	}
	if ev.Reason != "" {
		tags["reason"] = ev.Reason
	}
	ts := ev.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	c.WritePointWithTime(MeasurementRegistrationEvents, tags, map[string]interface{}{
		"endpoint": ev.Endpoint,
		"lifetime": int64(ev.Lifetime),
	}, ts)
}

// WriteRegistryStats records the number of live and queue-mode registrations.
func (c *Client) WriteRegistryStats(total, queued int) {
	c.WritePoint(MeasurementRegistry, nil,
		map[string]interface{}{
			"clients":        total,
			"queued_clients": queued,
		})
}

// WritePoint writes a custom point with full control over tags and fields.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}

// WritePointWithTime writes a custom point with a specific timestamp.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
