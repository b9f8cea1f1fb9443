// Package influxdb records registration metrics in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, non-blocking batched writes and health checks.
//
// # Measurements
//
//   - registration_events: one point per registered/updated/deregistered
//     transition, tagged by event, reason, binding and version
//   - registry: live and queue-mode client counts
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // metrics off
//	}
//	defer client.Close()
//
//	client.WriteRegistryStats(42, 3)
//
// Write errors are delivered asynchronously through SetOnError.
package influxdb
