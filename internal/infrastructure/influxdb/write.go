package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteCommandMetric records one registry command execution.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - command: The command name (e.g., "device_registry/remove_config_entry")
//   - outcome: "success" or the error code the caller saw
//   - duration: End-to-end handling time
//
// Example:
//
//	client.WriteCommandMetric("device_registry/update", "success", elapsed)
func (c *Client) WriteCommandMetric(command string, outcome string, duration time.Duration) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"registry_commands",
		map[string]string{
			"command": command,
			"outcome": outcome,
		},
		map[string]interface{}{
			"duration_ms": float64(duration.Microseconds()) / 1000.0,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteRegistrySize records the current entry counts, giving dashboards
// a fleet-size series to plot removals and discoveries against.
func (c *Client) WriteRegistrySize(devices int, configEntries int) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"registry_size",
		nil,
		map[string]interface{}{
			"devices":        devices,
			"config_entries": configEntries,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for measurements that don't fit the helper methods.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
