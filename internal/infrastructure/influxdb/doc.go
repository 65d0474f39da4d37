// Package influxdb provides InfluxDB connectivity for Device Core.
//
// It wraps the official influxdb-client-go v2 library with Device
// Core-specific patterns for connection management, metric writing, and
// health monitoring.
//
// # Purpose
//
// This package handles time-series telemetry for:
//   - Registry command latency and outcomes
//   - Registry size over time (devices, config entries)
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteCommandMetric("device_registry/update", "success", elapsed)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are delivered via
// the SetOnError callback. Connection and health check errors are
// returned directly.
package influxdb
