// Package integration resolves config entry domains to their runtime
// handlers and defines the capability interfaces handlers may satisfy.
//
// Every integration provides a Handler. Capabilities beyond the base
// interface are discovered by type assertion: an integration that wants
// a say in device removal additionally implements DeviceRemover. The
// removal coordinator treats a missing DeviceRemover on an entry that
// claims removal support as an automatic rejection, never as consent.
//
// MQTTGate adapts out-of-process daemons to the DeviceRemover interface
// by running the confirmation round trip over the broker.
package integration
