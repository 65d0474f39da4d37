// Package api provides the command surfaces for the device registry: a
// WebSocket command channel and a REST mirror under /api/v1.
//
// The WebSocket channel is the primary surface. Clients authenticate
// with a single-use ticket (minted over the authenticated REST API),
// then issue registry commands as JSON envelopes; every command yields
// exactly one result message carrying the caller's request ID. Registry
// mutations fan out to subscribed clients as event messages.
//
// The REST mirror exposes the same operations over chi-routed HTTP with
// bearer-token authentication. Mutating endpoints require the admin
// role.
package api
