// Package auth provides authentication and authorisation for Device Core.
//
// It implements a 2-tier role model (viewer → admin) with:
//   - Argon2id password hashing (OWASP 2025 recommendation)
//   - Short-lived JWT access tokens validated by signature only
//   - Single-use WebSocket connection tickets minted from access tokens
//
// Viewers can read the registry and open event subscriptions; every
// mutating command (updates, removals, config entry management)
// requires admin. There is no per-resource scoping: the registry is a
// single shared catalogue.
package auth
