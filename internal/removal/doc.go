// Package removal coordinates severing a device's association with a
// config entry across the registry, the config entry store, and the
// owning integration.
//
// The coordinator runs a fixed guard chain before any state changes:
// the config entry must exist and declare removal support, the device
// must exist and actually hold the association, the integration must be
// resolvable, and its removal hook must consent. Only then is the
// registry mutated. The chain short-circuits at the first failing
// guard, so a request that trips an early guard causes no side effects
// at all.
//
// A config entry that claims removal support but whose handler lacks
// the removal hook is treated as a rejection, never as consent.
package removal
