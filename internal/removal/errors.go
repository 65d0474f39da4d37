package removal

import "errors"

// Guard chain errors, in the order the coordinator checks them.
// Use errors.Is() to classify failures; PublicMessage() gives the
// caller-facing text for each.
var (
	// ErrUnknownConfigEntry is returned when the named config entry does not exist.
	ErrUnknownConfigEntry = errors.New("removal: unknown config entry")

	// ErrRemovalUnsupported is returned when the config entry does not
	// declare device removal support.
	ErrRemovalUnsupported = errors.New("removal: config entry does not support device removal")

	// ErrUnknownDevice is returned when the named device does not exist.
	ErrUnknownDevice = errors.New("removal: unknown device")

	// ErrEntryNotInDevice is returned when the device exists but holds no
	// association with the named config entry.
	ErrEntryNotInDevice = errors.New("removal: config entry not in device")

	// ErrIntegrationNotFound is returned when no handler is registered for
	// the config entry's domain.
	ErrIntegrationNotFound = errors.New("removal: integration not found")

	// ErrRemovalRejected is returned when the integration vetoes the
	// removal, or lacks the removal hook entirely.
	ErrRemovalRejected = errors.New("removal: rejected by integration")

	// ErrMutationFailed wraps registry failures during the final mutation
	// step, after every guard has passed.
	ErrMutationFailed = errors.New("removal: mutation failed")
)

// PublicMessage returns the caller-facing text for a guard chain error,
// or the empty string for errors outside the chain.
func PublicMessage(err error) string {
	switch {
	case errors.Is(err, ErrUnknownConfigEntry):
		return "Unknown config entry"
	case errors.Is(err, ErrRemovalUnsupported):
		return "Config entry does not support device removal"
	case errors.Is(err, ErrUnknownDevice):
		return "Unknown device"
	case errors.Is(err, ErrEntryNotInDevice):
		return "Config entry not in device"
	case errors.Is(err, ErrIntegrationNotFound):
		return "Integration not found"
	case errors.Is(err, ErrRemovalRejected):
		return "Failed to remove device entry, rejected by integration"
	default:
		return ""
	}
}
