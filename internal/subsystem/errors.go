package subsystem

import "errors"

var (
	// ErrNotFound is returned when a config entry ID does not exist.
	ErrNotFound = errors.New("subsystem: config entry not found")

	// ErrEntryExists is returned when creating a config entry with an ID
	// that already exists.
	ErrEntryExists = errors.New("subsystem: config entry already exists")

	// ErrInvalidEntry is returned when a config entry fails validation.
	ErrInvalidEntry = errors.New("subsystem: invalid config entry")
)
