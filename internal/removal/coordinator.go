package removal

import (
	"context"
	"errors"
	"fmt"

	"github.com/nerrad567/device-core/internal/device"
	"github.com/nerrad567/device-core/internal/infrastructure/logging"
	"github.com/nerrad567/device-core/internal/integration"
	"github.com/nerrad567/device-core/internal/subsystem"
)

// DeviceRegistry is the slice of the device registry the coordinator needs.
type DeviceRegistry interface {
	Get(id string) (*device.DeviceEntry, error)
	Update(ctx context.Context, id string, u device.Update) (*device.DeviceEntry, error)
}

// EntryStore is the slice of the config entry store the coordinator needs.
type EntryStore interface {
	Get(id string) (*subsystem.ConfigEntry, error)
}

// HandlerResolver is the slice of the integration registry the
// coordinator needs.
type HandlerResolver interface {
	Resolve(domain string) (integration.Handler, error)
}

// Coordinator runs the guarded removal protocol.
type Coordinator struct {
	devices  DeviceRegistry
	entries  EntryStore
	handlers HandlerResolver
	log      *logging.Logger
}

// NewCoordinator wires a coordinator over the three collaborating stores.
func NewCoordinator(devices DeviceRegistry, entries EntryStore, handlers HandlerResolver, log *logging.Logger) *Coordinator {
	if log == nil {
		log = logging.Default()
	}
	return &Coordinator{
		devices:  devices,
		entries:  entries,
		handlers: handlers,
		log:      log.Component("removal"),
	}
}

// RemoveConfigEntry severs the association between a device and a
// config entry. It returns the device's state after the removal, or
// nil when severing the last association deleted the device entirely.
//
// The guards run in a fixed order and the first failure aborts the
// whole operation with no side effects:
//
//  1. The config entry must exist.
//  2. It must declare device removal support.
//  3. The device must exist.
//  4. The device must hold the association.
//  5. The entry's integration must be registered.
//  6. The integration's removal hook must consent. A handler without
//     the hook counts as a rejection.
//
// Only after all six pass is the registry mutated.
func (c *Coordinator) RemoveConfigEntry(ctx context.Context, deviceID, configEntryID string) (*device.DeviceEntry, error) {
	entry, err := c.entries.Get(configEntryID)
	if err != nil {
		if errors.Is(err, subsystem.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownConfigEntry, configEntryID)
		}
		return nil, fmt.Errorf("looking up config entry: %w", err)
	}

	if !entry.SupportsRemoveDevice {
		return nil, fmt.Errorf("%w: %s", ErrRemovalUnsupported, configEntryID)
	}

	dev, err := c.devices.Get(deviceID)
	if err != nil {
		if errors.Is(err, device.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownDevice, deviceID)
		}
		return nil, fmt.Errorf("looking up device: %w", err)
	}

	if !dev.HasConfigEntry(configEntryID) {
		return nil, fmt.Errorf("%w: %s not in %s", ErrEntryNotInDevice, configEntryID, deviceID)
	}

	handler, err := c.handlers.Resolve(entry.Domain)
	if err != nil {
		if errors.Is(err, integration.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrIntegrationNotFound, entry.Domain)
		}
		return nil, fmt.Errorf("resolving integration: %w", err)
	}

	remover, ok := handler.(integration.DeviceRemover)
	if !ok {
		// Declared support without the hook is a contract violation on
		// the integration's side; fail closed.
		c.log.Warn("config entry declares removal support but handler lacks the hook",
			"domain", entry.Domain, "entry_id", configEntryID)
		return nil, fmt.Errorf("%w: %s has no removal hook", ErrRemovalRejected, entry.Domain)
	}

	confirmed, err := remover.RemoveConfigEntryDevice(ctx, entry, dev)
	if err != nil {
		return nil, fmt.Errorf("consulting %s integration: %w", entry.Domain, err)
	}
	if !confirmed {
		return nil, fmt.Errorf("%w: %s vetoed removal of %s", ErrRemovalRejected, entry.Domain, deviceID)
	}

	updated, err := c.devices.Update(ctx, deviceID, device.Update{
		RemoveConfigEntryID: configEntryID,
	})
	if err != nil {
		if errors.Is(err, device.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownDevice, deviceID)
		}
		return nil, fmt.Errorf("%w: %w", ErrMutationFailed, err)
	}

	if updated == nil {
		c.log.Info("device deleted after last association removed",
			"device_id", deviceID, "entry_id", configEntryID)
	} else {
		c.log.Info("config entry removed from device",
			"device_id", deviceID, "entry_id", configEntryID)
	}

	return updated, nil
}
