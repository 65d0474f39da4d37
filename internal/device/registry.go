package device

import (
	"context"
	"fmt"
	"sync"

	"github.com/nerrad567/device-core/internal/infrastructure/logging"
)

// EventType classifies a registry change notification.
type EventType string

// Registry event types. Values double as the MQTT event topic suffix.
const (
	EventCreated EventType = "device.created"
	EventUpdated EventType = "device.updated"
	EventRemoved EventType = "device.removed"
)

// Event describes one registry change. Entry is a deep copy and is nil
// for EventRemoved.
type Event struct {
	Type     EventType
	DeviceID string
	Entry    *DeviceEntry
}

// Registry manages device entries with an in-memory cache backed by a
// Repository. Reads never touch the database; mutations write through
// and update the cache under a single writer lock.
type Registry struct {
	repo Repository
	log  *logging.Logger

	// cacheMu guards cache map access. Mutations additionally hold
	// writeMu for their whole read-modify-write span so concurrent
	// updates cannot interleave between cache read and persist.
	cacheMu sync.RWMutex
	cache   map[string]*DeviceEntry

	writeMu sync.Mutex

	onEvent func(Event)
}

// NewRegistry creates a registry backed by the given repository.
// Call RefreshCache before serving reads.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:  repo,
		log:   logging.Default().Component("device"),
		cache: make(map[string]*DeviceEntry),
	}
}

// SetLogger replaces the default logger.
func (r *Registry) SetLogger(log *logging.Logger) {
	if log != nil {
		r.log = log.Component("device")
	}
}

// SetOnEvent installs the change notification hook. The hook runs
// synchronously on the mutating goroutine and must not call back into
// the registry's mutation methods.
func (r *Registry) SetOnEvent(fn func(Event)) {
	r.onEvent = fn
}

// RefreshCache reloads the cache from the repository.
func (r *Registry) RefreshCache(ctx context.Context) error {
	entries, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("refreshing device cache: %w", err)
	}

	cache := make(map[string]*DeviceEntry, len(entries))
	for i := range entries {
		cache[entries[i].ID] = &entries[i]
	}

	r.cacheMu.Lock()
	r.cache = cache
	r.cacheMu.Unlock()

	r.log.Info("device cache refreshed", "count", len(cache))
	return nil
}

// Get returns a copy of the entry with the given ID.
func (r *Registry) Get(id string) (*DeviceEntry, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	entry, ok := r.cache[id]
	if !ok {
		return nil, ErrNotFound
	}
	return entry.DeepCopy(), nil
}

// List returns copies of all entries. Order is unspecified.
func (r *Registry) List() []DeviceEntry {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	entries := make([]DeviceEntry, 0, len(r.cache))
	for _, entry := range r.cache {
		entries = append(entries, *entry.DeepCopy())
	}
	return entries
}

// Count returns the number of cached entries.
func (r *Registry) Count() int {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return len(r.cache)
}

// Update applies a partial mutation to the entry with the given ID and
// returns the resulting state.
//
// Unset fields keep their current value; fields carrying explicit null
// are cleared. Removing a config entry association the device does not
// hold is a no-op. Removing the last association deletes the entry
// entirely, in which case Update returns (nil, nil).
//
// An update that changes nothing returns the current state without
// persisting or emitting an event.
func (r *Registry) Update(ctx context.Context, id string, u Update) (*DeviceEntry, error) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	r.cacheMu.RLock()
	current, ok := r.cache[id]
	r.cacheMu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}

	if u.Empty() {
		return current.DeepCopy(), nil
	}

	if u.DisabledBy.Set {
		if err := ValidateDisabledBy(DisabledBy(u.DisabledBy.String())); err != nil {
			return nil, err
		}
	}

	updated := current.DeepCopy()
	changed := false

	if u.AreaID.Set && u.AreaID.String() != updated.AreaID {
		updated.AreaID = u.AreaID.String()
		changed = true
	}
	if u.NameByUser.Set && u.NameByUser.String() != updated.NameByUser {
		if len(u.NameByUser.String()) > maxNameLength {
			return nil, fmt.Errorf("%w: name_by_user exceeds %d characters", ErrInvalidField, maxNameLength)
		}
		updated.NameByUser = u.NameByUser.String()
		changed = true
	}
	if u.DisabledBy.Set && DisabledBy(u.DisabledBy.String()) != updated.DisabledBy {
		updated.DisabledBy = DisabledBy(u.DisabledBy.String())
		changed = true
	}

	if u.RemoveConfigEntryID != "" {
		remaining, found := removeString(updated.ConfigEntries, u.RemoveConfigEntryID)
		if found {
			if len(remaining) == 0 {
				return nil, r.deleteEntry(ctx, updated)
			}
			updated.ConfigEntries = remaining
			changed = true
		}
	}

	if !changed {
		return current.DeepCopy(), nil
	}

	if err := r.repo.Replace(ctx, updated); err != nil {
		return nil, fmt.Errorf("persisting device update: %w", err)
	}

	r.cacheMu.Lock()
	r.cache[updated.ID] = updated
	r.cacheMu.Unlock()

	r.log.Info("device updated", "device_id", updated.ID)
	r.emit(Event{Type: EventUpdated, DeviceID: updated.ID, Entry: updated.DeepCopy()})

	return updated.DeepCopy(), nil
}

// deleteEntry removes an entry whose last config entry association was
// severed. Caller holds writeMu.
func (r *Registry) deleteEntry(ctx context.Context, entry *DeviceEntry) error {
	if err := r.repo.Delete(ctx, entry.ID); err != nil {
		return fmt.Errorf("deleting device entry: %w", err)
	}

	r.cacheMu.Lock()
	delete(r.cache, entry.ID)
	r.cacheMu.Unlock()

	r.log.Info("device removed", "device_id", entry.ID, "name", entry.Name)
	r.emit(Event{Type: EventRemoved, DeviceID: entry.ID})
	return nil
}

// GetOrCreate registers a device from a discovery seed. An existing
// entry sharing at least one identifier or connection pair with the
// seed is updated in place: identity sets are unioned, the seed's
// config entry is associated, and display fields the seed carries are
// refreshed. Otherwise a new entry is created.
//
// The second return value reports whether a new entry was created.
func (r *Registry) GetOrCreate(ctx context.Context, seed *Seed) (*DeviceEntry, bool, error) {
	if err := ValidateSeed(seed); err != nil {
		return nil, false, err
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	connections := normalizePairs(seed.Connections)
	identifiers := normalizePairs(seed.Identifiers)

	if existing := r.match(connections, identifiers); existing != nil {
		entry, err := r.merge(ctx, existing, seed, connections, identifiers)
		if err != nil {
			return nil, false, err
		}
		return entry, false, nil
	}

	entry := &DeviceEntry{
		ID:               NewID(),
		Name:             seed.Name,
		Manufacturer:     seed.Manufacturer,
		Model:            seed.Model,
		SWVersion:        seed.SWVersion,
		HWVersion:        seed.HWVersion,
		ConfigurationURL: seed.ConfigurationURL,
		EntryType:        seed.EntryType,
		ViaDeviceID:      seed.ViaDeviceID,
		Connections:      connections,
		Identifiers:      identifiers,
		ConfigEntries:    []string{seed.ConfigEntryID},
	}

	if err := r.repo.Insert(ctx, entry); err != nil {
		return nil, false, fmt.Errorf("persisting new device: %w", err)
	}

	r.cacheMu.Lock()
	r.cache[entry.ID] = entry
	r.cacheMu.Unlock()

	r.log.Info("device registered", "device_id", entry.ID, "name", entry.Name)
	r.emit(Event{Type: EventCreated, DeviceID: entry.ID, Entry: entry.DeepCopy()})

	return entry.DeepCopy(), true, nil
}

// match finds a cached entry sharing an identity pair with the seed.
// Caller holds writeMu.
func (r *Registry) match(connections, identifiers []Pair) *DeviceEntry {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	for _, entry := range r.cache {
		if pairsOverlap(entry.Identifiers, identifiers) || pairsOverlap(entry.Connections, connections) {
			return entry
		}
	}
	return nil
}

// merge folds a seed into an existing entry. Caller holds writeMu.
func (r *Registry) merge(ctx context.Context, existing *DeviceEntry, seed *Seed, connections, identifiers []Pair) (*DeviceEntry, error) {
	updated := existing.DeepCopy()
	changed := false

	merged := normalizePairs(append(updated.Connections, connections...))
	if len(merged) != len(updated.Connections) {
		updated.Connections = merged
		changed = true
	}
	merged = normalizePairs(append(updated.Identifiers, identifiers...))
	if len(merged) != len(updated.Identifiers) {
		updated.Identifiers = merged
		changed = true
	}

	if !updated.HasConfigEntry(seed.ConfigEntryID) {
		updated.ConfigEntries = normalizeStrings(append(updated.ConfigEntries, seed.ConfigEntryID))
		changed = true
	}

	// Seeds carry the device's self-reported display data, which wins
	// over stale values. Empty seed fields leave existing values alone.
	for _, f := range []struct {
		src string
		dst *string
	}{
		{seed.Name, &updated.Name},
		{seed.Manufacturer, &updated.Manufacturer},
		{seed.Model, &updated.Model},
		{seed.SWVersion, &updated.SWVersion},
		{seed.HWVersion, &updated.HWVersion},
		{seed.ConfigurationURL, &updated.ConfigurationURL},
		{seed.ViaDeviceID, &updated.ViaDeviceID},
	} {
		if f.src != "" && f.src != *f.dst {
			*f.dst = f.src
			changed = true
		}
	}

	if !changed {
		return existing.DeepCopy(), nil
	}

	if err := r.repo.Replace(ctx, updated); err != nil {
		return nil, fmt.Errorf("persisting merged device: %w", err)
	}

	r.cacheMu.Lock()
	r.cache[updated.ID] = updated
	r.cacheMu.Unlock()

	r.log.Info("device merged", "device_id", updated.ID, "config_entry_id", seed.ConfigEntryID)
	r.emit(Event{Type: EventUpdated, DeviceID: updated.ID, Entry: updated.DeepCopy()})

	return updated.DeepCopy(), nil
}

func (r *Registry) emit(evt Event) {
	if r.onEvent != nil {
		r.onEvent(evt)
	}
}
