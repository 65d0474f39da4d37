package device

import (
	"encoding/json"
	"fmt"
	"time"
)

// DeviceEntry represents one device known to the installation.
// This matches the database schema in migrations/20260505_120000_initial_schema.up.sql.
//
// Empty-string scalar fields mean "unset" and serialise as JSON null in the
// external projection.
type DeviceEntry struct { //nolint:revive // device.DeviceEntry is clearer than device.Entry in calling code
	// Identity
	ID   string `json:"id"`
	Name string `json:"name"`

	// Display data
	NameByUser       string `json:"name_by_user"`
	Manufacturer     string `json:"manufacturer"`
	Model            string `json:"model"`
	SWVersion        string `json:"sw_version"`
	HWVersion        string `json:"hw_version"`
	ConfigurationURL string `json:"configuration_url"`

	// Classification and grouping
	EntryType EntryType `json:"entry_type"`
	AreaID    string    `json:"area_id"`

	// Disable state
	DisabledBy DisabledBy `json:"disabled_by"`

	// Network identity: set of (connection type, value) pairs, e.g. (mac, aa:bb:...).
	Connections []Pair `json:"connections"`

	// Domain identity: set of (domain, id) pairs supplied by integrations.
	Identifiers []Pair `json:"identifiers"`

	// ConfigEntries is the set of config entry IDs associated with this
	// device. Never empty for a stored entry: the registry deletes the
	// entry when the last association is removed.
	ConfigEntries []string `json:"config_entries"`

	// ViaDeviceID is a weak reference to the upstream device this one is
	// reached through (a hub or bridge). Relation only, not ownership.
	ViaDeviceID string `json:"via_device_id"`

	// Timestamps
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DeepCopy creates a complete independent copy of the entry.
// Slice fields are cloned so modifications to the copy do not affect the
// original. This is essential for cache isolation.
func (e *DeviceEntry) DeepCopy() *DeviceEntry {
	if e == nil {
		return nil
	}

	cpy := *e // Shallow copy of value fields

	if e.Connections != nil {
		cpy.Connections = make([]Pair, len(e.Connections))
		copy(cpy.Connections, e.Connections)
	}
	if e.Identifiers != nil {
		cpy.Identifiers = make([]Pair, len(e.Identifiers))
		copy(cpy.Identifiers, e.Identifiers)
	}
	if e.ConfigEntries != nil {
		cpy.ConfigEntries = make([]string, len(e.ConfigEntries))
		copy(cpy.ConfigEntries, e.ConfigEntries)
	}

	return &cpy
}

// HasConfigEntry reports whether the given config entry ID is associated
// with this device.
func (e *DeviceEntry) HasConfigEntry(entryID string) bool {
	for _, id := range e.ConfigEntries {
		if id == entryID {
			return true
		}
	}
	return false
}

// Pair is one element of a set-valued identity field: (connection type,
// value) for connections, (domain, id) for identifiers.
//
// Pairs serialise as two-element JSON arrays, matching the wire format
// subsystem daemons publish: ["mac", "aa:bb:cc:dd:ee:ff"].
type Pair struct {
	Kind  string
	Value string
}

// MarshalJSON encodes the pair as a two-element array.
func (p Pair) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{p.Kind, p.Value})
}

// UnmarshalJSON decodes a two-element array into the pair.
func (p *Pair) UnmarshalJSON(data []byte) error {
	var parts []string
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("%w: pair must be a two-element array", ErrInvalidField)
	}
	if len(parts) != 2 {
		return fmt.Errorf("%w: pair must have exactly two elements, got %d", ErrInvalidField, len(parts))
	}
	p.Kind = parts[0]
	p.Value = parts[1]
	return nil
}

// EntryType classifies a device entry.
type EntryType string

// EntryType constants. The zero value means a regular device.
const (
	EntryTypeService EntryType = "service"
)

// AllEntryTypes returns all valid non-empty entry type values.
func AllEntryTypes() []EntryType {
	return []EntryType{EntryTypeService}
}

// DisabledBy marks why a device is disabled. The zero value means enabled.
type DisabledBy string

// DisabledBy constants.
const (
	// DisabledByUser is the only value settable through the command surface.
	DisabledByUser DisabledBy = "user"

	DisabledByIntegration DisabledBy = "integration"
	DisabledByConfigEntry DisabledBy = "config_entry"
)

// AllDisabledBy returns all valid non-empty disabled_by values.
func AllDisabledBy() []DisabledBy {
	return []DisabledBy{DisabledByUser, DisabledByIntegration, DisabledByConfigEntry}
}

// NullableString is a tri-state update field: absent (leave unchanged),
// explicit JSON null (clear), or a string value (set).
//
// encoding/json cannot distinguish absent from null with plain pointers,
// so the Set flag records whether the field appeared in the payload at all.
type NullableString struct {
	Set   bool
	Value *string
}

// NullString returns a NullableString carrying a value.
func NullString(v string) NullableString {
	return NullableString{Set: true, Value: &v}
}

// NullStringCleared returns a NullableString carrying an explicit null.
func NullStringCleared() NullableString {
	return NullableString{Set: true}
}

// UnmarshalJSON records that the field was present and captures null vs value.
func (n *NullableString) UnmarshalJSON(data []byte) error {
	n.Set = true
	if string(data) == "null" {
		n.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: expected string or null", ErrInvalidField)
	}
	n.Value = &s
	return nil
}

// String returns the carried value, mapping explicit null to "".
func (n NullableString) String() string {
	if n.Value == nil {
		return ""
	}
	return *n.Value
}

// Update is a partial mutation of a device entry. Unset NullableString
// fields leave the current value unchanged.
type Update struct {
	AreaID     NullableString `json:"area_id"`
	NameByUser NullableString `json:"name_by_user"`

	// DisabledBy must be a recognised DisabledBy value or explicit null.
	// The command surface additionally restricts callers to the user value.
	DisabledBy NullableString `json:"disabled_by"`

	// RemoveConfigEntryID severs the device's association with the given
	// config entry. When the association was the last one, the registry
	// deletes the entry and Update returns (nil, nil).
	RemoveConfigEntryID string `json:"-"`
}

// Empty reports whether the update carries no changes at all.
func (u Update) Empty() bool {
	return !u.AreaID.Set && !u.NameByUser.Set && !u.DisabledBy.Set && u.RemoveConfigEntryID == ""
}

// Seed is the registration payload subsystem daemons submit at discovery
// time. GetOrCreate matches it against existing entries by identifier or
// connection overlap.
type Seed struct {
	ConfigEntryID    string    `json:"config_entry_id"`
	Name             string    `json:"name"`
	Manufacturer     string    `json:"manufacturer"`
	Model            string    `json:"model"`
	SWVersion        string    `json:"sw_version"`
	HWVersion        string    `json:"hw_version"`
	ConfigurationURL string    `json:"configuration_url"`
	EntryType        EntryType `json:"entry_type"`
	ViaDeviceID      string    `json:"via_device_id"`
	Connections      []Pair    `json:"connections"`
	Identifiers      []Pair    `json:"identifiers"`
}
