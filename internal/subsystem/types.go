package subsystem

import "time"

// ConfigEntry records one configured instance of an integration.
// Domain names the integration; SupportsRemoveDevice declares whether
// the integration implements the device removal hook.
type ConfigEntry struct {
	ID                   string    `json:"id"`
	Domain               string    `json:"domain"`
	Title                string    `json:"title"`
	SupportsRemoveDevice bool      `json:"supports_remove_device"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// Copy returns an independent copy of the entry.
func (e *ConfigEntry) Copy() *ConfigEntry {
	if e == nil {
		return nil
	}
	cpy := *e
	return &cpy
}
