package device

// Projection is the externally visible shape of a device entry, shared
// by the REST and WebSocket surfaces. Unset scalar fields serialise as
// JSON null rather than empty strings.
type Projection struct {
	AreaID           *string  `json:"area_id"`
	ConfigurationURL *string  `json:"configuration_url"`
	ConfigEntries    []string `json:"config_entries"`
	Connections      []Pair   `json:"connections"`
	DisabledBy       *string  `json:"disabled_by"`
	EntryType        *string  `json:"entry_type"`
	ID               string   `json:"id"`
	Identifiers      []Pair   `json:"identifiers"`
	Manufacturer     *string  `json:"manufacturer"`
	Model            *string  `json:"model"`
	NameByUser       *string  `json:"name_by_user"`
	Name             string   `json:"name"`
	SWVersion        *string  `json:"sw_version"`
	HWVersion        *string  `json:"hw_version"`
	ViaDeviceID      *string  `json:"via_device_id"`
}

// Project converts an entry to its external projection.
func Project(e *DeviceEntry) *Projection {
	if e == nil {
		return nil
	}
	return &Projection{
		AreaID:           nullable(e.AreaID),
		ConfigurationURL: nullable(e.ConfigurationURL),
		ConfigEntries:    emptyIfNilStrings(e.ConfigEntries),
		Connections:      emptyIfNilPairs(e.Connections),
		DisabledBy:       nullable(string(e.DisabledBy)),
		EntryType:        nullable(string(e.EntryType)),
		ID:               e.ID,
		Identifiers:      emptyIfNilPairs(e.Identifiers),
		Manufacturer:     nullable(e.Manufacturer),
		Model:            nullable(e.Model),
		NameByUser:       nullable(e.NameByUser),
		Name:             e.Name,
		SWVersion:        nullable(e.SWVersion),
		HWVersion:        nullable(e.HWVersion),
		ViaDeviceID:      nullable(e.ViaDeviceID),
	}
}

// ProjectAll converts a slice of entries.
func ProjectAll(entries []DeviceEntry) []*Projection {
	out := make([]*Projection, 0, len(entries))
	for i := range entries {
		out = append(out, Project(&entries[i]))
	}
	return out
}

// nullable maps the "" = unset convention to a JSON null.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
