package audit

// Action names recorded by the command surfaces. Dotted entity.verb
// form, matching the registry's event naming.
const (
	ActionDeviceRegister          = "device.register"
	ActionDeviceUpdate            = "device.update"
	ActionDeviceRemoveConfigEntry = "device.remove_config_entry"
	ActionConfigEntryCreate       = "config_entry.create"
	ActionConfigEntryDelete       = "config_entry.delete"
	ActionLogin                   = "auth.login"
)

// Entity types referenced by audit entries.
const (
	EntityDevice      = "device"
	EntityConfigEntry = "config_entry"
	EntityUser        = "user"
)

// Sources identify which surface performed the action.
const (
	SourceREST      = "rest"
	SourceWebSocket = "websocket"
	SourceSystem    = "system"
)
