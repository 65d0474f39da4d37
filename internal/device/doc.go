// Package device provides the device registry for Device Core.
//
// The registry is the catalogue of every physical and logical device the
// installation knows about. Each entry records how the device identifies
// itself on the network (connections), how integrations identify it
// (identifiers), and which config entries registered it (config_entries).
// An entry lives exactly as long as it has at least one config entry
// association: removing the last association deletes the entry.
//
// # Key Types
//
//   - DeviceEntry: one device, with display data and its set-valued identity fields
//   - Update: a partial, tri-state mutation applied through Registry.Update
//   - Seed: the registration payload for Registry.GetOrCreate
//   - Projection: the externally visible record shape
//
// # Usage
//
//	repo := device.NewSQLiteRepository(db)
//	registry := device.NewRegistry(repo)
//	registry.SetLogger(log)
//
//	if err := registry.RefreshCache(ctx); err != nil {
//	    return err
//	}
//
//	entry, err := registry.Update(ctx, id, device.Update{
//	    NameByUser: device.NullString("Kitchen bridge"),
//	})
//
// # Thread Safety
//
// The Registry is safe for concurrent use. Reads are served from an
// in-memory cache guarded by a read-write mutex; mutations are serialised
// by the registry itself so handlers never coordinate writes.
package device
