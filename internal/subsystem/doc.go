// Package subsystem manages config entries, the records of configured
// integration instances. A config entry ties a set of devices to the
// integration domain that registered them and declares whether that
// integration participates in coordinated device removal.
//
// The Store keeps all entries in memory, backed by SQLite, mirroring
// the device registry's cache discipline: reads never touch the
// database.
package subsystem
