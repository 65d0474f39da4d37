package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/device-core/internal/audit"
	"github.com/nerrad567/device-core/internal/device"
)

// handleListDevices returns the projection of every registry entry.
func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	devices := device.ProjectAll(s.registry.List())
	writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

// handleGetDevice returns a single device projection by ID.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	entry, err := s.registry.Get(id)
	if err != nil {
		writeDeviceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, device.Project(entry))
}

// handleRegisterDevice registers a device from a subsystem seed. Matching
// an existing entry by identifier or connection merges into it; otherwise
// a new entry is created (201 vs 200).
func (s *Server) handleRegisterDevice(w http.ResponseWriter, r *http.Request) {
	var seed device.Seed
	if err := json.NewDecoder(r.Body).Decode(&seed); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	start := time.Now()
	entry, created, err := s.registry.GetOrCreate(r.Context(), &seed)
	if err != nil {
		s.recordCommand("register", "error", start)
		writeDeviceError(w, err)
		return
	}
	s.recordCommand("register", "ok", start)

	s.auditLog(r.Context(), audit.SourceREST, audit.ActionDeviceRegister, audit.EntityDevice,
		entry.ID, callerID(r), map[string]any{"config_entry_id": seed.ConfigEntryID, "created": created})

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, device.Project(entry))
}

// handleUpdateDevice applies a partial update to a device. The only
// disable reason a caller may set is the user value (or explicit null to
// re-enable); other reasons are owned by the system.
func (s *Server) handleUpdateDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var update device.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if update.DisabledBy.Set && update.DisabledBy.Value != nil &&
		device.DisabledBy(*update.DisabledBy.Value) != device.DisabledByUser {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "disabled_by must be \"user\" or null")
		return
	}

	start := time.Now()
	entry, err := s.registry.Update(r.Context(), id, update)
	if err != nil {
		s.recordCommand("update", "error", start)
		writeDeviceError(w, err)
		return
	}
	s.recordCommand("update", "ok", start)

	s.auditLog(r.Context(), audit.SourceREST, audit.ActionDeviceUpdate, audit.EntityDevice,
		id, callerID(r), nil)

	writeJSON(w, http.StatusOK, device.Project(entry))
}

// handleRemoveConfigEntry runs the removal guard chain for one
// device/config-entry association. Success returns the surviving device
// projection, or null when removing the last association deleted the
// entry.
func (s *Server) handleRemoveConfigEntry(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "id")
	entryID := chi.URLParam(r, "entryID")

	start := time.Now()

	// The coordinator run must survive a caller disconnect: once the guard
	// chain starts, cancelling mid-flight could abandon an integration
	// verdict or abort the mutation.
	ctx := context.WithoutCancel(r.Context())
	entry, err := s.remover.RemoveConfigEntry(ctx, deviceID, entryID)
	if err != nil {
		s.recordCommand("remove_config_entry", "rejected", start)
		writeRemovalError(w, err)
		return
	}
	s.recordCommand("remove_config_entry", "ok", start)

	s.auditLog(ctx, audit.SourceREST, audit.ActionDeviceRemoveConfigEntry, audit.EntityDevice,
		deviceID, callerID(r), map[string]any{"config_entry_id": entryID, "deleted": entry == nil})

	writeJSON(w, http.StatusOK, map[string]any{"device": device.Project(entry)})
}

// recordCommand writes a command outcome/latency point when telemetry
// is enabled.
func (s *Server) recordCommand(command, outcome string, start time.Time) {
	if s.telemetry != nil {
		s.telemetry.WriteCommandMetric(command, outcome, time.Since(start))
	}
}

// callerID returns the user ID of the authenticated caller, or "" on
// unauthenticated requests.
func callerID(r *http.Request) string {
	if claims := claimsFromContext(r.Context()); claims != nil {
		return claims.Subject
	}
	return ""
}
