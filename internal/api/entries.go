package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/device-core/internal/audit"
	"github.com/nerrad567/device-core/internal/subsystem"
)

// handleListEntries returns all registered config entries.
func (s *Server) handleListEntries(w http.ResponseWriter, _ *http.Request) {
	entries := s.entries.List()
	writeJSON(w, http.StatusOK, map[string]any{"config_entries": entries, "count": len(entries)})
}

// createEntryRequest is the request body for POST /config-entries.
type createEntryRequest struct {
	Domain               string `json:"domain"`
	Title                string `json:"title"`
	SupportsRemoveDevice bool   `json:"supports_remove_device"`
}

// handleCreateEntry registers a new subsystem config entry.
func (s *Server) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	var req createEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	entry, err := s.entries.Create(r.Context(), &subsystem.ConfigEntry{
		Domain:               req.Domain,
		Title:                req.Title,
		SupportsRemoveDevice: req.SupportsRemoveDevice,
	})
	if err != nil {
		writeEntryError(w, err)
		return
	}

	s.auditLog(r.Context(), audit.SourceREST, audit.ActionConfigEntryCreate, audit.EntityConfigEntry,
		entry.ID, callerID(r), map[string]any{"domain": entry.Domain})

	writeJSON(w, http.StatusCreated, entry)
}

// handleDeleteEntry removes a config entry. Device associations pointing
// at the entry are not touched; removing those is the removal
// coordinator's job.
func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.entries.Delete(r.Context(), id); err != nil {
		if errors.Is(err, subsystem.ErrNotFound) {
			writeNotFound(w, "Unknown config entry")
			return
		}
		writeInternalError(w, "failed to delete config entry")
		return
	}

	s.auditLog(r.Context(), audit.SourceREST, audit.ActionConfigEntryDelete, audit.EntityConfigEntry,
		id, callerID(r), nil)

	w.WriteHeader(http.StatusNoContent)
}
