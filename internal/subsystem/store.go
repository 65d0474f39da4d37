package subsystem

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/nerrad567/device-core/internal/infrastructure/logging"
)

const maxTitleLength = 256

// Store manages config entries with an in-memory cache backed by a
// Repository. Safe for concurrent use.
type Store struct {
	repo Repository
	log  *logging.Logger

	mu    sync.RWMutex
	cache map[string]*ConfigEntry
}

// NewStore creates a store backed by the given repository.
// Call RefreshCache before serving reads.
func NewStore(repo Repository) *Store {
	return &Store{
		repo:  repo,
		log:   logging.Default().Component("subsystem"),
		cache: make(map[string]*ConfigEntry),
	}
}

// SetLogger replaces the default logger.
func (s *Store) SetLogger(log *logging.Logger) {
	if log != nil {
		s.log = log.Component("subsystem")
	}
}

// RefreshCache reloads the cache from the repository.
func (s *Store) RefreshCache(ctx context.Context) error {
	entries, err := s.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("refreshing config entry cache: %w", err)
	}

	cache := make(map[string]*ConfigEntry, len(entries))
	for i := range entries {
		cache[entries[i].ID] = &entries[i]
	}

	s.mu.Lock()
	s.cache = cache
	s.mu.Unlock()

	s.log.Info("config entry cache refreshed", "count", len(cache))
	return nil
}

// Get returns a copy of the entry with the given ID.
func (s *Store) Get(id string) (*ConfigEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.cache[id]
	if !ok {
		return nil, ErrNotFound
	}
	return entry.Copy(), nil
}

// List returns copies of all entries. Order is unspecified.
func (s *Store) List() []ConfigEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]ConfigEntry, 0, len(s.cache))
	for _, entry := range s.cache {
		entries = append(entries, *entry.Copy())
	}
	return entries
}

// Create validates and persists a new config entry. A missing ID is
// generated; domain is required.
func (s *Store) Create(ctx context.Context, entry *ConfigEntry) (*ConfigEntry, error) {
	if entry == nil || entry.Domain == "" {
		return nil, fmt.Errorf("%w: domain is required", ErrInvalidEntry)
	}
	if len(entry.Title) > maxTitleLength {
		return nil, fmt.Errorf("%w: title exceeds %d characters", ErrInvalidEntry, maxTitleLength)
	}

	created := entry.Copy()
	if created.ID == "" {
		created.ID = uuid.NewString()
	}
	if created.Title == "" {
		created.Title = created.Domain
	}

	if err := s.repo.Insert(ctx, created); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache[created.ID] = created
	s.mu.Unlock()

	s.log.Info("config entry created", "entry_id", created.ID, "domain", created.Domain)
	return created.Copy(), nil
}

// Delete removes a config entry. Device associations are severed by the
// caller through the device registry; the store only owns the entry
// record itself.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.cache, id)
	s.mu.Unlock()

	s.log.Info("config entry deleted", "entry_id", id)
	return nil
}

// Count returns the number of cached entries.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cache)
}
