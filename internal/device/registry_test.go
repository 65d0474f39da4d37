package device

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// MockRepository is a test implementation of Repository.
type MockRepository struct {
	mu      sync.Mutex
	entries map[string]*DeviceEntry
	// For testing error paths
	insertErr  error
	replaceErr error
	deleteErr  error
}

func NewMockRepository() *MockRepository {
	return &MockRepository{
		entries: make(map[string]*DeviceEntry),
	}
}

func (m *MockRepository) GetByID(_ context.Context, id string) (*DeviceEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.entries[id]; ok {
		return e.DeepCopy(), nil
	}
	return nil, ErrNotFound
}

func (m *MockRepository) List(_ context.Context) ([]DeviceEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := make([]DeviceEntry, 0, len(m.entries))
	for _, e := range m.entries {
		entries = append(entries, *e.DeepCopy())
	}
	return entries, nil
}

func (m *MockRepository) Insert(_ context.Context, entry *DeviceEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.insertErr != nil {
		return m.insertErr
	}
	if _, exists := m.entries[entry.ID]; exists {
		return ErrDeviceExists
	}
	m.entries[entry.ID] = entry.DeepCopy()
	return nil
}

func (m *MockRepository) Replace(_ context.Context, entry *DeviceEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.replaceErr != nil {
		return m.replaceErr
	}
	if _, exists := m.entries[entry.ID]; !exists {
		return ErrNotFound
	}
	m.entries[entry.ID] = entry.DeepCopy()
	return nil
}

func (m *MockRepository) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, exists := m.entries[id]; !exists {
		return ErrNotFound
	}
	delete(m.entries, id)
	return nil
}

// seedRegistry creates a registry whose cache holds the given entries.
func seedRegistry(t *testing.T, entries ...*DeviceEntry) (*Registry, *MockRepository) {
	t.Helper()

	repo := NewMockRepository()
	for _, e := range entries {
		repo.entries[e.ID] = e.DeepCopy()
	}

	reg := NewRegistry(repo)
	if err := reg.RefreshCache(context.Background()); err != nil {
		t.Fatalf("RefreshCache() error = %v", err)
	}
	return reg, repo
}

// eventRecorder captures registry events for assertions.
type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) record(evt Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *eventRecorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func cachedEntry(id string, configEntries ...string) *DeviceEntry {
	return &DeviceEntry{
		ID:            id,
		Name:          "Device " + id,
		Identifiers:   []Pair{{Kind: "test", Value: id}},
		ConfigEntries: configEntries,
	}
}

func TestRegistry_Get(t *testing.T) {
	reg, _ := seedRegistry(t, cachedEntry("dev-1", "entry-1"))

	t.Run("returns cached entry", func(t *testing.T) {
		got, err := reg.Get("dev-1")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got.ID != "dev-1" {
			t.Errorf("Get() ID = %q, want dev-1", got.ID)
		}
	})

	t.Run("missing entry returns ErrNotFound", func(t *testing.T) {
		_, err := reg.Get("no-such")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("Get() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("returned entry is isolated from cache", func(t *testing.T) {
		got, err := reg.Get("dev-1")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		got.ConfigEntries[0] = "mutated"

		again, err := reg.Get("dev-1")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if again.ConfigEntries[0] != "entry-1" {
			t.Error("mutation of returned entry leaked into cache")
		}
	})
}

func TestRegistry_Update(t *testing.T) {
	t.Run("sets and clears tri-state fields", func(t *testing.T) {
		reg, repo := seedRegistry(t, cachedEntry("dev-1", "entry-1"))

		got, err := reg.Update(context.Background(), "dev-1", Update{
			AreaID:     NullString("kitchen"),
			NameByUser: NullString("Kitchen bridge"),
		})
		if err != nil {
			t.Fatalf("Update() error = %v", err)
		}
		if got.AreaID != "kitchen" || got.NameByUser != "Kitchen bridge" {
			t.Errorf("Update() result = %+v, fields not applied", got)
		}

		got, err = reg.Update(context.Background(), "dev-1", Update{
			AreaID: NullStringCleared(),
		})
		if err != nil {
			t.Fatalf("Update() clear error = %v", err)
		}
		if got.AreaID != "" {
			t.Errorf("AreaID = %q, want cleared", got.AreaID)
		}
		if got.NameByUser != "Kitchen bridge" {
			t.Errorf("NameByUser = %q, unset field should survive", got.NameByUser)
		}

		persisted, _ := repo.GetByID(context.Background(), "dev-1")
		if persisted.AreaID != "" || persisted.NameByUser != "Kitchen bridge" {
			t.Errorf("persisted state = %+v, does not match cache", persisted)
		}
	})

	t.Run("missing device returns ErrNotFound", func(t *testing.T) {
		reg, _ := seedRegistry(t)

		_, err := reg.Update(context.Background(), "no-such", Update{AreaID: NullString("x")})
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("Update() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("invalid disabled_by rejected", func(t *testing.T) {
		reg, _ := seedRegistry(t, cachedEntry("dev-1", "entry-1"))

		_, err := reg.Update(context.Background(), "dev-1", Update{
			DisabledBy: NullString("gremlins"),
		})
		if !errors.Is(err, ErrInvalidField) {
			t.Errorf("Update() error = %v, want ErrInvalidField", err)
		}
	})

	t.Run("empty update returns current state without event", func(t *testing.T) {
		reg, _ := seedRegistry(t, cachedEntry("dev-1", "entry-1"))
		rec := &eventRecorder{}
		reg.SetOnEvent(rec.record)

		got, err := reg.Update(context.Background(), "dev-1", Update{})
		if err != nil {
			t.Fatalf("Update() error = %v", err)
		}
		if got == nil || got.ID != "dev-1" {
			t.Fatalf("Update() = %v, want current entry", got)
		}
		if len(rec.all()) != 0 {
			t.Errorf("empty update emitted %d events, want 0", len(rec.all()))
		}
	})

	t.Run("no-op value change skips persist and event", func(t *testing.T) {
		entry := cachedEntry("dev-1", "entry-1")
		entry.AreaID = "kitchen"
		reg, repo := seedRegistry(t, entry)
		rec := &eventRecorder{}
		reg.SetOnEvent(rec.record)
		repo.replaceErr = errors.New("replace should not be called")

		got, err := reg.Update(context.Background(), "dev-1", Update{
			AreaID: NullString("kitchen"),
		})
		if err != nil {
			t.Fatalf("Update() error = %v", err)
		}
		if got.AreaID != "kitchen" {
			t.Errorf("AreaID = %q, want kitchen", got.AreaID)
		}
		if len(rec.all()) != 0 {
			t.Errorf("no-op update emitted %d events, want 0", len(rec.all()))
		}
	})

	t.Run("removes config entry association", func(t *testing.T) {
		reg, _ := seedRegistry(t, cachedEntry("dev-1", "entry-1", "entry-2"))
		rec := &eventRecorder{}
		reg.SetOnEvent(rec.record)

		got, err := reg.Update(context.Background(), "dev-1", Update{
			RemoveConfigEntryID: "entry-1",
		})
		if err != nil {
			t.Fatalf("Update() error = %v", err)
		}
		if got == nil {
			t.Fatal("Update() = nil, device should survive with one association left")
		}
		if got.HasConfigEntry("entry-1") || !got.HasConfigEntry("entry-2") {
			t.Errorf("ConfigEntries = %v, want [entry-2]", got.ConfigEntries)
		}

		events := rec.all()
		if len(events) != 1 || events[0].Type != EventUpdated {
			t.Errorf("events = %v, want one EventUpdated", events)
		}
	})

	t.Run("removing last association deletes entry", func(t *testing.T) {
		reg, repo := seedRegistry(t, cachedEntry("dev-1", "entry-1"))
		rec := &eventRecorder{}
		reg.SetOnEvent(rec.record)

		got, err := reg.Update(context.Background(), "dev-1", Update{
			RemoveConfigEntryID: "entry-1",
		})
		if err != nil {
			t.Fatalf("Update() error = %v", err)
		}
		if got != nil {
			t.Errorf("Update() = %+v, want nil when entry deleted", got)
		}

		if _, err := reg.Get("dev-1"); !errors.Is(err, ErrNotFound) {
			t.Errorf("Get() after delete error = %v, want ErrNotFound", err)
		}
		if _, err := repo.GetByID(context.Background(), "dev-1"); !errors.Is(err, ErrNotFound) {
			t.Errorf("repo still holds deleted entry")
		}

		events := rec.all()
		if len(events) != 1 || events[0].Type != EventRemoved || events[0].DeviceID != "dev-1" {
			t.Errorf("events = %v, want one EventRemoved for dev-1", events)
		}
	})

	t.Run("removing unassociated config entry is a no-op", func(t *testing.T) {
		reg, _ := seedRegistry(t, cachedEntry("dev-1", "entry-1"))
		rec := &eventRecorder{}
		reg.SetOnEvent(rec.record)

		got, err := reg.Update(context.Background(), "dev-1", Update{
			RemoveConfigEntryID: "entry-other",
		})
		if err != nil {
			t.Fatalf("Update() error = %v", err)
		}
		if got == nil || !got.HasConfigEntry("entry-1") {
			t.Errorf("Update() = %v, entry should be untouched", got)
		}
		if len(rec.all()) != 0 {
			t.Errorf("no-op removal emitted %d events, want 0", len(rec.all()))
		}
	})

	t.Run("persist failure leaves cache untouched", func(t *testing.T) {
		reg, repo := seedRegistry(t, cachedEntry("dev-1", "entry-1"))
		repo.replaceErr = errors.New("disk full")

		_, err := reg.Update(context.Background(), "dev-1", Update{
			AreaID: NullString("kitchen"),
		})
		if err == nil {
			t.Fatal("Update() error = nil, want persist failure")
		}

		got, _ := reg.Get("dev-1")
		if got.AreaID != "" {
			t.Errorf("cache AreaID = %q, want unchanged after failed persist", got.AreaID)
		}
	})
}

func TestRegistry_GetOrCreate(t *testing.T) {
	validSeed := func() *Seed {
		return &Seed{
			ConfigEntryID: "entry-1",
			Name:          "Hue Bridge",
			Manufacturer:  "Signify",
			Identifiers:   []Pair{{Kind: "hue", Value: "bridge-001"}},
			Connections:   []Pair{{Kind: "mac", Value: "aa:bb:cc:dd:ee:ff"}},
		}
	}

	t.Run("creates new entry", func(t *testing.T) {
		reg, _ := seedRegistry(t)
		rec := &eventRecorder{}
		reg.SetOnEvent(rec.record)

		entry, created, err := reg.GetOrCreate(context.Background(), validSeed())
		if err != nil {
			t.Fatalf("GetOrCreate() error = %v", err)
		}
		if !created {
			t.Error("GetOrCreate() created = false, want true")
		}
		if entry.ID == "" {
			t.Error("GetOrCreate() assigned no ID")
		}
		if !entry.HasConfigEntry("entry-1") {
			t.Errorf("ConfigEntries = %v, want [entry-1]", entry.ConfigEntries)
		}

		events := rec.all()
		if len(events) != 1 || events[0].Type != EventCreated {
			t.Errorf("events = %v, want one EventCreated", events)
		}
	})

	t.Run("matches existing entry by identifier overlap", func(t *testing.T) {
		reg, _ := seedRegistry(t)

		first, _, err := reg.GetOrCreate(context.Background(), validSeed())
		if err != nil {
			t.Fatalf("GetOrCreate() error = %v", err)
		}

		seed := validSeed()
		seed.ConfigEntryID = "entry-2"
		seed.Connections = nil
		seed.SWVersion = "2.1.0"

		second, created, err := reg.GetOrCreate(context.Background(), seed)
		if err != nil {
			t.Fatalf("GetOrCreate() second error = %v", err)
		}
		if created {
			t.Error("GetOrCreate() created = true, want merge into existing")
		}
		if second.ID != first.ID {
			t.Errorf("merged ID = %q, want %q", second.ID, first.ID)
		}
		if !second.HasConfigEntry("entry-1") || !second.HasConfigEntry("entry-2") {
			t.Errorf("ConfigEntries = %v, want both entries", second.ConfigEntries)
		}
		if second.SWVersion != "2.1.0" {
			t.Errorf("SWVersion = %q, want refreshed from seed", second.SWVersion)
		}
	})

	t.Run("matches by connection overlap when identifiers differ", func(t *testing.T) {
		reg, _ := seedRegistry(t)

		first, _, err := reg.GetOrCreate(context.Background(), validSeed())
		if err != nil {
			t.Fatalf("GetOrCreate() error = %v", err)
		}

		seed := validSeed()
		seed.Identifiers = []Pair{{Kind: "matter", Value: "node-42"}}

		second, created, err := reg.GetOrCreate(context.Background(), seed)
		if err != nil {
			t.Fatalf("GetOrCreate() error = %v", err)
		}
		if created || second.ID != first.ID {
			t.Errorf("GetOrCreate() = (%q, %v), want merge into %q", second.ID, created, first.ID)
		}
		if len(second.Identifiers) != 2 {
			t.Errorf("Identifiers = %v, want union of both seeds", second.Identifiers)
		}
	})

	t.Run("repeated identical seed is idempotent", func(t *testing.T) {
		reg, _ := seedRegistry(t)
		rec := &eventRecorder{}
		reg.SetOnEvent(rec.record)

		if _, _, err := reg.GetOrCreate(context.Background(), validSeed()); err != nil {
			t.Fatalf("GetOrCreate() error = %v", err)
		}
		if _, created, err := reg.GetOrCreate(context.Background(), validSeed()); err != nil || created {
			t.Fatalf("GetOrCreate() repeat = (created=%v, err=%v), want no-op match", created, err)
		}

		if got := reg.Count(); got != 1 {
			t.Errorf("Count() = %d, want 1", got)
		}
		if events := rec.all(); len(events) != 1 {
			t.Errorf("events = %v, repeat seed should not emit", events)
		}
	})

	t.Run("invalid seed rejected", func(t *testing.T) {
		reg, _ := seedRegistry(t)

		tests := []struct {
			name string
			seed *Seed
		}{
			{"nil seed", nil},
			{"missing config entry", &Seed{Name: "X", Identifiers: []Pair{{Kind: "a", Value: "b"}}}},
			{"missing name", &Seed{ConfigEntryID: "e", Identifiers: []Pair{{Kind: "a", Value: "b"}}}},
			{"no identity pairs", &Seed{ConfigEntryID: "e", Name: "X"}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, _, err := reg.GetOrCreate(context.Background(), tt.seed)
				if !errors.Is(err, ErrInvalidSeed) {
					t.Errorf("GetOrCreate() error = %v, want ErrInvalidSeed", err)
				}
			})
		}
	})
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	reg, _ := seedRegistry(t, cachedEntry("dev-1", "entry-1", "entry-2"))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = reg.Get("dev-1")
			_ = reg.List()
		}()
		go func() {
			defer wg.Done()
			_, _ = reg.Update(context.Background(), "dev-1", Update{
				NameByUser: NullString("Racer"),
			})
		}()
	}
	wg.Wait()

	got, err := reg.Get("dev-1")
	if err != nil {
		t.Fatalf("Get() after concurrent access error = %v", err)
	}
	if got.NameByUser != "Racer" {
		t.Errorf("NameByUser = %q, want Racer", got.NameByUser)
	}
}
