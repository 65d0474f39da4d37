package integration

import (
	"context"
	"errors"
	"testing"

	"github.com/nerrad567/device-core/internal/device"
	"github.com/nerrad567/device-core/internal/subsystem"
)

// stubHandler is a minimal Handler without removal support.
type stubHandler struct {
	domain string
}

func (h *stubHandler) Domain() string { return h.domain }

// removerHandler additionally implements DeviceRemover.
type removerHandler struct {
	stubHandler
	confirm bool
	err     error
}

func (h *removerHandler) RemoveConfigEntryDevice(_ context.Context, _ *subsystem.ConfigEntry, _ *device.DeviceEntry) (bool, error) {
	return h.confirm, h.err
}

func TestRegistry_RegisterAndResolve(t *testing.T) {
	reg := NewRegistry()

	if err := reg.Register(&stubHandler{domain: "hue"}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	h, err := reg.Resolve("hue")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if h.Domain() != "hue" {
		t.Errorf("Domain() = %q, want hue", h.Domain())
	}
}

func TestRegistry_ResolveUnknownDomain(t *testing.T) {
	reg := NewRegistry()

	_, err := reg.Resolve("zwave")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Resolve() error = %v, want ErrNotFound", err)
	}
}

func TestRegistry_DuplicateDomainRejected(t *testing.T) {
	reg := NewRegistry()

	if err := reg.Register(&stubHandler{domain: "hue"}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	err := reg.Register(&stubHandler{domain: "hue"})
	if !errors.Is(err, ErrDuplicateDomain) {
		t.Errorf("Register() duplicate error = %v, want ErrDuplicateDomain", err)
	}
}

func TestRegistry_EmptyDomainRejected(t *testing.T) {
	reg := NewRegistry()

	if err := reg.Register(&stubHandler{}); err == nil {
		t.Error("Register() with empty domain error = nil, want error")
	}
	if err := reg.Register(nil); err == nil {
		t.Error("Register(nil) error = nil, want error")
	}
}

func TestRegistry_CapabilityDiscovery(t *testing.T) {
	reg := NewRegistry()

	if err := reg.Register(&stubHandler{domain: "plain"}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := reg.Register(&removerHandler{stubHandler: stubHandler{domain: "removable"}, confirm: true}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	plain, _ := reg.Resolve("plain")
	if _, ok := plain.(DeviceRemover); ok {
		t.Error("plain handler should not satisfy DeviceRemover")
	}

	removable, _ := reg.Resolve("removable")
	remover, ok := removable.(DeviceRemover)
	if !ok {
		t.Fatal("removable handler should satisfy DeviceRemover")
	}
	confirmed, err := remover.RemoveConfigEntryDevice(context.Background(), &subsystem.ConfigEntry{}, &device.DeviceEntry{})
	if err != nil || !confirmed {
		t.Errorf("RemoveConfigEntryDevice() = (%v, %v), want (true, nil)", confirmed, err)
	}
}

func TestRegistry_Domains(t *testing.T) {
	reg := NewRegistry()
	for _, d := range []string{"hue", "zwave"} {
		if err := reg.Register(&stubHandler{domain: d}); err != nil {
			t.Fatalf("Register(%s) error = %v", d, err)
		}
	}

	domains := reg.Domains()
	if len(domains) != 2 {
		t.Errorf("Domains() = %v, want two domains", domains)
	}
}
