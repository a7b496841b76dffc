package persistent

import (
	"errors"
	"testing"

	"github.com/copyleftdev/SKARN/internal/backend"
	"github.com/copyleftdev/SKARN/internal/model"
)

func TestRegistryRoundTrip(t *testing.T) {
	reg := NewRegistry()
	x := model.NewVar("x")

	if err := reg.Register(x, 1); err != nil {
		t.Fatalf("Register: %v", err)
	}
	h, err := reg.Lookup(x)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if h != 1 {
		t.Errorf("expected handle 1, got %v", h)
	}
	c, ok := reg.LookupReverse(1)
	if !ok || c != x {
		t.Error("reverse lookup did not return the registered component")
	}
	if reg.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", reg.Len())
	}
}

func TestRegistryDuplicate(t *testing.T) {
	reg := NewRegistry()
	x := model.NewVar("x")

	if err := reg.Register(x, 1); err != nil {
		t.Fatal(err)
	}
	err := reg.Register(x, 2)
	if _, ok := err.(*DuplicateComponentError); !ok {
		t.Errorf("expected DuplicateComponentError, got %v", err)
	}
}

func TestRegistryIdentityNotName(t *testing.T) {
	reg := NewRegistry()
	a := model.NewVar("same")
	b := model.NewVar("same")

	if err := reg.Register(a, 1); err != nil {
		t.Fatal(err)
	}
	// A distinct component with the same name is a distinct key.
	if err := reg.Register(b, 2); err != nil {
		t.Errorf("expected distinct pointers to register independently, got %v", err)
	}
}

func TestRegistryUnregister(t *testing.T) {
	reg := NewRegistry()
	x := model.NewVar("x")

	if err := reg.Register(x, 7); err != nil {
		t.Fatal(err)
	}
	h, err := reg.Unregister(x)
	if err != nil {
		t.Fatalf("Unregister: %v", err)
	}
	if h != 7 {
		t.Errorf("expected handle 7, got %v", h)
	}
	if reg.Contains(x) {
		t.Error("component still registered after Unregister")
	}
	if _, ok := reg.LookupReverse(7); ok {
		t.Error("handle still mapped after Unregister")
	}

	if _, err := reg.Unregister(x); err == nil {
		t.Error("expected error unregistering twice")
	}
	var stale *StaleReferenceError
	_, err = reg.Lookup(x)
	if !errors.As(err, &stale) {
		t.Errorf("expected StaleReferenceError, got %v", err)
	}
}

func TestRegistryReset(t *testing.T) {
	reg := NewRegistry()
	x := model.NewVar("x")
	if err := reg.Register(x, 1); err != nil {
		t.Fatal(err)
	}

	reg.Reset()
	if reg.Len() != 0 {
		t.Errorf("expected empty registry, got %d entries", reg.Len())
	}
	if reg.Contains(x) {
		t.Error("component survived Reset")
	}
	var h backend.Handle = 1
	if _, ok := reg.LookupReverse(h); ok {
		t.Error("handle survived Reset")
	}
}
