package switchboard

import (
	"errors"
	"testing"
)

func TestRegistryAddAndGet(t *testing.T) {
	r := NewRegistry()
	a := newFakeAgent("billing", "ok")
	if err := r.Add(a); err != nil {
		t.Fatalf("Add: %v", err)
	}
	got, ok := r.Get("billing")
	if !ok || got.ID() != "billing" {
		t.Errorf("Get = %v, %v", got, ok)
	}
	if _, ok := r.Get("missing"); ok {
		t.Error("Get should miss unregistered id")
	}
}

func TestRegistryDuplicateAdd(t *testing.T) {
	r := NewRegistry()
	if err := r.Add(newFakeAgent("billing", "ok")); err != nil {
		t.Fatalf("Add: %v", err)
	}
	err := r.Add(newFakeAgent("billing", "other"))
	var dup *ErrDuplicateAgent
	if !errors.As(err, &dup) {
		t.Fatalf("got %v, want *ErrDuplicateAgent", err)
	}
	if dup.ID != "billing" {
		t.Errorf("duplicate id = %q", dup.ID)
	}
}

func TestRegistrySetDefault(t *testing.T) {
	r := NewRegistry()
	if _, ok := r.Default(); ok {
		t.Error("empty registry should have no default")
	}

	err := r.SetDefault("general")
	var unknown *ErrUnknownAgent
	if !errors.As(err, &unknown) {
		t.Fatalf("got %v, want *ErrUnknownAgent", err)
	}

	if err := r.Add(newFakeAgent("general", "ok")); err != nil {
		t.Fatal(err)
	}
	if err := r.SetDefault("general"); err != nil {
		t.Fatalf("SetDefault: %v", err)
	}
	d, ok := r.Default()
	if !ok || d.ID() != "general" {
		t.Errorf("Default = %v, %v", d, ok)
	}
}

func TestRegistryOrdered(t *testing.T) {
	r := NewRegistry()
	for _, id := range []string{"zulu", "alpha", "mike"} {
		if err := r.Add(newFakeAgent(id, "ok")); err != nil {
			t.Fatal(err)
		}
	}
	ordered := r.Ordered()
	want := []string{"alpha", "mike", "zulu"}
	if len(ordered) != len(want) {
		t.Fatalf("got %d agents, want %d", len(ordered), len(want))
	}
	for i, id := range want {
		if ordered[i].ID() != id {
			t.Errorf("ordered[%d] = %q, want %q", i, ordered[i].ID(), id)
		}
	}
}

func TestRegistryList(t *testing.T) {
	r := NewRegistry()
	if err := r.Add(newFakeAgent("tech", "ok")); err != nil {
		t.Fatal(err)
	}
	list := r.List()
	if len(list) != 1 {
		t.Fatalf("got %d agents, want 1", len(list))
	}
	// Mutating the copy must not affect the registry.
	delete(list, "tech")
	if _, ok := r.Get("tech"); !ok {
		t.Error("List copy mutation leaked into registry")
	}
}
