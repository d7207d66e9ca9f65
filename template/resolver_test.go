package template

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestMemoryStore_ResolveUnknownID(t *testing.T) {
	store := NewMemoryStore()
	store.SeedDefaults()

	_, err := store.Resolve(context.Background(), "does-not-exist")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_ResolveSeeded(t *testing.T) {
	store := NewMemoryStore()
	store.SeedDefaults()

	tmpl, err := store.Resolve(context.Background(), "soap-note")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if tmpl.Name != "SOAP Consultation Note" {
		t.Errorf("Expected seeded SOAP template, got '%s'", tmpl.Name)
	}
	if len(tmpl.OutputContract.RequiredSections) != 4 {
		t.Errorf("Expected 4 required sections, got %d", len(tmpl.OutputContract.RequiredSections))
	}
}

type countingStore struct {
	mu    sync.Mutex
	inner Store
	calls int
}

func (c *countingStore) Resolve(ctx context.Context, id string) (*Template, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return c.inner.Resolve(ctx, id)
}

func TestResolver_CachesWithinTTL(t *testing.T) {
	memory := NewMemoryStore()
	memory.SeedDefaults()
	counting := &countingStore{inner: memory}
	resolver := NewResolver(counting, time.Minute)

	for i := 0; i < 3; i++ {
		tmpl, err := resolver.Resolve(context.Background(), "soap-note")
		if err != nil {
			t.Fatalf("Expected no error on call %d, got %v", i, err)
		}
		if tmpl.ID != "soap-note" {
			t.Errorf("Expected resolved template 'soap-note', got '%s'", tmpl.ID)
		}
	}

	if counting.calls != 1 {
		t.Errorf("Expected 1 store hit with a warm cache, got %d", counting.calls)
	}
}

func TestResolver_NotFoundIsNotCached(t *testing.T) {
	memory := NewMemoryStore()
	counting := &countingStore{inner: memory}
	resolver := NewResolver(counting, time.Minute)

	if _, err := resolver.Resolve(context.Background(), "late-arrival"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}

	memory.Put(&Template{ID: "late-arrival", Name: "Late Arrival"})

	tmpl, err := resolver.Resolve(context.Background(), "late-arrival")
	if err != nil {
		t.Fatalf("Expected template created out of band to resolve, got %v", err)
	}
	if tmpl.Name != "Late Arrival" {
		t.Errorf("Expected 'Late Arrival', got '%s'", tmpl.Name)
	}
}
