package template

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrNotFound is fatal to a request: no fallback template is synthesized, so a
// report is never produced against the wrong clinical structure.
var ErrNotFound = errors.New("template not found")

// Store resolves template IDs to their content. Resolution is idempotent:
// the same ID yields the same content unless the store changes out of band.
type Store interface {
	Resolve(ctx context.Context, id string) (*Template, error)
}

// MemoryStore is an in-process Store used in tests and single-node setups
type MemoryStore struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{templates: make(map[string]*Template)}
}

// Put registers or replaces a template
func (s *MemoryStore) Put(t *Template) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates[t.ID] = t
}

// Resolve implements Store
func (s *MemoryStore) Resolve(ctx context.Context, id string) (*Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.templates[id]
	if !ok {
		return nil, fmt.Errorf("template %q: %w", id, ErrNotFound)
	}
	// Callers must not observe later Put calls on a resolved template.
	clone := *t
	return &clone, nil
}

// SeedDefaults loads the built-in consultation templates. Useful for local
// runs without a template database.
func (s *MemoryStore) SeedDefaults() {
	s.Put(&Template{
		ID:   "soap-note",
		Name: "SOAP Consultation Note",
		GenerationInstructions: "You are drafting a clinical consultation note for {{CLINIC_NAME}}. " +
			"Structure the note with the sections Subjective, Objective, Assessment and Plan. " +
			"Use professional clinical language and do not invent findings that are not in the input.",
		OutputContract: OutputContract{
			RequiredSections: []string{"Subjective", "Objective", "Assessment", "Plan"},
		},
		Macros: map[string]string{
			"CLINIC_NAME": "the clinic",
		},
	})
	s.Put(&Template{
		ID:   "referral-letter",
		Name: "Referral Letter",
		GenerationInstructions: "Draft a specialist referral letter on behalf of {{SENDER_TITLE}}. " +
			"Include the sections Reason for Referral, History, Examination Findings and Request.",
		OutputContract: OutputContract{
			RequiredSections: []string{"Reason for Referral", "History", "Examination Findings", "Request"},
		},
		Retrieval: &RetrievalConfig{Enabled: true, Collection: "referral-guidance"},
		Macros: map[string]string{
			"SENDER_TITLE": "the referring clinician",
		},
	})
}
