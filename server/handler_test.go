package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/medscribe/medscribe/generation"
	"github.com/medscribe/medscribe/pii"
	detectors "github.com/medscribe/medscribe/pii/detectors"
	"github.com/medscribe/medscribe/pipeline"
	"github.com/medscribe/medscribe/retrieval"
	"github.com/medscribe/medscribe/template"
	"github.com/medscribe/medscribe/usage"
)

type stubGenerator struct{}

func (stubGenerator) Generate(ctx context.Context, req generation.Request) (generation.Response, error) {
	return generation.Response{
		Content: `{"Subjective": "Back pain.", "Objective": "Unremarkable.", "Assessment": "Mechanical.", "Plan": "Rest."}`,
		Usage:   generation.Usage{TokensIn: 100, TokensOut: 200},
	}, nil
}

func newTestHandler() *Handler {
	store := template.NewMemoryStore()
	store.SeedDefaults()

	redactor := pii.NewService(detectors.NewRuleDetector(detectors.DefaultRules()))
	resolver := template.NewResolver(store, time.Minute)
	retriever := retrieval.NewRetriever(nil, time.Second)
	accountant := usage.NewAccountant(usage.NewMemoryLedger())

	p := pipeline.New(redactor, resolver, retriever, stubGenerator{}, accountant, nil, generation.DefaultProfile)
	return NewHandler(p, nil, false)
}

func postMessage(t *testing.T, handler *Handler, payload string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/messages", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	return recorder
}

func TestHandler_CompletedMessage(t *testing.T) {
	handler := newTestHandler()

	recorder := postMessage(t, handler, `{
		"accountId": "acct-1",
		"text": "Reports lower back pain for 3 days.",
		"templateId": "soap-note"
	}`)

	if recorder.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", recorder.Code, recorder.Body.String())
	}

	var resp messageResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.State != pipeline.StateCompleted {
		t.Errorf("Expected Completed state, got %s", resp.State)
	}
	if resp.RenderedDocument == "" {
		t.Error("Expected a rendered document")
	}
	if resp.Usage == nil {
		t.Fatal("Expected usage in the response")
	}
	if resp.Usage.CreditsCharged != 1 {
		t.Errorf("Expected 1 credit for 300 tokens, got %f", resp.Usage.CreditsCharged)
	}
	if resp.Citations == nil {
		t.Error("Expected citations to serialize as an empty array, not null")
	}
}

func TestHandler_BlockedMessage(t *testing.T) {
	handler := newTestHandler()

	recorder := postMessage(t, handler, `{
		"accountId": "acct-1",
		"text": "Patient John Smith, NHS 123 456 7890, SW1A 1AA",
		"templateId": "soap-note"
	}`)

	if recorder.Code != http.StatusUnprocessableEntity {
		t.Fatalf("Expected status 422, got %d: %s", recorder.Code, recorder.Body.String())
	}

	var resp errorResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Error != "PII_DETECTED" {
		t.Errorf("Expected PII_DETECTED, got %q", resp.Error)
	}
	if len(resp.Entities) != 3 {
		t.Errorf("Expected 3 entities, got %d", len(resp.Entities))
	}

	// Entity values must never appear in the response body
	if strings.Contains(recorder.Body.String(), "John Smith") {
		t.Error("Expected the response not to echo detected values")
	}
	if strings.Contains(recorder.Body.String(), "123 456 7890") {
		t.Error("Expected the response not to echo the national ID")
	}
}

func TestHandler_UnknownTemplate(t *testing.T) {
	handler := newTestHandler()

	recorder := postMessage(t, handler, `{
		"accountId": "acct-1",
		"text": "Reports lower back pain.",
		"templateId": "nope"
	}`)

	if recorder.Code != http.StatusNotFound {
		t.Fatalf("Expected status 404, got %d", recorder.Code)
	}
	var resp errorResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Error != "TEMPLATE_NOT_FOUND" {
		t.Errorf("Expected TEMPLATE_NOT_FOUND, got %q", resp.Error)
	}
}

func TestHandler_RejectsBadRequests(t *testing.T) {
	handler := newTestHandler()

	if recorder := postMessage(t, handler, `{not json`); recorder.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for malformed JSON, got %d", recorder.Code)
	}
	if recorder := postMessage(t, handler, `{"text": "hello"}`); recorder.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for a missing template ID, got %d", recorder.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/messages", nil)
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405 for GET, got %d", recorder.Code)
	}
}
