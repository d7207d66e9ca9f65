package server

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/medscribe/medscribe/pipeline"
	"github.com/medscribe/medscribe/transcript"
	"github.com/medscribe/medscribe/usage"
)

// maxRequestBodySize bounds inbound message payloads, attachments included.
const maxRequestBodySize = 10 << 20

// messageRequest is the wire shape of one inbound message
type messageRequest struct {
	AccountID        string               `json:"accountId"`
	Text             string               `json:"text,omitempty"`
	LocalTranscript  string               `json:"localTranscript,omitempty"`
	ServerTranscript string               `json:"serverTranscript,omitempty"`
	Audio            string               `json:"audio,omitempty"` // base64-encoded capture
	AudioContentType string               `json:"audioContentType,omitempty"`
	AudioSeconds     float64              `json:"audioSeconds,omitempty"`
	Attachments      []pipeline.Attachment `json:"attachments,omitempty"`
	TemplateID       string               `json:"templateId"`
}

type usageResponse struct {
	TokensIn       int     `json:"tokensIn"`
	TokensOut      int     `json:"tokensOut"`
	CreditsCharged float64 `json:"creditsCharged"`
}

type messageResponse struct {
	MessageID        string               `json:"messageId"`
	State            pipeline.State       `json:"state"`
	RenderedDocument string               `json:"renderedDocument"`
	StructuredOutput map[string]string    `json:"structuredOutput,omitempty"`
	Citations        []pipeline.Citation  `json:"citations"`
	ComplianceIssues []string             `json:"complianceIssues,omitempty"`
	Usage            *usageResponse       `json:"usage,omitempty"`
}

type errorResponse struct {
	Error    string                `json:"error"`
	Entities []pipeline.EntityInfo `json:"entities,omitempty"`
}

// Handler accepts messages over HTTP and drives the processing pipeline
type Handler struct {
	pipeline    *pipeline.Pipeline
	transcriber transcript.Transcriber
	logRequests bool
}

func NewHandler(p *pipeline.Pipeline, transcriber transcript.Transcriber, logRequests bool) *Handler {
	return &Handler{pipeline: p, transcriber: transcriber, logRequests: logRequests}
}

// ServeHTTP implements the http.Handler interface
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize))
	if err != nil {
		log.Printf("[Server] ❌ Failed to read request body: %v", err)
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", nil)
		return
	}

	var req messageRequest
	if err := json.Unmarshal(body, &req); err != nil {
		log.Printf("[Server] ❌ Failed to parse request body: %v", err)
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", nil)
		return
	}
	if req.TemplateID == "" {
		writeError(w, http.StatusBadRequest, "TEMPLATE_ID_REQUIRED", nil)
		return
	}

	if h.logRequests {
		log.Printf("[Server] Received message for template %q (%d bytes, %d attachments)",
			req.TemplateID, len(body), len(req.Attachments))
	}

	// Captured audio without a server transcript goes through speech-to-text
	// first. A transcription failure is not fatal; the remaining text sources
	// still feed the pipeline.
	if req.ServerTranscript == "" && req.Audio != "" && h.transcriber != nil {
		if text, ok := h.transcribeAudio(r, req.Audio, req.AudioContentType); ok {
			req.ServerTranscript = text
		}
	}

	result, err := h.pipeline.Run(r.Context(), pipeline.Request{
		AccountID:        req.AccountID,
		Text:             req.Text,
		LocalTranscript:  req.LocalTranscript,
		ServerTranscript: req.ServerTranscript,
		Attachments:      req.Attachments,
		TemplateID:       req.TemplateID,
		AudioSeconds:     req.AudioSeconds,
	})

	switch {
	case errors.Is(err, pipeline.ErrPiiBlocked):
		writeError(w, http.StatusUnprocessableEntity, "PII_DETECTED", result.BlockedEntities)
		return
	case errors.Is(err, pipeline.ErrTemplateNotFound):
		writeError(w, http.StatusNotFound, "TEMPLATE_NOT_FOUND", nil)
		return
	case err != nil:
		log.Printf("[Server] ❌ Pipeline failed: %v", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", nil)
		return
	}

	writeJSON(w, http.StatusOK, toMessageResponse(result))
}

// transcribeAudio decodes and transcribes the captured audio
func (h *Handler) transcribeAudio(r *http.Request, encoded, contentType string) (string, bool) {
	audio, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		log.Printf("[Server] ⚠️  Invalid audio encoding, skipping transcription: %v", err)
		return "", false
	}
	text, err := h.transcriber.Transcribe(r.Context(), audio, contentType)
	if err != nil {
		log.Printf("[Server] ⚠️  Transcription failed, continuing with text sources: %v", err)
		return "", false
	}
	return text, true
}

func toMessageResponse(result pipeline.Result) messageResponse {
	resp := messageResponse{
		MessageID:        result.MessageID,
		State:            result.State,
		RenderedDocument: result.RenderedDocument,
		StructuredOutput: result.StructuredOutput,
		Citations:        result.Citations,
		ComplianceIssues: result.ComplianceIssues,
	}
	if resp.Citations == nil {
		resp.Citations = []pipeline.Citation{}
	}
	if result.Usage != nil {
		resp.Usage = toUsageResponse(result.Usage)
	}
	return resp
}

func toUsageResponse(record *usage.Record) *usageResponse {
	return &usageResponse{
		TokensIn:       record.TokensIn,
		TokensOut:      record.TokensOut,
		CreditsCharged: record.CreditsCharged,
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("[Server] Failed to write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, code string, entities []pipeline.EntityInfo) {
	writeJSON(w, status, errorResponse{Error: code, Entities: entities})
}
