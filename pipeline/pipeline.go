// Package pipeline orders one message's processing: PII gating, transcript
// reconciliation, template resolution, context retrieval, generation,
// validation, rendering and usage accounting.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"

	"github.com/medscribe/medscribe/generation"
	"github.com/medscribe/medscribe/pii"
	detectors "github.com/medscribe/medscribe/pii/detectors"
	"github.com/medscribe/medscribe/retrieval"
	"github.com/medscribe/medscribe/template"
	"github.com/medscribe/medscribe/transcript"
	"github.com/medscribe/medscribe/usage"
)

// State names one stage of the pipeline's progression.
type State string

const (
	StateReceived         State = "Received"
	StatePiiChecked       State = "PiiChecked"
	StateTemplateResolved State = "TemplateResolved"
	StateContextAssembled State = "ContextAssembled"
	StateGenerated        State = "Generated"
	StateValidated        State = "Validated"
	StateRendered         State = "Rendered"
	StateAccounted        State = "Accounted"
	StateCompleted        State = "Completed"

	// StateBlocked is terminal and reachable only from PiiChecked.
	StateBlocked State = "Blocked"
)

// Attachment is a file the clinician attached to the message.
type Attachment struct {
	Name          string `json:"name"`
	ContentType   string `json:"content_type"`
	Pages         int    `json:"pages"`
	ExtractedText string `json:"extracted_text,omitempty"`
}

// Request is one inbound message for the pipeline.
type Request struct {
	AccountID        string
	Text             string
	LocalTranscript  string
	ServerTranscript string
	Attachments      []Attachment
	TemplateID       string
	AudioSeconds     float64
}

// EntityInfo is the only entity information that survives a block: type and
// confidence, never the value or the text it came from.
type EntityInfo struct {
	Type       detectors.EntityType `json:"type"`
	Confidence float64              `json:"confidence"`
}

// Citation maps one used context chunk to its provenance.
type Citation struct {
	Source         string  `json:"source"`
	Title          string  `json:"title,omitempty"`
	Excerpt        string  `json:"excerpt"`
	RelevanceScore float64 `json:"relevance_score"`
}

// Result is the pipeline's outcome for one message.
type Result struct {
	MessageID        string
	State            State
	RenderedDocument string
	StructuredOutput map[string]string
	Citations        []Citation
	ComplianceIssues []string
	Usage            *usage.Record

	// BlockedEntities is populated only in the Blocked state.
	BlockedEntities []EntityInfo
}

// Resolver is the template collaborator as the pipeline sees it.
type Resolver interface {
	Resolve(ctx context.Context, id string) (*template.Template, error)
}

// Generator is the generation collaborator as the pipeline sees it.
type Generator interface {
	Generate(ctx context.Context, req generation.Request) (generation.Response, error)
}

// Pipeline wires the collaborators for one deployment. Each Run is an
// isolated unit of work; the pipeline holds no per-request state.
type Pipeline struct {
	redactor   *pii.Service
	resolver   Resolver
	retriever  *retrieval.Retriever
	generator  Generator
	accountant *usage.Accountant
	audit      pii.AuditLog
	profile    generation.Profile
}

func New(redactor *pii.Service, resolver Resolver, retriever *retrieval.Retriever, generator Generator, accountant *usage.Accountant, audit pii.AuditLog, profile generation.Profile) *Pipeline {
	return &Pipeline{
		redactor:   redactor,
		resolver:   resolver,
		retriever:  retriever,
		generator:  generator,
		accountant: accountant,
		audit:      audit,
		profile:    profile,
	}
}

// Run processes one message through every stage in order. Stages execute
// strictly in sequence: gating must precede generation, resolution must
// precede prompt assembly.
func (p *Pipeline) Run(ctx context.Context, req Request) (Result, error) {
	messageID := uuid.NewString()
	logPrefix := fmt.Sprintf("[Pipeline %s]", messageID[:8])

	result := Result{MessageID: messageID, State: StateReceived}

	// 1. Reconcile transcripts into one canonical text
	input := transcript.Reconcile(req.Text, req.LocalTranscript, req.ServerTranscript)

	// 2. Detect PII on the canonical text and gate
	detection, err := p.redactor.Detect(ctx, input.CombinedText)
	if err != nil {
		// A detector failure must never let raw text continue downstream.
		return result, fmt.Errorf("pii detection failed: %w", err)
	}
	result.State = StatePiiChecked

	if pii.IsHighRisk(detection.Entities) {
		log.Printf("%s ⚠️  Blocked: %d high-risk entities", logPrefix, len(detection.Entities))
		result.State = StateBlocked
		for _, entity := range detection.Entities {
			result.BlockedEntities = append(result.BlockedEntities, EntityInfo{
				Type:       entity.Type,
				Confidence: entity.Confidence,
			})
		}
		p.recordAudit(ctx, "In", detection.RedactedText, detection.Entities, true)
		return result, ErrPiiBlocked
	}
	p.recordAudit(ctx, "In", detection.RedactedText, detection.Entities, false)

	// 3. Resolve the template; missing templates are fatal, never retried
	tmpl, err := p.resolver.Resolve(ctx, req.TemplateID)
	if err != nil {
		if errors.Is(err, template.ErrNotFound) {
			return result, fmt.Errorf("%w: %q", ErrTemplateNotFound, req.TemplateID)
		}
		return result, fmt.Errorf("template resolution failed: %w", err)
	}
	result.State = StateTemplateResolved

	// 4. Assemble optional retrieval context; failures degrade to none
	chunks := p.retriever.Retrieve(ctx, detection.RedactedText, tmpl.Retrieval)
	result.State = StateContextAssembled

	// 5-6. Build the prompt from redacted text only and invoke generation
	genReq := buildGenerationRequest(tmpl, input, detection.RedactedText, redactAttachments(ctx, p.redactor, req.Attachments), chunks, p.profile)

	response, err := p.generator.Generate(ctx, genReq)
	if err != nil {
		// Transport retries are exhausted inside the client; degrade to a
		// labeled placeholder rather than an empty response.
		log.Printf("%s ❌ Generation failed, returning placeholder: %v", logPrefix, err)
		sentry.CaptureException(err)
		response = generation.Response{Content: placeholderDocument(tmpl)}
	}
	result.State = StateGenerated

	// 7. Validate the output contract; missing sections annotate, never block
	structured, isStructured := parseStructured(response.Content)

	rendered := response.Content
	if isStructured {
		rendered = renderStructured(structured, tmpl.OutputContract)
		result.StructuredOutput = structured
	}
	result.ComplianceIssues = validateCompliance(rendered, tmpl.OutputContract)
	if len(result.ComplianceIssues) > 0 {
		log.Printf("%s ⚠️  Compliance issues: %v", logPrefix, result.ComplianceIssues)
	}
	result.State = StateValidated

	// 8-9. Render and compute citations
	result.RenderedDocument = rendered
	result.Citations = buildCitations(chunks)
	result.State = StateRendered

	p.recordAudit(ctx, "Out", rendered, nil, false)

	// 10. Account usage exactly once per rendered message
	pages := 0
	for _, attachment := range req.Attachments {
		pages += attachment.Pages
	}
	record, err := p.accountant.Charge(ctx, req.AccountID, messageID,
		response.Usage.TokensIn, response.Usage.TokensOut, req.AudioSeconds, pages)
	if err != nil {
		return result, fmt.Errorf("usage accounting failed: %w", err)
	}
	result.Usage = &record
	result.State = StateCompleted

	log.Printf("%s Completed: %d tokens in, %d tokens out, %.1f credits",
		logPrefix, record.TokensIn, record.TokensOut, record.CreditsCharged)
	return result, nil
}

// recordAudit writes one audit event; audit failures never fail the request
func (p *Pipeline) recordAudit(ctx context.Context, direction, message string, entities []detectors.Entity, blocked bool) {
	if p.audit == nil {
		return
	}
	if err := p.audit.Record(ctx, direction, message, entities, blocked); err != nil {
		log.Printf("[Pipeline] ⚠️  Failed to record audit event: %v", err)
	}
}

// redactAttachments masks extracted attachment text before it can join the
// prompt. Attachment PII never gates the request; it is silently redacted.
func redactAttachments(ctx context.Context, redactor *pii.Service, attachments []Attachment) []Attachment {
	out := make([]Attachment, len(attachments))
	copy(out, attachments)
	for i, attachment := range out {
		if attachment.ExtractedText == "" {
			continue
		}
		detection, err := redactor.Detect(ctx, attachment.ExtractedText)
		if err != nil {
			log.Printf("[Pipeline] ⚠️  Attachment detection failed, dropping text for %q: %v", attachment.Name, err)
			out[i].ExtractedText = ""
			continue
		}
		out[i].ExtractedText = detection.RedactedText
	}
	return out
}
