package pipeline

import (
	"fmt"
	"strings"

	"github.com/medscribe/medscribe/generation"
	"github.com/medscribe/medscribe/retrieval"
	"github.com/medscribe/medscribe/template"
	"github.com/medscribe/medscribe/transcript"
)

// applyMacros substitutes every {{TOKEN}} occurrence in text.
func applyMacros(text string, macros map[string]string) string {
	for token, value := range macros {
		text = strings.ReplaceAll(text, "{{"+token+"}}", value)
	}
	return text
}

// buildGenerationRequest composes the full prompt: template instructions with
// macros applied, the literal required-section contract, template rules,
// source-tagged context snippets, redacted attachment text and the redacted
// canonical input. Raw text never enters a generation request.
func buildGenerationRequest(tmpl *template.Template, input transcript.ReconciledInput, redactedText string, attachments []Attachment, chunks []retrieval.Chunk, profile generation.Profile) generation.Request {
	var system strings.Builder
	system.WriteString(applyMacros(tmpl.GenerationInstructions, tmpl.Macros))

	if sections := tmpl.OutputContract.RequiredSections; len(sections) > 0 {
		system.WriteString("\n\nThe document must contain these sections, in this order:\n")
		for i, section := range sections {
			fmt.Fprintf(&system, "%d. %s\n", i+1, section)
		}
	}
	for _, rule := range tmpl.Rules {
		system.WriteString("\n- " + rule)
	}

	var prompt strings.Builder
	if len(chunks) > 0 {
		prompt.WriteString("Reference material:\n\n")
		for _, chunk := range chunks {
			fmt.Fprintf(&prompt, "[Source: %s]\n%s\n\n", chunk.Source, chunk.Text)
		}
	}
	for _, attachment := range attachments {
		if attachment.ExtractedText == "" {
			continue
		}
		fmt.Fprintf(&prompt, "Attached document %q:\n%s\n\n", attachment.Name, attachment.ExtractedText)
	}

	if input.SkeletonRequested {
		prompt.WriteString("No clinical input was provided. Produce the blank document skeleton with every required section present and empty.")
	} else {
		prompt.WriteString("Clinical input:\n" + redactedText)
	}

	return generation.Request{
		System:  system.String(),
		Prompt:  prompt.String(),
		Profile: profile,
	}
}

// placeholderDocument is returned when the generation service stayed
// unreachable after the bounded retry. The pipeline never answers with an
// empty document.
func placeholderDocument(tmpl *template.Template) string {
	var b strings.Builder
	b.WriteString("# Document Unavailable\n\n")
	b.WriteString("This document could not be generated because the generation service is unreachable or its configuration is incomplete. ")
	b.WriteString("Your input has been preserved; please try again or contact your administrator.\n")
	if len(tmpl.OutputContract.RequiredSections) > 0 {
		b.WriteString("\nThe requested template expects the sections: ")
		b.WriteString(strings.Join(tmpl.OutputContract.RequiredSections, ", "))
		b.WriteString(".\n")
	}
	return b.String()
}
