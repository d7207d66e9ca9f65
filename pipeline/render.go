package pipeline

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/medscribe/medscribe/retrieval"
	"github.com/medscribe/medscribe/template"
)

const citationExcerptLength = 200

// parseStructured reports whether content is a schema-shaped payload: a JSON
// object mapping section names to text. Anything else renders as freeform.
func parseStructured(content string) (map[string]string, bool) {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "{") {
		return nil, false
	}

	var sections map[string]string
	if err := json.Unmarshal([]byte(trimmed), &sections); err != nil {
		// Malformed structured output: log-worthy upstream, rendered as raw
		// text by the caller.
		return nil, false
	}
	if len(sections) == 0 {
		return nil, false
	}
	return sections, true
}

// renderStructured converts a structured payload into the final document
// using the template's section ordering. Sections outside the contract are
// appended afterwards in stable order.
func renderStructured(sections map[string]string, contract template.OutputContract) string {
	var b strings.Builder
	written := make(map[string]bool)

	for _, name := range contract.RequiredSections {
		if content, ok := lookupSection(sections, name); ok {
			writeSection(&b, name, content)
			written[canonicalSectionKey(name)] = true
		}
	}

	var extras []string
	for name := range sections {
		if !written[canonicalSectionKey(name)] {
			extras = append(extras, name)
		}
	}
	sort.Strings(extras)
	for _, name := range extras {
		writeSection(&b, name, sections[name])
	}

	return strings.TrimRight(b.String(), "\n")
}

func writeSection(b *strings.Builder, name, content string) {
	b.WriteString("## " + name + "\n\n")
	b.WriteString(strings.TrimSpace(content))
	b.WriteString("\n\n")
}

// lookupSection matches a contract section name against payload keys without
// case sensitivity.
func lookupSection(sections map[string]string, name string) (string, bool) {
	if content, ok := sections[name]; ok {
		return content, true
	}
	key := canonicalSectionKey(name)
	for candidate, content := range sections {
		if canonicalSectionKey(candidate) == key {
			return content, true
		}
	}
	return "", false
}

func canonicalSectionKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// validateCompliance returns one issue per required section missing from the
// document. Issues are diagnostics for operators; they never block delivery.
func validateCompliance(document string, contract template.OutputContract) []string {
	if len(contract.RequiredSections) == 0 {
		return nil
	}

	present := make(map[string]bool)
	for _, line := range strings.Split(document, "\n") {
		header := normalizeHeader(line)
		if header != "" {
			present[header] = true
		}
	}

	var issues []string
	for _, section := range contract.RequiredSections {
		if !present[canonicalSectionKey(section)] {
			issues = append(issues, "missing required section: "+section)
		}
	}
	return issues
}

// normalizeHeader strips markdown heading markers, emphasis and a trailing
// colon from a line so "## Subjective", "**Subjective**" and "Subjective:"
// all count as the same header.
func normalizeHeader(line string) string {
	trimmed := strings.TrimSpace(line)
	trimmed = strings.TrimLeft(trimmed, "#")
	trimmed = strings.Trim(trimmed, "*")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), ":")
	return strings.ToLower(strings.TrimSpace(trimmed))
}

// buildCitations maps each used context chunk to its provenance record.
func buildCitations(chunks []retrieval.Chunk) []Citation {
	if len(chunks) == 0 {
		return []Citation{}
	}
	citations := make([]Citation, 0, len(chunks))
	for _, chunk := range chunks {
		excerpt := chunk.Text
		if len(excerpt) > citationExcerptLength {
			excerpt = excerpt[:citationExcerptLength]
		}
		citations = append(citations, Citation{
			Source:         chunk.Source,
			Title:          chunk.Title,
			Excerpt:        excerpt,
			RelevanceScore: chunk.SimilarityScore,
		})
	}
	return citations
}
