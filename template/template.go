// Package template owns report templates: the generation instructions, macro
// table and output contract a report is produced against.
package template

// RetrievalConfig controls whether and how knowledge retrieval augments a
// template's generation prompt.
type RetrievalConfig struct {
	Enabled        bool    `json:"enabled"`
	Collection     string  `json:"collection,omitempty"`
	ScoreThreshold float64 `json:"score_threshold,omitempty"`
	MaxChunks      int     `json:"max_chunks,omitempty"`
}

// OutputContract names the sections a generated report must contain, in order.
type OutputContract struct {
	RequiredSections []string `json:"required_sections"`
}

// Template is immutable per request; the pipeline only reads it.
type Template struct {
	ID                     string            `json:"id"`
	Name                   string            `json:"name"`
	GenerationInstructions string            `json:"generation_instructions"`
	OutputContract         OutputContract    `json:"output_contract"`
	Retrieval              *RetrievalConfig  `json:"retrieval,omitempty"`
	Rules                  []string          `json:"rules,omitempty"`
	Macros                 map[string]string `json:"macros,omitempty"`
}
