package pii

// EntityType classifies a detected piece of personal data.
type EntityType string

const (
	TypeNationalID  EntityType = "nationalId"
	TypePostcode    EntityType = "postcode"
	TypePhone       EntityType = "phone"
	TypeEmail       EntityType = "email"
	TypePersonName  EntityType = "personName"
	TypeAddress     EntityType = "address"
	TypeDateOfBirth EntityType = "dateOfBirth"
)

// DetectorInput represents the input for PII detection
type DetectorInput struct {
	Text string `json:"text"`
}

// DetectorOutput represents the output of PII detection
type DetectorOutput struct {
	Text     string   `json:"text"`
	Entities []Entity `json:"entities"`
}

// Entity represents a detected PII entity. Value is deliberately excluded from
// JSON marshaling: once an entity crosses the pipeline boundary only its
// type/confidence/span tuple is exposed.
type Entity struct {
	Value      string     `json:"-"`
	Type       EntityType `json:"type"`
	StartPos   int        `json:"start_pos"`
	EndPos     int        `json:"end_pos"`
	Confidence float64    `json:"confidence"`
}
