package pii

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// ModelDetector delegates detection to an external model server over HTTP
type ModelDetector struct {
	baseURL string
	client  *http.Client
}

func NewModelDetector(baseURL string) *ModelDetector {
	return &ModelDetector{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// GetName returns the name of this detector
func (m *ModelDetector) GetName() string {
	return DetectorNameModel
}

// Detect processes the input and returns detected entities
func (m *ModelDetector) Detect(ctx context.Context, input DetectorInput) (DetectorOutput, error) {
	// send input to model server using POST request -> baseURL / detect
	requestBody := map[string]interface{}{
		"text": input.Text,
	}
	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return DetectorOutput{}, err
	}
	req, err := http.NewRequestWithContext(ctx, "POST", m.baseURL+"/detect", bytes.NewBuffer(jsonData))
	if err != nil {
		return DetectorOutput{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	response, err := m.client.Do(req)
	if err != nil {
		return DetectorOutput{}, err
	}
	defer func() { _ = response.Body.Close() }()

	if response.StatusCode != http.StatusOK {
		return DetectorOutput{}, fmt.Errorf("model server returned status %d", response.StatusCode)
	}

	entities, err := convertResponseToEntities(response)
	if err != nil {
		return DetectorOutput{}, err
	}

	return DetectorOutput{
		Text:     input.Text,
		Entities: entities,
	}, nil
}

func convertResponseToEntities(response *http.Response) ([]Entity, error) {
	var responseBody struct {
		Entities []struct {
			Text       string  `json:"text"`
			Label      string  `json:"label"`
			StartPos   int     `json:"start_pos"`
			EndPos     int     `json:"end_pos"`
			Confidence float64 `json:"confidence"`
		} `json:"entities"`
	}
	if err := json.NewDecoder(response.Body).Decode(&responseBody); err != nil {
		return []Entity{}, err
	}

	var entities []Entity
	for _, e := range responseBody.Entities {
		entityType, ok := labelToEntityType(e.Label)
		if !ok {
			continue
		}
		entities = append(entities, Entity{
			Value:      e.Text,
			Type:       entityType,
			StartPos:   e.StartPos,
			EndPos:     e.EndPos,
			Confidence: e.Confidence,
		})
	}
	return entities, nil
}

// labelToEntityType maps NER model labels onto the pipeline's entity types
func labelToEntityType(label string) (EntityType, bool) {
	switch label {
	case "IDCARDNUM", "SOCIALNUM", "NHSNUM":
		return TypeNationalID, true
	case "ZIPCODE", "POSTCODE":
		return TypePostcode, true
	case "TELEPHONENUM", "PHONE":
		return TypePhone, true
	case "EMAIL":
		return TypeEmail, true
	case "GIVENNAME", "SURNAME", "NAME", "PERSON":
		return TypePersonName, true
	case "STREET", "ADDRESS", "BUILDINGNUM":
		return TypeAddress, true
	case "DATEOFBIRTH", "DOB":
		return TypeDateOfBirth, true
	}
	return "", false
}

// Close implements the Detector interface
func (m *ModelDetector) Close() error {
	// Model detector doesn't need cleanup
	return nil
}
