package pii

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/daulet/tokenizers"
	onnxruntime "github.com/yalue/onnxruntime_go"
)

const onnxMaxSeqLen = 512

// ONNXModelDetector implements Detector using a local token-classification
// model. It exists as a drop-in replacement for the rule detector; the pipeline
// gating contract is identical for both.
type ONNXModelDetector struct {
	tokenizer    *tokenizers.Tokenizer
	session      *onnxruntime.AdvancedSession
	inputTensor  *onnxruntime.Tensor[int64]
	maskTensor   *onnxruntime.Tensor[int64]
	outputTensor *onnxruntime.Tensor[float32]
	id2label     map[string]string
	numLabels    int
	modelPath    string
}

// safeUintToInt safely converts a uint to int with bounds checking
func safeUintToInt(val uint) int {
	const maxInt = int(^uint(0) >> 1)
	if val <= uint(maxInt) {
		// #nosec G115 - Safe conversion with bounds checking
		return int(val)
	}
	return maxInt
}

// NewONNXModelDetector creates a new ONNX model detector. The label-mapping
// file is expected next to the model file.
func NewONNXModelDetector(modelPath string, tokenizerPath string) (*ONNXModelDetector, error) {
	if libPath := os.Getenv("ONNXRUNTIME_SHARED_LIBRARY_PATH"); libPath != "" {
		onnxruntime.SetSharedLibraryPath(libPath)
	}

	if !onnxruntime.IsInitialized() {
		if err := onnxruntime.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX Runtime environment: %w", err)
		}
	}

	tk, err := tokenizers.FromFile(tokenizerPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load tokenizer: %w", err)
	}

	mappingPath := strings.TrimSuffix(modelPath, ".onnx") + "_labels.json"
	configData, err := os.ReadFile(mappingPath)
	if err != nil {
		if cerr := tk.Close(); cerr != nil {
			fmt.Printf("Warning: failed to close tokenizer during cleanup: %v\n", cerr)
		}
		return nil, fmt.Errorf("failed to load label mappings from %s: %w", mappingPath, err)
	}

	var config struct {
		ID2Label map[string]string `json:"id2label"`
	}
	if err := json.Unmarshal(configData, &config); err != nil {
		if cerr := tk.Close(); cerr != nil {
			fmt.Printf("Warning: failed to close tokenizer during cleanup: %v\n", cerr)
		}
		return nil, fmt.Errorf("failed to parse label mappings: %w", err)
	}

	// Label IDs are 0-indexed; the highest ID determines the logit width.
	numLabels := 0
	for idStr := range config.ID2Label {
		var id int
		if _, err := fmt.Sscanf(idStr, "%d", &id); err == nil && id >= numLabels {
			numLabels = id + 1
		}
	}
	if numLabels == 0 {
		numLabels = len(config.ID2Label)
	}

	return &ONNXModelDetector{
		tokenizer: tk,
		id2label:  config.ID2Label,
		numLabels: numLabels,
		modelPath: modelPath,
	}, nil
}

// GetName returns the name of this detector
func (d *ONNXModelDetector) GetName() string {
	return DetectorNameONNXModel
}

// Detect processes the input and returns detected entities
func (d *ONNXModelDetector) Detect(ctx context.Context, input DetectorInput) (DetectorOutput, error) {
	// Initialize session and tensors on first use
	if d.session == nil {
		if err := d.initializeSession(); err != nil {
			return DetectorOutput{}, fmt.Errorf("failed to initialize session: %w", err)
		}
	}

	encoding := d.tokenizer.EncodeWithOptions(input.Text, true, tokenizers.WithReturnOffsets())
	tokenIDs := encoding.IDs

	inputIDs := make([]int64, len(tokenIDs))
	attentionMask := make([]int64, len(tokenIDs))
	for i := range tokenIDs {
		inputIDs[i] = int64(tokenIDs[i])
		attentionMask[i] = 1
	}

	d.updateInputTensors(inputIDs, attentionMask)

	if err := d.session.Run(); err != nil {
		return DetectorOutput{}, fmt.Errorf("failed to run inference: %w", err)
	}

	entities := d.processOutput(input.Text, tokenIDs, encoding.Offsets)

	return DetectorOutput{
		Text:     input.Text,
		Entities: entities,
	}, nil
}

// processOutput converts model logits into entities, grouping consecutive
// B-/I- tagged tokens into one span.
func (d *ONNXModelDetector) processOutput(originalText string, tokenIDs []uint32, offsets []tokenizers.Offset) []Entity {
	outputData := d.outputTensor.GetData()
	entities := []Entity{}

	numTokens := len(tokenIDs)
	if len(offsets) < numTokens {
		numTokens = len(offsets)
	}

	var currentEntity *Entity
	var currentTokens []int
	var currentLabel string

	for i := 0; i < numTokens; i++ {
		startIdx := i * d.numLabels
		endIdx := (i + 1) * d.numLabels
		if endIdx > len(outputData) {
			break
		}
		tokenLogits := outputData[startIdx:endIdx]

		maxLogit := float64(-math.MaxFloat64)
		bestClass := 0
		for j, logit := range tokenLogits {
			if float64(logit) > maxLogit {
				maxLogit = float64(logit)
				bestClass = j
			}
		}

		label, exists := d.id2label[fmt.Sprintf("%d", bestClass)]
		if !exists {
			label = "O"
		}

		// Softmax over the token's logits
		var sum float64
		for _, logit := range tokenLogits {
			sum += math.Exp(float64(logit))
		}
		confidence := math.Exp(maxLogit) / sum

		if confidence < 0.5 {
			label = "O"
		}

		isBeginning := strings.HasPrefix(label, "B-")
		isInside := strings.HasPrefix(label, "I-")
		baseLabel := strings.TrimPrefix(strings.TrimPrefix(label, "B-"), "I-")

		switch {
		case label != "O" && (isBeginning || currentEntity == nil):
			if currentEntity != nil {
				d.finalizeEntity(currentEntity, currentTokens, originalText, offsets)
				entities = appendMapped(entities, currentEntity, currentLabel)
			}
			currentEntity = &Entity{Confidence: confidence}
			currentLabel = baseLabel
			currentTokens = []int{i}
		case label != "O" && isInside && currentEntity != nil && currentLabel == baseLabel:
			currentTokens = append(currentTokens, i)
			currentEntity.Confidence = (currentEntity.Confidence + confidence) / 2
		default:
			if currentEntity != nil {
				d.finalizeEntity(currentEntity, currentTokens, originalText, offsets)
				entities = appendMapped(entities, currentEntity, currentLabel)
				currentEntity = nil
				currentTokens = nil
			}
		}
	}

	if currentEntity != nil {
		d.finalizeEntity(currentEntity, currentTokens, originalText, offsets)
		entities = appendMapped(entities, currentEntity, currentLabel)
	}

	return entities
}

// appendMapped appends the entity only when its model label maps onto one of
// the pipeline's entity types.
func appendMapped(entities []Entity, entity *Entity, label string) []Entity {
	entityType, ok := labelToEntityType(label)
	if !ok {
		return entities
	}
	entity.Type = entityType
	return append(entities, *entity)
}

// finalizeEntity extracts the span text from the original string using token offsets
func (d *ONNXModelDetector) finalizeEntity(entity *Entity, tokenIndices []int, originalText string, offsets []tokenizers.Offset) {
	if len(tokenIndices) == 0 {
		return
	}

	startOffset := offsets[tokenIndices[0]]
	endOffset := offsets[tokenIndices[len(tokenIndices)-1]]

	entity.Value = originalText[startOffset[0]:endOffset[1]]
	entity.StartPos = safeUintToInt(startOffset[0])
	entity.EndPos = safeUintToInt(endOffset[1])
}

// initializeSession initializes the ONNX session and tensors
func (d *ONNXModelDetector) initializeSession() error {
	batchSize := int64(1)

	inputShape := onnxruntime.NewShape(batchSize, onnxMaxSeqLen)
	inputTensor, err := onnxruntime.NewTensor(inputShape, make([]int64, onnxMaxSeqLen))
	if err != nil {
		return fmt.Errorf("failed to create input tensor: %w", err)
	}

	maskTensor, err := onnxruntime.NewTensor(inputShape, make([]int64, onnxMaxSeqLen))
	if err != nil {
		destroyAll(inputTensor)
		return fmt.Errorf("failed to create mask tensor: %w", err)
	}

	outputShape := onnxruntime.NewShape(batchSize, onnxMaxSeqLen, int64(d.numLabels))
	outputTensor, err := onnxruntime.NewEmptyTensor[float32](outputShape)
	if err != nil {
		destroyAll(inputTensor, maskTensor)
		return fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := onnxruntime.NewAdvancedSession(d.modelPath,
		[]string{"input_ids", "attention_mask"},
		[]string{"logits"},
		[]onnxruntime.Value{inputTensor, maskTensor},
		[]onnxruntime.Value{outputTensor},
		nil)
	if err != nil {
		destroyAll(inputTensor, maskTensor, outputTensor)
		return fmt.Errorf("failed to create session: %w", err)
	}

	d.session = session
	d.inputTensor = inputTensor
	d.maskTensor = maskTensor
	d.outputTensor = outputTensor

	return nil
}

func destroyAll(tensors ...onnxruntime.Value) {
	for _, t := range tensors {
		if err := t.Destroy(); err != nil {
			fmt.Printf("Warning: failed to destroy tensor during cleanup: %v\n", err)
		}
	}
}

// updateInputTensors updates the input tensors with new data
func (d *ONNXModelDetector) updateInputTensors(inputIDs, attentionMask []int64) {
	inputData := d.inputTensor.GetData()
	maskData := d.maskTensor.GetData()

	for i := range inputData {
		inputData[i] = 0
		maskData[i] = 0
	}

	copy(inputData, inputIDs)
	copy(maskData, attentionMask)
}

// Close implements the Detector interface
func (d *ONNXModelDetector) Close() error {
	var errs []error

	if d.session != nil {
		if err := d.session.Destroy(); err != nil {
			errs = append(errs, fmt.Errorf("failed to destroy session: %w", err))
		}
	}
	if d.inputTensor != nil {
		if err := d.inputTensor.Destroy(); err != nil {
			errs = append(errs, fmt.Errorf("failed to destroy input tensor: %w", err))
		}
	}
	if d.maskTensor != nil {
		if err := d.maskTensor.Destroy(); err != nil {
			errs = append(errs, fmt.Errorf("failed to destroy mask tensor: %w", err))
		}
	}
	if d.outputTensor != nil {
		if err := d.outputTensor.Destroy(); err != nil {
			errs = append(errs, fmt.Errorf("failed to destroy output tensor: %w", err))
		}
	}
	if d.tokenizer != nil {
		if err := d.tokenizer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close tokenizer: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("cleanup errors: %v", errs)
	}
	return nil
}
