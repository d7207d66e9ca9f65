// Package transcript merges the candidate inputs for one message into a
// single canonical string before any detection or generation runs.
package transcript

import "strings"

// ReconciledInput carries the chosen canonical text alongside the untouched
// source candidates, which are kept for audit and display only.
type ReconciledInput struct {
	ManualText       string `json:"manual_text,omitempty"`
	LocalTranscript  string `json:"local_transcript,omitempty"`
	ServerTranscript string `json:"server_transcript,omitempty"`
	CombinedText     string `json:"combined_text"`

	// SkeletonRequested is set when every source was empty: downstream
	// generation must still produce the blank template skeleton.
	SkeletonRequested bool `json:"skeleton_requested,omitempty"`
}

// Reconcile picks the canonical input text by source fidelity: the server
// transcript wins over manually typed text, which wins over the low-latency
// local transcript. With no content at all it fails closed to a skeleton
// request rather than an error.
func Reconcile(manualText, localTranscript, serverTranscript string) ReconciledInput {
	input := ReconciledInput{
		ManualText:       manualText,
		LocalTranscript:  localTranscript,
		ServerTranscript: serverTranscript,
	}

	switch {
	case strings.TrimSpace(serverTranscript) != "":
		input.CombinedText = serverTranscript
	case strings.TrimSpace(manualText) != "":
		input.CombinedText = manualText
	case strings.TrimSpace(localTranscript) != "":
		input.CombinedText = localTranscript
	default:
		input.SkeletonRequested = true
	}

	return input
}
