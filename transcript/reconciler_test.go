package transcript

import "testing"

func TestReconcile_ServerTranscriptWins(t *testing.T) {
	input := Reconcile("typed note", "local transcript", "server transcript")

	if input.CombinedText != "server transcript" {
		t.Errorf("Expected combined text 'server transcript', got '%s'", input.CombinedText)
	}
	if input.ManualText != "typed note" || input.LocalTranscript != "local transcript" {
		t.Error("Expected source candidates to be retained unmodified")
	}
	if input.SkeletonRequested {
		t.Error("Expected no skeleton request when content is present")
	}
}

func TestReconcile_ManualBeatsLocal(t *testing.T) {
	input := Reconcile("typed note", "local transcript", "")

	if input.CombinedText != "typed note" {
		t.Errorf("Expected combined text 'typed note', got '%s'", input.CombinedText)
	}
}

func TestReconcile_LocalAsLastResort(t *testing.T) {
	input := Reconcile("", "local transcript", "")

	if input.CombinedText != "local transcript" {
		t.Errorf("Expected combined text 'local transcript', got '%s'", input.CombinedText)
	}
}

func TestReconcile_WhitespaceCountsAsEmpty(t *testing.T) {
	input := Reconcile("  ", "\t", "")

	if !input.SkeletonRequested {
		t.Error("Expected whitespace-only sources to request a skeleton")
	}
	if input.CombinedText != "" {
		t.Errorf("Expected empty combined text, got '%s'", input.CombinedText)
	}
}

func TestReconcile_AllEmptyRequestsSkeleton(t *testing.T) {
	input := Reconcile("", "", "")

	if !input.SkeletonRequested {
		t.Error("Expected a skeleton request when every source is empty")
	}
	if input.CombinedText != "" {
		t.Errorf("Expected empty combined text, got '%s'", input.CombinedText)
	}
}
