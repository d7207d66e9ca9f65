package pipeline

import "errors"

// The orchestrator converts every internal failure into one of these
// categories before it reaches the caller; no collaborator error type leaks
// past the pipeline boundary.
var (
	// ErrPiiBlocked: the user must edit the input and resubmit.
	ErrPiiBlocked = errors.New("high-risk personal data detected")

	// ErrTemplateNotFound is fatal and never retried.
	ErrTemplateNotFound = errors.New("template not found")
)
