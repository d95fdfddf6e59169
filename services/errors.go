// services/errors.go
package services

import "fmt"

// ProviderError wraps a failure from an AI provider call. The pipeline
// treats these as item-level failures, never as fatal.
type ProviderError struct {
	Provider string
	Op       string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// ExtractionParseError marks a malformed structured-output payload. The
// current iteration is abandoned when one of these surfaces; the raw answer
// is never persisted with partial extraction results.
type ExtractionParseError struct {
	Op  string
	Err error
}

func (e *ExtractionParseError) Error() string {
	return fmt.Sprintf("extraction %s: malformed payload: %v", e.Op, e.Err)
}

func (e *ExtractionParseError) Unwrap() error {
	return e.Err
}
