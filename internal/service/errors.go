package service

import "fmt"

// EncodingError reports a questionnaire that could not be decoded or encoded.
type EncodingError struct {
	Err error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("encoding error: %v", e.Err)
}

func (e *EncodingError) Unwrap() error { return e.Err }

// RetrievalError reports a failed candidate retrieval call.
type RetrievalError struct {
	Err error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieval error: %v", e.Err)
}

func (e *RetrievalError) Unwrap() error { return e.Err }

// EmbeddingError reports a failed query embedding or one with the wrong dimension.
type EmbeddingError struct {
	Provider string
	Err      error
}

func (e *EmbeddingError) Error() string {
	if e.Provider == "" {
		return fmt.Sprintf("embedding error: %v", e.Err)
	}
	return fmt.Sprintf("embedding error (%s): %v", e.Provider, e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

// ScoringError reports a failure while scoring a single candidate.
type ScoringError struct {
	ItineraryID string
	Err         error
}

func (e *ScoringError) Error() string {
	return fmt.Sprintf("scoring error for itinerary %s: %v", e.ItineraryID, e.Err)
}

func (e *ScoringError) Unwrap() error { return e.Err }

// DimensionMismatchError is wrapped by EmbeddingError when a provider
// returns a vector of unexpected length.
type DimensionMismatchError struct {
	Expected int
	Got      int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("embedding dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}
