package model

// FilterParams are the hard filters sent to the candidate store. A nil
// slice or pointer means "no constraint on this axis".
type FilterParams struct {
	MaxPrice       float64  `json:"max_price"`
	TargetDuration int      `json:"target_duration"` // <= 0 means unconstrained
	Regions        []string `json:"regions"`
	Interests      []string `json:"interests"`
	Vibe           []string `json:"vibe"`
	Pace           *string  `json:"pace"`
	AvoidTags      []string `json:"avoid_tags"`
	TravelSeasons  []string `json:"travel_seasons"`
}

// EncodedPreferences is the output of the preference encoder
type EncodedPreferences struct {
	Filters        FilterParams
	DescriptorText string
	// OpenEndedQuery is the trimmed free text, "" when none was supplied
	OpenEndedQuery string
}

// EmbeddingBatchRequest represents a batch embedding update request
type EmbeddingBatchRequest struct {
	Embeddings []EmbeddingItem `json:"embeddings" binding:"required"`
}

// EmbeddingItem represents a single itinerary embedding
type EmbeddingItem struct {
	ItineraryID string    `json:"itinerary_id" binding:"required"`
	Embedding   []float32 `json:"embedding" binding:"required"`
	Text        string    `json:"text,omitempty"` // The text used to generate embedding
}

// EmbeddingBatchResponse represents the response for batch embedding update
type EmbeddingBatchResponse struct {
	Success int      `json:"success"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors,omitempty"`
}

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Message string `json:"message"`
}
