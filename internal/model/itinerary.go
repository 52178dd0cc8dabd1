package model

import (
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// Itinerary is a pre-built travel package as stored in the itineraries table
type Itinerary struct {
	ID                   string           `json:"id" db:"id"`
	Title                string           `json:"title" db:"title"`
	Summary              *string          `json:"summary,omitempty" db:"summary"`
	FeaturedImage        *string          `json:"featured_image,omitempty" db:"featured_image"`
	ActivityTags         pq.StringArray   `json:"activity_tags" db:"activity_tags"`
	ThemeTags            pq.StringArray   `json:"theme_tags" db:"theme_tags"`
	Embedding            *pgvector.Vector `json:"-" db:"embedding"`
	CuratedQualityMetric *int             `json:"curated_quality_metric,omitempty" db:"curated_quality_metric"`
	Price                *float64         `json:"price,omitempty" db:"price"`
	DurationDays         *int             `json:"duration_days,omitempty" db:"duration_days"`
}

// EmbeddingValues returns the embedding slice, or nil when the itinerary has none.
func (i *Itinerary) EmbeddingValues() []float32 {
	if i.Embedding == nil {
		return nil
	}
	return i.Embedding.Slice()
}

// ScoreBreakdown holds the three per-axis scores, each in [0, 1]
type ScoreBreakdown struct {
	Structured float64 `json:"structured"`
	Vector     float64 `json:"vector"`
	Curated    float64 `json:"curated"`
}

// ScoredItinerary is an itinerary with its ranking scores
type ScoredItinerary struct {
	Itinerary      Itinerary      `json:"itinerary"`
	Scores         ScoreBreakdown `json:"scores"`
	FinalScore     float64        `json:"final_score"`
	MatchedReasons []string       `json:"matched_reasons"`
}

// ItineraryPreview is the client-facing shape of a ranked itinerary
type ItineraryPreview struct {
	ID             string         `json:"id"`
	Title          string         `json:"title"`
	Summary        string         `json:"summary"`
	FeaturedImage  string         `json:"featured_image"`
	Similarity     float64        `json:"similarity"`
	Scores         ScoreBreakdown `json:"scores"`
	MatchedReasons []string       `json:"matched_reasons"`
}

// Preview converts a scored itinerary to its response shape
func (s ScoredItinerary) Preview() ItineraryPreview {
	p := ItineraryPreview{
		ID:             s.Itinerary.ID,
		Title:          s.Itinerary.Title,
		Similarity:     s.FinalScore,
		Scores:         s.Scores,
		MatchedReasons: s.MatchedReasons,
	}
	if s.Itinerary.Summary != nil {
		p.Summary = *s.Itinerary.Summary
	}
	if s.Itinerary.FeaturedImage != nil {
		p.FeaturedImage = *s.Itinerary.FeaturedImage
	}
	if p.MatchedReasons == nil {
		p.MatchedReasons = []string{}
	}
	return p
}
