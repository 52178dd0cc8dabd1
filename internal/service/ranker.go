package service

import (
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"honeymatch/internal/config"
	"honeymatch/internal/logger"
	"honeymatch/internal/model"
	"honeymatch/internal/utils"
)

// Match reason constants
const (
	ReasonInterestsMatch = "Matches your interests"
	ReasonVibeMatch      = "Matches your vibe"
	ReasonContentClose   = "Close to your description"
	ReasonEditorsPick    = "Editor's pick"
	ReasonGeneralMatch   = "General match"
)

const (
	// NeutralScore is used for an axis the user or the record gives no signal on
	NeutralScore = 0.5

	curatedScaleMin = 1
	curatedScaleMax = 5
	// neutralCuratedMetric stands in for a missing metric when breaking ties
	neutralCuratedMetric = 3
)

// Weights are the per-axis weights of the final score. They always sum to 1.
type Weights struct {
	Structured float64
	Vector     float64
	Curated    float64
}

// Sum returns the total of all three weights
func (w Weights) Sum() float64 {
	return w.Structured + w.Vector + w.Curated
}

// RankQuery is the per-request context shared by every candidate
type RankQuery struct {
	Interests []string
	Vibe      []string
	// Embedding is the query vector, nil when the vector axis is inactive
	Embedding []float32
}

// Ranker handles ranking and scoring of candidate itineraries
type Ranker struct {
	weightStructured float64
	weightVector     float64
	topN             int
	workers          int
	logger           *zap.Logger

	// scoreFn scores one candidate; replaced in tests
	scoreFn func(it model.Itinerary, interests, vibe []string, query []float32, w Weights) model.ScoredItinerary
}

// NewRanker creates a new ranker. Base weights come from the strategy:
// extended blends all three axes, simple ranks on vector similarity alone.
func NewRanker(cfg config.MatchingConfig, l *zap.Logger) *Ranker {
	r := &Ranker{
		weightStructured: cfg.WeightStructured,
		weightVector:     cfg.WeightVector,
		topN:             cfg.TopN,
		workers:          cfg.Workers,
		logger:           logger.OrNop(l),
	}
	if cfg.Strategy == config.StrategySimple {
		r.weightStructured = 0
		r.weightVector = 1
	}
	if r.topN <= 0 {
		r.topN = 3
	}
	if r.workers <= 0 {
		r.workers = 1
	}
	r.scoreFn = r.score
	return r
}

// Weights resolves the active weights. When the vector axis carries no
// signal its share moves to the curated axis.
func (r *Ranker) Weights(vectorActive bool) Weights {
	w := Weights{Structured: r.weightStructured, Vector: r.weightVector}
	if !vectorActive {
		w.Vector = 0
	}
	w.Curated = 1 - w.Structured - w.Vector
	return w
}

// RankResults scores every candidate, sorts them and returns at most topN
func (r *Ranker) RankResults(candidates []model.Itinerary, q RankQuery) []model.ScoredItinerary {
	if len(candidates) == 0 {
		return []model.ScoredItinerary{}
	}

	weights := r.Weights(len(q.Embedding) > 0)
	interests := utils.NormalizeTags(q.Interests)
	vibe := utils.NormalizeTags(q.Vibe)

	results := make([]model.ScoredItinerary, len(candidates))

	// each worker writes only its own index
	var g errgroup.Group
	g.SetLimit(r.workers)
	for i := range candidates {
		i := i
		g.Go(func() error {
			results[i] = r.scoreSafely(candidates[i], interests, vibe, q.Embedding, weights)
			return nil
		})
	}
	_ = g.Wait()

	sortScored(results)

	if len(results) > r.topN {
		results = results[:r.topN]
	}
	return results
}

// scoreSafely isolates a panic in one candidate so the batch survives it
func (r *Ranker) scoreSafely(
	it model.Itinerary,
	interests, vibe []string,
	query []float32,
	w Weights,
) (scored model.ScoredItinerary) {
	defer func() {
		if rec := recover(); rec != nil {
			err := &ScoringError{ItineraryID: it.ID, Err: fmt.Errorf("panic: %v", rec)}
			r.logger.Error("candidate scoring failed, using neutral scores", zap.Error(err))
			scores := model.ScoreBreakdown{Structured: NeutralScore, Vector: 0, Curated: NeutralScore}
			scored = model.ScoredItinerary{
				Itinerary:      it,
				Scores:         scores,
				FinalScore:     combine(scores, w),
				MatchedReasons: []string{ReasonGeneralMatch},
			}
		}
	}()

	return r.scoreFn(it, interests, vibe, query, w)
}

func (r *Ranker) score(
	it model.Itinerary,
	interests, vibe []string,
	query []float32,
	w Weights,
) model.ScoredItinerary {
	activity := utils.TagSet(it.ActivityTags)
	theme := utils.TagSet(it.ThemeTags)

	interestHits := utils.CountOverlap(interests, activity)
	vibeHits := utils.CountOverlap(vibe, theme)

	scores := model.ScoreBreakdown{
		Structured: StructuredScore(interestHits+vibeHits, len(interests)+len(vibe)),
		Curated:    CuratedScore(it.CuratedQualityMetric),
	}

	if len(query) > 0 {
		candidate := it.EmbeddingValues()
		if len(candidate) > 0 && len(candidate) != len(query) {
			r.logger.Warn("itinerary embedding dimension mismatch, vector score set to 0",
				zap.String("itinerary_id", it.ID),
				zap.Int("expected", len(query)),
				zap.Int("got", len(candidate)),
			)
		}
		scores.Vector = VectorScore(query, candidate)
	}

	return model.ScoredItinerary{
		Itinerary:      it,
		Scores:         scores,
		FinalScore:     combine(scores, w),
		MatchedReasons: generateMatchedReasons(it, interestHits, vibeHits, scores),
	}
}

// StructuredScore is matched/requested, or neutral when nothing was requested
func StructuredScore(matched, requested int) float64 {
	if requested <= 0 {
		return NeutralScore
	}
	return clamp01(float64(matched) / float64(requested))
}

// VectorScore is the cosine similarity floored at 0. A missing vector, a
// dimension mismatch or a zero-norm vector scores 0.
func VectorScore(query, candidate []float32) float64 {
	if len(query) == 0 || len(candidate) == 0 || len(query) != len(candidate) {
		return 0
	}

	var dot, normQ, normC float64
	for i := range query {
		q := float64(query[i])
		c := float64(candidate[i])
		dot += q * c
		normQ += q * q
		normC += c * c
	}
	if normQ == 0 || normC == 0 {
		return 0
	}
	return clamp01(dot / (math.Sqrt(normQ) * math.Sqrt(normC)))
}

// CuratedScore maps the 1-5 editorial metric onto [0, 1]; missing is neutral
func CuratedScore(metric *int) float64 {
	if metric == nil {
		return NeutralScore
	}
	return clamp01(float64(*metric-curatedScaleMin) / float64(curatedScaleMax-curatedScaleMin))
}

func combine(s model.ScoreBreakdown, w Weights) float64 {
	return clamp01(w.Structured*s.Structured + w.Vector*s.Vector + w.Curated*s.Curated)
}

// sortScored orders by final score desc, then curated metric desc, then id asc
func sortScored(results []model.ScoredItinerary) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.FinalScore != b.FinalScore {
			return a.FinalScore > b.FinalScore
		}
		ma, mb := tieBreakMetric(a.Itinerary.CuratedQualityMetric), tieBreakMetric(b.Itinerary.CuratedQualityMetric)
		if ma != mb {
			return ma > mb
		}
		return a.Itinerary.ID < b.Itinerary.ID
	})
}

func tieBreakMetric(metric *int) int {
	if metric == nil {
		return neutralCuratedMetric
	}
	return *metric
}

// generateMatchedReasons generates human-readable reasons for why this itinerary ranked
func generateMatchedReasons(it model.Itinerary, interestHits, vibeHits int, scores model.ScoreBreakdown) []string {
	reasons := []string{}

	if interestHits > 0 {
		reasons = append(reasons, ReasonInterestsMatch)
	}
	if vibeHits > 0 {
		reasons = append(reasons, ReasonVibeMatch)
	}
	if scores.Vector >= 0.75 {
		reasons = append(reasons, ReasonContentClose)
	}
	if it.CuratedQualityMetric != nil && *it.CuratedQualityMetric >= curatedScaleMax {
		reasons = append(reasons, ReasonEditorsPick)
	}

	if len(reasons) == 0 {
		reasons = append(reasons, ReasonGeneralMatch)
	}
	return reasons
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
