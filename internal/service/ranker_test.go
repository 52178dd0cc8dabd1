package service

import (
	"fmt"
	"math"
	"testing"

	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"honeymatch/internal/config"
	"honeymatch/internal/model"
)

func intPtr(v int) *int { return &v }

func vec(values ...float32) *pgvector.Vector {
	v := pgvector.NewVector(values)
	return &v
}

func newTestRanker(t *testing.T, strategy string, topN int) *Ranker {
	t.Helper()
	return NewRanker(config.MatchingConfig{
		Strategy:         strategy,
		TopN:             topN,
		WeightStructured: 0.4,
		WeightVector:     0.3,
		Workers:          4,
	}, zaptest.NewLogger(t))
}

func ids(results []model.ScoredItinerary) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Itinerary.ID
	}
	return out
}

func TestRanker_Weights(t *testing.T) {
	tests := []struct {
		name         string
		strategy     string
		vectorActive bool
		want         Weights
	}{
		{"extended with query", config.StrategyExtended, true, Weights{0.4, 0.3, 0.3}},
		{"extended without query", config.StrategyExtended, false, Weights{0.4, 0, 0.6}},
		{"simple with query", config.StrategySimple, true, Weights{0, 1, 0}},
		{"simple without query", config.StrategySimple, false, Weights{0, 0, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newTestRanker(t, tt.strategy, 3).Weights(tt.vectorActive)
			assert.InDelta(t, tt.want.Structured, w.Structured, 1e-9)
			assert.InDelta(t, tt.want.Vector, w.Vector, 1e-9)
			assert.InDelta(t, tt.want.Curated, w.Curated, 1e-9)
			assert.InDelta(t, 1.0, w.Sum(), 1e-9)
		})
	}
}

func TestStructuredScore(t *testing.T) {
	assert.Equal(t, NeutralScore, StructuredScore(0, 0))
	assert.Equal(t, 0.5, StructuredScore(1, 2))
	assert.Equal(t, 1.0, StructuredScore(3, 3))
	assert.Equal(t, 0.0, StructuredScore(0, 4))
}

func TestVectorScore(t *testing.T) {
	tests := []struct {
		name      string
		query     []float32
		candidate []float32
		want      float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite is floored", []float32{1, 0}, []float32{-1, 0}, 0},
		{"dimension mismatch", []float32{1, 0, 0}, []float32{1, 0}, 0},
		{"missing candidate", []float32{1, 0}, nil, 0},
		{"missing query", nil, []float32{1, 0}, 0},
		{"zero norm", []float32{0, 0}, []float32{1, 0}, 0},
		{"nan", []float32{float32(math.NaN()), 1}, []float32{1, 1}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, VectorScore(tt.query, tt.candidate), 1e-6)
		})
	}
}

func TestCuratedScore(t *testing.T) {
	assert.Equal(t, NeutralScore, CuratedScore(nil))
	assert.Equal(t, 0.0, CuratedScore(intPtr(1)))
	assert.Equal(t, 0.5, CuratedScore(intPtr(3)))
	assert.Equal(t, 1.0, CuratedScore(intPtr(5)))
	assert.Equal(t, 1.0, CuratedScore(intPtr(9)))
	assert.Equal(t, 0.0, CuratedScore(intPtr(-2)))
}

func TestRankResults_Empty(t *testing.T) {
	got := newTestRanker(t, config.StrategyExtended, 3).RankResults(nil, RankQuery{})
	require.NotNil(t, got)
	assert.Empty(t, got)
}

func TestRankResults_NeutralPreference(t *testing.T) {
	candidates := []model.Itinerary{
		{ID: "a", ActivityTags: []string{"diving", "hiking"}, ThemeTags: []string{"romantic"}},
		{ID: "b"},
		{ID: "c", ThemeTags: []string{"adventure"}, CuratedQualityMetric: intPtr(2)},
	}

	got := newTestRanker(t, config.StrategyExtended, 3).RankResults(candidates, RankQuery{})
	require.Len(t, got, 3)
	for _, r := range got {
		assert.Equal(t, NeutralScore, r.Scores.Structured, r.Itinerary.ID)
	}
}

func TestRankResults_CuratedDecidesWithoutQuery(t *testing.T) {
	candidates := []model.Itinerary{
		{ID: "c1", ActivityTags: []string{"beach"}, CuratedQualityMetric: intPtr(1)},
		{ID: "c5", ActivityTags: []string{"beach"}, CuratedQualityMetric: intPtr(5)},
		{ID: "c3", ActivityTags: []string{"beach"}, CuratedQualityMetric: intPtr(3)},
	}

	got := newTestRanker(t, config.StrategyExtended, 3).RankResults(candidates, RankQuery{
		Interests: []string{"beach"},
	})
	assert.Equal(t, []string{"c5", "c3", "c1"}, ids(got))
	// structured 1.0 at 0.4 plus curated 1.0 at 0.6
	assert.InDelta(t, 1.0, got[0].FinalScore, 1e-9)
	assert.InDelta(t, 0.4, got[2].FinalScore, 1e-9)
}

func TestRankResults_Truncation(t *testing.T) {
	build := func(n int) []model.Itinerary {
		out := make([]model.Itinerary, n)
		for i := range out {
			out[i] = model.Itinerary{ID: fmt.Sprintf("it-%02d", i)}
		}
		return out
	}

	r := newTestRanker(t, config.StrategyExtended, 3)
	assert.Len(t, r.RankResults(build(2), RankQuery{}), 2)
	assert.Len(t, r.RankResults(build(3), RankQuery{}), 3)
	assert.Len(t, r.RankResults(build(10), RankQuery{}), 3)
}

func TestRankResults_TieBreak(t *testing.T) {
	t.Run("identifier ascending", func(t *testing.T) {
		candidates := []model.Itinerary{
			{ID: "b", CuratedQualityMetric: intPtr(4)},
			{ID: "c", CuratedQualityMetric: intPtr(4)},
			{ID: "a", CuratedQualityMetric: intPtr(4)},
		}
		got := newTestRanker(t, config.StrategyExtended, 3).RankResults(candidates, RankQuery{})
		assert.Equal(t, []string{"a", "b", "c"}, ids(got))
	})

	t.Run("curated metric before identifier", func(t *testing.T) {
		// simple strategy with a query puts all weight on the vector axis,
		// so equal embeddings tie on final score whatever the metric
		candidates := []model.Itinerary{
			{ID: "a", Embedding: vec(1, 0), CuratedQualityMetric: intPtr(2)},
			{ID: "b", Embedding: vec(1, 0)},
			{ID: "c", Embedding: vec(1, 0), CuratedQualityMetric: intPtr(4)},
		}
		got := newTestRanker(t, config.StrategySimple, 3).RankResults(candidates, RankQuery{
			Embedding: []float32{1, 0},
		})
		assert.Equal(t, []string{"c", "b", "a"}, ids(got))
	})
}

func TestRankResults_Deterministic(t *testing.T) {
	candidates := make([]model.Itinerary, 0, 40)
	for i := 0; i < 40; i++ {
		candidates = append(candidates, model.Itinerary{
			ID:                   fmt.Sprintf("it-%02d", i),
			ActivityTags:         []string{"beach", "diving"}[:i%2+1],
			ThemeTags:            []string{"romantic"},
			Embedding:            vec(float32(i%5), 1, float32(i%3)),
			CuratedQualityMetric: intPtr(i%5 + 1),
		})
	}
	q := RankQuery{
		Interests: []string{"diving"},
		Vibe:      []string{"romantic"},
		Embedding: []float32{1, 1, 1},
	}

	r := newTestRanker(t, config.StrategyExtended, 10)
	first := r.RankResults(candidates, q)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, r.RankResults(candidates, q))
	}
}

func TestRankResults_ScoreBounds(t *testing.T) {
	candidates := []model.Itinerary{
		{ID: "empty"},
		{ID: "mismatch", Embedding: vec(1, 2)},
		{ID: "opposite", Embedding: vec(-1, -1, -1)},
		{ID: "huge-metric", CuratedQualityMetric: intPtr(1000)},
		{ID: "negative-metric", CuratedQualityMetric: intPtr(-7)},
		{ID: "nan", Embedding: vec(float32(math.NaN()), 0, 0)},
		{ID: "full", ActivityTags: []string{"diving"}, ThemeTags: []string{"romantic"}, Embedding: vec(1, 1, 1), CuratedQualityMetric: intPtr(5)},
	}

	for _, strategy := range []string{config.StrategyExtended, config.StrategySimple} {
		for _, q := range []RankQuery{
			{},
			{Interests: []string{"diving"}, Vibe: []string{"romantic"}, Embedding: []float32{1, 1, 1}},
		} {
			got := newTestRanker(t, strategy, len(candidates)).RankResults(candidates, q)
			require.Len(t, got, len(candidates))
			for _, r := range got {
				for _, v := range []float64{r.Scores.Structured, r.Scores.Vector, r.Scores.Curated, r.FinalScore} {
					assert.GreaterOrEqual(t, v, 0.0, r.Itinerary.ID)
					assert.LessOrEqual(t, v, 1.0, r.Itinerary.ID)
				}
			}
		}
	}
}

func TestRankResults_DimensionMismatchScoresZero(t *testing.T) {
	candidates := []model.Itinerary{
		{ID: "short", Embedding: vec(1, 0)},
		{ID: "match", Embedding: vec(1, 0, 0)},
	}

	got := newTestRanker(t, config.StrategyExtended, 3).RankResults(candidates, RankQuery{
		Embedding: []float32{1, 0, 0},
	})
	require.Len(t, got, 2)
	assert.Equal(t, "match", got[0].Itinerary.ID)
	assert.InDelta(t, 1.0, got[0].Scores.Vector, 1e-9)
	assert.Equal(t, 0.0, got[1].Scores.Vector)
}

func TestRankResults_PanicIsIsolated(t *testing.T) {
	r := newTestRanker(t, config.StrategyExtended, 3)
	r.scoreFn = func(it model.Itinerary, interests, vibe []string, query []float32, w Weights) model.ScoredItinerary {
		if it.ID == "bad" {
			panic("corrupt record")
		}
		return r.score(it, interests, vibe, query, w)
	}

	candidates := []model.Itinerary{
		{ID: "good", ActivityTags: []string{"beach"}, CuratedQualityMetric: intPtr(5)},
		{ID: "bad"},
		{ID: "fine", CuratedQualityMetric: intPtr(1)},
	}

	got := r.RankResults(candidates, RankQuery{Interests: []string{"beach"}})
	require.Len(t, got, 3)
	assert.Equal(t, []string{"good", "bad", "fine"}, ids(got))

	bad := got[1]
	assert.Equal(t, NeutralScore, bad.Scores.Structured)
	assert.Equal(t, NeutralScore, bad.Scores.Curated)
	assert.Equal(t, []string{ReasonGeneralMatch}, bad.MatchedReasons)
}

func TestRankResults_MatchedReasons(t *testing.T) {
	candidates := []model.Itinerary{
		{
			ID:                   "maldives",
			ActivityTags:         []string{"Snorkelling", "spa"},
			ThemeTags:            []string{"Romantic"},
			Embedding:            vec(1, 0),
			CuratedQualityMetric: intPtr(5),
		},
		{ID: "plain", Embedding: vec(0, 1), CuratedQualityMetric: intPtr(2)},
	}

	got := newTestRanker(t, config.StrategyExtended, 3).RankResults(candidates, RankQuery{
		Interests: []string{"snorkeling", "hiking"},
		Vibe:      []string{"romantic"},
		Embedding: []float32{1, 0},
	})
	require.Len(t, got, 2)

	assert.Equal(t, "maldives", got[0].Itinerary.ID)
	assert.InDelta(t, 2.0/3.0, got[0].Scores.Structured, 1e-9)
	assert.Equal(t, []string{ReasonInterestsMatch, ReasonVibeMatch, ReasonContentClose, ReasonEditorsPick}, got[0].MatchedReasons)
	assert.Equal(t, []string{ReasonGeneralMatch}, got[1].MatchedReasons)
}

func TestRankResults_FoldsCallerSpellingWhenScoring(t *testing.T) {
	candidates := []model.Itinerary{
		{ID: "retreat", ActivityTags: []string{"wellness", "culinary"}, ThemeTags: []string{"relaxed"}, CuratedQualityMetric: intPtr(3)},
	}

	got := newTestRanker(t, config.StrategyExtended, 3).RankResults(candidates, RankQuery{
		Interests: []string{"Spa", "Food"},
		Vibe:      []string{"Relaxing"},
	})
	require.Len(t, got, 1)
	assert.Equal(t, 1.0, got[0].Scores.Structured)
}
