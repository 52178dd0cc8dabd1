package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"honeymatch/internal/config"
	"honeymatch/internal/logger"
	"honeymatch/internal/metrics"
	"honeymatch/internal/model"
)

// CandidateRetriever returns the bounded candidate pool matching hard filters
type CandidateRetriever interface {
	RetrieveCandidates(ctx context.Context, filters model.FilterParams, limit int) ([]model.Itinerary, error)
}

// ItineraryStore is everything the service needs from the itinerary store
type ItineraryStore interface {
	CandidateRetriever
	GetItineraryByID(ctx context.Context, id string) (*model.Itinerary, error)
	BatchUpdateEmbeddings(ctx context.Context, items []model.EmbeddingItem) (int, []string)
}

// MatchEventCallback is called for streaming match events
type MatchEventCallback func(event string, data any) error

// Fallback reasons for a match ranked without the vector axis
const (
	fallbackNoQuery           = "no_query"
	fallbackDisabled          = "disabled"
	fallbackProviderError     = "provider_error"
	fallbackDimensionMismatch = "dimension_mismatch"
)

// MatchService runs the encode, retrieve, rank pipeline
type MatchService struct {
	store            ItineraryStore
	encoder          *PreferenceEncoder
	ranker           *Ranker
	embedder         Embedder
	strategy         string
	poolSize         int
	retrievalTimeout time.Duration
	dimensions       int
	strict           bool
	logger           *zap.Logger
}

// NewMatchService creates a new match service. embedder may be nil, in
// which case every match is ranked without vector similarity.
func NewMatchService(
	store ItineraryStore,
	encoder *PreferenceEncoder,
	ranker *Ranker,
	embedder Embedder,
	matching config.MatchingConfig,
	embedding config.EmbeddingConfig,
	l *zap.Logger,
) *MatchService {
	return &MatchService{
		store:            store,
		encoder:          encoder,
		ranker:           ranker,
		embedder:         embedder,
		strategy:         matching.Strategy,
		poolSize:         matching.PoolSize,
		retrievalTimeout: matching.RetrievalTimeout,
		dimensions:       embedding.Dimensions,
		strict:           embedding.StrictDimensions,
		logger:           logger.OrNop(l),
	}
}

// Match encodes answers, fetches candidates and returns the ranked shortlist
func (s *MatchService) Match(ctx context.Context, answers model.QuestionnaireAnswers) ([]model.ItineraryPreview, error) {
	return s.run(ctx, answers, nil)
}

// MatchStream runs the same pipeline and reports progress through callback
func (s *MatchService) MatchStream(ctx context.Context, answers model.QuestionnaireAnswers, callback MatchEventCallback) ([]model.ItineraryPreview, error) {
	return s.run(ctx, answers, callback)
}

func (s *MatchService) run(ctx context.Context, answers model.QuestionnaireAnswers, callback MatchEventCallback) ([]model.ItineraryPreview, error) {
	startTime := time.Now()
	emit := func(event string, data any) error {
		if callback == nil {
			return nil
		}
		return callback(event, data)
	}

	if err := emit("encoding", map[string]any{
		"status": "Reading your preferences...",
	}); err != nil {
		return nil, err
	}

	encoded := s.encoder.Encode(answers)
	queryText := s.queryText(encoded)

	if err := emit("retrieving", map[string]any{
		"status":  "Finding itineraries...",
		"filters": encoded.Filters,
	}); err != nil {
		return nil, err
	}

	var (
		candidates []model.Itinerary
		queryVec   []float32
		embedErr   error
	)

	// embedding failures degrade the ranking and never cancel retrieval
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		queryVec, embedErr = s.embedQuery(gctx, queryText)
		return nil
	})
	g.Go(func() error {
		rctx := gctx
		if s.retrievalTimeout > 0 {
			var cancel context.CancelFunc
			rctx, cancel = context.WithTimeout(gctx, s.retrievalTimeout)
			defer cancel()
		}
		var err error
		candidates, err = s.store.RetrieveCandidates(rctx, encoded.Filters, s.poolSize)
		if err != nil {
			return &RetrievalError{Err: err}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		metrics.MatchRequestsTotal.WithLabelValues("retrieval_error").Inc()
		s.logger.Error("candidate retrieval failed", zap.Error(err))
		return nil, err
	}

	if embedErr != nil {
		var dimErr *DimensionMismatchError
		if s.strict && errors.As(embedErr, &dimErr) {
			metrics.MatchRequestsTotal.WithLabelValues("embedding_error").Inc()
			s.logger.Error("query embedding has the wrong dimension", zap.Error(embedErr))
			return nil, embedErr
		}
		reason := fallbackProviderError
		if dimErr != nil {
			reason = fallbackDimensionMismatch
		}
		metrics.EmbeddingFallbacksTotal.WithLabelValues(reason).Inc()
		s.logger.Warn("query embedding unavailable, ranking without vector similarity", zap.Error(embedErr))
		queryVec = nil
	}

	metrics.MatchCandidates.Observe(float64(len(candidates)))

	if err := emit("ranking", map[string]any{
		"status":        "Ranking itineraries...",
		"candidates":    len(candidates),
		"vector_active": len(queryVec) > 0,
	}); err != nil {
		return nil, err
	}

	ranked := s.ranker.RankResults(candidates, RankQuery{
		Interests: encoded.Filters.Interests,
		Vibe:      encoded.Filters.Vibe,
		Embedding: queryVec,
	})

	previews := make([]model.ItineraryPreview, 0, len(ranked))
	for _, r := range ranked {
		previews = append(previews, r.Preview())
	}

	outcome := "ok"
	if len(previews) == 0 {
		outcome = "empty"
	}
	metrics.MatchRequestsTotal.WithLabelValues(outcome).Inc()
	metrics.MatchDuration.WithLabelValues(s.strategy).Observe(time.Since(startTime).Seconds())

	s.logger.Info("match completed",
		zap.String("strategy", s.strategy),
		zap.Int("candidates", len(candidates)),
		zap.Int("returned", len(previews)),
		zap.Bool("vector_active", len(queryVec) > 0),
		zap.Duration("took", time.Since(startTime)),
	)

	if err := emit("results", previews); err != nil {
		return nil, err
	}
	return previews, nil
}

// queryText picks the text to embed: the free-text answer for the extended
// strategy, the full descriptor for the simple one.
func (s *MatchService) queryText(encoded model.EncodedPreferences) string {
	if s.strategy == config.StrategySimple {
		return encoded.DescriptorText
	}
	return encoded.OpenEndedQuery
}

// embedQuery returns nil, nil when there is nothing to embed
func (s *MatchService) embedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		metrics.EmbeddingFallbacksTotal.WithLabelValues(fallbackNoQuery).Inc()
		return nil, nil
	}
	if s.embedder == nil {
		metrics.EmbeddingFallbacksTotal.WithLabelValues(fallbackDisabled).Inc()
		return nil, nil
	}

	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, &EmbeddingError{Provider: s.embedder.Name(), Err: err}
	}
	if s.dimensions > 0 && len(vec) != s.dimensions {
		return nil, &EmbeddingError{
			Provider: s.embedder.Name(),
			Err:      &DimensionMismatchError{Expected: s.dimensions, Got: len(vec)},
		}
	}
	return vec, nil
}

// GetItinerary retrieves a single itinerary by ID, nil when absent
func (s *MatchService) GetItinerary(ctx context.Context, id string) (*model.Itinerary, error) {
	it, err := s.store.GetItineraryByID(ctx, id)
	if err != nil {
		return nil, &RetrievalError{Err: err}
	}
	return it, nil
}

// UpdateEmbeddings stores itinerary embeddings. Vectors whose length differs
// from the configured dimension are rejected individually.
func (s *MatchService) UpdateEmbeddings(ctx context.Context, items []model.EmbeddingItem) (int, []string) {
	valid := make([]model.EmbeddingItem, 0, len(items))
	var rejected []string
	for _, item := range items {
		if s.dimensions > 0 && len(item.Embedding) != s.dimensions {
			rejected = append(rejected, fmt.Sprintf("itinerary_id %s: %v", item.ItineraryID,
				&DimensionMismatchError{Expected: s.dimensions, Got: len(item.Embedding)}))
			continue
		}
		valid = append(valid, item)
	}

	if len(valid) == 0 {
		return 0, rejected
	}

	success, errs := s.store.BatchUpdateEmbeddings(ctx, valid)
	return success, append(rejected, errs...)
}
