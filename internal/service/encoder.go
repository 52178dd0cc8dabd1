package service

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"honeymatch/internal/logger"
	"honeymatch/internal/model"
	"honeymatch/internal/utils"
)

// Budget ceilings per tier
const (
	BudgetTier1Ceiling     = 16000.0
	BudgetTier2Ceiling     = 24000.0
	BudgetUnboundedCeiling = 100000.0
)

var budgetCeilings = map[string]float64{
	"tier1": BudgetTier1Ceiling,
	"tier2": BudgetTier2Ceiling,
	"tier3": BudgetUnboundedCeiling,
}

// PreferenceEncoder turns questionnaire answers into store filters and an embedding descriptor
type PreferenceEncoder struct {
	logger *zap.Logger
}

// NewPreferenceEncoder creates a new preference encoder
func NewPreferenceEncoder(l *zap.Logger) *PreferenceEncoder {
	return &PreferenceEncoder{logger: logger.OrNop(l)}
}

// Encode builds filter params and descriptor text. It never fails: unknown
// or missing values fall back to "no constraint". Filter values keep the
// caller's spelling because match_itineraries compares them verbatim;
// alias folding happens only in the ranker.
func (e *PreferenceEncoder) Encode(answers model.QuestionnaireAnswers) model.EncodedPreferences {
	vibe := utils.CleanTags(answers.Vibe)
	regions := utils.CleanTags(answers.Regions)
	interests := utils.CleanTags(answers.Interests)
	pace := utils.CleanTags(answers.Pace)
	timing := utils.CleanTags(answers.Timing)
	avoids := utils.CleanTags(answers.Avoids)

	duration := int(answers.Duration)
	if duration < 0 {
		duration = 0
	}

	filters := model.FilterParams{
		MaxPrice:       e.MaxPrice(answers.BudgetTier),
		TargetDuration: duration,
		Regions:        nilIfEmpty(regions),
		Interests:      nilIfEmpty(interests),
		Vibe:           nilIfEmpty(vibe),
		AvoidTags:      nilIfEmpty(avoids),
		TravelSeasons:  nilIfEmpty(timing),
	}
	// pace is single-valued downstream; the first answer wins
	if len(pace) > 0 {
		p := pace[0]
		filters.Pace = &p
	}

	query := strings.TrimSpace(answers.OpenEndedQuery)

	return model.EncodedPreferences{
		Filters:        filters,
		DescriptorText: buildDescriptor(vibe, regions, interests, pace, timing, avoids, duration, query),
		OpenEndedQuery: query,
	}
}

// MaxPrice maps a budget tier to its price ceiling
func (e *PreferenceEncoder) MaxPrice(tier string) float64 {
	key := strings.ToLower(strings.TrimSpace(tier))
	if ceiling, ok := budgetCeilings[key]; ok {
		return ceiling
	}
	e.logger.Warn("unrecognized budget tier, using unbounded ceiling",
		zap.String("budget_tier", tier),
		zap.Float64("max_price", BudgetUnboundedCeiling),
	)
	return BudgetUnboundedCeiling
}

func buildDescriptor(vibe, regions, interests, pace, timing, avoids []string, duration int, query string) string {
	var parts []string
	add := func(label string, tags []string) {
		if len(tags) == 0 {
			return
		}
		parts = append(parts, fmt.Sprintf("%s: %s.", label, strings.Join(tags, ", ")))
	}

	add("Vibe", vibe)
	add("Regions", regions)
	add("Interests", interests)
	if len(pace) > 0 {
		add("Pace", pace[:1])
	}
	add("Travel timing", timing)
	add("Avoid", avoids)
	if duration > 0 {
		parts = append(parts, fmt.Sprintf("Duration: %d days.", duration))
	}
	if query != "" {
		parts = append(parts, "Additional preferences: "+query)
	}
	return strings.Join(parts, " ")
}

func nilIfEmpty(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	return tags
}
