package utils

import (
	"strings"
)

// tagAliases folds common spellings onto the tag vocabulary used by the itinerary catalogue.
var tagAliases = map[string]string{
	"relaxing":      "relaxed",
	"relax":         "relaxed",
	"chill":         "relaxed",
	"adventurous":   "adventure",
	"adventures":    "adventure",
	"active_travel": "active",
	"romance":       "romantic",
	"snorkelling":   "snorkeling",
	"scuba":         "diving",
	"scuba_diving":  "diving",
	"hike":          "hiking",
	"hikes":         "hiking",
	"trekking":      "hiking",
	"beaches":       "beach",
	"wine_tasting":  "wine",
	"wineries":      "wine",
	"food":          "culinary",
	"foodie":        "culinary",
	"gastronomy":    "culinary",
	"spa":           "wellness",
	"safari_drives": "safari",
	"game_drives":   "safari",
	"fast":          "packed",
	"slow_paced":    "slow",
	"balance":       "balanced",
}

// NormalizeTag lower-cases and trims a tag, joins inner whitespace and
// hyphens with underscores and folds known aliases. "Avoid Hiking" and
// "avoid-hiking" both become "avoid_hiking".
func NormalizeTag(tag string) string {
	t := strings.ToLower(strings.TrimSpace(tag))
	if t == "" {
		return ""
	}
	t = strings.Join(strings.FieldsFunc(t, func(r rune) bool {
		return r == ' ' || r == '-' || r == '_' || r == '\t'
	}), "_")

	if alias, ok := tagAliases[t]; ok {
		return alias
	}
	return t
}

// NormalizeTags normalizes every tag, dropping empties and duplicates while
// keeping first-occurrence order. The result is never nil.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		n := NormalizeTag(tag)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// CleanTags trims tags and drops empties and case-insensitive duplicates,
// keeping the first spelling seen. Values keep their original case and
// wording since they are compared against the catalogue vocabulary as-is.
func CleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		t := strings.TrimSpace(tag)
		if t == "" {
			continue
		}
		key := strings.ToLower(t)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, t)
	}
	return out
}

// TagSet builds a lookup set of normalized tags.
func TagSet(tags []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		if n := NormalizeTag(tag); n != "" {
			set[n] = struct{}{}
		}
	}
	return set
}

// CountOverlap counts how many of wanted appear in have.
func CountOverlap(wanted []string, have map[string]struct{}) int {
	n := 0
	for _, w := range wanted {
		if _, ok := have[w]; ok {
			n++
		}
	}
	return n
}
