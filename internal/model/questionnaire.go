package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// QuestionnaireAnswers is the body of a match request
type QuestionnaireAnswers struct {
	Vibe           TagList `json:"vibe"`
	Regions        TagList `json:"regions"`
	Interests      TagList `json:"interests"`
	Pace           TagList `json:"pace"`
	Timing         TagList `json:"timing"`
	Avoids         TagList `json:"avoids"`
	Duration       FlexInt `json:"duration"`
	BudgetTier     string  `json:"budget_tier"`
	OpenEndedQuery string  `json:"openEndedQuery"`
}

// TagList is a set-valued questionnaire field. It decodes from a JSON
// array, a single string or null, and is never nil after decoding.
type TagList []string

// UnmarshalJSON implements json.Unmarshaler
func (t *TagList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*t = TagList{}
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if strings.TrimSpace(s) == "" {
			*t = TagList{}
			return nil
		}
		*t = TagList{s}
		return nil
	case '[':
		var items []*string
		if err := json.Unmarshal(data, &items); err != nil {
			return fmt.Errorf("tag list must contain strings: %w", err)
		}
		out := make(TagList, 0, len(items))
		for _, item := range items {
			if item != nil {
				out = append(out, *item)
			}
		}
		*t = out
		return nil
	default:
		return fmt.Errorf("tag list must be a string or an array of strings, got %s", string(data))
	}
}

// FlexInt decodes from a JSON number, a numeric string or null.
type FlexInt int

// UnmarshalJSON implements json.Unmarshaler
func (f *FlexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*f = 0
			return nil
		}
		data = []byte(s)
	}

	n, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("invalid integer value %s", string(data))
	}
	if math.IsNaN(n) || math.IsInf(n, 0) || n > math.MaxInt32 || n < math.MinInt32 {
		return fmt.Errorf("integer value %s out of range", string(data))
	}
	*f = FlexInt(int(n))
	return nil
}
