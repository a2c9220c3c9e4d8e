package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Labels is a list of free-text category labels. Clients send it as a
// plain string, a {"name": ...} object, or a list of either.
type Labels []string

func (l *Labels) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}

	if data[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return fmt.Errorf("labels: %w", err)
		}
		out := make(Labels, 0, len(items))
		for _, item := range items {
			label, err := decodeLabel(item)
			if err != nil {
				return err
			}
			if label != "" {
				out = append(out, label)
			}
		}
		*l = out
		return nil
	}

	label, err := decodeLabel(data)
	if err != nil {
		return err
	}
	if label == "" {
		*l = nil
		return nil
	}
	*l = Labels{label}
	return nil
}

func decodeLabel(data json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return strings.TrimSpace(s), nil
	}
	var named struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &named); err != nil {
		return "", fmt.Errorf("label must be a string or an object with a name: %w", err)
	}
	return strings.TrimSpace(named.Name), nil
}

// RoutePreferences is the free-form preference object of a route request.
type RoutePreferences struct {
	Category    Labels   `json:"category,omitempty"`
	Theme       Labels   `json:"theme,omitempty"`
	Districts   []string `json:"districts,omitempty"`
	TextQuery   string   `json:"text_query,omitempty"`
	IncludeCart bool     `json:"include_cart,omitempty"`
}

// UnmarshalJSON accepts preference keys the recommender does not use.
// Without it the request decoder's DisallowUnknownFields would reach into
// the nested object and reject them.
func (p *RoutePreferences) UnmarshalJSON(data []byte) error {
	type plain RoutePreferences
	var out plain
	if err := json.Unmarshal(data, &out); err != nil {
		return err
	}
	*p = RoutePreferences(out)
	return nil
}

// PreferredCategories merges category and theme labels, keeping first
// occurrence order and dropping duplicates.
func (p RoutePreferences) PreferredCategories() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, group := range []Labels{p.Category, p.Theme} {
		for _, label := range group {
			if label == "" {
				continue
			}
			if _, ok := seen[label]; ok {
				continue
			}
			seen[label] = struct{}{}
			out = append(out, label)
		}
	}
	return out
}

// SessionTitle picks the first theme, then the first category, falling
// back to "Seoul Travel".
func (p RoutePreferences) SessionTitle() string {
	if len(p.Theme) > 0 && p.Theme[0] != "" {
		return p.Theme[0]
	}
	if len(p.Category) > 0 && p.Category[0] != "" {
		return p.Category[0]
	}
	return "Seoul Travel"
}

type RouteRecommendRequest struct {
	Preferences      RoutePreferences `json:"preferences"`
	MustVisitPlaceID *string          `json:"must_visit_place_id,omitempty"`
	Latitude         *float64         `json:"latitude,omitempty" validate:"omitempty,gte=-90,lte=90"`
	Longitude        *float64         `json:"longitude,omitempty" validate:"omitempty,gte=-180,lte=180"`
	StartLatitude    *float64         `json:"start_latitude,omitempty" validate:"omitempty,gte=-90,lte=90"`
	StartLongitude   *float64         `json:"start_longitude,omitempty" validate:"omitempty,gte=-180,lte=180"`
	RadiusKm         *float64         `json:"radius_km,omitempty" validate:"omitempty,gt=0,lte=100"`
	Image            string           `json:"image,omitempty"`
}

// ScoreBreakdown holds the component scores behind a recommendation score.
type ScoreBreakdown struct {
	Category   float64 `json:"category"`
	Distance   float64 `json:"distance"`
	Diversity  float64 `json:"diversity"`
	Popularity float64 `json:"popularity"`
	Reward     float64 `json:"reward"`
	ImageMatch float64 `json:"image_match,omitempty"`
	RAGMatch   float64 `json:"rag_match,omitempty"`
}

// ScoredQuest is a quest annotated by the recommender. A nil
// DistanceFromStart means the distance is unknown.
type ScoredQuest struct {
	Quest
	RecommendationScore float64        `json:"recommendation_score"`
	ScoreBreakdown      ScoreBreakdown `json:"score_breakdown"`
	DistanceFromStart   *float64       `json:"distance_from_start,omitempty"`
	IsNightView         bool           `json:"is_night_view"`
}

type RouteRecommendResponse struct {
	Success   bool          `json:"success"`
	Quests    []ScoredQuest `json:"quests"`
	Count     int           `json:"count"`
	SessionID string        `json:"session_id"`
}

// RouteRerankResult is what the LLM reranker picked.
type RouteRerankResult struct {
	SelectedQuestIDs []int64 `json:"selected_quest_ids"`
	Reasoning        string  `json:"reasoning"`
}
