package types

import (
	"time"

	"github.com/google/uuid"
)

// ChatLog is the read-only summary row written after a route recommendation.
type ChatLog struct {
	ID                uuid.UUID
	UserID            string
	UserMessage       string
	AIResponse        string
	Mode              string
	FunctionType      string
	ChatSessionID     uuid.UUID
	Title             string
	IsReadOnly        bool
	QuestStep         int
	PromptStepText    string
	Options           map[string]any
	SelectedTheme     string
	SelectedDistricts []string
	IncludeCart       bool
}

// LocationLog is one anonymized location-interest row.
type LocationLog struct {
	AnonymousUserID     string
	QuestID             int64
	PlaceID             string
	UserLatitude        *float64
	UserLongitude       *float64
	StartLatitude       *float64
	StartLongitude      *float64
	DistanceFromQuestKm *float64
	District            string
	InterestType        string
	TreasureHuntCount   int
	CreatedAt           time.Time
}

// RouteRecommendationLog carries everything the activity sink records for
// one route recommendation.
type RouteRecommendationLog struct {
	UserID         string
	SessionID      uuid.UUID
	Preferences    RoutePreferences
	Quests         []ScoredQuest
	UserLatitude   *float64
	UserLongitude  *float64
	StartLatitude  *float64
	StartLongitude *float64
}
