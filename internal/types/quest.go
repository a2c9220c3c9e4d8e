package types

// Place is a physical location that one or more quests point at.
type Place struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Category    string         `json:"category,omitempty"`
	District    string         `json:"district,omitempty"`
	Address     string         `json:"address,omitempty"`
	Description string         `json:"description,omitempty"`
	ImageURL    string         `json:"image_url,omitempty"`
	Latitude    *float64       `json:"latitude,omitempty"`
	Longitude   *float64       `json:"longitude,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Quest is an active gamified task tied to a place. District and
// PlaceImageURL are hoisted from the associated place.
type Quest struct {
	ID              int64          `json:"id"`
	PlaceID         string         `json:"place_id,omitempty"`
	Name            string         `json:"name"`
	Description     string         `json:"description,omitempty"`
	Category        string         `json:"category,omitempty"`
	Latitude        *float64       `json:"latitude,omitempty"`
	Longitude       *float64       `json:"longitude,omitempty"`
	RewardPoint     int            `json:"reward_point"`
	CompletionCount int            `json:"completion_count"`
	IsActive        bool           `json:"is_active"`
	District        string         `json:"district,omitempty"`
	PlaceImageURL   string         `json:"place_image_url,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	Place           *Place         `json:"place,omitempty"`
	DistanceKm      *float64       `json:"distance_km,omitempty"`
}

// HasCoordinates reports whether both latitude and longitude are known.
func (q Quest) HasCoordinates() bool {
	return q.Latitude != nil && q.Longitude != nil
}

// QuestMatch is a quest returned by vector similarity search.
type QuestMatch struct {
	Quest      Quest   `json:"quest"`
	Similarity float64 `json:"similarity"`
	RAGText    string  `json:"rag_text,omitempty"`
}

// RAGSearchOptions narrows a quest similarity search.
type RAGSearchOptions struct {
	Threshold float64
	TopK      int
	Latitude  *float64
	Longitude *float64
	RadiusKm  float64
}

// PlaceInfo is the structured result of analysing a photo of a place.
type PlaceInfo struct {
	PlaceName   string `json:"place_name"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Features    string `json:"features"`
	Confidence  string `json:"confidence"`
}

// NearbyQuestsResponse is returned by the nearby-quests endpoint.
type NearbyQuestsResponse struct {
	Success bool    `json:"success"`
	Count   int     `json:"count"`
	Quests  []Quest `json:"quests"`
}

type SimilarPlacesRequest struct {
	Image     string   `json:"image" validate:"required"`
	Latitude  *float64 `json:"latitude,omitempty" validate:"omitempty,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude,omitempty" validate:"omitempty,gte=-180,lte=180"`
	RadiusKm  float64  `json:"radius_km,omitempty" validate:"omitempty,gt=0,lte=100"`
	Limit     int      `json:"limit,omitempty" validate:"omitempty,gt=0,lte=50"`
}

type SimilarPlace struct {
	QuestMatch
	Confidence float64 `json:"confidence"`
}

type SimilarPlacesFilter struct {
	GPSEnabled bool    `json:"gps_enabled"`
	RadiusKm   float64 `json:"radius_km"`
}

type SimilarPlacesResponse struct {
	Success         bool                `json:"success"`
	Count           int                 `json:"count"`
	Recommendations []SimilarPlace      `json:"recommendations"`
	PlaceInfo       PlaceInfo           `json:"place_info"`
	Filter          SimilarPlacesFilter `json:"filter"`
}

type QuestDetailResponse struct {
	Success bool  `json:"success"`
	Quest   Quest `json:"quest"`
}
