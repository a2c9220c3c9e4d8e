package route

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/FACorreiaa/go-seoul-quest-api/internal/api/quest"
	"github.com/FACorreiaa/go-seoul-quest-api/internal/types"
)

var (
	nightMetadataKeywords    = []string{"night_view", "night_scene", "night_viewing", "야경", "야경명소"}
	nightDescriptionKeywords = []string{"night view", "night scene", "야경", "야경명소", "야경 포인트"}
	nightNameKeywords        = []string{"night view", "야경"}
)

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

func metadataText(m map[string]any) string {
	if len(m) == 0 {
		return ""
	}
	b, err := json.Marshal(m)
	if err != nil {
		return ""
	}
	return strings.ToLower(string(b))
}

// IsNightView reports whether a quest is an evening spot, judged by
// keywords in its own or its place's metadata, description and name.
func IsNightView(q types.Quest) bool {
	var placeMeta map[string]any
	var placeDescription, placeName string
	if q.Place != nil {
		placeMeta = q.Place.Metadata
		placeDescription = q.Place.Description
		placeName = q.Place.Name
	}

	if containsAny(metadataText(q.Metadata), nightMetadataKeywords) ||
		containsAny(metadataText(placeMeta), nightMetadataKeywords) {
		return true
	}

	description := q.Description
	if description == "" {
		description = placeDescription
	}
	if containsAny(strings.ToLower(description), nightDescriptionKeywords) {
		return true
	}

	name := q.Name
	if name == "" {
		name = placeName
	}
	return containsAny(strings.ToLower(name), nightNameKeywords)
}

// placeKey identifies the place a quest belongs to. Quests without a
// place only collide with themselves.
func placeKey(q types.ScoredQuest) string {
	if q.PlaceID != "" {
		return q.PlaceID
	}
	return "quest:" + strconv.FormatInt(q.ID, 10)
}

func distanceFromStart(q types.ScoredQuest) float64 {
	if q.DistanceFromStart == nil {
		return math.Inf(1)
	}
	return *q.DistanceFromStart
}

// blendedKey orders anchored regular quests: closer and better scored first.
func blendedKey(q types.ScoredQuest) float64 {
	return distanceFromStart(q)*0.3 + (1-q.RecommendationScore)*0.7
}

// candidatePool is the scored candidate set split by night-view, each
// half sorted for selection.
type candidatePool struct {
	regular   []types.ScoredQuest
	night     []types.ScoredQuest
	mustVisit *types.ScoredQuest
	anchored  bool
	anchorLat *float64
	anchorLon *float64
	radiusKm  float64
}

// newCandidatePool partitions scored quests, injects the must-visit
// quest into the regular list and sorts both lists relative to the
// anchor, or by score when there is none.
func newCandidatePool(scored []types.ScoredQuest, mustVisit *types.ScoredQuest, anchorLat, anchorLon *float64, radiusKm float64) *candidatePool {
	p := &candidatePool{
		anchored:  anchorLat != nil && anchorLon != nil,
		anchorLat: anchorLat,
		anchorLon: anchorLon,
		radiusKm:  radiusKm,
	}
	for _, q := range scored {
		q.IsNightView = IsNightView(q.Quest)
		if q.IsNightView {
			p.night = append(p.night, q)
		} else {
			p.regular = append(p.regular, q)
		}
	}

	if mustVisit != nil {
		mv := *mustVisit
		mv.IsNightView = IsNightView(mv.Quest)
		present := false
		for _, q := range p.regular {
			if q.ID == mv.ID {
				present = true
				break
			}
		}
		if !present {
			mv.RecommendationScore = 1.0
			p.regular = append(p.regular, mv)
		}
		p.mustVisit = &mv
	}

	if p.anchored {
		for i := range p.regular {
			p.regular[i] = p.withAnchorDistance(p.regular[i])
		}
		for i := range p.night {
			p.night[i] = p.withAnchorDistance(p.night[i])
		}
		if p.mustVisit != nil {
			*p.mustVisit = p.withAnchorDistance(*p.mustVisit)
		}
		sort.SliceStable(p.regular, func(i, j int) bool {
			return blendedKey(p.regular[i]) < blendedKey(p.regular[j])
		})
		sort.SliceStable(p.night, func(i, j int) bool {
			di, dj := distanceFromStart(p.night[i]), distanceFromStart(p.night[j])
			if di != dj {
				return di < dj
			}
			return p.night[i].RecommendationScore > p.night[j].RecommendationScore
		})
	} else {
		byScore := func(qs []types.ScoredQuest) {
			sort.SliceStable(qs, func(i, j int) bool {
				return qs[i].RecommendationScore > qs[j].RecommendationScore
			})
		}
		byScore(p.regular)
		byScore(p.night)
	}
	return p
}

// withAnchorDistance sets DistanceFromStart when both the anchor and the
// quest have coordinates.
func (p *candidatePool) withAnchorDistance(q types.ScoredQuest) types.ScoredQuest {
	q.DistanceFromStart = nil
	if d, ok := quest.DistanceTo(p.anchorLat, p.anchorLon, q.Latitude, q.Longitude); ok {
		q.DistanceFromStart = &d
	}
	return q
}

// rank returns the position of a quest in the sorted regular list, or
// len(regular) when absent.
func (p *candidatePool) rank(id int64) int {
	for i, q := range p.regular {
		if q.ID == id {
			return i
		}
	}
	return len(p.regular)
}

func (p *candidatePool) isMustVisit(q types.ScoredQuest) bool {
	return p.mustVisit != nil && q.ID == p.mustVisit.ID
}

// itinerary is an ordered pick list that refuses a second quest at a
// place it already holds.
type itinerary struct {
	quests []types.ScoredQuest
	places map[string]struct{}
}

func newItinerary() *itinerary {
	return &itinerary{places: make(map[string]struct{})}
}

func (it *itinerary) has(q types.ScoredQuest) bool {
	_, ok := it.places[placeKey(q)]
	return ok
}

func (it *itinerary) add(q types.ScoredQuest) bool {
	if it.has(q) {
		return false
	}
	it.places[placeKey(q)] = struct{}{}
	it.quests = append(it.quests, q)
	return true
}

func (it *itinerary) insertAt(i int, q types.ScoredQuest) bool {
	if it.has(q) {
		return false
	}
	it.places[placeKey(q)] = struct{}{}
	it.quests = append(it.quests, types.ScoredQuest{})
	copy(it.quests[i+1:], it.quests[i:])
	it.quests[i] = q
	return true
}

func (it *itinerary) len() int { return len(it.quests) }

// fill appends from qs in order until the itinerary holds limit quests.
func (it *itinerary) fill(qs []types.ScoredQuest, limit int) {
	for _, q := range qs {
		if it.len() >= limit {
			return
		}
		it.add(q)
	}
}
