package route

import (
	"math"
	"strings"

	"github.com/FACorreiaa/go-seoul-quest-api/internal/api/quest"
	"github.com/FACorreiaa/go-seoul-quest-api/internal/types"
)

const (
	categoryWeight   = 0.35
	distanceWeight   = 0.15
	diversityWeight  = 0.25
	popularityWeight = 0.15
	rewardWeight     = 0.10

	imageBoostFactor = 0.3
	ragBoostFactor   = 0.2

	neutralScore = 0.5
)

var categoryAliases = map[string]string{
	"역사":         "history",
	"역사유적":       "history",
	"문화재":        "history",
	"궁궐":         "history",
	"유적지":        "history",
	"historical": "history",

	"관광지":      "attractions",
	"명소":       "attractions",
	"전망대":      "attractions",
	"landmark": "attractions",
	"tourist":  "attractions",

	"문화":          "culture",
	"문화마을":        "culture",
	"한옥마을":        "culture",
	"전통마을":        "culture",
	"traditional": "culture",

	"종교":     "religion",
	"종교시설":   "religion",
	"사찰":     "religion",
	"성당":     "religion",
	"교회":     "religion",
	"temple": "religion",

	"공원":      "park",
	"광장":      "park",
	"야외공간":    "park",
	"square":  "park",
	"outdoor": "park",
}

var similarCategoryGroups = []map[string]struct{}{
	{"history": {}, "historical": {}},
	{"attractions": {}, "landmark": {}, "tourist": {}},
	{"culture": {}, "traditional": {}},
	{"religion": {}, "temple": {}},
	{"park": {}, "square": {}, "outdoor": {}},
}

// NormalizeCategory maps a Korean or English category label to its
// canonical English id. Unknown labels come back lower-cased.
func NormalizeCategory(raw string) string {
	c := strings.ToLower(strings.TrimSpace(raw))
	if canonical, ok := categoryAliases[c]; ok {
		return canonical
	}
	return c
}

func sameGroup(a, b string) bool {
	for _, g := range similarCategoryGroups {
		_, okA := g[a]
		_, okB := g[b]
		if okA && okB {
			return true
		}
	}
	return false
}

// CategoryAffinity scores one quest category against one preferred label.
// Raw labels are checked against the similar groups before normalization
// so that "temple" and "religion" stay related without collapsing into
// an exact match.
func CategoryAffinity(questCategory, preferred string) float64 {
	q := strings.ToLower(strings.TrimSpace(questCategory))
	p := strings.ToLower(strings.TrimSpace(preferred))
	if q == "" || p == "" {
		return 0
	}
	if q == p {
		return 1
	}
	if sameGroup(q, p) {
		return 0.7
	}
	nq, np := NormalizeCategory(q), NormalizeCategory(p)
	if nq == np {
		return 1
	}
	if sameGroup(nq, np) {
		return 0.7
	}
	return 0.3
}

// CategoryScore is the best affinity over all preferred labels. Quests
// without a category and requests without preferences score neutral.
func CategoryScore(questCategory string, preferred []string) float64 {
	best := 0.0
	for _, p := range preferred {
		best = math.Max(best, CategoryAffinity(questCategory, p))
	}
	if best == 0 {
		return neutralScore
	}
	return best
}

// DistanceScore favours quests close to the user inside radiusKm.
func DistanceScore(lat, lon *float64, q types.Quest, radiusKm float64) float64 {
	d, ok := quest.DistanceTo(lat, lon, q.Latitude, q.Longitude)
	if !ok || radiusKm <= 0 {
		return neutralScore
	}
	if d <= radiusKm {
		return math.Max(0.2, 1-math.Sqrt(d/radiusKm))
	}
	return 0.1
}

func PopularityScore(completionCount int) float64 {
	return math.Min(1, float64(completionCount)/100)
}

// DiversityScore penalises categories the user has already completed.
// completed holds normalized categories.
func DiversityScore(questCategory string, completed map[string]struct{}) float64 {
	if len(completed) == 0 {
		return 1
	}
	c := NormalizeCategory(questCategory)
	if c == "" {
		return neutralScore
	}
	if _, ok := completed[c]; ok {
		return 0.3
	}
	return 1
}

func RewardScore(rewardPoint int) float64 {
	return math.Min(1, float64(rewardPoint)/200)
}

// ScoringContext is everything a quest score depends on besides the quest.
type ScoringContext struct {
	PreferredCategories []string
	CompletedCategories map[string]struct{}
	Latitude            *float64
	Longitude           *float64
	RadiusKm            float64
	// ImageMatches and RAGMatches map quest ids to retrieval similarity.
	ImageMatches map[int64]float64
	RAGMatches   map[int64]float64
}

// Score computes the weighted recommendation score of q. It is a pure
// function of q and the context.
func (c ScoringContext) Score(q types.Quest) types.ScoredQuest {
	b := types.ScoreBreakdown{
		Category:   CategoryScore(q.Category, c.PreferredCategories),
		Distance:   DistanceScore(c.Latitude, c.Longitude, q, c.RadiusKm),
		Diversity:  DiversityScore(q.Category, c.CompletedCategories),
		Popularity: PopularityScore(q.CompletionCount),
		Reward:     RewardScore(q.RewardPoint),
	}
	score := b.Category*categoryWeight +
		b.Distance*distanceWeight +
		b.Diversity*diversityWeight +
		b.Popularity*popularityWeight +
		b.Reward*rewardWeight

	if sim, ok := c.ImageMatches[q.ID]; ok {
		b.ImageMatch = sim * imageBoostFactor
		score += b.ImageMatch
	}
	if sim, ok := c.RAGMatches[q.ID]; ok {
		b.RAGMatch = sim * ragBoostFactor
		score += b.RAGMatch
	}

	return types.ScoredQuest{
		Quest:               q,
		RecommendationScore: round3(score),
		ScoreBreakdown: types.ScoreBreakdown{
			Category:   round3(b.Category),
			Distance:   round3(b.Distance),
			Diversity:  round3(b.Diversity),
			Popularity: round3(b.Popularity),
			Reward:     round3(b.Reward),
			ImageMatch: round3(b.ImageMatch),
			RAGMatch:   round3(b.RAGMatch),
		},
	}
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
