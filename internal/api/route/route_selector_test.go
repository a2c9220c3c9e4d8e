package route

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/go-seoul-quest-api/internal/types"
)

func scoredAt(id int64, placeID string, dKm, score float64) types.ScoredQuest {
	return types.ScoredQuest{Quest: questAt(id, placeID, "history", dKm), RecommendationScore: score}
}

func nightAt(id int64, placeID string, dKm, score float64) types.ScoredQuest {
	q := scoredAt(id, placeID, dKm, score)
	q.Description = "Han river 야경 포인트"
	return q
}

func ids(qs []types.ScoredQuest) []int64 {
	out := make([]int64, 0, len(qs))
	for _, q := range qs {
		out = append(out, q.ID)
	}
	return out
}

func anchoredPool(scored []types.ScoredQuest, mustVisit *types.ScoredQuest, radiusKm float64) *candidatePool {
	return newCandidatePool(scored, mustVisit, f64(gyeongbokgungLat), f64(gyeongbokgungLon), radiusKm)
}

func TestIsNightView(t *testing.T) {
	tests := []struct {
		name string
		q    types.Quest
		want bool
	}{
		{"plain", types.Quest{Name: "Gyeongbokgung", Description: "Royal palace"}, false},
		{"quest metadata", types.Quest{Metadata: map[string]any{"tags": []any{"Night_View"}}}, true},
		{"place metadata", types.Quest{Place: &types.Place{Metadata: map[string]any{"야경명소": true}}}, true},
		{"quest description", types.Quest{Description: "Great Night Scene over the river"}, true},
		{"place description fallback", types.Quest{Place: &types.Place{Description: "야경 포인트"}}, true},
		{"quest description wins over place", types.Quest{Description: "Morning walk", Place: &types.Place{Description: "야경"}}, false},
		{"name", types.Quest{Name: "Namsan 야경"}, true},
		{"place name fallback", types.Quest{Place: &types.Place{Name: "Night View Deck"}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsNightView(tt.q))
		})
	}
}

func TestNewCandidatePool(t *testing.T) {
	t.Run("anchored sort uses blended key", func(t *testing.T) {
		// keys: 1 -> 0.3*2+0.7*0.1=0.67, 2 -> 0.3*0.5+0.7*0.5=0.5, 3 -> 0.3*1+0.7*0.2=0.44
		pool := anchoredPool([]types.ScoredQuest{
			scoredAt(1, "p1", 2, 0.9),
			scoredAt(2, "p2", 0.5, 0.5),
			scoredAt(3, "p3", 1, 0.8),
			nightAt(4, "p4", 3, 0.2),
			nightAt(5, "p5", 1, 0.1),
		}, nil, 5)

		assert.Equal(t, []int64{3, 2, 1}, ids(pool.regular))
		assert.Equal(t, []int64{5, 4}, ids(pool.night))
		require.NotNil(t, pool.regular[0].DistanceFromStart)
		assert.InDelta(t, 1.0, *pool.regular[0].DistanceFromStart, 1e-6)
	})

	t.Run("quests without coordinates sort last", func(t *testing.T) {
		unknown := types.ScoredQuest{Quest: types.Quest{ID: 9, PlaceID: "p9"}, RecommendationScore: 1}
		pool := anchoredPool([]types.ScoredQuest{unknown, scoredAt(1, "p1", 4, 0.1)}, nil, 5)
		assert.Equal(t, []int64{1, 9}, ids(pool.regular))
		assert.Nil(t, pool.regular[1].DistanceFromStart)
	})

	t.Run("no anchor sorts by score", func(t *testing.T) {
		pool := newCandidatePool([]types.ScoredQuest{
			scoredAt(1, "p1", 0.1, 0.2),
			scoredAt(2, "p2", 3, 0.9),
			scoredAt(3, "p3", 1, 0.5),
		}, nil, nil, nil, 5)
		assert.Equal(t, []int64{2, 3, 1}, ids(pool.regular))
		assert.Nil(t, pool.regular[0].DistanceFromStart)
	})

	t.Run("must-visit joins regular with top score", func(t *testing.T) {
		mv := scoredAt(8, "p8", 0.2, 0)
		mv.Description = "야경"
		pool := newCandidatePool([]types.ScoredQuest{scoredAt(1, "p1", 0.1, 0.9)}, &mv, nil, nil, 5)
		assert.Equal(t, []int64{8, 1}, ids(pool.regular))
		assert.Equal(t, 1.0, pool.regular[0].RecommendationScore)
		assert.Empty(t, pool.night)
	})
}

func TestSelectFallback(t *testing.T) {
	t.Run("spreads regular picks over zones and keeps night last", func(t *testing.T) {
		// radius 3: near <= 0.99km, mid <= 1.98km
		pool := anchoredPool([]types.ScoredQuest{
			scoredAt(1, "p1", 0.1, 0.5),
			scoredAt(2, "p2", 0.2, 0.5),
			scoredAt(3, "p3", 0.3, 0.5),
			scoredAt(4, "p4", 1.5, 0.9),
			scoredAt(5, "p5", 2.5, 0.9),
			nightAt(6, "p6", 1.0, 0.3),
			nightAt(7, "p7", 2.0, 0.9),
		}, nil, 3)

		got := pool.selectFallback()
		assert.Equal(t, []int64{1, 4, 5, 6}, ids(got))
	})

	t.Run("without anchor takes best scored", func(t *testing.T) {
		pool := newCandidatePool([]types.ScoredQuest{
			scoredAt(1, "p1", 0, 0.9),
			scoredAt(2, "p2", 0, 0.8),
			scoredAt(3, "p3", 0, 0.7),
			scoredAt(4, "p4", 0, 0.6),
			nightAt(5, "p5", 0, 0.1),
		}, nil, nil, nil, 5)
		assert.Equal(t, []int64{1, 2, 3, 5}, ids(pool.selectFallback()))
	})

	t.Run("backfills from regular when there is no night quest", func(t *testing.T) {
		pool := newCandidatePool([]types.ScoredQuest{
			scoredAt(1, "p1", 0, 0.9),
			scoredAt(2, "p2", 0, 0.8),
			scoredAt(3, "p3", 0, 0.7),
			scoredAt(4, "p4", 0, 0.6),
			scoredAt(5, "p5", 0, 0.5),
		}, nil, nil, nil, 5)
		assert.Equal(t, []int64{1, 2, 3, 4}, ids(pool.selectFallback()))
	})

	t.Run("backfills from night when regular runs out", func(t *testing.T) {
		pool := newCandidatePool([]types.ScoredQuest{
			scoredAt(1, "p1", 0, 0.9),
			nightAt(2, "p2", 0, 0.8),
			nightAt(3, "p3", 0, 0.7),
			nightAt(4, "p4", 0, 0.6),
			nightAt(5, "p5", 0, 0.5),
		}, nil, nil, nil, 5)
		assert.Equal(t, []int64{1, 2, 3, 4}, ids(pool.selectFallback()))
	})

	t.Run("never repeats a place", func(t *testing.T) {
		pool := newCandidatePool([]types.ScoredQuest{
			scoredAt(1, "same", 0, 0.9),
			scoredAt(2, "same", 0, 0.8),
			scoredAt(3, "p3", 0, 0.7),
			nightAt(4, "same", 0, 0.6),
		}, nil, nil, nil, 5)
		assert.Equal(t, []int64{1, 3}, ids(pool.selectFallback()))
	})

	t.Run("quests without a place do not collide", func(t *testing.T) {
		pool := newCandidatePool([]types.ScoredQuest{
			scoredAt(1, "", 0, 0.9),
			scoredAt(2, "", 0, 0.8),
		}, nil, nil, nil, 5)
		assert.Equal(t, []int64{1, 2}, ids(pool.selectFallback()))
	})

	t.Run("must-visit is kept even when far away", func(t *testing.T) {
		mv := scoredAt(9, "p9", 4.5, 0)
		pool := anchoredPool([]types.ScoredQuest{
			scoredAt(1, "p1", 0.1, 0.9),
			scoredAt(2, "p2", 0.2, 0.9),
			scoredAt(3, "p3", 0.3, 0.9),
			scoredAt(4, "p4", 0.4, 0.9),
			scoredAt(5, "p5", 0.5, 0.9),
		}, &mv, 5)

		got := pool.selectFallback()
		require.Len(t, got, 4)
		count := 0
		for _, q := range got {
			if q.ID == 9 {
				count++
			}
		}
		assert.Equal(t, 1, count)
	})
}

func TestMergeRerank(t *testing.T) {
	regular := []types.ScoredQuest{
		scoredAt(1, "p1", 0.5, 0.9),
		scoredAt(2, "p2", 1.0, 0.9),
		scoredAt(3, "p3", 2.0, 0.9),
		scoredAt(4, "p4", 2.5, 0.9),
		scoredAt(5, "p5", 3.0, 0.9),
	}

	t.Run("keeps llm order", func(t *testing.T) {
		pool := anchoredPool(regular, nil, 5)
		picks := []types.ScoredQuest{pool.regular[3], pool.regular[0], pool.regular[2], pool.regular[1]}
		assert.Equal(t, []int64{4, 1, 3, 2}, ids(pool.mergeRerank(picks)))
	})

	t.Run("keeps a single night pick", func(t *testing.T) {
		pool := anchoredPool(append([]types.ScoredQuest{
			nightAt(6, "p6", 1, 0.5),
			nightAt(7, "p7", 1.5, 0.5),
		}, regular...), nil, 5)
		picks := []types.ScoredQuest{pool.regular[0], pool.night[0], pool.regular[1], pool.night[1]}

		got := pool.mergeRerank(picks)
		assert.Equal(t, []int64{1, 2, 6, 3}, ids(got))
	})

	t.Run("slots missing must-visit by distance", func(t *testing.T) {
		mv := scoredAt(9, "p9", 1.5, 0)
		pool := anchoredPool(regular, &mv, 5)
		picks := []types.ScoredQuest{scoredAt(1, "p1", 0.5, 0.9), scoredAt(2, "p2", 1.0, 0.9), scoredAt(3, "p3", 2.0, 0.9), scoredAt(4, "p4", 2.5, 0.9)}
		for i := range picks {
			picks[i] = pool.withAnchorDistance(picks[i])
		}

		assert.Equal(t, []int64{1, 2, 9, 3}, ids(pool.mergeRerank(picks)))
	})

	t.Run("drops picks sharing the must-visit place", func(t *testing.T) {
		mv := scoredAt(9, "p1", 0.1, 0)
		pool := anchoredPool(regular[1:], &mv, 5)
		picks := []types.ScoredQuest{scoredAt(1, "p1", 0.5, 0.9), pool.regular[1], pool.regular[2], pool.regular[3]}

		got := pool.mergeRerank(picks)
		require.Len(t, got, 4)
		assert.Equal(t, int64(9), got[0].ID)
		assert.NotContains(t, ids(got), int64(1))
	})

	t.Run("backfills short picks", func(t *testing.T) {
		pool := anchoredPool(regular, nil, 5)
		assert.Equal(t, []int64{3, 1, 2, 4}, ids(pool.mergeRerank([]types.ScoredQuest{pool.regular[2]})))
	})
}
