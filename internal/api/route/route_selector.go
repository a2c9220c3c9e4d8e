package route

import (
	"math"
	"sort"

	generativeAI "github.com/FACorreiaa/go-seoul-quest-api/internal/api/generative_ai"
	"github.com/FACorreiaa/go-seoul-quest-api/internal/types"
)

const (
	routeStops   = generativeAI.RouteStops
	regularSlots = routeStops - 1
	zoneCycles   = 2

	nearZoneRatio = 0.33
	midZoneRatio  = 0.66
)

// zones buckets the sorted regular quests by their distance from the
// anchor relative to the search radius. Order inside a zone is kept.
func (p *candidatePool) zones() [3][]types.ScoredQuest {
	var z [3][]types.ScoredQuest
	for _, q := range p.regular {
		ratio := math.Inf(1)
		if p.radiusKm > 0 {
			ratio = distanceFromStart(q) / p.radiusKm
		}
		switch {
		case ratio <= nearZoneRatio:
			z[0] = append(z[0], q)
		case ratio <= midZoneRatio:
			z[1] = append(z[1], q)
		default:
			z[2] = append(z[2], q)
		}
	}
	return z
}

// selectFallback builds the itinerary without the LLM: three regular
// quests spread over the distance zones, one night-view quest last,
// then backfill until the route is full or candidates run out.
func (p *candidatePool) selectFallback() []types.ScoredQuest {
	it := newItinerary()
	if p.mustVisit != nil {
		it.add(*p.mustVisit)
	}

	if p.anchored && len(p.regular) > regularSlots {
		zones := p.zones()
		var next [3]int
		for cycle := 0; cycle < zoneCycles && it.len() < regularSlots; cycle++ {
			for z := range zones {
				if it.len() >= regularSlots {
					break
				}
				for next[z] < len(zones[z]) {
					q := zones[z][next[z]]
					next[z]++
					if it.add(q) {
						break
					}
				}
			}
		}
		it.fill(p.regular, regularSlots)
	} else {
		head := p.regular
		if len(head) > regularSlots*2 {
			head = head[:regularSlots*2]
		}
		it.fill(head, regularSlots)
	}

	for _, q := range p.night {
		if it.add(q) {
			break
		}
	}

	it.fill(p.regular, routeStops)
	it.fill(p.night, routeStops)
	return p.orderFallback(it.quests)
}

// orderFallback puts the regular picks back in sorted-candidate order
// and keeps night-view picks at the end.
func (p *candidatePool) orderFallback(picks []types.ScoredQuest) []types.ScoredQuest {
	var regular, night []types.ScoredQuest
	for _, q := range picks {
		if p.rank(q.ID) < len(p.regular) {
			regular = append(regular, q)
		} else {
			night = append(night, q)
		}
	}
	sort.SliceStable(regular, func(i, j int) bool {
		return p.rank(regular[i].ID) < p.rank(regular[j].ID)
	})
	return append(regular, night...)
}

// mergeRerank turns the LLM's picks into the final itinerary. At most one
// night-view pick is kept and it goes last; the must-visit quest is
// slotted in by distance when the LLM left it out.
func (p *candidatePool) mergeRerank(picks []types.ScoredQuest) []types.ScoredQuest {
	it := newItinerary()
	var nightPick *types.ScoredQuest

	for _, q := range picks {
		if p.mustVisit != nil && !p.isMustVisit(q) && placeKey(q) == placeKey(*p.mustVisit) {
			continue
		}
		if !p.isMustVisit(q) && IsNightView(q.Quest) {
			if nightPick == nil {
				q.IsNightView = true
				nightPick = &q
			}
			continue
		}
		it.add(q)
	}

	if p.mustVisit != nil && !it.has(*p.mustVisit) {
		mv := *p.mustVisit
		inserted := false
		for i, q := range it.quests {
			if distanceFromStart(q) > distanceFromStart(mv) {
				inserted = it.insertAt(i, mv)
				break
			}
		}
		if !inserted {
			it.add(mv)
		}
	}

	if nightPick != nil {
		if it.len() < routeStops {
			it.add(*nightPick)
		}
	} else {
		it.fill(p.regular, routeStops)
	}

	if it.len() < routeStops {
		it.fill(p.regular, routeStops)
		it.fill(p.night, routeStops)
	}
	return p.truncate(it.quests, routeStops)
}

// truncate cuts qs to n entries without ever dropping the must-visit quest.
func (p *candidatePool) truncate(qs []types.ScoredQuest, n int) []types.ScoredQuest {
	if len(qs) <= n {
		return qs
	}
	reserve := 0
	if p.mustVisit != nil {
		for _, q := range qs {
			if p.isMustVisit(q) {
				reserve = 1
				break
			}
		}
	}
	out := make([]types.ScoredQuest, 0, n)
	for _, q := range qs {
		if p.isMustVisit(q) {
			out = append(out, q)
			reserve = 0
			continue
		}
		if len(out)+reserve < n {
			out = append(out, q)
		}
	}
	return out
}
