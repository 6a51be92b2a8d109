package search

import (
	"sort"
	"strings"

	"locations-server/internal/location"
)

// Relevance scores a row for query:
//
//	region-level row                               20
//	region name contains query                     50
//	  ... and municipality name contains query    +20
//	anything else                                  10
//
// Matching is case-insensitive substring matching.
func Relevance(p location.Place, query string) int {
	return relevance(p, location.Fold(query))
}

func relevance(p location.Place, folded string) int {
	if p.Municipality == nil {
		return 20
	}
	if !strings.Contains(location.Fold(p.Region.Name), folded) {
		return 10
	}
	score := 50
	if strings.Contains(location.Fold(p.Municipality.Name), folded) {
		score += 20
	}
	return score
}

// Rank orders places by (relevance, population) descending with id as the
// final tie-break.
func Rank(places []location.Place, query string) {
	folded := location.Fold(query)
	scores := make(map[int64]int, len(places))
	for _, p := range places {
		scores[p.ID] = relevance(p, folded)
	}

	sort.SliceStable(places, func(i, j int) bool {
		a, b := places[i], places[j]
		if scores[a.ID] != scores[b.ID] {
			return scores[a.ID] > scores[b.ID]
		}
		if a.Population != b.Population {
			return a.Population > b.Population
		}
		return a.ID < b.ID
	})
}
