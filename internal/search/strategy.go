package search

import "fmt"

// Strategy selects the algorithm used to answer a query. The numeric codes
// are part of the public API (the strategy query parameter).
type Strategy int

const (
	// TieredUnion collects candidates tier by tier, preferring rows whose
	// ancestors also match, and stops as soon as the cap is reached.
	TieredUnion Strategy = iota
	// TruncateRefine4 searches on the first 4 runes of longer queries and
	// filters the result down to the full query.
	TruncateRefine4
	// TruncateRefine10 is TruncateRefine4 with a 10 rune threshold.
	TruncateRefine10
	// JoinFilter matches each level on its own name and concatenates the
	// levels. It is kept as a performance baseline.
	JoinFilter
	// OuterJoinRank lets the store rank in one query by ancestor match and
	// population.
	OuterJoinRank
	// RankSort fetches prefix candidates and ranks them in process by
	// relevance and population.
	RankSort
)

// Strategies lists every strategy in code order.
var Strategies = []Strategy{TieredUnion, TruncateRefine4, TruncateRefine10, JoinFilter, OuterJoinRank, RankSort}

func ParseStrategy(code int) (Strategy, error) {
	if code < int(TieredUnion) || code > int(RankSort) {
		return 0, fmt.Errorf("unknown strategy %d", code)
	}
	return Strategy(code), nil
}

func (s Strategy) String() string {
	switch s {
	case TieredUnion:
		return "tiered_union"
	case TruncateRefine4:
		return "truncate_refine_4"
	case TruncateRefine10:
		return "truncate_refine_10"
	case JoinFilter:
		return "join_filter"
	case OuterJoinRank:
		return "outer_join_rank"
	case RankSort:
		return "rank_sort"
	}
	return fmt.Sprintf("strategy_%d", int(s))
}

func (s Strategy) truncateThreshold() int {
	switch s {
	case TruncateRefine4:
		return 4
	case TruncateRefine10:
		return 10
	}
	return 0
}
