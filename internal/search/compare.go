package search

import (
	"context"
	"slices"
	"time"

	"locations-server/internal/location"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

// StrategyTiming is the total time one strategy spent on a query group.
type StrategyTiming struct {
	Strategy Strategy      `json:"strategy"`
	Name     string        `json:"name"`
	Total    time.Duration `json:"total"`
	Average  time.Duration `json:"average"`
}

// Mismatch records a query for which a strategy returned a different id set
// than the reference strategy.
type Mismatch struct {
	Query    string  `json:"query"`
	Strategy string  `json:"strategy"`
	Missing  []int64 `json:"missing"`
	Extra    []int64 `json:"extra"`
}

type GroupReport struct {
	Group      string           `json:"group"`
	Queries    int              `json:"queries"`
	Timings    []StrategyTiming `json:"timings"`
	Mismatches []Mismatch       `json:"mismatches"`
}

// Compare runs every query of every group through each strategy runs times
// and reports timings and result-set differences against the first
// strategy. Groups are processed in name order.
func Compare(ctx context.Context, engine *Engine, groups map[string][]string, runs int) ([]GroupReport, error) {
	if runs < 1 {
		runs = 1
	}

	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	slices.Sort(names)

	reports := make([]GroupReport, 0, len(names))
	for _, name := range names {
		queries := groups[name]
		report := GroupReport{Group: name, Queries: len(queries)}

		reference := make([]*roaring64.Bitmap, len(queries))
		for _, strategy := range Strategies {
			var total time.Duration
			for qi, q := range queries {
				var places []location.Place
				for range runs {
					start := time.Now()
					res, err := engine.Search(ctx, Request{Query: q, Strategy: strategy})
					if err != nil {
						return nil, err
					}
					total += time.Since(start)
					places = res
				}

				ids := idSet(places)
				if reference[qi] == nil {
					reference[qi] = ids
					continue
				}
				if m, ok := diff(q, strategy, reference[qi], ids); !ok {
					report.Mismatches = append(report.Mismatches, m)
				}
			}

			timing := StrategyTiming{Strategy: strategy, Name: strategy.String(), Total: total}
			if calls := len(queries) * runs; calls > 0 {
				timing.Average = total / time.Duration(calls)
			}
			report.Timings = append(report.Timings, timing)
		}
		reports = append(reports, report)
	}
	return reports, nil
}

func idSet(places []location.Place) *roaring64.Bitmap {
	bm := roaring64.New()
	for _, p := range places {
		bm.Add(uint64(p.ID))
	}
	return bm
}

func diff(query string, strategy Strategy, want, got *roaring64.Bitmap) (Mismatch, bool) {
	xor := want.Clone()
	xor.Xor(got)
	if xor.IsEmpty() {
		return Mismatch{}, true
	}

	m := Mismatch{Query: query, Strategy: strategy.String()}
	it := xor.Iterator()
	for it.HasNext() {
		id := it.Next()
		if want.Contains(id) {
			m.Missing = append(m.Missing, int64(id))
		} else {
			m.Extra = append(m.Extra, int64(id))
		}
	}
	return m, false
}
