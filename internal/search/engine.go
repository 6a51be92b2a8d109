package search

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"locations-server/internal/location"
	"locations-server/internal/shared/metrics"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"golang.org/x/text/unicode/norm"
)

const defaultCandidateLimit = 1000

type Options struct {
	// CandidateLimit bounds the prefix matches RankSort ranks in process.
	CandidateLimit int
}

type Request struct {
	Query string
	// MaxResults of zero or less means DefaultMaxResults(Query).
	MaxResults int
	Strategy   Strategy
}

type Engine struct {
	reader location.Reader
	opts   Options
	logger *slog.Logger
}

func NewEngine(reader location.Reader, opts Options, logger *slog.Logger) *Engine {
	if opts.CandidateLimit <= 0 {
		opts.CandidateLimit = defaultCandidateLimit
	}
	return &Engine{reader: reader, opts: opts, logger: logger}
}

// Search answers req with at most MaxResults rows, free of duplicate ids,
// whose names all start with the query (case-insensitive). An invalid query
// yields an empty slice and a nil error.
func (e *Engine) Search(ctx context.Context, req Request) ([]location.Place, error) {
	start := time.Now()
	query := norm.NFC.String(req.Query)
	logger := e.logger.With(
		"component", "search_engine",
		"operation", "search",
		"strategy", req.Strategy.String(),
	)

	if !ValidQuery(query) {
		logger.Debug("Rejected query", "runes", utf8.RuneCountInString(query))
		return []location.Place{}, nil
	}

	n := req.MaxResults
	if n <= 0 {
		n = DefaultMaxResults(query)
	}

	places, err := e.run(ctx, req.Strategy, query, n)
	if err != nil {
		logger.Error("Search failed", "error", err)
		return nil, err
	}
	if places == nil {
		places = []location.Place{}
	}

	elapsed := time.Since(start)
	metrics.ObserveSearch(int(req.Strategy), elapsed, len(places))
	logger.Debug("Search completed", "results", len(places), "max_results", n, "elapsed", elapsed)
	return places, nil
}

func (e *Engine) run(ctx context.Context, strategy Strategy, query string, n int) ([]location.Place, error) {
	switch strategy {
	case TieredUnion:
		return e.tieredUnion(ctx, query, n)
	case TruncateRefine4, TruncateRefine10:
		return e.truncateRefine(ctx, query, n, strategy.truncateThreshold())
	case JoinFilter:
		return e.joinFilter(ctx, query, n)
	case OuterJoinRank:
		return e.reader.RankedPlaces(ctx, query, n)
	case RankSort:
		return e.rankSort(ctx, query, n)
	}
	return nil, fmt.Errorf("unknown strategy %d", int(strategy))
}

// tieredUnion walks the tiers in priority order:
//
//	a. settlements whose region and municipality names contain the query
//	b. settlements whose region name contains the query
//	c. region rows
//	d. municipality rows
//	e. all settlements
//
// Every tier requires the row name to start with the query and is ordered
// by population. Tiers c to e together cover every prefix match, so when
// fewer than n rows exist the result holds all of them.
func (e *Engine) tieredUnion(ctx context.Context, query string, n int) ([]location.Place, error) {
	tiers := []location.PlaceFilter{
		{Prefix: query, Level: location.LevelSettlement, RegionContains: query, MunicipalityContains: query},
		{Prefix: query, Level: location.LevelSettlement, RegionContains: query},
		{Prefix: query, Level: location.LevelRegion},
		{Prefix: query, Level: location.LevelMunicipality},
		{Prefix: query, Level: location.LevelSettlement},
	}

	seen := roaring64.New()
	result := make([]location.Place, 0, n)
	for _, tier := range tiers {
		tier.Limit = n
		rows, err := e.reader.PlacesByFilter(ctx, tier)
		if err != nil {
			return nil, err
		}
		for _, p := range rows {
			if seen.Contains(uint64(p.ID)) {
				continue
			}
			seen.Add(uint64(p.ID))
			result = append(result, p)
			if len(result) == n {
				return result, nil
			}
		}
	}
	return result, nil
}

// truncateRefine searches on the first threshold runes asking for n+1 rows.
// Exactly n+1 rows means the short prefix was too broad and the full query
// is searched instead; otherwise the short result is complete and is
// narrowed to rows starting with the full query.
func (e *Engine) truncateRefine(ctx context.Context, query string, n, threshold int) ([]location.Place, error) {
	runes := []rune(query)
	if len(runes) <= threshold {
		return e.tieredUnion(ctx, query, n)
	}

	candidates, err := e.tieredUnion(ctx, string(runes[:threshold]), n+1)
	if err != nil {
		return nil, err
	}
	if len(candidates) == n+1 {
		return e.tieredUnion(ctx, query, n)
	}

	refined := candidates[:0]
	for _, p := range candidates {
		if location.HasPrefixFold(p.Name, query) {
			refined = append(refined, p)
		}
	}
	Rank(refined, query)
	return truncate(refined, n), nil
}

func (e *Engine) joinFilter(ctx context.Context, query string, n int) ([]location.Place, error) {
	result := make([]location.Place, 0, n)
	for _, level := range location.Levels {
		remaining := n - len(result)
		if remaining <= 0 {
			break
		}
		rows, err := e.reader.LevelMatches(ctx, level, query, remaining)
		if err != nil {
			return nil, err
		}
		result = append(result, rows...)
	}
	return result, nil
}

func (e *Engine) rankSort(ctx context.Context, query string, n int) ([]location.Place, error) {
	candidates, err := e.reader.PlacesByFilter(ctx, location.PlaceFilter{
		Prefix: query,
		Limit:  e.opts.CandidateLimit,
	})
	if err != nil {
		return nil, err
	}
	Rank(candidates, query)
	return truncate(candidates, n), nil
}

func truncate(places []location.Place, n int) []location.Place {
	if len(places) > n {
		return places[:n]
	}
	return places
}
