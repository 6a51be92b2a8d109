package ingest

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"locations-server/internal/location"
	"locations-server/internal/shared/metrics"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

const maxLineBytes = 1 << 20

type Options struct {
	// ScopeByParent keys municipalities by (region, name) instead of name
	// alone, so equally named municipalities in different regions stay apart.
	ScopeByParent bool
}

type Pipeline struct {
	opts   Options
	logger *slog.Logger
}

func NewPipeline(opts Options, logger *slog.Logger) *Pipeline {
	return &Pipeline{opts: opts, logger: logger}
}

type Result struct {
	RunID           uuid.UUID `json:"run_id"`
	Lines           int       `json:"lines"`
	Counties        int       `json:"counties"`
	Regions         int       `json:"regions"`
	Municipalities  int       `json:"municipalities"`
	SettlementTypes int       `json:"settlement_types"`
	Settlements     int       `json:"settlements"`
	Places          int64     `json:"places"`
}

// rollup is the running population total of one region or municipality
// Place row.
type rollup struct {
	placeID    int64
	population int64
}

type municipalityKey struct {
	regionID int64
	name     string
}

type municipalityEntry struct {
	municipality *location.Municipality
	total        *rollup
}

// batch holds the per-call memo maps. It is discarded when Ingest returns.
type batch struct {
	counties       map[string]int64
	regions        map[string]*location.Region
	municipalities map[municipalityKey]municipalityEntry
	types          map[string]int64
	// regionTotals is keyed by region id: a name-merged municipality may
	// belong to a region other than the one named on the line.
	regionTotals map[int64]*rollup
	rollups      []*rollup
}

func newBatch() *batch {
	return &batch{
		counties:       make(map[string]int64),
		regions:        make(map[string]*location.Region),
		municipalities: make(map[municipalityKey]municipalityEntry),
		types:          make(map[string]int64),
		regionTotals:   make(map[int64]*rollup),
	}
}

// Ingest loads one upload into store. The first line must match schema;
// every following non-blank line becomes a settlement. Region and
// municipality populations are written once, after all lines are read.
//
// Ingest stops at the first bad line. Rows created before it stay in store;
// run it inside Database.InTx to make the upload all-or-nothing.
func (p *Pipeline) Ingest(ctx context.Context, store location.Store, r io.Reader, schema Schema) (*Result, error) {
	result := &Result{RunID: uuid.New()}
	logger := p.logger.With(
		"component", "ingest",
		"operation", "ingest",
		"run_id", result.RunID,
		"schema", schema.Name,
	)

	header, lines, err := readLines(r)
	if err != nil {
		logger.Error("Failed to read upload", "error", err)
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if header != schema.Header() {
		logger.Warn("Header does not match schema", "header", header)
		return nil, &SchemaError{Schema: schema.Name, Expected: schema.Header(), Got: header}
	}

	total := len(lines)
	logger.Info("Starting ingest", "lines", total, "scope_by_parent", p.opts.ScopeByParent)

	defer func() { metrics.IngestedLines(result.Lines) }()

	b := newBatch()
	progress := newProgress(total, logger)

	for i, line := range lines {
		progress.step(i)

		if strings.TrimSpace(line) == "" {
			continue
		}

		lineNumber := i + 2
		fields, err := splitFields(line)
		if err != nil {
			return nil, &RecordError{Line: lineNumber, Content: line, Reason: "malformed line", Err: err}
		}
		rec, reason, err := schema.parse(fields)
		if err != nil {
			logger.Warn("Invalid line", "line", lineNumber, "reason", reason)
			return nil, &RecordError{Line: lineNumber, Content: line, Reason: reason, Err: err}
		}

		if err := p.apply(ctx, store, b, rec, result); err != nil {
			logger.Error("Failed to store line", "line", lineNumber, "error", err)
			return nil, fmt.Errorf("line %d: %w", lineNumber, err)
		}
		result.Lines++
	}

	for _, acc := range b.rollups {
		if err := store.SetPlacePopulation(ctx, acc.placeID, acc.population); err != nil {
			logger.Error("Failed to write rollup", "place_id", acc.placeID, "error", err)
			return nil, fmt.Errorf("failed to write population rollup: %w", err)
		}
	}

	places, err := store.CountPlaces(ctx)
	if err != nil {
		return nil, err
	}
	result.Places = places

	logger.Info("Ingest completed",
		"lines", result.Lines,
		"regions", result.Regions,
		"municipalities", result.Municipalities,
		"settlements", result.Settlements,
		"places", result.Places,
		"elapsed", progress.elapsed(),
	)
	return result, nil
}

func (p *Pipeline) apply(ctx context.Context, store location.Store, b *batch, rec record, result *Result) error {
	countyID, ok := b.counties[rec.county]
	if !ok {
		county, created, err := location.FindOrCreateCounty(ctx, store, rec.county)
		if err != nil {
			return err
		}
		if created {
			result.Counties++
		}
		countyID = county.ID
		b.counties[rec.county] = countyID
	}

	region, ok := b.regions[rec.region]
	if !ok {
		found, place, created, err := location.FindOrCreateRegion(ctx, store, rec.region, countyID)
		if err != nil {
			return err
		}
		if created {
			result.Regions++
		}
		region = found
		b.regions[rec.region] = region
		if _, tracked := b.regionTotals[region.ID]; !tracked {
			b.regionTotals[region.ID] = b.track(place)
		}
	}

	key := municipalityKey{name: rec.municipality}
	if p.opts.ScopeByParent {
		key.regionID = region.ID
	}
	municipalityMemo, ok := b.municipalities[key]
	if !ok {
		municipality, place, created, err := location.FindOrCreateMunicipality(
			ctx, store, rec.municipality, region.ID, p.opts.ScopeByParent)
		if err != nil {
			return err
		}
		if created {
			result.Municipalities++
		}
		municipalityMemo = municipalityEntry{municipality: municipality, total: b.track(place)}
		b.municipalities[key] = municipalityMemo
	}

	typeID, ok := b.types[rec.settlementType]
	if !ok {
		settlementType, created, err := location.FindOrCreateSettlementType(ctx, store, rec.settlementType)
		if err != nil {
			return err
		}
		if created {
			result.SettlementTypes++
		}
		typeID = settlementType.ID
		b.types[rec.settlementType] = typeID
	}

	_, _, err := store.CreateSettlementWithPlace(ctx, location.NewSettlement{
		MunicipalityID: municipalityMemo.municipality.ID,
		TypeID:         typeID,
		Name:           rec.settlement,
		Population:     rec.population,
		Latitude:       rec.latitude,
		Longitude:      rec.longitude,
		OKTMO:          rec.oktmo,
	})
	if err != nil {
		return err
	}
	result.Settlements++

	regionTotal, err := b.regionTotal(ctx, store, municipalityMemo.municipality.RegionID)
	if err != nil {
		return err
	}
	regionTotal.population += rec.population
	municipalityMemo.total.population += rec.population
	return nil
}

// regionTotal returns the running total of the region that owns a
// municipality, loading its Place row when no line of this batch named it.
func (b *batch) regionTotal(ctx context.Context, store location.Store, regionID int64) (*rollup, error) {
	if total, ok := b.regionTotals[regionID]; ok {
		return total, nil
	}
	place, err := store.RegionPlace(ctx, regionID)
	if err != nil {
		return nil, err
	}
	if place == nil {
		return nil, fmt.Errorf("region %d has no place row", regionID)
	}
	total := b.track(place)
	b.regionTotals[regionID] = total
	return total, nil
}

// track starts a running total seeded with the row's current population, so
// appending to existing data keeps earlier settlements in the rollup.
func (b *batch) track(place *location.Place) *rollup {
	total := &rollup{placeID: place.ID, population: place.Population}
	b.rollups = append(b.rollups, total)
	return total
}

// readLines returns the trimmed header (UTF-8 BOM removed) and the raw data
// lines that follow it.
func readLines(r io.Reader) (string, []string, error) {
	br := stripUTF8BOM(bufio.NewReader(r))
	scanner := bufio.NewScanner(br)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", nil, err
		}
		return "", nil, nil
	}
	header := strings.TrimSpace(scanner.Text())

	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return "", nil, err
	}
	return header, lines, nil
}

func stripUTF8BOM(r *bufio.Reader) *bufio.Reader {
	b, err := r.Peek(3)
	if err == nil && len(b) == 3 && b[0] == 0xEF && b[1] == 0xBB && b[2] == 0xBF {
		_, _ = r.Discard(3)
	}
	return r
}

// splitFields parses one comma separated line. Quoted fields may contain
// commas. Every field is trimmed and NFC normalised.
func splitFields(line string) ([]string, error) {
	cr := csv.NewReader(strings.NewReader(line))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	fields, err := cr.Read()
	if err != nil {
		return nil, err
	}
	for i := range fields {
		fields[i] = norm.NFC.String(strings.TrimSpace(fields[i]))
	}
	return fields, nil
}

// progress logs at 5% steps with elapsed time, step time and an ETA.
type progress struct {
	notify int
	start  time.Time
	last   time.Time
	logger *slog.Logger
}

func newProgress(total int, logger *slog.Logger) *progress {
	now := time.Now()
	return &progress{notify: total / 20, start: now, last: now, logger: logger}
}

func (p *progress) step(i int) {
	if p.notify == 0 || i == 0 || i%p.notify != 0 {
		return
	}
	percent := i / p.notify
	now := time.Now()
	step := now.Sub(p.last)
	remaining := max(20-percent, 0)
	p.logger.Info("Ingest progress",
		"percent", min(percent*5, 100),
		"elapsed", now.Sub(p.start),
		"step", step,
		"eta", step*time.Duration(remaining),
	)
	p.last = now
}

func (p *progress) elapsed() time.Duration {
	return time.Since(p.start)
}
