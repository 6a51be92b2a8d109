package location

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"
)

// MemoryStore is an in-process Database and Store. InTx snapshots the data
// and restores it when the callback fails, which gives the same
// all-or-nothing outcome as a Postgres transaction.
type MemoryStore struct {
	txMu sync.Mutex
	mu   sync.RWMutex
	data memoryData
}

type memorySeq struct {
	county, region, municipality, settlementType, settlement, place int64
}

type memoryData struct {
	seq             memorySeq
	counties        map[int64]County
	regions         map[int64]Region
	municipalities  map[int64]Municipality
	settlementTypes map[int64]SettlementType
	settlements     map[int64]Settlement
	places          []Place
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: emptyMemoryData(memorySeq{})}
}

func emptyMemoryData(seq memorySeq) memoryData {
	return memoryData{
		seq:             seq,
		counties:        make(map[int64]County),
		regions:         make(map[int64]Region),
		municipalities:  make(map[int64]Municipality),
		settlementTypes: make(map[int64]SettlementType),
		settlements:     make(map[int64]Settlement),
	}
}

func (d memoryData) clone() memoryData {
	return memoryData{
		seq:             d.seq,
		counties:        maps.Clone(d.counties),
		regions:         maps.Clone(d.regions),
		municipalities:  maps.Clone(d.municipalities),
		settlementTypes: maps.Clone(d.settlementTypes),
		settlements:     maps.Clone(d.settlements),
		places:          slices.Clone(d.places),
	}
}

func (m *MemoryStore) InTx(ctx context.Context, fn func(Store) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.RLock()
	snapshot := m.data.clone()
	m.mu.RUnlock()

	if err := fn(m); err != nil {
		m.mu.Lock()
		m.data = snapshot
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *MemoryStore) Reader() Reader {
	return m
}

func (m *MemoryStore) CreateCounty(ctx context.Context, name string) (*County, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data.seq.county++
	county := County{ID: m.data.seq.county, Name: name}
	m.data.counties[county.ID] = county
	return &county, nil
}

func (m *MemoryStore) CreateRegionWithPlace(ctx context.Context, name string, countyID int64) (*Region, *Place, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.data.counties[countyID]; !ok {
		return nil, nil, fmt.Errorf("unknown county %d", countyID)
	}

	m.data.seq.region++
	region := Region{ID: m.data.seq.region, Name: name, CountyID: countyID}
	m.data.regions[region.ID] = region

	place := m.insertPlace(Place{Name: name, RegionID: region.ID})
	return &region, &place, nil
}

func (m *MemoryStore) CreateMunicipalityWithPlace(ctx context.Context, name string, regionID int64) (*Municipality, *Place, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.data.regions[regionID]; !ok {
		return nil, nil, fmt.Errorf("unknown region %d", regionID)
	}

	m.data.seq.municipality++
	municipality := Municipality{ID: m.data.seq.municipality, Name: name, RegionID: regionID}
	m.data.municipalities[municipality.ID] = municipality

	municipalityID := municipality.ID
	place := m.insertPlace(Place{Name: name, RegionID: regionID, MunicipalityID: &municipalityID})
	return &municipality, &place, nil
}

func (m *MemoryStore) CreateSettlementType(ctx context.Context, name string) (*SettlementType, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data.seq.settlementType++
	settlementType := SettlementType{ID: m.data.seq.settlementType, Name: name}
	m.data.settlementTypes[settlementType.ID] = settlementType
	return &settlementType, nil
}

func (m *MemoryStore) CreateSettlementWithPlace(ctx context.Context, s NewSettlement) (*Settlement, *Place, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	municipality, ok := m.data.municipalities[s.MunicipalityID]
	if !ok {
		return nil, nil, fmt.Errorf("unknown municipality %d", s.MunicipalityID)
	}
	if _, ok := m.data.settlementTypes[s.TypeID]; !ok {
		return nil, nil, fmt.Errorf("unknown settlement type %d", s.TypeID)
	}
	if s.Population < 0 {
		return nil, nil, fmt.Errorf("negative population %d", s.Population)
	}

	m.data.seq.settlement++
	settlement := Settlement{
		ID:             m.data.seq.settlement,
		Name:           s.Name,
		MunicipalityID: s.MunicipalityID,
		TypeID:         s.TypeID,
		Population:     s.Population,
		Latitude:       s.Latitude,
		Longitude:      s.Longitude,
		OKTMO:          s.OKTMO,
	}
	m.data.settlements[settlement.ID] = settlement

	municipalityID, typeID, settlementID := s.MunicipalityID, s.TypeID, settlement.ID
	place := m.insertPlace(Place{
		Name:           s.Name,
		Population:     s.Population,
		RegionID:       municipality.RegionID,
		MunicipalityID: &municipalityID,
		TypeID:         &typeID,
		SettlementID:   &settlementID,
	})
	return &settlement, &place, nil
}

// insertPlace stores the id columns and returns the resolved view. Callers
// hold m.mu.
func (m *MemoryStore) insertPlace(place Place) Place {
	m.data.seq.place++
	place.ID = m.data.seq.place
	m.data.places = append(m.data.places, place)
	return m.resolve(place)
}

func (m *MemoryStore) resolve(place Place) Place {
	place.Region = Ref{ID: place.RegionID, Name: m.data.regions[place.RegionID].Name}
	place.Municipality = nil
	place.Type = nil
	place.Settlement = nil

	if place.MunicipalityID != nil {
		place.Municipality = &Ref{ID: *place.MunicipalityID, Name: m.data.municipalities[*place.MunicipalityID].Name}
	}
	if place.TypeID != nil {
		place.Type = &Ref{ID: *place.TypeID, Name: m.data.settlementTypes[*place.TypeID].Name}
	}
	if place.SettlementID != nil {
		s := m.data.settlements[*place.SettlementID]
		place.Settlement = &SettlementInfo{
			ID:         s.ID,
			Name:       s.Name,
			Population: s.Population,
			Latitude:   s.Latitude,
			Longitude:  s.Longitude,
			OKTMO:      s.OKTMO,
		}
	}
	return place
}

func (m *MemoryStore) FindCounty(ctx context.Context, name string) (*County, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, id := range sortedKeys(m.data.counties) {
		if c := m.data.counties[id]; c.Name == name {
			return &c, nil
		}
	}
	return nil, nil
}

func (m *MemoryStore) FindRegion(ctx context.Context, name string) (*Region, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, id := range sortedKeys(m.data.regions) {
		if r := m.data.regions[id]; r.Name == name {
			return &r, nil
		}
	}
	return nil, nil
}

func (m *MemoryStore) FindMunicipality(ctx context.Context, name string, regionID *int64) (*Municipality, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, id := range sortedKeys(m.data.municipalities) {
		mun := m.data.municipalities[id]
		if mun.Name != name {
			continue
		}
		if regionID != nil && mun.RegionID != *regionID {
			continue
		}
		return &mun, nil
	}
	return nil, nil
}

func (m *MemoryStore) FindSettlementType(ctx context.Context, name string) (*SettlementType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, id := range sortedKeys(m.data.settlementTypes) {
		if t := m.data.settlementTypes[id]; t.Name == name {
			return &t, nil
		}
	}
	return nil, nil
}

func (m *MemoryStore) RegionPlace(ctx context.Context, regionID int64) (*Place, error) {
	return m.firstPlace(func(p Place) bool {
		return p.RegionID == regionID && p.MunicipalityID == nil
	}), nil
}

func (m *MemoryStore) MunicipalityPlace(ctx context.Context, municipalityID int64) (*Place, error) {
	return m.firstPlace(func(p Place) bool {
		return p.MunicipalityID != nil && *p.MunicipalityID == municipalityID && p.SettlementID == nil
	}), nil
}

func (m *MemoryStore) firstPlace(match func(Place) bool) *Place {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, p := range m.data.places {
		if match(p) {
			resolved := m.resolve(p)
			return &resolved
		}
	}
	return nil
}

func (m *MemoryStore) SetPlacePopulation(ctx context.Context, placeID, population int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.data.places {
		if m.data.places[i].ID == placeID {
			m.data.places[i].Population = population
			return nil
		}
	}
	return fmt.Errorf("place %d not found", placeID)
}

func (m *MemoryStore) DeleteAll(ctx context.Context) (*DeleteReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	report := &DeleteReport{
		Places:          int64(len(m.data.places)),
		Settlements:     int64(len(m.data.settlements)),
		SettlementTypes: int64(len(m.data.settlementTypes)),
		Municipalities:  int64(len(m.data.municipalities)),
		Regions:         int64(len(m.data.regions)),
		Counties:        int64(len(m.data.counties)),
	}
	m.data = emptyMemoryData(m.data.seq)
	return report, nil
}

func (m *MemoryStore) CountPlaces(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.data.places)), nil
}

func (m *MemoryStore) PlacesByFilter(ctx context.Context, filter PlaceFilter) ([]Place, error) {
	places := m.collect(func(p Place) bool {
		if !HasPrefixFold(p.Name, filter.Prefix) {
			return false
		}
		if filter.Level != "" && p.Level() != filter.Level {
			return false
		}
		if filter.RegionContains != "" && !ContainsFold(p.Region.Name, filter.RegionContains) {
			return false
		}
		if filter.MunicipalityContains != "" {
			if p.Municipality == nil || !ContainsFold(p.Municipality.Name, filter.MunicipalityContains) {
				return false
			}
		}
		return true
	})
	sortByPopulation(places)
	return limitPlaces(places, filter.Limit), nil
}

func (m *MemoryStore) LevelMatches(ctx context.Context, level Level, prefix string, limit int) ([]Place, error) {
	switch level {
	case LevelRegion, LevelMunicipality, LevelSettlement:
	default:
		return nil, fmt.Errorf("unknown level %q", level)
	}

	places := m.collect(func(p Place) bool {
		if p.Level() != level {
			return false
		}
		var name string
		switch level {
		case LevelRegion:
			name = p.Region.Name
		case LevelMunicipality:
			name = p.Municipality.Name
		default:
			name = p.Settlement.Name
		}
		return HasPrefixFold(name, prefix)
	})
	sortByPopulation(places)
	return limitPlaces(places, limit), nil
}

func (m *MemoryStore) RankedPlaces(ctx context.Context, query string, limit int) ([]Place, error) {
	places := m.collect(func(p Place) bool {
		return HasPrefixFold(deepestName(p), query)
	})

	type flags struct{ all, regionMunicipality, region bool }
	ranked := make(map[int64]flags, len(places))
	for _, p := range places {
		inRegion := ContainsFold(p.Region.Name, query)
		inMunicipality := p.Municipality != nil && ContainsFold(p.Municipality.Name, query)
		inSettlement := p.Settlement != nil && ContainsFold(p.Settlement.Name, query)
		ranked[p.ID] = flags{
			all:                inRegion && inMunicipality && inSettlement,
			regionMunicipality: inRegion && inMunicipality,
			region:             inRegion,
		}
	}

	sort.SliceStable(places, func(i, j int) bool {
		a, b := ranked[places[i].ID], ranked[places[j].ID]
		if a.all != b.all {
			return a.all
		}
		if a.regionMunicipality != b.regionMunicipality {
			return a.regionMunicipality
		}
		if a.region != b.region {
			return a.region
		}
		if places[i].Population != places[j].Population {
			return places[i].Population > places[j].Population
		}
		return places[i].ID < places[j].ID
	})
	return limitPlaces(places, limit), nil
}

func (m *MemoryStore) collect(match func(Place) bool) []Place {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var places []Place
	for _, p := range m.data.places {
		resolved := m.resolve(p)
		if match(resolved) {
			places = append(places, resolved)
		}
	}
	return places
}

func deepestName(p Place) string {
	switch {
	case p.Settlement != nil:
		return p.Settlement.Name
	case p.Municipality != nil:
		return p.Municipality.Name
	default:
		return p.Region.Name
	}
}

func sortByPopulation(places []Place) {
	sort.SliceStable(places, func(i, j int) bool {
		if places[i].Population != places[j].Population {
			return places[i].Population > places[j].Population
		}
		return places[i].ID < places[j].ID
	})
}

func limitPlaces(places []Place, limit int) []Place {
	if limit > 0 && len(places) > limit {
		return places[:limit]
	}
	return places
}

func sortedKeys[V any](m map[int64]V) []int64 {
	return slices.Sorted(maps.Keys(m))
}
