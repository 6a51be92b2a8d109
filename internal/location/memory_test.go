package location

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type hierarchy struct {
	county       *County
	region       *Region
	municipality *Municipality
	cityType     *SettlementType
}

func seedHierarchy(t *testing.T, s Store, regionName, municipalityName string) hierarchy {
	t.Helper()
	ctx := context.Background()

	county, _, err := FindOrCreateCounty(ctx, s, "CountyA")
	require.NoError(t, err)
	region, _, _, err := FindOrCreateRegion(ctx, s, regionName, county.ID)
	require.NoError(t, err)
	municipality, _, _, err := FindOrCreateMunicipality(ctx, s, municipalityName, region.ID, true)
	require.NoError(t, err)
	cityType, _, err := FindOrCreateSettlementType(ctx, s, "city")
	require.NoError(t, err)

	return hierarchy{county: county, region: region, municipality: municipality, cityType: cityType}
}

func addSettlement(t *testing.T, s Store, h hierarchy, name string, population int64) *Place {
	t.Helper()
	_, place, err := s.CreateSettlementWithPlace(context.Background(), NewSettlement{
		MunicipalityID: h.municipality.ID,
		TypeID:         h.cityType.ID,
		Name:           name,
		Population:     population,
	})
	require.NoError(t, err)
	return place
}

func TestMemoryStore_CreateWithPlace(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	h := seedHierarchy(t, store, "RegionA", "MunA")

	regionPlace, err := store.RegionPlace(ctx, h.region.ID)
	require.NoError(t, err)
	require.NotNil(t, regionPlace)
	assert.Equal(t, LevelRegion, regionPlace.Level())
	assert.Equal(t, "RegionA", regionPlace.Name)
	assert.Nil(t, regionPlace.Municipality)

	municipalityPlace, err := store.MunicipalityPlace(ctx, h.municipality.ID)
	require.NoError(t, err)
	require.NotNil(t, municipalityPlace)
	assert.Equal(t, LevelMunicipality, municipalityPlace.Level())
	assert.Equal(t, h.region.ID, municipalityPlace.RegionID)

	place := addSettlement(t, store, h, "TownA", 120)
	assert.Equal(t, LevelSettlement, place.Level())
	assert.Equal(t, int64(120), place.Population)
	assert.Equal(t, h.region.ID, place.RegionID)
	assert.Equal(t, "RegionA", place.Region.Name)
	require.NotNil(t, place.Municipality)
	assert.Equal(t, "MunA", place.Municipality.Name)
	require.NotNil(t, place.Type)
	assert.Equal(t, "city", place.Type.Name)
	require.NotNil(t, place.Settlement)
	assert.Equal(t, int64(120), place.Settlement.Population)

	count, err := store.CountPlaces(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestMemoryStore_FindIsExactAndCaseSensitive(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	h := seedHierarchy(t, store, "RegionA", "MunA")

	found, err := store.FindRegion(ctx, "RegionA")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, h.region.ID, found.ID)

	for _, name := range []string{"regiona", "Region", "RegionA "} {
		missing, err := store.FindRegion(ctx, name)
		require.NoError(t, err)
		assert.Nil(t, missing, name)
	}

	otherID := h.region.ID + 100
	scoped, err := store.FindMunicipality(ctx, "MunA", &otherID)
	require.NoError(t, err)
	assert.Nil(t, scoped)

	unscoped, err := store.FindMunicipality(ctx, "MunA", nil)
	require.NoError(t, err)
	require.NotNil(t, unscoped)
	assert.Equal(t, h.municipality.ID, unscoped.ID)
}

func TestMemoryStore_FindOrCreateReusesExisting(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	h := seedHierarchy(t, store, "RegionA", "MunA")

	region, place, created, err := FindOrCreateRegion(ctx, store, "RegionA", h.county.ID)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, h.region.ID, region.ID)
	assert.Equal(t, LevelRegion, place.Level())

	settlementType, created, err := FindOrCreateSettlementType(ctx, store, "city")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, h.cityType.ID, settlementType.ID)
}

func TestMemoryStore_InTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.InTx(ctx, func(s Store) error {
		seedHierarchy(t, s, "RegionA", "MunA")
		return nil
	}))

	boom := errors.New("boom")
	err := store.InTx(ctx, func(s Store) error {
		h := seedHierarchy(t, s, "RegionB", "MunB")
		addSettlement(t, s, h, "TownB", 10)
		return boom
	})
	require.ErrorIs(t, err, boom)

	count, err := store.CountPlaces(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	missing, err := store.FindRegion(ctx, "RegionB")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMemoryStore_DeleteAll(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	h := seedHierarchy(t, store, "RegionA", "MunA")
	addSettlement(t, store, h, "TownA", 100)
	addSettlement(t, store, h, "TownB", 50)

	report, err := store.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, DeleteReport{
		Places:          4,
		Settlements:     2,
		SettlementTypes: 1,
		Municipalities:  1,
		Regions:         1,
		Counties:        1,
	}, *report)
	assert.Equal(t, int64(10), report.Total())

	count, err := store.CountPlaces(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	// ids keep increasing after a delete
	h2 := seedHierarchy(t, store, "RegionA", "MunA")
	assert.Greater(t, h2.region.ID, h.region.ID)
}

func TestMemoryStore_PlacesByFilter(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	h := seedHierarchy(t, store, "Москва", "Москва")
	addSettlement(t, store, h, "Московский", 50)
	addSettlement(t, store, h, "Мосальск", 70)
	addSettlement(t, store, h, "Тверь", 90)

	places, err := store.PlacesByFilter(ctx, PlaceFilter{Prefix: "мос", Level: LevelSettlement})
	require.NoError(t, err)
	require.Len(t, places, 2)
	assert.Equal(t, "Мосальск", places[0].Name)
	assert.Equal(t, "Московский", places[1].Name)

	places, err = store.PlacesByFilter(ctx, PlaceFilter{Prefix: "МОС", RegionContains: "моск", Limit: 3})
	require.NoError(t, err)
	assert.Len(t, places, 3)

	places, err = store.PlacesByFilter(ctx, PlaceFilter{Prefix: "мос", Level: LevelRegion})
	require.NoError(t, err)
	require.Len(t, places, 1)
	assert.Equal(t, LevelRegion, places[0].Level())
}

func TestMemoryStore_LevelMatchesUsesOwnLevel(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	h := seedHierarchy(t, store, "Alpha", "Beta")
	addSettlement(t, store, h, "Alpine", 10)

	regions, err := store.LevelMatches(ctx, LevelRegion, "alp", 10)
	require.NoError(t, err)
	require.Len(t, regions, 1)
	assert.Equal(t, "Alpha", regions[0].Name)

	settlements, err := store.LevelMatches(ctx, LevelSettlement, "alp", 10)
	require.NoError(t, err)
	require.Len(t, settlements, 1)
	assert.Equal(t, "Alpine", settlements[0].Name)

	municipalities, err := store.LevelMatches(ctx, LevelMunicipality, "alp", 10)
	require.NoError(t, err)
	assert.Empty(t, municipalities)

	_, err = store.LevelMatches(ctx, Level("county"), "alp", 10)
	require.Error(t, err)
}

func TestMemoryStore_RankedPlacesPrefersAncestorMatches(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	matching := seedHierarchy(t, store, "Sunland", "Sunvale")
	other := seedHierarchy(t, store, "Northland", "Northvale")

	big := addSettlement(t, store, other, "Sunny Hill", 1000)
	small := addSettlement(t, store, matching, "Sunrise", 5)

	places, err := store.RankedPlaces(ctx, "sun", 10)
	require.NoError(t, err)
	require.NotEmpty(t, places)
	assert.Equal(t, small.ID, places[0].ID)

	var ids []int64
	for _, p := range places {
		ids = append(ids, p.ID)
	}
	assert.Contains(t, ids, big.ID)
}

func TestPlace_RestoreIDsAfterJSON(t *testing.T) {
	store := NewMemoryStore()
	h := seedHierarchy(t, store, "RegionA", "MunA")
	place := addSettlement(t, store, h, "TownA", 10)

	data, err := json.Marshal(place)
	require.NoError(t, err)
	var decoded Place
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Nil(t, decoded.MunicipalityID)

	decoded.RestoreIDs()
	assert.Equal(t, *place, decoded)
	assert.Equal(t, LevelSettlement, decoded.Level())
}
