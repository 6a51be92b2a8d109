package location

import "context"

// Reader is the read side used by the search engine.
type Reader interface {
	PlacesByFilter(ctx context.Context, filter PlaceFilter) ([]Place, error)
	// LevelMatches returns Place rows of one level whose own entity name
	// starts with prefix and whose level below is null.
	LevelMatches(ctx context.Context, level Level, prefix string, limit int) ([]Place, error)
	// RankedPlaces returns rows whose deepest non-null level name starts with
	// query, ordered by ancestor match then population.
	RankedPlaces(ctx context.Context, query string, limit int) ([]Place, error)
	CountPlaces(ctx context.Context) (int64, error)
}

// Store is the full entity store contract. Implementations hold no
// transaction state; callers obtain a Store bound to a transaction through
// Database.InTx.
type Store interface {
	Reader

	CreateCounty(ctx context.Context, name string) (*County, error)
	CreateRegionWithPlace(ctx context.Context, name string, countyID int64) (*Region, *Place, error)
	CreateMunicipalityWithPlace(ctx context.Context, name string, regionID int64) (*Municipality, *Place, error)
	CreateSettlementType(ctx context.Context, name string) (*SettlementType, error)
	CreateSettlementWithPlace(ctx context.Context, s NewSettlement) (*Settlement, *Place, error)

	// Find* do an exact, case-sensitive name lookup and return nil when absent.
	FindCounty(ctx context.Context, name string) (*County, error)
	FindRegion(ctx context.Context, name string) (*Region, error)
	// FindMunicipality is scoped to regionID when it is non-nil.
	FindMunicipality(ctx context.Context, name string, regionID *int64) (*Municipality, error)
	FindSettlementType(ctx context.Context, name string) (*SettlementType, error)

	RegionPlace(ctx context.Context, regionID int64) (*Place, error)
	MunicipalityPlace(ctx context.Context, municipalityID int64) (*Place, error)
	SetPlacePopulation(ctx context.Context, placeID, population int64) error

	DeleteAll(ctx context.Context) (*DeleteReport, error)
}

// Database hands out stores. Every write happens inside InTx; the
// transaction commits when fn returns nil and rolls back otherwise.
type Database interface {
	InTx(ctx context.Context, fn func(Store) error) error
	Reader() Reader
}

var (
	_ Store    = (*Repository)(nil)
	_ Database = (*DB)(nil)
	_ Store    = (*MemoryStore)(nil)
	_ Database = (*MemoryStore)(nil)
)
