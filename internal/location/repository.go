package location

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"locations-server/internal/shared/database"
)

type Repository struct {
	db     *database.DB
	tx     *database.Tx
	logger *slog.Logger
}

func NewRepository(db *database.DB, logger *slog.Logger) *Repository {
	logger.Debug("Initializing location repository")

	return &Repository{
		db:     db,
		logger: logger,
	}
}

// WithTx returns a copy of the repository whose statements run on tx.
func (r *Repository) WithTx(tx *database.Tx) *Repository {
	return &Repository{db: r.db, tx: tx, logger: r.logger}
}

func (r *Repository) getExecutor() database.Executor {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

func (r *Repository) CreateCounty(ctx context.Context, name string) (*County, error) {
	logger := r.logger.With("component", "location_repository", "operation", "create_county", "name", name)
	logger.Debug("Creating county")

	county := County{Name: name}
	err := r.getExecutor().QueryRowContext(ctx,
		`INSERT INTO counties (name) VALUES ($1) RETURNING id`, name,
	).Scan(&county.ID)
	if err != nil {
		logger.Error("Failed to create county", "error", err)
		return nil, fmt.Errorf("failed to create county: %w", err)
	}

	logger.Debug("County created", "county_id", county.ID)
	return &county, nil
}

func (r *Repository) CreateRegionWithPlace(ctx context.Context, name string, countyID int64) (*Region, *Place, error) {
	logger := r.logger.With("component", "location_repository", "operation", "create_region", "name", name, "county_id", countyID)
	logger.Debug("Creating region")

	region := Region{Name: name, CountyID: countyID}
	err := r.getExecutor().QueryRowContext(ctx,
		`INSERT INTO regions (name, county_id) VALUES ($1, $2) RETURNING id`, name, countyID,
	).Scan(&region.ID)
	if err != nil {
		logger.Error("Failed to create region", "error", err)
		return nil, nil, fmt.Errorf("failed to create region: %w", err)
	}

	place := Place{
		Name:     name,
		RegionID: region.ID,
		Region:   Ref{ID: region.ID, Name: name},
	}
	if err := r.insertPlace(ctx, &place); err != nil {
		logger.Error("Failed to create region place", "error", err)
		return nil, nil, err
	}

	logger.Debug("Region created", "region_id", region.ID, "place_id", place.ID)
	return &region, &place, nil
}

func (r *Repository) CreateMunicipalityWithPlace(ctx context.Context, name string, regionID int64) (*Municipality, *Place, error) {
	logger := r.logger.With("component", "location_repository", "operation", "create_municipality", "name", name, "region_id", regionID)
	logger.Debug("Creating municipality")

	municipality := Municipality{Name: name, RegionID: regionID}
	var regionName string
	err := r.getExecutor().QueryRowContext(ctx, `
		INSERT INTO municipalities (name, region_id) VALUES ($1, $2)
		RETURNING id, (SELECT name FROM regions WHERE id = $2)
	`, name, regionID).Scan(&municipality.ID, &regionName)
	if err != nil {
		logger.Error("Failed to create municipality", "error", err)
		return nil, nil, fmt.Errorf("failed to create municipality: %w", err)
	}

	municipalityID := municipality.ID
	place := Place{
		Name:           name,
		RegionID:       regionID,
		MunicipalityID: &municipalityID,
		Region:         Ref{ID: regionID, Name: regionName},
		Municipality:   &Ref{ID: municipalityID, Name: name},
	}
	if err := r.insertPlace(ctx, &place); err != nil {
		logger.Error("Failed to create municipality place", "error", err)
		return nil, nil, err
	}

	logger.Debug("Municipality created", "municipality_id", municipality.ID, "place_id", place.ID)
	return &municipality, &place, nil
}

func (r *Repository) CreateSettlementType(ctx context.Context, name string) (*SettlementType, error) {
	logger := r.logger.With("component", "location_repository", "operation", "create_settlement_type", "name", name)
	logger.Debug("Creating settlement type")

	settlementType := SettlementType{Name: name}
	err := r.getExecutor().QueryRowContext(ctx,
		`INSERT INTO settlement_types (name) VALUES ($1) RETURNING id`, name,
	).Scan(&settlementType.ID)
	if err != nil {
		logger.Error("Failed to create settlement type", "error", err)
		return nil, fmt.Errorf("failed to create settlement type: %w", err)
	}

	return &settlementType, nil
}

// CreateSettlementWithPlace inserts the settlement and a Place row carrying
// the settlement population and the municipality's region id.
func (r *Repository) CreateSettlementWithPlace(ctx context.Context, s NewSettlement) (*Settlement, *Place, error) {
	logger := r.logger.With(
		"component", "location_repository",
		"operation", "create_settlement",
		"name", s.Name,
		"municipality_id", s.MunicipalityID,
		"type_id", s.TypeID,
	)
	logger.Debug("Creating settlement")

	exec := r.getExecutor()

	var regionID int64
	var regionName, municipalityName, typeName string
	err := exec.QueryRowContext(ctx, `
		SELECT m.region_id, r.name, m.name, t.name
		FROM municipalities m
		JOIN regions r ON r.id = m.region_id
		CROSS JOIN settlement_types t
		WHERE m.id = $1 AND t.id = $2
	`, s.MunicipalityID, s.TypeID).Scan(&regionID, &regionName, &municipalityName, &typeName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			logger.Error("Unknown municipality or settlement type")
			return nil, nil, fmt.Errorf("unknown municipality %d or settlement type %d", s.MunicipalityID, s.TypeID)
		}
		logger.Error("Failed to resolve settlement parents", "error", err)
		return nil, nil, fmt.Errorf("failed to resolve settlement parents: %w", err)
	}

	settlement := Settlement{
		Name:           s.Name,
		MunicipalityID: s.MunicipalityID,
		TypeID:         s.TypeID,
		Population:     s.Population,
		Latitude:       s.Latitude,
		Longitude:      s.Longitude,
		OKTMO:          s.OKTMO,
	}
	err = exec.QueryRowContext(ctx, `
		INSERT INTO settlements (name, municipality_id, type_id, population, latitude, longitude, oktmo)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, s.Name, s.MunicipalityID, s.TypeID, s.Population, s.Latitude, s.Longitude, s.OKTMO).Scan(&settlement.ID)
	if err != nil {
		logger.Error("Failed to create settlement", "error", err)
		return nil, nil, fmt.Errorf("failed to create settlement: %w", err)
	}

	municipalityID, typeID, settlementID := s.MunicipalityID, s.TypeID, settlement.ID
	place := Place{
		Name:           s.Name,
		Population:     s.Population,
		RegionID:       regionID,
		MunicipalityID: &municipalityID,
		TypeID:         &typeID,
		SettlementID:   &settlementID,
		Region:         Ref{ID: regionID, Name: regionName},
		Municipality:   &Ref{ID: municipalityID, Name: municipalityName},
		Type:           &Ref{ID: typeID, Name: typeName},
		Settlement: &SettlementInfo{
			ID:         settlementID,
			Name:       s.Name,
			Population: s.Population,
			Latitude:   s.Latitude,
			Longitude:  s.Longitude,
			OKTMO:      s.OKTMO,
		},
	}
	if err := r.insertPlace(ctx, &place); err != nil {
		logger.Error("Failed to create settlement place", "error", err)
		return nil, nil, err
	}

	logger.Debug("Settlement created", "settlement_id", settlement.ID, "place_id", place.ID)
	return &settlement, &place, nil
}

func (r *Repository) insertPlace(ctx context.Context, place *Place) error {
	err := r.getExecutor().QueryRowContext(ctx, `
		INSERT INTO places (name, population, region_id, municipality_id, type_id, settlement_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, place.Name, place.Population, place.RegionID, place.MunicipalityID, place.TypeID, place.SettlementID).Scan(&place.ID)
	if err != nil {
		return fmt.Errorf("failed to create place: %w", err)
	}
	return nil
}

func (r *Repository) FindCounty(ctx context.Context, name string) (*County, error) {
	logger := r.logger.With("component", "location_repository", "operation", "find_county", "name", name)

	var county County
	err := r.getExecutor().QueryRowContext(ctx,
		`SELECT id, name FROM counties WHERE name = $1 ORDER BY id LIMIT 1`, name,
	).Scan(&county.ID, &county.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			logger.Debug("County not found")
			return nil, nil
		}
		logger.Error("Database error finding county", "error", err)
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &county, nil
}

func (r *Repository) FindRegion(ctx context.Context, name string) (*Region, error) {
	logger := r.logger.With("component", "location_repository", "operation", "find_region", "name", name)

	var region Region
	err := r.getExecutor().QueryRowContext(ctx,
		`SELECT id, name, county_id FROM regions WHERE name = $1 ORDER BY id LIMIT 1`, name,
	).Scan(&region.ID, &region.Name, &region.CountyID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			logger.Debug("Region not found")
			return nil, nil
		}
		logger.Error("Database error finding region", "error", err)
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &region, nil
}

func (r *Repository) FindMunicipality(ctx context.Context, name string, regionID *int64) (*Municipality, error) {
	logger := r.logger.With("component", "location_repository", "operation", "find_municipality", "name", name)

	query := `SELECT id, name, region_id FROM municipalities WHERE name = $1 ORDER BY id LIMIT 1`
	args := []interface{}{name}
	if regionID != nil {
		query = `SELECT id, name, region_id FROM municipalities WHERE name = $1 AND region_id = $2 ORDER BY id LIMIT 1`
		args = append(args, *regionID)
	}

	var municipality Municipality
	err := r.getExecutor().QueryRowContext(ctx, query, args...).Scan(&municipality.ID, &municipality.Name, &municipality.RegionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			logger.Debug("Municipality not found")
			return nil, nil
		}
		logger.Error("Database error finding municipality", "error", err)
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &municipality, nil
}

func (r *Repository) FindSettlementType(ctx context.Context, name string) (*SettlementType, error) {
	logger := r.logger.With("component", "location_repository", "operation", "find_settlement_type", "name", name)

	var settlementType SettlementType
	err := r.getExecutor().QueryRowContext(ctx,
		`SELECT id, name FROM settlement_types WHERE name = $1 ORDER BY id LIMIT 1`, name,
	).Scan(&settlementType.ID, &settlementType.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			logger.Debug("Settlement type not found")
			return nil, nil
		}
		logger.Error("Database error finding settlement type", "error", err)
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &settlementType, nil
}

func (r *Repository) RegionPlace(ctx context.Context, regionID int64) (*Place, error) {
	return r.singlePlace(ctx, "region_place",
		placeSelect+` WHERE p.region_id = $1 AND p.municipality_id IS NULL`, regionID)
}

func (r *Repository) MunicipalityPlace(ctx context.Context, municipalityID int64) (*Place, error) {
	return r.singlePlace(ctx, "municipality_place",
		placeSelect+` WHERE p.municipality_id = $1 AND p.settlement_id IS NULL`, municipalityID)
}

func (r *Repository) singlePlace(ctx context.Context, operation, query string, id int64) (*Place, error) {
	logger := r.logger.With("component", "location_repository", "operation", operation, "id", id)

	place, err := scanPlace(r.getExecutor().QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			logger.Debug("Place not found")
			return nil, nil
		}
		logger.Error("Database error getting place", "error", err)
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &place, nil
}

func (r *Repository) SetPlacePopulation(ctx context.Context, placeID, population int64) error {
	logger := r.logger.With("component", "location_repository", "operation", "set_place_population", "place_id", placeID)

	result, err := r.getExecutor().ExecContext(ctx,
		`UPDATE places SET population = $2 WHERE id = $1`, placeID, population)
	if err != nil {
		logger.Error("Failed to update place population", "error", err)
		return fmt.Errorf("failed to update place population: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		logger.Warn("Place not found for population update")
		return fmt.Errorf("place %d not found", placeID)
	}
	return nil
}

// DeleteAll empties every location table, children first, and reports how
// many rows each held.
func (r *Repository) DeleteAll(ctx context.Context) (*DeleteReport, error) {
	logger := r.logger.With("component", "location_repository", "operation", "delete_all")
	logger.Info("Deleting all locations")

	exec := r.getExecutor()
	report := &DeleteReport{}
	steps := []struct {
		table string
		count *int64
	}{
		{"places", &report.Places},
		{"settlements", &report.Settlements},
		{"settlement_types", &report.SettlementTypes},
		{"municipalities", &report.Municipalities},
		{"regions", &report.Regions},
		{"counties", &report.Counties},
	}

	for _, step := range steps {
		result, err := exec.ExecContext(ctx, "DELETE FROM "+step.table)
		if err != nil {
			logger.Error("Failed to delete rows", "table", step.table, "error", err)
			return nil, fmt.Errorf("failed to delete %s: %w", step.table, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("failed to read affected rows for %s: %w", step.table, err)
		}
		*step.count = affected
	}

	logger.Info("All locations deleted", "places", report.Places, "total", report.Total())
	return report, nil
}

func (r *Repository) CountPlaces(ctx context.Context) (int64, error) {
	var count int64
	if err := r.getExecutor().QueryRowContext(ctx, `SELECT COUNT(*) FROM places`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count places: %w", err)
	}
	return count, nil
}
