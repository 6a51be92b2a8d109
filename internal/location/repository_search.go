package location

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

const placeSelect = `
	SELECT p.id, p.name, p.population, p.region_id, p.municipality_id, p.type_id, p.settlement_id,
		r.name, m.name, t.name, s.name, s.population, s.latitude, s.longitude, s.oktmo
	FROM places p
	JOIN regions r ON r.id = p.region_id
	LEFT JOIN municipalities m ON m.id = p.municipality_id
	LEFT JOIN settlement_types t ON t.id = p.type_id
	LEFT JOIN settlements s ON s.id = p.settlement_id`

const placeOrder = ` ORDER BY p.population DESC, p.id`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPlace(row rowScanner) (Place, error) {
	var place Place
	var municipalityID, typeID, settlementID, settlementPopulation sql.NullInt64
	var municipalityName, typeName, settlementName, oktmo sql.NullString
	var latitude, longitude sql.NullFloat64

	err := row.Scan(
		&place.ID,
		&place.Name,
		&place.Population,
		&place.RegionID,
		&municipalityID,
		&typeID,
		&settlementID,
		&place.Region.Name,
		&municipalityName,
		&typeName,
		&settlementName,
		&settlementPopulation,
		&latitude,
		&longitude,
		&oktmo,
	)
	if err != nil {
		return Place{}, err
	}

	place.Region.ID = place.RegionID
	if municipalityID.Valid {
		id := municipalityID.Int64
		place.MunicipalityID = &id
		place.Municipality = &Ref{ID: id, Name: municipalityName.String}
	}
	if typeID.Valid {
		id := typeID.Int64
		place.TypeID = &id
		place.Type = &Ref{ID: id, Name: typeName.String}
	}
	if settlementID.Valid {
		id := settlementID.Int64
		place.SettlementID = &id
		info := &SettlementInfo{ID: id, Name: settlementName.String, Population: settlementPopulation.Int64}
		if latitude.Valid {
			v := latitude.Float64
			info.Latitude = &v
		}
		if longitude.Valid {
			v := longitude.Float64
			info.Longitude = &v
		}
		if oktmo.Valid {
			v := oktmo.String
			info.OKTMO = &v
		}
		place.Settlement = info
	}
	return place, nil
}

func (r *Repository) queryPlaces(ctx context.Context, operation, query string, args ...interface{}) ([]Place, error) {
	logger := r.logger.With("component", "location_repository", "operation", operation)

	rows, err := r.getExecutor().QueryContext(ctx, query, args...)
	if err != nil {
		logger.Error("Failed to query places", "error", err)
		return nil, fmt.Errorf("failed to query places: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logger.Error("Failed to close rows", "error", err)
		}
	}()

	var places []Place
	for rows.Next() {
		place, err := scanPlace(rows)
		if err != nil {
			logger.Error("Failed to scan place row", "error", err)
			return nil, fmt.Errorf("failed to scan place: %w", err)
		}
		places = append(places, place)
	}

	if err := rows.Err(); err != nil {
		logger.Error("Error during rows iteration", "error", err)
		return nil, fmt.Errorf("error iterating places: %w", err)
	}

	logger.Debug("Places retrieved", "count", len(places))
	return places, nil
}

func levelCondition(level Level) string {
	switch level {
	case LevelRegion:
		return "p.municipality_id IS NULL"
	case LevelMunicipality:
		return "p.municipality_id IS NOT NULL AND p.settlement_id IS NULL"
	case LevelSettlement:
		return "p.settlement_id IS NOT NULL"
	}
	return ""
}

func (r *Repository) PlacesByFilter(ctx context.Context, filter PlaceFilter) ([]Place, error) {
	conditions := []string{`lower(p.name) LIKE lower($1) ESCAPE '\'`}
	args := []interface{}{EscapeLike(filter.Prefix) + "%"}

	if cond := levelCondition(filter.Level); cond != "" {
		conditions = append(conditions, cond)
	}
	if filter.RegionContains != "" {
		args = append(args, filter.RegionContains)
		conditions = append(conditions, fmt.Sprintf("strpos(lower(r.name), lower($%d)) > 0", len(args)))
	}
	if filter.MunicipalityContains != "" {
		args = append(args, filter.MunicipalityContains)
		conditions = append(conditions, fmt.Sprintf("strpos(lower(m.name), lower($%d)) > 0", len(args)))
	}

	query := placeSelect + " WHERE " + strings.Join(conditions, " AND ") + placeOrder
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	return r.queryPlaces(ctx, "places_by_filter", query, args...)
}

func (r *Repository) LevelMatches(ctx context.Context, level Level, prefix string, limit int) ([]Place, error) {
	var nameColumn string
	switch level {
	case LevelRegion:
		nameColumn = "r.name"
	case LevelMunicipality:
		nameColumn = "m.name"
	case LevelSettlement:
		nameColumn = "s.name"
	default:
		return nil, fmt.Errorf("unknown level %q", level)
	}

	query := placeSelect +
		" WHERE " + levelCondition(level) +
		" AND lower(" + nameColumn + `) LIKE lower($1) ESCAPE '\'` +
		placeOrder + " LIMIT $2"

	return r.queryPlaces(ctx, "level_matches", query, EscapeLike(prefix)+"%", limit)
}

func (r *Repository) RankedPlaces(ctx context.Context, query string, limit int) ([]Place, error) {
	sqlQuery := placeSelect + `
	WHERE lower(COALESCE(s.name, m.name, r.name)) LIKE lower($1) ESCAPE '\'
	ORDER BY
		(strpos(lower(r.name), lower($2)) > 0
			AND COALESCE(strpos(lower(m.name), lower($2)) > 0, false)
			AND COALESCE(strpos(lower(s.name), lower($2)) > 0, false)) DESC,
		(strpos(lower(r.name), lower($2)) > 0
			AND COALESCE(strpos(lower(m.name), lower($2)) > 0, false)) DESC,
		strpos(lower(r.name), lower($2)) > 0 DESC,
		p.population DESC,
		p.id
	LIMIT $3`

	return r.queryPlaces(ctx, "ranked_places", sqlQuery, EscapeLike(query)+"%", query, limit)
}
