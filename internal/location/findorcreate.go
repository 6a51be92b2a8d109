package location

import (
	"context"
	"fmt"
)

// FindOrCreateCounty looks a county up by exact name and creates it when
// missing. The boolean reports whether a row was created.
func FindOrCreateCounty(ctx context.Context, s Store, name string) (*County, bool, error) {
	county, err := s.FindCounty(ctx, name)
	if err != nil {
		return nil, false, err
	}
	if county != nil {
		return county, false, nil
	}
	county, err = s.CreateCounty(ctx, name)
	if err != nil {
		return nil, false, err
	}
	return county, true, nil
}

func FindOrCreateRegion(ctx context.Context, s Store, name string, countyID int64) (*Region, *Place, bool, error) {
	region, err := s.FindRegion(ctx, name)
	if err != nil {
		return nil, nil, false, err
	}
	if region == nil {
		region, place, err := s.CreateRegionWithPlace(ctx, name, countyID)
		if err != nil {
			return nil, nil, false, err
		}
		return region, place, true, nil
	}

	place, err := s.RegionPlace(ctx, region.ID)
	if err != nil {
		return nil, nil, false, err
	}
	if place == nil {
		return nil, nil, false, fmt.Errorf("region %d has no place row", region.ID)
	}
	return region, place, false, nil
}

// FindOrCreateMunicipality matches on name alone unless scoped is true, in
// which case only municipalities of regionID are considered.
func FindOrCreateMunicipality(ctx context.Context, s Store, name string, regionID int64, scoped bool) (*Municipality, *Place, bool, error) {
	var parent *int64
	if scoped {
		parent = &regionID
	}

	municipality, err := s.FindMunicipality(ctx, name, parent)
	if err != nil {
		return nil, nil, false, err
	}
	if municipality == nil {
		municipality, place, err := s.CreateMunicipalityWithPlace(ctx, name, regionID)
		if err != nil {
			return nil, nil, false, err
		}
		return municipality, place, true, nil
	}

	place, err := s.MunicipalityPlace(ctx, municipality.ID)
	if err != nil {
		return nil, nil, false, err
	}
	if place == nil {
		return nil, nil, false, fmt.Errorf("municipality %d has no place row", municipality.ID)
	}
	return municipality, place, false, nil
}

func FindOrCreateSettlementType(ctx context.Context, s Store, name string) (*SettlementType, bool, error) {
	settlementType, err := s.FindSettlementType(ctx, name)
	if err != nil {
		return nil, false, err
	}
	if settlementType != nil {
		return settlementType, false, nil
	}
	settlementType, err = s.CreateSettlementType(ctx, name)
	if err != nil {
		return nil, false, err
	}
	return settlementType, true, nil
}
