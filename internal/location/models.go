package location

type Level string

const (
	LevelRegion       Level = "region"
	LevelMunicipality Level = "municipality"
	LevelSettlement   Level = "settlement"
)

// Levels lists the hierarchy levels that own a Place row, top down.
var Levels = []Level{LevelRegion, LevelMunicipality, LevelSettlement}

type County struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Region struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	CountyID int64  `json:"county_id"`
}

type Municipality struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	RegionID int64  `json:"region_id"`
}

type SettlementType struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Settlement struct {
	ID             int64    `json:"id"`
	Name           string   `json:"name"`
	MunicipalityID int64    `json:"municipality_id"`
	TypeID         int64    `json:"type_id"`
	Population     int64    `json:"population"`
	Latitude       *float64 `json:"latitude"`
	Longitude      *float64 `json:"longitude"`
	OKTMO          *string  `json:"oktmo"`
}

// NewSettlement carries the fields needed to insert a settlement and its Place row.
type NewSettlement struct {
	MunicipalityID int64
	TypeID         int64
	Name           string
	Population     int64
	Latitude       *float64
	Longitude      *float64
	OKTMO          *string
}

type Ref struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type SettlementInfo struct {
	ID         int64    `json:"id"`
	Name       string   `json:"name"`
	Population int64    `json:"population"`
	Latitude   *float64 `json:"latitude"`
	Longitude  *float64 `json:"longitude"`
	OKTMO      *string  `json:"oktmo"`
}

// Place is one row of the denormalized search index. The id fields are the
// stored columns; Region, Municipality, Type and Settlement are the joined
// views returned to clients.
type Place struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	Population     int64  `json:"population"`
	RegionID       int64  `json:"-"`
	MunicipalityID *int64 `json:"-"`
	TypeID         *int64 `json:"-"`
	SettlementID   *int64 `json:"-"`

	Region       Ref             `json:"region"`
	Municipality *Ref            `json:"municipality"`
	Type         *Ref            `json:"type"`
	Settlement   *SettlementInfo `json:"settlement"`
}

func (p Place) Level() Level {
	switch {
	case p.MunicipalityID == nil:
		return LevelRegion
	case p.SettlementID == nil:
		return LevelMunicipality
	default:
		return LevelSettlement
	}
}

// RestoreIDs sets the id columns from the joined views. Used after decoding
// a Place from its JSON form, which omits the id columns.
func (p *Place) RestoreIDs() {
	p.RegionID = p.Region.ID
	p.MunicipalityID, p.TypeID, p.SettlementID = nil, nil, nil
	if p.Municipality != nil {
		id := p.Municipality.ID
		p.MunicipalityID = &id
	}
	if p.Type != nil {
		id := p.Type.ID
		p.TypeID = &id
	}
	if p.Settlement != nil {
		id := p.Settlement.ID
		p.SettlementID = &id
	}
}

// DeleteReport holds the number of rows removed from each table by DeleteAll.
type DeleteReport struct {
	Places          int64 `json:"places"`
	Settlements     int64 `json:"settlements"`
	SettlementTypes int64 `json:"settlement_types"`
	Municipalities  int64 `json:"municipalities"`
	Regions         int64 `json:"regions"`
	Counties        int64 `json:"counties"`
}

func (r DeleteReport) Total() int64 {
	return r.Places + r.Settlements + r.SettlementTypes + r.Municipalities + r.Regions + r.Counties
}

// PlaceFilter selects Place rows whose name starts with Prefix. Empty fields
// are ignored. Results are ordered by population descending, then id.
type PlaceFilter struct {
	Prefix               string
	Level                Level
	RegionContains       string
	MunicipalityContains string
	Limit                int
}
