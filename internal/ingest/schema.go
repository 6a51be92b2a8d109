package ingest

import (
	"fmt"
	"strconv"
	"strings"
)

// Schema is an ordered column layout for an upload. The header line of an
// upload must equal the columns joined by commas.
type Schema struct {
	Name    string
	Columns []string
}

var (
	// SchemaFull is the current export format. The effective population is
	// population + children.
	SchemaFull = Schema{
		Name: "full",
		Columns: []string{
			"county", "region", "municipality", "settlement", "type",
			"population", "children", "latitude_dd", "longitude_dd", "oktmo",
		},
	}

	SchemaReduced = Schema{
		Name:    "reduced",
		Columns: []string{"county", "region", "municipality", "settlement", "type", "population"},
	}
)

// SchemaByName resolves "full" or "reduced". An empty name means full.
func SchemaByName(name string) (Schema, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", SchemaFull.Name:
		return SchemaFull, nil
	case SchemaReduced.Name:
		return SchemaReduced, nil
	}
	return Schema{}, fmt.Errorf("unknown schema %q", name)
}

func (s Schema) Header() string {
	return strings.Join(s.Columns, ",")
}

func (s Schema) index(column string) int {
	for i, c := range s.Columns {
		if c == column {
			return i
		}
	}
	return -1
}

// municipalitySentinel marks a record without its own municipality.
const municipalitySentinel = "null"

const maxOKTMOLength = 11

type record struct {
	county         string
	region         string
	municipality   string
	settlement     string
	settlementType string
	population     int64
	latitude       *float64
	longitude      *float64
	oktmo          *string
}

// parse maps already trimmed fields onto a record. The returned string is
// the failure reason when err is non-nil.
func (s Schema) parse(fields []string) (record, string, error) {
	if len(fields) != len(s.Columns) {
		return record{}, fmt.Sprintf("expected %d fields, got %d", len(s.Columns), len(fields)), errFieldCount
	}

	field := func(column string) string {
		if i := s.index(column); i >= 0 {
			return fields[i]
		}
		return ""
	}

	rec := record{
		county:         field("county"),
		region:         field("region"),
		municipality:   field("municipality"),
		settlement:     field("settlement"),
		settlementType: field("type"),
	}

	for _, required := range []struct{ column, value string }{
		{"county", rec.county},
		{"region", rec.region},
		{"municipality", rec.municipality},
		{"settlement", rec.settlement},
		{"type", rec.settlementType},
	} {
		if required.value == "" {
			return record{}, "empty " + required.column, errEmptyField
		}
	}
	if rec.municipality == municipalitySentinel {
		rec.municipality = rec.region
	}

	population, err := parseCount(field("population"))
	if err != nil {
		return record{}, "invalid population", err
	}
	rec.population = population

	if s.index("children") >= 0 {
		children, err := parseCount(field("children"))
		if err != nil {
			return record{}, "invalid children", err
		}
		rec.population += children
	}

	if s.index("latitude_dd") >= 0 {
		if rec.latitude, err = parseOptionalFloat(field("latitude_dd")); err != nil {
			return record{}, "invalid latitude", err
		}
	}
	if s.index("longitude_dd") >= 0 {
		if rec.longitude, err = parseOptionalFloat(field("longitude_dd")); err != nil {
			return record{}, "invalid longitude", err
		}
	}
	if oktmo := field("oktmo"); oktmo != "" {
		if len(oktmo) > maxOKTMOLength {
			return record{}, "oktmo longer than 11 characters", errFieldTooLong
		}
		rec.oktmo = &oktmo
	}

	return rec, "", nil
}

func parseCount(value string) (int64, error) {
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, errNegative
	}
	return n, nil
}

func parseOptionalFloat(value string) (*float64, error) {
	if value == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, err
	}
	return &f, nil
}
