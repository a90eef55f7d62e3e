// Package locations serves the region → province → city hierarchy used by the
// checkout address form.
package locations

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed directory.yaml
var directoryYAML []byte

type Region struct {
	Code      string     `yaml:"code" json:"code"`
	Name      string     `yaml:"name" json:"name"`
	Provinces []Province `yaml:"provinces" json:"-"`
}

type Province struct {
	Name   string   `yaml:"name" json:"name"`
	Cities []string `yaml:"cities" json:"cities,omitempty"`
}

// CityFreeText reports whether the province has no enumerated cities, in
// which case the city is typed rather than picked.
func (p Province) CityFreeText() bool {
	return len(p.Cities) == 0
}

// Directory is an immutable lookup over the embedded location data.
type Directory struct {
	regions []Region
	byCode  map[string]int
}

type document struct {
	Regions []Region `yaml:"regions"`
}

// Load parses the embedded directory.
func Load() (*Directory, error) {
	return Parse(directoryYAML)
}

// Parse builds a Directory from YAML.
func Parse(raw []byte) (*Directory, error) {
	var doc document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse location directory: %w", err)
	}
	if len(doc.Regions) == 0 {
		return nil, fmt.Errorf("location directory has no regions")
	}
	dir := &Directory{regions: doc.Regions, byCode: make(map[string]int, len(doc.Regions))}
	for i, region := range doc.Regions {
		code := normalizeCode(region.Code)
		if code == "" {
			return nil, fmt.Errorf("region %d missing code", i)
		}
		if _, dup := dir.byCode[code]; dup {
			return nil, fmt.Errorf("duplicate region code %q", region.Code)
		}
		dir.byCode[code] = i
	}
	return dir, nil
}

// MustLoad panics when the embedded directory is invalid.
func MustLoad() *Directory {
	dir, err := Load()
	if err != nil {
		panic(err)
	}
	return dir
}

// Regions returns every region in display order.
func (d *Directory) Regions() []Region {
	out := make([]Region, len(d.regions))
	copy(out, d.regions)
	return out
}

// Region looks up a region by code (case-insensitive).
func (d *Directory) Region(code string) (Region, bool) {
	idx, ok := d.byCode[normalizeCode(code)]
	if !ok {
		return Region{}, false
	}
	return d.regions[idx], true
}

// HasRegion reports whether the code is known.
func (d *Directory) HasRegion(code string) bool {
	_, ok := d.Region(code)
	return ok
}

// Provinces lists the provinces of a region; nil for unknown regions.
func (d *Directory) Provinces(regionCode string) []Province {
	region, ok := d.Region(regionCode)
	if !ok {
		return nil
	}
	return region.Provinces
}

// Province finds a province within a region by name (case-insensitive).
func (d *Directory) Province(regionCode, name string) (Province, bool) {
	for _, p := range d.Provinces(regionCode) {
		if strings.EqualFold(p.Name, strings.TrimSpace(name)) {
			return p, true
		}
	}
	return Province{}, false
}

// Cities lists enumerated cities of a province. The boolean is false when the
// province is unknown.
func (d *Directory) Cities(regionCode, province string) ([]string, bool) {
	p, ok := d.Province(regionCode, province)
	if !ok {
		return nil, false
	}
	return p.Cities, true
}

// Mismatch names the first address field that does not sit under its parent.
type Mismatch struct {
	Field   string
	Problem string
}

func (m *Mismatch) Error() string { return m.Field + " " + m.Problem }

// Check confirms the region exists, the province is in the region and the
// city is in the province, returning the directory's spelling of province
// and city. A blank field stops the walk; requiredness is the caller's.
func (d *Directory) Check(region, province, city string) (string, string, error) {
	if strings.TrimSpace(region) == "" {
		return province, city, nil
	}
	if !d.HasRegion(region) {
		return province, city, &Mismatch{Field: "region", Problem: "is not a known region"}
	}
	if strings.TrimSpace(province) == "" {
		return province, city, nil
	}
	p, ok := d.Province(region, province)
	if !ok {
		return province, city, &Mismatch{Field: "province", Problem: "is not in the selected region"}
	}
	if strings.TrimSpace(city) == "" || p.CityFreeText() {
		return p.Name, city, nil
	}
	for _, c := range p.Cities {
		if strings.EqualFold(c, strings.TrimSpace(city)) {
			return p.Name, c, nil
		}
	}
	return p.Name, city, &Mismatch{Field: "city", Problem: "is not in the selected province"}
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
