package layer

import (
	"encoding/json"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/conversion-cli/internal/geo"
)

// ParseResult reports how a layer parse went. Skipped counts features that
// were dropped for missing geometry or unparseable required properties.
type ParseResult struct {
	Parsed  int
	Skipped int
}

// LoadBuildings reads the primary scored-building layer from a GeoJSON file.
func LoadBuildings(path string) ([]Building, ParseResult, error) {
	fc, err := readFeatureCollection(path)
	if err != nil {
		return nil, ParseResult{}, eris.Wrapf(err, "layer: load buildings %s", path)
	}
	buildings, res := ParseBuildings(fc)
	logParse("buildings", path, res)
	return buildings, res, nil
}

// ParseBuildings converts a feature collection into typed buildings.
// Features without a usable representative point are skipped and counted.
func ParseBuildings(fc *geojson.FeatureCollection) ([]Building, ParseResult) {
	var res ParseResult
	buildings := make([]Building, 0, len(fc.Features))
	for _, f := range fc.Features {
		pt, ok := representativePoint(f.Geometry)
		if !ok {
			res.Skipped++
			continue
		}
		b := Building{
			Name:     f.Properties.MustString("name", ""),
			Location: pt,
			Category: f.Properties.MustString("category", ""),
			Priority: propInt(f.Properties, "priority"),
		}
		if v, ok := propFloat(f.Properties, "conversion_score"); ok {
			b.ConversionScore = &v
		}
		if f.Properties["building_levels"] != nil {
			levels := propInt(f.Properties, "building_levels")
			b.BuildingLevels = &levels
		}
		buildings = append(buildings, b)
		res.Parsed++
	}
	return buildings, res
}

// LoadListings reads the real-estate listings layer from a GeoJSON file.
func LoadListings(path string) ([]Listing, ParseResult, error) {
	fc, err := readFeatureCollection(path)
	if err != nil {
		return nil, ParseResult{}, eris.Wrapf(err, "layer: load listings %s", path)
	}
	listings, res := ParseListings(fc)
	logParse("listings", path, res)
	return listings, res, nil
}

// ParseListings converts a feature collection into typed listings.
// The square_footage property arrives as a comma-formatted string
// ("12,500") and is normalized here, once, at the ingestion boundary.
func ParseListings(fc *geojson.FeatureCollection) ([]Listing, ParseResult) {
	var res ParseResult
	listings := make([]Listing, 0, len(fc.Features))
	for _, f := range fc.Features {
		pt, ok := representativePoint(f.Geometry)
		if !ok {
			res.Skipped++
			continue
		}
		l := Listing{
			Address:      f.Properties.MustString("address", ""),
			Location:     pt,
			PropertyType: f.Properties.MustString("property_type", ""),
		}
		if v, ok := propFloat(f.Properties, "price"); ok {
			l.Price = v
		}
		if v, ok := propFloat(f.Properties, "square_footage"); ok {
			l.SquareFootage = v
		}
		listings = append(listings, l)
		res.Parsed++
	}
	return listings, res
}

// LoadProjects reads the construction/permit layer from a GeoJSON file.
func LoadProjects(path string) ([]Project, ParseResult, error) {
	fc, err := readFeatureCollection(path)
	if err != nil {
		return nil, ParseResult{}, eris.Wrapf(err, "layer: load projects %s", path)
	}
	projects, res := ParseProjects(fc)
	logParse("projects", path, res)
	return projects, res, nil
}

// ParseProjects converts a feature collection into typed projects.
func ParseProjects(fc *geojson.FeatureCollection) ([]Project, ParseResult) {
	var res ParseResult
	projects := make([]Project, 0, len(fc.Features))
	for _, f := range fc.Features {
		pt, ok := representativePoint(f.Geometry)
		if !ok {
			res.Skipped++
			continue
		}
		p := Project{
			Name:     f.Properties.MustString("name", ""),
			Location: pt,
			Status:   f.Properties.MustString("status", ""),
			WorkType: f.Properties.MustString("work_type", ""),
		}
		if v, ok := propFloat(f.Properties, "cost"); ok {
			p.Cost = v
		}
		projects = append(projects, p)
		res.Parsed++
	}
	return projects, res
}

// LoadCompanies reads the employer layer from a GeoJSON file.
func LoadCompanies(path string) ([]Company, ParseResult, error) {
	fc, err := readFeatureCollection(path)
	if err != nil {
		return nil, ParseResult{}, eris.Wrapf(err, "layer: load companies %s", path)
	}
	companies, res := ParseCompanies(fc)
	logParse("companies", path, res)
	return companies, res, nil
}

// ParseCompanies converts a feature collection into typed companies.
// Coordinates come from the nested headquarters_location property; the
// feature geometry is used as a fallback when that property is absent.
func ParseCompanies(fc *geojson.FeatureCollection) ([]Company, ParseResult) {
	var res ParseResult
	companies := make([]Company, 0, len(fc.Features))
	for _, f := range fc.Features {
		pt, ok := headquartersPoint(f.Properties)
		if !ok {
			pt, ok = representativePoint(f.Geometry)
		}
		if !ok {
			res.Skipped++
			continue
		}
		c := Company{
			Name:         f.Properties.MustString("name", ""),
			Location:     pt,
			Industry:     f.Properties.MustString("industry", ""),
			MaxEmployees: maxEmployees(f.Properties),
		}
		companies = append(companies, c)
		res.Parsed++
	}
	return companies, res
}

// LoadFeatures reads the amenity/walkability context layer from a GeoJSON file.
func LoadFeatures(path string) ([]ContextFeature, ParseResult, error) {
	fc, err := readFeatureCollection(path)
	if err != nil {
		return nil, ParseResult{}, eris.Wrapf(err, "layer: load features %s", path)
	}
	features, res := ParseFeatures(fc)
	logParse("features", path, res)
	return features, res, nil
}

// ParseFeatures converts a feature collection into typed context features.
func ParseFeatures(fc *geojson.FeatureCollection) ([]ContextFeature, ParseResult) {
	var res ParseResult
	features := make([]ContextFeature, 0, len(fc.Features))
	for _, f := range fc.Features {
		pt, ok := representativePoint(f.Geometry)
		if !ok {
			res.Skipped++
			continue
		}
		features = append(features, ContextFeature{
			Name:     f.Properties.MustString("name", ""),
			Location: pt,
			Category: f.Properties.MustString("category", ""),
		})
		res.Parsed++
	}
	return features, res
}

func readFeatureCollection(path string) (*geojson.FeatureCollection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "read file")
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, eris.Wrap(err, "unmarshal feature collection")
	}
	return fc, nil
}

// representativePoint extracts a single lat/lng for a geometry: the point
// itself for points, the planar centroid for everything else.
func representativePoint(g orb.Geometry) (geo.Point, bool) {
	if g == nil {
		return geo.Point{}, false
	}
	var pt orb.Point
	switch v := g.(type) {
	case orb.Point:
		pt = v
	default:
		pt, _ = planar.CentroidArea(g)
	}
	p := geo.Point{Lat: pt.Lat(), Lng: pt.Lon()}
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) {
		return geo.Point{}, false
	}
	return p, true
}

// headquartersPoint extracts headquarters_location.coordinates.{lat,lng}.
func headquartersPoint(props geojson.Properties) (geo.Point, bool) {
	hq, ok := props["headquarters_location"].(map[string]any)
	if !ok {
		return geo.Point{}, false
	}
	coords, ok := hq["coordinates"].(map[string]any)
	if !ok {
		return geo.Point{}, false
	}
	lat, latOK := toFloat(coords["lat"])
	lng, lngOK := toFloat(coords["lng"])
	if !latOK || !lngOK {
		return geo.Point{}, false
	}
	return geo.Point{Lat: lat, Lng: lng}, true
}

// maxEmployees extracts employees.max, tolerating a flat employees number.
func maxEmployees(props geojson.Properties) int {
	if emp, ok := props["employees"].(map[string]any); ok {
		if v, ok := toFloat(emp["max"]); ok {
			return int(v)
		}
		return 0
	}
	if v, ok := toFloat(props["employees"]); ok {
		return int(v)
	}
	return 0
}

// propFloat reads a numeric property that may arrive as a number or a
// comma-formatted string.
func propFloat(props geojson.Properties, key string) (float64, bool) {
	return toFloat(props[key])
}

func propInt(props geojson.Properties, key string) int {
	if v, ok := toFloat(props[key]); ok {
		return int(v)
	}
	return 0
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(n), ",", ""), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func logParse(name, path string, res ParseResult) {
	log := zap.L().With(
		zap.String("layer", name),
		zap.String("path", path),
	)
	if res.Skipped > 0 {
		log.Warn("layer loaded with skipped features",
			zap.Int("parsed", res.Parsed),
			zap.Int("skipped", res.Skipped),
		)
		return
	}
	log.Debug("layer loaded", zap.Int("parsed", res.Parsed))
}
