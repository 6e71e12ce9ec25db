// Package layer parses raw geospatial input files into typed, validated
// structs. All property-bag handling lives here so the scoring packages
// operate on clean data.
package layer

import (
	"github.com/sells-group/conversion-cli/internal/geo"
)

// Building is a feature from the primary scored-building layer.
type Building struct {
	Name            string    `json:"name"`
	Location        geo.Point `json:"location"`
	Category        string    `json:"category"`
	Priority        int       `json:"priority"`
	ConversionScore *float64  `json:"conversion_score,omitempty"` // 0-100 when present
	BuildingLevels  *int      `json:"building_levels,omitempty"`
}

// Listing is a feature from the real-estate listings layer.
type Listing struct {
	Address       string    `json:"address"`
	Location      geo.Point `json:"location"`
	PropertyType  string    `json:"property_type"`
	Price         float64   `json:"price"`
	SquareFootage float64   `json:"square_footage"`
}

// Project is a feature from the construction/permit layer.
type Project struct {
	Name     string    `json:"name"`
	Location geo.Point `json:"location"`
	Status   string    `json:"status"`
	WorkType string    `json:"work_type"`
	Cost     float64   `json:"cost"`
}

// Company is a feature from the employer layer. Coordinates come from the
// nested headquarters_location property rather than the feature geometry.
type Company struct {
	Name         string    `json:"name"`
	Location     geo.Point `json:"location"`
	Industry     string    `json:"industry"`
	MaxEmployees int       `json:"max_employees"`
}

// ContextFeature is a generic amenity/walkability feature (OSM-derived).
// Its Category drives both the amenity weight table and the walkability
// classification.
type ContextFeature struct {
	Name     string    `json:"name"`
	Location geo.Point `json:"location"`
	Category string    `json:"category"`
}

// Coordinates implements the zone.Locatable contract for each layer type.
func (b Building) Coordinates() geo.Point       { return b.Location }
func (l Listing) Coordinates() geo.Point        { return l.Location }
func (p Project) Coordinates() geo.Point        { return p.Location }
func (c Company) Coordinates() geo.Point        { return c.Location }
func (f ContextFeature) Coordinates() geo.Point { return f.Location }

// Layers bundles the context layers consumed by a zone analysis.
// Any slice may be empty; the pipeline treats missing layers as
// zero-signal rather than failing.
type Layers struct {
	Buildings []Building
	Listings  []Listing
	Projects  []Project
	Companies []Company
	Features  []ContextFeature
}
