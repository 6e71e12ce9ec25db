package analysis

import (
	"github.com/sells-group/conversion-cli/internal/geo"
	"github.com/sells-group/conversion-cli/internal/layer"
)

// Candidate sources.
const (
	SourceBuildings = "buildings"
	SourceListings  = "listings"
)

// Candidate is a building or parcel under evaluation for conversion.
type Candidate struct {
	Address       string    `json:"address"`
	Location      geo.Point `json:"location"`
	BaseScore     float64   `json:"base_score"` // normalized to [0,1]
	HasBaseScore  bool      `json:"has_base_score"`
	SquareFootage float64   `json:"square_footage,omitempty"`
	Price         float64   `json:"price,omitempty"`
	Priority      int       `json:"priority,omitempty"`
	Source        string    `json:"source"`
	ZoneID        string    `json:"zone_id"`
}

// Coordinates implements zone.Locatable.
func (c Candidate) Coordinates() geo.Point { return c.Location }

// BuildCandidates merges the primary scored-building layer with the
// listings layer into a single candidate list. A listing within
// identityThresholdMeters of an existing candidate is treated as the
// same physical building and dropped; the primary-layer candidate wins.
func BuildCandidates(buildings []layer.Building, listings []layer.Listing, identityThresholdMeters float64, zoneID string) []Candidate {
	candidates := make([]Candidate, 0, len(buildings)+len(listings))

	for _, b := range buildings {
		c := Candidate{
			Address:  b.Name,
			Location: b.Location,
			Priority: b.Priority,
			Source:   SourceBuildings,
			ZoneID:   zoneID,
		}
		if b.ConversionScore != nil {
			c.BaseScore = clampUnit(*b.ConversionScore / 100)
			c.HasBaseScore = true
		}
		candidates = append(candidates, c)
	}

	for _, l := range listings {
		if withinAnyCandidate(l.Location, candidates, identityThresholdMeters) {
			continue
		}
		candidates = append(candidates, Candidate{
			Address:       l.Address,
			Location:      l.Location,
			SquareFootage: l.SquareFootage,
			Price:         l.Price,
			Source:        SourceListings,
			ZoneID:        zoneID,
		})
	}

	return candidates
}

func withinAnyCandidate(p geo.Point, candidates []Candidate, thresholdMeters float64) bool {
	for _, c := range candidates {
		if geo.WithinRadius(p, c.Location, thresholdMeters) {
			return true
		}
	}
	return false
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
