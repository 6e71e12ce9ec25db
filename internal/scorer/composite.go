package scorer

import (
	"math"

	"github.com/sells-group/conversion-cli/internal/config"
)

// Breakdown keys for the composite score.
const (
	FactorBase            = "base_conversion"
	FactorAmenity         = "amenity_accessibility"
	FactorInvestment      = "investment_momentum"
	FactorWalkability     = "walkability"
	FactorEconomicDensity = "economic_density"
)

// Factors holds the factor scores for one candidate. Values outside
// [0,1] are clamped before weighting.
type Factors struct {
	Base            float64 `json:"base"`
	Amenity         float64 `json:"amenity"`
	Investment      float64 `json:"investment"`
	Walkability     float64 `json:"walkability"`
	EconomicDensity float64 `json:"economic_density"`
}

// Composite combines the factor scores into a single ranking score using
// the configured weights, rounded to 2 decimal places. The breakdown
// retains each weighted contribution for auditability. Scores are
// comparable only within a single analysis run using the same weights.
func Composite(f Factors, cfg config.ScoringConfig) (float64, map[string]float64) {
	breakdown := map[string]float64{
		FactorBase:            clamp01(f.Base) * cfg.BaseWeight,
		FactorAmenity:         clamp01(f.Amenity) * cfg.AmenityWeight,
		FactorInvestment:      clamp01(f.Investment) * cfg.InvestmentWeight,
		FactorWalkability:     clamp01(f.Walkability) * cfg.WalkabilityWeight,
		FactorEconomicDensity: clamp01(f.EconomicDensity) * cfg.EconomicDensityWeight,
	}

	var total float64
	for _, contribution := range breakdown {
		total += contribution
	}

	return math.Round(total*100) / 100, breakdown
}
