// Package scorer implements per-building factor scoring and weighted
// composite scoring for conversion candidates.
package scorer

import (
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/conversion-cli/internal/config"
)

// weightTolerance is the allowed deviation of the weight sum from 1.0.
const weightTolerance = 1e-9

// DefaultScoringConfig returns a config.ScoringConfig with the reference
// values. Weights sum to 1.0.
func DefaultScoringConfig() config.ScoringConfig {
	return config.ScoringConfig{
		// Composite weights (sum = 1.0).
		BaseWeight:            0.30,
		AmenityWeight:         0.25,
		InvestmentWeight:      0.20,
		WalkabilityWeight:     0.15,
		EconomicDensityWeight: 0.10,

		// Amenity accessibility. Dining carries the strongest market
		// signal, so it is weighted highest.
		AmenityRadiusMeters:  400,
		AmenityNormalization: 20,
		AmenityWeights: map[string]float64{
			"dining":        3.0,
			"entertainment": 2.0,
			"hotels":        2.0,
			"commercial":    1.5,
			"pedestrian":    1.0,
		},

		InvestmentRadiusMeters: 600,

		WalkabilityRadiusMeters: 800,
		WalkabilityBase:         1.0,
		PedestrianBonus:         0.1,
		ParkingPenalty:          0.15,
		HighwayPenalty:          0.3,
		CorridorBonus:           0.3,
		PedestrianCategories:    []string{"restaurant", "cafe", "park", "footway"},
		ParkingCategories:       []string{"parking"},
		HighwayCategories:       []string{"highway"},
		CorridorCategories:      []string{"corridor"},

		ClusterPotentialRadiusMeters: 300,
		ClusterPotentialFlatBonus:    0.2,
		SupportingAmenityBonus:       0.05,
		SupportingAmenityCategories:  []string{"commercial"},

		EconomicDensityRadiusMeters: 400,
		EconomicDensityDivisor:      20,

		IdentityThresholdMeters: 50,
		ClusterRadiusMeters:     300,
		ClusterMinSize:          3,

		TopN:           10,
		ScoreThreshold: 0.7,
	}
}

// WeightSum returns the sum of the composite weights.
func WeightSum(c config.ScoringConfig) float64 {
	return c.BaseWeight + c.AmenityWeight + c.InvestmentWeight +
		c.WalkabilityWeight + c.EconomicDensityWeight
}

// ValidateConfig checks that a ScoringConfig is internally consistent.
func ValidateConfig(c config.ScoringConfig) error {
	var errs []string

	// All weights must be non-negative.
	weights := map[string]float64{
		"base_weight":             c.BaseWeight,
		"amenity_weight":          c.AmenityWeight,
		"investment_weight":       c.InvestmentWeight,
		"walkability_weight":      c.WalkabilityWeight,
		"economic_density_weight": c.EconomicDensityWeight,
	}
	for name, w := range weights {
		if w < 0 {
			errs = append(errs, fmt.Sprintf("%s must be >= 0", name))
		}
	}

	// Weights must sum to exactly 1.0; composite scores are only
	// comparable under a fixed total.
	if sum := WeightSum(c); math.Abs(sum-1.0) > weightTolerance {
		errs = append(errs, fmt.Sprintf("weights must sum to 1.0, got %.6f", sum))
	}

	// Radii.
	radii := map[string]float64{
		"amenity_radius_meters":           c.AmenityRadiusMeters,
		"investment_radius_meters":        c.InvestmentRadiusMeters,
		"walkability_radius_meters":       c.WalkabilityRadiusMeters,
		"cluster_potential_radius_meters": c.ClusterPotentialRadiusMeters,
		"economic_density_radius_meters":  c.EconomicDensityRadiusMeters,
		"identity_threshold_meters":       c.IdentityThresholdMeters,
		"cluster_radius_meters":           c.ClusterRadiusMeters,
	}
	for name, r := range radii {
		if r <= 0 {
			errs = append(errs, fmt.Sprintf("%s must be > 0", name))
		}
	}

	if c.AmenityNormalization <= 0 {
		errs = append(errs, "amenity_normalization must be > 0")
	}
	if c.EconomicDensityDivisor <= 0 {
		errs = append(errs, "economic_density_divisor must be > 0")
	}
	if c.ClusterMinSize < 2 {
		errs = append(errs, "cluster_min_size must be >= 2")
	}
	if c.TopN <= 0 {
		errs = append(errs, "top_n must be > 0")
	}
	if c.ScoreThreshold < 0 || c.ScoreThreshold > 1 {
		errs = append(errs, "score_threshold must be between 0 and 1")
	}

	if len(errs) > 0 {
		return eris.Errorf("scorer: config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
