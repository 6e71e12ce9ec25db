package scorer

import (
	"math"
	"strings"

	"github.com/sells-group/conversion-cli/internal/config"
	"github.com/sells-group/conversion-cli/internal/geo"
	"github.com/sells-group/conversion-cli/internal/layer"
)

// Heuristic constants for the investment momentum factor. These encode
// tier boundaries, not a calibrated statistical model.
const (
	projectDensityStep     = 0.1 // per nearby project
	projectDensityCap      = 0.4
	workTypeDiversityBonus = 0.1
	costTierHighThreshold  = 1_000_000
	costTierMidThreshold   = 500_000
	costTierHighBonus      = 0.2
	costTierMidBonus       = 0.1
	coordinationBonusLarge = 0.3 // >= 3 nearby projects
	coordinationBonusSmall = 0.15
)

// Constants for the clustering potential factor.
const (
	peerDensityStep = 0.1 // per nearby peer
	peerDensityCap  = 0.3
)

// AmenityAccessibility scores how well-served a location is by nearby
// amenities, in [0,1]. Each amenity within the configured radius
// contributes its category weight; the weighted sum is normalized by a
// fixed constant so dense but low-signal areas do not dominate.
func AmenityAccessibility(p geo.Point, features []layer.ContextFeature, cfg config.ScoringConfig) float64 {
	var weighted float64
	for _, f := range features {
		w, ok := cfg.AmenityWeights[strings.ToLower(f.Category)]
		if !ok {
			continue
		}
		if geo.WithinRadius(f.Location, p, cfg.AmenityRadiusMeters) {
			weighted += w
		}
	}
	return clamp01(weighted / cfg.AmenityNormalization)
}

// InvestmentMomentum scores nearby public capital investment, in [0,1].
// Zero projects within the radius yields 0. Otherwise it accumulates a
// capped density term, a diversity bonus per distinct work type, a
// cost-tier bonus on mean project cost, and a coordination bonus when
// several projects land near the same block. A heuristic, not a
// calibrated model.
func InvestmentMomentum(p geo.Point, projects []layer.Project, cfg config.ScoringConfig) float64 {
	var (
		nearby    []layer.Project
		totalCost float64
	)
	workTypes := make(map[string]struct{})
	for _, proj := range projects {
		if !geo.WithinRadius(proj.Location, p, cfg.InvestmentRadiusMeters) {
			continue
		}
		nearby = append(nearby, proj)
		totalCost += proj.Cost
		if wt := strings.ToLower(proj.WorkType); wt != "" {
			workTypes[wt] = struct{}{}
		}
	}
	if len(nearby) == 0 {
		return 0
	}

	score := math.Min(float64(len(nearby))*projectDensityStep, projectDensityCap)
	score += float64(len(workTypes)) * workTypeDiversityBonus

	meanCost := totalCost / float64(len(nearby))
	switch {
	case meanCost > costTierHighThreshold:
		score += costTierHighBonus
	case meanCost > costTierMidThreshold:
		score += costTierMidBonus
	}

	switch {
	case len(nearby) >= 3:
		score += coordinationBonusLarge
	case len(nearby) >= 2:
		score += coordinationBonusSmall
	}

	return clamp01(score)
}

// Walkability scores pedestrian friendliness, in [0,1], starting from the
// configured base. Pedestrian-friendly features add a bonus each, parking
// lots and major highways subtract penalties, and any corridor feature
// adds a flat bonus. hasData reports whether any qualifying feature was
// found within the radius, so callers can distinguish "no signal" from a
// genuinely walkable block.
func Walkability(p geo.Point, features []layer.ContextFeature, cfg config.ScoringConfig) (score float64, hasData bool) {
	pedestrian := categorySet(cfg.PedestrianCategories)
	parking := categorySet(cfg.ParkingCategories)
	highway := categorySet(cfg.HighwayCategories)
	corridor := categorySet(cfg.CorridorCategories)

	score = cfg.WalkabilityBase
	var corridorPresent bool
	for _, f := range features {
		cat := strings.ToLower(f.Category)
		_, isPed := pedestrian[cat]
		_, isParking := parking[cat]
		_, isHighway := highway[cat]
		_, isCorridor := corridor[cat]
		if !isPed && !isParking && !isHighway && !isCorridor {
			continue
		}
		if !geo.WithinRadius(f.Location, p, cfg.WalkabilityRadiusMeters) {
			continue
		}
		hasData = true
		switch {
		case isPed:
			score += cfg.PedestrianBonus
		case isParking:
			score -= cfg.ParkingPenalty
		case isHighway:
			score -= cfg.HighwayPenalty
		}
		if isCorridor {
			corridorPresent = true
		}
	}
	if corridorPresent {
		score += cfg.CorridorBonus
	}
	return clamp01(score), hasData
}

// ClusteringPotential scores the candidate's proximity to peer candidates,
// in [0,1]. Peers within the radius earn a flat bonus plus a capped
// density term; supporting commercial amenities nearby add a small bonus
// each.
func ClusteringPotential(p geo.Point, peers []geo.Point, features []layer.ContextFeature, cfg config.ScoringConfig) float64 {
	var nearbyPeers int
	for _, peer := range peers {
		if peer == p {
			continue
		}
		if geo.WithinRadius(peer, p, cfg.ClusterPotentialRadiusMeters) {
			nearbyPeers++
		}
	}

	var score float64
	if nearbyPeers > 0 {
		score = cfg.ClusterPotentialFlatBonus +
			math.Min(float64(nearbyPeers)*peerDensityStep, peerDensityCap)
	}

	supporting := categorySet(cfg.SupportingAmenityCategories)
	for _, f := range features {
		if _, ok := supporting[strings.ToLower(f.Category)]; !ok {
			continue
		}
		if geo.WithinRadius(f.Location, p, cfg.ClusterPotentialRadiusMeters) {
			score += cfg.SupportingAmenityBonus
		}
	}

	return clamp01(score)
}

// EconomicDensity scores nearby employer concentration as
// min(count/divisor, 1).
func EconomicDensity(p geo.Point, companies []layer.Company, cfg config.ScoringConfig) float64 {
	var count int
	for _, c := range companies {
		if geo.WithinRadius(c.Location, p, cfg.EconomicDensityRadiusMeters) {
			count++
		}
	}
	return math.Min(float64(count)/cfg.EconomicDensityDivisor, 1)
}

func categorySet(categories []string) map[string]struct{} {
	set := make(map[string]struct{}, len(categories))
	for _, c := range categories {
		set[strings.ToLower(c)] = struct{}{}
	}
	return set
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
