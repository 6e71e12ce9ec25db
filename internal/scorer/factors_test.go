package scorer

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/conversion-cli/internal/geo"
	"github.com/sells-group/conversion-cli/internal/layer"
)

// offset returns a point displaced from p by the given meters north and east.
func offset(p geo.Point, northMeters, eastMeters float64) geo.Point {
	const metersPerDegree = 111_195.0
	return geo.Point{
		Lat: p.Lat + northMeters/metersPerDegree,
		Lng: p.Lng + eastMeters/(metersPerDegree*math.Cos(p.Lat*math.Pi/180)),
	}
}

func testOrigin() geo.Point {
	return geo.Point{Lat: 29.7499, Lng: -95.3582}
}

func contextFeature(p geo.Point, category string) layer.ContextFeature {
	return layer.ContextFeature{Location: p, Category: category}
}

func TestAmenityAccessibility(t *testing.T) {
	p := testOrigin()
	cfg := DefaultScoringConfig()

	t.Run("empty layer scores zero", func(t *testing.T) {
		assert.Zero(t, AmenityAccessibility(p, nil, cfg))
	})

	t.Run("category weighted sum normalized by constant", func(t *testing.T) {
		features := []layer.ContextFeature{
			contextFeature(offset(p, 100, 0), "dining"),       // 3.0
			contextFeature(offset(p, 0, 150), "dining"),       // 3.0
			contextFeature(offset(p, -200, 0), "hotels"),      // 2.0
			contextFeature(offset(p, 50, 50), "graffiti"),     // unknown, ignored
			contextFeature(offset(p, 1000, 0), "dining"),      // outside 400m
		}
		// (3 + 3 + 2) / 20 = 0.4
		assert.InDelta(t, 0.4, AmenityAccessibility(p, features, cfg), 1e-9)
	})

	t.Run("clamped at one", func(t *testing.T) {
		var features []layer.ContextFeature
		for i := 0; i < 10; i++ {
			features = append(features, contextFeature(offset(p, float64(i), 0), "dining"))
		}
		// 30 / 20 clamps to 1.
		assert.InDelta(t, 1.0, AmenityAccessibility(p, features, cfg), 1e-9)
	})
}

func TestInvestmentMomentum(t *testing.T) {
	p := testOrigin()
	cfg := DefaultScoringConfig()

	project := func(loc geo.Point, workType string, cost float64) layer.Project {
		return layer.Project{Location: loc, WorkType: workType, Cost: cost}
	}

	t.Run("no nearby projects scores zero", func(t *testing.T) {
		assert.Zero(t, InvestmentMomentum(p, nil, cfg))
		far := []layer.Project{project(offset(p, 2000, 0), "streetscape", 5_000_000)}
		assert.Zero(t, InvestmentMomentum(p, far, cfg))
	})

	t.Run("single high cost project", func(t *testing.T) {
		projects := []layer.Project{project(offset(p, 100, 0), "streetscape", 2_000_000)}
		// density 0.1 + diversity 0.1 + cost tier 0.2, no coordination.
		assert.InDelta(t, 0.4, InvestmentMomentum(p, projects, cfg), 1e-9)
	})

	t.Run("coordinated diverse projects", func(t *testing.T) {
		projects := []layer.Project{
			project(offset(p, 100, 0), "streetscape", 600_000),
			project(offset(p, 0, 100), "utility", 600_000),
			project(offset(p, -100, 0), "streetscape", 600_000),
		}
		// density 0.3 + diversity 0.2 + mid cost tier 0.1 + coordination 0.3.
		assert.InDelta(t, 0.9, InvestmentMomentum(p, projects, cfg), 1e-9)
	})

	t.Run("density term capped", func(t *testing.T) {
		var projects []layer.Project
		for i := 0; i < 6; i++ {
			projects = append(projects, project(offset(p, float64(10*i), 0), "paving", 100_000))
		}
		// density capped 0.4 + diversity 0.1 + no cost tier + coordination 0.3.
		assert.InDelta(t, 0.8, InvestmentMomentum(p, projects, cfg), 1e-9)
	})

	t.Run("clamped at one", func(t *testing.T) {
		var projects []layer.Project
		types := []string{"a", "b", "c", "d", "e", "f"}
		for i, wt := range types {
			projects = append(projects, project(offset(p, float64(10*i), 0), wt, 3_000_000))
		}
		// 0.4 + 0.6 + 0.2 + 0.3 would exceed 1; clamp.
		assert.InDelta(t, 1.0, InvestmentMomentum(p, projects, cfg), 1e-9)
	})
}

func TestWalkability(t *testing.T) {
	p := testOrigin()
	cfg := DefaultScoringConfig()

	t.Run("no features yields base with no data", func(t *testing.T) {
		score, hasData := Walkability(p, nil, cfg)
		assert.InDelta(t, 1.0, score, 1e-9)
		assert.False(t, hasData)
	})

	t.Run("penalties subtract", func(t *testing.T) {
		features := []layer.ContextFeature{
			contextFeature(offset(p, 100, 0), "parking"),
			contextFeature(offset(p, 200, 0), "parking"),
			contextFeature(offset(p, 300, 0), "highway"),
		}
		score, hasData := Walkability(p, features, cfg)
		// 1.0 - 0.15 - 0.15 - 0.3 = 0.4
		assert.InDelta(t, 0.4, score, 1e-9)
		assert.True(t, hasData)
	})

	t.Run("pedestrian bonuses clamp at one", func(t *testing.T) {
		features := []layer.ContextFeature{
			contextFeature(offset(p, 100, 0), "cafe"),
			contextFeature(offset(p, 200, 0), "park"),
		}
		score, hasData := Walkability(p, features, cfg)
		assert.InDelta(t, 1.0, score, 1e-9)
		assert.True(t, hasData)
	})

	t.Run("corridor bonus applies once", func(t *testing.T) {
		features := []layer.ContextFeature{
			contextFeature(offset(p, 100, 0), "corridor"),
			contextFeature(offset(p, 200, 0), "corridor"),
			contextFeature(offset(p, 0, 100), "highway"),
			contextFeature(offset(p, 0, 200), "highway"),
			contextFeature(offset(p, 0, 300), "highway"),
		}
		score, _ := Walkability(p, features, cfg)
		// 1.0 - 0.9 + 0.3 = 0.4
		assert.InDelta(t, 0.4, score, 1e-9)
	})

	t.Run("heavy penalties clamp at zero", func(t *testing.T) {
		var features []layer.ContextFeature
		for i := 0; i < 5; i++ {
			features = append(features, contextFeature(offset(p, float64(50*i), 0), "highway"))
		}
		score, _ := Walkability(p, features, cfg)
		assert.Zero(t, score)
	})

	t.Run("features outside radius ignored", func(t *testing.T) {
		features := []layer.ContextFeature{
			contextFeature(offset(p, 900, 0), "highway"),
		}
		score, hasData := Walkability(p, features, cfg)
		assert.InDelta(t, 1.0, score, 1e-9)
		assert.False(t, hasData)
	})
}

func TestClusteringPotential(t *testing.T) {
	p := testOrigin()
	cfg := DefaultScoringConfig()

	t.Run("isolated candidate scores zero", func(t *testing.T) {
		assert.Zero(t, ClusteringPotential(p, nil, nil, cfg))
	})

	t.Run("self excluded from peers", func(t *testing.T) {
		assert.Zero(t, ClusteringPotential(p, []geo.Point{p}, nil, cfg))
	})

	t.Run("nearby peers earn flat bonus plus density", func(t *testing.T) {
		peers := []geo.Point{
			offset(p, 100, 0),
			offset(p, 0, 100),
		}
		// 0.2 flat + 0.2 density.
		assert.InDelta(t, 0.4, ClusteringPotential(p, peers, nil, cfg), 1e-9)
	})

	t.Run("density term capped", func(t *testing.T) {
		var peers []geo.Point
		for i := 0; i < 5; i++ {
			peers = append(peers, offset(p, float64(20*(i+1)), 0))
		}
		// 0.2 flat + capped 0.3 density.
		assert.InDelta(t, 0.5, ClusteringPotential(p, peers, nil, cfg), 1e-9)
	})

	t.Run("supporting amenities add small bonus", func(t *testing.T) {
		peers := []geo.Point{offset(p, 100, 0)}
		features := []layer.ContextFeature{
			contextFeature(offset(p, 50, 0), "commercial"),
			contextFeature(offset(p, 0, 50), "commercial"),
			contextFeature(offset(p, 0, -50), "dining"), // not a supporting category
		}
		// 0.2 + 0.1 density + 0.1 amenities.
		assert.InDelta(t, 0.4, ClusteringPotential(p, peers, features, cfg), 1e-9)
	})

	t.Run("distant peers ignored", func(t *testing.T) {
		peers := []geo.Point{offset(p, 1000, 0)}
		assert.Zero(t, ClusteringPotential(p, peers, nil, cfg))
	})
}

func TestEconomicDensity(t *testing.T) {
	p := testOrigin()
	cfg := DefaultScoringConfig()

	company := func(loc geo.Point) layer.Company {
		return layer.Company{Location: loc}
	}

	t.Run("no companies scores zero", func(t *testing.T) {
		assert.Zero(t, EconomicDensity(p, nil, cfg))
	})

	t.Run("linear in company count", func(t *testing.T) {
		var companies []layer.Company
		for i := 0; i < 10; i++ {
			companies = append(companies, company(offset(p, float64(10*i), 0)))
		}
		assert.InDelta(t, 0.5, EconomicDensity(p, companies, cfg), 1e-9)
	})

	t.Run("capped at one", func(t *testing.T) {
		var companies []layer.Company
		for i := 0; i < 30; i++ {
			companies = append(companies, company(offset(p, float64(5*i), 0)))
		}
		assert.InDelta(t, 1.0, EconomicDensity(p, companies, cfg), 1e-9)
	})

	t.Run("distant companies excluded", func(t *testing.T) {
		companies := []layer.Company{company(offset(p, 5000, 0))}
		assert.Zero(t, EconomicDensity(p, companies, cfg))
	})
}
