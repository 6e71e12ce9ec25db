// Package analysis orchestrates the per-zone scoring and clustering
// pipeline over the loaded geospatial layers.
package analysis

import (
	"context"
	"math"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/conversion-cli/internal/cluster"
	"github.com/sells-group/conversion-cli/internal/config"
	"github.com/sells-group/conversion-cli/internal/geo"
	"github.com/sells-group/conversion-cli/internal/layer"
	"github.com/sells-group/conversion-cli/internal/scorer"
	"github.com/sells-group/conversion-cli/internal/zone"
)

// ScoredCandidate is a candidate with its factor scores, composite
// conversion score, and the weighted breakdown.
type ScoredCandidate struct {
	Candidate
	Factors             scorer.Factors     `json:"factors"`
	ClusteringPotential float64            `json:"clustering_potential"`
	WalkabilityHasData  bool               `json:"walkability_has_data"`
	ConversionScore     float64            `json:"conversion_score"`
	Breakdown           map[string]float64 `json:"breakdown"`
}

// Summary holds zone-level aggregate statistics.
type Summary struct {
	TotalCandidates    int     `json:"total_candidates"` // pre-truncation
	AboveThreshold     int     `json:"above_threshold"`  // among returned candidates
	AvgConversionScore float64 `json:"avg_conversion_score"`
	AvgBaseScore       float64 `json:"avg_base_score"`
	ClusterCount       int     `json:"cluster_count"`
}

// Result is the full analysis output for one zone.
type Result struct {
	Zone                 zone.Zone         `json:"zone"`
	ConversionCandidates []ScoredCandidate `json:"conversion_candidates"`
	Clusters             []cluster.Cluster `json:"clusters"`
	Summary              Summary           `json:"summary"`
}

// EmptyResult returns the well-formed zero-value result for a zone:
// empty arrays and zero counts, never nil slices.
func EmptyResult(z zone.Zone) *Result {
	return &Result{
		Zone:                 z,
		ConversionCandidates: []ScoredCandidate{},
		Clusters:             []cluster.Cluster{},
	}
}

// Analyzer runs the scoring pipeline against a fixed set of layers and
// zone definitions. It holds no mutable state; every analysis allocates
// its own working set, so concurrent AnalyzeZone calls are safe.
type Analyzer struct {
	zones  *zone.Registry
	layers layer.Layers
	cfg    config.ScoringConfig
}

// New creates an Analyzer.
func New(zones *zone.Registry, layers layer.Layers, cfg config.ScoringConfig) *Analyzer {
	return &Analyzer{zones: zones, layers: layers, cfg: cfg}
}

// AnalyzeZone runs the full pipeline for one zone id. An unknown id
// returns zone.ErrNotFound (wrapped); callers isolating failures should
// substitute EmptyResult rather than aborting a batch.
func (a *Analyzer) AnalyzeZone(id string) (*Result, error) {
	z, err := a.zones.Get(id)
	if err != nil {
		return nil, err
	}
	return a.analyze(z), nil
}

// analyze runs the pipeline for a resolved zone.
func (a *Analyzer) analyze(z zone.Zone) *Result {
	buildings := zone.FilterByZone(a.layers.Buildings, z)
	listings := zone.FilterByZone(a.layers.Listings, z)
	projects := zone.FilterByZone(a.layers.Projects, z)
	companies := zone.FilterByZone(a.layers.Companies, z)
	features := zone.FilterByZone(a.layers.Features, z)

	candidates := BuildCandidates(buildings, listings, a.cfg.IdentityThresholdMeters, z.ID)
	if len(candidates) == 0 {
		return EmptyResult(z)
	}

	peers := make([]geo.Point, len(candidates))
	for i, c := range candidates {
		peers[i] = c.Location
	}

	scored := make([]ScoredCandidate, 0, len(candidates))
	for _, c := range candidates {
		walk, hasData := scorer.Walkability(c.Location, features, a.cfg)
		f := scorer.Factors{
			Base:            c.BaseScore,
			Amenity:         scorer.AmenityAccessibility(c.Location, features, a.cfg),
			Investment:      scorer.InvestmentMomentum(c.Location, projects, a.cfg),
			Walkability:     walk,
			EconomicDensity: scorer.EconomicDensity(c.Location, companies, a.cfg),
		}
		composite, breakdown := scorer.Composite(f, a.cfg)

		scored = append(scored, ScoredCandidate{
			Candidate:           c,
			Factors:             f,
			ClusteringPotential: scorer.ClusteringPotential(c.Location, peers, features, a.cfg),
			WalkabilityHasData:  hasData,
			ConversionScore:     composite,
			Breakdown:           breakdown,
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].ConversionScore > scored[j].ConversionScore
	})

	top := scored
	if len(top) > a.cfg.TopN {
		top = top[:a.cfg.TopN]
	}

	members := make([]cluster.Member, len(top))
	for i, sc := range top {
		members[i] = cluster.Member{
			Address: sc.Address,
			Point:   sc.Location,
			Score:   sc.ConversionScore,
		}
	}
	clusters := cluster.Find(members, a.cfg.ClusterRadiusMeters, a.cfg.ClusterMinSize)
	if clusters == nil {
		clusters = []cluster.Cluster{}
	}

	return &Result{
		Zone:                 z,
		ConversionCandidates: top,
		Clusters:             clusters,
		Summary:              summarize(len(scored), top, clusters, a.cfg.ScoreThreshold),
	}
}

// summarize computes zone-level statistics over the returned candidates.
// Averages are guarded against zero-length division.
func summarize(total int, top []ScoredCandidate, clusters []cluster.Cluster, threshold float64) Summary {
	s := Summary{
		TotalCandidates: total,
		ClusterCount:    len(clusters),
	}
	if len(top) == 0 {
		return s
	}

	var sumScore, sumBase float64
	for _, sc := range top {
		sumScore += sc.ConversionScore
		sumBase += sc.BaseScore
		if sc.ConversionScore >= threshold {
			s.AboveThreshold++
		}
	}
	n := float64(len(top))
	s.AvgConversionScore = round2(sumScore / n)
	s.AvgBaseScore = round2(sumBase / n)
	return s
}

// AnalyzeAll analyzes every registered zone. Zones are independent, so
// they run concurrently up to the given limit. A failure in one zone is
// logged and replaced with an empty result; it never aborts the batch.
func (a *Analyzer) AnalyzeAll(ctx context.Context, concurrency int) []Result {
	zones := a.zones.All()
	results := make([]Result, len(zones))

	if concurrency <= 0 {
		concurrency = 1
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, z := range zones {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = *EmptyResult(z)
				return nil
			}
			res, err := a.AnalyzeZone(z.ID)
			if err != nil {
				zap.L().Warn("analysis: zone failed, substituting empty result",
					zap.String("zone", z.ID),
					zap.Error(err),
				)
				results[i] = *EmptyResult(z)
				return nil
			}
			results[i] = *res
			return nil
		})
	}

	// Workers never return errors; Wait is for completion only.
	_ = g.Wait()
	return results
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
