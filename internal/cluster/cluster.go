// Package cluster finds critical-mass zones among scored candidates
// using a single-pass greedy proximity scan.
package cluster

import (
	"sort"

	"github.com/sells-group/conversion-cli/internal/geo"
)

// Member is a clusterable point with its composite score.
type Member struct {
	Address string    `json:"address"`
	Point   geo.Point `json:"point"`
	Score   float64   `json:"score"`
}

// Cluster is a group of members within the clustering radius of its seed
// member. Membership is seed-relative, not transitive: two members of
// the same cluster may be farther apart than the radius from each other.
type Cluster struct {
	Centroid  geo.Point `json:"centroid"`
	Size      int       `json:"size"`
	AvgScore  float64   `json:"avg_score"`
	Addresses []string  `json:"addresses"`
}

// Find runs a single greedy pass over candidates in input order. Each
// unassigned candidate seeds a group of all other unassigned candidates
// within radius of it; groups reaching minSize are emitted and their
// members marked assigned. The result depends on input order when
// neighborhoods overlap asymmetrically. That behavior is load-bearing
// for downstream consumers; do not replace it with connected-components
// or density-based clustering.
func Find(candidates []Member, radiusMeters float64, minSize int) []Cluster {
	assigned := make([]bool, len(candidates))
	var clusters []Cluster

	for i := range candidates {
		if assigned[i] {
			continue
		}

		group := []int{i}
		for j := range candidates {
			if j == i || assigned[j] {
				continue
			}
			if geo.WithinRadius(candidates[j].Point, candidates[i].Point, radiusMeters) {
				group = append(group, j)
			}
		}

		if len(group) < minSize {
			continue
		}

		var (
			sumLat, sumLng, sumScore float64
			addresses                []string
		)
		for _, idx := range group {
			m := candidates[idx]
			sumLat += m.Point.Lat
			sumLng += m.Point.Lng
			sumScore += m.Score
			addresses = append(addresses, m.Address)
			assigned[idx] = true
		}

		n := float64(len(group))
		clusters = append(clusters, Cluster{
			Centroid:  geo.Point{Lat: sumLat / n, Lng: sumLng / n},
			Size:      len(group),
			AvgScore:  sumScore / n,
			Addresses: addresses,
		})
	}

	sort.SliceStable(clusters, func(a, b int) bool {
		return clusters[a].Size > clusters[b].Size
	})
	return clusters
}
