// Package zone defines named analysis regions and radius-based feature
// filtering over them.
package zone

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/conversion-cli/internal/geo"
)

// ErrNotFound is returned when a zone id has no definition. Callers are
// expected to treat this as fatal for that zone only and substitute an
// empty result rather than aborting the batch.
var ErrNotFound = eris.New("zone: not found")

// Zone is a named circular analysis region.
type Zone struct {
	ID           string    `json:"id" yaml:"id" mapstructure:"id"`
	Name         string    `json:"name" yaml:"name" mapstructure:"name"`
	Center       geo.Point `json:"center" yaml:"center" mapstructure:"center"`
	RadiusMeters float64   `json:"radius_meters" yaml:"radius_meters" mapstructure:"radius_meters"`
}

// Registry is an ordered, immutable set of zone definitions.
type Registry struct {
	zones []Zone
	byID  map[string]Zone
}

// NewRegistry builds a registry from static zone definitions. Later
// definitions with a duplicate id override earlier ones for lookup but
// input order is preserved for listing.
func NewRegistry(zones []Zone) *Registry {
	byID := make(map[string]Zone, len(zones))
	for _, z := range zones {
		byID[z.ID] = z
	}
	return &Registry{zones: zones, byID: byID}
}

// Get returns the zone for an id, or ErrNotFound.
func (r *Registry) Get(id string) (Zone, error) {
	z, ok := r.byID[id]
	if !ok {
		return Zone{}, eris.Wrapf(ErrNotFound, "zone: %q", id)
	}
	return z, nil
}

// All returns the zones in definition order.
func (r *Registry) All() []Zone {
	out := make([]Zone, len(r.zones))
	copy(out, r.zones)
	return out
}

// LoadFile reads zone definitions from a YAML file. The file holds a
// plain list of zones, so city teams can maintain it without touching
// the main config.
func LoadFile(path string) ([]Zone, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "zone: read %s", path)
	}

	var zones []Zone
	if err := yaml.Unmarshal(data, &zones); err != nil {
		return nil, eris.Wrapf(err, "zone: parse %s", path)
	}

	for i, z := range zones {
		if z.ID == "" {
			return nil, eris.Errorf("zone: entry %d has no id", i)
		}
		if z.RadiusMeters <= 0 {
			return nil, eris.Errorf("zone: %q has non-positive radius", z.ID)
		}
	}
	return zones, nil
}

// Locatable is anything with a representative coordinate pair.
type Locatable interface {
	Coordinates() geo.Point
}

// FilterByZone retains the items within the zone's radius, preserving
// input order.
func FilterByZone[T Locatable](items []T, z Zone) []T {
	var out []T
	for _, item := range items {
		if geo.WithinRadius(item.Coordinates(), z.Center, z.RadiusMeters) {
			out = append(out, item)
		}
	}
	return out
}

// GroupByCategory buckets items by the category returned by keyFn.
// Bucket contents preserve input order.
func GroupByCategory[T any](items []T, keyFn func(T) string) map[string][]T {
	out := make(map[string][]T)
	for _, item := range items {
		k := keyFn(item)
		out[k] = append(out[k], item)
	}
	return out
}
