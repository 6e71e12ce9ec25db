package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/conversion-cli/internal/analysis"
	"github.com/sells-group/conversion-cli/internal/layer"
	"github.com/sells-group/conversion-cli/internal/scorer"
	"github.com/sells-group/conversion-cli/internal/store"
	"github.com/sells-group/conversion-cli/internal/zone"
)

// initStore creates the configured run-store backend.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		path := cfg.Store.Path
		if path == "" {
			path = "conversion.db"
		}
		return store.NewSQLite(path)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// loadLayers reads every configured geospatial layer. The buildings layer
// is required; the rest degrade to empty slices with a warning so a
// partial data drop still analyzes.
func loadLayers() (layer.Layers, error) {
	var layers layer.Layers

	if path := cfg.Layers.BuildingsShapefile; path != "" {
		buildings, res, err := layer.LoadBuildingsShapefile(path)
		if err != nil {
			return layers, eris.Wrapf(err, "load buildings shapefile %s", path)
		}
		zap.L().Info("loaded buildings shapefile",
			zap.String("path", path),
			zap.Int("parsed", res.Parsed),
			zap.Int("skipped", res.Skipped),
		)
		layers.Buildings = buildings
	} else {
		buildings, _, err := layer.LoadBuildings(cfg.Layers.Buildings)
		if err != nil {
			return layers, eris.Wrapf(err, "load buildings %s", cfg.Layers.Buildings)
		}
		layers.Buildings = buildings
	}

	var err error
	if layers.Listings, _, err = layer.LoadListings(cfg.Layers.Listings); err != nil {
		zap.L().Warn("listings layer unavailable", zap.String("path", cfg.Layers.Listings), zap.Error(err))
		layers.Listings = nil
	}
	if layers.Projects, _, err = layer.LoadProjects(cfg.Layers.Projects); err != nil {
		zap.L().Warn("projects layer unavailable", zap.String("path", cfg.Layers.Projects), zap.Error(err))
		layers.Projects = nil
	}
	if layers.Companies, _, err = layer.LoadCompanies(cfg.Layers.Companies); err != nil {
		zap.L().Warn("companies layer unavailable", zap.String("path", cfg.Layers.Companies), zap.Error(err))
		layers.Companies = nil
	}
	if layers.Features, _, err = layer.LoadFeatures(cfg.Layers.Features); err != nil {
		zap.L().Warn("features layer unavailable", zap.String("path", cfg.Layers.Features), zap.Error(err))
		layers.Features = nil
	}

	return layers, nil
}

// initAnalyzer builds the zone registry and analyzer from config.
func initAnalyzer() (*analysis.Analyzer, *zone.Registry, error) {
	if err := scorer.ValidateConfig(cfg.Scoring); err != nil {
		return nil, nil, err
	}

	layers, err := loadLayers()
	if err != nil {
		return nil, nil, err
	}

	zones := zone.NewRegistry(cfg.Zones)
	return analysis.New(zones, layers, cfg.Scoring), zones, nil
}
