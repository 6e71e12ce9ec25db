// Package config loads application configuration from file and
// environment and initializes the global logger.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/conversion-cli/internal/zone"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig   `yaml:"store" mapstructure:"store"`
	Layers    LayersConfig  `yaml:"layers" mapstructure:"layers"`
	Scoring   ScoringConfig `yaml:"scoring" mapstructure:"scoring"`
	Zones     []zone.Zone   `yaml:"zones" mapstructure:"zones"`
	ZonesFile string        `yaml:"zones_file" mapstructure:"zones_file"`
	Server    ServerConfig  `yaml:"server" mapstructure:"server"`
	Log       LogConfig     `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the run-store backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// LayersConfig holds input file paths for the geospatial layers.
type LayersConfig struct {
	Buildings          string `yaml:"buildings" mapstructure:"buildings"`
	BuildingsShapefile string `yaml:"buildings_shapefile" mapstructure:"buildings_shapefile"`
	Listings           string `yaml:"listings" mapstructure:"listings"`
	Projects           string `yaml:"projects" mapstructure:"projects"`
	Companies          string `yaml:"companies" mapstructure:"companies"`
	Features           string `yaml:"features" mapstructure:"features"`
}

// ScoringConfig holds every weight, radius, and penalty used by the
// scoring and clustering pipeline. It is passed into the core by value;
// nothing in the pipeline mutates it.
type ScoringConfig struct {
	// Composite weights (must sum to 1.0).
	BaseWeight            float64 `yaml:"base_weight" mapstructure:"base_weight"`
	AmenityWeight         float64 `yaml:"amenity_weight" mapstructure:"amenity_weight"`
	InvestmentWeight      float64 `yaml:"investment_weight" mapstructure:"investment_weight"`
	WalkabilityWeight     float64 `yaml:"walkability_weight" mapstructure:"walkability_weight"`
	EconomicDensityWeight float64 `yaml:"economic_density_weight" mapstructure:"economic_density_weight"`

	// Amenity accessibility.
	AmenityRadiusMeters  float64            `yaml:"amenity_radius_meters" mapstructure:"amenity_radius_meters"`
	AmenityNormalization float64            `yaml:"amenity_normalization" mapstructure:"amenity_normalization"`
	AmenityWeights       map[string]float64 `yaml:"amenity_weights" mapstructure:"amenity_weights"`

	// Public investment momentum.
	InvestmentRadiusMeters float64 `yaml:"investment_radius_meters" mapstructure:"investment_radius_meters"`

	// Walkability.
	WalkabilityRadiusMeters float64  `yaml:"walkability_radius_meters" mapstructure:"walkability_radius_meters"`
	WalkabilityBase         float64  `yaml:"walkability_base" mapstructure:"walkability_base"`
	PedestrianBonus         float64  `yaml:"pedestrian_bonus" mapstructure:"pedestrian_bonus"`
	ParkingPenalty          float64  `yaml:"parking_penalty" mapstructure:"parking_penalty"`
	HighwayPenalty          float64  `yaml:"highway_penalty" mapstructure:"highway_penalty"`
	CorridorBonus           float64  `yaml:"corridor_bonus" mapstructure:"corridor_bonus"`
	PedestrianCategories    []string `yaml:"pedestrian_categories" mapstructure:"pedestrian_categories"`
	ParkingCategories       []string `yaml:"parking_categories" mapstructure:"parking_categories"`
	HighwayCategories       []string `yaml:"highway_categories" mapstructure:"highway_categories"`
	CorridorCategories      []string `yaml:"corridor_categories" mapstructure:"corridor_categories"`

	// Clustering potential factor.
	ClusterPotentialRadiusMeters float64  `yaml:"cluster_potential_radius_meters" mapstructure:"cluster_potential_radius_meters"`
	ClusterPotentialFlatBonus    float64  `yaml:"cluster_potential_flat_bonus" mapstructure:"cluster_potential_flat_bonus"`
	SupportingAmenityBonus       float64  `yaml:"supporting_amenity_bonus" mapstructure:"supporting_amenity_bonus"`
	SupportingAmenityCategories  []string `yaml:"supporting_amenity_categories" mapstructure:"supporting_amenity_categories"`

	// Economic density.
	EconomicDensityRadiusMeters float64 `yaml:"economic_density_radius_meters" mapstructure:"economic_density_radius_meters"`
	EconomicDensityDivisor      float64 `yaml:"economic_density_divisor" mapstructure:"economic_density_divisor"`

	// Candidate identity and critical-mass clustering.
	IdentityThresholdMeters float64 `yaml:"identity_threshold_meters" mapstructure:"identity_threshold_meters"`
	ClusterRadiusMeters     float64 `yaml:"cluster_radius_meters" mapstructure:"cluster_radius_meters"`
	ClusterMinSize          int     `yaml:"cluster_min_size" mapstructure:"cluster_min_size"`

	// Result shaping.
	TopN           int     `yaml:"top_n" mapstructure:"top_n"`
	ScoreThreshold float64 `yaml:"score_threshold" mapstructure:"score_threshold"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	RatePerSecond  float64  `yaml:"rate_per_second" mapstructure:"rate_per_second"`
	RateBurst      int      `yaml:"rate_burst" mapstructure:"rate_burst"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CONVERSION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	// An external zone file replaces the inline zone table entirely.
	if cfg.ZonesFile != "" {
		zones, err := zone.LoadFile(cfg.ZonesFile)
		if err != nil {
			return nil, err
		}
		cfg.Zones = zones
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "conversion.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_per_second", 10)
	v.SetDefault("server.rate_burst", 20)

	v.SetDefault("layers.buildings", "data/buildings.geojson")
	v.SetDefault("layers.listings", "data/listings.geojson")
	v.SetDefault("layers.projects", "data/projects.geojson")
	v.SetDefault("layers.companies", "data/companies.geojson")
	v.SetDefault("layers.features", "data/features.geojson")

	v.SetDefault("scoring.base_weight", 0.30)
	v.SetDefault("scoring.amenity_weight", 0.25)
	v.SetDefault("scoring.investment_weight", 0.20)
	v.SetDefault("scoring.walkability_weight", 0.15)
	v.SetDefault("scoring.economic_density_weight", 0.10)

	v.SetDefault("scoring.amenity_radius_meters", 400)
	v.SetDefault("scoring.amenity_normalization", 20)
	v.SetDefault("scoring.amenity_weights", map[string]float64{
		"dining":        3.0,
		"entertainment": 2.0,
		"hotels":        2.0,
		"commercial":    1.5,
		"pedestrian":    1.0,
	})

	v.SetDefault("scoring.investment_radius_meters", 600)

	v.SetDefault("scoring.walkability_radius_meters", 800)
	v.SetDefault("scoring.walkability_base", 1.0)
	v.SetDefault("scoring.pedestrian_bonus", 0.1)
	v.SetDefault("scoring.parking_penalty", 0.15)
	v.SetDefault("scoring.highway_penalty", 0.3)
	v.SetDefault("scoring.corridor_bonus", 0.3)
	v.SetDefault("scoring.pedestrian_categories", []string{"restaurant", "cafe", "park", "footway"})
	v.SetDefault("scoring.parking_categories", []string{"parking"})
	v.SetDefault("scoring.highway_categories", []string{"highway"})
	v.SetDefault("scoring.corridor_categories", []string{"corridor"})

	v.SetDefault("scoring.cluster_potential_radius_meters", 300)
	v.SetDefault("scoring.cluster_potential_flat_bonus", 0.2)
	v.SetDefault("scoring.supporting_amenity_bonus", 0.05)
	v.SetDefault("scoring.supporting_amenity_categories", []string{"commercial"})

	v.SetDefault("scoring.economic_density_radius_meters", 400)
	v.SetDefault("scoring.economic_density_divisor", 20)

	v.SetDefault("scoring.identity_threshold_meters", 50)
	v.SetDefault("scoring.cluster_radius_meters", 300)
	v.SetDefault("scoring.cluster_min_size", 3)

	v.SetDefault("scoring.top_n", 10)
	v.SetDefault("scoring.score_threshold", 0.7)

	v.SetDefault("zones", defaultZoneTable())
}

// defaultZoneTable is the static Houston zone set the dashboards cover.
func defaultZoneTable() []map[string]any {
	return []map[string]any{
		{"id": "downtown", "name": "Downtown", "center": map[string]any{"lat": 29.7604, "lng": -95.3698}, "radius_meters": 1500.0},
		{"id": "midtown", "name": "Midtown", "center": map[string]any{"lat": 29.7499, "lng": -95.3582}, "radius_meters": 1000.0},
		{"id": "eado", "name": "East Downtown", "center": map[string]any{"lat": 29.7495, "lng": -95.3415}, "radius_meters": 1200.0},
		{"id": "museum-district", "name": "Museum District", "center": map[string]any{"lat": 29.7256, "lng": -95.3850}, "radius_meters": 1000.0},
		{"id": "montrose", "name": "Montrose", "center": map[string]any{"lat": 29.7425, "lng": -95.3905}, "radius_meters": 1200.0},
		{"id": "medical-center", "name": "Texas Medical Center", "center": map[string]any{"lat": 29.7070, "lng": -95.4017}, "radius_meters": 1500.0},
	}
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
