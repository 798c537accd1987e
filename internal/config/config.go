package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/joshharrison/shopledger/internal/graph"
	"github.com/joshharrison/shopledger/internal/narrative"
	"github.com/joshharrison/shopledger/internal/resource"
)

// Config holds shopledger settings from shopledger.yaml, SHOPLEDGER_* env
// variables and .env.
type Config struct {
	Resource  ResourceConfig
	Schedule  ScheduleConfig
	Database  DatabaseConfig
	Narrative NarrativeConfig
	Viewer    ViewerConfig
	Portfolio PortfolioConfig
}

type ResourceConfig struct {
	CapacityHours float64
}

type ScheduleConfig struct {
	DefaultDurationDays int
}

type DatabaseConfig struct {
	URL string
}

type NarrativeConfig struct {
	APIKey string
	Model  string
}

type ViewerConfig struct {
	Port int
}

type PortfolioConfig struct {
	MaxParallel int
}

// DefaultNarrativeModel is used when narrative.model is unset.
const DefaultNarrativeModel = narrative.DefaultModel

// Load reads configuration. path may be empty, in which case shopledger.yaml
// is looked up in the working directory and a missing file is not an error.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetDefault("resource.capacity_hours", resource.DefaultCapacityHours)
	v.SetDefault("schedule.default_duration_days", graph.DefaultDurationDays)
	v.SetDefault("narrative.model", DefaultNarrativeModel)
	v.SetDefault("viewer.port", 7272)
	v.SetDefault("portfolio.max_parallel", 4)

	v.SetEnvPrefix("SHOPLEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("shopledger")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{
		Resource:  ResourceConfig{CapacityHours: v.GetFloat64("resource.capacity_hours")},
		Schedule:  ScheduleConfig{DefaultDurationDays: v.GetInt("schedule.default_duration_days")},
		Database:  DatabaseConfig{URL: firstNonEmpty(v.GetString("database.url"), os.Getenv("DATABASE_URL"))},
		Narrative: NarrativeConfig{APIKey: firstNonEmpty(v.GetString("narrative.api_key"), os.Getenv("ANTHROPIC_API_KEY")), Model: v.GetString("narrative.model")},
		Viewer:    ViewerConfig{Port: v.GetInt("viewer.port")},
		Portfolio: PortfolioConfig{MaxParallel: v.GetInt("portfolio.max_parallel")},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the analyzers cannot use.
func (c *Config) Validate() error {
	if c.Resource.CapacityHours <= 0 {
		return fmt.Errorf("resource.capacity_hours must be positive, got %g", c.Resource.CapacityHours)
	}
	if c.Schedule.DefaultDurationDays < 0 {
		return fmt.Errorf("schedule.default_duration_days must not be negative, got %d", c.Schedule.DefaultDurationDays)
	}
	if c.Viewer.Port <= 0 || c.Viewer.Port > 65535 {
		return fmt.Errorf("viewer.port out of range: %d", c.Viewer.Port)
	}
	if c.Portfolio.MaxParallel < 1 {
		return fmt.Errorf("portfolio.max_parallel must be at least 1, got %d", c.Portfolio.MaxParallel)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
