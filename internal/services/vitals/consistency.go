package vitals

import (
	"VitalSense/internal/domain/models"
	"VitalSense/internal/services/features"
)

// ConsistencyConfig controls the data-consistency monitor.
type ConsistencyConfig struct {
	Window       int     `yaml:"window" default:"12"`
	MaxTempRange float64 `yaml:"max_temp_range" default:"8"`
}

func DefaultConsistencyConfig() ConsistencyConfig {
	return ConsistencyConfig{Window: 12, MaxTempRange: 8}
}

// Inconsistent reports whether the most recent cfg.Window readings show a
// temperature spread too wide to be physiological. Shorter windows are never
// flagged.
func Inconsistent(window []models.Reading, cfg ConsistencyConfig) bool {
	if cfg.Window <= 0 || len(window) < cfg.Window {
		return false
	}
	recent := window[len(window)-cfg.Window:]
	return features.Range(features.Temperatures(recent)) > cfg.MaxTempRange
}
