package targets

import (
	"fmt"
	"os"
	"strings"

	"github.com/dennisdiepolder/monti/okr/internal/types"
	"gopkg.in/yaml.v3"
)

// Defaults holds the fallback target per category and metric key
type Defaults map[types.Category]map[string]float64

// DefaultTargets returns the built-in target table
func DefaultTargets() Defaults {
	return Defaults{
		types.CategoryProductivity: {
			types.MetricCallsPerHour:   12,
			types.MetricTasksCompleted: 30,
		},
		types.CategoryQuality: {
			types.MetricCSAT:    4.0,
			types.MetricQAScore: 85,
		},
		types.CategoryEfficiency: {
			types.MetricResponseTime:   6,
			types.MetricResolutionRate: 0.7,
		},
		types.CategoryEngagement: {
			types.MetricParticipationRate: 0.9,
			types.MetricFeedbackScore:     4.0,
		},
		types.CategoryGrowth: {
			types.MetricConversionRate: 0.25,
			types.MetricRevenue:        0,
		},
	}
}

// Get returns the default target for a metric, or 0 when none is configured
func (d Defaults) Get(category types.Category, metric string) float64 {
	return d[category][metric]
}

// LoadDefaults merges a YAML override onto DefaultTargets. The file maps
// category -> metric -> value; unknown categories are rejected.
func LoadDefaults(path string) (Defaults, error) {
	defaults := DefaultTargets()
	if path == "" {
		return defaults, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read targets file: %w", err)
	}

	var overrides map[string]map[string]float64
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("failed to parse targets file: %w", err)
	}

	for name, metrics := range overrides {
		category := types.Category(strings.ToLower(strings.TrimSpace(name)))
		if _, ok := types.CategoryTitles[category]; !ok {
			return nil, fmt.Errorf("unknown category %q in targets file", name)
		}
		for metric, value := range metrics {
			if value < 0 {
				return nil, fmt.Errorf("negative target %v for %s.%s", value, category, metric)
			}
			defaults[category][strings.ToLower(strings.TrimSpace(metric))] = value
		}
	}
	return defaults, nil
}
