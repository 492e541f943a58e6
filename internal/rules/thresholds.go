package rules

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Fixed rule thresholds. These mirror the behavior the rules were tuned
// against in production and are deliberately not configurable; the ranking
// weights below are.
const (
	BindParameterLiteralMin = 2

	OrderByNoLimitSuppressRows = 10000
	OrderByNoLimitBigResult    = 100000

	CaseTransformWarnCount = 3
	CaseTransformHighCount = 10

	WriteAmplificationIndexes = 3

	IncludeColumnRowCeiling = 5000
	IncludeColumnMax        = 10
	IndexNameMaxLen         = 63
	IndexNameColLen         = 12

	AnalyticKvRowsScanned = 100000

	HtWriteCostRowsChanged = 1_000_000

	SlowProcFloorSec    = 60
	SlowProcHighSec     = 1800
	SlowProcCriticalSec = 3600

	ChildBucketShare   = 0.60
	ChildQueueShare    = 0.10
	ThrottleRatioHigh  = 0.30
	ThrottleRatioWarn  = 0.15
	SpillRemoteBudget  = 1 << 30
	SpillLocalBudget   = 128 << 20
)

// RankWeights is the additive rubric used to pick the primary cause among
// all findings. Severity base points plus fixed bonuses for the patterns
// that dominate real incidents.
type RankWeights struct {
	SeverityCritical int `yaml:"severity_critical"`
	SeverityHigh     int `yaml:"severity_high"`
	SeverityMedium   int `yaml:"severity_medium"`
	SeverityLow      int `yaml:"severity_low"`

	HtWithoutIndexes    int `yaml:"ht_without_indexes"`
	HtIndexesNotUsed    int `yaml:"ht_indexes_not_used"`
	KvScanNoCoverage    int `yaml:"kv_scan_no_coverage"`
	SpillRemote         int `yaml:"spill_remote"`
	SpillLocal          int `yaml:"spill_local"`
	ThrottledTinyResult int `yaml:"throttled_tiny_result"`
	LargeScanTinyResult int `yaml:"large_scan_tiny_result"`
	UnboundedSort       int `yaml:"unbounded_sort"`
}

type Thresholds struct {
	Rank RankWeights `yaml:"rank"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		Rank: RankWeights{
			SeverityCritical:    40,
			SeverityHigh:        30,
			SeverityMedium:      15,
			SeverityLow:         5,
			HtWithoutIndexes:    100,
			HtIndexesNotUsed:    60,
			KvScanNoCoverage:    50,
			SpillRemote:         40,
			SpillLocal:          20,
			ThrottledTinyResult: 30,
			LargeScanTinyResult: 20,
			UnboundedSort:       15,
		},
	}
}

// LoadThresholds overlays a YAML file onto the defaults. Missing keys keep
// their default weight.
func LoadThresholds(path string) (Thresholds, error) {
	t := DefaultThresholds()
	if path == "" {
		return t, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return t, fmt.Errorf("reading thresholds: %w", err)
	}
	if err := yaml.Unmarshal(data, &t); err != nil {
		return t, fmt.Errorf("parsing thresholds: %w", err)
	}
	return t, nil
}
