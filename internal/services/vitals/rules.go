package vitals

import (
	"math"

	"VitalSense/internal/domain/models"
)

const (
	ReasonDangerousTemp   = "Dangerous body temperature"
	ReasonDangerousHR     = "Dangerous heart rate"
	ReasonBreedHR         = "Heart rate abnormal for breed size"
	ReasonTempRange       = "Temperature outside normal range"
	ReasonTempDeviation   = "Temperature deviating from baseline"
	ReasonHRDeviation     = "Heart rate deviating from baseline"
	ReasonTempRise        = "Sustained temperature rise"
	ReasonHRRise          = "Rapid heart rate increase"
	ReasonAnomaly         = "AI anomaly detected"
	ReasonFeverPattern    = "Possible fever pattern detected."
	ReasonStressSpike     = "Possible stress or anxiety spike."
	ReasonStable          = "Vitals stable and within normal range."
	AdviceImmediateVet    = "Immediate veterinary attention"
	AdviceCardiacDistress = "Check for cardiac distress"
	AdviceMonitor         = "Monitor 30 minutes"
	AdviceHydrate         = "Hydrate and recheck"
	AdviceProfileMismatch = "Possible incorrect subject profile input detected."
)

const (
	normalTempLow   = 38.3
	normalTempHigh  = 39.2
	fuzzyWeight     = 20.0
	fuzzyCap        = 40.0
	maxScore        = 100.0
	referenceHR     = 85.0
	retrainMaxScore = 20.0
)

// Thresholds is the level calibration. Scores at or above Critical are
// CRITICAL, at or above Warning are WARNING.
type Thresholds struct {
	Critical float64 `yaml:"critical" default:"70"`
	Warning  float64 `yaml:"warning" default:"40"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{Critical: 70, Warning: 40}
}

// Classify maps a score to a level.
func (t Thresholds) Classify(score float64) models.RiskLevel {
	switch {
	case score >= t.Critical:
		return models.RiskCritical
	case score >= t.Warning:
		return models.RiskWarning
	default:
		return models.RiskStable
	}
}

// Signals is everything the aggregator needs for one reading.
type Signals struct {
	Temp        float64
	HR          float64
	Breed       HRRange
	ZTemp       float64
	ZHR         float64
	TrendTemp   float64
	TrendHR     float64
	HasPoint    bool
	PointFlag   bool
	Anomaly     float64
	ReferenceHR float64
}

// Verdict is the aggregated risk for one reading.
type Verdict struct {
	Score           float64
	HealthIndex     float64
	Level           models.RiskLevel
	Reasons         []string
	Recommendations []string
}

type rule struct {
	fires  func(s Signals) bool
	points float64
	reason string
	advice string
}

// riskRules is evaluated in order; reasons and advice keep that order.
var riskRules = []rule{
	{func(s Signals) bool { return s.Temp > 40 || s.Temp < 35 }, 60, ReasonDangerousTemp, AdviceImmediateVet},
	{func(s Signals) bool { return s.HR > 180 || s.HR < 40 }, 50, ReasonDangerousHR, AdviceCardiacDistress},
	{func(s Signals) bool { return !s.Breed.Contains(s.HR) }, 25, ReasonBreedHR, AdviceMonitor},
	{func(s Signals) bool { return s.Temp < normalTempLow || s.Temp > normalTempHigh }, 20, ReasonTempRange, AdviceHydrate},
	{func(s Signals) bool { return s.ZTemp > 2 }, 20, ReasonTempDeviation, ""},
	{func(s Signals) bool { return s.ZHR > 2 }, 20, ReasonHRDeviation, ""},
	{func(s Signals) bool { return s.TrendTemp > 0.8 }, 15, ReasonTempRise, ""},
	{func(s Signals) bool { return s.TrendHR > 20 }, 15, ReasonHRRise, ""},
}

// informational rules add reasons without moving the score.
var patternRules = []rule{
	{func(s Signals) bool { return s.Temp > 39.5 && s.HR > s.ReferenceHR*1.2 }, 0, ReasonFeverPattern, ""},
	{func(s Signals) bool { return s.HR > s.ReferenceHR*1.4 && s.Temp < 39 }, 0, ReasonStressSpike, ""},
}

// Aggregate sums the capped contributions of every triggered rule and
// classifies the result.
func Aggregate(s Signals, th Thresholds) Verdict {
	if s.ReferenceHR == 0 {
		s.ReferenceHR = referenceHR
	}
	v := Verdict{Reasons: []string{}, Recommendations: []string{}}
	sum := 0.0
	for _, r := range riskRules {
		if !r.fires(s) {
			continue
		}
		sum += r.points
		v.Reasons = append(v.Reasons, r.reason)
		if r.advice != "" {
			v.Recommendations = append(v.Recommendations, r.advice)
		}
	}

	sum += capContribution(FuzzyTemperature(s.Temp)*fuzzyWeight, fuzzyCap)
	sum += capContribution(FuzzyHeartRate(s.HR, s.Breed.Min, s.Breed.Max)*fuzzyWeight, fuzzyCap)

	if s.HasPoint && s.PointFlag {
		sum += 20
		v.Reasons = append(v.Reasons, ReasonAnomaly)
	}

	for _, r := range patternRules {
		if r.fires(s) {
			v.Reasons = append(v.Reasons, r.reason)
		}
	}
	if len(v.Reasons) == 0 {
		v.Reasons = append(v.Reasons, ReasonStable)
	}

	v.Score = capContribution(sum, maxScore)
	v.HealthIndex = maxScore - v.Score
	v.Level = th.Classify(v.Score)
	return v
}

func capContribution(x, limit float64) float64 {
	if math.IsNaN(x) || x < 0 {
		return 0
	}
	return math.Min(x, limit)
}
