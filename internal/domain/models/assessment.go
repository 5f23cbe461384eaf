package models

import "time"

// RiskLevel is the discrete severity of an assessment.
type RiskLevel string

const (
	RiskStable   RiskLevel = "STABLE"
	RiskWarning  RiskLevel = "WARNING"
	RiskCritical RiskLevel = "CRITICAL"
)

// AnomalyOutputs holds the raw signals produced by the frozen external models.
// Higher values mean more anomalous.
type AnomalyOutputs struct {
	PointFlag     bool
	PointScore    float64
	SequenceError float64
	HasPoint      bool
	HasSequence   bool
}

// RiskAssessment is created fresh per reading and never mutated after return.
type RiskAssessment struct {
	ID                 string            `json:"id"`
	SubjectID          string            `json:"subject_id"`
	Seq                uint64            `json:"seq"`
	Temperature        float64           `json:"temperature"`
	HeartRate          float64           `json:"heart_rate"`
	Breed              BreedGroup        `json:"breed_group"`
	RiskScore          float64           `json:"risk_score"`
	HealthIndex        float64           `json:"health_index"`
	RiskLevel          RiskLevel         `json:"risk_level"`
	Reasons            []string          `json:"reasons"`
	Recommendations    []string          `json:"recommendations"`
	AnomalyProbability float64           `json:"anomaly_probability"`
	ConsistencyFlag    bool              `json:"consistency_flag"`
	Baseline           BaselineStats     `json:"baseline"`
	ZTemp              float64           `json:"z_temp"`
	ZHR                float64           `json:"z_hr"`
	TrendTemp          float64           `json:"trend_temp"`
	TrendHR            float64           `json:"trend_hr"`
	PointScore         float64           `json:"point_score"`
	SequenceError      float64           `json:"sequence_error"`
	WindowSize         int               `json:"window_size"`
	RetrainEligible    bool              `json:"retrain_eligible"`
	Degraded           map[string]string `json:"degraded,omitempty"`
	AssessedAt         time.Time         `json:"assessed_at"`
}

// ParameterDelta is the opaque output of a local adaptation step.
// It carries derived parameters only, never raw readings.
type ParameterDelta struct {
	SubjectID string             `json:"subject_id"`
	Seq       uint64             `json:"seq"`
	Model     string             `json:"model"`
	Deltas    map[string]float64 `json:"deltas"`
	Samples   int                `json:"samples"`
	Loss      float64            `json:"loss"`
	CreatedAt time.Time          `json:"created_at"`
}
