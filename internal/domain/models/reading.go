package models

import "time"

// Reading is one accepted vital-sign sample. Immutable once recorded.
type Reading struct {
	SubjectID   string
	Seq         uint64
	Temperature float64 // °C
	HeartRate   float64 // bpm
	ReceivedAt  time.Time
}

// BreedGroup is the breed-size class used for heart-rate normal ranges.
type BreedGroup string

const (
	BreedSmall   BreedGroup = "small"
	BreedMedium  BreedGroup = "medium"
	BreedLarge   BreedGroup = "large"
	BreedGiant   BreedGroup = "giant"
	BreedUnknown BreedGroup = "unknown"
)

// SubjectProfile carries optional per-subject attributes delivered with readings.
type SubjectProfile struct {
	Breed    BreedGroup
	WeightKg float64
	AgeYears float64
}

// BaselineStats is derived from the history window on every reading.
type BaselineStats struct {
	MeanTemp float64 `json:"mean_temp"`
	MeanHR   float64 `json:"mean_hr"`
	StdTemp  float64 `json:"std_temp"`
	StdHR    float64 `json:"std_hr"`
}
