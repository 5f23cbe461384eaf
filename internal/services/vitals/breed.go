package vitals

import (
	"strings"

	"VitalSense/internal/domain/models"
)

// HRRange is an acceptable heart-rate band in bpm.
type HRRange struct {
	Min float64
	Max float64
}

// Contains reports whether hr lies within the band (inclusive).
func (r HRRange) Contains(hr float64) bool {
	return hr >= r.Min && hr <= r.Max
}

var breedRanges = map[models.BreedGroup]HRRange{
	models.BreedSmall:   {Min: 90, Max: 140},
	models.BreedMedium:  {Min: 70, Max: 120},
	models.BreedLarge:   {Min: 60, Max: 100},
	models.BreedGiant:   {Min: 50, Max: 90},
	models.BreedUnknown: {Min: 60, Max: 140},
}

// ParseBreed maps free-form input to a known breed group; anything
// unrecognised is BreedUnknown.
func ParseBreed(s string) models.BreedGroup {
	b := models.BreedGroup(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := breedRanges[b]; ok {
		return b
	}
	return models.BreedUnknown
}

// BreedRange returns the normal heart-rate band for b.
func BreedRange(b models.BreedGroup) HRRange {
	if r, ok := breedRanges[b]; ok {
		return r
	}
	return breedRanges[models.BreedUnknown]
}
