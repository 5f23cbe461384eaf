package features

import (
	"math"

	"VitalSense/internal/domain/models"
)

// Temperatures extracts the temperature series in window order.
func Temperatures(rs []models.Reading) []float64 {
	out := make([]float64, len(rs))
	for i, r := range rs {
		out[i] = r.Temperature
	}
	return out
}

// HeartRates extracts the heart-rate series in window order.
func HeartRates(rs []models.Reading) []float64 {
	out := make([]float64, len(rs))
	for i, r := range rs {
		out[i] = r.HeartRate
	}
	return out
}

// Vectors converts readings to [temperature, heart_rate] pairs for model input.
func Vectors(rs []models.Reading) [][2]float64 {
	out := make([][2]float64, len(rs))
	for i, r := range rs {
		out[i] = [2]float64{r.Temperature, r.HeartRate}
	}
	return out
}

// MeanStd returns the mean and population standard deviation of xs.
// Returns zeros for an empty slice.
func MeanStd(xs []float64) (float64, float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	n := float64(len(xs))
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	mean := sum / n
	ss := 0.0
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	variance := ss / n
	if variance < 0 {
		variance = 0
	}
	return mean, math.Sqrt(variance)
}

// Range returns max(xs) - min(xs), or 0 for an empty slice.
func Range(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	lo, hi := xs[0], xs[0]
	for _, x := range xs[1:] {
		if x < lo {
			lo = x
		}
		if x > hi {
			hi = x
		}
	}
	return hi - lo
}

// MinMaxScaler maps raw vitals into [0,1] per feature, matching the scaling the
// sequence model was trained with.
type MinMaxScaler struct {
	TempMin float64 `yaml:"temp_min" default:"35"`
	TempMax float64 `yaml:"temp_max" default:"42"`
	HRMin   float64 `yaml:"hr_min" default:"30"`
	HRMax   float64 `yaml:"hr_max" default:"220"`
}

// DefaultScaler returns the scaler ranges used for the deployed models.
func DefaultScaler() MinMaxScaler {
	return MinMaxScaler{TempMin: 35, TempMax: 42, HRMin: 30, HRMax: 220}
}

// Transform scales one [temperature, heart_rate] vector.
func (s MinMaxScaler) Transform(v [2]float64) [2]float64 {
	return [2]float64{
		scale(v[0], s.TempMin, s.TempMax),
		scale(v[1], s.HRMin, s.HRMax),
	}
}

// Inverse maps a scaled vector back to raw units.
func (s MinMaxScaler) Inverse(v [2]float64) [2]float64 {
	return [2]float64{
		v[0]*(s.TempMax-s.TempMin) + s.TempMin,
		v[1]*(s.HRMax-s.HRMin) + s.HRMin,
	}
}

func scale(x, lo, hi float64) float64 {
	if hi <= lo {
		return 0
	}
	return (x - lo) / (hi - lo)
}

// MeanSquaredError is the mean of squared per-feature differences.
func MeanSquaredError(a, b [2]float64) float64 {
	d0 := a[0] - b[0]
	d1 := a[1] - b[1]
	return (d0*d0 + d1*d1) / 2
}
