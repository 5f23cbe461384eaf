package vitals

// FuzzyTemperature maps a temperature to a severity degree:
// 0 up to 38.3, linear to 1 at 39.2, 1+(t-39.2) up to 40, and 2 above.
func FuzzyTemperature(t float64) float64 {
	switch {
	case t <= 38.3:
		return 0
	case t < 39.2:
		return (t - 38.3) / (39.2 - 38.3)
	case t <= 40:
		return 1 + (t - 39.2)
	default:
		return 2
	}
}

// FuzzyHeartRate is 0 inside [lo,hi] and grows without bound outside it,
// relative to the violated bound.
func FuzzyHeartRate(hr, lo, hi float64) float64 {
	switch {
	case hr > hi:
		return (hr - hi) / hi
	case hr < lo:
		return (lo - hr) / lo
	default:
		return 0
	}
}
