package vitals

import (
	"errors"
	"fmt"
	"math"
)

// ErrRejectedInput marks a reading that must not enter the history window.
var ErrRejectedInput = errors.New("rejected input")

// InputError describes why a reading was rejected.
type InputError struct {
	Field  string
	Value  float64
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("%s %v: %s", e.Field, e.Value, e.Reason)
}

func (e *InputError) Unwrap() error { return ErrRejectedInput }

// ValidateVitals accepts finite, strictly positive readings. Zero is the
// sentinel devices send when a sensor has no contact.
func ValidateVitals(temperature, heartRate float64) error {
	if err := checkValue("temperature", temperature); err != nil {
		return err
	}
	return checkValue("heart_rate", heartRate)
}

func checkValue(field string, v float64) error {
	switch {
	case math.IsNaN(v) || math.IsInf(v, 0):
		return &InputError{Field: field, Value: v, Reason: "not a finite number"}
	case v == 0:
		return &InputError{Field: field, Value: v, Reason: "sentinel zero reading"}
	case v < 0:
		return &InputError{Field: field, Value: v, Reason: "negative reading"}
	}
	return nil
}
