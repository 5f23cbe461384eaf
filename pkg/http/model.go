package http

import "time"

// APIResponse is the envelope every JSON endpoint except the probes returns.
// The HTTP status is always 200; Status carries the real outcome.
type APIResponse struct {
	Status  int         `json:"status" example:"200"`
	Message string      `json:"message" example:"OK"`
	Data    interface{} `json:"data,omitempty"`
}

// ValidationError represents validation error detail.
type ValidationError struct {
	Code    string                 `json:"code,omitempty" example:"ERR_REQUIRED"`
	Field   string                 `json:"field,omitempty" example:"subject_id"`
	Message string                 `json:"message,omitempty" example:"subject_id is required"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

// ListDataResponse is a list of rows and, for history queries, the window
// that was actually applied.
type ListDataResponse struct {
	Rows  interface{} `json:"rows"`
	Total int64       `json:"total"`
	Range *TimeRange  `json:"range,omitempty"`
}

// TimeRange is a resolved query window. Open bounds are omitted.
type TimeRange struct {
	From *time.Time `json:"from,omitempty"`
	To   *time.Time `json:"to,omitempty"`
}

// NewTimeRange drops zero bounds.
func NewTimeRange(from, to time.Time) *TimeRange {
	if from.IsZero() && to.IsZero() {
		return nil
	}
	r := &TimeRange{}
	if !from.IsZero() {
		r.From = &from
	}
	if !to.IsZero() {
		r.To = &to
	}
	return r
}
