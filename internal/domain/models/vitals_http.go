package models

// Requests for the vitals HTTP and stream endpoints. Defined in domain for reuse
// by the Echo handler and the Kafka/WebSocket ingestion paths.

type ReadingRequest struct {
	SubjectID   string   `json:"subject_id" validate:"required,max=128,subjectid"`
	Temperature *float64 `json:"temperature" validate:"required"`
	HeartRate   *float64 `json:"heart_rate" validate:"required"`
	BreedGroup  string   `json:"breed_group" validate:"omitempty,oneof=small medium large giant unknown"`
	WeightKg    float64  `json:"weight" validate:"gte=0,lte=150"`
	AgeYears    float64  `json:"age" validate:"gte=0,lte=40"`
}

type SubjectPath struct {
	SubjectID string `param:"id" validate:"required,max=128,subjectid"`
}

type AssessmentsQuery struct {
	SubjectID string `param:"id" validate:"required,max=128,subjectid"`
	From      string `query:"from"`
	To        string `query:"to"`
	Limit     int    `query:"limit" default:"100" validate:"gte=1,lte=1000"`
}
