package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"VitalSense/internal/domain/models"
	domrepo "VitalSense/internal/domain/repository"
	pkgch "VitalSense/pkg/clickhouse"
	applogger "VitalSense/pkg/logger"
)

const assessmentColumns = `id, subject_id, seq, assessed_at, temperature, heart_rate, breed_group,
	risk_score, health_index, risk_level, reasons, recommendations, anomaly_probability,
	consistency_flag, mean_temp, mean_hr, std_temp, std_hr, z_temp, z_hr, trend_temp, trend_hr,
	point_score, sequence_error, window_size, retrain_eligible, degraded`

// AssessmentSchema returns the DDL for the assessments table in database.
func AssessmentSchema(database string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.assessments (
	id String,
	subject_id String,
	seq UInt64,
	assessed_at DateTime64(3),
	temperature Float64,
	heart_rate Float64,
	breed_group LowCardinality(String),
	risk_score Float64,
	health_index Float64,
	risk_level LowCardinality(String),
	reasons Array(String),
	recommendations Array(String),
	anomaly_probability Float64,
	consistency_flag Bool,
	mean_temp Float64,
	mean_hr Float64,
	std_temp Float64,
	std_hr Float64,
	z_temp Float64,
	z_hr Float64,
	trend_temp Float64,
	trend_hr Float64,
	point_score Float64,
	sequence_error Float64,
	window_size UInt32,
	retrain_eligible Bool,
	degraded String
) ENGINE = MergeTree
PARTITION BY toYYYYMM(assessed_at)
ORDER BY (subject_id, assessed_at, seq)`, database),
	}
}

// ClickHouseAssessmentStore implements AssessmentStore backed by ClickHouse.
type ClickHouseAssessmentStore struct {
	ch    *pkgch.Client
	table string
	l     *applogger.Logger
}

var _ domrepo.AssessmentStore = (*ClickHouseAssessmentStore)(nil)

// NewClickHouseAssessmentStore stores rows in <database>.assessments.
func NewClickHouseAssessmentStore(ch *pkgch.Client, database string) *ClickHouseAssessmentStore {
	return &ClickHouseAssessmentStore{ch: ch, table: database + ".assessments"}
}

// SetLogger injects a structured logger.
func (s *ClickHouseAssessmentStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *ClickHouseAssessmentStore) Name() string { return "clickhouse" }

// Deliver lets the store act as a pipeline sink.
func (s *ClickHouseAssessmentStore) Deliver(ctx context.Context, a *models.RiskAssessment) error {
	return s.Store(ctx, a)
}

func (s *ClickHouseAssessmentStore) Store(ctx context.Context, a *models.RiskAssessment) error {
	args, err := assessmentArgs(a)
	if err != nil {
		return err
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(args)), ", ")
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", s.table, assessmentColumns, placeholders)
	if _, err := s.ch.ExecContext(ctx, "insert_assessment", q, args...); err != nil {
		if s.l != nil {
			s.l.Error("clickhouse insert assessment error",
				applogger.String("subject_id", a.SubjectID),
				applogger.Uint64("seq", a.Seq),
				applogger.Error(err),
			)
		}
		return fmt.Errorf("insert assessment: %w", err)
	}
	return nil
}

// Query returns the newest assessments first. Zero from/to leave that side open.
func (s *ClickHouseAssessmentStore) Query(ctx context.Context, subjectID string, from, to time.Time, limit int) ([]*models.RiskAssessment, error) {
	start := time.Now()
	where, args := assessmentFilter(subjectID, from, to)
	q := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY assessed_at DESC, seq DESC LIMIT ?",
		assessmentColumns, s.table, where)
	args = append(args, limit)

	rows, err := s.ch.QueryContext(ctx, "query_assessments", q, args...)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse query assessments error",
				applogger.String("subject_id", subjectID),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("query assessments: %w", err)
	}
	defer rows.Close()

	out := make([]*models.RiskAssessment, 0, limit)
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan assessment: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	if s.l != nil {
		s.l.Debug("clickhouse query assessments ok",
			applogger.String("subject_id", subjectID),
			applogger.Int("rows", len(out)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return out, nil
}

func (s *ClickHouseAssessmentStore) Health(ctx context.Context) error {
	return s.ch.Health(ctx)
}

// Close is a no-op; the client owns the pool.
func (s *ClickHouseAssessmentStore) Close() error {
	return nil
}

func assessmentFilter(subjectID string, from, to time.Time) (string, []any) {
	conds := []string{"subject_id = ?"}
	args := []any{subjectID}
	if !from.IsZero() {
		conds = append(conds, "assessed_at >= ?")
		args = append(args, from)
	}
	if !to.IsZero() {
		conds = append(conds, "assessed_at <= ?")
		args = append(args, to)
	}
	return strings.Join(conds, " AND "), args
}

func assessmentArgs(a *models.RiskAssessment) ([]any, error) {
	degraded := "{}"
	if len(a.Degraded) > 0 {
		b, err := json.Marshal(a.Degraded)
		if err != nil {
			return nil, fmt.Errorf("encode degraded: %w", err)
		}
		degraded = string(b)
	}
	return []any{
		a.ID, a.SubjectID, a.Seq, a.AssessedAt, a.Temperature, a.HeartRate, string(a.Breed),
		a.RiskScore, a.HealthIndex, string(a.RiskLevel), nonNil(a.Reasons), nonNil(a.Recommendations),
		a.AnomalyProbability, a.ConsistencyFlag,
		a.Baseline.MeanTemp, a.Baseline.MeanHR, a.Baseline.StdTemp, a.Baseline.StdHR,
		a.ZTemp, a.ZHR, a.TrendTemp, a.TrendHR,
		a.PointScore, a.SequenceError, uint32(a.WindowSize), a.RetrainEligible, degraded,
	}, nil
}

func scanAssessment(rows *sql.Rows) (*models.RiskAssessment, error) {
	var (
		a          models.RiskAssessment
		breed      string
		level      string
		windowSize uint32
		degraded   string
	)
	err := rows.Scan(
		&a.ID, &a.SubjectID, &a.Seq, &a.AssessedAt, &a.Temperature, &a.HeartRate, &breed,
		&a.RiskScore, &a.HealthIndex, &level, &a.Reasons, &a.Recommendations,
		&a.AnomalyProbability, &a.ConsistencyFlag,
		&a.Baseline.MeanTemp, &a.Baseline.MeanHR, &a.Baseline.StdTemp, &a.Baseline.StdHR,
		&a.ZTemp, &a.ZHR, &a.TrendTemp, &a.TrendHR,
		&a.PointScore, &a.SequenceError, &windowSize, &a.RetrainEligible, &degraded,
	)
	if err != nil {
		return nil, err
	}
	a.Breed = models.BreedGroup(breed)
	a.RiskLevel = models.RiskLevel(level)
	a.WindowSize = int(windowSize)
	a.Degraded, err = decodeDegraded(degraded)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func decodeDegraded(s string) (map[string]string, error) {
	if s == "" || s == "{}" {
		return nil, nil
	}
	m := make(map[string]string)
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, fmt.Errorf("decode degraded: %w", err)
	}
	return m, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
