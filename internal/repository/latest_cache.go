package repository

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"VitalSense/internal/domain/models"
	domrepo "VitalSense/internal/domain/repository"
	"VitalSense/pkg/cache"
)

// ErrNoAssessment is returned when a subject has no cached assessment.
var ErrNoAssessment = errors.New("no assessment for subject")

// CachedLatest keeps the last assessment per subject in a cache.Service.
// Writes never replace a newer assessment with an older one, so a delayed
// retry cannot roll the cached value back.
type CachedLatest struct {
	c     cache.Service
	ttl   time.Duration
	locks [32]sync.Mutex
}

var _ domrepo.LatestCache = (*CachedLatest)(nil)

func NewCachedLatest(c cache.Service, ttl time.Duration) *CachedLatest {
	return &CachedLatest{c: c, ttl: ttl}
}

func (l *CachedLatest) Name() string { return "latest_cache" }

func (l *CachedLatest) Deliver(ctx context.Context, a *models.RiskAssessment) error {
	return l.SetLatest(ctx, a)
}

func (l *CachedLatest) SetLatest(ctx context.Context, a *models.RiskAssessment) error {
	mu := l.lockFor(a.SubjectID)
	mu.Lock()
	defer mu.Unlock()

	var cur models.RiskAssessment
	if err := l.c.Get(ctx, latestKey(a.SubjectID), &cur); err == nil && supersedes(&cur, a) {
		return nil
	}
	if err := l.c.Set(ctx, latestKey(a.SubjectID), a, l.ttl); err != nil {
		return fmt.Errorf("cache latest %s: %w", a.SubjectID, err)
	}
	return nil
}

func (l *CachedLatest) GetLatest(ctx context.Context, subjectID string) (*models.RiskAssessment, error) {
	var a models.RiskAssessment
	if err := l.c.Get(ctx, latestKey(subjectID), &a); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, ErrNoAssessment
		}
		return nil, fmt.Errorf("read latest %s: %w", subjectID, err)
	}
	return &a, nil
}

func (l *CachedLatest) Delete(ctx context.Context, subjectID string) error {
	return l.c.Delete(ctx, latestKey(subjectID))
}

// supersedes reports whether cur is newer than next. A session restart
// resets Seq, so the assessment time has to agree before next is dropped.
func supersedes(cur, next *models.RiskAssessment) bool {
	return cur.Seq >= next.Seq && !cur.AssessedAt.Before(next.AssessedAt)
}

func (l *CachedLatest) lockFor(subjectID string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(subjectID))
	return &l.locks[h.Sum32()%uint32(len(l.locks))]
}

func latestKey(subjectID string) string {
	return cache.GenerateKey("latest", subjectID)
}
