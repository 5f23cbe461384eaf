package usecase

import (
	"context"
	"sync"
	"time"

	"VitalSense/internal/domain/models"
	"VitalSense/internal/services/vitals"
	"VitalSense/pkg/logger"
)

// EngineFactory builds a fresh engine for a subject seen for the first time.
type EngineFactory func(subjectID string) *vitals.Engine

type session struct {
	engine   *vitals.Engine
	profile  models.SubjectProfile
	lastSeen time.Time
}

// SessionRegistry owns one engine per subject. Engines are never shared
// across subjects and are dropped on End or after idleTTL without readings.
type SessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]*session
	factory  EngineFactory
	idleTTL  time.Duration
	now      func() time.Time
	l        *logger.Logger
}

func NewSessionRegistry(factory EngineFactory, idleTTL time.Duration, l *logger.Logger) *SessionRegistry {
	return &SessionRegistry{
		sessions: make(map[string]*session),
		factory:  factory,
		idleTTL:  idleTTL,
		now:      time.Now,
		l:        l,
	}
}

// Acquire returns the subject's engine, creating it on first use. A non-nil
// profile replaces the stored one; the effective profile is returned.
func (r *SessionRegistry) Acquire(subjectID string, profile *models.SubjectProfile) (*vitals.Engine, models.SubjectProfile) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[subjectID]
	if !ok {
		s = &session{
			engine:  r.factory(subjectID),
			profile: models.SubjectProfile{Breed: models.BreedUnknown},
		}
		r.sessions[subjectID] = s
		if r.l != nil {
			r.l.Info("session started", logger.String("subject_id", subjectID))
		}
	}
	if profile != nil {
		s.profile = *profile
	}
	s.lastSeen = r.now()
	return s.engine, s.profile
}

// End destroys the subject's session. It reports whether one existed.
func (r *SessionRegistry) End(subjectID string) bool {
	r.mu.Lock()
	_, ok := r.sessions[subjectID]
	delete(r.sessions, subjectID)
	r.mu.Unlock()
	if ok && r.l != nil {
		r.l.Info("session ended", logger.String("subject_id", subjectID))
	}
	return ok
}

func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep evicts sessions idle for longer than idleTTL and returns their ids.
func (r *SessionRegistry) Sweep() []string {
	if r.idleTTL <= 0 {
		return nil
	}
	cutoff := r.now().Add(-r.idleTTL)

	r.mu.Lock()
	var evicted []string
	for id, s := range r.sessions {
		if s.lastSeen.Before(cutoff) {
			delete(r.sessions, id)
			evicted = append(evicted, id)
		}
	}
	r.mu.Unlock()

	if len(evicted) > 0 && r.l != nil {
		r.l.Info("idle sessions evicted", logger.Int("count", len(evicted)))
	}
	return evicted
}

// Run sweeps on every interval tick until ctx is done. onEvict, if set, is
// called for each evicted subject.
func (r *SessionRegistry) Run(ctx context.Context, interval time.Duration, onEvict func(subjectID string)) {
	if interval <= 0 {
		interval = time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			for _, id := range r.Sweep() {
				if onEvict != nil {
					onEvict(id)
				}
			}
		}
	}
}
