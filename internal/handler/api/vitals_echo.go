package api

import (
	"context"
	"errors"
	"time"

	"github.com/labstack/echo/v4"

	models "VitalSense/internal/domain/models"
	domrepo "VitalSense/internal/domain/repository"
	"VitalSense/internal/repository"
	"VitalSense/internal/service/ratelimit"
	"VitalSense/internal/services/vitals"
	"VitalSense/internal/usecase"
	xhttp "VitalSense/pkg/http"
	xlogger "VitalSense/pkg/logger"
)

// RateLimit is the per-client token bucket applied to reading ingestion.
type RateLimit struct {
	Capacity        float64
	RefillPerSecond float64
}

// VitalsEchoHandler serves reading ingestion and assessment lookups.
type VitalsEchoHandler struct {
	logger  *xlogger.Logger
	proc    *usecase.AssessmentProcessor
	latest  domrepo.LatestCache
	store   domrepo.AssessmentStore
	limiter *ratelimit.Limiter
	rate    RateLimit
}

// NewVitalsEchoHandler wires the handler. latest, store and limiter may be nil.
func NewVitalsEchoHandler(
	logger *xlogger.Logger,
	proc *usecase.AssessmentProcessor,
	latest domrepo.LatestCache,
	store domrepo.AssessmentStore,
	limiter *ratelimit.Limiter,
	rate RateLimit,
) *VitalsEchoHandler {
	return &VitalsEchoHandler{logger: logger, proc: proc, latest: latest, store: store, limiter: limiter, rate: rate}
}

func (h *VitalsEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)

	g := e.Group("/api")
	g.POST("/readings", h.Ingest)
	g.GET("/subjects/:id/latest", h.Latest)
	g.GET("/subjects/:id/assessments", h.Assessments)
	g.DELETE("/subjects/:id", h.EndSession)
}

// retryAfter is the time one token takes to refill.
func (r RateLimit) retryAfter() time.Duration {
	if r.RefillPerSecond <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / r.RefillPerSecond)
}

func (h *VitalsEchoHandler) Ingest(c echo.Context) error {
	if h.limiter != nil && !h.limiter.Allow(c.RealIP(), h.rate.Capacity, h.rate.RefillPerSecond) {
		return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("too many readings, slow down", h.rate.retryAfter()))
	}

	req := &models.ReadingRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	a, err := h.proc.Process(c.Request().Context(), req)
	if err != nil {
		var ie *vitals.InputError
		if errors.As(err, &ie) {
			return xhttp.AppErrorResponse(c, xhttp.UnprocessableError(ie.Field, ie.Error()))
		}
		h.logger.Error("assess reading error",
			xlogger.String("subject_id", req.SubjectID),
			xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, a)
}

func (h *VitalsEchoHandler) Latest(c echo.Context) error {
	req := &models.SubjectPath{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if h.latest == nil {
		return xhttp.AppErrorResponse(c, xhttp.UnavailableError("latest assessment cache is disabled"))
	}

	a, err := h.latest.GetLatest(c.Request().Context(), req.SubjectID)
	if err != nil {
		if errors.Is(err, repository.ErrNoAssessment) {
			return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("no assessment for subject %s", req.SubjectID))
		}
		h.logger.Error("latest assessment error", xlogger.String("subject_id", req.SubjectID), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return xhttp.SuccessResponse(c, a)
}

func (h *VitalsEchoHandler) Assessments(c echo.Context) error {
	req := &models.AssessmentsQuery{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	from, to, err := xhttp.ParseRange(req.From, req.To)
	if err != nil {
		return xhttp.BadRequestResponse(c, []xhttp.ValidationError{{Code: "ERR_RANGE", Message: err.Error()}})
	}
	if h.store == nil {
		return xhttp.AppErrorResponse(c, xhttp.UnavailableError("assessment history is disabled"))
	}

	rows, err := h.store.Query(c.Request().Context(), req.SubjectID, from, to, req.Limit)
	if err != nil {
		h.logger.Error("assessment history error", xlogger.String("subject_id", req.SubjectID), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)), xhttp.NewTimeRange(from, to))
}

// EndSession destroys the subject's in-memory history and cached latest
// assessment. Durable history is kept.
func (h *VitalsEchoHandler) EndSession(c echo.Context) error {
	req := &models.SubjectPath{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.proc.Sessions().End(req.SubjectID) {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("no active session for subject %s", req.SubjectID))
	}
	if h.latest != nil {
		if err := h.latest.Delete(c.Request().Context(), req.SubjectID); err != nil {
			h.logger.Warn("latest cache delete failed", xlogger.String("subject_id", req.SubjectID), xlogger.Error(err))
		}
	}
	return xhttp.NoContentResponse(c)
}

// Health reports liveness plus store reachability with a real HTTP status,
// so orchestrator probes can use it.
func (h *VitalsEchoHandler) Health(c echo.Context) error {
	body := map[string]interface{}{
		"status":   "ok",
		"sessions": h.proc.Sessions().Len(),
	}
	healthy := true
	if h.store != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := h.store.Health(ctx); err != nil {
			body["status"] = "degraded"
			body["store"] = err.Error()
			healthy = false
		}
	}
	return xhttp.ProbeResponse(c, healthy, body)
}
