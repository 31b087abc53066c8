package handler

import (
	"net/http"
	"sort"
	"time"

	"github.com/airfusion/airfusion/internal/airquality"
	"github.com/airfusion/airfusion/internal/api/models"
	"github.com/airfusion/airfusion/internal/api/response"
	"github.com/airfusion/airfusion/internal/provider/resilience"
)

// failingAfter is the number of consecutive errors at which a source is
// reported as failing rather than degraded.
const failingAfter = 3

// SourceHealth reports per-source health counters.
type SourceHealth interface {
	Health() map[airquality.SourceName]airquality.HealthSnapshot
}

// ProviderHealth reports circuit breaker state per upstream client.
type ProviderHealth interface {
	GetAllHealth() []*resilience.ProviderHealth
}

// OpsHandler serves liveness, readiness and status endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	sources   SourceHealth
	providers ProviderHealth
	now       func() time.Time
}

// OpsHandlerConfig holds configuration for OpsHandler.
type OpsHandlerConfig struct {
	Version   string
	BuildTime string

	// Sources and Providers are optional; nil omits them from the status.
	Sources   SourceHealth
	Providers ProviderHealth

	Now func() time.Time
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsHandlerConfig) *OpsHandler {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &OpsHandler{
		version:   cfg.Version,
		buildTime: cfg.BuildTime,
		sources:   cfg.Sources,
		providers: cfg.Providers,
		now:       cfg.Now,
	}
}

// HealthCheck handles GET /v1/ops/health.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(h.now()),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	})
}

// ReadinessCheck handles GET /v1/ops/ready. Fusion always answers, falling
// back to estimates, so readiness only depends on the process being up.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(h.now()),
	})
}

// SystemStatus handles GET /v1/ops/status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status := models.SystemStatus{
		Status:    models.HealthStatusOK,
		Time:      models.Timestamp(h.now()),
		Sources:   []models.SourceStatus{},
		Providers: []models.ProviderStatus{},
	}

	if h.sources != nil {
		for name, snap := range h.sources.Health() {
			status.Sources = append(status.Sources, sourceStatus(name, snap))
		}
		sort.Slice(status.Sources, func(i, j int) bool {
			return status.Sources[i].Source < status.Sources[j].Source
		})
	}

	if h.providers != nil {
		for _, ph := range h.providers.GetAllHealth() {
			status.Providers = append(status.Providers, providerStatus(ph))
		}
		sort.Slice(status.Providers, func(i, j int) bool {
			return status.Providers[i].Provider < status.Providers[j].Provider
		})
	}

	// Fallback estimates keep the service answering, so the worst overall
	// state is degraded.
	for _, s := range status.Sources {
		if s.Status != models.HealthStatusOK {
			status.Status = models.HealthStatusDegraded
		}
	}
	for _, p := range status.Providers {
		if p.Status != models.HealthStatusOK {
			status.Status = models.HealthStatusDegraded
		}
	}

	response.JSON(w, r, http.StatusOK, status)
}

func sourceStatus(name airquality.SourceName, snap airquality.HealthSnapshot) models.SourceStatus {
	s := models.SourceStatus{
		Source:            string(name),
		Status:            models.HealthStatusOK,
		ConsecutiveErrors: snap.ConsecutiveErrors,
		TotalRequests:     snap.TotalRequests,
		LastSuccessAt:     models.TimestampPtr(snap.LastSuccess),
		LastFailureAt:     models.TimestampPtr(snap.LastFailure),
	}
	switch {
	case snap.ConsecutiveErrors >= failingAfter:
		s.Status = models.HealthStatusFail
	case snap.ConsecutiveErrors > 0:
		s.Status = models.HealthStatusDegraded
	}
	return s
}

func providerStatus(ph *resilience.ProviderHealth) models.ProviderStatus {
	p := models.ProviderStatus{
		Provider:     ph.Name,
		Status:       models.HealthStatusOK,
		CircuitState: ph.CircuitState.String(),
		Requests:     ph.Counts.Requests,
		Failures:     ph.Counts.ConsecutiveFailures,
	}
	if ph.LastSuccessAt != nil {
		p.LastSuccessAt = models.TimestampPtr(*ph.LastSuccessAt)
	}
	if ph.LastFailureAt != nil {
		p.LastFailureAt = models.TimestampPtr(*ph.LastFailureAt)
	}
	if ph.LastError != "" {
		msg := ph.LastError
		p.Message = &msg
	}
	switch {
	case ph.IsUnhealthy():
		p.Status = models.HealthStatusFail
	case ph.IsDegraded():
		p.Status = models.HealthStatusDegraded
	}
	return p
}
