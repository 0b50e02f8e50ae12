package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/dveiga/dealerflow/internal/errors"
	"github.com/dveiga/dealerflow/internal/service"
)

// PeriodicRunner triggers periodic automation sweeps.
type PeriodicRunner interface {
	RunPeriodic(ctx context.Context, mode string) (*service.PeriodicResult, error)
}

// LeadDemoter moves a lead into the dormant stage.
type LeadDemoter interface {
	DemoteToDormant(ctx context.Context, leadID uuid.UUID) error
}

// AutomationHandler exposes the periodic automation trigger and lead
// lifecycle endpoints, intended for an external cron caller and the
// sales back office.
type AutomationHandler struct {
	runner  PeriodicRunner
	demoter LeadDemoter
	logger  *zap.Logger
}

// AutomationHandlerConfig holds configuration for AutomationHandler.
type AutomationHandlerConfig struct {
	Runner  PeriodicRunner
	Demoter LeadDemoter
	Logger  *zap.Logger
}

// NewAutomationHandler creates a new AutomationHandler with all required dependencies.
func NewAutomationHandler(cfg AutomationHandlerConfig) *AutomationHandler {
	if cfg.Logger == nil {
		panic("logger is required")
	}
	return &AutomationHandler{
		runner:  cfg.Runner,
		demoter: cfg.Demoter,
		logger:  cfg.Logger,
	}
}

// RegisterRoutes registers automation routes on the router.
func (h *AutomationHandler) RegisterRoutes(r chi.Router) {
	r.Post("/automation/run", h.HandleRun)
	r.Post("/leads/{id}/dormant", h.HandleDemote)
}

// HandleRun triggers a periodic automation run for the requested mode.
func (h *AutomationHandler) HandleRun(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("mode")

	result, err := h.runner.RunPeriodic(r.Context(), mode)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, result)
}

// HandleDemote moves a lead into the dormant stage and triggers the
// re-engagement message.
func (h *AutomationHandler) HandleDemote(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, h.logger, apperrors.NewValidation("handler.HandleDemote", "invalid lead id"))
		return
	}

	if err := h.demoter.DemoteToDormant(r.Context(), id); err != nil {
		respondError(w, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusNoContent, nil)
}
