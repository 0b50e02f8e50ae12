// Package service contains business logic implementations.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dveiga/dealerflow/internal/clock"
	"github.com/dveiga/dealerflow/internal/domain"
	apperrors "github.com/dveiga/dealerflow/internal/errors"
	"github.com/dveiga/dealerflow/internal/extract"
	"github.com/dveiga/dealerflow/internal/followup"
	"github.com/dveiga/dealerflow/internal/journey"
	"github.com/dveiga/dealerflow/internal/matching"
	"github.com/dveiga/dealerflow/internal/messaging"
	"github.com/dveiga/dealerflow/internal/metrics"
	"github.com/dveiga/dealerflow/internal/repository"
	"github.com/dveiga/dealerflow/internal/scoring"
)

// Periodic automation modes.
const (
	ModeHourly = "hourly"
	ModeDaily  = "daily"
)

// hotLeadWindow is how far back the batch hot-lead detector looks.
const hotLeadWindow = 7 * 24 * time.Hour

// newArrivalWindow is how far back a vehicle counts as a new arrival.
const newArrivalWindow = 24 * time.Hour

// AutomationService orchestrates the per-message automation pipeline and
// the periodic sweeps. It is the single catch-and-log boundary: engine
// and gateway failures are absorbed here so one failed step never drops
// an inbound message.
type AutomationService struct {
	leads     domain.LeadRepository
	vehicles  domain.VehicleRepository
	extractor *extract.Extractor
	matcher   *matching.Matcher
	scheduler *followup.Scheduler
	gateway   messaging.Gateway
	clock     clock.Clock
	metrics   *metrics.Metrics
	logger    *zap.Logger

	source            string
	salesTeam         []string
	reservationWindow time.Duration
}

// NewAutomationService creates an AutomationService.
func NewAutomationService(
	leads domain.LeadRepository,
	vehicles domain.VehicleRepository,
	extractor *extract.Extractor,
	matcher *matching.Matcher,
	scheduler *followup.Scheduler,
	gateway messaging.Gateway,
	clk clock.Clock,
	m *metrics.Metrics,
	logger *zap.Logger,
	source string,
	salesTeam []string,
	reservationWindow time.Duration,
) *AutomationService {
	if reservationWindow <= 0 {
		reservationWindow = 24 * time.Hour
	}
	return &AutomationService{
		leads:             leads,
		vehicles:          vehicles,
		extractor:         extractor,
		matcher:           matcher,
		scheduler:         scheduler,
		gateway:           gateway,
		clock:             clk,
		metrics:           m,
		logger:            logger,
		source:            source,
		salesTeam:         salesTeam,
		reservationWindow: reservationWindow,
	}
}

// InboundMessage is one inbound text message from the webhook channel.
type InboundMessage struct {
	Phone       string
	Body        string
	ProfileName string
	MessageID   string
}

// ProcessResult summarizes what the automation pipeline did for one
// inbound message.
type ProcessResult struct {
	Success         bool              `json:"success"`
	Stage           domain.Stage      `json:"stage,omitempty"`
	Score           int               `json:"score,omitempty"`
	Category        domain.LeadStatus `json:"category,omitempty"`
	Recommendations int               `json:"recommendations"`
	Error           string            `json:"error,omitempty"`
}

// ProcessInboundMessage runs the full automation pipeline for one
// message: lead capture, preference extraction, journey advancement,
// scoring, effect dispatch and special-intent handling. The lead state
// is persisted in a single write before any outbound send, so a gateway
// failure never loses captured data.
func (s *AutomationService) ProcessInboundMessage(ctx context.Context, msg InboundMessage) ProcessResult {
	const op = "automation.ProcessInboundMessage"
	start := time.Now()

	result := s.processInbound(ctx, msg)

	s.metrics.RecordMessageProcessed(result.Success, time.Since(start))
	if !result.Success {
		s.logger.Error("inbound message processing failed",
			zap.String("op", op),
			zap.String("phone", msg.Phone),
			zap.String("error", result.Error),
		)
	}
	return result
}

func (s *AutomationService) processInbound(ctx context.Context, msg InboundMessage) ProcessResult {
	now := s.clock.NowUTC()

	lead, created, err := s.findOrCreateLead(ctx, msg)
	if err != nil {
		return ProcessResult{Success: false, Error: err.Error()}
	}

	// Extract and merge preferences before advancing the journey so the
	// transition rules see the freshest preference count.
	extracted := s.extractor.Extract(msg.Body)
	if !extracted.IsEmpty() {
		lead.Preferences.Merge(extracted)
		lead.SetupPriceAlert(now)
		s.logger.Debug("preferences updated",
			zap.String("lead_id", lead.ID.String()),
			zap.Int("fields", lead.Preferences.FieldCount()),
		)
	}

	if intent := classifyIntent(msg.Body); intent != domain.IntentGeneral {
		lead.Intent = intent
	}

	lead.AppendInteraction("whatsapp_message", msg.Body, now)
	latest := lead.Interactions[len(lead.Interactions)-1]

	previousStage := lead.Stage
	nextStage, effects := journey.Advance(lead.Stage, lead.Interactions, latest, lead.Preferences)
	if nextStage != previousStage {
		lead.Stage = nextStage
		s.metrics.RecordStageTransition(string(previousStage), string(nextStage))
		s.logger.Info("journey stage advanced",
			zap.String("lead_id", lead.ID.String()),
			zap.String("from", string(previousStage)),
			zap.String("to", string(nextStage)),
		)
	}

	lead.Score = scoring.Score(lead, now)
	lead.Status = scoring.Classify(lead.Score, lead.Status)

	// Single logical write of stage, history, preferences and score.
	if err := s.leads.Update(ctx, lead); err != nil {
		return ProcessResult{Success: false, Error: apperrors.NewStore("automation.ProcessInboundMessage", err).Error()}
	}
	if created {
		s.metrics.RecordLeadCreated()
	}

	recommendations := s.dispatchEffects(ctx, lead, effects)

	// Every message from a hot lead alerts the sales team, stage change
	// or not. Stage-entry effects already alerted when hot_lead was
	// entered, so skip the duplicate within this call.
	if lead.Status == domain.LeadStatusHot && !effectsNotifySales(effects) {
		s.alertSalesTeam(ctx, lead)
		s.send(ctx, lead.Phone, urgencyMessage())
	}

	// Matching runs on every message from a lead with stored
	// preferences, not just on stage transitions.
	if recommendations == 0 && !lead.Preferences.IsEmpty() {
		recommendations = s.sendRecommendations(ctx, lead)
	}

	s.handleSpecialIntents(ctx, lead, msg.Body)

	return ProcessResult{
		Success:         true,
		Stage:           lead.Stage,
		Score:           lead.Score,
		Category:        lead.Status,
		Recommendations: recommendations,
	}
}

// findOrCreateLead looks the lead up by phone and creates it on first
// contact, capturing the sender's profile name when provided.
func (s *AutomationService) findOrCreateLead(ctx context.Context, msg InboundMessage) (*domain.Lead, bool, error) {
	lead, err := s.leads.GetByPhone(ctx, msg.Phone)
	if err == nil {
		if lead.Name == nil && msg.ProfileName != "" {
			name := msg.ProfileName
			lead.Name = &name
		}
		return lead, false, nil
	}
	if !isNotFound(err) {
		return nil, false, apperrors.NewStore("automation.findOrCreateLead", err)
	}

	lead = domain.NewLead(msg.Phone, s.source)
	if msg.ProfileName != "" {
		name := msg.ProfileName
		lead.Name = &name
	}
	if err := s.leads.Create(ctx, lead); err != nil {
		return nil, false, apperrors.NewStore("automation.findOrCreateLead", err)
	}

	s.logger.Info("lead created",
		zap.String("lead_id", lead.ID.String()),
		zap.String("source", s.source),
	)
	return lead, true, nil
}

// handleSpecialIntents reacts to reservation, pricing and visit keywords
// in the message. All best effort.
func (s *AutomationService) handleSpecialIntents(ctx context.Context, lead *domain.Lead, body string) {
	if wantsReservation(body) {
		// Hold the lead's best preference match.
		vehicles, err := s.matcher.Match(ctx, lead.Preferences, 1)
		if err != nil {
			s.logger.Warn("reservation match failed",
				zap.String("lead_id", lead.ID.String()),
				zap.Error(err),
			)
		} else if len(vehicles) > 0 {
			if _, err := s.ReserveVehicle(ctx, lead.ID, vehicles[0].ID, s.reservationWindow); err != nil {
				s.logger.Warn("automated reservation failed",
					zap.String("lead_id", lead.ID.String()),
					zap.Error(err),
				)
			}
		}
	}

	if asksAboutPrice(body) {
		s.send(ctx, lead.Phone, pricingInfoMessage())
	}

	if asksAboutVisit(body) {
		s.send(ctx, lead.Phone, visitInfoMessage())
	}
}

// PeriodicResult aggregates the counts of one periodic automation run.
type PeriodicResult struct {
	Mode                string `json:"mode"`
	PriceAlerts         int    `json:"price_alerts,omitempty"`
	NewArrivals         int    `json:"new_arrivals,omitempty"`
	DemandMakes         int    `json:"demand_makes,omitempty"`
	SlowMovers          int    `json:"slow_movers,omitempty"`
	ReservationsExpired int    `json:"reservations_expired,omitempty"`
	FollowUpsSent       int    `json:"follow_ups_sent"`
	HotLeads            int    `json:"hot_leads"`
}

// RunPeriodic executes the periodic automation tasks for a mode.
// "hourly" runs hot-lead detection and the follow-up sweep; "daily"
// additionally runs new-arrival notifications, demand analysis and
// slow-mover detection. Any other mode is a caller error. Individual
// task failures are logged and the run continues.
func (s *AutomationService) RunPeriodic(ctx context.Context, mode string) (*PeriodicResult, error) {
	const op = "automation.RunPeriodic"

	if mode != ModeHourly && mode != ModeDaily {
		return nil, apperrors.NewValidation(op, "unknown automation mode: "+mode)
	}

	start := time.Now()
	defer func() {
		s.metrics.RecordSweep(mode, time.Since(start))
	}()

	s.logger.Info("periodic automation starting", zap.String("mode", mode))
	result := &PeriodicResult{Mode: mode}

	if mode == ModeDaily {
		alerts, err := s.checkPriceAlerts(ctx)
		if err != nil {
			s.logger.Error("price alert check failed", zap.Error(err))
		}
		result.PriceAlerts = alerts

		arrivals, err := s.notifyNewArrivals(ctx)
		if err != nil {
			s.logger.Error("new arrival notifications failed", zap.Error(err))
		}
		result.NewArrivals = arrivals

		demand, err := s.matcher.AnalyzeDemand(ctx)
		if err != nil {
			s.logger.Error("demand analysis failed", zap.Error(err))
		}
		result.DemandMakes = len(demand)

		slow, err := s.matcher.DetectSlowMovers(ctx)
		if err != nil {
			s.logger.Error("slow mover detection failed", zap.Error(err))
		}
		result.SlowMovers = slow
		s.metrics.SetSlowMoversFlagged(slow)

		expired, err := s.expireReservations(ctx)
		if err != nil {
			s.logger.Error("reservation expiry failed", zap.Error(err))
		}
		result.ReservationsExpired = expired
	}

	hot, err := s.DetectHotLeads(ctx)
	if err != nil {
		s.logger.Error("hot lead detection failed", zap.Error(err))
	}
	result.HotLeads = hot

	sent, err := s.scheduler.Sweep(ctx)
	if err != nil {
		s.logger.Error("follow-up sweep failed", zap.Error(err))
	}
	result.FollowUpsSent = sent

	s.logger.Info("periodic automation complete",
		zap.String("mode", mode),
		zap.Int("follow_ups", result.FollowUpsSent),
		zap.Int("hot_leads", result.HotLeads),
		zap.Duration("took", time.Since(start)),
	)
	return result, nil
}

// DetectHotLeads rescores every lead active in the trailing week,
// persists the new score and classification, and alerts the sales team
// for each hot lead. Returns the hot-lead count.
func (s *AutomationService) DetectHotLeads(ctx context.Context) (int, error) {
	const op = "automation.DetectHotLeads"

	now := s.clock.NowUTC()
	leads, err := s.leads.ListActiveSince(ctx, s.source, now.Add(-hotLeadWindow))
	if err != nil {
		return 0, apperrors.NewStore(op, err)
	}

	hot := 0
	for _, lead := range leads {
		if lead.Status == domain.LeadStatusConverted {
			continue
		}

		lead.Score = scoring.Score(lead, now)
		lead.Status = scoring.Classify(lead.Score, lead.Status)

		if err := s.leads.Update(ctx, lead); err != nil {
			s.logger.Warn("lead rescore write failed",
				zap.String("lead_id", lead.ID.String()),
				zap.Error(err),
			)
			continue
		}

		if lead.Status == domain.LeadStatusHot {
			hot++
			s.alertSalesTeam(ctx, lead)
		}
	}

	return hot, nil
}

// ReserveVehicle places an automated hold on a vehicle for a lead. The
// reservation is recorded on both the vehicle and the lead, and a
// confirmation message is sent to the lead.
func (s *AutomationService) ReserveVehicle(ctx context.Context, leadID, vehicleID uuid.UUID, window time.Duration) (*domain.Reservation, error) {
	const op = "automation.ReserveVehicle"

	if window <= 0 {
		window = s.reservationWindow
	}
	now := s.clock.NowUTC()

	lead, err := s.leads.GetByID(ctx, leadID)
	if err != nil {
		if isNotFound(err) {
			return nil, apperrors.NewNotFound(op, "lead not found")
		}
		return nil, apperrors.NewStore(op, err)
	}

	vehicle, err := s.vehicles.GetByID(ctx, vehicleID)
	if err != nil {
		if isNotFound(err) {
			return nil, apperrors.NewNotFound(op, "vehicle not found")
		}
		return nil, apperrors.NewStore(op, err)
	}

	res := domain.NewReservation(lead.ID, vehicle.ID, window, now)

	if err := s.vehicles.Reserve(ctx, vehicle.ID, res); err != nil {
		s.metrics.RecordReservation(false)
		if isNotFound(err) {
			return nil, apperrors.NewNotFound(op, "vehicle not available for reservation")
		}
		return nil, apperrors.NewStore(op, err)
	}

	lead.Reservations = append(lead.Reservations, res)
	if err := s.leads.Update(ctx, lead); err != nil {
		return nil, apperrors.NewStore(op, err)
	}

	s.metrics.RecordReservation(true)
	s.send(ctx, lead.Phone, reservationConfirmedMessage(vehicle, res.ReservedUntil, window))

	s.logger.Info("vehicle reserved",
		zap.String("lead_id", lead.ID.String()),
		zap.String("vehicle_id", vehicle.ID.String()),
		zap.Time("until", res.ReservedUntil),
	)
	return &res, nil
}

// checkPriceAlerts sweeps open leads with an active price alert and
// sends the best in-budget match for the alert's terms. An alert fires
// at most once; a triggered alert is skipped on later sweeps. Returns
// the number of alerts sent.
func (s *AutomationService) checkPriceAlerts(ctx context.Context) (int, error) {
	const op = "automation.checkPriceAlerts"

	leads, err := s.leads.ListOpenBySource(ctx, s.source)
	if err != nil {
		return 0, apperrors.NewStore(op, err)
	}

	now := s.clock.NowUTC()
	sent := 0

	for _, lead := range leads {
		alert := lead.ActivePriceAlert()
		if alert == nil || alert.LastTriggeredAt != nil {
			continue
		}

		// The alert filter carries the budget ceiling, so any match is
		// already priced within it.
		vehicles, err := s.matcher.Match(ctx, alert.Preferences(), 1)
		if err != nil {
			s.logger.Warn("price alert match failed",
				zap.String("lead_id", lead.ID.String()),
				zap.Error(err),
			)
			continue
		}
		if len(vehicles) == 0 {
			continue
		}

		if !s.send(ctx, lead.Phone, priceDropMessage(vehicles[0])) {
			continue
		}
		sent++

		alert.MarkTriggered(now)
		lead.AppendInteraction("price_alert",
			vehicles[0].Make+" "+vehicles[0].Model, now)
		if err := s.leads.Update(ctx, lead); err != nil {
			s.logger.Warn("price alert record failed",
				zap.String("lead_id", lead.ID.String()),
				zap.Error(err),
			)
		}
	}

	return sent, nil
}

// expireReservations marks lapsed holds as expired and returns the
// vehicles to display. Returns the number of reservations expired.
func (s *AutomationService) expireReservations(ctx context.Context) (int, error) {
	const op = "automation.expireReservations"

	leads, err := s.leads.ListOpenBySource(ctx, s.source)
	if err != nil {
		return 0, apperrors.NewStore(op, err)
	}

	now := s.clock.NowUTC()
	expired := 0

	for _, lead := range leads {
		changed := false
		for i := range lead.Reservations {
			res := &lead.Reservations[i]
			if !res.IsExpired(now) {
				continue
			}
			res.Status = domain.ReservationStatusExpired
			changed = true
			expired++

			// The vehicle may already have been sold or released by
			// hand; a missing row is not an error here.
			if err := s.vehicles.Release(ctx, res.VehicleID); err != nil && !isNotFound(err) {
				s.logger.Warn("vehicle release failed",
					zap.String("vehicle_id", res.VehicleID.String()),
					zap.Error(err),
				)
			}
		}
		if !changed {
			continue
		}
		if err := s.leads.Update(ctx, lead); err != nil {
			s.logger.Warn("reservation expiry write failed",
				zap.String("lead_id", lead.ID.String()),
				zap.Error(err),
			)
		}
	}

	return expired, nil
}

// DemoteToDormant moves a lead into the dormant stage and sends the
// re-engagement message owed on entry. Converted leads are not demoted.
func (s *AutomationService) DemoteToDormant(ctx context.Context, leadID uuid.UUID) error {
	const op = "automation.DemoteToDormant"

	lead, err := s.leads.GetByID(ctx, leadID)
	if err != nil {
		if isNotFound(err) {
			return apperrors.NewNotFound(op, "lead not found")
		}
		return apperrors.NewStore(op, err)
	}

	if lead.Status == domain.LeadStatusConverted {
		return apperrors.NewValidation(op, "converted leads cannot be demoted")
	}
	if lead.Stage == domain.StageDormant {
		return nil
	}

	previousStage := lead.Stage
	lead.Stage = domain.StageDormant
	if err := s.leads.Update(ctx, lead); err != nil {
		return apperrors.NewStore(op, err)
	}
	s.metrics.RecordStageTransition(string(previousStage), string(domain.StageDormant))

	s.dispatchEffects(ctx, lead, journey.EntryEffects(domain.StageDormant))

	s.logger.Info("lead demoted to dormant",
		zap.String("lead_id", lead.ID.String()),
		zap.String("from", string(previousStage)),
	)
	return nil
}

// notifyNewArrivals announces vehicles added in the last day to
// buying-intent leads whose preferences match. Returns the number of
// notifications sent.
func (s *AutomationService) notifyNewArrivals(ctx context.Context) (int, error) {
	const op = "automation.notifyNewArrivals"

	now := s.clock.NowUTC()
	arrivals, err := s.vehicles.ListArrivedSince(ctx, now.Add(-newArrivalWindow))
	if err != nil {
		return 0, apperrors.NewStore(op, err)
	}
	if len(arrivals) == 0 {
		return 0, nil
	}

	leads, err := s.leads.ListByIntents(ctx, s.source, []domain.Intent{
		domain.IntentPurchase,
		domain.IntentCarShopping,
	})
	if err != nil {
		return 0, apperrors.NewStore(op, err)
	}

	sent := 0
	for _, vehicle := range arrivals {
		for _, lead := range leads {
			if !arrivalMatchesPreferences(vehicle, lead.Preferences) {
				continue
			}
			if !s.send(ctx, lead.Phone, newArrivalMessage(vehicle)) {
				continue
			}
			sent++

			lead.AppendInteraction("new_arrival_alert",
				vehicle.Make+" "+vehicle.Model, now)
			if err := s.leads.Update(ctx, lead); err != nil {
				s.logger.Warn("new arrival record failed",
					zap.String("lead_id", lead.ID.String()),
					zap.Error(err),
				)
			}
		}
	}

	return sent, nil
}

// arrivalMatchesPreferences applies the strict new-arrival matching
// rules: make substring, budget without tolerance, fuel exact.
func arrivalMatchesPreferences(v *domain.Vehicle, prefs domain.Preferences) bool {
	if prefs.Make != nil &&
		!containsFold(v.Make, *prefs.Make) {
		return false
	}
	if prefs.MaxBudget != nil && v.Price > *prefs.MaxBudget {
		return false
	}
	if prefs.Fuel != nil && v.Fuel != *prefs.Fuel {
		return false
	}
	return true
}

// isNotFound recognizes both the repository sentinel and the typed
// not-found error.
func isNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound) || apperrors.IsNotFound(err)
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func effectsNotifySales(effects []journey.Effect) bool {
	for _, e := range effects {
		if e.Kind == journey.EffectNotifySales {
			return true
		}
	}
	return false
}
