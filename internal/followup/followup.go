// Package followup implements the time-based follow-up scheduler.
package followup

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dveiga/dealerflow/internal/clock"
	"github.com/dveiga/dealerflow/internal/domain"
	apperrors "github.com/dveiga/dealerflow/internal/errors"
	"github.com/dveiga/dealerflow/internal/messaging"
	"github.com/dveiga/dealerflow/internal/metrics"
)

// Follow-up rule tags. A tag fires at most once per lead; fired tags are
// persisted on the lead so repeated sweeps converge without resending.
const (
	TagRecommendation = "4h_recommendation"
	TagHotLead        = "1h_hot_lead"
	TagGeneral        = "48h_general"
	TagWeekly         = "weekly"
)

// rule is one timing rule of the scheduler. Rules are evaluated in
// declaration order and at most one fires per lead per sweep.
type rule struct {
	tag string
	// stage restricts the rule to leads in a journey stage; empty
	// matches any stage.
	stage domain.Stage
	after time.Duration
}

var rules = []rule{
	{tag: TagRecommendation, stage: domain.StageRecommendationsSent, after: 4 * time.Hour},
	{tag: TagHotLead, stage: domain.StageHotLead, after: 1 * time.Hour},
	{tag: TagGeneral, after: 48 * time.Hour},
	{tag: TagWeekly, after: 168 * time.Hour},
}

var messages = map[string]string{
	TagRecommendation: "Hi! Did you get a chance to check out those car recommendations?\n" +
		"Any questions about specs, financing, or scheduling a visit?",
	TagHotLead: "Still interested in that car?\n" +
		"I can hold it for you with just a small deposit.\nReady to move forward?",
	TagGeneral: "Hi! Just following up on your car search.\n" +
		"Any new requirements or questions I can help with?",
	TagWeekly: "Hope your car search is going well!\n" +
		"We have some exciting new arrivals this week.\nWould you like to see what's new?",
}

// Scheduler sweeps open leads and sends overdue follow-up messages.
type Scheduler struct {
	leads   domain.LeadRepository
	gateway messaging.Gateway
	clock   clock.Clock
	metrics *metrics.Metrics
	source  string
	logger  *zap.Logger
}

// NewScheduler creates a Scheduler.
func NewScheduler(
	leads domain.LeadRepository,
	gateway messaging.Gateway,
	clk clock.Clock,
	m *metrics.Metrics,
	source string,
	logger *zap.Logger,
) *Scheduler {
	return &Scheduler{
		leads:   leads,
		gateway: gateway,
		clock:   clk,
		metrics: m,
		source:  source,
		logger:  logger,
	}
}

// Sweep evaluates every non-converted lead against the timing rules and
// sends at most one follow-up per lead. A failed send or write for one
// lead is logged and does not stop the sweep. Returns the number of
// follow-ups sent.
func (s *Scheduler) Sweep(ctx context.Context) (int, error) {
	const op = "followup.Sweep"

	leads, err := s.leads.ListOpenBySource(ctx, s.source)
	if err != nil {
		return 0, apperrors.NewStore(op, err)
	}

	now := s.clock.NowUTC()
	sent := 0

	for _, lead := range leads {
		tag := dueTag(lead, now)
		if tag == "" {
			continue
		}

		if err := s.gateway.Send(ctx, lead.Phone, Message(tag)); err != nil {
			s.logger.Warn("follow-up send failed",
				zap.String("lead_id", lead.ID.String()),
				zap.String("tag", tag),
				zap.Error(err),
			)
			continue
		}

		// The tag is only recorded after a successful send, so a send
		// failure is retried on the next sweep.
		lead.RecordFollowUp(tag)
		if err := s.leads.Update(ctx, lead); err != nil {
			s.logger.Error("follow-up record failed",
				zap.String("lead_id", lead.ID.String()),
				zap.String("tag", tag),
				zap.Error(err),
			)
			continue
		}

		sent++
		s.metrics.RecordFollowUpSent(tag)
		s.logger.Info("follow-up sent",
			zap.String("lead_id", lead.ID.String()),
			zap.String("tag", tag),
		)
	}

	return sent, nil
}

// dueTag returns the first timing rule that is due for the lead, or an
// empty string when nothing is due.
func dueTag(lead *domain.Lead, now time.Time) string {
	elapsed := now.Sub(lead.LastContact())

	for _, r := range rules {
		if r.stage != "" && lead.Stage != r.stage {
			continue
		}
		if elapsed >= r.after && !lead.HasFollowUp(r.tag) {
			return r.tag
		}
	}
	return ""
}

// Message returns the outbound text for a follow-up tag.
func Message(tag string) string {
	return messages[tag]
}
