package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/dveiga/dealerflow/internal/domain"
	"github.com/dveiga/dealerflow/internal/journey"
	"github.com/dveiga/dealerflow/internal/matching"
)

// dispatchEffects executes the side effects owed after a stage
// transition. The stage write has already happened; every effect is best
// effort and a failure is logged without affecting the others.
func (s *AutomationService) dispatchEffects(ctx context.Context, lead *domain.Lead, effects []journey.Effect) int {
	recommendations := 0

	for _, effect := range effects {
		switch effect.Kind {
		case journey.EffectSendRecommendations:
			recommendations += s.sendRecommendations(ctx, lead)

		case journey.EffectNotifySales:
			s.alertSalesTeam(ctx, lead)

		case journey.EffectSendUrgency:
			s.send(ctx, lead.Phone, urgencyMessage())

		case journey.EffectImmediateFollowUp:
			s.send(ctx, lead.Phone, immediateFollowUpMessage())

		case journey.EffectReEngage:
			s.send(ctx, lead.Phone, reEngagementMessage())

		default:
			s.logger.Warn("unknown journey effect",
				zap.String("kind", string(effect.Kind)),
				zap.String("lead_id", lead.ID.String()),
			)
		}
	}

	return recommendations
}

// sendRecommendations matches inventory against the lead's preferences
// and sends up to three vehicles. Returns how many were included.
func (s *AutomationService) sendRecommendations(ctx context.Context, lead *domain.Lead) int {
	vehicles, err := s.matcher.Match(ctx, lead.Preferences, matching.RecommendationLimit)
	if err != nil {
		s.logger.Warn("recommendation matching failed",
			zap.String("lead_id", lead.ID.String()),
			zap.Error(err),
		)
		return 0
	}
	if len(vehicles) == 0 {
		return 0
	}

	if !s.send(ctx, lead.Phone, recommendationsMessage(vehicles)) {
		return 0
	}
	return len(vehicles)
}

// alertSalesTeam notifies every configured sales contact about a hot lead.
func (s *AutomationService) alertSalesTeam(ctx context.Context, lead *domain.Lead) {
	if len(s.salesTeam) == 0 {
		s.logger.Warn("hot lead detected but no sales contacts configured",
			zap.String("lead_id", lead.ID.String()),
		)
		return
	}

	alert := hotLeadAlertMessage(lead)
	for _, phone := range s.salesTeam {
		s.send(ctx, phone, alert)
	}
	s.metrics.RecordHotLeadAlert()

	s.logger.Info("hot lead alert sent",
		zap.String("lead_id", lead.ID.String()),
		zap.Int("score", lead.Score),
		zap.Int("contacts", len(s.salesTeam)),
	)
}

// send delivers a message through the gateway, logging and absorbing
// failures. Reports whether the send succeeded.
func (s *AutomationService) send(ctx context.Context, phone, text string) bool {
	err := s.gateway.Send(ctx, phone, text)
	s.metrics.RecordOutboundSend(err == nil)
	if err != nil {
		s.logger.Warn("outbound send failed",
			zap.String("phone", phone),
			zap.Error(err),
		)
		return false
	}
	return true
}
