// Package journey implements the lead journey state machine.
//
// The machine is pure: Advance computes the next stage from the current
// stage and interaction history, and returns the side effects owed on
// stage entry as data. A dispatcher executes the effects separately, so
// a failed send never rolls back a stage write.
package journey

import (
	"strings"

	"github.com/dveiga/dealerflow/internal/domain"
)

// EffectKind identifies an outbound side effect owed on stage entry.
type EffectKind string

const (
	// EffectSendRecommendations sends personalized vehicle matches.
	EffectSendRecommendations EffectKind = "send_recommendations"
	// EffectNotifySales alerts every configured sales-team contact.
	EffectNotifySales EffectKind = "notify_sales"
	// EffectSendUrgency sends an urgency message to the lead.
	EffectSendUrgency EffectKind = "send_urgency"
	// EffectImmediateFollowUp schedules an immediate follow-up.
	EffectImmediateFollowUp EffectKind = "immediate_follow_up"
	// EffectReEngage triggers a re-engagement send.
	EffectReEngage EffectKind = "re_engage"
)

// Effect is one outbound side effect owed after a stage transition.
type Effect struct {
	Kind  EffectKind
	Stage domain.Stage
}

var priceKeywords = []string{"price", "quanto", "€"}

var visitKeywords = []string{"visit", "see", "book"}

// Advance evaluates the transition rules for the current stage against
// the full interaction history (which already includes the latest
// interaction) and returns the next stage plus the effects owed if the
// stage changed. Only the single transition defined for the current
// stage is applied per invocation; when no condition matches the stage
// is unchanged and no effects fire.
func Advance(current domain.Stage, history []domain.Interaction, latest domain.Interaction, prefs domain.Preferences) (domain.Stage, []Effect) {
	if !current.Valid() {
		current = domain.StageInitialInterest
	}

	next := nextStage(current, history, latest, prefs)
	if next == current {
		return current, nil
	}
	return next, entryEffects(next)
}

// nextStage applies the per-stage rules; the first matching condition wins.
func nextStage(current domain.Stage, history []domain.Interaction, latest domain.Interaction, prefs domain.Preferences) domain.Stage {
	switch current {
	case domain.StageInitialInterest:
		if prefs.FieldCount() > 2 {
			return domain.StagePreferencesGathered
		}
		if len(history) >= 3 {
			return domain.StageFollowUpEngaged
		}

	case domain.StagePreferencesGathered:
		return domain.StageRecommendationsSent

	case domain.StageRecommendationsSent:
		if historyContains(history, priceKeywords) {
			return domain.StageHotLead
		}
		if len(history) >= 3 {
			return domain.StageFollowUpEngaged
		}

	case domain.StageFollowUpEngaged:
		if historyContains(history, priceKeywords) {
			return domain.StageHotLead
		}
		if len(history) >= 8 {
			return domain.StagePurchaseIntent
		}

	case domain.StageHotLead:
		if containsAny(latest.Content, visitKeywords) {
			return domain.StagePurchaseIntent
		}
	}

	return current
}

// entryEffects returns the side effects owed exactly once on entering a stage.
func entryEffects(stage domain.Stage) []Effect {
	switch stage {
	case domain.StagePreferencesGathered:
		return []Effect{{Kind: EffectSendRecommendations, Stage: stage}}
	case domain.StageHotLead:
		return []Effect{
			{Kind: EffectNotifySales, Stage: stage},
			{Kind: EffectSendUrgency, Stage: stage},
		}
	case domain.StagePurchaseIntent:
		return []Effect{{Kind: EffectImmediateFollowUp, Stage: stage}}
	case domain.StageDormant:
		return []Effect{{Kind: EffectReEngage, Stage: stage}}
	}
	return nil
}

// EntryEffects exposes the stage-entry effect table for callers that
// transition a lead outside Advance (e.g. an external dormant demotion).
func EntryEffects(stage domain.Stage) []Effect {
	return entryEffects(stage)
}

func historyContains(history []domain.Interaction, keywords []string) bool {
	for _, i := range history {
		if containsAny(i.Content, keywords) {
			return true
		}
	}
	return false
}

func containsAny(content string, keywords []string) bool {
	if content == "" {
		return false
	}
	lower := strings.ToLower(content)
	for _, k := range keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}
