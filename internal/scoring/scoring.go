// Package scoring computes a bounded lead score and its classification.
package scoring

import (
	"strings"
	"time"

	"github.com/dveiga/dealerflow/internal/domain"
)

// MaxScore is the score ceiling; every computed score is clamped to it.
const MaxScore = 100

// Classification thresholds applied during batch hot-lead detection.
const (
	HotThreshold       = 80
	WarmThreshold      = 60
	QualifiedThreshold = 40
)

var intentScores = map[domain.Intent]int{
	domain.IntentPurchase:    40,
	domain.IntentFinancing:   35,
	domain.IntentViewing:     30,
	domain.IntentPricing:     25,
	domain.IntentCarShopping: 20,
	domain.IntentGeneral:     10,
}

var urgencyKeywords = []string{"urgent", "today", "now", "immediately", "asap"}

// Score computes the additive lead score from the lead's stored
// attributes and interaction history. Each rule contributes
// independently; the sum is clamped to [0, MaxScore]. The function is
// pure: the reference time is passed in rather than read from a clock.
func Score(lead *domain.Lead, now time.Time) int {
	score := intentScores[lead.Intent]

	// Message frequency: highest threshold wins.
	messages := lead.MessageCount()
	if messages == 0 {
		messages = 1
	}
	switch {
	case messages >= 5:
		score += 20
	case messages >= 3:
		score += 15
	case messages >= 2:
		score += 10
	}

	if containsUrgency(lead.LatestMessage()) {
		score += 25
	}

	// Budget tier from stored preferences.
	if lead.Preferences.MaxBudget != nil {
		switch budget := *lead.Preferences.MaxBudget; {
		case budget >= 20000:
			score += 20
		case budget >= 10000:
			score += 15
		case budget >= 5000:
			score += 10
		}
	}

	if lead.Preferences.Make != nil {
		score += 15
	}
	if lead.SpecificCarInterest {
		score += 20
	}

	// Contact information completeness.
	if lead.Email != nil && *lead.Email != "" {
		score += 10
	}
	if lead.Name != nil && *lead.Name != "" {
		score += 5
	}

	// Recency of last contact: tightest window wins.
	switch hours := now.Sub(lead.LastContact()).Hours(); {
	case hours <= 2:
		score += 15
	case hours <= 24:
		score += 10
	case hours <= 72:
		score += 5
	}

	if score > MaxScore {
		return MaxScore
	}
	if score < 0 {
		return 0
	}
	return score
}

// Classify maps a score onto a lead status. Scores below the qualified
// threshold leave the current status unchanged.
func Classify(score int, current domain.LeadStatus) domain.LeadStatus {
	switch {
	case score >= HotThreshold:
		return domain.LeadStatusHot
	case score >= WarmThreshold:
		return domain.LeadStatusWarm
	case score >= QualifiedThreshold:
		return domain.LeadStatusQualified
	}
	return current
}

func containsUrgency(message string) bool {
	if message == "" {
		return false
	}
	lower := strings.ToLower(message)
	for _, k := range urgencyKeywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}
