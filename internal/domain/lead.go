// Package domain contains the core business entities and interfaces.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Intent classifies what a lead is trying to accomplish.
type Intent string

const (
	IntentPurchase    Intent = "purchase_intent"
	IntentSell        Intent = "sell_intent"
	IntentService     Intent = "service_intent"
	IntentPricing     Intent = "pricing_inquiry"
	IntentFinancing   Intent = "financing_inquiry"
	IntentViewing     Intent = "viewing_request"
	IntentCarShopping Intent = "car_shopping"
	IntentGeneral     Intent = "general_inquiry"
)

// LeadStatus is the sales classification of a lead.
type LeadStatus string

const (
	LeadStatusNew       LeadStatus = "new"
	LeadStatusQualified LeadStatus = "qualified"
	LeadStatusWarm      LeadStatus = "warm"
	LeadStatusHot       LeadStatus = "hot"
	LeadStatusConverted LeadStatus = "converted"
)

// Stage is a named point in the lead's journey state machine.
type Stage string

const (
	StageInitialInterest      Stage = "initial_interest"
	StagePreferencesGathered  Stage = "preferences_gathered"
	StageRecommendationsSent  Stage = "recommendations_sent"
	StageFollowUpEngaged      Stage = "follow_up_engaged"
	StageHotLead              Stage = "hot_lead"
	StagePurchaseIntent       Stage = "purchase_intent"
	StageConverted            Stage = "converted"
	StageDormant              Stage = "dormant"
)

// Valid reports whether s is one of the defined journey stages.
func (s Stage) Valid() bool {
	switch s {
	case StageInitialInterest, StagePreferencesGathered, StageRecommendationsSent,
		StageFollowUpEngaged, StageHotLead, StagePurchaseIntent,
		StageConverted, StageDormant:
		return true
	}
	return false
}

// Interaction is a single recorded contact with a lead.
type Interaction struct {
	Type      string    `json:"type"`
	Content   string    `json:"content"`
	Stage     Stage     `json:"stage"`
	Timestamp time.Time `json:"timestamp"`
}

// Lead is a prospective customer tracked through the sales journey.
// Automation state that the original system kept in an untyped meta
// blob lives here as explicit fields, validated at the store boundary.
type Lead struct {
	ID                  uuid.UUID     `json:"id"`
	Phone               string        `json:"phone"`
	Name                *string       `json:"name,omitempty"`
	Email               *string       `json:"email,omitempty"`
	Source              string        `json:"source"`
	Intent              Intent        `json:"intent"`
	Status              LeadStatus    `json:"status"`
	Stage               Stage         `json:"stage"`
	Score               int           `json:"score"`
	Preferences         Preferences   `json:"preferences"`
	Interactions        []Interaction `json:"interactions,omitempty"`
	FollowUpsSent       []string      `json:"follow_ups_sent,omitempty"`
	Reservations        []Reservation `json:"reservations,omitempty"`
	PriceAlerts         []PriceAlert  `json:"price_alerts,omitempty"`
	SpecificCarInterest bool          `json:"specific_car_interest"`
	LastContactAt       *time.Time    `json:"last_contact_at,omitempty"`
	CreatedAt           time.Time     `json:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at"`
}

// NewLead creates a Lead for a first inbound contact from an unseen phone.
func NewLead(phone, source string) *Lead {
	now := time.Now().UTC()
	return &Lead{
		ID:        uuid.New(),
		Phone:     phone,
		Source:    source,
		Intent:    IntentGeneral,
		Status:    LeadStatusNew,
		Stage:     StageInitialInterest,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AppendInteraction records an interaction and refreshes the contact timestamp.
func (l *Lead) AppendInteraction(kind, content string, at time.Time) {
	l.Interactions = append(l.Interactions, Interaction{
		Type:      kind,
		Content:   content,
		Stage:     l.Stage,
		Timestamp: at,
	})
	l.LastContactAt = &at
}

// MessageCount returns the number of recorded interactions.
func (l *Lead) MessageCount() int {
	return len(l.Interactions)
}

// LatestMessage returns the content of the most recent interaction,
// falling back to the first one when history is short.
func (l *Lead) LatestMessage() string {
	if n := len(l.Interactions); n > 0 {
		return l.Interactions[n-1].Content
	}
	return ""
}

// LastContact returns the last contact time, falling back to creation.
func (l *Lead) LastContact() time.Time {
	if l.LastContactAt != nil {
		return *l.LastContactAt
	}
	return l.CreatedAt
}

// HasFollowUp reports whether the follow-up rule tag already fired.
func (l *Lead) HasFollowUp(tag string) bool {
	for _, t := range l.FollowUpsSent {
		if t == tag {
			return true
		}
	}
	return false
}

// RecordFollowUp marks a follow-up rule tag as fired.
func (l *Lead) RecordFollowUp(tag string) {
	if !l.HasFollowUp(tag) {
		l.FollowUpsSent = append(l.FollowUpsSent, tag)
	}
}

// ActivePriceAlert returns the lead's active price alert, if any.
func (l *Lead) ActivePriceAlert() *PriceAlert {
	for i := range l.PriceAlerts {
		if l.PriceAlerts[i].Active {
			return &l.PriceAlerts[i]
		}
	}
	return nil
}

// SetupPriceAlert snapshots the current budgeted preferences into an
// active price alert. Preferences without a budget set nothing; an
// active alert with the same terms is kept, changed terms deactivate it
// and create a fresh alert.
func (l *Lead) SetupPriceAlert(now time.Time) {
	if l.Preferences.MaxBudget == nil {
		return
	}
	if current := l.ActivePriceAlert(); current != nil {
		if current.SameTerms(l.Preferences) {
			return
		}
		current.Active = false
	}
	l.PriceAlerts = append(l.PriceAlerts, NewPriceAlert(l.Preferences, now))
}
