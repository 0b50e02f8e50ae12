package domain

import (
	"time"

	"github.com/google/uuid"
)

// PriceAlert snapshots a lead's budgeted preferences so the daily sweep
// can watch inventory prices on their behalf. An alert fires at most
// once; changed preferences replace the active alert with a fresh one.
type PriceAlert struct {
	ID              uuid.UUID  `json:"id"`
	Make            *string    `json:"make,omitempty"`
	MaxBudget       *int       `json:"max_budget"`
	Fuel            *string    `json:"fuel,omitempty"`
	Transmission    *string    `json:"transmission,omitempty"`
	Active          bool       `json:"is_active"`
	LastTriggeredAt *time.Time `json:"last_triggered_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// NewPriceAlert creates an active alert from the budgeted preferences.
func NewPriceAlert(prefs Preferences, now time.Time) PriceAlert {
	return PriceAlert{
		ID:           uuid.New(),
		Make:         prefs.Make,
		MaxBudget:    prefs.MaxBudget,
		Fuel:         prefs.Fuel,
		Transmission: prefs.Transmission,
		Active:       true,
		CreatedAt:    now,
	}
}

// Preferences converts the alert's snapshot back into a matching filter.
func (a *PriceAlert) Preferences() Preferences {
	return Preferences{
		Make:         a.Make,
		MaxBudget:    a.MaxBudget,
		Fuel:         a.Fuel,
		Transmission: a.Transmission,
	}
}

// SameTerms reports whether the alert watches the given preferences.
func (a *PriceAlert) SameTerms(prefs Preferences) bool {
	return equalStrPtr(a.Make, prefs.Make) &&
		equalIntPtr(a.MaxBudget, prefs.MaxBudget) &&
		equalStrPtr(a.Fuel, prefs.Fuel) &&
		equalStrPtr(a.Transmission, prefs.Transmission)
}

// MarkTriggered records that the alert fired.
func (a *PriceAlert) MarkTriggered(now time.Time) {
	a.LastTriggeredAt = &now
}

func equalStrPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalIntPtr(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
