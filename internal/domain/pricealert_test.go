package domain

import (
	"testing"
	"time"
)

var alertNow = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

func TestSetupPriceAlert(t *testing.T) {
	lead := NewLead("+351911111111", "whatsapp")

	// Preferences without a budget never create an alert.
	mk := "Bmw"
	lead.Preferences.Make = &mk
	lead.SetupPriceAlert(alertNow)
	if lead.ActivePriceAlert() != nil {
		t.Fatal("expected no alert without a budget")
	}

	budget := 18000
	lead.Preferences.MaxBudget = &budget
	lead.SetupPriceAlert(alertNow)

	alert := lead.ActivePriceAlert()
	if alert == nil {
		t.Fatal("expected an active alert once a budget is set")
	}
	if alert.MaxBudget == nil || *alert.MaxBudget != 18000 {
		t.Errorf("expected alert budget 18000, got %v", alert.MaxBudget)
	}

	// The same terms keep the existing alert.
	lead.SetupPriceAlert(alertNow.Add(time.Hour))
	if len(lead.PriceAlerts) != 1 {
		t.Fatalf("expected 1 alert for unchanged terms, got %d", len(lead.PriceAlerts))
	}

	// Changed terms retire the old alert and create a fresh one.
	newBudget := 22000
	lead.Preferences.MaxBudget = &newBudget
	lead.SetupPriceAlert(alertNow.Add(2 * time.Hour))

	if len(lead.PriceAlerts) != 2 {
		t.Fatalf("expected 2 alerts after a budget change, got %d", len(lead.PriceAlerts))
	}
	if lead.PriceAlerts[0].Active {
		t.Error("expected the original alert to be deactivated")
	}
	current := lead.ActivePriceAlert()
	if current == nil || *current.MaxBudget != 22000 {
		t.Errorf("expected the fresh alert to carry the new budget, got %+v", current)
	}
}

func TestPriceAlertMarkTriggered(t *testing.T) {
	lead := NewLead("+351911111111", "whatsapp")
	budget := 15000
	lead.Preferences.MaxBudget = &budget
	lead.SetupPriceAlert(alertNow)

	alert := lead.ActivePriceAlert()
	alert.MarkTriggered(alertNow.Add(24 * time.Hour))

	// The triggered timestamp lands on the lead's slice, not a copy.
	if lead.PriceAlerts[0].LastTriggeredAt == nil {
		t.Fatal("expected the triggered timestamp to be recorded on the lead")
	}
	if !lead.PriceAlerts[0].LastTriggeredAt.Equal(alertNow.Add(24 * time.Hour)) {
		t.Errorf("unexpected trigger time %v", lead.PriceAlerts[0].LastTriggeredAt)
	}
}
