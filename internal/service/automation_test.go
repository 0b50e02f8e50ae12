package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/dveiga/dealerflow/internal/clock"
	"github.com/dveiga/dealerflow/internal/domain"
	apperrors "github.com/dveiga/dealerflow/internal/errors"
	"github.com/dveiga/dealerflow/internal/extract"
	"github.com/dveiga/dealerflow/internal/followup"
	"github.com/dveiga/dealerflow/internal/matching"
	"github.com/dveiga/dealerflow/internal/metrics"
)

var testNow = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

const salesPhone = "+351931000001"

func newTestService(
	leads *MockLeadRepository,
	vehicles *MockVehicleRepository,
	gateway *MockGateway,
) *AutomationService {
	logger := zap.NewNop()
	clk := clock.NewMock(testNow)
	m := metrics.NewMetricsWithRegistry(prometheus.NewRegistry())
	matcher := matching.NewMatcher(vehicles, leads, gateway, clk, "whatsapp", logger)
	scheduler := followup.NewScheduler(leads, gateway, clk, m, "whatsapp", logger)

	return NewAutomationService(
		leads, vehicles,
		extract.New(0),
		matcher, scheduler, gateway,
		clk, m, logger,
		"whatsapp",
		[]string{salesPhone},
		24*time.Hour,
	)
}

func displayVehicle(mk, model string, price int) *domain.Vehicle {
	return &domain.Vehicle{
		ID:       uuid.New(),
		Make:     mk,
		Model:    model,
		Price:    price,
		Fuel:     "Diesel",
		Plate:    "AA-00-AA",
		Status:   domain.VehicleStatusOnDisplay,
		IsActive: true,
	}
}

func TestProcessInboundMessage_CreatesLead(t *testing.T) {
	leads := NewMockLeadRepository()
	vehicles := NewMockVehicleRepository()
	gateway := &MockGateway{}
	svc := newTestService(leads, vehicles, gateway)

	result := svc.ProcessInboundMessage(context.Background(), InboundMessage{
		Phone:       "+351911111111",
		Body:        "hello",
		ProfileName: "Maria Silva",
	})

	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}
	if leads.CreateCalls != 1 {
		t.Errorf("expected 1 lead create, got %d", leads.CreateCalls)
	}

	lead, err := leads.GetByPhone(context.Background(), "+351911111111")
	if err != nil {
		t.Fatalf("expected lead to exist: %v", err)
	}
	if lead.Name == nil || *lead.Name != "Maria Silva" {
		t.Error("expected profile name to be captured on the new lead")
	}
	if lead.MessageCount() != 1 {
		t.Errorf("expected 1 recorded interaction, got %d", lead.MessageCount())
	}
	if result.Stage != domain.StageInitialInterest {
		t.Errorf("expected initial_interest stage, got %s", result.Stage)
	}
}

func TestProcessInboundMessage_PreferencesAdvanceStage(t *testing.T) {
	leads := NewMockLeadRepository()
	vehicles := NewMockVehicleRepository()
	vehicles.Add(displayVehicle("BMW", "320d", 19500))
	gateway := &MockGateway{}
	svc := newTestService(leads, vehicles, gateway)

	result := svc.ProcessInboundMessage(context.Background(), InboundMessage{
		Phone: "+351911111111",
		Body:  "I want a BMW under 20, diesel automática",
	})

	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}
	if result.Stage != domain.StagePreferencesGathered {
		t.Errorf("expected preferences_gathered, got %s", result.Stage)
	}
	if result.Recommendations == 0 {
		t.Error("expected recommendations to be sent on stage entry")
	}

	sent := gateway.SentTo("+351911111111")
	if len(sent) == 0 || !strings.Contains(sent[0], "BMW 320d") {
		t.Errorf("expected a recommendation message naming the vehicle, got %v", sent)
	}
}

func TestProcessInboundMessage_NoStageSkipToHotLead(t *testing.T) {
	leads := NewMockLeadRepository()
	gateway := &MockGateway{}
	svc := newTestService(leads, NewMockVehicleRepository(), gateway)

	// A price inquiry on first contact must not jump straight to hot_lead.
	result := svc.ProcessInboundMessage(context.Background(), InboundMessage{
		Phone: "+351911111111",
		Body:  "quanto custa?",
	})

	if result.Stage == domain.StageHotLead {
		t.Error("expected no skip from initial_interest to hot_lead in one message")
	}

	// The price keyword still triggers the pricing info response.
	sent := gateway.SentTo("+351911111111")
	found := false
	for _, text := range sent {
		if strings.Contains(text, "pricing") {
			found = true
		}
	}
	if !found {
		t.Error("expected a pricing info message for a price inquiry")
	}
}

func TestProcessInboundMessage_HotLeadAlertsSales(t *testing.T) {
	leads := NewMockLeadRepository()
	gateway := &MockGateway{}
	svc := newTestService(leads, NewMockVehicleRepository(), gateway)

	lead := domain.NewLead("+351911111111", "whatsapp")
	lead.Stage = domain.StageRecommendationsSent
	lead.AppendInteraction("whatsapp_message", "looks good", testNow.Add(-time.Hour))
	if err := leads.Create(context.Background(), lead); err != nil {
		t.Fatal(err)
	}

	result := svc.ProcessInboundMessage(context.Background(), InboundMessage{
		Phone: "+351911111111",
		Body:  "what is the price on the first one?",
	})

	if result.Stage != domain.StageHotLead {
		t.Fatalf("expected hot_lead stage, got %s", result.Stage)
	}

	alerts := gateway.SentTo(salesPhone)
	if len(alerts) != 1 || !strings.Contains(alerts[0], "HOT LEAD ALERT") {
		t.Errorf("expected one sales alert, got %v", alerts)
	}

	// The lead receives the urgency message on hot_lead entry.
	urgency := false
	for _, text := range gateway.SentTo("+351911111111") {
		if strings.Contains(text, "Limited time opportunity") {
			urgency = true
		}
	}
	if !urgency {
		t.Error("expected an urgency message to the lead")
	}
}

func TestProcessInboundMessage_AlreadyHotLeadReAlertsSales(t *testing.T) {
	leads := NewMockLeadRepository()
	gateway := &MockGateway{}
	svc := newTestService(leads, NewMockVehicleRepository(), gateway)

	// A lead already classified hot keeps alerting the sales team on
	// every message, not only on the warm-to-hot flip.
	lead := domain.NewLead("+351911111111", "whatsapp")
	lead.Status = domain.LeadStatusHot
	lead.Stage = domain.StageHotLead
	for i := 0; i < 4; i++ {
		lead.AppendInteraction("whatsapp_message", "following the BMW ad", testNow.Add(-time.Hour))
	}
	if err := leads.Create(context.Background(), lead); err != nil {
		t.Fatal(err)
	}

	result := svc.ProcessInboundMessage(context.Background(), InboundMessage{
		Phone: "+351911111111",
		Body:  "price please, urgent",
	})

	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}
	if result.Category != domain.LeadStatusHot {
		t.Fatalf("expected lead to stay hot, got %s", result.Category)
	}
	if result.Stage != domain.StageHotLead {
		t.Fatalf("expected lead to stay in hot_lead, got %s", result.Stage)
	}

	alerts := gateway.SentTo(salesPhone)
	if len(alerts) != 1 || !strings.Contains(alerts[0], "HOT LEAD ALERT") {
		t.Errorf("expected one sales alert for the already-hot lead, got %v", alerts)
	}
}

func TestProcessInboundMessage_StoredPreferencesMatchEveryMessage(t *testing.T) {
	leads := NewMockLeadRepository()
	vehicles := NewMockVehicleRepository()
	vehicles.Add(displayVehicle("Toyota", "Corolla", 17000))
	gateway := &MockGateway{}
	svc := newTestService(leads, vehicles, gateway)

	// Matching runs on every message once preferences are stored, even
	// when the message itself carries nothing new to extract.
	lead := domain.NewLead("+351911111111", "whatsapp")
	lead.Stage = domain.StageRecommendationsSent
	budget := 18000
	lead.Preferences.MaxBudget = &budget
	lead.AppendInteraction("whatsapp_message", "thanks", testNow.Add(-time.Hour))
	if err := leads.Create(context.Background(), lead); err != nil {
		t.Fatal(err)
	}

	result := svc.ProcessInboundMessage(context.Background(), InboundMessage{
		Phone: "+351911111111",
		Body:  "anything else available",
	})

	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}
	if result.Recommendations != 1 {
		t.Errorf("expected 1 recommendation, got %d", result.Recommendations)
	}

	found := false
	for _, text := range gateway.SentTo("+351911111111") {
		if strings.Contains(text, "Toyota Corolla") {
			found = true
		}
	}
	if !found {
		t.Error("expected a recommendation naming the in-budget vehicle")
	}
}

func TestProcessInboundMessage_BudgetSetsUpPriceAlert(t *testing.T) {
	leads := NewMockLeadRepository()
	gateway := &MockGateway{}
	svc := newTestService(leads, NewMockVehicleRepository(), gateway)

	result := svc.ProcessInboundMessage(context.Background(), InboundMessage{
		Phone: "+351911111111",
		Body:  "looking for something under 18",
	})
	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}

	lead, err := leads.GetByPhone(context.Background(), "+351911111111")
	if err != nil {
		t.Fatal(err)
	}

	alert := lead.ActivePriceAlert()
	if alert == nil {
		t.Fatal("expected an active price alert after a budget message")
	}
	if alert.MaxBudget == nil || *alert.MaxBudget != 18000 {
		t.Errorf("expected alert budget 18000, got %v", alert.MaxBudget)
	}
	if alert.LastTriggeredAt != nil {
		t.Error("expected a fresh alert to be untriggered")
	}
}

func TestProcessInboundMessage_StoreFailure(t *testing.T) {
	leads := NewMockLeadRepository()
	leads.GetByPhoneError = errors.New("connection refused")
	svc := newTestService(leads, NewMockVehicleRepository(), &MockGateway{})

	result := svc.ProcessInboundMessage(context.Background(), InboundMessage{
		Phone: "+351911111111",
		Body:  "hello",
	})

	if result.Success {
		t.Error("expected failure when the store is down")
	}
	if result.Error == "" {
		t.Error("expected an error message in the result")
	}
}

func TestRunPeriodic_InvalidMode(t *testing.T) {
	svc := newTestService(NewMockLeadRepository(), NewMockVehicleRepository(), &MockGateway{})

	_, err := svc.RunPeriodic(context.Background(), "weekly")
	if err == nil {
		t.Fatal("expected error for unknown mode")
	}
	if !apperrors.IsUserError(err) {
		t.Errorf("expected a user error, got %v", err)
	}
}

func TestRunPeriodic_HourlySweepsFollowUps(t *testing.T) {
	leads := NewMockLeadRepository()
	gateway := &MockGateway{}
	svc := newTestService(leads, NewMockVehicleRepository(), gateway)

	lead := domain.NewLead("+351911111111", "whatsapp")
	at := testNow.Add(-50 * time.Hour)
	lead.LastContactAt = &at
	if err := leads.Create(context.Background(), lead); err != nil {
		t.Fatal(err)
	}

	result, err := svc.RunPeriodic(context.Background(), ModeHourly)
	if err != nil {
		t.Fatalf("RunPeriodic() error = %v", err)
	}

	if result.FollowUpsSent != 1 {
		t.Errorf("expected 1 follow-up sent, got %d", result.FollowUpsSent)
	}
	if !lead.HasFollowUp(followup.TagGeneral) {
		t.Error("expected the 48h_general tag to be recorded")
	}
}

func TestReserveVehicle(t *testing.T) {
	leads := NewMockLeadRepository()
	vehicles := NewMockVehicleRepository()
	gateway := &MockGateway{}
	svc := newTestService(leads, vehicles, gateway)

	lead := domain.NewLead("+351911111111", "whatsapp")
	if err := leads.Create(context.Background(), lead); err != nil {
		t.Fatal(err)
	}
	vehicle := displayVehicle("Audi", "A3", 18000)
	vehicles.Add(vehicle)

	res, err := svc.ReserveVehicle(context.Background(), lead.ID, vehicle.ID, 24*time.Hour)
	if err != nil {
		t.Fatalf("ReserveVehicle() error = %v", err)
	}

	if res.Status != domain.ReservationStatusActive {
		t.Errorf("expected active reservation, got %s", res.Status)
	}
	if want := testNow.Add(24 * time.Hour); !res.ReservedUntil.Equal(want) {
		t.Errorf("expected expiry %v, got %v", want, res.ReservedUntil)
	}
	if vehicle.Status != domain.VehicleStatusReserved {
		t.Errorf("expected vehicle to be reserved, got %s", vehicle.Status)
	}
	if len(lead.Reservations) != 1 {
		t.Errorf("expected 1 reservation on the lead, got %d", len(lead.Reservations))
	}

	confirmation := gateway.SentTo("+351911111111")
	if len(confirmation) != 1 || !strings.Contains(confirmation[0], "reserved successfully") {
		t.Errorf("expected a confirmation message, got %v", confirmation)
	}

	// A second reservation attempt on the same vehicle fails.
	if _, err := svc.ReserveVehicle(context.Background(), lead.ID, vehicle.ID, 24*time.Hour); err == nil {
		t.Error("expected reserving an already reserved vehicle to fail")
	}
}

func TestRunPeriodic_DailyNotifiesNewArrivals(t *testing.T) {
	leads := NewMockLeadRepository()
	vehicles := NewMockVehicleRepository()
	gateway := &MockGateway{}
	svc := newTestService(leads, vehicles, gateway)

	arrival := displayVehicle("Toyota", "Corolla", 17000)
	arrival.CreatedAt = testNow.Add(-2 * time.Hour)
	vehicles.Add(arrival)

	lead := domain.NewLead("+351911111111", "whatsapp")
	lead.Intent = domain.IntentCarShopping
	budget := 18000
	lead.Preferences.MaxBudget = &budget
	at := testNow.Add(-time.Hour)
	lead.LastContactAt = &at
	if err := leads.Create(context.Background(), lead); err != nil {
		t.Fatal(err)
	}

	result, err := svc.RunPeriodic(context.Background(), ModeDaily)
	if err != nil {
		t.Fatalf("RunPeriodic() error = %v", err)
	}

	if result.NewArrivals != 1 {
		t.Errorf("expected 1 new-arrival notification, got %d", result.NewArrivals)
	}

	found := false
	for _, text := range gateway.SentTo("+351911111111") {
		if strings.Contains(text, "New arrival") && strings.Contains(text, "Toyota Corolla") {
			found = true
		}
	}
	if !found {
		t.Error("expected a new arrival message naming the vehicle")
	}
}

func TestRunPeriodic_DailyPriceAlertFiresOnce(t *testing.T) {
	leads := NewMockLeadRepository()
	vehicles := NewMockVehicleRepository()
	vehicles.Add(displayVehicle("Renault", "Clio", 17000))
	gateway := &MockGateway{}
	svc := newTestService(leads, vehicles, gateway)

	lead := domain.NewLead("+351911111111", "whatsapp")
	budget := 18000
	lead.Preferences.MaxBudget = &budget
	lead.SetupPriceAlert(testNow.Add(-24 * time.Hour))
	at := testNow.Add(-time.Hour)
	lead.LastContactAt = &at
	if err := leads.Create(context.Background(), lead); err != nil {
		t.Fatal(err)
	}

	first, err := svc.RunPeriodic(context.Background(), ModeDaily)
	if err != nil {
		t.Fatalf("RunPeriodic() error = %v", err)
	}
	if first.PriceAlerts != 1 {
		t.Fatalf("expected 1 price alert on the first run, got %d", first.PriceAlerts)
	}

	found := false
	for _, text := range gateway.SentTo("+351911111111") {
		if strings.Contains(text, "Price alert") && strings.Contains(text, "Renault Clio") {
			found = true
		}
	}
	if !found {
		t.Error("expected a price alert message naming the in-budget vehicle")
	}

	// A triggered alert stays quiet on later sweeps.
	second, err := svc.RunPeriodic(context.Background(), ModeDaily)
	if err != nil {
		t.Fatalf("second RunPeriodic() error = %v", err)
	}
	if second.PriceAlerts != 0 {
		t.Errorf("expected no price alerts on the second run, got %d", second.PriceAlerts)
	}
}

func TestRunPeriodic_DailyExpiresLapsedReservations(t *testing.T) {
	leads := NewMockLeadRepository()
	vehicles := NewMockVehicleRepository()
	gateway := &MockGateway{}
	svc := newTestService(leads, vehicles, gateway)

	lead := domain.NewLead("+351911111111", "whatsapp")
	at := testNow.Add(-time.Hour)
	lead.LastContactAt = &at

	vehicle := displayVehicle("Skoda", "Octavia", 21000)
	res := domain.NewReservation(lead.ID, vehicle.ID, 24*time.Hour, testNow.Add(-48*time.Hour))
	lead.Reservations = append(lead.Reservations, res)
	vehicle.Status = domain.VehicleStatusReserved
	vehicle.ReservedFor = &lead.ID
	vehicles.Add(vehicle)
	if err := leads.Create(context.Background(), lead); err != nil {
		t.Fatal(err)
	}

	result, err := svc.RunPeriodic(context.Background(), ModeDaily)
	if err != nil {
		t.Fatalf("RunPeriodic() error = %v", err)
	}

	if result.ReservationsExpired != 1 {
		t.Fatalf("expected 1 expired reservation, got %d", result.ReservationsExpired)
	}
	if lead.Reservations[0].Status != domain.ReservationStatusExpired {
		t.Errorf("expected reservation marked expired, got %s", lead.Reservations[0].Status)
	}
	if vehicle.Status != domain.VehicleStatusOnDisplay {
		t.Errorf("expected vehicle back on display, got %s", vehicle.Status)
	}
	if vehicle.ReservedFor != nil {
		t.Error("expected reserved_for to be cleared")
	}
}

func TestDemoteToDormant(t *testing.T) {
	leads := NewMockLeadRepository()
	gateway := &MockGateway{}
	svc := newTestService(leads, NewMockVehicleRepository(), gateway)

	lead := domain.NewLead("+351911111111", "whatsapp")
	lead.Stage = domain.StageFollowUpEngaged
	if err := leads.Create(context.Background(), lead); err != nil {
		t.Fatal(err)
	}

	if err := svc.DemoteToDormant(context.Background(), lead.ID); err != nil {
		t.Fatalf("DemoteToDormant() error = %v", err)
	}

	if lead.Stage != domain.StageDormant {
		t.Fatalf("expected dormant stage, got %s", lead.Stage)
	}
	sent := gateway.SentTo("+351911111111")
	if len(sent) != 1 || !strings.Contains(sent[0], "been a while") {
		t.Errorf("expected a re-engagement message, got %v", sent)
	}

	// Demoting an already dormant lead is a no-op.
	if err := svc.DemoteToDormant(context.Background(), lead.ID); err != nil {
		t.Fatalf("second DemoteToDormant() error = %v", err)
	}
	if got := gateway.SentTo("+351911111111"); len(got) != 1 {
		t.Errorf("expected no repeat re-engagement sends, got %d", len(got))
	}

	if err := svc.DemoteToDormant(context.Background(), uuid.New()); err == nil {
		t.Error("expected an error for an unknown lead")
	}
}
