package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/dveiga/dealerflow/internal/domain"
)

// classifyIntent maps message keywords onto a lead intent. The first
// matching group wins; an unmatched message is a general inquiry.
func classifyIntent(message string) domain.Intent {
	msg := strings.ToLower(message)

	switch {
	case containsAny(msg, "buy", "purchase", "interested"):
		return domain.IntentPurchase
	case containsAny(msg, "sell", "trade"):
		return domain.IntentSell
	case containsAny(msg, "service", "maintenance", "repair"):
		return domain.IntentService
	case containsAny(msg, "price", "cost", "quote"):
		return domain.IntentPricing
	case containsAny(msg, "financing", "loan", "credit"):
		return domain.IntentFinancing
	case containsAny(msg, "test drive", "viewing", "see"):
		return domain.IntentViewing
	}
	return domain.IntentGeneral
}

// Special-intent keyword groups evaluated on every inbound message.
func wantsReservation(message string) bool {
	return containsAny(strings.ToLower(message), "reserve", "book", "hold")
}

func asksAboutPrice(message string) bool {
	return containsAny(strings.ToLower(message), "price", "cost", "€", "quanto")
}

func asksAboutVisit(message string) bool {
	return containsAny(strings.ToLower(message), "visit", "see", "test", "drive")
}

func containsAny(msg string, keywords ...string) bool {
	for _, k := range keywords {
		if strings.Contains(msg, k) {
			return true
		}
	}
	return false
}

// recommendationsMessage lists up to three matched vehicles for a lead.
func recommendationsMessage(vehicles []*domain.Vehicle) string {
	var b strings.Builder
	b.WriteString("Perfect matches for you:\n\n")

	for i, v := range vehicles {
		fmt.Fprintf(&b, "%d. %s %s\nEUR %d\n%s | %d km\nPlate: %s\n\n",
			i+1, v.Make, v.Model, v.Price, v.Fuel, v.Mileage, v.Plate)
	}

	b.WriteString("Interested in any? Reply with:\n")
	b.WriteString("- The number (1, 2, 3) for details\n")
	b.WriteString(`- "RESERVE" to hold one` + "\n")
	b.WriteString(`- "VISIT" to schedule a viewing`)
	return b.String()
}

// hotLeadAlertMessage is the internal alert sent to the sales team.
func hotLeadAlertMessage(lead *domain.Lead) string {
	email := "No email"
	if lead.Email != nil && *lead.Email != "" {
		email = *lead.Email
	}
	interest := "Various cars"
	if lead.Preferences.Make != nil {
		interest = *lead.Preferences.Make
	}
	budget := "Not specified"
	if lead.Preferences.MaxBudget != nil {
		budget = fmt.Sprintf("EUR %d", *lead.Preferences.MaxBudget)
	}

	return fmt.Sprintf(`HOT LEAD ALERT
Phone: %s
Email: %s
Score: %d/100
Last message: %q
Interested in: %s
Budget: %s

Action needed: call within 1 hour.`,
		lead.Phone, email, lead.Score, lead.LatestMessage(), interest, budget)
}

// urgencyMessage nudges a hot lead toward scheduling a visit.
func urgencyMessage() string {
	return "Limited time opportunity!\n" +
		"Our best cars go fast and this one might not last long.\n\n" +
		"Tip: schedule a visit today, or visit our showroom.\n\n" +
		`Ready to move forward? Reply "VISIT" to schedule immediately.`
}

// pricingInfoMessage answers a generic price inquiry.
func pricingInfoMessage() string {
	return "Great question about pricing!\n\n" +
		"Our cars are competitively priced with:\n" +
		"- Transparent pricing, no hidden fees\n" +
		"- Financing options available\n" +
		"- Trade-in evaluations\n" +
		"- Extended warranties\n\n" +
		"Want a personalized quote? Tell me your budget range and I'll find matches."
}

// visitInfoMessage answers a visit or test-drive request.
func visitInfoMessage() string {
	return "Perfect! We'd love to show you our cars.\n\n" +
		"Opening hours:\n" +
		"Mon-Fri: 9:00-19:00\n" +
		"Saturday: 9:00-17:00\n" +
		"Sunday: 10:00-16:00\n\n" +
		`Reply "SCHEDULE" and someone will call you within the hour.`
}

// immediateFollowUpMessage is sent on entering the purchase-intent stage.
func immediateFollowUpMessage() string {
	return "You're close to finding your next car!\n" +
		"A member of our team will reach out shortly to finalize the details.\n" +
		"Anything you'd like prepared for the handover?"
}

// reEngagementMessage is sent to a lead demoted to dormant.
func reEngagementMessage() string {
	return "It's been a while since we talked about your car search.\n" +
		"We have new arrivals and fresh offers this month.\n" +
		`Reply "NEW" to see what came in, or tell me what you're looking for.`
}

// reservationConfirmedMessage confirms an automated vehicle hold.
func reservationConfirmedMessage(v *domain.Vehicle, until time.Time, window time.Duration) string {
	return fmt.Sprintf(`Car reserved successfully!
%s %s
EUR %d
Plate: %s

Reserved for %d hours, until %s.

Next steps:
- Call us to schedule a viewing
- Arrange financing if needed
- Prepare documentation

Reply "EXTEND" to extend or "CANCEL" to cancel the reservation.`,
		v.Make, v.Model, v.Price, v.Plate,
		int(window.Hours()), until.Format("02 Jan 2006 15:04"))
}

// priceDropMessage tells a lead their price alert found an in-budget car.
func priceDropMessage(v *domain.Vehicle) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Price alert!\n%s %s", v.Make, v.Model)
	if v.Version != "" {
		fmt.Fprintf(&b, " %s", v.Version)
	}
	fmt.Fprintf(&b, "\nNow EUR %d, within your budget.\n%s | %d km\nPlate: %s\n\n",
		v.Price, v.Fuel, v.Mileage, v.Plate)
	b.WriteString(`Reply "INTERESTED" to reserve it or "VISIT" to see it.`)
	return b.String()
}

// newArrivalMessage announces a fresh vehicle to a matching lead.
func newArrivalMessage(v *domain.Vehicle) string {
	var b strings.Builder
	fmt.Fprintf(&b, "New arrival!\n%s %s", v.Make, v.Model)
	if v.Version != "" {
		fmt.Fprintf(&b, " %s", v.Version)
	}
	fmt.Fprintf(&b, "\nEUR %d\n%s | %d km\nPlate: %s\n\n", v.Price, v.Fuel, v.Mileage, v.Plate)
	b.WriteString("This just arrived and matches what you're looking for.\n")
	b.WriteString(`Reply "INTERESTED" for details or "VISIT" to see it.`)
	return b.String()
}
