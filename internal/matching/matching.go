// Package matching recommends inventory for leads and analyzes demand.
package matching

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dveiga/dealerflow/internal/clock"
	"github.com/dveiga/dealerflow/internal/domain"
	apperrors "github.com/dveiga/dealerflow/internal/errors"
	"github.com/dveiga/dealerflow/internal/messaging"
)

// Result limits for the different matching call sites.
const (
	// LiveMatchLimit caps direct inventory lookups for a lead.
	LiveMatchLimit = 5
	// RecommendationLimit caps vehicles included in an outbound
	// recommendation message.
	RecommendationLimit = 3
	// GenericMatchLimit caps unfiltered browsing queries.
	GenericMatchLimit = 10
)

// Demand analysis and slow-mover thresholds.
const (
	// demandWindow is how far back lead preferences count toward demand.
	demandWindow = 30 * 24 * time.Hour
	// slowMoverMinDays flags stock older than this for review.
	slowMoverMinDays = 90
	// slowMoverMaxDemand is the demand ceiling for the slow-mover query.
	slowMoverMaxDemand = 1
	// budgetTolerance lets targeted offers reach leads whose budget is
	// slightly under the vehicle price.
	budgetTolerance = 1.1
)

// Matcher matches inventory against lead preferences and keeps the
// derived demand counters current.
type Matcher struct {
	vehicles domain.VehicleRepository
	leads    domain.LeadRepository
	gateway  messaging.Gateway
	clock    clock.Clock
	source   string
	logger   *zap.Logger
}

// NewMatcher creates a Matcher.
func NewMatcher(
	vehicles domain.VehicleRepository,
	leads domain.LeadRepository,
	gateway messaging.Gateway,
	clk clock.Clock,
	source string,
	logger *zap.Logger,
) *Matcher {
	return &Matcher{
		vehicles: vehicles,
		leads:    leads,
		gateway:  gateway,
		clock:    clk,
		source:   source,
		logger:   logger,
	}
}

// Match retrieves active on-display vehicles matching the lead's
// preferences. An empty result is not an error; with no preferences set
// the query returns the most in-demand stock unfiltered.
func (m *Matcher) Match(ctx context.Context, prefs domain.Preferences, limit int) ([]*domain.Vehicle, error) {
	if limit <= 0 {
		limit = GenericMatchLimit
	}

	filter := BuildFilter(prefs)
	if !filter.HasFilters() {
		m.logger.Debug("matching without preferences, returning top demand stock",
			zap.Int("limit", limit),
		)
	}

	vehicles, err := m.vehicles.Match(ctx, filter, limit)
	if err != nil {
		return nil, apperrors.NewStore("matching.Match", err)
	}
	return vehicles, nil
}

// BuildFilter translates extracted preferences into a repository filter.
func BuildFilter(prefs domain.Preferences) *domain.VehicleFilter {
	filter := &domain.VehicleFilter{OnDisplayOnly: true}
	if prefs.Make != nil {
		filter.Make = *prefs.Make
	}
	if prefs.MaxBudget != nil {
		filter.MaxPrice = prefs.MaxBudget
	}
	if prefs.Fuel != nil {
		filter.Fuel = *prefs.Fuel
	}
	if prefs.Transmission != nil {
		filter.Transmission = *prefs.Transmission
	}
	return filter
}

// AnalyzeDemand counts make preferences among recently active leads and
// refreshes each vehicle's demand counter. Counters are only written
// when the value changed. Returns the per-make demand map.
func (m *Matcher) AnalyzeDemand(ctx context.Context) (map[string]int, error) {
	const op = "matching.AnalyzeDemand"

	since := m.clock.NowUTC().Add(-demandWindow)
	leads, err := m.leads.ListActiveSince(ctx, m.source, since)
	if err != nil {
		return nil, apperrors.NewStore(op, err)
	}

	demand := make(map[string]int)
	for _, lead := range leads {
		if lead.Preferences.Make != nil {
			demand[strings.ToLower(*lead.Preferences.Make)]++
		}
	}

	vehicles, err := m.vehicles.ListActive(ctx)
	if err != nil {
		return nil, apperrors.NewStore(op, err)
	}

	for _, v := range vehicles {
		count := demand[strings.ToLower(v.Make)]
		if count == v.DemandCount {
			continue
		}
		if err := m.vehicles.UpdateDemandCount(ctx, v.ID, count); err != nil {
			m.logger.Warn("demand count update failed",
				zap.String("vehicle_id", v.ID.String()),
				zap.Error(err),
			)
		}
	}

	return demand, nil
}

// DetectSlowMovers flags stale low-demand stock, stores a price-reduction
// suggestion for review (never auto-applied) and sends targeted offers to
// leads whose preferences match. Returns the number of vehicles flagged.
func (m *Matcher) DetectSlowMovers(ctx context.Context) (int, error) {
	const op = "matching.DetectSlowMovers"

	vehicles, err := m.vehicles.ListSlowMoving(ctx, slowMoverMinDays, slowMoverMaxDemand)
	if err != nil {
		return 0, apperrors.NewStore(op, err)
	}

	now := m.clock.NowUTC()
	flagged := 0

	for _, v := range vehicles {
		discount := SuggestedDiscount(v.DaysInStock)
		if discount == 0 {
			continue
		}
		flagged++

		suggestion := &domain.PricingSuggestion{
			OriginalPrice:   v.Price,
			SuggestedPrice:  v.Price * (100 - discount) / 100,
			DiscountPercent: discount,
			Reason:          "slow_moving_inventory",
			SuggestedAt:     now,
		}
		if err := m.vehicles.SavePricingSuggestion(ctx, v.ID, suggestion); err != nil {
			m.logger.Warn("pricing suggestion save failed",
				zap.String("vehicle_id", v.ID.String()),
				zap.Error(err),
			)
		}

		if err := m.offerToPotentialBuyers(ctx, v); err != nil {
			m.logger.Warn("targeted offers failed",
				zap.String("vehicle_id", v.ID.String()),
				zap.Error(err),
			)
		}
	}

	m.logger.Info("slow mover detection complete",
		zap.Int("candidates", len(vehicles)),
		zap.Int("flagged", flagged),
	)
	return flagged, nil
}

// offerToPotentialBuyers sends a targeted offer for the vehicle to every
// buying-intent lead whose preferences match, and records the offer on
// the lead's interaction history.
func (m *Matcher) offerToPotentialBuyers(ctx context.Context, v *domain.Vehicle) error {
	buyerIntents := []domain.Intent{
		domain.IntentPurchase,
		domain.IntentCarShopping,
		domain.IntentPricing,
	}

	leads, err := m.leads.ListByIntents(ctx, m.source, buyerIntents)
	if err != nil {
		return err
	}

	now := m.clock.NowUTC()
	for _, lead := range leads {
		if !vehicleMatchesPreferences(v, lead.Preferences) {
			continue
		}

		if err := m.gateway.Send(ctx, lead.Phone, targetedOfferMessage(v)); err != nil {
			m.logger.Warn("targeted offer send failed",
				zap.String("lead_id", lead.ID.String()),
				zap.Error(err),
			)
			continue
		}

		lead.AppendInteraction("targeted_offer",
			fmt.Sprintf("%s %s at %d", v.Make, v.Model, v.Price), now)
		if err := m.leads.Update(ctx, lead); err != nil {
			m.logger.Warn("targeted offer record failed",
				zap.String("lead_id", lead.ID.String()),
				zap.Error(err),
			)
		}
	}

	return nil
}

// SuggestedDiscount returns the discount percentage for a vehicle's
// stock age. Stock at or under the 90-day mark is never discounted.
func SuggestedDiscount(daysInStock int) int {
	switch {
	case daysInStock > 180:
		return 15
	case daysInStock > 120:
		return 10
	case daysInStock > 90:
		return 5
	default:
		return 0
	}
}

// vehicleMatchesPreferences applies the targeted-offer matching rules:
// make as substring, budget with a 10% tolerance, fuel exact. Unset
// preference fields match anything.
func vehicleMatchesPreferences(v *domain.Vehicle, prefs domain.Preferences) bool {
	if prefs.Make != nil &&
		!strings.Contains(strings.ToLower(v.Make), strings.ToLower(*prefs.Make)) {
		return false
	}
	if prefs.MaxBudget != nil &&
		float64(v.Price) > float64(*prefs.MaxBudget)*budgetTolerance {
		return false
	}
	if prefs.Fuel != nil && v.Fuel != *prefs.Fuel {
		return false
	}
	return true
}

// targetedOfferMessage builds the outbound offer text for a vehicle.
func targetedOfferMessage(v *domain.Vehicle) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Perfect match for you!\n%s %s", v.Make, v.Model)
	if v.Version != "" {
		fmt.Fprintf(&b, " %s", v.Version)
	}
	fmt.Fprintf(&b, "\nEUR %d (special offer available)\nPlate: %s\n%s | %d km",
		v.Price, v.Plate, v.Fuel, v.Mileage)
	if v.Color != "" {
		fmt.Fprintf(&b, " | %s", v.Color)
	}
	fmt.Fprintf(&b, "\n%d days in stock\n\nThis matches your preferences.\n", v.DaysInStock)
	b.WriteString(`Reply "INTERESTED" to reserve for 24h or "DETAILS" for more information.`)
	return b.String()
}
