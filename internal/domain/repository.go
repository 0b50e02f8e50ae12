package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// LeadRepository defines the interface for lead persistence.
type LeadRepository interface {
	// Create inserts a new lead record.
	Create(ctx context.Context, lead *Lead) error

	// GetByID retrieves a lead by its identifier.
	GetByID(ctx context.Context, id uuid.UUID) (*Lead, error)

	// GetByPhone retrieves a lead by its contact phone number.
	GetByPhone(ctx context.Context, phone string) (*Lead, error)

	// Update persists the lead's columns and automation state in a
	// single logical write.
	Update(ctx context.Context, lead *Lead) error

	// ListActiveSince retrieves leads created or contacted after the
	// given time, most recently updated first.
	ListActiveSince(ctx context.Context, source string, since time.Time) ([]*Lead, error)

	// ListOpenBySource retrieves non-converted leads from a channel.
	ListOpenBySource(ctx context.Context, source string) ([]*Lead, error)

	// ListByIntents retrieves leads whose intent is one of the given set.
	ListByIntents(ctx context.Context, source string, intents []Intent) ([]*Lead, error)
}

// VehicleRepository defines the interface for inventory persistence.
type VehicleRepository interface {
	// GetByID retrieves a vehicle by its identifier.
	GetByID(ctx context.Context, id uuid.UUID) (*Vehicle, error)

	// Match retrieves active vehicles matching the filter, ordered by
	// demand count descending then days in stock ascending.
	Match(ctx context.Context, filter *VehicleFilter, limit int) ([]*Vehicle, error)

	// ListActive retrieves all active vehicles.
	ListActive(ctx context.Context) ([]*Vehicle, error)

	// ListSlowMoving retrieves active vehicles at or above the stock-age
	// threshold with demand at or below the given ceiling.
	ListSlowMoving(ctx context.Context, minDaysInStock, maxDemand int) ([]*Vehicle, error)

	// ListArrivedSince retrieves active on-display vehicles added after
	// the given time.
	ListArrivedSince(ctx context.Context, since time.Time) ([]*Vehicle, error)

	// UpdateDemandCount overwrites a vehicle's derived demand counter.
	UpdateDemandCount(ctx context.Context, id uuid.UUID, count int) error

	// SavePricingSuggestion stores a price-reduction suggestion.
	SavePricingSuggestion(ctx context.Context, id uuid.UUID, s *PricingSuggestion) error

	// Reserve attaches a reservation to the vehicle record.
	Reserve(ctx context.Context, id uuid.UUID, res Reservation) error

	// Release clears a lapsed reservation and puts the vehicle back on
	// display.
	Release(ctx context.Context, id uuid.UUID) error
}
