package domain

import (
	"time"

	"github.com/google/uuid"
)

// VehicleStatus represents where a vehicle sits in the dealership flow.
type VehicleStatus string

const (
	VehicleStatusOnDisplay     VehicleStatus = "on_display"
	VehicleStatusInPreparation VehicleStatus = "in_preparation"
	VehicleStatusReserved      VehicleStatus = "reserved"
	VehicleStatusSold          VehicleStatus = "sold"
)

// Vehicle is one unit of dealership inventory.
type Vehicle struct {
	ID                uuid.UUID          `json:"id"`
	Plate             string             `json:"plate"`
	Make              string             `json:"make"`
	Model             string             `json:"model"`
	Version           string             `json:"version,omitempty"`
	Price             int                `json:"price"`
	Fuel              string             `json:"fuel"`
	Transmission      string             `json:"transmission"`
	Color             string             `json:"color,omitempty"`
	Mileage           int                `json:"mileage"`
	Status            VehicleStatus      `json:"status"`
	IsActive          bool               `json:"is_active"`
	DaysInStock       int                `json:"days_in_stock"`
	DemandCount       int                `json:"demand_count"`
	PricingSuggestion *PricingSuggestion `json:"pricing_suggestion,omitempty"`
	ReservedFor       *uuid.UUID         `json:"reserved_for,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// PricingSuggestion is a computed price-reduction recommendation.
// Suggestions are stored for review, never applied automatically.
type PricingSuggestion struct {
	OriginalPrice   int       `json:"original_price"`
	SuggestedPrice  int       `json:"suggested_price"`
	DiscountPercent int       `json:"discount_percent"`
	Reason          string    `json:"reason"`
	SuggestedAt     time.Time `json:"suggested_at"`
}

// VehicleFilter defines optional filters for inventory matching.
type VehicleFilter struct {
	// Make matches as a case-insensitive substring.
	Make string
	// MaxPrice is an inclusive price ceiling.
	MaxPrice *int
	// Fuel and Transmission match exactly when set.
	Fuel         string
	Transmission string
	// OnDisplayOnly restricts results to showroom vehicles.
	OnDisplayOnly bool
}

// HasFilters reports whether any filter field is set.
func (f *VehicleFilter) HasFilters() bool {
	if f == nil {
		return false
	}
	return f.Make != "" || f.MaxPrice != nil || f.Fuel != "" || f.Transmission != ""
}
