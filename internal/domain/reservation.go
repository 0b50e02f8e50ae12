package domain

import (
	"time"

	"github.com/google/uuid"
)

// ReservationStatus is the lifecycle state of a vehicle hold.
type ReservationStatus string

const (
	ReservationStatusActive    ReservationStatus = "active"
	ReservationStatusExpired   ReservationStatus = "expired"
	ReservationStatusCancelled ReservationStatus = "cancelled"
)

// Reservation holds a vehicle for a lead until an expiry time.
// It is attached to both the lead and the vehicle records.
type Reservation struct {
	ID            uuid.UUID         `json:"id"`
	LeadID        uuid.UUID         `json:"lead_id"`
	VehicleID     uuid.UUID         `json:"vehicle_id"`
	ReservedUntil time.Time         `json:"reserved_until"`
	Status        ReservationStatus `json:"status"`
	CreatedAt     time.Time         `json:"created_at"`
}

// NewReservation creates an active reservation expiring after the given window.
func NewReservation(leadID, vehicleID uuid.UUID, window time.Duration, now time.Time) Reservation {
	return Reservation{
		ID:            uuid.New(),
		LeadID:        leadID,
		VehicleID:     vehicleID,
		ReservedUntil: now.Add(window),
		Status:        ReservationStatusActive,
		CreatedAt:     now,
	}
}

// IsExpired reports whether the reservation has lapsed at the given time.
func (r *Reservation) IsExpired(now time.Time) bool {
	return r.Status == ReservationStatusActive && now.After(r.ReservedUntil)
}
