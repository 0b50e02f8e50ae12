package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dveiga/dealerflow/internal/domain"
)

const vehicleColumns = `
	id, plate, make, model, version, price, fuel, transmission, color,
	mileage, status, is_active, days_in_stock, demand_count,
	pricing_suggestion, reserved_for, created_at, updated_at`

// VehicleRepository implements domain.VehicleRepository using PostgreSQL.
type VehicleRepository struct {
	pool *pgxpool.Pool
}

// NewVehicleRepository creates a new VehicleRepository.
func NewVehicleRepository(pool *pgxpool.Pool) *VehicleRepository {
	return &VehicleRepository{pool: pool}
}

// GetByID retrieves a vehicle by its identifier.
func (r *VehicleRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Vehicle, error) {
	ctx, cancel := WithQueryTimeout(ctx)
	defer cancel()

	query := `SELECT` + vehicleColumns + `
		FROM vehicles
		WHERE id = $1`

	return r.scanVehicle(ctx, query, id)
}

// Match retrieves active vehicles matching the filter, ordered by demand
// count descending then days in stock ascending, so the hottest stock is
// recommended first and ties prefer the freshest arrivals.
func (r *VehicleRepository) Match(ctx context.Context, filter *domain.VehicleFilter, limit int) ([]*domain.Vehicle, error) {
	ctx, cancel := WithListQueryTimeout(ctx)
	defer cancel()

	var (
		conditions = []string{"is_active = TRUE"}
		args       []interface{}
	)

	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter != nil {
		if filter.Make != "" {
			conditions = append(conditions, "make ILIKE "+arg("%"+filter.Make+"%"))
		}
		if filter.MaxPrice != nil {
			conditions = append(conditions, "price <= "+arg(*filter.MaxPrice))
		}
		if filter.Fuel != "" {
			conditions = append(conditions, "fuel = "+arg(filter.Fuel))
		}
		if filter.Transmission != "" {
			conditions = append(conditions, "transmission = "+arg(filter.Transmission))
		}
		if filter.OnDisplayOnly {
			conditions = append(conditions, "status = "+arg(domain.VehicleStatusOnDisplay))
		}
	}

	query := `SELECT` + vehicleColumns + `
		FROM vehicles
		WHERE ` + strings.Join(conditions, " AND ") + `
		ORDER BY demand_count DESC, days_in_stock ASC
		LIMIT ` + arg(limit)

	return r.scanVehicles(ctx, query, args...)
}

// ListActive retrieves all active vehicles.
func (r *VehicleRepository) ListActive(ctx context.Context) ([]*domain.Vehicle, error) {
	ctx, cancel := WithListQueryTimeout(ctx)
	defer cancel()

	query := `SELECT` + vehicleColumns + `
		FROM vehicles
		WHERE is_active = TRUE
		ORDER BY created_at DESC`

	return r.scanVehicles(ctx, query)
}

// ListSlowMoving retrieves active vehicles at or above the stock-age
// threshold with demand at or below the given ceiling.
func (r *VehicleRepository) ListSlowMoving(ctx context.Context, minDaysInStock, maxDemand int) ([]*domain.Vehicle, error) {
	ctx, cancel := WithListQueryTimeout(ctx)
	defer cancel()

	query := `SELECT` + vehicleColumns + `
		FROM vehicles
		WHERE is_active = TRUE
		  AND days_in_stock >= $1
		  AND demand_count <= $2
		ORDER BY days_in_stock DESC`

	return r.scanVehicles(ctx, query, minDaysInStock, maxDemand)
}

// ListArrivedSince retrieves active on-display vehicles added after the given time.
func (r *VehicleRepository) ListArrivedSince(ctx context.Context, since time.Time) ([]*domain.Vehicle, error) {
	ctx, cancel := WithListQueryTimeout(ctx)
	defer cancel()

	query := `SELECT` + vehicleColumns + `
		FROM vehicles
		WHERE is_active = TRUE
		  AND status = $1
		  AND created_at >= $2
		ORDER BY created_at DESC`

	return r.scanVehicles(ctx, query, domain.VehicleStatusOnDisplay, since)
}

// UpdateDemandCount overwrites a vehicle's derived demand counter.
func (r *VehicleRepository) UpdateDemandCount(ctx context.Context, id uuid.UUID, count int) error {
	ctx, cancel := WithWriteTimeout(ctx)
	defer cancel()

	query := `
		UPDATE vehicles SET
			demand_count = $2,
			updated_at = $3
		WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id, count, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update demand count: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// SavePricingSuggestion stores a price-reduction suggestion for review.
func (r *VehicleRepository) SavePricingSuggestion(ctx context.Context, id uuid.UUID, s *domain.PricingSuggestion) error {
	ctx, cancel := WithWriteTimeout(ctx)
	defer cancel()

	suggestionJSON, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal pricing suggestion: %w", err)
	}

	query := `
		UPDATE vehicles SET
			pricing_suggestion = $2,
			updated_at = $3
		WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id, suggestionJSON, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save pricing suggestion: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// Reserve attaches a reservation to the vehicle record. Only active,
// unreserved vehicles can be held.
func (r *VehicleRepository) Reserve(ctx context.Context, id uuid.UUID, res domain.Reservation) error {
	ctx, cancel := WithWriteTimeout(ctx)
	defer cancel()

	query := `
		UPDATE vehicles SET
			status = $2,
			reserved_for = $3,
			updated_at = $4
		WHERE id = $1
		  AND is_active = TRUE
		  AND status <> $2`

	result, err := r.pool.Exec(ctx, query, id, domain.VehicleStatusReserved, res.LeadID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to reserve vehicle: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// Release clears a reservation and returns the vehicle to display.
func (r *VehicleRepository) Release(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := WithWriteTimeout(ctx)
	defer cancel()

	query := `
		UPDATE vehicles SET
			status = $2,
			reserved_for = NULL,
			updated_at = $3
		WHERE id = $1
		  AND status = $4`

	result, err := r.pool.Exec(ctx, query, id, domain.VehicleStatusOnDisplay, time.Now().UTC(), domain.VehicleStatusReserved)
	if err != nil {
		return fmt.Errorf("failed to release vehicle: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// scanVehicle scans a single vehicle from a query.
func (r *VehicleRepository) scanVehicle(ctx context.Context, query string, args ...interface{}) (*domain.Vehicle, error) {
	row := r.pool.QueryRow(ctx, query, args...)

	vehicle, err := scanVehicleRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return vehicle, nil
}

// scanVehicles scans multiple vehicles from a query.
func (r *VehicleRepository) scanVehicles(ctx context.Context, query string, args ...interface{}) ([]*domain.Vehicle, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query vehicles: %w", err)
	}
	defer rows.Close()

	var vehicles []*domain.Vehicle
	for rows.Next() {
		vehicle, err := scanVehicleRow(rows)
		if err != nil {
			return nil, err
		}
		vehicles = append(vehicles, vehicle)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate vehicles: %w", err)
	}

	return vehicles, nil
}

func scanVehicleRow(row rowScanner) (*domain.Vehicle, error) {
	vehicle := &domain.Vehicle{}
	var suggestionJSON []byte

	err := row.Scan(
		&vehicle.ID,
		&vehicle.Plate,
		&vehicle.Make,
		&vehicle.Model,
		&vehicle.Version,
		&vehicle.Price,
		&vehicle.Fuel,
		&vehicle.Transmission,
		&vehicle.Color,
		&vehicle.Mileage,
		&vehicle.Status,
		&vehicle.IsActive,
		&vehicle.DaysInStock,
		&vehicle.DemandCount,
		&suggestionJSON,
		&vehicle.ReservedFor,
		&vehicle.CreatedAt,
		&vehicle.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(suggestionJSON) > 0 {
		vehicle.PricingSuggestion = &domain.PricingSuggestion{}
		if err := json.Unmarshal(suggestionJSON, vehicle.PricingSuggestion); err != nil {
			return nil, fmt.Errorf("failed to unmarshal pricing suggestion: %w", err)
		}
	}

	return vehicle, nil
}
