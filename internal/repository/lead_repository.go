// Package repository implements data persistence using PostgreSQL.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dveiga/dealerflow/internal/domain"
)

const leadColumns = `
	id, phone, name, email, source, intent, status, stage, score,
	preferences, interactions, follow_ups_sent, reservations, price_alerts,
	specific_car_interest, last_contact_at, created_at, updated_at`

// LeadRepository implements domain.LeadRepository using PostgreSQL.
//
// Interaction history, preferences, follow-up tags and reservations are
// stored as JSONB columns; they always travel with the lead row so a
// single Update persists the whole automation state atomically.
type LeadRepository struct {
	pool *pgxpool.Pool
}

// NewLeadRepository creates a new LeadRepository.
func NewLeadRepository(pool *pgxpool.Pool) *LeadRepository {
	return &LeadRepository{pool: pool}
}

// Create inserts a new lead record.
func (r *LeadRepository) Create(ctx context.Context, lead *domain.Lead) error {
	ctx, cancel := WithWriteTimeout(ctx)
	defer cancel()

	state, err := marshalLeadState(lead)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO leads (
			id, phone, name, email, source, intent, status, stage, score,
			preferences, interactions, follow_ups_sent, reservations, price_alerts,
			specific_car_interest, last_contact_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18
		)`

	_, err = r.pool.Exec(ctx, query,
		lead.ID,
		lead.Phone,
		lead.Name,
		lead.Email,
		lead.Source,
		lead.Intent,
		lead.Status,
		lead.Stage,
		lead.Score,
		state.preferences,
		state.interactions,
		state.followUps,
		state.reservations,
		state.priceAlerts,
		lead.SpecificCarInterest,
		lead.LastContactAt,
		lead.CreatedAt,
		lead.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert lead: %w", err)
	}

	return nil
}

// GetByID retrieves a lead by its identifier.
func (r *LeadRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Lead, error) {
	ctx, cancel := WithQueryTimeout(ctx)
	defer cancel()

	query := `SELECT` + leadColumns + `
		FROM leads
		WHERE id = $1`

	return r.scanLead(ctx, query, id)
}

// GetByPhone retrieves a lead by its contact phone number.
func (r *LeadRepository) GetByPhone(ctx context.Context, phone string) (*domain.Lead, error) {
	ctx, cancel := WithQueryTimeout(ctx)
	defer cancel()

	query := `SELECT` + leadColumns + `
		FROM leads
		WHERE phone = $1`

	return r.scanLead(ctx, query, phone)
}

// Update persists the lead's columns and automation state in a single write.
func (r *LeadRepository) Update(ctx context.Context, lead *domain.Lead) error {
	ctx, cancel := WithWriteTimeout(ctx)
	defer cancel()

	lead.UpdatedAt = time.Now().UTC()

	state, err := marshalLeadState(lead)
	if err != nil {
		return err
	}

	query := `
		UPDATE leads SET
			phone = $2,
			name = $3,
			email = $4,
			source = $5,
			intent = $6,
			status = $7,
			stage = $8,
			score = $9,
			preferences = $10,
			interactions = $11,
			follow_ups_sent = $12,
			reservations = $13,
			price_alerts = $14,
			specific_car_interest = $15,
			last_contact_at = $16,
			updated_at = $17
		WHERE id = $1`

	result, err := r.pool.Exec(ctx, query,
		lead.ID,
		lead.Phone,
		lead.Name,
		lead.Email,
		lead.Source,
		lead.Intent,
		lead.Status,
		lead.Stage,
		lead.Score,
		state.preferences,
		state.interactions,
		state.followUps,
		state.reservations,
		state.priceAlerts,
		lead.SpecificCarInterest,
		lead.LastContactAt,
		lead.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update lead: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// ListActiveSince retrieves leads created or contacted after the given
// time, most recently updated first.
func (r *LeadRepository) ListActiveSince(ctx context.Context, source string, since time.Time) ([]*domain.Lead, error) {
	ctx, cancel := WithListQueryTimeout(ctx)
	defer cancel()

	query := `SELECT` + leadColumns + `
		FROM leads
		WHERE source = $1
		  AND (created_at >= $2 OR last_contact_at >= $2)
		ORDER BY updated_at DESC`

	return r.scanLeads(ctx, query, source, since)
}

// ListOpenBySource retrieves non-converted leads from a channel.
func (r *LeadRepository) ListOpenBySource(ctx context.Context, source string) ([]*domain.Lead, error) {
	ctx, cancel := WithListQueryTimeout(ctx)
	defer cancel()

	query := `SELECT` + leadColumns + `
		FROM leads
		WHERE source = $1
		  AND status <> $2
		ORDER BY updated_at DESC`

	return r.scanLeads(ctx, query, source, domain.LeadStatusConverted)
}

// ListByIntents retrieves leads whose intent is one of the given set.
func (r *LeadRepository) ListByIntents(ctx context.Context, source string, intents []domain.Intent) ([]*domain.Lead, error) {
	if len(intents) == 0 {
		return nil, nil
	}

	ctx, cancel := WithListQueryTimeout(ctx)
	defer cancel()

	values := make([]string, len(intents))
	for i, intent := range intents {
		values[i] = string(intent)
	}

	query := `SELECT` + leadColumns + `
		FROM leads
		WHERE source = $1
		  AND intent = ANY($2)
		ORDER BY updated_at DESC`

	return r.scanLeads(ctx, query, source, values)
}

// leadState holds the serialized JSONB columns of a lead row.
type leadState struct {
	preferences  []byte
	interactions []byte
	followUps    []byte
	reservations []byte
	priceAlerts  []byte
}

// marshalLeadState serializes the JSONB columns of a lead row.
func marshalLeadState(lead *domain.Lead) (*leadState, error) {
	state := &leadState{}
	var err error

	if state.preferences, err = json.Marshal(lead.Preferences); err != nil {
		return nil, fmt.Errorf("failed to marshal preferences: %w", err)
	}
	if state.interactions, err = json.Marshal(lead.Interactions); err != nil {
		return nil, fmt.Errorf("failed to marshal interactions: %w", err)
	}
	if state.followUps, err = json.Marshal(lead.FollowUpsSent); err != nil {
		return nil, fmt.Errorf("failed to marshal follow-ups: %w", err)
	}
	if state.reservations, err = json.Marshal(lead.Reservations); err != nil {
		return nil, fmt.Errorf("failed to marshal reservations: %w", err)
	}
	if state.priceAlerts, err = json.Marshal(lead.PriceAlerts); err != nil {
		return nil, fmt.Errorf("failed to marshal price alerts: %w", err)
	}
	return state, nil
}

// scanLead scans a single lead from a query.
func (r *LeadRepository) scanLead(ctx context.Context, query string, args ...interface{}) (*domain.Lead, error) {
	row := r.pool.QueryRow(ctx, query, args...)

	lead, err := scanLeadRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return lead, nil
}

// scanLeads scans multiple leads from a query.
func (r *LeadRepository) scanLeads(ctx context.Context, query string, args ...interface{}) ([]*domain.Lead, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query leads: %w", err)
	}
	defer rows.Close()

	var leads []*domain.Lead
	for rows.Next() {
		lead, err := scanLeadRow(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, lead)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate leads: %w", err)
	}

	return leads, nil
}

// rowScanner is satisfied by both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanLeadRow(row rowScanner) (*domain.Lead, error) {
	lead := &domain.Lead{}
	var prefsJSON, interactionsJSON, followUpsJSON, reservationsJSON, priceAlertsJSON []byte

	err := row.Scan(
		&lead.ID,
		&lead.Phone,
		&lead.Name,
		&lead.Email,
		&lead.Source,
		&lead.Intent,
		&lead.Status,
		&lead.Stage,
		&lead.Score,
		&prefsJSON,
		&interactionsJSON,
		&followUpsJSON,
		&reservationsJSON,
		&priceAlertsJSON,
		&lead.SpecificCarInterest,
		&lead.LastContactAt,
		&lead.CreatedAt,
		&lead.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(prefsJSON) > 0 {
		if err := json.Unmarshal(prefsJSON, &lead.Preferences); err != nil {
			return nil, fmt.Errorf("failed to unmarshal preferences: %w", err)
		}
	}
	if len(interactionsJSON) > 0 {
		if err := json.Unmarshal(interactionsJSON, &lead.Interactions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal interactions: %w", err)
		}
	}
	if len(followUpsJSON) > 0 {
		if err := json.Unmarshal(followUpsJSON, &lead.FollowUpsSent); err != nil {
			return nil, fmt.Errorf("failed to unmarshal follow-ups: %w", err)
		}
	}
	if len(reservationsJSON) > 0 {
		if err := json.Unmarshal(reservationsJSON, &lead.Reservations); err != nil {
			return nil, fmt.Errorf("failed to unmarshal reservations: %w", err)
		}
	}
	if len(priceAlertsJSON) > 0 {
		if err := json.Unmarshal(priceAlertsJSON, &lead.PriceAlerts); err != nil {
			return nil, fmt.Errorf("failed to unmarshal price alerts: %w", err)
		}
	}

	// Unknown stages from older rows fall back to the entry stage.
	if !lead.Stage.Valid() {
		lead.Stage = domain.StageInitialInterest
	}

	return lead, nil
}
