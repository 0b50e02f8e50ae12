package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dveiga/dealerflow/internal/domain"
	"github.com/dveiga/dealerflow/internal/repository"
)

// MockLeadRepository is a mock implementation of domain.LeadRepository for testing.
type MockLeadRepository struct {
	mu      sync.RWMutex
	leads   map[uuid.UUID]*domain.Lead
	byPhone map[string]*domain.Lead

	// For tracking method calls
	CreateCalls     int
	UpdateCalls     int
	GetByIDCalls    int
	GetByPhoneCalls int

	// For injecting errors
	CreateError     error
	UpdateError     error
	GetByIDError    error
	GetByPhoneError error
	ListError       error
}

func NewMockLeadRepository() *MockLeadRepository {
	return &MockLeadRepository{
		leads:   make(map[uuid.UUID]*domain.Lead),
		byPhone: make(map[string]*domain.Lead),
	}
}

func (m *MockLeadRepository) Create(ctx context.Context, lead *domain.Lead) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreateCalls++
	if m.CreateError != nil {
		return m.CreateError
	}
	m.leads[lead.ID] = lead
	m.byPhone[lead.Phone] = lead
	return nil
}

func (m *MockLeadRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Lead, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	m.GetByIDCalls++
	if m.GetByIDError != nil {
		return nil, m.GetByIDError
	}
	if lead, ok := m.leads[id]; ok {
		return lead, nil
	}
	return nil, repository.ErrNotFound
}

func (m *MockLeadRepository) GetByPhone(ctx context.Context, phone string) (*domain.Lead, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	m.GetByPhoneCalls++
	if m.GetByPhoneError != nil {
		return nil, m.GetByPhoneError
	}
	if lead, ok := m.byPhone[phone]; ok {
		return lead, nil
	}
	return nil, repository.ErrNotFound
}

func (m *MockLeadRepository) Update(ctx context.Context, lead *domain.Lead) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpdateCalls++
	if m.UpdateError != nil {
		return m.UpdateError
	}
	if _, ok := m.leads[lead.ID]; !ok {
		return repository.ErrNotFound
	}
	m.leads[lead.ID] = lead
	m.byPhone[lead.Phone] = lead
	return nil
}

func (m *MockLeadRepository) ListActiveSince(ctx context.Context, source string, since time.Time) ([]*domain.Lead, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ListError != nil {
		return nil, m.ListError
	}
	var out []*domain.Lead
	for _, lead := range m.leads {
		if lead.Source != source {
			continue
		}
		if lead.CreatedAt.After(since) || lead.LastContact().After(since) {
			out = append(out, lead)
		}
	}
	return out, nil
}

func (m *MockLeadRepository) ListOpenBySource(ctx context.Context, source string) ([]*domain.Lead, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ListError != nil {
		return nil, m.ListError
	}
	var out []*domain.Lead
	for _, lead := range m.leads {
		if lead.Source == source && lead.Status != domain.LeadStatusConverted {
			out = append(out, lead)
		}
	}
	return out, nil
}

func (m *MockLeadRepository) ListByIntents(ctx context.Context, source string, intents []domain.Intent) ([]*domain.Lead, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ListError != nil {
		return nil, m.ListError
	}
	var out []*domain.Lead
	for _, lead := range m.leads {
		if lead.Source != source {
			continue
		}
		for _, intent := range intents {
			if lead.Intent == intent {
				out = append(out, lead)
				break
			}
		}
	}
	return out, nil
}

// MockVehicleRepository is a mock implementation of domain.VehicleRepository for testing.
type MockVehicleRepository struct {
	mu       sync.RWMutex
	vehicles map[uuid.UUID]*domain.Vehicle

	// For tracking method calls
	MatchCalls   int
	ReserveCalls int
	ReleaseCalls int
	LastFilter   *domain.VehicleFilter
	LastLimit    int

	// For injecting errors
	MatchError   error
	ReserveError error
	ReleaseError error
	GetByIDError error
}

func NewMockVehicleRepository() *MockVehicleRepository {
	return &MockVehicleRepository{
		vehicles: make(map[uuid.UUID]*domain.Vehicle),
	}
}

func (m *MockVehicleRepository) Add(v *domain.Vehicle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vehicles[v.ID] = v
}

func (m *MockVehicleRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Vehicle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.GetByIDError != nil {
		return nil, m.GetByIDError
	}
	if v, ok := m.vehicles[id]; ok {
		return v, nil
	}
	return nil, repository.ErrNotFound
}

func (m *MockVehicleRepository) Match(ctx context.Context, filter *domain.VehicleFilter, limit int) ([]*domain.Vehicle, error) {
	m.mu.Lock()
	m.MatchCalls++
	m.LastFilter = filter
	m.LastLimit = limit
	m.mu.Unlock()
	if m.MatchError != nil {
		return nil, m.MatchError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Vehicle
	for _, v := range m.vehicles {
		if !v.IsActive {
			continue
		}
		if filter != nil {
			if filter.OnDisplayOnly && v.Status != domain.VehicleStatusOnDisplay {
				continue
			}
			if filter.MaxPrice != nil && v.Price > *filter.MaxPrice {
				continue
			}
		}
		out = append(out, v)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *MockVehicleRepository) ListActive(ctx context.Context) ([]*domain.Vehicle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Vehicle
	for _, v := range m.vehicles {
		if v.IsActive {
			out = append(out, v)
		}
	}
	return out, nil
}

func (m *MockVehicleRepository) ListSlowMoving(ctx context.Context, minDays, maxDemand int) ([]*domain.Vehicle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Vehicle
	for _, v := range m.vehicles {
		if v.IsActive && v.DaysInStock >= minDays && v.DemandCount <= maxDemand {
			out = append(out, v)
		}
	}
	return out, nil
}

func (m *MockVehicleRepository) ListArrivedSince(ctx context.Context, since time.Time) ([]*domain.Vehicle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Vehicle
	for _, v := range m.vehicles {
		if v.IsActive && v.Status == domain.VehicleStatusOnDisplay && v.CreatedAt.After(since) {
			out = append(out, v)
		}
	}
	return out, nil
}

func (m *MockVehicleRepository) UpdateDemandCount(ctx context.Context, id uuid.UUID, count int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.vehicles[id]; ok {
		v.DemandCount = count
		return nil
	}
	return repository.ErrNotFound
}

func (m *MockVehicleRepository) SavePricingSuggestion(ctx context.Context, id uuid.UUID, s *domain.PricingSuggestion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.vehicles[id]; ok {
		v.PricingSuggestion = s
		return nil
	}
	return repository.ErrNotFound
}

func (m *MockVehicleRepository) Reserve(ctx context.Context, id uuid.UUID, res domain.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReserveCalls++
	if m.ReserveError != nil {
		return m.ReserveError
	}
	v, ok := m.vehicles[id]
	if !ok || v.Status == domain.VehicleStatusReserved {
		return repository.ErrNotFound
	}
	v.Status = domain.VehicleStatusReserved
	leadID := res.LeadID
	v.ReservedFor = &leadID
	return nil
}

func (m *MockVehicleRepository) Release(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReleaseCalls++
	if m.ReleaseError != nil {
		return m.ReleaseError
	}
	v, ok := m.vehicles[id]
	if !ok || v.Status != domain.VehicleStatusReserved {
		return repository.ErrNotFound
	}
	v.Status = domain.VehicleStatusOnDisplay
	v.ReservedFor = nil
	return nil
}

// MockGateway records outbound sends.
type MockGateway struct {
	mu sync.Mutex

	Sent      []SentMessage
	SendCalls int
	SendError error
}

type SentMessage struct {
	Phone string
	Text  string
}

func (m *MockGateway) Send(ctx context.Context, phone, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SendCalls++
	if m.SendError != nil {
		return m.SendError
	}
	m.Sent = append(m.Sent, SentMessage{Phone: phone, Text: text})
	return nil
}

// SentTo returns the messages delivered to a phone number.
func (m *MockGateway) SentTo(phone string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, s := range m.Sent {
		if s.Phone == phone {
			out = append(out, s.Text)
		}
	}
	return out
}
