package domain

// Preferences is the structured record extracted from free-text messages.
// Every field is optional; an absent keyword leaves the field unset.
type Preferences struct {
	Make         *string `json:"make,omitempty"`
	MaxBudget    *int    `json:"max_budget,omitempty"`
	Fuel         *string `json:"fuel,omitempty"`
	Transmission *string `json:"transmission,omitempty"`
	BodyType     *string `json:"body_type,omitempty"`
}

// IsEmpty reports whether no preference field is set.
func (p Preferences) IsEmpty() bool {
	return p.FieldCount() == 0
}

// FieldCount returns how many preference fields are populated.
func (p Preferences) FieldCount() int {
	n := 0
	if p.Make != nil {
		n++
	}
	if p.MaxBudget != nil {
		n++
	}
	if p.Fuel != nil {
		n++
	}
	if p.Transmission != nil {
		n++
	}
	if p.BodyType != nil {
		n++
	}
	return n
}

// Merge overlays the populated fields of other onto p. Newly extracted
// values win over previously stored ones.
func (p *Preferences) Merge(other Preferences) {
	if other.Make != nil {
		p.Make = other.Make
	}
	if other.MaxBudget != nil {
		p.MaxBudget = other.MaxBudget
	}
	if other.Fuel != nil {
		p.Fuel = other.Fuel
	}
	if other.Transmission != nil {
		p.Transmission = other.Transmission
	}
	if other.BodyType != nil {
		p.BodyType = other.BodyType
	}
}
