// Package extract parses free-text WhatsApp messages into structured
// vehicle preferences using a fixed keyword vocabulary.
package extract

import (
	"regexp"
	"strings"

	"github.com/dveiga/dealerflow/internal/domain"
)

// DefaultBudgetMultiplier converts a typed budget figure into currency
// units. Customers almost always type budgets in thousands ("20"
// meaning 20000), so captured digits are multiplied. A figure typed in
// full ("20000") gets multiplied too; the multiplier is configurable so
// product can change the interpretation without a code change.
const DefaultBudgetMultiplier = 1000

// brands is the fixed make vocabulary. Order is the tie-break: the
// first brand found in the message wins.
var brands = []string{
	"bmw", "mercedes", "volkswagen", "audi", "toyota",
	"ford", "renault", "peugeot", "seat", "skoda",
}

// budgetPattern captures a number with optional thousands separators,
// optionally preceded by a ceiling qualifier and currency marker.
var budgetPattern = regexp.MustCompile(`(?i)(?:até|under|below|maximum|max)?\s*(?:€|euros?)?\s*(\d{1,2}[.,]?\d{0,3})`)

var separators = strings.NewReplacer(".", "", ",", "")

// Extractor scans message text for vehicle preferences.
type Extractor struct {
	budgetMultiplier int
}

// New creates an Extractor. A non-positive multiplier falls back to the
// default thousands interpretation.
func New(budgetMultiplier int) *Extractor {
	if budgetMultiplier <= 0 {
		budgetMultiplier = DefaultBudgetMultiplier
	}
	return &Extractor{budgetMultiplier: budgetMultiplier}
}

// Extract parses a message into a preference record. Absent keywords
// leave the corresponding field unset; there are no error conditions.
// The function is pure and deterministic for identical input.
func (e *Extractor) Extract(message string) domain.Preferences {
	msg := strings.ToLower(message)
	var prefs domain.Preferences

	for _, brand := range brands {
		if strings.Contains(msg, brand) {
			name := strings.ToUpper(brand[:1]) + brand[1:]
			prefs.Make = &name
			break
		}
	}

	if m := budgetPattern.FindStringSubmatch(msg); m != nil && m[1] != "" {
		digits := separators.Replace(m[1])
		n := 0
		for _, c := range digits {
			n = n*10 + int(c-'0')
		}
		if n > 0 {
			budget := n * e.budgetMultiplier
			prefs.MaxBudget = &budget
		}
	}

	if strings.Contains(msg, "diesel") {
		prefs.Fuel = strptr("Diesel")
	}
	if strings.Contains(msg, "gasolina") || strings.Contains(msg, "petrol") {
		prefs.Fuel = strptr("Gasolina")
	}
	if strings.Contains(msg, "elétrico") || strings.Contains(msg, "electric") {
		prefs.Fuel = strptr("Elétrico")
	}
	if strings.Contains(msg, "híbrido") || strings.Contains(msg, "hybrid") {
		prefs.Fuel = strptr("Hibrido (Gasolina)")
	}

	if strings.Contains(msg, "automática") || strings.Contains(msg, "automatic") {
		prefs.Transmission = strptr("Automática")
	}
	if strings.Contains(msg, "manual") {
		prefs.Transmission = strptr("Manual")
	}

	if strings.Contains(msg, "suv") {
		prefs.BodyType = strptr("SUV")
	}
	if strings.Contains(msg, "sedan") {
		prefs.BodyType = strptr("Sedan")
	}
	if strings.Contains(msg, "carrinha") || strings.Contains(msg, "wagon") {
		prefs.BodyType = strptr("Carrinha")
	}

	return prefs
}

func strptr(s string) *string {
	return &s
}
