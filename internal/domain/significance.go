package domain

import "strings"

// Significance thresholds. Clause order below matches the documented
// policy for readability; the clauses are independent, so reordering
// would not change the result set.
const (
	majorMagnitude    = 6.0
	moderateMagnitude = 5.0
	nearCityKm        = 30.0
	minorMagnitude    = 4.0
	veryNearCityKm    = 10.0
	densePopulation   = 1_000_000.0
	extremePopulation = 5_000_000.0
)

// significanceInput bundles the classification fields after the
// magnitude-present precondition has been checked.
type significanceInput struct {
	magnitude  float64
	tsunami    bool
	alertLevel *string
	population *float64
	distanceKm *float64
}

type significanceClause struct {
	name  string
	match func(in significanceInput) bool
}

// significanceClauses are evaluated in order; the first match flags the
// event. Kept as data so each clause is testable on its own and new
// clauses slot in without touching control flow.
var significanceClauses = []significanceClause{
	{"major magnitude", func(in significanceInput) bool {
		return in.magnitude >= majorMagnitude
	}},
	{"moderate magnitude near city", func(in significanceInput) bool {
		return in.magnitude >= moderateMagnitude &&
			in.distanceKm != nil && *in.distanceKm <= nearCityKm
	}},
	{"minor magnitude in dense population", func(in significanceInput) bool {
		return in.magnitude >= minorMagnitude &&
			in.distanceKm != nil && *in.distanceKm <= veryNearCityKm &&
			in.population != nil && *in.population >= densePopulation
	}},
	{"tsunami", func(in significanceInput) bool {
		return in.tsunami
	}},
	{"elevated alert level", func(in significanceInput) bool {
		return in.alertLevel != nil && alertFlagsSignificant(*in.alertLevel)
	}},
	{"extreme population exposure", func(in significanceInput) bool {
		return in.population != nil && *in.population >= extremePopulation
	}},
}

// IsSignificant decides whether an earthquake warrants elevated
// attention. A nil magnitude short-circuits every clause: without a
// magnitude the event cannot be classified and is not significant.
// Missing population or distance data simply fails the clauses that need
// them; it never errors.
func IsSignificant(magnitude *float64, tsunami bool, alertLevel *string, population100km, distanceToNearestCityKm *float64) bool {
	if magnitude == nil {
		return false
	}

	in := significanceInput{
		magnitude:  *magnitude,
		tsunami:    tsunami,
		alertLevel: alertLevel,
		population: population100km,
		distanceKm: distanceToNearestCityKm,
	}

	for _, clause := range significanceClauses {
		if clause.match(in) {
			return true
		}
	}
	return false
}

// alertFlagsSignificant reports whether a PAGER alert level is yellow or
// above. Comparison is case-insensitive; "green" and unknown levels are
// not significant.
func alertFlagsSignificant(level string) bool {
	switch strings.ToLower(level) {
	case "yellow", "orange", "red":
		return true
	default:
		return false
	}
}
