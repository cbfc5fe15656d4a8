package domain

import (
	"strconv"
	"strings"
)

// openEndedMidpoint is the assumed midpoint age for "85 and over" style
// labels with no upper bound.
const openEndedMidpoint = 85.0

// AggregatePyramid reduces an age/sex pyramid into total population,
// population-weighted average age, and gender percentages. An empty
// pyramid yields all-zero Demographics; percentages are guarded against
// division by zero so a zero population never produces NaN.
func AggregatePyramid(pyramid []AgeGroupSample) Demographics {
	var total, weightedAgeSum, totalMale, totalFemale float64

	for _, group := range pyramid {
		groupTotal := group.Male + group.Female
		weightedAgeSum += groupTotal * ageMidpoint(group.Age)
		total += groupTotal
		totalMale += group.Male
		totalFemale += group.Female
	}

	if total == 0 {
		return Demographics{}
	}

	return Demographics{
		TotalPopulation: total,
		AvgAge:          weightedAgeSum / total,
		PercentMale:     totalMale / total * 100,
		PercentFemale:   totalFemale / total * 100,
	}
}

// ageMidpoint approximates the midpoint of an age-range label such as
// "0 to 4" or "25-29". Open-ended labels ("85 and over") use
// openEndedMidpoint. A label that fails to parse contributes 0 rather
// than aborting aggregation.
func ageMidpoint(label string) float64 {
	if strings.Contains(label, "and over") {
		return openEndedMidpoint
	}

	for _, sep := range []string{"to", "-"} {
		parts := strings.SplitN(label, sep, 2)
		if len(parts) != 2 {
			continue
		}
		start, errStart := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		end, errEnd := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if errStart != nil || errEnd != nil {
			continue
		}
		return (start + end) / 2
	}

	return 0
}
