package domain

import (
	"regexp"
	"strconv"
	"strings"
)

const milesToKm = 1.60934

// distanceRe matches the first decimal number followed by a km or mi unit,
// e.g. "16 km S of Volcano, Hawaii" -> 16, "km".
var distanceRe = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(km|mi)`)

// nearestCityStrategies are tried in order; the first to produce a result
// wins. The identity strategy always matches, so parsing never fails.
var nearestCityStrategies = []func(place string) (string, bool){
	cityAfterOf,
	cityFromNearPrefix,
	cityIdentity,
}

// ParsePlace extracts the nearest-city name and the distance to it in
// kilometers from a USGS place string. Nil or blank input passes through
// unchanged with no distance. Malformed input never errors; the worst
// case is the trimmed original string and a nil distance.
func ParsePlace(place *string) (nearestCity *string, distanceKm *float64) {
	if place == nil || strings.TrimSpace(*place) == "" {
		return place, nil
	}

	for _, strategy := range nearestCityStrategies {
		if city, ok := strategy(*place); ok {
			nearestCity = &city
			break
		}
	}

	return nearestCity, extractDistanceKm(*place)
}

// cityAfterOf handles the standard USGS format
// "<distance> <direction> of <city, region>": everything after the first
// " of " is the city.
func cityAfterOf(place string) (string, bool) {
	idx := strings.Index(place, " of ")
	if idx < 0 {
		return "", false
	}
	return strings.TrimSpace(place[idx+len(" of "):]), true
}

// cityFromNearPrefix handles descriptive places like
// "Near the coast of Central Chile" that survived cityAfterOf only when
// no " of " token exists, e.g. "Near east coast Honshu": the last two
// tokens name the region.
func cityFromNearPrefix(place string) (string, bool) {
	if !strings.HasPrefix(strings.ToLower(place), "near") {
		return "", false
	}
	tokens := strings.Fields(place)
	if len(tokens) < 2 {
		return "", false
	}
	return strings.Join(tokens[len(tokens)-2:], " "), true
}

func cityIdentity(place string) (string, bool) {
	return strings.TrimSpace(place), true
}

// extractDistanceKm finds the first "<number> km" or "<number> mi" in the
// place string, independent of city extraction. Miles convert to
// kilometers. Returns nil when no distance pattern is present.
func extractDistanceKm(place string) *float64 {
	matches := distanceRe.FindStringSubmatch(place)
	if len(matches) != 3 {
		return nil
	}

	value, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return nil
	}
	if strings.EqualFold(matches[2], "mi") {
		value *= milesToKm
	}
	return &value
}
