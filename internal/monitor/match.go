package monitor

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/jdsantos/quakewatch/internal/places"
)

var numberPattern = regexp.MustCompile(`\d+\.?\d*`)

// ParseMagnitude extracts the first decimal number from bulletin text such as
// "Ms 5.4" or "5.4". It returns 0.0 when no digit is present. The same
// routine parses depth text, which uses the same "NN km"-style formatting.
func ParseMagnitude(text string) float64 {
	match := numberPattern.FindString(text)
	if match == "" {
		return 0.0
	}
	value, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0.0
	}
	return value
}

// ParseCoordinates converts latitude/longitude text like "14.60°N" fields
// (degree symbol and surrounding whitespace stripped) into floats. Any
// failure yields both nil.
func ParseCoordinates(latText, lonText string) (*float64, *float64) {
	lat, err := strconv.ParseFloat(strings.TrimSpace(strings.ReplaceAll(latText, "°", "")), 64)
	if err != nil {
		return nil, nil
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(strings.ReplaceAll(lonText, "°", "")), 64)
	if err != nil {
		return nil, nil
	}
	return &lat, &lon
}

// AffectedRadiusKm derives the impact radius from magnitude using a linear
// model: 30 km base plus 25 km per unit of magnitude. No upper bound.
func AffectedRadiusKm(magnitude float64) float64 {
	return 30 + magnitude*25
}

const earthRadiusKm = 6371.0

// DistanceKm returns the great-circle surface distance between two
// (lat, lon) points via the haversine formula.
func DistanceKm(a, b places.Coordinates) float64 {
	latA := a.Lat * math.Pi / 180
	latB := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(latA)*math.Cos(latB)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}

// IsAffected reports whether the given city falls inside radiusKm of the
// quake epicenter. It is false when the city is unknown or either epicenter
// coordinate failed to parse.
func IsAffected(province, city string, lat, lon *float64, radiusKm float64) bool {
	cityCoords, ok := places.Lookup(province, city)
	if !ok || lat == nil || lon == nil {
		return false
	}
	quake := places.Coordinates{Lat: *lat, Lon: *lon}
	return DistanceKm(cityCoords, quake) <= radiusKm
}

// Reasons reported by EvaluateUser. The test-notification endpoint surfaces
// these verbatim.
const (
	ReasonMatched        = "matched"
	ReasonBelowThreshold = "magnitude below user threshold"
	ReasonOutsideRadius  = "location outside affected radius"
)

// MatchResult is the outcome of evaluating one user against one event.
type MatchResult struct {
	Send              bool
	Reason            string
	Province          string
	City              string
	EffectiveRadiusKm float64
}

// EvaluateUser applies one user's notification criteria to a quake. Both the
// scheduled poller fan-out and the on-demand test endpoint go through here so
// the two paths cannot drift.
//
// The effective radius is the smaller of the magnitude-derived impact radius
// and the user's configured proximity range.
func EvaluateUser(user User, settings Settings, magnitude float64, lat, lon *float64) MatchResult {
	province, city := user.Province, user.City
	if settings.LocationType == LocationCustom {
		province, city = settings.AltProvince, settings.AltCity
	}
	result := MatchResult{
		Province:          province,
		City:              city,
		EffectiveRadiusKm: math.Min(AffectedRadiusKm(magnitude), settings.RangeKm),
	}

	if magnitude < settings.MagnitudeThreshold {
		result.Reason = ReasonBelowThreshold
		return result
	}
	if !IsAffected(province, city, lat, lon, result.EffectiveRadiusKm) {
		result.Reason = ReasonOutsideRadius
		return result
	}

	result.Send = true
	result.Reason = ReasonMatched
	return result
}
