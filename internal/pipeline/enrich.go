package pipeline

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/quake-data-etl/internal/domain"
)

// demographicsRadiusKm is the fixed radius for population enrichment.
const demographicsRadiusKm = 100.0

// DemographicsFetcher returns the age/sex pyramid for the population
// within radiusKm of a point. An empty result means demographics are
// unknown.
type DemographicsFetcher interface {
	FetchPyramid(ctx context.Context, lat, lng, radiusKm float64) ([]domain.AgeGroupSample, error)
}

// Enricher converts one raw event into a processed event. Enrichment
// never fails: missing or degraded place/demographic data only biases
// the significance decision toward "not significant".
type Enricher struct {
	demographics DemographicsFetcher
	logger       *slog.Logger
}

// NewEnricher creates an Enricher. Pass a nil fetcher to disable
// demographic enrichment.
func NewEnricher(demographics DemographicsFetcher, logger *slog.Logger) *Enricher {
	return &Enricher{demographics: demographics, logger: logger}
}

// Enrich builds a ProcessedEvent from a RawEvent: identity and location
// fields copy over verbatim, the place string resolves to a nearest city
// and distance, the epicenter's 100 km demographics are fetched and
// aggregated, and the significance verdict is computed from the
// assembled fields.
func (e *Enricher) Enrich(ctx context.Context, raw domain.RawEvent) domain.ProcessedEvent {
	processed := domain.ProcessedEvent{
		GlobalID:   raw.GlobalID,
		Magnitude:  raw.Magnitude,
		MagType:    raw.MagType,
		Place:      raw.Place,
		EventTime:  raw.Time,
		Latitude:   raw.Latitude,
		Longitude:  raw.Longitude,
		Depth:      raw.Depth,
		Tsunami:    raw.Tsunami,
		AlertLevel: raw.Alert,
	}

	processed.NearestCity, processed.DistanceToNearestCityKm = domain.ParsePlace(raw.Place)

	var population *float64
	if pyramid := e.fetchPyramid(ctx, raw); len(pyramid) > 0 {
		processed.Demographics100Km = domain.AggregatePyramid(pyramid)
		population = &processed.Demographics100Km.TotalPopulation
	}

	processed.IsSignificant = domain.IsSignificant(
		processed.Magnitude,
		processed.Tsunami,
		processed.AlertLevel,
		population,
		processed.DistanceToNearestCityKm,
	)
	processed.ProcessedAt = domain.Now()

	return processed
}

// fetchPyramid returns the epicenter's pyramid, or nil when the event
// has no coordinates, enrichment is disabled, or the lookup degraded.
func (e *Enricher) fetchPyramid(ctx context.Context, raw domain.RawEvent) []domain.AgeGroupSample {
	if e.demographics == nil || raw.Latitude == nil || raw.Longitude == nil {
		return nil
	}

	pyramid, err := e.demographics.FetchPyramid(ctx, *raw.Latitude, *raw.Longitude, demographicsRadiusKm)
	if err != nil {
		e.logger.Warn("demographic lookup failed",
			"event_id", raw.GlobalID,
			"lat", *raw.Latitude,
			"lng", *raw.Longitude,
			"error", err,
		)
		return nil
	}
	return pyramid
}
