package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/couchcryptid/quake-data-etl/internal/domain"
)

// Querier is the subset of pgxpool.Pool the stores use; pgxmock
// satisfies it in tests.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// EventStore persists feed requests, staged raw events, and processed
// earthquakes.
type EventStore struct {
	db     Querier
	logger *slog.Logger
}

func NewEventStore(db Querier, logger *slog.Logger) *EventStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventStore{db: db, logger: logger}
}

// InsertFeedRequest records one feed call with its response status.
func (s *EventStore) InsertFeedRequest(ctx context.Context, req domain.FeedRequest) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO feed_requests
			(starttime, endtime, minmagnitude, latitude, longitude, maxradiuskm, orderby, request_time, response_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		req.Query.StartTime,
		req.Query.EndTime,
		req.Query.MinMagnitude,
		req.Query.Latitude,
		req.Query.Longitude,
		req.Query.MaxRadiusKm,
		req.Query.OrderBy,
		req.RequestTime,
		req.ResponseStatus,
	)
	if err != nil {
		return fmt.Errorf("insert feed request: %w", err)
	}
	return nil
}

// InsertRawEvents stages a batch of raw events for processing.
func (s *EventStore) InsertRawEvents(ctx context.Context, events []domain.RawEvent) error {
	for _, e := range events {
		_, err := s.db.Exec(ctx, `
			INSERT INTO earthquake_events
				(earthquake_global_id, magnitude, mag_type, place, event_time, updated_time,
				 tsunami, status, alert, significance, network, code, types,
				 longitude, latitude, depth, url, detail_url, title)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		`,
			e.GlobalID, e.Magnitude, e.MagType, e.Place, e.Time, e.Updated,
			e.Tsunami, e.Status, e.Alert, e.Significance, e.Network, e.Code, e.Types,
			e.Longitude, e.Latitude, e.Depth, e.URL, e.DetailURL, e.Title,
		)
		if err != nil {
			return fmt.Errorf("insert raw event %s: %w", e.GlobalID, err)
		}
	}
	return nil
}

// ListRawEvents returns up to limit staged events with id greater than
// afterID, in id order. Keyset pagination keeps pages stable while the
// batch job walks the staging table.
func (s *EventStore) ListRawEvents(ctx context.Context, afterID int64, limit int) ([]domain.RawEvent, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, earthquake_global_id, magnitude, mag_type, place, event_time, updated_time,
		       tsunami, status, alert, significance, network, code, types,
		       longitude, latitude, depth, url, detail_url, title
		FROM earthquake_events
		WHERE id > $1
		ORDER BY id ASC
		LIMIT $2
	`, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("list raw events: %w", err)
	}
	defer rows.Close()

	out := make([]domain.RawEvent, 0, limit)
	for rows.Next() {
		var e domain.RawEvent
		if err := rows.Scan(
			&e.ID, &e.GlobalID, &e.Magnitude, &e.MagType, &e.Place, &e.Time, &e.Updated,
			&e.Tsunami, &e.Status, &e.Alert, &e.Significance, &e.Network, &e.Code, &e.Types,
			&e.Longitude, &e.Latitude, &e.Depth, &e.URL, &e.DetailURL, &e.Title,
		); err != nil {
			return nil, fmt.Errorf("scan raw event: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate raw events: %w", err)
	}

	return out, nil
}

// UpsertProcessed writes a processed event keyed by its global id.
// Re-processing the same event updates in place and never duplicates.
func (s *EventStore) UpsertProcessed(ctx context.Context, e domain.ProcessedEvent) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO processed_earthquakes
			(earthquake_global_id, magnitude, mag_type, place, event_time,
			 latitude, longitude, depth, tsunami, alert_level,
			 nearest_city, distance_to_nearest_city_km,
			 population_100km, avg_age_100km, percent_male_100km, percent_female_100km,
			 is_significant, processed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (earthquake_global_id) DO UPDATE SET
			magnitude = EXCLUDED.magnitude,
			mag_type = EXCLUDED.mag_type,
			place = EXCLUDED.place,
			event_time = EXCLUDED.event_time,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			depth = EXCLUDED.depth,
			tsunami = EXCLUDED.tsunami,
			alert_level = EXCLUDED.alert_level,
			nearest_city = EXCLUDED.nearest_city,
			distance_to_nearest_city_km = EXCLUDED.distance_to_nearest_city_km,
			population_100km = EXCLUDED.population_100km,
			avg_age_100km = EXCLUDED.avg_age_100km,
			percent_male_100km = EXCLUDED.percent_male_100km,
			percent_female_100km = EXCLUDED.percent_female_100km,
			is_significant = EXCLUDED.is_significant,
			processed_at = EXCLUDED.processed_at
	`,
		e.GlobalID, e.Magnitude, e.MagType, e.Place, e.EventTime,
		e.Latitude, e.Longitude, e.Depth, e.Tsunami, e.AlertLevel,
		e.NearestCity, e.DistanceToNearestCityKm,
		e.Demographics100Km.TotalPopulation, e.Demographics100Km.AvgAge,
		e.Demographics100Km.PercentMale, e.Demographics100Km.PercentFemale,
		e.IsSignificant, e.ProcessedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert processed event %s: %w", e.GlobalID, err)
	}
	return nil
}

// ListProcessed returns the most recently processed events.
func (s *EventStore) ListProcessed(ctx context.Context, limit int) ([]domain.ProcessedEvent, error) {
	rows, err := s.db.Query(ctx, `
		SELECT earthquake_global_id, magnitude, mag_type, place, event_time,
		       latitude, longitude, depth, tsunami, alert_level,
		       nearest_city, distance_to_nearest_city_km,
		       population_100km, avg_age_100km, percent_male_100km, percent_female_100km,
		       is_significant, processed_at
		FROM processed_earthquakes
		ORDER BY processed_at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list processed events: %w", err)
	}
	defer rows.Close()

	out := make([]domain.ProcessedEvent, 0, limit)
	for rows.Next() {
		var e domain.ProcessedEvent
		if err := rows.Scan(
			&e.GlobalID, &e.Magnitude, &e.MagType, &e.Place, &e.EventTime,
			&e.Latitude, &e.Longitude, &e.Depth, &e.Tsunami, &e.AlertLevel,
			&e.NearestCity, &e.DistanceToNearestCityKm,
			&e.Demographics100Km.TotalPopulation, &e.Demographics100Km.AvgAge,
			&e.Demographics100Km.PercentMale, &e.Demographics100Km.PercentFemale,
			&e.IsSignificant, &e.ProcessedAt,
		); err != nil {
			return nil, fmt.Errorf("scan processed event: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate processed events: %w", err)
	}

	return out, nil
}

// CountRawEvents reports how many events are waiting in the staging
// table.
func (s *EventStore) CountRawEvents(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRow(ctx, "SELECT COUNT(*) FROM earthquake_events").Scan(&n); err != nil {
		return 0, fmt.Errorf("count raw events: %w", err)
	}
	return n, nil
}

// TruncateRawEvents empties the staging table after a fully successful
// batch run.
func (s *EventStore) TruncateRawEvents(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, "TRUNCATE TABLE earthquake_events"); err != nil {
		return fmt.Errorf("truncate raw events: %w", err)
	}
	return nil
}
