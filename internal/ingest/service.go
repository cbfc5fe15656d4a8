// Package ingest pulls earthquake events from the USGS feed and stages
// them for the enrichment job.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/couchcryptid/quake-data-etl/internal/domain"
	"github.com/couchcryptid/quake-data-etl/internal/observability"
)

// Feed fetches raw events for a query window. The returned status is the
// upstream HTTP status code, or 0 when the request never completed.
type Feed interface {
	FetchEvents(ctx context.Context, q domain.FeedQuery) ([]domain.RawEvent, int, error)
}

// Store persists feed-request audit rows and staged events.
type Store interface {
	InsertFeedRequest(ctx context.Context, req domain.FeedRequest) error
	InsertRawEvents(ctx context.Context, events []domain.RawEvent) error
}

// Service stages one feed window at a time.
type Service struct {
	feed    Feed
	store   Store
	logger  *slog.Logger
	metrics *observability.Metrics
}

func NewService(feed Feed, store Store, logger *slog.Logger, metrics *observability.Metrics) *Service {
	return &Service{feed: feed, store: store, logger: logger, metrics: metrics}
}

// StageWindow fetches events for the query window and stages them. An
// empty window defaults to the previous full day. Every fetch attempt is
// recorded as a feed request, including failed ones.
func (s *Service) StageWindow(ctx context.Context, q domain.FeedQuery) (int, error) {
	q = applyDefaultWindow(q)

	events, status, fetchErr := s.feed.FetchEvents(ctx, q)

	req := domain.FeedRequest{
		Query:          q,
		RequestTime:    domain.Now(),
		ResponseStatus: strconv.Itoa(status),
	}
	if err := s.store.InsertFeedRequest(ctx, req); err != nil {
		s.logger.Warn("failed to record feed request", "error", err)
	}

	if fetchErr != nil {
		return 0, fmt.Errorf("fetch feed window: %w", fetchErr)
	}

	if err := s.store.InsertRawEvents(ctx, events); err != nil {
		return 0, fmt.Errorf("stage events: %w", err)
	}

	s.metrics.EventsStaged.Add(float64(len(events)))
	s.logger.Info("staged feed window",
		"start_time", q.StartTime,
		"end_time", q.EndTime,
		"events", len(events),
	)
	return len(events), nil
}

// applyDefaultWindow fills an empty start/end with the previous full day
// in UTC, matching the daily-batch cadence of the feed.
func applyDefaultWindow(q domain.FeedQuery) domain.FeedQuery {
	if q.StartTime != "" || q.EndTime != "" {
		return q
	}
	end := domain.Now().UTC().Truncate(24 * time.Hour)
	start := end.AddDate(0, 0, -1)
	q.StartTime = start.Format("2006-01-02")
	q.EndTime = end.Format("2006-01-02")
	return q
}
