// Package pipeline enriches staged earthquake events and loads them into
// the processed store.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/couchcryptid/quake-data-etl/internal/domain"
	"github.com/couchcryptid/quake-data-etl/internal/observability"
)

const (
	// DefaultPageSize is how many staged events one read pulls.
	DefaultPageSize = 50
	// DefaultChunkSize is the processed-event commit group size.
	DefaultChunkSize = 5
)

// ErrJobRunning is returned when a run is requested while one is already
// in flight.
var ErrJobRunning = errors.New("enrichment job already running")

// RawEventSource pages through the staging table.
type RawEventSource interface {
	CountRawEvents(ctx context.Context) (int64, error)
	ListRawEvents(ctx context.Context, afterID int64, limit int) ([]domain.RawEvent, error)
	TruncateRawEvents(ctx context.Context) error
}

// ProcessedSink stores processed events keyed by global id.
type ProcessedSink interface {
	UpsertProcessed(ctx context.Context, event domain.ProcessedEvent) error
}

// Notifier publishes significant processed events. May be nil when
// notifications are disabled.
type Notifier interface {
	NotifySignificant(ctx context.Context, event domain.ProcessedEvent) error
}

// Summary reports what one job run did.
type Summary struct {
	Processed   int `json:"processed"`
	Significant int `json:"significant"`
}

// Job walks the staging table page by page, enriches each event, commits
// processed events in fixed-size chunks, and truncates the staging table
// once everything loaded cleanly. One run at a time; events are
// processed sequentially inside a run.
type Job struct {
	source   RawEventSource
	sink     ProcessedSink
	enricher *Enricher
	notifier Notifier
	logger   *slog.Logger
	metrics  *observability.Metrics

	pageSize  int
	chunkSize int

	running atomic.Bool
	ready   atomic.Bool
}

// NewJob creates a Job. Non-positive pageSize/chunkSize fall back to the
// defaults; notifier may be nil.
func NewJob(source RawEventSource, sink ProcessedSink, enricher *Enricher, notifier Notifier,
	logger *slog.Logger, metrics *observability.Metrics, pageSize, chunkSize int) *Job {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Job{
		source:    source,
		sink:      sink,
		enricher:  enricher,
		notifier:  notifier,
		logger:    logger,
		metrics:   metrics,
		pageSize:  pageSize,
		chunkSize: chunkSize,
	}
}

// CheckReadiness returns nil once at least one job run has completed.
func (j *Job) CheckReadiness(_ context.Context) error {
	if !j.ready.Load() {
		return errors.New("no enrichment job has completed yet")
	}
	return nil
}

// Start launches Run on a new goroutine. It returns ErrJobRunning when a
// run is already in flight.
func (j *Job) Start(ctx context.Context) error {
	if !j.running.CompareAndSwap(false, true) {
		return ErrJobRunning
	}
	go func() {
		defer j.running.Store(false)
		if _, err := j.run(ctx); err != nil {
			j.logger.Error("enrichment job failed", "error", err)
		}
	}()
	return nil
}

// Run executes the job synchronously. It returns ErrJobRunning when a
// run is already in flight.
func (j *Job) Run(ctx context.Context) (Summary, error) {
	if !j.running.CompareAndSwap(false, true) {
		return Summary{}, ErrJobRunning
	}
	defer j.running.Store(false)
	return j.run(ctx)
}

func (j *Job) run(ctx context.Context) (Summary, error) {
	start := time.Now()
	logger := j.logger.With("run_id", uuid.NewString())

	staged, err := j.source.CountRawEvents(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("count staged events: %w", err)
	}
	logger.Info("enrichment job started",
		"staged", staged,
		"page_size", j.pageSize,
		"chunk_size", j.chunkSize,
	)
	j.metrics.JobRunning.Set(1)
	defer j.metrics.JobRunning.Set(0)

	var summary Summary
	var afterID int64
	chunk := make([]domain.ProcessedEvent, 0, j.chunkSize)

	for {
		page, err := j.source.ListRawEvents(ctx, afterID, j.pageSize)
		if err != nil {
			return summary, fmt.Errorf("read staged events: %w", err)
		}
		if len(page) == 0 {
			break
		}

		for _, raw := range page {
			if err := ctx.Err(); err != nil {
				return summary, err
			}

			chunk = append(chunk, j.enricher.Enrich(ctx, raw))
			afterID = raw.ID

			if len(chunk) == j.chunkSize {
				if err := j.commitChunk(ctx, chunk, &summary); err != nil {
					return summary, err
				}
				chunk = chunk[:0]
			}
		}
	}

	if len(chunk) > 0 {
		if err := j.commitChunk(ctx, chunk, &summary); err != nil {
			return summary, err
		}
	}

	// The staging table is only cleared after every event loaded; an
	// aborted run leaves it intact for the next attempt.
	if err := j.source.TruncateRawEvents(ctx); err != nil {
		return summary, fmt.Errorf("truncate staging table: %w", err)
	}

	j.metrics.JobDuration.Observe(time.Since(start).Seconds())
	j.ready.Store(true)
	logger.Info("enrichment job finished",
		"processed", summary.Processed,
		"significant", summary.Significant,
		"duration", time.Since(start),
	)
	return summary, nil
}

// commitChunk upserts one commit group and publishes notifications for
// its significant events. A load failure aborts the run; a notification
// failure does not.
func (j *Job) commitChunk(ctx context.Context, chunk []domain.ProcessedEvent, summary *Summary) error {
	for _, event := range chunk {
		if err := j.sink.UpsertProcessed(ctx, event); err != nil {
			j.metrics.LoadErrors.Inc()
			return fmt.Errorf("load processed event %s: %w", event.GlobalID, err)
		}
		summary.Processed++
		j.metrics.EventsProcessed.Inc()

		if !event.IsSignificant {
			continue
		}
		summary.Significant++
		j.metrics.SignificantEvents.Inc()

		if j.notifier == nil {
			continue
		}
		if err := j.notifier.NotifySignificant(ctx, event); err != nil {
			j.logger.Warn("significant-event notification failed",
				"event_id", event.GlobalID,
				"error", err,
			)
			continue
		}
		j.metrics.NotificationsPublished.Inc()
	}
	return nil
}
