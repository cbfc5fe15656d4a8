// Package worldpop fetches age/sex population pyramids from the WorldPop
// task-based API. Lookups are best effort: every service-side failure
// degrades to an empty pyramid so a slow or broken demographic answer
// never blocks earthquake processing.
package worldpop

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/quake-data-etl/internal/domain"
	"github.com/couchcryptid/quake-data-etl/internal/geo"
	"github.com/couchcryptid/quake-data-etl/internal/observability"
)

const (
	pollInterval    = 1 * time.Second
	maxPollAttempts = 10
)

// Terminal states of one lookup. Only outcomeOK yields data; everything
// else maps to the empty-pyramid sentinel. The values double as the
// outcome label on the request metric.
const (
	outcomeOK             = "ok"
	outcomeNoTask         = "no_task"
	outcomeTaskError      = "task_error"
	outcomeTimeout        = "timeout"
	outcomeTransportError = "transport_error"
)

// Client submits polygon compute tasks to WorldPop and polls them to
// completion.
type Client struct {
	httpClient *http.Client
	baseURL    string
	taskURL    string
	dataset    string
	year       int
	clock      clockwork.Clock
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a WorldPop client. taskURL is the task-status
// endpoint; the task id is appended to it verbatim.
func NewClient(baseURL, taskURL, dataset string, year int, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		taskURL:    taskURL,
		dataset:    dataset,
		year:       year,
		clock:      clockwork.NewRealClock(),
		metrics:    metrics,
		logger:     logger,
	}
}

// SetClock swaps the poll-interval time source; tests inject a fake so
// the 10x1s loop runs instantly. Pass nil to reset to real time.
func (c *Client) SetClock(clock clockwork.Clock) {
	if clock == nil {
		c.clock = clockwork.NewRealClock()
		return
	}
	c.clock = clock
}

// FetchPyramid returns the age/sex pyramid for the population inside a
// radiusKm circle around (lat, lng). It returns an empty slice with a
// nil error for every service-side failure class: no task id, a
// server-reported task error, a poll timeout, or a transport failure.
// The only returned errors are geometry validation failures (caller bug)
// and context cancellation.
func (c *Client) FetchPyramid(ctx context.Context, lat, lng, radiusKm float64) ([]domain.AgeGroupSample, error) {
	circle, err := geo.BuildCircle(lat, lng, radiusKm)
	if err != nil {
		return nil, err
	}

	start := c.clock.Now()
	pyramid, outcome, err := c.fetch(ctx, circle)
	if err != nil {
		return nil, err
	}

	c.metrics.WorldPopRequests.WithLabelValues(outcome).Inc()
	c.metrics.WorldPopTaskDuration.Observe(c.clock.Since(start).Seconds())
	return pyramid, nil
}

func (c *Client) fetch(ctx context.Context, circle []byte) ([]domain.AgeGroupSample, string, error) {
	taskID, err := c.submitTask(ctx, circle)
	if err != nil {
		if ctx.Err() != nil {
			return nil, "", ctx.Err()
		}
		c.logger.Warn("worldpop submission failed", "error", err)
		return nil, outcomeTransportError, nil
	}
	if taskID == "" {
		c.logger.Warn("worldpop did not return a task id")
		return nil, outcomeNoTask, nil
	}

	return c.pollTask(ctx, taskID)
}

// submitTask posts the circle geometry and returns the task id, or ""
// when the response carried none.
func (c *Client) submitTask(ctx context.Context, circle []byte) (string, error) {
	params := url.Values{
		"dataset": {c.dataset},
		"year":    {strconv.Itoa(c.year)},
		"geojson": {string(circle)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("create submit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("submit task: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("worldpop submit: status %d: %s", resp.StatusCode, body)
	}

	var submitted struct {
		TaskID string `json:"taskid"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&submitted); err != nil {
		return "", fmt.Errorf("decode submit response: %w", err)
	}
	return submitted.TaskID, nil
}

// taskResponse is the task-status endpoint payload.
type taskResponse struct {
	Status       string `json:"status"`
	Error        bool   `json:"error"`
	ErrorMessage string `json:"error_message"`
	Data         struct {
		AgeSexPyramid []domain.AgeGroupSample `json:"agesexpyramid"`
	} `json:"data"`
}

// pollTask polls the task-status endpoint at pollInterval until the task
// reports "finished" or maxPollAttempts is exhausted.
func (c *Client) pollTask(ctx context.Context, taskID string) ([]domain.AgeGroupSample, string, error) {
	var lastErr error
	for attempt := 0; attempt < maxPollAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, "", ctx.Err()
			case <-c.clock.After(pollInterval):
			}
		}

		status, err := c.taskStatus(ctx, taskID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, "", ctx.Err()
			}
			// A transient failure spends one attempt, not the
			// whole budget.
			c.logger.Warn("worldpop poll failed",
				"task_id", taskID,
				"attempt", attempt+1,
				"error", err,
			)
			lastErr = err
			continue
		}
		lastErr = nil

		if !strings.EqualFold(status.Status, "finished") {
			continue
		}
		if status.Error {
			c.logger.Warn("worldpop task failed server-side",
				"task_id", taskID,
				"message", status.ErrorMessage,
			)
			return nil, outcomeTaskError, nil
		}
		return status.Data.AgeSexPyramid, outcomeOK, nil
	}

	if lastErr != nil {
		return nil, outcomeTransportError, nil
	}

	c.logger.Warn("worldpop task timed out",
		"task_id", taskID,
		"attempts", maxPollAttempts,
	)
	return nil, outcomeTimeout, nil
}

func (c *Client) taskStatus(ctx context.Context, taskID string) (taskResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.taskURL+taskID, nil)
	if err != nil {
		return taskResponse{}, fmt.Errorf("create poll request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return taskResponse{}, fmt.Errorf("poll task: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return taskResponse{}, fmt.Errorf("worldpop poll: status %d: %s", resp.StatusCode, body)
	}

	var status taskResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return taskResponse{}, fmt.Errorf("decode poll response: %w", err)
	}
	return status, nil
}
