// Package usgs fetches earthquake events from the USGS FDSN event
// service as GeoJSON.
package usgs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/couchcryptid/quake-data-etl/internal/domain"
)

// GeoJSON response types the feed can return.
const (
	typeFeatureCollection = "FeatureCollection"
	typeFeature           = "Feature"
)

// Client queries the USGS FDSN event endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
	format     string
	logger     *slog.Logger
}

// NewClient creates a feed client for the given FDSN base URL
// (".../fdsnws/event/1").
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		format:     "geojson",
		logger:     logger,
	}
}

// FetchEvents queries the feed and maps the response features to raw
// events. The returned status is the HTTP status code of the feed
// response (0 when the request never completed) so callers can record it
// even when the call fails.
func (c *Client) FetchEvents(ctx context.Context, q domain.FeedQuery) ([]domain.RawEvent, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.queryURL(q), nil)
	if err != nil {
		return nil, 0, fmt.Errorf("create feed request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, resp.StatusCode, fmt.Errorf("usgs feed: status %d: %s", resp.StatusCode, body)
	}

	events, err := parseFeed(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return events, resp.StatusCode, nil
}

// queryURL assembles the FDSN query with only the parameters the caller
// set.
func (c *Client) queryURL(q domain.FeedQuery) string {
	params := url.Values{"format": {c.format}}
	for key, value := range map[string]string{
		"starttime":    q.StartTime,
		"endtime":      q.EndTime,
		"minmagnitude": q.MinMagnitude,
		"latitude":     q.Latitude,
		"longitude":    q.Longitude,
		"maxradiuskm":  q.MaxRadiusKm,
		"orderby":      q.OrderBy,
	} {
		if value != "" {
			params.Set(key, value)
		}
	}
	return c.baseURL + "/query?" + params.Encode()
}

type feedFeature struct {
	ID         string            `json:"id"`
	Properties featureProperties `json:"properties"`
	Geometry   featureGeometry   `json:"geometry"`
}

type featureProperties struct {
	Mag     *float64 `json:"mag"`
	MagType *string  `json:"magType"`
	Place   *string  `json:"place"`
	Time    int64    `json:"time"`
	Updated int64    `json:"updated"`
	Tsunami int      `json:"tsunami"`
	Status  *string  `json:"status"`
	Alert   *string  `json:"alert"`
	Sig     int      `json:"sig"`
	Net     *string  `json:"net"`
	Code    *string  `json:"code"`
	Types   *string  `json:"types"`
	URL     *string  `json:"url"`
	Detail  *string  `json:"detail"`
	Title   *string  `json:"title"`
}

type featureGeometry struct {
	Coordinates []float64 `json:"coordinates"` // [lng, lat, depth]
}

// parseFeed decodes a FeatureCollection or a single Feature; any other
// GeoJSON type is an error.
func parseFeed(r io.Reader) ([]domain.RawEvent, error) {
	var root struct {
		Type     string        `json:"type"`
		Features []feedFeature `json:"features"`

		// Single-feature responses carry these at the top level.
		ID         string            `json:"id"`
		Properties featureProperties `json:"properties"`
		Geometry   featureGeometry   `json:"geometry"`
	}
	if err := json.NewDecoder(r).Decode(&root); err != nil {
		return nil, fmt.Errorf("decode feed response: %w", err)
	}

	switch root.Type {
	case typeFeatureCollection:
		events := make([]domain.RawEvent, 0, len(root.Features))
		for _, f := range root.Features {
			events = append(events, mapFeatureToRawEvent(f))
		}
		return events, nil
	case typeFeature:
		return []domain.RawEvent{mapFeatureToRawEvent(feedFeature{
			ID:         root.ID,
			Properties: root.Properties,
			Geometry:   root.Geometry,
		})}, nil
	default:
		return nil, fmt.Errorf("unexpected GeoJSON type %q in feed response", root.Type)
	}
}

func mapFeatureToRawEvent(f feedFeature) domain.RawEvent {
	event := domain.RawEvent{
		GlobalID:     f.ID,
		Magnitude:    f.Properties.Mag,
		MagType:      f.Properties.MagType,
		Place:        f.Properties.Place,
		Time:         epochMillisToTime(f.Properties.Time),
		Updated:      epochMillisToTime(f.Properties.Updated),
		Tsunami:      f.Properties.Tsunami == 1,
		Status:       f.Properties.Status,
		Alert:        f.Properties.Alert,
		Significance: f.Properties.Sig,
		Network:      f.Properties.Net,
		Code:         f.Properties.Code,
		Types:        f.Properties.Types,
		URL:          f.Properties.URL,
		DetailURL:    f.Properties.Detail,
		Title:        f.Properties.Title,
	}

	coords := f.Geometry.Coordinates
	if len(coords) > 0 {
		event.Longitude = &coords[0]
	}
	if len(coords) > 1 {
		event.Latitude = &coords[1]
	}
	if len(coords) > 2 {
		event.Depth = &coords[2]
	}
	return event
}

// epochMillisToTime converts feed epoch milliseconds to a UTC time; zero
// or negative values mean unknown.
func epochMillisToTime(ms int64) *time.Time {
	if ms <= 0 {
		return nil
	}
	t := time.UnixMilli(ms).UTC()
	return &t
}
