package domain

import "time"

// FeedQuery holds the optional USGS FDSN query parameters for one feed
// request. Empty fields are omitted from the request URL.
type FeedQuery struct {
	StartTime    string
	EndTime      string
	MinMagnitude string
	Latitude     string
	Longitude    string
	MaxRadiusKm  string
	OrderBy      string
}

// FeedRequest records one call to the USGS feed for auditing.
type FeedRequest struct {
	ID             int64
	Query          FeedQuery
	RequestTime    time.Time
	ResponseStatus string
}

// RawEvent is an unprocessed earthquake event as staged from the USGS
// feed. Nullable feed fields are pointers; absent means the feed did not
// report them. Raw events are immutable once staged.
type RawEvent struct {
	ID           int64
	GlobalID     string
	Magnitude    *float64
	MagType      *string
	Place        *string
	Time         *time.Time
	Updated      *time.Time
	Tsunami      bool
	Status       *string
	Alert        *string
	Significance int
	Network      *string
	Code         *string
	Types        *string
	Longitude    *float64
	Latitude     *float64
	Depth        *float64
	URL          *string
	DetailURL    *string
	Title        *string
}

// AgeGroupSample is one row of a WorldPop age/sex pyramid.
type AgeGroupSample struct {
	Age    string  `json:"age"`
	Male   float64 `json:"male"`
	Female float64 `json:"female"`
}

// Demographics summarizes an age/sex pyramid for the population around an
// epicenter. All fields are zero when no pyramid was available.
type Demographics struct {
	TotalPopulation float64 `json:"total_population"`
	AvgAge          float64 `json:"avg_age"`
	PercentMale     float64 `json:"percent_male"`
	PercentFemale   float64 `json:"percent_female"`
}

// ProcessedEvent is the enriched representation of one raw event.
// Exactly one processed event exists per GlobalID; re-processing upserts.
type ProcessedEvent struct {
	GlobalID                string       `json:"earthquake_global_id"`
	Magnitude               *float64     `json:"magnitude,omitempty"`
	MagType                 *string      `json:"mag_type,omitempty"`
	Place                   *string      `json:"place,omitempty"`
	EventTime               *time.Time   `json:"event_time,omitempty"`
	Latitude                *float64     `json:"latitude,omitempty"`
	Longitude               *float64     `json:"longitude,omitempty"`
	Depth                   *float64     `json:"depth,omitempty"`
	Tsunami                 bool         `json:"tsunami"`
	AlertLevel              *string      `json:"alert_level,omitempty"`
	NearestCity             *string      `json:"nearest_city,omitempty"`
	DistanceToNearestCityKm *float64     `json:"distance_to_nearest_city_km,omitempty"`
	Demographics100Km       Demographics `json:"demographics_100km"`
	IsSignificant           bool         `json:"is_significant"`
	ProcessedAt             time.Time    `json:"processed_at"`
}
