// Package domain models USGS earthquake feed data and the enrichment
// rules applied to it.
//
// # Data Source
//
// Raw events originate from the USGS FDSN event service
// (https://earthquake.usgs.gov/fdsnws/event/1/), fetched as GeoJSON by
// the ingest service and staged into Postgres for batch processing.
//
// # USGS Data Conventions
//
// Place format:
//
//	"<distance> <unit> <compass> of <city, region>"  →  e.g. "16 km S of Volcano, Hawaii"
//	means 16 km south of Volcano, HI. Distance units are "km" or "mi".
//	Some descriptive places omit the prefix entirely ("Near the coast of
//	Central Chile", "Unknown location").
//
// Times are epoch milliseconds; zero or negative values mean unknown and
// map to nil.
//
// Alert levels:
//
//	The USGS PAGER alert level is one of "green", "yellow", "orange",
//	"red", or absent. Yellow and above indicate expected impact.
//
// Tsunami flag:
//
//	Encoded as integer 0/1 in the feed; 1 means a tsunami message was
//	issued for the event.
//
// # Demographic Enrichment
//
// Each epicenter is enriched with a WorldPop age/sex population pyramid
// for a fixed 100 km radius. Pyramid rows carry an age-range label
// ("0 to 4", "80-84", "85 and over") and male/female counts; see
// [AggregatePyramid] for how they reduce to [Demographics].
//
// # Significance
//
// A processed event is flagged significant by an ordered list of
// independent clauses combining magnitude, distance to the nearest city,
// local population, tsunami flag, and alert level. See [IsSignificant].
package domain
